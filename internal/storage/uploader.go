// Package storage publishes rendered videos to Supabase Storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	storage_go "github.com/supabase-community/storage-go"

	"roastreel/internal/apperr"
)

const videoContentType = "video/mp4"

// ObjectStore is the part of the storage client the uploader uses.
// *storage_go.Client satisfies it.
type ObjectStore interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

// Uploader stores videos under roasts/<label>/ in one bucket and returns
// permanent public URLs.
type Uploader struct {
	store  ObjectStore
	bucket string
	logger *logrus.Logger
	now    func() time.Time
}

func NewUploader(store ObjectStore, bucket string, logger *logrus.Logger) *Uploader {
	return &Uploader{store: store, bucket: bucket, logger: logger, now: time.Now}
}

// ObjectKey returns roasts/<label>/<YYYYMMDD_HHMMSS>_<8 hex>.mp4.
func ObjectKey(label string, at time.Time) string {
	label = strings.Trim(strings.ReplaceAll(label, "/", "_"), ". ")
	if label == "" {
		label = "anonymous"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return path.Join("roasts", label, fmt.Sprintf("%s_%s.mp4", at.UTC().Format("20060102_150405"), suffix))
}

// Upload publishes the file at localPath and returns its public URL. The
// local file is removed only after a successful upload.
func (u *Uploader) Upload(ctx context.Context, localPath, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperr.Upload("upload cancelled").WithCause(err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", apperr.Upload("failed to read rendered video").WithCause(err)
	}

	key := ObjectKey(label, u.now())
	contentType := videoContentType
	upsert := false

	if _, err := u.store.UploadFile(u.bucket, key, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}); err != nil {
		return "", apperr.Upload(fmt.Sprintf("upload to bucket %s failed", u.bucket)).
			With("key", key).
			WithCause(err)
	}

	publicURL := u.store.GetPublicUrl(u.bucket, key).SignedURL
	if publicURL == "" {
		return "", apperr.Upload("storage returned no public URL").With("key", key)
	}

	if err := os.Remove(localPath); err != nil {
		u.logger.WithError(err).WithField("path", localPath).Warn("Failed to remove uploaded video")
	}

	u.logger.WithFields(logrus.Fields{
		"bucket": u.bucket,
		"key":    key,
		"bytes":  len(data),
	}).Info("Video uploaded")
	return publicURL, nil
}
