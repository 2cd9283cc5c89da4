package profile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// DownloadPicture saves the image at pictureURL to dest.
func DownloadPicture(ctx context.Context, httpClient *http.Client, pictureURL, dest string) error {
	if pictureURL == "" {
		return fmt.Errorf("profile has no picture")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pictureURL, nil)
	if err != nil {
		return fmt.Errorf("build picture request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download picture: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download picture: unexpected status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create picture file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("write picture file: %w", err)
	}
	return out.Close()
}
