// Package profile resolves profile handles, fetches profile payloads from the
// profile data API and normalizes them into models.ProfileRecord.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"roastreel/internal/apperr"
	"roastreel/internal/cache"
	"roastreel/models"
)

const serviceName = "profile API"

// Config describes the profile data API.
type Config struct {
	BaseURL string
	APIKey  string
	APIHost string
}

// Fetcher fetches and normalizes profiles, consulting the cache on failure.
type Fetcher struct {
	httpClient *http.Client
	cache      cache.Store
	cfg        Config
	logger     *logrus.Logger
}

func NewFetcher(httpClient *http.Client, store cache.Store, cfg Config, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		cache:      store,
		cfg:        cfg,
		logger:     logger,
	}
}

// Fetch resolves the handle in profileURL and returns the normalized record.
// With useCache set, a cached payload is returned without a network call.
func (f *Fetcher) Fetch(ctx context.Context, profileURL string, useCache bool) (models.ProfileRecord, error) {
	handle, err := ExtractHandle(profileURL)
	if err != nil {
		return models.ProfileRecord{}, err
	}
	log := f.logger.WithField("handle", handle)

	if useCache {
		if rec, ok := f.fromCache(ctx, handle); ok {
			log.Info("Using cached profile data")
			return rec, nil
		}
	}

	body, status, err := f.request(ctx, handle)
	if err != nil {
		log.WithError(err).Warn("Network error during profile request")
		if rec, ok := f.fromCache(ctx, handle); ok {
			log.Info("Using cached profile data after network error")
			return rec, nil
		}
		return models.ProfileRecord{}, apperr.Unavailable(serviceName, err)
	}

	switch {
	case status == http.StatusOK:
		if !json.Valid(body) {
			log.Warn("Profile API returned invalid JSON")
			if rec, ok := f.fromCache(ctx, handle); ok {
				return rec, nil
			}
			return models.ProfileRecord{}, apperr.Upstream(serviceName, status, "response is not valid JSON")
		}
		if _, err := f.cache.Put(ctx, CacheKey(handle), json.RawMessage(body)); err != nil {
			log.WithError(err).Warn("Failed to cache profile data")
		}
		return f.normalize(handle, body), nil

	case status == http.StatusTooManyRequests:
		log.WithField("body", truncate(body)).Warn("Profile API rate limit exceeded")
		if rec, ok := f.fromCache(ctx, handle); ok {
			log.Info("Using cached profile data due to rate limit")
			return rec, nil
		}
		return models.ProfileRecord{}, apperr.RateLimited("profile API rate limit exceeded and no cache available").
			With("service", serviceName)

	default:
		log.WithFields(logrus.Fields{"status": status, "body": truncate(body)}).Warn("Profile API request failed")
		if rec, ok := f.fromCache(ctx, handle); ok {
			log.Info("Using cached profile data as fallback")
			return rec, nil
		}
		return models.ProfileRecord{}, apperr.Upstream(serviceName, status, string(body))
	}
}

func (f *Fetcher) request(ctx context.Context, handle string) ([]byte, int, error) {
	params := url.Values{}
	params.Set("username", handle)

	base := strings.TrimRight(f.cfg.BaseURL, "/")
	reqURL := base + "/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("x-rapidapi-key", f.cfg.APIKey)
	req.Header.Set("x-rapidapi-host", f.cfg.APIHost)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read profile response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (f *Fetcher) fromCache(ctx context.Context, handle string) (models.ProfileRecord, bool) {
	entry, ok, err := f.cache.Get(ctx, CacheKey(handle))
	if err != nil {
		f.logger.WithError(err).WithField("handle", handle).Warn("Failed to read profile cache")
		return models.ProfileRecord{}, false
	}
	if !ok {
		return models.ProfileRecord{}, false
	}
	return f.normalize(handle, entry.Raw), true
}

func (f *Fetcher) normalize(handle string, raw []byte) models.ProfileRecord {
	rec := Normalize(raw)
	rec.Handle = handle
	return rec
}

func truncate(body []byte) string {
	const limit = 500
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
