// Package cache is a small key/value cache for upstream payloads and generated
// text. Keys ending in ".json" hold JSON documents; any other key holds raw
// text. There is no expiry and no invalidation; the last write wins.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"roastreel/internal/apperr"
)

const jsonSuffix = ".json"

// Store is implemented by the file and Redis backends.
type Store interface {
	// Put stores value under key and returns where it was written.
	Put(ctx context.Context, key string, value any) (string, error)
	// Get returns ok == false on a miss.
	Get(ctx context.Context, key string) (entry Entry, ok bool, err error)
}

// Entry is a cached value as read back from a backend.
type Entry struct {
	Key string
	Raw []byte
}

// IsJSON reports whether the entry holds a JSON document.
func (e Entry) IsJSON() bool {
	return IsJSONKey(e.Key)
}

// Text returns the raw stored content.
func (e Entry) Text() string {
	return string(e.Raw)
}

// Decode unmarshals a JSON entry into dest.
func (e Entry) Decode(dest any) error {
	if !e.IsJSON() {
		return fmt.Errorf("cache entry %q is not a JSON document", e.Key)
	}
	if err := json.Unmarshal(e.Raw, dest); err != nil {
		return fmt.Errorf("decode cache entry %q: %w", e.Key, err)
	}
	return nil
}

// IsJSONKey reports whether key names a JSON document.
func IsJSONKey(key string) bool {
	return strings.HasSuffix(key, jsonSuffix)
}

// ValidateKey rejects keys that could escape the cache namespace: empty keys,
// the "." and ".." entries, and keys holding a path separator or NUL.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." {
		return apperr.InvalidInput(fmt.Sprintf("invalid cache key %q", key))
	}
	if strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return apperr.InvalidInput(fmt.Sprintf("cache key %q must not contain path separators", key))
	}
	return nil
}

// encode turns value into the bytes stored for key.
func encode(key string, value any) ([]byte, error) {
	if IsJSONKey(key) {
		switch v := value.(type) {
		case json.RawMessage:
			if !json.Valid(v) {
				return nil, fmt.Errorf("cache key %q: raw value is not valid JSON", key)
			}
			return v, nil
		case []byte:
			if !json.Valid(v) {
				return nil, fmt.Errorf("cache key %q: raw value is not valid JSON", key)
			}
			return v, nil
		default:
			data, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("cache key %q: marshal value: %w", key, err)
			}
			return data, nil
		}
	}

	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("cache key %q holds text, got %T (use a .json key for documents)", key, value)
	}
}
