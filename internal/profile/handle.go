package profile

import (
	"fmt"
	"strings"

	"roastreel/internal/apperr"
)

const handleMarker = "/in/"

// ExtractHandle returns the path segment after "/in/", up to the next "/",
// "?" or "#" or the end of the URL. Query strings and fragments are never
// part of the handle, so "/in/jane?trk=x" yields "jane".
func ExtractHandle(profileURL string) (string, error) {
	idx := strings.Index(profileURL, handleMarker)
	if idx < 0 {
		return "", apperr.InvalidInput(fmt.Sprintf("invalid profile URL format: %q", profileURL))
	}

	rest := profileURL[idx+len(handleMarker):]
	if end := strings.IndexAny(rest, "/?#"); end >= 0 {
		rest = rest[:end]
	}
	if rest == "" {
		return "", apperr.InvalidInput(fmt.Sprintf("profile URL has an empty handle: %q", profileURL))
	}
	return rest, nil
}

// CacheKey is the cache entry holding the raw profile payload for handle.
func CacheKey(handle string) string {
	return handle + "_profile.json"
}
