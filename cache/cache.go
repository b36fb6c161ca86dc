package cache

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ETag returns a strong entity tag for body.
func ETag(body []byte) string {
	return `"` + generateHash(body) + `"`
}

// generateHash generates an xxHash hash for the given bytes
func generateHash(b []byte) string {
	hash := xxhash.Sum64(b)
	return fmt.Sprintf("%016x", hash)
}

// matches reports whether an If-None-Match header value names etag.
// Weak validators compare equal to their strong form.
func matches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
