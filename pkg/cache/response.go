package cache

import (
	"net/http"
	"time"
)

// DefaultTTL is how long a page stays cached when the portal sends no
// usable Expires header.
const DefaultTTL = 1 * time.Hour

// EntryFromResponse builds a cache entry from a fetched page.
// Returns nil for non-2xx responses, which must never be cached.
func EntryFromResponse(statusCode int, header http.Header, body []byte, defaultTTL time.Duration) *PageEntry {
	if statusCode < 200 || statusCode > 299 {
		return nil
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	now := time.Now()
	stored := make([]byte, len(body))
	copy(stored, body)

	return &PageEntry{
		Body:        stored,
		ContentType: header.Get("Content-Type"),
		StatusCode:  statusCode,
		Expires:     parseExpires(header, now, defaultTTL),
		FetchedAt:   now,
	}
}

// parseExpires honors a future Expires header and otherwise uses defaultTTL.
func parseExpires(header http.Header, now time.Time, defaultTTL time.Duration) time.Time {
	expiresStr := header.Get("Expires")
	if expiresStr == "" {
		return now.Add(defaultTTL)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil || !expires.After(now) {
		// Portal pages are often sent with "Expires: -1"; cache them anyway.
		return now.Add(defaultTTL)
	}

	return expires
}
