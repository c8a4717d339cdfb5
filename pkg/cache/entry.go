package cache

import (
	"time"
)

// PageEntry is one cached portal response.
type PageEntry struct {
	// Body is the raw response body.
	Body []byte `json:"body"`

	// ContentType is the response Content-Type, kept for charset decoding.
	ContentType string `json:"content_type"`

	// StatusCode is the HTTP status of the cached response.
	StatusCode int `json:"status_code"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// FetchedAt is when the page was downloaded.
	FetchedAt time.Time `json:"fetched_at"`
}

// IsExpired returns true if the entry has expired.
func (e *PageEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *PageEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
