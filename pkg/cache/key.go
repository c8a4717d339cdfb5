package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces page entries inside a shared Redis database.
const keyPrefix = "scrape:page"

// PageKey identifies one page of one query.
type PageKey struct {
	// Endpoint is the portal URL without query string.
	Endpoint string

	// Query is the full query, page index included.
	Query url.Values
}

// String generates a deterministic key.
// Format: scrape:page:endpoint:field1=val1:field2=val2
//
// Empty values are kept so that "unfiltered" and "absent" never collide
// with a filtered query.
func (k PageKey) String() string {
	parts := []string{keyPrefix}

	endpoint := strings.TrimRight(k.Endpoint, "/")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Query) > 0 {
		names := make([]string, 0, len(k.Query))
		for name := range k.Query {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, url.QueryEscape(k.Query.Get(name))))
		}
	}

	return strings.Join(parts, ":")
}
