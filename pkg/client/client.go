// Package client fetches result pages from the county property portal.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/Sternrassler/county-property-scraper/pkg/cache"
	"github.com/Sternrassler/county-property-scraper/pkg/filter"
	"github.com/Sternrassler/county-property-scraper/pkg/logging"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
)

// Prometheus metrics for portal requests.
var (
	scrapeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_requests_total",
		Help: "Total portal page requests by status",
	}, []string{"status"})

	scrapeRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scrape_request_duration_seconds",
		Help:    "Portal page request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	scrapeFetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_fetch_errors_total",
		Help: "Total page fetch failures by class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the county-owned properties search endpoint.
	DefaultBaseURL = "https://wwwx.miamidade.gov/apps/ISD/RealEstate_Portal/CountyOwnedProperties"

	// DefaultUserAgent identifies requests the way a desktop browser would;
	// the portal rejects bare library agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// DefaultTimeout bounds a single page request.
	DefaultTimeout = 30 * time.Second
)

// Config holds the fetcher configuration.
type Config struct {
	// BaseURL is the portal search endpoint (REQUIRED)
	BaseURL string

	// UserAgent header sent with every request (REQUIRED)
	UserAgent string

	// Timeout per request
	Timeout time.Duration

	// Cache is an optional Redis page cache
	Cache *cache.Manager
}

// DefaultConfig returns the configuration for the live portal.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: DefaultUserAgent,
		Timeout:   DefaultTimeout,
	}
}

// Page is a fetched portal response body.
type Page struct {
	Index       int
	Body        []byte
	ContentType string
	StatusCode  int
	Cached      bool
}

// Fetcher issues one request per page. It never retries; what to do after a
// failure is the pagination engine's decision.
type Fetcher struct {
	http   *resty.Client
	cache  *cache.Manager
	config Config
	logger zerolog.Logger
}

// New creates a fetcher. The underlying session (connections and cookies) is
// reused by every request made through it.
func New(cfg Config) (*Fetcher, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	httpClient := resty.New()
	httpClient.SetCookieJar(jar)
	httpClient.SetTimeout(cfg.Timeout)
	httpClient.SetHeader("User-Agent", cfg.UserAgent)
	httpClient.SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	httpClient.SetRetryCount(0)

	return &Fetcher{
		http:   httpClient,
		cache:  cfg.Cache,
		config: cfg,
		logger: logging.NewLogger("client"),
	}, nil
}

// Fetch downloads one page and parses it as HTML. Every failure is returned
// as a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, filters filter.FilterSet, page int) (*goquery.Document, error) {
	p, err := f.FetchBody(ctx, filters, page)
	if err != nil {
		return nil, err
	}

	reader, err := charset.NewReader(bytes.NewReader(p.Body), p.ContentType)
	if err != nil {
		return nil, f.fail(&FetchError{
			Page:       page,
			StatusCode: p.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "unsupported charset",
			Err:        err,
		})
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, f.fail(&FetchError{
			Page:       page,
			StatusCode: p.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "parse html",
			Err:        err,
		})
	}

	return doc, nil
}

// FetchBody downloads one page without parsing it, consulting the page cache
// first when one is configured.
func (f *Fetcher) FetchBody(ctx context.Context, filters filter.FilterSet, page int) (*Page, error) {
	if page < 1 {
		return nil, &FetchError{Page: page, ErrorClass: ErrorClassClient, Message: "invalid page", Err: ErrInvalidPage}
	}

	query := filters.Query(page)
	key := cache.PageKey{Endpoint: f.config.BaseURL, Query: query}

	if f.cache != nil {
		entry, err := f.cache.Get(ctx, key)
		switch {
		case err == nil:
			f.logger.Debug().Int("page", page).Str("filters", filters.String()).Msg("Page served from cache")
			return &Page{
				Index:       page,
				Body:        entry.Body,
				ContentType: entry.ContentType,
				StatusCode:  entry.StatusCode,
				Cached:      true,
			}, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			f.logger.Warn().Err(err).Int("page", page).Msg("Cache get error")
		}
	}

	f.logger.Debug().
		Int("page", page).
		Str("filters", filters.String()).
		Msg("Requesting portal page")

	start := time.Now()
	res, err := f.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		Get(f.config.BaseURL)
	scrapeRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		scrapeRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, f.fail(&FetchError{
			Page:       page,
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		})
	}

	status := res.StatusCode()
	scrapeRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()

	if !res.IsSuccess() {
		return nil, f.fail(&FetchError{
			Page:       page,
			StatusCode: status,
			ErrorClass: classifyStatus(status),
			Message:    res.Status(),
		})
	}

	p := &Page{
		Index:       page,
		Body:        res.Body(),
		ContentType: res.Header().Get("Content-Type"),
		StatusCode:  status,
	}

	if f.cache != nil {
		if entry := cache.EntryFromResponse(status, res.Header(), p.Body, f.cache.TTL()); entry != nil {
			if err := f.cache.Set(ctx, key, entry); err != nil {
				f.logger.Warn().Err(err).Int("page", page).Msg("Failed to cache page")
			}
		}
	}

	return p, nil
}

// fail records and logs a fetch failure.
func (f *Fetcher) fail(err *FetchError) *FetchError {
	scrapeFetchErrorsTotal.WithLabelValues(string(err.ErrorClass)).Inc()
	f.logger.Warn().
		Int("page", err.Page).
		Int("status_code", err.StatusCode).
		Str("error_class", string(err.ErrorClass)).
		Err(err.Err).
		Msg(err.Message)
	return err
}

// BaseURL returns the configured endpoint.
func (f *Fetcher) BaseURL() string {
	return f.config.BaseURL
}

// UserAgent returns the identifying header value.
func (f *Fetcher) UserAgent() string {
	return f.config.UserAgent
}
