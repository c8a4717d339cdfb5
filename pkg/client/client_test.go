package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sternrassler/county-property-scraper/internal/testutil"
	"github.com/Sternrassler/county-property-scraper/pkg/filter"
)

func newTestFetcher(t *testing.T, baseURL string) *Fetcher {
	t.Helper()

	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Timeout = 2 * time.Second

	f, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create fetcher: %v", err)
	}
	return f
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			config: DefaultConfig(),
		},
		{
			name: "missing base url",
			config: Config{
				UserAgent: DefaultUserAgent,
			},
			expectError: true,
			errorMsg:    "base url is required",
		},
		{
			name: "empty user agent",
			config: Config{
				BaseURL: DefaultBaseURL,
			},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name: "zero timeout gets default",
			config: Config{
				BaseURL:   DefaultBaseURL,
				UserAgent: DefaultUserAgent,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if f.config.Timeout != DefaultTimeout {
				t.Errorf("Timeout = %v, want %v", f.config.Timeout, DefaultTimeout)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.UserAgent == "" {
		t.Error("UserAgent should not be empty")
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.Cache != nil {
		t.Error("Cache should be nil by default")
	}
}

func TestFetch_SendsQueryAndHeader(t *testing.T) {
	mock := testutil.NewMockPortal()
	defer mock.Close()
	mock.SetPage(3, testutil.NewRowsPage(1, 2))

	f := newTestFetcher(t, mock.URL())
	filters := filter.FilterSet{PropertyType: "37", Surplus: "22"}

	doc, err := f.Fetch(context.Background(), filters, 3)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if doc.Find("table.table tbody tr").Length() != 2 {
		t.Errorf("expected 2 rows in fetched document")
	}

	q := mock.GetLastQuery()
	if q.Get(filter.FieldPropertyType) != "37" {
		t.Errorf("PrpTypeF = %q, want 37", q.Get(filter.FieldPropertyType))
	}
	if q.Get(filter.FieldSurplus) != "22" {
		t.Errorf("SurplusF = %q, want 22", q.Get(filter.FieldSurplus))
	}
	if q.Get(filter.FieldPageIndex) != "3" {
		t.Errorf("pageIndex = %q, want 3", q.Get(filter.FieldPageIndex))
	}
	if _, ok := q[filter.FieldFolio]; !ok {
		t.Error("unfiltered FolioF should still be sent")
	}

	if got := mock.GetLastRequestHeader().Get("User-Agent"); got != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", got, DefaultUserAgent)
	}
}

func TestFetch_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		response      testutil.MockPage
		expectedClass ErrorClass
		expectedCode  int
	}{
		{
			name:          "server error",
			response:      testutil.NewServerErrorResponse(),
			expectedClass: ErrorClassServer,
			expectedCode:  http.StatusInternalServerError,
		},
		{
			name:          "not found",
			response:      testutil.NewNotFoundResponse(),
			expectedClass: ErrorClassClient,
			expectedCode:  http.StatusNotFound,
		},
		{
			name:          "service unavailable",
			response:      testutil.MockPage{StatusCode: http.StatusServiceUnavailable},
			expectedClass: ErrorClassServer,
			expectedCode:  http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockPortal()
			defer mock.Close()
			mock.SetPage(1, tt.response)

			f := newTestFetcher(t, mock.URL())
			_, err := f.Fetch(context.Background(), filter.FilterSet{}, 1)

			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected *FetchError, got %T: %v", err, err)
			}
			if fetchErr.ErrorClass != tt.expectedClass {
				t.Errorf("ErrorClass = %q, want %q", fetchErr.ErrorClass, tt.expectedClass)
			}
			if fetchErr.StatusCode != tt.expectedCode {
				t.Errorf("StatusCode = %d, want %d", fetchErr.StatusCode, tt.expectedCode)
			}
			if fetchErr.Page != 1 {
				t.Errorf("Page = %d, want 1", fetchErr.Page)
			}
			if mock.GetRequestCount() != 1 {
				t.Errorf("RequestCount = %d, want 1 (no retries)", mock.GetRequestCount())
			}
		})
	}
}

func TestFetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	f := newTestFetcher(t, url)
	_, err := f.Fetch(context.Background(), filter.FilterSet{}, 1)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	if fetchErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want network", fetchErr.ErrorClass)
	}
}

func TestFetch_Timeout(t *testing.T) {
	mock := testutil.NewMockPortal()
	defer mock.Close()
	slow := testutil.NewRowsPage(1, 1)
	slow.Delay = 500 * time.Millisecond
	mock.SetPage(1, slow)

	cfg := DefaultConfig()
	cfg.BaseURL = mock.URL()
	cfg.Timeout = 50 * time.Millisecond
	f, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	_, err = f.Fetch(context.Background(), filter.FilterSet{}, 1)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	if fetchErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want network", fetchErr.ErrorClass)
	}
}

func TestFetch_InvalidPage(t *testing.T) {
	f := newTestFetcher(t, "http://127.0.0.1:1")

	_, err := f.Fetch(context.Background(), filter.FilterSet{}, 0)
	if !errors.Is(err, ErrInvalidPage) {
		t.Errorf("err = %v, want ErrInvalidPage", err)
	}
}

func TestFetch_DecodesDeclaredCharset(t *testing.T) {
	mock := testutil.NewMockPortal()
	defer mock.Close()

	// "Café" in ISO-8859-1.
	body := "<table class=\"table\"><thead><tr><th>Name</th></tr></thead><tbody><tr><td>Caf\xe9</td></tr></tbody></table>"
	mock.SetPage(1, testutil.MockPage{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "text/html; charset=iso-8859-1"},
	})

	f := newTestFetcher(t, mock.URL())
	doc, err := f.Fetch(context.Background(), filter.FilterSet{}, 1)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if got := doc.Find("td").Text(); got != "Café" {
		t.Errorf("cell text = %q, want %q", got, "Café")
	}
}

func TestFetch_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockPortal()
	defer mock.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newTestFetcher(t, mock.URL())
	_, err := f.Fetch(ctx, filter.FilterSet{}, 1)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want wrapped context.Canceled", err)
	}
}
