// Package arcgis queries parcel features from an ArcGIS REST layer endpoint
// with rate limiting, per-attempt timeouts, and exponential-backoff retries.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/crescent-outreach/intake-cli/internal/resilience"
)

// OutFields is the attribute list requested from the parcels layer.
var OutFields = []string{
	"OBJECTID",
	"SITUS_ADDRESS",
	"OWNER_NAME_1",
	"OWNER_NAME_2",
	"TAX_BILL_NUMBER",
	"PROPERTY_CLASS",
	"LAND_VALUE",
	"BUILDING_VALUE",
	"TOTAL_VALUE",
	"FRONTAGE",
	"DEPTH",
	"AREA_SQFT",
}

// Options configures the layer client.
type Options struct {
	BaseURL        string        // layer endpoint, e.g. ".../MapServer/0"
	MaxRetries     int           // attempts per range (including the first); default 5
	AttemptTimeout time.Duration // per-attempt ceiling; default 120s
	RatePerSecond  float64       // request rate toward the GIS host; default 2
	BackoffBase    time.Duration // first retry wait; default 1s
	BackoffMax     time.Duration // backoff cap; default 60s
	HTTPClient     *http.Client  // optional override, used in tests
}

// Client fetches parcel features by OBJECTID range. The upstream serializes
// requests regardless of client concurrency, so a single client with a modest
// rate limit is all the parallelism worth having.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	timeout time.Duration
}

// NewClient creates a layer client with the given options.
func NewClient(opts Options) *Client {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 120 * time.Second
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 2
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 60 * time.Second
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1),
		timeout: opts.AttemptTimeout,
		retry: resilience.RetryConfig{
			MaxAttempts:    opts.MaxRetries,
			InitialBackoff: opts.BackoffBase,
			MaxBackoff:     opts.BackoffMax,
			Multiplier:     2.0,
			// Attempt failures go through resilience.IsTransient; FetchRange
			// marks every upstream failure mode transient, so a range is
			// retried up to the cap and the caller decides what a
			// permanently failed range means.
			OnRetry: resilience.RetryLogger("arcgis", "fetch_range"),
		},
	}
}

// FetchRange returns all features whose OBJECTID falls in [start, end).
// An empty result is valid: the identifier space is not densely assigned.
// After MaxRetries failed attempts the last error is returned.
func (c *Client) FetchRange(ctx context.Context, start, end int64) ([]Feature, error) {
	queryURL := c.queryURL(start, end)

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]Feature, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "arcgis: rate limiter wait")
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, queryURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "arcgis: create request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			// Transport failures (attempt timeout, reset, DNS) are retryable.
			return nil, resilience.NewTransientError(
				eris.Wrapf(err, "arcgis: query [%d,%d)", start, end), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, resilience.NewTransientError(
				eris.Errorf("arcgis: query [%d,%d): status %d", start, end, resp.StatusCode),
				resp.StatusCode,
			)
		}

		var decoded queryResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			// Truncated or non-JSON bodies show up when the layer is
			// overloaded; a fresh attempt usually reads clean.
			return nil, resilience.NewTransientError(
				eris.Wrapf(err, "arcgis: decode response for [%d,%d)", start, end), 0)
		}

		// ArcGIS reports failures (layer busy, bad request, internal) inside
		// an HTTP 200 body; such a response is not parsed further.
		if decoded.Error != nil {
			return nil, resilience.NewTransientError(
				eris.Wrapf(decoded.Error, "arcgis: query [%d,%d)", start, end), decoded.Error.Code)
		}

		return decoded.Features, nil
	})
}

// queryURL builds the layer query URL for an OBJECTID range.
func (c *Client) queryURL(start, end int64) string {
	params := url.Values{}
	params.Set("where", fmt.Sprintf("OBJECTID >= %d AND OBJECTID < %d", start, end))
	params.Set("outFields", strings.Join(OutFields, ","))
	params.Set("returnGeometry", "true")
	params.Set("outSR", "4326")
	params.Set("f", "json")
	return c.baseURL + "/query?" + params.Encode()
}
