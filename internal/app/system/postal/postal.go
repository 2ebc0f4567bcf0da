// internal/app/system/postal/postal.go
//
// Package postal looks up Japanese postal codes against the zipcloud search
// API and turns the answer into the prefecture and municipality fields of a
// member address.
package postal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/stratamembers/internal/app/system/address"
	"github.com/dalemusser/stratamembers/internal/app/system/metrics"
	"github.com/dalemusser/stratamembers/internal/app/system/normalize"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public zipcloud endpoint.
const DefaultBaseURL = "https://zipcloud.ibsnet.co.jp"

var (
	// ErrInvalidCode is returned for input that is not a 7 digit postal code.
	ErrInvalidCode = errors.New("postal code must be 7 digits")
	// ErrNotFound is returned when the service knows no address for the code.
	ErrNotFound = errors.New("postal code not found")
)

// NormalizeCode strips hyphens and spaces (full- or half-width) and reports
// whether the remainder is exactly seven digits.
func NormalizeCode(s string) (string, bool) {
	half := address.ToHalfWidth(s)
	for _, r := range half {
		if r != '-' && r != ' ' && (r < '0' || r > '9') {
			return "", false
		}
	}
	code := normalize.PostalCode(half)
	return code, len(code) == 7
}

// Result is one resolved postal code.
type Result struct {
	PostalCode   string `json:"postal_code"`
	Prefecture   string `json:"prefecture"`
	Municipality string `json:"municipality"` // city, ward and town area
}

// Split runs the municipality through s. Municipality strings from the
// service normally come back Unchanged because they carry no street number.
func (r Result) Split(s *address.Splitter) address.Result {
	if s == nil {
		return address.SplitAddress(r.Municipality)
	}
	return s.Split(r.Municipality)
}

// Cache stores lookups between requests. Get reports ok=false on a miss.
type Cache interface {
	Get(ctx context.Context, code string) (res *Result, ok bool, err error)
	Set(ctx context.Context, code string, res *Result) error
}

// Client queries the postal code service.
type Client struct {
	baseURL string
	http    *http.Client
	cache   Cache
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithCache consults c before calling the service and fills it afterwards.
func WithCache(c Cache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithMetrics records lookup outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(cl *Client) { cl.http = h }
}

// New creates a Client. An empty baseURL means DefaultBaseURL.
func New(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type apiResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Results []struct {
		Address1 string `json:"address1"`
		Address2 string `json:"address2"`
		Address3 string `json:"address3"`
		Zipcode  string `json:"zipcode"`
	} `json:"results"`
}

// Lookup resolves a postal code. Cache failures are logged and otherwise
// ignored.
func (c *Client) Lookup(ctx context.Context, raw string) (*Result, error) {
	code, ok := NormalizeCode(raw)
	if !ok {
		return nil, ErrInvalidCode
	}

	if c.cache != nil {
		res, hit, err := c.cache.Get(ctx, code)
		switch {
		case err != nil:
			c.logger.Warn("postal cache read failed", zap.String("code", code), zap.Error(err))
		case hit:
			c.metrics.IncPostalLookup("hit")
			return res, nil
		}
	}

	start := time.Now()
	res, err := c.fetch(ctx, code)
	c.metrics.ObservePostalLatency(time.Since(start))
	switch {
	case errors.Is(err, ErrNotFound):
		c.metrics.IncPostalLookup("not_found")
		return nil, err
	case err != nil:
		c.metrics.IncPostalLookup("error")
		return nil, err
	}
	c.metrics.IncPostalLookup("miss")

	if c.cache != nil {
		if err := c.cache.Set(ctx, code, res); err != nil {
			c.logger.Warn("postal cache write failed", zap.String("code", code), zap.Error(err))
		}
	}
	return res, nil
}

func (c *Client) fetch(ctx context.Context, code string) (*Result, error) {
	u := c.baseURL + "/api/search?" + url.Values{"zipcode": {code}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build postal request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("postal lookup %s: %w", code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("postal lookup %s: unexpected HTTP status %d", code, resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode postal response: %w", err)
	}
	// zipcloud reports request errors in the body with a 200 response.
	if body.Status != 0 && body.Status != http.StatusOK {
		return nil, fmt.Errorf("postal lookup %s: service status %d: %s", code, body.Status, body.Message)
	}
	if len(body.Results) == 0 {
		return nil, ErrNotFound
	}

	first := body.Results[0]
	return &Result{
		PostalCode:   code,
		Prefecture:   first.Address1,
		Municipality: first.Address2 + first.Address3,
	}, nil
}
