// Package airtable is a small gateway to the Airtable REST API: paged listing,
// record create and update, and a fixed classification of HTTP outcomes.
//
// The gateway never retries. Requests are paced by a token bucket so a burst of
// parallel listings stays under the per-base request limit.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// Defaults applied by New for zero Config values.
const (
	DefaultBaseURL     = "https://api.airtable.com/v0"
	DefaultTimeout     = 30 * time.Second
	DefaultListTimeout = 60 * time.Second
	DefaultRateLimit   = 5.0
)

// Config configures a Client.
type Config struct {
	BaseURL string
	BaseID  string
	Token   string

	// Timeout bounds single-record calls; ListTimeout bounds a whole ListAll.
	Timeout     time.Duration
	ListTimeout time.Duration

	// RateLimit is requests per second. Negative disables pacing.
	RateLimit float64

	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *Metrics
}

// Client talks to one Airtable base.
type Client struct {
	baseURL     *url.URL
	baseID      string
	token       string
	timeout     time.Duration
	listTimeout time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
	metrics     *Metrics
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidConfig, cfg.BaseURL)
	}
	if cfg.BaseID == "" {
		return nil, fmt.Errorf("%w: missing base id", ErrInvalidConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ListTimeout <= 0 {
		cfg.ListTimeout = DefaultListTimeout
	}

	limit := rate.Inf
	switch {
	case cfg.RateLimit == 0:
		limit = rate.Limit(DefaultRateLimit)
	case cfg.RateLimit > 0:
		limit = rate.Limit(cfg.RateLimit)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		baseURL:     u,
		baseID:      cfg.BaseID,
		token:       cfg.Token,
		timeout:     cfg.Timeout,
		listTimeout: cfg.ListTimeout,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger,
		metrics:     cfg.Metrics,
	}, nil
}

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort orders a listing by one field.
type Sort struct {
	Field     string
	Direction Direction
}

// ListOptions narrows a listing. All fields are optional.
type ListOptions struct {
	Filter     string
	Sort       []Sort
	MaxRecords int
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Filter != "" {
		q.Set("filterByFormula", o.Filter)
	}
	for i, s := range o.Sort {
		q.Set(fmt.Sprintf("sort[%d][field]", i), s.Field)
		dir := s.Direction
		if dir == "" {
			dir = Asc
		}
		q.Set(fmt.Sprintf("sort[%d][direction]", i), string(dir))
	}
	if o.MaxRecords > 0 {
		q.Set("maxRecords", strconv.Itoa(o.MaxRecords))
	}
	return q
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

type writeRequest struct {
	Fields Fields `json:"fields"`
}

// ListAll fetches every page of table in server order. A failure on any page
// fails the whole call.
func (c *Client) ListAll(ctx context.Context, table string, opts ListOptions) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	base := opts.query()
	var records []Record
	offset := ""
	for {
		q := url.Values{}
		for k, v := range base {
			q[k] = v
		}
		if offset != "" {
			q.Set("offset", offset)
		}

		var page listResponse
		if err := c.do(ctx, table, http.MethodGet, c.endpoint(table, "", q), nil, &page); err != nil {
			return nil, err
		}
		c.metrics.incPages(table)

		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

// CreateRecord inserts one record and returns it as stored.
func (c *Client) CreateRecord(ctx context.Context, table string, fields Fields) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rec Record
	err := c.do(ctx, table, http.MethodPost, c.endpoint(table, "", nil), writeRequest{Fields: fields}, &rec)
	return rec, err
}

// UpdateRecord patches the given fields of one record and returns it as stored.
func (c *Client) UpdateRecord(ctx context.Context, table, id string, fields Fields) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("update %s: empty record id", table)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rec Record
	err := c.do(ctx, table, http.MethodPatch, c.endpoint(table, id, nil), writeRequest{Fields: fields}, &rec)
	return rec, err
}

func (c *Client) endpoint(table, id string, q url.Values) string {
	elems := []string{c.baseID, table}
	if id != "" {
		elems = append(elems, id)
	}
	u := c.baseURL.JoinPath(elems...)
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, table, method, endpoint string, body, out any) error {
	op := method + " " + table

	if err := c.limiter.Wait(ctx); err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(table, method, 0, time.Since(start).Seconds())
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.metrics.observe(table, method, resp.StatusCode, elapsed.Seconds())
	c.logger.Debug("airtable request",
		"table", table,
		"method", method,
		"status", resp.StatusCode,
		"duration", elapsed)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	return classify(op, resp.StatusCode, data, out)
}

func classify(op string, status int, data []byte, out any) error {
	switch {
	case status >= 200 && status < 300:
		if err := json.Unmarshal(data, out); err != nil {
			return &DecodeError{Op: op, Err: err}
		}
		return nil
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", op, ErrRateLimited)
	}
	return parseAPIError(status, data)
}

func parseAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: "HTTP " + strconv.Itoa(status)}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || len(envelope.Error) == 0 {
		return apiErr
	}

	var detail struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err == nil {
		apiErr.Type = detail.Type
		if detail.Message != "" {
			apiErr.Message = detail.Message
		}
		return apiErr
	}

	// Some endpoints send the error type as a bare string.
	var kind string
	if err := json.Unmarshal(envelope.Error, &kind); err == nil {
		apiErr.Type = kind
	}
	return apiErr
}
