package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"continuity.org/internal/identity"
	"continuity.org/internal/obs"
)

var (
	// ErrUnavailable means the backend could not be reached within the retry budget.
	ErrUnavailable = errors.New("backend: unavailable")
	// ErrInvalidToken means the backend rejected the caller's token.
	ErrInvalidToken = errors.New("backend: invalid token")
	// ErrNotFound means a single-row read matched nothing.
	ErrNotFound = errors.New("backend: not found")
	// ErrConflict means a write violated a uniqueness constraint.
	ErrConflict = errors.New("backend: conflict")
	// ErrRejected covers every other 4xx response.
	ErrRejected = errors.New("backend: request rejected")
)

const (
	defaultRetries = 3
	defaultDelay   = 500 * time.Millisecond
	maxErrorBody   = 4 << 10
)

// Client talks to the hosted backend's REST and RPC gateway.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	retries int
	delay   time.Duration
	logger  *zap.Logger
}

// Option configures the Client.
type Option func(*Client) error

// WithHTTPClient overrides the transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) error {
		if h == nil {
			return errors.New("http client is nil")
		}
		c.http = h
		return nil
	}
}

// WithRetry sets the number of retries after the first attempt and the fixed
// delay between attempts.
func WithRetry(retries int, delay time.Duration) Option {
	return func(c *Client) error {
		if retries < 0 || delay < 0 {
			return errors.New("retry budget must be non-negative")
		}
		c.retries = retries
		c.delay = delay
		return nil
	}
}

// WithLogger overrides the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		c.logger = l
		return nil
	}
}

// New constructs a Client for baseURL authenticated with the project apiKey.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("backend api key is required")
	}
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		retries: defaultRetries,
		delay:   defaultDelay,
		logger:  obs.Logger(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Query narrows a relation read or write.
type Query struct {
	// Select is the column list, "*" when empty.
	Select string
	// Eq holds column equality filters.
	Eq map[string]string
	// Order is a column name, optionally suffixed ".desc".
	Order string
	// Single expects exactly one row; zero rows yield ErrNotFound.
	Single bool
}

func (q Query) values() url.Values {
	v := url.Values{}
	sel := q.Select
	if sel == "" {
		sel = "*"
	}
	v.Set("select", sel)
	for col, val := range q.Eq {
		v.Set(col, "eq."+val)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	return v
}

// Select reads rows of table into dst (a slice pointer, or a struct pointer when q.Single).
func (c *Client) Select(ctx context.Context, table string, q Query, dst any) error {
	body, err := c.do(ctx, "select "+table, http.MethodGet, "/rest/v1/"+table, q.values(), nil, nil)
	if err != nil {
		return err
	}
	return decodeRows(body, q.Single, dst)
}

// Insert adds row to table and decodes the stored representation into dst when non-nil.
func (c *Client) Insert(ctx context.Context, table string, row, dst any) error {
	return c.write(ctx, "insert "+table, http.MethodPost, table, nil, row, "return=representation", dst)
}

// Upsert inserts or merges row on its primary key.
func (c *Client) Upsert(ctx context.Context, table string, row, dst any) error {
	return c.write(ctx, "upsert "+table, http.MethodPost, table, nil, row, "resolution=merge-duplicates,return=representation", dst)
}

// Update patches rows matching eq.
func (c *Client) Update(ctx context.Context, table string, eq map[string]string, patch, dst any) error {
	return c.write(ctx, "update "+table, http.MethodPatch, table, eq, patch, "return=representation", dst)
}

// Delete removes rows matching eq. At least one filter is required.
func (c *Client) Delete(ctx context.Context, table string, eq map[string]string) error {
	if len(eq) == 0 {
		return fmt.Errorf("%w: delete on %s without filter", ErrRejected, table)
	}
	q := Query{Eq: eq}
	v := q.values()
	v.Del("select")
	_, err := c.do(ctx, "delete "+table, http.MethodDelete, "/rest/v1/"+table, v, nil, nil)
	return err
}

// RPC invokes a named stored procedure and returns its payload verbatim.
func (c *Client) RPC(ctx context.Context, fn string, args any) (json.RawMessage, error) {
	if args == nil {
		args = map[string]any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", fn, err)
	}
	body, err := c.do(ctx, "rpc "+fn, http.MethodPost, "/rest/v1/rpc/"+fn, nil, payload, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (c *Client) write(ctx context.Context, op, method, table string, eq map[string]string, row any, prefer string, dst any) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}
	var v url.Values
	if len(eq) > 0 {
		v = Query{Eq: eq}.values()
		v.Del("select")
	}
	body, err := c.do(ctx, op, method, "/rest/v1/"+table, v, payload, http.Header{"Prefer": {prefer}})
	if err != nil {
		return err
	}
	if dst == nil {
		return nil
	}
	return decodeRows(body, true, dst)
}

// do issues the request, retrying transport failures and 5xx responses with a
// fixed delay. The caller's session token is forwarded when present.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload []byte, header http.Header) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			obs.ObserveBackendRetry(op)
			c.logger.Debug("retrying backend call", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(lastErr))
			if err := sleep(ctx, c.delay); err != nil {
				return nil, err
			}
		}
		body, status, err := c.once(ctx, method, target, payload, header)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if status >= 500 {
			lastErr = fmt.Errorf("status %d: %s", status, errorMessage(body))
			continue
		}
		if err := statusError(op, status, body); err != nil {
			return nil, err
		}
		return body, nil
	}
	c.logger.Warn("backend call failed", zap.String("op", op), zap.Int("attempts", c.retries+1), zap.Error(lastErr))
	return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, op, lastErr)
}

func (c *Client) once(ctx context.Context, method, target string, payload []byte, header http.Header) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, 0, err
	}
	c.authorize(ctx, req)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return data, resp.StatusCode, nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	token := c.apiKey
	if s, ok := identity.SessionFromContext(ctx); ok && s.AccessToken != "" {
		token = s.AccessToken
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

func statusError(op string, status int, body []byte) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrInvalidToken, op)
	case status == http.StatusNotFound || status == http.StatusNotAcceptable:
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	case status == http.StatusConflict:
		return fmt.Errorf("%w: %s: %s", ErrConflict, op, errorMessage(body))
	default:
		return fmt.Errorf("%w: %s: status %d: %s", ErrRejected, op, status, errorMessage(body))
	}
}

func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
		Error   string `json:"error_description"`
	}
	if json.Unmarshal(body, &e) == nil {
		for _, m := range []string{e.Message, e.Msg, e.Error} {
			if m != "" {
				return m
			}
		}
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}

func decodeRows(body []byte, single bool, dst any) error {
	if !single {
		if err := json.Unmarshal(body, dst); err != nil {
			return fmt.Errorf("decode rows: %w", err)
		}
		return nil
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return json.Unmarshal(trimmed, dst)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return json.Unmarshal(rows[0], dst)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
