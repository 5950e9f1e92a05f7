package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned before any request when the client has no public API key.
var ErrMissingAPIKey = errors.New("supabase: no API key configured")

// APIError is a non-2xx response from the hosted backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: %d: %s", e.Status, e.Message)
}

// Client talks to the hosted backend's REST (PostgREST) and auth (GoTrue) endpoints.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// Option configures the Client during construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// New constructs a Client for the project at baseURL.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the project endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type accessTokenKey struct{}

// WithAccessToken attaches a user access token to ctx; requests made with the
// returned context run under that user's row-level policies.
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFrom returns the token attached by WithAccessToken, if any.
func AccessTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}

// Filter is one PostgREST column filter, for example club_id=eq.c1.
type Filter struct {
	Column string
	Op     string
	Value  string
}

// Eq matches rows whose column equals value.
func Eq(column, value string) Filter {
	return Filter{Column: column, Op: "eq", Value: value}
}

var (
	likeEscaper  = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// ILike matches rows whose column contains value, case-insensitively. LIKE
// wildcards in value match literally. PostgREST always reads * as a wildcard.
func ILike(column, value string) Filter {
	return Filter{Column: column, Op: "ilike", Value: "*" + likeEscaper.Replace(value) + "*"}
}

// AnyOf matches rows satisfying at least one of filters.
func AnyOf(filters ...Filter) Filter {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		parts = append(parts, f.Column+"."+f.Op+"."+quoteValue(f.Value))
	}
	return Filter{Column: "or", Value: "(" + strings.Join(parts, ",") + ")"}
}

// quoteValue double-quotes values that contain characters reserved by the
// logical operator grammar.
func quoteValue(v string) string {
	if !strings.ContainsAny(v, `,.:()"\ `) {
		return v
	}
	return `"` + quoteEscaper.Replace(v) + `"`
}

// Query describes a select.
type Query struct {
	Columns    string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

func (q Query) values() url.Values {
	values := url.Values{}
	columns := q.Columns
	if columns == "" {
		columns = "*"
	}
	values.Set("select", columns)
	applyFilters(values, q.Filters)
	if q.OrderBy != "" {
		direction := "asc"
		if q.Descending {
			direction = "desc"
		}
		values.Set("order", q.OrderBy+"."+direction)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	return values
}

func applyFilters(values url.Values, filters []Filter) {
	for _, f := range filters {
		if f.Op == "" {
			values.Add(f.Column, f.Value)
			continue
		}
		values.Add(f.Column, f.Op+"."+f.Value)
	}
}

// Select decodes the matching rows of table into dst, which must be a pointer to a slice.
func (c *Client) Select(ctx context.Context, table string, q Query, dst any) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/rest/v1/"+table, q.values(), nil)
	if err != nil {
		return err
	}
	_, err = c.do(req, dst)
	return err
}

// Insert adds one row to table. A row whose primary key already exists is ignored.
func (c *Client) Insert(ctx context.Context, table string, row any) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/"+table, nil, row)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal,resolution=ignore-duplicates")
	_, err = c.do(req, nil)
	return err
}

// Update patches the rows of table matching filters.
func (c *Client) Update(ctx context.Context, table string, filters []Filter, patch any) error {
	values := url.Values{}
	applyFilters(values, filters)
	req, err := c.newRequest(ctx, http.MethodPatch, "/rest/v1/"+table, values, patch)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	_, err = c.do(req, nil)
	return err
}

// Count returns the number of rows of table matching filters.
func (c *Client) Count(ctx context.Context, table string, filters []Filter) (int, error) {
	values := url.Values{}
	values.Set("select", "id")
	applyFilters(values, filters)
	req, err := c.newRequest(ctx, http.MethodHead, "/rest/v1/"+table, values, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")
	req.Header.Set("Range", "0-0")

	resp, err := c.do(req, nil)
	if err != nil {
		return 0, err
	}
	return parseContentRangeTotal(resp.Header.Get("Content-Range"))
}

// Auth calls a GoTrue endpoint under /auth/v1.
func (c *Client) Auth(ctx context.Context, method, path string, query url.Values, body, dst any) error {
	req, err := c.newRequest(ctx, method, "/auth/v1"+path, query, body)
	if err != nil {
		return err
	}
	_, err = c.do(req, dst)
	return err
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("supabase: encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("supabase: create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	bearer := AccessTokenFrom(ctx)
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	return req, nil
}

func (c *Client) do(req *http.Request, dst any) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, decodeAPIError(resp)
	}

	if dst == nil || resp.StatusCode == http.StatusNoContent || req.Method == http.MethodHead {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return resp, fmt.Errorf("supabase: decode %s response: %w", req.URL.Path, err)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Code             any    `json:"code"`
		ErrorCode        string `json:"error_code"`
		Error            string `json:"error"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	switch code := payload.Code.(type) {
	case string:
		apiErr.Code = code
	}
	if payload.ErrorCode != "" {
		apiErr.Code = payload.ErrorCode
	}
	if apiErr.Code == "" {
		apiErr.Code = payload.Error
	}

	for _, msg := range []string{payload.Message, payload.Msg, payload.ErrorDescription, payload.Error} {
		if msg != "" {
			apiErr.Message = msg
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// parseContentRangeTotal reads the total from a header such as "0-0/42" or "*/0".
func parseContentRangeTotal(header string) (int, error) {
	_, total, found := strings.Cut(header, "/")
	if !found || total == "*" {
		return 0, fmt.Errorf("supabase: missing count in content-range %q", header)
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("supabase: invalid content-range %q: %w", header, err)
	}
	return n, nil
}
