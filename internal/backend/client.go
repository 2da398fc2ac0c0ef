package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/resilience"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/tenant"
)

const maxBodyBytes = 4 << 20

// Config tunes the backend client.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	Backoff        time.Duration
	BreakerMin     int
	BreakerOpenFor time.Duration
	Logger         zerolog.Logger
	// Transport overrides the instrumented default; used by tests.
	Transport http.RoundTripper
}

// Client talks to the commerce REST backend. Every call takes the caller's
// session explicitly.
type Client struct {
	base     *url.URL
	http     resilience.HTTPClient
	validate *validator.Validate
	logger   zerolog.Logger
	breaker  *resilience.Breaker
}

// New builds a Client with retry, circuit breaking and tracing on the transport.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend: invalid base url %q", cfg.BaseURL)
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	logger := cfg.Logger
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Name:        "backend",
		MinRequests: cfg.BreakerMin,
		Window:      cfg.BreakerMin * 5,
		OpenFor:     cfg.BreakerOpenFor,
		Logger:      &logger,
	})
	return &Client{
		base: base,
		http: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(transport)},
			Breaker:     breaker,
			BaseBackoff: cfg.Backoff,
			MaxBackoff:  2 * time.Second,
			MaxAttempts: cfg.MaxAttempts,
			Jitter:      0.2,
			Timeout:     cfg.Timeout,
		},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   cfg.Logger,
		breaker:  breaker,
	}, nil
}

// Breaker exposes the circuit breaker for readiness reporting.
func (c *Client) Breaker() *resilience.Breaker { return c.breaker }

type request struct {
	method   string
	path     string
	query    url.Values
	body     any
	resource string
	idemKey  string
}

func (c *Client) do(ctx context.Context, sess session.Session, r request) ([]byte, error) {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(r.path, "/")
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("backend: encode %s: %w", r.resource, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("backend: build %s request: %w", r.resource, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}
	if storeID, ok := tenant.FromContext(ctx); ok {
		req.Header.Set(tenant.HeaderStoreID, storeID)
	}
	if r.idemKey != "" {
		req.Header.Set("Idempotency-Key", r.idemKey)
	}

	client := c.http
	if r.idemKey != "" {
		client.RetryUnsafe = true
	}

	start := time.Now()
	resp, err := client.Do(ctx, req)
	if err != nil {
		obs.ObserveBackend(r.resource, 0, obs.DurationMillis(time.Since(start)))
		return nil, fmt.Errorf("backend: %s: %w", r.resource, err)
	}
	defer func() { _ = resp.Body.Close() }()
	obs.ObserveBackend(r.resource, resp.StatusCode, obs.DurationMillis(time.Since(start)))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("backend: read %s: %w", r.resource, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Resource: r.resource}
		apiErr.Code, apiErr.Message = errorMessage(data)
		if apiErr.Temporary() {
			zerolog.Ctx(ctx).Warn().Str("resource", r.resource).Int("status", resp.StatusCode).Msg("backend_call_failed")
		}
		return nil, apiErr
	}
	return data, nil
}

// errorMessage extracts a message from the shapes the backend uses for errors.
func errorMessage(body []byte) (code, message string) {
	var payload struct {
		Message string          `json:"message"`
		Code    string          `json:"code"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", strings.TrimSpace(string(body))
	}
	code, message = payload.Code, payload.Message
	if len(payload.Error) > 0 {
		var nested struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err == nil {
			code = firstNonEmpty(nested.Code, code)
			message = firstNonEmpty(nested.Message, message)
		} else {
			var s string
			if json.Unmarshal(payload.Error, &s) == nil {
				message = firstNonEmpty(message, s)
			}
		}
	}
	return code, message
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func getList[T any](ctx context.Context, c *Client, sess session.Session, resource, path string, q url.Values) (Page[T], error) {
	body, err := c.do(ctx, sess, request{method: http.MethodGet, path: path, query: q, resource: resource})
	if err != nil {
		return Page[T]{}, err
	}
	page, err := decodeList[T](c.validate, body)
	if err != nil {
		return Page[T]{}, fmt.Errorf("backend: %s: %w", resource, err)
	}
	return page, nil
}

func getOne[T any](ctx context.Context, c *Client, sess session.Session, resource, path string, q url.Values) (T, error) {
	var zero T
	body, err := c.do(ctx, sess, request{method: http.MethodGet, path: path, query: q, resource: resource})
	if err != nil {
		return zero, err
	}
	out, err := decodeOne[T](c.validate, body)
	if err != nil {
		return zero, fmt.Errorf("backend: %s: %w", resource, err)
	}
	return out, nil
}

// ListParams are the common list query parameters.
type ListParams struct {
	Page    int
	PerPage int
	Search  string
	Sort    string
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", fmt.Sprint(p.Page))
	}
	if p.PerPage > 0 {
		q.Set("per_page", fmt.Sprint(p.PerPage))
	}
	if s := strings.TrimSpace(p.Search); s != "" {
		q.Set("search", s)
	}
	if s := strings.TrimSpace(p.Sort); s != "" {
		q.Set("sort", s)
	}
	return q
}
