// Package shopify talks to the Shopify Admin API. Every call carries its own
// deadline and every failure is returned as an *apperr.Error.
package shopify

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

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/onronder/p-958660-sub000/infrastructure/circuitbreaker"
	infralogger "github.com/onronder/p-958660-sub000/infrastructure/logger"
	"github.com/onronder/p-958660-sub000/internal/apperr"
)

const (
	DefaultAPIVersion = "2023-10"
	accessTokenHeader = "X-Shopify-Access-Token"
	defaultTimeout    = 30 * time.Second

	opGraphQL = "graphql"
	opREST    = "rest"
)

// Config configures a Client.
type Config struct {
	// BaseURL replaces https://{shop}.myshopify.com when set.
	BaseURL         string
	APIVersion      string
	RateLimit       float64
	RateBurst       int
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// Observer receives the duration and outcome of every upstream call.
type Observer func(operation, outcome string, elapsed time.Duration)

// Option customises a Client.
type Option func(*Client)

// WithObserver installs o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observe = o }
}

// Client is safe for concurrent use.
type Client struct {
	http     *http.Client
	baseURL  string
	version  string
	limiter  *rate.Limiter
	breakers *circuitbreaker.Group
	observe  Observer
	log      infralogger.Logger
}

// NewClient builds a Client on top of httpClient.
func NewClient(cfg Config, httpClient *http.Client, log infralogger.Logger, opts ...Option) *Client {
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := max(cfg.RateBurst, 1)

	c := &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		version: version,
		limiter: rate.NewLimiter(limit, burst),
		observe: func(string, string, time.Duration) {},
		log:     log,
	}
	c.breakers = circuitbreaker.NewGroup(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailures,
		Timeout:          cfg.BreakerTimeout,
		IsFailure:        apperr.IsRetryable,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			log.Warn("Upstream circuit changed state",
				infralogger.String("shop", name),
				infralogger.String("from", from.String()),
				infralogger.String("to", to.String()),
			)
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request is one GraphQL call.
type Request struct {
	ShopName    string
	AccessToken string
	Query       string
	Variables   map[string]any
	APIVersion  string
	Timeout     time.Duration
}

// Response holds the raw data member of a successful answer. The bytes keep
// Shopify's key order.
type Response struct {
	Data json.RawMessage
}

// Execute runs one GraphQL request.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	payload, err := json.Marshal(map[string]any{"query": req.Query, "variables": req.Variables})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeAPIRequestError, "Failed to encode GraphQL request", err)
	}
	endpoint := c.endpoint(req.ShopName, req.APIVersion, "graphql.json")

	body, err := c.do(ctx, opGraphQL, req.ShopName, req.Timeout, func(callCtx context.Context) (*http.Request, error) {
		httpReq, reqErr := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if reqErr != nil {
			return nil, reqErr
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set(accessTokenHeader, req.AccessToken)
		return httpReq, nil
	})
	if err != nil {
		return nil, err
	}

	if errs := gjson.GetBytes(body, "errors"); errs.IsArray() && len(errs.Array()) > 0 {
		return nil, apperr.New(apperr.CodeShopifyAPIError, "GraphQL errors from Shopify API").
			WithStatus(http.StatusBadRequest).
			WithDetails(errs.Value())
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() || data.Type == gjson.Null {
		return nil, apperr.New(apperr.CodeEmptyResponse, "Shopify API returned no data")
	}
	return &Response{Data: json.RawMessage(data.Raw)}, nil
}

// TestConnection runs the smallest authenticated query and returns the shop name.
func (c *Client) TestConnection(ctx context.Context, shop, token, version string, timeout time.Duration) (string, error) {
	resp, err := c.Execute(ctx, Request{
		ShopName:    shop,
		AccessToken: token,
		Query:       "{ shop { name } }",
		APIVersion:  version,
		Timeout:     timeout,
	})
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(resp.Data, "shop.name").String(), nil
}

// RESTRequest is one REST Admin read such as GET orders.json?limit=5.
type RESTRequest struct {
	ShopName    string
	AccessToken string
	Resource    string
	Limit       int
	APIVersion  string
	Timeout     time.Duration
}

// Get runs a REST Admin read and returns the body untouched.
func (c *Client) Get(ctx context.Context, req RESTRequest) (json.RawMessage, error) {
	resource := strings.Trim(req.Resource, "/ ")
	if resource == "" {
		return nil, apperr.New(apperr.CodeInvalidRequest, "Resource is required")
	}
	endpoint := c.endpoint(req.ShopName, req.APIVersion, strings.TrimSuffix(resource, ".json")+".json")
	if req.Limit > 0 {
		endpoint += "?" + url.Values{"limit": {strconv.Itoa(req.Limit)}}.Encode()
	}

	body, err := c.do(ctx, opREST, req.ShopName, req.Timeout, func(callCtx context.Context) (*http.Request, error) {
		httpReq, reqErr := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, http.NoBody)
		if reqErr != nil {
			return nil, reqErr
		}
		httpReq.Header.Set("Accept", "application/json")
		httpReq.Header.Set(accessTokenHeader, req.AccessToken)
		return httpReq, nil
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// do sends one request under a derived deadline, the rate limiter and the
// shop's breaker, and returns a 2xx JSON body.
func (c *Client) do(
	ctx context.Context,
	operation, shop string,
	timeout time.Duration,
	build func(context.Context) (*http.Request, error),
) ([]byte, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	start := time.Now()

	var body []byte
	err := c.breakers.Get(ShopDomain(shop)).Execute(func() error {
		var callErr error
		body, callErr = c.send(ctx, timeout, build)
		return callErr
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		err = apperr.Wrap(apperr.CodeAPIRequestError, "Shopify API temporarily unavailable for this shop", err).
			WithStatus(http.StatusServiceUnavailable)
	}

	outcome := "success"
	if err != nil {
		outcome = string(apperr.CodeOf(err))
	}
	elapsed := time.Since(start)
	c.observe(operation, outcome, elapsed)
	c.log.Debug("Shopify request finished",
		infralogger.String("operation", operation),
		infralogger.String("shop", ShopDomain(shop)),
		infralogger.String("outcome", outcome),
		infralogger.Duration("elapsed", elapsed),
	)
	return body, err
}

func (c *Client) send(ctx context.Context, timeout time.Duration, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timedOut := func(err error) error {
		return apperr.Wrap(apperr.CodeTimeout,
			fmt.Sprintf("Request timed out after %dms", timeout.Milliseconds()), err)
	}
	fail := func(msg string, err error) error {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return timedOut(err)
		}
		return apperr.Wrap(apperr.CodeAPIRequestError, msg, err)
	}

	// Burst is at least 1, so with ctx still live Wait only fails when the
	// reservation cannot be met before callCtx's deadline.
	if err := c.limiter.Wait(callCtx); err != nil {
		if ctx.Err() == nil {
			return nil, timedOut(err)
		}
		return nil, apperr.Wrap(apperr.CodeAPIRequestError, "Rate limiter rejected request", err)
	}
	httpReq, err := build(callCtx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeAPIRequestError, "Failed to build request", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fail("Failed to reach Shopify API", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail("Failed to read Shopify response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.Newf(apperr.CodeShopifyAPIError, "Shopify API error: %d %s",
			resp.StatusCode, http.StatusText(resp.StatusCode)).
			WithStatus(resp.StatusCode).
			WithDetails(map[string]any{
				"errorText": string(body),
				"headers":   flattenHeaders(resp.Header),
			})
	}
	if !gjson.ValidBytes(body) {
		return nil, apperr.New(apperr.CodeAPIRequestError, "Shopify API returned invalid JSON")
	}
	return body, nil
}

func (c *Client) endpoint(shop, version, file string) string {
	if version == "" {
		version = c.version
	}
	base := c.baseURL
	if base == "" {
		base = "https://" + ShopDomain(shop) + ".myshopify.com"
	}
	return base + "/admin/api/" + version + "/" + file
}

// ShopDomain strips scheme, the .myshopify.com suffix and slashes from a
// store name, leaving the shop handle.
func ShopDomain(name string) string {
	s := strings.TrimSpace(strings.ToLower(name))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.Trim(s, "/")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSuffix(s, ".myshopify.com")
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
