// Package routerhttp is an exchange.Venue backed by a remote routing service.
//
// The service quotes and settles swaps itself; this client only transports
// requests. Quotes are retried on transient failures, swaps never are.
package routerhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/exchange"
	"github.com/yungbote/yieldvault-backend/internal/platform/ctxutil"
	"github.com/yungbote/yieldvault-backend/internal/platform/httpx"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

type Client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

var _ exchange.Venue = (*Client)(nil)

var quoteBackoff = httpx.Backoff{Base: 500 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.2}

func New(cfg Config, log *logger.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("routerhttp: missing base url")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		log:        log.With("client", "RouterHTTP"),
		baseURL:    base,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: retries,
	}, nil
}

type quoteRequest struct {
	AmountIn string   `json:"amount_in"`
	Path     []string `json:"path"`
}

type swapRequest struct {
	AmountIn     string   `json:"amount_in"`
	Path         []string `json:"path"`
	AmountOutMin string   `json:"amount_out_min"`
	Deadline     int64    `json:"deadline"`
	Sender       string   `json:"sender"`
	Recipient    string   `json:"recipient"`
}

type amountResponse struct {
	AmountOut string `json:"amount_out"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// HTTPError is a non-2xx response from the routing service.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("router http %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("router http %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

// Unwrap maps service error codes onto exchange sentinels.
func (e *HTTPError) Unwrap() error {
	switch e.Code {
	case "insufficient_output":
		return exchange.ErrInsufficientOutput
	case "deadline_expired":
		return exchange.ErrDeadlineExpired
	case "no_route":
		return exchange.ErrNoRoute
	case "invalid_path":
		return exchange.ErrInvalidPath
	case "insufficient_liquidity":
		return exchange.ErrInsufficientLiquid
	}
	return nil
}

func (c *Client) Quote(ctx context.Context, amountIn vault.Amount, path []string) (vault.Amount, error) {
	path, err := exchange.NormalizePath(path)
	if err != nil {
		return vault.Zero, err
	}
	var out amountResponse
	err = httpx.Retry(ctx, c.maxRetries, quoteBackoff, func(attempt int, wait time.Duration, err error) {
		c.log.Warn("router quote retrying", "attempt", attempt, "sleep", wait.String(), "error", err.Error())
	}, func() (*http.Response, error) {
		return c.doOnce(ctx, "/v1/quote", quoteRequest{AmountIn: amountIn.String(), Path: path}, &out)
	})
	if err != nil {
		return vault.Zero, err
	}
	return vault.ParseAmount(out.AmountOut)
}

func (c *Client) SwapExactInput(ctx context.Context, req exchange.SwapRequest) (vault.Amount, error) {
	path, err := exchange.NormalizePath(req.Path)
	if err != nil {
		return vault.Zero, err
	}
	body := swapRequest{
		AmountIn:     req.AmountIn.String(),
		Path:         path,
		AmountOutMin: req.AmountOutMin.String(),
		Sender:       req.Sender,
		Recipient:    req.Recipient,
	}
	if !req.Deadline.IsZero() {
		body.Deadline = req.Deadline.Unix()
	}
	var out amountResponse
	if _, err := c.doOnce(ctx, "/v1/swap", body, &out); err != nil {
		return vault.Zero, err
	}
	amount, err := vault.ParseAmount(out.AmountOut)
	if err != nil {
		return vault.Zero, err
	}
	if amount.LessThan(req.AmountOutMin) {
		return vault.Zero, fmt.Errorf("%w: router returned %s, minimum %s", exchange.ErrInsufficientOutput, amount, req.AmountOutMin)
	}
	return amount, nil
}

func (c *Client) doOnce(ctx context.Context, path string, body any, out any) (*http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	ctx = ctxutil.Default(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if td := ctxutil.GetTraceData(ctx); td != nil && td.RequestID != "" {
		req.Header.Set("X-Request-Id", td.RequestID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
			httpErr.Code = env.Error.Code
			httpErr.Message = env.Error.Message
		}
		return resp, httpErr
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp, fmt.Errorf("router decode error: %w; raw=%s", err, string(raw))
	}
	return resp, nil
}
