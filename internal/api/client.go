package api

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

	"brainsync-client/internal/apperr"
	"brainsync-client/internal/dto"
	"brainsync-client/internal/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "brainsync-client/api"

// TokenSource yields the bearer token for the next request, if any.
type TokenSource interface {
	CurrentToken() (string, bool)
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
}

type Client struct {
	BaseURL string
	Client  *http.Client
	tokens  TokenSource
	logger  logger.ILogger
	tracer  trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.Client = hc
	}
}

func NewClient(baseURL string, tokens TokenSource, log logger.ILogger, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
		tokens: tokens,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes req and decodes the (unwrapped) response body into out. out may be nil.
// Every failure is an *apperr.Error: transport problems are KindNetwork, HTTP error
// statuses are mapped with apperr.FromStatus.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, req.Method+" "+req.Path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	status, err := c.do(ctx, req, out)
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.route", req.Path),
		attribute.Int("http.status_code", status),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) do(ctx context.Context, req Request, out interface{}) (int, error) {
	// 1. Prepare Payload
	var body io.Reader
	if req.Body != nil {
		payloadBytes, err := json.Marshal(req.Body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payloadBytes)
	}

	target := c.BaseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	// 2. Attach Credentials
	if c.tokens != nil {
		if token, ok := c.tokens.CurrentToken(); ok {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	// 3. Send Request
	started := time.Now()
	resp, err := c.Client.Do(httpReq)
	if err != nil {
		c.logger.Warn("APIClient", "Request failed", map[string]interface{}{
			"method": req.Method,
			"path":   req.Path,
			"error":  err.Error(),
		})
		return 0, apperr.NewNetwork(err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, apperr.NewNetwork(fmt.Errorf("read response: %w", err))
	}

	c.logger.Debug("APIClient", "Request completed", map[string]interface{}{
		"method":      req.Method,
		"path":        req.Path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(started).Milliseconds(),
	})

	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, decodeError(resp.StatusCode, bodyBytes)
	}

	// 4. Parse Response
	if out == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(unwrap(bodyBytes), out); err != nil {
		return resp.StatusCode, apperr.NewServer(resp.StatusCode, fmt.Sprintf("unmarshal response: %v", err))
	}
	return resp.StatusCode, nil
}

// unwrap returns the envelope's data when the body is an envelope, the body otherwise.
func unwrap(body []byte) []byte {
	var env dto.Envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Success == nil {
		return body
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return body
	}
	return env.Data
}

func decodeError(status int, body []byte) error {
	var env dto.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apperr.FromStatus(status, strings.TrimSpace(string(body)), nil)
	}

	message := env.Message
	if message == "" {
		message = env.Error
	}

	if status == http.StatusTooManyRequests && len(env.Data) > 0 {
		var limit dto.LimitExceededData
		if err := json.Unmarshal(env.Data, &limit); err == nil && limit.Limit > 0 {
			return apperr.NewRateLimited(message, limit.Limit, limit.Used, limit.ResetAfter)
		}
	}

	var details map[string]any
	if len(env.Errors) > 0 {
		details = make(map[string]any, len(env.Errors))
		for k, v := range env.Errors {
			details[k] = v
		}
	}
	return apperr.FromStatus(status, message, details)
}

// IsTimeout reports whether err came from a deadline rather than a refused connection.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
