// Package nsapi is a read client for the NationStates API that paces itself
// using the quota the server reports on every response.
package nsapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rosterwatch/internal/platform/logger"
	"rosterwatch/internal/platform/metrics"
	"rosterwatch/pkg/domain"
	"rosterwatch/pkg/platform/sentinel"
)

const (
	DefaultBaseURL = "https://www.nationstates.net/cgi-bin/api.cgi"
	DefaultTimeout = 5 * time.Second
	// DefaultRetryAfter is waited out when a 429 arrives without a
	// Retry-After header.
	DefaultRetryAfter = 5 * time.Second

	maxBodyBytes = 8 << 20
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client issues identified, self-paced reads against the API.
type Client struct {
	baseURL    string
	identity   Identity
	httpClient *http.Client
	fixedDelay time.Duration
	sleep      SleepFunc
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer

	mu  sync.Mutex
	pin string
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets a safety timeout on each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithFixedDelay tells the client how long the caller already waits between
// polls, so pacing only sleeps the excess.
func WithFixedDelay(d time.Duration) Option {
	return func(c *Client) {
		c.fixedDelay = d
	}
}

func WithSleep(fn SleepFunc) Option {
	return func(c *Client) {
		c.sleep = fn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// New builds a client. It fails with ErrIdentificationMissing when identity
// names no user.
func New(identity Identity, opts ...Option) (*Client, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		identity:   identity,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		sleep:      Sleep,
		logger:     logger.Discard(),
		tracer:     otel.Tracer("rosterwatch/internal/nsapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Pin returns the most recent session pin the server handed out.
func (c *Client) Pin() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pin
}

// Fetch reads the given shards of one entity. Server-mandated waits and
// pre-emptive pacing happen before it returns; neither is an error.
func (c *Client) Fetch(ctx context.Context, kind EntityKind, id domain.Identifier, shards ...Shard) (*Result, error) {
	if err := c.identity.Validate(); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "nsapi.Fetch", trace.WithAttributes(
		attribute.String("nsapi.kind", string(kind)),
		attribute.String("nsapi.id", id.String()),
	))
	defer span.End()

	result, err := c.fetch(ctx, kind, id, shards)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.observe(kind, "error")
		return nil, err
	}
	if result.Throttled {
		c.observe(kind, "throttled")
	} else {
		c.observe(kind, "ok")
	}
	return result, nil
}

func (c *Client) fetch(ctx context.Context, kind EntityKind, id domain.Identifier, shards []Shard) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(kind, id, shards), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.identity.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, newFetchError(CategoryTransient, kind, id, 0, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, newFetchError(CategoryTransient, kind, id, resp.StatusCode, "read body", err)
	}

	state := parseRateLimit(resp.Header)
	c.recordState(state)

	result := &Result{Kind: kind, ID: id, RateLimit: state}
	if state.RetryAfter > 0 {
		result.Throttled = true
		c.logger.WarnContext(ctx, "rate limited by server",
			"wait", state.RetryAfter,
			"kind", kind,
			"id", id,
		)
		if c.metrics != nil {
			c.metrics.IncrementRetryAfterWaits()
		}
		if err := c.sleep(ctx, state.RetryAfter); err != nil {
			return nil, err
		}
	}

	if extra := ExtraDelay(PaceDelay(state), c.fixedDelay); extra > 0 {
		c.logger.InfoContext(ctx, "quota running low, pacing requests",
			"remaining", state.Remaining,
			"reset", state.Reset,
			"extra_delay", extra,
		)
		if c.metrics != nil {
			c.metrics.AddPacing(extra)
		}
		if err := c.sleep(ctx, extra); err != nil {
			return nil, err
		}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		result.Throttled = true
		if state.RetryAfter <= 0 {
			c.logger.WarnContext(ctx, "rate limited without a wait, backing off",
				"wait", DefaultRetryAfter,
				"kind", kind,
				"id", id,
			)
			if err := c.sleep(ctx, DefaultRetryAfter); err != nil {
				return nil, err
			}
		}
		return result, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, newFetchError(CategoryNotFound, kind, id, resp.StatusCode, "entity does not exist", sentinel.ErrNotFound)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, newFetchError(CategoryTransient, kind, id, resp.StatusCode, "server error", sentinel.ErrUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, newFetchError(CategoryBadResponse, kind, id, resp.StatusCode, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	fields, err := parseDocument(kind, body)
	if err != nil {
		c.logger.WarnContext(ctx, "unreadable response, treating as no data",
			"kind", kind,
			"id", id,
			"error", err,
		)
		return result, nil
	}
	result.Fields = fields
	return result, nil
}

func (c *Client) requestURL(kind EntityKind, id domain.Identifier, shards []Shard) string {
	names := make([]string, 0, len(shards))
	for _, s := range shards {
		names = append(names, string(s))
	}
	q := url.Values{}
	q.Set(string(kind), id.String())
	if len(names) > 0 {
		// Encode turns the space separator into the "+" the API expects.
		q.Set("q", strings.Join(names, " "))
	}
	return c.baseURL + "?" + q.Encode()
}

func (c *Client) recordState(state RateLimitState) {
	if state.Pin != "" {
		c.mu.Lock()
		c.pin = state.Pin
		c.mu.Unlock()
	}
	if c.metrics != nil && state.HasRemaining {
		c.metrics.SetQuotaRemaining(state.Remaining)
	}
}

func (c *Client) observe(kind EntityKind, outcome string) {
	if c.metrics != nil {
		c.metrics.ObserveFetch(string(kind), outcome)
	}
}
