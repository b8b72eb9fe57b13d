package nsapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// LowWaterMark is the remaining-quota level below which the client starts
// spreading its remaining requests over the rest of the window.
const LowWaterMark = 10

// Response headers consumed by the client.
const (
	HeaderRemaining  = "RateLimit-Remaining"
	HeaderReset      = "RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
	HeaderPin        = "X-Pin"
)

// RateLimitState is derived from a single response and never persisted.
type RateLimitState struct {
	Remaining    int
	HasRemaining bool
	Reset        time.Duration
	RetryAfter   time.Duration
	Pin          string
}

func parseRateLimit(h http.Header) RateLimitState {
	var state RateLimitState
	if v, ok := headerInt(h, HeaderRemaining); ok {
		state.Remaining = v
		state.HasRemaining = true
	}
	if v, ok := headerInt(h, HeaderReset); ok && v > 0 {
		state.Reset = time.Duration(v) * time.Second
	}
	if v, ok := headerInt(h, HeaderRetryAfter); ok && v > 0 {
		state.RetryAfter = time.Duration(v) * time.Second
	}
	state.Pin = h.Get(HeaderPin)
	return state
}

func headerInt(h http.Header, key string) (int, bool) {
	raw := strings.TrimSpace(h.Get(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// PaceDelay is the per-request spacing needed to spend the remaining quota
// evenly over the rest of the window. It is zero while the quota is at or
// above LowWaterMark or when the server did not report one. An exhausted
// quota paces the whole reset window.
func PaceDelay(state RateLimitState) time.Duration {
	if !state.HasRemaining || state.Remaining >= LowWaterMark {
		return 0
	}
	if state.Remaining <= 0 {
		return state.Reset
	}
	return state.Reset / time.Duration(state.Remaining)
}

// ExtraDelay is the part of pace the caller's own fixed inter-poll delay
// does not already cover. It never goes negative.
func ExtraDelay(pace, fixed time.Duration) time.Duration {
	if pace <= fixed {
		return 0
	}
	return pace - fixed
}
