package engage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"rosterwatch/internal/nsapi"
	"rosterwatch/internal/platform/logger"
	"rosterwatch/internal/platform/metrics"
	"rosterwatch/internal/targets"
	"rosterwatch/pkg/domain"
)

// DefaultIdleWait is how long the loop waits when nothing is selectable or
// an attempt did not dispose of its target.
const DefaultIdleWait = 250 * time.Millisecond

// Stats counts attempts over the lifetime of a Loop.
type Stats struct {
	Attempts int64
	Disposed int64
	Failed   int64
	Skipped  int64
}

// Loop repeatedly selects a queued target at random and acts on it. Step and
// Run must be driven from a single goroutine; Stats may be read from any.
type Loop struct {
	session Session
	queue   targets.Queue

	idleWait    time.Duration
	minInterval time.Duration
	sleep       nsapi.SleepFunc
	pick        func(n int) int
	attemptID   func() string

	logger  *slog.Logger
	metrics *metrics.Metrics

	skipped domain.Set

	attempts atomic.Int64
	disposed atomic.Int64
	failed   atomic.Int64
	skips    atomic.Int64
}

type Option func(*Loop)

// WithIdleWait sets the wait used when the queue has nothing selectable.
func WithIdleWait(d time.Duration) Option {
	return func(l *Loop) {
		l.idleWait = d
	}
}

// WithMinInterval sets the least time between two successful actions.
func WithMinInterval(d time.Duration) Option {
	return func(l *Loop) {
		l.minInterval = d
	}
}

func WithSleep(fn nsapi.SleepFunc) Option {
	return func(l *Loop) {
		l.sleep = fn
	}
}

// WithRand sets the selection source.
func WithRand(r *rand.Rand) Option {
	return func(l *Loop) {
		l.pick = r.IntN
	}
}

func WithAttemptIDs(fn func() string) Option {
	return func(l *Loop) {
		l.attemptID = fn
	}
}

func WithLogger(lg *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = lg
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

// NewLoop creates a loop draining queue through session. The session must
// already be logged in.
func NewLoop(session Session, queue targets.Queue, opts ...Option) (*Loop, error) {
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	l := &Loop{
		session:   session,
		queue:     queue,
		idleWait:  DefaultIdleWait,
		sleep:     nsapi.Sleep,
		pick:      rand.IntN,
		attemptID: uuid.NewString,
		logger:    logger.Discard(),
		skipped:   domain.NewSet(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Stats returns the counters accumulated so far.
func (l *Loop) Stats() Stats {
	return Stats{
		Attempts: l.attempts.Load(),
		Disposed: l.disposed.Load(),
		Failed:   l.failed.Load(),
		Skipped:  l.skips.Load(),
	}
}

// Step makes at most one attempt. It returns the outcome and whether an
// attempt was made; a failed Act counts as OutcomeRetry.
func (l *Loop) Step(ctx context.Context) (Outcome, bool, error) {
	queued, err := l.queue.Snapshot(ctx)
	if err != nil {
		return OutcomeRetry, false, fmt.Errorf("snapshot queue: %w", err)
	}
	candidates := queued[:0]
	for _, id := range queued {
		if !l.skipped.Contains(id) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return OutcomeRetry, false, nil
	}

	target := candidates[l.pick(len(candidates))]
	logger := l.logger.With("nation", target.String(), "attempt_id", l.attemptID())
	logger.InfoContext(ctx, "missile lock")

	l.attempts.Add(1)
	outcome, err := l.session.Act(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeRetry, true, nil
		}
		logger.ErrorContext(ctx, "engagement request failed, target stays queued", "error", err)
		l.failed.Add(1)
		l.record("error")
		return OutcomeRetry, true, nil
	}
	l.record(outcome.String())

	switch outcome {
	case OutcomeDisposed:
		l.disposed.Add(1)
		removed, err := l.queue.Remove(ctx, target)
		if err != nil {
			return outcome, true, fmt.Errorf("remove disposed %s: %w", target, err)
		}
		if !removed {
			logger.DebugContext(ctx, "disposed target already left the queue")
		}
		logger.InfoContext(ctx, "hit confirmed")
	case OutcomeSkip:
		l.skips.Add(1)
		l.skipped.Add(target)
		logger.WarnContext(ctx, "engagement failed, skipping target")
	case OutcomeAbort:
		l.failed.Add(1)
		logger.ErrorContext(ctx, "session can no longer act")
		return outcome, true, ErrAborted
	default:
		l.failed.Add(1)
		logger.WarnContext(ctx, "engagement failed, will retry")
	}
	return outcome, true, nil
}

// Run steps until ctx is done or the session aborts.
func (l *Loop) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		outcome, acted, err := l.Step(ctx)
		if err != nil {
			if ctx.Err() != nil && !errors.Is(err, ErrAborted) {
				return nil
			}
			return err
		}

		wait := l.idleWait
		if acted && outcome == OutcomeDisposed {
			wait = l.minInterval
		}
		if err := l.sleep(ctx, wait); err != nil {
			return nil
		}
	}
	return nil
}

func (l *Loop) record(outcome string) {
	if l.metrics != nil {
		l.metrics.IncrementEngagements(outcome)
	}
}
