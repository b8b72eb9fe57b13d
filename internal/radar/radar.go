// Package radar diffs successive roster readings, classifies arrivals and
// keeps the target queue in step with the roster.
package radar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rosterwatch/internal/nsapi"
	"rosterwatch/internal/platform/logger"
	"rosterwatch/internal/platform/metrics"
	"rosterwatch/internal/policy"
	"rosterwatch/internal/targets"
	"rosterwatch/pkg/domain"
	"rosterwatch/pkg/platform/sentinel"
)

// ErrRegionUpdated ends Run when stop-on-update is enabled and the watched
// region has passed its update.
var ErrRegionUpdated = errors.New("radar: region updated")

// DefaultInterval is the fixed delay between cycles.
const DefaultInterval = 650 * time.Millisecond

// Classifier decides whether an arrival is engaged.
type Classifier interface {
	Classify(id domain.Identifier) policy.Decision
}

// Radar owns the previous snapshot. Ping and Run must be driven from a
// single goroutine; the queue is the only state shared with consumers.
type Radar struct {
	source     Source
	classifier Classifier
	queue      targets.Queue

	interval     time.Duration
	jitter       time.Duration
	stopOnUpdate bool
	sleep        nsapi.SleepFunc
	rng          *rand.Rand
	now          func() time.Time

	logger   *slog.Logger
	metrics  *metrics.Metrics
	observer Observer
	tracer   trace.Tracer

	previous   domain.Snapshot
	seedUpdate int64
	// seedKnown is false until a reading carried a real update timestamp.
	seedKnown bool
}

type Option func(*Radar)

// WithInterval sets the fixed delay between cycles.
func WithInterval(d time.Duration) Option {
	return func(r *Radar) {
		r.interval = d
	}
}

// WithJitter sets the exclusive upper bound of the random delay added to
// each pace.
func WithJitter(d time.Duration) Option {
	return func(r *Radar) {
		if d < 0 {
			d = 0
		}
		r.jitter = d
	}
}

func WithStopOnUpdate(enabled bool) Option {
	return func(r *Radar) {
		r.stopOnUpdate = enabled
	}
}

func WithSleep(fn nsapi.SleepFunc) Option {
	return func(r *Radar) {
		r.sleep = fn
	}
}

// WithRand sets the jitter source.
func WithRand(rng *rand.Rand) Option {
	return func(r *Radar) {
		r.rng = rng
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Radar) {
		r.now = now
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Radar) {
		r.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Radar) {
		r.metrics = m
	}
}

func WithObserver(o Observer) Option {
	return func(r *Radar) {
		r.observer = o
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Radar) {
		r.tracer = t
	}
}

// New builds a radar and seeds it with one reading from source, so nations
// present at startup are never reported as arrivals.
func New(ctx context.Context, source Source, classifier Classifier, queue targets.Queue, opts ...Option) (*Radar, error) {
	if source == nil || classifier == nil || queue == nil {
		return nil, fmt.Errorf("radar: source, classifier and queue are required")
	}
	r := &Radar{
		source:     source,
		classifier: classifier,
		queue:      queue,
		interval:   DefaultInterval,
		sleep:      nsapi.Sleep,
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:        time.Now,
		logger:     logger.Discard(),
		tracer:     otel.Tracer("rosterwatch/radar"),
	}
	for _, opt := range opts {
		opt(r)
	}

	seed, err := r.source.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed radar: %w", err)
	}
	r.previous = seed.Snapshot
	r.seedUpdate, r.seedKnown = seed.LastUpdate, seed.HasLastUpdate
	r.logger.InfoContext(ctx, "radar seeded",
		"nations", seed.Snapshot.Len(),
		"last_update", seed.LastUpdate,
	)
	return r, nil
}

// Previous returns the snapshot the next Ping diffs against.
func (r *Radar) Previous() domain.Snapshot {
	return r.previous
}

// Ping reads the roster once, drops departed nations from the queue, queues
// engaged arrivals and returns the queue contents. A reading without data
// skips the cycle and leaves the previous snapshot in place.
func (r *Radar) Ping(ctx context.Context) ([]domain.Identifier, error) {
	ctx, span := r.tracer.Start(ctx, "radar.Ping")
	defer span.End()

	start := r.now()
	defer func() {
		if r.metrics != nil {
			r.metrics.ObservePing(r.now().Sub(start))
		}
	}()

	reading, err := r.source.Read(ctx)
	if errors.Is(err, sentinel.ErrNoData) {
		r.logger.WarnContext(ctx, "roster missing from response, skipping cycle", "error", err)
		span.SetAttributes(attribute.Bool("radar.skipped", true))
		return r.queue.Snapshot(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if r.stopOnUpdate && r.regionUpdated(ctx, reading) {
		r.logger.WarnContext(ctx, "region updated, holding fire",
			"seed_update", r.seedUpdate,
			"last_update", reading.LastUpdate,
		)
		return nil, ErrRegionUpdated
	}

	current := reading.Snapshot
	if err := r.dropDepartures(ctx, current); err != nil {
		return nil, err
	}
	arrivals, err := r.classifyArrivals(ctx, current)
	if err != nil {
		return nil, err
	}
	r.previous = current

	queued, err := r.queue.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot queue: %w", err)
	}
	if r.metrics != nil {
		r.metrics.SetQueueDepth(len(queued))
	}
	span.SetAttributes(
		attribute.Int("radar.nations", current.Len()),
		attribute.Int("radar.arrivals", arrivals),
		attribute.Int("radar.queued", len(queued)),
	)
	return queued, nil
}

// regionUpdated reports whether reading is newer than the first known update
// timestamp. Readings without a timestamp never trip it, and the first one
// that carries a timestamp becomes the baseline.
func (r *Radar) regionUpdated(ctx context.Context, reading Reading) bool {
	if !reading.HasLastUpdate {
		return false
	}
	if !r.seedKnown {
		r.seedUpdate, r.seedKnown = reading.LastUpdate, true
		r.logger.InfoContext(ctx, "update baseline recorded", "last_update", reading.LastUpdate)
		return false
	}
	return reading.LastUpdate > r.seedUpdate
}

func (r *Radar) dropDepartures(ctx context.Context, current domain.Snapshot) error {
	queued, err := r.queue.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot queue: %w", err)
	}
	for _, id := range queued {
		if current.Contains(id) {
			continue
		}
		removed, err := r.queue.Remove(ctx, id)
		if err != nil {
			return fmt.Errorf("remove departed %s: %w", id, err)
		}
		if !removed {
			r.logger.WarnContext(ctx, "departed target already removed", "nation", id.String())
			continue
		}
		r.logger.InfoContext(ctx, "target departed", "nation", id.String())
		if r.metrics != nil {
			r.metrics.IncrementDepartures()
		}
	}
	return nil
}

func (r *Radar) classifyArrivals(ctx context.Context, current domain.Snapshot) (int, error) {
	arrivals := current.Difference(r.previous)
	for _, id := range arrivals {
		queued, err := r.queue.Contains(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("check queue for %s: %w", id, err)
		}
		if queued {
			continue
		}

		decision := r.classifier.Classify(id)
		if decision.Engage {
			if _, err := r.queue.Append(ctx, id); err != nil {
				return 0, fmt.Errorf("queue %s: %w", id, err)
			}
		}
		if r.metrics != nil {
			r.metrics.IncrementDetections(decision.Classification.String())
		}
		if r.observer != nil {
			r.observer.Observe(ctx, Detection{
				ID:             id,
				Classification: decision.Classification,
				Engage:         decision.Engage,
				At:             r.now(),
			})
		}
	}
	return len(arrivals), nil
}

// Pace sleeps the fixed interval plus a uniform jitter in [0, jitter).
func (r *Radar) Pace(ctx context.Context) error {
	d := r.interval
	if r.jitter > 0 {
		d += time.Duration(r.rng.Int64N(int64(r.jitter)))
	}
	return r.sleep(ctx, d)
}

// Run alternates Ping and Pace until ctx is done. Retryable fetch failures
// are logged and the next cycle proceeds; any other error ends the loop.
func (r *Radar) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "radar online",
		"interval", r.interval,
		"jitter", r.jitter,
		"stop_on_update", r.stopOnUpdate,
	)
	for ctx.Err() == nil {
		if _, err := r.Ping(ctx); err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case nsapi.IsRetryable(err):
				r.logger.WarnContext(ctx, "radar ping failed, retrying next cycle", "error", err)
			default:
				return err
			}
		}
		if err := r.Pace(ctx); err != nil {
			return nil
		}
	}
	return nil
}
