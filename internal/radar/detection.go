package radar

import (
	"context"
	"log/slog"
	"time"

	"rosterwatch/internal/policy"
	"rosterwatch/pkg/domain"
)

// Detection describes one classified arrival.
type Detection struct {
	ID             domain.Identifier
	Classification policy.Classification
	Engage         bool
	At             time.Time
}

// Observer receives every detection in arrival order.
type Observer interface {
	Observe(ctx context.Context, d Detection)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, d Detection)

func (f ObserverFunc) Observe(ctx context.Context, d Detection) {
	f(ctx, d)
}

// LogObserver writes each detection to a structured logger.
type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Observe(ctx context.Context, d Detection) {
	level := slog.LevelInfo
	msg := "friendly detected"
	switch {
	case d.Engage && d.Classification == policy.UnknownBogey:
		level, msg = slog.LevelWarn, "bogey detected, engaging"
	case d.Engage:
		level, msg = slog.LevelWarn, "bandit detected"
	case d.Classification == policy.UnknownBogey:
		msg = "bogey detected, holding fire"
	}
	o.logger.Log(ctx, level, msg,
		"nation", d.ID.String(),
		"classification", d.Classification.String(),
		"engage", d.Engage,
	)
}
