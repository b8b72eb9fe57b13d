package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rosterwatch/internal/nsapi"
	"rosterwatch/internal/platform/logger"
	"rosterwatch/pkg/domain"
)

// Directory answers the membership questions needed to expand region-based
// policy into nation sets.
type Directory interface {
	RegionResidents(ctx context.Context, region domain.Identifier) ([]domain.Identifier, error)
	RegionOfficers(ctx context.Context, region domain.Identifier) ([]domain.Identifier, error)
}

// Options describe where the policy sets come from.
type Options struct {
	HomeRegion       domain.Identifier
	IgnoreOfficers   bool
	IgnoreResidents  bool
	WhitelistNations []string
	BlacklistNations []string
	WhitelistRegions []string
	BlacklistRegions []string
}

// Builder populates Sets from configuration and directory lookups.
type Builder struct {
	directory Directory
	delay     time.Duration
	sleep     nsapi.SleepFunc
	logger    *slog.Logger
}

type BuilderOption func(*Builder)

// WithDelay spaces directory lookups by d, the same fixed delay the radar
// keeps between polls.
func WithDelay(d time.Duration) BuilderOption {
	return func(b *Builder) {
		b.delay = d
	}
}

func WithSleep(fn nsapi.SleepFunc) BuilderOption {
	return func(b *Builder) {
		b.sleep = fn
	}
}

func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = l
	}
}

func NewBuilder(directory Directory, opts ...BuilderOption) (*Builder, error) {
	if directory == nil {
		return nil, fmt.Errorf("directory is required")
	}
	b := &Builder{
		directory: directory,
		sleep:     nsapi.Sleep,
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build resolves opts into policy sets. Any lookup failure is returned;
// starting with a partial policy would misclassify arrivals.
func (b *Builder) Build(ctx context.Context, opts Options) (Sets, error) {
	sets := NewSets()

	if opts.IgnoreOfficers && !opts.HomeRegion.IsZero() {
		officers, err := b.lookup(ctx, "officers", opts.HomeRegion, b.directory.RegionOfficers)
		if err != nil {
			return Sets{}, err
		}
		sets.WhitelistExplicit.Add(officers...)
	}

	if opts.IgnoreResidents && !opts.HomeRegion.IsZero() {
		residents, err := b.lookup(ctx, "residents", opts.HomeRegion, b.directory.RegionResidents)
		if err != nil {
			return Sets{}, err
		}
		sets.WhitelistImplicit.Add(residents...)
	}

	sets.WhitelistExplicit.Add(domain.CanonicalizeAll(opts.WhitelistNations)...)
	sets.BlacklistExplicit.Add(domain.CanonicalizeAll(opts.BlacklistNations)...)

	for _, region := range domain.CanonicalizeAll(opts.WhitelistRegions) {
		residents, err := b.lookup(ctx, "residents", region, b.directory.RegionResidents)
		if err != nil {
			return Sets{}, err
		}
		sets.WhitelistImplicit.Add(residents...)
	}

	for _, region := range domain.CanonicalizeAll(opts.BlacklistRegions) {
		residents, err := b.lookup(ctx, "residents", region, b.directory.RegionResidents)
		if err != nil {
			return Sets{}, err
		}
		sets.BlacklistImplicit.Add(residents...)
	}

	counts := sets.Counts()
	b.logger.InfoContext(ctx, "policy sets built",
		"whitelist_explicit", counts.WhitelistExplicit,
		"whitelist_implicit", counts.WhitelistImplicit,
		"blacklist_explicit", counts.BlacklistExplicit,
		"blacklist_implicit", counts.BlacklistImplicit,
	)
	return sets, nil
}

func (b *Builder) lookup(
	ctx context.Context,
	what string,
	region domain.Identifier,
	fn func(context.Context, domain.Identifier) ([]domain.Identifier, error),
) ([]domain.Identifier, error) {
	b.logger.InfoContext(ctx, "expanding region policy", "region", region, "lookup", what)
	ids, err := fn(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("look up %s of region %s: %w", what, region, err)
	}
	if err := b.sleep(ctx, b.delay); err != nil {
		return nil, err
	}
	return ids, nil
}
