package main

import (
	"context"
	"log/slog"

	"rosterwatch/internal/nsapi"
	"rosterwatch/internal/platform/config"
	"rosterwatch/internal/platform/metrics"
	"rosterwatch/internal/policy"
	"rosterwatch/pkg/domain"
)

func newAPIClient(cfg config.Config, log *slog.Logger, m *metrics.Metrics) (*nsapi.Client, error) {
	identity := nsapi.Identity{
		Product: "Rosterwatch",
		Version: version,
		User:    domain.Canonicalize(cfg.User).String(),
	}
	opts := []nsapi.Option{
		nsapi.WithTimeout(cfg.API.Timeout),
		nsapi.WithFixedDelay(cfg.PollInterval),
		nsapi.WithLogger(log),
		nsapi.WithMetrics(m),
	}
	if cfg.API.BaseURL != "" {
		opts = append(opts, nsapi.WithBaseURL(cfg.API.BaseURL))
	}
	return nsapi.New(identity, opts...)
}

// homeRegion is the region override when set, else the session nation's
// current region.
func homeRegion(ctx context.Context, cfg config.Config, client *nsapi.Client) (domain.Identifier, error) {
	if region := domain.Canonicalize(cfg.RegionOverride); !region.IsZero() {
		return region, nil
	}
	nation := domain.Canonicalize(cfg.Nation)
	if nation.IsZero() {
		return "", wrapStartup("resolve home region", errNoNation)
	}
	region, err := client.NationRegion(ctx, nation)
	if err != nil {
		return "", wrapStartup("resolve home region", err)
	}
	if err := nsapi.Sleep(ctx, cfg.PollInterval); err != nil {
		return "", err
	}
	return region, nil
}

func buildClassifier(ctx context.Context, cfg config.Config, region domain.Identifier, client *nsapi.Client, log *slog.Logger) (*policy.Classifier, error) {
	builder, err := policy.NewBuilder(client,
		policy.WithDelay(cfg.PollInterval),
		policy.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	sets, err := builder.Build(ctx, policy.Options{
		HomeRegion:       region,
		IgnoreOfficers:   cfg.IgnoreOfficers,
		IgnoreResidents:  cfg.IgnoreResidents,
		WhitelistNations: cfg.Whitelist.Nations,
		BlacklistNations: cfg.Blacklist.Nations,
		WhitelistRegions: cfg.Whitelist.Regions,
		BlacklistRegions: cfg.Blacklist.Regions,
	})
	if err != nil {
		return nil, wrapStartup("build policy", err)
	}
	counts := sets.Counts()
	log.InfoContext(ctx, "IFF system initialized",
		"explicitly_permitted", counts.WhitelistExplicit,
		"implicitly_permitted", counts.WhitelistImplicit,
		"explicitly_targeted", counts.BlacklistExplicit,
		"implicitly_targeted", counts.BlacklistImplicit,
	)
	return policy.NewClassifier(sets, cfg.BanUnknowns), nil
}
