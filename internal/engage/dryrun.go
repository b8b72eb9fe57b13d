package engage

import (
	"context"
	"log/slog"

	"rosterwatch/internal/platform/logger"
	"rosterwatch/pkg/domain"
)

// DryRunSession accepts any login and reports every target as disposed
// without contacting the site.
type DryRunSession struct {
	logger *slog.Logger
}

func NewDryRunSession(l *slog.Logger) *DryRunSession {
	if l == nil {
		l = logger.Discard()
	}
	return &DryRunSession{logger: l}
}

func (s *DryRunSession) Login(ctx context.Context, nation domain.Identifier, _ string) (bool, error) {
	s.logger.InfoContext(ctx, "dry run: skipping login", "nation", nation.String())
	return true, nil
}

func (s *DryRunSession) Act(ctx context.Context, target domain.Identifier) (Outcome, error) {
	s.logger.InfoContext(ctx, "dry run: would engage", "nation", target.String())
	return OutcomeDisposed, nil
}
