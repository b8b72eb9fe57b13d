// Package engage drains the target queue through an authenticated session.
package engage

import (
	"context"
	"errors"
	"fmt"

	"rosterwatch/pkg/domain"
)

var (
	// ErrLoginFailed is returned when the session rejects the credentials.
	ErrLoginFailed = errors.New("engage: login failed")
	// ErrAborted ends the loop after the session reports it can no longer act.
	ErrAborted = errors.New("engage: session aborted")
)

// Outcome is the result of one disposal attempt.
type Outcome int

const (
	// OutcomeRetry leaves the target queued for a later attempt.
	OutcomeRetry Outcome = iota
	// OutcomeDisposed removes the target from the queue.
	OutcomeDisposed
	// OutcomeSkip leaves the target queued but this loop never selects it again.
	OutcomeSkip
	// OutcomeAbort stops the loop.
	OutcomeAbort
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDisposed:
		return "disposed"
	case OutcomeSkip:
		return "skip"
	case OutcomeAbort:
		return "abort"
	default:
		return "retry"
	}
}

// Session performs privileged actions on behalf of one nation.
type Session interface {
	Login(ctx context.Context, nation domain.Identifier, secret string) (bool, error)
	Act(ctx context.Context, target domain.Identifier) (Outcome, error)
}

// Login authenticates s and converts a rejected login into ErrLoginFailed.
func Login(ctx context.Context, s Session, nation domain.Identifier, secret string) error {
	ok, err := s.Login(ctx, nation, secret)
	if err != nil {
		return fmt.Errorf("log in as %s: %w", nation, err)
	}
	if !ok {
		return fmt.Errorf("log in as %s: %w", nation, ErrLoginFailed)
	}
	return nil
}
