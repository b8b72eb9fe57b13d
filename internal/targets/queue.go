// Package targets holds the queue of identifiers flagged for disposal. The
// radar appends and removes departures; the action loop selects from
// snapshots and removes what it disposed of.
package targets

import (
	"context"

	"rosterwatch/pkg/domain"
)

// Queue is safe for concurrent use by one producer and any number of
// consumers. An identifier is held at most once.
type Queue interface {
	// Append adds id and reports whether it was newly added.
	Append(ctx context.Context, id domain.Identifier) (bool, error)
	// Remove deletes id and reports whether it was present.
	Remove(ctx context.Context, id domain.Identifier) (bool, error)
	Contains(ctx context.Context, id domain.Identifier) (bool, error)
	// Snapshot returns a point-in-time copy in insertion order.
	Snapshot(ctx context.Context) ([]domain.Identifier, error)
	Len(ctx context.Context) (int, error)
}
