package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Clients and stores return these
// (optionally wrapped) so callers can decide whether to skip, retry or stop.
//
// - ErrNotFound: the remote entity or queue entry does not exist
// - ErrNoData: a response arrived but the expected field was absent or unreadable
// - ErrUnavailable: a dependency is temporarily unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrNoData      = errors.New("no data")
	ErrUnavailable = errors.New("unavailable")
)
