package nsapi

import (
	"errors"
	"fmt"

	"rosterwatch/pkg/domain"
)

// ErrIdentificationMissing is returned before any request is made when the
// client has no user nation to put in the identification header.
var ErrIdentificationMissing = errors.New("nsapi: identification missing: a user nation is required")

// Category is the normalized failure taxonomy for fetches.
type Category string

const (
	// CategoryTransient covers transport failures and server errors.
	CategoryTransient Category = "transient"

	// CategoryNotFound indicates the entity does not exist.
	CategoryNotFound Category = "not_found"

	// CategoryBadResponse indicates an unexpected status code.
	CategoryBadResponse Category = "bad_response"
)

// FetchError wraps a failed read with its category.
type FetchError struct {
	Category   Category
	Kind       EntityKind
	ID         domain.Identifier
	StatusCode int
	Message    string
	Underlying error
	Retryable  bool
}

func (e *FetchError) Error() string {
	target := fmt.Sprintf("%s=%s", e.Kind, e.ID)
	if e.Underlying != nil {
		return fmt.Sprintf("nsapi %s [%s]: %s: %v", target, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("nsapi %s [%s]: %s", target, e.Category, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Underlying
}

func newFetchError(category Category, kind EntityKind, id domain.Identifier, status int, message string, underlying error) *FetchError {
	return &FetchError{
		Category:   category,
		Kind:       kind,
		ID:         id,
		StatusCode: status,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == CategoryTransient,
	}
}

// IsRetryable reports whether err is a fetch failure worth retrying on a
// later cycle.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// GetCategory extracts the category from err, or "" when err is not a FetchError.
func GetCategory(err error) Category {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return ""
}
