// Package domain holds the identifier and snapshot types shared by every
// component that handles nation names.
package domain

import (
	"sort"
	"strings"
)

// Separator replaces spaces in canonical identifiers.
const Separator = "_"

// Identifier is a canonical nation or region name: lowercase, spaces replaced
// with Separator. Construct it with Canonicalize; comparisons and set lookups
// are only meaningful between canonical values.
type Identifier string

// Canonicalize converts a display name such as "My Nation" into "my_nation".
// Only ASCII letters are folded; nation names are ASCII on the wire. The
// function is idempotent, so it is safe to apply at every ingestion boundary.
func Canonicalize(s string) Identifier {
	b := []byte(strings.TrimSpace(s))
	for i, c := range b {
		switch {
		case 'A' <= c && c <= 'Z':
			b[i] = c + ('a' - 'A')
		case c == ' ':
			b[i] = Separator[0]
		}
	}
	return Identifier(b)
}

// CanonicalizeAll canonicalizes each value, dropping empties and duplicates.
// Order of first appearance is preserved.
func CanonicalizeAll(values []string) []Identifier {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[Identifier]struct{}, len(values))
	result := make([]Identifier, 0, len(values))
	for _, v := range values {
		id := Canonicalize(v)
		if id.IsZero() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

// String returns the canonical form.
func (id Identifier) String() string {
	return string(id)
}

// IsZero reports whether the identifier is empty.
func (id Identifier) IsZero() bool {
	return id == ""
}

// Display renders the identifier for operator-facing output.
func (id Identifier) Display() string {
	return strings.ToUpper(string(id))
}

// Set is an unordered collection of identifiers.
type Set map[Identifier]struct{}

// NewSet builds a set from already-canonical identifiers.
func NewSet(ids ...Identifier) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id, ignoring the zero identifier.
func (s Set) Add(ids ...Identifier) {
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		s[id] = struct{}{}
	}
}

// Contains reports membership. A nil set contains nothing.
func (s Set) Contains(id Identifier) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of members.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []Identifier {
	out := make([]Identifier, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot is the membership of a watched collection at one poll instant.
// It is never modified after construction.
type Snapshot struct {
	members Set
}

// NewSnapshot captures ids into an immutable snapshot.
func NewSnapshot(ids []Identifier) Snapshot {
	return Snapshot{members: NewSet(ids...)}
}

// Contains reports whether id was present when the snapshot was taken.
func (s Snapshot) Contains(id Identifier) bool {
	return s.members.Contains(id)
}

// Len returns the member count.
func (s Snapshot) Len() int {
	return s.members.Len()
}

// Members returns a sorted copy of the membership.
func (s Snapshot) Members() []Identifier {
	return s.members.Sorted()
}

// Difference returns the members of s that are absent from other, sorted.
func (s Snapshot) Difference(other Snapshot) []Identifier {
	var out []Identifier
	for _, id := range s.members.Sorted() {
		if !other.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}
