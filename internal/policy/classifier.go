// Package policy decides whether a newly arrived nation is friend or foe.
package policy

import "rosterwatch/pkg/domain"

// Sets are the four policy sets. They are populated once at startup and
// must not be modified after a Classifier is built from them.
type Sets struct {
	WhitelistExplicit domain.Set
	WhitelistImplicit domain.Set
	BlacklistExplicit domain.Set
	BlacklistImplicit domain.Set
}

// NewSets returns empty, non-nil sets.
func NewSets() Sets {
	return Sets{
		WhitelistExplicit: domain.NewSet(),
		WhitelistImplicit: domain.NewSet(),
		BlacklistExplicit: domain.NewSet(),
		BlacklistImplicit: domain.NewSet(),
	}
}

// Counts summarizes set sizes for the startup log.
type Counts struct {
	WhitelistExplicit int
	WhitelistImplicit int
	BlacklistExplicit int
	BlacklistImplicit int
}

func (s Sets) Counts() Counts {
	return Counts{
		WhitelistExplicit: s.WhitelistExplicit.Len(),
		WhitelistImplicit: s.WhitelistImplicit.Len(),
		BlacklistExplicit: s.BlacklistExplicit.Len(),
		BlacklistImplicit: s.BlacklistImplicit.Len(),
	}
}

// Classifier applies the policy sets to arrivals. It has no I/O and no
// mutable state, so it is safe for concurrent use.
type Classifier struct {
	sets        Sets
	banUnknowns bool
}

// NewClassifier builds a classifier. banUnknowns decides what happens to
// arrivals that appear in none of the sets.
func NewClassifier(sets Sets, banUnknowns bool) *Classifier {
	return &Classifier{sets: sets, banUnknowns: banUnknowns}
}

// Classify identifies id. First match wins:
//  1. explicit whitelist (beats everything, including the explicit blacklist)
//  2. explicit blacklist
//  3. implicit blacklist
//  4. implicit whitelist
//  5. unknown, engaged only when unknowns are banned
func (c *Classifier) Classify(id domain.Identifier) Decision {
	id = domain.Canonicalize(id.String())

	switch {
	case c.sets.WhitelistExplicit.Contains(id):
		return Decision{Classification: FriendlyExplicit}
	case c.sets.BlacklistExplicit.Contains(id):
		return Decision{Classification: HostileExplicit, Engage: true}
	case c.sets.BlacklistImplicit.Contains(id):
		return Decision{Classification: HostileImplicit, Engage: true}
	case c.sets.WhitelistImplicit.Contains(id):
		return Decision{Classification: FriendlyImplicit}
	default:
		return Decision{Classification: UnknownBogey, Engage: c.banUnknowns}
	}
}

// BanUnknowns reports the unknown-arrival policy.
func (c *Classifier) BanUnknowns() bool {
	return c.banUnknowns
}
