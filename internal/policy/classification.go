package policy

// Classification is the closed set of outcomes of identifying an arrival.
type Classification int

const (
	UnknownBogey Classification = iota
	FriendlyExplicit
	HostileExplicit
	HostileImplicit
	FriendlyImplicit
)

// String returns the metric and log label for c.
func (c Classification) String() string {
	switch c {
	case FriendlyExplicit:
		return "friendly_explicit"
	case HostileExplicit:
		return "hostile_explicit"
	case HostileImplicit:
		return "hostile_implicit"
	case FriendlyImplicit:
		return "friendly_implicit"
	default:
		return "unknown_bogey"
	}
}

// Hostile reports whether c always engages.
func (c Classification) Hostile() bool {
	return c == HostileExplicit || c == HostileImplicit
}

// Friendly reports whether c never engages.
func (c Classification) Friendly() bool {
	return c == FriendlyExplicit || c == FriendlyImplicit
}

// Decision is a classification together with whether to engage.
type Decision struct {
	Classification Classification
	Engage         bool
}
