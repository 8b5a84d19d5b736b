package cache

// Tier names a cache layer.
type Tier string

const (
	TierLocal  Tier = "local"
	TierRemote Tier = "remote"
)

// Status is the outcome of a lookup.
type Status int

const (
	StatusMiss Status = iota
	StatusHit
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusHit:
		return "hit"
	case StatusFailed:
		return "error"
	default:
		return "miss"
	}
}

// Result tells a caller which tier answered and whether the answer was a
// genuine absence or a failure to ask.
type Result struct {
	Status   Status
	Tier     Tier
	Manifest *Manifest
	Err      error
}
