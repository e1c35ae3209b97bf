package domain

import "time"

type RotationWindow struct {
	Start time.Time
	End   time.Time
}

func (w RotationWindow) Contains(other RotationWindow) bool {
	return !other.Start.Before(w.Start) && !other.End.After(w.End)
}

// RotationNode describes one signer due for key rollover. DependsOn lists
// signer ids that must be scheduled no later than this node.
type RotationNode struct {
	SignerID       string
	Tier           int
	Window         RotationWindow
	DowntimeBudget time.Duration
	DependsOn      []string
}

type PlanConstraints struct {
	Horizon   RotationWindow
	BaseEpoch uint64
}

type PlanEntry struct {
	SignerID    string
	TargetEpoch uint64
	ScheduledAt time.Time
	Window      RotationWindow
}

// RotationPlan is advisory metadata for operations tooling. Nothing on the
// execution path reads or gates on it.
type RotationPlan struct {
	ID        string
	Entries   []PlanEntry
	Objective float64
	BuiltAt   time.Time
}

// EpochHint is the only thing the planner publishes toward the attestation
// side: which epoch a signer should move to, and not before when.
type EpochHint struct {
	SignerID    string
	TargetEpoch uint64
	NotBefore   time.Time
}
