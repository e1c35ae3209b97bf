package usecase

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"settlegate/internal/domain"
)

// Solver orders validated rotation nodes into plan entries. Implementations
// may optimize however they like; the planner has already guaranteed the
// input is structurally sound and acyclic.
type Solver interface {
	Solve(nodes []domain.RotationNode, constraints domain.PlanConstraints) ([]domain.PlanEntry, float64, error)
}

// GreedySolver schedules each node at the start of its own window, ordered
// by tier, then window start, then signer id. The objective is plan size:
// every node the constraints admit gets an entry.
type GreedySolver struct{}

func (GreedySolver) Solve(nodes []domain.RotationNode, constraints domain.PlanConstraints) ([]domain.PlanEntry, float64, error) {
	ordered := make([]domain.RotationNode, len(nodes))
	copy(ordered, nodes)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Tier != ordered[j].Tier {
			return ordered[i].Tier < ordered[j].Tier
		}
		if !ordered[i].Window.Start.Equal(ordered[j].Window.Start) {
			return ordered[i].Window.Start.Before(ordered[j].Window.Start)
		}
		return ordered[i].SignerID < ordered[j].SignerID
	})

	entries := make([]domain.PlanEntry, 0, len(ordered))
	for _, node := range ordered {
		entries = append(entries, domain.PlanEntry{
			SignerID:    node.SignerID,
			TargetEpoch: constraints.BaseEpoch + 1,
			ScheduledAt: node.Window.Start,
			Window:      node.Window,
		})
	}
	return entries, float64(len(entries)), nil
}

// RotationPlanner builds advisory key-rotation plans. The plan never gates
// submission; its only coupling to the signing side is the epoch hints it
// publishes, which custody applies on its own schedule.
type RotationPlanner struct {
	Solver Solver
	Clock  Clock
}

func NewRotationPlanner(solver Solver, clock Clock) *RotationPlanner {
	return &RotationPlanner{Solver: solver, Clock: clock}
}

// BuildPlan validates the node set, rejects dependency cycles, and hands the
// remainder to the solver. Any defect fails the whole plan; a partial plan
// is worse than none because operators would act on it.
func (p *RotationPlanner) BuildPlan(nodes []domain.RotationNode, constraints domain.PlanConstraints) (domain.RotationPlan, error) {
	if err := validateNodes(nodes, constraints); err != nil {
		return domain.RotationPlan{}, err
	}
	if err := detectCycles(nodes); err != nil {
		return domain.RotationPlan{}, err
	}

	entries, objective, err := p.Solver.Solve(nodes, constraints)
	if err != nil {
		return domain.RotationPlan{}, fmt.Errorf("solve rotation plan: %w", err)
	}
	return domain.RotationPlan{
		ID:        uuid.NewString(),
		Entries:   entries,
		Objective: objective,
		BuiltAt:   p.now().UTC(),
	}, nil
}

// EpochHints projects a plan into the hints the key manager consumes.
func EpochHints(plan domain.RotationPlan) []domain.EpochHint {
	hints := make([]domain.EpochHint, 0, len(plan.Entries))
	for _, entry := range plan.Entries {
		hints = append(hints, domain.EpochHint{
			SignerID:    entry.SignerID,
			TargetEpoch: entry.TargetEpoch,
			NotBefore:   entry.ScheduledAt,
		})
	}
	return hints
}

func validateNodes(nodes []domain.RotationNode, constraints domain.PlanConstraints) error {
	if len(nodes) == 0 {
		return fmt.Errorf("%w: rotation plan requires at least one node", domain.ErrStructural)
	}
	if !constraints.Horizon.Start.Before(constraints.Horizon.End) {
		return fmt.Errorf("%w: plan horizon start must precede end", domain.ErrStructural)
	}
	seen := make(map[string]struct{}, len(nodes))
	for _, node := range nodes {
		if node.SignerID == "" {
			return fmt.Errorf("%w: rotation node missing signer id", domain.ErrStructural)
		}
		if _, dup := seen[node.SignerID]; dup {
			return fmt.Errorf("%w: duplicate rotation node %q", domain.ErrStructural, node.SignerID)
		}
		seen[node.SignerID] = struct{}{}
		if node.Tier < 0 {
			return fmt.Errorf("%w: node %q has negative tier", domain.ErrStructural, node.SignerID)
		}
		if !node.Window.Start.Before(node.Window.End) {
			return fmt.Errorf("%w: node %q window start must precede end", domain.ErrStructural, node.SignerID)
		}
		if node.DowntimeBudget < 0 {
			return fmt.Errorf("%w: node %q has negative downtime budget", domain.ErrStructural, node.SignerID)
		}
		if !constraints.Horizon.Contains(node.Window) {
			return fmt.Errorf("%w: node %q window falls outside plan horizon", domain.ErrStructural, node.SignerID)
		}
	}
	for _, node := range nodes {
		for _, dep := range node.DependsOn {
			if dep == node.SignerID {
				return fmt.Errorf("%w: node %q depends on itself", domain.ErrStructural, node.SignerID)
			}
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("%w: node %q depends on unknown signer %q", domain.ErrStructural, node.SignerID, dep)
			}
		}
	}
	return nil
}

func detectCycles(nodes []domain.RotationNode) error {
	deps := make(map[string][]string, len(nodes))
	for _, node := range nodes {
		deps[node.SignerID] = node.DependsOn
	}

	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(nodes))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case onStack:
			return fmt.Errorf("%w: rotation dependency cycle through %q", domain.ErrDependencyCycle, id)
		}
		state[id] = onStack
		for _, dep := range deps[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	// Sorted traversal keeps the reported cycle member deterministic.
	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.SignerID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

func (p *RotationPlanner) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}
