package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"settlegate/internal/domain"
	"settlegate/internal/usecase"
)

type nodeFile struct {
	SignerID         string    `json:"signer_id"`
	Tier             int       `json:"tier"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
	DowntimeBudgetMS int64     `json:"downtime_budget_ms"`
	DependsOn        []string  `json:"depends_on"`
}

type planFile struct {
	PlanID    string          `json:"plan_id"`
	Entries   []planFileEntry `json:"entries"`
	Objective float64         `json:"objective"`
	BuiltAt   time.Time       `json:"built_at"`
}

type planFileEntry struct {
	SignerID    string    `json:"signer_id"`
	TargetEpoch uint64    `json:"target_epoch"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

func runPlanBuild(args []string) int {
	fs := flag.NewFlagSet("plan build", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var nodesPath string
	var outPath string
	var horizonStart string
	var horizonEnd string
	var baseEpoch uint64

	fs.StringVar(&nodesPath, "nodes", "", "rotation nodes JSON path")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	fs.StringVar(&horizonStart, "horizon-start", "", "plan horizon start (RFC 3339)")
	fs.StringVar(&horizonEnd, "horizon-end", "", "plan horizon end (RFC 3339)")
	fs.Uint64Var(&baseEpoch, "base-epoch", 0, "current key epoch")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if nodesPath == "" || horizonStart == "" || horizonEnd == "" {
		fmt.Fprintln(os.Stderr, "plan build requires --nodes, --horizon-start and --horizon-end")
		return 1
	}

	start, err := time.Parse(time.RFC3339, horizonStart)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse horizon start: %v\n", err)
		return 1
	}
	end, err := time.Parse(time.RFC3339, horizonEnd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse horizon end: %v\n", err)
		return 1
	}

	nodeBytes, err := os.ReadFile(nodesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read nodes: %v\n", err)
		return 1
	}
	var fileNodes []nodeFile
	if err := json.Unmarshal(nodeBytes, &fileNodes); err != nil {
		fmt.Fprintf(os.Stderr, "decode nodes: %v\n", err)
		return 1
	}
	nodes := make([]domain.RotationNode, 0, len(fileNodes))
	for _, n := range fileNodes {
		nodes = append(nodes, domain.RotationNode{
			SignerID:       n.SignerID,
			Tier:           n.Tier,
			Window:         domain.RotationWindow{Start: n.WindowStart, End: n.WindowEnd},
			DowntimeBudget: time.Duration(n.DowntimeBudgetMS) * time.Millisecond,
			DependsOn:      n.DependsOn,
		})
	}

	planner := usecase.NewRotationPlanner(usecase.GreedySolver{}, nil)
	plan, err := planner.BuildPlan(nodes, domain.PlanConstraints{
		Horizon:   domain.RotationWindow{Start: start, End: end},
		BaseEpoch: baseEpoch,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "build plan: %v\n", err)
		return 1
	}

	out := planFile{
		PlanID:    plan.ID,
		Objective: plan.Objective,
		BuiltAt:   plan.BuiltAt,
	}
	for _, entry := range plan.Entries {
		out.Entries = append(out.Entries, planFileEntry{
			SignerID:    entry.SignerID,
			TargetEpoch: entry.TargetEpoch,
			ScheduledAt: entry.ScheduledAt,
		})
	}
	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal plan: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
