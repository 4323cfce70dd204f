package sched

import (
	"fmt"
	"sort"

	"github.com/me/qcal/pkg/model"
)

// ScheduleContext carries the read-only constraints for one scheduling call.
type ScheduleContext struct {
	// MaxParallelOps caps how many pairs one stage may carry. Zero means
	// unlimited.
	MaxParallelOps int

	// Channels maps each qubit to the channel boxes serving it. Nil disables
	// shared-channel conflict detection.
	Channels map[model.QubitID][]string

	// Groups maps each qubit to its MUX group. Required by the
	// intra-then-inter strategy.
	Groups map[model.QubitID]model.GroupID
}

// Strategy produces conflict-free stages from a filtered candidate set.
type Strategy interface {
	Name() string
	Generate(pairs []model.CRPair, ctx *ScheduleContext) ([]model.StageResult, error)
}

// Generate runs the strategy and assembles the final ScheduleResult with
// renumbered stage indices. A candidate set that yields no stages is a
// SchedulingError: the caller gets it before any execution starts.
func Generate(pairs []model.CRPair, ctx *ScheduleContext, strategy Strategy) (*model.ScheduleResult, error) {
	if len(pairs) == 0 {
		return nil, &model.SchedulingError{Reason: "no schedulable pairs after filtering"}
	}

	stages, err := strategy.Generate(pairs, ctx)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, &model.SchedulingError{Reason: "strategy produced no stages"}
	}

	for i := range stages {
		stages[i].Index = i
	}
	return &model.ScheduleResult{
		Strategy: strategy.Name(),
		Stages:   stages,
	}, nil
}

// HeuristicDSATUR is the saturation-degree coloring heuristic.
const HeuristicDSATUR = "dsatur"

// StrategyByName resolves a flow-declared strategy name. Empty selects the
// base mux_conflict strategy.
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case "", "mux_conflict":
		return MuxConflictScheduler{}, nil
	case "intra_then_inter":
		return IntraThenInterGroupScheduler{}, nil
	default:
		return nil, &model.SchedulingError{Reason: fmt.Sprintf("unknown strategy %q", name)}
	}
}

// MuxConflictScheduler is the base coloring strategy: it builds the conflict
// graph (shared qubit, shared channel) and colors it; color classes become
// stages. Stage contents are sorted by pair key, and classes larger than
// MaxParallelOps split into consecutive sub-stages in that order.
type MuxConflictScheduler struct {
	// Heuristic names the coloring heuristic. Empty selects DSATUR.
	Heuristic string
}

func (s MuxConflictScheduler) Name() string { return "mux_conflict" }

func (s MuxConflictScheduler) Generate(pairs []model.CRPair, ctx *ScheduleContext) ([]model.StageResult, error) {
	if s.Heuristic != "" && s.Heuristic != HeuristicDSATUR {
		return nil, &model.SchedulingError{Reason: fmt.Sprintf("unknown coloring heuristic %q", s.Heuristic)}
	}

	g := buildConflictGraph(pairs, ctx.Channels)
	classes := colorDSATUR(g)

	var stages []model.StageResult
	for _, class := range classes {
		members := make([]model.CRPair, len(class))
		for i, v := range class {
			members[i] = g.pairs[v]
		}
		sort.Slice(members, func(i, j int) bool {
			return members[i].Key() < members[j].Key()
		})

		for _, chunk := range splitStage(members, ctx.MaxParallelOps) {
			stages = append(stages, model.StageResult{Pairs: chunk})
		}
	}
	return stages, nil
}

// splitStage chunks an oversized color class into consecutive sub-stages,
// preserving the sorted pair-key order. max <= 0 means no cap.
func splitStage(pairs []model.CRPair, max int) [][]model.CRPair {
	if max <= 0 || len(pairs) <= max {
		return [][]model.CRPair{pairs}
	}
	var chunks [][]model.CRPair
	for start := 0; start < len(pairs); start += max {
		end := start + max
		if end > len(pairs) {
			end = len(pairs)
		}
		chunks = append(chunks, pairs[start:end])
	}
	return chunks
}

// IntraThenInterGroupScheduler emits all stages for pairs whose endpoints
// share a MUX group first, then delegates the remaining cross-group pairs to
// the inner strategy and concatenates the stage lists. Intra-group operations
// are cheap and should not queue behind cross-group scheduling.
type IntraThenInterGroupScheduler struct {
	Inner Strategy
}

func (s IntraThenInterGroupScheduler) Name() string {
	return "intra_then_inter(" + s.inner().Name() + ")"
}

func (s IntraThenInterGroupScheduler) inner() Strategy {
	if s.Inner != nil {
		return s.Inner
	}
	return MuxConflictScheduler{}
}

func (s IntraThenInterGroupScheduler) Generate(pairs []model.CRPair, ctx *ScheduleContext) ([]model.StageResult, error) {
	if ctx.Groups == nil {
		return nil, &model.SchedulingError{Reason: "intra_then_inter requires a qubit→group map"}
	}

	var intra, inter []model.CRPair
	for _, p := range pairs {
		gc, okC := ctx.Groups[p.Control]
		gt, okT := ctx.Groups[p.Target]
		if okC && okT && gc == gt {
			intra = append(intra, p)
		} else {
			inter = append(inter, p)
		}
	}

	var stages []model.StageResult
	if len(intra) > 0 {
		intraStages, err := s.inner().Generate(intra, ctx)
		if err != nil {
			return nil, fmt.Errorf("intra-group stages: %w", err)
		}
		stages = append(stages, intraStages...)
	}
	if len(inter) > 0 {
		interStages, err := s.inner().Generate(inter, ctx)
		if err != nil {
			return nil, fmt.Errorf("inter-group stages: %w", err)
		}
		stages = append(stages, interStages...)
	}
	return stages, nil
}
