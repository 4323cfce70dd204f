package filter

import (
	"github.com/me/qcal/pkg/model"
)

// CandidateQubitFilter keeps pairs whose both endpoints are in the explicit
// allow-list. A nil allow-list keeps everything.
type CandidateQubitFilter struct{}

func (CandidateQubitFilter) Name() string { return "candidate_qubit" }

func (CandidateQubitFilter) Apply(pairs []model.CRPair, ctx *Context) []model.CRPair {
	if ctx.Allowed == nil {
		return pairs
	}
	out := pairs[:0:0]
	for _, p := range pairs {
		if ctx.Allowed[p.Control] && ctx.Allowed[p.Target] {
			out = append(out, p)
		}
	}
	return out
}

// GroupMembershipFilter drops pairs where either endpoint is absent from the
// qubit→group map. Guards against candidates referencing stale topology.
type GroupMembershipFilter struct{}

func (GroupMembershipFilter) Name() string { return "group_membership" }

func (GroupMembershipFilter) Apply(pairs []model.CRPair, ctx *Context) []model.CRPair {
	out := pairs[:0:0]
	for _, p := range pairs {
		if _, ok := ctx.Groups[p.Control]; !ok {
			continue
		}
		if _, ok := ctx.Groups[p.Target]; !ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// DirectionPolicy selects which endpoint of a pair becomes the control qubit.
type DirectionPolicy string

const (
	// LowerFrequencyControl makes the lower-design-frequency qubit control.
	LowerFrequencyControl DirectionPolicy = "lower_control"
	// HigherFrequencyControl makes the higher-design-frequency qubit control.
	HigherFrequencyControl DirectionPolicy = "higher_control"
)

// FrequencyDirectionalityFilter orients each pair so the control/target
// assignment is consistent with the design-frequency rule. Pairs with missing
// frequency data are dropped; equal frequencies fall back to lexicographic
// order so the result stays deterministic.
type FrequencyDirectionalityFilter struct {
	Policy DirectionPolicy
}

func (FrequencyDirectionalityFilter) Name() string { return "frequency_directionality" }

func (f FrequencyDirectionalityFilter) Apply(pairs []model.CRPair, ctx *Context) []model.CRPair {
	out := pairs[:0:0]
	for _, p := range pairs {
		fc := ctx.QubitMeta[p.Control].Frequency
		ft := ctx.QubitMeta[p.Target].Frequency
		if fc == nil || ft == nil {
			continue
		}

		oriented := p
		switch {
		case *fc == *ft:
			if p.Target < p.Control {
				oriented = p.Reversed()
			}
		case f.Policy == HigherFrequencyControl:
			if *fc < *ft {
				oriented = p.Reversed()
			}
		default: // LowerFrequencyControl
			if *fc > *ft {
				oriented = p.Reversed()
			}
		}
		out = append(out, oriented)
	}
	return out
}

// FidelityFilter drops pairs whose last-known gate fidelity is strictly below
// Threshold. A fidelity exactly at the threshold is retained. Pairs with no
// recorded fidelity pass: they have never been calibrated and are exactly the
// ones that need scheduling.
type FidelityFilter struct {
	Threshold float64
}

func (FidelityFilter) Name() string { return "fidelity" }

func (f FidelityFilter) Apply(pairs []model.CRPair, ctx *Context) []model.CRPair {
	out := pairs[:0:0]
	for _, p := range pairs {
		fid, ok := ctx.CouplingFidelity[model.EdgeKey(p.Control, p.Target)]
		if ok && fid < f.Threshold {
			continue
		}
		out = append(out, p)
	}
	return out
}
