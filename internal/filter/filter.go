// Package filter builds the candidate CR-pair set for scheduling. Filters
// compose left-to-right in a Pipeline; each reports input/output counts for
// observability.
package filter

import (
	"log/slog"

	"github.com/me/qcal/pkg/model"
)

// Context is the read-only scheduling input shared by all filters in one
// pipeline run. Constructed once per scheduling call.
type Context struct {
	// Allowed is the explicit candidate allow-list. Nil disables the
	// CandidateQubitFilter check (all qubits allowed).
	Allowed map[model.QubitID]bool

	// Groups maps each qubit to its MUX group.
	Groups map[model.QubitID]model.GroupID

	// QubitMeta carries design frequency and last-fidelity per qubit.
	QubitMeta map[model.QubitID]model.QubitMeta

	// CouplingFidelity is last-known two-qubit gate fidelity keyed by
	// model.EdgeKey.
	CouplingFidelity map[string]float64
}

// NewContext builds a Context from a topology snapshot. allowed may be nil.
func NewContext(topo *model.Topology, allowed []model.QubitID) *Context {
	ctx := &Context{
		Groups:           topo.Groups,
		QubitMeta:        topo.QubitMeta,
		CouplingFidelity: topo.CouplingFidelity,
	}
	if allowed != nil {
		ctx.Allowed = make(map[model.QubitID]bool, len(allowed))
		for _, q := range allowed {
			ctx.Allowed[q] = true
		}
	}
	return ctx
}

// Filter transforms a candidate pair list. Implementations must be pure:
// no hidden state, same output for same input.
type Filter interface {
	Name() string
	Apply(pairs []model.CRPair, ctx *Context) []model.CRPair
}

// Pipeline composes filters left-to-right.
type Pipeline struct {
	filters []Filter
	logger  *slog.Logger
}

// NewPipeline creates a Pipeline running the given filters in order.
func NewPipeline(logger *slog.Logger, filters ...Filter) *Pipeline {
	return &Pipeline{
		filters: filters,
		logger:  logger.With("component", "filter-pipeline"),
	}
}

// Run applies every filter in order and returns the surviving pairs together
// with per-filter statistics.
func (p *Pipeline) Run(pairs []model.CRPair, ctx *Context) ([]model.CRPair, []model.FilterStat) {
	stats := make([]model.FilterStat, 0, len(p.filters))

	for _, f := range p.filters {
		in := len(pairs)
		pairs = f.Apply(pairs, ctx)
		stat := model.FilterStat{Name: f.Name(), InputCount: in, OutputCount: len(pairs)}
		stats = append(stats, stat)
		p.logger.Debug("filter applied", "filter", stat.Name, "in", stat.InputCount, "out", stat.OutputCount)
	}

	return pairs, stats
}
