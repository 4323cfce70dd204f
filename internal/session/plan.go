package session

import (
	"log/slog"

	"github.com/me/qcal/internal/config"
	"github.com/me/qcal/internal/filter"
	"github.com/me/qcal/internal/sched"
	"github.com/me/qcal/pkg/model"
)

// BuildCouplingPlan runs the standard filter pipeline over a topology's
// candidate pairs and generates the staged coupling plan. targets restricts
// the candidate set; nil means every qubit on the chip.
func BuildCouplingPlan(topo *model.Topology, targets []model.QubitID, strategyName string, cfg config.EngineConfig, logger *slog.Logger) (*model.ScheduleResult, error) {
	strategy, err := sched.StrategyByName(strategyName)
	if err != nil {
		return nil, err
	}

	pipeline := filter.NewPipeline(logger,
		filter.CandidateQubitFilter{},
		filter.GroupMembershipFilter{},
		filter.FrequencyDirectionalityFilter{Policy: filter.LowerFrequencyControl},
		filter.FidelityFilter{Threshold: cfg.FidelityThreshold},
	)
	pairs, stats := pipeline.Run(topo.CandidatePairs(), filter.NewContext(topo, targets))

	result, err := sched.Generate(pairs, &sched.ScheduleContext{
		MaxParallelOps: cfg.MaxParallelOps,
		Channels:       topo.ChannelMap(),
		Groups:         topo.Groups,
	}, strategy)
	if err != nil {
		return nil, err
	}
	result.FilterStats = stats
	return result, nil
}

// BuildOneQubitPlan stages single-qubit calibration under shared-box
// contention. targets nil means every qubit on the chip.
func BuildOneQubitPlan(topo *model.Topology, targets []model.QubitID) (*model.OneQubitScheduleResult, error) {
	if targets == nil {
		targets = topo.Qubits
	}
	return sched.GenerateOneQubit(targets, topo.ChannelMap())
}
