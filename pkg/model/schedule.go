package model

// FilterStat records input/output pair counts for one filter application,
// in pipeline order.
type FilterStat struct {
	Name        string `json:"name"`
	InputCount  int    `json:"input_count"`
	OutputCount int    `json:"output_count"`
}

// StageResult is one ordered group of non-conflicting coupling operations.
// Within a stage no two pairs share a qubit, and no two pairs share a channel
// when channel data was supplied to the scheduler.
type StageResult struct {
	Index int      `json:"index"`
	Pairs []CRPair `json:"pairs"`
}

// ScheduleResult is a full staged plan for coupling calibration, plus the
// filter statistics gathered while building the candidate set.
type ScheduleResult struct {
	Strategy    string        `json:"strategy"`
	Stages      []StageResult `json:"stages"`
	FilterStats []FilterStat  `json:"filter_stats,omitempty"`
}

// PairCount returns the total number of pairs across all stages.
func (r *ScheduleResult) PairCount() int {
	n := 0
	for _, st := range r.Stages {
		n += len(st.Pairs)
	}
	return n
}

// OneQubitStageInfo is one stage of single-qubit calibration: the qubits it
// runs and the channel class they were partitioned into.
type OneQubitStageInfo struct {
	StageIndex   int       `json:"stage_index"`
	Qubits       []QubitID `json:"qubits"`
	ChannelClass string    `json:"channel_class"`
}

// OneQubitScheduleResult is the staged plan for single-qubit calibration
// under shared-box contention.
type OneQubitScheduleResult struct {
	Stages []OneQubitStageInfo `json:"stages"`
}
