package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/me/qcal/internal/logging"
	"github.com/me/qcal/pkg/model"
)

func f64(v float64) *float64 { return &v }

func pair(c, t model.QubitID) model.CRPair {
	return model.CRPair{Control: c, Target: t}
}

func testContext() *Context {
	return &Context{
		Groups: map[model.QubitID]model.GroupID{
			"Q00": 0, "Q01": 0, "Q02": 1, "Q03": 1,
		},
		QubitMeta: map[model.QubitID]model.QubitMeta{
			"Q00": {Frequency: f64(7.2)},
			"Q01": {Frequency: f64(7.8)},
			"Q02": {Frequency: f64(7.5)},
			"Q03": {}, // missing frequency
		},
		CouplingFidelity: map[string]float64{},
	}
}

func TestCandidateQubitFilter(t *testing.T) {
	ctx := testContext()
	pairs := []model.CRPair{pair("Q00", "Q01"), pair("Q01", "Q02"), pair("Q02", "Q03")}

	// Nil allow-list keeps everything.
	got := CandidateQubitFilter{}.Apply(pairs, ctx)
	if len(got) != 3 {
		t.Errorf("nil allow-list: kept %d pairs, want 3", len(got))
	}

	ctx.Allowed = map[model.QubitID]bool{"Q00": true, "Q01": true, "Q02": true}
	got = CandidateQubitFilter{}.Apply(pairs, ctx)
	want := []model.CRPair{pair("Q00", "Q01"), pair("Q01", "Q02")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("allow-list mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupMembershipFilter(t *testing.T) {
	ctx := testContext()
	pairs := []model.CRPair{pair("Q00", "Q01"), pair("Q01", "Q99"), pair("Q99", "Q00")}

	got := GroupMembershipFilter{}.Apply(pairs, ctx)
	want := []model.CRPair{pair("Q00", "Q01")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestFrequencyDirectionalityFilter(t *testing.T) {
	ctx := testContext()
	// Q00=7.2, Q01=7.8, Q02=7.5, Q03=missing.
	pairs := []model.CRPair{
		pair("Q01", "Q00"), // wrong way for lower-control
		pair("Q00", "Q02"), // already correct
		pair("Q02", "Q03"), // missing frequency → dropped
	}

	got := FrequencyDirectionalityFilter{Policy: LowerFrequencyControl}.Apply(pairs, ctx)
	want := []model.CRPair{pair("Q00", "Q01"), pair("Q00", "Q02")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lower-control mismatch (-want +got):\n%s", diff)
	}

	got = FrequencyDirectionalityFilter{Policy: HigherFrequencyControl}.Apply(pairs, ctx)
	want = []model.CRPair{pair("Q01", "Q00"), pair("Q02", "Q00")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("higher-control mismatch (-want +got):\n%s", diff)
	}
}

func TestFrequencyDirectionalityEqualFrequencies(t *testing.T) {
	ctx := testContext()
	ctx.QubitMeta["Q01"] = model.QubitMeta{Frequency: f64(7.2)} // equal to Q00

	got := FrequencyDirectionalityFilter{Policy: LowerFrequencyControl}.Apply(
		[]model.CRPair{pair("Q01", "Q00")}, ctx)
	want := []model.CRPair{pair("Q00", "Q01")} // lexicographic fallback
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("equal-frequency mismatch (-want +got):\n%s", diff)
	}
}

// TestFidelityFilterBoundary asserts both directions of the threshold rule:
// strictly below T is removed, exactly T is retained.
func TestFidelityFilterBoundary(t *testing.T) {
	const threshold = 0.95
	ctx := testContext()
	ctx.CouplingFidelity = map[string]float64{
		model.EdgeKey("Q00", "Q01"): 0.9499, // below → removed
		model.EdgeKey("Q01", "Q02"): 0.95,   // exactly at → retained
		model.EdgeKey("Q02", "Q03"): 0.99,   // above → retained
	}
	pairs := []model.CRPair{
		pair("Q00", "Q01"),
		pair("Q01", "Q02"),
		pair("Q02", "Q03"),
		pair("Q00", "Q03"), // no recorded fidelity → retained
	}

	got := FidelityFilter{Threshold: threshold}.Apply(pairs, ctx)
	want := []model.CRPair{pair("Q01", "Q02"), pair("Q02", "Q03"), pair("Q00", "Q03")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineStats(t *testing.T) {
	ctx := testContext()
	ctx.Allowed = map[model.QubitID]bool{"Q00": true, "Q01": true, "Q02": true}
	ctx.CouplingFidelity = map[string]float64{
		model.EdgeKey("Q00", "Q02"): 0.5,
	}

	pipeline := NewPipeline(logging.Discard(),
		CandidateQubitFilter{},
		GroupMembershipFilter{},
		FrequencyDirectionalityFilter{Policy: LowerFrequencyControl},
		FidelityFilter{Threshold: 0.9},
	)

	pairs := []model.CRPair{
		pair("Q01", "Q00"),
		pair("Q00", "Q02"), // dropped by fidelity
		pair("Q02", "Q03"), // dropped by allow-list
		pair("Q00", "Q99"), // dropped by allow-list
	}

	got, stats := pipeline.Run(pairs, ctx)

	want := []model.CRPair{pair("Q00", "Q01")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}

	wantStats := []model.FilterStat{
		{Name: "candidate_qubit", InputCount: 4, OutputCount: 2},
		{Name: "group_membership", InputCount: 2, OutputCount: 2},
		{Name: "frequency_directionality", InputCount: 2, OutputCount: 2},
		{Name: "fidelity", InputCount: 2, OutputCount: 1},
	}
	if diff := cmp.Diff(wantStats, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}
