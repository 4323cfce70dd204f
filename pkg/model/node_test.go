package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestScheduleNodeUnmarshalYAML(t *testing.T) {
	src := `
serial:
  - parallel: [Q00, Q01]
  - batch: [Q00, Q01]
  - Q02
`
	var node ScheduleNode
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	want := Serial(
		Parallel(Leaf("Q00"), Leaf("Q01")),
		Batch("Q00", "Q01"),
		Leaf("Q02"),
	)
	if diff := cmp.Diff(want, &node); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduleNodeUnmarshalErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"unknown kind", "sequential: [Q00]"},
		{"two keys", "serial: [Q00]\nparallel: [Q01]"},
		{"empty serial", "serial: []"},
		{"empty batch", "batch: []"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var node ScheduleNode
			if err := yaml.Unmarshal([]byte(c.src), &node); err == nil {
				t.Errorf("Unmarshal(%q): expected error, got node %+v", c.src, node)
			}
		})
	}
}

func TestScheduleNodeFlatten(t *testing.T) {
	tree := Serial(
		Parallel(Leaf("Q00"), Leaf("Q01")),
		Batch("Q02", "Q03"),
	)
	got := tree.Flatten()
	want := []QubitID{"Q00", "Q01", "Q02", "Q03"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Flatten mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduleNodeValidateCoverage(t *testing.T) {
	targets := []QubitID{"Q00", "Q01", "Q02"}

	ok := Serial(Leaf("Q00"), Parallel(Leaf("Q01"), Leaf("Q02")))
	if err := ok.ValidateCoverage(targets); err != nil {
		t.Errorf("exact coverage should validate: %v", err)
	}

	missing := Serial(Leaf("Q00"), Leaf("Q01"))
	if err := missing.ValidateCoverage(targets); err == nil {
		t.Error("missing target should fail validation")
	}

	duplicated := Serial(Leaf("Q00"), Leaf("Q00"), Leaf("Q01"), Leaf("Q02"))
	if err := duplicated.ValidateCoverage(targets); err == nil {
		t.Error("duplicated target should fail validation")
	}

	unknown := Serial(Leaf("Q00"), Leaf("Q01"), Leaf("Q02"), Leaf("Q99"))
	if err := unknown.ValidateCoverage(targets); err == nil {
		t.Error("undeclared target should fail validation")
	}
}
