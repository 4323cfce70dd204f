package model

import (
	"testing"
	"time"
)

func TestFormatExecutionID(t *testing.T) {
	date := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		index int
		want  string
	}{
		{0, "20260828-000"},
		{7, "20260828-007"},
		{42, "20260828-042"},
		{999, "20260828-999"},
	}

	for _, c := range cases {
		if got := FormatExecutionID(date, c.index); got != c.want {
			t.Errorf("FormatExecutionID(%d) = %q, want %q", c.index, got, c.want)
		}
	}
}

func TestCounterKeyFor(t *testing.T) {
	date := time.Date(2026, 8, 28, 23, 59, 0, 0, time.UTC)
	key := CounterKeyFor(date, "alice", "chip64", "proj-1")

	want := CounterKey{Date: "20260828", Username: "alice", ChipID: "chip64", ProjectID: "proj-1"}
	if key != want {
		t.Errorf("CounterKeyFor = %+v, want %+v", key, want)
	}
}

func TestEdgeKey(t *testing.T) {
	if EdgeKey("Q01", "Q02") != EdgeKey("Q02", "Q01") {
		t.Error("EdgeKey must be direction-insensitive")
	}
	if EdgeKey("Q01", "Q02") != "Q01:Q02" {
		t.Errorf("EdgeKey = %q, want Q01:Q02", EdgeKey("Q01", "Q02"))
	}
}
