package sched

import (
	"fmt"
	"sort"
	"strings"

	"github.com/me/qcal/pkg/model"
)

// GenerateOneQubit produces the staged single-qubit plan under shared-box
// contention. Qubits partition into labelled classes by the exact set of
// channels they depend on: qubits served by one box form that box's class and
// run together (a box drives its own qubits concurrently), while qubits
// spanning several boxes form "mixed" classes that run in their own stages so
// they never contend with a single-box stage holding one of their channels.
//
// Single-channel classes come first in channel-id order, then mixed classes.
// Pure function of the inputs; identical calls yield identical plans.
func GenerateOneQubit(qubits []model.QubitID, channels map[model.QubitID][]string) (*model.OneQubitScheduleResult, error) {
	if len(qubits) == 0 {
		return nil, &model.SchedulingError{Reason: "no qubits to schedule"}
	}

	classes := make(map[string][]model.QubitID)
	for _, q := range qubits {
		deps := channels[q]
		if len(deps) == 0 {
			return nil, &model.SchedulingError{
				Reason: fmt.Sprintf("qubit %s has no channel assignment", q),
			}
		}
		label := classLabel(deps)
		classes[label] = append(classes[label], q)
	}

	labels := make([]string, 0, len(classes))
	for label := range classes {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		mi, mj := strings.HasPrefix(labels[i], "mixed("), strings.HasPrefix(labels[j], "mixed(")
		if mi != mj {
			return !mi
		}
		return labels[i] < labels[j]
	})

	result := &model.OneQubitScheduleResult{}
	for i, label := range labels {
		members := classes[label]
		sort.Slice(members, func(a, b int) bool { return members[a] < members[b] })
		result.Stages = append(result.Stages, model.OneQubitStageInfo{
			StageIndex:   i,
			Qubits:       members,
			ChannelClass: label,
		})
	}
	return result, nil
}

// classLabel names a channel-dependency class: the channel id for
// single-channel qubits, "mixed(a+b)" for qubits spanning several boxes.
func classLabel(deps []string) string {
	sorted := append([]string(nil), deps...)
	sort.Strings(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	return "mixed(" + strings.Join(sorted, "+") + ")"
}
