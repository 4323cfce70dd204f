package model

import (
	"sort"
	"strings"
	"time"
)

// QubitID identifies a single lattice site. IDs come from the topology
// snapshot and are treated as opaque strings (e.g. "Q05").
type QubitID string

// GroupID identifies a MUX group: a cluster of co-located qubits that share
// readout hardware.
type GroupID int

// Channel is a physical control/readout box serving one or more qubits.
type Channel struct {
	ID     string    `json:"id" yaml:"id"`
	Qubits []QubitID `json:"qubits" yaml:"qubits"`
}

// CRPair is a candidate two-qubit coupling with a control/target direction.
type CRPair struct {
	Control QubitID `json:"control" yaml:"control"`
	Target  QubitID `json:"target" yaml:"target"`
}

// Key returns a stable direction-sensitive identifier for the pair, used for
// deterministic ordering, logging, and history records.
func (p CRPair) Key() string {
	return string(p.Control) + "-" + string(p.Target)
}

// Reversed returns the pair with control and target swapped.
func (p CRPair) Reversed() CRPair {
	return CRPair{Control: p.Target, Target: p.Control}
}

// SharesQubit reports whether the two pairs have an endpoint in common.
func (p CRPair) SharesQubit(q CRPair) bool {
	return p.Control == q.Control || p.Control == q.Target ||
		p.Target == q.Control || p.Target == q.Target
}

// EdgeKey returns a direction-insensitive identifier for a coupling between
// two qubits. Used to key per-coupling metadata.
func EdgeKey(a, b QubitID) string {
	if b < a {
		a, b = b, a
	}
	return string(a) + ":" + string(b)
}

// JoinQubits renders a qubit list as the comma-joined target string used on
// batch TaskInstances.
func JoinQubits(qubits []QubitID) string {
	parts := make([]string, len(qubits))
	for i, q := range qubits {
		parts[i] = string(q)
	}
	return strings.Join(parts, ",")
}

// QubitMeta carries per-qubit calibration metadata from the topology snapshot.
type QubitMeta struct {
	// Frequency is the design frequency in GHz. Nil when unknown.
	Frequency *float64 `json:"frequency,omitempty" yaml:"frequency,omitempty"`

	// Fidelity is the last-known single-qubit gate fidelity. Nil when the
	// qubit has never been calibrated.
	Fidelity *float64 `json:"fidelity,omitempty" yaml:"fidelity,omitempty"`

	LastCalibrated *time.Time `json:"last_calibrated,omitempty" yaml:"last_calibrated,omitempty"`
}

// Topology is a read-only snapshot of the chip layout: qubits, MUX groups,
// channel boxes, and calibration metadata. Constructed once per scheduling
// call and never mutated by the core.
type Topology struct {
	ChipID   string              `json:"chip_id" yaml:"chip_id"`
	Qubits   []QubitID           `json:"qubits" yaml:"qubits"`
	Groups   map[QubitID]GroupID `json:"groups" yaml:"groups"`
	Channels []Channel           `json:"channels" yaml:"channels"`

	// Couplings lists the physical two-qubit couplings as EdgeKeys ("A:B").
	Couplings []string `json:"couplings" yaml:"couplings"`

	QubitMeta map[QubitID]QubitMeta `json:"qubit_meta" yaml:"qubit_meta"`

	// CouplingFidelity is the last-known two-qubit gate fidelity keyed by
	// EdgeKey. Absent entries mean the coupling was never calibrated.
	CouplingFidelity map[string]float64 `json:"coupling_fidelity" yaml:"coupling_fidelity"`
}

// CandidatePairs returns one CRPair per physical coupling, in edge-key
// orientation and sorted by pair key. The filter pipeline settles the final
// control/target direction and eligibility.
func (t *Topology) CandidatePairs() []CRPair {
	var pairs []CRPair
	for _, key := range t.Couplings {
		a, b, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		pairs = append(pairs, CRPair{Control: QubitID(a), Target: QubitID(b)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Key() < pairs[j].Key()
	})
	return pairs
}

// ChannelsOf returns the sorted IDs of all channels serving the given qubit.
func (t *Topology) ChannelsOf(q QubitID) []string {
	var ids []string
	for _, ch := range t.Channels {
		for _, member := range ch.Qubits {
			if member == q {
				ids = append(ids, ch.ID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// ChannelMap builds a qubit → channel IDs lookup for the whole topology.
func (t *Topology) ChannelMap() map[QubitID][]string {
	m := make(map[QubitID][]string, len(t.Qubits))
	for _, ch := range t.Channels {
		for _, q := range ch.Qubits {
			m[q] = append(m[q], ch.ID)
		}
	}
	for q := range m {
		sort.Strings(m[q])
	}
	return m
}
