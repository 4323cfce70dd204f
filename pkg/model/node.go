package model

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// NodeKind tags a ScheduleNode variant.
type NodeKind string

const (
	NodeSerial   NodeKind = "serial"
	NodeParallel NodeKind = "parallel"
	NodeBatch    NodeKind = "batch"
	NodeLeaf     NodeKind = "leaf"
)

// ScheduleNode is a recursive execution-tree node describing execution order
// over a target set. Serial and Parallel nodes compose child nodes (which may
// be bare qubit leaves); Batch nodes name a qubit list handed to the backend
// in a single call.
//
// YAML form:
//
//	serial:
//	  - parallel: [Q00, Q01]
//	  - batch: [Q00, Q01]
//	  - Q02
type ScheduleNode struct {
	Kind     NodeKind        `json:"kind"`
	Children []*ScheduleNode `json:"children,omitempty"` // serial, parallel
	Qubits   []QubitID       `json:"qubits,omitempty"`   // batch
	Qubit    QubitID         `json:"qubit,omitempty"`    // leaf
}

// Serial builds a serial composition node.
func Serial(children ...*ScheduleNode) *ScheduleNode {
	return &ScheduleNode{Kind: NodeSerial, Children: children}
}

// Parallel builds a parallel composition node.
func Parallel(children ...*ScheduleNode) *ScheduleNode {
	return &ScheduleNode{Kind: NodeParallel, Children: children}
}

// Batch builds a batch node over the given qubits.
func Batch(qubits ...QubitID) *ScheduleNode {
	return &ScheduleNode{Kind: NodeBatch, Qubits: qubits}
}

// Leaf builds a single-qubit leaf node.
func Leaf(q QubitID) *ScheduleNode {
	return &ScheduleNode{Kind: NodeLeaf, Qubit: q}
}

// UnmarshalYAML decodes the compact flow-file form: a scalar string is a
// leaf, a single-key mapping selects serial/parallel (child nodes) or batch
// (qubit list).
func (n *ScheduleNode) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var q string
		if err := value.Decode(&q); err != nil {
			return err
		}
		n.Kind = NodeLeaf
		n.Qubit = QubitID(q)
		return nil

	case yaml.MappingNode:
		if len(value.Content) != 2 {
			return fmt.Errorf("schedule node at line %d: expected exactly one of serial/parallel/batch", value.Line)
		}
		key := value.Content[0].Value
		body := value.Content[1]

		switch NodeKind(key) {
		case NodeSerial, NodeParallel:
			var children []*ScheduleNode
			if err := body.Decode(&children); err != nil {
				return err
			}
			if len(children) == 0 {
				return fmt.Errorf("schedule node at line %d: %s requires at least one child", value.Line, key)
			}
			n.Kind = NodeKind(key)
			n.Children = children
			return nil

		case NodeBatch:
			var qubits []QubitID
			if err := body.Decode(&qubits); err != nil {
				return err
			}
			if len(qubits) == 0 {
				return fmt.Errorf("schedule node at line %d: batch requires at least one qubit", value.Line)
			}
			n.Kind = NodeBatch
			n.Qubits = qubits
			return nil

		default:
			return fmt.Errorf("schedule node at line %d: unknown kind %q", value.Line, key)
		}

	default:
		return fmt.Errorf("schedule node at line %d: expected string or mapping", value.Line)
	}
}

// Flatten returns every qubit referenced by the tree, in traversal order,
// including duplicates.
func (n *ScheduleNode) Flatten() []QubitID {
	var out []QubitID
	n.walk(func(q QubitID) {
		out = append(out, q)
	})
	return out
}

func (n *ScheduleNode) walk(visit func(QubitID)) {
	switch n.Kind {
	case NodeLeaf:
		visit(n.Qubit)
	case NodeBatch:
		for _, q := range n.Qubits {
			visit(q)
		}
	default:
		for _, c := range n.Children {
			c.walk(visit)
		}
	}
}

// ValidateCoverage checks that the flattened tree references every declared
// target exactly once. Flows are not required to pass this check; it exists
// for authors who want the guarantee.
func (n *ScheduleNode) ValidateCoverage(targets []QubitID) error {
	seen := make(map[QubitID]int)
	for _, q := range n.Flatten() {
		seen[q]++
	}

	var missing, duplicated, unknown []string
	declared := make(map[QubitID]bool, len(targets))
	for _, q := range targets {
		declared[q] = true
		switch seen[q] {
		case 0:
			missing = append(missing, string(q))
		case 1:
		default:
			duplicated = append(duplicated, string(q))
		}
	}
	for q := range seen {
		if !declared[q] {
			unknown = append(unknown, string(q))
		}
	}
	sort.Strings(missing)
	sort.Strings(duplicated)
	sort.Strings(unknown)

	if len(missing)+len(duplicated)+len(unknown) == 0 {
		return nil
	}
	return fmt.Errorf("schedule tree coverage: missing=%v duplicated=%v unknown=%v", missing, duplicated, unknown)
}
