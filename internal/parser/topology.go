// Package parser converts raw YAML into typed topology snapshots and flow
// definitions, with structured validation errors.
package parser

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/qcal/pkg/model"
)

// Parser converts raw YAML into domain models.
type Parser struct {
	logger *slog.Logger
}

// New creates a Parser with the given logger.
func New(logger *slog.Logger) *Parser {
	return &Parser{logger: logger.With("component", "parser")}
}

// ParseTopology parses a topology snapshot document.
func (p *Parser) ParseTopology(data []byte) (*model.Topology, error) {
	var topo model.Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if err := ValidateTopology(&topo); err != nil {
		return nil, err
	}
	p.logger.Debug("topology parsed", "chip_id", topo.ChipID, "qubits", len(topo.Qubits), "channels", len(topo.Channels))
	return &topo, nil
}

// LoadTopology reads and parses a topology snapshot file.
func (p *Parser) LoadTopology(path string) (*model.Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology %s: %w", path, err)
	}
	return p.ParseTopology(data)
}

// ValidateTopology checks referential integrity of a topology snapshot and
// returns an APIError carrying one FieldError per defect.
func ValidateTopology(topo *model.Topology) error {
	var fields []model.FieldError

	if topo.ChipID == "" {
		fields = append(fields, model.FieldError{Field: "chip_id", Message: "required"})
	}
	if len(topo.Qubits) == 0 {
		fields = append(fields, model.FieldError{Field: "qubits", Message: "at least one qubit required"})
	}

	known := make(map[model.QubitID]bool, len(topo.Qubits))
	for i, q := range topo.Qubits {
		if q == "" {
			fields = append(fields, model.FieldError{Field: fmt.Sprintf("qubits[%d]", i), Message: "empty qubit id"})
			continue
		}
		if known[q] {
			fields = append(fields, model.FieldError{Field: "qubits", Message: fmt.Sprintf("duplicate qubit id %s", q)})
		}
		known[q] = true
	}

	for q := range topo.Groups {
		if !known[q] {
			fields = append(fields, model.FieldError{Field: "groups", Message: fmt.Sprintf("unknown qubit %s", q)})
		}
	}

	seenChannels := make(map[string]bool, len(topo.Channels))
	for i, ch := range topo.Channels {
		field := fmt.Sprintf("channels[%d]", i)
		if ch.ID == "" {
			fields = append(fields, model.FieldError{Field: field + ".id", Message: "required"})
		} else if seenChannels[ch.ID] {
			fields = append(fields, model.FieldError{Field: field + ".id", Message: fmt.Sprintf("duplicate channel id %s", ch.ID)})
		}
		seenChannels[ch.ID] = true
		for _, q := range ch.Qubits {
			if !known[q] {
				fields = append(fields, model.FieldError{Field: field + ".qubits", Message: fmt.Sprintf("unknown qubit %s", q)})
			}
		}
	}

	for q, meta := range topo.QubitMeta {
		if !known[q] {
			fields = append(fields, model.FieldError{Field: "qubit_meta", Message: fmt.Sprintf("unknown qubit %s", q)})
		}
		if meta.Fidelity != nil && (*meta.Fidelity < 0 || *meta.Fidelity > 1) {
			fields = append(fields, model.FieldError{Field: fmt.Sprintf("qubit_meta.%s.fidelity", q), Message: "must be in [0,1]"})
		}
	}

	for i, key := range topo.Couplings {
		a, b, ok := strings.Cut(key, ":")
		if !ok || a == "" || b == "" {
			fields = append(fields, model.FieldError{Field: fmt.Sprintf("couplings[%d]", i), Message: fmt.Sprintf("malformed coupling key %q, want A:B", key)})
			continue
		}
		if !known[model.QubitID(a)] || !known[model.QubitID(b)] {
			fields = append(fields, model.FieldError{Field: fmt.Sprintf("couplings[%d]", i), Message: fmt.Sprintf("coupling %s references unknown qubit", key)})
		}
	}

	for key, fid := range topo.CouplingFidelity {
		a, b, ok := strings.Cut(key, ":")
		if !ok || a == "" || b == "" {
			fields = append(fields, model.FieldError{Field: "coupling_fidelity", Message: fmt.Sprintf("malformed coupling key %q, want A:B", key)})
			continue
		}
		if !known[model.QubitID(a)] || !known[model.QubitID(b)] {
			fields = append(fields, model.FieldError{Field: "coupling_fidelity", Message: fmt.Sprintf("coupling %s references unknown qubit", key)})
		}
		if fid < 0 || fid > 1 {
			fields = append(fields, model.FieldError{Field: "coupling_fidelity", Message: fmt.Sprintf("coupling %s fidelity must be in [0,1]", key)})
		}
	}

	if len(fields) > 0 {
		return model.NewValidationError("invalid topology", fields...)
	}
	return nil
}
