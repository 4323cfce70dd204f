package parser

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/me/qcal/pkg/model"
)

// Flow is one declared calibration run: the task list, the targets, and how
// to order work across them. Coupling flows name a strategy; one-qubit flows
// may carry an explicit schedule tree instead.
type Flow struct {
	Name    string `json:"name" yaml:"name"`
	Backend string `json:"backend" yaml:"backend"`

	// Strategy selects the CR-pair scheduling strategy
	// (mux_conflict, intra_then_inter). Empty selects mux_conflict.
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	Tasks   []model.TaskDef `json:"tasks" yaml:"tasks"`
	Targets []model.QubitID `json:"targets,omitempty" yaml:"targets,omitempty"`

	// Schedule is an optional explicit execution tree. When absent, targets
	// run through the generated staged plan.
	Schedule *model.ScheduleNode `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

// ParseFlow parses a flow document.
func (p *Parser) ParseFlow(data []byte) (*Flow, error) {
	var flow Flow
	if err := yaml.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if err := ValidateFlow(&flow); err != nil {
		return nil, err
	}
	p.logger.Debug("flow parsed", "flow", flow.Name, "tasks", len(flow.Tasks), "targets", len(flow.Targets))
	return &flow, nil
}

// LoadFlow reads and parses a flow file.
func (p *Parser) LoadFlow(path string) (*Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flow %s: %w", path, err)
	}
	return p.ParseFlow(data)
}

var validTaskTypes = map[model.TaskType]bool{
	model.TaskTypeQubit:    true,
	model.TaskTypeCoupling: true,
	model.TaskTypeGlobal:   true,
	model.TaskTypeSystem:   true,
}

// ValidateFlow checks a flow declaration and returns an APIError carrying one
// FieldError per defect.
func ValidateFlow(flow *Flow) error {
	var fields []model.FieldError

	if flow.Name == "" {
		fields = append(fields, model.FieldError{Field: "name", Message: "required"})
	}
	if flow.Backend == "" {
		fields = append(fields, model.FieldError{Field: "backend", Message: "required"})
	}
	if len(flow.Tasks) == 0 {
		fields = append(fields, model.FieldError{Field: "tasks", Message: "at least one task required"})
	}

	switch flow.Strategy {
	case "", "mux_conflict", "intra_then_inter":
	default:
		fields = append(fields, model.FieldError{Field: "strategy", Message: fmt.Sprintf("unknown strategy %q", flow.Strategy)})
	}

	seen := make(map[string]bool, len(flow.Tasks))
	for i, task := range flow.Tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		if task.Name == "" {
			fields = append(fields, model.FieldError{Field: field + ".name", Message: "required"})
		} else if seen[task.Name] {
			fields = append(fields, model.FieldError{Field: field + ".name", Message: fmt.Sprintf("duplicate task %s", task.Name)})
		}
		seen[task.Name] = true
		if !validTaskTypes[task.Type] {
			fields = append(fields, model.FieldError{Field: field + ".type", Message: fmt.Sprintf("unknown task type %q", task.Type)})
		}
	}

	if flow.Schedule != nil && len(flow.Targets) > 0 {
		if err := flow.Schedule.ValidateCoverage(flow.Targets); err != nil {
			fields = append(fields, model.FieldError{Field: "schedule", Message: err.Error()})
		}
	}

	if len(fields) > 0 {
		return model.NewValidationError("invalid flow", fields...)
	}
	return nil
}
