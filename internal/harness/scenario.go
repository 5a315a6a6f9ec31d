package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cobs/internal/cob"
)

// Scenario is a convergence test case.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description"`

	// Repo is the repository the actions are delivered to.
	// Defaults to "scenario".
	Repo string `yaml:"repo,omitempty"`

	// Seed drives the shuffled delivery orders of large scenarios.
	Seed uint64 `yaml:"seed,omitempty"`

	// Shuffles is the number of shuffled orders for scenarios too large to
	// permute exhaustively. Defaults to 50.
	Shuffles int `yaml:"shuffles,omitempty"`

	// Actions is the DAG, in a causal order.
	Actions []Step `yaml:"actions"`

	// Orders lists extra delivery orders by label.
	Orders [][]string `yaml:"orders,omitempty"`

	// Expect describes the converged issue.
	Expect Expect `yaml:"expect"`
}

// Step declares one action of a scenario.
type Step struct {
	Label     string         `yaml:"label"`
	Author    string         `yaml:"author"`
	Timestamp int64          `yaml:"timestamp"`
	Parents   []string       `yaml:"parents,omitempty"`
	Op        cob.OpDocument `yaml:"op"`
}

// Expect holds the checks applied to the converged issue. Unset fields are
// not checked; an empty list checks for an empty set.
type Expect struct {
	Title       *string  `yaml:"title,omitempty"`
	Description *string  `yaml:"description,omitempty"`
	Status      string   `yaml:"status,omitempty"`
	Reason      string   `yaml:"reason,omitempty"`
	Labels      []string `yaml:"labels,omitempty"`
	Assignees   []string `yaml:"assignees,omitempty"`
	Embeds      []string `yaml:"embeds,omitempty"`
	Comments    *int     `yaml:"comments,omitempty"`
	FoldOrder   []string `yaml:"fold_order,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos in hand-written scenarios
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and that every label reference
// points at an earlier action, which also rules out cycles.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Actions) == 0 {
		return fmt.Errorf("actions list is required and must be non-empty")
	}
	if s.Shuffles < 0 {
		return fmt.Errorf("shuffles must be non-negative")
	}

	seen := make(map[string]bool, len(s.Actions))
	for i, step := range s.Actions {
		if step.Label == "" {
			return fmt.Errorf("actions[%d]: label is required", i)
		}
		if seen[step.Label] {
			return fmt.Errorf("actions[%d]: duplicate label %q", i, step.Label)
		}
		if step.Author == "" {
			return fmt.Errorf("actions[%d]: author is required", i)
		}

		isCreate := step.Op.Type == cob.KindCreate
		switch {
		case i == 0 && !isCreate:
			return fmt.Errorf("actions[0]: first action must be a create")
		case i > 0 && isCreate:
			return fmt.Errorf("actions[%d]: only the first action can be a create", i)
		case i == 0 && len(step.Parents) > 0:
			return fmt.Errorf("actions[0]: create cannot have parents")
		case i > 0 && len(step.Parents) == 0:
			return fmt.Errorf("actions[%d]: parents are required", i)
		}

		for _, p := range step.Parents {
			if !seen[p] {
				return fmt.Errorf("actions[%d]: parent %q is not an earlier action", i, p)
			}
		}
		for _, ref := range []cob.ActionID{step.Op.ID, step.Op.ReplyTo} {
			if ref != "" && !seen[string(ref)] {
				return fmt.Errorf("actions[%d]: comment %q is not an earlier action", i, ref)
			}
		}
		seen[step.Label] = true
	}

	for i, order := range s.Orders {
		used := make(map[string]bool, len(order))
		for _, label := range order {
			if !seen[label] {
				return fmt.Errorf("orders[%d]: unknown label %q", i, label)
			}
			if used[label] {
				return fmt.Errorf("orders[%d]: label %q listed twice", i, label)
			}
			used[label] = true
		}
	}

	switch cob.Status(s.Expect.Status) {
	case "", cob.StatusOpen, cob.StatusClosed:
	default:
		return fmt.Errorf("expect.status: must be open or closed, got %q", s.Expect.Status)
	}
	for _, label := range s.Expect.FoldOrder {
		if !seen[label] {
			return fmt.Errorf("expect.fold_order: unknown label %q", label)
		}
	}
	return nil
}
