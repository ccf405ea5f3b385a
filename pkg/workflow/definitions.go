package workflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opentrade/tradefleet/pkg/types"
)

// Definition is the YAML shape of one workflow
type Definition struct {
	Name  string           `yaml:"name"`
	Tasks []TaskDefinition `yaml:"tasks"`
}

// duration accepts Go duration strings ("30s", "2m") in YAML
type duration time.Duration

func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = duration(parsed)
	return nil
}

// TaskDefinition is the YAML shape of one task. Action names resolve
// against the action registry supplied at load time.
type TaskDefinition struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	DependsOn     []string `yaml:"depends_on"`
	Priority      string   `yaml:"priority"`
	Timeout       duration `yaml:"timeout"`
	Retries       int      `yaml:"retries"`
	SkipOnFailure bool     `yaml:"skip_on_failure"`
	Action        string   `yaml:"action"`
}

type definitionsFile struct {
	Workflows []Definition `yaml:"workflows"`
}

// LoadDefinitions parses a workflow definitions file and registers every
// workflow on the engine, binding task actions from the registry.
func LoadDefinitions(e *Engine, path string, actions map[string]TaskFunc) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read workflow definitions: %w", err)
	}

	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse workflow definitions: %w", err)
	}
	if len(file.Workflows) == 0 {
		return fmt.Errorf("no workflows defined in %s", path)
	}

	for _, def := range file.Workflows {
		tasks := make([]*Task, 0, len(def.Tasks))
		for _, td := range def.Tasks {
			fn, ok := actions[td.Action]
			if !ok {
				return fmt.Errorf("workflow %q: task %q references unknown action %q", def.Name, td.ID, td.Action)
			}
			name := td.Name
			if name == "" {
				name = td.ID
			}
			tasks = append(tasks, &Task{
				ID:            td.ID,
				Name:          name,
				Dependencies:  td.DependsOn,
				Priority:      ParsePriority(td.Priority),
				Timeout:       time.Duration(td.Timeout),
				RetryCount:    td.Retries,
				SkipOnFailure: td.SkipOnFailure,
				Run:           fn,
			})
		}
		if err := e.RegisterWorkflow(def.Name, tasks); err != nil {
			return err
		}
	}
	return nil
}

// ParsePriority maps the YAML priority string; unknown values fall back to
// MEDIUM.
func ParsePriority(s string) types.TaskPriority {
	switch s {
	case "CRITICAL":
		return types.PriorityCritical
	case "HIGH":
		return types.PriorityHigh
	case "LOW":
		return types.PriorityLow
	default:
		return types.PriorityMedium
	}
}
