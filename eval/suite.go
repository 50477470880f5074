package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"
)

// Package-level validator instance for config structs.
var validate = validator.New()

// EvaluatorConfig selects one evaluator within a suite.
type EvaluatorConfig struct {
	// Name is the registry name, e.g. "kendalls_tau".
	Name string `json:"name" yaml:"name" validate:"required"`

	// Disabled skips the entry without removing it from the file.
	Disabled bool `json:"disabled" yaml:"disabled"`

	// Options are handed to the evaluator's factory. Keys use the option
	// struct's yaml names: inter_class, tolerance, k, height.
	Options map[string]any `json:"options" yaml:"options"`
}

// SinkConfig selects where suite results are logged.
type SinkConfig struct {
	// Kind is the sink implementation: "jsonl" or "prometheus".
	Kind string `json:"kind" yaml:"kind" validate:"required,oneof=jsonl prometheus"`

	// Path is the output file. Required for jsonl sinks.
	Path string `json:"path" yaml:"path" validate:"required_if=Kind jsonl"`
}

// SuiteConfig describes one evaluation run: which evaluators to build, an
// optional filter over them, and where results go.
//
// Example (suite.yaml):
//
//	name: pretrain-sweep
//	prefix: valid
//	parallelism: 4
//	filter: 'presence.contains("scalar")'
//	sink:
//	  kind: jsonl
//	  path: results.jsonl
//	evaluators:
//	  - name: kendalls_tau
//	    options:
//	      inter_class: true
//	  - name: cycle_consistency_two_way
//	    options:
//	      tolerance: 1
//	  - name: reward_plot
//	    disabled: true
type SuiteConfig struct {
	// Name identifies the run in logs and result records.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Prefix namespaces every logged tag, e.g. "valid" or "train".
	Prefix string `json:"prefix" yaml:"prefix"`

	// Parallelism bounds concurrent unit evaluations. 0 picks a default in
	// the runner.
	Parallelism int `json:"parallelism" yaml:"parallelism" validate:"min=0"`

	// Filter is an optional CEL expression applied per evaluator after the
	// disabled flags. It sees name (string), inter_class (bool) and
	// presence (string such as "scalar+image") and must yield a bool.
	Filter string `json:"filter" yaml:"filter"`

	// Sink selects the result destination.
	Sink SinkConfig `json:"sink" yaml:"sink"`

	// Evaluators lists the suite's entries in run order.
	Evaluators []EvaluatorConfig `json:"evaluators" yaml:"evaluators" validate:"required,min=1,dive"`
}

// LoadSuiteConfig loads a suite config from a file. The format is detected
// by extension (.json, .yaml, .yml). The config is validated and the filter
// expression, if any, is compiled so config mistakes surface at load time
// rather than mid-run.
func LoadSuiteConfig(path string) (*SuiteConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("suite config not found: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite config: %w", err)
	}

	var cfg SuiteConfig
	switch ext := filepath.Ext(path); ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON suite config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML suite config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported suite config format: %s (supported: .json, .yaml, .yml)", ext)
	}

	if err := cfg.IsValid(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsValid checks the config's structural constraints and compiles the
// filter expression.
func (c *SuiteConfig) IsValid() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("eval: invalid suite config: %w", err)
	}
	if c.Filter != "" {
		if _, err := compileFilter(c.Filter); err != nil {
			return err
		}
	}
	return nil
}

// Build resolves the suite's entries against reg, in config order: disabled
// entries are skipped, each remaining entry is constructed through its
// factory, and the filter expression (if any) decides whether the built
// evaluator joins the suite.
func (c *SuiteConfig) Build(reg *Registry) ([]Evaluator, error) {
	if err := c.IsValid(); err != nil {
		return nil, err
	}

	var prg cel.Program
	if c.Filter != "" {
		var err error
		if prg, err = compileFilter(c.Filter); err != nil {
			return nil, err
		}
	}

	var evs []Evaluator
	for _, ec := range c.Evaluators {
		if ec.Disabled {
			continue
		}
		ev, err := reg.New(ec.Name, ec.Options)
		if err != nil {
			return nil, err
		}
		if prg != nil {
			keep, err := filterKeep(prg, reg, ev)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
		}
		evs = append(evs, ev)
	}

	if len(evs) == 0 {
		return nil, fmt.Errorf("eval: suite %s selected no evaluators", c.Name)
	}
	return evs, nil
}

// OpenSink builds the configured sink. JSONL sinks are stamped with runID
// and must be closed by the caller.
func (c *SuiteConfig) OpenSink(runID string) (Sink, error) {
	switch c.Sink.Kind {
	case "jsonl":
		s, err := NewJSONLSink(c.Sink.Path)
		if err != nil {
			return nil, err
		}
		return s.WithRunID(runID), nil
	case "prometheus":
		return NewPromSink(PromSinkOptions{}), nil
	default:
		return nil, fmt.Errorf("eval: unknown sink kind %q", c.Sink.Kind)
	}
}

// compileFilter builds the CEL program for a suite filter expression.
func compileFilter(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("inter_class", cel.BoolType),
		cel.Variable("presence", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("eval: filter environment: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("eval: compile filter: %w", iss.Err())
	}
	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, fmt.Errorf("eval: filter must evaluate to bool, got %v", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("eval: build filter program: %w", err)
	}
	return prg, nil
}

// filterKeep evaluates the compiled filter against one built evaluator.
func filterKeep(prg cel.Program, reg *Registry, ev Evaluator) (bool, error) {
	presence := "unknown"
	if p, ok := reg.Presence(ev.Name()); ok {
		presence = p.String()
	}

	out, _, err := prg.Eval(map[string]any{
		"name":        ev.Name(),
		"inter_class": ev.InterClass(),
		"presence":    presence,
	})
	if err != nil {
		return false, fmt.Errorf("eval: filter %s: %w", ev.Name(), err)
	}
	keep, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval: filter returned %T, want bool", out.Value())
	}
	return keep, nil
}
