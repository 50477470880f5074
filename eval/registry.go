package eval

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Factory builds an evaluator from raw options as decoded from a suite
// config file. The raw map uses the option struct's yaml field names.
type Factory func(opts map[string]any) (Evaluator, error)

// Variant describes one registered evaluator kind: its factory plus the
// fixed presence pattern its outputs carry, so suites can filter on
// presence without building anything.
type Variant struct {
	// Presence is the pattern every Output of this variant carries.
	Presence Presence

	// New builds the evaluator from raw config options.
	New Factory
}

// Registry maps evaluator names to variants.
//
// Names match what the constructed evaluator's Name() returns, so a suite
// config entry, the registry key, and the log tag are always the same
// string. Registration is thread-safe; registering a name twice replaces
// the earlier variant.
type Registry struct {
	mu       sync.RWMutex
	variants map[string]Variant
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{variants: make(map[string]Variant)}
}

// DefaultRegistry returns a registry preloaded with every shipped variant:
// kendalls_tau, cycle_consistency_two_way, cycle_consistency_three_way,
// nearest_neighbour, reward_plot, and classify_knn.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register("kendalls_tau", Variant{
		Presence: Presence{Scalar: true, Image: true},
		New: func(raw map[string]any) (Evaluator, error) {
			var opts KendallsTauOptions
			if err := decodeOptions(raw, &opts); err != nil {
				return nil, err
			}
			return NewKendallsTau(opts)
		},
	})

	cycle := func(mode CycleMode) Factory {
		return func(raw map[string]any) (Evaluator, error) {
			var opts CycleConsistencyOptions
			if err := decodeOptions(raw, &opts); err != nil {
				return nil, err
			}
			opts.Mode = mode
			return NewCycleConsistency(opts)
		}
	}
	r.Register("cycle_consistency_two_way", Variant{
		Presence: Presence{Scalar: true},
		New:      cycle(CycleTwoWay),
	})
	r.Register("cycle_consistency_three_way", Variant{
		Presence: Presence{Scalar: true},
		New:      cycle(CycleThreeWay),
	})

	r.Register("nearest_neighbour", Variant{
		Presence: Presence{Video: true},
		New: func(raw map[string]any) (Evaluator, error) {
			var opts NearestNeighbourOptions
			if err := decodeOptions(raw, &opts); err != nil {
				return nil, err
			}
			return NewNearestNeighbour(opts)
		},
	})

	r.Register("reward_plot", Variant{
		Presence: Presence{Image: true},
		New: func(raw map[string]any) (Evaluator, error) {
			var opts RewardPlotOptions
			if err := decodeOptions(raw, &opts); err != nil {
				return nil, err
			}
			return NewRewardPlot(opts)
		},
	})

	r.Register("classify_knn", Variant{
		Presence: Presence{Scalar: true},
		New: func(raw map[string]any) (Evaluator, error) {
			var opts ClassifyKNNOptions
			if err := decodeOptions(raw, &opts); err != nil {
				return nil, err
			}
			return NewClassifyKNN(opts)
		},
	})

	return r
}

// Register adds a variant under the given name, replacing any earlier one.
func (r *Registry) Register(name string, v Variant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[name] = v
}

// New builds the named evaluator, passing raw options to its factory.
func (r *Registry) New(name string, opts map[string]any) (Evaluator, error) {
	r.mu.RLock()
	v, ok := r.variants[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("eval: unknown evaluator %q (registered: %s)",
			name, strings.Join(r.Names(), ", "))
	}
	ev, err := v.New(opts)
	if err != nil {
		return nil, fmt.Errorf("eval: build %s: %w", name, err)
	}
	return ev, nil
}

// Presence returns the registered presence pattern for name.
func (r *Registry) Presence(name string) (Presence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variants[name]
	return v.Presence, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.variants))
	for name := range r.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// decodeOptions maps raw config options onto a typed options struct via its
// yaml tags. A nil or empty map leaves the struct's zero values in place.
func decodeOptions(raw map[string]any, into any) error {
	if len(raw) == 0 {
		return nil
	}
	b, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("eval: encode options: %w", err)
	}
	if err := yaml.Unmarshal(b, into); err != nil {
		return fmt.Errorf("eval: decode options: %w", err)
	}
	return nil
}
