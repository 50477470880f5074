package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()

	assert.Equal(t, []string{
		"classify_knn",
		"cycle_consistency_three_way",
		"cycle_consistency_two_way",
		"kendalls_tau",
		"nearest_neighbour",
		"reward_plot",
	}, reg.Names())

	t.Run("built names round-trip to registry keys", func(t *testing.T) {
		for _, name := range reg.Names() {
			ev, err := reg.New(name, nil)
			require.NoError(t, err, name)
			assert.Equal(t, name, ev.Name())
		}
	})

	t.Run("presence metadata matches the variants", func(t *testing.T) {
		p, ok := reg.Presence("kendalls_tau")
		require.True(t, ok)
		assert.Equal(t, Presence{Scalar: true, Image: true}, p)

		p, ok = reg.Presence("nearest_neighbour")
		require.True(t, ok)
		assert.Equal(t, Presence{Video: true}, p)

		_, ok = reg.Presence("does_not_exist")
		assert.False(t, ok)
	})
}

func TestRegistryNew(t *testing.T) {
	reg := DefaultRegistry()

	t.Run("options reach the constructor", func(t *testing.T) {
		ev, err := reg.New("kendalls_tau", map[string]any{"inter_class": true})
		require.NoError(t, err)
		assert.True(t, ev.InterClass())

		ev, err = reg.New("kendalls_tau", nil)
		require.NoError(t, err)
		assert.False(t, ev.InterClass())
	})

	t.Run("constructor validation surfaces", func(t *testing.T) {
		_, err := reg.New("reward_plot", map[string]any{"height": 1})
		require.Error(t, err)
		assert.ErrorContains(t, err, "build reward_plot")
		assert.ErrorContains(t, err, "too small")
	})

	t.Run("mistyped options fail decoding", func(t *testing.T) {
		_, err := reg.New("classify_knn", map[string]any{"k": "three"})
		require.Error(t, err)
		assert.ErrorContains(t, err, "decode options")
	})

	t.Run("unknown names list what is registered", func(t *testing.T) {
		_, err := reg.New("confusion_matrix", nil)
		require.Error(t, err)
		assert.ErrorContains(t, err, `unknown evaluator "confusion_matrix"`)
		assert.ErrorContains(t, err, "kendalls_tau")
	})
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()
	assert.Empty(t, reg.Names())

	reg.Register("custom", Variant{
		Presence: Presence{Scalar: true},
		New: func(map[string]any) (Evaluator, error) {
			return NewClassifyKNN(ClassifyKNNOptions{})
		},
	})

	ev, err := reg.New("custom", nil)
	require.NoError(t, err)
	assert.Equal(t, "classify_knn", ev.Name())

	p, ok := reg.Presence("custom")
	require.True(t, ok)
	assert.Equal(t, Presence{Scalar: true}, p)
}
