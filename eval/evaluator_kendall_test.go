package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedbench/sdk/embedding"
)

// traj builds a one-dimensional test trajectory with one step per value.
func traj(id, task string, values ...float64) []embedding.Step {
	steps := make([]embedding.Step, len(values))
	for i, v := range values {
		steps[i] = embedding.Step{TrajectoryID: id, TaskID: task, Emb: []float64{v}}
	}
	return steps
}

func unit(trajs ...[]embedding.Step) []embedding.Step {
	var out []embedding.Step
	for _, tr := range trajs {
		out = append(out, tr...)
	}
	return out
}

func TestKendallsTau(t *testing.T) {
	ev, err := NewKendallsTau(KendallsTauOptions{})
	require.NoError(t, err)
	assert.Equal(t, "kendalls_tau", ev.Name())
	assert.False(t, ev.InterClass())

	t.Run("aligned trajectories score 1", func(t *testing.T) {
		steps := unit(
			traj("a", "reach", 0, 1, 2),
			traj("b", "reach", 0.1, 1.1, 2.1),
		)

		out, err := ev.Evaluate(context.Background(), steps)
		require.NoError(t, err)

		assert.Equal(t, Presence{Scalar: true, Image: true}, out.Presence())
		v, ok := out.Scalar.Value()
		require.True(t, ok)
		assert.InDelta(t, 1.0, v, 1e-12)

		// One distance matrix per ordered pair.
		images := out.Image.Items()
		require.Len(t, images, 2)
		img, ok := images[0].Value()
		require.True(t, ok)
		assert.Equal(t, []int{3, 3}, img.Shape())
	})

	t.Run("reversed trajectory scores -1", func(t *testing.T) {
		steps := unit(
			traj("a", "reach", 0, 1, 2),
			traj("b", "reach", 2.1, 1.1, 0.1),
		)

		out, err := ev.Evaluate(context.Background(), steps)
		require.NoError(t, err)
		v, _ := out.Scalar.Value()
		assert.InDelta(t, -1.0, v, 1e-12)
	})

	t.Run("identical presence across calls", func(t *testing.T) {
		a, err := ev.Evaluate(context.Background(), unit(traj("a", "x", 0, 1), traj("b", "x", 0, 1)))
		require.NoError(t, err)
		b, err := ev.Evaluate(context.Background(), unit(traj("c", "y", 5, 6), traj("d", "y", 5, 6)))
		require.NoError(t, err)
		assert.Equal(t, a.Presence(), b.Presence())

		_, err = Merge([]Output{a, b})
		assert.NoError(t, err)
	})

	t.Run("class modes", func(t *testing.T) {
		steps := unit(
			traj("a", "reach", 0, 1),
			traj("b", "push", 0, 1),
		)

		// Within-class finds no comparable pair across distinct classes.
		_, err := ev.Evaluate(context.Background(), steps)
		var ue *UnsupportedInputError
		require.ErrorAs(t, err, &ue)
		assert.Contains(t, ue.Reason, "no comparable")

		// Across-class succeeds on the same input.
		inter, err := NewKendallsTau(KendallsTauOptions{InterClass: true})
		require.NoError(t, err)
		assert.True(t, inter.InterClass())
		_, err = inter.Evaluate(context.Background(), steps)
		assert.NoError(t, err)
	})

	t.Run("minimal input requirements", func(t *testing.T) {
		_, err := ev.Evaluate(context.Background(), nil)
		assert.Error(t, err)

		_, err = ev.Evaluate(context.Background(), traj("a", "reach", 0, 1))
		var ue *UnsupportedInputError
		require.ErrorAs(t, err, &ue)

		// Single-frame trajectory cannot be rank correlated.
		_, err = ev.Evaluate(context.Background(), unit(
			traj("a", "reach", 0),
			traj("b", "reach", 1, 2),
		))
		require.ErrorAs(t, err, &ue)
		assert.Contains(t, ue.Reason, "fewer than 2 frames")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ev.Evaluate(ctx, unit(traj("a", "r", 0, 1), traj("b", "r", 0, 1)))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
