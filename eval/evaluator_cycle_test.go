package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCycleConsistency(t *testing.T) {
	t.Run("rejects unknown mode", func(t *testing.T) {
		_, err := NewCycleConsistency(CycleConsistencyOptions{Mode: CycleMode(7)})
		assert.ErrorContains(t, err, "unknown cycle mode")
	})

	t.Run("rejects negative tolerance", func(t *testing.T) {
		_, err := NewCycleConsistency(CycleConsistencyOptions{Tolerance: -1})
		assert.ErrorContains(t, err, "negative cycle tolerance")
	})

	t.Run("name is qualified by mode", func(t *testing.T) {
		two, err := NewCycleConsistency(CycleConsistencyOptions{})
		require.NoError(t, err)
		assert.Equal(t, "cycle_consistency_two_way", two.Name())

		three, err := NewCycleConsistency(CycleConsistencyOptions{Mode: CycleThreeWay})
		require.NoError(t, err)
		assert.Equal(t, "cycle_consistency_three_way", three.Name())
	})
}

func TestCycleConsistencyTwoWay(t *testing.T) {
	ev, err := NewCycleConsistency(CycleConsistencyOptions{})
	require.NoError(t, err)

	t.Run("well separated trajectories round trip exactly", func(t *testing.T) {
		out, err := ev.Evaluate(context.Background(), unit(
			traj("a", "reach", 0, 10),
			traj("b", "reach", 0.1, 10.1),
		))
		require.NoError(t, err)

		assert.Equal(t, Presence{Scalar: true}, out.Presence())
		v, ok := out.Scalar.Value()
		require.True(t, ok)
		assert.InDelta(t, 1.0, v, 1e-12)
	})

	t.Run("asymmetric pair averages both directions", func(t *testing.T) {
		// a's second frame collapses onto b's only frame and cannot
		// find its way back, so rate(a,b)=0.5 while rate(b,a)=1.
		out, err := ev.Evaluate(context.Background(), unit(
			traj("a", "reach", 0, 1),
			traj("b", "reach", 0.5),
		))
		require.NoError(t, err)

		v, _ := out.Scalar.Value()
		assert.InDelta(t, 0.75, v, 1e-12)
	})

	t.Run("tolerance forgives near misses", func(t *testing.T) {
		tolerant, err := NewCycleConsistency(CycleConsistencyOptions{Tolerance: 1})
		require.NoError(t, err)

		out, err := tolerant.Evaluate(context.Background(), unit(
			traj("a", "reach", 0, 1),
			traj("b", "reach", 0.5),
		))
		require.NoError(t, err)

		v, _ := out.Scalar.Value()
		assert.InDelta(t, 1.0, v, 1e-12)
	})

	t.Run("distinct classes need inter-class mode", func(t *testing.T) {
		steps := unit(
			traj("a", "reach", 0, 10),
			traj("b", "push", 0.1, 10.1),
		)

		_, err := ev.Evaluate(context.Background(), steps)
		var ue *UnsupportedInputError
		require.ErrorAs(t, err, &ue)

		inter, err := NewCycleConsistency(CycleConsistencyOptions{InterClass: true})
		require.NoError(t, err)
		out, err := inter.Evaluate(context.Background(), steps)
		require.NoError(t, err)
		v, _ := out.Scalar.Value()
		assert.InDelta(t, 1.0, v, 1e-12)
	})
}

func TestCycleConsistencyThreeWay(t *testing.T) {
	ev, err := NewCycleConsistency(CycleConsistencyOptions{Mode: CycleThreeWay})
	require.NoError(t, err)

	t.Run("needs three trajectories", func(t *testing.T) {
		_, err := ev.Evaluate(context.Background(), unit(
			traj("a", "reach", 0, 10),
			traj("b", "reach", 0.1, 10.1),
		))
		var ue *UnsupportedInputError
		require.ErrorAs(t, err, &ue)
		assert.Contains(t, ue.Reason, "need at least 3")
	})

	t.Run("aligned triple round trips through both hops", func(t *testing.T) {
		out, err := ev.Evaluate(context.Background(), unit(
			traj("a", "reach", 0, 10),
			traj("b", "reach", 0.1, 10.1),
			traj("c", "reach", 0.2, 10.2),
		))
		require.NoError(t, err)

		v, ok := out.Scalar.Value()
		require.True(t, ok)
		assert.InDelta(t, 1.0, v, 1e-12)
	})
}
