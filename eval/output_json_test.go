package eval

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedbench/sdk/tensor"
)

func TestOutputJSONRoundTrip(t *testing.T) {
	img, err := tensor.New([]int{2, 2}, []float64{1, 2, 3, 4})
	require.NoError(t, err)

	t.Run("merged output with nesting", func(t *testing.T) {
		merged, err := Merge([]Output{
			{Scalar: ManyScalars(0.1, 0.2), Image: SingleArtifact(img)},
			{Scalar: SingleScalar(0.3), Image: SingleArtifact(img)},
		})
		require.NoError(t, err)

		b, err := json.Marshal(merged)
		require.NoError(t, err)

		var got Output
		require.NoError(t, json.Unmarshal(b, &got))

		assert.Equal(t, merged.Presence(), got.Presence())
		require.Len(t, got.Scalar.Items(), 2)
		assert.True(t, got.Scalar.Items()[0].IsMany())
		assert.InDelta(t, merged.Scalar.Mean(), got.Scalar.Mean(), 1e-12)

		items := got.Image.Items()
		require.Len(t, items, 2)
		first, ok := items[0].Value()
		require.True(t, ok)
		assert.Equal(t, []int{2, 2}, first.Shape())
		assert.Equal(t, []float64{1, 2, 3, 4}, first.Data())
	})

	t.Run("absent kinds stay absent", func(t *testing.T) {
		b, err := json.Marshal(Output{Scalar: SingleScalar(0.9)})
		require.NoError(t, err)

		var got Output
		require.NoError(t, json.Unmarshal(b, &got))
		assert.Equal(t, Presence{Scalar: true}, got.Presence())
	})

	t.Run("all absent", func(t *testing.T) {
		b, err := json.Marshal(Output{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"scalar":null,"image":null,"video":null}`, string(b))

		var got Output
		require.NoError(t, json.Unmarshal(b, &got))
		assert.Equal(t, Presence{}, got.Presence())
	})

	t.Run("video payload", func(t *testing.T) {
		vid := tensor.Zeros(2, 2, 2)
		out := Output{Video: ManyArtifacts(vid, vid)}

		b, err := json.Marshal(out)
		require.NoError(t, err)

		var got Output
		require.NoError(t, json.Unmarshal(b, &got))
		require.Len(t, got.Video.Items(), 2)
		v, ok := got.Video.Items()[1].Value()
		require.True(t, ok)
		assert.Equal(t, []int{2, 2, 2}, v.Shape())
	})
}

func TestScalarJSONValidation(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"both value and values", `{"value":1,"values":[{"value":2}]}`},
		{"neither", `{}`},
		{"null element", `{"values":[null]}`},
		{"malformed", `{"value":"nope"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var sc Scalar
			assert.Error(t, json.Unmarshal([]byte(tc.in), &sc))
		})
	}

	t.Run("null decodes to absent", func(t *testing.T) {
		sc := SingleScalar(1)
		require.NoError(t, json.Unmarshal([]byte(`null`), &sc))
		assert.False(t, sc.Present())
	})
}

func TestArtifactJSONValidation(t *testing.T) {
	t.Run("invalid tensor rejected", func(t *testing.T) {
		var a Artifact
		err := json.Unmarshal([]byte(`{"value":{"shape":[2],"data":[1,2,3]}}`), &a)
		assert.Error(t, err)
	})

	t.Run("null element rejected", func(t *testing.T) {
		var a Artifact
		err := json.Unmarshal([]byte(`{"values":[null]}`), &a)
		assert.Error(t, err)
	})
}
