// Package tensor provides a dense n-dimensional float64 array used to carry
// image and video payloads between evaluators and sinks.
//
// A Dense value is a lightweight header (shape plus backing slice) and is
// passed by value; copies share the underlying data. Images are rank 2 or 3
// (H x W or H x W x C), videos rank 3 or 4 (T x H x W or T x H x W x C).
package tensor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Dense is a row-major dense array of float64 values.
//
// The zero value is an empty tensor with no shape; use New or Zeros to
// construct a usable one.
type Dense struct {
	shape []int
	data  []float64
}

// New constructs a Dense with the given shape backed by data. The data slice
// is used directly, not copied. It returns an error when the shape is empty,
// a dimension is not positive, or the shape's element count does not match
// len(data).
func New(shape []int, data []float64) (Dense, error) {
	if len(shape) == 0 {
		return Dense{}, fmt.Errorf("tensor: empty shape")
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return Dense{}, fmt.Errorf("tensor: non-positive dimension %d in shape %v", d, shape)
		}
		n *= d
	}
	if n != len(data) {
		return Dense{}, fmt.Errorf("tensor: shape %v wants %d elements, data has %d", shape, n, len(data))
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return Dense{shape: s, data: data}, nil
}

// Zeros constructs a zero-filled Dense with the given shape. It panics on an
// invalid shape; use New when the shape comes from untrusted input.
func Zeros(shape ...int) Dense {
	if len(shape) == 0 {
		panic("tensor: empty shape")
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			panic(fmt.Sprintf("tensor: non-positive dimension %d in shape %v", d, shape))
		}
		n *= d
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return Dense{shape: s, data: make([]float64, n)}
}

// IsZero reports whether t is the zero tensor (no shape, no data).
func (t Dense) IsZero() bool { return len(t.shape) == 0 }

// Rank returns the number of dimensions.
func (t Dense) Rank() int { return len(t.shape) }

// Shape returns a copy of the dimension sizes.
func (t Dense) Shape() []int {
	s := make([]int, len(t.shape))
	copy(s, t.shape)
	return s
}

// Len returns the total number of elements.
func (t Dense) Len() int { return len(t.data) }

// Data returns the backing slice in row-major order. Mutating it mutates the
// tensor.
func (t Dense) Data() []float64 { return t.data }

// At returns the element at the given index, one coordinate per dimension.
// It panics when the coordinate count or any coordinate is out of range.
func (t Dense) At(idx ...int) float64 {
	return t.data[t.offset(idx)]
}

// Set stores v at the given index, one coordinate per dimension.
func (t Dense) Set(v float64, idx ...int) {
	t.data[t.offset(idx)] = v
}

func (t Dense) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: %d coordinates for rank %d", len(idx), len(t.shape)))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= t.shape[i] {
			panic(fmt.Sprintf("tensor: coordinate %d out of range for dimension %d (size %d)", x, i, t.shape[i]))
		}
		off = off*t.shape[i] + x
	}
	return off
}

// Clone returns a deep copy of t.
func (t Dense) Clone() Dense {
	if t.IsZero() {
		return Dense{}
	}
	s := make([]int, len(t.shape))
	copy(s, t.shape)
	d := make([]float64, len(t.data))
	copy(d, t.data)
	return Dense{shape: s, data: d}
}

// SameShape reports whether t and o have identical shapes.
func (t Dense) SameShape(o Dense) bool {
	if len(t.shape) != len(o.shape) {
		return false
	}
	for i := range t.shape {
		if t.shape[i] != o.shape[i] {
			return false
		}
	}
	return true
}

// String returns a compact description such as "Dense(32x32x3)".
func (t Dense) String() string {
	if t.IsZero() {
		return "Dense()"
	}
	dims := make([]string, len(t.shape))
	for i, d := range t.shape {
		dims[i] = fmt.Sprintf("%d", d)
	}
	return "Dense(" + strings.Join(dims, "x") + ")"
}

type denseJSON struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// MarshalJSON encodes the tensor as {"shape": [...], "data": [...]}. The
// zero tensor encodes as null so optional tensor fields survive a round
// trip.
func (t Dense) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(denseJSON{Shape: t.shape, Data: t.data})
}

// UnmarshalJSON decodes and validates a tensor encoded by MarshalJSON. A
// null payload leaves the tensor untouched.
func (t *Dense) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var dj denseJSON
	if err := json.Unmarshal(b, &dj); err != nil {
		return fmt.Errorf("tensor: decode: %w", err)
	}
	nt, err := New(dj.Shape, dj.Data)
	if err != nil {
		return err
	}
	*t = nt
	return nil
}
