package eval

import (
	"fmt"

	"github.com/embedbench/sdk/tensor"
)

// payloadState is the three-way state shared by every payload kind.
type payloadState uint8

const (
	payloadAbsent payloadState = iota
	payloadSingle
	payloadMany
)

// Scalar is the numeric payload of an Output: absent, a single value, or an
// ordered sequence of values. Sequence elements may themselves be sequences;
// Merge builds exactly that shape when it collects already-merged outputs.
//
// The zero value is absent.
type Scalar struct {
	state payloadState
	value float64
	items []Scalar
}

// SingleScalar returns a Scalar holding one value.
func SingleScalar(v float64) Scalar {
	return Scalar{state: payloadSingle, value: v}
}

// ManyScalars returns a Scalar holding an ordered sequence of values.
func ManyScalars(vs ...float64) Scalar {
	items := make([]Scalar, len(vs))
	for i, v := range vs {
		items[i] = SingleScalar(v)
	}
	return Scalar{state: payloadMany, items: items}
}

// Present reports whether the payload is non-absent.
func (sc Scalar) Present() bool { return sc.state != payloadAbsent }

// IsMany reports whether the payload is a sequence.
func (sc Scalar) IsMany() bool { return sc.state == payloadMany }

// Value returns the single value. The second return is false when the
// payload is absent or a sequence.
func (sc Scalar) Value() (float64, bool) {
	if sc.state != payloadSingle {
		return 0, false
	}
	return sc.value, true
}

// Items returns the elements of a sequence payload, nil otherwise. The
// returned slice is shared; callers must not mutate it.
func (sc Scalar) Items() []Scalar {
	if sc.state != payloadMany {
		return nil
	}
	return sc.items
}

// Mean returns the arithmetic mean over every value reachable in the
// payload, with equal weighting regardless of nesting. A single value is its
// own mean. Mean on an absent payload returns 0; callers check Present
// first.
func (sc Scalar) Mean() float64 {
	sum, n := sc.fold()
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (sc Scalar) fold() (sum float64, n int) {
	switch sc.state {
	case payloadSingle:
		return sc.value, 1
	case payloadMany:
		for _, it := range sc.items {
			s, m := it.fold()
			sum += s
			n += m
		}
	}
	return sum, n
}

// Artifact is a tensor payload of an Output (an image or a video): absent, a
// single tensor, or an ordered sequence. Like Scalar, sequence elements may
// themselves be sequences.
//
// The zero value is absent.
type Artifact struct {
	state payloadState
	value tensor.Dense
	items []Artifact
}

// SingleArtifact returns an Artifact holding one tensor.
func SingleArtifact(t tensor.Dense) Artifact {
	return Artifact{state: payloadSingle, value: t}
}

// ManyArtifacts returns an Artifact holding an ordered sequence of tensors.
func ManyArtifacts(ts ...tensor.Dense) Artifact {
	items := make([]Artifact, len(ts))
	for i, t := range ts {
		items[i] = SingleArtifact(t)
	}
	return Artifact{state: payloadMany, items: items}
}

// Present reports whether the payload is non-absent.
func (a Artifact) Present() bool { return a.state != payloadAbsent }

// IsMany reports whether the payload is a sequence.
func (a Artifact) IsMany() bool { return a.state == payloadMany }

// Value returns the single tensor. The second return is false when the
// payload is absent or a sequence.
func (a Artifact) Value() (tensor.Dense, bool) {
	if a.state != payloadSingle {
		return tensor.Dense{}, false
	}
	return a.value, true
}

// Items returns the elements of a sequence payload, nil otherwise. The
// returned slice is shared; callers must not mutate it.
func (a Artifact) Items() []Artifact {
	if a.state != payloadMany {
		return nil
	}
	return a.items
}

// emit dispatches the payload to one sink operation: a single tensor under
// the unmodified name, a sequence element-by-element in order under
// name_0, name_1, and so on. Nested sequences extend the suffix per level.
func (a Artifact) emit(fn func(tensor.Dense, int64, string, string) error, step int64, name, prefix string) error {
	switch a.state {
	case payloadSingle:
		return fn(a.value, step, name, prefix)
	case payloadMany:
		for i, item := range a.items {
			if err := item.emit(fn, step, fmt.Sprintf("%s_%d", name, i), prefix); err != nil {
				return err
			}
		}
	}
	return nil
}

// Presence is the triple of flags recording which payload kinds an Output
// carries. Outputs merged together must agree on it.
type Presence struct {
	Scalar bool
	Image  bool
	Video  bool
}

// String renders the present kinds, such as "scalar+image", or "none".
func (p Presence) String() string {
	s := ""
	add := func(name string) {
		if s != "" {
			s += "+"
		}
		s += name
	}
	if p.Scalar {
		add("scalar")
	}
	if p.Image {
		add("image")
	}
	if p.Video {
		add("video")
	}
	if s == "" {
		return "none"
	}
	return s
}

// Output is the result of evaluating one unit: up to three independent
// payload kinds, each absent, single, or a sequence. An evaluator populates
// only the kinds its metric produces and must populate the same kinds on
// every call.
//
// The zero value carries nothing and logs nothing.
//
// Example:
//
//	out := eval.Output{
//	    Scalar: eval.SingleScalar(0.87),
//	    Image:  eval.SingleArtifact(distances),
//	}
type Output struct {
	Scalar Scalar   `json:"scalar"`
	Image  Artifact `json:"image"`
	Video  Artifact `json:"video"`
}

// Presence returns which payload kinds are non-absent.
func (o Output) Presence() Presence {
	return Presence{
		Scalar: o.Scalar.Present(),
		Image:  o.Image.Present(),
		Video:  o.Video.Present(),
	}
}

// Merge combines per-unit outputs into one batch-level Output. Every present
// kind becomes a sequence of the per-unit payloads, in input order, with
// length len(outs); absent kinds stay absent. Per-unit payloads that are
// already sequences are kept nested, not flattened. A single-element input
// still wraps its payloads in length-1 sequences.
//
// All outputs must share the same presence pattern; the pattern of the first
// output is the pattern of the result. Merge returns ErrEmptyMergeInput when
// outs is empty and an *InconsistentOutputError naming the first offender
// when the patterns differ. The inputs are never mutated and no partial
// result is produced.
func Merge(outs []Output) (Output, error) {
	if len(outs) == 0 {
		return Output{}, ErrEmptyMergeInput
	}
	want := outs[0].Presence()
	for i := 1; i < len(outs); i++ {
		if got := outs[i].Presence(); got != want {
			return Output{}, &InconsistentOutputError{Index: i, Want: want, Got: got}
		}
	}

	var merged Output
	if want.Scalar {
		items := make([]Scalar, len(outs))
		for i, o := range outs {
			items[i] = o.Scalar
		}
		merged.Scalar = Scalar{state: payloadMany, items: items}
	}
	if want.Image {
		items := make([]Artifact, len(outs))
		for i, o := range outs {
			items[i] = o.Image
		}
		merged.Image = Artifact{state: payloadMany, items: items}
	}
	if want.Video {
		items := make([]Artifact, len(outs))
		for i, o := range outs {
			items[i] = o.Video
		}
		merged.Video = Artifact{state: payloadMany, items: items}
	}
	return merged, nil
}

// Log emits the output's payloads to the sink under the given step, name,
// and prefix. A scalar payload is reduced to its arithmetic mean and emitted
// as exactly one call; the stored record is left untouched. Image and video
// payloads fan out one call per sequence element with _0, _1 name suffixes
// in sequence order, or a single call under the unmodified name. Absent
// kinds emit nothing.
//
// Kinds are emitted in the fixed order scalar, image, video. The first sink
// error aborts the remaining calls.
func (o Output) Log(s Sink, step int64, name, prefix string) error {
	if o.Scalar.Present() {
		if err := s.LogScalar(o.Scalar.Mean(), step, name, prefix); err != nil {
			return fmt.Errorf("eval: log scalar %s/%s: %w", prefix, name, err)
		}
	}
	if o.Image.Present() {
		if err := o.Image.emit(s.LogImage, step, name, prefix); err != nil {
			return fmt.Errorf("eval: log image %s/%s: %w", prefix, name, err)
		}
	}
	if o.Video.Present() {
		if err := o.Video.emit(s.LogVideo, step, name, prefix); err != nil {
			return fmt.Errorf("eval: log video %s/%s: %w", prefix, name, err)
		}
	}
	return nil
}
