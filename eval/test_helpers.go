package eval

import (
	"fmt"

	"github.com/embedbench/sdk/tensor"
)

// sinkCall records one sink invocation.
// This is a shared test helper used across multiple test files.
type sinkCall struct {
	kind   string // "scalar", "image" or "video"
	value  float64
	tensor tensor.Dense
	step   int64
	name   string
	prefix string
}

// captureSink implements Sink and records calls in emission order. Setting
// failOn makes the matching operation return an error.
type captureSink struct {
	calls  []sinkCall
	failOn string
}

func (c *captureSink) LogScalar(value float64, step int64, name, prefix string) error {
	if c.failOn == "scalar" {
		return fmt.Errorf("scalar sink closed")
	}
	c.calls = append(c.calls, sinkCall{kind: "scalar", value: value, step: step, name: name, prefix: prefix})
	return nil
}

func (c *captureSink) LogImage(img tensor.Dense, step int64, name, prefix string) error {
	if c.failOn == "image" {
		return fmt.Errorf("image sink closed")
	}
	c.calls = append(c.calls, sinkCall{kind: "image", tensor: img, step: step, name: name, prefix: prefix})
	return nil
}

func (c *captureSink) LogVideo(vid tensor.Dense, step int64, name, prefix string) error {
	if c.failOn == "video" {
		return fmt.Errorf("video sink closed")
	}
	c.calls = append(c.calls, sinkCall{kind: "video", tensor: vid, step: step, name: name, prefix: prefix})
	return nil
}

// names returns the name of every recorded call of the given kind, in order.
func (c *captureSink) names(kind string) []string {
	var out []string
	for _, call := range c.calls {
		if call.kind == kind {
			out = append(out, call.name)
		}
	}
	return out
}
