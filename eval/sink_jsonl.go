package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/embedbench/sdk/tensor"
)

// SinkEntry is a single logged payload in JSONL form. Scalar entries carry
// the value itself; image and video entries carry the tensor's shape and
// summary statistics rather than raw data, keeping log files reviewable.
type SinkEntry struct {
	// Timestamp is when the payload was logged.
	Timestamp time.Time `json:"timestamp"`

	// RunID correlates entries from one evaluation run, if configured.
	RunID string `json:"run_id,omitempty"`

	// Kind is "scalar", "image" or "video".
	Kind string `json:"kind"`

	// Prefix is the namespace the payload was logged under.
	Prefix string `json:"prefix"`

	// Name is the tag, including any sequence index suffix.
	Name string `json:"name"`

	// Step is the global step the payload belongs to.
	Step int64 `json:"step"`

	// Value is the scalar value. Only set for scalar entries.
	Value *float64 `json:"value,omitempty"`

	// Shape is the tensor shape. Only set for image and video entries.
	Shape []int `json:"shape,omitempty"`

	// Min, Max and Mean summarize the tensor's data. Only set for image and
	// video entries.
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Mean *float64 `json:"mean,omitempty"`
}

// JSONLSink implements Sink by appending one JSON line per logged payload to
// a file. Writes are flushed immediately so partial runs still leave a
// usable log. The sink is safe for concurrent use.
type JSONLSink struct {
	path  string
	runID string

	file *os.File
	mu   sync.Mutex
}

var _ Sink = (*JSONLSink)(nil)

// NewJSONLSink opens path in append mode, creating it if needed. The
// returned sink must be closed when done.
//
// Example:
//
//	sink, err := eval.NewJSONLSink("metrics.jsonl")
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
func NewJSONLSink(path string) (*JSONLSink, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open sink file %s: %w", path, err)
	}
	return &JSONLSink{path: path, file: file}, nil
}

// WithRunID stamps every subsequent entry with the given run identifier and
// returns the sink for chaining.
func (s *JSONLSink) WithRunID(id string) *JSONLSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = id
	return s
}

// LogScalar implements Sink.
func (s *JSONLSink) LogScalar(value float64, step int64, name, prefix string) error {
	v := value
	return s.write(SinkEntry{
		Kind:   "scalar",
		Prefix: prefix,
		Name:   name,
		Step:   step,
		Value:  &v,
	})
}

// LogImage implements Sink.
func (s *JSONLSink) LogImage(img tensor.Dense, step int64, name, prefix string) error {
	return s.write(summarize("image", img, step, name, prefix))
}

// LogVideo implements Sink.
func (s *JSONLSink) LogVideo(vid tensor.Dense, step int64, name, prefix string) error {
	return s.write(summarize("video", vid, step, name, prefix))
}

func summarize(kind string, t tensor.Dense, step int64, name, prefix string) SinkEntry {
	entry := SinkEntry{
		Kind:   kind,
		Prefix: prefix,
		Name:   name,
		Step:   step,
		Shape:  t.Shape(),
	}
	data := t.Data()
	if len(data) == 0 {
		return entry
	}
	mn, mx, sum := data[0], data[0], 0.0
	for _, v := range data {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
		sum += v
	}
	mean := sum / float64(len(data))
	entry.Min, entry.Max, entry.Mean = &mn, &mx, &mean
	return entry
}

func (s *JSONLSink) write(entry SinkEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Timestamp = time.Now().UTC()
	entry.RunID = s.runID

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal sink entry: %w", err)
	}
	if _, err := s.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write sink entry: %w", err)
	}
	// Flush so a crashed run still leaves complete lines behind.
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("failed to flush sink file: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("failed to flush sink file before close: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to close sink file: %w", err)
	}
	return nil
}
