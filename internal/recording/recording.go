// Package recording provides the on-disk recording sink, with a pluggable
// backend behind the Sink interface.
package recording

import (
	"fmt"
	"time"

	"github.com/baccuslab/blds/internal/samples"
)

// Sink is the append-only, random-read file a streaming source's samples
// are persisted through. Exactly one exists while the source is Streaming.
type Sink interface {
	// Append writes m to the end of the recording and returns the sample
	// index the write started at.
	Append(m samples.Matrix) (startIndex uint64, err error)

	// Read returns the rows in [startSample, endSample).
	Read(startSample, endSample uint64) (samples.Matrix, error)

	SampleRate() float64
	NSamples() uint64
	Length() float64 // NSamples() / SampleRate()

	SetGain(float32) error
	SetOffset(float32) error
	SetDate(time.Time) error
	SetAnalogOutputSize(int) error // rejected on hidens sinks
	SetConfiguration([]byte) error // rejected on non-hidens sinks

	Close() error
}

// ErrPathExists is returned by CreateSQLiteSink when the target recording path
// already exists on disk.
type ErrPathExists struct{ Path string }

func (e ErrPathExists) Error() string {
	return fmt.Sprintf("recording path already exists: %s", e.Path)
}

// DefaultFilename formats the fallback recording filename for a moment in
// time using layout (a time.Format layout), with a ".h5" extension, used
// when a client never sets save-file.
func DefaultFilename(t time.Time, layout string) string {
	return WithExtension(t.Format(layout))
}

// WithExtension appends ".h5" to name if it does not already end in ".h5"
// or ".hdf5".
func WithExtension(name string) string {
	if hasSuffixFold(name, ".h5") || hasSuffixFold(name, ".hdf5") {
		return name
	}
	return name + ".h5"
}

func hasSuffixFold(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	tail := s[len(s)-len(suffix):]
	for i := 0; i < len(tail); i++ {
		a, b := tail[i], suffix[i]
		if a >= 'A' && a <= 'Z' {
			a += 'a' - 'A'
		}
		if b >= 'A' && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}
