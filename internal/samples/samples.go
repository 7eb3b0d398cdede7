// Package samples defines the row-major sample matrix shared by the source
// adapter, the recording sink, and the wire codec.
package samples

// Matrix is a row-major block of signed 16-bit samples with shape
// (Rows, NChannels). It is the unit moved from a Source to the coordinator,
// appended to a RecordingSink, and broadcast to subscribing clients.
type Matrix struct {
	NChannels int
	Data      []int16 // len == Rows()*NChannels
}

// New allocates a zeroed Matrix of the given shape.
func New(rows, nchannels int) Matrix {
	return Matrix{
		NChannels: nchannels,
		Data:      make([]int16, rows*nchannels),
	}
}

// Rows returns the number of sample rows in the matrix.
func (m Matrix) Rows() int {
	if m.NChannels == 0 {
		return 0
	}
	return len(m.Data) / m.NChannels
}

// Copy returns a deep copy of m, used wherever a receiver must not alias the
// sender's buffer (e.g. a RecordingSink.Append implementation).
func (m Matrix) Copy() Matrix {
	data := make([]int16, len(m.Data))
	copy(data, m.Data)
	return Matrix{NChannels: m.NChannels, Data: data}
}
