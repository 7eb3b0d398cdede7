// Package coordinator implements the single-writer event loop that
// mediates between client sessions, the managed data source, and the
// recording sink. It is the sole mutator of server state, the source
// reference, and the sink reference.
package coordinator

import (
	"time"

	"github.com/baccuslab/blds/internal/source"
)

// Config holds the server-scope values fixed at startup.
type Config struct {
	ClientPort             int
	HTTPPort               int
	MaxConnections         int
	DefaultRecordingLength uint32  // seconds
	DefaultReadInterval    uint32  // milliseconds
	DefaultSaveDirectory   string
	MaxChunkSize           float64 // seconds
	SaveFilenameFormat     string  // Go time.Format layout
}

// serverState is the mutable, coordinator-owned server-scope state.
type serverState struct {
	saveDirectory   string
	saveFile        string // basename; "" until set or until a recording names one
	recordingLength uint32
	readInterval    uint32
	startTime       time.Time
	sourceStatus    source.StatusMap
}

// sourceState is the lifecycle state of the managed Source, as observed by
// clients.
type sourceState int

const (
	stateAbsent sourceState = iota
	stateCreating
	stateReady
	stateStreaming
	stateError
)

func (s sourceState) String() string {
	switch s {
	case stateAbsent:
		return "absent"
	case stateCreating:
		return "creating"
	case stateReady:
		return "ready"
	case stateStreaming:
		return "streaming"
	case stateError:
		return "error"
	default:
		return "unknown"
	}
}
