package source

import "github.com/baccuslab/blds/internal/samples"

// Event is the tagged union of asynchronous events a Source emits on its
// Events channel.
type Event interface {
	sourceEvent()
}

// Initialized is emitted exactly once per init request.
type Initialized struct {
	Success bool
	Msg     string
}

// StatusReport is emitted in response to a status request.
type StatusReport struct {
	Status StatusMap
}

// GetResponse is emitted per get request.
type GetResponse struct {
	Param string
	Valid bool
	Value Value  // valid only if Valid
	Err   string // valid only if !Valid
}

// SetResponse is emitted per set request.
type SetResponse struct {
	Param   string
	Success bool
	Msg     string
}

// StreamStarted is emitted per start-stream request.
type StreamStarted struct {
	Success bool
	Msg     string
}

// StreamStopped is emitted per stop-stream request.
type StreamStopped struct {
	Success bool
	Msg     string
}

// SamplesAvailable is emitted zero or more times while streaming.
type SamplesAvailable struct {
	Matrix samples.Matrix
}

// Failed is an out-of-band fatal error; the coordinator tears the source
// down and fails every client on receipt.
type Failed struct {
	Msg string
}

func (Initialized) sourceEvent() {}
func (StatusReport) sourceEvent() {}
func (GetResponse) sourceEvent() {}
func (SetResponse) sourceEvent() {}
func (StreamStarted) sourceEvent() {}
func (StreamStopped) sourceEvent() {}
func (SamplesAvailable) sourceEvent() {}
func (Failed) sourceEvent() {}
