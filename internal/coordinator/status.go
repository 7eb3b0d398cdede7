package coordinator

import "github.com/baccuslab/blds/internal/source"

// Status is the read-only projection of coordinator state served at
// GET /status.
type Status struct {
	StartTime         string   `json:"start-time"`
	SaveDirectory     string   `json:"save-directory"`
	SaveFile          string   `json:"save-file"`
	RecordingLength   uint32   `json:"recording-length"`
	ReadInterval      uint32   `json:"read-interval"`
	RecordingExists   bool     `json:"recording-exists"`
	RecordingPosition float64  `json:"recording-position"`
	SourceExists      bool     `json:"source-exists"`
	SourceType        string   `json:"source-type"`
	DeviceType        string   `json:"device-type"`
	SourceLocation    string   `json:"source-location"`
	Clients           []string `json:"clients"`
}

type statusRequest struct {
	resp chan Status
}

type sourceStatusRequest struct {
	resp chan sourceStatusResult
}

type sourceStatusResult struct {
	status source.StatusMap
	exists bool
}

func (c *Coordinator) snapshotStatus() Status {
	clients := make([]string, len(c.clients))
	for i, cl := range c.clients {
		clients[i] = cl.RemoteAddr()
	}

	st := Status{
		StartTime:       c.state.startTime.Format("2006-01-02T15:04:05Z07:00"),
		SaveDirectory:   c.state.saveDirectory,
		SaveFile:        c.state.saveFile,
		RecordingLength: c.state.recordingLength,
		ReadInterval:    c.state.readInterval,
		RecordingExists: c.sink != nil,
		SourceExists:    c.srcState != stateAbsent,
		SourceType:      c.srcType,
		DeviceType:      deviceTypeOf(c.state.sourceStatus),
		SourceLocation:  c.srcLocation,
		Clients:         clients,
	}
	if c.sink != nil {
		st.RecordingPosition = c.sink.Length()
	}
	return st
}

func deviceTypeOf(m source.StatusMap) string {
	if v, ok := m[source.KeyDeviceType]; ok {
		return v.Str
	}
	return ""
}

// RequestStatus asks the coordinator's event loop for a consistent
// snapshot of server status. Safe to call from any goroutine (e.g. the
// HTTP status handler).
func (c *Coordinator) RequestStatus() Status {
	req := statusRequest{resp: make(chan Status, 1)}
	c.statusRequests <- req
	return <-req.resp
}

// RequestSourceStatus asks the coordinator for the current source-status
// map. exists is false when no source is present.
func (c *Coordinator) RequestSourceStatus() (source.StatusMap, bool) {
	req := sourceStatusRequest{resp: make(chan sourceStatusResult, 1)}
	c.sourceStatusRequests <- req
	res := <-req.resp
	return res.status, res.exists
}
