package coordinator

import (
	"fmt"

	"github.com/baccuslab/blds/internal/source"
	"github.com/baccuslab/blds/internal/wire"
)

func (c *Coordinator) handleSourceEvent(ev source.Event) {
	switch e := ev.(type) {
	case source.Initialized:
		c.handleInitialized(e)
	case source.StatusReport:
		c.state.sourceStatus = e.Status
	case source.GetResponse:
		c.handleGetResponse(e)
	case source.SetResponse:
		c.handleSetResponse(e)
	case source.StreamStarted:
		c.handleStreamStarted(e)
	case source.StreamStopped:
		c.handleStreamStopped(e)
	case source.SamplesAvailable:
		c.handleSamples(e)
	case source.Failed:
		c.handleSourceFailed(e)
	}
}

func (c *Coordinator) handleInitialized(e source.Initialized) {
	sess := c.pendingCreate
	c.pendingCreate = nil

	if !e.Success {
		c.teardownSource()
		if sess != nil {
			sess.SendSourceCreateResponse(false, e.Msg)
		}
		return
	}

	c.srcState = stateReady
	if sess != nil {
		sess.SendSourceCreateResponse(true, "")
	}
}

func (c *Coordinator) handleGetResponse(e source.GetResponse) {
	if len(c.pendingGets) == 0 {
		return
	}
	sess := c.pendingGets[0]
	c.pendingGets = c.pendingGets[1:]

	if !e.Valid {
		sess.SendSourceGetResponse(e.Param, false, nil, e.Err)
		return
	}
	sess.SendSourceGetResponse(e.Param, true, encodeValue(e.Value), "")
}

func (c *Coordinator) handleSetResponse(e source.SetResponse) {
	if len(c.pendingSets) == 0 {
		return
	}
	sess := c.pendingSets[0]
	c.pendingSets = c.pendingSets[1:]
	sess.SendSourceSetResponse(e.Param, e.Success, e.Msg)

	if e.Success {
		c.src.RequestStatus()
	}
}

func (c *Coordinator) handleStreamStarted(e source.StreamStarted) {
	sess := c.pendingStreamStart
	c.pendingStreamStart = nil

	if !e.Success {
		c.discardSink()
		if sess != nil {
			sess.SendStartRecordingResponse(false, e.Msg)
		}
		return
	}

	c.srcState = stateStreaming
	if sess != nil {
		sess.SendStartRecordingResponse(true, "")
	}
}

func (c *Coordinator) handleStreamStopped(e source.StreamStopped) {
	sess := c.pendingStreamStopClient
	c.pendingStreamStopClient = nil

	c.discardSink()
	if c.srcState == stateStreaming {
		c.srcState = stateReady
	}

	if sess != nil {
		sess.SendStopRecordingResponse(e.Success, e.Msg)
	}
}

func (c *Coordinator) discardSink() {
	if c.sink == nil {
		return
	}
	c.sink.Close()
	c.sink = nil
	c.state.saveFile = ""
}

// handleSamples appends a newly available sample batch to the active
// recording, broadcasts it to all-data subscribers, serves any pending
// chunk requests it now covers, and auto-stops the recording once it
// reaches recording-length.
func (c *Coordinator) handleSamples(e source.SamplesAvailable) {
	if c.sink == nil {
		return
	}

	startIndex, err := c.sink.Append(e.Matrix)
	if err != nil {
		c.failAllClients(fmt.Sprintf("recording write failed: %v", err))
		c.srcState = stateReady
		c.discardSink()
		c.src.RequestStopStream()
		c.teardownSource()
		return
	}

	sampleRate := c.sink.SampleRate()
	start := float32(float64(startIndex) / sampleRate)
	stop := float32(c.sink.Length())

	for _, cl := range c.clients {
		if cl.RequestedAllData() {
			cl.SendDataFrame(wire.DataFrame{Start: start, Stop: stop, Samples: e.Matrix})
		}
	}

	for _, cl := range c.clients {
		for cl.NumServicable(c.sink.Length()) > 0 {
			req, ok := cl.PopNextRequest()
			if !ok {
				break
			}
			startSample := uint64(float64(req.Start) * sampleRate)
			endSample := uint64(float64(req.Stop) * sampleRate)
			m, err := c.sink.Read(startSample, endSample)
			if err != nil {
				cl.SendError(fmt.Sprintf("failed to read recording for [%v,%v): %v", req.Start, req.Stop, err))
				continue
			}
			cl.SendDataFrame(wire.DataFrame{Start: req.Start, Stop: req.Stop, Samples: m})
		}
	}

	if c.sink.Length() >= float64(c.state.recordingLength) {
		c.recordingFinished()
	}
}

func (c *Coordinator) failAllClients(msg string) {
	for _, cl := range c.clients {
		cl.SendError(msg)
		cl.Close()
	}
	c.clients = nil
}

// handleSourceFailed reacts to an asynchronous fatal error from the source
// adapter. It stops short of teardownSource: the source itself is already
// dead, but the type and location it reported stay visible at GET /status
// until the client acknowledges the failure with delete-source.
func (c *Coordinator) handleSourceFailed(e source.Failed) {
	c.logger.Error("source failed", "msg", e.Msg)
	c.failAllClients(SourceError{Msg: e.Msg}.Error())
	c.discardSink()
	if c.srcCancel != nil {
		c.srcCancel()
		c.srcCancel = nil
	}
	if c.src != nil {
		c.src.Close()
		c.src = nil
	}
	c.srcState = stateError
}

// encodeValue renders a source.Value for the opaque get-source wire
// encoding: raw bytes pass through, everything else is its string form.
func encodeValue(v source.Value) []byte {
	switch v.Kind {
	case source.KindBytes, source.KindConfig:
		return v.Bytes
	default:
		return []byte(v.String())
	}
}
