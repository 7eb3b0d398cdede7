package source

import (
	"context"
	"fmt"
	"time"
)

// Source is the abstract contract the coordinator requires of any managed
// data source. Requests are one-shot and fire-and-forget; the caller learns
// the outcome by reading the matching Event off Events(). Run must be
// started in its own goroutine before any request is serviced.
type Source interface {
	// RequestInit, RequestStatus, ... enqueue a request. They never block
	// past handing the request to the source's internal queue.
	RequestInit()
	RequestStatus()
	RequestGet(param string)
	RequestSet(param string, value Value)
	RequestStartStream()
	RequestStopStream()

	// Events delivers the Source's asynchronous responses, in the order
	// they were produced. The coordinator is the sole reader.
	Events() <-chan Event

	// Run drives the source's event loop until ctx is cancelled; Close does
	// not stop it. It must be called exactly once.
	Run(ctx context.Context)

	// Close releases any resources the source holds (open files, sockets).
	Close() error

	// Type returns the source-type string ("file", "hidens", "mcs") the
	// source was constructed with.
	Type() string
}

// driver is the narrow, type-specific backend an engine wraps. Splitting
// Source into a generic request/event engine plus a small driver interface
// keeps every concrete source type (file replay, simulated network device)
// down to "how do I open, read one param, set one param, produce one
// batch" — the request plumbing above is shared.
type driver interface {
	// open performs whatever setup is needed before the source is usable
	// and returns its initial status map.
	open() (StatusMap, error)

	// get returns the current value of param and whether it is known.
	get(param string) (Value, bool)

	// set updates param to value, or returns an error describing why not.
	set(param string, value Value) error

	// startStream prepares the driver to begin producing batches.
	startStream() error

	// stopStream halts batch production.
	stopStream() error

	// nextBatch blocks until the next sample batch is ready, or returns an
	// error if the driver has failed. Only called while streaming.
	nextBatch() (matrixEvent, error)

	// close releases driver resources.
	close() error
}

type matrixEvent = SamplesAvailable

type reqKind int

const (
	reqInit reqKind = iota
	reqStatus
	reqGet
	reqSet
	reqStartStream
	reqStopStream
)

type request struct {
	kind  reqKind
	param string
	value Value
}

// engine implements the shared request/event plumbing of Source over a
// driver. Every concrete source type is an *engine wrapping its own driver.
type engine struct {
	typ          string
	drv          driver
	readInterval time.Duration

	requests chan request
	events   chan Event

	streaming    bool
	streamCancel context.CancelFunc
}

func newEngine(typ string, drv driver, readInterval time.Duration) *engine {
	return &engine{
		typ:          typ,
		drv:          drv,
		readInterval: readInterval,
		requests:     make(chan request, 16),
		events:       make(chan Event, 64),
	}
}

func (e *engine) Type() string { return e.typ }

func (e *engine) Events() <-chan Event { return e.events }

func (e *engine) RequestInit() { e.requests <- request{kind: reqInit} }

func (e *engine) RequestStatus() { e.requests <- request{kind: reqStatus} }

func (e *engine) RequestGet(param string) { e.requests <- request{kind: reqGet, param: param} }

func (e *engine) RequestSet(param string, v Value) {
	e.requests <- request{kind: reqSet, param: param, value: v}
}

func (e *engine) RequestStartStream() { e.requests <- request{kind: reqStartStream} }

func (e *engine) RequestStopStream() { e.requests <- request{kind: reqStopStream} }

func (e *engine) Close() error {
	return e.drv.close()
}

// Run implements Source.Run: a single-goroutine loop that serializes every
// request against the driver and, while streaming, polls nextBatch once per
// read-interval tick. Because exactly one goroutine ever touches drv, the
// driver itself needs no internal locking.
func (e *engine) Run(ctx context.Context) {
	var sampleCh chan samplesResult
	for {
		select {
		case <-ctx.Done():
			return

		case req := <-e.requests:
			e.handleRequest(req, &sampleCh, ctx)

		case res, ok := <-sampleCh:
			if !ok {
				sampleCh = nil
				continue
			}
			if res.err != nil {
				e.events <- Failed{Msg: fmt.Sprintf("source read failed: %v", res.err)}
				e.streaming = false
				sampleCh = nil
				continue
			}
			e.events <- res.event
		}
	}
}

type samplesResult struct {
	event SamplesAvailable
	err   error
}

func (e *engine) handleRequest(req request, sampleCh *chan samplesResult, ctx context.Context) {
	switch req.kind {
	case reqInit:
		status, err := e.drv.open()
		if err != nil {
			e.events <- Initialized{Success: false, Msg: err.Error()}
			return
		}
		e.events <- Initialized{Success: true}
		e.events <- StatusReport{Status: status}

	case reqStatus:
		// The driver's get() is consulted per-key by the coordinator via
		// cached status; a fresh snapshot is only meaningful if the driver
		// tracks it, so engine asks for the well-known keys it knows about.
		status := StatusMap{}
		for _, key := range statusKeys {
			if v, ok := e.drv.get(key); ok {
				status[key] = v
			}
		}
		e.events <- StatusReport{Status: status}

	case reqGet:
		v, ok := e.drv.get(req.param)
		if !ok {
			e.events <- GetResponse{Param: req.param, Valid: false, Err: "unknown parameter: " + req.param}
			return
		}
		e.events <- GetResponse{Param: req.param, Valid: true, Value: v}

	case reqSet:
		if err := e.drv.set(req.param, req.value); err != nil {
			e.events <- SetResponse{Param: req.param, Success: false, Msg: err.Error()}
			return
		}
		e.events <- SetResponse{Param: req.param, Success: true}

	case reqStartStream:
		if err := e.drv.startStream(); err != nil {
			e.events <- StreamStarted{Success: false, Msg: err.Error()}
			return
		}
		e.streaming = true
		*sampleCh = e.startSampling(ctx)
		e.events <- StreamStarted{Success: true}

	case reqStopStream:
		if !e.streaming {
			e.events <- StreamStopped{Success: false, Msg: "stream is not active"}
			return
		}
		e.streaming = false
		if e.streamCancel != nil {
			e.streamCancel()
			e.streamCancel = nil
		}
		*sampleCh = nil
		if err := e.drv.stopStream(); err != nil {
			e.events <- StreamStopped{Success: false, Msg: err.Error()}
			return
		}
		e.events <- StreamStopped{Success: true}
	}
}

// startSampling launches the read-interval ticker that feeds nextBatch
// results back into Run's select loop over a private channel. It owns a
// context derived from the engine's run context, cancelled by a subsequent
// stop-stream so the ticker goroutine exits promptly instead of only on
// shutdown.
func (e *engine) startSampling(parent context.Context) chan samplesResult {
	ctx, cancel := context.WithCancel(parent)
	e.streamCancel = cancel

	ch := make(chan samplesResult, 4)
	go func() {
		ticker := time.NewTicker(e.readInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(ch)
				return
			case <-ticker.C:
				ev, err := e.drv.nextBatch()
				select {
				case ch <- samplesResult{event: ev, err: err}:
				case <-ctx.Done():
					close(ch)
					return
				}
				if err != nil {
					close(ch)
					return
				}
			}
		}
	}()
	return ch
}

var statusKeys = []string{
	KeySourceType, KeyDeviceType, KeyLocation, KeyNChannels, KeySampleRate,
	KeyGain, KeyAdcRange, KeyHasAnalogOutput, KeyAnalogOutput, KeyConfiguration,
}
