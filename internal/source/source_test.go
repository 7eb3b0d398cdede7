package source

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// fakeDriver is a minimal in-memory driver used to exercise engine's request
// plumbing without a real file or network backend.
type fakeDriver struct {
	openErr  error
	params   map[string]Value
	setErr   error
	startErr error
	stopErr  error
	batches  chan matrixEvent
	batchErr error
	closed   bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		params:  map[string]Value{"gain": Float64Value(1)},
		batches: make(chan matrixEvent, 8),
	}
}

func (d *fakeDriver) open() (StatusMap, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return StatusMap{KeySourceType: StringValue("fake")}, nil
}

func (d *fakeDriver) get(param string) (Value, bool) {
	v, ok := d.params[param]
	return v, ok
}

func (d *fakeDriver) set(param string, value Value) error {
	if d.setErr != nil {
		return d.setErr
	}
	d.params[param] = value
	return nil
}

func (d *fakeDriver) startStream() error { return d.startErr }
func (d *fakeDriver) stopStream() error { return d.stopErr }

func (d *fakeDriver) nextBatch() (matrixEvent, error) {
	if d.batchErr != nil {
		return matrixEvent{}, d.batchErr
	}
	b := <-d.batches
	return b, nil
}

func (d *fakeDriver) close() error {
	d.closed = true
	return nil
}

func runEngine(t *testing.T, e *engine) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	return cancel
}

func TestEngineInitSuccess(t *testing.T) {
	drv := newFakeDriver()
	e := newEngine("fake", drv, time.Millisecond)
	cancel := runEngine(t, e)
	defer cancel()

	e.RequestInit()

	ev1 := recvEvent(t, e)
	init, ok := ev1.(Initialized)
	if !ok || !init.Success {
		t.Fatalf("first event = %#v, want successful Initialized", ev1)
	}
	ev2 := recvEvent(t, e)
	if _, ok := ev2.(StatusReport); !ok {
		t.Fatalf("second event = %#v, want StatusReport", ev2)
	}
}

func TestEngineInitFailure(t *testing.T) {
	drv := newFakeDriver()
	drv.openErr = fmt.Errorf("device not found")
	e := newEngine("fake", drv, time.Millisecond)
	cancel := runEngine(t, e)
	defer cancel()

	e.RequestInit()
	ev := recvEvent(t, e)
	init, ok := ev.(Initialized)
	if !ok || init.Success {
		t.Fatalf("event = %#v, want failed Initialized", ev)
	}
}

func TestEngineGetSet(t *testing.T) {
	drv := newFakeDriver()
	e := newEngine("fake", drv, time.Millisecond)
	cancel := runEngine(t, e)
	defer cancel()

	e.RequestGet("gain")
	ev := recvEvent(t, e)
	get, ok := ev.(GetResponse)
	if !ok || !get.Valid || get.Value.Float != 1 {
		t.Fatalf("GetResponse = %#v", ev)
	}

	e.RequestSet("gain", Float64Value(2))
	ev = recvEvent(t, e)
	set, ok := ev.(SetResponse)
	if !ok || !set.Success {
		t.Fatalf("SetResponse = %#v", ev)
	}

	e.RequestGet("gain")
	ev = recvEvent(t, e)
	get, ok = ev.(GetResponse)
	if !ok || get.Value.Float != 2 {
		t.Fatalf("GetResponse after set = %#v", ev)
	}

	e.RequestGet("missing")
	ev = recvEvent(t, e)
	get, ok = ev.(GetResponse)
	if !ok || get.Valid {
		t.Fatalf("GetResponse for missing param = %#v, want invalid", ev)
	}
}

func TestEngineStreamLifecycle(t *testing.T) {
	drv := newFakeDriver()
	e := newEngine("fake", drv, 2*time.Millisecond)
	cancel := runEngine(t, e)
	defer cancel()

	e.RequestStartStream()
	started := recvEvent(t, e)
	if ss, ok := started.(StreamStarted); !ok || !ss.Success {
		t.Fatalf("StreamStarted = %#v", started)
	}

	drv.batches <- matrixEvent{}
	sample := recvEvent(t, e)
	if _, ok := sample.(SamplesAvailable); !ok {
		t.Fatalf("expected SamplesAvailable, got %#v", sample)
	}

	e.RequestStopStream()
	stopped := recvEvent(t, e)
	if sp, ok := stopped.(StreamStopped); !ok || !sp.Success {
		t.Fatalf("StreamStopped = %#v", stopped)
	}

	// A second stop must report failure, not block or panic.
	e.RequestStopStream()
	stopped2 := recvEvent(t, e)
	if sp, ok := stopped2.(StreamStopped); !ok || sp.Success {
		t.Fatalf("second StreamStopped = %#v, want failure", stopped2)
	}
}

func TestEngineStreamFailure(t *testing.T) {
	drv := newFakeDriver()
	drv.batchErr = fmt.Errorf("device disconnected")
	e := newEngine("fake", drv, time.Millisecond)
	cancel := runEngine(t, e)
	defer cancel()

	e.RequestStartStream()
	recvEvent(t, e) // StreamStarted

	ev := recvEvent(t, e)
	if _, ok := ev.(Failed); !ok {
		t.Fatalf("event = %#v, want Failed", ev)
	}
}

func recvEvent(t *testing.T, e *engine) Event {
	t.Helper()
	select {
	case ev := <-e.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}
