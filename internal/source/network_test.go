package source

import (
	"math/rand"
	"testing"
	"time"
)

func TestSimulatedSourceUnknownDeviceType(t *testing.T) {
	if _, err := NewSimulatedSource("oscilloscope", "loc", time.Millisecond); err == nil {
		t.Fatal("expected error for unknown device type")
	}
}

func TestSimulatedSourceInitAndStream(t *testing.T) {
	src, err := NewSimulatedSource("mcs", "rig-1", time.Millisecond)
	if err != nil {
		t.Fatalf("NewSimulatedSource: %v", err)
	}
	cancel := runEngine(t, src.(*engine))
	defer cancel()

	src.RequestInit()
	init, ok := recvEvent(t, src.(*engine)).(Initialized)
	if !ok || !init.Success {
		t.Fatalf("Initialized = %#v", init)
	}
	status, ok := recvEvent(t, src.(*engine)).(StatusReport)
	if !ok {
		t.Fatalf("expected StatusReport")
	}
	if status.Status[KeyHasAnalogOutput].Bool != true {
		t.Fatalf("mcs profile should report has-analog-output = true")
	}

	src.RequestSet(KeyAnalogOutput, Float64SeqValue([]float64{1, 2, 3, 4, 5, 6, 7, 8}))
	set, ok := recvEvent(t, src.(*engine)).(SetResponse)
	if !ok || !set.Success {
		t.Fatalf("SetResponse = %#v", set)
	}

	src.RequestSet(KeyAnalogOutput, Float64SeqValue([]float64{1}))
	set, ok = recvEvent(t, src.(*engine)).(SetResponse)
	if !ok || set.Success {
		t.Fatalf("SetResponse for wrong-length sequence = %#v, want failure", set)
	}

	src.RequestStartStream()
	recvEvent(t, src.(*engine)) // StreamStarted
	ev := recvEvent(t, src.(*engine))
	sa, ok := ev.(SamplesAvailable)
	if !ok || sa.Matrix.NChannels != 60 {
		t.Fatalf("event = %#v, want SamplesAvailable with 60 channels", ev)
	}
}

func TestSimulatedSourceDeterministic(t *testing.T) {
	drv1 := &networkDriver{deviceType: "hidens", location: "loc-a", profile: deviceProfiles["hidens"]}
	drv1.rng = rand.New(rand.NewSource(seedFor("loc-a")))
	drv2 := &networkDriver{deviceType: "hidens", location: "loc-a", profile: deviceProfiles["hidens"]}
	drv2.rng = rand.New(rand.NewSource(seedFor("loc-a")))

	drv1.open()
	drv2.open()

	b1, _ := drv1.nextBatch()
	b2, _ := drv2.nextBatch()
	for i := range b1.Matrix.Data {
		if b1.Matrix.Data[i] != b2.Matrix.Data[i] {
			t.Fatalf("same seed produced different samples at %d: %d vs %d", i, b1.Matrix.Data[i], b2.Matrix.Data[i])
		}
	}
}
