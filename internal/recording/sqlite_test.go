package recording

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/baccuslab/blds/internal/samples"
)

func createTestSink(t *testing.T, nchannels int, isHidens bool) (Sink, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recording.sqlite")
	sink, err := CreateSQLiteSink(path, 10000, nchannels, isHidens)
	if err != nil {
		t.Fatalf("CreateSQLiteSink: %v", err)
	}
	return sink, func() { sink.Close() }
}

func TestCreateSQLiteSinkRejectsExistingPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.sqlite")
	sink, err := CreateSQLiteSink(path, 10000, 4, false)
	if err != nil {
		t.Fatalf("CreateSQLiteSink: %v", err)
	}
	sink.Close()

	if _, err := CreateSQLiteSink(path, 10000, 4, false); err == nil {
		t.Fatal("expected ErrPathExists for an existing recording path")
	}
}

func TestSinkAppendAndRead(t *testing.T) {
	sink, cleanup := createTestSink(t, 3, false)
	defer cleanup()

	m1 := samples.New(5, 3)
	for i := range m1.Data {
		m1.Data[i] = int16(i)
	}
	start, err := sink.Append(m1)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if start != 0 {
		t.Fatalf("start = %d, want 0", start)
	}
	if sink.NSamples() != 5 {
		t.Fatalf("NSamples() = %d, want 5", sink.NSamples())
	}

	m2 := samples.New(2, 3)
	for i := range m2.Data {
		m2.Data[i] = int16(100 + i)
	}
	start2, err := sink.Append(m2)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if start2 != 5 {
		t.Fatalf("start2 = %d, want 5", start2)
	}

	out, err := sink.Read(0, 5)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range out.Data {
		if out.Data[i] != m1.Data[i] {
			t.Fatalf("Read()[%d] = %d, want %d", i, out.Data[i], m1.Data[i])
		}
	}

	out2, err := sink.Read(5, 7)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range out2.Data {
		if out2.Data[i] != m2.Data[i] {
			t.Fatalf("Read()[%d] = %d, want %d", i, out2.Data[i], m2.Data[i])
		}
	}

	if got, want := sink.Length(), 7.0/10000; got != want {
		t.Fatalf("Length() = %v, want %v", got, want)
	}
}

func TestSinkMetadataSetters(t *testing.T) {
	hidensSink, cleanup := createTestSink(t, 126, true)
	defer cleanup()

	if err := hidensSink.SetGain(2); err != nil {
		t.Fatalf("SetGain: %v", err)
	}
	if err := hidensSink.SetConfiguration([]byte{1, 2, 3}); err != nil {
		t.Fatalf("SetConfiguration: %v", err)
	}
	if err := hidensSink.SetAnalogOutputSize(4); err == nil {
		t.Fatal("expected SetAnalogOutputSize to fail on a hidens sink")
	}

	mcsSink, cleanup2 := createTestSink(t, 60, false)
	defer cleanup2()

	if err := mcsSink.SetAnalogOutputSize(8); err != nil {
		t.Fatalf("SetAnalogOutputSize: %v", err)
	}
	if err := mcsSink.SetConfiguration([]byte{1}); err == nil {
		t.Fatal("expected SetConfiguration to fail on a non-hidens sink")
	}
	if err := mcsSink.SetDate(time.Now()); err != nil {
		t.Fatalf("SetDate: %v", err)
	}
}

func TestDefaultFilenameAndExtension(t *testing.T) {
	if got, want := WithExtension("rec"), "rec.h5"; got != want {
		t.Errorf("WithExtension(%q) = %q, want %q", "rec", got, want)
	}
	if got, want := WithExtension("rec.H5"), "rec.H5"; got != want {
		t.Errorf("WithExtension(%q) = %q, want %q", "rec.H5", got, want)
	}
	if got, want := WithExtension("rec.hdf5"), "rec.hdf5"; got != want {
		t.Errorf("WithExtension(%q) = %q, want %q", "rec.hdf5", got, want)
	}

	ts := time.Date(2026, 8, 6, 12, 30, 45, 0, time.UTC)
	if got, want := DefaultFilename(ts, "2006-01-02T15-04-05"), "2026-08-06T12-30-45.h5"; got != want {
		t.Errorf("DefaultFilename = %q, want %q", got, want)
	}
}
