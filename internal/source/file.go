package source

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/baccuslab/blds/internal/samples"
)

// fileHeader is the on-disk layout of a replay file: little-endian
// sample-rate (f64), channel count (u32), gain (f32) and adc-range (f32),
// followed by raw row-major int16 samples to end of file.
type fileHeader struct {
	SampleRate float64
	NChannels  uint32
	Gain       float32
	AdcRange   float32
}

const fileHeaderSize = 8 + 4 + 4 + 4

// NewFileSource returns a Source that replays the local file at location
// (opened when the source is initialized), streaming its contents at a pace
// governed by readInterval and the file's declared sample rate, looping back
// to the start when it reaches EOF.
func NewFileSource(location string, readInterval time.Duration) Source {
	drv := &fileDriver{path: location, readInterval: readInterval}
	return newEngine("file", drv, readInterval)
}

type fileDriver struct {
	path         string
	readInterval time.Duration

	f        *os.File
	header   fileHeader
	rowBytes int64
	dataOff  int64
	pos      int64 // row index
	status   StatusMap
}

func (d *fileDriver) open() (StatusMap, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	var hdr fileHeader
	if err := readHeader(f, &hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("read replay file header: %w", err)
	}
	if hdr.NChannels == 0 {
		f.Close()
		return nil, fmt.Errorf("replay file declares zero channels")
	}

	d.f = f
	d.header = hdr
	d.rowBytes = int64(hdr.NChannels) * 2
	d.dataOff = fileHeaderSize

	d.status = StatusMap{
		KeySourceType: StringValue("file"),
		KeyDeviceType: StringValue("file"),
		KeyLocation:   StringValue(d.path),
		KeyNChannels:  Int64Value(int64(hdr.NChannels)),
		KeySampleRate: Float64Value(hdr.SampleRate),
		KeyGain:       Float64Value(float64(hdr.Gain)),
		KeyAdcRange:   Float64Value(float64(hdr.AdcRange)),
	}
	return d.status, nil
}

func readHeader(f *os.File, hdr *fileHeader) error {
	buf := make([]byte, fileHeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return err
	}
	hdr.SampleRate = math.Float64frombits(binary.LittleEndian.Uint64(buf[0:8]))
	hdr.NChannels = binary.LittleEndian.Uint32(buf[8:12])
	hdr.Gain = math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16]))
	hdr.AdcRange = math.Float32frombits(binary.LittleEndian.Uint32(buf[16:20]))
	return nil
}

func (d *fileDriver) get(param string) (Value, bool) {
	v, ok := d.status[param]
	return v, ok
}

func (d *fileDriver) set(param string, value Value) error {
	return fmt.Errorf("file sources do not support setting parameters (got %q)", param)
}

func (d *fileDriver) startStream() error {
	if d.f == nil {
		return fmt.Errorf("source is not initialized")
	}
	return nil
}

func (d *fileDriver) stopStream() error {
	return nil
}

// rowsPerTick returns how many sample rows one read-interval tick should
// produce to replay the file at its declared sample rate.
func (d *fileDriver) rowsPerTick() int {
	n := int(d.header.SampleRate * d.readInterval.Seconds())
	if n < 1 {
		n = 1
	}
	return n
}

func (d *fileDriver) nextBatch() (matrixEvent, error) {
	rows := d.rowsPerTick()
	nchan := int(d.header.NChannels)
	out := samples.New(rows, nchan)

	for i := 0; i < rows; i++ {
		off := d.dataOff + d.pos*d.rowBytes
		if _, err := d.f.Seek(off, io.SeekStart); err != nil {
			return matrixEvent{}, fmt.Errorf("seek replay file: %w", err)
		}
		row := make([]byte, d.rowBytes)
		if _, err := io.ReadFull(d.f, row); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				// Loop back to the start of the data region rather than
				// stopping; open-ended replay is simpler for clients to
				// reason about than a source that silently goes quiet.
				d.pos = 0
				off = d.dataOff
				if _, err := d.f.Seek(off, io.SeekStart); err != nil {
					return matrixEvent{}, fmt.Errorf("seek replay file: %w", err)
				}
				if _, err := io.ReadFull(d.f, row); err != nil {
					return matrixEvent{}, fmt.Errorf("replay file too short to contain one row: %w", err)
				}
			} else {
				return matrixEvent{}, fmt.Errorf("read replay file: %w", err)
			}
		}
		for c := 0; c < nchan; c++ {
			out.Data[i*nchan+c] = int16(binary.LittleEndian.Uint16(row[c*2 : c*2+2]))
		}
		d.pos++
	}
	return matrixEvent{Matrix: out}, nil
}

func (d *fileDriver) close() error {
	if d.f == nil {
		return nil
	}
	return d.f.Close()
}
