package wire

import (
	"fmt"

	"github.com/baccuslab/blds/internal/samples"
)

// DataFrame is the wire representation of a sample batch bounded by a time
// range, sent in reply to a chunk request or as a live broadcast. start and
// stop are float32 on the wire, matching the get-data request itself; the
// coordinator converts from its internal float64 bookkeeping at this
// boundary.
type DataFrame struct {
	Start   float32
	Stop    float32
	Samples samples.Matrix
}

// EncodeDataFrame serializes a DataFrame's body: f32 start, f32 stop, u32
// nsamples, u32 nchannels, then nsamples*nchannels little-endian int16
// values in row-major order.
func EncodeDataFrame(f DataFrame) []byte {
	rows := f.Samples.Rows()
	buf := make([]byte, 0, 4+4+4+4+len(f.Samples.Data)*2)
	buf = PutFloat32(buf, f.Start)
	buf = PutFloat32(buf, f.Stop)
	buf = PutUint32(buf, uint32(rows))
	buf = PutUint32(buf, uint32(f.Samples.NChannels))
	for _, v := range f.Samples.Data {
		buf = PutInt16(buf, v)
	}
	return buf
}

// DecodeDataFrame parses a DataFrame body produced by EncodeDataFrame.
func DecodeDataFrame(buf []byte) (DataFrame, error) {
	start, buf, err := GetFloat32(buf)
	if err != nil {
		return DataFrame{}, fmt.Errorf("data frame start: %w", err)
	}
	stop, buf, err := GetFloat32(buf)
	if err != nil {
		return DataFrame{}, fmt.Errorf("data frame stop: %w", err)
	}
	nrows, buf, err := GetUint32(buf)
	if err != nil {
		return DataFrame{}, fmt.Errorf("data frame nsamples: %w", err)
	}
	nchan, buf, err := GetUint32(buf)
	if err != nil {
		return DataFrame{}, fmt.Errorf("data frame nchannels: %w", err)
	}
	want := int(nrows) * int(nchan)
	if len(buf) < want*2 {
		return DataFrame{}, fmt.Errorf("data frame: short sample payload, want %d values got %d bytes", want, len(buf))
	}
	data := make([]int16, want)
	for i := range data {
		v, rest, err := GetInt16(buf)
		if err != nil {
			return DataFrame{}, fmt.Errorf("data frame sample %d: %w", i, err)
		}
		data[i] = v
		buf = rest
	}
	return DataFrame{
		Start: start,
		Stop:  stop,
		Samples: samples.Matrix{
			NChannels: int(nchan),
			Data:      data,
		},
	}, nil
}
