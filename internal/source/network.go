package source

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/baccuslab/blds/internal/samples"
)

// deviceProfile describes the fixed characteristics of a simulated network
// device type. Real hidens/mcs installations negotiate these over their own
// wire protocols; the simulated driver fixes them per device type so the
// rest of the coordinator can be exercised without physical hardware.
type deviceProfile struct {
	nchannels      int
	sampleRate     float64
	gain           float64
	adcRange       float64
	hasAnalogOut   bool
	analogOutChans int
}

var deviceProfiles = map[string]deviceProfile{
	"hidens": {nchannels: 126, sampleRate: 20000, gain: 1024, adcRange: 3.3, hasAnalogOut: false},
	"mcs":    {nchannels: 60, sampleRate: 20000, gain: 1200, adcRange: 4.5, hasAnalogOut: true, analogOutChans: 8},
}

// NewSimulatedSource returns a Source that fabricates sample data for a
// network device type ("hidens" or "mcs") rather than dialing real
// acquisition hardware.
func NewSimulatedSource(deviceType, location string, readInterval time.Duration) (Source, error) {
	profile, ok := deviceProfiles[deviceType]
	if !ok {
		return nil, fmt.Errorf("unknown network device type %q", deviceType)
	}
	drv := &networkDriver{
		deviceType: deviceType,
		location:   location,
		profile:    profile,
		rng:        rand.New(rand.NewSource(seedFor(location))),
	}
	return newEngine(deviceType, drv, readInterval), nil
}

// seedFor derives a deterministic PRNG seed from a location string so that
// repeated runs against the same simulated location produce the same
// sample stream, which is convenient for tests and demos.
func seedFor(location string) int64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(location); i++ {
		h ^= uint64(location[i])
		h *= 1099511628211
	}
	seed := int64(h)
	if seed < 0 {
		seed = -seed
	}
	return seed
}

type networkDriver struct {
	deviceType string
	location   string
	profile    deviceProfile

	rng       *rand.Rand
	streaming bool
	gain      float64
	analogOut []float64
	phase     float64
}

func (d *networkDriver) open() (StatusMap, error) {
	d.gain = d.profile.gain
	d.analogOut = make([]float64, d.profile.analogOutChans)

	status := StatusMap{
		KeySourceType:      StringValue(d.deviceType),
		KeyDeviceType:      StringValue(d.deviceType),
		KeyLocation:        StringValue(d.location),
		KeyNChannels:       Int64Value(int64(d.profile.nchannels)),
		KeySampleRate:      Float64Value(d.profile.sampleRate),
		KeyGain:            Float64Value(d.gain),
		KeyAdcRange:        Float64Value(d.profile.adcRange),
		KeyHasAnalogOutput: BoolValue(d.profile.hasAnalogOut),
	}
	if d.profile.hasAnalogOut {
		status[KeyAnalogOutput] = Float64SeqValue(append([]float64(nil), d.analogOut...))
	}
	return status, nil
}

func (d *networkDriver) get(param string) (Value, bool) {
	switch param {
	case KeySourceType, KeyDeviceType:
		return StringValue(d.deviceType), true
	case KeyLocation:
		return StringValue(d.location), true
	case KeyNChannels:
		return Int64Value(int64(d.profile.nchannels)), true
	case KeySampleRate:
		return Float64Value(d.profile.sampleRate), true
	case KeyGain:
		return Float64Value(d.gain), true
	case KeyAdcRange:
		return Float64Value(d.profile.adcRange), true
	case KeyHasAnalogOutput:
		return BoolValue(d.profile.hasAnalogOut), true
	case KeyAnalogOutput:
		if !d.profile.hasAnalogOut {
			return Value{}, false
		}
		return Float64SeqValue(append([]float64(nil), d.analogOut...)), true
	default:
		return Value{}, false
	}
}

func (d *networkDriver) set(param string, value Value) error {
	switch param {
	case KeyGain:
		if value.Kind != KindFloat64 && value.Kind != KindInt64 {
			return fmt.Errorf("gain must be numeric")
		}
		if value.Kind == KindFloat64 {
			d.gain = value.Float
		} else {
			d.gain = float64(value.Int)
		}
		return nil
	case KeyAnalogOutput:
		if !d.profile.hasAnalogOut {
			return fmt.Errorf("%s has no analog output", d.deviceType)
		}
		if value.Kind != KindFloat64Seq {
			return fmt.Errorf("analog-output must be a sequence of floats")
		}
		if len(value.Seq) != len(d.analogOut) {
			return fmt.Errorf("analog-output expects %d values, got %d", len(d.analogOut), len(value.Seq))
		}
		copy(d.analogOut, value.Seq)
		return nil
	default:
		return fmt.Errorf("parameter %q is not settable on %s sources", param, d.deviceType)
	}
}

func (d *networkDriver) startStream() error {
	d.streaming = true
	return nil
}

func (d *networkDriver) stopStream() error {
	d.streaming = false
	return nil
}

func (d *networkDriver) nextBatch() (matrixEvent, error) {
	rows := 1
	nchan := d.profile.nchannels
	out := samples.New(rows, nchan)

	for c := 0; c < nchan; c++ {
		signal := 2000 * math.Sin(d.phase+float64(c)*0.1)
		noise := (d.rng.Float64() - 0.5) * 400
		out.Data[c] = int16(signal + noise)
	}
	d.phase += 0.05
	return matrixEvent{Matrix: out}, nil
}

func (d *networkDriver) close() error {
	return nil
}
