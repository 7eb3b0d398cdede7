// Package source defines the abstract contract the coordinator requires of
// any data source: a cooperative asynchronous actor exchanging one-shot
// requests for paired response events, plus an out-of-band stream of sample
// batches and fatal errors.
package source

import "fmt"

// Kind tags the concrete type held by a Value, an explicit tagged union in
// place of a dynamic variant type.
type Kind uint8

const (
	KindString Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindBytes
	KindFloat64Seq
	KindConfig
)

// Value is a single parameter value of a source's status map or of a
// get/set request, tagged by Kind. Only the field matching Kind is valid.
type Value struct {
	Kind  Kind
	Str   string
	Bool  bool
	Int   int64
	Float float64
	Bytes []byte
	Seq   []float64
}

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

func Int64Value(i int64) Value { return Value{Kind: KindInt64, Int: i} }

func Float64Value(f float64) Value { return Value{Kind: KindFloat64, Float: f} }

func BytesValue(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

func Float64SeqValue(s []float64) Value { return Value{Kind: KindFloat64Seq, Seq: s} }

func ConfigValue(b []byte) Value { return Value{Kind: KindConfig, Bytes: b} }

// String renders a Value for logging and for parameters whose wire encoding
// is a raw string.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindInt64:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat64:
		return fmt.Sprintf("%g", v.Float)
	case KindBytes, KindConfig:
		return fmt.Sprintf("<%d bytes>", len(v.Bytes))
	case KindFloat64Seq:
		return fmt.Sprintf("<%d values>", len(v.Seq))
	default:
		return "<unknown>"
	}
}

// Well-known status map keys.
const (
	KeySourceType      = "source-type"
	KeyDeviceType      = "device-type"
	KeyLocation        = "location"
	KeyNChannels       = "nchannels"
	KeySampleRate      = "sample-rate"
	KeyGain            = "gain"
	KeyAdcRange        = "adc-range"
	KeyHasAnalogOutput = "has-analog-output"
	KeyAnalogOutput    = "analog-output"
	KeyConfiguration   = "configuration"
)

// StatusMap is the heterogeneous source-status mirror held by the
// coordinator and the source alike.
type StatusMap map[string]Value

// Clone returns a shallow copy of m, safe for a reader to keep after the
// owner mutates its own map.
func (m StatusMap) Clone() StatusMap {
	out := make(StatusMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
