// Package paramdict implements the per-layer configuration record: a
// key-indexed bag of scalars and 1-D arrays, parseable from four
// interchangeable wire formats (text stream, text memory, binary
// stream, binary aligned memory) into one logical representation.
//
// Wire-format keys for arrays use the historical ncnn-style sentinel:
// an array for logical key id is carried under wire key -23300-id, and
// the binary stream is terminated by the exact sentinel key -233
// (never produced by -23300-id for id >= 0, so the two never collide).
// Within a logical key, whether the value is integral or floating
// point is decided by the key's parity (even => int, odd => float),
// applied symmetrically to scalars and arrays.
package paramdict

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	arrayKeyBase  = -23300
	sentinelArray = -233
)

// Options are the Net-wide optimization toggles snapshotted into every
// ParamDict at load time, avoiding process-wide globals.
type Options struct {
	Winograd bool
	SGEMM    bool
	Int8     bool
	GPU      bool

	// GPUWorkgroupLimits holds the device's max local workgroup size
	// per axis, ambient context used by GPU layers picking specialization
	// constants during load_param.
	GPUWorkgroupLimits [3]int
}

// entry is the internal representation of one logical key's value,
// format-agnostic so that text/binary loading produce identical
// ParamDicts regardless of which wire format was parsed.
type entry struct {
	isArray bool
	isFloat bool
	ints    []int64
	floats  []float64
}

// ParamDict is a parsed per-layer parameter record.
type ParamDict struct {
	values *orderedmap.OrderedMap[int, entry]

	// Options and GPUWorkgroupLimits are ambient Net context, not part
	// of the per-layer record itself.
	Options Options
}

// New returns an empty ParamDict.
func New() *ParamDict {
	return &ParamDict{values: orderedmap.New[int, entry]()}
}

// SetInt stores a scalar int value under key (test/programmatic use;
// wire readers populate entries directly).
func (pd *ParamDict) SetInt(key int, v int64) {
	pd.values.Set(key, entry{ints: []int64{v}})
}

// SetFloat stores a scalar float value under key.
func (pd *ParamDict) SetFloat(key int, v float64) {
	pd.values.Set(key, entry{isFloat: true, floats: []float64{v}})
}

// SetInts stores an int array under key.
func (pd *ParamDict) SetInts(key int, v []int64) {
	pd.values.Set(key, entry{isArray: true, ints: append([]int64(nil), v...)})
}

// SetFloats stores a float array under key.
func (pd *ParamDict) SetFloats(key int, v []float64) {
	pd.values.Set(key, entry{isArray: true, isFloat: true, floats: append([]float64(nil), v...)})
}

// Has reports whether key was present in the record. Unreferenced and
// unknown keys are never an error; this exists purely so a layer can
// distinguish "absent" from "present with the default value".
func (pd *ParamDict) Has(key int) bool {
	_, ok := pd.values.Get(key)
	return ok
}

// Int returns the scalar int value for key, or def if absent.
func (pd *ParamDict) Int(key int, def int) int {
	e, ok := pd.values.Get(key)
	if !ok {
		return def
	}
	if e.isFloat {
		if len(e.floats) == 0 {
			return def
		}
		return int(e.floats[0])
	}
	if len(e.ints) == 0 {
		return def
	}
	return int(e.ints[0])
}

// Float returns the scalar float value for key, or def if absent.
func (pd *ParamDict) Float(key int, def float32) float32 {
	e, ok := pd.values.Get(key)
	if !ok {
		return def
	}
	if e.isFloat {
		if len(e.floats) == 0 {
			return def
		}
		return float32(e.floats[0])
	}
	if len(e.ints) == 0 {
		return def
	}
	return float32(e.ints[0])
}

// Ints returns the int array for key, or def if absent.
func (pd *ParamDict) Ints(key int, def []int) []int {
	e, ok := pd.values.Get(key)
	if !ok {
		return def
	}
	out := make([]int, 0, max(len(e.ints), len(e.floats)))
	if e.isFloat {
		for _, f := range e.floats {
			out = append(out, int(f))
		}
	} else {
		for _, i := range e.ints {
			out = append(out, int(i))
		}
	}
	return out
}

// Floats returns the float array for key, or def if absent.
func (pd *ParamDict) Floats(key int, def []float32) []float32 {
	e, ok := pd.values.Get(key)
	if !ok {
		return def
	}
	out := make([]float32, 0, max(len(e.ints), len(e.floats)))
	if e.isFloat {
		for _, f := range e.floats {
			out = append(out, float32(f))
		}
	} else {
		for _, i := range e.ints {
			out = append(out, float32(i))
		}
	}
	return out
}

// Keys returns the logical keys present, in insertion order.
func (pd *ParamDict) Keys() []int {
	keys := make([]int, 0, pd.values.Len())
	for pair := pd.values.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
