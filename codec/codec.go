// Package codec turns buffered points into backend wire-format text.
// Each codec is a pure function of its input: identical point sequences
// always produce identical payloads, with tags and fields rendered in
// sorted key order.
package codec

import (
	"math"
	"sort"
	"strconv"

	"github.com/shallowclouds/unitsdb/backend"
	"github.com/shallowclouds/unitsdb/metric"
)

// Encoder serializes a sequence of points into one payload string.
type Encoder func(points []metric.Point) string

// ForKind returns the codec for the given backend kind.
func ForKind(kind backend.Kind) Encoder {
	switch kind {
	case backend.Warp10:
		return ClassLabel
	default:
		return LineProtocol
	}
}

func sortedTagKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedFieldKeys(fields map[string]interface{}) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// integerString renders any int/uint width as decimal digits.
func integerString(v interface{}) (string, bool) {
	switch val := v.(type) {
	case int:
		return strconv.FormatInt(int64(val), 10), true
	case int8:
		return strconv.FormatInt(int64(val), 10), true
	case int16:
		return strconv.FormatInt(int64(val), 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint:
		return strconv.FormatUint(uint64(val), 10), true
	case uint8:
		return strconv.FormatUint(uint64(val), 10), true
	case uint16:
		return strconv.FormatUint(uint64(val), 10), true
	case uint32:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	}
	return "", false
}

// floatString renders a float in plain decimal notation, keeping a ".0"
// suffix on whole numbers so backends that distinguish integers from
// floats keep the value typed as a float.
func floatString(v interface{}) (string, bool) {
	var f float64
	switch val := v.(type) {
	case float32:
		f = float64(val)
	case float64:
		f = val
	default:
		return "", false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return s, true
		}
	}
	return s + ".0", true
}
