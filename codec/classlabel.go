package codec

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shallowclouds/unitsdb/metric"
)

// escapeClass percent-encodes class names, label keys/values and string
// values, which the GTS input format requires for anything outside the
// URL-safe character set.
func escapeClass(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func classValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return "'" + escapeClass(s) + "'"
	}
	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b)
	}
	if s, ok := integerString(v); ok {
		return s
	}
	if s, ok := floatString(v); ok {
		return s
	}
	return ""
}

// ClassLabel renders one line per field:
//
//	<timestamp_us>// <classname>{<label>=<value>,...} <value>
//
// The class name is "<measurement>.<field>" when the point carries a
// measurement, else the bare field name. Point timestamps are milliseconds
// and the wire wants microseconds.
func ClassLabel(points []metric.Point) string {
	var b strings.Builder
	for _, p := range points {
		timestamp := strconv.FormatInt(p.Timestamp*1000, 10)

		var labels strings.Builder
		for i, key := range sortedTagKeys(p.Tags) {
			if i > 0 {
				labels.WriteByte(',')
			}
			labels.WriteString(escapeClass(key))
			labels.WriteByte('=')
			labels.WriteString(escapeClass(p.Tags[key]))
		}

		for _, key := range sortedFieldKeys(p.Fields) {
			class := key
			if p.Measurement != "" {
				class = p.Measurement + "." + key
			}
			b.WriteString(timestamp)
			b.WriteString("// ")
			b.WriteString(escapeClass(class))
			b.WriteByte('{')
			b.WriteString(labels.String())
			b.WriteString("} ")
			b.WriteString(classValue(p.Fields[key]))
			b.WriteByte('\n')
		}
	}
	return b.String()
}
