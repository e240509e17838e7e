package codec

import (
	"strconv"
	"strings"

	"github.com/shallowclouds/unitsdb/metric"
)

// DefaultMeasurement names points that were appended without a measurement
// on the line-protocol backend, which requires one per line.
const DefaultMeasurement = "data"

// lineEscaper neutralizes the characters that are structural in line
// protocol. Applied to tag keys/values, field keys and string field values.
var lineEscaper = strings.NewReplacer(
	`\`, `\\`,
	` `, `\ `,
	`,`, `\,`,
	`=`, `\=`,
	"\n", `\n`,
	`'`, `\'`,
	`"`, `\"`,
)

func escapeLine(s string) string {
	s = lineEscaper.Replace(s)
	// A trailing backslash would swallow the separator that follows.
	if strings.HasSuffix(s, `\`) {
		s += " "
	}
	return s
}

func lineValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return `"` + escapeLine(s) + `"`
	}
	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b)
	}
	// The backend parses unsuffixed numbers as floats, so integers carry
	// the "i" type marker.
	if s, ok := integerString(v); ok {
		return s + "i"
	}
	if s, ok := floatString(v); ok {
		return s
	}
	return ""
}

// LineProtocol renders one line per point:
//
//	<measurement>[,<tag>=<value>...] <field>=<value>[,...] <timestamp_ns>
//
// Point timestamps are milliseconds and the wire wants nanoseconds.
func LineProtocol(points []metric.Point) string {
	var b strings.Builder
	for _, p := range points {
		measurement := p.Measurement
		if measurement == "" {
			measurement = DefaultMeasurement
		}
		b.WriteString(measurement)
		for _, key := range sortedTagKeys(p.Tags) {
			b.WriteByte(',')
			b.WriteString(escapeLine(key))
			b.WriteByte('=')
			b.WriteString(escapeLine(p.Tags[key]))
		}
		b.WriteByte(' ')
		for i, key := range sortedFieldKeys(p.Fields) {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(escapeLine(key))
			b.WriteByte('=')
			b.WriteString(lineValue(p.Fields[key]))
		}
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(p.Timestamp*1000000, 10))
		b.WriteByte('\n')
	}
	return b.String()
}
