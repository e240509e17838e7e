package metric

import (
	"github.com/pkg/errors"
)

// ErrValidation is returned when a point is rejected before entering the
// buffer, so callers can distinguish bad input from transport trouble with
// errors.Is.
var ErrValidation = errors.New("invalid point")

// Point is one timestamped observation with optional tags and one or more
// named field values.
type Point struct {
	// Timestamp is the observation time in milliseconds since the Unix
	// epoch. Zero means "not set"; the ingester stamps it at append time.
	Timestamp int64
	// Measurement is the series name. Native to the line-protocol backend,
	// emulated as a class-name prefix on the class/label backend.
	Measurement string
	Tags        map[string]string
	// Fields maps field names to values. Supported value types are
	// string, bool, all int/uint widths, float32 and float64.
	Fields map[string]interface{}
}

// Validate checks that the point can be serialized for any backend: at
// least one field, and every field value of a supported type.
func (p Point) Validate() error {
	if len(p.Fields) == 0 {
		return errors.WithMessage(ErrValidation, "point has no fields")
	}
	for key, val := range p.Fields {
		switch val.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			return errors.WithMessagef(ErrValidation, "unsupported type %T for field %q", val, key)
		}
	}
	return nil
}

// Copy returns a deep copy of the point so the buffer owns its data and
// later mutations by the caller cannot leak into a pending payload.
func (p Point) Copy() Point {
	q := p
	if p.Tags != nil {
		q.Tags = make(map[string]string, len(p.Tags))
		for k, v := range p.Tags {
			q.Tags[k] = v
		}
	}
	if p.Fields != nil {
		q.Fields = make(map[string]interface{}, len(p.Fields))
		for k, v := range p.Fields {
			q.Fields[k] = v
		}
	}
	return q
}
