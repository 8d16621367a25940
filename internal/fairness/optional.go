package fairness

import (
	"encoding/json"
	"math"
)

// Optional is a real number that may be absent. The zero value is absent,
// so a rate that was never computed can not be mistaken for 0.0.
type Optional struct {
	value float64
	known bool
}

// Known wraps a computed value.
func Known(v float64) Optional {
	return Optional{value: v, known: true}
}

// Unknown is the not-computable marker.
func Unknown() Optional {
	return Optional{}
}

// Get returns the value and whether it is known.
func (o Optional) Get() (float64, bool) {
	return o.value, o.known
}

// IsKnown reports whether the value was computed.
func (o Optional) IsKnown() bool {
	return o.known
}

// Ptr returns nil for an unknown value.
func (o Optional) Ptr() *float64 {
	if !o.known {
		return nil
	}
	v := o.value
	return &v
}

// ratio divides and returns Unknown on a zero denominator.
func ratio(num, den int) Optional {
	if den == 0 {
		return Unknown()
	}
	return Known(float64(num) / float64(den))
}

func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.known || math.IsNaN(o.value) || math.IsInf(o.value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Optional) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Unknown()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Known(v)
	return nil
}
