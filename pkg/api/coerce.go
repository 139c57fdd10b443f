package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/NERVsystems/ecoroute/pkg/core"
)

// looseNumber accepts a JSON number or a numeric string. Strings are read up
// to their first non-numeric character, and anything unparseable is zero.
type looseNumber struct {
	raw   string
	num   float64
	isNum bool
}

// UnmarshalJSON implements json.Unmarshaler
func (n *looseNumber) UnmarshalJSON(data []byte) error {
	*n = looseNumber{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &n.raw)
	case 't', 'f', '{', '[':
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return nil
	}
	n.num, n.isNum = f, true
	return nil
}

// Float returns the value as a float, or zero
func (n looseNumber) Float() float64 {
	v := n.num
	if !n.isNum {
		v = core.LeadingFloat(n.raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Int returns the value truncated toward zero, or zero
func (n looseNumber) Int() int {
	if !n.isNum {
		return core.LeadingInt(n.raw)
	}
	if math.IsNaN(n.num) || math.IsInf(n.num, 0) || math.Abs(n.num) > math.MaxInt32 {
		return 0
	}
	return int(math.Trunc(n.num))
}

// coords is an optional {lat, lng} object in a request body
type coords struct {
	Lat looseNumber `json:"lat"`
	Lng looseNumber `json:"lng"`
}

// resolveCoordinate picks the explicit coordinate if it is non-zero, else the
// matching half of a "lat,lng" address string, else zero.
func resolveCoordinate(explicit *looseNumber, address string, index int) float64 {
	if explicit != nil {
		if v := explicit.Float(); v != 0 {
			return v
		}
	}
	if lat, lng, ok := core.ParseLatLngString(address); ok {
		if index == 0 {
			return lat
		}
		return lng
	}
	return 0
}
