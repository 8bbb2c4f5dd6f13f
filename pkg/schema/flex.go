package schema

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mettamodeler/mettasim/pkg/model"
)

// flexFloat accepts JSON numbers and numeric strings. Editor exports have
// historically quoted numeric fields, so "0.5" and 0.5 must both parse.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return model.Invalidf("malformed numeric string %s", s)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return model.Invalidf("not a number: %q", str)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return model.Invalidf("not a number: %s", s)
	}
	*f = flexFloat(v)
	return nil
}

// flexInt accepts JSON integers, floats with integral value, and numeric
// strings.
type flexInt int

func (i *flexInt) UnmarshalJSON(b []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(b); err != nil {
		return err
	}
	*i = flexInt(f)
	return nil
}

func floatMap(in map[string]flexFloat) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = float64(v)
	}
	return out
}
