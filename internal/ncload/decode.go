package ncload

import (
	"fmt"
	"math"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// flatten converts the nested slices returned by the NetCDF reader into a
// flat row-major []float64 and its shape.
func flatten(v any) ([]float64, []int, error) {
	rv := reflect.ValueOf(v)
	if isNumber(rv.Kind()) {
		return []float64{toFloat(rv)}, nil, nil
	}
	if rv.Kind() != reflect.Slice {
		return nil, nil, fmt.Errorf("unsupported value type %T", v)
	}

	var shape []int
	for t, r := rv.Type(), rv; t.Kind() == reflect.Slice; t = t.Elem() {
		shape = append(shape, r.Len())
		if r.Len() > 0 {
			r = r.Index(0)
		}
	}

	out := make([]float64, 0, product(shape))
	var walk func(r reflect.Value, depth int) error
	walk = func(r reflect.Value, depth int) error {
		if r.Len() != shape[depth] {
			return fmt.Errorf("ragged value at depth %d", depth)
		}
		if depth == len(shape)-1 {
			if !isNumber(r.Type().Elem().Kind()) {
				return fmt.Errorf("unsupported element type %s", r.Type().Elem())
			}
			for i := range r.Len() {
				out = append(out, toFloat(r.Index(i)))
			}
			return nil
		}
		for i := range r.Len() {
			if err := walk(r.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(r reflect.Value) float64 {
	switch {
	case r.CanInt():
		return float64(r.Int())
	case r.CanUint():
		return float64(r.Uint())
	default:
		return r.Float()
	}
}

// attrFloat reads a numeric attribute. Single-element attributes may be
// reported as a scalar or a one-element slice.
func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	vals, _, err := flatten(v)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func attrString(attrs api.AttributeMap, key string) (string, bool) {
	if attrs == nil {
		return "", false
	}
	v, ok := attrs.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// decoding holds the CF packing attributes of one variable.
type decoding struct {
	fill      []float64
	scale     float64
	offset    float64
	validMin  float64
	validMax  float64
	hasBounds bool
}

func newDecoding(attrs api.AttributeMap) decoding {
	d := decoding{scale: 1, validMin: math.Inf(-1), validMax: math.Inf(1)}
	for _, key := range []string{"_FillValue", "missing_value"} {
		if v, ok := attrFloat(attrs, key); ok {
			d.fill = append(d.fill, v)
		}
	}
	if v, ok := attrFloat(attrs, "scale_factor"); ok {
		d.scale = v
	}
	if v, ok := attrFloat(attrs, "add_offset"); ok {
		d.offset = v
	}
	if v, ok := attrFloat(attrs, "valid_min"); ok {
		d.validMin, d.hasBounds = v, true
	}
	if v, ok := attrFloat(attrs, "valid_max"); ok {
		d.validMax, d.hasBounds = v, true
	}
	return d
}

// apply decodes packed values in place: fill values and values outside the
// valid range become NaN, the rest are unpacked.
func (d decoding) apply(vals []float64) {
	for i, raw := range vals {
		if math.IsNaN(raw) || d.isFill(raw) || (d.hasBounds && (raw < d.validMin || raw > d.validMax)) {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = raw*d.scale + d.offset
	}
}

func (d decoding) isFill(v float64) bool {
	for _, f := range d.fill {
		// Fill values stored as float32 lose precision once widened.
		if v == f || float32(v) == float32(f) {
			return true
		}
	}
	return false
}
