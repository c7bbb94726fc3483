package dive

import (
	"fmt"
	"math"
	"path/filepath"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/spf13/cast"
)

// Attributes consumed while decoding values. They describe the packed
// representation and are dropped from the decoded variable.
var packingAttrs = []string{"_FillValue", "missing_value", "scale_factor", "add_offset"}

// dimensioner is implemented by CDF groups, which know the length of every
// declared dimension including ones no variable uses.
type dimensioner interface {
	ListDimensions() []string
	GetDimension(name string) (uint64, bool)
}

// ReadFile opens a NetCDF file and reads it into a Record named after the
// file's base name.
func ReadFile(path string) (*Record, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer nc.Close()
	return Read(filepath.Base(path), nc)
}

// Read reads every variable and attribute of an open group.
func Read(name string, nc api.Group) (*Record, error) {
	rec := NewRecord(name)
	rec.Attrs = attributes(nc.Attributes())
	for _, vn := range nc.ListVariables() {
		av, err := nc.GetVariable(vn)
		if err != nil {
			return nil, fmt.Errorf("reading variable %q: %w", vn, err)
		}
		v, err := decode(vn, av)
		if err != nil {
			return nil, err
		}
		rec.Put(v)
	}
	if d, ok := nc.(dimensioner); ok {
		for _, dn := range d.ListDimensions() {
			if n, ok := d.GetDimension(dn); ok {
				rec.SetDim(dn, int(n))
			}
		}
	}
	// Fill in whatever the group could not report from variable shapes.
	for _, v := range rec.vars {
		for i, dn := range v.Dims {
			if _, ok := rec.Dim(dn); !ok && i < len(v.Shape) {
				rec.SetDim(dn, v.Shape[i])
			}
		}
	}
	return rec, nil
}

func attributes(am api.AttributeMap) Attributes {
	var attrs Attributes
	if am == nil {
		return attrs
	}
	for _, k := range am.Keys() {
		if v, ok := am.Get(k); ok {
			attrs.Set(k, v)
		}
	}
	return attrs
}

func decode(name string, av *api.Variable) (*Variable, error) {
	v := &Variable{
		Name:  name,
		Dims:  av.Dimensions,
		Attrs: attributes(av.Attributes),
	}
	switch vals := av.Values.(type) {
	case string:
		v.Text = []string{vals}
		v.Shape = textShape(v.Dims, 1, len(vals))
		return v, nil
	case []string:
		v.Text = vals
		v.Shape = textShape(v.Dims, len(vals), maxLen(vals))
		return v, nil
	}

	values, shape, err := flatten(av.Values)
	if err != nil {
		return nil, fmt.Errorf("decoding variable %q: %w", name, err)
	}
	v.Values = values
	v.Shape = shape
	unpack(v)
	return v, nil
}

// textShape reports the shape of a character variable. The innermost
// dimension of a char array is the string length.
func textShape(dims []string, n, strlen int) []int {
	switch len(dims) {
	case 0:
		return nil
	case 1:
		return []int{strlen}
	default:
		return []int{n, strlen}
	}
}

func maxLen(ss []string) int {
	n := 0
	for _, s := range ss {
		n = max(n, len(s))
	}
	return n
}

// flatten converts any scalar or (nested) slice of numbers into a flat
// []float64 and its shape.
func flatten(values any) ([]float64, []int, error) {
	switch vals := values.(type) {
	case []float64:
		return toFloat64(vals), []int{len(vals)}, nil
	case []float32:
		return toFloat64(vals), []int{len(vals)}, nil
	case []int32:
		return toFloat64(vals), []int{len(vals)}, nil
	case []int16:
		return toFloat64(vals), []int{len(vals)}, nil
	case []int8:
		return toFloat64(vals), []int{len(vals)}, nil
	case []uint8:
		return toFloat64(vals), []int{len(vals)}, nil
	case []int64:
		return toFloat64(vals), []int{len(vals)}, nil
	}

	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice {
		f, err := cast.ToFloat64E(values)
		if err != nil {
			return nil, nil, err
		}
		return []float64{f}, nil, nil
	}
	var shape []int
	for s := rv; s.Kind() == reflect.Slice; {
		shape = append(shape, s.Len())
		if s.Len() == 0 {
			break
		}
		s = s.Index(0)
	}
	var out []float64
	var walk func(reflect.Value) error
	walk = func(s reflect.Value) error {
		if s.Kind() != reflect.Slice {
			f, err := cast.ToFloat64E(s.Interface())
			if err != nil {
				return err
			}
			out = append(out, f)
			return nil
		}
		for i := range s.Len() {
			if err := walk(s.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rv); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

func toFloat64[T int8 | uint8 | int16 | int32 | int64 | float32 | float64](vals []T) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = float64(v)
	}
	return out
}

// unpack masks fill values and applies scale_factor/add_offset the way CF
// readers do, leaving physical values with NaN for missing entries.
func unpack(v *Variable) {
	var missing []float64
	for _, key := range []string{"_FillValue", "missing_value"} {
		if a, ok := v.Attrs.Get(key); ok {
			if f, err := cast.ToFloat64E(first(a)); err == nil {
				missing = append(missing, f)
			}
		}
	}
	scale, offset := 1.0, 0.0
	if a, ok := v.Attrs.Get("scale_factor"); ok {
		scale = cast.ToFloat64(first(a))
	}
	if a, ok := v.Attrs.Get("add_offset"); ok {
		offset = cast.ToFloat64(first(a))
	}
	for i, x := range v.Values {
		for _, m := range missing {
			if x == m {
				x = math.NaN()
				break
			}
		}
		v.Values[i] = x*scale + offset
	}
	for _, key := range packingAttrs {
		v.Attrs.Delete(key)
	}
}

// first returns the first element of a slice-valued attribute, or the value
// itself for scalars.
func first(a any) any {
	rv := reflect.ValueOf(a)
	if rv.Kind() == reflect.Slice && rv.Len() > 0 {
		return rv.Index(0).Interface()
	}
	return a
}
