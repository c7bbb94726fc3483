package dive

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/spf13/cast"
)

// WriteFile writes a record as a NetCDF classic file, replacing any existing
// file at path.
func WriteFile(path string, rec *Record) (err error) {
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cw.Close(); err == nil {
			err = cerr
		}
	}()

	for _, v := range rec.vars {
		attrs, err := v.Attrs.orderedMap()
		if err != nil {
			return fmt.Errorf("attributes of %q: %w", v.Name, err)
		}
		values, err := v.data()
		if err != nil {
			return err
		}
		err = cw.AddVar(v.Name, api.Variable{
			Values:     values,
			Dimensions: v.Dims,
			Attributes: attrs,
		})
		if err != nil {
			return fmt.Errorf("writing variable %q: %w", v.Name, err)
		}
	}
	if rec.Attrs.Len() > 0 {
		attrs, err := rec.Attrs.orderedMap()
		if err != nil {
			return fmt.Errorf("global attributes: %w", err)
		}
		if err := cw.AddGlobalAttrs(attrs); err != nil {
			return fmt.Errorf("writing global attributes: %w", err)
		}
	}
	return nil
}

// data reshapes the flattened values into the nested slice the CDF writer
// expects for the variable's shape.
func (v *Variable) data() (any, error) {
	if v.IsText() {
		if len(v.Dims) <= 1 {
			return strings.Join(v.Text, ""), nil
		}
		return v.Text, nil
	}
	if len(v.Shape) == 0 {
		if len(v.Values) != 1 {
			return nil, fmt.Errorf("scalar variable %q holds %d values", v.Name, len(v.Values))
		}
		return v.Values[0], nil
	}
	n := 1
	for _, s := range v.Shape {
		n *= s
	}
	if n != len(v.Values) {
		return nil, fmt.Errorf("variable %q has shape %v but %d values", v.Name, v.Shape, len(v.Values))
	}
	if len(v.Shape) == 1 {
		return v.Values, nil
	}
	return reshape(v.Values, v.Shape).Interface(), nil
}

func reshape(values []float64, shape []int) reflect.Value {
	if len(shape) == 1 {
		return reflect.ValueOf(values[:shape[0]:shape[0]])
	}
	stride := len(values) / max(shape[0], 1)
	inner := reshape(values[:min(stride, len(values))], shape[1:])
	out := reflect.MakeSlice(reflect.SliceOf(inner.Type()), shape[0], shape[0])
	for i := range shape[0] {
		out.Index(i).Set(reshape(values[i*stride:(i+1)*stride], shape[1:]))
	}
	return out
}

func (a Attributes) orderedMap() (*util.OrderedMap, error) {
	vals := make(map[string]any, len(a.keys))
	keys := make([]string, 0, len(a.keys))
	for _, k := range a.keys {
		v, ok := attrValue(a.vals[k])
		if !ok {
			continue
		}
		keys = append(keys, k)
		vals[k] = v
	}
	return util.NewOrderedMap(keys, vals)
}

// attrValue converts an attribute value into one of the types a classic CDF
// attribute can hold. Values with no representation report false.
func attrValue(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case string, float64, float32, int32, int16, int8,
		[]float64, []float32, []int32, []int16, []int8:
		return x, true
	case bool:
		return cast.ToString(x), true
	case time.Time:
		return x.UTC().Format(time.RFC3339), true
	case int, int64, uint, uint32, uint64, uint16, uint8:
		i := cast.ToInt64(x)
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return int32(i), true
		}
		return float64(i), true
	case []string:
		return strings.Join(x, ", "), true
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			parts = append(parts, cast.ToString(e))
		}
		return strings.Join(parts, ", "), true
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, false
	}
	return s, true
}
