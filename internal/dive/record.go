// Package dive holds the in-memory form of one glider dive file: named,
// dimensioned variables with their attributes, plus the file's global
// attributes.
package dive

import (
	"math"
	"slices"
)

// Attributes is an ordered set of named attribute values. The zero value is
// an empty set ready to use.
type Attributes struct {
	keys []string
	vals map[string]any
}

// Keys returns the attribute names in insertion order.
func (a Attributes) Keys() []string {
	return slices.Clone(a.keys)
}

// Len returns the number of attributes.
func (a Attributes) Len() int {
	return len(a.keys)
}

// Get returns the value of the named attribute.
func (a Attributes) Get(key string) (any, bool) {
	v, ok := a.vals[key]
	return v, ok
}

// String returns the named attribute if it is a string.
func (a Attributes) String(key string) (string, bool) {
	v, ok := a.vals[key].(string)
	return v, ok
}

// Set adds or replaces an attribute. A replaced attribute keeps its position.
func (a *Attributes) Set(key string, val any) {
	if a.vals == nil {
		a.vals = make(map[string]any)
	}
	if _, ok := a.vals[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.vals[key] = val
}

// Delete removes an attribute if present.
func (a *Attributes) Delete(key string) {
	if _, ok := a.vals[key]; !ok {
		return
	}
	delete(a.vals, key)
	a.keys = slices.DeleteFunc(a.keys, func(k string) bool { return k == key })
}

// Clone returns an independent copy. Attribute values are shared.
func (a Attributes) Clone() Attributes {
	c := Attributes{
		keys: slices.Clone(a.keys),
		vals: make(map[string]any, len(a.vals)),
	}
	for k, v := range a.vals {
		c.vals[k] = v
	}
	return c
}

// Variable is a named, dimensioned array. Numeric data is flattened in
// row-major order into Values with NaN marking missing entries; character
// data is kept in Text instead.
type Variable struct {
	Name   string
	Dims   []string
	Shape  []int
	Values []float64
	Text   []string
	Attrs  Attributes
}

// NewVariable returns a one-dimensional numeric variable over dim.
func NewVariable(name, dim string, values []float64) *Variable {
	return &Variable{
		Name:   name,
		Dims:   []string{dim},
		Shape:  []int{len(values)},
		Values: values,
	}
}

// Filled returns a one-dimensional variable of length n holding only NaN.
func Filled(name, dim string, n int) *Variable {
	values := make([]float64, n)
	for i := range values {
		values[i] = math.NaN()
	}
	return NewVariable(name, dim, values)
}

// IsText reports whether the variable holds character data.
func (v *Variable) IsText() bool {
	return v.Text != nil
}

// HasDim reports whether dim is one of the variable's dimensions.
func (v *Variable) HasDim(dim string) bool {
	return slices.Contains(v.Dims, dim)
}

// Stride returns the number of values per index of the leading dimension.
func (v *Variable) Stride() int {
	n := 1
	for _, s := range v.Shape[min(1, len(v.Shape)):] {
		n *= s
	}
	return n
}

// Clone returns a deep copy of the variable's data and attributes.
func (v *Variable) Clone() *Variable {
	return &Variable{
		Name:   v.Name,
		Dims:   slices.Clone(v.Dims),
		Shape:  slices.Clone(v.Shape),
		Values: slices.Clone(v.Values),
		Text:   slices.Clone(v.Text),
		Attrs:  v.Attrs.Clone(),
	}
}

// Dimension is a named axis length.
type Dimension struct {
	Name string
	Len  int
}

// Record is one dive file: its dimensions, variables and global attributes.
// Dimensions and variables keep the order in which they were added.
type Record struct {
	Name  string
	Attrs Attributes

	dims []Dimension
	vars []*Variable
}

// NewRecord returns an empty record named after its file identifier.
func NewRecord(name string) *Record {
	return &Record{Name: name}
}

// Dims returns the record's dimensions.
func (r *Record) Dims() []Dimension {
	return slices.Clone(r.dims)
}

// Dim returns the length of the named dimension.
func (r *Record) Dim(name string) (int, bool) {
	for _, d := range r.dims {
		if d.Name == name {
			return d.Len, true
		}
	}
	return 0, false
}

// SetDim adds or resizes a dimension.
func (r *Record) SetDim(name string, n int) {
	for i, d := range r.dims {
		if d.Name == name {
			r.dims[i].Len = n
			return
		}
	}
	r.dims = append(r.dims, Dimension{Name: name, Len: n})
}

// DropDim removes a dimension. Variables using it are not touched.
func (r *Record) DropDim(name string) {
	r.dims = slices.DeleteFunc(r.dims, func(d Dimension) bool { return d.Name == name })
}

// Vars returns the record's variables.
func (r *Record) Vars() []*Variable {
	return slices.Clone(r.vars)
}

// VarNames returns the names of the record's variables.
func (r *Record) VarNames() []string {
	names := make([]string, len(r.vars))
	for i, v := range r.vars {
		names[i] = v.Name
	}
	return names
}

// Var returns the named variable.
func (r *Record) Var(name string) (*Variable, bool) {
	for _, v := range r.vars {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// Put adds a variable, replacing any variable of the same name in place.
func (r *Record) Put(v *Variable) {
	for i, old := range r.vars {
		if old.Name == v.Name {
			r.vars[i] = v
			return
		}
	}
	r.vars = append(r.vars, v)
}

// Drop removes the named variable if present.
func (r *Record) Drop(name string) {
	r.vars = slices.DeleteFunc(r.vars, func(v *Variable) bool { return v.Name == name })
}
