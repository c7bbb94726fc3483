package trajectory

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/eleanorfrajka/seagliderOG1/internal/dive"
)

var (
	// ErrSchemaMismatch matches every *SchemaMismatchError.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrEmptyInput is returned when there are no dives to assemble.
	ErrEmptyInput = errors.New("no dives")
)

// SchemaMismatchError reports a dive whose variables differ from those of
// the first dive.
type SchemaMismatchError struct {
	File   string
	Var    string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: %s: %q %s", e.File, ErrSchemaMismatch, e.Var, e.Reason)
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// Summary describes one dive of a trajectory.
type Summary struct {
	Name    string
	Samples int
	Attrs   dive.Attributes
}

// Trajectory is the time-ordered concatenation of reconciled dives. Data
// carries the first dive's global attributes.
type Trajectory struct {
	Data  *dive.Record
	Dives []Summary
	Names Names
}

// Len returns the number of samples.
func (t *Trajectory) Len() int {
	n, _ := t.Data.Dim(t.Names.Measurement)
	return n
}

// Assemble concatenates reconciled dives along the sample axis in the
// given order and then sorts every variable by the primary time, keeping
// the order of equal times. Samples with no time go last. All dives must
// carry the same variables with the same layout.
func Assemble(recs []*dive.Record, n Names) (*Trajectory, error) {
	if len(recs) == 0 {
		return nil, ErrEmptyInput
	}
	first := recs[0]
	if tv, ok := first.Var(n.Time); !ok {
		return nil, &SchemaMismatchError{File: first.Name, Var: n.Time, Reason: "missing primary time"}
	} else if tv.IsText() || !slices.Equal(tv.Dims, []string{n.Measurement}) || len(tv.Shape) != 1 {
		return nil, &SchemaMismatchError{File: first.Name, Var: n.Time, Reason: "primary time is not a numeric sample series"}
	}
	for _, rec := range recs[1:] {
		if err := sameSchema(first, rec); err != nil {
			return nil, err
		}
	}

	data := dive.NewRecord("trajectory")
	data.Attrs = first.Attrs.Clone()
	traj := &Trajectory{Data: data, Dives: make([]Summary, len(recs)), Names: n}
	total := 0
	for i, rec := range recs {
		m, _ := rec.Dim(n.Measurement)
		traj.Dives[i] = Summary{Name: rec.Name, Samples: m, Attrs: rec.Attrs.Clone()}
		total += m
	}
	data.SetDim(n.Measurement, total)
	for _, d := range first.Dims() {
		if d.Name != n.Measurement {
			data.SetDim(d.Name, d.Len)
		}
	}

	for _, proto := range first.Vars() {
		v := &dive.Variable{
			Name:  proto.Name,
			Dims:  slices.Clone(proto.Dims),
			Shape: slices.Clone(proto.Shape),
			Attrs: proto.Attrs.Clone(),
		}
		v.Shape[0] = total
		for _, rec := range recs {
			part, _ := rec.Var(proto.Name)
			if proto.IsText() {
				v.Text = append(v.Text, part.Text...)
				v.Shape[1] = max(v.Shape[1], part.Shape[1])
			} else {
				v.Values = append(v.Values, part.Values...)
			}
		}
		if v.IsText() {
			data.SetDim(v.Dims[1], v.Shape[1])
		}
		data.Put(v)
	}

	tv, _ := data.Var(n.Time)
	if len(tv.Values) != total {
		return nil, &SchemaMismatchError{File: first.Name, Var: n.Time,
			Reason: fmt.Sprintf("has %d values for %d samples", len(tv.Values), total)}
	}
	order := make([]int, total)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return compareTimes(tv.Values[a], tv.Values[b])
	})
	for _, v := range data.Vars() {
		permute(v, order)
	}
	return traj, nil
}

// compareTimes orders times ascending with NaN after every number.
func compareTimes(a, b float64) int {
	switch an, bn := math.IsNaN(a), math.IsNaN(b); {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	return cmp.Compare(a, b)
}

// permute reorders the rows of v so that row i becomes the old row
// order[i].
func permute(v *dive.Variable, order []int) {
	if v.IsText() {
		text := make([]string, len(order))
		for i, j := range order {
			text[i] = v.Text[j]
		}
		v.Text = text
		return
	}
	stride := v.Stride()
	values := make([]float64, 0, len(v.Values))
	for _, j := range order {
		values = append(values, v.Values[j*stride:(j+1)*stride]...)
	}
	v.Values = values
}

func sameSchema(want, got *dive.Record) error {
	for _, wv := range want.Vars() {
		gv, ok := got.Var(wv.Name)
		if !ok {
			return &SchemaMismatchError{File: got.Name, Var: wv.Name, Reason: "missing"}
		}
		switch {
		case wv.IsText() != gv.IsText():
			return &SchemaMismatchError{File: got.Name, Var: wv.Name, Reason: "changes between text and numeric"}
		case !slices.Equal(wv.Dims, gv.Dims):
			return &SchemaMismatchError{File: got.Name, Var: wv.Name,
				Reason: fmt.Sprintf("has dimensions %v, want %v", gv.Dims, wv.Dims)}
		case !wv.IsText() && !slices.Equal(wv.Shape[1:], gv.Shape[1:]):
			return &SchemaMismatchError{File: got.Name, Var: wv.Name,
				Reason: fmt.Sprintf("has shape %v, want %v per sample", gv.Shape[1:], wv.Shape[1:])}
		}
	}
	for _, name := range got.VarNames() {
		if _, ok := want.Var(name); !ok {
			return &SchemaMismatchError{File: got.Name, Var: name, Reason: "not in first dive"}
		}
	}
	return nil
}
