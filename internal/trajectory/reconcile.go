package trajectory

import (
	"errors"
	"fmt"

	"github.com/eleanorfrajka/seagliderOG1/internal/dive"
)

// ErrReconciliation matches every *ReconciliationError.
var ErrReconciliation = errors.New("reconciliation failed")

// ReconciliationError reports a dive whose variables cannot be brought onto
// its sample axis.
type ReconciliationError struct {
	File string
	Var  string
	Err  error
}

func (e *ReconciliationError) Error() string {
	if e.Var == "" {
		return fmt.Sprintf("%s: reconcile: %v", e.File, e.Err)
	}
	return fmt.Sprintf("%s: reconcile %q: %v", e.File, e.Var, e.Err)
}

func (e *ReconciliationError) Unwrap() error        { return e.Err }
func (e *ReconciliationError) Is(target error) bool { return target == ErrReconciliation }

// Reconcile leaves rec holding only variables indexed by the sample axis.
// The trajectory identifier, stored once per dive, is first expanded to
// one value per sample with its comment kept. Variables that carry the
// sample axis in any position but the first are dropped too; their names
// are returned.
func Reconcile(rec *dive.Record, n Names) ([]string, error) {
	m, ok := rec.Dim(n.Measurement)
	if !ok {
		return nil, &ReconciliationError{File: rec.Name, Err: fmt.Errorf("dimension %q absent", n.Measurement)}
	}
	if err := repeatTrajectory(rec, n, m); err != nil {
		return nil, err
	}

	var misplaced []string
	for _, v := range rec.Vars() {
		if !v.HasDim(n.Measurement) {
			rec.Drop(v.Name)
			continue
		}
		if v.Dims[0] != n.Measurement || (v.IsText() && len(v.Dims) < 2) {
			misplaced = append(misplaced, v.Name)
			rec.Drop(v.Name)
			continue
		}
		if len(v.Shape) == 0 || v.Shape[0] != m {
			return nil, &ReconciliationError{File: rec.Name, Var: v.Name,
				Err: fmt.Errorf("shape %v does not match %s=%d", v.Shape, n.Measurement, m)}
		}
	}

	used := make(map[string]bool)
	for _, v := range rec.Vars() {
		for _, d := range v.Dims {
			used[d] = true
		}
	}
	for _, d := range rec.Dims() {
		if d.Name != n.Measurement && !used[d.Name] {
			rec.DropDim(d.Name)
		}
	}
	return misplaced, nil
}

// repeatTrajectory replaces the trajectory identifier with a sample-length
// copy of its value. A missing identifier is left alone.
func repeatTrajectory(rec *dive.Record, n Names, m int) error {
	old, ok := rec.Var(n.Trajectory)
	if !ok {
		return nil
	}
	if old.IsText() {
		return &ReconciliationError{File: rec.Name, Var: old.Name, Err: errors.New("not numeric")}
	}
	comment, hasComment := old.Attrs.Get("comment")

	v := dive.Filled(n.Trajectory, n.Measurement, m)
	switch len(old.Values) {
	case 1:
		for i := range v.Values {
			v.Values[i] = old.Values[0]
		}
	case m:
		copy(v.Values, old.Values)
	default:
		return &ReconciliationError{File: rec.Name, Var: old.Name,
			Err: fmt.Errorf("%d values cannot fill %s=%d", len(old.Values), n.Measurement, m)}
	}
	if hasComment {
		v.Attrs.Set("comment", comment)
	}
	rec.Put(v)
	return nil
}
