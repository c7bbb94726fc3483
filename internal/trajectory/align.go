package trajectory

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/eleanorfrajka/seagliderOG1/internal/dive"
	"github.com/eleanorfrajka/seagliderOG1/internal/source"
)

// AlignGPS writes every GPS fix of rec onto the sample whose time is
// nearest to the fix time. The fixes land in three new sample-length
// variables (names GPSLat, GPSLon and GPSTime) that are NaN everywhere
// else. Ties go to the lowest sample index and a fix outside the dive's
// time span lands on its first or last sample. When several fixes share a
// sample the later fix wins; the number of such collisions is returned.
//
// Every fix is compared with every sample. Dives hold a few thousand
// samples and a handful of fixes.
func AlignGPS(rec *dive.Record, n Names) (int, error) {
	fail := func(err error) (int, error) {
		return 0, &source.DiveLoadError{File: rec.Name, Stage: source.StageAlign, Err: err}
	}
	times, err := numeric(rec, n.Time)
	if err != nil {
		return fail(err)
	}
	fixTime, err := numeric(rec, n.FixTime)
	if err != nil {
		return fail(err)
	}
	fixLat, err := numeric(rec, n.FixLat)
	if err != nil {
		return fail(err)
	}
	fixLon, err := numeric(rec, n.FixLon)
	if err != nil {
		return fail(err)
	}
	nf := len(fixTime.Values)
	if len(fixLat.Values) != nf || len(fixLon.Values) != nf {
		return fail(fmt.Errorf("fix arrays differ in length: %s=%d %s=%d %s=%d",
			n.FixTime, nf, n.FixLat, len(fixLat.Values), n.FixLon, len(fixLon.Values)))
	}

	m := len(times.Values)
	lat := dive.Filled(n.GPSLat, n.Measurement, m)
	lon := dive.Filled(n.GPSLon, n.Measurement, m)
	tm := dive.Filled(n.GPSTime, n.Measurement, m)
	lat.Attrs = fixLat.Attrs.Clone()
	lon.Attrs = fixLon.Attrs.Clone()
	tm.Attrs = fixTime.Attrs.Clone()

	collisions := 0
	if nf > 0 {
		if !anyFinite(times.Values) {
			return fail(fmt.Errorf("%s has no valid sample time to align %d fixes to", n.Time, nf))
		}
		taken := make([]bool, m)
		diff := make([]float64, m)
		for i, ft := range fixTime.Values {
			if math.IsNaN(ft) {
				continue
			}
			for j, t := range times.Values {
				diff[j] = math.Abs(ft - t)
			}
			k := floats.MinIdx(diff)
			if taken[k] {
				collisions++
			}
			taken[k] = true
			lat.Values[k] = fixLat.Values[i]
			lon.Values[k] = fixLon.Values[i]
			tm.Values[k] = ft
		}
	}
	rec.Put(lat)
	rec.Put(lon)
	rec.Put(tm)
	return collisions, nil
}

// numeric returns a one-dimensional numeric variable of rec.
func numeric(rec *dive.Record, name string) (*dive.Variable, error) {
	v, ok := rec.Var(name)
	if !ok {
		return nil, fmt.Errorf("missing variable %q", name)
	}
	if v.IsText() {
		return nil, fmt.Errorf("variable %q is not numeric", name)
	}
	if len(v.Shape) > 1 {
		return nil, fmt.Errorf("variable %q has %d dimensions, want 1", name, len(v.Shape))
	}
	return v, nil
}

func anyFinite(vals []float64) bool {
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
