// Package og1 turns an assembled glider trajectory into an OceanGliders 1.0
// (OG1) dataset and writes it.
package og1

import (
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/eleanorfrajka/seagliderOG1/internal/dive"
	"github.com/eleanorfrajka/seagliderOG1/internal/source"
	"github.com/eleanorfrajka/seagliderOG1/internal/trajectory"
	"github.com/eleanorfrajka/seagliderOG1/internal/vocab"
)

// OG1 variable names the harmonizer computes or reads.
const (
	ProfileNumber = "PROFILE_NUMBER"
	Time          = "TIME"
	Latitude      = "LATITUDE"
	Longitude     = "LONGITUDE"
	Depth         = "DEPTH"
)

// timeLayout is the OG1 form of timestamps in global attributes.
const timeLayout = "20060102T150405"

// Options control Harmonize.
type Options struct {
	// Pressure is the source variable whose maximum splits each dive into
	// its descent and ascent profile.
	Pressure string
	// Sensors are the sensor variables to add.
	Sensors []string
	// Created is written as date_created.
	Created time.Time
}

// DefaultOptions returns the options for Seaglider trajectories.
func DefaultOptions() Options {
	return Options{Pressure: "pressure", Created: time.Now().UTC()}
}

// Harmonize returns traj as an OG1 dataset. traj is not modified.
func Harmonize(traj *trajectory.Trajectory, tables *vocab.Tables, opts Options) (*dive.Record, error) {
	if len(traj.Dives) == 0 {
		return nil, trajectory.ErrEmptyInput
	}
	out := dive.NewRecord(traj.Data.Name)
	for _, d := range traj.Data.Dims() {
		out.SetDim(renameDim(tables, d.Name), d.Len)
	}

	for _, src := range traj.Data.Vars() {
		if tables.Dropped(src.Name) {
			continue
		}
		out.Put(harmonizeVar(src, tables))
	}

	profiles, err := profileNumbers(traj, opts.Pressure)
	if err != nil {
		return nil, err
	}
	if profiles != nil {
		v := dive.NewVariable(ProfileNumber, renameDim(tables, traj.Names.Measurement), profiles)
		if attrs, ok := tables.VarAttrs(ProfileNumber); ok {
			v.Attrs = attrs
		}
		out.Put(v)
	}

	for _, name := range opts.Sensors {
		attrs, ok := tables.SensorAttrs(name)
		if !ok {
			return nil, fmt.Errorf("unknown sensor %q", name)
		}
		out.Put(&dive.Variable{Name: name, Values: []float64{math.NaN()}, Attrs: attrs})
	}

	out.Attrs = globalAttrs(traj, out, tables, opts)
	return out, nil
}

func renameDim(tables *vocab.Tables, name string) string {
	if to, ok := tables.DimRename(name); ok {
		return to
	}
	return name
}

// harmonizeVar renames a variable and its dimensions, converts its values
// to a preferred unit and adds its OG1 attributes.
func harmonizeVar(src *dive.Variable, tables *vocab.Tables) *dive.Variable {
	v := src.Clone()
	if to, ok := tables.StandardName(v.Name); ok {
		v.Name = to
	}
	for i, d := range v.Dims {
		v.Dims[i] = renameDim(tables, d)
	}

	units, hasUnits := v.Attrs.String("units")
	if hasUnits {
		units = tables.NormalizeUnit(units)
		if to, f, ok := tables.Preferred(units); ok && !v.IsText() {
			floats.Scale(f, v.Values)
			units = to
		}
		v.Attrs.Set("units", units)
	}

	if attrs, ok := tables.VarAttrs(v.Name); ok {
		for _, k := range attrs.Keys() {
			if k == "units" && hasUnits {
				continue
			}
			val, _ := attrs.Get(k)
			v.Attrs.Set(k, val)
		}
	}
	return v
}

// profileNumbers numbers the profiles of every sample. Dive d is split at
// its deepest sample: samples up to and including it belong to the
// descent, profile 2d-1, and later samples to the ascent, profile 2d. It
// returns nil if the trajectory has no dive number or no pressure.
func profileNumbers(traj *trajectory.Trajectory, pressure string) ([]float64, error) {
	dives, ok := traj.Data.Var(traj.Names.Trajectory)
	if !ok || dives.IsText() {
		return nil, nil
	}
	pres, ok := traj.Data.Var(pressure)
	if !ok || pres.IsText() || pres.Stride() != 1 {
		return nil, nil
	}
	if len(pres.Values) != len(dives.Values) {
		return nil, fmt.Errorf("%s has %d values, %s has %d", pressure, len(pres.Values), dives.Name, len(dives.Values))
	}

	samples := make(map[float64][]int)
	var order []float64
	for i, d := range dives.Values {
		if math.IsNaN(d) {
			continue
		}
		if _, ok := samples[d]; !ok {
			order = append(order, d)
		}
		samples[d] = append(samples[d], i)
	}

	profiles := make([]float64, len(dives.Values))
	for i := range profiles {
		profiles[i] = math.NaN()
	}
	for _, d := range order {
		idx := samples[d]
		p := make([]float64, len(idx))
		for j, i := range idx {
			p[j] = pres.Values[i]
		}
		deepest := floats.MaxIdx(p)
		for j, i := range idx {
			if j <= deepest {
				profiles[i] = 2*d - 1
			} else {
				profiles[i] = 2 * d
			}
		}
	}
	return profiles, nil
}

// globalAttrs builds the OG1 global attributes: those copied or renamed
// from the first dive, the configured ones and the ones computed from the
// data, in canonical order, followed by the first dive's other
// attributes.
func globalAttrs(traj *trajectory.Trajectory, out *dive.Record, tables *vocab.Tables, opts Options) dive.Attributes {
	src := traj.Data.Attrs
	var attrs dive.Attributes
	used := make(map[string]bool)

	for _, name := range tables.GlobalAsIs() {
		if v, ok := src.Get(name); ok {
			attrs.Set(name, v)
			used[name] = true
		}
	}
	for _, r := range tables.GlobalRenames() {
		if v, ok := src.Get(r.From); ok {
			attrs.Set(r.To, v)
			used[r.From] = true
		}
	}
	add := tables.GlobalAdd()
	for _, k := range add.Keys() {
		v, _ := add.Get(k)
		attrs.Set(k, v)
	}

	first := traj.Dives[0].Name
	mission := strings.TrimSuffix(first, filepath.Ext(first))
	attrs.Set("internal_mission_identifier", mission)
	platform := ""
	if fn, err := source.ParseFilename(first); err == nil {
		platform = "sg" + fn.Glider
		attrs.Set("PLATFORM_SERIAL_NUMBER", platform)
	}
	setRange(&attrs, out, Latitude, "geospatial_lat_min", "geospatial_lat_max")
	setRange(&attrs, out, Longitude, "geospatial_lon_min", "geospatial_lon_max")
	setRange(&attrs, out, Depth, "geospatial_vertical_min", "geospatial_vertical_max")
	if lo, hi, ok := finiteRange(out, Time); ok {
		start := unixTime(lo).Format(timeLayout)
		attrs.Set("time_coverage_start", start)
		attrs.Set("time_coverage_end", unixTime(hi).Format(timeLayout))
		attrs.Set("start_date", start)
		if platform != "" {
			attrs.Set("id", platform+"_"+start+"_delayed")
		}
	}
	if !opts.Created.IsZero() {
		attrs.Set("date_created", opts.Created.UTC().Format(timeLayout))
	}

	var ordered dive.Attributes
	for _, k := range tables.AttrOrder() {
		if v, ok := attrs.Get(k); ok {
			ordered.Set(k, v)
		}
	}
	for _, k := range attrs.Keys() {
		if _, ok := ordered.Get(k); !ok {
			v, _ := attrs.Get(k)
			ordered.Set(k, v)
		}
	}
	for _, k := range src.Keys() {
		if _, ok := ordered.Get(k); ok || used[k] {
			continue
		}
		v, _ := src.Get(k)
		ordered.Set(k, v)
	}
	return ordered
}

func setRange(attrs *dive.Attributes, rec *dive.Record, name, minKey, maxKey string) {
	if lo, hi, ok := finiteRange(rec, name); ok {
		attrs.Set(minKey, lo)
		attrs.Set(maxKey, hi)
	}
}

// finiteRange returns the smallest and largest finite value of a numeric
// variable.
func finiteRange(rec *dive.Record, name string) (float64, float64, bool) {
	v, ok := rec.Var(name)
	if !ok || v.IsText() {
		return 0, 0, false
	}
	vals := slices.DeleteFunc(slices.Clone(v.Values), func(x float64) bool {
		return math.IsNaN(x) || math.IsInf(x, 0)
	})
	if len(vals) == 0 {
		return 0, 0, false
	}
	return floats.Min(vals), floats.Max(vals), true
}

func unixTime(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}
