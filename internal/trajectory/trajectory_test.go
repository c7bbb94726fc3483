package trajectory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
	"time"

	"github.com/eleanorfrajka/seagliderOG1/internal/dive"
	"github.com/eleanorfrajka/seagliderOG1/internal/source"
)

var (
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	names      = SeagliderNames()
	nan        = math.NaN()
)

// newDive builds a dive with sample times and GPS fixes given as
// {time, lat, lon} triples.
func newDive(name string, times []float64, fixes ...[3]float64) *dive.Record {
	rec := dive.NewRecord(name)
	rec.SetDim(names.Measurement, len(times))
	rec.SetDim(names.Fix, len(fixes))
	rec.Put(dive.NewVariable(names.Time, names.Measurement, times))
	var ft, la, lo []float64
	for _, f := range fixes {
		ft = append(ft, f[0])
		la = append(la, f[1])
		lo = append(lo, f[2])
	}
	rec.Put(dive.NewVariable(names.FixTime, names.Fix, ft))
	rec.Put(dive.NewVariable(names.FixLat, names.Fix, la))
	rec.Put(dive.NewVariable(names.FixLon, names.Fix, lo))
	return rec
}

// sameFloats compares with NaN equal to NaN.
func sameFloats(a, b []float64) bool {
	return slices.EqualFunc(a, b, func(x, y float64) bool {
		return x == y || (math.IsNaN(x) && math.IsNaN(y))
	})
}

func values(t *testing.T, rec *dive.Record, name string) []float64 {
	t.Helper()
	v, ok := rec.Var(name)
	if !ok {
		t.Fatalf("%s: variable %q missing", rec.Name, name)
	}
	return v.Values
}

func TestAlignGPS(t *testing.T) {
	cases := []struct {
		name       string
		times      []float64
		fixes      [][3]float64
		lat        []float64
		gpsTime    []float64
		collisions int
	}{
		{
			name:    "tie goes to lowest index",
			times:   []float64{100, 200, 300},
			fixes:   [][3]float64{{150, 10, 20}},
			lat:     []float64{10, nan, nan},
			gpsTime: []float64{150, nan, nan},
		},
		{
			name:    "outside the dive",
			times:   []float64{100, 200, 300},
			fixes:   [][3]float64{{-5, 1, 1}, {1000, 2, 2}},
			lat:     []float64{1, nan, 2},
			gpsTime: []float64{-5, nan, 1000},
		},
		{
			name:    "missing sample times are never chosen",
			times:   []float64{nan, 200, 300},
			fixes:   [][3]float64{{100, 5, 5}},
			lat:     []float64{nan, 5, nan},
			gpsTime: []float64{nan, 100, nan},
		},
		{
			name:    "missing fix time is skipped",
			times:   []float64{100, 200},
			fixes:   [][3]float64{{nan, 5, 5}, {190, 6, 6}},
			lat:     []float64{nan, 6},
			gpsTime: []float64{nan, 190},
		},
		{
			name:       "later fix wins a shared sample",
			times:      []float64{100, 200, 300},
			fixes:      [][3]float64{{110, 1, 1}, {90, 2, 2}, {290, 3, 3}},
			lat:        []float64{2, nan, 3},
			gpsTime:    []float64{90, nan, 290},
			collisions: 1,
		},
		{
			name:    "no fixes",
			times:   []float64{100, 200},
			lat:     []float64{nan, nan},
			gpsTime: []float64{nan, nan},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := newDive("p0150001.nc", c.times, c.fixes...)
			collisions, err := AlignGPS(rec, names)
			if err != nil {
				t.Fatal(err)
			}
			if collisions != c.collisions {
				t.Errorf("collisions = %d; want %d", collisions, c.collisions)
			}
			for _, name := range []string{names.GPSLat, names.GPSLon, names.GPSTime} {
				v, _ := rec.Var(name)
				if len(v.Values) != len(c.times) || !slices.Equal(v.Dims, []string{names.Measurement}) {
					t.Errorf("%s has %d values over %v; want %d over %s", name, len(v.Values), v.Dims, len(c.times), names.Measurement)
				}
			}
			if got := values(t, rec, names.GPSLat); !sameFloats(got, c.lat) {
				t.Errorf("gps_lat = %v; want %v", got, c.lat)
			}
			if got := values(t, rec, names.GPSTime); !sameFloats(got, c.gpsTime) {
				t.Errorf("gps_time = %v; want %v", got, c.gpsTime)
			}
		})
	}
}

func TestAlignGPSNonMissingCount(t *testing.T) {
	times := make([]float64, 500)
	for i := range times {
		times[i] = float64(i * 5)
	}
	rec := newDive("p0150001.nc", times, [3]float64{12, 1, 1}, [3]float64{1200, 2, 2}, [3]float64{2001, 3, 3})
	collisions, err := AlignGPS(rec, names)
	if err != nil {
		t.Fatal(err)
	}
	set := 0
	for _, v := range values(t, rec, names.GPSLon) {
		if !math.IsNaN(v) {
			set++
		}
	}
	if set != 3-collisions {
		t.Errorf("%d aligned fixes with %d collisions; want %d", set, collisions, 3-collisions)
	}
}

func TestAlignGPSErrors(t *testing.T) {
	noTimes := newDive("p0150001.nc", []float64{nan, nan}, [3]float64{1, 1, 1})

	uneven := newDive("p0150002.nc", []float64{1, 2}, [3]float64{1, 1, 1})
	uneven.Put(dive.NewVariable(names.FixLat, names.Fix, []float64{1, 2}))

	missing := newDive("p0150003.nc", []float64{1, 2})
	missing.Drop(names.FixLon)

	for _, rec := range []*dive.Record{noTimes, uneven, missing} {
		_, err := AlignGPS(rec, names)
		var le *source.DiveLoadError
		if !errors.As(err, &le) || le.File != rec.Name || le.Stage != source.StageAlign {
			t.Errorf("%s: error = %v; want align-stage DiveLoadError", rec.Name, err)
		}
	}
}

func TestReconcile(t *testing.T) {
	rec := newDive("p0150001.nc", []float64{100, 200, 300}, [3]float64{150, 10, 20})
	traj := dive.NewVariable(names.Trajectory, names.Trajectory, []float64{7})
	traj.Attrs.Set("comment", "Dive number")
	traj.Attrs.Set("units", "1")
	rec.Put(traj)
	rec.SetDim(names.Trajectory, 1)
	rec.Put(&dive.Variable{Name: "depth_avg", Values: []float64{400}})
	rec.Put(&dive.Variable{
		Name:   "eng_wlbb2flvmt",
		Dims:   []string{names.Measurement, "channel"},
		Shape:  []int{3, 2},
		Values: []float64{1, 2, 3, 4, 5, 6},
	})
	rec.SetDim("channel", 2)
	rec.Put(&dive.Variable{
		Name:   "transposed",
		Dims:   []string{"channel", names.Measurement},
		Shape:  []int{2, 3},
		Values: []float64{1, 2, 3, 4, 5, 6},
	})
	rec.SetDim("unused", 4)

	misplaced, err := Reconcile(rec, names)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(misplaced, []string{"transposed"}) {
		t.Errorf("misplaced = %v; want [transposed]", misplaced)
	}
	want := []string{names.Time, names.Trajectory, "eng_wlbb2flvmt"}
	if got := rec.VarNames(); !slices.Equal(got, want) {
		t.Errorf("vars = %v; want %v", got, want)
	}
	var dims []string
	for _, d := range rec.Dims() {
		dims = append(dims, d.Name)
	}
	if !slices.Equal(dims, []string{names.Measurement, "channel"}) {
		t.Errorf("dims = %v", dims)
	}

	v, _ := rec.Var(names.Trajectory)
	if !slices.Equal(v.Values, []float64{7, 7, 7}) || !slices.Equal(v.Dims, []string{names.Measurement}) {
		t.Errorf("trajectory = %v over %v; want [7 7 7] over %s", v.Values, v.Dims, names.Measurement)
	}
	if c, _ := v.Attrs.String("comment"); c != "Dive number" {
		t.Errorf("comment = %q; want it kept", c)
	}
}

func TestReconcileFullLengthTrajectory(t *testing.T) {
	rec := newDive("p0150001.nc", []float64{1, 2, 3})
	rec.Put(dive.NewVariable(names.Trajectory, names.Measurement, []float64{4, 4, 4}))
	if _, err := Reconcile(rec, names); err != nil {
		t.Fatal(err)
	}
	if v, _ := rec.Var(names.Trajectory); !slices.Equal(v.Values, []float64{4, 4, 4}) {
		t.Errorf("trajectory = %v", v.Values)
	}
}

func TestReconcileErrors(t *testing.T) {
	noAxis := dive.NewRecord("p0150001.nc")
	noAxis.Put(dive.NewVariable("x", "other", []float64{1}))

	short := newDive("p0150002.nc", []float64{1, 2, 3})
	short.Put(dive.NewVariable(names.Trajectory, names.Trajectory, []float64{1, 2}))

	for _, rec := range []*dive.Record{noAxis, short} {
		_, err := Reconcile(rec, names)
		var re *ReconciliationError
		if !errors.As(err, &re) || !errors.Is(err, ErrReconciliation) || re.File != rec.Name {
			t.Errorf("%s: error = %v; want ReconciliationError", rec.Name, err)
		}
	}
}

func prepared(t *testing.T, rec *dive.Record) *dive.Record {
	t.Helper()
	if _, err := AlignGPS(rec, names); err != nil {
		t.Fatal(err)
	}
	if _, err := Reconcile(rec, names); err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestAssembleTwoDives(t *testing.T) {
	a := prepared(t, newDive("p0150001.nc", []float64{100, 200, 300}, [3]float64{150, 10, 20}))
	a.Attrs.Set("dive_number", 1)
	b := prepared(t, newDive("p0150002.nc", []float64{50, 250}, [3]float64{60, 30, 40}))

	traj, err := Assemble([]*dive.Record{a, b}, names)
	if err != nil {
		t.Fatal(err)
	}
	if traj.Len() != 5 {
		t.Errorf("len = %d; want 5", traj.Len())
	}
	if got := values(t, traj.Data, names.Time); !slices.Equal(got, []float64{50, 100, 200, 250, 300}) {
		t.Errorf("times = %v", got)
	}
	if got := values(t, traj.Data, names.GPSLat); !sameFloats(got, []float64{30, 10, nan, nan, nan}) {
		t.Errorf("gps_lat = %v", got)
	}
	if got := values(t, traj.Data, names.GPSLon); !sameFloats(got, []float64{40, 20, nan, nan, nan}) {
		t.Errorf("gps_lon = %v", got)
	}
	if n, _ := traj.Data.Attrs.Get("dive_number"); n != 1 {
		t.Errorf("global attributes not taken from the first dive")
	}
	if len(traj.Dives) != 2 || traj.Dives[0].Name != "p0150001.nc" || traj.Dives[1].Samples != 2 {
		t.Errorf("dives = %+v", traj.Dives)
	}
}

func TestAssembleStableAndSorted(t *testing.T) {
	mk := func(name string, times []float64, tag float64) *dive.Record {
		rec := prepared(t, newDive(name, times))
		tags := make([]float64, len(times))
		for i := range tags {
			tags[i] = tag*10 + float64(i)
		}
		rec.Put(dive.NewVariable("tag", names.Measurement, tags))
		return rec
	}
	recs := []*dive.Record{
		mk("p0150001.nc", []float64{5, nan, 5, 1}, 1),
		mk("p0150002.nc", []float64{5, 0}, 2),
		mk("p0150003.nc", []float64{3}, 3),
	}
	traj, err := Assemble(recs, names)
	if err != nil {
		t.Fatal(err)
	}
	times := values(t, traj.Data, names.Time)
	if len(times) != 7 {
		t.Fatalf("len = %d; want 7", len(times))
	}
	for i := 0; i < len(times)-1; i++ {
		switch {
		case math.IsNaN(times[i+1]):
		case math.IsNaN(times[i]):
			t.Errorf("time %v follows a missing time: %v", times[i+1], times)
		case times[i] > times[i+1]:
			t.Errorf("times not sorted at %d: %v", i, times)
		}
	}
	want := []float64{21, 13, 30, 10, 12, 20, 11}
	if got := values(t, traj.Data, "tag"); !slices.Equal(got, want) {
		t.Errorf("order = %v; want %v", got, want)
	}
}

func TestAssembleKeepsRowsOfGrids(t *testing.T) {
	mk := func(name string, times, grid []float64) *dive.Record {
		rec := newDive(name, times)
		rec.Put(&dive.Variable{
			Name:   "grid",
			Dims:   []string{names.Measurement, "channel"},
			Shape:  []int{len(times), 2},
			Values: grid,
		})
		return prepared(t, rec)
	}
	traj, err := Assemble([]*dive.Record{
		mk("p0150001.nc", []float64{2, 4}, []float64{2, 20, 4, 40}),
		mk("p0150002.nc", []float64{3}, []float64{3, 30}),
	}, names)
	if err != nil {
		t.Fatal(err)
	}
	v, _ := traj.Data.Var("grid")
	if !slices.Equal(v.Shape, []int{3, 2}) || !slices.Equal(v.Values, []float64{2, 20, 3, 30, 4, 40}) {
		t.Errorf("grid = %v %v", v.Shape, v.Values)
	}
}

func TestAssembleErrors(t *testing.T) {
	if _, err := Assemble(nil, names); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("error = %v; want ErrEmptyInput", err)
	}

	base := func(name string) *dive.Record {
		rec := newDive(name, []float64{1, 2})
		rec.Put(dive.NewVariable("temperature", names.Measurement, []float64{10, 11}))
		return prepared(t, rec)
	}
	missing := base("p0150002.nc")
	missing.Drop("temperature")
	extra := base("p0150003.nc")
	extra.Put(dive.NewVariable("salinity", names.Measurement, []float64{35, 35}))

	for _, rec := range []*dive.Record{missing, extra} {
		traj, err := Assemble([]*dive.Record{base("p0150001.nc"), rec}, names)
		var se *SchemaMismatchError
		if !errors.As(err, &se) || !errors.Is(err, ErrSchemaMismatch) || se.File != rec.Name {
			t.Errorf("%s: error = %v; want SchemaMismatchError", rec.Name, err)
		}
		if traj != nil {
			t.Errorf("%s: partial trajectory returned", rec.Name)
		}
	}
}

func TestAssembleRejectsBadTime(t *testing.T) {
	text := prepared(t, newDive("p0150001.nc", []float64{1, 2}))
	text.Put(&dive.Variable{
		Name:  names.Time,
		Dims:  []string{names.Measurement},
		Shape: []int{2},
		Text:  []string{"a", "b"},
	})
	grid := prepared(t, newDive("p0150002.nc", []float64{1, 2}))
	grid.Put(&dive.Variable{
		Name:   names.Time,
		Dims:   []string{names.Measurement, "channel"},
		Shape:  []int{2, 2},
		Values: []float64{1, 1, 2, 2},
	})
	for _, rec := range []*dive.Record{text, grid} {
		traj, err := Assemble([]*dive.Record{rec}, names)
		var se *SchemaMismatchError
		if !errors.As(err, &se) || se.Var != names.Time {
			t.Errorf("%s: error = %v; want SchemaMismatchError for %s", rec.Name, err, names.Time)
		}
		if traj != nil {
			t.Errorf("%s: trajectory returned", rec.Name)
		}
	}
}

func writeDive(t *testing.T, dir string, rec *dive.Record) {
	t.Helper()
	if err := dive.WriteFile(filepath.Join(dir, rec.Name), rec); err != nil {
		t.Fatal(err)
	}
}

func newTestPipeline(workers int) *Pipeline {
	return NewPipeline(testLogger,
		source.NewSelector(testLogger, nil),
		source.NewLoader(testLogger, nil, names.Requirements()...),
		names, workers)
}

func TestPipelineRun(t *testing.T) {
	dir := t.TempDir()
	a := newDive("p0150001.nc", []float64{100, 200, 300}, [3]float64{150, 10, 20})
	a.Put(dive.NewVariable(names.Trajectory, names.Trajectory, []float64{1}))
	b := newDive("p0150002.nc", []float64{50, 250}, [3]float64{60, 30, 40})
	b.Put(dive.NewVariable(names.Trajectory, names.Trajectory, []float64{2}))
	c := newDive("p0150003.nc", []float64{400}, [3]float64{400, 0, 0})
	c.Put(dive.NewVariable(names.Trajectory, names.Trajectory, []float64{3}))
	for _, rec := range []*dive.Record{a, b, c} {
		writeDive(t, dir, rec)
	}

	end := 2
	traj, err := newTestPipeline(2).Run(context.Background(), source.Local{Dir: dir}, source.Range{End: &end})
	if err != nil {
		t.Fatal(err)
	}
	if got := values(t, traj.Data, names.Time); !slices.Equal(got, []float64{50, 100, 200, 250, 300}) {
		t.Errorf("times = %v", got)
	}
	if got := values(t, traj.Data, names.Trajectory); !slices.Equal(got, []float64{2, 1, 1, 2, 1}) {
		t.Errorf("trajectory = %v", got)
	}
	if _, ok := traj.Data.Var(names.FixTime); ok {
		t.Errorf("fix variables survived reconciliation")
	}
	if traj.Dives[0].Name != "p0150001.nc" || traj.Dives[1].Name != "p0150002.nc" {
		t.Errorf("dives = %+v; want selection order", traj.Dives)
	}
}

func TestPipelineReusesWorkers(t *testing.T) {
	dir := t.TempDir()
	writeDive(t, dir, newDive("p0150001.nc", []float64{1, 2}, [3]float64{1, 0, 0}))
	p := newTestPipeline(8)
	run := func() {
		if _, err := p.Run(context.Background(), source.Local{Dir: dir}, source.Range{}); err != nil {
			t.Fatal(err)
		}
	}

	run()
	before := runtime.NumGoroutine()
	for range 10 {
		run()
	}
	after := runtime.NumGoroutine()
	for deadline := time.Now().Add(time.Second); after > before+2 && time.Now().Before(deadline); {
		time.Sleep(10 * time.Millisecond)
		after = runtime.NumGoroutine()
	}
	if after > before+2 {
		t.Errorf("goroutines grew from %d to %d over 10 runs", before, after)
	}
}

func TestPipelineFailsFast(t *testing.T) {
	dir := t.TempDir()
	writeDive(t, dir, newDive("p0150001.nc", []float64{1, 2}, [3]float64{1, 0, 0}))
	bad := newDive("p0150002.nc", []float64{3, 4}, [3]float64{3, 0, 0})
	bad.Drop(names.FixLat)
	writeDive(t, dir, bad)

	traj, err := newTestPipeline(4).Run(context.Background(), source.Local{Dir: dir}, source.Range{})
	var le *source.DiveLoadError
	if !errors.As(err, &le) || le.File != "p0150002.nc" || le.Stage != source.StageCheck {
		t.Errorf("error = %v; want check-stage DiveLoadError for p0150002.nc", err)
	}
	if traj != nil {
		t.Errorf("partial trajectory returned")
	}
}

func TestPipelineNothingSelected(t *testing.T) {
	dir := t.TempDir()
	writeDive(t, dir, newDive("p0150001.nc", []float64{1}))
	start := 10
	_, err := newTestPipeline(1).Run(context.Background(), source.Local{Dir: dir}, source.Range{Start: &start})
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("error = %v; want ErrEmptyInput", err)
	}
}
