package vocab

import (
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func defaultTables(t *testing.T) *Tables {
	t.Helper()
	tables, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	return tables
}

func TestConvert(t *testing.T) {
	tables := defaultTables(t)
	cases := []struct {
		from, to string
		in, want float64
	}{
		{"m", "cm", 1, 100},
		{"m", "km", 1000, 1},
		{"cm", "m", 100, 1},
		{"km", "m", 1, 1000},
		{"g m-3", "kg m-3", 1000, 1},
		{"kg m-3", "g m-3", 1, 1000},
		{"degrees_Celcius", "Celcius", 1, 1},
		{"dbar", "Pa", 1, 10000},
		{"dbar", "kPa", 1, 10},
		{"Pa", "dbar", 10000, 1},
		{"S/m", "mS/cm", 10, 1},
		{"cm/s", "m/s", 100, 1},
		{"cm/s", "m s-1", 250, 2.5},
		{"m s-1", "cm s-1", 0.5, 50},
		{"mS/cm", "S m-1", 1, 10},
		{"meters", "cm", 2, 200},
	}
	for _, c := range cases {
		got, err := tables.Convert([]float64{c.in}, c.from, c.to)
		if err != nil {
			t.Errorf("Convert(%s -> %s): %v", c.from, c.to, err)
			continue
		}
		if math.Abs(got[0]-c.want) > 1e-9*math.Abs(c.want) {
			t.Errorf("Convert(%v %s -> %s) = %v; want %v", c.in, c.from, c.to, got[0], c.want)
		}
	}
}

func TestConvertIncompatible(t *testing.T) {
	tables := defaultTables(t)
	for _, c := range [][2]string{
		{"m", "s"},
		{"dbar", "m s-1"},
		{"degrees", "radians"},
		{"Celcius", "K"},
	} {
		if _, err := tables.Convert([]float64{1}, c[0], c[1]); err == nil {
			t.Errorf("Convert(%s -> %s) succeeded", c[0], c[1])
		}
	}
}

func TestNormalizeUnit(t *testing.T) {
	tables := defaultTables(t)
	cases := map[string]string{
		"m/s":             "m s-1",
		"cm/s":            "cm s-1",
		"S/m":             "S m-1",
		"mS/cm":           "mS cm-1",
		"meters":          "m",
		"degrees_Celcius": "Celcius",
		"dbar":            "dbar",
	}
	for in, want := range cases {
		if got := tables.NormalizeUnit(in); got != want {
			t.Errorf("NormalizeUnit(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestPreferred(t *testing.T) {
	tables := defaultTables(t)
	cases := []struct {
		unit   string
		want   string
		factor float64
		ok     bool
	}{
		{unit: "cm/s", want: "m s-1", factor: 0.01, ok: true},
		{unit: "Pa", want: "dbar", factor: 0.0001, ok: true},
		{unit: "kPa", want: "dbar", factor: 0.1, ok: true},
		{unit: "mS cm-1", want: "S m-1", factor: 10, ok: true},
		{unit: "mS/cm", want: "S m-1", factor: 10, ok: true},
		{unit: "m/s"},
		{unit: "dbar"},
		{unit: "degrees"},
	}
	for _, c := range cases {
		got, f, ok := tables.Preferred(c.unit)
		if ok != c.ok || got != c.want || math.Abs(f-c.factor) > 1e-12 {
			t.Errorf("Preferred(%q) = %q, %v, %v; want %q, %v, %v", c.unit, got, f, ok, c.want, c.factor, c.ok)
		}
	}
}

func TestSpellingsAgree(t *testing.T) {
	tables := defaultTables(t)
	for _, spellings := range [][]string{
		{"mS/cm", "mS cm-1"},
		{"cm/s", "cm s-1"},
		{"S/m", "S m-1"},
	} {
		to, f, ok := tables.Preferred(spellings[0])
		for _, u := range spellings[1:] {
			gto, gf, gok := tables.Preferred(u)
			if gto != to || gf != f || gok != ok {
				t.Errorf("Preferred(%q) = %q, %v, %v; Preferred(%q) = %q, %v, %v", u, gto, gf, gok, spellings[0], to, f, ok)
			}
		}
	}

	var factors []float64
	for _, c := range [][2]string{
		{"mS/cm", "S/m"},
		{"mS/cm", "S m-1"},
		{"mS cm-1", "S/m"},
		{"mS cm-1", "S m-1"},
	} {
		f, ok := tables.Factor(c[0], c[1])
		if !ok {
			t.Fatalf("Factor(%s -> %s) not found", c[0], c[1])
		}
		factors = append(factors, f)
	}
	for _, f := range factors[1:] {
		if f != factors[0] {
			t.Errorf("conductivity factors differ by spelling: %v", factors)
			break
		}
	}
}

func TestDefaultDocuments(t *testing.T) {
	tables := defaultTables(t)

	attrs, ok := tables.VarAttrs("PRES")
	if !ok {
		t.Fatal("no attributes for PRES")
	}
	if u, _ := attrs.String("units"); u != "dbar" {
		t.Errorf("PRES units = %q", u)
	}
	if keys := attrs.Keys(); keys[0] != "long_name" || keys[1] != "standard_name" {
		t.Errorf("PRES attributes out of document order: %v", keys)
	}

	for _, og1 := range tables.StandardNames() {
		if _, ok := tables.VarAttrs(og1); !ok {
			t.Errorf("no attributes for %s", og1)
		}
	}

	if len(tables.Sensors()) == 0 {
		t.Errorf("no sensors")
	}
	add := tables.GlobalAdd()
	if s, _ := add.String("Conventions"); s != "CF-1.10,OG-1.0" {
		t.Errorf("Conventions = %q", s)
	}
	if !slices.Contains(tables.GlobalRenames(), Rename{To: "site", From: "sea_name"}) {
		t.Errorf("renames = %v", tables.GlobalRenames())
	}
	if !slices.Contains(tables.GlobalAsIs(), "comment") {
		t.Errorf("as-is = %v", tables.GlobalAsIs())
	}
	if !tables.Dropped("sigma_theta") || tables.Dropped("temperature") {
		t.Errorf("drop list wrong")
	}
	if to, _ := tables.DimRename("sg_data_point"); to != "N_MEASUREMENTS" {
		t.Errorf("sg_data_point renamed to %q", to)
	}
}

func TestTablesAreCopied(t *testing.T) {
	tables := defaultTables(t)
	attrs, _ := tables.VarAttrs("TEMP")
	attrs.Set("units", "K")
	again, _ := tables.VarAttrs("TEMP")
	if u, _ := again.String("units"); u != "Celsius" {
		t.Errorf("caller changed the tables: units = %q", u)
	}
	order := tables.AttrOrder()
	order[0] = "changed"
	if tables.AttrOrder()[0] != "title" {
		t.Errorf("caller changed the attribute order")
	}
}

func TestLoadDirOverrides(t *testing.T) {
	dir := t.TempDir()
	doc := `attr_to_add:
  title: Labrador Sea sg015
  featureType: trajectory
attr_to_rename:
  project: project_name
`
	if err := os.WriteFile(filepath.Join(dir, GlobalAttrsFile), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	tables, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	add := tables.GlobalAdd()
	if s, _ := add.String("title"); s != "Labrador Sea sg015" {
		t.Errorf("title = %q", s)
	}
	if want := []Rename{{To: "project", From: "project_name"}}; !slices.Equal(tables.GlobalRenames(), want) {
		t.Errorf("renames = %v; want %v", tables.GlobalRenames(), want)
	}
	if _, ok := tables.VarAttrs("TEMP"); !ok {
		t.Errorf("variable attributes not taken from the defaults")
	}
}

func TestLoadRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		GlobalAttrsFile: "attr_to_shout:\n  a: b\n",
		VarAttrsFile:    "- TEMP\n- PSAL\n",
		SensorAttrsFile: "SENSOR: [unclosed\n",
	}
	for name, doc := range cases {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadDir(dir); err == nil {
			t.Errorf("%s: bad document accepted", name)
		}
	}
}
