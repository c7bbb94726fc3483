// Package vocab holds the OG1 vocabulary: dimension and variable renames,
// unit strings and conversions, variable and sensor attributes and the
// global attributes of an OG1 trajectory file.
package vocab

import (
	"maps"
	"slices"

	"github.com/eleanorfrajka/seagliderOG1/internal/dive"
)

// Rename maps a source global attribute onto an OG1 attribute.
type Rename struct {
	To   string
	From string
}

// Tables is a read-only set of vocabulary tables. Build one with Default,
// Load or LoadDir and share it; no method modifies it.
type Tables struct {
	dimRenames     map[string]string
	preferredUnits []string
	unitFormats    map[string]string
	conversions    map[conversion]float64
	standardNames  map[string]string
	dropVars       map[string]bool
	attrOrder      []string

	varAttrs     map[string]dive.Attributes
	sensorAttrs  map[string]dive.Attributes
	sensorNames  []string
	globalAdd    dive.Attributes
	globalRename []Rename
	globalAsIs   []string
}

type conversion struct {
	from, to string
}

// DimRename returns the OG1 name of a dimension.
func (t *Tables) DimRename(name string) (string, bool) {
	to, ok := t.dimRenames[name]
	return to, ok
}

// PreferredUnits returns the units values are converted to when possible,
// in order of preference.
func (t *Tables) PreferredUnits() []string {
	return slices.Clone(t.preferredUnits)
}

// StandardName returns the OG1 name of a source variable.
func (t *Tables) StandardName(name string) (string, bool) {
	to, ok := t.standardNames[name]
	return to, ok
}

// StandardNames returns a copy of the source to OG1 variable name map.
func (t *Tables) StandardNames() map[string]string {
	return maps.Clone(t.standardNames)
}

// Dropped reports whether a source variable is left out of OG1 output.
func (t *Tables) Dropped(name string) bool {
	return t.dropVars[name]
}

// AttrOrder returns the canonical order of OG1 global attributes.
func (t *Tables) AttrOrder() []string {
	return slices.Clone(t.attrOrder)
}

// VarAttrs returns a copy of the OG1 attributes of a variable.
func (t *Tables) VarAttrs(name string) (dive.Attributes, bool) {
	a, ok := t.varAttrs[name]
	return a.Clone(), ok
}

// SensorAttrs returns a copy of the attributes of a sensor.
func (t *Tables) SensorAttrs(name string) (dive.Attributes, bool) {
	a, ok := t.sensorAttrs[name]
	return a.Clone(), ok
}

// Sensors returns the names of the known sensors in document order.
func (t *Tables) Sensors() []string {
	return slices.Clone(t.sensorNames)
}

// GlobalAdd returns the global attributes every OG1 file carries.
func (t *Tables) GlobalAdd() dive.Attributes {
	return t.globalAdd.Clone()
}

// GlobalRenames returns the source global attributes copied under an OG1
// name.
func (t *Tables) GlobalRenames() []Rename {
	return slices.Clone(t.globalRename)
}

// GlobalAsIs returns the source global attributes copied unchanged.
func (t *Tables) GlobalAsIs() []string {
	return slices.Clone(t.globalAsIs)
}

func builtin() *Tables {
	t := &Tables{
		dimRenames:     map[string]string{"sg_data_point": "N_MEASUREMENTS"},
		preferredUnits: []string{"m s-1", "dbar", "S m-1"},
		unitFormats: map[string]string{
			"m/s":             "m s-1",
			"cm/s":            "cm s-1",
			"S/m":             "S m-1",
			"mS/cm":           "mS cm-1",
			"meters":          "m",
			"degrees_Celcius": "Celcius",
		},
		conversions: map[conversion]float64{
			{"cm/s", "m/s"}:      0.01,
			{"cm s-1", "m s-1"}:  0.01,
			{"m/s", "cm/s"}:      100,
			{"m s-1", "cm s-1"}:  100,
			{"S/m", "mS/cm"}:     0.1,
			{"S m-1", "mS cm-1"}: 0.1,
			{"mS/cm", "S/m"}:     10,
			{"mS cm-1", "S m-1"}: 10,
			{"dbar", "Pa"}:       10000,
			{"Pa", "dbar"}:       0.0001,
			{"dbar", "kPa"}:      10,
		},
		standardNames: map[string]string{
			"latitude":      "LATITUDE",
			"longitude":     "LONGITUDE",
			"gps_lat":       "LATITUDE_GPS",
			"gps_lon":       "LONGITUDE_GPS",
			"gps_time":      "TIME_GPS",
			"ctd_time":      "TIME",
			"eng_pitchAng":  "PITCH",
			"eng_rollAng":   "ROLL",
			"eng_head":      "HEADING",
			"ctd_depth":     "DEPTH",
			"pressure":      "PRES",
			"conductivity":  "CNDC",
			"temperature":   "TEMP",
			"salinity":      "PSAL",
			"ctd_density":   "POTDENS0",
			"profile_index": "PROFILE_NUMBER",
			"vert_speed":    "GLIDER_VERT_VELO_MODEL",
			"horz_speed":    "GLIDER_HORZ_VELO_MODEL",
			"speed":         "GLIDE_SPEED",
			"glide_angle":   "GLIDE_ANGLE",
		},
		dropVars: make(map[string]bool),
		attrOrder: []string{
			"title",
			"id",
			"platform_vocabulary",
			"platform",
			"PLATFORM_SERIAL_NUMBER",
			"naming_authority",
			"institution",
			"internal_mission_identifier",
			"geospatial_lat_min",
			"geospatial_lat_max",
			"geospatial_lon_min",
			"geospatial_lon_max",
			"geospatial_vertical_min",
			"geospatial_vertical_max",
			"time_coverage_start",
			"time_coverage_end",
			"site",
			"site_vocabulary",
			"program",
			"program_vocabulary",
			"project",
			"network",
			"contributor_name",
			"contributor_email",
			"contributor_id",
			"contributor_role_vocabular",
			"contributing_institutions",
			"contributing_institutions_vocabulary",
			"contributing_institutions_role",
			"contributing_institutions_role_vocabulary",
			"uri",
			"data_url",
			"doi",
			"rtqc_method",
			"rtqc_method_doi",
			"web_link",
			"comment",
			"start_date",
			"date_created",
			"featureType",
			"Conventions",
		},
		varAttrs:    make(map[string]dive.Attributes),
		sensorAttrs: make(map[string]dive.Attributes),
	}
	for _, name := range []string{
		"dissolved_oxygen_sat",
		"depth",
		"eng_depth",
		"eng_elaps_t",
		"eng_elaps_t_0000",
		"latitude_gsm",
		"longitude_gsm",
		"sigma_t",
		"sigma_theta",
		"sound_velocity",
		"theta",
		"time",
		"eng_sbect_condFreq",
		"eng_sbect_tempFreq",
		"glide_angle_gsm",
		"horz_speed_gsm",
		"north_displacement_gsm",
		"east_displacement_gsm",
		"speed_gsm",
		"vert_speed_gsm",
		"dive_num_cast",
		"density",
	} {
		t.dropVars[name] = true
	}
	return t
}
