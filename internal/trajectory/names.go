// Package trajectory turns a set of dive records into one time-ordered
// glider trajectory. Each dive has its GPS fixes aligned onto its sample
// axis and its variables reduced to those indexed by that axis before all
// dives are concatenated and sorted by time.
package trajectory

import "github.com/eleanorfrajka/seagliderOG1/internal/source"

// Names are the dimension and variable names the pipeline works with.
type Names struct {
	// Measurement is the per-sample dimension and Time the primary time
	// variable on it.
	Measurement string
	Time        string

	// Fix is the GPS fix dimension and FixTime, FixLat and FixLon the
	// fixes on it.
	Fix     string
	FixTime string
	FixLat  string
	FixLon  string

	// Trajectory is the per-dive identifier repaired to full sample
	// length.
	Trajectory string

	// GPSTime, GPSLat and GPSLon receive the aligned fixes.
	GPSTime string
	GPSLat  string
	GPSLon  string
}

// SeagliderNames returns the names used in Seaglider basestation files.
func SeagliderNames() Names {
	return Names{
		Measurement: "sg_data_point",
		Time:        "ctd_time",
		Fix:         "gps_info",
		FixTime:     "log_gps_time",
		FixLat:      "log_gps_lat",
		FixLon:      "log_gps_lon",
		Trajectory:  "trajectory",
		GPSTime:     "gps_time",
		GPSLat:      "gps_lat",
		GPSLon:      "gps_lon",
	}
}

// Requirements returns the variables a dive must carry to be aligned.
func (n Names) Requirements() []source.Requirement {
	return []source.Requirement{
		{Var: n.Time, Dim: n.Measurement},
		{Var: n.FixTime},
		{Var: n.FixLat},
		{Var: n.FixLon},
	}
}
