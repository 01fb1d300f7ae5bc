/*
Copyright © 2023 the sflux authors.
This file is part of sflux.

sflux is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

sflux is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with sflux.  If not, see <http://www.gnu.org/licenses/>.
*/

package sflux

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ctessum/cdf"
)

// varAttrs is the metadata attached to one output variable.
type varAttrs struct {
	units        string
	longName     string
	standardName string
}

// outputAttrs is the wire contract with the downstream consumer and must
// be reproduced exactly. The dlwrf/dswrf long names are swapped relative
// to the variable names; existing consumers depend on the file as-is, so
// the text is preserved verbatim.
var outputAttrs = map[string]varAttrs{
	"uwind": {"m/s", "10m_above_ground/UGRD", "eastward_wind"},
	"vwind": {"m/s", "10m_above_ground/VGRD", "northward_wind"},
	"spfh":  {"kg kg-1", "2m_above_ground/Specific Humidity", "specific_humidity"},
	"prmsl": {"Pa", "Pressure reduced to MSL", "air_pressure_at_sea_level"},
	"stmp":  {"K", "2m_above_ground/Temperature", ""},
	"prate": {"kg m-2 s-1", "Precipitation rate", ""},
	"dlwrf": {"W m-2", "Downward short-wave radiation flux", ""},
	"dswrf": {"W m-2", "Downward long-wave radiation flux", ""},
}

// timeValue is the fractional-day time coordinate for forecast hour h,
// rounded to four decimals.
func timeValue(h int) float32 {
	return float32(math.Round(float64(h)/24*1e4) / 1e4)
}

// writeDataset serializes one day's assembled field series to a
// NetCDF-classic file with an unlimited time dimension. cycle supplies
// the calendar base for the time coordinate attributes.
func writeDataset(path string, cycle time.Time, w *Window, series fieldSeries) error {
	var nhours int
	for _, v := range OutputVars {
		s, ok := series[v]
		if !ok || len(s) == 0 {
			return fmt.Errorf("sflux: no data for output variable %s", v)
		}
		if nhours == 0 {
			nhours = len(s)
		} else if len(s) != nhours {
			return fmt.Errorf("sflux: variable %s has %d hours, want %d", v, len(s), nhours)
		}
	}
	ny, nx := w.Ny(), w.Nx()

	h := cdf.NewHeader([]string{"time", "ny_grid", "nx_grid"}, []int{0, ny, nx})

	h.AddVariable("time", []string{"time"}, []float32{0})
	h.AddAttribute("time", "long_name", "Time")
	h.AddAttribute("time", "standard_name", "time")
	h.AddAttribute("time", "base_date", []int32{
		int32(cycle.Year()), int32(cycle.Month()), int32(cycle.Day()), int32(cycle.Hour()), 0})
	h.AddAttribute("time", "units", fmt.Sprintf("days since %d-%d-%d %02d:00 UTC",
		cycle.Year(), int(cycle.Month()), cycle.Day(), cycle.Hour()))

	h.AddVariable("lon", []string{"ny_grid", "nx_grid"}, []float32{0})
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddAttribute("lon", "long_name", "Longitude")
	h.AddAttribute("lon", "standard_name", "longitude")

	h.AddVariable("lat", []string{"ny_grid", "nx_grid"}, []float32{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddAttribute("lat", "long_name", "Latitude")
	h.AddAttribute("lat", "standard_name", "latitude")

	for _, v := range OutputVars {
		a := outputAttrs[v]
		h.AddVariable(v, []string{"time", "ny_grid", "nx_grid"}, []float32{0})
		h.AddAttribute(v, "units", a.units)
		h.AddAttribute(v, "long_name", a.longName)
		if a.standardName != "" {
			h.AddAttribute(v, "standard_name", a.standardName)
		}
	}

	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("sflux: defining output file: %v", err)
	}

	ff, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sflux: creating output file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("sflux: writing output header: %v", err)
	}

	times := make([]float32, nhours)
	for i := range times {
		times[i] = timeValue(i + 1)
	}
	if _, err := f.Writer("time", nil, nil).Write(times); err != nil {
		return fmt.Errorf("sflux: writing time coordinate: %v", err)
	}

	// Fixed-size variables get explicit begin/end vectors: a nil end sets
	// the writer's bound to the exact variable extent, and the strider
	// reports io.EOF on a write that fills it completely.
	if _, err := f.Writer("lon", []int{0, 0}, []int{ny, nx}).Write(toFloat32(w.Lon.Elements)); err != nil {
		return fmt.Errorf("sflux: writing longitude grid: %v", err)
	}
	if _, err := f.Writer("lat", []int{0, 0}, []int{ny, nx}).Write(toFloat32(w.Lat.Elements)); err != nil {
		return fmt.Errorf("sflux: writing latitude grid: %v", err)
	}

	for _, v := range OutputVars {
		buf := make([]float32, 0, nhours*ny*nx)
		for _, grid := range series[v] {
			buf = append(buf, toFloat32(grid.Elements)...)
		}
		if _, err := f.Writer(v, nil, nil).Write(buf); err != nil {
			return fmt.Errorf("sflux: writing variable %s: %v", v, err)
		}
	}

	if err := cdf.UpdateNumRecs(ff); err != nil {
		return fmt.Errorf("sflux: finalizing output file: %v", err)
	}
	return nil
}

func toFloat32(vals []float64) []float32 {
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(v)
	}
	return out
}
