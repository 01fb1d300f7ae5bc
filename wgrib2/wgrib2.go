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

// Package wgrib2 decodes fields from GRIB2 files by shelling out to the
// wgrib2 executable.
package wgrib2

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"

	"github.com/hydromet/sflux"
)

// Command used for launching wgrib2. On each invocation, this command is
// looked up in the system path.
var Command = "wgrib2"

// Decoder implements sflux.Decoder using wgrib2.
type Decoder struct{}

// paramNames maps GRIB parameter ids to the inventory name and level of
// the corresponding field.
var paramNames = map[int]string{
	174096: "SPFH:2 m above ground",
	167:    "TMP:2 m above ground",
	165:    "UGRD:10 m above ground",
	166:    "VGRD:10 m above ground",
}

// varNames maps output variable names to wgrib2 inventory names.
var varNames = map[string]string{
	"spfh":  "SPFH",
	"stmp":  "TMP",
	"uwind": "UGRD",
	"vwind": "VGRD",
	"prmsl": "PRMSL",
	"prate": "PRATE",
	"dlwrf": "DLWRF",
	"dswrf": "DSWRF",
}

// Decode extracts the named fields matching sel from the GRIB2 file at
// path. The returned grids are ordered west-to-east, north-to-south, with
// coordinate vectors to match.
func (d *Decoder) Decode(ctx context.Context, path string, sel sflux.Selection, vars ...string) (map[string]*sflux.Field, error) {
	match, err := matchExpr(sel, vars)
	if err != nil {
		return nil, err
	}
	lon, lat, err := gridCoords(ctx, path)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "wgrib2*.bin")
	if err != nil {
		return nil, fmt.Errorf("wgrib2: creating extraction file: %v", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	// -order we:ns forces north-to-south row order regardless of the
	// file's native scan mode, matching the descending latitude vector.
	cmd := exec.CommandContext(ctx, Command, path,
		"-match", match, "-inv", "-", "-order", "we:ns", "-no_header", "-bin", tmp.Name())
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("wgrib2: extracting from %s: %v", path, err)
	}
	records := parseInventory(string(out))
	if len(records) == 0 {
		return nil, fmt.Errorf("wgrib2: no field in %s matches %q", path, match)
	}

	grids, err := readBin(tmp.Name(), len(records), len(lat), len(lon))
	if err != nil {
		return nil, fmt.Errorf("wgrib2: reading extraction from %s: %v", path, err)
	}

	fields := make(map[string]*sflux.Field, len(vars))
	for _, v := range vars {
		name, ok := varNames[v]
		if !ok {
			return nil, fmt.Errorf("wgrib2: unknown variable %s", v)
		}
		i := recordIndex(records, name)
		if i < 0 {
			return nil, fmt.Errorf("wgrib2: no %s record in %s matching %q", name, path, match)
		}
		fields[v] = &sflux.Field{Lon: lon, Lat: lat, Data: grids[i]}
	}
	return fields, nil
}

// matchExpr builds the wgrib2 inventory match expression for a selection
// filter over the named variables.
func matchExpr(sel sflux.Selection, vars []string) (string, error) {
	switch {
	case sel.ParamID != 0:
		name, ok := paramNames[sel.ParamID]
		if !ok {
			return "", fmt.Errorf("wgrib2: unsupported parameter id %d", sel.ParamID)
		}
		return ":" + name + ":", nil
	case sel.TypeOfLevel == "meanSea":
		return ":(" + nameAlternation(vars) + "):mean sea level:", nil
	case sel.TypeOfLevel == "surface" && sel.StepType == "instant":
		// "N hour fcst" matches instantaneous fields only; averaged
		// fields carry "N-M hour ave fcst".
		return ":(" + nameAlternation(vars) + "):surface:[0-9]+ hour fcst:", nil
	case sel.TypeOfLevel == "surface" && sel.StepType == "avg":
		return ":(" + nameAlternation(vars) + "):surface:[0-9]+-[0-9]+ hour ave fcst:", nil
	}
	return "", fmt.Errorf("wgrib2: unsupported selection %+v", sel)
}

func nameAlternation(vars []string) string {
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = varNames[v]
	}
	return strings.Join(names, "|")
}

var (
	shapeRe = regexp.MustCompile(`\((\d+) x (\d+)\)`)
	latRe   = regexp.MustCompile(`lat (-?[0-9.]+) to (-?[0-9.]+) by ([0-9.]+)`)
	lonRe   = regexp.MustCompile(`lon (-?[0-9.]+) to (-?[0-9.]+) by ([0-9.]+)`)
)

// gridCoords reads the grid geometry of the file's first record and
// expands it into coordinate vectors.
func gridCoords(ctx context.Context, path string) (lon, lat []float64, err error) {
	cmd := exec.CommandContext(ctx, Command, path, "-d", "1", "-grid")
	out, err := cmd.Output()
	if err != nil {
		return nil, nil, fmt.Errorf("wgrib2: reading grid geometry of %s: %v", path, err)
	}
	return parseGrid(string(out))
}

// parseGrid parses the output of wgrib2's -grid option, e.g.
//
//	1:0:grid_template=0:winds(N/S):
//		lat-lon grid:(1440 x 721) units 1e-06 input WE:NS output WE:SN res 48
//		lat 90.000000 to -90.000000 by 0.250000
//		lon 0.000000 to 359.750000 by 0.250000 #points=1038240
func parseGrid(out string) (lon, lat []float64, err error) {
	shape := shapeRe.FindStringSubmatch(out)
	latm := latRe.FindStringSubmatch(out)
	lonm := lonRe.FindStringSubmatch(out)
	if shape == nil || latm == nil || lonm == nil {
		return nil, nil, fmt.Errorf("wgrib2: unrecognized grid description: %q", out)
	}
	nx, _ := strconv.Atoi(shape[1])
	ny, _ := strconv.Atoi(shape[2])
	lon, err = coordVector(lonm, nx)
	if err != nil {
		return nil, nil, err
	}
	lat, err = coordVector(latm, ny)
	return lon, lat, err
}

// coordVector expands a "FROM to TO by STEP" match into n coordinates.
func coordVector(m []string, n int) ([]float64, error) {
	from, err1 := strconv.ParseFloat(m[1], 64)
	to, err2 := strconv.ParseFloat(m[2], 64)
	step, err3 := strconv.ParseFloat(m[3], 64)
	if err1 != nil || err2 != nil || err3 != nil || step == 0 {
		return nil, fmt.Errorf("wgrib2: bad coordinate range: %v", m[0])
	}
	if to < from {
		step = -step
	}
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = from + float64(i)*step
	}
	return vals, nil
}

// parseInventory returns the non-empty inventory lines in record order.
func parseInventory(out string) []string {
	var records []string
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			records = append(records, line)
		}
	}
	return records
}

// recordIndex finds the first inventory record for the named field.
func recordIndex(records []string, name string) int {
	for i, r := range records {
		if strings.Contains(r, ":"+name+":") {
			return i
		}
	}
	return -1
}

// readBin reads nrec consecutive ny×nx float32 grids from a wgrib2
// -no_header -bin dump. wgrib2 writes native byte order, which is
// little-endian on every platform this runs on.
func readBin(path string, nrec, ny, nx int) ([]*sparse.DenseArray, error) {
	ff, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer ff.Close()
	fi, err := ff.Stat()
	if err != nil {
		return nil, err
	}
	if want := int64(nrec) * int64(ny) * int64(nx) * 4; fi.Size() != want {
		return nil, fmt.Errorf("binary dump is %d bytes, want %d for %d records of %d x %d",
			fi.Size(), want, nrec, ny, nx)
	}

	grids := make([]*sparse.DenseArray, nrec)
	buf := make([]float32, ny*nx)
	for i := range grids {
		if err := binary.Read(ff, binary.LittleEndian, buf); err != nil {
			return nil, err
		}
		grid := sparse.ZerosDense(ny, nx)
		for j, v := range buf {
			grid.Elements[j] = float64(v)
		}
		grids[i] = grid
	}
	return grids, nil
}
