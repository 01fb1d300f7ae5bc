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
	"context"

	"github.com/ctessum/sparse"
)

// A Selection disambiguates which physical field a Decoder should extract
// from a multi-field GRIB2 file. Zero-valued constraints are unconstrained.
type Selection struct {
	// ParamID is a GRIB parameter identifier (e.g. 167 for 2 m temperature).
	ParamID int

	// TypeOfLevel constrains the vertical level ("surface", "meanSea").
	TypeOfLevel string

	// StepType distinguishes instantaneous fields from fields averaged
	// over the forecast step ("instant", "avg").
	StepType string
}

// A Field is one decoded 2-D grid plus the native coordinate vectors of the
// grid it was decoded from. Data has shape [len(Lat)][len(Lon)], with row
// order matching the Lat vector.
type Field struct {
	Lon, Lat []float64
	Data     *sparse.DenseArray
}

// A Decoder extracts named fields from a gridded meteorological file.
//
// Decode returns one Field per requested variable name, all matching the
// given selection filter. A requested variable that the file does not
// contain under that filter is an error.
type Decoder interface {
	Decode(ctx context.Context, path string, sel Selection, vars ...string) (map[string]*Field, error)
}
