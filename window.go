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

	"github.com/ctessum/sparse"
)

// A BoundingBox is a geographic region in degrees. Longitudes may be
// given in [-180,180] or [0,360).
type BoundingBox struct {
	Xmin, Xmax, Ymin, Ymax float64
}

// windowPad is the margin, in degrees, added around the bounding box
// before index selection.
const windowPad = 1.0

// A Window is the rectangular index sub-range of the native global grid
// corresponding to a bounding box, plus the output coordinate grids.
// It is computed once per day from the first file's coordinate vectors
// and is constant across all forecast hours of that day.
type Window struct {
	Ymin, Ymax int // inclusive latitude index bounds into the native grid
	Xmin, Xmax int // inclusive longitude index bounds into the native grid

	// Lon and Lat are the output 2-D coordinate grids, shape [Ny][Nx].
	// Longitudes are re-expressed in (-180,180]; latitude rows are
	// reversed from the native north-to-south order so that latitude
	// ascends with row index.
	Lon, Lat *sparse.DenseArray
}

// Ny returns the number of latitude rows in the window.
func (w *Window) Ny() int { return w.Ymax - w.Ymin + 1 }

// Nx returns the number of longitude columns in the window.
func (w *Window) Nx() int { return w.Xmax - w.Xmin + 1 }

// computeWindow maps the bounding box onto index ranges of the native
// coordinate vectors. lon must ascend in [0,360) and lat must be strictly
// monotonic; both are checked because the first/last-match selection below
// is only correct for monotonic coordinates.
func computeWindow(b BoundingBox, lon, lat []float64) (*Window, error) {
	xmin, xmax := b.Xmin, b.Xmax
	if xmin < 0 {
		xmin += 360
	}
	if xmax < 0 {
		xmax += 360
	}
	if xmin > xmax {
		return nil, fmt.Errorf("sflux: bounding box crosses the antimeridian after normalization (xmin=%g > xmax=%g)", xmin, xmax)
	}
	if !monotonic(lon) {
		return nil, fmt.Errorf("sflux: native longitude coordinates are not monotonic")
	}
	if !monotonic(lat) {
		return nil, fmt.Errorf("sflux: native latitude coordinates are not monotonic")
	}

	ixmin, ixmax, err := indexRange(lon, xmin-windowPad, xmax+windowPad)
	if err != nil {
		return nil, fmt.Errorf("sflux: longitude window: %v", err)
	}
	iymin, iymax, err := indexRange(lat, b.Ymin-windowPad, b.Ymax+windowPad)
	if err != nil {
		return nil, fmt.Errorf("sflux: latitude window: %v", err)
	}

	w := &Window{Ymin: iymin, Ymax: iymax, Xmin: ixmin, Xmax: ixmax}

	lon2 := make([]float64, w.Nx())
	for j := range lon2 {
		v := lon[ixmin+j]
		if v > 180 {
			v -= 360
		}
		lon2[j] = v
	}
	// Reverse the latitude slice: the native grid runs north to south,
	// and the output convention is latitude ascending with row index.
	lat2 := make([]float64, w.Ny())
	for i := range lat2 {
		lat2[i] = lat[iymax-i]
	}

	w.Lon = sparse.ZerosDense(w.Ny(), w.Nx())
	w.Lat = sparse.ZerosDense(w.Ny(), w.Nx())
	for i := 0; i < w.Ny(); i++ {
		for j := 0; j < w.Nx(); j++ {
			w.Lon.Set(lon2[j], i, j)
			w.Lat.Set(lat2[i], i, j)
		}
	}
	return w, nil
}

// slice windows data to the grid window and reverses the latitude rows,
// matching the orientation of the Window's coordinate grids. Values pass
// through float32 to match the output storage precision.
func (w *Window) slice(data *sparse.DenseArray) (*sparse.DenseArray, error) {
	if len(data.Shape) != 2 || data.Shape[0] <= w.Ymax || data.Shape[1] <= w.Xmax {
		return nil, fmt.Errorf("sflux: field shape %v does not cover grid window", data.Shape)
	}
	out := sparse.ZerosDense(w.Ny(), w.Nx())
	for i := 0; i < w.Ny(); i++ {
		for j := 0; j < w.Nx(); j++ {
			out.Set(float64(float32(data.Get(w.Ymax-i, w.Xmin+j))), i, j)
		}
	}
	return out, nil
}

// monotonic reports whether vals are strictly increasing or strictly
// decreasing.
func monotonic(vals []float64) bool {
	if len(vals) < 2 {
		return true
	}
	asc := vals[1] > vals[0]
	for i := 1; i < len(vals); i++ {
		if asc && vals[i] <= vals[i-1] {
			return false
		}
		if !asc && vals[i] >= vals[i-1] {
			return false
		}
	}
	return true
}

// indexRange returns the first and last indices of vals within [lo, hi].
func indexRange(vals []float64, lo, hi float64) (first, last int, err error) {
	first = -1
	for i, v := range vals {
		if v >= lo && v <= hi {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0, 0, fmt.Errorf("no coordinates in [%g, %g]", lo, hi)
	}
	return first, last, nil
}
