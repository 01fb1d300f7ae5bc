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
	"testing"

	"github.com/ctessum/sparse"
)

// nativeLon returns the 0.25° global longitude vector (0 to 359.75).
func nativeLon() []float64 {
	lon := make([]float64, 1440)
	for i := range lon {
		lon[i] = float64(i) * 0.25
	}
	return lon
}

// nativeLat returns the 0.25° global latitude vector (90 down to -90).
func nativeLat() []float64 {
	lat := make([]float64, 721)
	for i := range lat {
		lat[i] = 90 - float64(i)*0.25
	}
	return lat
}

func TestComputeWindowIndices(t *testing.T) {
	b := BoundingBox{Xmin: -98, Xmax: -60, Ymin: 8, Ymax: 45}
	w, err := computeWindow(b, nativeLon(), nativeLat())
	if err != nil {
		t.Fatal(err)
	}
	// lon in [261, 301], lat in [7, 46], 0.25° spacing.
	if w.Xmin != 1044 || w.Xmax != 1204 {
		t.Errorf("longitude indices = [%d, %d], want [1044, 1204]", w.Xmin, w.Xmax)
	}
	if w.Ymin != 176 || w.Ymax != 332 {
		t.Errorf("latitude indices = [%d, %d], want [176, 332]", w.Ymin, w.Ymax)
	}
	if w.Ny() != 157 || w.Nx() != 161 {
		t.Errorf("window is %d x %d, want 157 x 161", w.Ny(), w.Nx())
	}
}

func TestComputeWindowNormalization(t *testing.T) {
	neg := BoundingBox{Xmin: -97, Xmax: -60, Ymin: 8, Ymax: 45}
	pos := BoundingBox{Xmin: 263, Xmax: 300, Ymin: 8, Ymax: 45}
	wn, err := computeWindow(neg, nativeLon(), nativeLat())
	if err != nil {
		t.Fatal(err)
	}
	wp, err := computeWindow(pos, nativeLon(), nativeLat())
	if err != nil {
		t.Fatal(err)
	}
	if wn.Xmin != wp.Xmin || wn.Xmax != wp.Xmax || wn.Ymin != wp.Ymin || wn.Ymax != wp.Ymax {
		t.Errorf("negative-domain box gave [%d %d %d %d], positive gave [%d %d %d %d]",
			wn.Ymin, wn.Ymax, wn.Xmin, wn.Xmax, wp.Ymin, wp.Ymax, wp.Xmin, wp.Xmax)
	}
}

// The window is a function of the bounding box and the native grid only,
// so two files from the same cycle must yield identical indices.
func TestWindowStability(t *testing.T) {
	b := BoundingBox{Xmin: -98, Xmax: -60, Ymin: 8, Ymax: 45}
	w1, err := computeWindow(b, nativeLon(), nativeLat())
	if err != nil {
		t.Fatal(err)
	}
	w2, err := computeWindow(b, nativeLon(), nativeLat())
	if err != nil {
		t.Fatal(err)
	}
	if w1.Ymin != w2.Ymin || w1.Ymax != w2.Ymax || w1.Xmin != w2.Xmin || w1.Xmax != w2.Xmax {
		t.Error("window indices differ between invocations on the same grid")
	}
}

func TestWindowCoordinates(t *testing.T) {
	b := BoundingBox{Xmin: -98, Xmax: -60, Ymin: 8, Ymax: 45}
	w, err := computeWindow(b, nativeLon(), nativeLat())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < w.Ny(); i++ {
		for j := 0; j < w.Nx(); j++ {
			if v := w.Lon.Get(i, j); v <= -180 || v > 180 {
				t.Fatalf("longitude %g at (%d,%d) outside (-180, 180]", v, i, j)
			}
			if v := w.Lon.Get(i, j); v < -99 || v > -59 {
				t.Fatalf("longitude %g at (%d,%d) outside padded box", v, i, j)
			}
		}
	}
	// Latitude must strictly ascend with row index.
	for i := 1; i < w.Ny(); i++ {
		if w.Lat.Get(i, 0) <= w.Lat.Get(i-1, 0) {
			t.Fatalf("latitude not ascending at row %d: %g <= %g",
				i, w.Lat.Get(i, 0), w.Lat.Get(i-1, 0))
		}
	}
	if got := w.Lat.Get(0, 0); got != 7 {
		t.Errorf("southernmost output latitude = %g, want 7", got)
	}
	if got := w.Lat.Get(w.Ny()-1, 0); got != 46 {
		t.Errorf("northernmost output latitude = %g, want 46", got)
	}
}

func TestComputeWindowAntimeridian(t *testing.T) {
	b := BoundingBox{Xmin: -10, Xmax: 10, Ymin: 8, Ymax: 45}
	if _, err := computeWindow(b, nativeLon(), nativeLat()); err == nil {
		t.Error("expected an error for a box crossing the antimeridian after normalization")
	}
}

func TestComputeWindowNonMonotonic(t *testing.T) {
	lon := nativeLon()
	lon[100] = lon[99]
	b := BoundingBox{Xmin: 10, Xmax: 40, Ymin: 8, Ymax: 45}
	if _, err := computeWindow(b, lon, nativeLat()); err == nil {
		t.Error("expected an error for non-monotonic coordinates")
	}
}

// slice must reverse field rows the same way the coordinate grids are
// reversed, so that row i of every field matches row i of latitude.
func TestWindowSlice(t *testing.T) {
	lon, lat := nativeLon(), nativeLat()
	b := BoundingBox{Xmin: -98, Xmax: -60, Ymin: 8, Ymax: 45}
	w, err := computeWindow(b, lon, lat)
	if err != nil {
		t.Fatal(err)
	}
	data := sparse.ZerosDense(len(lat), len(lon))
	for i := range lat {
		for j := range lon {
			data.Set(lat[i]*1000+lon[j], i, j)
		}
	}
	out, err := w.slice(data)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < w.Ny(); i++ {
		for j := 0; j < w.Nx(); j++ {
			lonNative := w.Lon.Get(i, j)
			if lonNative < 0 {
				lonNative += 360
			}
			want := float64(float32(w.Lat.Get(i, j)*1000 + lonNative))
			if got := out.Get(i, j); got != want {
				t.Fatalf("value at (%d,%d) = %g, want %g", i, j, got, want)
			}
		}
	}
}

func TestWindowSliceShapeMismatch(t *testing.T) {
	b := BoundingBox{Xmin: -98, Xmax: -60, Ymin: 8, Ymax: 45}
	w, err := computeWindow(b, nativeLon(), nativeLat())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.slice(sparse.ZerosDense(10, 10)); err == nil {
		t.Error("expected an error for a field smaller than the window")
	}
}
