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
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gocloud.dev/blob/fileblob"
)

func forecastKey(hour int) string {
	return fmt.Sprintf("gfs.20230101/00/atmos/gfs.t00z.pgrb2.0p25.f%03d", hour)
}

func TestFilterKeys(t *testing.T) {
	keys := []string{
		forecastKey(2),
		forecastKey(0),
		forecastKey(1),
		forecastKey(1) + ".idx",
		"gfs.20230101/00/atmos/gfs.t00z.pgrb2.0p25.anl",
		"gfs.20230101/00/atmos/gfs.t00z.goessimpgrb2.0p25.f001",
		"gfs.20230101/00/atmos/gfs.t00z.pgrb2.1p00.f001",
		"gfs.20230101/00/atmos/gfs.t00z.sfluxgrbf001.grib2",
	}
	want := []string{forecastKey(0), forecastKey(1), forecastKey(2)}
	if got := filterKeys(keys); !reflect.DeepEqual(got, want) {
		t.Errorf("filterKeys = %v, want %v", got, want)
	}
}

func TestSelectKeysSkipsHourZero(t *testing.T) {
	var keys []string
	for h := 0; h <= 30; h++ {
		keys = append(keys, forecastKey(h))
	}
	got := selectKeys(keys, 1)
	if len(got) != 24 {
		t.Fatalf("got %d keys, want 24", len(got))
	}
	if got[0] != forecastKey(1) {
		t.Errorf("first key = %s, want %s", got[0], forecastKey(1))
	}
	if got[len(got)-1] != forecastKey(24) {
		t.Errorf("last key = %s, want %s", got[len(got)-1], forecastKey(24))
	}
}

func TestSelectKeysShortListing(t *testing.T) {
	keys := []string{forecastKey(0), forecastKey(1), forecastKey(2)}
	got := selectKeys(keys, 1)
	if want := keys[1:]; !reflect.DeepEqual(got, want) {
		t.Errorf("selectKeys = %v, want %v", got, want)
	}
	if selectKeys(keys[:1], 1) != nil {
		t.Error("expected nil for a listing with only hour 0")
	}
}

func TestInventoryFetch(t *testing.T) {
	ctx := context.Background()
	bucket, err := fileblob.OpenBucket(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer bucket.Close()

	for h := 0; h <= 5; h++ {
		if err := bucket.WriteAll(ctx, forecastKey(h), []byte("GRIB"), nil); err != nil {
			t.Fatal(err)
		}
		if err := bucket.WriteAll(ctx, forecastKey(h)+".idx", []byte("idx"), nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := bucket.WriteAll(ctx, "gfs.20230101/00/atmos/gfs.t00z.pgrb2.0p25.anl", []byte("GRIB"), nil); err != nil {
		t.Fatal(err)
	}

	scratch := t.TempDir()
	inv := NewInventory(bucket, "atmos", nil)
	cycle := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := inv.Fetch(ctx, cycle, 1, scratch)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Complete() {
		t.Errorf("missing hours %v, want none", res.Missing)
	}
	if len(res.Files) != 5 {
		t.Fatalf("got %d files, want 5", len(res.Files))
	}
	for i, file := range res.Files {
		want := filepath.Join(scratch, forecastKey(i+1)+".grib2")
		if file != want {
			t.Errorf("file %d is %s, want %s", i, file, want)
		}
		if strings.Contains(file, "f000") {
			t.Errorf("forecast hour 0 retained: %s", file)
		}
	}
}

func TestInventoryFetchEmpty(t *testing.T) {
	ctx := context.Background()
	bucket, err := fileblob.OpenBucket(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer bucket.Close()

	inv := NewInventory(bucket, "atmos", nil)
	cycle := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := inv.Fetch(ctx, cycle, 1, t.TempDir()); err == nil {
		t.Error("expected an error for an empty archive")
	}
}

func TestForecastHour(t *testing.T) {
	tests := []struct {
		key      string
		position int
		want     int
	}{
		{"gfs.20230101/00/atmos/gfs.t00z.pgrb2.0p25.f005", 5, 5},
		// A sparse listing shifts positions; the hour token wins.
		{"gfs.20230101/00/atmos/gfs.t00z.pgrb2.0p25.f005", 4, 5},
		{"gfs.20230101/00/atmos/gfs.t00z.pgrb2.0p25.f120", 97, 120},
		{"gfs.20230101/00/atmos/oddly-named-file", 3, 3},
	}
	for _, test := range tests {
		if got := forecastHour(test.key, test.position); got != test.want {
			t.Errorf("forecastHour(%q, %d) = %d, want %d", test.key, test.position, got, test.want)
		}
	}
}
