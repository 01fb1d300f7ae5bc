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

// Package sflux fetches GFS forecast output for a bounded region and
// repackages it into daily NetCDF surface-forcing files for a
// hydrodynamic model.
package sflux

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
)

// Version is the sflux version number.
const Version = "0.1.0"

// Config holds everything one run needs. The bucket handle, decoder and
// scratch root are injected here rather than discovered lazily.
type Config struct {
	// Start is the first forecast cycle to process. It is rounded down
	// to a synoptic cycle boundary.
	Start time.Time

	// RnDay is the run length in days; one output file is written per day.
	RnDay int

	// Record is the number of 24-hour records to fetch per cycle.
	Record int

	// BBox is the geographic region to extract.
	BBox BoundingBox

	// Product is the archive product family (normally "atmos").
	Product string

	// ScratchRoot is where per-day scratch directories are created.
	// Empty means the system temp directory.
	ScratchRoot string

	// OutputRoot is the directory under which per-day output
	// directories are written. Empty means the working directory.
	OutputRoot string

	// AllowPartial permits writing a day whose download was incomplete;
	// the output then has fewer forecast hours than requested. When
	// false, a missing hour fails the day.
	AllowPartial bool

	// Bucket is the archive to read from. Ignored when Fetcher is set.
	Bucket *blob.Bucket

	// Fetcher overrides the default bucket-backed Inventory.
	Fetcher Fetcher

	// Decoder extracts fields from the downloaded grid files.
	Decoder Decoder

	Log logrus.FieldLogger
}

// A DayResult reports the outcome of one day's job.
type DayResult struct {
	Day     time.Time
	Path    string // the output file, empty on failure
	Missing []int  // forecast hours absent from the output
	Err     error
}

// Run processes cfg.RnDay days starting at cfg.Start, fanning the
// independent per-day jobs out over a worker pool sized to the available
// parallelism. It returns one result per day, in day order; one day's
// failure does not affect the others.
func Run(ctx context.Context, cfg Config) []DayResult {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	cfg.Start = NearestCycle(cfg.Start)
	cfg.Log.Infof("start date is %v", cfg.Start)

	dates := days(cfg.Start, cfg.RnDay)
	nworkers := len(dates)
	if n := runtime.GOMAXPROCS(0); nworkers > n {
		nworkers = n
	}
	cfg.Log.Infof("worker pool size is %d", nworkers)

	results := make([]DayResult, len(dates))
	jobChan := make(chan int, len(dates))
	doneChan := make(chan struct{})
	for i := 0; i < nworkers; i++ {
		go func() {
			for i := range jobChan {
				day := dates[i]
				path, missing, err := BuildDailyDataset(ctx, cfg, day)
				results[i] = DayResult{Day: day, Path: path, Missing: missing, Err: err}
			}
			doneChan <- struct{}{}
		}()
	}
	for i := range dates {
		jobChan <- i
	}
	close(jobChan)
	for i := 0; i < nworkers; i++ {
		<-doneChan
	}
	return results
}

// BuildDailyDataset retrieves one day's forecast files, extracts the
// eight forcing fields over the bounding-box window, and writes the
// day's output file. It returns the output path and the forecast hours
// missing from it.
func BuildDailyDataset(ctx context.Context, cfg Config, day time.Time) (string, []int, error) {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	record := cfg.Record
	if record <= 0 {
		record = 1
	}

	scratch, err := os.MkdirTemp(cfg.ScratchRoot, "sflux")
	if err != nil {
		return "", nil, fmt.Errorf("sflux: creating scratch directory: %v", err)
	}
	defer os.RemoveAll(scratch)

	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewInventory(cfg.Bucket, cfg.Product, log)
	}
	res, err := fetcher.Fetch(ctx, day, record, scratch)
	if err != nil {
		return "", nil, err
	}
	if len(res.Files) == 0 {
		return "", nil, fmt.Errorf("sflux: no forecast files retrieved for %s", day.Format("2006010215"))
	}
	if !res.Complete() && !cfg.AllowPartial {
		return "", res.Missing, fmt.Errorf("sflux: %d forecast hours missing for %s: %v",
			len(res.Missing), day.Format("2006010215"), res.Missing)
	}

	// The native grid does not change across forecast hours, so the
	// window is computed once, from the first file only.
	coords, err := cfg.Decoder.Decode(ctx, res.Files[0], surfaceInstant, "prate")
	if err != nil {
		return "", res.Missing, fmt.Errorf("sflux: reading native coordinates from %s: %v", res.Files[0], err)
	}
	first, ok := coords["prate"]
	if !ok {
		return "", res.Missing, fmt.Errorf("sflux: no surface field in %s", res.Files[0])
	}
	window, err := computeWindow(cfg.BBox, first.Lon, first.Lat)
	if err != nil {
		return "", res.Missing, err
	}
	log.Infof("idx_ymin is %d, idx_ymax is %d, idx_xmin is %d, idx_xmax is %d",
		window.Ymin, window.Ymax, window.Xmin, window.Xmax)

	series, err := extractFields(ctx, cfg.Decoder, res.Files, window, log)
	if err != nil {
		return "", res.Missing, err
	}

	outdir := filepath.Join(cfg.OutputRoot, day.Format("20060102"))
	if err := os.MkdirAll(outdir, os.ModePerm); err != nil {
		return "", res.Missing, fmt.Errorf("sflux: creating output directory: %v", err)
	}
	outfile := filepath.Join(outdir, fmt.Sprintf("gfs_%s%02d.nc", day.Format("20060102"), day.Hour()))
	if err := writeDataset(outfile, day, window, series); err != nil {
		return "", res.Missing, err
	}
	return outfile, res.Missing, nil
}
