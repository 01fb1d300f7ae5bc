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
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
)

const (
	// resolutionTag selects the 0.25° global product.
	resolutionTag = "0p25"
	// productTag selects the per-forecast-hour pressure-level files.
	productTag = "pgrb2"
)

// excludeTags mark keys that are never per-hour forecast files: the GOES
// simulation variant, analysis fields and index sidecars.
var excludeTags = []string{"goessim", "anl", "idx"}

// A Fetcher retrieves the per-forecast-hour gridded files for one cycle
// into a local scratch directory.
type Fetcher interface {
	Fetch(ctx context.Context, cycle time.Time, record int, scratch string) (*FetchResult, error)
}

// A FetchResult is the outcome of retrieving one cycle's files.
// Files holds local paths in forecast-hour order. Missing lists the
// forecast hours whose download failed; a result with len(Missing) == 0
// is a complete series.
type FetchResult struct {
	Files   []string
	Missing []int
}

// Complete reports whether every requested forecast hour was retrieved.
func (r *FetchResult) Complete() bool { return len(r.Missing) == 0 }

// An Inventory lists and retrieves GFS forecast files from a blob-store
// archive. The bucket handle and product family are injected at
// construction; scratch space is supplied per fetch.
type Inventory struct {
	bucket  *blob.Bucket
	product string
	log     logrus.FieldLogger
}

// NewInventory returns an Inventory reading from the given bucket.
// product is the archive product family (normally "atmos").
func NewInventory(bucket *blob.Bucket, product string, log logrus.FieldLogger) *Inventory {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Inventory{bucket: bucket, product: product, log: log}
}

// prefix returns the archive prefix holding the given cycle's output.
func (inv *Inventory) prefix(cycle time.Time) string {
	return fmt.Sprintf("gfs.%s/%02d/%s/", cycle.Format("20060102"), cycle.Hour(), inv.product)
}

// Fetch lists the archive for the cycle, downloads up to record*24
// per-hour files (always skipping forecast hour 0) into scratch, and
// returns the local files in forecast-hour order. Listing errors are
// fatal; individual download failures are logged and reported through
// FetchResult.Missing.
func (inv *Inventory) Fetch(ctx context.Context, cycle time.Time, record int, scratch string) (*FetchResult, error) {
	prefix := inv.prefix(cycle)

	// The full listing is materialized before filtering: forecast-hour
	// order is recovered by a global lexical sort of the filtered keys.
	var keys []string
	iter := inv.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sflux: listing %s: %v", prefix, err)
		}
		keys = append(keys, obj.Key)
	}

	selected := selectKeys(filterKeys(keys), record)
	if len(selected) == 0 {
		return nil, fmt.Errorf("sflux: no forecast files in archive under %s", prefix)
	}

	result := new(FetchResult)
	for i, key := range selected {
		inv.log.Infof("downloading file %s", key)
		if err := inv.download(ctx, key, scratch); err != nil {
			inv.log.Infof("file %s is not available: %v", key, err)
			result.Missing = append(result.Missing, forecastHour(key, i+1))
		}
	}

	// A directory glob of the deterministic local names is the canonical
	// forecast-hour ordering used by the extractor.
	pattern := filepath.Join(scratch, prefix, fmt.Sprintf("gfs.t%02dz.pgrb2.0p25.f*.grib2", cycle.Hour()))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("sflux: globbing %s: %v", pattern, err)
	}
	sort.Strings(files)
	result.Files = files
	return result, nil
}

// filterKeys keeps only per-hour forecast files for the fixed resolution
// and product family, sorted ascending so that the embedded zero-padded
// forecast-hour offset recovers hour order.
func filterKeys(keys []string) []string {
	var kept []string
	for _, key := range keys {
		if !strings.Contains(key, resolutionTag) || !strings.Contains(key, productTag) {
			continue
		}
		excluded := false
		for _, tag := range excludeTags {
			if strings.Contains(key, tag) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, key)
		}
	}
	sort.Strings(kept)
	return kept
}

// hourRe matches the forecast-hour suffix of a per-hour file key,
// e.g. "f005".
var hourRe = regexp.MustCompile(`\.f(\d+)$`)

// forecastHour returns the forecast hour embedded in key. position is the
// 1-based position of key in the selected slice, used as a fallback when
// the key carries no recognizable hour token; the two agree whenever the
// archive listing has no gaps.
func forecastHour(key string, position int) int {
	if m := hourRe.FindStringSubmatch(key); m != nil {
		if h, err := strconv.Atoi(m[1]); err == nil {
			return h
		}
	}
	return position
}

// selectKeys takes the contiguous slice of up to record*24 keys starting
// at the second entry. The first entry is forecast hour 0, which is never
// used for forcing.
func selectKeys(keys []string, record int) []string {
	if len(keys) < 2 {
		return nil
	}
	end := record*24 + 1
	if end > len(keys) {
		end = len(keys)
	}
	return keys[1:end]
}

// download copies one archive object to its deterministic local path
// under scratch, mirroring the key structure and appending ".grib2".
func (inv *Inventory) download(ctx context.Context, key, scratch string) error {
	local := filepath.Join(scratch, key+".grib2")
	if err := os.MkdirAll(filepath.Dir(local), os.ModePerm); err != nil {
		return err
	}
	r, err := inv.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := os.Create(local)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		os.Remove(local)
		return err
	}
	return w.Close()
}
