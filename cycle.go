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

import "time"

const (
	// CycleInterval is the spacing between GFS synoptic cycles
	// (00, 06, 12 and 18 UTC).
	CycleInterval = 6 * time.Hour

	// deliveryDelay is how long after a cycle's valid time its output
	// normally becomes available in the archive.
	deliveryDelay = 6 * time.Hour
)

// NearestCycle rounds t down to the nearest synoptic cycle boundary.
func NearestCycle(t time.Time) time.Time {
	return t.UTC().Truncate(CycleInterval)
}

// DefaultCycle returns the most recent cycle whose output can be expected
// to have been delivered to the archive by time t.
func DefaultCycle(t time.Time) time.Time {
	return NearestCycle(t.Add(-deliveryDelay))
}

// days returns one cycle timestamp per 24 hours, starting at start,
// for rnday days.
func days(start time.Time, rnday int) []time.Time {
	d := make([]time.Time, rnday)
	for i := range d {
		d[i] = start.Add(time.Duration(i) * 24 * time.Hour)
	}
	return d
}
