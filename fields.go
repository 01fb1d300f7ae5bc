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

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// OutputVars lists the eight output variables in file declaration order.
var OutputVars = []string{"stmp", "spfh", "uwind", "vwind", "prmsl", "prate", "dlwrf", "dswrf"}

// surfaceInstant is the selection used to obtain the native coordinate
// vectors from the first file of a day.
var surfaceInstant = Selection{StepType: "instant", TypeOfLevel: "surface"}

// fieldGroups are the four selection-filter groups applied to every file.
// Each group is one fresh decoder invocation; group A is one invocation
// per parameter id, and group D yields two fields from a single filter.
var fieldGroups = []struct {
	sel  Selection
	vars []string
}{
	// Group A: parameter-id selections.
	{Selection{ParamID: 174096}, []string{"spfh"}},
	{Selection{ParamID: 167}, []string{"stmp"}},
	{Selection{ParamID: 165}, []string{"uwind"}},
	{Selection{ParamID: 166}, []string{"vwind"}},
	// Group B: mean sea level.
	{Selection{TypeOfLevel: "meanSea"}, []string{"prmsl"}},
	// Group C: instantaneous surface fields.
	{surfaceInstant, []string{"prate"}},
	// Group D: step-averaged surface fields.
	{Selection{StepType: "avg", TypeOfLevel: "surface"}, []string{"dlwrf", "dswrf"}},
}

// A fieldSeries holds, per output variable, one windowed 2-D grid per
// forecast hour, in forecast-hour order. Every array in a series has
// shape [Ny][Nx] of the day's grid window.
type fieldSeries map[string][]*sparse.DenseArray

// extractFields applies the four selection-filter groups to every file in
// forecast-hour order, windowing each decoded field to w. A decoder
// failure aborts the whole day.
func extractFields(ctx context.Context, dec Decoder, files []string, w *Window, log logrus.FieldLogger) (fieldSeries, error) {
	series := make(fieldSeries, len(OutputVars))
	for ifile, file := range files {
		log.Infof("file %d is %s", ifile, file)
		for _, group := range fieldGroups {
			fields, err := dec.Decode(ctx, file, group.sel, group.vars...)
			if err != nil {
				return nil, fmt.Errorf("sflux: decoding %s: %v", file, err)
			}
			for _, v := range group.vars {
				field, ok := fields[v]
				if !ok {
					return nil, fmt.Errorf("sflux: decoder returned no %s for %s", v, file)
				}
				windowed, err := w.slice(field.Data)
				if err != nil {
					return nil, fmt.Errorf("sflux: windowing %s from %s: %v", v, file, err)
				}
				series[v] = append(series[v], windowed)
			}
		}
	}
	return series, nil
}
