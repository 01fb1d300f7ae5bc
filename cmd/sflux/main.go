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

// Command sflux is a command-line interface for generating GFS
// surface-forcing files.
package main

import (
	"fmt"
	"os"

	"github.com/hydromet/sflux/sfluxutil"
)

func main() {
	if err := sfluxutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
