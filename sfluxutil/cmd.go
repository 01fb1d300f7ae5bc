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

// Package sfluxutil wires the sflux library into a command-line tool.
package sfluxutil

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hydromet/sflux"
	"github.com/hydromet/sflux/wgrib2"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// startLayout is the timestamp format of the start option, e.g. 2023010100.
const startLayout = "2006010215"

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "start",
			usage: `
              start specifies the forecast cycle to begin at, in
              YYYYMMDDHH format (UTC). It is rounded down to the nearest
              synoptic cycle (00, 06, 12 or 18). If empty, the most
              recent available cycle is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "rnday",
			usage: `
              rnday specifies the run length in days; one output file is
              written per day.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "record",
			usage: `
              record specifies the number of 24-hour records to fetch
              per cycle.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "bbox.xmin",
			usage: `
              bbox.xmin specifies the western edge of the bounding box,
              in degrees longitude.`,
			defaultVal: -98.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "bbox.xmax",
			usage: `
              bbox.xmax specifies the eastern edge of the bounding box,
              in degrees longitude.`,
			defaultVal: -60.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "bbox.ymin",
			usage: `
              bbox.ymin specifies the southern edge of the bounding box,
              in degrees latitude.`,
			defaultVal: 8.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "bbox.ymax",
			usage: `
              bbox.ymax specifies the northern edge of the bounding box,
              in degrees latitude.`,
			defaultVal: 45.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "bucket",
			usage: `
              bucket specifies the archive to read forecast files from.`,
			defaultVal: "s3://noaa-gfs-bdp-pds",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "product",
			usage: `
              product specifies the archive product family.`,
			defaultVal: "atmos",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "scratch",
			usage: `
              scratch specifies the directory to download forecast files
              into. If empty, the system temp directory is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output specifies the directory to write daily output
              directories under.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "allow_partial",
			usage: `
              allow_partial permits writing a day's output when some
              forecast hours failed to download; the time dimension is
              then shorter than requested. If false, a missing hour
              fails that day.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()
	Cfg.SetEnvPrefix("sflux")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for _, set := range option.flagsets {
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}

	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
}

func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("sflux: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "sflux",
	Short: "Generate GFS surface-forcing input files.",
	Long: `sflux downloads GFS forecast output for a bounded geographic region
and repackages it into one NetCDF surface-forcing file per day.

Configuration can be changed by using a configuration file (and providing
the path to the file using the --config flag), by using command-line
arguments, or by setting environment variables in the format 'SFLUX_var'
where 'var' is the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("sflux v%s\n", sflux.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch forecast data and write the daily forcing files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		start := sflux.DefaultCycle(time.Now())
		if s := Cfg.GetString("start"); s != "" {
			t, err := time.Parse(startLayout, s)
			if err != nil {
				return fmt.Errorf("sflux: parsing start %q: %v", s, err)
			}
			start = t
		}

		bucket, err := OpenBucket(ctx, Cfg.GetString("bucket"))
		if err != nil {
			return err
		}
		defer bucket.Close()

		log := logrus.StandardLogger()
		results := sflux.Run(ctx, sflux.Config{
			Start:  start,
			RnDay:  Cfg.GetInt("rnday"),
			Record: Cfg.GetInt("record"),
			BBox: sflux.BoundingBox{
				Xmin: cast.ToFloat64(Cfg.Get("bbox.xmin")),
				Xmax: cast.ToFloat64(Cfg.Get("bbox.xmax")),
				Ymin: cast.ToFloat64(Cfg.Get("bbox.ymin")),
				Ymax: cast.ToFloat64(Cfg.Get("bbox.ymax")),
			},
			Product:      Cfg.GetString("product"),
			ScratchRoot:  Cfg.GetString("scratch"),
			OutputRoot:   Cfg.GetString("output"),
			AllowPartial: Cfg.GetBool("allow_partial"),
			Bucket:       bucket,
			Decoder:      &wgrib2.Decoder{},
			Log:          log,
		})

		var failed int
		for _, r := range results {
			if r.Err != nil {
				failed++
				log.Errorf("day %s failed: %v", r.Day.Format("20060102"), r.Err)
				continue
			}
			if len(r.Missing) > 0 {
				log.Warnf("day %s written to %s with missing forecast hours %v",
					r.Day.Format("20060102"), r.Path, r.Missing)
				continue
			}
			log.Infof("day %s written to %s", r.Day.Format("20060102"), r.Path)
		}
		if failed > 0 {
			return fmt.Errorf("sflux: %d of %d days failed", failed, len(results))
		}
		return nil
	},
	DisableAutoGenTag: true,
}
