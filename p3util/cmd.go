/*
Copyright © 2017 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/


// Package p3util provides a command-line interface and configuration
// handling for the P3 column microphysics.
package p3util

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/p3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to P3.
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
			name: "CaseFile",
			usage: `
              CaseFile is the path to the TOML file holding the initial
              state of the columns. It can contain environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the NetCDF file where results
              are written. It can contain environment variables.`,
			shorthand:  "o",
			defaultVal: "p3_output.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), plotCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can
              include environment variables. If LogFile is left blank, the
              logfile will be saved in the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies which variables to write to the
              output file, as a map of output names to expressions of
              state, input, output and history variable names. Expressions
              may use the functions exp, log10, min and max.`,
			defaultVal: map[string]string{
				"qc":            "qc",
				"qr":            "qr",
				"qi":            "qi",
				"qv":            "qv",
				"th":            "th",
				"reflectivity":  "diag_equiv_reflectivity",
				"TotalWater":    "qv + qc + qr + qi",
				"PrecipFluxLiq": "precip_liq_flux",
			},
			flagsets: []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Dt",
			usage: `
              Dt is the microphysics time step in seconds.`,
			defaultVal: 300.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "NumSteps",
			usage: `
              NumSteps is the number of time steps to calculate.`,
			shorthand:  "n",
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PredictNc",
			usage: `
              PredictNc specifies whether cloud droplet number is
              prognostic. If false, a constant droplet concentration is used.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PrescribedCCN",
			usage: `
              PrescribedCCN specifies whether droplet activation uses the
              prescribed CCN number given by the nccn profile.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DoIceProduction",
			usage: `
              DoIceProduction specifies whether homogeneous freezing is
              calculated.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MaxTotalNi",
			usage: `
              MaxTotalNi is the maximum total ice number concentration
              in particles per cubic meter.`,
			defaultVal: 740.0e3,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Strategy",
			usage: `
              Strategy specifies how columns are scheduled. 'fused' runs all
              stages of a column before moving on to the next one and 'staged'
              runs each stage across all columns before starting the next stage.`,
			defaultVal: "fused",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of columns to calculate at once. Values
              less than one mean the number of available processors.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Strict",
			usage: `
              Strict specifies whether to check the state of every column
              for unphysical values after every stage.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "AbortOnCheck",
			usage: `
              AbortOnCheck specifies whether a failed check stops the
              simulation. It is only used when Strict is true.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MetricsAddr",
			usage: `
              MetricsAddr is the address where Prometheus metrics are served,
              for example ':9090'. Metrics are not served if it is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TableFile",
			usage: `
              TableFile is the path to a NetCDF file of lookup tables as
              created by the 'tables' command. If it is empty, the tables are
              calculated when the simulation starts.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), tablesCmd.Flags()},
		},
		{
			name: "PlotFile",
			usage: `
              PlotFile is the path where the profile plot is saved in PNG format.`,
			defaultVal: "p3_profile.png",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "PlotVariables",
			usage: `
              PlotVariables are the output variables to plot.`,
			defaultVal: []string{"qc", "qr", "qi"},
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "PlotColumn",
			usage: `
              PlotColumn is the index of the column to plot.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("P3")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
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
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(tablesCmd)
	Root.AddCommand(plotCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("p3: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "p3",
	Short: "Two-moment cloud microphysics for atmospheric columns.",
	Long: `p3 advances the cloud microphysics of a set of independent atmospheric
columns, starting from an initial state read from a case file.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'P3_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of P3.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("P3 v%s\n", p3.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that runs a simulation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the microphysics.",
	Long: `run reads the initial state of a set of columns from the CaseFile,
advances it by NumSteps time steps and writes the OutputVariables to the
OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		outputVars, err := checkOutputVars(GetStringMapString("OutputVariables", Cfg))
		if err != nil {
			return err
		}
		caseFile, err := checkInputFile("CaseFile", Cfg.GetString("CaseFile"))
		if err != nil {
			return err
		}
		rt, err := RuntimeConfig(Cfg)
		if err != nil {
			return err
		}
		strategy, err := p3.NewStrategy(Cfg.GetString("Strategy"), Cfg.GetInt("Workers"))
		if err != nil {
			return err
		}
		return Run(RunConfig{
			LogFile:         checkLogFile(Cfg.GetString("LogFile"), outputFile),
			CaseFile:        caseFile,
			OutputFile:      outputFile,
			OutputVariables: outputVars,
			TableFile:       expandPath(Cfg.GetString("TableFile")),
			Dt:              Cfg.GetFloat64("Dt"),
			NumSteps:        Cfg.GetInt("NumSteps"),
			Runtime:         rt,
			Strategy:        strategy,
			Strict:          Cfg.GetBool("Strict"),
			AbortOnCheck:    Cfg.GetBool("AbortOnCheck"),
			MetricsAddr:     Cfg.GetString("MetricsAddr"),
			Out:             cmd.OutOrStdout(),
		})
	},
	DisableAutoGenTag: true,
}

// tablesCmd is a command that calculates the lookup tables and saves
// them to a file.
var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Calculate and save the lookup tables",
	Long: `tables calculates the lookup tables of hydrometeor properties and saves
them to the TableFile so that they can be reused by future simulations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tableFile := expandPath(Cfg.GetString("TableFile"))
		if tableFile == "" {
			return fmt.Errorf("p3: the TableFile configuration variable needs to be set")
		}
		return SaveTables(tableFile)
	},
	DisableAutoGenTag: true,
}

// plotCmd is a command that plots vertical profiles from an output file.
var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Plot vertical profiles",
	Long: `plot reads the PlotVariables for column PlotColumn from the OutputFile
created by the 'run' command and plots their vertical profiles to PlotFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkInputFile("OutputFile", Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		return PlotProfiles(outputFile, expandPath(Cfg.GetString("PlotFile")),
			Cfg.GetInt("PlotColumn"), expandStringSlice(Cfg.GetStringSlice("PlotVariables"))...)
	},
	DisableAutoGenTag: true,
}
