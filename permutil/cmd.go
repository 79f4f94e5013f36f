/*
Copyright © 2024 the Permeation authors.
This file is part of Permeation.

Permeation is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Permeation is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Permeation.  If not, see <http://www.gnu.org/licenses/>.
*/

package permutil

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spatialmodel/permeation"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to the model.
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
			name: "MaterialsFile",
			usage: `
              MaterialsFile specifies the location of a TOML material database.
              Its entries are added to the built-in materials ("tungsten" and
              "coating"), replacing built-in entries with the same name.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), theoryCmd.Flags()},
		},
		{
			name: "Substrate",
			usage: `
              Substrate is the name of the substrate material.`,
			defaultVal: "tungsten",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), theoryCmd.Flags()},
		},
		{
			name: "Barrier",
			usage: `
              Barrier is the name of the barrier material, which coats both
              sides of the substrate.`,
			defaultVal: "coating",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), theoryCmd.Flags()},
		},
		{
			name: "SubstrateThickness",
			usage: `
              SubstrateThickness is the substrate thickness in m.`,
			defaultVal: 3e-3,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), theoryCmd.Flags()},
		},
		{
			name: "BarrierThickness",
			usage: `
              BarrierThickness is the thickness of each barrier layer in m.`,
			defaultVal: 1e-6,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), theoryCmd.Flags()},
		},
		{
			name: "SubstrateCells",
			usage: `
              SubstrateCells is the number of uniform cells in the substrate.`,
			defaultVal: 60,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), theoryCmd.Flags()},
		},
		{
			name: "BarrierCells",
			usage: `
              BarrierCells is the number of uniform cells in each barrier layer.`,
			defaultVal: 10,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), theoryCmd.Flags()},
		},
		{
			name: "NoBarrierCells",
			usage: `
              NoBarrierCells is the number of uniform cells in the uncoated
              substrate. If zero, the coated mesh nodes inside the substrate
              are reused.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Temperature",
			usage: `
              Temperature is the temperature in K. It is either a number or an
              expression of position x [m] and time t [s], for example
              "600 + 10000*x".`,
			shorthand:  "T",
			defaultVal: "600",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), theoryCmd.Flags()},
		},
		{
			name: "Pressure",
			usage: `
              Pressure is the upstream hydrogen partial pressure in Pa.`,
			shorthand:  "p",
			defaultVal: 100.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), theoryCmd.Flags()},
		},
		{
			name: "DownstreamBC",
			usage: `
              DownstreamBC specifies the condition at the downstream surface.
              Kind is "dirichlet" (Value is the concentration in m⁻³) or
              "flux" (Value is the inward flux in m⁻² s⁻¹).`,
			defaultVal: map[string]string{"Kind": "dirichlet", "Value": "0"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), theoryCmd.Flags()},
		},
		{
			name: "Traps",
			usage: `
              Traps specifies whether to include the trap populations listed
              in the material database.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), theoryCmd.Flags()},
		},
		{
			name: "FinalTime",
			usage: `
              FinalTime is the simulated time in s. It should be several
              diffusion time constants of the substrate for the runs to reach
              steady state.`,
			defaultVal: 1e6,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), theoryCmd.Flags()},
		},
		{
			name: "InitialStepSize",
			usage: `
              InitialStepSize is the size of the first time step in s.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "StepSizeChangeRatio",
			usage: `
              StepSizeChangeRatio is the factor by which the step size grows
              after a quickly converging step and shrinks after a failed one.`,
			defaultVal: 1.1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MinStepSize",
			usage: `
              MinStepSize is the smallest allowed step size in s.`,
			defaultVal: 1e-10,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MaxStepSize",
			usage: `
              MaxStepSize is the largest allowed step size in s. Zero means
              no limit.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MaxSteps",
			usage: `
              MaxSteps is the largest number of accepted steps per run.`,
			defaultVal: 100000,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MaxStepReductions",
			usage: `
              MaxStepReductions is the number of times a failed step may be
              retried with a smaller step size.`,
			defaultVal: 50,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MaxIterations",
			usage: `
              MaxIterations is the largest number of Newton iterations per step.`,
			defaultVal: 30,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "AbsoluteTolerance",
			usage: `
              AbsoluteTolerance is the Newton residual norm below which a step
              has converged.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "RelativeTolerance",
			usage: `
              RelativeTolerance is the Newton residual reduction at which a
              step has converged.`,
			defaultVal: 1e-10,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SteadyStateTolerance",
			usage: `
              SteadyStateTolerance ends a run early once the total solute
              inventory changes by less than this fraction between checks.
              Zero disables the check.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SnapshotTimes",
			usage: `
              SnapshotTimes is a list of times in s at which to save the
              concentration profiles to SnapshotFile.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path of the NetCDF files the downstream flux
              series are written to. "_with_barrier" and "_no_barrier" are
              inserted before the extension. Environment variables are expanded.`,
			shorthand:  "o",
			defaultVal: "permeation.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SnapshotFile",
			usage: `
              SnapshotFile is the path of the NetCDF files the concentration
              snapshots are written to, named like OutputFile. If empty,
              snapshots are not saved.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
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
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of messages to log: "debug" logs
              every step; "info", "warning", and "error" are quieter.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("PERMEATION")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(v)
				set.StringP(option.name, option.shorthand, b.String(), option.usage)
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
	Root.AddCommand(theoryCmd)
}

// setConfig reads in the configuration file, if one was given.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("permeation: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "permeation",
	Short: "A hydrogen permeation barrier model.",
	Long: `permeation simulates one-dimensional hydrogen transport through a
substrate coated on both sides with a permeation barrier, and computes the
permeation reduction factor (PRF) of the coating.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'PERMEATION_var' where 'var' is the
name of the variable to be set. File paths may contain environment variables.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of permeation.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("permeation v%s\n", permeation.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the coated and uncoated simulations and compute the PRF.",
	Long: `run simulates the coated substrate and the bare substrate until the
final time, computes the permeation reduction factor from their downstream
fluxes, and compares it with the closed-form approximation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := SetupFromConfig(Cfg)
		if err != nil {
			return err
		}
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		snapshotFile, err := checkSnapshotFile(Cfg.GetString("SnapshotFile"), s)
		if err != nil {
			return err
		}
		level, err := checkLogLevel(Cfg.GetString("LogLevel"))
		if err != nil {
			return err
		}
		_, err = Run(cmd, checkLogFile(Cfg.GetString("LogFile"), outputFile), outputFile, snapshotFile, level, s)
		return err
	},
	DisableAutoGenTag: true,
}

var theoryCmd = &cobra.Command{
	Use:   "theory",
	Short: "Print the closed-form PRF.",
	Long: `theory prints the closed-form approximation of the permeation
reduction factor for the configured materials, thicknesses, and temperature
without running a simulation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := SetupFromConfig(Cfg)
		if err != nil {
			return err
		}
		T := s.Temperature()
		prf, err := permeation.TheoreticalPRF(s.Substrate, s.Barrier, T)
		if err != nil {
			return err
		}
		cmd.Printf("theoretical PRF at %g K: %.5g\n", T, prf)
		return nil
	},
	DisableAutoGenTag: true,
}
