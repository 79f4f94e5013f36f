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
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/permeation"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Material IDs of the coated stack.
const (
	upstreamBarrierID   = 1
	substrateID         = 2
	downstreamBarrierID = 3
)

// Setup holds a coated configuration, the matching uncoated
// configuration, and the layers the closed-form PRF is computed from.
type Setup struct {
	WithBarrier, NoBarrier *permeation.ModelConfig
	Substrate, Barrier     permeation.Layer
}

// Temperature returns the temperature the closed-form PRF is evaluated
// at: that at the center of the substrate at the final time.
func (s *Setup) Temperature() float64 {
	m := s.Substrate.Material
	return s.WithBarrier.Temperature.At((m.Start+m.End)/2, s.WithBarrier.FinalTime)
}

// SetupFromConfig builds a Setup from cfg. The coated stack is a
// barrier layer, the substrate, and a second barrier layer, in that
// order. The upstream surface is held at the Sieverts concentration of
// the barrier at the configured pressure.
func SetupFromConfig(cfg *viper.Viper) (*Setup, error) {
	db := DefaultMaterials()
	if f := cfg.GetString("MaterialsFile"); f != "" {
		if err := db.ReadMaterials(f); err != nil {
			return nil, err
		}
	}

	eb, es := cfg.GetFloat64("BarrierThickness"), cfg.GetFloat64("SubstrateThickness")
	barrierName := cfg.GetString("Barrier")
	bl, barrierTraps, err := db.Material(barrierName, upstreamBarrierID, 0, eb, upstreamBarrierID, downstreamBarrierID)
	if err != nil {
		return nil, err
	}
	sub, substrateTraps, err := db.Material(cfg.GetString("Substrate"), substrateID, eb, eb+es)
	if err != nil {
		return nil, err
	}
	br, _, err := db.Material(barrierName, downstreamBarrierID, eb+es, 2*eb+es)
	if err != nil {
		return nil, err
	}
	materials := []permeation.Material{bl, sub, br}

	bc, sc := cfg.GetInt("BarrierCells"), cfg.GetInt("SubstrateCells")
	mesh, err := permeation.LayeredMesh(materials, []int{bc, sc, bc})
	if err != nil {
		return nil, err
	}
	T, err := permeation.ParseTemperature(cfg.GetString("Temperature"))
	if err != nil {
		return nil, err
	}
	ds, err := downstreamBC(GetStringMapString("DownstreamBC", cfg))
	if err != nil {
		return nil, err
	}
	snaps, err := snapshotTimes(cfg.GetStringSlice("SnapshotTimes"))
	if err != nil {
		return nil, err
	}
	var traps []permeation.Trap
	if cfg.GetBool("Traps") {
		traps = append(substrateTraps, barrierTraps...)
	}

	with, err := permeation.NewModelConfig(
		permeation.WithMaterials(materials...),
		permeation.WithMesh(mesh),
		permeation.WithTemperature(T),
		permeation.WithBoundaryConditions(
			permeation.NewSievertsBC(permeation.SurfaceLeft, bl.S0, bl.ES, cfg.GetFloat64("Pressure")),
			ds,
		),
		permeation.WithTraps(traps...),
		permeation.WithTolerances(cfg.GetFloat64("AbsoluteTolerance"), cfg.GetFloat64("RelativeTolerance")),
		permeation.WithMaxIterations(cfg.GetInt("MaxIterations")),
		permeation.WithFinalTime(cfg.GetFloat64("FinalTime")),
		permeation.WithStepSize(cfg.GetFloat64("InitialStepSize"), cfg.GetFloat64("StepSizeChangeRatio")),
		permeation.WithStepBounds(cfg.GetFloat64("MinStepSize"), cfg.GetFloat64("MaxStepSize")),
		permeation.WithMaxSteps(cfg.GetInt("MaxSteps")),
		permeation.WithMaxStepReductions(cfg.GetInt("MaxStepReductions")),
		permeation.WithSteadyStateTolerance(cfg.GetFloat64("SteadyStateTolerance")),
		permeation.WithSnapshotTimes(snaps...),
	)
	if err != nil {
		return nil, err
	}
	no, err := permeation.NoBarrierVariant(with, substrateID, cfg.GetInt("NoBarrierCells"))
	if err != nil {
		return nil, err
	}
	return &Setup{
		WithBarrier: with,
		NoBarrier:   no,
		Substrate:   permeation.LayerOf(sub),
		Barrier:     permeation.LayerOf(bl),
	}, nil
}

// downstreamBC returns the downstream boundary condition described by
// the Kind and Value entries of m.
func downstreamBC(m map[string]string) (permeation.BoundaryCondition, error) {
	var kind, value string
	for k, v := range m {
		switch strings.ToLower(k) {
		case "kind":
			kind = v
		case "value":
			value = v
		default:
			return permeation.BoundaryCondition{}, fmt.Errorf("permeation: DownstreamBC: unknown key %q", k)
		}
	}
	if value == "" {
		value = "0"
	}
	v, err := cast.ToFloat64E(value)
	if err != nil {
		return permeation.BoundaryCondition{}, fmt.Errorf("permeation: DownstreamBC value: %v", err)
	}
	switch strings.ToLower(kind) {
	case "dirichlet", "":
		return permeation.NewDirichletBC(permeation.SurfaceRight, v), nil
	case "flux":
		return permeation.NewFluxBC(permeation.SurfaceRight, v), nil
	}
	return permeation.BoundaryCondition{}, fmt.Errorf("permeation: DownstreamBC kind %q should be dirichlet or flux", kind)
}

// snapshotTimes parses a list of times. A single entry may itself be a
// comma-separated list, as it is when set from an environment variable.
func snapshotTimes(s []string) ([]float64, error) {
	var o []float64
	for _, e := range s {
		for _, f := range strings.Split(e, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			v, err := cast.ToFloat64E(f)
			if err != nil {
				return nil, fmt.Errorf("permeation: SnapshotTimes: %v", err)
			}
			o = append(o, v)
		}
	}
	return o, nil
}

// checkOutputFile expands any environment variables in f and makes sure
// that the directory it is to be written to exists.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="output.nc")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("permeation: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkSnapshotFile is like checkOutputFile, but an empty path is
// allowed and means no snapshots are written.
func checkSnapshotFile(f string, s *Setup) (string, error) {
	if f == "" {
		return "", nil
	}
	if len(s.WithBarrier.SnapshotTimes) == 0 {
		return "", fmt.Errorf("permeation: SnapshotFile is set but SnapshotTimes is empty")
	}
	f = os.ExpandEnv(f)
	if _, err := os.Stat(filepath.Dir(f)); err != nil {
		return f, fmt.Errorf("permeation: the SnapshotFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return os.ExpandEnv(logFile)
}

func checkLogLevel(l string) (logrus.Level, error) {
	level, err := logrus.ParseLevel(l)
	if err != nil {
		return level, fmt.Errorf("permeation: LogLevel: %v", err)
	}
	return level, nil
}

// variantFile inserts "_" + variant before the extension of f.
func variantFile(f, variant string) string {
	ext := filepath.Ext(f)
	return strings.TrimSuffix(f, ext) + "_" + variant + ext
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument or an environment variable.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case map[string]string:
		return v
	case map[string]interface{}:
		return cast.ToStringMapString(v)
	case string:
		d := json.NewDecoder(bytes.NewBufferString(v))
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(fmt.Errorf("permeation: invalid JSON for %s: %v", varName, err))
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for GetStringMapString variable %s: %#v", varName, i))
	}
}
