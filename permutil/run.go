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
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/permeation"
	"github.com/spf13/cobra"
)

// recordingRunner is a finite-volume Runner that keeps every completed
// simulation so that their snapshots can be saved afterwards.
type recordingRunner struct {
	permeation.FiniteVolumeRunner
	sims []*permeation.Simulation
}

func (r *recordingRunner) Run(ctx context.Context, cfg *permeation.ModelConfig, reqs []permeation.DerivedQuantityRequest) ([]*permeation.DerivedQuantitySeries, error) {
	s, err := r.Simulate(ctx, cfg, reqs)
	if err != nil {
		return nil, err
	}
	r.sims = append(r.sims, s)
	return s.Series, nil
}

// Run runs the coated and uncoated simulations in s and compares the
// resulting PRF with the closed form. Log messages are written both to
// the command output and to LogFile. The downstream flux series are
// written to variants of OutputFile, and, if SnapshotFile is not empty,
// the concentration snapshots to variants of SnapshotFile.
func Run(cmd *cobra.Command, LogFile, OutputFile, SnapshotFile string, level logrus.Level, s *Setup) (*permeation.ComparisonResult, error) {
	startTime := time.Now()

	logfile, err := os.Create(LogFile)
	if err != nil {
		return nil, fmt.Errorf("permeation: problem creating log file: %v", err)
	}
	defer logfile.Close()
	log := logrus.New()
	log.SetOutput(io.MultiWriter(cmd.OutOrStdout(), logfile))
	log.SetLevel(level)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	r := &recordingRunner{FiniteVolumeRunner: permeation.FiniteVolumeRunner{Log: log}}
	c := &permeation.Comparison{Runner: r, Log: log}
	res, err := c.Run(ctx, s.WithBarrier, s.NoBarrier, s.Substrate, s.Barrier)
	if err != nil {
		return nil, err
	}

	variants := []string{"with_barrier", "no_barrier"}
	for i, series := range []*permeation.DerivedQuantitySeries{res.WithBarrier, res.NoBarrier} {
		f := variantFile(OutputFile, variants[i])
		if err := writeFile(f, func(w *os.File) error {
			return permeation.WriteSeries(w, []*permeation.DerivedQuantitySeries{series})
		}); err != nil {
			return nil, err
		}
		log.WithField("file", f).Info("wrote flux series")
	}
	if SnapshotFile != "" {
		for i, sim := range r.sims {
			f := variantFile(SnapshotFile, variants[i])
			if err := writeFile(f, func(w *os.File) error {
				return permeation.WriteSnapshots(w, sim.Snapshots)
			}); err != nil {
				return nil, err
			}
			log.WithFields(logrus.Fields{
				"file":      f,
				"snapshots": len(sim.Snapshots),
			}).Info("wrote snapshots")
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Substrate: %v, %g m\nBarrier:   %v, %g m\n%v\n",
		s.Substrate.Material, s.Substrate.Thickness, s.Barrier.Material, s.Barrier.Thickness, res.PRF)
	log.WithField("duration", time.Since(startTime)).Info("permeation completed successfully")
	return res, nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("permeation: creating %s: %v", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("permeation: writing %s: %w", path, err)
	}
	return f.Close()
}
