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

package permeation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Runner integrates a configuration from zero initial concentration to
// its final time and returns one series per request, in request order.
// Every series holds one sample per accepted step and is frozen when
// Run returns.
//
// Run returns a *ConvergenceError if the solve fails after the allowed
// step size reductions or the step budget runs out, and ctx.Err() if
// ctx is cancelled. A Runner must not modify cfg.
type Runner interface {
	Run(ctx context.Context, cfg *ModelConfig, reqs []DerivedQuantityRequest) ([]*DerivedQuantitySeries, error)
}

// FiniteVolumeRunner is a Runner that solves the transport equations on
// the configuration's mesh with cell-centered finite volumes and
// implicit Euler time stepping.
type FiniteVolumeRunner struct {
	// Log receives progress messages. If nil, the logrus standard
	// logger is used.
	Log logrus.FieldLogger
}

// Run implements Runner.
func (r *FiniteVolumeRunner) Run(ctx context.Context, cfg *ModelConfig, reqs []DerivedQuantityRequest) ([]*DerivedQuantitySeries, error) {
	s, err := r.Simulate(ctx, cfg, reqs)
	if err != nil {
		return nil, err
	}
	return s.Series, nil
}

// Simulate is like Run but returns the completed simulation, which
// additionally holds the final concentration field and any snapshots.
func (r *FiniteVolumeRunner) Simulate(ctx context.Context, cfg *ModelConfig, reqs []DerivedQuantityRequest) (*Simulation, error) {
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	series := make([]*DerivedQuantitySeries, len(reqs))
	for i, req := range reqs {
		if err := req.check(cfg); err != nil {
			return nil, err
		}
		series[i] = NewSeries(req)
	}
	snapshots := SaveSnapshots()
	s := &Simulation{
		Config: cfg,
		Series: series,
		Log:    log,
		InitFuncs: []DomainManipulator{
			Grid(),
			Calculations(UpdateProperties(cfg.Temperature)),
			CheckTemperature(),
			SetInitialStep(),
			snapshots,
		},
		RunFuncs: []DomainManipulator{
			ImplicitStep(),
			RecordQuantities(),
			snapshots,
			Log(log),
			SteadyStateConvergenceCheck(cfg.SteadyStateTolerance),
			FinalTimeCheck(),
			AdaptTimestep(),
		},
		CleanupFuncs: []DomainManipulator{
			FreezeSeries(),
		},
	}
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("permeation: initializing simulation: %w", err)
	}
	log.WithFields(logrus.Fields{
		"cells":      len(s.Cells),
		"materials":  len(cfg.Materials),
		"final time": cfg.FinalTime,
		"τ":          cfg.DiffusionTimeConstant(),
	}).Info("starting simulation")
	runErr := s.Run(ctx)
	if err := s.Cleanup(); err != nil {
		return nil, err
	}
	if runErr != nil {
		return nil, runErr
	}
	log.WithFields(logrus.Fields{
		"steps": s.Step,
		"time":  s.Time,
	}).Info("simulation complete")
	return s, nil
}
