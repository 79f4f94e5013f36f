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
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// growthIterations is the Newton iteration count below which the step
// size is increased after a step.
const growthIterations = 5

// Calculations returns a function that concurrently runs a series of
// calculations on all of the cells.
func Calculations(calculators ...CellManipulator) DomainManipulator {
	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup

	return func(s *Simulation) error {
		t := s.Time + s.Dt
		wg.Add(nprocs)
		for pp := 0; pp < nprocs; pp++ {
			go func(pp int) {
				for ii := pp; ii < len(s.Cells); ii += nprocs {
					c := s.Cells[ii]
					c.Lock()
					for _, f := range calculators {
						f(c, t, s.Dt)
					}
					c.Unlock()
				}
				wg.Done()
			}(pp)
		}
		wg.Wait()
		return nil
	}
}

// UpdateProperties returns a function that sets the temperature,
// diffusivity, solubility and trap rates of a cell at time t.
func UpdateProperties(T Temperature) CellManipulator {
	return func(c *Cell, t, Δt float64) {
		c.Temperature = T.At(c.X, t)
		c.D = c.Material.Diffusivity(c.Temperature)
		c.S = c.Material.Solubility(c.Temperature)
		for _, tr := range c.Traps {
			tr.K = tr.TrappingRate(c.Temperature)
			tr.P = tr.DetrappingRate(c.Temperature)
		}
	}
}

// CheckTemperature returns a function that fails the run if any cell
// temperature is not a positive finite number.
func CheckTemperature() DomainManipulator {
	return func(s *Simulation) error {
		for _, c := range s.Cells {
			if T := c.Temperature; !(T > 0) || math.IsInf(T, 1) {
				return configErrorf("temperature", "%g K at x=%g m and t=%g s but should be finite and >0",
					T, c.X, s.Time+s.Dt)
			}
		}
		return nil
	}
}

// SetInitialStep sets the size of the first step.
func SetInitialStep() DomainManipulator {
	return func(s *Simulation) error {
		s.nominalDt = s.Config.InitialStepSize
		s.limitStep()
		return nil
	}
}

// AdaptTimestep returns a function that grows the step by the change
// ratio after a step that converged quickly, and shortens it so that
// it does not exceed the maximum step size or step past the final time
// or the next snapshot time.
func AdaptTimestep() DomainManipulator {
	return func(s *Simulation) error {
		if s.Iterations < growthIterations {
			s.nominalDt *= s.Config.StepSizeChangeRatio
		}
		s.limitStep()
		return nil
	}
}

func (s *Simulation) limitStep() {
	cfg := s.Config
	dt := s.nominalDt
	if cfg.MaxStepSize > 0 && dt > cfg.MaxStepSize {
		dt = cfg.MaxStepSize
		s.nominalDt = dt
	}
	s.clamped = false
	end := cfg.FinalTime
	for _, ts := range cfg.SnapshotTimes {
		if ts > s.Time {
			end = math.Min(end, ts)
			break
		}
	}
	if rest := end - (s.Time + dt); rest <= 0 {
		dt = end - s.Time
		s.stepEnd, s.clamped = end, true
	} else if rest < cfg.MinStepSize {
		// Leave no remainder shorter than the minimum step.
		if cfg.MaxStepSize == 0 || dt+rest <= cfg.MaxStepSize {
			dt = end - s.Time
			s.stepEnd, s.clamped = end, true
		} else {
			dt = (end - s.Time) / 2
		}
	}
	s.Dt = dt
}

// FinalTimeCheck returns a function that ends the run when the final
// time is reached and fails it when the step budget is spent first.
func FinalTimeCheck() DomainManipulator {
	return func(s *Simulation) error {
		if s.Time >= s.Config.FinalTime {
			s.Done = true
			return nil
		}
		if s.Step >= s.Config.MaxSteps {
			return &ConvergenceError{
				Time:       s.Time,
				StepSize:   s.Dt,
				Step:       s.Step,
				Iterations: s.Iterations,
				Reason:     "maximum number of steps reached before the final time",
			}
		}
		return nil
	}
}

// steadyStateCheckSteps is the number of steps between steady-state
// checks.
const steadyStateCheckSteps = 10

// SteadyStateConvergenceCheck returns a function that ends the run once
// the total hydrogen retention in the domain changes by less than
// tolerance (relative) between checks. It does nothing if tolerance is
// zero.
func SteadyStateConvergenceCheck(tolerance float64) DomainManipulator {
	var oldSum float64
	return func(s *Simulation) error {
		if tolerance <= 0 || s.Step%steadyStateCheckSteps != 0 {
			return nil
		}
		var sum float64
		for _, c := range s.Cells {
			sum += c.Value(Retention) * c.Dx
		}
		if checkConvergence(sum, oldSum, tolerance, s.Log) {
			s.Log.WithFields(logrus.Fields{"time": s.Time, "step": s.Step}).Info("steady state reached")
			s.Done = true
		}
		oldSum = sum
		return nil
	}
}

func checkConvergence(newSum, oldSum, tolerance float64, log logrus.FieldLogger) bool {
	bias := (newSum - oldSum) / newSum
	log.WithField("change", bias).Debug("retention change since last check")
	if math.Abs(bias) > tolerance || math.IsInf(bias, 0) || math.IsNaN(bias) {
		return false
	}
	return true
}

// RecordQuantities returns a function that appends the current value
// of every derived quantity to its series.
func RecordQuantities() DomainManipulator {
	return func(s *Simulation) error {
		for _, sr := range s.Series {
			if err := sr.Append(s.Time, s.Quantity(sr.Request)); err != nil {
				return err
			}
		}
		return nil
	}
}

// FreezeSeries returns a function that freezes all derived quantity
// series.
func FreezeSeries() DomainManipulator {
	return func(s *Simulation) error {
		for _, sr := range s.Series {
			sr.Freeze()
		}
		return nil
	}
}

// Quantity computes the value of r at the end of the last step.
func (s *Simulation) Quantity(r DerivedQuantityRequest) float64 {
	switch r.Kind {
	case SurfaceFluxKind:
		return s.surfaceFlux(r.Surface)
	case TotalVolumeKind, AverageVolumeKind:
		var sum, length float64
		for _, c := range s.Cells {
			if c.Material.ID != r.Volume {
				continue
			}
			sum += c.Value(r.Field) * c.Dx
			length += c.Dx
		}
		if r.Kind == AverageVolumeKind {
			return sum / length
		}
		return sum
	}
	return math.NaN()
}

// Snapshot is the concentration field at one time.
type Snapshot struct {
	Time    float64   // [s]
	X       []float64 // cell centers [m]
	Solute  []float64 // [m⁻³]
	Trapped []float64 // [m⁻³]
}

// SaveSnapshots returns a function that records the concentration
// field whenever the simulation time is one of the snapshot times.
// A snapshot at time zero is recorded by the first call.
func SaveSnapshots() DomainManipulator {
	next := 0
	return func(s *Simulation) error {
		times := s.Config.SnapshotTimes
		for next < len(times) && times[next] <= s.Time {
			s.Snapshots = append(s.Snapshots, s.snapshot(times[next]))
			next++
		}
		return nil
	}
}

func (s *Simulation) snapshot(t float64) *Snapshot {
	o := &Snapshot{
		Time:    t,
		X:       make([]float64, len(s.Cells)),
		Solute:  make([]float64, len(s.Cells)),
		Trapped: make([]float64, len(s.Cells)),
	}
	for i, c := range s.Cells {
		o.X[i] = c.X
		o.Solute[i] = c.Cf
		o.Trapped[i] = c.Trapped()
	}
	return o
}

// Log returns a function that writes status messages to log after each
// step.
func Log(log logrus.FieldLogger) DomainManipulator {
	startTime := time.Now()
	stepTime := time.Now()
	return func(s *Simulation) error {
		log.WithFields(logrus.Fields{
			"step":       s.Step,
			"time":       s.Time,
			"dt":         s.Dt,
			"iterations": s.Iterations,
			"walltime":   time.Since(startTime).Seconds(),
			"Δwalltime":  time.Since(stepTime).Seconds(),
		}).Debug("step complete")
		stepTime = time.Now()
		return nil
	}
}
