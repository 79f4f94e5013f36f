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
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// errNewton is returned by a Newton solve that does not converge.
var errNewton = errors.New("permeation: Newton iteration did not converge")

// ImplicitStep returns a function that advances the simulation by one
// implicit Euler step. The mobile concentration is found by Newton
// iteration and the trapped concentrations are eliminated cell by cell.
// If the iteration fails, the step is retried with its size divided by
// the change ratio, up to MaxStepReductions times.
func ImplicitStep() DomainManipulator {
	var update DomainManipulator
	checkT := CheckTemperature()
	return func(s *Simulation) error {
		if update == nil {
			update = Calculations(UpdateProperties(s.Config.Temperature))
		}
		cfg := s.Config
		var iterations int
		var failed error
		op := func() error {
			if s.Dt < cfg.MinStepSize {
				return backoff.Permanent(&ConvergenceError{
					Time:       s.Time,
					StepSize:   s.Dt,
					Step:       s.Step,
					Iterations: iterations,
					Reason:     fmt.Sprintf("step size fell below the minimum of %g s", cfg.MinStepSize),
					Err:        failed,
				})
			}
			if err := update(s); err != nil {
				return backoff.Permanent(err)
			}
			if err := checkT(s); err != nil {
				return backoff.Permanent(err)
			}
			var err error
			iterations, err = s.newton()
			if err != nil {
				failed = err
				for _, c := range s.Cells {
					c.reject()
				}
				return err
			}
			return nil
		}
		notify := func(err error, _ time.Duration) {
			s.Log.WithFields(logrus.Fields{
				"time":       s.Time,
				"dt":         s.Dt,
				"iterations": iterations,
			}).Warn("step failed; reducing step size")
			s.nominalDt = s.Dt / cfg.StepSizeChangeRatio
			s.Dt = s.nominalDt
			s.clamped = false
		}
		var b backoff.BackOff = &backoff.StopBackOff{}
		if cfg.MaxStepReductions > 0 {
			b = backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(cfg.MaxStepReductions))
		}
		if err := backoff.RetryNotify(op, b, notify); err != nil {
			var ce *ConvergenceError
			if errors.As(err, &ce) {
				return ce
			}
			if errors.Is(err, errNewton) {
				return &ConvergenceError{
					Time:       s.Time,
					StepSize:   s.Dt,
					Step:       s.Step,
					Iterations: iterations,
					Reason:     fmt.Sprintf("step failed after %d step size reductions", cfg.MaxStepReductions),
					Err:        err,
				}
			}
			return err
		}
		if s.clamped {
			s.Time = s.stepEnd
		} else {
			s.Time += s.Dt
		}
		s.Step++
		s.Iterations = iterations
		for _, c := range s.Cells {
			c.accept()
		}
		return nil
	}
}

// newton solves for the end-of-step mobile concentrations, starting
// from the beginning-of-step values. It returns the number of
// iterations taken.
func (s *Simulation) newton() (int, error) {
	cfg := s.Config
	n := len(s.Cells)
	F := make([]float64, n)
	dl, d, du := make([]float64, n-1), make([]float64, n), make([]float64, n-1)
	c := make([]float64, n)
	for i, cell := range s.Cells {
		c[i] = cell.Cf
	}
	var δ mat.VecDense
	var norm0 float64
	for it := 0; it < cfg.MaxIterations; it++ {
		s.residual(F, dl, d, du)
		norm := floats.Norm(F, 2)
		if math.IsNaN(norm) || math.IsInf(norm, 0) {
			return it, fmt.Errorf("%w: residual is %g", errNewton, norm)
		}
		if it == 0 {
			norm0 = norm
		}
		if norm <= cfg.AbsoluteTolerance || norm <= cfg.RelativeTolerance*norm0 {
			return it, nil
		}
		floats.Scale(-1, F)
		J := mat.NewTridiag(n, dl, d, du)
		if err := J.SolveVecTo(&δ, false, mat.NewVecDense(n, F)); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return it, fmt.Errorf("%w: %v", errNewton, err)
			}
		}
		for i, cell := range s.Cells {
			c[i] += δ.AtVec(i)
			cell.Cf = c[i]
		}
		if floats.Norm(δ.RawVector().Data, 2) <= cfg.RelativeTolerance*floats.Norm(c, 2) {
			s.updateTraps()
			return it + 1, nil
		}
	}
	return cfg.MaxIterations, fmt.Errorf("%w in %d iterations", errNewton, cfg.MaxIterations)
}

// residual computes the residual F of the cell balance equations at the
// current end-of-step concentrations, together with the sub-diagonal
// dl, diagonal d and super-diagonal du of its Jacobian. The trapped
// concentrations are updated as a side effect.
//
// The balance for cell i is
//
//	Δx·(c − cⁿ)/Δt + Δx·Σ(c_t − c_tⁿ)/Δt + J(i+½) − J(i−½) = 0
//
// where J is the flux in the direction of increasing x.
func (s *Simulation) residual(F, dl, d, du []float64) {
	dt := s.Dt
	n := len(s.Cells)
	for i, c := range s.Cells {
		ct, dct := c.trapUpdate(dt)
		F[i] = c.Dx * (c.Cf - c.Ci + ct - c.TrappedInitial()) / dt
		d[i] = c.Dx * (1 + dct) / dt
	}
	for i, c := range s.Cells[:n-1] {
		J, dJdl, dJdr := s.faceFlux(c, c.Right)
		F[i] += J
		F[i+1] -= J
		d[i] += dJdl
		du[i] = dJdr
		dl[i] = -dJdl
		d[i+1] -= dJdr
	}
	t := s.Time + dt
	J, dJ := s.boundaryFlux(s.Cells[0], true, t)
	F[0] -= J
	d[0] -= dJ
	J, dJ = s.boundaryFlux(s.Cells[n-1], false, t)
	F[n-1] += J
	d[n-1] += dJ
}

// trapUpdate sets the end-of-step trapped concentrations for the
// current mobile concentration by the implicit Euler update
//
//	c_t = (c_tⁿ + Δt·k·n·c) / (1 + Δt·p + Δt·k·c)
//
// and returns the total and its derivative with respect to c.
func (c *Cell) trapUpdate(dt float64) (total, deriv float64) {
	for _, t := range c.Traps {
		A := t.Ti
		B := dt * t.K * t.Density
		den := 1 + dt*t.P + dt*t.K*c.Cf
		t.Tf = (A + B*c.Cf) / den
		total += t.Tf
		deriv += (B*(1+dt*t.P) - A*dt*t.K) / (den * den)
	}
	return total, deriv
}

func (s *Simulation) updateTraps() {
	for _, c := range s.Cells {
		c.trapUpdate(s.Dt)
	}
}

// ratio returns the ratio of the concentration on the right of the face
// between a and b to that on its left. It is 1 unless the chemical
// potential is continuous.
func (s *Simulation) ratio(a, b *Cell) float64 {
	if !s.Config.ChemicalPotential {
		return 1
	}
	return b.S / a.S
}

// faceFlux returns the flux from cell a to its right neighbor b and its
// derivatives with respect to the concentrations in a and b. The flux
// is continuous across the face and the concentration jumps by the
// solubility ratio r:
//
//	J = α·β·(r·c_a − c_b) / (α + β·r),  α = 2D_a/Δx_a, β = 2D_b/Δx_b
func (s *Simulation) faceFlux(a, b *Cell) (J, dJda, dJdb float64) {
	α := 2 * a.D / a.Dx
	β := 2 * b.D / b.Dx
	r := s.ratio(a, b)
	den := α + β*r
	J = α * β * (r*a.Cf - b.Cf) / den
	return J, α * β * r / den, -α * β / den
}

// boundaryFlux returns the flux in the direction of increasing x
// through the surface adjacent to cell c at time t and its derivative
// with respect to the concentration in c.
func (s *Simulation) boundaryFlux(c *Cell, left bool, t float64) (J, dJ float64) {
	surface, x := s.Config.RightSurface, c.XRight
	if left {
		surface, x = s.Config.LeftSurface, c.XLeft
	}
	bc, _ := s.Config.Boundary(surface)
	if bc.Kind == FluxBC {
		if left {
			return bc.Value, 0
		}
		return -bc.Value, 0
	}
	cs := bc.Concentration(s.Config.Temperature.At(x, t))
	α := 2 * c.D / c.Dx
	if left {
		return α * (cs - c.Cf), -α
	}
	return α * (c.Cf - cs), α
}

// surfaceFlux returns the flux out of the domain through surface at the
// end of the last accepted step.
func (s *Simulation) surfaceFlux(surface int) float64 {
	if surface == s.Config.LeftSurface {
		J, _ := s.boundaryFlux(s.Cells[0], true, s.Time)
		return -J
	}
	J, _ := s.boundaryFlux(s.Cells[len(s.Cells)-1], false, s.Time)
	return J
}
