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

// steadyStateFactor is the number of diffusion time constants a run
// must last to be considered at steady state.
const steadyStateFactor = 5

// NoBarrierVariant derives from the coated configuration c a
// configuration holding only the substrate material with ID
// substrateID, shifted to start at zero. If cells is positive, the
// substrate is meshed with that many uniform cells; otherwise the
// nodes of c inside the substrate are reused. The chemical potential
// formulation is switched off, traps present in the substrate are kept,
// and every Sieverts boundary condition takes the substrate's
// solubility. c is not modified.
func NoBarrierVariant(c *ModelConfig, substrateID, cells int) (*ModelConfig, error) {
	sub, ok := c.Material(substrateID)
	if !ok {
		return nil, configErrorf("materials", "substrate material %d does not exist", substrateID)
	}
	shift, end := sub.Start, sub.End
	sub.Start, sub.End = 0, end-shift

	var mesh []float64
	if cells > 0 {
		var err error
		if mesh, err = LayeredMesh([]Material{sub}, []int{cells}); err != nil {
			return nil, err
		}
	} else {
		for _, x := range c.Mesh {
			if x >= shift && x <= end {
				mesh = append(mesh, x-shift)
			}
		}
	}

	var traps []Trap
	for _, t := range c.Traps {
		if t.in(substrateID) {
			t = t.clone()
			t.Materials = []int{substrateID}
			traps = append(traps, t)
		}
	}

	opts := []Option{
		WithMaterials(sub),
		WithMesh(mesh),
		WithChemicalPotential(false),
		WithTraps(traps...),
	}
	for _, bc := range c.Boundaries {
		if bc.Kind == SievertsBC {
			opts = append(opts, WithSievertsSolubility(bc.Surface, sub.S0, sub.ES))
		}
	}
	return c.Derive(opts...)
}

// Comparison runs a coated and an uncoated configuration to steady
// state and computes the permeation reduction factor from their
// downstream fluxes.
type Comparison struct {
	Runner Runner

	// Log receives progress messages. If nil, the logrus standard
	// logger is used.
	Log logrus.FieldLogger
}

// ComparisonResult holds the outcome of a Comparison.
type ComparisonResult struct {
	PRF *PRFResult

	// WithBarrier and NoBarrier are the downstream surface flux series.
	WithBarrier, NoBarrier *DerivedQuantitySeries
}

// Run runs withBarrier and then noBarrier and compares the permeation
// reduction factor with the closed form for substrate coated on both
// sides with barrier. The closed form uses the temperature at the
// center of the substrate at the final time. An error from either run
// is returned without running the other.
func (c *Comparison) Run(ctx context.Context, withBarrier, noBarrier *ModelConfig, substrate, barrier Layer) (*ComparisonResult, error) {
	log := c.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	o := new(ComparisonResult)
	for _, v := range []struct {
		name string
		cfg  *ModelConfig
		dst  **DerivedQuantitySeries
	}{
		{"with barrier", withBarrier, &o.WithBarrier},
		{"no barrier", noBarrier, &o.NoBarrier},
	} {
		vlog := log.WithField("variant", v.name)
		if tau := v.cfg.DiffusionTimeConstant(); v.cfg.FinalTime < steadyStateFactor*tau {
			vlog.WithFields(logrus.Fields{
				"final time": v.cfg.FinalTime,
				"τ":          tau,
			}).Warnf("final time is less than %d diffusion time constants; the run may not reach steady state", steadyStateFactor)
		}
		series, err := c.Runner.Run(ctx, v.cfg, []DerivedQuantityRequest{SurfaceFlux(Solute, v.cfg.RightSurface)})
		if err != nil {
			return nil, fmt.Errorf("permeation: %s run: %w", v.name, err)
		}
		*v.dst = series[0]
		flux, err := SteadyStateValue(series[0])
		if err != nil {
			return nil, err
		}
		vlog.WithField("downstream flux", flux).Info("run complete")
	}

	start, end := withBarrier.Bounds()
	x := (start + end) / 2
	if m, ok := withBarrier.Material(substrate.Material.ID); ok {
		x = (m.Start + m.End) / 2
	}
	T := withBarrier.Temperature.At(x, withBarrier.FinalTime)
	var err error
	o.PRF, err = Compare(o.NoBarrier, o.WithBarrier, substrate, barrier, T)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"computed":       o.PRF.Computed,
		"theoretical":    o.PRF.Theoretical,
		"relative error": o.PRF.RelativeError,
	}).Info("permeation reduction factor")
	return o, nil
}
