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
	"fmt"
	"math"
)

// SteadyStateValue returns the last value of s, which is taken to be
// its steady-state value.
func SteadyStateValue(s *DerivedQuantitySeries) (float64, error) {
	_, v, err := s.Last()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.Name(), err)
	}
	return v, nil
}

// ComputePRF returns the permeation reduction factor: the ratio of the
// steady-state value of noBarrier to that of withBarrier. It returns
// ErrDivideByZero if the with-barrier value is exactly zero.
func ComputePRF(noBarrier, withBarrier *DerivedQuantitySeries) (float64, error) {
	if !noBarrier.Units().Matches(withBarrier.Units()) {
		return 0, configErrorf("derived quantities", "cannot compare %s [%v] with %s [%v]",
			noBarrier.Name(), noBarrier.Units(), withBarrier.Name(), withBarrier.Units())
	}
	n, err := SteadyStateValue(noBarrier)
	if err != nil {
		return 0, err
	}
	w, err := SteadyStateValue(withBarrier)
	if err != nil {
		return 0, err
	}
	if w == 0 {
		return 0, ErrDivideByZero
	}
	return n / w, nil
}

// Layer is a material of a given thickness.
type Layer struct {
	Material  Material
	Thickness float64 // [m]
}

// LayerOf returns a layer with the thickness of m's interval.
func LayerOf(m Material) Layer { return Layer{Material: m, Thickness: m.Thickness()} }

// TheoreticalPRF returns the permeation reduction factor of a substrate
// coated on both sides with barrier at temperature T:
//
//	PRF = 1 + 2·(D_s/D_b)·(S_s/S_b)·(e_b/e_s)
//
// The approximation holds only for identical coatings on both faces
// and diffusion-limited transport at steady state. Traps do not change
// the steady state and so are ignored. It is not valid for asymmetric
// or graded stacks.
func TheoreticalPRF(substrate, barrier Layer, T float64) (float64, error) {
	if !(T > 0) {
		return 0, configErrorf("temperature", "%g K but should be >0", T)
	}
	if !(substrate.Thickness > 0) {
		return 0, configErrorf("layers", "substrate thickness=%g but should be >0", substrate.Thickness)
	}
	if !(barrier.Thickness >= 0) {
		return 0, configErrorf("layers", "barrier thickness=%g but should be ≥0", barrier.Thickness)
	}
	for _, l := range []Layer{substrate, barrier} {
		if !(l.Material.D0 > 0) || !(l.Material.S0 > 0) {
			return 0, configErrorf("layers", "%v: D0 and S0 must be >0", l.Material)
		}
	}
	Ds, Db := substrate.Material.Diffusivity(T), barrier.Material.Diffusivity(T)
	Ss, Sb := substrate.Material.Solubility(T), barrier.Material.Solubility(T)
	return 1 + 2*(Ds/Db)*(Ss/Sb)*(barrier.Thickness/substrate.Thickness), nil
}

// PRFResult compares a computed permeation reduction factor with the
// closed-form approximation.
type PRFResult struct {
	Theoretical float64
	Computed    float64

	// RelativeError is |Computed − Theoretical| / Theoretical.
	RelativeError float64
}

func (r *PRFResult) String() string {
	return fmt.Sprintf("PRF: computed %.4g, theoretical %.4g, relative error %.2f%%",
		r.Computed, r.Theoretical, r.RelativeError*100)
}

// Compare computes the permeation reduction factor from the series and
// compares it with TheoreticalPRF(substrate, barrier, T).
func Compare(noBarrier, withBarrier *DerivedQuantitySeries, substrate, barrier Layer, T float64) (*PRFResult, error) {
	theory, err := TheoreticalPRF(substrate, barrier, T)
	if err != nil {
		return nil, err
	}
	prf, err := ComputePRF(noBarrier, withBarrier)
	if err != nil {
		return nil, err
	}
	return &PRFResult{
		Theoretical:   theory,
		Computed:      prf,
		RelativeError: math.Abs(prf-theory) / theory,
	}, nil
}
