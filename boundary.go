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

// Default surface identifiers of the one-dimensional domain.
const (
	SurfaceLeft  = 1
	SurfaceRight = 2
)

// BCKind is the type of a boundary condition.
type BCKind int

const (
	// SievertsBC fixes the surface concentration at S(T)·√P, where S is
	// computed from the condition's own S0 and ES.
	SievertsBC BCKind = iota
	// DirichletBC fixes the surface concentration at Value.
	DirichletBC
	// FluxBC imposes an inward flux of Value [m⁻² s⁻¹]; zero is an
	// insulated surface.
	FluxBC
)

func (k BCKind) String() string {
	switch k {
	case SievertsBC:
		return "sieverts"
	case DirichletBC:
		return "dirichlet"
	case FluxBC:
		return "flux"
	default:
		return fmt.Sprintf("BCKind(%d)", int(k))
	}
}

// BoundaryCondition is a condition imposed on the mobile concentration
// at one surface.
type BoundaryCondition struct {
	Surface int
	Kind    BCKind

	Value float64 // DirichletBC concentration [m⁻³] or FluxBC flux [m⁻² s⁻¹]

	// SievertsBC parameters.
	S0       float64 // solubility pre-exponential factor [m⁻³ Pa⁻⁰·⁵]
	ES       float64 // solubility activation energy [eV]
	Pressure float64 // driving pressure [Pa]
}

// NewSievertsBC returns a Sieverts-law condition on surface.
func NewSievertsBC(surface int, s0, es, pressure float64) BoundaryCondition {
	return BoundaryCondition{Surface: surface, Kind: SievertsBC, S0: s0, ES: es, Pressure: pressure}
}

// NewDirichletBC returns a fixed-concentration condition on surface.
func NewDirichletBC(surface int, value float64) BoundaryCondition {
	return BoundaryCondition{Surface: surface, Kind: DirichletBC, Value: value}
}

// NewFluxBC returns an imposed inward flux condition on surface.
func NewFluxBC(surface int, flux float64) BoundaryCondition {
	return BoundaryCondition{Surface: surface, Kind: FluxBC, Value: flux}
}

// Concentration returns the concentration imposed by a SievertsBC or
// DirichletBC at surface temperature T.
func (bc BoundaryCondition) Concentration(T float64) float64 {
	switch bc.Kind {
	case SievertsBC:
		return arrhenius(bc.S0, bc.ES, T) * math.Sqrt(bc.Pressure)
	case DirichletBC:
		return bc.Value
	}
	panic(fmt.Errorf("permeation: %v condition has no concentration", bc.Kind))
}

func (bc BoundaryCondition) check() error {
	switch bc.Kind {
	case SievertsBC:
		if !(bc.S0 > 0) {
			return configErrorf("boundary conditions", "surface %d: Sieverts S0=%g but should be >0", bc.Surface, bc.S0)
		}
		if !(bc.Pressure >= 0) {
			return configErrorf("boundary conditions", "surface %d: pressure=%g but should be ≥0", bc.Surface, bc.Pressure)
		}
	case DirichletBC, FluxBC:
		if math.IsNaN(bc.Value) || math.IsInf(bc.Value, 0) {
			return configErrorf("boundary conditions", "surface %d: value must be finite", bc.Surface)
		}
	default:
		return configErrorf("boundary conditions", "surface %d: unknown kind %v", bc.Surface, bc.Kind)
	}
	return nil
}
