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
	"sort"
)

// Boltzmann is the Boltzmann constant [eV/K].
const Boltzmann = 8.617333262e-5

// SolubilityLaw specifies how the dissolved concentration at a surface
// or interface depends on the hydrogen partial pressure.
type SolubilityLaw int

const (
	// Sieverts law: c = S·√P. Typical for metals.
	Sieverts SolubilityLaw = iota
	// Henry law: c = K·P.
	Henry
)

func (l SolubilityLaw) String() string {
	switch l {
	case Sieverts:
		return "sieverts"
	case Henry:
		return "henry"
	default:
		return fmt.Sprintf("SolubilityLaw(%d)", int(l))
	}
}

// ParseSolubilityLaw returns the law named s ("sieverts" or "henry").
func ParseSolubilityLaw(s string) (SolubilityLaw, error) {
	switch s {
	case "sieverts", "Sieverts", "sievert", "":
		return Sieverts, nil
	case "henry", "Henry":
		return Henry, nil
	}
	return Sieverts, configErrorf("solubility law", "unknown law %q; should be sieverts or henry", s)
}

// Material holds the transport properties of one layer of the
// one-dimensional domain and the interval [Start, End) it occupies.
type Material struct {
	ID   int    // unique within a configuration
	Name string // optional label

	D0 float64 `desc:"Diffusivity pre-exponential factor" units:"m²/s"`
	ED float64 `desc:"Diffusion activation energy" units:"eV"`
	S0 float64 `desc:"Solubility pre-exponential factor" units:"m⁻³ Pa⁻⁰·⁵ (Sieverts) or m⁻³ Pa⁻¹ (Henry)"`
	ES float64 `desc:"Solubility activation energy" units:"eV"`

	Law SolubilityLaw

	Start, End float64 // spatial extent [m]
}

// Diffusivity returns the diffusion coefficient at temperature T [K].
func (m Material) Diffusivity(T float64) float64 {
	return arrhenius(m.D0, m.ED, T)
}

// Solubility returns the solubility at temperature T [K].
func (m Material) Solubility(T float64) float64 {
	return arrhenius(m.S0, m.ES, T)
}

// Thickness returns the extent of the material [m].
func (m Material) Thickness() float64 { return m.End - m.Start }

// Contains returns whether x lies within [Start, End).
func (m Material) Contains(x float64) bool { return x >= m.Start && x < m.End }

func (m Material) String() string {
	if m.Name != "" {
		return fmt.Sprintf("material %d (%s) [%g, %g)", m.ID, m.Name, m.Start, m.End)
	}
	return fmt.Sprintf("material %d [%g, %g)", m.ID, m.Start, m.End)
}

func arrhenius(pre, e, T float64) float64 {
	return pre * math.Exp(-e/(Boltzmann*T))
}

// Trap is a McNabb–Foster trapping site population:
//
//	∂c_t/∂t = k·c_m·(n − c_t) − p·c_t
//
// with k = K0·exp(−EK/k_B·T) and p = P0·exp(−EP/k_B·T).
type Trap struct {
	K0      float64 `desc:"Trapping rate pre-exponential factor" units:"m³/s"`
	EK      float64 `desc:"Trapping activation energy" units:"eV"`
	P0      float64 `desc:"Detrapping rate pre-exponential factor" units:"1/s"`
	EP      float64 `desc:"Detrapping activation energy" units:"eV"`
	Density float64 `desc:"Trap site density" units:"m⁻³"`

	Materials []int // IDs of the materials the trap is present in
}

// TrappingRate returns k at temperature T.
func (t Trap) TrappingRate(T float64) float64 { return arrhenius(t.K0, t.EK, T) }

// DetrappingRate returns p at temperature T.
func (t Trap) DetrappingRate(T float64) float64 { return arrhenius(t.P0, t.EP, T) }

func (t Trap) in(materialID int) bool {
	for _, id := range t.Materials {
		if id == materialID {
			return true
		}
	}
	return false
}

func (t Trap) clone() Trap {
	t.Materials = append([]int(nil), t.Materials...)
	return t
}

// Registry holds an ordered set of materials whose intervals are
// contiguous: every added material must share an end point with the
// materials already present, so the covered region never has a gap
// or an overlap.
type Registry struct {
	materials []Material // sorted by Start
}

// NewRegistry returns a registry holding ms, added in the order given.
func NewRegistry(ms ...Material) (*Registry, error) {
	r := new(Registry)
	for _, m := range ms {
		if err := r.Add(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add adds m to the registry. It returns a *ConfigurationError if m's
// ID is already used, if its interval is empty, or if the interval
// overlaps or is not adjacent to the existing coverage.
func (r *Registry) Add(m Material) error {
	if !(m.End > m.Start) {
		return configErrorf("materials", "%v: end must be greater than start", m)
	}
	if math.IsInf(m.Start, 0) || math.IsInf(m.End, 0) || math.IsNaN(m.Start) || math.IsNaN(m.End) {
		return configErrorf("materials", "%v: interval must be finite", m)
	}
	if !(m.D0 > 0) {
		return configErrorf("materials", "%v: D0=%g but should be >0", m, m.D0)
	}
	if !(m.S0 > 0) {
		return configErrorf("materials", "%v: S0=%g but should be >0", m, m.S0)
	}
	for _, e := range r.materials {
		if e.ID == m.ID {
			return configErrorf("materials", "duplicate material ID %d", m.ID)
		}
		if m.Start < e.End && e.Start < m.End {
			return configErrorf("materials", "%v overlaps %v", m, e)
		}
	}
	if len(r.materials) == 0 {
		r.materials = append(r.materials, m)
		return nil
	}
	start, end := r.Bounds()
	switch {
	case m.Start == end:
		r.materials = append(r.materials, m)
	case m.End == start:
		r.materials = append([]Material{m}, r.materials...)
	default:
		return configErrorf("materials", "%v leaves a gap in the coverage [%g, %g)", m, start, end)
	}
	return nil
}

// Sorted returns a copy of the materials ordered by Start.
func (r *Registry) Sorted() []Material {
	o := make([]Material, len(r.materials))
	copy(o, r.materials)
	sort.SliceStable(o, func(i, j int) bool { return o[i].Start < o[j].Start })
	return o
}

// Len returns the number of materials.
func (r *Registry) Len() int { return len(r.materials) }

// Bounds returns the start and end of the covered region.
func (r *Registry) Bounds() (start, end float64) {
	if len(r.materials) == 0 {
		return 0, 0
	}
	return r.materials[0].Start, r.materials[len(r.materials)-1].End
}

// TotalDomainLength returns the length of the covered region [m].
func (r *Registry) TotalDomainLength() float64 {
	start, end := r.Bounds()
	return end - start
}

// Lookup returns the material with the given ID.
func (r *Registry) Lookup(id int) (Material, bool) {
	for _, m := range r.materials {
		if m.ID == id {
			return m, true
		}
	}
	return Material{}, false
}

// At returns the material occupying position x. The end of the last
// material is included.
func (r *Registry) At(x float64) (Material, bool) {
	for _, m := range r.materials {
		if m.Contains(x) {
			return m, true
		}
	}
	if n := len(r.materials); n > 0 && x == r.materials[n-1].End {
		return r.materials[n-1], true
	}
	return Material{}, false
}
