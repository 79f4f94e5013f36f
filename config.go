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
	"sort"
)

// ModelConfig is the complete description of one simulation
// variant. It is created by NewModelConfig or Derive and must not be
// modified afterwards; a modified copy is obtained with Derive.
type ModelConfig struct {
	// Materials sorted by Start, contiguous.
	Materials []Material

	// Traps are optional immobile trapping sites.
	Traps []Trap

	// Mesh holds the strictly increasing node positions [m]. Every
	// material interface is a node.
	Mesh []float64

	Temperature Temperature

	// Boundaries holds exactly one condition for each of the two
	// surfaces.
	Boundaries []BoundaryCondition

	// LeftSurface and RightSurface are the identifiers of the surfaces at
	// the start and end of the domain. By default they are
	// SurfaceLeft and SurfaceRight.
	LeftSurface, RightSurface int

	// Newton tolerances. A step has converged when the residual norm
	// is below AbsoluteTolerance, when it has dropped by a factor of
	// RelativeTolerance, or when the update norm is below
	// RelativeTolerance times the solution norm.
	AbsoluteTolerance, RelativeTolerance float64

	// MaxIterations is the number of Newton iterations allowed per step.
	MaxIterations int

	// FinalTime is the simulated time the run is driven to [s].
	FinalTime float64

	// InitialStepSize is the first time step [s]. The step is multiplied
	// by StepSizeChangeRatio after a quickly converged step and divided by
	// it after a failed one.
	InitialStepSize     float64
	StepSizeChangeRatio float64

	// MinStepSize bounds the step from below; a step that would need to
	// be smaller fails the run. MaxStepSize bounds it from above; zero
	// means the step is bounded only by the time remaining.
	MinStepSize, MaxStepSize float64

	// MaxSteps is the step budget. MaxStepReductions is the number of
	// times one step may be retried with a smaller size.
	MaxSteps          int
	MaxStepReductions int

	// ChemicalPotential specifies whether the chemical potential rather
	// than the concentration is continuous at material interfaces. It is
	// required for the concentration jump between materials of different
	// solubility; with a single material it only costs time.
	ChemicalPotential bool

	// SteadyStateTolerance, if >0, ends the run before FinalTime once the
	// relative change of the total retention between checks falls below
	// it.
	SteadyStateTolerance float64

	// SnapshotTimes are the times [s] at which the concentration field
	// is recorded. The time step is shortened to hit them exactly.
	SnapshotTimes []float64
}

// Option sets or overrides a part of a ModelConfig.
type Option func(*ModelConfig) error

// NewModelConfig returns a validated configuration built from opts.
// Temperature, materials, mesh, boundary conditions, final time and
// initial step size must be provided; everything else has a default.
func NewModelConfig(opts ...Option) (*ModelConfig, error) {
	c := &ModelConfig{
		LeftSurface:         SurfaceLeft,
		RightSurface:        SurfaceRight,
		AbsoluteTolerance:   1,
		RelativeTolerance:   1e-10,
		MaxIterations:       30,
		StepSizeChangeRatio: 1.1,
		MinStepSize:         1e-10,
		MaxSteps:            100000,
		MaxStepReductions:   50,
		ChemicalPotential:   true,
	}
	return c.apply(opts)
}

// Derive returns a validated copy of c with opts applied. c itself is
// not modified, and fields that no option touches are identical in the
// copy.
func (c *ModelConfig) Derive(opts ...Option) (*ModelConfig, error) {
	return c.clone().apply(opts)
}

func (c *ModelConfig) apply(opts []Option) (*ModelConfig, error) {
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ModelConfig) clone() *ModelConfig {
	o := *c
	o.Materials = append([]Material(nil), c.Materials...)
	if c.Traps != nil {
		o.Traps = make([]Trap, len(c.Traps))
		for i, t := range c.Traps {
			o.Traps[i] = t.clone()
		}
	}
	o.Mesh = append([]float64(nil), c.Mesh...)
	o.Boundaries = append([]BoundaryCondition(nil), c.Boundaries...)
	if c.SnapshotTimes != nil {
		o.SnapshotTimes = append([]float64(nil), c.SnapshotTimes...)
	}
	return &o
}

func (c *ModelConfig) validate() error {
	if len(c.Materials) == 0 {
		return configErrorf("materials", "no materials are specified")
	}
	ms := append([]Material(nil), c.Materials...)
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Start < ms[j].Start })
	r, err := NewRegistry(ms...)
	if err != nil {
		return err
	}
	c.Materials = r.Sorted()

	if c.Mesh, err = normalizeMesh(c.Mesh); err != nil {
		return err
	}
	if err = checkMeshMaterials(c.Mesh, c.Materials); err != nil {
		return err
	}

	for i, t := range c.Traps {
		if !(t.Density > 0) {
			return configErrorf("traps", "trap %d: density=%g but should be >0", i, t.Density)
		}
		if len(t.Materials) == 0 {
			return configErrorf("traps", "trap %d is not assigned to any material", i)
		}
		for _, id := range t.Materials {
			if _, ok := r.Lookup(id); !ok {
				return configErrorf("traps", "trap %d references unknown material %d", i, id)
			}
		}
	}

	if c.Temperature == nil {
		return configErrorf("temperature", "no temperature is specified")
	}
	for _, m := range c.Materials {
		if T := c.Temperature.At((m.Start+m.End)/2, 0); !(T > 0) {
			return configErrorf("temperature", "%g K in %v but should be >0", T, m)
		}
	}

	if err = c.checkBoundaries(); err != nil {
		return err
	}
	return c.checkSolver()
}

func (c *ModelConfig) checkBoundaries() error {
	if c.LeftSurface == c.RightSurface {
		return configErrorf("surfaces", "left and right surfaces share the identifier %d", c.LeftSurface)
	}
	count := map[int]int{c.LeftSurface: 0, c.RightSurface: 0}
	for _, bc := range c.Boundaries {
		n, ok := count[bc.Surface]
		if !ok {
			return configErrorf("boundary conditions", "surface %d does not exist; surfaces are %d (left) and %d (right)",
				bc.Surface, c.LeftSurface, c.RightSurface)
		}
		if n > 0 {
			return configErrorf("boundary conditions", "surface %d has more than one condition", bc.Surface)
		}
		if err := bc.check(); err != nil {
			return err
		}
		count[bc.Surface]++
	}
	for _, s := range []int{c.LeftSurface, c.RightSurface} {
		if count[s] == 0 {
			return configErrorf("boundary conditions", "surface %d has no condition", s)
		}
	}
	return nil
}

func (c *ModelConfig) checkSolver() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"AbsoluteTolerance", c.AbsoluteTolerance},
		{"RelativeTolerance", c.RelativeTolerance},
		{"FinalTime", c.FinalTime},
		{"InitialStepSize", c.InitialStepSize},
	}
	for _, p := range positive {
		if !(p.v > 0) || math.IsInf(p.v, 0) {
			return configErrorf("solver settings", "%s=%g but should be >0", p.name, p.v)
		}
	}
	if !(c.StepSizeChangeRatio >= 1) {
		return configErrorf("solver settings", "StepSizeChangeRatio=%g but should be ≥1", c.StepSizeChangeRatio)
	}
	if !(c.MinStepSize >= 0) || c.MinStepSize > c.InitialStepSize {
		return configErrorf("solver settings", "MinStepSize=%g but should be between 0 and InitialStepSize (%g)",
			c.MinStepSize, c.InitialStepSize)
	}
	if c.MaxStepSize != 0 && c.MaxStepSize < c.MinStepSize {
		return configErrorf("solver settings", "MaxStepSize=%g is less than MinStepSize=%g", c.MaxStepSize, c.MinStepSize)
	}
	if c.MaxIterations < 1 {
		return configErrorf("solver settings", "MaxIterations=%d but should be ≥1", c.MaxIterations)
	}
	if c.MaxSteps < 1 {
		return configErrorf("solver settings", "MaxSteps=%d but should be ≥1", c.MaxSteps)
	}
	if c.MaxStepReductions < 0 {
		return configErrorf("solver settings", "MaxStepReductions=%d but should be ≥0", c.MaxStepReductions)
	}
	if c.SteadyStateTolerance < 0 {
		return configErrorf("solver settings", "SteadyStateTolerance=%g but should be ≥0", c.SteadyStateTolerance)
	}
	if !sort.Float64sAreSorted(c.SnapshotTimes) {
		return configErrorf("snapshot times", "times must be in increasing order")
	}
	if c.FinalTime < c.MinStepSize {
		return configErrorf("solver settings", "FinalTime=%g is less than MinStepSize=%g", c.FinalTime, c.MinStepSize)
	}
	// Steps are shortened to land on each snapshot time, so no step
	// between consecutive stopping points may be shorter than MinStepSize.
	prev := 0.
	for _, t := range c.SnapshotTimes {
		if t < 0 || t > c.FinalTime {
			return configErrorf("snapshot times", "%g s is outside [0, FinalTime=%g]", t, c.FinalTime)
		}
		if t != prev && t-prev < c.MinStepSize {
			return configErrorf("snapshot times", "%g s is %g s after the previous stop at %g s; "+
				"the gap must be 0 or at least MinStepSize=%g", t, t-prev, prev, c.MinStepSize)
		}
		prev = t
	}
	if gap := c.FinalTime - prev; gap != 0 && gap < c.MinStepSize {
		return configErrorf("snapshot times", "last snapshot at %g s is %g s before FinalTime=%g; "+
			"the gap must be 0 or at least MinStepSize=%g", prev, gap, c.FinalTime, c.MinStepSize)
	}
	return nil
}

// Bounds returns the start and end of the domain [m].
func (c *ModelConfig) Bounds() (start, end float64) {
	return c.Mesh[0], c.Mesh[len(c.Mesh)-1]
}

// Material returns the material with the given ID.
func (c *ModelConfig) Material(id int) (Material, bool) {
	for _, m := range c.Materials {
		if m.ID == id {
			return m, true
		}
	}
	return Material{}, false
}

// Boundary returns the condition on the given surface.
func (c *ModelConfig) Boundary(surface int) (BoundaryCondition, bool) {
	for _, bc := range c.Boundaries {
		if bc.Surface == surface {
			return bc, true
		}
	}
	return BoundaryCondition{}, false
}

// DiffusionTimeConstant returns the largest L²/D over the materials,
// with D evaluated at the initial temperature in the middle of each
// material. A run is at steady state only if FinalTime is several times
// larger than this.
func (c *ModelConfig) DiffusionTimeConstant() float64 {
	var tau float64
	for _, m := range c.Materials {
		L := m.Thickness()
		D := m.Diffusivity(c.Temperature.At((m.Start+m.End)/2, 0))
		tau = math.Max(tau, L*L/D)
	}
	return tau
}

// WithMaterials sets the materials.
func WithMaterials(ms ...Material) Option {
	return func(c *ModelConfig) error {
		c.Materials = append([]Material(nil), ms...)
		return nil
	}
}

// WithRegistry sets the materials to those held by r.
func WithRegistry(r *Registry) Option {
	return func(c *ModelConfig) error {
		c.Materials = r.Sorted()
		return nil
	}
}

// WithMesh sets the mesh nodes. A non-decreasing sequence is accepted;
// repeated nodes are collapsed.
func WithMesh(nodes []float64) Option {
	return func(c *ModelConfig) error {
		c.Mesh = append([]float64(nil), nodes...)
		return nil
	}
}

// WithTemperature sets the temperature field.
func WithTemperature(T Temperature) Option {
	return func(c *ModelConfig) error {
		c.Temperature = T
		return nil
	}
}

// WithBoundaryConditions sets the boundary conditions.
func WithBoundaryConditions(bcs ...BoundaryCondition) Option {
	return func(c *ModelConfig) error {
		c.Boundaries = append([]BoundaryCondition(nil), bcs...)
		return nil
	}
}

// WithSurfaceIDs sets the identifiers of the left and right surfaces.
func WithSurfaceIDs(left, right int) Option {
	return func(c *ModelConfig) error {
		c.LeftSurface, c.RightSurface = left, right
		return nil
	}
}

// WithTolerances sets the absolute and relative Newton tolerances.
func WithTolerances(abs, rel float64) Option {
	return func(c *ModelConfig) error {
		c.AbsoluteTolerance, c.RelativeTolerance = abs, rel
		return nil
	}
}

// WithMaxIterations sets the number of Newton iterations allowed per step.
func WithMaxIterations(n int) Option {
	return func(c *ModelConfig) error {
		c.MaxIterations = n
		return nil
	}
}

// WithFinalTime sets the simulated time [s].
func WithFinalTime(t float64) Option {
	return func(c *ModelConfig) error {
		c.FinalTime = t
		return nil
	}
}

// WithStepSize sets the initial step [s] and the step change ratio.
func WithStepSize(initial, changeRatio float64) Option {
	return func(c *ModelConfig) error {
		c.InitialStepSize, c.StepSizeChangeRatio = initial, changeRatio
		return nil
	}
}

// WithStepBounds sets the minimum and maximum step sizes [s]. A
// maximum of zero leaves the step bounded only by the time remaining.
func WithStepBounds(min, max float64) Option {
	return func(c *ModelConfig) error {
		c.MinStepSize, c.MaxStepSize = min, max
		return nil
	}
}

// WithMaxSteps sets the step budget.
func WithMaxSteps(n int) Option {
	return func(c *ModelConfig) error {
		c.MaxSteps = n
		return nil
	}
}

// WithMaxStepReductions sets how many times one step may be retried
// with a smaller size.
func WithMaxStepReductions(n int) Option {
	return func(c *ModelConfig) error {
		c.MaxStepReductions = n
		return nil
	}
}

// WithChemicalPotential sets whether the chemical potential is
// continuous at material interfaces.
func WithChemicalPotential(on bool) Option {
	return func(c *ModelConfig) error {
		c.ChemicalPotential = on
		return nil
	}
}

// WithTraps sets the trapping sites.
func WithTraps(traps ...Trap) Option {
	return func(c *ModelConfig) error {
		c.Traps = make([]Trap, len(traps))
		for i, t := range traps {
			c.Traps[i] = t.clone()
		}
		return nil
	}
}

// WithSievertsSolubility rebinds the solubility parameters of the
// Sieverts condition on surface. It fails if that surface has no
// Sieverts condition.
func WithSievertsSolubility(surface int, s0, es float64) Option {
	return func(c *ModelConfig) error {
		for i, bc := range c.Boundaries {
			if bc.Surface == surface && bc.Kind == SievertsBC {
				c.Boundaries[i].S0, c.Boundaries[i].ES = s0, es
				return nil
			}
		}
		return configErrorf("boundary conditions", "surface %d has no Sieverts condition", surface)
	}
}

// WithSteadyStateTolerance enables ending the run once the relative
// change in total retention between checks falls below tol.
func WithSteadyStateTolerance(tol float64) Option {
	return func(c *ModelConfig) error {
		c.SteadyStateTolerance = tol
		return nil
	}
}

// WithSnapshotTimes sets the times at which the concentration field is
// recorded.
func WithSnapshotTimes(times ...float64) Option {
	return func(c *ModelConfig) error {
		c.SnapshotTimes = append([]float64(nil), times...)
		return nil
	}
}
