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
	"sync"

	"github.com/sirupsen/logrus"
)

// Version gives the version number.
const Version = "0.1.0"

// Simulation holds the state of one run of the finite-volume model.
type Simulation struct {
	Config *ModelConfig

	// Cells holds one cell per pair of adjacent mesh nodes, ordered
	// from the left surface to the right surface.
	Cells []*Cell

	Time float64 // time at the end of the last accepted step [s]
	Dt   float64 // size of the next step [s]
	Step int     // number of accepted steps

	// Iterations is the number of Newton iterations the last accepted
	// step took.
	Iterations int

	// Done is set by a RunFunc to end the run.
	Done bool

	// Series holds the derived quantities recorded at each step.
	Series []*DerivedQuantitySeries

	// Snapshots holds the concentration fields recorded at
	// Config.SnapshotTimes.
	Snapshots []*Snapshot

	// InitFuncs are run once, in order, by Init.
	InitFuncs []DomainManipulator
	// RunFuncs are run, in order, once per step until Done is set.
	RunFuncs []DomainManipulator
	// CleanupFuncs are run once, in order, by Cleanup.
	CleanupFuncs []DomainManipulator

	Log logrus.FieldLogger

	// nominalDt is the step size before it is shortened to land on
	// the final time or a snapshot time; stepEnd is the time such a
	// shortened step must land on exactly.
	nominalDt float64
	stepEnd   float64
	clamped   bool
}

// DomainManipulator is a function that operates on the whole
// simulation.
type DomainManipulator func(s *Simulation) error

// CellManipulator is a function that operates on a single cell. t is
// the time at the end of the step being computed and Δt is its size.
type CellManipulator func(c *Cell, t, Δt float64)

// Init runs the InitFuncs.
func (s *Simulation) Init() error {
	if s.Log == nil {
		s.Log = logrus.StandardLogger()
	}
	for _, f := range s.InitFuncs {
		if err := f(s); err != nil {
			return err
		}
	}
	return nil
}

// Run runs the RunFuncs until Done is set, an error occurs or ctx is
// cancelled.
func (s *Simulation) Run(ctx context.Context) error {
	for !s.Done {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		for _, f := range s.RunFuncs {
			if err := f(s); err != nil {
				return err
			}
			if s.Done {
				break
			}
		}
	}
	return nil
}

// Cleanup runs the CleanupFuncs.
func (s *Simulation) Cleanup() error {
	for _, f := range s.CleanupFuncs {
		if err := f(s); err != nil {
			return err
		}
	}
	return nil
}

// Cell holds the state of a single finite volume.
type Cell struct {
	Index int

	XLeft, XRight float64 // node positions [m]
	X             float64 // center [m]
	Dx            float64 // width [m]

	Material Material

	Left, Right *Cell // neighbors; nil at the surfaces

	Temperature float64 `desc:"Temperature" units:"K"`
	D           float64 `desc:"Diffusivity" units:"m²/s"`
	S           float64 `desc:"Solubility" units:"m⁻³ Pa⁻⁰·⁵"`

	Ci float64 // mobile concentration at the beginning of the step [m⁻³]
	Cf float64 // mobile concentration at the end of the step [m⁻³]

	Traps []*CellTrap // traps active in this cell's material

	sync.Mutex
}

// CellTrap is the state of one trap population in one cell.
type CellTrap struct {
	Trap

	K float64 `desc:"Trapping rate" units:"m³/s"`
	P float64 `desc:"Detrapping rate" units:"1/s"`

	Ti float64 // trapped concentration at the beginning of the step [m⁻³]
	Tf float64 // trapped concentration at the end of the step [m⁻³]
}

// TrappedInitial returns the total trapped concentration at the
// beginning of the step.
func (c *Cell) TrappedInitial() float64 {
	var v float64
	for _, t := range c.Traps {
		v += t.Ti
	}
	return v
}

// Trapped returns the total trapped concentration at the end of the
// step.
func (c *Cell) Trapped() float64 {
	var v float64
	for _, t := range c.Traps {
		v += t.Tf
	}
	return v
}

// Value returns the value of field in the cell at the end of the step.
func (c *Cell) Value(f Field) float64 {
	switch f {
	case Solute:
		return c.Cf
	case Trapped:
		return c.Trapped()
	default:
		return c.Cf + c.Trapped()
	}
}

// accept makes the end-of-step state the beginning-of-step state of the
// next step.
func (c *Cell) accept() {
	c.Ci = c.Cf
	for _, t := range c.Traps {
		t.Ti = t.Tf
	}
}

// reject restores the beginning-of-step state.
func (c *Cell) reject() {
	c.Cf = c.Ci
	for _, t := range c.Traps {
		t.Tf = t.Ti
	}
}

// Grid returns a function that creates one cell per mesh interval,
// all with zero concentration.
func Grid() DomainManipulator {
	return func(s *Simulation) error {
		cfg := s.Config
		n := len(cfg.Mesh) - 1
		s.Cells = make([]*Cell, n)
		mi := 0
		for i := 0; i < n; i++ {
			x0, x1 := cfg.Mesh[i], cfg.Mesh[i+1]
			for x0 >= cfg.Materials[mi].End {
				mi++
			}
			c := &Cell{
				Index:    i,
				XLeft:    x0,
				XRight:   x1,
				X:        (x0 + x1) / 2,
				Dx:       x1 - x0,
				Material: cfg.Materials[mi],
			}
			for _, t := range cfg.Traps {
				if t.in(c.Material.ID) {
					c.Traps = append(c.Traps, &CellTrap{Trap: t.clone()})
				}
			}
			if i > 0 {
				c.Left = s.Cells[i-1]
				s.Cells[i-1].Right = c
				if cfg.ChemicalPotential && c.Left.Material.Law != c.Material.Law {
					return configErrorf("materials", "%v uses %v solubility but its neighbor %v uses %v; "+
						"the chemical potential cannot be continuous across the interface",
						c.Material, c.Material.Law, c.Left.Material, c.Left.Material.Law)
				}
			}
			s.Cells[i] = c
		}
		return nil
	}
}
