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
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
)

const (
	testT        = 600.  // K
	testPressure = 100.  // Pa
	barrierThick = 1e-6  // m
	substrThick  = 3e-3  // m
	testTol      = 1e-10 // relative tolerance for exact comparisons
)

// Tungsten and a coating material.
var (
	tungsten = Material{ID: 2, Name: "tungsten", D0: 4.1e-7, ED: 0.39, S0: 1.87e24, ES: 1.04}
	coating  = Material{ID: 1, Name: "coating", D0: 1e-8, ED: 0.39, S0: 1e22, ES: 1.04}

	tungstenTrap = Trap{K0: 9e-17, EK: 0.39, P0: 1e13, EP: 0.87, Density: 6.3e25, Materials: []int{2}}
)

// coatedMaterials returns tungsten coated on both sides.
func coatedMaterials() []Material {
	left, sub, right := coating, tungsten, coating
	left.Start, left.End = 0, barrierThick
	sub.Start, sub.End = barrierThick, barrierThick+substrThick
	right.ID = 3
	right.Start, right.End = sub.End, sub.End+barrierThick
	return []Material{left, sub, right}
}

// coatedConfig returns a configuration of coated tungsten exposed to
// hydrogen on the left and held at zero concentration on the right.
func coatedConfig(t *testing.T, opts ...Option) *ModelConfig {
	t.Helper()
	ms := coatedMaterials()
	mesh, err := LayeredMesh(ms, []int{10, 60, 10})
	if err != nil {
		t.Fatal(err)
	}
	base := []Option{
		WithMaterials(ms...),
		WithMesh(mesh),
		WithTemperature(ConstantTemperature(testT)),
		WithBoundaryConditions(
			NewSievertsBC(SurfaceLeft, coating.S0, coating.ES, testPressure),
			NewDirichletBC(SurfaceRight, 0),
		),
		WithFinalTime(1e6),
		WithStepSize(1, 1.1),
	}
	c, err := NewModelConfig(append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// bareConfig returns a configuration of uncoated tungsten.
func bareConfig(t *testing.T, opts ...Option) *ModelConfig {
	t.Helper()
	sub := tungsten
	sub.Start, sub.End = 0, substrThick
	mesh, err := LayeredMesh([]Material{sub}, []int{60})
	if err != nil {
		t.Fatal(err)
	}
	base := []Option{
		WithMaterials(sub),
		WithMesh(mesh),
		WithTemperature(ConstantTemperature(testT)),
		WithBoundaryConditions(
			NewSievertsBC(SurfaceLeft, tungsten.S0, tungsten.ES, testPressure),
			NewDirichletBC(SurfaceRight, 0),
		),
		WithFinalTime(1e6),
		WithStepSize(1, 1.1),
		WithChemicalPotential(false),
	}
	c, err := NewModelConfig(append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}
