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
	"errors"
	"reflect"
	"testing"
)

func TestNoBarrierVariant(t *testing.T) {
	with := coatedConfig(t, WithTraps(tungstenTrap, Trap{K0: 1, P0: 1, Density: 1, Materials: []int{1, 3}}))
	before := with.clone()

	no, err := NoBarrierVariant(with, tungsten.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(with, before) {
		t.Error("source configuration modified")
	}
	if len(no.Materials) != 1 || no.Materials[0].ID != tungsten.ID || no.Materials[0].Start != 0 {
		t.Fatalf("materials = %v", no.Materials)
	}
	if different(no.Materials[0].End, substrThick, testTol) {
		t.Errorf("substrate thickness = %g", no.Materials[0].End)
	}
	if len(no.Mesh) != 61 || no.Mesh[0] != 0 || no.Mesh[60] != no.Materials[0].End {
		t.Errorf("mesh has %d nodes from %g to %g", len(no.Mesh), no.Mesh[0], no.Mesh[len(no.Mesh)-1])
	}
	if no.ChemicalPotential {
		t.Error("chemical potential should be off")
	}
	if len(no.Traps) != 1 || !reflect.DeepEqual(no.Traps[0].Materials, []int{tungsten.ID}) {
		t.Errorf("traps = %+v", no.Traps)
	}
	bc, _ := no.Boundary(SurfaceLeft)
	if bc.S0 != tungsten.S0 || bc.ES != tungsten.ES || bc.Pressure != testPressure {
		t.Errorf("upstream condition = %+v", bc)
	}
	if no.FinalTime != with.FinalTime || no.InitialStepSize != with.InitialStepSize {
		t.Error("solver settings should be inherited")
	}

	no, err = NoBarrierVariant(with, tungsten.ID, 25)
	if err != nil {
		t.Fatal(err)
	}
	if len(no.Mesh) != 26 {
		t.Errorf("%d nodes; want 26", len(no.Mesh))
	}

	if _, err := NoBarrierVariant(with, 99, 0); err == nil {
		t.Error("unknown substrate should fail")
	}
}

// fakeRunner returns a constant downstream flux for each call.
type fakeRunner struct {
	fluxes []float64
	err    error
	calls  int
}

func (f *fakeRunner) Run(ctx context.Context, cfg *ModelConfig, reqs []DerivedQuantityRequest) ([]*DerivedQuantitySeries, error) {
	defer func() { f.calls++ }()
	if f.err != nil {
		return nil, f.err
	}
	o := make([]*DerivedQuantitySeries, len(reqs))
	for i, r := range reqs {
		o[i] = seriesOf(r, 0, f.fluxes[f.calls])
	}
	return o, nil
}

func TestComparisonFake(t *testing.T) {
	with := coatedConfig(t)
	no, err := NoBarrierVariant(with, tungsten.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	sub := Layer{Material: tungsten, Thickness: substrThick}
	bar := Layer{Material: coating, Thickness: barrierThick}

	r := &fakeRunner{fluxes: []float64{1e8, 6e8}}
	c := &Comparison{Runner: r, Log: quietLogger()}
	res, err := c.Run(context.Background(), with, no, sub, bar)
	if err != nil {
		t.Fatal(err)
	}
	if res.PRF.Computed != 6 || r.calls != 2 {
		t.Errorf("PRF = %g after %d runs", res.PRF.Computed, r.calls)
	}

	failure := errors.New("solver exploded")
	r = &fakeRunner{err: failure}
	c.Runner = r
	if _, err := c.Run(context.Background(), with, no, sub, bar); !errors.Is(err, failure) {
		t.Errorf("want wrapped failure, have %v", err)
	}
	if r.calls != 1 {
		t.Errorf("%d runs after a failure; want 1", r.calls)
	}

	r = &fakeRunner{fluxes: []float64{0, 6e8}}
	c.Runner = r
	if _, err := c.Run(context.Background(), with, no, sub, bar); !errors.Is(err, ErrDivideByZero) {
		t.Errorf("want ErrDivideByZero, have %v", err)
	}
}

func TestComparisonPRF(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{name: "no traps"},
		{name: "traps", opts: []Option{WithTraps(tungstenTrap), WithFinalTime(2e7)}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			with := coatedConfig(t, test.opts...)
			no, err := NoBarrierVariant(with, tungsten.ID, 0)
			if err != nil {
				t.Fatal(err)
			}
			c := &Comparison{
				Runner: &FiniteVolumeRunner{Log: quietLogger()},
				Log:    quietLogger(),
			}
			res, err := c.Run(context.Background(), with, no,
				Layer{Material: tungsten, Thickness: substrThick},
				Layer{Material: coating, Thickness: barrierThick})
			if err != nil {
				t.Fatal(err)
			}
			if res.PRF.RelativeError > 0.01 {
				t.Errorf("%v", res.PRF)
			}
			if different(res.PRF.Theoretical, 6.1113, 1e-4) {
				t.Errorf("theoretical PRF = %g", res.PRF.Theoretical)
			}
			if !res.WithBarrier.Frozen() || !res.NoBarrier.Frozen() {
				t.Error("series should be frozen")
			}
		})
	}
}
