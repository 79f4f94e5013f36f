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
	"math"
	"strings"
	"testing"
)

func runBare(t *testing.T, reqs []DerivedQuantityRequest, opts ...Option) []*DerivedQuantitySeries {
	t.Helper()
	r := &FiniteVolumeRunner{Log: quietLogger()}
	series, err := r.Run(context.Background(), bareConfig(t, opts...), reqs)
	if err != nil {
		t.Fatal(err)
	}
	return series
}

func last(t *testing.T, s *DerivedQuantitySeries) float64 {
	t.Helper()
	v, err := SteadyStateValue(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestBareSteadyState(t *testing.T) {
	series := runBare(t, []DerivedQuantityRequest{
		SurfaceFlux(Solute, SurfaceRight),
		SurfaceFlux(Solute, SurfaceLeft),
		TotalVolume(Retention, tungsten.ID),
		AverageVolume(Solute, tungsten.ID),
	})
	if len(series) != 4 {
		t.Fatalf("%d series", len(series))
	}
	cs := tungsten.Solubility(testT) * math.Sqrt(testPressure)
	wantFlux := tungsten.Diffusivity(testT) * cs / substrThick
	if v := last(t, series[0]); different(v, wantFlux, 1e-6) {
		t.Errorf("downstream flux = %g; want %g", v, wantFlux)
	}
	if v := last(t, series[1]); different(-v, wantFlux, 1e-6) {
		t.Errorf("upstream flux = %g; want %g", v, -wantFlux)
	}
	// The steady profile is linear.
	if v := last(t, series[2]); different(v, cs*substrThick/2, 1e-6) {
		t.Errorf("retention = %g; want %g", v, cs*substrThick/2)
	}
	if v := last(t, series[3]); different(v, cs/2, 1e-6) {
		t.Errorf("average = %g; want %g", v, cs/2)
	}

	for _, s := range series {
		if !s.Frozen() {
			t.Errorf("%s is not frozen", s.Name())
		}
		if s.Len() != series[0].Len() {
			t.Errorf("%s has %d samples; want %d", s.Name(), s.Len(), series[0].Len())
		}
	}
	times := series[0].Times()
	if times[len(times)-1] != 1e6 {
		t.Errorf("last time = %g", times[len(times)-1])
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			t.Fatalf("times not increasing at %d: %g, %g", i, times[i-1], times[i])
		}
	}
}

func TestFluxBoundary(t *testing.T) {
	const flux = 1e10
	series := runBare(t, []DerivedQuantityRequest{SurfaceFlux(Solute, SurfaceRight)},
		WithBoundaryConditions(NewFluxBC(SurfaceLeft, flux), NewDirichletBC(SurfaceRight, 0)))
	if v := last(t, series[0]); different(v, flux, 1e-6) {
		t.Errorf("downstream flux = %g; want %g", v, flux)
	}
}

func TestTemperatureGradient(t *testing.T) {
	T, err := NewExpressionTemperature("600 + 10000*x")
	if err != nil {
		t.Fatal(err)
	}
	series := runBare(t, []DerivedQuantityRequest{
		SurfaceFlux(Solute, SurfaceRight),
		SurfaceFlux(Solute, SurfaceLeft),
	}, WithTemperature(T), WithChemicalPotential(true))
	in, out := -last(t, series[1]), last(t, series[0])
	if !(out > 0) || different(in, out, 1e-6) {
		t.Errorf("flux in = %g, out = %g; want equal and positive", in, out)
	}

	// A constant expression matches a constant temperature.
	T, err = NewExpressionTemperature("600")
	if err != nil {
		t.Fatal(err)
	}
	a := runBare(t, []DerivedQuantityRequest{SurfaceFlux(Solute, SurfaceRight)}, WithTemperature(T))
	b := runBare(t, []DerivedQuantityRequest{SurfaceFlux(Solute, SurfaceRight)})
	if different(last(t, a[0]), last(t, b[0]), testTol) {
		t.Errorf("%g != %g", last(t, a[0]), last(t, b[0]))
	}
}

func TestStepSizeBounds(t *testing.T) {
	const (
		maxStep = 20.
		ratio   = 1.5
	)
	series := runBare(t, []DerivedQuantityRequest{SurfaceFlux(Solute, SurfaceRight)},
		WithFinalTime(1000), WithStepSize(1, ratio), WithStepBounds(1e-3, maxStep))
	times := series[0].Times()
	if times[0] != 1 {
		t.Errorf("first step = %g; want 1", times[0])
	}
	prev := times[0]
	for i := 1; i < len(times); i++ {
		dt := times[i] - times[i-1]
		if dt > maxStep*(1+1e-12) {
			t.Errorf("step %d: Δt = %g > %g", i, dt, maxStep)
		}
		if dt > prev*ratio*(1+1e-12) {
			t.Errorf("step %d: Δt grew from %g to %g", i, prev, dt)
		}
		prev = dt
	}
	if times[len(times)-1] != 1000 {
		t.Errorf("last time = %g", times[len(times)-1])
	}
}

func TestStepReduction(t *testing.T) {
	r := &FiniteVolumeRunner{Log: quietLogger()}
	cfg := bareConfig(t, WithMaxIterations(1), WithMaxStepReductions(3))
	_, err := r.Run(context.Background(), cfg, []DerivedQuantityRequest{SurfaceFlux(Solute, SurfaceRight)})
	var ce *ConvergenceError
	if !errors.As(err, &ce) {
		t.Fatalf("want ConvergenceError, have %v", err)
	}
	if !errors.Is(err, errNewton) {
		t.Errorf("want wrapped Newton failure, have %v", err)
	}
	if ce.Step != 0 || different(ce.StepSize, 1/(1.1*1.1*1.1), 1e-12) {
		t.Errorf("error = %+v", ce)
	}
}

func TestMinimumStep(t *testing.T) {
	r := &FiniteVolumeRunner{Log: quietLogger()}
	cfg := bareConfig(t, WithMaxIterations(1), WithStepSize(1, 2), WithStepBounds(0.3, 0))
	_, err := r.Run(context.Background(), cfg, []DerivedQuantityRequest{SurfaceFlux(Solute, SurfaceRight)})
	var ce *ConvergenceError
	if !errors.As(err, &ce) {
		t.Fatalf("want ConvergenceError, have %v", err)
	}
	if ce.StepSize != 0.25 || !strings.Contains(ce.Reason, "minimum") {
		t.Errorf("error = %+v", ce)
	}
}

func TestMaxSteps(t *testing.T) {
	r := &FiniteVolumeRunner{Log: quietLogger()}
	_, err := r.Run(context.Background(), bareConfig(t, WithMaxSteps(5)),
		[]DerivedQuantityRequest{SurfaceFlux(Solute, SurfaceRight)})
	var ce *ConvergenceError
	if !errors.As(err, &ce) {
		t.Fatalf("want ConvergenceError, have %v", err)
	}
	if ce.Step != 5 {
		t.Errorf("step = %d", ce.Step)
	}
}

func TestCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &FiniteVolumeRunner{Log: quietLogger()}
	_, err := r.Run(ctx, bareConfig(t), []DerivedQuantityRequest{SurfaceFlux(Solute, SurfaceRight)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, have %v", err)
	}
}

func TestSnapshots(t *testing.T) {
	snapTimes := []float64{0, 10, 55.5, 100}
	r := &FiniteVolumeRunner{Log: quietLogger()}
	s, err := r.Simulate(context.Background(), bareConfig(t, WithFinalTime(100), WithSnapshotTimes(snapTimes...)),
		[]DerivedQuantityRequest{SurfaceFlux(Solute, SurfaceRight)})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Snapshots) != len(snapTimes) {
		t.Fatalf("%d snapshots; want %d", len(s.Snapshots), len(snapTimes))
	}
	for i, snap := range s.Snapshots {
		if snap.Time != snapTimes[i] {
			t.Errorf("snapshot %d at %g; want %g", i, snap.Time, snapTimes[i])
		}
		if len(snap.Solute) != len(s.Cells) {
			t.Errorf("snapshot %d has %d cells", i, len(snap.Solute))
		}
	}
	for _, c := range s.Snapshots[0].Solute {
		if c != 0 {
			t.Fatal("initial concentration should be zero")
		}
	}
	final := s.Snapshots[3].Solute
	if !(final[0] > final[len(final)-1]) || !(final[0] > 0) {
		t.Errorf("concentration should decrease away from the exposed surface: %v", final)
	}
	found := map[float64]bool{}
	for _, tt := range s.Series[0].Times() {
		found[tt] = true
	}
	for _, tt := range snapTimes[1:] {
		if !found[tt] {
			t.Errorf("no step ends at snapshot time %g", tt)
		}
	}
}

func TestSteadyStateEarlyStop(t *testing.T) {
	series := runBare(t, []DerivedQuantityRequest{SurfaceFlux(Solute, SurfaceRight)},
		WithFinalTime(1e9), WithSteadyStateTolerance(1e-6))
	tEnd, v, err := series[0].Last()
	if err != nil {
		t.Fatal(err)
	}
	if tEnd >= 1e9 {
		t.Errorf("run did not stop early")
	}
	wantFlux := tungsten.Diffusivity(testT) * tungsten.Solubility(testT) * math.Sqrt(testPressure) / substrThick
	if different(v, wantFlux, 1e-4) {
		t.Errorf("flux = %g; want %g", v, wantFlux)
	}
}

func TestRunnerConfigurationErrors(t *testing.T) {
	r := &FiniteVolumeRunner{Log: quietLogger()}
	ms := coatedMaterials()
	ms[0].Law = Henry
	mesh, err := LayeredMesh(ms, []int{2, 4, 2})
	if err != nil {
		t.Fatal(err)
	}
	mixed := coatedConfig(t, WithMaterials(ms...), WithMesh(mesh))
	coolingT, err := NewExpressionTemperature("600 - 1000*t")
	if err != nil {
		t.Fatal(err)
	}
	cooling := bareConfig(t, WithTemperature(coolingT), WithFinalTime(10))

	for name, test := range map[string]struct {
		cfg  *ModelConfig
		reqs []DerivedQuantityRequest
	}{
		"trapped flux":       {bareConfig(t), []DerivedQuantityRequest{SurfaceFlux(Trapped, SurfaceRight)}},
		"unknown volume":     {bareConfig(t), []DerivedQuantityRequest{TotalVolume(Solute, 42)}},
		"mixed laws":         {mixed, []DerivedQuantityRequest{SurfaceFlux(Solute, SurfaceRight)}},
		"cooling below zero": {cooling, []DerivedQuantityRequest{SurfaceFlux(Solute, SurfaceRight)}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Run(context.Background(), test.cfg, test.reqs)
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Errorf("want ConfigurationError, have %v", err)
			}
		})
	}
}
