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
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWriteSeries(t *testing.T) {
	flux := seriesOf(SurfaceFlux(Solute, SurfaceRight), 0, 1e8, 2e8)
	total := seriesOf(TotalVolume(Retention, 2), 1, 2, 3)

	f, err := os.Create(filepath.Join(t.TempDir(), "series.nc"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := WriteSeries(f, []*DerivedQuantitySeries{flux, total}); err != nil {
		t.Fatal(err)
	}

	for _, test := range []struct {
		name  string
		want  []float64
		units string
	}{
		{"time", []float64{0, 1, 2}, timeUnits.String()},
		{flux.Name(), flux.Values(), flux.Units().String()},
		{total.Name(), total.Values(), total.Units().String()},
	} {
		v, units, err := ReadVariable(f, test.name)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(v, test.want) {
			t.Errorf("%s = %v; want %v", test.name, v, test.want)
		}
		if units != test.units {
			t.Errorf("%s units = %q; want %q", test.name, units, test.units)
		}
	}
	if _, _, err := ReadVariable(f, "missing"); err == nil {
		t.Error("reading a missing variable should fail")
	}

	short := seriesOf(SurfaceFlux(Solute, SurfaceLeft), 1)
	if err := WriteSeries(f, []*DerivedQuantitySeries{flux, short}); err == nil {
		t.Error("series of different lengths should fail")
	}
}

func TestWriteSnapshots(t *testing.T) {
	snaps := []*Snapshot{
		{Time: 0, X: []float64{1, 2, 3}, Solute: []float64{0, 0, 0}, Trapped: []float64{0, 0, 0}},
		{Time: 10, X: []float64{1, 2, 3}, Solute: []float64{3, 2, 1}, Trapped: []float64{6, 4, 2}},
	}
	f, err := os.Create(filepath.Join(t.TempDir(), "snapshots.nc"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := WriteSnapshots(f, snaps); err != nil {
		t.Fatal(err)
	}
	for name, want := range map[string][]float64{
		"time":    {0, 10},
		"x":       {1, 2, 3},
		"solute":  {0, 0, 0, 3, 2, 1},
		"trapped": {0, 0, 0, 6, 4, 2},
	} {
		v, _, err := ReadVariable(f, name)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(v, want) {
			t.Errorf("%s = %v; want %v", name, v, want)
		}
	}
	if err := WriteSnapshots(f, nil); err == nil {
		t.Error("no snapshots should fail")
	}
}

func TestWriteSingleSample(t *testing.T) {
	flux := seriesOf(SurfaceFlux(Solute, SurfaceRight), 5)
	f, err := os.Create(filepath.Join(t.TempDir(), "single.nc"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := WriteSeries(f, []*DerivedQuantitySeries{flux}); err != nil {
		t.Fatal(err)
	}
	v, _, err := ReadVariable(f, flux.Name())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v, []float64{5}) {
		t.Errorf("%s = %v; want [5]", flux.Name(), v)
	}

	g, err := os.Create(filepath.Join(t.TempDir(), "single_snapshot.nc"))
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()
	snap := &Snapshot{Time: 1, X: []float64{1, 2}, Solute: []float64{7, 8}, Trapped: []float64{0, 1}}
	if err := WriteSnapshots(g, []*Snapshot{snap}); err != nil {
		t.Fatal(err)
	}
	v, _, err = ReadVariable(g, "solute")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v, []float64{7, 8}) {
		t.Errorf("solute = %v; want [7 8]", v)
	}
}
