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
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/unit"
)

var (
	concentrationUnits = unit.Dimensions{unit.LengthDim: -3}
	lengthUnits        = unit.Dimensions{unit.LengthDim: 1}
	timeUnits          = unit.Dimensions{unit.TimeDim: 1}
)

// WriteSnapshots writes snaps, which must all come from the same
// simulation, to f in NetCDF format. The file has dimensions time and
// x and variables time, x, solute and trapped.
func WriteSnapshots(f *os.File, snaps []*Snapshot) error {
	if len(snaps) == 0 {
		return fmt.Errorf("permeation: writing snapshots: no snapshots")
	}
	nx := len(snaps[0].X)
	times := make([]float64, len(snaps))
	solute := make([]float64, 0, len(snaps)*nx)
	trapped := make([]float64, 0, len(snaps)*nx)
	for i, s := range snaps {
		if len(s.X) != nx {
			return fmt.Errorf("permeation: writing snapshots: snapshot %d has %d cells but snapshot 0 has %d", i, len(s.X), nx)
		}
		times[i] = s.Time
		solute = append(solute, s.Solute...)
		trapped = append(trapped, s.Trapped...)
	}

	h := cdf.NewHeader([]string{"time", "x"}, []int{len(snaps), nx})
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "description", "Simulation time")
	h.AddAttribute("time", "units", timeUnits.String())
	h.AddVariable("x", []string{"x"}, []float64{0})
	h.AddAttribute("x", "description", "Cell center position")
	h.AddAttribute("x", "units", lengthUnits.String())
	for _, v := range []struct{ name, desc string }{
		{"solute", "Mobile hydrogen concentration"},
		{"trapped", "Trapped hydrogen concentration"},
	} {
		h.AddVariable(v.name, []string{"time", "x"}, []float64{0})
		h.AddAttribute(v.name, "description", v.desc)
		h.AddAttribute(v.name, "units", concentrationUnits.String())
	}
	data := map[string][]float64{
		"time":    times,
		"x":       snaps[0].X,
		"solute":  solute,
		"trapped": trapped,
	}
	return writeCDF(f, h, []string{"time", "x", "solute", "trapped"}, data)
}

// WriteSeries writes series, which must all come from the same run, to
// f in NetCDF format. The file has a dimension step, a variable time
// and one variable per series named after its quantity.
func WriteSeries(f *os.File, series []*DerivedQuantitySeries) error {
	if len(series) == 0 {
		return fmt.Errorf("permeation: writing series: no series")
	}
	times := series[0].Times()
	if len(times) == 0 {
		return fmt.Errorf("permeation: writing series: %w", ErrEmptySeries)
	}
	h := cdf.NewHeader([]string{"step"}, []int{len(times)})
	h.AddVariable("time", []string{"step"}, []float64{0})
	h.AddAttribute("time", "description", "Simulation time")
	h.AddAttribute("time", "units", timeUnits.String())
	data := map[string][]float64{"time": times}
	names := []string{"time"}
	for _, s := range series {
		if s.Len() != len(times) {
			return fmt.Errorf("permeation: writing series: %s has %d samples but %s has %d",
				s.Name(), s.Len(), series[0].Name(), len(times))
		}
		name := s.Name()
		if _, ok := data[name]; ok {
			return fmt.Errorf("permeation: writing series: duplicate series %s", name)
		}
		h.AddVariable(name, []string{"step"}, []float64{0})
		h.AddAttribute(name, "units", s.Units().String())
		data[name] = s.Values()
		names = append(names, name)
	}
	return writeCDF(f, h, names, data)
}

func writeCDF(f *os.File, h *cdf.Header, names []string, data map[string][]float64) error {
	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("permeation: creating NetCDF file: %v", err)
	}
	cf, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("permeation: creating NetCDF file: %v", err)
	}
	for _, name := range names {
		d := data[name]
		// The end corner is one element past the last value; ending
		// exactly on the last value makes a complete write report io.EOF.
		l := cf.Header.Lengths(name)
		begin, end := make([]int, len(l)), make([]int, len(l))
		for i := range l {
			end[i] = l[i] - 1
		}
		end[len(end)-1]++
		w := cf.Writer(name, begin, end)
		if _, err := w.Write(d); err != nil {
			return fmt.Errorf("permeation: writing variable %s to NetCDF file: %v", name, err)
		}
	}
	return nil
}

// ReadVariable reads the variable name from the NetCDF file r, which
// may have been written by WriteSnapshots or WriteSeries, together
// with its units attribute.
func ReadVariable(r cdf.ReaderWriterAt, name string) ([]float64, string, error) {
	f, err := cdf.Open(r)
	if err != nil {
		return nil, "", fmt.Errorf("permeation: opening NetCDF file: %v", err)
	}
	found := false
	for _, v := range f.Header.Variables() {
		if v == name {
			found = true
			break
		}
	}
	if !found {
		return nil, "", fmt.Errorf("permeation: NetCDF file has no variable %s", name)
	}
	rr := f.Reader(name, nil, nil)
	buf := rr.Zero(-1)
	if _, err = rr.Read(buf); err != nil {
		return nil, "", fmt.Errorf("permeation: reading variable %s: %v", name, err)
	}
	units, _ := f.Header.GetAttribute(name, "units").(string)
	return buf.([]float64), units, nil
}
