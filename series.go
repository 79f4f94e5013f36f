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

	"github.com/ctessum/unit"
)

// Field is a concentration field a derived quantity is computed from.
type Field int

const (
	// Solute is the mobile hydrogen concentration.
	Solute Field = iota
	// Trapped is the sum of all trapped concentrations.
	Trapped
	// Retention is the sum of the mobile and trapped concentrations.
	Retention
)

func (f Field) String() string {
	switch f {
	case Solute:
		return "solute"
	case Trapped:
		return "trapped"
	case Retention:
		return "retention"
	default:
		return fmt.Sprintf("Field(%d)", int(f))
	}
}

// QuantityKind is the type of a derived quantity.
type QuantityKind int

const (
	// SurfaceFluxKind is the flux −D∇c·n through a surface, positive
	// when hydrogen leaves the domain.
	SurfaceFluxKind QuantityKind = iota
	// TotalVolumeKind is the integral of a field over one material.
	TotalVolumeKind
	// AverageVolumeKind is the mean of a field over one material.
	AverageVolumeKind
)

// DerivedQuantityRequest asks a Runner to record a scalar quantity
// at every accepted step.
type DerivedQuantityRequest struct {
	Kind  QuantityKind
	Field Field

	Surface int // surface ID for SurfaceFluxKind
	Volume  int // material ID for TotalVolumeKind and AverageVolumeKind
}

// SurfaceFlux requests the outward flux of field through surface.
// Only Solute has a flux.
func SurfaceFlux(field Field, surface int) DerivedQuantityRequest {
	return DerivedQuantityRequest{Kind: SurfaceFluxKind, Field: field, Surface: surface}
}

// TotalVolume requests the integral of field over material volume.
func TotalVolume(field Field, volume int) DerivedQuantityRequest {
	return DerivedQuantityRequest{Kind: TotalVolumeKind, Field: field, Volume: volume}
}

// AverageVolume requests the mean of field over material volume.
func AverageVolume(field Field, volume int) DerivedQuantityRequest {
	return DerivedQuantityRequest{Kind: AverageVolumeKind, Field: field, Volume: volume}
}

// Name returns an identifier for the quantity that is also a valid
// NetCDF variable name.
func (r DerivedQuantityRequest) Name() string {
	switch r.Kind {
	case SurfaceFluxKind:
		return fmt.Sprintf("%s_flux_surface_%d", r.Field, r.Surface)
	case TotalVolumeKind:
		return fmt.Sprintf("total_%s_volume_%d", r.Field, r.Volume)
	case AverageVolumeKind:
		return fmt.Sprintf("average_%s_volume_%d", r.Field, r.Volume)
	default:
		return fmt.Sprintf("quantity_%d_%s", int(r.Kind), r.Field)
	}
}

// Dimensions returns the units of the quantity. Concentrations are
// per cubic meter; integrals over the one-dimensional domain are per
// square meter.
func (r DerivedQuantityRequest) Dimensions() unit.Dimensions {
	switch r.Kind {
	case SurfaceFluxKind:
		return unit.Dimensions{unit.LengthDim: -2, unit.TimeDim: -1}
	case TotalVolumeKind:
		return unit.Dimensions{unit.LengthDim: -2}
	default:
		return unit.Dimensions{unit.LengthDim: -3}
	}
}

// check checks the request against the configuration it will be
// computed for.
func (r DerivedQuantityRequest) check(c *ModelConfig) error {
	switch r.Field {
	case Solute, Trapped, Retention:
	default:
		return configErrorf("derived quantities", "%s: unknown field", r.Name())
	}
	switch r.Kind {
	case SurfaceFluxKind:
		if r.Field != Solute {
			return configErrorf("derived quantities", "%s: only the solute field has a surface flux", r.Name())
		}
		if r.Surface != c.LeftSurface && r.Surface != c.RightSurface {
			return configErrorf("derived quantities", "%s: surface %d does not exist", r.Name(), r.Surface)
		}
	case TotalVolumeKind, AverageVolumeKind:
		if _, ok := c.Material(r.Volume); !ok {
			return configErrorf("derived quantities", "%s: material %d does not exist", r.Name(), r.Volume)
		}
	default:
		return configErrorf("derived quantities", "unknown quantity kind %d", int(r.Kind))
	}
	return nil
}

// DerivedQuantitySeries holds the time history of one derived
// quantity. Samples may be appended until the series is frozen at the
// end of the run that owns it.
type DerivedQuantitySeries struct {
	Request DerivedQuantityRequest

	times, values []float64
	frozen        bool
}

// NewSeries returns an empty series for req.
func NewSeries(req DerivedQuantityRequest) *DerivedQuantitySeries {
	return &DerivedQuantitySeries{Request: req}
}

// Name returns the name of the quantity.
func (s *DerivedQuantitySeries) Name() string { return s.Request.Name() }

// Units returns the dimensions of the values.
func (s *DerivedQuantitySeries) Units() unit.Dimensions { return s.Request.Dimensions() }

// Append adds the sample (t, v). Samples must be appended in time order.
func (s *DerivedQuantitySeries) Append(t, v float64) error {
	if s.frozen {
		return ErrSeriesFrozen
	}
	if n := len(s.times); n > 0 && t < s.times[n-1] {
		return fmt.Errorf("permeation: %s: sample at t=%g s precedes t=%g s", s.Name(), t, s.times[n-1])
	}
	s.times = append(s.times, t)
	s.values = append(s.values, v)
	return nil
}

// Freeze prevents further samples from being appended.
func (s *DerivedQuantitySeries) Freeze() { s.frozen = true }

// Frozen returns whether the series has been frozen.
func (s *DerivedQuantitySeries) Frozen() bool { return s.frozen }

// Len returns the number of samples.
func (s *DerivedQuantitySeries) Len() int { return len(s.times) }

// Times returns a copy of the sample times [s].
func (s *DerivedQuantitySeries) Times() []float64 { return append([]float64(nil), s.times...) }

// Values returns a copy of the sample values.
func (s *DerivedQuantitySeries) Values() []float64 { return append([]float64(nil), s.values...) }

// Last returns the final sample.
func (s *DerivedQuantitySeries) Last() (t, v float64, err error) {
	n := len(s.times)
	if n == 0 {
		return 0, 0, ErrEmptySeries
	}
	return s.times[n-1], s.values[n-1], nil
}

func (s *DerivedQuantitySeries) String() string {
	return fmt.Sprintf("%s [%v] (%d samples)", s.Name(), s.Units(), s.Len())
}
