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
	"errors"
	"fmt"
)

var (
	// ErrDivideByZero is returned when a permeation reduction factor
	// is requested but the with-barrier steady-state flux is exactly zero.
	ErrDivideByZero = errors.New("permeation: with-barrier steady-state flux is zero")

	// ErrEmptySeries is returned when a value is requested from a
	// series that has no samples.
	ErrEmptySeries = errors.New("permeation: series has no samples")

	// ErrSeriesFrozen is returned when a sample is appended to a series
	// after its run has completed.
	ErrSeriesFrozen = errors.New("permeation: series is frozen")
)

// ConfigurationError reports an invalid material partition, mesh,
// boundary condition or solver setting. All configuration errors are
// detected before a simulation starts.
type ConfigurationError struct {
	Field string // The configuration item that is invalid
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("permeation: invalid %s: %s", e.Field, e.Msg)
}

func configErrorf(field, format string, a ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Msg: fmt.Sprintf(format, a...)}
}

// ConvergenceError reports a simulation that could not be advanced to
// its final time: either the nonlinear solve failed after the allowed
// number of step-size reductions or the step budget ran out.
type ConvergenceError struct {
	Time       float64 // simulation time of the last accepted step [s]
	StepSize   float64 // step size of the failed attempt [s]
	Step       int     // number of accepted steps
	Iterations int     // Newton iterations of the failed attempt
	Reason     string

	Err error // underlying error, if any
}

func (e *ConvergenceError) Error() string {
	s := fmt.Sprintf("permeation: no convergence at t=%g s (step %d, Δt=%g s, %d iterations): %s",
		e.Time, e.Step, e.StepSize, e.Iterations, e.Reason)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ConvergenceError) Unwrap() error { return e.Err }
