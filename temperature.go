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
	"strconv"
	"sync"

	"github.com/Knetic/govaluate"
)

// Temperature is a temperature field [K] that may vary with
// position x [m] and time t [s]. Implementations must be safe for
// concurrent use and must not change after construction.
type Temperature interface {
	At(x, t float64) float64
}

// ConstantTemperature is a uniform, steady temperature [K].
type ConstantTemperature float64

// At implements Temperature.
func (c ConstantTemperature) At(x, t float64) float64 { return float64(c) }

func (c ConstantTemperature) String() string { return fmt.Sprintf("%g K", float64(c)) }

// ExpressionTemperature is a temperature given by an arithmetic
// expression of the variables x and t, e.g. "600 + 1e4*x".
type ExpressionTemperature struct {
	expr *govaluate.EvaluableExpression
	src  string

	mu sync.Mutex
}

// NewExpressionTemperature parses expr. Any variable other than x and
// t is an error.
func NewExpressionTemperature(expr string) (*ExpressionTemperature, error) {
	e, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, configErrorf("temperature", "parsing %q: %v", expr, err)
	}
	for _, v := range e.Vars() {
		if v != "x" && v != "t" {
			return nil, configErrorf("temperature", "expression %q uses unknown variable %q; only x and t are allowed", expr, v)
		}
	}
	v, err := e.Evaluate(map[string]interface{}{"x": 0., "t": 0.})
	if err != nil {
		return nil, configErrorf("temperature", "evaluating %q: %v", expr, err)
	}
	if _, ok := v.(float64); !ok {
		return nil, configErrorf("temperature", "expression %q does not evaluate to a number", expr)
	}
	return &ExpressionTemperature{expr: e, src: expr}, nil
}

// At implements Temperature. It returns NaN if the expression does
// not evaluate to a number at (x, t).
func (e *ExpressionTemperature) At(x, t float64) float64 {
	e.mu.Lock()
	v, err := e.expr.Evaluate(map[string]interface{}{"x": x, "t": t})
	e.mu.Unlock()
	if err != nil {
		return math.NaN()
	}
	f, ok := v.(float64)
	if !ok {
		return math.NaN()
	}
	return f
}

func (e *ExpressionTemperature) String() string { return e.src }

// ParseTemperature returns a ConstantTemperature if s is a number and
// an ExpressionTemperature otherwise.
func ParseTemperature(s string) (Temperature, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if !(v > 0) {
			return nil, configErrorf("temperature", "%g K but should be >0", v)
		}
		return ConstantTemperature(v), nil
	}
	return NewExpressionTemperature(s)
}
