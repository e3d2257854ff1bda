/*
Copyright © 2017 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package p3

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Checker is called after each stage of each column. If it returns an
// error, the calculation stops.
type Checker func(c *Column, stage string) error

// CheckError is returned by Driver.Step when a Checker stops the
// calculation.
type CheckError struct {
	Column int
	Stage  string
	Err    error
}

func (e *CheckError) Error() string { return e.Err.Error() }

// Physical bounds used by BoundsChecker.
const (
	MinTemperature = 173. // K
	MaxTemperature = 323. // K
	MinVapor       = 0.   // kg/kg
	MaxVapor       = 0.05 // kg/kg
)

// BoundsChecker returns a Checker that looks for temperatures and vapor
// mixing ratios outside of physically plausible bounds and for values
// that are not finite in the prognostic state. Problems are logged to
// log. If abort is true, the first problem found is also returned as an
// error.
func BoundsChecker(log logrus.FieldLogger, abort bool) Checker {
	return func(c *Column, stage string) error {
		p := &c.Prog
		loc := c.Location()
		var first error
		report := func(k int, msg string, v float64) {
			log.WithFields(logrus.Fields{
				"column": c.index,
				"lon":    loc.X,
				"lat":    loc.Y,
				"level":  k,
				"stage":  stage,
				"step":   c.infra.It,
			}).Warnf("%s: %g", msg, v)
			if first == nil {
				first = fmt.Errorf("p3: column %d level %d after stage %s: %s: %g",
					c.index, k, stage, msg, v)
			}
		}
		for k := 0; k < c.nk; k++ {
			t := c.Temperature(k)
			if !(t >= MinTemperature && t <= MaxTemperature) {
				report(k, "temperature out of bounds", t)
			}
			if !(p.Qv[k] >= MinVapor && p.Qv[k] <= MaxVapor) {
				report(k, "vapor mixing ratio out of bounds", p.Qv[k])
			}
			for _, f := range []struct {
				name string
				v    float64
			}{
				{"qc", p.Qc[k]}, {"nc", p.Nc[k]}, {"qr", p.Qr[k]}, {"nr", p.Nr[k]},
				{"qi", p.Qi[k]}, {"qm", p.Qm[k]}, {"ni", p.Ni[k]}, {"bm", p.Bm[k]},
			} {
				if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
					report(k, f.name+" is not finite", f.v)
				}
			}
		}
		if abort {
			return first
		}
		return nil
	}
}

// Checkers combines several Checkers into one that runs each in turn and
// returns the first error.
func Checkers(checks ...Checker) Checker {
	return func(c *Column, stage string) error {
		for _, chk := range checks {
			if chk == nil {
				continue
			}
			if err := chk(c, stage); err != nil {
				return err
			}
		}
		return nil
	}
}
