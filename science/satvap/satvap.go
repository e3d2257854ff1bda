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

// Package satvap calculates saturation vapor pressures and mixing ratios
// using the parameterizations of Murphy and Koop (2005).
package satvap

import "math"

const (
	tZero = 273.15   // K
	ep2   = 0.621972 // ratio of the gas constants of dry air and water vapor
)

// MurphyKoop fulfils the github.com/spatialmodel/p3.Saturation
// interface.
type MurphyKoop struct{}

// QvSat returns the saturation vapor mixing ratio [kg/kg] at temperature
// t [K] and pressure p [Pa]. It is calculated with respect to ice if ice
// is true and t is below freezing, and with respect to liquid water
// otherwise.
func (MurphyKoop) QvSat(t, p float64, ice bool) float64 {
	e := Pressure(t, ice)
	return ep2 * e / math.Max(1.e-3, p-e)
}

// Pressure returns the saturation vapor pressure [Pa] at temperature t [K],
// over ice if ice is true and t is below freezing.
func Pressure(t float64, ice bool) float64 {
	if ice && t < tZero {
		return math.Exp(9.554605 - 5723.265/t + 3.53068*math.Log(t) - 0.00728332*t)
	}
	lt := math.Log(t)
	return math.Exp(54.842763 - 6763.22/t - 4.210*lt + 0.000367*t +
		math.Tanh(0.0415*(t-218.8))*(53.878-1331.22/t-9.44523*lt+0.014025*t))
}
