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

package satvap

import (
	"math"
	"testing"
)

func different(a, b, tolerance float64) bool {
	return math.Abs(a-b)/math.Abs(b) > tolerance
}

func TestPressure(t *testing.T) {
	for _, test := range []struct {
		t, want float64
		ice     bool
	}{
		{t: 273.16, want: 611.65, ice: false}, // triple point
		{t: 273.16, want: 611.65, ice: true},
		{t: 298.15, want: 3169.9, ice: false},
		{t: 253.15, want: 103.2, ice: true},
	} {
		have := Pressure(test.t, test.ice)
		if different(have, test.want, 0.01) {
			t.Errorf("Pressure(%g, %v) = %g; want %g", test.t, test.ice, have, test.want)
		}
	}
}

func TestQvSat(t *testing.T) {
	var m MurphyKoop
	// Saturation over ice is lower than over liquid below freezing.
	if l, i := m.QvSat(250, 70000, false), m.QvSat(250, 70000, true); i >= l {
		t.Errorf("ice saturation %g should be less than liquid saturation %g", i, l)
	}
	// Above freezing the ice flag has no effect.
	if l, i := m.QvSat(280, 90000, false), m.QvSat(280, 90000, true); l != i {
		t.Errorf("above freezing: %g != %g", l, i)
	}
	// About 0.02 kg/kg at 25 °C and 1000 hPa.
	if have := m.QvSat(298.15, 100000, false); different(have, 0.0200, 0.05) {
		t.Errorf("QvSat(298.15, 100000) = %g", have)
	}
	// Low pressures do not blow up.
	if have := m.QvSat(300, 1, false); math.IsInf(have, 0) || math.IsNaN(have) {
		t.Errorf("QvSat at very low pressure = %g", have)
	}
}
