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


package p3util

import (
	"math"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/spatialmodel/p3"
)

func TestLoadCase(t *testing.T) {
	c, err := LoadCaseFile("testdata/case.toml")
	if err != nil {
		t.Fatal(err)
	}
	if c.Case.Name != "test" {
		t.Errorf("name = %q", c.Case.Name)
	}
	s, err := c.State(300)
	if err != nil {
		t.Fatal(err)
	}
	if s.NJ != 3 || s.NK != 6 {
		t.Fatalf("shape = %d×%d; want 3×6", s.NJ, s.NK)
	}
	if s.Infra.Orientation != p3.TopDown {
		t.Errorf("orientation = %v", s.Infra.Orientation)
	}
	if want := (geom.Point{X: -100, Y: 45}); s.Infra.ColLocation[1] != want {
		t.Errorf("location = %v; want %v", s.Infra.ColLocation[1], want)
	}
	// Column 0, level 5 is at the reference pressure.
	if ie := s.In.InvExner.Get(0, 5); ie != 1 {
		t.Errorf("inv_exner at reference pressure = %g", ie)
	}
	ie := s.In.InvExner.Get(0, 0)
	if want := math.Pow(2, p3.Rd/p3.Cp); different(ie, want, 1e-12) {
		t.Errorf("inv_exner = %g; want %g", ie, want)
	}
	if th := s.Prog.Th.Get(0, 0); different(th, 255*ie, 1e-12) {
		t.Errorf("th = %g; want %g", th, 255*ie)
	}
	if v := s.In.CldFracL.Get(2, 3); v != 1 {
		t.Errorf("default cloud fraction = %g", v)
	}
	if v := s.Prog.Qc.Get(2, 3); v != 0 {
		t.Errorf("default qc = %g", v)
	}
	if v := s.In.NiActivated.Get(1, 0); v != 1e4 {
		t.Errorf("ni_activated = %g", v)
	}
}

func TestLoadCaseErrors(t *testing.T) {
	for _, test := range []struct {
		name, toml, err string
	}{
		{
			name: "no columns",
			toml: "[Case]\nName = \"x\"\n",
			err:  "has no columns",
		},
		{
			name: "unknown profile",
			toml: "[[Column]]\n[Column.Profiles]\npres = [1.0e5]\ndz = [100.0]\ndpres = [1000.0]\nfoo = [1.0]\n",
			err:  "unknown profile",
		},
		{
			name: "levels",
			toml: "[[Column]]\n[Column.Profiles]\npres = [1.0e5, 9.0e4]\ndz = [100.0]\ndpres = [1000.0]\n",
			err:  "levels",
		},
		{
			name: "missing",
			toml: "[[Column]]\n[Column.Profiles]\npres = [1.0e5]\ndz = [100.0]\n",
			err:  "missing required profile",
		},
		{
			name: "orientation",
			toml: "[Case]\nOrientation = \"sideways\"\n[[Column]]\n[Column.Profiles]\npres = [1.0e5]\ndz = [100.0]\ndpres = [1000.0]\n",
			err:  "invalid orientation",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			c, err := LoadCase(strings.NewReader(test.toml))
			if err == nil {
				_, err = c.State(60)
			}
			if err == nil || !strings.Contains(err.Error(), test.err) {
				t.Errorf("error = %v; want %q", err, test.err)
			}
		})
	}
}

func different(a, b, tolerance float64) bool {
	return 2*math.Abs(a-b)/math.Abs(a+b) > tolerance
}
