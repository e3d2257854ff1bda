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
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/geom"
	"github.com/spatialmodel/p3"
)

// Case is the initial state of a set of columns, as read from a TOML
// case file. A case file looks like:
//
//	[Case]
//	Name = "squall line"
//	Orientation = "top-down"
//
//	[[Column]]
//	Lon = -97.5
//	Lat = 36.6
//	[Column.Profiles]
//	th = [300.1, 298.7, ...]
//	qv = [1.2e-3, 2.5e-3, ...]
//	...
//
// Profile names are the names of the prognostic and input variables.
type Case struct {
	Case struct {
		Name string

		// Orientation is either "top-down" (the default) or "bottom-up".
		Orientation string
	}
	Column []ColumnProfile
}

// ColumnProfile is the initial state of one column.
type ColumnProfile struct {
	Lon, Lat float64

	// Profiles holds a value at each level for any of the prognostic
	// and input variables. Variables that are not given are zero,
	// except for the cloud fractions and inv_qc_relvar, which are one.
	// The pres, dz and dpres profiles are required. If inv_exner is
	// not given it is calculated from pres, and temperature may be
	// given as t instead of th.
	Profiles map[string][]float64
}

// LoadCase reads a case from r.
func LoadCase(r io.Reader) (*Case, error) {
	c := new(Case)
	if _, err := toml.DecodeReader(r, c); err != nil {
		return nil, fmt.Errorf("p3: problem reading case: %v", err)
	}
	if len(c.Column) == 0 {
		return nil, fmt.Errorf("p3: case %q has no columns", c.Case.Name)
	}
	return c, nil
}

// LoadCaseFile reads a case from the named file.
func LoadCaseFile(fname string) (*Case, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("p3: problem opening case file: %v", err)
	}
	defer f.Close()
	return LoadCase(f)
}

// State holds everything needed to step a set of columns.
type State struct {
	Prog  *p3.PrognosticState
	In    *p3.DiagnosticInputs
	Out   *p3.DiagnosticOutputs
	Hist  *p3.HistoryOnly
	Infra *p3.Infrastructure

	NJ, NK int
}

// Fields returns all per-level variables in s, keyed by name.
func (s *State) Fields() map[string]p3.Field {
	o := make(map[string]p3.Field)
	for _, fields := range [][]p3.Field{s.Prog.Fields(), s.In.Fields(), s.Out.Fields(), s.Hist.Fields()} {
		for _, f := range fields {
			o[f.Name] = f
		}
	}
	return o
}

// Orientation returns the level ordering of c.
func (c *Case) Orientation() (p3.Orientation, error) {
	switch c.Case.Orientation {
	case "", "top-down":
		return p3.TopDown, nil
	case "bottom-up":
		return p3.BottomUp, nil
	default:
		return p3.TopDown, fmt.Errorf("p3: invalid orientation %q", c.Case.Orientation)
	}
}

// Reference pressure for the exner function [Pa].
const referencePressure = 1.e5

// State allocates the state of the columns in c and fills it with the
// initial profiles. dt is the time step in seconds.
func (c *Case) State(dt float64) (*State, error) {
	o, err := c.Orientation()
	if err != nil {
		return nil, err
	}
	nk, err := c.levels()
	if err != nil {
		return nil, err
	}
	nj := len(c.Column)
	s := &State{
		Prog:  p3.NewPrognosticState(nj, nk),
		In:    p3.NewDiagnosticInputs(nj, nk),
		Out:   p3.NewDiagnosticOutputs(nj, nk),
		Hist:  p3.NewHistoryOnly(nj, nk),
		Infra: &p3.Infrastructure{Dt: dt, Orientation: o, ColLocation: make([]geom.Point, nj)},
		NJ:    nj,
		NK:    nk,
	}
	fields := make(map[string]p3.Field)
	for _, f := range append(s.Prog.Fields(), s.In.Fields()...) {
		fields[f.Name] = f
	}
	for i, col := range c.Column {
		s.Infra.ColLocation[i] = geom.Point{X: col.Lon, Y: col.Lat}
		for _, name := range []string{"pres", "dz", "dpres"} {
			if _, ok := col.Profiles[name]; !ok {
				return nil, fmt.Errorf("p3: column %d is missing required profile %q", i, name)
			}
		}
		for name, v := range col.Profiles {
			if name == "t" {
				continue
			}
			f, ok := fields[name]
			if !ok {
				return nil, fmt.Errorf("p3: column %d: unknown profile %q", i, name)
			}
			copy(f.Data.Elements[i*nk:(i+1)*nk], v)
		}
		if _, ok := col.Profiles["inv_exner"]; !ok {
			for k := 0; k < nk; k++ {
				s.In.InvExner.Elements[i*nk+k] = math.Pow(referencePressure/s.In.Pres.Elements[i*nk+k], p3.Rd/p3.Cp)
			}
		}
		if t, ok := col.Profiles["t"]; ok {
			if _, ok := col.Profiles["th"]; ok {
				return nil, fmt.Errorf("p3: column %d has both t and th profiles", i)
			}
			for k := 0; k < nk; k++ {
				s.Prog.Th.Elements[i*nk+k] = t[k] * s.In.InvExner.Elements[i*nk+k]
			}
		}
	}
	return s, nil
}

// levels returns the number of levels in c, making sure that all
// profiles have the same length.
func (c *Case) levels() (int, error) {
	nk := -1
	for i, col := range c.Column {
		names := make([]string, 0, len(col.Profiles))
		for name := range col.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			n := len(col.Profiles[name])
			if nk < 0 {
				nk = n
			}
			if n != nk {
				return 0, fmt.Errorf("p3: column %d profile %s has %d levels; want %d", i, name, n, nk)
			}
		}
	}
	if nk <= 0 {
		return 0, fmt.Errorf("p3: case has no levels")
	}
	return nk, nil
}
