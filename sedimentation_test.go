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
	"testing"

	"github.com/kr/pretty"
	"github.com/spatialmodel/p3/science/tables"
	"gonum.org/v1/gonum/floats"
)

// stubProcesses has no process rates and constant fall speeds.
type stubProcesses struct {
	rainVm, rainVn float64
	iceVm, iceVn   float64
}

func (s stubProcesses) CloudDSD(l *Level)   {}
func (s stubProcesses) RainDSD(l *Level)    {}
func (s stubProcesses) IceProperties(l *Level) {
	l.Ice.Vm, l.Ice.Vn = s.iceVm, s.iceVn
}
func (s stubProcesses) CloudFallSpeed(l *Level) (float64, float64) { return 0.01, 0.005 }
func (s stubProcesses) RainFallSpeed(l *Level) (float64, float64) {
	return s.rainVm, s.rainVn
}
func (stubProcesses) DropletActivation(*Level, *Rates)     {}
func (stubProcesses) IceNucleation(*Level, *Rates)         {}
func (stubProcesses) VaporDeposition(*Level, *Rates)       {}
func (stubProcesses) RainEvaporation(*Level, *Rates)       {}
func (stubProcesses) Autoconversion(*Level, *Rates)        {}
func (stubProcesses) Accretion(*Level, *Rates)             {}
func (stubProcesses) SelfCollection(*Level, *Rates)        {}
func (stubProcesses) IceCollection(*Level, *Rates)         {}
func (stubProcesses) HeterogeneousFreezing(*Level, *Rates) {}
func (stubProcesses) Melting(*Level, *Rates)               {}
func (stubProcesses) Bergeron(*Level, *Rates)              {}

type constSat float64

func (s constSat) QvSat(t, p float64, ice bool) float64 { return float64(s) }

const testDz = 100. // m

// newTestColumn returns a single warm column of nk levels, each testDz
// thick with an air density of 1 kg/m3.
func newTestColumn(t *testing.T, nk int, o Orientation, dt float64, proc Processes) *Column {
	prog := NewPrognosticState(1, nk)
	in := NewDiagnosticInputs(1, nk)
	out := NewDiagnosticOutputs(1, nk)
	hist := NewHistoryOnly(1, nk)
	for k := 0; k < nk; k++ {
		prog.Th.Elements[k] = 280
		prog.Qv.Elements[k] = 0.005
		in.Dz.Elements[k] = testDz
		in.Dpres.Elements[k] = testDz * Gravity
		in.Pres.Elements[k] = 90000
		in.InvExner.Elements[k] = 1
	}
	ws, err := NewDefaultWorkspaceManager(nk)
	if err != nil {
		t.Fatal(err)
	}
	hs, err := ws.Handles(DefaultWorkspaceNames...)
	if err != nil {
		t.Fatal(err)
	}
	w := ws.Acquire()
	kbot, ktop, kdir := o.bounds(nk)
	return &Column{
		Prog: prog.column(0, nk), In: in.column(0, nk),
		Out: out.column(0, nk), Hist: hist.column(0, nk),
		nk: nk, kbot: kbot, ktop: ktop, kdir: kdir,
		dt: dt, invDt: 1 / dt,
		rt:    DefaultRuntime(),
		infra: &Infrastructure{Dt: dt, Orientation: o},
		tab:   new(tables.Bundle),
		proc:  proc,
		sat:   constSat(0.01),
		ws:    w,
		s:     bindScratch(w, hs),
	}
}

// columnMass returns the column integral of q [kg/m2].
func columnMass(c *Column, q []float64) float64 {
	var sum float64
	for k := range q {
		sum += q[k] * c.In.Dpres[k] / Gravity
	}
	return sum
}

func TestSubsteps(t *testing.T) {
	for _, test := range []struct {
		co   float64
		want int
	}{
		{0, 1}, {0.5, 1}, {0.999, 1}, {1, 2}, {2.7, 3}, {10, 11},
		{-1, 1}, {math.NaN(), 1}, {math.Inf(1), 1},
		{math.MaxInt32 - 2, math.MaxInt32 - 1}, {math.MaxInt32, math.MaxInt32},
		{1e19, math.MaxInt32}, {1e30, math.MaxInt32}, {math.MaxFloat64, math.MaxInt32},
	} {
		if have := substeps(test.co); have != test.want {
			t.Errorf("substeps(%g) = %d; want %d", test.co, have, test.want)
		}
	}
	prev := 1
	for co := 0.; co < 50; co += 0.01 {
		n := substeps(co)
		if n < prev {
			t.Fatalf("substeps(%g) = %d < %d", co, n, prev)
		}
		if co/float64(n) >= 1 {
			t.Fatalf("substeps(%g) = %d leaves a Courant number of %g", co, n, co/float64(n))
		}
		prev = n
	}
}

func TestRainSedimentationConservation(t *testing.T) {
	const (
		nk = 10
		dt = 120.
	)
	for _, o := range []Orientation{TopDown, BottomUp} {
		t.Run(o.String(), func(t *testing.T) {
			c := newTestColumn(t, nk, o, dt, stubProcesses{rainVm: 5, rainVn: 3})
			defer c.release()
			// Rain starts two levels below the top.
			k0 := c.ktop - 2*c.kdir
			c.Prog.Qr[k0], c.Prog.Nr[k0] = 1e-3, 1e4
			c.Prog.Qr[c.kbot], c.Prog.Nr[c.kbot] = 2e-4, 1e3
			for _, f := range []ColumnManipulator{Init, Part1} {
				if err := f(c); err != nil {
					t.Fatal(err)
				}
			}
			before := columnMass(c, c.Prog.Qr)
			numBefore := floats.Sum(c.Prog.Nr)

			if err := RainSedimentation(c); err != nil {
				t.Fatal(err)
			}
			after := columnMass(c, c.Prog.Qr)
			surface := *c.Out.PrecipLiqSurf * dt * RhoWater
			if surface <= 0 {
				t.Errorf("no rain reached the surface")
			}
			if !floats.EqualWithinRel(before, after+surface, 1e-12) {
				t.Errorf("mass not conserved: before %g, after %g + surface %g", before, after, surface)
			}
			if floats.Sum(c.Prog.Nr) >= numBefore {
				t.Errorf("rain number should decrease as drops leave the column")
			}
			for k := 0; k < nk; k++ {
				if c.Prog.Qr[k] < 0 || c.Prog.Nr[k] < 0 {
					t.Errorf("negative rain at level %d: %g, %g", k, c.Prog.Qr[k], c.Prog.Nr[k])
				}
			}
			// Above the highest rain, nothing changes.
			if c.Prog.Qr[c.ktop] != 0 || c.Hist.QrSed[c.ktop] != 0 {
				t.Errorf("rain appeared above the highest level with rain")
			}
			// The tendency integrates to the surface loss.
			tend := columnMass(c, c.Hist.QrSed) * dt
			if !floats.EqualWithinAbsOrRel(tend, -surface, 1e-18, 1e-9) {
				t.Errorf("tendency %g does not match surface loss %g", tend, surface)
			}
			if c.Out.PrecipLiqFlux[c.kbot] <= 0 {
				t.Errorf("flux out of the bottom level = %g", c.Out.PrecipLiqFlux[c.kbot])
			}
		})
	}
}

func TestIceSedimentationConservation(t *testing.T) {
	const (
		nk = 8
		dt = 300.
	)
	c := newTestColumn(t, nk, TopDown, dt, stubProcesses{iceVm: 1.5, iceVn: 0.7})
	defer c.release()
	for k := 0; k < nk; k++ {
		c.Prog.Th[k] = 250
		c.Prog.Qi[k] = 1e-5 * float64(k+1)
		c.Prog.Qm[k] = 0.5 * c.Prog.Qi[k]
		c.Prog.Bm[k] = c.Prog.Qm[k] / 400
		c.Prog.Ni[k] = 1e4
	}
	for _, f := range []ColumnManipulator{Init, Part1} {
		if err := f(c); err != nil {
			t.Fatal(err)
		}
	}
	before := columnMass(c, c.Prog.Qi)
	rimeBefore := columnMass(c, c.Prog.Qm)
	if err := IceSedimentation(c); err != nil {
		t.Fatal(err)
	}
	surface := *c.Out.PrecipIceSurf * dt * RhoWater
	if !floats.EqualWithinRel(before, columnMass(c, c.Prog.Qi)+surface, 1e-12) {
		t.Errorf("ice mass not conserved")
	}
	if columnMass(c, c.Prog.Qm) >= rimeBefore {
		t.Errorf("rime mass should leave the column with the ice")
	}
	if *c.Out.PrecipLiqSurf != 0 {
		t.Errorf("ice sedimentation changed liquid precipitation")
	}
}

func TestSedimentationEmptyColumn(t *testing.T) {
	c := newTestColumn(t, 5, TopDown, 60, stubProcesses{rainVm: 5, rainVn: 3})
	defer c.release()
	for _, f := range []ColumnManipulator{Init, Part1, RainSedimentation} {
		if err := f(c); err != nil {
			t.Fatal(err)
		}
	}
	if *c.Out.PrecipLiqSurf != 0 {
		t.Errorf("surface precipitation = %g", *c.Out.PrecipLiqSurf)
	}
	for k, v := range c.Hist.QrSed {
		if v != 0 {
			t.Errorf("tendency[%d] = %g", k, v)
		}
	}
}

func TestCloudSedimentationConservation(t *testing.T) {
	const (
		nk = 6
		dt = 600.
		vm = 0.01  // stubProcesses cloud mass-weighted speed [m/s]
		vn = 0.005 // stubProcesses cloud number-weighted speed [m/s]
	)
	for _, predictNc := range []bool{true, false} {
		t.Run(fmt.Sprintf("PredictNc=%v", predictNc), func(t *testing.T) {
			c := newTestColumn(t, nk, TopDown, dt, stubProcesses{})
			defer c.release()
			c.rt.PredictNc = predictNc
			c.Prog.Qc[2], c.Prog.Nc[2] = 5e-4, 5e7
			c.Prog.Qc[c.kbot], c.Prog.Nc[c.kbot] = 1e-3, 1e8
			for _, f := range []ColumnManipulator{Init, Part1} {
				if err := f(c); err != nil {
					t.Fatal(err)
				}
			}
			before := columnMass(c, c.Prog.Qc)
			bottom := c.Prog.Qc[c.kbot]
			nc := append([]float64{}, c.Prog.Nc...)

			if err := CloudSedimentation(c); err != nil {
				t.Fatal(err)
			}
			surface := *c.Out.PrecipLiqSurf * dt * RhoWater
			if !floats.EqualWithinRel(surface, bottom*vm*dt, 1e-12) {
				t.Errorf("surface cloud water %g; want %g", surface, bottom*vm*dt)
			}
			if after := columnMass(c, c.Prog.Qc); !floats.EqualWithinRel(before, after+surface, 1e-12) {
				t.Errorf("mass not conserved: before %g, after %g + surface %g", before, after, surface)
			}
			tend := columnMass(c, c.Hist.QcSed) * dt
			if !floats.EqualWithinAbsOrRel(tend, -surface, 1e-18, 1e-9) {
				t.Errorf("tendency %g does not match surface loss %g", tend, surface)
			}
			if predictNc {
				// The number falls at the number-weighted speed.
				lost := columnMass(c, nc) - columnMass(c, c.Prog.Nc)
				want := nc[c.kbot] * vn * dt
				if !floats.EqualWithinRel(lost, want, 1e-9) {
					t.Errorf("droplet number lost %g; want %g", lost, want)
				}
			} else if diff := pretty.Diff(c.Prog.Nc, nc); len(diff) > 0 {
				t.Errorf("prescribed droplet number moved: %v", diff)
			}
		})
	}
}

func TestUpwindNeighbour(t *testing.T) {
	const (
		nk = 3
		dt = 10.
	)
	c := newTestColumn(t, nk, TopDown, dt, stubProcesses{})
	defer c.release()
	for _, f := range []ColumnManipulator{Init, Part1} {
		if err := f(c); err != nil {
			t.Fatal(err)
		}
	}
	// Air rising through the bottom of the middle level carries the
	// lowest level's contents upward.
	f := []float64{0, 0, 1e-3}
	v := []float64{0, -1, 0}
	flux := make([]float64, nk)
	c.upwind(f, v, flux, c.ktop, 0, nk-1, dt)
	frac := dt / testDz
	want := []float64{0, 1e-3 * frac, 1e-3 * (1 - frac)}
	if !floats.EqualApprox(f, want, 1e-15) {
		t.Errorf("f = %v; want %v", f, want)
	}
	if flux[c.kbot] != 0 {
		t.Errorf("flux through the surface = %g", flux[c.kbot])
	}
}
