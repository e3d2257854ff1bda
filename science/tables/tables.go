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

// Package tables holds the lookup tables of bulk hydrometeor properties
// used by the microphysics. A Bundle is built once and then shared,
// read-only, by all column tasks.
package tables

import (
	"fmt"
	"math"

	"github.com/ctessum/unit"
)

// Table2D holds values on a regular two-dimensional grid.
// Data[i*NY+j] is the value at X0+i*DX, Y0+j*DY.
type Table2D struct {
	X0, DX float64
	NX     int
	Y0, DY float64
	NY     int
	Data   []float64
}

// NewTable2D returns a table over the given axes, filled by f.
func NewTable2D(x0, dx float64, nx int, y0, dy float64, ny int, f func(x, y float64) float64) *Table2D {
	t := &Table2D{X0: x0, DX: dx, NX: nx, Y0: y0, DY: dy, NY: ny, Data: make([]float64, nx*ny)}
	for i := 0; i < nx; i++ {
		x := x0 + float64(i)*dx
		for j := 0; j < ny; j++ {
			t.Data[i*ny+j] = f(x, y0+float64(j)*dy)
		}
	}
	return t
}

// At returns the bilinear interpolation of t at (x, y). Points outside
// of the table take the value at the nearest edge.
func (t *Table2D) At(x, y float64) float64 {
	i, fx := t.index(x, t.X0, t.DX, t.NX)
	j, fy := t.index(y, t.Y0, t.DY, t.NY)
	i1, j1 := i, j
	if i < t.NX-1 {
		i1 = i + 1
	}
	if j < t.NY-1 {
		j1 = j + 1
	}
	v00 := t.Data[i*t.NY+j]
	v01 := t.Data[i*t.NY+j1]
	v10 := t.Data[i1*t.NY+j]
	v11 := t.Data[i1*t.NY+j1]
	return (1-fx)*((1-fy)*v00+fy*v01) + fx*((1-fy)*v10+fy*v11)
}

// index returns the grid index below v and the fractional distance from
// it to the next index.
func (t *Table2D) index(v, v0, dv float64, n int) (int, float64) {
	p := (v - v0) / dv
	if !(p > 0) { // also catches NaN
		return 0, 0
	}
	if p >= float64(n-1) {
		return n - 1, 0
	}
	i := int(p)
	return i, p - float64(i)
}

// Check returns an error if t is malformed.
func (t *Table2D) Check() error {
	if t.NX < 1 || t.NY < 1 {
		return fmt.Errorf("tables: invalid table size %d×%d", t.NX, t.NY)
	}
	if len(t.Data) != t.NX*t.NY {
		return fmt.Errorf("tables: table has %d values; want %d", len(t.Data), t.NX*t.NY)
	}
	if !(t.DX > 0) || !(t.DY > 0) {
		return fmt.Errorf("tables: invalid table spacing %g, %g", t.DX, t.DY)
	}
	return nil
}

// Bundle holds all lookup tables. It must not be modified after it is
// created.
type Bundle struct {
	// Rain tables, indexed by the rain shape parameter and the natural
	// log of the rain slope parameter [1/m]. Fall speeds are for the
	// reference air density.
	RainVm, RainVn *Table2D

	// Ice tables, indexed by the log10 of the mean particle mass [kg]
	// and the rime mass fraction. Per-particle quantities are
	// averages over the size distribution. Fall speeds are for the
	// reference air density.
	IceVm      *Table2D // mass-weighted fall speed [m/s]
	IceVn      *Table2D // number-weighted fall speed [m/s]
	IceZeN     *Table2D // reflectivity per particle [m6]
	IceReff    *Table2D // effective radius [m]
	IceDmean   *Table2D // mass-weighted mean diameter [m]
	IceRho     *Table2D // bulk density [kg/m3]
	IceCap     *Table2D // capacitance [m]
	IceCollect *Table2D // collection kernel [m3/s]
}

// Axis bounds of the tables.
const (
	RainMuMin, RainMuMax         = 0., 10.
	RainLogLamMin, RainLogLamMax = 7.1, 14.
	IceLogMassMin, IceLogMassMax = -16., -5.
)

const (
	rhoIce     = 917.  // kg/m3
	rhoRimeRef = 400.  // kg/m3
	massRef    = 1e-12 // kg, mass below which unrimed ice is solid
	dielectric = 0.1892
)

// New calculates all lookup tables.
func New() *Bundle {
	b := &Bundle{
		RainVm: NewTable2D(RainMuMin, 0.5, 21, RainLogLamMin, 0.05, 139, func(mu, logLam float64) float64 {
			return rainSpeed(mu+4, math.Exp(logLam))
		}),
		RainVn: NewTable2D(RainMuMin, 0.5, 21, RainLogLamMin, 0.05, 139, func(mu, logLam float64) float64 {
			return rainSpeed(mu+1, math.Exp(logLam))
		}),
	}
	ice := func(f func(p iceParticle) float64) *Table2D {
		return NewTable2D(IceLogMassMin, 0.1, 111, 0, 0.1, 11, func(logm, fr float64) float64 {
			return f(newIceParticle(math.Pow(10, logm), fr))
		})
	}
	b.IceVm = ice(func(p iceParticle) float64 { return p.vm() })
	b.IceVn = ice(func(p iceParticle) float64 { return p.vn() })
	b.IceZeN = ice(func(p iceParticle) float64 { return p.zeN() })
	b.IceReff = ice(func(p iceParticle) float64 { return 1.5 / p.lam })
	b.IceDmean = ice(func(p iceParticle) float64 { return 4 / p.lam })
	b.IceRho = ice(func(p iceParticle) float64 { return p.rho })
	b.IceCap = ice(func(p iceParticle) float64 { return 0.5 / p.lam })
	b.IceCollect = ice(func(p iceParticle) float64 { return p.collect() })
	return b
}

// rainSpeed integrates the fall speed fit of Atlas et al. (1973),
// V(D) = 9.65 - 10.3 exp(-600 D), over a gamma distribution weighted by
// D^(p-1).
func rainSpeed(p, lam float64) float64 {
	return math.Max(0, 9.65-10.3*math.Pow(lam/(lam+600), p))
}

// iceParticle describes an exponential distribution of spherical ice
// particles with mean mass m and rime fraction fr.
type iceParticle struct {
	fr, rho, lam, a float64
}

const iceSpeedExp = 0.41

func newIceParticle(m, fr float64) iceParticle {
	rhoUnrimed := math.Max(50, math.Min(rhoIce, rhoIce*math.Pow(m/massRef, -0.25)))
	rho := (1-fr)*rhoUnrimed + fr*rhoRimeRef
	return iceParticle{
		fr:  fr,
		rho: rho,
		lam: math.Cbrt(math.Pi * rho / m),
		a:   11.72 + 7.58*fr,
	}
}

// vn and vm are the number- and mass-weighted averages of V(D) = a D^b.
func (p iceParticle) vn() float64 {
	return p.a * math.Gamma(1+iceSpeedExp) / math.Pow(p.lam, iceSpeedExp)
}

func (p iceParticle) vm() float64 {
	return p.a * math.Gamma(4+iceSpeedExp) / (6 * math.Pow(p.lam, iceSpeedExp))
}

// zeN is the equivalent reflectivity per particle.
func (p iceParticle) zeN() float64 {
	r := p.rho / rhoIce
	return dielectric * r * r * 720 / math.Pow(p.lam, 6)
}

// collect is the number-averaged geometric sweep-out rate.
func (p iceParticle) collect() float64 {
	return math.Pi / 4 * p.a * math.Gamma(3+iceSpeedExp) / math.Pow(p.lam, 2+iceSpeedExp)
}

// Field is a lookup table together with its metadata.
type Field struct {
	Name, Description string
	Units             unit.Dimensions
	XName, YName      string // names of the axes
	Table             *Table2D
}

// Axis names.
const (
	RainMuAxis     = "rain_mu"
	RainLogLamAxis = "rain_log_lambda"
	IceLogMassAxis = "ice_log10_mass"
	IceFrimeAxis   = "ice_rime_fraction"
)

var (
	speed    = unit.MeterPerSecond
	volume6  = unit.Dimensions{unit.LengthDim: 6}
	density  = unit.KilogramPerMeter3
	length   = unit.Meter
	sweepOut = unit.Meter3PerSecond
)

// Fields returns the tables in b with their metadata.
func (b *Bundle) Fields() []Field {
	rain := func(name, desc string, u unit.Dimensions, t *Table2D) Field {
		return Field{name, desc, u, RainMuAxis, RainLogLamAxis, t}
	}
	ice := func(name, desc string, u unit.Dimensions, t *Table2D) Field {
		return Field{name, desc, u, IceLogMassAxis, IceFrimeAxis, t}
	}
	return []Field{
		rain("rain_vm", "rain mass-weighted fall speed", speed, b.RainVm),
		rain("rain_vn", "rain number-weighted fall speed", speed, b.RainVn),
		ice("ice_vm", "ice mass-weighted fall speed", speed, b.IceVm),
		ice("ice_vn", "ice number-weighted fall speed", speed, b.IceVn),
		ice("ice_zen", "ice reflectivity per particle", volume6, b.IceZeN),
		ice("ice_reff", "ice effective radius", length, b.IceReff),
		ice("ice_dmean", "ice mass-weighted mean diameter", length, b.IceDmean),
		ice("ice_rho", "ice bulk density", density, b.IceRho),
		ice("ice_cap", "ice capacitance", length, b.IceCap),
		ice("ice_collect", "ice collection kernel", sweepOut, b.IceCollect),
	}
}

// Check returns an error if any table in b is missing or malformed.
func (b *Bundle) Check() error {
	for _, f := range b.Fields() {
		if f.Table == nil {
			return fmt.Errorf("tables: missing table %s", f.Name)
		}
		if err := f.Table.Check(); err != nil {
			return fmt.Errorf("tables: %s: %v", f.Name, err)
		}
	}
	return nil
}

// Set stores t as the table with the given name. It is meant for use
// while a Bundle is being assembled, for example from a file.
func (b *Bundle) Set(name string, t *Table2D) error {
	dst := map[string]**Table2D{
		"rain_vm": &b.RainVm, "rain_vn": &b.RainVn,
		"ice_vm": &b.IceVm, "ice_vn": &b.IceVn, "ice_zen": &b.IceZeN,
		"ice_reff": &b.IceReff, "ice_dmean": &b.IceDmean, "ice_rho": &b.IceRho,
		"ice_cap": &b.IceCap, "ice_collect": &b.IceCollect,
	}
	p, ok := dst[name]
	if !ok {
		return fmt.Errorf("tables: unknown table %s", name)
	}
	*p = t
	return nil
}
