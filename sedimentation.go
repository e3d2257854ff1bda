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
	"math"

	"github.com/ctessum/atmos/advect"
	"gonum.org/v1/gonum/floats"
)

// fallingSpecies describes a hydrometeor species for sediment.
type fallingSpecies struct {
	// mass holds the grid-mean fields that fall at the mass-weighted
	// speed. mass[0] is the species mass, which is what reaches the
	// surface accumulator and the flux diagnostic.
	mass [][]float64

	// number holds the fields that fall at the number-weighted speed.
	number [][]float64

	// speed returns the mass- and number-weighted fall speeds at level k.
	// It may adjust the state at k to match the size distribution.
	speed func(k int) (vm, vn float64)

	// finish recomputes in-cloud values and the size distribution at
	// level k after transport.
	finish func(k int)

	surf *float64  // surface precipitation rate [m/s]
	flux []float64 // precipitation flux out of the bottom of each level [m/s], optional
	tend []float64 // mass tendency due to sedimentation [kg/kg/s]
}

// sediment moves sp downward over one time step with first-order upwind
// transport, subdividing the time step so the Courant number stays below
// one. Afterwards, negative values anywhere in the column are set to
// zero.
func (c *Column) sediment(sp *fallingSpecies) {
	s := &c.s
	q := sp.mass[0]
	copy(sp.tend, q)

	var fields [numSedFields][]float64
	nf := copy(fields[:], sp.mass)
	nf += copy(fields[nf:], sp.number)

	if ktop, ok := c.highestLevel(q); ok {
		lo, hi := levels(ktop, c.kbot)
		var prtAccum float64 // mass that has reached the surface [kg/m2]
		for dtLeft := c.dt; dtLeft > minSubstep; {
			for k := lo; k <= hi; k++ {
				s.sedVq[k], s.sedVn[k] = sp.speed(k)
			}
			co := maxCourant(s.sedVq[lo:hi+1], s.invDz[lo:hi+1], s.sedCourant[lo:hi+1], dtLeft)
			dtSub := math.Min(dtLeft, dtLeft/float64(substeps(co)))

			for i, f := range fields[:nf] {
				v := s.sedVq
				if i >= len(sp.mass) {
					v = s.sedVn
				}
				c.upwind(f, v, s.sedFlux[i], ktop, lo, hi, dtSub)
			}
			prtAccum += s.sedFlux[0][c.kbot] * dtSub
			if sp.flux != nil {
				for k := lo; k <= hi; k++ {
					sp.flux[k] += s.sedFlux[0][k] * dtSub * c.invDt / RhoWater
				}
			}
			dtLeft -= dtSub
		}
		*sp.surf += prtAccum * c.invDt / RhoWater
	}

	for k := 0; k < c.nk; k++ {
		for _, f := range fields[:nf] {
			f[k] = math.Max(f[k], 0)
		}
		sp.finish(k)
		sp.tend[k] = (q[k] - sp.tend[k]) * c.invDt
	}
}

// highestLevel returns the level farthest from the surface where q is
// at least QSmall.
func (c *Column) highestLevel(q []float64) (int, bool) {
	for k := c.ktop; k != c.kbot-c.kdir; k -= c.kdir {
		if q[k] >= QSmall {
			return k, true
		}
	}
	return 0, false
}

// upwind advances f by one upwind step of length dt using fall speeds v.
// Only the levels from ktop down to the surface are updated; lo and hi
// are the lowest and highest indices of that range. flux receives the
// mass flux out of the bottom of each level [kg/m2/s].
func (c *Column) upwind(f, v, flux []float64, ktop, lo, hi int, dt float64) {
	s := &c.s
	for k := lo; k <= hi; k++ {
		// Flux through the bottom face of level k, positive upward, so a
		// falling species takes the value of level k itself. Δx is one
		// because the divergence is taken below.
		var below float64
		if k != c.kbot {
			below = f[k-c.kdir] * s.rho[k-c.kdir]
		}
		flux[k] = -advect.UpwindFlux(-v[k], below, f[k]*s.rho[k], 1)
	}
	f[ktop] -= flux[ktop] * s.invDz[ktop] * dt * s.invRho[ktop]
	for k := ktop - c.kdir; k != c.kbot-c.kdir; k -= c.kdir {
		f[k] += (flux[k+c.kdir] - flux[k]) * s.invDz[k] * dt * s.invRho[k]
	}
}

// maxCourant stores the Courant number v*dt/dz of each level in co and
// returns the largest one.
func maxCourant(v, invDz, co []float64, dt float64) float64 {
	for k := range co {
		co[k] = v[k] * dt * invDz[k]
	}
	return floats.Max(co)
}

// substeps returns the number of equal substeps that keeps the Courant
// number of each below one. It is never less than one.
func substeps(courantMax float64) int {
	if !(courantMax >= 0) || math.IsInf(courantMax, 1) {
		return 1
	}
	if courantMax >= math.MaxInt32-1 {
		return math.MaxInt32
	}
	return int(courantMax + 1)
}

// CloudSedimentation transports cloud water, and cloud droplet number
// if it is predicted.
func CloudSedimentation(c *Column) error {
	p, s := &c.Prog, &c.s
	sp := fallingSpecies{
		mass: [][]float64{p.Qc},
		surf: c.Out.PrecipLiqSurf,
		tend: c.Hist.QcSed,
		speed: func(k int) (float64, float64) {
			l := c.level(k)
			l.Qc = p.Qc[k] * s.invCldFracL[k]
			l.Nc = p.Nc[k] * s.invCldFracL[k]
			if l.Qc < QSmall {
				return 0, 0
			}
			c.proc.CloudDSD(&l)
			if c.rt.PredictNc {
				p.Nc[k] = l.Nc * l.CldFracL
			}
			return c.proc.CloudFallSpeed(&l)
		},
		finish: func(k int) {
			c.inCloud(k)
			if s.qcIncld[k] >= QSmall {
				l := c.level(k)
				c.proc.CloudDSD(&l)
				c.storeDSD(k, &l)
			}
		},
	}
	if c.rt.PredictNc {
		sp.number = [][]float64{p.Nc}
	}
	c.sediment(&sp)
	return nil
}

// RainSedimentation transports rain mass and number.
func RainSedimentation(c *Column) error {
	p, s := &c.Prog, &c.s
	sp := fallingSpecies{
		mass:   [][]float64{p.Qr},
		number: [][]float64{p.Nr},
		surf:   c.Out.PrecipLiqSurf,
		flux:   c.Out.PrecipLiqFlux,
		tend:   c.Hist.QrSed,
		speed: func(k int) (float64, float64) {
			l := c.level(k)
			l.Qr = p.Qr[k] * s.invCldFracR[k]
			l.Nr = p.Nr[k] * s.invCldFracR[k]
			if l.Qr < QSmall {
				return 0, 0
			}
			c.proc.RainDSD(&l)
			p.Nr[k] = l.Nr * l.CldFracR
			return c.proc.RainFallSpeed(&l)
		},
		finish: func(k int) {
			c.inCloud(k)
			if s.qrIncld[k] >= QSmall {
				l := c.level(k)
				c.proc.RainDSD(&l)
				c.storeDSD(k, &l)
			}
		},
	}
	c.sediment(&sp)
	return nil
}

// IceSedimentation transports total ice mass, rime mass, rime volume
// and ice number.
func IceSedimentation(c *Column) error {
	p, s := &c.Prog, &c.s
	sp := fallingSpecies{
		mass:   [][]float64{p.Qi, p.Qm, p.Bm},
		number: [][]float64{p.Ni},
		surf:   c.Out.PrecipIceSurf,
		flux:   c.Out.PrecipIceFlux,
		tend:   c.Hist.QiSed,
		speed: func(k int) (float64, float64) {
			l := c.level(k)
			inv := s.invCldFracI[k]
			l.Qi, l.Ni, l.Qm, l.Bm = p.Qi[k]*inv, p.Ni[k]*inv, p.Qm[k]*inv, p.Bm[k]*inv
			if l.Qi < QSmall {
				return 0, 0
			}
			c.proc.IceProperties(&l)
			p.Ni[k] = l.Ni * l.CldFracI
			p.Qm[k] = l.Qm * l.CldFracI
			p.Bm[k] = l.Bm * l.CldFracI
			return l.Ice.Vm, l.Ice.Vn
		},
		finish: c.inCloud,
	}
	c.sediment(&sp)
	return nil
}
