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

import "math"

// Reference air densities for the fall speed corrections [kg/m3].
const (
	rhoSurfaceRain = 100000. / (Rd * TZero)
	rhoSurfaceIce  = 60000. / (Rd * 253.15)
)

// Part1 calculates densities and saturation, removes trivially small
// amounts of condensate, converts hydrometeors to in-cloud values and
// decides whether the column needs any further microphysics. If neither
// nucleation is possible nor any hydrometeors are present, the task
// ends here and all outputs keep the values set by Init.
func Part1(c *Column) error {
	p, in, s := &c.Prog, &c.In, &c.s
	c.nucleationPossible = false
	c.hydrometeorsPresent = false
	for k := 0; k < c.nk; k++ {
		s.rho[k] = in.Dpres[k] * s.invDz[k] / Gravity
		s.invRho[k] = 1 / s.rho[k]
		s.qvSatL[k] = c.sat.QvSat(s.T[k], in.Pres[k], false)
		s.qvSatI[k] = c.sat.QvSat(s.T[k], in.Pres[k], true)
		s.sup[k] = p.Qv[k]/s.qvSatL[k] - 1
		s.qvSupersatI[k] = p.Qv[k]/s.qvSatI[k] - 1

		s.rhofacr[k] = math.Pow(rhoSurfaceRain*s.invRho[k], 0.54)
		s.rhofaci[k] = math.Pow(rhoSurfaceIce*s.invRho[k], 0.54)
		mu := 1.496e-6 * math.Pow(s.T[k], 1.5) / (s.T[k] + 120) // viscosity of air
		s.acn[k] = Gravity * RhoWater / (18 * mu)

		if !c.rt.PredictNc {
			p.Nc[k] = NcConst * s.invRho[k]
		}

		if c.canNucleate(k) {
			c.nucleationPossible = true
		}

		if p.Qc[k] < QSmall || (p.Qc[k] < dryMass && s.sup[k] < drySupersat) {
			c.evaporateCloud(k)
		} else {
			c.hydrometeorsPresent = true
		}
		if p.Qr[k] < QSmall || (p.Qr[k] < dryMass && s.sup[k] < drySupersat) {
			c.evaporateRain(k)
		} else {
			c.hydrometeorsPresent = true
		}
		if p.Qi[k] < QSmall || (p.Qi[k] < dryMass && s.qvSupersatI[k] < drySupersat) {
			c.sublimateIce(k)
		} else {
			c.hydrometeorsPresent = true
		}

		c.inCloud(k)
	}
	if !(c.nucleationPossible || c.hydrometeorsPresent) {
		c.done = true
	}
	return nil
}

// canNucleate reports whether new cloud or ice could form at level k:
// the air is close enough to saturation and there are aerosols to
// activate or freeze.
func (c *Column) canNucleate(k int) bool {
	s, in := &c.s, &c.In
	humid := (s.T[k] < TZero && s.qvSupersatI[k] >= nucleationSupersat) ||
		(s.T[k] >= TZero && s.sup[k] >= nucleationSupersat)
	if !humid {
		return false
	}
	return !c.rt.PredictNc ||
		in.NcNuceatTend[k] > 0 ||
		in.NiActivated[k] > 0 ||
		in.HetfrzImmersionTend[k] > 0 ||
		in.HetfrzContactTend[k] > 0 ||
		in.HetfrzDepositionTend[k] > 0 ||
		(c.rt.PrescribedCCN && in.Nccn[k] > 0)
}

// evaporateCloud moves all cloud water at level k to vapor.
func (c *Column) evaporateCloud(k int) {
	p := &c.Prog
	p.Qv[k] += p.Qc[k]
	p.Th[k] -= c.In.InvExner[k] * p.Qc[k] * LatVap / Cp
	p.Qc[k] = 0
	p.Nc[k] = 0
}

// evaporateRain moves all rain at level k to vapor.
func (c *Column) evaporateRain(k int) {
	p := &c.Prog
	p.Qv[k] += p.Qr[k]
	p.Th[k] -= c.In.InvExner[k] * p.Qr[k] * LatVap / Cp
	p.Qr[k] = 0
	p.Nr[k] = 0
}

// sublimateIce moves all ice at level k to vapor.
func (c *Column) sublimateIce(k int) {
	p := &c.Prog
	p.Qv[k] += p.Qi[k]
	p.Th[k] -= c.In.InvExner[k] * p.Qi[k] * (LatVap + LatIce) / Cp
	p.Qi[k] = 0
	p.Qm[k] = 0
	p.Ni[k] = 0
	p.Bm[k] = 0
}
