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

// Part2 calculates microphysical process rates at every level that holds
// hydrometeors or can nucleate them, and applies them to the prognostic
// state. Afterwards it checks whether any hydrometeors remain; if not,
// the task ends.
//
// Number concentrations are not clipped here and may be slightly
// negative when Part2 returns. Sedimentation removes them.
func Part2(c *Column) error {
	s := &c.s
	c.hydrometeorsPresent = false
	for k := 0; k < c.nk; k++ {
		present := s.qcIncld[k] >= QSmall || s.qrIncld[k] >= QSmall || s.qiIncld[k] >= QSmall
		if !present && !c.canNucleate(k) {
			continue
		}

		l := c.level(k)
		c.sizeDistributions(k, &l)

		var r Rates
		proc := c.proc
		proc.DropletActivation(&l, &r)
		proc.IceNucleation(&l, &r)
		proc.VaporDeposition(&l, &r)
		proc.RainEvaporation(&l, &r)
		proc.Autoconversion(&l, &r)
		proc.Accretion(&l, &r)
		proc.SelfCollection(&l, &r)
		proc.IceCollection(&l, &r)
		proc.HeterogeneousFreezing(&l, &r)
		proc.Melting(&l, &r)
		proc.Bergeron(&l, &r)

		r.toGridMean(&l)
		c.limitSinks(k, &r)
		c.applyRates(k, &r)

		if c.Prog.Qc[k] < QSmall {
			c.evaporateCloud(k)
		} else {
			c.hydrometeorsPresent = true
		}
		if c.Prog.Qr[k] < QSmall {
			c.evaporateRain(k)
		} else {
			c.hydrometeorsPresent = true
		}
		if c.Prog.Qi[k] < QSmall {
			c.sublimateIce(k)
		} else {
			c.hydrometeorsPresent = true
		}
		s.T[k] = c.Prog.Th[k] * s.exner[k]
		c.inCloud(k)
		c.storeDSD(k, &l)
	}
	if !c.hydrometeorsPresent {
		c.done = true
	}
	return nil
}

// sizeDistributions calculates the size distributions of the species
// present at level k and stores the adjusted numbers and rime values
// back into the grid-mean state.
func (c *Column) sizeDistributions(k int, l *Level) {
	p := &c.Prog
	if l.Qc >= QSmall {
		c.proc.CloudDSD(l)
		if c.rt.PredictNc {
			p.Nc[k] = l.Nc * l.CldFracL
		}
	}
	if l.Qr >= QSmall {
		c.proc.RainDSD(l)
		p.Nr[k] = l.Nr * l.CldFracR
	}
	if l.Qi >= QSmall {
		c.proc.IceProperties(l)
		p.Ni[k] = l.Ni * l.CldFracI
		p.Qm[k] = l.Qm * l.CldFracI
		p.Bm[k] = l.Bm * l.CldFracI
	}
}

// toGridMean converts in-cloud rates to grid-mean rates by scaling each
// one by the fraction of the grid box where the process can occur.
func (r *Rates) toGridMean(l *Level) {
	cl, cr, ci := l.CldFracL, l.CldFracR, l.CldFracI
	il := math.Min(ci, cl)
	ir := math.Min(ci, cr)
	lr := math.Min(cl, cr)

	r.QcNuceat *= cl
	r.NcNuceat *= cl
	r.Qc2QrAutoconv *= cl
	r.NcAutoconv *= cl
	r.NrAutoconv *= cl
	r.NcSelfcollect *= cl
	r.Qc2QiHeteroFreeze *= cl
	r.Nc2NiImmersFreeze *= cl

	r.Qc2QrAccret *= lr
	r.NcAccret *= lr

	r.Qr2QvEvap *= cr
	r.NrEvap *= cr
	r.NrSelfcollect *= cr
	r.Qr2QiImmersFreeze *= cr
	r.Nr2NiImmersFreeze *= cr

	r.Qv2QiNucleat *= ci
	r.NiNucleat *= ci
	r.Qv2QiVapdep *= ci
	r.Qi2QvSublim *= ci
	r.NiSublim *= ci
	r.NiSelfcollect *= ci
	r.Qi2QrMelt *= ci
	r.Ni2NrMelt *= ci

	r.Qc2QiCollect *= il
	r.NcCollect *= il
	r.Qc2QrIceShed *= il
	r.NrShed *= il
	r.Qc2QiBerg *= il

	r.Qr2QiCollect *= ir
	r.NrCollect *= ir
}

// scale multiplies every value pointed to by vs by ratio.
func scale(ratio float64, vs ...*float64) {
	for _, v := range vs {
		*v *= ratio
	}
}

// limitSinks scales the sink rates of each species so that no species
// loses more than it has plus what it gains during the time step.
func (c *Column) limitSinks(k int, r *Rates) {
	p, dt := &c.Prog, c.dt

	sinks := (r.Qc2QrAutoconv + r.Qc2QrAccret + r.Qc2QiCollect + r.Qc2QrIceShed +
		r.Qc2QiHeteroFreeze + r.Qc2QiBerg) * dt
	sources := p.Qc[k] + r.QcNuceat*dt
	if sinks > sources && sinks >= 1e-20 {
		scale(sources/sinks, &r.Qc2QrAutoconv, &r.Qc2QrAccret, &r.Qc2QiCollect,
			&r.Qc2QrIceShed, &r.Qc2QiHeteroFreeze, &r.Qc2QiBerg)
	}

	sinks = (r.Qr2QvEvap + r.Qr2QiCollect + r.Qr2QiImmersFreeze) * dt
	sources = p.Qr[k] + (r.Qc2QrAutoconv+r.Qc2QrAccret+r.Qi2QrMelt+r.Qc2QrIceShed)*dt
	if sinks > sources && sinks >= 1e-20 {
		scale(sources/sinks, &r.Qr2QvEvap, &r.Qr2QiCollect, &r.Qr2QiImmersFreeze)
	}

	sinks = (r.Qi2QvSublim + r.Qi2QrMelt) * dt
	sources = p.Qi[k] + (r.Qv2QiVapdep+r.Qv2QiNucleat+r.Qc2QiCollect+r.Qr2QiCollect+
		r.Qc2QiHeteroFreeze+r.Qr2QiImmersFreeze+r.Qc2QiBerg)*dt
	if sinks > sources && sinks >= 1e-20 {
		scale(sources/sinks, &r.Qi2QvSublim, &r.Qi2QrMelt)
	}

	if c.rt.PredictNc {
		sinks = (r.NcAccret + r.NcCollect + r.NcSelfcollect + r.NcAutoconv + r.Nc2NiImmersFreeze) * dt
		sources = p.Nc[k] + r.NcNuceat*dt
		if sinks > sources && sinks >= 1e-20 {
			scale(sources/sinks, &r.NcAccret, &r.NcCollect, &r.NcSelfcollect,
				&r.NcAutoconv, &r.Nc2NiImmersFreeze)
		}
	}

	sinks = (r.NrSelfcollect + r.NrEvap + r.NrCollect + r.Nr2NiImmersFreeze) * dt
	sources = p.Nr[k] + (r.NrAutoconv+r.Ni2NrMelt+r.NrShed)*dt
	if sinks > sources && sinks >= 1e-20 {
		scale(sources/sinks, &r.NrSelfcollect, &r.NrEvap, &r.NrCollect, &r.Nr2NiImmersFreeze)
	}

	sinks = (r.NiSublim + r.Ni2NrMelt + r.NiSelfcollect) * dt
	sources = p.Ni[k] + (r.NiNucleat+r.Nc2NiImmersFreeze+r.Nr2NiImmersFreeze)*dt
	if sinks > sources && sinks >= 1e-20 {
		scale(sources/sinks, &r.NiSublim, &r.Ni2NrMelt, &r.NiSelfcollect)
	}
}

// rimeDensity bounds the density of newly collected rime.
func rimeDensity(rho float64) float64 {
	if rho <= 0 {
		return 400
	}
	return math.Max(RhoRimMin, math.Min(RhoRimMax, rho))
}

// applyRates updates the prognostic state at level k with the grid-mean
// rates in r and records them in the history and diagnostic outputs.
func (c *Column) applyRates(k int, r *Rates) {
	p, out, h, dt := &c.Prog, &c.Out, &c.Hist, c.dt

	freezing := r.Qc2QiCollect + r.Qr2QiCollect + r.Qc2QiHeteroFreeze +
		r.Qr2QiImmersFreeze + r.Qc2QiBerg
	rimeGain := r.Qc2QiCollect + r.Qr2QiCollect + r.Qc2QiHeteroFreeze + r.Qr2QiImmersFreeze
	rimeVolGain := r.Qc2QiCollect/rimeDensity(r.RhoRimeCloud) +
		r.Qr2QiCollect/rimeDensity(r.RhoRimeRain) +
		(r.Qc2QiHeteroFreeze+r.Qr2QiImmersFreeze)/RhoRimMax

	// Rime is lost in proportion to the loss of total ice.
	var lossFrac float64
	if p.Qi[k] >= QSmall {
		lossFrac = math.Min(1, (r.Qi2QvSublim+r.Qi2QrMelt)*dt/p.Qi[k])
	}

	p.Qc[k] += (r.QcNuceat - r.Qc2QrAutoconv - r.Qc2QrAccret - r.Qc2QiCollect -
		r.Qc2QrIceShed - r.Qc2QiHeteroFreeze - r.Qc2QiBerg) * dt
	p.Qr[k] += (r.Qc2QrAutoconv + r.Qc2QrAccret + r.Qi2QrMelt + r.Qc2QrIceShed -
		r.Qr2QvEvap - r.Qr2QiCollect - r.Qr2QiImmersFreeze) * dt
	p.Qm[k] += rimeGain*dt - p.Qm[k]*lossFrac
	p.Bm[k] += rimeVolGain*dt - p.Bm[k]*lossFrac
	p.Qi[k] += (r.Qv2QiVapdep + r.Qv2QiNucleat + freezing - r.Qi2QvSublim - r.Qi2QrMelt) * dt
	p.Qv[k] += (r.Qr2QvEvap + r.Qi2QvSublim - r.Qv2QiVapdep - r.Qv2QiNucleat - r.QcNuceat) * dt
	p.Th[k] += c.In.InvExner[k] * dt / Cp * ((r.QcNuceat-r.Qr2QvEvap)*LatVap +
		(r.Qv2QiVapdep+r.Qv2QiNucleat-r.Qi2QvSublim)*(LatVap+LatIce) +
		(freezing-r.Qi2QrMelt)*LatIce)

	if c.rt.PredictNc {
		p.Nc[k] += (r.NcNuceat - r.NcAccret - r.NcCollect - r.NcSelfcollect -
			r.NcAutoconv - r.Nc2NiImmersFreeze) * dt
	}
	p.Nr[k] += (r.NrAutoconv + r.Ni2NrMelt + r.NrShed - r.NrSelfcollect - r.NrEvap -
		r.NrCollect - r.Nr2NiImmersFreeze) * dt
	p.Ni[k] += (r.NiNucleat + r.Nc2NiImmersFreeze + r.Nr2NiImmersFreeze - r.NiSublim -
		r.Ni2NrMelt - r.NiSelfcollect) * dt

	h.Qr2QvEvap[k] += r.Qr2QvEvap
	h.Qi2QvSublim[k] += r.Qi2QvSublim
	h.Qc2QrAccret[k] += r.Qc2QrAccret
	h.Qc2QrAutoconv[k] += r.Qc2QrAutoconv
	h.Qv2QiVapdep[k] += r.Qv2QiVapdep
	h.Qc2QiBerg[k] += r.Qc2QiBerg
	h.Qc2QrIceShed[k] += r.Qc2QrIceShed
	h.Qc2QiCollect[k] += r.Qc2QiCollect
	h.Qr2QiCollect[k] += r.Qr2QiCollect
	h.Qc2QiHeteroFreeze[k] += r.Qc2QiHeteroFreeze
	h.Qr2QiImmersFreeze[k] += r.Qr2QiImmersFreeze
	h.Qi2QrMelt[k] += r.Qi2QrMelt
	h.VapLiqExchange[k] += r.QcNuceat - r.Qr2QvEvap
	h.VapIceExchange[k] += r.Qv2QiVapdep + r.Qv2QiNucleat - r.Qi2QvSublim
	h.LiqIceExchange[k] += freezing - r.Qi2QrMelt

	out.Qv2QiDeposTend[k] = r.Qv2QiVapdep + r.Qv2QiNucleat - r.Qi2QvSublim
	out.PrecipTotalTend[k] = r.Qc2QiCollect + r.Qc2QrAccret + r.Qc2QrAutoconv + r.Qc2QrIceShed
	out.Nevapr[k] = r.Qi2QvSublim + r.Qr2QvEvap
	c.s.qrEvapTend[k] = r.Qr2QvEvap
}
