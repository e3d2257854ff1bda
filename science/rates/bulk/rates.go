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

package bulk

import (
	"math"

	"github.com/spatialmodel/p3"
)

// DropletActivation calculates activation of cloud droplets. With
// prescribed CCN, droplets are activated up to the CCN number in
// supersaturated air; otherwise the tendency from the aerosol model is
// used.
func (Processes) DropletActivation(l *p3.Level, r *p3.Rates) {
	if !l.PredictNc {
		return
	}
	var n float64
	if l.PrescribedCCN {
		if l.SupersatL > 0 && l.Nccn > l.Nc {
			n = (l.Nccn - l.Nc) / l.Dt
		}
	} else {
		n = math.Max(0, l.NcNuceatTend)
	}
	if n == 0 {
		return
	}
	q := n * dropletMass
	if excess := math.Max(0, l.Qv-l.QvSatL) / l.Dt; q > excess {
		if excess == 0 {
			q = 0
		} else {
			n *= excess / q
			q = excess
		}
	}
	r.NcNuceat = n
	r.QcNuceat = q
}

// IceNucleation calculates deposition and condensation-freezing
// nucleation of new ice crystals in air that is supersaturated with
// respect to ice. The number of ice nuclei comes from the aerosol model
// when droplet number is predicted, and from Cooper (1986) otherwise.
func (Processes) IceNucleation(l *p3.Level, r *p3.Rates) {
	if l.T < p3.TZero {
		r.NiNucleat += math.Max(0, l.HetfrzDeposition)
	}
	if l.T < iceNucTemp && l.SupersatI >= iceNucSupersat {
		var target float64
		if l.PredictNc {
			target = l.NiActivated
		} else {
			target = math.Min(5*math.Exp(0.304*(p3.TZero-l.T)), maxIceNucNumber) * l.InvRho
		}
		r.NiNucleat += math.Max(0, target-l.Ni) / l.Dt
	}
	if r.NiNucleat == 0 {
		return
	}
	r.Qv2QiNucleat = math.Min(r.NiNucleat*iceNucMass, math.Max(0, l.Qv-l.QvSatI)/l.Dt)
	if r.Qv2QiNucleat == 0 {
		r.NiNucleat = 0
	}
}

// VaporDeposition calculates growth of ice by vapor deposition and loss
// by sublimation.
func (Processes) VaporDeposition(l *p3.Level, r *p3.Rates) {
	if l.Qi < p3.QSmall {
		return
	}
	ab := thermo(l.T, l.QvSatI, p3.LatVap+p3.LatIce)
	rate := 4 * pi * l.Ice.Cap * l.Ni * l.Rho * diffusivity(l.T, l.Pres) * (l.Qv - l.QvSatI) / ab
	if rate > 0 {
		r.Qv2QiVapdep = math.Min(rate, (l.Qv-l.QvSatI)/(ab*l.Dt))
	} else if rate < 0 {
		r.Qi2QvSublim = math.Min(-rate, l.Qi/l.Dt)
		r.NiSublim = r.Qi2QvSublim * l.Ni / l.Qi
	}
}

// RainEvaporation calculates evaporation of rain in subsaturated air.
func (Processes) RainEvaporation(l *p3.Level, r *p3.Rates) {
	if l.Qr < p3.QSmall || l.SupersatL >= 0 || !(l.Rain.Lam > 0) {
		return
	}
	ab := thermo(l.T, l.QvSatL, p3.LatVap)
	deficit := l.QvSatL - l.Qv
	rate := 2 * pi * l.Nr * (l.Rain.Mu + 1) / l.Rain.Lam * l.Rho * diffusivity(l.T, l.Pres) * deficit / ab
	r.Qr2QvEvap = math.Min(rate, math.Min(l.Qr/l.Dt, deficit/(ab*l.Dt)))
	r.NrEvap = r.Qr2QvEvap * l.Nr / l.Qr
}

// subgridEnhancement returns the factor by which a process rate
// proportional to qc^p increases when cloud water has a gamma-distributed
// subgrid variability with the given inverse relative variance.
func subgridEnhancement(invRelvar, p float64) float64 {
	nu := math.Max(0.1, math.Min(10, invRelvar))
	return gamma(nu+p) / (gamma(nu) * math.Pow(nu, p))
}

// Autoconversion calculates conversion of cloud water to rain following
// Khairoutdinov and Kogan (2000).
func (Processes) Autoconversion(l *p3.Level, r *p3.Rates) {
	if l.Qc < 1e-8 {
		return
	}
	ncm3 := math.Max(l.Nc*l.Rho*1e-6, 1) // #/cm3
	r.Qc2QrAutoconv = subgridEnhancement(l.InvQcRelvar, 2.47) * 1350 *
		math.Pow(l.Qc, 2.47) * math.Pow(ncm3, -1.79)
	r.NrAutoconv = r.Qc2QrAutoconv / autoconvMass
	r.NcAutoconv = r.Qc2QrAutoconv * l.Nc / l.Qc
}

// Accretion calculates collection of cloud water by rain following
// Khairoutdinov and Kogan (2000).
func (Processes) Accretion(l *p3.Level, r *p3.Rates) {
	if l.Qc < p3.QSmall || l.Qr < p3.QSmall {
		return
	}
	r.Qc2QrAccret = subgridEnhancement(l.InvQcRelvar, 1.15) * 67 * math.Pow(l.Qc*l.Qr, 1.15)
	r.NcAccret = r.Qc2QrAccret * l.Nc / l.Qc
}

// SelfCollection calculates the loss of cloud droplet, rain drop and ice
// crystal number by collisions within each species. Rain follows
// Seifert and Beheng (2001) with breakup of large drops.
func (Processes) SelfCollection(l *p3.Level, r *p3.Rates) {
	if l.PredictNc && l.Qc >= p3.QSmall {
		const kc = 9.44e9 // m3/kg2/s
		nu := l.Cloud.Nu
		r.NcSelfcollect = kc * (nu + 2) / (nu + 1) * l.Rho * l.Qc * l.Qc
	}
	if l.Qr >= p3.QSmall && l.Rain.Lam > 0 {
		dr := (l.Rain.Mu + 1) / l.Rain.Lam // mean diameter
		breakup := 1.
		if dr >= 280e-6 {
			breakup = 2 - math.Exp(2300*(dr-280e-6))
		}
		r.NrSelfcollect = math.Max(0, 5.78*breakup*l.Nr*l.Qr*l.Rho)
	}
	if l.Qi >= 1e-8 && l.T < p3.TZero {
		eii := 0.1 + 0.9*math.Max(0, math.Min(1, (l.T-253.15)/20))
		r.NiSelfcollect = 0.5 * eii * l.Ice.Collect * l.Ni * l.Ni * l.Rho
	}
}

// IceCollection calculates collection of cloud water and rain by ice.
// Below freezing the collected liquid becomes rime; above freezing the
// collected cloud water is shed as rain drops.
func (Processes) IceCollection(l *p3.Level, r *p3.Rates) {
	if l.Qi < p3.QSmall {
		return
	}
	k := l.Ice.Collect * l.Ni * l.Rho
	if l.Qc >= p3.QSmall {
		q, n := k*l.Qc, k*l.Nc
		if l.T < p3.TZero {
			r.Qc2QiCollect, r.NcCollect = q, n
			r.RhoRimeCloud = rimeDensity(l)
		} else {
			r.Qc2QrIceShed, r.NcCollect = q, n
			r.NrShed = q * shedDropCount
		}
	}
	if l.Qr >= p3.QSmall && l.T < p3.TZero {
		r.Qr2QiCollect, r.NrCollect = k*l.Qr, k*l.Nr
		r.RhoRimeRain = p3.RhoRimMax
	}
}

// rimeDensity returns the density of rime formed from cloud droplets
// following Cober and List (1993).
func rimeDensity(l *p3.Level) float64 {
	tc := math.Min(-0.001, l.T-p3.TZero)
	dc := 2 * l.Cloud.EffRadius
	ri := -(0.5e6 * dc) * l.Ice.Vm / tc
	ri = math.Max(1, math.Min(12, ri))
	if ri <= 8 {
		return (0.051 + 0.114*ri - 0.0055*ri*ri) * 1000
	}
	return 611.8 + (ri-8)*(p3.RhoRimMax-611.8)/4
}

// HeterogeneousFreezing calculates immersion and contact freezing of cloud
// droplets and immersion freezing of rain. Tendencies from the aerosol
// model are used for cloud droplets when they are available; otherwise
// freezing follows Bigg (1953).
func (Processes) HeterogeneousFreezing(l *p3.Level, r *p3.Rates) {
	if l.T >= p3.TZero {
		return
	}
	useAerosol := l.PredictNc && (l.HetfrzImmersion > 0 || l.HetfrzContact > 0)
	if l.Qc >= p3.QSmall && l.Nc > 0 {
		var n float64
		if useAerosol {
			n = l.HetfrzImmersion + l.HetfrzContact
		} else if l.T < biggFreezeTemp {
			n = l.Nc * bigg(l.T, l.Qc/(l.Nc*rhoWater))
		}
		n = math.Min(n, l.Nc/l.Dt)
		r.Nc2NiImmersFreeze = n
		r.Qc2QiHeteroFreeze = math.Min(n*l.Qc/l.Nc, l.Qc/l.Dt)
	}
	if l.Qr >= p3.QSmall && l.Nr > 0 && l.T < biggFreezeTemp {
		n := math.Min(l.Nr*bigg(l.T, l.Qr/(l.Nr*rhoWater)), l.Nr/l.Dt)
		r.Nr2NiImmersFreeze = n
		r.Qr2QiImmersFreeze = math.Min(n*l.Qr/l.Nr, l.Qr/l.Dt)
	}
}

// bigg returns the freezing probability per unit time [1/s] of a drop
// with volume v [m3] at temperature t.
func bigg(t, v float64) float64 {
	return biggB * v * math.Exp(biggA*(p3.TZero-t))
}

// Melting calculates melting of ice above freezing.
func (Processes) Melting(l *p3.Level, r *p3.Rates) {
	if l.Qi < p3.QSmall || l.T <= p3.TZero {
		return
	}
	rate := 4 * pi * l.Ice.Cap * l.Ni * thermalConductivity * (l.T - p3.TZero) / p3.LatIce
	r.Qi2QrMelt = math.Min(rate, l.Qi/l.Dt)
	r.Ni2NrMelt = r.Qi2QrMelt * l.Ni / l.Qi
}

// Bergeron calculates the transfer of cloud water to ice through
// evaporation of droplets and deposition of the vapor onto ice in mixed
// phase cloud that is subsaturated with respect to liquid.
func (Processes) Bergeron(l *p3.Level, r *p3.Rates) {
	if l.Qc < p3.QSmall || l.Qi < p3.QSmall || l.T >= p3.TZero {
		return
	}
	ab := thermo(l.T, l.QvSatI, p3.LatVap+p3.LatIce)
	deficit := math.Max(0, l.QvSatL-math.Max(l.Qv, l.QvSatI))
	rate := 4 * pi * l.Ice.Cap * l.Ni * l.Rho * diffusivity(l.T, l.Pres) * deficit / ab
	r.Qc2QiBerg = math.Min(rate, l.Qc/l.Dt)
}
