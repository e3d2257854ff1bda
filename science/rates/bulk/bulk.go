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

// Package bulk contains a library of two-moment bulk microphysical
// process rates for liquid and a single free ice category.
package bulk

import (
	"math"

	"github.com/spatialmodel/p3"
	"github.com/spatialmodel/p3/science/tables"
)

// Processes fulfils the github.com/spatialmodel/p3.Processes interface.
type Processes struct{}

// physical constants
const (
	rhoWater = p3.RhoWater
	pi       = math.Pi

	cloudMassFactor = pi / 6 * rhoWater // mass of a drop is cloudMassFactor*D^3

	muRain = 1. // rain gamma shape parameter

	dropletMass   = 4. / 3. * pi * rhoWater * 1e-18  // kg, mass of a newly activated droplet (1 μm radius)
	iceNucMass    = 4. / 3. * pi * p3.RhoIce * 1e-18 // kg, mass of a newly nucleated ice crystal
	autoconvMass  = 4. / 3. * pi * rhoWater * 25e-6 * 25e-6 * 25e-6
	shedDropCount = 1.923e6 // drops per kg of shed water (1 mm diameter)

	thermalConductivity = 2.4e-2 // W/m/K
	iceNucTemp          = p3.TZero - 15
	iceNucSupersat      = 0.05
	biggFreezeTemp      = p3.TZero - 4
	biggA               = 0.66  // 1/K
	biggB               = 100.  // 1/m3/s
	maxIceNucNumber     = 100e3 // #/m3
)

// gamma returns Γ(x).
func gamma(x float64) float64 { return math.Gamma(x) }

// diffusivity returns the diffusivity of water vapor in air [m2/s].
func diffusivity(t, p float64) float64 {
	return 8.794e-5 * math.Pow(t, 1.81) / p
}

// thermo returns the psychrometric correction for growth by vapor
// diffusion, using the latent heat lat and saturation qvs.
func thermo(t, qvs, lat float64) float64 {
	return 1 + lat*lat*qvs/(p3.Cp*p3.Rv*t*t)
}

// CloudDSD sets the gamma size distribution of cloud droplets following
// Martin et al. (1994). If the mean droplet size is outside of 1–60 μm,
// the droplet number is adjusted to bring it back within bounds.
func (Processes) CloudDSD(l *p3.Level) {
	nc := math.Max(l.Nc, 0)
	mu := 0.0005714*(nc*l.Rho*1e-6) + 0.2714
	mu = 1/(mu*mu) - 1
	mu = math.Max(2, math.Min(15, mu))
	g := (mu + 3) * (mu + 2) * (mu + 1)

	lam := math.Cbrt(cloudMassFactor * nc * g / l.Qc)
	lamMin, lamMax := (mu+1)/60e-6, (mu+1)/1e-6
	if lam < lamMin || lam > lamMax {
		lam = math.Max(lamMin, math.Min(lamMax, lam))
		nc = lam * lam * lam * l.Qc / (cloudMassFactor * g)
	}
	l.Nc = nc
	l.Cloud = p3.CloudDSD{
		Mu:        mu,
		Nu:        mu,
		Lam:       lam,
		Cdist:     nc * (mu + 1) / lam,
		Cdist1:    nc / gamma(mu+1),
		EffRadius: 0.5 * (mu + 3) / lam,
	}
}

// RainDSD sets the gamma size distribution of rain. If the mean drop
// size is outside of the allowed range, the rain number is adjusted.
func (Processes) RainDSD(l *p3.Level) {
	nr := math.Max(l.Nr, 0)
	mu := muRain
	g := (mu + 3) * (mu + 2) * (mu + 1)
	lam := math.Cbrt(cloudMassFactor * nr * g / l.Qr)
	lamMin, lamMax := (mu+1)*1250, (mu+1)*1e5
	if lam < lamMin || lam > lamMax {
		lam = math.Max(lamMin, math.Min(lamMax, lam))
		nr = lam * lam * lam * l.Qr / (cloudMassFactor * g)
	}
	l.Nr = nr
	lam6 := math.Pow(lam, 6)
	l.Rain = p3.RainDSD{
		Mu:        mu,
		Lam:       lam,
		Logn0:     math.Log(nr) + (mu+1)*math.Log(lam) - math.Log(gamma(mu+1)),
		Cdist:     nr / gamma(mu+1),
		EffRadius: 1.5 / lam,
		Ze:        l.Rho * nr * (mu + 6) * (mu + 5) * (mu + 4) * g / lam6,
	}
}

// IceProperties looks up the bulk properties of ice. The mean particle
// mass is kept within the range of the tables by adjusting the number,
// and the rime mass and volume are made consistent with the total mass.
func (Processes) IceProperties(l *p3.Level) {
	tab := l.Tables
	mMin, mMax := math.Pow(10, tables.IceLogMassMin), math.Pow(10, tables.IceLogMassMax)
	if !(l.Ni > 0) || l.Qi/l.Ni < mMin || l.Qi/l.Ni > mMax {
		m := mMax
		if l.Ni > 0 {
			m = math.Max(mMin, math.Min(mMax, l.Qi/l.Ni))
		}
		l.Ni = l.Qi / m
	}
	l.Qm = math.Max(0, math.Min(l.Qm, l.Qi))
	rhoRime := 400.
	if l.Bm > 0 && l.Qm > 0 {
		rhoRime = math.Max(p3.RhoRimMin, math.Min(p3.RhoRimMax, l.Qm/l.Bm))
	}
	l.Bm = l.Qm / rhoRime

	logm := math.Log10(l.Qi / l.Ni)
	fr := l.Qm / l.Qi
	ice := p3.IceProps{
		RhoRime:   rhoRime,
		Frime:     fr,
		Vm:        tab.IceVm.At(logm, fr) * l.Rhofaci,
		Vn:        tab.IceVn.At(logm, fr) * l.Rhofaci,
		Ze:        tab.IceZeN.At(logm, fr) * l.Ni * l.Rho,
		EffRadius: tab.IceReff.At(logm, fr),
		Dmean:     tab.IceDmean.At(logm, fr),
		Rho:       tab.IceRho.At(logm, fr),
		Cap:       tab.IceCap.At(logm, fr),
		Collect:   tab.IceCollect.At(logm, fr) * l.Rhofaci,
	}
	l.Ice = ice
}

// CloudFallSpeed returns the Stokes fall speed, V = acn D^2, averaged
// over the gamma distribution.
func (Processes) CloudFallSpeed(l *p3.Level) (vm, vn float64) {
	mu, lam := l.Cloud.Mu, l.Cloud.Lam
	if !(lam > 0) {
		return 0, 0
	}
	vm = l.Acn * (mu + 5) * (mu + 4) / (lam * lam)
	vn = l.Acn * (mu + 2) * (mu + 1) / (lam * lam)
	return vm, vn
}

// RainFallSpeed looks up the rain fall speeds.
func (Processes) RainFallSpeed(l *p3.Level) (vm, vn float64) {
	if !(l.Rain.Lam > 0) {
		return 0, 0
	}
	x, y := l.Rain.Mu, math.Log(l.Rain.Lam)
	return l.Tables.RainVm.At(x, y) * l.Rhofacr, l.Tables.RainVn.At(x, y) * l.Rhofacr
}
