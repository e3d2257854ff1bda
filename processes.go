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

import "github.com/spatialmodel/p3/science/tables"

// Processes is an interface for libraries of microphysical process rates.
// All methods operate on the in-cloud state of a single level and must be
// safe for concurrent use.
type Processes interface {
	// CloudDSD sets l.Cloud from the in-cloud cloud mass and number,
	// adjusting l.Nc if the mean droplet size is out of bounds.
	CloudDSD(l *Level)

	// RainDSD sets l.Rain, adjusting l.Nr if the mean drop size is out
	// of bounds.
	RainDSD(l *Level)

	// IceProperties sets l.Ice from the lookup tables, adjusting
	// l.Ni, l.Qm and l.Bm to be consistent with l.Qi.
	IceProperties(l *Level)

	// CloudFallSpeed returns the density-corrected mass- and
	// number-weighted fall speeds of cloud droplets [m/s].
	CloudFallSpeed(l *Level) (vm, vn float64)

	// RainFallSpeed returns the density-corrected mass- and
	// number-weighted fall speeds of rain [m/s].
	RainFallSpeed(l *Level) (vm, vn float64)

	// The remaining methods calculate in-cloud process rates and
	// store them in r.
	DropletActivation(l *Level, r *Rates)
	IceNucleation(l *Level, r *Rates)
	VaporDeposition(l *Level, r *Rates)
	RainEvaporation(l *Level, r *Rates)
	Autoconversion(l *Level, r *Rates)
	Accretion(l *Level, r *Rates)
	SelfCollection(l *Level, r *Rates)
	IceCollection(l *Level, r *Rates)
	HeterogeneousFreezing(l *Level, r *Rates)
	Melting(l *Level, r *Rates)
	Bergeron(l *Level, r *Rates)
}

// Saturation calculates saturation vapor mixing ratios.
type Saturation interface {
	// QvSat returns the saturation mixing ratio [kg/kg] at temperature
	// t [K] and pressure p [Pa], over ice if ice is true and t is below
	// freezing, and over liquid otherwise.
	QvSat(t, p float64, ice bool) float64
}

// Level is the state of one level as seen by a Processes
// implementation. Hydrometeor values are in-cloud.
type Level struct {
	T, Pres, Rho, InvRho float64
	Qv, QvSatL, QvSatI   float64
	SupersatL, SupersatI float64 // qv/qv_sat - 1
	Rhofacr, Rhofaci     float64 // air density corrections to fall speed
	Acn                  float64 // Stokes fall speed coefficient for cloud

	Qc, Nc, Qr, Nr, Qi, Ni, Qm, Bm float64

	CldFracL, CldFracR, CldFracI float64

	Cloud CloudDSD
	Rain  RainDSD
	Ice   IceProps

	NcNuceatTend, Nccn, NiActivated, InvQcRelvar     float64
	HetfrzImmersion, HetfrzContact, HetfrzDeposition float64

	Dt                       float64
	PredictNc, PrescribedCCN bool

	Tables *tables.Bundle
}

// CloudDSD holds the gamma size distribution parameters of cloud droplets.
type CloudDSD struct {
	Mu, Nu, Lam, Cdist, Cdist1 float64
	EffRadius                  float64 // m
}

// RainDSD holds the gamma size distribution parameters of rain.
type RainDSD struct {
	Mu, Lam, Logn0, Cdist float64
	EffRadius             float64 // m
	Ze                    float64 // reflectivity [m6/m3]
}

// IceProps holds bulk ice properties.
type IceProps struct {
	RhoRime   float64 // rime density [kg/m3]
	Frime     float64 // rime mass fraction [-]
	Vm, Vn    float64 // density-corrected fall speeds [m/s]
	Ze        float64 // reflectivity [m6/m3]
	EffRadius float64 // m
	Dmean     float64 // mean diameter [m]
	Rho       float64 // bulk density [kg/m3]
	Cap       float64 // capacitance per particle [m]
	Collect   float64 // collection kernel per particle [m3/s]
}

// Rates holds in-cloud process rates: mass rates in kg/kg/s and number
// rates in #/kg/s.
type Rates struct {
	QcNuceat, NcNuceat           float64 // droplet activation
	Qv2QiNucleat, NiNucleat      float64 // ice nucleation
	Qv2QiVapdep, Qi2QvSublim     float64 // vapor deposition and sublimation
	NiSublim                     float64
	Qr2QvEvap, NrEvap            float64 // rain evaporation
	Qc2QrAutoconv, NcAutoconv    float64 // autoconversion
	NrAutoconv                   float64
	Qc2QrAccret, NcAccret        float64 // accretion of cloud by rain
	NcSelfcollect, NrSelfcollect float64
	NiSelfcollect                float64
	Qc2QiCollect, NcCollect      float64 // collection of cloud by ice
	Qr2QiCollect, NrCollect      float64 // collection of rain by ice
	Qc2QrIceShed, NrShed         float64 // shedding of collected cloud as rain
	RhoRimeCloud, RhoRimeRain    float64 // density of new rime [kg/m3]
	Qc2QiHeteroFreeze            float64 // heterogeneous freezing of cloud
	Nc2NiImmersFreeze            float64
	Qr2QiImmersFreeze            float64 // immersion freezing of rain
	Nr2NiImmersFreeze            float64
	Qi2QrMelt, Ni2NrMelt         float64 // melting
	Qc2QiBerg                    float64 // Bergeron process
}
