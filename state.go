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

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
)

// Field is a named per-level variable with dimensions [column, level].
type Field struct {
	Name        string
	Description string
	Units       unit.Dimensions
	Data        *sparse.DenseArray
}

// Units used by the state variables.
var (
	mixingRatio     = unit.Dimless
	numberPerMass   = unit.Dimensions{unit.MassDim: -1}
	volumePerMass   = unit.Dimensions{unit.LengthDim: 3, unit.MassDim: -1}
	mixingRatioRate = unit.Dimensions{unit.TimeDim: -1}
	numberRate      = unit.Dimensions{unit.MassDim: -1, unit.TimeDim: -1}
)

// PrognosticState holds the fields advanced by the microphysics. Grid-mean
// values.
type PrognosticState struct {
	Qc, Nc *sparse.DenseArray // cloud liquid mass [kg/kg] and number [#/kg]
	Qr, Nr *sparse.DenseArray // rain mass and number
	Qi, Ni *sparse.DenseArray // total ice mass and number
	Qm     *sparse.DenseArray // rime ice mass [kg/kg]
	Bm     *sparse.DenseArray // rime ice volume [m3/kg]
	Qv     *sparse.DenseArray // water vapor [kg/kg]
	Th     *sparse.DenseArray // potential temperature [K]
}

// NewPrognosticState allocates a zeroed PrognosticState for nj columns
// of nk levels.
func NewPrognosticState(nj, nk int) *PrognosticState {
	p := new(PrognosticState)
	allocate(nj, nk, &p.Qc, &p.Nc, &p.Qr, &p.Nr, &p.Qi, &p.Qm, &p.Ni, &p.Bm, &p.Qv, &p.Th)
	return p
}

// Fields returns the variables in p.
func (p *PrognosticState) Fields() []Field {
	return []Field{
		{"qc", "cloud liquid mass mixing ratio", mixingRatio, p.Qc},
		{"nc", "cloud droplet number mixing ratio", numberPerMass, p.Nc},
		{"qr", "rain mass mixing ratio", mixingRatio, p.Qr},
		{"nr", "rain number mixing ratio", numberPerMass, p.Nr},
		{"qi", "total ice mass mixing ratio", mixingRatio, p.Qi},
		{"qm", "rime ice mass mixing ratio", mixingRatio, p.Qm},
		{"ni", "ice number mixing ratio", numberPerMass, p.Ni},
		{"bm", "rime ice volume mixing ratio", volumePerMass, p.Bm},
		{"qv", "water vapor mixing ratio", mixingRatio, p.Qv},
		{"th", "potential temperature", unit.Kelvin, p.Th},
	}
}

// PrognosticColumn is the view of one column of a PrognosticState.
type PrognosticColumn struct {
	Qc, Nc, Qr, Nr, Qi, Qm, Ni, Bm, Qv, Th []float64
}

func (p *PrognosticState) column(i, nk int) PrognosticColumn {
	return PrognosticColumn{
		Qc: col(p.Qc, i, nk), Nc: col(p.Nc, i, nk),
		Qr: col(p.Qr, i, nk), Nr: col(p.Nr, i, nk),
		Qi: col(p.Qi, i, nk), Qm: col(p.Qm, i, nk),
		Ni: col(p.Ni, i, nk), Bm: col(p.Bm, i, nk),
		Qv: col(p.Qv, i, nk), Th: col(p.Th, i, nk),
	}
}

// DiagnosticInputs holds read-only inputs.
type DiagnosticInputs struct {
	NcNuceatTend *sparse.DenseArray // droplet activation tendency [#/kg/s]
	Nccn         *sparse.DenseArray // prescribed CCN number [#/kg]
	NiActivated  *sparse.DenseArray // activated ice nuclei [#/kg]
	InvQcRelvar  *sparse.DenseArray // inverse relative variance of cloud water [-]

	CldFracI, CldFracL, CldFracR *sparse.DenseArray // cloud fractions [-]

	Pres     *sparse.DenseArray // pressure [Pa]
	Dz       *sparse.DenseArray // layer thickness [m]
	Dpres    *sparse.DenseArray // layer pressure thickness [Pa]
	InvExner *sparse.DenseArray // inverse exner function [-]
	QvPrev   *sparse.DenseArray // vapor at the previous step [kg/kg]
	TPrev    *sparse.DenseArray // temperature at the previous step [K]

	HetfrzImmersionTend  *sparse.DenseArray // [#/kg/s]
	HetfrzContactTend    *sparse.DenseArray // [#/kg/s]
	HetfrzDepositionTend *sparse.DenseArray // [#/kg/s]
}

// NewDiagnosticInputs allocates DiagnosticInputs with all cloud fractions
// and the inverse exner function set to one and everything else zero.
func NewDiagnosticInputs(nj, nk int) *DiagnosticInputs {
	in := new(DiagnosticInputs)
	allocate(nj, nk, &in.NcNuceatTend, &in.Nccn, &in.NiActivated, &in.InvQcRelvar,
		&in.CldFracI, &in.CldFracL, &in.CldFracR, &in.Pres, &in.Dz, &in.Dpres,
		&in.InvExner, &in.QvPrev, &in.TPrev, &in.HetfrzImmersionTend,
		&in.HetfrzContactTend, &in.HetfrzDepositionTend)
	for _, a := range []*sparse.DenseArray{in.CldFracI, in.CldFracL, in.CldFracR, in.InvExner, in.InvQcRelvar} {
		for i := range a.Elements {
			a.Elements[i] = 1
		}
	}
	return in
}

// Fields returns the variables in in.
func (in *DiagnosticInputs) Fields() []Field {
	return []Field{
		{"nc_nuceat_tend", "droplet activation tendency", numberRate, in.NcNuceatTend},
		{"nccn", "prescribed CCN number", numberPerMass, in.Nccn},
		{"ni_activated", "activated ice nuclei", numberPerMass, in.NiActivated},
		{"inv_qc_relvar", "inverse relative variance of cloud water", unit.Dimless, in.InvQcRelvar},
		{"cld_frac_i", "ice cloud fraction", unit.Dimless, in.CldFracI},
		{"cld_frac_l", "liquid cloud fraction", unit.Dimless, in.CldFracL},
		{"cld_frac_r", "rain fraction", unit.Dimless, in.CldFracR},
		{"pres", "pressure", unit.Pascal, in.Pres},
		{"dz", "layer thickness", unit.Meter, in.Dz},
		{"dpres", "layer pressure thickness", unit.Pascal, in.Dpres},
		{"inv_exner", "inverse exner function", unit.Dimless, in.InvExner},
		{"qv_prev", "vapor mixing ratio at the previous step", mixingRatio, in.QvPrev},
		{"t_prev", "temperature at the previous step", unit.Kelvin, in.TPrev},
		{"hetfrz_immersion_nucleation_tend", "immersion freezing tendency", numberRate, in.HetfrzImmersionTend},
		{"hetfrz_contact_nucleation_tend", "contact freezing tendency", numberRate, in.HetfrzContactTend},
		{"hetfrz_deposition_nucleation_tend", "deposition nucleation tendency", numberRate, in.HetfrzDepositionTend},
	}
}

// InputColumn is the view of one column of a DiagnosticInputs.
type InputColumn struct {
	NcNuceatTend, Nccn, NiActivated, InvQcRelvar                 []float64
	CldFracI, CldFracL, CldFracR                                 []float64
	Pres, Dz, Dpres, InvExner, QvPrev, TPrev                     []float64
	HetfrzImmersionTend, HetfrzContactTend, HetfrzDepositionTend []float64
}

func (in *DiagnosticInputs) column(i, nk int) InputColumn {
	return InputColumn{
		NcNuceatTend: col(in.NcNuceatTend, i, nk), Nccn: col(in.Nccn, i, nk),
		NiActivated: col(in.NiActivated, i, nk), InvQcRelvar: col(in.InvQcRelvar, i, nk),
		CldFracI: col(in.CldFracI, i, nk), CldFracL: col(in.CldFracL, i, nk),
		CldFracR: col(in.CldFracR, i, nk),
		Pres:     col(in.Pres, i, nk), Dz: col(in.Dz, i, nk), Dpres: col(in.Dpres, i, nk),
		InvExner: col(in.InvExner, i, nk), QvPrev: col(in.QvPrev, i, nk),
		TPrev:               col(in.TPrev, i, nk),
		HetfrzImmersionTend: col(in.HetfrzImmersionTend, i, nk),
		HetfrzContactTend:   col(in.HetfrzContactTend, i, nk),
		HetfrzDepositionTend: col(in.HetfrzDepositionTend, i, nk),
	}
}

// DiagnosticOutputs holds the diagnostic results of a step.
type DiagnosticOutputs struct {
	Qv2QiDeposTend        *sparse.DenseArray // net vapor to ice [kg/kg/s]
	DiagEffRadiusQc       *sparse.DenseArray // [m]
	DiagEffRadiusQi       *sparse.DenseArray // [m]
	DiagEffRadiusQr       *sparse.DenseArray // [m]
	RhoQi                 *sparse.DenseArray // bulk ice density [kg/m3]
	PrecipLiqFlux         *sparse.DenseArray // liquid precipitation flux [m/s]
	PrecipIceFlux         *sparse.DenseArray // ice precipitation flux [m/s]
	PrecipTotalTend       *sparse.DenseArray // precipitation production [kg/kg/s]
	Nevapr                *sparse.DenseArray // evaporation of precipitation [kg/kg/s]
	DiagEquivReflectivity *sparse.DenseArray // [dBZ]
	DiagVmQi              *sparse.DenseArray // ice mass-weighted fall speed [m/s]
	DiagDiamQi            *sparse.DenseArray // ice mean diameter [m]

	// Surface precipitation rates, one per column [m/s].
	PrecipLiqSurf, PrecipIceSurf []float64
}

// NewDiagnosticOutputs allocates DiagnosticOutputs.
func NewDiagnosticOutputs(nj, nk int) *DiagnosticOutputs {
	out := &DiagnosticOutputs{
		PrecipLiqSurf: make([]float64, nj),
		PrecipIceSurf: make([]float64, nj),
	}
	allocate(nj, nk, &out.Qv2QiDeposTend, &out.DiagEffRadiusQc, &out.DiagEffRadiusQi,
		&out.DiagEffRadiusQr, &out.RhoQi, &out.PrecipLiqFlux, &out.PrecipIceFlux,
		&out.PrecipTotalTend, &out.Nevapr, &out.DiagEquivReflectivity,
		&out.DiagVmQi, &out.DiagDiamQi)
	return out
}

// Fields returns the per-level variables in out.
func (out *DiagnosticOutputs) Fields() []Field {
	return []Field{
		{"qv2qi_depos_tend", "net vapor deposition onto ice", mixingRatioRate, out.Qv2QiDeposTend},
		{"diag_eff_radius_qc", "cloud droplet effective radius", unit.Meter, out.DiagEffRadiusQc},
		{"diag_eff_radius_qi", "ice effective radius", unit.Meter, out.DiagEffRadiusQi},
		{"diag_eff_radius_qr", "rain effective radius", unit.Meter, out.DiagEffRadiusQr},
		{"rho_qi", "bulk ice density", unit.KilogramPerMeter3, out.RhoQi},
		{"precip_liq_flux", "liquid precipitation flux", unit.MeterPerSecond, out.PrecipLiqFlux},
		{"precip_ice_flux", "ice precipitation flux", unit.MeterPerSecond, out.PrecipIceFlux},
		{"precip_total_tend", "total precipitation production", mixingRatioRate, out.PrecipTotalTend},
		{"nevapr", "evaporation of total precipitation", mixingRatioRate, out.Nevapr},
		{"diag_equiv_reflectivity", "equivalent radar reflectivity [dBZ]", unit.Dimless, out.DiagEquivReflectivity},
		{"diag_vm_qi", "ice mass-weighted fall speed", unit.MeterPerSecond, out.DiagVmQi},
		{"diag_diam_qi", "ice mean diameter", unit.Meter, out.DiagDiamQi},
	}
}

// OutputColumn is the view of one column of a DiagnosticOutputs.
type OutputColumn struct {
	Qv2QiDeposTend, DiagEffRadiusQc, DiagEffRadiusQi, DiagEffRadiusQr []float64
	RhoQi, PrecipLiqFlux, PrecipIceFlux, PrecipTotalTend, Nevapr      []float64
	DiagEquivReflectivity, DiagVmQi, DiagDiamQi                       []float64

	PrecipLiqSurf, PrecipIceSurf *float64
}

func (out *DiagnosticOutputs) column(i, nk int) OutputColumn {
	return OutputColumn{
		Qv2QiDeposTend:        col(out.Qv2QiDeposTend, i, nk),
		DiagEffRadiusQc:       col(out.DiagEffRadiusQc, i, nk),
		DiagEffRadiusQi:       col(out.DiagEffRadiusQi, i, nk),
		DiagEffRadiusQr:       col(out.DiagEffRadiusQr, i, nk),
		RhoQi:                 col(out.RhoQi, i, nk),
		PrecipLiqFlux:         col(out.PrecipLiqFlux, i, nk),
		PrecipIceFlux:         col(out.PrecipIceFlux, i, nk),
		PrecipTotalTend:       col(out.PrecipTotalTend, i, nk),
		Nevapr:                col(out.Nevapr, i, nk),
		DiagEquivReflectivity: col(out.DiagEquivReflectivity, i, nk),
		DiagVmQi:              col(out.DiagVmQi, i, nk),
		DiagDiamQi:            col(out.DiagDiamQi, i, nk),
		PrecipLiqSurf:         &out.PrecipLiqSurf[i],
		PrecipIceSurf:         &out.PrecipIceSurf[i],
	}
}

// HistoryOnly holds per-process exchange rates used for budget closure.
// All values are grid-mean rates [kg/kg/s].
type HistoryOnly struct {
	LiqIceExchange, VapLiqExchange, VapIceExchange *sparse.DenseArray

	Qr2QvEvap, Qi2QvSublim, Qc2QrAccret, Qc2QrAutoconv, Qv2QiVapdep *sparse.DenseArray
	Qc2QiBerg, Qc2QrIceShed, Qc2QiCollect, Qr2QiCollect             *sparse.DenseArray
	Qc2QiHeteroFreeze, Qr2QiImmersFreeze, Qi2QrMelt                 *sparse.DenseArray
	QcSed, QrSed, QiSed                                             *sparse.DenseArray
}

// NewHistoryOnly allocates a HistoryOnly.
func NewHistoryOnly(nj, nk int) *HistoryOnly {
	h := new(HistoryOnly)
	allocate(nj, nk, &h.LiqIceExchange, &h.VapLiqExchange, &h.VapIceExchange,
		&h.Qr2QvEvap, &h.Qi2QvSublim, &h.Qc2QrAccret, &h.Qc2QrAutoconv, &h.Qv2QiVapdep,
		&h.Qc2QiBerg, &h.Qc2QrIceShed, &h.Qc2QiCollect, &h.Qr2QiCollect,
		&h.Qc2QiHeteroFreeze, &h.Qr2QiImmersFreeze, &h.Qi2QrMelt,
		&h.QcSed, &h.QrSed, &h.QiSed)
	return h
}

// Fields returns the variables in h.
func (h *HistoryOnly) Fields() []Field {
	return []Field{
		{"liq_ice_exchange", "net liquid to ice", mixingRatioRate, h.LiqIceExchange},
		{"vap_liq_exchange", "net vapor to liquid", mixingRatioRate, h.VapLiqExchange},
		{"vap_ice_exchange", "net vapor to ice", mixingRatioRate, h.VapIceExchange},
		{"qr2qv_evap", "rain evaporation", mixingRatioRate, h.Qr2QvEvap},
		{"qi2qv_sublim", "ice sublimation", mixingRatioRate, h.Qi2QvSublim},
		{"qc2qr_accret", "accretion of cloud by rain", mixingRatioRate, h.Qc2QrAccret},
		{"qc2qr_autoconv", "autoconversion of cloud to rain", mixingRatioRate, h.Qc2QrAutoconv},
		{"qv2qi_vapdep", "vapor deposition onto ice", mixingRatioRate, h.Qv2QiVapdep},
		{"qc2qi_berg", "Bergeron process", mixingRatioRate, h.Qc2QiBerg},
		{"qc2qr_ice_shed", "shedding of collected cloud as rain", mixingRatioRate, h.Qc2QrIceShed},
		{"qc2qi_collect", "collection of cloud by ice", mixingRatioRate, h.Qc2QiCollect},
		{"qr2qi_collect", "collection of rain by ice", mixingRatioRate, h.Qr2QiCollect},
		{"qc2qi_hetero_freeze", "heterogeneous freezing of cloud", mixingRatioRate, h.Qc2QiHeteroFreeze},
		{"qr2qi_immers_freeze", "immersion freezing of rain", mixingRatioRate, h.Qr2QiImmersFreeze},
		{"qi2qr_melt", "ice melting", mixingRatioRate, h.Qi2QrMelt},
		{"qc_sed", "cloud sedimentation tendency", mixingRatioRate, h.QcSed},
		{"qr_sed", "rain sedimentation tendency", mixingRatioRate, h.QrSed},
		{"qi_sed", "ice sedimentation tendency", mixingRatioRate, h.QiSed},
	}
}

// HistoryColumn is the view of one column of a HistoryOnly.
type HistoryColumn struct {
	LiqIceExchange, VapLiqExchange, VapIceExchange                  []float64
	Qr2QvEvap, Qi2QvSublim, Qc2QrAccret, Qc2QrAutoconv, Qv2QiVapdep []float64
	Qc2QiBerg, Qc2QrIceShed, Qc2QiCollect, Qr2QiCollect             []float64
	Qc2QiHeteroFreeze, Qr2QiImmersFreeze, Qi2QrMelt                 []float64
	QcSed, QrSed, QiSed                                             []float64
}

func (h *HistoryOnly) column(i, nk int) HistoryColumn {
	return HistoryColumn{
		LiqIceExchange: col(h.LiqIceExchange, i, nk), VapLiqExchange: col(h.VapLiqExchange, i, nk),
		VapIceExchange: col(h.VapIceExchange, i, nk),
		Qr2QvEvap:      col(h.Qr2QvEvap, i, nk), Qi2QvSublim: col(h.Qi2QvSublim, i, nk),
		Qc2QrAccret: col(h.Qc2QrAccret, i, nk), Qc2QrAutoconv: col(h.Qc2QrAutoconv, i, nk),
		Qv2QiVapdep: col(h.Qv2QiVapdep, i, nk), Qc2QiBerg: col(h.Qc2QiBerg, i, nk),
		Qc2QrIceShed: col(h.Qc2QrIceShed, i, nk), Qc2QiCollect: col(h.Qc2QiCollect, i, nk),
		Qr2QiCollect: col(h.Qr2QiCollect, i, nk), Qc2QiHeteroFreeze: col(h.Qc2QiHeteroFreeze, i, nk),
		Qr2QiImmersFreeze: col(h.Qr2QiImmersFreeze, i, nk), Qi2QrMelt: col(h.Qi2QrMelt, i, nk),
		QcSed: col(h.QcSed, i, nk), QrSed: col(h.QrSed, i, nk), QiSed: col(h.QiSed, i, nk),
	}
}

func (h HistoryColumn) all() [][]float64 {
	return [][]float64{h.LiqIceExchange, h.VapLiqExchange, h.VapIceExchange,
		h.Qr2QvEvap, h.Qi2QvSublim, h.Qc2QrAccret, h.Qc2QrAutoconv, h.Qv2QiVapdep,
		h.Qc2QiBerg, h.Qc2QrIceShed, h.Qc2QiCollect, h.Qr2QiCollect,
		h.Qc2QiHeteroFreeze, h.Qr2QiImmersFreeze, h.Qi2QrMelt,
		h.QcSed, h.QrSed, h.QiSed}
}

// Runtime holds microphysics options that are constant during a call
// to Step.
type Runtime struct {
	// PredictNc specifies whether cloud droplet number is prognostic.
	// If false, it is set from a constant droplet concentration.
	PredictNc bool

	// PrescribedCCN specifies whether droplet activation uses the
	// prescribed CCN number in DiagnosticInputs.Nccn.
	PrescribedCCN bool

	// DoIceProduction enables homogeneous freezing.
	DoIceProduction bool

	// MaxTotalNi is the maximum total ice number concentration [#/m3].
	MaxTotalNi float64
}

// DefaultRuntime returns the default options.
func DefaultRuntime() Runtime {
	return Runtime{
		PredictNc:       true,
		DoIceProduction: true,
		MaxTotalNi:      740e3,
	}
}

// Orientation specifies how levels are ordered within a column.
type Orientation int

const (
	// TopDown means level 0 is the model top.
	TopDown Orientation = iota
	// BottomUp means level 0 is next to the surface.
	BottomUp
)

// bounds returns the surface level, the top level and the index
// increment that moves upward.
func (o Orientation) bounds(nk int) (kbot, ktop, kdir int) {
	if o == BottomUp {
		return 0, nk - 1, 1
	}
	return nk - 1, 0, -1
}

func (o Orientation) String() string {
	if o == BottomUp {
		return "bottom-up"
	}
	return "top-down"
}

// Infrastructure holds information about the time step and the columns.
type Infrastructure struct {
	Dt          float64      // time step [s]
	It          int          // time step index
	ColLocation []geom.Point // longitude (X) and latitude (Y) of each column
	Orientation Orientation
}

// allocate creates nj × nk arrays for each of the given pointers.
func allocate(nj, nk int, arrays ...**sparse.DenseArray) {
	for _, a := range arrays {
		*a = sparse.ZerosDense(nj, nk)
	}
}

// col returns the slice of a holding column i.
func col(a *sparse.DenseArray, i, nk int) []float64 {
	return a.Elements[i*nk : (i+1)*nk : (i+1)*nk]
}

// checkShape makes sure every field has shape [nj, nk].
func checkShape(bundle string, fields []Field, nj, nk int) error {
	for _, f := range fields {
		if f.Data == nil {
			return fmt.Errorf("p3: %s field %s is not allocated", bundle, f.Name)
		}
		if len(f.Data.Shape) != 2 || f.Data.Shape[0] != nj || f.Data.Shape[1] != nk {
			return fmt.Errorf("p3: %s field %s has shape %v; want [%d %d]", bundle, f.Name, f.Data.Shape, nj, nk)
		}
	}
	return nil
}
