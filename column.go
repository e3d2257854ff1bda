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
	"github.com/ctessum/geom"
	"github.com/spatialmodel/p3/science/tables"
)

// Column is the state of one column task. It holds exclusive views of the
// column's slices of the state bundles together with the task's private
// workspace.
type Column struct {
	Prog PrognosticColumn
	In   InputColumn
	Out  OutputColumn
	Hist HistoryColumn

	index            int
	nk               int
	kbot, ktop, kdir int
	dt, invDt        float64
	rt               Runtime
	infra            *Infrastructure
	tab              *tables.Bundle
	proc             Processes
	sat              Saturation

	ws *Workspace
	s  scratch

	nucleationPossible  bool
	hydrometeorsPresent bool

	// done is set when a stage ends the task early.
	done bool
	// stage is the name of the last stage that ran.
	stage string
}

// ColumnManipulator is a function that operates on a single column.
type ColumnManipulator func(c *Column) error

// Stage is a named step of the column calculation.
type Stage struct {
	Name string
	Run  ColumnManipulator
}

// Stage names.
const (
	StageInit                = "init"
	StagePart1               = "part1"
	StagePart2               = "part2"
	StageCloudSedimentation  = "cloud_sedimentation"
	StageRainSedimentation   = "rain_sedimentation"
	StageIceSedimentation    = "ice_sedimentation"
	StageHomogeneousFreezing = "homogeneous_freezing"
	StagePart3               = "part3"
)

// Stages returns the stages in the order they run for the given options.
func Stages(rt Runtime) []Stage {
	s := []Stage{
		{StageInit, Init},
		{StagePart1, Part1},
		{StagePart2, Part2},
		{StageCloudSedimentation, CloudSedimentation},
		{StageRainSedimentation, RainSedimentation},
		{StageIceSedimentation, IceSedimentation},
	}
	if rt.DoIceProduction {
		s = append(s, Stage{StageHomogeneousFreezing, HomogeneousFreezing})
	}
	return append(s, Stage{StagePart3, Part3})
}

// Index returns the index of c among all columns.
func (c *Column) Index() int { return c.index }

// Levels returns the number of levels in c.
func (c *Column) Levels() int { return c.nk }

// Location returns the location of c, or the zero point if no
// locations were given.
func (c *Column) Location() geom.Point {
	if c.index < len(c.infra.ColLocation) {
		return c.infra.ColLocation[c.index]
	}
	return geom.Point{}
}

// Done reports whether the task ended early.
func (c *Column) Done() bool { return c.done }

// LastStage returns the name of the last stage that ran.
func (c *Column) LastStage() string { return c.stage }

// NucleationPossible reports whether new cloud or ice can form anywhere
// in the column.
func (c *Column) NucleationPossible() bool { return c.nucleationPossible }

// HydrometeorsPresent reports whether any level holds cloud, rain or ice.
func (c *Column) HydrometeorsPresent() bool { return c.hydrometeorsPresent }

// Temperature returns the temperature at level k calculated from the
// current potential temperature [K].
func (c *Column) Temperature(k int) float64 {
	return c.Prog.Th[k] * c.s.exner[k]
}

// release returns the workspace of c.
func (c *Column) release() {
	if c.ws != nil {
		c.ws.Release()
		c.ws = nil
	}
}

// inCloud converts the grid-mean hydrometeor values at level k to
// in-cloud values.
func (c *Column) inCloud(k int) {
	p, s := &c.Prog, &c.s
	s.qcIncld[k] = p.Qc[k] * s.invCldFracL[k]
	s.ncIncld[k] = p.Nc[k] * s.invCldFracL[k]
	s.qrIncld[k] = p.Qr[k] * s.invCldFracR[k]
	s.nrIncld[k] = p.Nr[k] * s.invCldFracR[k]
	s.qiIncld[k] = p.Qi[k] * s.invCldFracI[k]
	s.niIncld[k] = p.Ni[k] * s.invCldFracI[k]
	s.qmIncld[k] = p.Qm[k] * s.invCldFracI[k]
	s.bmIncld[k] = p.Bm[k] * s.invCldFracI[k]
}

// level gathers the state at level k for the process-rate library.
func (c *Column) level(k int) Level {
	s, in := &c.s, &c.In
	return Level{
		T:         s.T[k],
		Pres:      in.Pres[k],
		Rho:       s.rho[k],
		InvRho:    s.invRho[k],
		Qv:        c.Prog.Qv[k],
		QvSatL:    s.qvSatL[k],
		QvSatI:    s.qvSatI[k],
		SupersatL: s.sup[k],
		SupersatI: s.qvSupersatI[k],
		Rhofacr:   s.rhofacr[k],
		Rhofaci:   s.rhofaci[k],
		Acn:       s.acn[k],

		Qc: s.qcIncld[k], Nc: s.ncIncld[k],
		Qr: s.qrIncld[k], Nr: s.nrIncld[k],
		Qi: s.qiIncld[k], Ni: s.niIncld[k],
		Qm: s.qmIncld[k], Bm: s.bmIncld[k],

		CldFracL: 1 / s.invCldFracL[k],
		CldFracR: 1 / s.invCldFracR[k],
		CldFracI: 1 / s.invCldFracI[k],

		Cloud: CloudDSD{Mu: s.muC[k], Nu: s.nu[k], Lam: s.lamc[k], Cdist: s.cdist[k], Cdist1: s.cdist1[k]},
		Rain:  RainDSD{Mu: s.muR[k], Lam: s.lamr[k], Logn0: s.logn0r[k], Cdist: s.cdistr[k]},

		NcNuceatTend:     in.NcNuceatTend[k],
		Nccn:             in.Nccn[k],
		NiActivated:      in.NiActivated[k],
		InvQcRelvar:      in.InvQcRelvar[k],
		HetfrzImmersion:  in.HetfrzImmersionTend[k],
		HetfrzContact:    in.HetfrzContactTend[k],
		HetfrzDeposition: in.HetfrzDepositionTend[k],

		Dt:            c.dt,
		PredictNc:     c.rt.PredictNc,
		PrescribedCCN: c.rt.PrescribedCCN,
		Tables:        c.tab,
	}
}

// storeDSD saves the size distribution parameters in l to the workspace.
func (c *Column) storeDSD(k int, l *Level) {
	s := &c.s
	s.muC[k], s.nu[k], s.lamc[k] = l.Cloud.Mu, l.Cloud.Nu, l.Cloud.Lam
	s.cdist[k], s.cdist1[k] = l.Cloud.Cdist, l.Cloud.Cdist1
	s.muR[k], s.lamr[k] = l.Rain.Mu, l.Rain.Lam
	s.logn0r[k], s.cdistr[k] = l.Rain.Logn0, l.Rain.Cdist
}

// levels returns the lowest and highest indices of the levels between
// k1 and k2, inclusive.
func levels(k1, k2 int) (lo, hi int) {
	if k1 < k2 {
		return k1, k2
	}
	return k2, k1
}
