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
	"sync"
)

// Handle identifies a named workspace buffer. Handles are resolved from
// names once, when a calculation is set up.
type Handle int

// WorkspaceManager hands out private scratch arenas to column tasks.
// Each arena holds one level-indexed buffer per name.
type WorkspaceManager struct {
	nk    int
	names []string
	index map[string]Handle
	pool  sync.Pool
}

// NewWorkspaceManager returns a manager whose arenas hold one buffer of
// length nk for each of the given names.
func NewWorkspaceManager(nk int, names []string) (*WorkspaceManager, error) {
	if nk <= 0 {
		return nil, fmt.Errorf("p3: invalid number of levels %d", nk)
	}
	m := &WorkspaceManager{
		nk:    nk,
		names: make([]string, len(names)),
		index: make(map[string]Handle, len(names)),
	}
	for i, n := range names {
		if n == "" {
			return nil, fmt.Errorf("p3: empty workspace buffer name at position %d", i)
		}
		if _, ok := m.index[n]; ok {
			return nil, fmt.Errorf("p3: duplicate workspace buffer name %q", n)
		}
		m.index[n] = Handle(i)
		m.names[i] = n
	}
	m.pool.New = func() interface{} {
		return &Workspace{
			m:     m,
			data:  make([]float64, len(m.names)*m.nk),
			taken: make([]bool, len(m.names)),
		}
	}
	return m, nil
}

// NewDefaultWorkspaceManager returns a manager holding the buffers used
// by the microphysics stages.
func NewDefaultWorkspaceManager(nk int) (*WorkspaceManager, error) {
	return NewWorkspaceManager(nk, DefaultWorkspaceNames)
}

// Levels returns the length of each buffer.
func (m *WorkspaceManager) Levels() int { return m.nk }

// Names returns the buffer names in handle order.
func (m *WorkspaceManager) Names() []string {
	return append([]string(nil), m.names...)
}

// Handles resolves buffer names to handles. It returns an error if
// any name is unknown to m.
func (m *WorkspaceManager) Handles(names ...string) ([]Handle, error) {
	hs := make([]Handle, len(names))
	for i, n := range names {
		h, ok := m.index[n]
		if !ok {
			return nil, fmt.Errorf("p3: workspace buffer %q not found", n)
		}
		hs[i] = h
	}
	return hs, nil
}

// Acquire returns a private arena. The arena must be returned with
// Release when the task that acquired it is finished.
func (m *WorkspaceManager) Acquire() *Workspace {
	return m.pool.Get().(*Workspace)
}

// Workspace is the scratch arena of a single column task.
type Workspace struct {
	m     *WorkspaceManager
	data  []float64
	taken []bool
}

// Take returns the buffer for h, filled with zeros. Each buffer may
// only be taken once per task.
func (w *Workspace) Take(h Handle) []float64 {
	if int(h) < 0 || int(h) >= len(w.taken) {
		panic(fmt.Errorf("p3: invalid workspace handle %d", h))
	}
	if w.taken[h] {
		panic(fmt.Errorf("p3: workspace buffer %q taken twice in one task", w.m.names[h]))
	}
	w.taken[h] = true
	nk := w.m.nk
	b := w.data[int(h)*nk : (int(h)+1)*nk : (int(h)+1)*nk]
	for i := range b {
		b[i] = 0
	}
	return b
}

// TakeMany returns the buffers for hs in order.
func (w *Workspace) TakeMany(hs []Handle) [][]float64 {
	o := make([][]float64, len(hs))
	for i, h := range hs {
		o[i] = w.Take(h)
	}
	return o
}

// Release returns w to its manager. w must not be used afterwards.
func (w *Workspace) Release() {
	for i := range w.taken {
		w.taken[i] = false
	}
	w.m.pool.Put(w)
}

// DefaultWorkspaceNames are the scratch buffers used by the stages, in
// the order they are bound to a column.
var DefaultWorkspaceNames = []string{
	"T_atm", "exner", "inv_dz", "rho", "inv_rho", "rhofacr", "rhofaci", "acn",
	"inv_cld_frac_i", "inv_cld_frac_l", "inv_cld_frac_r",
	"qv_sat_l", "qv_sat_i", "sup", "qv_supersat_i",
	"qc_incld", "nc_incld", "qr_incld", "nr_incld",
	"qi_incld", "ni_incld", "qm_incld", "bm_incld",
	"mu_c", "nu", "lamc", "cdist", "cdist1",
	"mu_r", "lamr", "logn0r", "cdistr",
	"ze_ice", "ze_rain", "qr_evap_tend",
	"sed_vq", "sed_vn", "sed_courant",
	"sed_flux0", "sed_flux1", "sed_flux2", "sed_flux3",
}

// numSedFields is the most fields a single species carries through
// sedimentation: ice mass, rime mass, rime volume and number.
const numSedFields = 4

// scratch holds the workspace buffers of one column task.
type scratch struct {
	T, exner, invDz, rho, invRho, rhofacr, rhofaci, acn []float64
	invCldFracI, invCldFracL, invCldFracR               []float64
	qvSatL, qvSatI, sup, qvSupersatI                    []float64
	qcIncld, ncIncld, qrIncld, nrIncld                  []float64
	qiIncld, niIncld, qmIncld, bmIncld                  []float64
	muC, nu, lamc, cdist, cdist1                        []float64
	muR, lamr, logn0r, cdistr                           []float64
	zeIce, zeRain, qrEvapTend                           []float64
	sedVq, sedVn, sedCourant                            []float64
	sedFlux                                             [numSedFields][]float64
}

// bindScratch takes the buffers for hs, which must have been resolved
// from DefaultWorkspaceNames.
func bindScratch(w *Workspace, hs []Handle) scratch {
	b := w.TakeMany(hs)
	var s scratch
	dst := []*[]float64{
		&s.T, &s.exner, &s.invDz, &s.rho, &s.invRho, &s.rhofacr, &s.rhofaci, &s.acn,
		&s.invCldFracI, &s.invCldFracL, &s.invCldFracR,
		&s.qvSatL, &s.qvSatI, &s.sup, &s.qvSupersatI,
		&s.qcIncld, &s.ncIncld, &s.qrIncld, &s.nrIncld,
		&s.qiIncld, &s.niIncld, &s.qmIncld, &s.bmIncld,
		&s.muC, &s.nu, &s.lamc, &s.cdist, &s.cdist1,
		&s.muR, &s.lamr, &s.logn0r, &s.cdistr,
		&s.zeIce, &s.zeRain, &s.qrEvapTend,
		&s.sedVq, &s.sedVn, &s.sedCourant,
		&s.sedFlux[0], &s.sedFlux[1], &s.sedFlux[2], &s.sedFlux[3],
	}
	if len(dst) != len(b) {
		panic(fmt.Errorf("p3: %d workspace buffers bound to %d slots", len(b), len(dst)))
	}
	for i, d := range dst {
		*d = b[i]
	}
	return s
}
