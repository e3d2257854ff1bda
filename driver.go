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
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/p3/science/tables"
)

// Driver advances the microphysics of a set of columns.
type Driver struct {
	// Processes calculates process rates, size distributions and fall
	// speeds.
	Processes Processes

	// Saturation calculates saturation vapor mixing ratios.
	Saturation Saturation

	// Strategy schedules the column tasks. If it is nil, Fused with the
	// default number of workers is used.
	Strategy Strategy

	// Check, if not nil, is called after every stage of every column.
	Check Checker

	// Log receives debugging information.
	Log logrus.FieldLogger

	// Finished, if not nil, is called once for each column after its
	// last stage, before its workspace is released. It may be called
	// concurrently for different columns.
	Finished func(c *Column)
}

// NewDriver returns a Driver that uses the given collaborators and the
// default strategy.
func NewDriver(p Processes, s Saturation) *Driver {
	return &Driver{
		Processes:  p,
		Saturation: s,
		Strategy:   Fused{},
		Log:        logrus.StandardLogger(),
	}
}

// Step advances nj columns of nk levels by one time step of infra.Dt
// seconds. It returns the wall-clock duration of the column calculations
// in microseconds. An error is returned if the inputs are inconsistent,
// or if the checker aborts the step; in the latter case the error is a
// *CheckError and the state of the columns is undefined.
func (d *Driver) Step(rt Runtime, prog *PrognosticState, in *DiagnosticInputs,
	out *DiagnosticOutputs, infra *Infrastructure, hist *HistoryOnly,
	tab *tables.Bundle, ws *WorkspaceManager, nj, nk int) (int64, error) {

	if d.Processes == nil || d.Saturation == nil {
		return 0, fmt.Errorf("p3: driver needs both a process library and a saturation function")
	}
	if prog == nil || in == nil || out == nil || infra == nil || hist == nil || tab == nil || ws == nil {
		return 0, fmt.Errorf("p3: nil argument to Step")
	}
	if nj < 0 || nk <= 0 {
		return 0, fmt.Errorf("p3: invalid domain size %d×%d", nj, nk)
	}
	if !(infra.Dt > 0) {
		return 0, fmt.Errorf("p3: invalid time step %g", infra.Dt)
	}
	if !(rt.MaxTotalNi > 0) {
		return 0, fmt.Errorf("p3: invalid maximum ice number concentration %g", rt.MaxTotalNi)
	}
	if ws.Levels() != nk {
		return 0, fmt.Errorf("p3: workspace has %d levels; want %d", ws.Levels(), nk)
	}
	for _, b := range []struct {
		name   string
		fields []Field
	}{
		{"prognostic", prog.Fields()},
		{"input", in.Fields()},
		{"output", out.Fields()},
		{"history", hist.Fields()},
	} {
		if err := checkShape(b.name, b.fields, nj, nk); err != nil {
			return 0, err
		}
	}
	if len(out.PrecipLiqSurf) != nj || len(out.PrecipIceSurf) != nj {
		return 0, fmt.Errorf("p3: surface precipitation has %d and %d columns; want %d",
			len(out.PrecipLiqSurf), len(out.PrecipIceSurf), nj)
	}
	if len(infra.ColLocation) != 0 && len(infra.ColLocation) != nj {
		return 0, fmt.Errorf("p3: %d column locations for %d columns", len(infra.ColLocation), nj)
	}
	handles, err := ws.Handles(DefaultWorkspaceNames...)
	if err != nil {
		return 0, err
	}

	kbot, ktop, kdir := infra.Orientation.bounds(nk)
	newColumn := func(i int) *Column {
		w := ws.Acquire()
		return &Column{
			Prog:  prog.column(i, nk),
			In:    in.column(i, nk),
			Out:   out.column(i, nk),
			Hist:  hist.column(i, nk),
			index: i,
			nk:    nk,
			kbot:  kbot, ktop: ktop, kdir: kdir,
			dt:    infra.Dt,
			invDt: 1 / infra.Dt,
			rt:    rt,
			infra: infra,
			tab:   tab,
			proc:  d.Processes,
			sat:   d.Saturation,
			ws:    w,
			s:     bindScratch(w, handles),
		}
	}
	finished := func(c *Column) {
		if d.Finished != nil {
			d.Finished(c)
		}
		c.release()
	}

	strategy := d.Strategy
	if strategy == nil {
		strategy = Fused{}
	}

	start := time.Now()
	err = strategy.Dispatch(nj, newColumn, finished, Stages(rt), d.Check)
	elapsed := time.Since(start).Microseconds()

	if d.Log != nil {
		d.Log.WithFields(logrus.Fields{
			"step":     infra.It,
			"columns":  nj,
			"levels":   nk,
			"strategy": fmt.Sprintf("%T", strategy),
			"elapsed":  elapsed,
		}).Debug("p3: finished step")
	}
	return elapsed, err
}
