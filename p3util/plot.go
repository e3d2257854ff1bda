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


package p3util

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotProfiles plots the vertical profiles of the given variables in
// column col of outputFile, which must have been created by Run, and
// saves the plot to plotFile in PNG format.
func PlotProfiles(outputFile, plotFile string, col int, vars ...string) error {
	if len(vars) == 0 {
		return fmt.Errorf("p3: no variables to plot")
	}
	ff, err := os.Open(outputFile)
	if err != nil {
		return fmt.Errorf("p3: problem opening output file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return fmt.Errorf("p3: problem reading output file: %v", err)
	}
	bottomUp := false
	if o, ok := f.Header.GetAttribute("", "orientation").(string); ok && o == "bottom-up" {
		bottomUp = true
	}

	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = fmt.Sprintf("Vertical profiles in column %d", col)
	p.X.Label.Text = "Value"
	p.Y.Label.Text = "Level above surface"

	var lines []interface{}
	for _, v := range vars {
		data, dims, err := readNCF(f, v)
		if err != nil {
			return err
		}
		if len(dims) != 2 {
			return fmt.Errorf("p3: variable %s is not a profile", v)
		}
		nj, nk := dims[0], dims[1]
		if col < 0 || col >= nj {
			return fmt.Errorf("p3: column %d is out of range [0, %d)", col, nj)
		}
		lines = append(lines, v, profileXYs(data[col*nk:(col+1)*nk], bottomUp))
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return err
	}
	p.Legend.Top = true

	w, err := os.Create(plotFile)
	if err != nil {
		return fmt.Errorf("p3: problem creating plot file: %v", err)
	}
	defer w.Close()
	wt, err := p.WriterTo(4*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// profileXYs returns the points of a profile with the value on the X axis
// and the number of levels above the surface on the Y axis.
func profileXYs(v []float64, bottomUp bool) plotter.XYs {
	nk := len(v)
	xy := make(plotter.XYs, nk)
	for k, val := range v {
		xy[k].X = val
		if bottomUp {
			xy[k].Y = float64(k)
		} else {
			xy[k].Y = float64(nk - 1 - k)
		}
	}
	return xy
}
