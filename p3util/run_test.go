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
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/kr/pretty"
	"github.com/spatialmodel/p3/science/tables"
)

func TestVersion(t *testing.T) {
	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "P3 v") {
		t.Errorf("version output = %q", buf.String())
	}
}

func TestRuntimeConfig(t *testing.T) {
	defer Cfg.Set("PrescribedCCN", false)
	defer Cfg.Set("PredictNc", true)
	rt, err := RuntimeConfig(Cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !rt.PredictNc || rt.PrescribedCCN || !rt.DoIceProduction || rt.MaxTotalNi != 740e3 {
		t.Errorf("default runtime = %+v", rt)
	}
	Cfg.Set("PredictNc", false)
	Cfg.Set("PrescribedCCN", true)
	if _, err := RuntimeConfig(Cfg); err == nil {
		t.Error("PrescribedCCN without PredictNc should fail")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{1, 2, 3, 4})
	want := Summary{Steps: 4, Mean: 2.5, Min: 1, Max: 4, StdDev: math.Sqrt(5. / 3.)}
	if s.Steps != want.Steps || s.Mean != want.Mean || s.Min != want.Min || s.Max != want.Max ||
		different(s.StdDev, want.StdDev, 1e-12) {
		t.Errorf("summary = %+v; want %+v", s, want)
	}
	if s := Summarize([]float64{7}); s.StdDev != 0 || s.Mean != 7 {
		t.Errorf("single step summary = %+v", s)
	}
	if s := Summarize(nil); s.Steps != 0 {
		t.Errorf("empty summary = %+v", s)
	}
}

func TestTables(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "tables.nc")
	Cfg.Set("TableFile", fname)
	defer Cfg.Set("TableFile", "")
	Root.SetArgs([]string{"tables"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	b, err := LoadTables(fname)
	if err != nil {
		t.Fatal(err)
	}
	want := tables.New()
	for _, pair := range [][2]*tables.Table2D{{b.RainVm, want.RainVm}, {b.IceVm, want.IceVm}, {b.IceRho, want.IceRho}} {
		if diff := pretty.Diff(pair[0], pair[1]); len(diff) > 0 {
			t.Errorf("table differs: %v", diff)
		}
	}
}

// runCase runs the test case through the command line interface and
// returns the name of the output file.
func runCase(t *testing.T, strategy string, steps int) string {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.nc")
	Cfg.Set("CaseFile", "testdata/case.toml")
	Cfg.Set("OutputFile", out)
	Cfg.Set("LogFile", "")
	Cfg.Set("NumSteps", steps)
	Cfg.Set("Strategy", strategy)
	Cfg.Set("Strict", true)
	Cfg.Set("OutputVariables", map[string]string{
		"qv":           "qv",
		"qc":           "qc",
		"qr":           "qr",
		"qi":           "qi",
		"th":           "th",
		"reflectivity": "diag_equiv_reflectivity",
		"TotalWater":   "qv + qc + qr + qi",
	})
	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"run"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "steps; time per step") {
		t.Errorf("missing summary in output:\n%s", buf.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "out.log")); err != nil {
		t.Errorf("log file: %v", err)
	}
	return out
}

func readOutput(t *testing.T, fname string, vars ...string) map[string][]float64 {
	ff, err := os.Open(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		t.Fatal(err)
	}
	o := make(map[string][]float64)
	for _, v := range vars {
		data, _, err := readNCF(f, v)
		if err != nil {
			t.Fatal(err)
		}
		o[v] = data
	}
	return o
}

func TestRun(t *testing.T) {
	const nk = 6
	c, err := LoadCaseFile("testdata/case.toml")
	if err != nil {
		t.Fatal(err)
	}
	initial, err := c.State(300)
	if err != nil {
		t.Fatal(err)
	}

	for _, strategy := range []string{"fused", "staged"} {
		t.Run(strategy, func(t *testing.T) {
			r := readOutput(t, runCase(t, strategy, 2), "qv", "qc", "qr", "qi", "th",
				"reflectivity", "TotalWater", "precip_liq_surf", "precip_ice_surf")
			for name, v := range r {
				for i, x := range v {
					if math.IsNaN(x) || math.IsInf(x, 0) {
						t.Errorf("%s[%d] = %g", name, i, x)
					}
					if name != "reflectivity" && x < 0 {
						t.Errorf("%s[%d] = %g < 0", name, i, x)
					}
				}
			}
			// The warm, dry column is left alone.
			for k := 0; k < nk; k++ {
				i := 2*nk + k
				if r["qv"][i] != initial.Prog.Qv.Elements[i] || r["th"][i] != initial.Prog.Th.Elements[i] {
					t.Errorf("dry column changed at level %d", k)
				}
				if r["reflectivity"][i] != -99 {
					t.Errorf("dry column reflectivity = %g", r["reflectivity"][i])
				}
			}
			if r["precip_liq_surf"][2] != 0 || r["precip_ice_surf"][2] != 0 {
				t.Errorf("dry column has surface precipitation")
			}
		})
	}
}

func TestRunStrategiesAgree(t *testing.T) {
	vars := []string{"qv", "qc", "qr", "qi", "th", "precip_liq_surf", "precip_ice_surf"}
	fused := readOutput(t, runCase(t, "fused", 1), vars...)
	staged := readOutput(t, runCase(t, "staged", 1), vars...)
	if diff := pretty.Diff(fused, staged); len(diff) > 0 {
		t.Errorf("strategies differ: %v", diff)
	}
}

func TestRunWithTableFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "tables.nc")
	if err := SaveTables(fname); err != nil {
		t.Fatal(err)
	}
	Cfg.Set("TableFile", fname)
	defer Cfg.Set("TableFile", "")
	withFile := readOutput(t, runCase(t, "fused", 1), "qr", "qi")
	Cfg.Set("TableFile", "")
	calculated := readOutput(t, runCase(t, "fused", 1), "qr", "qi")
	if diff := pretty.Diff(withFile, calculated); len(diff) > 0 {
		t.Errorf("results differ: %v", diff)
	}
}

func TestPlot(t *testing.T) {
	out := runCase(t, "fused", 1)
	plotFile := filepath.Join(filepath.Dir(out), "profile.png")
	Cfg.Set("OutputFile", out)
	Cfg.Set("PlotFile", plotFile)
	Cfg.Set("PlotVariables", []string{"qc", "qr", "qi"})
	Cfg.Set("PlotColumn", 0)
	Root.SetArgs([]string{"plot"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(plotFile)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() == 0 {
		t.Error("empty plot file")
	}

	if err := PlotProfiles(out, plotFile, 5, "qc"); err == nil {
		t.Error("out of range column should fail")
	}
}
