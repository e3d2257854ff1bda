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
	"io/ioutil"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/spatialmodel/p3"
)

func TestMetrics(t *testing.T) {
	recordStep("fused", 250*time.Microsecond)
	recordColumn(true)
	recordColumn(false)
	recordCheckFailure()

	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	body := string(b)
	for _, want := range []string{
		`p3_driver_step_duration_seconds_count{strategy="fused"}`,
		`p3_driver_columns_total{early_exit="true"}`,
		`p3_driver_columns_total{early_exit="false"}`,
		"p3_driver_check_failures_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output is missing %s", want)
		}
	}
}

func checkFailureCount(t *testing.T) float64 {
	var m dto.Metric
	if err := checkFailures.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

func TestRecordStepError(t *testing.T) {
	before := checkFailureCount(t)
	recordStepError(fmt.Errorf("p3: workspace has 3 levels; want 4"))
	if n := checkFailureCount(t); n != before {
		t.Errorf("setup error counted as a check failure: %g -> %g", before, n)
	}
	recordStepError(&p3.CheckError{Column: 2, Stage: p3.StagePart1, Err: fmt.Errorf("too hot")})
	if n := checkFailureCount(t); n != before+1 {
		t.Errorf("check failures = %g; want %g", n, before+1)
	}
}

const hotCase = `
[[Column]]
[Column.Profiles]
pres = [70000.0, 90000.0]
dz = [1500.0, 1000.0]
dpres = [20000.0, 20000.0]
t = [400.0, 280.0]
qv = [1.0e-3, 5.0e-3]
`

func TestRunCheckFailureMetric(t *testing.T) {
	dir := t.TempDir()
	caseFile := filepath.Join(dir, "hot.toml")
	if err := ioutil.WriteFile(caseFile, []byte(hotCase), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := RunConfig{
		LogFile:         filepath.Join(dir, "hot.log"),
		CaseFile:        caseFile,
		OutputFile:      filepath.Join(dir, "hot.nc"),
		OutputVariables: map[string]string{"qv": "qv"},
		Dt:              300,
		NumSteps:        1,
		Runtime:         p3.DefaultRuntime(),
		Strict:          true,
		AbortOnCheck:    true,
		Out:             ioutil.Discard,
	}
	before := checkFailureCount(t)
	if err := Run(cfg); err == nil {
		t.Fatal("out of bounds temperature should stop the run")
	}
	if n := checkFailureCount(t); n != before+1 {
		t.Errorf("check failures = %g; want %g", n, before+1)
	}

	cfg.Runtime = p3.Runtime{}
	if err := Run(cfg); err == nil {
		t.Fatal("zero maximum ice number should be an error")
	}
	if n := checkFailureCount(t); n != before+1 {
		t.Errorf("invalid runtime counted as a check failure")
	}
}
