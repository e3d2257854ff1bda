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
	"math/rand"
	"reflect"
	"testing"

	"github.com/spatialmodel/p3"
	"github.com/spatialmodel/p3/science/satvap"
	"github.com/spatialmodel/p3/science/tables"
)

var testTables = tables.New()

// testLevel returns a level at temperature t [K] and relative humidity
// rh with respect to liquid.
func testLevel(t, rh float64) p3.Level {
	var sat satvap.MurphyKoop
	const pres = 80000.
	rho := pres / (p3.Rd * t)
	qvsl := sat.QvSat(t, pres, false)
	qvsi := sat.QvSat(t, pres, true)
	qv := rh * qvsl
	mu := 1.496e-6 * math.Pow(t, 1.5) / (t + 120)
	return p3.Level{
		T: t, Pres: pres, Rho: rho, InvRho: 1 / rho,
		Qv: qv, QvSatL: qvsl, QvSatI: qvsi,
		SupersatL: qv/qvsl - 1, SupersatI: qv/qvsi - 1,
		Rhofacr: 1, Rhofaci: 1,
		Acn:      p3.Gravity * p3.RhoWater / (18 * mu),
		CldFracL: 1, CldFracR: 1, CldFracI: 1,
		InvQcRelvar: 1,
		Dt:          300,
		PredictNc:   true,
		Tables:      testTables,
	}
}

func TestCloudDSD(t *testing.T) {
	var p Processes
	l := testLevel(280, 1)
	l.Qc, l.Nc = 1e-3, 100e6
	p.CloudDSD(&l)
	if l.Nc != 100e6 {
		t.Errorf("droplet number changed to %g", l.Nc)
	}
	if l.Cloud.Mu < 2 || l.Cloud.Mu > 15 {
		t.Errorf("mu = %g", l.Cloud.Mu)
	}
	if r := l.Cloud.EffRadius; r < 5e-6 || r > 20e-6 {
		t.Errorf("effective radius = %g", r)
	}

	// Too few droplets for the mass: the number is raised so that the
	// droplets are no larger than the limit.
	l.Qc, l.Nc = 1e-3, 1
	p.CloudDSD(&l)
	if l.Nc <= 1 {
		t.Errorf("droplet number not adjusted: %g", l.Nc)
	}
	if want := (l.Cloud.Mu + 1) / 60e-6; math.Abs(l.Cloud.Lam-want)/want > 1e-12 {
		t.Errorf("lambda = %g; want %g", l.Cloud.Lam, want)
	}
}

func TestRainDSD(t *testing.T) {
	var p Processes
	l := testLevel(285, 0.9)
	l.Qr, l.Nr = 1e-4, 0
	p.RainDSD(&l)
	if !(l.Nr > 0) {
		t.Fatalf("rain number = %g", l.Nr)
	}
	if l.Rain.Ze <= 0 || math.IsInf(l.Rain.Ze, 0) {
		t.Errorf("reflectivity = %g", l.Rain.Ze)
	}
	vm, vn := p.RainFallSpeed(&l)
	if vm < vn || vm <= 0 || vm > 10 {
		t.Errorf("fall speeds = %g, %g", vm, vn)
	}
}

func TestIceProperties(t *testing.T) {
	var p Processes
	l := testLevel(250, 1)
	l.Qi, l.Ni, l.Qm, l.Bm = 1e-4, 0, 2e-4, 0
	p.IceProperties(&l)
	if !(l.Ni > 0) {
		t.Errorf("ice number = %g", l.Ni)
	}
	if l.Qm != l.Qi {
		t.Errorf("rime mass %g should be limited to total mass %g", l.Qm, l.Qi)
	}
	if want := l.Qm / 400; math.Abs(l.Bm-want) > 1e-20 {
		t.Errorf("rime volume = %g; want %g", l.Bm, want)
	}
	if l.Ice.Vm < l.Ice.Vn || l.Ice.Vm <= 0 {
		t.Errorf("ice fall speeds %g, %g", l.Ice.Vm, l.Ice.Vn)
	}
}

func TestAutoconversion(t *testing.T) {
	var p Processes
	l := testLevel(285, 1)
	l.Qc, l.Nc, l.InvQcRelvar = 1e-3, 100e6/l.Rho, 1e6
	var r p3.Rates
	p.Autoconversion(&l, &r)
	// Khairoutdinov and Kogan (2000) with the smallest subgrid variability.
	want := subgridEnhancement(10, 2.47) * 1350 * math.Pow(1e-3, 2.47) * math.Pow(100, -1.79)
	if math.Abs(r.Qc2QrAutoconv-want)/want > 0.01 {
		t.Errorf("autoconversion = %g; want %g", r.Qc2QrAutoconv, want)
	}
	l.InvQcRelvar = 1
	var r2 p3.Rates
	p.Autoconversion(&l, &r2)
	if r2.Qc2QrAutoconv <= r.Qc2QrAutoconv {
		t.Error("subgrid variability should enhance autoconversion")
	}
}

// TestRatesNonNegative checks that every process rate is non-negative
// and finite over a range of conditions.
func TestRatesNonNegative(t *testing.T) {
	var p Processes
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		l := testLevel(200+rng.Float64()*110, 0.5+rng.Float64()*0.6)
		l.PredictNc = rng.Intn(2) == 0
		l.PrescribedCCN = rng.Intn(2) == 0
		l.Nccn = rng.Float64() * 1e9
		l.NiActivated = rng.Float64() * 1e5
		l.NcNuceatTend = rng.Float64() * 1e5
		l.HetfrzImmersion = rng.Float64() * 10
		l.InvQcRelvar = 0.1 + rng.Float64()*10
		if rng.Intn(2) == 0 {
			l.Qc, l.Nc = math.Pow(10, -8+5*rng.Float64()), math.Pow(10, 6+3*rng.Float64())
			p.CloudDSD(&l)
		}
		if rng.Intn(2) == 0 {
			l.Qr, l.Nr = math.Pow(10, -8+5*rng.Float64()), math.Pow(10, 2+5*rng.Float64())
			p.RainDSD(&l)
		}
		if rng.Intn(2) == 0 {
			l.Qi, l.Ni = math.Pow(10, -8+5*rng.Float64()), math.Pow(10, 2+5*rng.Float64())
			l.Qm = l.Qi * rng.Float64()
			l.Bm = l.Qm / 500
			p.IceProperties(&l)
		}
		var r p3.Rates
		for _, f := range []func(*p3.Level, *p3.Rates){
			p.DropletActivation, p.IceNucleation, p.VaporDeposition,
			p.RainEvaporation, p.Autoconversion, p.Accretion, p.SelfCollection,
			p.IceCollection, p.HeterogeneousFreezing, p.Melting, p.Bergeron,
		} {
			f(&l, &r)
		}
		v := reflect.ValueOf(r)
		for j := 0; j < v.NumField(); j++ {
			x := v.Field(j).Float()
			if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
				t.Fatalf("case %d: %s = %g; level %+v", i, v.Type().Field(j).Name, x, l)
			}
		}
	}
}

func TestMeltingOnlyAboveFreezing(t *testing.T) {
	var p Processes
	for _, temp := range []float64{260, 275} {
		l := testLevel(temp, 1)
		l.Qi, l.Ni = 1e-4, 1e4
		p.IceProperties(&l)
		var r p3.Rates
		p.Melting(&l, &r)
		if (temp > p3.TZero) != (r.Qi2QrMelt > 0) {
			t.Errorf("T = %g: melting rate %g", temp, r.Qi2QrMelt)
		}
	}
}
