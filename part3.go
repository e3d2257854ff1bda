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

import "math"

// Part3 finalizes the column: it removes species that dropped below the
// presence threshold, recalculates size distributions, and sets the
// effective radii, the ice diagnostics and the equivalent reflectivity.
// Levels with neither rain nor ice keep the no-signal reflectivity.
func Part3(c *Column) error {
	p, out, s := &c.Prog, &c.Out, &c.s
	for k := 0; k < c.nk; k++ {
		c.inCloud(k)
		l := c.level(k)

		if l.Qc >= QSmall {
			c.proc.CloudDSD(&l)
			if c.rt.PredictNc {
				p.Nc[k] = l.Nc * l.CldFracL
			}
			out.DiagEffRadiusQc[k] = l.Cloud.EffRadius
		} else {
			c.evaporateCloud(k)
		}

		if l.Qr >= QSmall {
			c.proc.RainDSD(&l)
			p.Nr[k] = l.Nr * l.CldFracR
			s.zeRain[k] = math.Max(l.Rain.Ze, ReflectivityFloor)
			out.DiagEffRadiusQr[k] = l.Rain.EffRadius
		} else {
			c.evaporateRain(k)
		}

		if l.Qi >= QSmall {
			p.Ni[k] = math.Min(p.Ni[k], c.rt.MaxTotalNi*s.invRho[k])
			l.Ni = p.Ni[k] * s.invCldFracI[k]
			c.proc.IceProperties(&l)
			p.Ni[k] = l.Ni * l.CldFracI
			p.Qm[k] = l.Qm * l.CldFracI
			p.Bm[k] = l.Bm * l.CldFracI
			s.zeIce[k] = math.Max(l.Ice.Ze, ReflectivityFloor)
			out.DiagEffRadiusQi[k] = l.Ice.EffRadius
			out.DiagVmQi[k] = l.Ice.Vm
			out.DiagDiamQi[k] = l.Ice.Dmean
			out.RhoQi[k] = l.Ice.Rho
		} else {
			c.sublimateIce(k)
		}

		if ze := s.zeRain[k] + s.zeIce[k]; ze > 2*ReflectivityFloor {
			out.DiagEquivReflectivity[k] = 10 * math.Log10(ze*1e18)
		} else {
			out.DiagEquivReflectivity[k] = ReflectivitySentinel
		}
		s.T[k] = p.Th[k] * s.exner[k]
		c.inCloud(k)
		c.storeDSD(k, &l)
	}
	return nil
}
