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

// Init sets diagnostic outputs to their default values, resets the
// surface precipitation accumulators and derives the per-level
// quantities used by the later stages. The workspace buffers are
// already zero when Init runs.
func Init(c *Column) error {
	p, in, out, s := &c.Prog, &c.In, &c.Out, &c.s
	for k := 0; k < c.nk; k++ {
		out.DiagEquivReflectivity[k] = ReflectivitySentinel
		s.zeIce[k] = ReflectivityFloor
		s.zeRain[k] = ReflectivityFloor
		out.DiagEffRadiusQc[k] = DefaultEffRadiusQc
		out.DiagEffRadiusQi[k] = DefaultEffRadiusQi
		out.DiagEffRadiusQr[k] = DefaultEffRadiusQr

		s.invCldFracI[k] = 1 / math.Max(in.CldFracI[k], minCloudFraction)
		s.invCldFracL[k] = 1 / math.Max(in.CldFracL[k], minCloudFraction)
		s.invCldFracR[k] = 1 / math.Max(in.CldFracR[k], minCloudFraction)

		s.exner[k] = 1 / in.InvExner[k]
		s.T[k] = p.Th[k] * s.exner[k]
		p.Qv[k] = math.Max(p.Qv[k], 0)
		s.invDz[k] = 1 / in.Dz[k]

		out.Qv2QiDeposTend[k] = 0
		out.RhoQi[k] = 0
		out.PrecipLiqFlux[k] = 0
		out.PrecipIceFlux[k] = 0
		out.PrecipTotalTend[k] = 0
		out.Nevapr[k] = 0
		out.DiagVmQi[k] = 0
		out.DiagDiamQi[k] = 0
	}
	for _, h := range c.Hist.all() {
		for k := range h {
			h[k] = 0
		}
	}
	*out.PrecipLiqSurf = 0
	*out.PrecipIceSurf = 0
	return nil
}
