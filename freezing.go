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

// HomogeneousFreezing instantly freezes all cloud water and rain at
// levels colder than THomogFrz. Frozen drops become rime at the maximum
// rime density.
func HomogeneousFreezing(c *Column) error {
	p, s := &c.Prog, &c.s
	for k := 0; k < c.nk; k++ {
		if s.T[k] >= THomogFrz {
			continue
		}
		frozen := false
		if p.Qc[k] >= QSmall {
			c.freeze(k, p.Qc[k], p.Nc[k])
			p.Qc[k], p.Nc[k] = 0, 0
			frozen = true
		}
		if p.Qr[k] >= QSmall {
			c.freeze(k, p.Qr[k], p.Nr[k])
			p.Qr[k], p.Nr[k] = 0, 0
			frozen = true
		}
		if frozen {
			s.T[k] = p.Th[k] * s.exner[k]
			c.inCloud(k)
		}
	}
	return nil
}

// freeze adds liquid mass q and number n to the rimed ice at level k and
// releases the latent heat of fusion.
func (c *Column) freeze(k int, q, n float64) {
	p := &c.Prog
	p.Qm[k] += q
	p.Qi[k] += q
	p.Bm[k] += q / RhoRimMax
	if n < NSmall {
		n = NSmall
	}
	p.Ni[k] += n
	p.Th[k] += c.In.InvExner[k] * q * LatIce / Cp
}
