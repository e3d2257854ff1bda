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
	"github.com/spatialmodel/p3/science/tables"
)

// SaveTables calculates the lookup tables and writes them to fileName
// in NetCDF format.
func SaveTables(fileName string) error {
	return WriteTables(fileName, tables.New())
}

// WriteTables writes the lookup tables in b to fileName in NetCDF format.
// Each table is stored as a two-dimensional variable with attributes
// describing its axes.
func WriteTables(fileName string, b *tables.Bundle) error {
	if err := b.Check(); err != nil {
		return err
	}
	fields := b.Fields()

	var dims []string
	var lengths []int
	seen := make(map[string]int)
	addDim := func(name string, n int) error {
		if m, ok := seen[name]; ok {
			if m != n {
				return fmt.Errorf("p3: table axis %s has lengths %d and %d", name, m, n)
			}
			return nil
		}
		seen[name] = n
		dims = append(dims, name)
		lengths = append(lengths, n)
		return nil
	}
	for _, f := range fields {
		if err := addDim(f.XName, f.Table.NX); err != nil {
			return err
		}
		if err := addDim(f.YName, f.Table.NY); err != nil {
			return err
		}
	}

	h := cdf.NewHeader(dims, lengths)
	h.AddAttribute("", "comment", "P3 hydrometeor property lookup tables")
	for _, f := range fields {
		h.AddVariable(f.Name, []string{f.XName, f.YName}, []float64{0})
		h.AddAttribute(f.Name, "description", f.Description)
		h.AddAttribute(f.Name, "units", unitString(f.Units))
		h.AddAttribute(f.Name, "x0", []float64{f.Table.X0})
		h.AddAttribute(f.Name, "dx", []float64{f.Table.DX})
		h.AddAttribute(f.Name, "y0", []float64{f.Table.Y0})
		h.AddAttribute(f.Name, "dy", []float64{f.Table.DY})
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("p3: problem creating table file header: %v", errs)
	}

	ff, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("p3: problem creating table file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("p3: problem creating table file: %v", err)
	}
	for _, fld := range fields {
		if err := writeNCF(f, fld.Name, fld.Table.Data); err != nil {
			return err
		}
	}
	return cdf.UpdateNumRecs(ff)
}

// LoadTables reads lookup tables from a file created by WriteTables.
func LoadTables(fileName string) (*tables.Bundle, error) {
	ff, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("p3: problem opening table file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("p3: problem reading table file: %v", err)
	}
	b := new(tables.Bundle)
	for _, fld := range b.Fields() {
		data, dims, err := readNCF(f, fld.Name)
		if err != nil {
			return nil, err
		}
		if len(dims) != 2 {
			return nil, fmt.Errorf("p3: table %s has %d dimensions; want 2", fld.Name, len(dims))
		}
		t := &tables.Table2D{NX: dims[0], NY: dims[1], Data: data}
		for _, a := range []struct {
			name string
			dst  *float64
		}{
			{"x0", &t.X0}, {"dx", &t.DX}, {"y0", &t.Y0}, {"dy", &t.DY},
		} {
			v, ok := f.Header.GetAttribute(fld.Name, a.name).([]float64)
			if !ok || len(v) != 1 {
				return nil, fmt.Errorf("p3: table %s is missing attribute %s", fld.Name, a.name)
			}
			*a.dst = v[0]
		}
		if err := b.Set(fld.Name, t); err != nil {
			return nil, err
		}
	}
	if err := b.Check(); err != nil {
		return nil, err
	}
	return b, nil
}
