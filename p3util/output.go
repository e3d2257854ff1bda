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
	"math"
	"os"
	"sort"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/cdf"
	"github.com/ctessum/unit"
)

// Outputter calculates output variables from user-defined expressions
// of model variables and writes them to a NetCDF file.
//
// outputVariables maps output names to expressions. An expression can
// refer to any per-level model variable, to the per-column variables
// precip_liq_surf and precip_ice_surf, and to other output variables.
//
// modelVariables is automatically generated based on the model variables
// that are required to calculate the requested output variables.
type Outputter struct {
	outputVariables map[string]string
	expressions     map[string]*govaluate.EvaluableExpression
	modelVariables  []string
	outputFunctions map[string]govaluate.ExpressionFunction
}

// Per-column variables available to output expressions.
const (
	precipLiqSurf = "precip_liq_surf"
	precipIceSurf = "precip_ice_surf"
)

// NewOutputter initializes a new Outputter and adds a set of default
// output functions: 'exp(x)', 'log10(x)', 'min(x, y)' and 'max(x, y)'.
// outputFunctions may add more functions or replace the default ones.
func NewOutputter(outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	unary := func(name string, f func(float64) float64) govaluate.ExpressionFunction {
		return func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("p3: got %d arguments for function '%s', but needs 1", len(arg), name)
			}
			x, ok := arg[0].(float64)
			if !ok {
				return nil, fmt.Errorf("p3: invalid argument %v for function '%s'", arg[0], name)
			}
			return f(x), nil
		}
	}
	binary := func(name string, f func(float64, float64) float64) govaluate.ExpressionFunction {
		return func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 2 {
				return nil, fmt.Errorf("p3: got %d arguments for function '%s', but needs 2", len(arg), name)
			}
			x, ok1 := arg[0].(float64)
			y, ok2 := arg[1].(float64)
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("p3: invalid arguments %v for function '%s'", arg, name)
			}
			return f(x, y), nil
		}
	}
	defaultOutputFuncs := map[string]govaluate.ExpressionFunction{
		"exp":   unary("exp", math.Exp),
		"log10": unary("log10", math.Log10),
		"min":   binary("min", math.Min),
		"max":   binary("max", math.Max),
	}
	for key, val := range outputFunctions {
		defaultOutputFuncs[key] = val
	}

	o := &Outputter{
		outputVariables: outputVariables,
		expressions:     make(map[string]*govaluate.EvaluableExpression),
		outputFunctions: defaultOutputFuncs,
	}
	for key, val := range o.outputVariables {
		switch key {
		case "lon", "lat", precipLiqSurf, precipIceSurf:
			return nil, fmt.Errorf("p3: output variable name '%s' is reserved", key)
		}
		expression, err := govaluate.NewEvaluableExpressionWithFunctions(val, o.outputFunctions)
		if err != nil {
			return nil, fmt.Errorf("p3: output variable %s: %v", key, err)
		}
		o.expressions[key] = expression
		o.modelVariables = append(o.modelVariables, expression.Vars()...)
	}
	o.modelVariables = removeDuplicates(o.modelVariables)
	sort.Strings(o.modelVariables)
	return o, nil
}

// removeDuplicates removes all duplicated strings from a slice, returning a
// slice that contains only unique strings.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]struct{})
	for _, val := range s {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = struct{}{}
		}
	}
	return result
}

// Names returns the output variable names in sorted order.
func (o *Outputter) Names() []string {
	names := make([]string, 0, len(o.outputVariables))
	for k := range o.outputVariables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// CheckModelVars makes sure every variable used in an output expression
// is either a model variable in s or another output variable.
func (o *Outputter) CheckModelVars(s *State) error {
	fields := s.Fields()
	for _, v := range o.modelVariables {
		if _, ok := fields[v]; ok {
			continue
		}
		if v == precipLiqSurf || v == precipIceSurf {
			continue
		}
		if _, ok := o.outputVariables[v]; ok {
			continue
		}
		return fmt.Errorf("p3: undefined variable name '%s'", v)
	}
	return nil
}

// Results calculates the output variables from the current values in s.
// Each result holds one value per level per column, in the same order
// as the model variables.
func (o *Outputter) Results(s *State) (map[string][]float64, error) {
	if err := o.CheckModelVars(s); err != nil {
		return nil, err
	}
	fields := s.Fields()
	n := s.NJ * s.NK
	results := make(map[string][]float64, len(o.outputVariables))
	inProgress := make(map[string]bool)

	var calc func(name string) ([]float64, error)
	calc = func(name string) ([]float64, error) {
		if r, ok := results[name]; ok {
			return r, nil
		}
		if inProgress[name] {
			return nil, fmt.Errorf("p3: output variable %s depends on itself", name)
		}
		inProgress[name] = true
		defer delete(inProgress, name)

		expression := o.expressions[name]
		vars := removeDuplicates(expression.Vars())
		data := make([][]float64, len(vars))
		for j, v := range vars {
			switch {
			case fields[v].Data != nil:
				data[j] = fields[v].Data.Elements
			case v == precipLiqSurf:
				data[j] = broadcast(s.Out.PrecipLiqSurf, s.NK)
			case v == precipIceSurf:
				data[j] = broadcast(s.Out.PrecipIceSurf, s.NK)
			default:
				var err error
				if data[j], err = calc(v); err != nil {
					return nil, err
				}
			}
		}
		r := make([]float64, n)
		params := make(map[string]interface{}, len(vars))
		for i := 0; i < n; i++ {
			for j, v := range vars {
				params[v] = data[j][i]
			}
			val, err := expression.Evaluate(params)
			if err != nil {
				return nil, fmt.Errorf("p3: output variable %s: %v", name, err)
			}
			switch val := val.(type) {
			case float64:
				r[i] = val
			case bool:
				if val {
					r[i] = 1
				}
			default:
				return nil, fmt.Errorf("p3: output variable %s has invalid type %T", name, val)
			}
		}
		results[name] = r
		return r, nil
	}
	for _, name := range o.Names() {
		if _, err := calc(name); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// broadcast repeats each per-column value in v for each of nk levels.
func broadcast(v []float64, nk int) []float64 {
	o := make([]float64, len(v)*nk)
	for i, x := range v {
		for k := 0; k < nk; k++ {
			o[i*nk+k] = x
		}
	}
	return o
}

// units returns the units of output variable name if it is a plain model
// variable, and an empty string otherwise.
func (o *Outputter) units(name string, s *State) string {
	f, ok := s.Fields()[o.outputVariables[name]]
	if !ok {
		return ""
	}
	return unitString(f.Units)
}

func unitString(d unit.Dimensions) string {
	if u := d.String(); u != "" {
		return u
	}
	return "1"
}

// Output calculates the output variables and writes them to fileName
// in NetCDF format, together with the column locations and surface
// precipitation rates.
func (o *Outputter) Output(fileName string, s *State) error {
	results, err := o.Results(s)
	if err != nil {
		return err
	}
	names := o.Names()

	h := cdf.NewHeader([]string{"column", "level"}, []int{s.NJ, s.NK})
	h.AddAttribute("", "comment", "P3 microphysics output")
	h.AddAttribute("", "orientation", s.Infra.Orientation.String())
	h.AddAttribute("", "time_step", []float64{s.Infra.Dt})
	h.AddAttribute("", "steps", []int32{int32(s.Infra.It)})

	colVars := []struct {
		name, description string
		data              []float64
	}{
		{"lon", "column longitude", s.lon()},
		{"lat", "column latitude", s.lat()},
		{precipLiqSurf, "surface liquid precipitation rate", s.Out.PrecipLiqSurf},
		{precipIceSurf, "surface ice precipitation rate", s.Out.PrecipIceSurf},
	}
	for _, v := range colVars {
		h.AddVariable(v.name, []string{"column"}, []float64{0})
		h.AddAttribute(v.name, "description", v.description)
	}
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddAttribute(precipLiqSurf, "units", unitString(unit.MeterPerSecond))
	h.AddAttribute(precipIceSurf, "units", unitString(unit.MeterPerSecond))
	for _, name := range names {
		h.AddVariable(name, []string{"column", "level"}, []float64{0})
		h.AddAttribute(name, "description", o.outputVariables[name])
		if u := o.units(name, s); u != "" {
			h.AddAttribute(name, "units", u)
		}
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("p3: problem creating output file header: %v", errs)
	}

	ff, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("p3: problem creating output file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("p3: problem creating output file: %v", err)
	}
	for _, v := range colVars {
		if err := writeNCF(f, v.name, v.data); err != nil {
			return err
		}
	}
	for _, name := range names {
		if err := writeNCF(f, name, results[name]); err != nil {
			return err
		}
	}
	if err := cdf.UpdateNumRecs(ff); err != nil {
		return fmt.Errorf("p3: problem finishing output file: %v", err)
	}
	return nil
}

func (s *State) lon() []float64 {
	o := make([]float64, s.NJ)
	for i, p := range s.Infra.ColLocation {
		o[i] = p.X
	}
	return o
}

func (s *State) lat() []float64 {
	o := make([]float64, s.NJ)
	for i, p := range s.Infra.ColLocation {
		o[i] = p.Y
	}
	return o
}

// writeNCF writes data to variable v of f.
func writeNCF(f *cdf.File, v string, data []float64) error {
	end := f.Header.Lengths(v)
	start := make([]int, len(end))
	w := f.Writer(v, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("p3: problem writing %s: %v", v, err)
	}
	return nil
}

// readNCF reads all of variable v from f.
func readNCF(f *cdf.File, v string) ([]float64, []int, error) {
	dims := f.Header.Lengths(v)
	if len(dims) == 0 {
		return nil, nil, fmt.Errorf("p3: variable %s is not in file", v)
	}
	n := 1
	for _, d := range dims {
		n *= d
	}
	r := f.Reader(v, nil, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, nil, fmt.Errorf("p3: problem reading %s: %v", v, err)
	}
	data, ok := buf.([]float64)
	if !ok {
		return nil, nil, fmt.Errorf("p3: variable %s has type %T; want []float64", v, buf)
	}
	return data, dims, nil
}
