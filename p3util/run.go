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
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/p3"
	"github.com/spatialmodel/p3/science/rates/bulk"
	"github.com/spatialmodel/p3/science/satvap"
	"github.com/spatialmodel/p3/science/tables"
)

// RunConfig holds the settings for a simulation.
type RunConfig struct {
	// LogFile is the path to the desired logfile location.
	LogFile string

	// CaseFile is the path to the TOML file holding the initial state.
	CaseFile string

	// OutputFile is the path to the desired NetCDF output file.
	OutputFile string

	// OutputVariables maps output variable names to expressions.
	OutputVariables map[string]string

	// TableFile, if not empty, is a file of lookup tables created by
	// WriteTables. Otherwise the tables are calculated.
	TableFile string

	Dt       float64 // time step [s]
	NumSteps int

	Runtime  p3.Runtime
	Strategy p3.Strategy

	// Strict enables the bounds checker, and AbortOnCheck makes its
	// findings fatal.
	Strict, AbortOnCheck bool

	// MetricsAddr, if not empty, is where Prometheus metrics are served
	// during the simulation.
	MetricsAddr string

	// Out receives the run summary. Log messages go to both Out and
	// LogFile.
	Out io.Writer
}

// Run runs a simulation with the given configuration.
func Run(cfg RunConfig) error {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.NumSteps < 1 {
		return fmt.Errorf("p3: NumSteps must be at least 1 but is %d", cfg.NumSteps)
	}

	logfile, err := os.Create(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("p3: problem creating log file: %v", err)
	}
	defer logfile.Close()
	log := newLogger(io.MultiWriter(logfile, cfg.Out))

	log.WithField("file", cfg.CaseFile).Info("reading case")
	cs, err := LoadCaseFile(cfg.CaseFile)
	if err != nil {
		return err
	}
	s, err := cs.State(cfg.Dt)
	if err != nil {
		return err
	}
	o, err := NewOutputter(cfg.OutputVariables, nil)
	if err != nil {
		return err
	}
	if err = o.CheckModelVars(s); err != nil {
		return err
	}

	var tab *tables.Bundle
	if cfg.TableFile != "" {
		log.WithField("file", cfg.TableFile).Info("reading lookup tables")
		tab, err = LoadTables(cfg.TableFile)
		if err != nil {
			return err
		}
	} else {
		log.Info("calculating lookup tables")
		tab = tables.New()
	}

	ws, err := p3.NewDefaultWorkspaceManager(s.NK)
	if err != nil {
		return err
	}

	d := p3.NewDriver(bulk.Processes{}, satvap.MurphyKoop{})
	if cfg.Strategy != nil {
		d.Strategy = cfg.Strategy
	}
	d.Log = log
	if cfg.Strict {
		d.Check = p3.BoundsChecker(log, cfg.AbortOnCheck)
	}
	var earlyExits int64
	d.Finished = func(c *p3.Column) {
		if c.Done() {
			atomic.AddInt64(&earlyExits, 1)
		}
		recordColumn(c.Done())
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, log)
		defer srv.Close()
	}

	strategy := strategyName(d.Strategy)
	log.WithFields(logrus.Fields{
		"case":     cs.Case.Name,
		"columns":  s.NJ,
		"levels":   s.NK,
		"strategy": strategy,
		"steps":    cfg.NumSteps,
	}).Info("starting simulation")

	startTime := time.Now()
	elapsed := make([]float64, 0, cfg.NumSteps)
	for step := 0; step < cfg.NumSteps; step++ {
		s.Infra.It = step
		atomic.StoreInt64(&earlyExits, 0)
		us, err := d.Step(cfg.Runtime, s.Prog, s.In, s.Out, s.Infra, s.Hist, tab, ws, s.NJ, s.NK)
		if err != nil {
			recordStepError(err)
			return fmt.Errorf("p3: step %d: %v", step, err)
		}
		recordStep(strategy, time.Duration(us)*time.Microsecond)
		elapsed = append(elapsed, float64(us))
		log.WithFields(logrus.Fields{
			"step":       step,
			"elapsed_us": us,
			"early_exit": atomic.LoadInt64(&earlyExits),
		}).Info("finished step")
	}
	s.Infra.It = cfg.NumSteps

	summary := Summarize(elapsed)
	fmt.Fprintln(cfg.Out, summary)
	log.WithField("total", time.Since(startTime)).Info("simulation finished")

	log.WithField("file", cfg.OutputFile).Info("writing output")
	return o.Output(cfg.OutputFile, s)
}

// newLogger returns a logger that writes text to w.
func newLogger(w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.Out = w
	log.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	}
	log.Level = logrus.InfoLevel
	return log
}

func strategyName(s p3.Strategy) string {
	switch s.(type) {
	case p3.Fused, *p3.Fused:
		return "fused"
	case p3.Staged, *p3.Staged:
		return "staged"
	default:
		return fmt.Sprintf("%T", s)
	}
}

// Summary holds statistics of the time taken by each step, in
// microseconds.
type Summary struct {
	Steps                  int
	Mean, Min, Max, StdDev float64
}

// Summarize calculates statistics of the step durations in elapsed.
func Summarize(elapsed []float64) Summary {
	s := Summary{Steps: len(elapsed)}
	if len(elapsed) == 0 {
		return s
	}
	s.Mean = stats.StatsMean(elapsed)
	s.Min = stats.StatsMin(elapsed)
	s.Max = stats.StatsMax(elapsed)
	if len(elapsed) > 1 {
		s.StdDev = stats.StatsSampleStandardDeviation(elapsed)
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d steps; time per step (μs): mean %.1f, min %.0f, max %.0f, std. dev. %.1f",
		s.Steps, s.Mean, s.Min, s.Max, s.StdDev)
}
