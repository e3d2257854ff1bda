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

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Strategy specifies how column tasks are scheduled onto workers.
// Whatever the schedule, each column runs the stages in order, and no
// two goroutines ever touch the same column at the same time.
type Strategy interface {
	// Dispatch runs stages on nj columns. newColumn creates the task for
	// column i and finished is called once a column has run its last
	// stage, whether or not it ended early. check, if not nil, is
	// called after every stage of every column.
	Dispatch(nj int, newColumn func(i int) *Column, finished func(c *Column),
		stages []Stage, check Checker) error
}

// Fused runs every stage of a column before moving on to the next
// column, so each task only needs its workspace for as long as it runs.
type Fused struct {
	// Workers is the number of concurrent workers. If it is zero or
	// less, runtime.GOMAXPROCS(0) is used.
	Workers int
}

// Dispatch implements Strategy.
func (f Fused) Dispatch(nj int, newColumn func(i int) *Column, finished func(c *Column),
	stages []Stage, check Checker) error {

	nprocs := workers(f.Workers)
	errs := make([]error, nprocs)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			for ii := pp; ii < nj; ii += nprocs {
				c := newColumn(ii)
				err := runColumn(c, stages, check)
				finished(c)
				if err != nil {
					errs[pp] = err
					return
				}
			}
		}(pp)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Staged runs one stage on all columns before starting the next, with a
// barrier in between. Columns that ended early are skipped by the later
// stages.
type Staged struct {
	// Workers is the maximum number of columns processed at once. If it
	// is zero or less, runtime.GOMAXPROCS(0) is used.
	Workers int
}

// Dispatch implements Strategy.
func (s Staged) Dispatch(nj int, newColumn func(i int) *Column, finished func(c *Column),
	stages []Stage, check Checker) error {

	cols := make([]*Column, nj)
	for i := range cols {
		cols[i] = newColumn(i)
	}
	defer func() {
		for _, c := range cols {
			finished(c)
		}
	}()
	for _, st := range stages {
		var g errgroup.Group
		g.SetLimit(workers(s.Workers))
		for _, c := range cols {
			if c.done {
				continue
			}
			g.Go(func() error {
				return runStage(c, st, check)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// NewStrategy returns the strategy with the given name, which must be
// either "fused" or "staged".
func NewStrategy(name string, workers int) (Strategy, error) {
	switch name {
	case "fused":
		return Fused{Workers: workers}, nil
	case "staged":
		return Staged{Workers: workers}, nil
	default:
		return nil, fmt.Errorf("p3: invalid strategy option %s", name)
	}
}

// runColumn runs stages on c until one of them ends the task.
func runColumn(c *Column, stages []Stage, check Checker) error {
	for _, st := range stages {
		if c.done {
			return nil
		}
		if err := runStage(c, st, check); err != nil {
			return err
		}
	}
	return nil
}

func runStage(c *Column, st Stage, check Checker) error {
	c.stage = st.Name
	if err := st.Run(c); err != nil {
		return fmt.Errorf("p3: column %d, stage %s: %v", c.index, st.Name, err)
	}
	if check != nil {
		if err := check(c, st.Name); err != nil {
			return &CheckError{Column: c.index, Stage: st.Name, Err: err}
		}
	}
	return nil
}

func workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}
