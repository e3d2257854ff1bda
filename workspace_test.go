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
	"strings"
	"testing"
)

func TestWorkspace(t *testing.T) {
	m, err := NewWorkspaceManager(3, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	hs, err := m.Handles("b", "a")
	if err != nil {
		t.Fatal(err)
	}
	w := m.Acquire()
	b := w.Take(hs[0])
	for i := range b {
		b[i] = 5
	}
	a := w.Take(hs[1])
	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("buffer lengths %d, %d", len(a), len(b))
	}
	a[2] = 7
	if b[0] != 5 || b[2] != 5 {
		t.Error("buffers alias each other")
	}
	w.Release()

	// A workspace that is reused is zero-filled again.
	w = m.Acquire()
	for _, buf := range w.TakeMany(hs) {
		for i, v := range buf {
			if v != 0 {
				t.Errorf("buffer[%d] = %g after reuse", i, v)
			}
		}
	}
	w.Release()
}

func TestWorkspaceConcurrentAcquire(t *testing.T) {
	m, err := NewDefaultWorkspaceManager(4)
	if err != nil {
		t.Fatal(err)
	}
	hs, err := m.Handles(DefaultWorkspaceNames...)
	if err != nil {
		t.Fatal(err)
	}
	w1, w2 := m.Acquire(), m.Acquire()
	s1, s2 := bindScratch(w1, hs), bindScratch(w2, hs)
	s1.T[0] = 1
	if s2.T[0] != 0 {
		t.Error("two workspaces share a buffer")
	}
	w1.Release()
	w2.Release()
}

func TestWorkspaceErrors(t *testing.T) {
	if _, err := NewWorkspaceManager(0, []string{"a"}); err == nil {
		t.Error("zero levels should be an error")
	}
	if _, err := NewWorkspaceManager(2, []string{"a", ""}); err == nil {
		t.Error("empty name should be an error")
	}
	if _, err := NewWorkspaceManager(2, []string{"a", "b", "a"}); err == nil ||
		!strings.Contains(err.Error(), "duplicate") {
		t.Errorf("duplicate name: err = %v", err)
	}
	m, err := NewWorkspaceManager(2, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Handles("a", "missing"); err == nil ||
		err.Error() != `p3: workspace buffer "missing" not found` {
		t.Errorf("unknown name: err = %v", err)
	}

	hs, _ := m.Handles("a")
	w := m.Acquire()
	w.Take(hs[0])
	func() {
		defer func() {
			if recover() == nil {
				t.Error("taking a buffer twice should panic")
			}
		}()
		w.Take(hs[0])
	}()
	w.Release()
}
