// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tick abstracts the external monotonic logical clock driving
// auction windows and price decay.
package tick

import "sync/atomic"

// Source is a read-only view of the current logical tick.
type Source interface {
	Current() uint64
}

// Manual is a settable tick source. The daemon advances it on a timer;
// tests set it directly.
type Manual struct {
	now atomic.Uint64
}

// NewManual creates a Manual source starting at tick.
func NewManual(start uint64) *Manual {
	m := &Manual{}
	m.now.Store(start)
	return m
}

// Current returns the current tick.
func (m *Manual) Current() uint64 {
	return m.now.Load()
}

// Set moves the clock to tick. The clock never moves backwards.
func (m *Manual) Set(t uint64) {
	for {
		cur := m.now.Load()
		if t <= cur {
			return
		}
		if m.now.CompareAndSwap(cur, t) {
			return
		}
	}
}

// Advance moves the clock forward by delta ticks and returns the new tick.
func (m *Manual) Advance(delta uint64) uint64 {
	return m.now.Add(delta)
}
