// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package barrier implements a fixed-party rendezvous used to synchronize
// Navigation's end-of-calibration with the Motor Controller's entry into
// Accelerating.
package barrier

import "sync"

// Barrier releases all parties once exactly N of them have called Wait.
// It is a one-shot primitive: hitting it more than N times is a caller
// error, matching the source's single post-calibration rendezvous per run.
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	waiting int
	round   int
}

// New constructs a Barrier for the given number of parties.
func New(parties int) *Barrier {
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until Parties() goroutines have called Wait, then releases
// all of them together.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	round := b.round
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.round++
		b.cond.Broadcast()
		return
	}
	for round == b.round {
		b.cond.Wait()
	}
}

// Parties returns the number of parties configured for this barrier.
func (b *Barrier) Parties() int {
	return b.parties
}
