// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package state maintains the per-pump projection (PumpState) built
// from decoded DART transactions, including the status anti-flap
// policy described in SPEC_FULL.md §4.9.
package state

import "time"

const statusHistoryCap = 10

// statusSample is one (status, observed-at) pair in the anti-flap ring.
type statusSample struct {
	status uint8
	at     time.Time
}

// PumpState is the value snapshot exported to observers (C9's single
// owner is the Projector; everyone else only ever reads a copy).
type PumpState struct {
	Address    uint8
	Status     uint8
	HasStatus  bool
	Volume     float64
	Amount     float64
	HasFilling bool
	Nozzle     uint8
	NozzleOut  bool
	HasNozzle  bool
	Price      float64
	HasPrice   bool
	Identity   string
	HasIdentity bool
	LastUpdate time.Time
}

// pumpState is the mutable, owned-by-Projector counterpart of
// PumpState, carrying the status_history ring the anti-flap policy
// needs that is not part of the exported snapshot.
type pumpState struct {
	PumpState
	history []statusSample
}

func newPumpState(addr uint8) *pumpState {
	return &pumpState{PumpState: PumpState{Address: addr}}
}

func (p *pumpState) pushStatus(status uint8, now time.Time) {
	p.history = append(p.history, statusSample{status: status, at: now})
	if len(p.history) > statusHistoryCap {
		p.history = p.history[len(p.history)-statusHistoryCap:]
	}
}

// recent returns the samples observed within window of now.
func (p *pumpState) recent(now time.Time, window time.Duration) []statusSample {
	var out []statusSample
	for _, s := range p.history {
		if now.Sub(s.at) <= window {
			out = append(out, s)
		}
	}
	return out
}
