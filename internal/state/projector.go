// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package state

import (
	"time"

	"github.com/mepsan/dartgw/internal/dart"
)

// antiFlapWindow is the lookback window the anti-flap policy uses to
// decide which status to export (SPEC_FULL.md §4.9).
const antiFlapWindow = 2 * time.Second

// Projector owns every PumpState for the bus this gateway instance
// drives. It is mutated only from the single protocol-engine loop
// (SPEC_FULL.md §5) — no locking is needed because of that single
// ownership, exactly as the teacher's single bubbletea update loop
// owns UI state without a mutex.
type Projector struct {
	pumps map[uint8]*pumpState
}

// NewProjector creates an empty per-bus state projection.
func NewProjector() *Projector {
	return &Projector{pumps: make(map[uint8]*pumpState)}
}

// Get returns a value snapshot of the named pump's state and whether
// it has been seen yet.
func (pr *Projector) Get(addr uint8) (PumpState, bool) {
	p, ok := pr.pumps[addr]
	if !ok {
		return PumpState{}, false
	}
	return p.PumpState, true
}

// All returns a value snapshot of every pump seen since the projector
// was created, in no particular order.
func (pr *Projector) All() []PumpState {
	out := make([]PumpState, 0, len(pr.pumps))
	for _, p := range pr.pumps {
		out = append(out, p.PumpState)
	}
	return out
}

// Forget removes a pump's state entirely. update_config does not call
// it, so a pump's projected state survives a configuration change that
// moves to another address.
func (pr *Projector) Forget(addr uint8) {
	delete(pr.pumps, addr)
}

func (pr *Projector) ensure(addr uint8) *pumpState {
	p, ok := pr.pumps[addr]
	if !ok {
		p = newPumpState(addr)
		pr.pumps[addr] = p
	}
	return p
}

// ApplyStatus folds a freshly-decoded DC1 status into the anti-flap
// policy and returns the status now exported for the pump.
func (pr *Projector) ApplyStatus(addr uint8, newStatus uint8, now time.Time) uint8 {
	p := pr.ensure(addr)
	p.pushStatus(newStatus, now)
	p.LastUpdate = now

	recent := p.recent(now, antiFlapWindow)

	presence := func(s uint8) bool {
		for _, r := range recent {
			if r.status == s {
				return true
			}
		}
		return false
	}
	count := func(s uint8) int {
		n := 0
		for _, r := range recent {
			if r.status == s {
				n++
			}
		}
		return n
	}
	mode := func() (uint8, int) {
		counts := make(map[uint8]int)
		for _, r := range recent {
			counts[r.status]++
		}
		var bestStatus uint8
		bestCount := -1
		for s, c := range counts {
			if c > bestCount {
				bestStatus, bestCount = s, c
			}
		}
		return bestStatus, bestCount
	}

	switch {
	case presence(dart.StatusReset):
		p.Status = dart.StatusReset
	case presence(dart.StatusAuthorized):
		p.Status = dart.StatusAuthorized
	case presence(dart.StatusFillingCompleted):
		p.Status = dart.StatusFillingCompleted
	case presence(dart.StatusNotProgrammed) && count(dart.StatusNotProgrammed) >= 3:
		p.Status = dart.StatusNotProgrammed
	default:
		if m, c := mode(); c >= 3 && m != p.Status {
			p.Status = m
		} else if !p.HasStatus {
			p.Status = newStatus
		}
	}
	p.HasStatus = true

	return p.Status
}

// ApplyVolumeAmount folds a decoded DC2 into the pump's filling fields.
func (pr *Projector) ApplyVolumeAmount(addr uint8, volume, amount float64, now time.Time) {
	p := pr.ensure(addr)
	p.Volume = volume
	p.Amount = amount
	p.HasFilling = true
	p.LastUpdate = now
}

// ApplyNozzlePrice folds a decoded (and already range-clamped) DC3 into
// the pump's nozzle/price fields.
func (pr *Projector) ApplyNozzlePrice(addr uint8, nozzle uint8, nozzleOut bool, price float64, now time.Time) {
	p := pr.ensure(addr)
	p.Nozzle = nozzle
	p.NozzleOut = nozzleOut
	p.Price = price
	p.HasNozzle = true
	p.HasPrice = true
	p.LastUpdate = now
}

// ApplyIdentity folds a decoded DC9 into the pump's identity field.
func (pr *Projector) ApplyIdentity(addr uint8, identity string, now time.Time) {
	p := pr.ensure(addr)
	p.Identity = identity
	p.HasIdentity = true
	p.LastUpdate = now
}
