// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package state

import (
	"testing"
	"time"

	"github.com/mepsan/dartgw/internal/dart"
)

func TestApplyStatusAntiFlapMajority(t *testing.T) {
	pr := NewProjector()
	base := time.Unix(1000, 0)

	pr.ApplyStatus(0x51, dart.StatusFilling, base)
	pr.ApplyStatus(0x51, dart.StatusNotProgrammed, base.Add(100*time.Millisecond))
	pr.ApplyStatus(0x51, dart.StatusFilling, base.Add(200*time.Millisecond))
	got := pr.ApplyStatus(0x51, dart.StatusNotProgrammed, base.Add(300*time.Millisecond))

	if got != dart.StatusFilling {
		t.Fatalf("expected anti-flap to hold status %d (majority), got %d", dart.StatusFilling, got)
	}
}

func TestApplyStatusNotProgrammedNeedsThree(t *testing.T) {
	pr := NewProjector()
	base := time.Unix(2000, 0)

	pr.ApplyStatus(0x52, dart.StatusFilling, base)
	got := pr.ApplyStatus(0x52, dart.StatusNotProgrammed, base.Add(50*time.Millisecond))
	if got != dart.StatusFilling {
		t.Fatalf("single status-0 sample must not override current status, got %d", got)
	}

	got = pr.ApplyStatus(0x52, dart.StatusNotProgrammed, base.Add(100*time.Millisecond))
	if got != dart.StatusFilling {
		t.Fatalf("two status-0 samples must not override current status, got %d", got)
	}

	got = pr.ApplyStatus(0x52, dart.StatusNotProgrammed, base.Add(150*time.Millisecond))
	if got != dart.StatusNotProgrammed {
		t.Fatalf("three recent status-0 samples must export status 0, got %d", got)
	}
}

func TestApplyStatusResetAlwaysWins(t *testing.T) {
	pr := NewProjector()
	base := time.Unix(3000, 0)

	pr.ApplyStatus(0x53, dart.StatusFilling, base)
	pr.ApplyStatus(0x53, dart.StatusFilling, base.Add(50*time.Millisecond))
	got := pr.ApplyStatus(0x53, dart.StatusReset, base.Add(100*time.Millisecond))

	if got != dart.StatusReset {
		t.Fatalf("a single reset sample must immediately win, got %d", got)
	}
}

func TestApplyStatusAuthorizedAlwaysWins(t *testing.T) {
	pr := NewProjector()
	base := time.Unix(4000, 0)

	pr.ApplyStatus(0x54, dart.StatusNotProgrammed, base)
	pr.ApplyStatus(0x54, dart.StatusNotProgrammed, base.Add(50*time.Millisecond))
	pr.ApplyStatus(0x54, dart.StatusNotProgrammed, base.Add(100*time.Millisecond))
	got := pr.ApplyStatus(0x54, dart.StatusAuthorized, base.Add(150*time.Millisecond))

	if got != dart.StatusAuthorized {
		t.Fatalf("authorize must immediately win over a settled status-0 majority, got %d", got)
	}
}

func TestApplyStatusFillingCompletedPreferredOverAlternation(t *testing.T) {
	pr := NewProjector()
	base := time.Unix(5000, 0)

	pr.ApplyStatus(0x55, dart.StatusFillingCompleted, base)
	pr.ApplyStatus(0x55, dart.StatusNotProgrammed, base.Add(50*time.Millisecond))
	got := pr.ApplyStatus(0x55, dart.StatusFillingCompleted, base.Add(100*time.Millisecond))

	if got != dart.StatusFillingCompleted {
		t.Fatalf("status 5 must be preferred over 0/5 alternation, got %d", got)
	}
}

func TestApplyStatusOldSamplesFallOutsideWindow(t *testing.T) {
	pr := NewProjector()
	base := time.Unix(6000, 0)

	// The first sample initializes the exported status to 4; if the two
	// old status-0 samples still counted, the final one would make three.
	pr.ApplyStatus(0x56, dart.StatusFilling, base.Add(-500*time.Millisecond))
	pr.ApplyStatus(0x56, dart.StatusNotProgrammed, base)
	pr.ApplyStatus(0x56, dart.StatusNotProgrammed, base.Add(1*time.Second))
	pr.ApplyStatus(0x56, dart.StatusFilling, base.Add(3*time.Second))
	got := pr.ApplyStatus(0x56, dart.StatusNotProgrammed, base.Add(3100*time.Millisecond))

	if got != dart.StatusFilling {
		t.Fatalf("status-0 samples outside the 2s window must not count toward the threshold, got %d", got)
	}
}

func TestApplyVolumeAmountAndIdentity(t *testing.T) {
	pr := NewProjector()
	now := time.Unix(7000, 0)

	pr.ApplyVolumeAmount(0x57, 12.34, 56.78, now)
	pr.ApplyIdentity(0x57, "0000998877", now)
	pr.ApplyNozzlePrice(0x57, 2, true, 2.5, now)

	got, ok := pr.Get(0x57)
	if !ok {
		t.Fatalf("expected pump 0x57 to be present")
	}
	if got.Volume != 12.34 || got.Amount != 56.78 || !got.HasFilling {
		t.Fatalf("volume/amount not applied correctly: %+v", got)
	}
	if got.Identity != "0000998877" || !got.HasIdentity {
		t.Fatalf("identity not applied correctly: %+v", got)
	}
	if got.Nozzle != 2 || !got.NozzleOut || got.Price != 2.5 || !got.HasPrice {
		t.Fatalf("nozzle/price not applied correctly: %+v", got)
	}
}

func TestForgetRemovesPump(t *testing.T) {
	pr := NewProjector()
	pr.ApplyStatus(0x58, dart.StatusReset, time.Unix(8000, 0))
	if _, ok := pr.Get(0x58); !ok {
		t.Fatalf("expected pump to be present before Forget")
	}
	pr.Forget(0x58)
	if _, ok := pr.Get(0x58); ok {
		t.Fatalf("expected pump to be gone after Forget")
	}
}
