// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"testing"

	"github.com/mepsan/dartgw/internal/eventbus"
)

func TestLevelFiltering(t *testing.T) {
	bus := eventbus.New()
	ch, cancel := bus.Subscribe()
	defer cancel()

	l := New(LevelWarn, bus)
	l.Infof("should be filtered")
	l.Warnf("should pass")

	select {
	case ev := <-ch:
		entry, ok := ev.Payload.(Entry)
		if !ok {
			t.Fatalf("unexpected payload type: %T", ev.Payload)
		}
		if entry.Level != LevelWarn {
			t.Fatalf("expected only the warn line to be published, got level %s", entry.Level)
		}
	default:
		t.Fatal("expected the warn line to be published")
	}

	select {
	case ev := <-ch:
		t.Fatalf("expected no second event, got %+v", ev)
	default:
	}
}

func TestPublishesOnBus(t *testing.T) {
	bus := eventbus.New()
	ch, cancel := bus.Subscribe()
	defer cancel()

	l := New(LevelDebug, bus)
	l.Errorf("boom: %d", 42)

	ev := <-ch
	entry := ev.Payload.(Entry)
	if entry.Message != "boom: 42" {
		t.Fatalf("unexpected message: %q", entry.Message)
	}
	if entry.Level != LevelError {
		t.Fatalf("unexpected level: %s", entry.Level)
	}
}

func TestNilBusDoesNotPanic(t *testing.T) {
	l := New(LevelDebug, nil)
	l.Infof("no subscribers, should not panic")
}
