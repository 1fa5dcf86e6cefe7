// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"testing"
	"time"

	"github.com/mepsan/dartgw/internal/dart"
	"github.com/mepsan/dartgw/internal/eventbus"
	"github.com/mepsan/dartgw/internal/logging"
	"github.com/mepsan/dartgw/internal/state"
)

// fakeTransport is a minimal halfDuplexTransport double. Run records
// the engine's byte callback and then blocks on stop, which the tests
// never close; feed hands bytes straight to that callback.
type fakeTransport struct {
	written  [][]byte
	onBytes  func([]byte)
	stop     chan struct{}
	openErr  error
	writeErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{stop: make(chan struct{})}
}

func (f *fakeTransport) Open() error  { return f.openErr }
func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) WriteFrame(frame []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, append([]byte(nil), frame...))
	return nil
}

func (f *fakeTransport) Run(onBytes func([]byte)) error {
	f.onBytes = onBytes
	<-f.stop
	return nil
}

func (f *fakeTransport) feed(b []byte) { f.onBytes(b) }

func newTestEngine() (*Engine, *fakeTransport, *eventbus.Bus) {
	ft := newFakeTransport()
	bus := eventbus.New()
	proj := state.NewProjector()
	log := logging.New(logging.LevelError, nil)
	e := New(ft, proj, bus, log)
	return e, ft, bus
}

func TestSendCommandBuildsAndWritesFrame(t *testing.T) {
	e, ft, _ := newTestEngine()
	go e.Run()
	defer e.Stop()

	t.Helper()
	// give Run a moment to reach the select loop
	time.Sleep(10 * time.Millisecond)

	tx, err := dart.CD1Request(dart.Cmd1Status)
	if err != nil {
		t.Fatalf("unexpected error building request: %v", err)
	}

	frame, err := e.SendCommand(0x50, []dart.Transaction{tx}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame[1] != dart.ControlDefault {
		t.Fatalf("expected default control byte, got %#x", frame[1])
	}
	if len(ft.written) != 1 {
		t.Fatalf("expected exactly one write, got %d", len(ft.written))
	}
}

func TestSendCommandResetPicksEmpiricalControlByte(t *testing.T) {
	e, _, _ := newTestEngine()
	go e.Run()
	defer e.Stop()
	time.Sleep(10 * time.Millisecond)

	tx, _ := dart.CD1Request(dart.Cmd1Reset)
	frame, err := e.SendCommand(0x50, []dart.Transaction{tx}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame[1] != dart.ControlReset {
		t.Fatalf("expected reset control byte %#x, got %#x", dart.ControlReset, frame[1])
	}
}

func TestSendCommandInvalidAddressFails(t *testing.T) {
	e, _, _ := newTestEngine()
	go e.Run()
	defer e.Stop()
	time.Sleep(10 * time.Millisecond)

	tx, _ := dart.CD1Request(dart.Cmd1Status)
	_, err := e.SendCommand(0x10, []dart.Transaction{tx}, nil)
	if err == nil {
		t.Fatal("expected an error for an out-of-range address")
	}
}

func TestIngressDecodesStatusAndUpdatesProjection(t *testing.T) {
	e, ft, bus := newTestEngine()
	ch, cancel := bus.Subscribe()
	defer cancel()

	go e.Run()
	defer e.Stop()
	time.Sleep(10 * time.Millisecond)

	frame, err := dart.BuildFrame(0x50, 0x00, []dart.Transaction{{Trans: dart.Trans1, Data: []byte{dart.StatusReset}}})
	if err != nil {
		t.Fatalf("unexpected error building frame: %v", err)
	}
	ft.feed(frame)

	var gotMsg PumpMessage
	found := false
	for i := 0; i < 5 && !found; i++ {
		select {
		case ev := <-ch:
			if m, ok := ev.Payload.(PumpMessage); ok {
				gotMsg = m
				found = true
			}
		case <-time.After(200 * time.Millisecond):
		}
	}
	if !found {
		t.Fatal("expected a pump_message event")
	}
	if gotMsg.Decoded.Kind != dart.KindStatus || gotMsg.Decoded.Status != dart.StatusReset {
		t.Fatalf("unexpected decoded payload: %+v", gotMsg.Decoded)
	}

	time.Sleep(10 * time.Millisecond)
	ps, ok := e.proj.Get(0x50)
	if !ok {
		t.Fatal("expected the projector to have observed pump 0x50")
	}
	if ps.Status != dart.StatusReset {
		t.Fatalf("expected projected status RESET, got %d", ps.Status)
	}
}

func TestIngressDropsHeartbeat(t *testing.T) {
	e, ft, bus := newTestEngine()
	ch, cancel := bus.Subscribe()
	defer cancel()

	go e.Run()
	defer e.Stop()
	time.Sleep(10 * time.Millisecond)

	ft.feed([]byte{0x50, 0x20, 0xFA})

	select {
	case ev := <-ch:
		if _, ok := ev.Payload.(PumpMessage); ok {
			t.Fatalf("heartbeat frame must never produce a pump_message, got %+v", ev)
		}
	case <-time.After(50 * time.Millisecond):
	}
}
