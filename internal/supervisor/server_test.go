// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package supervisor

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mepsan/dartgw/internal/config"
	"github.com/mepsan/dartgw/internal/engine"
	"github.com/mepsan/dartgw/internal/eventbus"
	"github.com/mepsan/dartgw/internal/logging"
	"github.com/mepsan/dartgw/internal/state"
)

// fakeTransport satisfies engine's unexported halfDuplexTransport
// interface structurally — no import of engine's internals needed.
type fakeTransport struct {
	stop chan struct{}
}

func newFakeTransport() *fakeTransport { return &fakeTransport{stop: make(chan struct{})} }

func (f *fakeTransport) Open() error                   { return nil }
func (f *fakeTransport) Close() error                  { return nil }
func (f *fakeTransport) WriteFrame(frame []byte) error { return nil }
func (f *fakeTransport) Run(onBytes func([]byte)) error {
	<-f.stop
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	eng := engine.New(newFakeTransport(), state.NewProjector(), eventbus.New(), logging.New(logging.LevelError, nil))
	go eng.Run()
	t.Cleanup(eng.Stop)

	bus := eventbus.New()
	srv := New(eng, bus, logging.New(logging.LevelError, nil), config.GatewayConfig{
		Port: "/dev/ttyUSB0", Baud: 9600, PumpAddress: 0x50, BindAddr: ":0",
	})

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	time.Sleep(5 * time.Millisecond)
	return ts, eng
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPingPong(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialWS(t, ts)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(msg) != `{"type":"pong"}` {
		t.Fatalf("unexpected reply: %s", msg)
	}
}

func TestGetStatus(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialWS(t, ts)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"1","type":"get_status"}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var resp statusResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !resp.OK || !resp.Connected {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Config.PumpAddress != "0x50" {
		t.Fatalf("unexpected pump address: %s", resp.Config.PumpAddress)
	}
}

func TestSendCommandStatusRequest(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialWS(t, ts)

	req := `{"id":"c1","type":"send_command","command":{"type":"CD1","data":{"command":0}},"pump_address":"0x50"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(req)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var resp commandResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !resp.OK {
		t.Fatalf("expected ok response, got %+v", resp)
	}
	if resp.Frame == nil || resp.Frame.Hex == "" {
		t.Fatalf("expected a built frame, got %+v", resp)
	}
}

func TestSendCommandInvalidAddressReturnsError(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialWS(t, ts)

	req := `{"id":"c2","type":"send_command","command":{"type":"CD1","data":{"command":0}},"pump_address":"0x10"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(req)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var resp commandResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if resp.OK {
		t.Fatalf("expected failure for out-of-range address, got %+v", resp)
	}
	if resp.Error == nil || resp.Error.Kind != "InvalidAddress" {
		t.Fatalf("expected InvalidAddress error, got %+v", resp.Error)
	}
}
