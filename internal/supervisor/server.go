// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package supervisor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mepsan/dartgw/internal/config"
	"github.com/mepsan/dartgw/internal/dart"
	"github.com/mepsan/dartgw/internal/engine"
	"github.com/mepsan/dartgw/internal/eventbus"
	"github.com/mepsan/dartgw/internal/logging"
	"github.com/mepsan/dartgw/internal/transport"
)

// sendCap bounds each connection's outbound queue; messages for a
// client too slow to drain it are dropped while the queue is full
// (the connection stays open) rather than allowed to backpressure the
// fan-out goroutine publishing to every other connection (P12).
const sendCap = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the gorilla/websocket front door onto one running engine.
// Structurally this generalizes WebSocketConnection (cmd/connection.go)
// from a client-side byte pipe to a server accepting many connections,
// each duplexing JSON requests/pushes rather than raw Fusain bytes.
type Server struct {
	eng *engine.Engine
	bus *eventbus.Bus
	log *logging.Logger

	mu  sync.Mutex
	cfg config.GatewayConfig
}

// New builds a Server fronting eng, publishing/subscribing on bus, and
// tracking cfg as the config shown to get_status/update_config.
func New(eng *engine.Engine, bus *eventbus.Bus, log *logging.Logger, cfg config.GatewayConfig) *Server {
	return &Server{eng: eng, bus: bus, log: log, cfg: cfg}
}

// ServeHTTP upgrades the request to a websocket and serves it until
// the client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	s.serveConn(conn)
}

// serveConn runs one connection's read loop and writer goroutine until
// either side closes it.
func (s *Server) serveConn(conn *websocket.Conn) {
	defer conn.Close()

	send := make(chan []byte, sendCap)
	done := make(chan struct{})
	var closeOnce sync.Once
	stop := func() { closeOnce.Do(func() { close(done) }) }
	defer stop()

	go s.writerLoop(conn, send, done)

	events, cancelEvents := s.bus.Subscribe()
	defer cancelEvents()
	go s.forwardEvents(events, send, done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		reply := s.handle(raw)
		if reply == nil {
			continue
		}
		select {
		case send <- reply:
		case <-done:
			return
		default:
			// Slow client: drop this reply rather than block the
			// connection's own read loop.
		}
	}
}

// writerLoop serializes every write to conn through one goroutine, the
// piece of original plumbing WebSocketConnection didn't need because
// the teacher's client side never had more than one writer.
func (s *Server) writerLoop(conn *websocket.Conn, send <-chan []byte, done chan struct{}) {
	for {
		select {
		case msg := <-send:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// forwardEvents bridges the event bus onto this connection's send
// channel. A full send channel drops the event (P12) instead of
// blocking the bus's fan-out goroutine.
func (s *Server) forwardEvents(events <-chan eventbus.Event, send chan<- []byte, done chan struct{}) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg := s.encodeEvent(ev)
			if msg == nil {
				continue
			}
			select {
			case send <- msg:
			default:
			}
		case <-done:
			return
		}
	}
}

func (s *Server) encodeEvent(ev eventbus.Event) []byte {
	switch ev.Topic {
	case eventbus.TopicPumpMessage:
		switch payload := ev.Payload.(type) {
		case engine.PumpMessage:
			msg, err := json.Marshal(pumpMessagePush{
				Type:        "pump_message",
				Address:     formatAddress(payload.Address),
				Timestamp:   payload.Timestamp.Format(time.RFC3339Nano),
				Transaction: decodedToDTO(payload.Decoded),
				RawHex:      payload.RawHex,
			})
			if err != nil {
				return nil
			}
			return msg
		default:
			return nil
		}
	case eventbus.TopicLog:
		entry, ok := ev.Payload.(logging.Entry)
		if !ok {
			return nil
		}
		msg, err := json.Marshal(logPush{
			Type:    "log",
			TS:      entry.Time.Format(time.RFC3339Nano),
			Level:   entry.Level.String(),
			Message: entry.Message,
		})
		if err != nil {
			return nil
		}
		return msg
	case eventbus.TopicConnection:
		connected, _ := ev.Payload.(bool)
		msg, err := json.Marshal(connectionStatusPush{Type: "connection_status", Connected: connected})
		if err != nil {
			return nil
		}
		return msg
	default:
		return nil
	}
}

// handle dispatches one inbound message and returns the JSON reply, or
// nil if the message requires none (e.g. ping).
func (s *Server) handle(raw []byte) []byte {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}

	switch env.Type {
	case "ping":
		return pongMessage
	case "send_command":
		return s.handleSendCommand(raw)
	case "get_status":
		return s.handleGetStatus(env.ID)
	case "update_config":
		return s.handleUpdateConfig(raw)
	default:
		msg, _ := json.Marshal(commandResponse{ID: env.ID, OK: false, Error: &errorInfo{Kind: "InvalidArgument", Message: fmt.Sprintf("unrecognized request type %q", env.Type)}})
		return msg
	}
}

func (s *Server) handleSendCommand(raw []byte) []byte {
	var req sendCommandRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		msg, _ := json.Marshal(commandResponse{OK: false, Error: &errorInfo{Kind: "InvalidArgument", Message: err.Error()}})
		return msg
	}

	addr, err := parseAddress(req.PumpAddress)
	if err != nil {
		msg, _ := json.Marshal(commandResponse{ID: req.ID, OK: false, Error: &errorInfo{Kind: "InvalidAddress", Message: err.Error()}})
		return msg
	}

	tx, err := buildTransaction(req.Command)
	if err != nil {
		msg, _ := json.Marshal(commandResponse{ID: req.ID, OK: false, Error: &errorInfo{Kind: "InvalidArgument", Message: err.Error()}})
		return msg
	}

	var ctrl *uint8
	if req.Control != nil {
		c := uint8(*req.Control)
		ctrl = &c
	}

	frame, err := s.eng.SendCommand(addr, []dart.Transaction{tx}, ctrl)
	if err != nil {
		kind := "TransportError"
		if de, ok := err.(dart.Error); ok {
			kind = de.Kind()
		}
		msg, _ := json.Marshal(commandResponse{ID: req.ID, OK: false, Error: &errorInfo{Kind: kind, Message: err.Error()}})
		return msg
	}

	byteValues := make([]int, len(frame))
	for i, b := range frame {
		byteValues[i] = int(b)
	}
	msg, _ := json.Marshal(commandResponse{
		ID:        req.ID,
		OK:        true,
		CommandID: req.ID,
		Frame:     &frameInfo{Hex: fmt.Sprintf("%x", frame), Bytes: byteValues},
	})
	return msg
}

func (s *Server) handleGetStatus(id string) []byte {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	msg, _ := json.Marshal(statusResponse{
		ID:        id,
		OK:        true,
		Connected: s.eng.Connected(),
		Config: &configInfo{
			Port:        cfg.Port,
			Baud:        cfg.Baud,
			PumpAddress: formatAddress(cfg.PumpAddress),
		},
	})
	return msg
}

func (s *Server) handleUpdateConfig(raw []byte) []byte {
	var req updateConfigRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		msg, _ := json.Marshal(statusResponse{OK: false, Error: &errorInfo{Kind: "InvalidArgument", Message: err.Error()}})
		return msg
	}

	addr, err := parseAddress(req.PumpAddress)
	if err != nil {
		msg, _ := json.Marshal(statusResponse{ID: req.ID, OK: false, Error: &errorInfo{Kind: "InvalidAddress", Message: err.Error()}})
		return msg
	}

	newTransport := transport.New(req.Port, req.Baud)
	if err := s.eng.Reconfigure(newTransport); err != nil {
		msg, _ := json.Marshal(statusResponse{ID: req.ID, OK: false, Error: &errorInfo{Kind: "TransportError", Message: err.Error()}})
		return msg
	}

	s.mu.Lock()
	s.cfg = config.GatewayConfig{Port: req.Port, Baud: req.Baud, PumpAddress: addr, BindAddr: s.cfg.BindAddr}
	cfg := s.cfg
	s.mu.Unlock()

	msg, _ := json.Marshal(statusResponse{
		ID: req.ID,
		OK: true,
		Config: &configInfo{
			Port:        cfg.Port,
			Baud:        cfg.Baud,
			PumpAddress: formatAddress(cfg.PumpAddress),
		},
	})
	return msg
}
