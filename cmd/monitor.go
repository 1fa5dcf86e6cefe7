// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/mepsan/dartgw/internal/engine"
	"github.com/mepsan/dartgw/internal/eventbus"
	"github.com/mepsan/dartgw/internal/logging"
	"github.com/mepsan/dartgw/internal/state"
	"github.com/mepsan/dartgw/internal/transport"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI showing live pump status and a scrolling log",
	Long: `monitor shows a table of every pump seen on the bus plus a scrolling
event log, updated as transactions arrive.

When --port is given, monitor opens the serial device directly, the
same way serve does. Otherwise it dials --bind as a supervisor
websocket client, attaching to an already-running "dartgw serve"
instance instead of opening the port itself.

Tab switches focus between the pump table and the log. Press q or
Ctrl+C to exit.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// monitorSource is whatever feeds the TUI pump-state snapshots and log
// lines, whether a local engine or a remote websocket connection.
type monitorSource interface {
	Events() <-chan eventbus.Event
	Snapshot() []state.PumpState
	Close()
}

func runMonitor(cmd *cobra.Command, args []string) error {
	var src monitorSource
	var err error
	if cmd.Flags().Changed("port") {
		src, err = localMonitorSource()
	} else {
		src, err = dialMonitorSource(bindAddr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitor: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()

	m := initialMonitorModel(src)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// localEngineSource runs the protocol engine in-process against a
// directly opened serial port.
type localEngineSource struct {
	eng    *engine.Engine
	bus    *eventbus.Bus
	events <-chan eventbus.Event
	cancel func()
}

func localMonitorSource() (monitorSource, error) {
	if portName == "" {
		return nil, fmt.Errorf("--port must not be empty (omit it to attach via --bind)")
	}
	bus := eventbus.New()
	log := logging.New(logging.LevelInfo, bus)
	t := transport.New(portName, baudRate)
	eng := engine.New(t, state.NewProjector(), bus, log)

	go func() { _ = eng.Run() }()

	events, cancel := bus.Subscribe()
	return &localEngineSource{eng: eng, bus: bus, events: events, cancel: cancel}, nil
}

func (s *localEngineSource) Events() <-chan eventbus.Event { return s.events }
func (s *localEngineSource) Snapshot() []state.PumpState    { return s.eng.AllPumpStates() }
func (s *localEngineSource) Close()                         { s.cancel(); s.eng.Stop() }

// remoteSource rebuilds pump state from a supervisor websocket
// connection's pump_message pushes rather than the projector directly
// — a remote monitor never touches the engine, so it runs the pushed
// DC1 statuses through a Projector of its own.
type remoteSource struct {
	conn   *websocket.Conn
	events chan eventbus.Event
	proj   *state.Projector
	done   chan struct{}
}

type remotePush struct {
	Type      string          `json:"type"`
	Address   string          `json:"address"`
	Timestamp string          `json:"timestamp"`
	Message   string          `json:"message"`
	Level     string          `json:"level"`
	Connected bool            `json:"connected"`
	Transaction json.RawMessage `json:"transaction"`
}

func dialMonitorSource(addr string) (monitorSource, error) {
	url := "ws://" + strings.TrimPrefix(strings.TrimPrefix(addr, "ws://"), "http://") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	r := &remoteSource{
		conn:   conn,
		events: make(chan eventbus.Event, 256),
		proj:   state.NewProjector(),
		done:   make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

func (r *remoteSource) readLoop() {
	for {
		_, raw, err := r.conn.ReadMessage()
		if err != nil {
			close(r.events)
			return
		}
		var push remotePush
		if err := json.Unmarshal(raw, &push); err != nil {
			continue
		}
		switch push.Type {
		case "pump_message":
			addr := parseDisplayAddress(push.Address)
			r.applyRemoteTransaction(addr, push.Transaction)
			select {
			case r.events <- eventbus.Event{Topic: eventbus.TopicPumpMessage, Payload: push}:
			default:
			}
		case "log":
			select {
			case r.events <- eventbus.Event{Topic: eventbus.TopicLog, Payload: logging.Entry{Message: push.Message, Level: parseDisplayLevel(push.Level)}}:
			default:
			}
		case "connection_status":
			select {
			case r.events <- eventbus.Event{Topic: eventbus.TopicConnection, Payload: push.Connected}:
			default:
			}
		}
	}
}

// applyRemoteTransaction folds the status of a pushed DC1 transaction
// into the local projector so the table has something to show. A
// pump_message carries the decoded status, not the gateway's projected
// one, so the local projector applies the anti-flap policy itself;
// transactions without a status are ignored.
func (r *remoteSource) applyRemoteTransaction(addr uint8, raw json.RawMessage) {
	var tx struct {
		Data struct {
			Status *float64 `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &tx); err != nil || tx.Data.Status == nil {
		return
	}
	r.proj.ApplyStatus(addr, uint8(*tx.Data.Status), time.Now())
}

func (r *remoteSource) Events() <-chan eventbus.Event { return r.events }
func (r *remoteSource) Snapshot() []state.PumpState    { return r.proj.All() }
func (r *remoteSource) Close()                         { close(r.done); r.conn.Close() }

func parseDisplayAddress(s string) uint8 {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, _ := strconv.ParseUint(s, 16, 8)
	return uint8(n)
}

func parseDisplayLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
