// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package engine is the protocol engine (SPEC_FULL.md §4.8/§4.8b): a
// single-threaded cooperative loop that owns the ingress reassembly
// buffer and the anti-flap state projector, driven by serial-device
// readability on one side and supervisor command requests on the
// other. Structurally this is the teacher's connectionManager
// (cmd/control.go) with the reconnect/TUI plumbing stripped out and
// the fusain decoder swapped for the DART pattern matcher/structural
// decoder.
package engine

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mepsan/dartgw/internal/dart"
	"github.com/mepsan/dartgw/internal/eventbus"
	"github.com/mepsan/dartgw/internal/logging"
	"github.com/mepsan/dartgw/internal/state"
)

// PumpMessage is published on eventbus.TopicPumpMessage for every
// transaction the pattern matcher or structural decoder successfully
// decodes, in wire order, one shared timestamp per source frame.
type PumpMessage struct {
	Address   uint8
	Timestamp time.Time
	Decoded   *dart.Decoded
	RawHex    string
}

// UnrecognizedFrame is published when neither the pattern matcher nor
// the structural decoder could make sense of a frame that otherwise
// passed the address/length/heartbeat gates.
type UnrecognizedFrame struct {
	Address uint8
	RawHex  string
}

// commandRequest is how SendCommand hands work to the single loop
// goroutine so that egress is serialized with ingress processing —
// both touch the same ingress buffer/transport, never concurrently.
type commandRequest struct {
	addr         uint8
	ctrl         *uint8
	transactions []dart.Transaction
	result       chan commandResult
}

type commandResult struct {
	frame []byte
	err   error
}

// halfDuplexTransport is the slice of transport.Serial the engine
// needs; narrowed so tests can substitute a fake.
type halfDuplexTransport interface {
	Open() error
	Close() error
	WriteFrame(frame []byte) error
	Run(onBytes func([]byte)) error
}

// reconfigRequest asks the loop to swap in a freshly constructed
// transport — used by update_config (P11): close the old one, then
// open the new one, never the reverse.
type reconfigRequest struct {
	transport halfDuplexTransport
	result    chan error
}

// readResult tags a reader-goroutine's outcome with the generation of
// transport it was reading, so a reconfigure's deliberate Close() on
// the old transport is not mistaken for an unexpected disconnect.
type readResult struct {
	gen int
	err error
}

// Engine ties the transport, the DART codec, the state projector, and
// the event bus together into the running gateway loop.
type Engine struct {
	transport halfDuplexTransport
	proj      *state.Projector
	bus       *eventbus.Bus
	log       *logging.Logger

	buf        []byte
	rawCh      chan []byte
	cmdCh      chan commandRequest
	reconfigCh chan reconfigRequest
	queryCh    chan queryRequest
	doneCh     chan struct{}

	readGen   int
	readErrCh chan readResult
	connected bool
}

// queryRequest runs fn inside the loop goroutine so a caller can read
// loop-owned state (e.connected, the projector) without a data race,
// the same way commandRequest lets a caller write to it.
type queryRequest struct {
	fn   func()
	done chan struct{}
}

// New constructs an Engine. The returned Engine does nothing until Run
// is called.
func New(t halfDuplexTransport, proj *state.Projector, bus *eventbus.Bus, log *logging.Logger) *Engine {
	return &Engine{
		transport:  t,
		proj:       proj,
		bus:        bus,
		log:        log,
		rawCh:      make(chan []byte, 64),
		cmdCh:      make(chan commandRequest),
		reconfigCh: make(chan reconfigRequest),
		queryCh:    make(chan queryRequest),
		doneCh:     make(chan struct{}),
		readErrCh:  make(chan readResult, 1),
	}
}

// spawnReader opens no connections itself; it assumes e.transport is
// already open and starts a goroutine reading from it. gen ties the
// eventual result back to the transport instance it belongs to.
func (e *Engine) spawnReader() {
	e.readGen++
	gen := e.readGen
	t := e.transport
	go func() {
		e.readErrCh <- readResult{gen: gen, err: t.Run(func(b []byte) {
			select {
			case e.rawCh <- b:
			case <-e.doneCh:
			}
		})}
	}()
}

// Run opens the transport, starts the background reader, and blocks
// running the single-threaded loop until Stop is called or the
// transport fails unexpectedly. It is the only place ingress bytes and
// egress commands are actually applied to shared state.
func (e *Engine) Run() error {
	if err := e.transport.Open(); err != nil {
		e.bus.PublishConnection(false)
		return err
	}
	e.connected = true
	e.bus.PublishConnection(true)
	e.spawnReader()

	for {
		select {
		case b := <-e.rawCh:
			e.processBytes(b)
		case req := <-e.cmdCh:
			frame, err := e.doSendCommand(req.addr, req.ctrl, req.transactions)
			req.result <- commandResult{frame: frame, err: err}
		case req := <-e.reconfigCh:
			req.result <- e.doReconfigure(req.transport)
		case q := <-e.queryCh:
			q.fn()
			close(q.done)
		case res := <-e.readErrCh:
			if res.gen != e.readGen {
				continue // stale reader from a transport we already replaced
			}
			e.connected = false
			e.bus.PublishConnection(false)
			return res.err
		case <-e.doneCh:
			return e.transport.Close()
		}
	}
}

// doReconfigure closes the current transport and opens newTransport,
// restarting the reader goroutine against it. Runs only inside the
// loop goroutine, so it never races processBytes or doSendCommand.
func (e *Engine) doReconfigure(newTransport halfDuplexTransport) error {
	_ = e.transport.Close()
	e.transport = newTransport
	e.buf = nil // a reconfigured link starts reassembly fresh
	if err := e.transport.Open(); err != nil {
		e.connected = false
		e.bus.PublishConnection(false)
		return err
	}
	e.connected = true
	e.bus.PublishConnection(true)
	e.spawnReader()
	return nil
}

// Reconfigure swaps in newTransport, closing the current one first and
// opening the new one only after (§4.2b/C11, P11). It blocks until the
// loop has applied the change.
func (e *Engine) Reconfigure(newTransport halfDuplexTransport) error {
	req := reconfigRequest{transport: newTransport, result: make(chan error, 1)}
	select {
	case e.reconfigCh <- req:
	case <-e.doneCh:
		return fmt.Errorf("engine: stopped")
	}
	return <-req.result
}

// query runs fn inside the loop goroutine and waits for it to finish,
// giving callers on other goroutines a race-free way to read
// loop-owned state.
func (e *Engine) query(fn func()) {
	done := make(chan struct{})
	select {
	case e.queryCh <- queryRequest{fn: fn, done: done}:
		<-done
	case <-e.doneCh:
	}
}

// Connected reports whether the transport is currently believed open.
func (e *Engine) Connected() bool {
	var connected bool
	e.query(func() { connected = e.connected })
	return connected
}

// PumpState returns a snapshot of one pump's projected state.
func (e *Engine) PumpState(addr uint8) (state.PumpState, bool) {
	var ps state.PumpState
	var ok bool
	e.query(func() { ps, ok = e.proj.Get(addr) })
	return ps, ok
}

// AllPumpStates returns a snapshot of every pump seen since startup.
func (e *Engine) AllPumpStates() []state.PumpState {
	var all []state.PumpState
	e.query(func() { all = e.proj.All() })
	return all
}

// Stop ends Run and closes the transport.
func (e *Engine) Stop() {
	close(e.doneCh)
}

// SendCommand submits transactions for pump addr to the loop and
// blocks for the result. ctrl, if non-nil, overrides the empirical
// control-byte selection of §4.8b.
func (e *Engine) SendCommand(addr uint8, transactions []dart.Transaction, ctrl *uint8) ([]byte, error) {
	req := commandRequest{addr: addr, ctrl: ctrl, transactions: transactions, result: make(chan commandResult, 1)}
	select {
	case e.cmdCh <- req:
	case <-e.doneCh:
		return nil, fmt.Errorf("engine: stopped")
	}
	res := <-req.result
	return res.frame, res.err
}

// SelectControlByte implements the empirical control-byte table of
// §4.8b for a single CD1 transaction; every other transaction kind
// defaults to ControlDefault.
func SelectControlByte(transactions []dart.Transaction) uint8 {
	if len(transactions) != 1 {
		return dart.ControlDefault
	}
	t := transactions[0]
	if t.Trans != dart.Trans1 || len(t.Data) == 0 {
		return dart.ControlDefault
	}
	switch t.Data[0] {
	case dart.Cmd1Reset:
		return dart.ControlReset
	case dart.Cmd1Authorize:
		return dart.ControlAuthorize
	default:
		return dart.ControlDefault
	}
}

func (e *Engine) doSendCommand(addr uint8, ctrlOverride *uint8, transactions []dart.Transaction) ([]byte, error) {
	if !dart.ValidAddress(int(addr)) {
		return nil, dart.ErrInvalidAddress(int(addr))
	}

	ctrl := SelectControlByte(transactions)
	if ctrlOverride != nil {
		ctrl = *ctrlOverride
	}

	frame, err := dart.BuildFrame(addr, ctrl, transactions)
	if err != nil {
		return nil, err
	}

	// Logged before the write completes so observers see the request
	// even if the transport write itself fails (§4.8b.5). e.log also
	// publishes onto the "log" topic, so this is the only call needed.
	e.log.Infof("sent %s", hex.EncodeToString(frame))

	if err := e.transport.WriteFrame(frame); err != nil {
		return frame, err
	}
	return frame, nil
}

// processBytes implements the §4.7 buffer discipline: append, extract,
// keep the remainder, then run cleanup.
func (e *Engine) processBytes(b []byte) {
	e.buf = append(e.buf, b...)

	frames, remainder := dart.ExtractFrames(e.buf)
	e.buf = remainder

	for _, frame := range frames {
		e.processFrame(frame)
	}

	e.buf = dart.Cleanup(e.buf)
}

// processFrame implements the §4.8 ingress pipeline for one extracted
// frame.
func (e *Engine) processFrame(frame []byte) {
	if len(frame) < 1 || !dart.ValidAddress(int(frame[0])) {
		return
	}
	if len(frame) < 6 {
		return
	}
	if dart.IsHeartbeat(frame) {
		return
	}

	addr := frame[0]
	now := time.Now()
	rawHex := hex.EncodeToString(frame)

	if d, ok := dart.MatchStatus(frame); ok {
		e.emit(addr, now, d, rawHex)
		return
	}
	if d, ok := dart.MatchPriceTable(frame); ok {
		e.emit(addr, now, d, rawHex)
		return
	}
	if d, ok := dart.MatchCumulativeTotals(frame); ok {
		e.emit(addr, now, d, rawHex)
		return
	}

	pf, err := dart.ParseFrame(frame)
	if err != nil {
		e.log.Warnf("unrecognized frame from 0x%02X: %s", addr, rawHex)
		e.bus.Publish(eventbus.Event{Topic: eventbus.TopicPumpMessage, Payload: UnrecognizedFrame{Address: addr, RawHex: rawHex}})
		return
	}

	decodedAny := false
	for _, t := range pf.Transactions {
		d, err := dart.DecodeTransaction(t)
		if err != nil {
			if _, ok := err.(*dart.UnknownTransactionError); ok {
				e.log.Infof("%s", err.Error())
				continue
			}
			e.log.Warnf("decode error from 0x%02X: %v", addr, err)
			continue
		}
		if d == nil {
			continue // semantically filtered, not an error
		}
		decodedAny = true
		e.emit(addr, now, d, rawHex)
	}

	if !decodedAny {
		e.bus.Publish(eventbus.Event{Topic: eventbus.TopicPumpMessage, Payload: UnrecognizedFrame{Address: addr, RawHex: rawHex}})
	}
}

// emit folds a decoded transaction into the state projector and
// publishes it on the event bus, in that order so a get_status racing
// the publication always sees the up-to-date projection.
func (e *Engine) emit(addr uint8, now time.Time, d *dart.Decoded, rawHex string) {
	switch d.Kind {
	case dart.KindStatus:
		e.proj.ApplyStatus(addr, d.Status, now)
	case dart.KindVolumeAmount:
		e.proj.ApplyVolumeAmount(addr, d.Volume, d.Amount, now)
	case dart.KindNozzlePrice:
		e.proj.ApplyNozzlePrice(addr, d.Nozzle, d.NozzleOut, d.Price, now)
	case dart.KindIdentity:
		e.proj.ApplyIdentity(addr, d.Identity, now)
	}

	e.bus.Publish(eventbus.Event{
		Topic: eventbus.TopicPumpMessage,
		Payload: PumpMessage{
			Address:   addr,
			Timestamp: now,
			Decoded:   d,
			RawHex:    rawHex,
		},
	})
}
