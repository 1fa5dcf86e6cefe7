// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport drives the half-duplex RS-485 serial line the
// protocol engine runs over. It generalizes the teacher's
// SerialConnection (cmd/connection.go) from a bare io.Reader/Writer
// into the open/close/write_frame/ingress-callback shape SPEC_FULL.md
// §4.7 requires, including the mandatory post-write quiet time.
package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// quietTime is the mandatory RS-485 DE/RE turnaround guard enforced
// after every write, regardless of baud rate (§4.7, §6).
const quietTime = 50 * time.Millisecond

// TransportError wraps an OS-level open/write/read failure so callers
// can recognize it without string-matching (SPEC_FULL.md §7).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Kind() string { return "TransportError" }

func (e *TransportError) Unwrap() error { return e.Err }

// port is the slice of go.bug.st/serial.Port this transport actually
// uses. Narrowing it lets tests substitute a fake without touching
// real hardware.
type port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Drain() error
	Close() error
}

// Serial is a half-duplex RS-485 serial transport. It is not safe for
// concurrent use — the single-threaded engine loop is its only caller
// (§5).
type Serial struct {
	device string
	baud   int
	port   port
}

// New returns a Serial bound to device at baud, not yet opened.
func New(device string, baud int) *Serial {
	return &Serial{device: device, baud: baud}
}

// Open opens the serial device with 8N1 framing. Calling Open on an
// already-open Serial is a no-op, per §4.7.
func (s *Serial) Open() error {
	if s.port != nil {
		return nil
	}
	mode := &serial.Mode{
		BaudRate: s.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.device, mode)
	if err != nil {
		return &TransportError{Op: "open", Err: err}
	}
	s.port = port
	return nil
}

// Close closes the device and releases it for reconfiguration. Per
// §5's shared-resource policy, changing port or baud rate requires
// Close then Open with the new parameters — never a live reconfigure.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	if err != nil {
		return &TransportError{Op: "close", Err: err}
	}
	return nil
}

// WriteFrame writes frame in full, drains until the kernel TX buffer
// is empty, then sleeps the quiet-time guard before returning. This
// is the only way bytes leave the bus — callers must not call
// Read/Write directly.
func (s *Serial) WriteFrame(frame []byte) error {
	if s.port == nil {
		return &TransportError{Op: "write_frame", Err: fmt.Errorf("not open")}
	}
	if _, err := s.port.Write(frame); err != nil {
		return &TransportError{Op: "write_frame", Err: err}
	}
	if err := s.port.Drain(); err != nil {
		return &TransportError{Op: "write_frame", Err: err}
	}
	time.Sleep(quietTime)
	return nil
}

// Run reads continuously until ctx-like stop is requested via Close,
// invoking onBytes with every chunk read. The transport never decodes
// — reassembly is entirely C8's job (§4.7). Run returns when the
// device is closed or a read fails.
func (s *Serial) Run(onBytes func([]byte)) error {
	buf := make([]byte, 256)
	for {
		if s.port == nil {
			return &TransportError{Op: "read", Err: fmt.Errorf("not open")}
		}
		n, err := s.port.Read(buf)
		if err != nil {
			return &TransportError{Op: "read", Err: err}
		}
		if n == 0 {
			// go.bug.st/serial returns (0, nil) when the port is closed
			// out from under a blocked Read; treat it as a clean stop
			// rather than spinning.
			return nil
		}
		onBytes(append([]byte(nil), buf[:n]...))
	}
}

// withPort binds an already-open port, bypassing Open. Used only by
// tests to substitute a fake serial.Port for real hardware.
func withPort(device string, baud int, p port) *Serial {
	return &Serial{device: device, baud: baud, port: p}
}
