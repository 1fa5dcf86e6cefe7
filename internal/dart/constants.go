// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dart implements the DART pump-interface line protocol: frame
// codec, transaction encode/decode, and the tolerant pattern matcher
// that lets this gateway survive real-world frames that do not
// strictly match the textbook spec.
package dart

// Frame delimiter and address range.
const (
	ETX = 0x03 // end-of-text, first half of the frame terminator
	SF  = 0xFA // stop flag, second half of the frame terminator

	MinPumpAddress = 0x50
	MaxPumpAddress = 0x6F

	MinFrameLength = 8
)

// Transaction numbers (TRANS byte). The same numeric space is shared by
// commands (supervisor -> pump, "CD") and responses (pump -> supervisor,
// "DC"); direction is implied by which side of the wire produced the
// frame, not by the trans byte itself.
const (
	Trans1   = 0x01 // CD1 command / DC1 status
	Trans2   = 0x02 // CD2 nozzle set / DC2 volume+amount
	Trans3   = 0x03 // CD3 preset volume / DC3 nozzle+price
	Trans4   = 0x04 // CD4 preset amount
	Trans5   = 0x05 // CD5 price update / DC5 alarm
	Trans7   = 0x07 // CD7 output function / DC7 pump parameters
	Trans9   = 0x09 // CD9 pump parameters / DC9 identity
	Trans13  = 0x0D // CD13 filling type
	Trans14  = 0x0E // CD14 suspend / DC14 suspend reply
	Trans15  = 0x0F // CD15 resume / DC15 resume reply
	Trans101 = 0x65 // CD101 request counters / DC101 counters
	Trans102 = 0x66 // DC102 IFSF stand-alone mode
	Trans103 = 0x67 // DC103 unit-price table
)

// CD1 command bytes recognized by the encoder.
const (
	Cmd1Status       = 0x00
	Cmd1Reset        = 0x05
	Cmd1Authorize    = 0x06
	Cmd1Stop         = 0x02
	Cmd1SwitchOff    = 0x03
	Cmd1Identity     = 0x04
	Cmd1FillingInfo  = 0x08
	Cmd1Prices       = 0x0A
	Cmd1PricesAlt1   = 0x0D
	Cmd1PricesAlt2   = 0x0E
	Cmd1PricesAlt3   = 0x0F
)

var validCD1Commands = map[uint8]bool{
	0x00: true, 0x02: true, 0x03: true, 0x04: true, 0x05: true,
	0x06: true, 0x08: true, 0x0A: true, 0x0D: true, 0x0E: true, 0x0F: true,
}

// Empirically observed control-byte values for commands where the
// supervisor does not specify one explicitly. These are not canonical
// DART values; see SPEC_FULL.md §9.
const (
	ControlReset     = 0x39
	ControlAuthorize = 0x3C
	ControlDefault   = 0x00
)

// DC1 status codes recognized as valid; any other incoming status byte
// is dropped at decode rather than stored.
const (
	StatusNotProgrammed    = 0
	StatusReset            = 1
	StatusAuthorized       = 2
	StatusFilling          = 4
	StatusFillingCompleted = 5
	StatusMaxVolReached    = 6
	StatusSwitchedOff      = 7
	StatusStopped          = 8
)

var validStatuses = map[uint8]bool{
	0: true, 1: true, 2: true, 4: true, 5: true, 6: true, 7: true, 8: true,
}

// Price clamp (§4.5, §9): deliberately narrow to the reference
// deployment (Saudi Arabian retail fuel). Implementations supporting
// other markets must parameterize this range.
const (
	MinPrice = 0.5
	MaxPrice = 10.0
)
