// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dart

import "github.com/mepsan/dartgw/internal/crc"

// Transaction is a single (TRANS, LNG, DATA) unit, the smallest
// addressable piece of a DART frame. A frame packs one or more of
// these back to back.
type Transaction struct {
	Trans uint8
	Data  []byte
}

// bytes returns the wire encoding of the transaction: TRANS, LNG, DATA.
func (t Transaction) bytes() []byte {
	out := make([]byte, 0, 2+len(t.Data))
	out = append(out, t.Trans, uint8(len(t.Data)))
	out = append(out, t.Data...)
	return out
}

// ValidAddress reports whether addr is a legal DART pump address.
func ValidAddress(addr int) bool {
	return addr >= MinPumpAddress && addr <= MaxPumpAddress
}

// BuildFrame assembles ADR . CTRL . (TRANS . LNG . DATA)+ . CRC1 . CRC2
// . ETX . SF, computing the CRC over ADR‖CTRL‖transactions. It fails
// with ErrInvalidAddress if addr is out of range.
func BuildFrame(addr uint8, ctrl uint8, transactions []Transaction) ([]byte, error) {
	if !ValidAddress(int(addr)) {
		return nil, ErrInvalidAddress(int(addr))
	}

	body := make([]byte, 0, 2+8*len(transactions))
	body = append(body, addr, ctrl)
	for _, t := range transactions {
		body = append(body, t.bytes()...)
	}

	sum := crc.Calculate(body)
	hi, lo := crc.Split(sum)

	frame := make([]byte, 0, len(body)+4)
	frame = append(frame, body...)
	frame = append(frame, hi, lo, ETX, SF)
	return frame, nil
}

// maxRemainderBytes bounds the reassembly buffer kept across reads when
// no frame terminator has been seen yet.
const (
	maxRemainderBytes = 1000
	retainedTailBytes = 500
)

// ExtractFrames scans buf for complete DART frames, honoring the
// wrapper-block skip rule (a non-DART {0x50|0x51}, any, 0xFA triple
// injected by line-sharing gear) and the 0x03,0xFA terminator. It
// returns the complete frames found and the unconsumed remainder,
// which the caller keeps and prepends to the next read.
func ExtractFrames(buf []byte) (frames [][]byte, remainder []byte) {
	var current []byte

	i := 0
	for i < len(buf) {
		if i+2 < len(buf) && buf[i+2] == SF && (buf[i] == 0x50 || buf[i] == 0x51) {
			i += 3
			continue
		}

		current = append(current, buf[i])
		i++

		n := len(current)
		if n >= 2 && current[n-2] == ETX && current[n-1] == SF {
			frames = append(frames, current)
			current = nil
		}
	}

	return frames, current
}

// Cleanup bounds an ingress buffer that has accumulated bytes without
// completing a frame: it keeps everything after the last terminator,
// or — absent any terminator and once the buffer has grown past
// maxRemainderBytes — only the trailing retainedTailBytes.
func Cleanup(buf []byte) []byte {
	for i := len(buf) - 1; i >= 1; i-- {
		if buf[i-1] == ETX && buf[i] == SF {
			return append([]byte(nil), buf[i+1:]...)
		}
	}
	if len(buf) > maxRemainderBytes {
		return append([]byte(nil), buf[len(buf)-retainedTailBytes:]...)
	}
	return buf
}

// ParsedFrame is the result of walking a frame's transaction stream.
type ParsedFrame struct {
	Address      uint8
	Control      uint8
	Transactions []Transaction
	CRC1, CRC2   byte // captured, never validated (see SPEC_FULL.md §9)
}

// ParseFrame validates minimal frame shape and walks the transaction
// stream. The CRC bytes are captured but intentionally never checked —
// ingress CRC validation is disabled by design (§9).
func ParseFrame(frame []byte) (*ParsedFrame, error) {
	if len(frame) < MinFrameLength {
		return nil, ErrMalformedFrame("length < 8")
	}
	n := len(frame)
	if frame[n-2] != ETX || frame[n-1] != SF {
		return nil, ErrMalformedFrame("missing ETX/SF terminator")
	}
	if !ValidAddress(int(frame[0])) {
		return nil, ErrInvalidAddress(int(frame[0]))
	}

	pf := &ParsedFrame{
		Address: frame[0],
		Control: frame[1],
		CRC1:    frame[n-4],
		CRC2:    frame[n-3],
	}

	end := n - 4
	offset := 2
	for offset < end {
		if offset+2 > end {
			break // not enough bytes left for a TRANS,LNG header
		}
		trans := frame[offset]
		lng := int(frame[offset+1])
		dataStart := offset + 2
		dataEnd := dataStart + lng
		if dataEnd > end {
			break // LNG would spill past the CRC region
		}
		data := append([]byte(nil), frame[dataStart:dataEnd]...)
		pf.Transactions = append(pf.Transactions, Transaction{Trans: trans, Data: data})

		next := dataEnd
		if next <= offset {
			break // zero-progress guard
		}
		offset = next
	}

	if len(pf.Transactions) == 0 {
		return nil, ErrMalformedFrame("no transactions parsed")
	}

	return pf, nil
}
