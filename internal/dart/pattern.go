// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dart

import "github.com/mepsan/dartgw/internal/bcd"

// IsHeartbeat reports whether frame is line-sharing keepalive noise
// that must never reach a pump_message subscriber (§4.6, P5).
func IsHeartbeat(frame []byte) bool {
	if len(frame) == 3 && frame[0] == 0x50 && frame[2] == SF {
		x := frame[1]
		if x == 0x20 || x == 0x70 || (x >= 0xC1 && x <= 0xCF) {
			return true
		}
	}
	if len(frame) < 6 {
		return true
	}
	body := frame[:len(frame)-2]
	for _, b := range body {
		if b != 0x50 && b != 0x51 && b != 0x20 && b != 0x70 && b != SF {
			return false
		}
	}
	return true
}

// MatchStatus attempts the fast 9-byte status-frame pattern (§4.6).
// It never fires on a frame that could carry more than one
// transaction — multi-transaction frames are always left to the
// structural decoder so they are never decoded twice.
func MatchStatus(frame []byte) (*Decoded, bool) {
	if len(frame) != 9 {
		return nil, false
	}
	if !ValidAddress(int(frame[0])) {
		return nil, false
	}
	if frame[2] != Trans1 || frame[3] != 0x01 {
		return nil, false
	}
	status := frame[4]
	if !validStatuses[status] {
		return nil, false
	}
	if frame[7] != ETX || frame[8] != SF {
		return nil, false
	}
	return &Decoded{Kind: KindStatus, Status: status}, true
}

// MatchPriceTable recognizes the 17-byte price-table frame supplemented
// from original_source/mepsan_decoder.py's is_price_table/
// decode_price_table: ADR CTRL 0x01 0x01 0x05 0x03 0x04 then four
// big-endian 16-bit raw prices (/10000, not the DC3 BCD path — this is
// a distinct frame shape, not a DC3).
func MatchPriceTable(frame []byte) (*Decoded, bool) {
	if len(frame) != 17 {
		return nil, false
	}
	if !ValidAddress(int(frame[0])) {
		return nil, false
	}
	if frame[2] != 0x01 || frame[3] != 0x01 || frame[4] != 0x05 || frame[5] != 0x03 || frame[6] != 0x04 {
		return nil, false
	}
	if frame[15] != ETX || frame[16] != SF {
		return nil, false
	}
	prices := make([]float64, 4)
	for i := 0; i < 4; i++ {
		raw := uint16(frame[7+2*i])<<8 | uint16(frame[8+2*i])
		prices[i] = float64(raw) / 10000
	}
	return &Decoded{Kind: KindPriceTable, Grade: frame[1], Prices: prices}, true
}

// MatchCumulativeTotals recognizes the 16-byte cumulative-totals frame
// supplemented from original_source/mepsan_decoder.py's is_fueling/
// decode_fueling: ADR CTRL 0x02 0x08 0x00 0x00 LITERS(3-byte BCD)
// MONEY(3-byte BCD). Uses the BCD codec (C1) for the numeric value
// rather than the python reference's build-a-decimal-string approach,
// then applies the divisors the reference establishes for this frame
// shape (liters/10000, money/1000) — distinct from DC2's /100 scale
// because this is a cumulative counter, not a live fill transaction.
func MatchCumulativeTotals(frame []byte) (*Decoded, bool) {
	if len(frame) != 16 {
		return nil, false
	}
	if !ValidAddress(int(frame[0])) {
		return nil, false
	}
	if frame[2] != 0x02 || frame[3] != 0x08 || frame[4] != 0x00 || frame[5] != 0x00 {
		return nil, false
	}
	if frame[14] != ETX || frame[15] != SF {
		return nil, false
	}
	litersRaw := bcd.Decode(frame[6:9])
	moneyRaw := bcd.Decode(frame[9:12])
	return &Decoded{
		Kind:   KindCumulativeTotals,
		Liters: float64(litersRaw) / 10000,
		Money:  float64(moneyRaw) / 1000,
	}, true
}
