// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dart

import (
	"fmt"
	"math"

	"github.com/mepsan/dartgw/internal/bcd"
)

// EncodePrice encodes a price (SAR/L) as 3 bytes of packed BCD at a
// scale of 1e4. Decode uses a different scale (see DecodePrice) —
// this asymmetry is deliberate, observed on real hardware, and
// documented in DESIGN.md; do not "fix" it without re-verifying
// against a real pump.
func EncodePrice(p float64) ([]byte, error) {
	return bcd.Encode(uint64(math.Round(p*10000)), 3)
}

// DecodePrice decodes a 3-byte packed-BCD price at a scale of 1e3.
func DecodePrice(data []byte) float64 {
	return float64(bcd.Decode(data)) / 1000
}

// EncodeVolOrAmount encodes a volume or monetary amount as 4 bytes of
// packed BCD at a scale of 1e2.
func EncodeVolOrAmount(v float64) ([]byte, error) {
	return bcd.Encode(uint64(math.Round(v*100)), 4)
}

// DecodeVolOrAmount decodes a 4-byte packed-BCD volume or amount.
func DecodeVolOrAmount(data []byte) float64 {
	return float64(bcd.Decode(data)) / 100
}

// DecodeIdentity decodes a 5-byte packed-BCD identity into its 10-digit
// decimal string, zero-padded.
func DecodeIdentity(data []byte) string {
	return fmt.Sprintf("%010d", bcd.Decode(data))
}
