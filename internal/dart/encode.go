// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dart

import "fmt"

// CD9 payload layout (§4.4, §9 open question): 22 reserved zero bytes,
// dpVol, dpAmo, dpUnp, 5 reserved zeros, 4-byte maxAmount, 17 reserved
// zeros — 51 bytes total. Unverified against real pump firmware; see
// DESIGN.md.
const cd9PayloadLength = 22 + 1 + 1 + 1 + 5 + 4 + 17

// CD1Request builds a CD1 (single-byte command) transaction. cmd must
// be one of the recognized CD1 command bytes.
func CD1Request(cmd uint8) (Transaction, error) {
	if !validCD1Commands[cmd] {
		return Transaction{}, ErrInvalidArgument(fmt.Sprintf("CD1 command 0x%02X not recognized", cmd))
	}
	return Transaction{Trans: Trans1, Data: []byte{cmd}}, nil
}

// CD2Request builds a CD2 (allowed-nozzle set) transaction. Each nozzle
// must be in [1,15] and at least one must be given.
func CD2Request(nozzles []uint8) (Transaction, error) {
	if len(nozzles) == 0 {
		return Transaction{}, ErrInvalidArgument("CD2 requires at least one nozzle")
	}
	for _, nz := range nozzles {
		if nz < 1 || nz > 15 {
			return Transaction{}, ErrInvalidArgument(fmt.Sprintf("CD2 nozzle %d out of range [1,15]", nz))
		}
	}
	return Transaction{Trans: Trans2, Data: append([]byte(nil), nozzles...)}, nil
}

// CD3Request builds a CD3 (preset volume) transaction.
func CD3Request(volume float64) (Transaction, error) {
	data, err := EncodeVolOrAmount(volume)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{Trans: Trans3, Data: data}, nil
}

// CD4Request builds a CD4 (preset amount) transaction.
func CD4Request(amount float64) (Transaction, error) {
	data, err := EncodeVolOrAmount(amount)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{Trans: Trans4, Data: data}, nil
}

// CD5Request builds a CD5 (price update) transaction from one or more
// prices.
func CD5Request(prices []float64) (Transaction, error) {
	if len(prices) == 0 {
		return Transaction{}, ErrInvalidArgument("CD5 requires at least one price")
	}
	data := make([]byte, 0, 3*len(prices))
	for _, p := range prices {
		enc, err := EncodePrice(p)
		if err != nil {
			return Transaction{}, err
		}
		data = append(data, enc...)
	}
	return Transaction{Trans: Trans5, Data: data}, nil
}

// CD7Request builds a CD7 (output function + output command) transaction.
func CD7Request(function, command uint8) Transaction {
	return Transaction{Trans: Trans7, Data: []byte{function, command}}
}

// CD9Params carries optional pump-parameter fields; zero value fields
// default to 0 per §4.4.
type CD9Params struct {
	DpVol     uint8
	DpAmo     uint8
	DpUnp     uint8
	MaxAmount float64
}

// CD9Request builds a CD9 (pump parameters) transaction with the fixed
// 51-byte layout derived in SPEC_FULL.md §9.
func CD9Request(p CD9Params) (Transaction, error) {
	data := make([]byte, cd9PayloadLength)
	offset := 22
	data[offset] = p.DpVol
	data[offset+1] = p.DpAmo
	data[offset+2] = p.DpUnp
	offset += 3 + 5
	maxAmt, err := EncodeVolOrAmount(p.MaxAmount)
	if err != nil {
		return Transaction{}, err
	}
	copy(data[offset:offset+4], maxAmt)
	return Transaction{Trans: Trans9, Data: data}, nil
}

// CD13Request builds a CD13 (filling type) transaction.
func CD13Request(fillingType uint8) (Transaction, error) {
	if fillingType != 0 && fillingType != 1 {
		return Transaction{}, ErrInvalidArgument("CD13 filling type must be 0 or 1")
	}
	return Transaction{Trans: Trans13, Data: []byte{fillingType}}, nil
}

// CD14Request builds a CD14 (suspend nozzle) transaction.
func CD14Request(nozzle uint8) (Transaction, error) {
	if nozzle > 15 {
		return Transaction{}, ErrInvalidArgument("CD14 nozzle out of range [0,15]")
	}
	return Transaction{Trans: Trans14, Data: []byte{nozzle}}, nil
}

// CD15Request builds a CD15 (resume nozzle) transaction.
func CD15Request(nozzle uint8) (Transaction, error) {
	if nozzle > 15 {
		return Transaction{}, ErrInvalidArgument("CD15 nozzle out of range [0,15]")
	}
	return Transaction{Trans: Trans15, Data: []byte{nozzle}}, nil
}

// CD101Request builds a CD101 (request total counters) transaction.
// counter must be in [0x01,0x09] or [0x11,0x19].
func CD101Request(counter uint8) (Transaction, error) {
	if !(counter >= 0x01 && counter <= 0x09) && !(counter >= 0x11 && counter <= 0x19) {
		return Transaction{}, ErrInvalidArgument(fmt.Sprintf("CD101 counter 0x%02X out of range", counter))
	}
	return Transaction{Trans: Trans101, Data: []byte{counter}}, nil
}
