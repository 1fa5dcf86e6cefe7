// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dart

import "github.com/mepsan/dartgw/internal/bcd"

// Kind discriminates the decoded-transaction variant. Transactions are
// represented as a tagged union (this Kind plus the relevant payload
// fields on Decoded) rather than a type hierarchy, per SPEC_FULL.md §9.
type Kind string

const (
	KindStatus           Kind = "DC1"
	KindVolumeAmount     Kind = "DC2"
	KindNozzlePrice      Kind = "DC3"
	KindAlarm            Kind = "DC5"
	KindPumpParams       Kind = "DC7"
	KindIdentity         Kind = "DC9"
	KindSuspend          Kind = "DC14"
	KindResume           Kind = "DC15"
	KindCounters         Kind = "DC101"
	KindStandAloneMode   Kind = "DC102"
	KindUnitPriceTable   Kind = "DC103"
	KindPriceTable       Kind = "PriceTable"       // supplemented, see SPEC_FULL.md §9
	KindCumulativeTotals Kind = "CumulativeTotals" // supplemented, see SPEC_FULL.md §9
)

// Decoded is the tagged-variant result of structurally decoding one
// transaction. Only the fields relevant to Kind are populated.
type Decoded struct {
	Kind Kind

	Status uint8 // DC1

	Volume float64 // DC2
	Amount float64 // DC2

	Price     float64 // DC3
	Nozzle    uint8   // DC3, DC14, DC15
	NozzleOut bool    // DC3

	Alarm uint8 // DC5

	DpVol     uint8   // DC7
	DpAmo     uint8   // DC7
	DpUnp     uint8   // DC7
	MaxAmount float64 // DC7
	Grades    []byte  // DC7

	Identity string // DC9, 10-digit zero-padded decimal

	Counter uint8  // DC101
	TotVal  uint64 // DC101
	TotM1   uint64 // DC101
	TotM2   uint64 // DC101

	Mode    uint8 // DC102
	Pressed bool  // DC102

	Prices []float64 // DC103, PriceTable
	Grade  uint8      // PriceTable

	Liters float64 // CumulativeTotals
	Money  float64 // CumulativeTotals
}

// DecodeTransaction structurally decodes a single transaction per
// SPEC_FULL.md §4.5. It returns (nil, nil) when the transaction is
// structurally valid but semantically filtered (unrecognized DC1
// status, out-of-range DC3 price) — these are not errors, they simply
// produce no record. It returns an *UnknownTransactionError for an
// unrecognized trans code, which the caller logs but does not treat as
// fatal to the rest of the frame.
func DecodeTransaction(t Transaction) (*Decoded, error) {
	switch t.Trans {
	case Trans1:
		if len(t.Data) < 1 {
			return nil, ErrMalformedFrame("DC1 payload too short")
		}
		if !validStatuses[t.Data[0]] {
			return nil, nil
		}
		return &Decoded{Kind: KindStatus, Status: t.Data[0]}, nil

	case Trans2:
		if len(t.Data) < 8 {
			return nil, ErrMalformedFrame("DC2 payload too short")
		}
		return &Decoded{
			Kind:   KindVolumeAmount,
			Volume: DecodeVolOrAmount(t.Data[0:4]),
			Amount: DecodeVolOrAmount(t.Data[4:8]),
		}, nil

	case Trans3:
		if len(t.Data) < 4 {
			return nil, ErrMalformedFrame("DC3 payload too short")
		}
		price := DecodePrice(t.Data[0:3])
		if price < MinPrice || price > MaxPrice {
			return nil, nil
		}
		return &Decoded{
			Kind:      KindNozzlePrice,
			Price:     price,
			Nozzle:    t.Data[3] & 0x0F,
			NozzleOut: t.Data[3]&0x10 != 0,
		}, nil

	case Trans5:
		if len(t.Data) < 1 {
			return nil, ErrMalformedFrame("DC5 payload too short")
		}
		return &Decoded{Kind: KindAlarm, Alarm: t.Data[0]}, nil

	case Trans7:
		if len(t.Data) < 50 {
			return nil, ErrMalformedFrame("DC7 payload too short")
		}
		return &Decoded{
			Kind:      KindPumpParams,
			DpVol:     t.Data[22],
			DpAmo:     t.Data[23],
			DpUnp:     t.Data[24],
			MaxAmount: DecodeVolOrAmount(t.Data[29:33]),
			Grades:    append([]byte(nil), t.Data[35:50]...),
		}, nil

	case Trans9:
		if len(t.Data) < 5 {
			return nil, ErrMalformedFrame("DC9 payload too short")
		}
		return &Decoded{Kind: KindIdentity, Identity: DecodeIdentity(t.Data[0:5])}, nil

	case Trans14:
		if len(t.Data) < 1 {
			return nil, ErrMalformedFrame("DC14 payload too short")
		}
		return &Decoded{Kind: KindSuspend, Nozzle: t.Data[0]}, nil

	case Trans15:
		if len(t.Data) < 1 {
			return nil, ErrMalformedFrame("DC15 payload too short")
		}
		return &Decoded{Kind: KindResume, Nozzle: t.Data[0]}, nil

	case Trans101:
		if len(t.Data) < 11 {
			return nil, ErrMalformedFrame("DC101 payload too short")
		}
		d := &Decoded{
			Kind:    KindCounters,
			Counter: t.Data[0],
			TotVal:  bcd.Decode(t.Data[1:6]),
			TotM1:   bcd.Decode(t.Data[6:11]),
		}
		if len(t.Data) >= 16 {
			d.TotM2 = bcd.Decode(t.Data[11:16])
		}
		return d, nil

	case Trans102:
		if len(t.Data) < 2 {
			return nil, ErrMalformedFrame("DC102 payload too short")
		}
		return &Decoded{Kind: KindStandAloneMode, Mode: t.Data[0], Pressed: t.Data[1] != 0}, nil

	case Trans103:
		if len(t.Data)%3 != 0 || len(t.Data) == 0 {
			return nil, ErrMalformedFrame("DC103 payload not a multiple of 3")
		}
		n := len(t.Data) / 3
		prices := make([]float64, n)
		for i := 0; i < n; i++ {
			prices[i] = DecodePrice(t.Data[3*i : 3*i+3])
		}
		return &Decoded{Kind: KindUnitPriceTable, Prices: prices}, nil

	default:
		return nil, &UnknownTransactionError{Trans: t.Trans}
	}
}

