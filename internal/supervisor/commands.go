// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package supervisor

import (
	"encoding/json"
	"fmt"

	"github.com/mepsan/dartgw/internal/dart"
)

// cd1Data, cd2Data, ... mirror the JSON shape of each command's "data"
// object (§6.1). Unused fields are simply left at their zero value.
type cd1Data struct {
	Command int `json:"command"`
}
type cd2Data struct {
	Nozzles []int `json:"nozzles"`
}
type cd3Data struct {
	Volume float64 `json:"volume"`
}
type cd4Data struct {
	Amount float64 `json:"amount"`
}
type cd5Data struct {
	Prices []float64 `json:"prices"`
}
type cd7Data struct {
	Function int `json:"function"`
	Command  int `json:"command"`
}
type cd9Data struct {
	DpVol     int     `json:"dp_vol"`
	DpAmo     int     `json:"dp_amo"`
	DpUnp     int     `json:"dp_unp"`
	MaxAmount float64 `json:"max_amount"`
}
type cd13Data struct {
	FillingType int `json:"filling_type"`
}
type cd14Data struct {
	Nozzle int `json:"nozzle"`
}
type cd15Data struct {
	Nozzle int `json:"nozzle"`
}
type cd101Data struct {
	Counter int `json:"counter"`
}

// buildTransaction translates a command_spec from the wire into the
// dart.Transaction the engine sends, per §4.4/§6.1.
func buildTransaction(spec commandSpec) (dart.Transaction, error) {
	switch spec.Type {
	case "CD1":
		var d cd1Data
		if err := json.Unmarshal(spec.Data, &d); err != nil {
			return dart.Transaction{}, err
		}
		return dart.CD1Request(uint8(d.Command))

	case "CD2":
		var d cd2Data
		if err := json.Unmarshal(spec.Data, &d); err != nil {
			return dart.Transaction{}, err
		}
		nozzles := make([]uint8, len(d.Nozzles))
		for i, n := range d.Nozzles {
			nozzles[i] = uint8(n)
		}
		return dart.CD2Request(nozzles)

	case "CD3":
		var d cd3Data
		if err := json.Unmarshal(spec.Data, &d); err != nil {
			return dart.Transaction{}, err
		}
		return dart.CD3Request(d.Volume)

	case "CD4":
		var d cd4Data
		if err := json.Unmarshal(spec.Data, &d); err != nil {
			return dart.Transaction{}, err
		}
		return dart.CD4Request(d.Amount)

	case "CD5":
		var d cd5Data
		if err := json.Unmarshal(spec.Data, &d); err != nil {
			return dart.Transaction{}, err
		}
		return dart.CD5Request(d.Prices)

	case "CD7":
		var d cd7Data
		if err := json.Unmarshal(spec.Data, &d); err != nil {
			return dart.Transaction{}, err
		}
		return dart.CD7Request(uint8(d.Function), uint8(d.Command)), nil

	case "CD9":
		var d cd9Data
		if err := json.Unmarshal(spec.Data, &d); err != nil {
			return dart.Transaction{}, err
		}
		return dart.CD9Request(dart.CD9Params{
			DpVol:     uint8(d.DpVol),
			DpAmo:     uint8(d.DpAmo),
			DpUnp:     uint8(d.DpUnp),
			MaxAmount: d.MaxAmount,
		})

	case "CD13":
		var d cd13Data
		if err := json.Unmarshal(spec.Data, &d); err != nil {
			return dart.Transaction{}, err
		}
		return dart.CD13Request(uint8(d.FillingType))

	case "CD14":
		var d cd14Data
		if err := json.Unmarshal(spec.Data, &d); err != nil {
			return dart.Transaction{}, err
		}
		return dart.CD14Request(uint8(d.Nozzle))

	case "CD15":
		var d cd15Data
		if err := json.Unmarshal(spec.Data, &d); err != nil {
			return dart.Transaction{}, err
		}
		return dart.CD15Request(uint8(d.Nozzle))

	case "CD101":
		var d cd101Data
		if err := json.Unmarshal(spec.Data, &d); err != nil {
			return dart.Transaction{}, err
		}
		return dart.CD101Request(uint8(d.Counter))

	default:
		return dart.Transaction{}, fmt.Errorf("unrecognized command type %q", spec.Type)
	}
}

// decodedToDTO maps a dart.Decoded onto the wire transaction shape of
// pump_message (§6 EXPANSION). Only the fields relevant to d.Kind are
// present in Data.
func decodedToDTO(d *dart.Decoded) transactionDTO {
	data := map[string]any{}
	switch d.Kind {
	case dart.KindStatus:
		data["status"] = d.Status
	case dart.KindVolumeAmount:
		data["volume"] = d.Volume
		data["amount"] = d.Amount
	case dart.KindNozzlePrice:
		data["price"] = d.Price
		data["nozzle"] = d.Nozzle
		data["nozzle_out"] = d.NozzleOut
	case dart.KindAlarm:
		data["alarm"] = d.Alarm
	case dart.KindPumpParams:
		data["dp_vol"] = d.DpVol
		data["dp_amo"] = d.DpAmo
		data["dp_unp"] = d.DpUnp
		data["max_amount"] = d.MaxAmount
	case dart.KindIdentity:
		data["identity"] = d.Identity
	case dart.KindSuspend, dart.KindResume:
		data["nozzle"] = d.Nozzle
	case dart.KindCounters:
		data["counter"] = d.Counter
		data["total_value"] = d.TotVal
		data["total_m1"] = d.TotM1
		data["total_m2"] = d.TotM2
	case dart.KindStandAloneMode:
		data["mode"] = d.Mode
		data["pressed"] = d.Pressed
	case dart.KindUnitPriceTable, dart.KindPriceTable:
		data["prices"] = d.Prices
		if d.Kind == dart.KindPriceTable {
			data["grade"] = d.Grade
		}
	case dart.KindCumulativeTotals:
		data["liters"] = d.Liters
		data["money"] = d.Money
	}
	return transactionDTO{Type: string(d.Kind), Data: data}
}
