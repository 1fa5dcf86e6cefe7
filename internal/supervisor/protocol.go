// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package supervisor exposes the gateway's request/response and push
// surfaces over gorilla/websocket, generalizing the teacher's
// WebSocketConnection (cmd/connection.go) from a client-side byte pipe
// into a server-side JSON-message protocol (SPEC_FULL.md §4.11, §6).
package supervisor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// inboundEnvelope is the shape every client-to-server message shares;
// Type picks which request struct to unmarshal the rest into.
type inboundEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// sendCommandRequest is the send_command request body (§6.1).
type sendCommandRequest struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Command     commandSpec     `json:"command"`
	PumpAddress json.RawMessage `json:"pump_address"`
	Control     *int            `json:"control,omitempty"`
}

type commandSpec struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// updateConfigRequest is the update_config request body (§6.3).
type updateConfigRequest struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Port        string          `json:"port"`
	Baud        int             `json:"baud"`
	PumpAddress json.RawMessage `json:"pump_address"`
}

// frameInfo is the built-frame summary returned from send_command.
type frameInfo struct {
	Hex   string `json:"hex"`
	Bytes []int `json:"bytes"`
}

// errorInfo carries a dart.Error-shaped failure to the client without
// string-sniffing on the receiving end (§7 EXPANSION).
type errorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type commandResponse struct {
	ID        string     `json:"id"`
	OK        bool       `json:"ok"`
	CommandID string     `json:"command_id,omitempty"`
	Frame     *frameInfo `json:"frame,omitempty"`
	Error     *errorInfo `json:"error,omitempty"`
}

type configInfo struct {
	Port        string `json:"port"`
	Baud        int    `json:"baud"`
	PumpAddress string `json:"pump_address"`
}

type statusResponse struct {
	ID        string      `json:"id"`
	OK        bool        `json:"ok"`
	Connected bool        `json:"connected,omitempty"`
	Config    *configInfo `json:"config,omitempty"`
	Error     *errorInfo  `json:"error,omitempty"`
}

// pumpMessagePush is the pump_message push event (§6 EXPANSION).
type pumpMessagePush struct {
	Type        string         `json:"type"`
	Address     string         `json:"address"`
	Timestamp   string         `json:"timestamp"`
	Transaction transactionDTO `json:"transaction"`
	RawHex      string         `json:"raw_hex"`
}

type transactionDTO struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// logPush is the log push event.
type logPush struct {
	Type    string `json:"type"`
	TS      string `json:"ts"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// connectionStatusPush is the connection_status push event.
type connectionStatusPush struct {
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

var pongMessage = []byte(`{"type":"pong"}`)

// parseAddress accepts a JSON number as decimal (80..111) and a JSON
// string as hex, with or without a "0x" prefix ("0x50" or "50" both
// mean 0x50), per §6.1's pump_address boundary requirement.
func parseAddress(raw json.RawMessage) (uint8, error) {
	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return checkedAddress(int(asNumber))
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return 0, fmt.Errorf("pump_address must be a number or string")
	}
	asString = strings.TrimSpace(asString)
	asString = strings.TrimPrefix(strings.TrimPrefix(asString, "0x"), "0X")
	n, err := strconv.ParseInt(asString, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("pump_address %q is not a valid hex address", asString)
	}
	return checkedAddress(int(n))
}

func checkedAddress(n int) (uint8, error) {
	if n < 0x50 || n > 0x6F {
		return 0, fmt.Errorf("pump_address 0x%02X out of range [0x50,0x6F]", n)
	}
	return uint8(n), nil
}

func formatAddress(addr uint8) string {
	return fmt.Sprintf("0x%02X", addr)
}
