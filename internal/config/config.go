// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config holds the gateway's runtime configuration, populated
// from cobra flags with environment-variable fallback the way the
// teacher's cmd/connection.go falls back to FUSAIN_PASSWORD
// (SPEC_FULL.md §4.15).
package config

import (
	"os"
	"strconv"
)

// GatewayConfig is the full set of parameters needed to run the
// gateway against one pump over one serial port.
type GatewayConfig struct {
	Port        string
	Baud        int
	PumpAddress uint8
	BindAddr    string
}

// Default values used when neither a flag nor an environment variable
// supplies one.
const (
	DefaultBaud        = 9600 // matches original_source/sniffer.py's field-deployment rate
	DefaultPumpAddress = 0x50
	DefaultBindAddr    = ":8777"
)

// envOr returns the environment variable named key, or fallback if it
// is unset or empty.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envIntOr is envOr for integer-valued variables; a malformed value in
// the environment is treated the same as an unset one.
func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// FromEnv builds a GatewayConfig seeded from DARTGW_PORT, DARTGW_BAUD,
// DARTGW_PUMP, and DARTGW_BIND, falling back to this package's
// defaults. Callers (the CLI) then override individual fields with
// whatever flags the user passed explicitly.
func FromEnv() GatewayConfig {
	pump := envIntOr("DARTGW_PUMP", DefaultPumpAddress)
	return GatewayConfig{
		Port:        envOr("DARTGW_PORT", ""),
		Baud:        envIntOr("DARTGW_BAUD", DefaultBaud),
		PumpAddress: uint8(pump),
		BindAddr:    envOr("DARTGW_BIND", DefaultBindAddr),
	}
}
