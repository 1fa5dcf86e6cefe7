// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/mepsan/dartgw/internal/config"
	"github.com/spf13/cobra"
)

// currentConfig builds a GatewayConfig from the currently parsed
// persistent flags, the shape every subcommand needs to open a
// transport or report its own status.
func currentConfig() config.GatewayConfig {
	return config.GatewayConfig{
		Port:        portName,
		Baud:        baudRate,
		PumpAddress: uint8(pumpAddress),
		BindAddr:    bindAddr,
	}
}

var (
	portName    string
	baudRate    int
	pumpAddress int
	bindAddr    string
)

var rootCmd = &cobra.Command{
	Use:   "dartgw",
	Short: "DART pump-interface gateway",
	Long: `dartgw drives a DART fuel-dispenser line over RS-485 and exposes it
to a supervisor over WebSocket.

Connection:
  Serial:     --port /dev/ttyUSB0 [--baud 9600]
  Supervisor: --bind :8777 (serve), or --bind host:port (monitor, to attach
              to an already-running serve instance instead of opening the
              serial port directly)

The pump address used when a command omits one is set with --pump (accepts
decimal 80-111 or hex 0x50-0x6F). Baud rate and pump address may also come
from DARTGW_BAUD / DARTGW_PUMP / DARTGW_PORT / DARTGW_BIND.`,
	Version: "1.0.0",
}

func init() {
	defaults := config.FromEnv()

	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", defaults.Port, "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", defaults.Baud, "Baud rate (9600/19200/38400/57600/115200)")
	rootCmd.PersistentFlags().IntVar(&pumpAddress, "pump", int(defaults.PumpAddress), "Default pump address (decimal or 0x.. hex)")
	rootCmd.PersistentFlags().StringVar(&bindAddr, "bind", defaults.BindAddr, "Supervisor listen (serve) or dial (monitor) address")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
