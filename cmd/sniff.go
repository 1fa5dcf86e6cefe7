// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/mepsan/dartgw/internal/engine"
	"github.com/mepsan/dartgw/internal/eventbus"
	"github.com/mepsan/dartgw/internal/logging"
	"github.com/mepsan/dartgw/internal/state"
	"github.com/mepsan/dartgw/internal/transport"
	"github.com/spf13/cobra"
)

var sniffCmd = &cobra.Command{
	Use:   "sniff",
	Short: "Continuously decode and print DART traffic in human-readable form",
	Long: `sniff opens the configured serial port directly, runs the protocol
engine against it, and prints every decoded transaction and log line as
they occur. It never sends anything on the bus.

Press Ctrl+C to exit.`,
	RunE: runSniff,
}

func init() {
	rootCmd.AddCommand(sniffCmd)
}

func runSniff(cmd *cobra.Command, args []string) error {
	if portName == "" {
		fmt.Fprintln(os.Stderr, "sniff: --port is required")
		os.Exit(1)
	}

	fmt.Printf("dartgw sniff — %s at %d baud\n", portName, baudRate)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	bus := eventbus.New()
	log := logging.New(logging.LevelInfo, bus)
	t := transport.New(portName, baudRate)
	eng := engine.New(t, state.NewProjector(), bus, log)

	events, cancel := bus.Subscribe()
	defer cancel()
	go printEvents(events)

	return eng.Run()
}

func printEvents(events <-chan eventbus.Event) {
	for ev := range events {
		switch payload := ev.Payload.(type) {
		case engine.PumpMessage:
			fmt.Printf("[%s] 0x%02X %-18s %s\n",
				payload.Timestamp.Format("15:04:05.000"), payload.Address, payload.Decoded.Kind, payload.RawHex)
		case engine.UnrecognizedFrame:
			fmt.Printf("[unrecognized] 0x%02X %s\n", payload.Address, payload.RawHex)
		case logging.Entry:
			fmt.Printf("[%s] %s\n", payload.Level, payload.Message)
		case bool:
			if payload {
				fmt.Println("[connection] up")
			} else {
				fmt.Println("[connection] down")
			}
		}
	}
}
