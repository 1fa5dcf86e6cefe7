// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mepsan/dartgw/internal/dart"
	"github.com/mepsan/dartgw/internal/engine"
	"github.com/mepsan/dartgw/internal/transport"
	"github.com/spf13/cobra"
)

const sendReplyTimeout = 500 * time.Millisecond

var sendControlByte string

var sendCmd = &cobra.Command{
	Use:   "send <command> [args...]",
	Short: "Build and send a single DART transaction, then print the reply frame",
	Long: `send opens the configured serial port directly (no supervisor), builds
one transaction for --pump, writes it, and prints whatever bytes come
back within a short window.

Commands:
  reset                 CD1 reset (0x05)
  authorize              CD1 authorize (0x06)
  stop                   CD1 stop (0x02)
  status                 CD1 status request (0x00)
  prices <p1> [p2...]     CD5 unit price table

Exit codes:
  0 - frame built and written
  1 - usage or build error
  2 - transport error`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendControlByte, "control", "", "Override the empirical control byte (decimal, or hex with 0x prefix), bypassing §4.8b selection")
}

func runSend(cmd *cobra.Command, args []string) error {
	if portName == "" {
		fmt.Fprintln(os.Stderr, "send: --port is required")
		os.Exit(1)
	}
	if !dart.ValidAddress(pumpAddress) {
		fmt.Fprintf(os.Stderr, "send: pump address 0x%02X out of range\n", pumpAddress)
		os.Exit(1)
	}

	tx, err := buildSendTransaction(args[0], args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
		os.Exit(1)
	}

	var ctrl *uint8
	if sendControlByte != "" {
		n, err := strconv.ParseUint(sendControlByte, 0, 8)
		if err != nil {
			fmt.Fprintf(os.Stderr, "send: invalid --control %q: %v\n", sendControlByte, err)
			os.Exit(1)
		}
		c := uint8(n)
		ctrl = &c
	}

	t := transport.New(portName, baudRate)
	if err := t.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
		os.Exit(2)
	}
	defer t.Close()

	addr := uint8(pumpAddress)
	effectiveCtrl := engine.SelectControlByte([]dart.Transaction{tx})
	if ctrl != nil {
		effectiveCtrl = *ctrl
	}
	frame, err := dart.BuildFrame(addr, effectiveCtrl, []dart.Transaction{tx})
	if err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("-> %s\n", hex.EncodeToString(frame))
	if err := t.WriteFrame(frame); err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
		os.Exit(2)
	}

	replyCh := make(chan []byte, 8)
	go func() {
		_ = t.Run(func(b []byte) {
			replyCh <- append([]byte(nil), b...)
		})
	}()

	select {
	case b := <-replyCh:
		fmt.Printf("<- %s\n", hex.EncodeToString(b))
	case <-time.After(sendReplyTimeout):
		fmt.Println("<- (no reply within timeout)")
	}

	return nil
}

func buildSendTransaction(name string, rest []string) (dart.Transaction, error) {
	switch name {
	case "reset":
		return dart.CD1Request(dart.Cmd1Reset)
	case "authorize":
		return dart.CD1Request(dart.Cmd1Authorize)
	case "stop":
		return dart.CD1Request(dart.Cmd1Stop)
	case "status":
		return dart.CD1Request(dart.Cmd1Status)
	case "prices":
		if len(rest) == 0 {
			return dart.Transaction{}, fmt.Errorf("prices requires at least one price")
		}
		prices := make([]float64, len(rest))
		for i, s := range rest {
			p, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return dart.Transaction{}, fmt.Errorf("price %q is not a number", s)
			}
			prices[i] = p
		}
		return dart.CD5Request(prices)
	default:
		return dart.Transaction{}, fmt.Errorf("unrecognized command %q", name)
	}
}
