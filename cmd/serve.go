// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mepsan/dartgw/internal/engine"
	"github.com/mepsan/dartgw/internal/eventbus"
	"github.com/mepsan/dartgw/internal/logging"
	"github.com/mepsan/dartgw/internal/state"
	"github.com/mepsan/dartgw/internal/supervisor"
	"github.com/mepsan/dartgw/internal/transport"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway, exposing the pump bus to a supervisor over WebSocket",
	Long: `serve opens the configured serial port, runs the protocol engine
against it, and listens for supervisor WebSocket connections on --bind.

Each connection can send_command, get_status, and update_config, and
receives pump_message/log/connection_status pushes as they occur
(see SPEC_FULL.md §6). The engine keeps running across update_config
calls that change --port or --baud; it closes the old transport before
opening the new one.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if portName == "" {
		return fmt.Errorf("serve: --port is required")
	}

	bus := eventbus.New()
	log := logging.New(logging.LevelInfo, bus)
	proj := state.NewProjector()
	t := transport.New(portName, baudRate)
	eng := engine.New(t, proj, bus, log)

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- eng.Run() }()

	srv := supervisor.New(eng, bus, log, currentConfig())
	httpSrv := &http.Server{Addr: bindAddr, Handler: srv}

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- httpSrv.ListenAndServe() }()

	log.Infof("serving %s at %d baud, supervisor listening on %s", portName, baudRate, bindAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Infof("shutting down")
		eng.Stop()
		_ = httpSrv.Close()
		return nil
	case err := <-runErrCh:
		_ = httpSrv.Close()
		return fmt.Errorf("engine stopped: %w", err)
	case err := <-httpErrCh:
		eng.Stop()
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("supervisor listener failed: %w", err)
	}
}
