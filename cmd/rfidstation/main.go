// Zaparoo RFID Station
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo RFID Station.
//
// Zaparoo RFID Station is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo RFID Station is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo RFID Station.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/rfid-station/internal/telemetry"
	"github.com/ZaparooProject/rfid-station/pkg/cli"
	"github.com/ZaparooProject/rfid-station/pkg/config"
	"github.com/ZaparooProject/rfid-station/pkg/helpers"
	"github.com/ZaparooProject/rfid-station/pkg/history"
	"github.com/ZaparooProject/rfid-station/pkg/service"
	"github.com/ZaparooProject/rfid-station/pkg/ui/tui"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags(flag.CommandLine)
	exit, err := flags.Pre(os.Args[1:], os.Stdout)
	if exit {
		return err
	}

	// one-shot actions log to the console too, the TUI owns the terminal
	var logWriters []io.Writer
	if !flags.Interactive() {
		logWriters = []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	}

	dirs := helpers.DefaultDirs()
	cfg, err := cli.Setup(dirs, config.BaseDefaults, logWriters)
	if err != nil {
		return err
	}
	flags.Configure(cfg)
	cli.Start(cfg)
	defer telemetry.Close()

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := history.NewStore(afero.NewOsFs(), cfg.HistoryPath(dirs.Data))
	st := service.New(cfg, store)
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("error closing station")
		}
	}()

	handled, err := flags.Post(ctx, cli.Env{
		Station:    st,
		In:         os.Stdin,
		Out:        os.Stdout,
		ExportPath: cfg.ExportPath(dirs.Data),
	})
	if handled {
		if err != nil {
			log.Error().Err(err).Msg("command failed")
		}
		return err
	}

	log.Info().Str("version", config.AppVersion).Msg("starting rfid station")
	if err := st.Connect(ctx); err != nil {
		log.Error().Err(err).Msg("could not connect to reader")
	}

	if err := tui.Run(ctx, st, cfg.ExportPath(dirs.Data)); err != nil {
		log.Error().Err(err).Msg("error running UI")
		return fmt.Errorf("error running UI: %w", err)
	}
	return nil
}
