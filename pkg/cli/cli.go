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

// Package cli implements the one-shot command line actions of the station.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ZaparooProject/rfid-station/pkg/config"
	"github.com/ZaparooProject/rfid-station/pkg/helpers"
	"github.com/ZaparooProject/rfid-station/pkg/history"
	"github.com/ZaparooProject/rfid-station/pkg/readers/esp32"
	"github.com/ZaparooProject/rfid-station/pkg/service"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingValue  = errors.New("flag requires a value")
	ErrNotConfirmed  = errors.New("history not cleared")
	ErrWriteRejected = errors.New("the reader could not write the card")
)

type Flags struct {
	fs      *flag.FlagSet
	Write   *string
	Search  *string
	Export  *exportFlag
	Port    *string
	Read    *bool
	History *bool
	Clear   *bool
	Yes     *bool
	Ports   *bool
	TUI     *bool
	Version *bool
	Debug   *bool
}

// Env is what the actions need once config and logging are set up.
type Env struct {
	Station    *service.Station
	In         io.Reader
	Out        io.Writer
	ExportPath string
}

// listPorts is replaced in tests.
var listPorts = helpers.SerialDevices

// SetupFlags defines the station flags on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		fs: fs,
		Write: fs.String(
			"write",
			"",
			"write text (1 to 16 characters) to the next card",
		),
		Read: fs.Bool(
			"read",
			false,
			"read the next card, print it and save it to the history",
		),
		History: fs.Bool(
			"history",
			false,
			"print the read history",
		),
		Search: fs.String(
			"search",
			"",
			"print history records containing the given text",
		),
		Export: newExportFlag(
			fs,
			"export",
			"export the history to an Excel file, -export=<path> or a trailing path overrides the config",
		),
		Clear: fs.Bool(
			"clear",
			false,
			"delete all history records after confirmation",
		),
		Yes: fs.Bool(
			"yes",
			false,
			"skip the confirmation of -clear",
		),
		Port: fs.String(
			"port",
			"",
			"serial port of the reader, overrides the config",
		),
		Ports: fs.Bool(
			"ports",
			false,
			"list serial ports and exit",
		),
		TUI: fs.Bool(
			"tui",
			false,
			"start the text ui (default when no action is given)",
		),
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		Debug: fs.Bool(
			"debug",
			false,
			"enable debug logging",
		),
	}
}

func (f *Flags) isFlagPassed(name string) bool {
	found := false
	f.fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

// Pre parses args and runs the flags that need no config or logging. It
// returns true when the program should exit.
func (f *Flags) Pre(args []string, out io.Writer) (bool, error) {
	if err := f.fs.Parse(args); err != nil {
		return true, fmt.Errorf("failed to parse flags: %w", err)
	}

	switch {
	case *f.Version:
		_, _ = fmt.Fprintf(out, "RFID Station v%s\n", config.AppVersion)
		return true, nil
	case *f.Ports:
		devices, err := listPorts()
		if err != nil {
			return true, fmt.Errorf("failed to list serial ports: %w", err)
		}
		printPorts(out, devices)
		return true, nil
	}
	return false, nil
}

// Configure applies flags that change config for this run only.
func (f *Flags) Configure(cfg *config.Instance) {
	if *f.Port != "" {
		cfg.SetSerialPort(*f.Port)
	}
	if *f.Debug {
		cfg.SetDebugLogging(true)
	}
}

// Interactive returns true when no one-shot action was requested.
func (f *Flags) Interactive() bool {
	if *f.TUI {
		return true
	}
	return !*f.Read && !*f.History && !*f.Clear &&
		!f.isFlagPassed("write") && !f.isFlagPassed("search") && !f.Export.enabled
}

// Post runs the one-shot action requested on the command line, if any. It
// returns true when an action ran.
func (f *Flags) Post(ctx context.Context, env Env) (bool, error) {
	if *f.TUI {
		return false, nil
	}

	switch {
	case f.isFlagPassed("write"):
		if *f.Write == "" {
			return true, fmt.Errorf("write: %w", ErrMissingValue)
		}
		return true, writeCard(ctx, env, *f.Write)
	case *f.Read:
		return true, readCard(ctx, env)
	case f.isFlagPassed("search"):
		if *f.Search == "" {
			return true, fmt.Errorf("search: %w", ErrMissingValue)
		}
		return true, printHistory(env, *f.Search)
	case *f.History:
		return true, printHistory(env, "")
	case f.Export.enabled:
		target := f.Export.path
		if target == "" && f.fs.NArg() > 0 {
			target = f.fs.Arg(0)
		}
		if target == "" {
			target = env.ExportPath
		}
		return true, exportHistory(env, target)
	case *f.Clear:
		if !*f.Yes && !confirm(env, "Clear all history? This cannot be undone. [y/N] ") {
			return true, ErrNotConfirmed
		}
		return true, clearHistory(env)
	}
	return false, nil
}

func readCard(ctx context.Context, env Env) error {
	if err := env.Station.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to reader: %w", err)
	}

	_, _ = fmt.Fprintln(env.Out, "Place a card on the reader...")
	res, err := env.Station.Read(ctx)
	if err != nil {
		if res.UID != "" {
			printCard(env.Out, res)
		}
		return err
	}

	printCard(env.Out, res)
	if !res.Complete() {
		_, _ = fmt.Fprintln(env.Out, "Incomplete read, not saved.")
	}
	return nil
}

func printCard(out io.Writer, res esp32.ReadResult) {
	_, _ = fmt.Fprintf(out, "UID: %s\n", res.UID)
	_, _ = fmt.Fprintf(out, "Data: %s\n", res.Payload)
}

func writeCard(ctx context.Context, env Env, text string) error {
	if err := env.Station.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to reader: %w", err)
	}

	_, _ = fmt.Fprintln(env.Out, "Place a card on the reader...")
	outcome, err := env.Station.Write(ctx, text)
	if err != nil {
		return err
	}
	if outcome != esp32.WriteSuccess {
		return ErrWriteRejected
	}
	_, _ = fmt.Fprintf(env.Out, "Card written: %s\n", text)
	return nil
}

func printHistory(env Env, query string) error {
	records, err := env.Station.History().LoadFiltered(query)
	if errors.Is(err, history.ErrNotFound) {
		_, _ = fmt.Fprintln(env.Out, "No history yet.")
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	printRecords(env.Out, records)
	return nil
}

func exportHistory(env Env, target string) error {
	n, err := env.Station.History().Export(target)
	if err != nil {
		return fmt.Errorf("failed to export history: %w", err)
	}
	log.Info().Int("records", n).Str("path", target).Msg("history exported")
	_, _ = fmt.Fprintf(env.Out, "Exported %d records to %s\n", n, target)
	return nil
}

func clearHistory(env Env) error {
	if err := env.Station.History().Clear(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	log.Info().Msg("history cleared")
	_, _ = fmt.Fprintln(env.Out, "History cleared.")
	return nil
}

func confirm(env Env, prompt string) bool {
	if env.In == nil {
		return false
	}
	_, _ = fmt.Fprint(env.Out, prompt)
	line, err := bufio.NewReader(env.In).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "s", "sim":
		return true
	default:
		return false
	}
}
