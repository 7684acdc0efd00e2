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

package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ZaparooProject/rfid-station/pkg/config"
	"github.com/ZaparooProject/rfid-station/pkg/helpers"
	"github.com/ZaparooProject/rfid-station/pkg/history"
	"github.com/ZaparooProject/rfid-station/pkg/readers"
	"github.com/ZaparooProject/rfid-station/pkg/readers/esp32"
	"github.com/ZaparooProject/rfid-station/pkg/readers/testutils"
	"github.com/ZaparooProject/rfid-station/pkg/service"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testHistoryPath = "/data/historico.csv"
	testExportPath  = "/data/historico_rfid.xlsx"
)

func newTestFlags() *Flags {
	fs := flag.NewFlagSet("rfidstation", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return SetupFlags(fs)
}

func newTestConfig(t *testing.T) *config.Instance {
	t.Helper()
	if os.Getenv(config.CfgEnv) != "" || os.Getenv(config.PortEnv) != "" {
		t.Skip("config environment overrides are set")
	}

	defaults := config.BaseDefaults
	defaults.Serial.Port = "/dev/ttyUSB0"
	defaults.Serial.ReadTimeout = 1
	defaults.Serial.WriteTimeout = 1
	defaults.Serial.SettleDelayMs = 0
	defaults.Serial.ModeSwitchDelayMs = 0

	cfg, err := config.NewConfig(t.TempDir(), defaults)
	require.NoError(t, err)
	return cfg
}

type cliFixture struct {
	port  *testutils.MockSerialPort
	fs    afero.Fs
	store *history.Store
	out   *bytes.Buffer
	env   Env
}

func newCLIFixture(t *testing.T, factory readers.PortFactory) *cliFixture {
	t.Helper()

	port := testutils.NewMockSerialPort()
	if factory == nil {
		factory = testutils.NewFactory(port).Open
	}
	fs := afero.NewMemMapFs()
	store := history.NewStore(fs, testHistoryPath)
	st := service.New(newTestConfig(t), store, service.WithPortFactory(factory))
	t.Cleanup(func() { _ = st.Close() })

	out := &bytes.Buffer{}
	return &cliFixture{
		port:  port,
		fs:    fs,
		store: store,
		out:   out,
		env:   Env{Station: st, Out: out, ExportPath: testExportPath},
	}
}

func (f *cliFixture) run(t *testing.T, args ...string) (bool, error) {
	t.Helper()
	flags := newTestFlags()
	exit, err := flags.Pre(args, f.out)
	require.NoError(t, err)
	require.False(t, exit)
	return flags.Post(context.Background(), f.env)
}

func (f *cliFixture) seed(t *testing.T) {
	t.Helper()
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)
	require.NoError(t, f.store.Append(history.NewRecord(ts, "04A31B2C", "HELLO")))
	require.NoError(t, f.store.Append(history.NewRecord(ts.Add(time.Minute), "08FF0011", "ação")))
}

func TestPreVersion(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	exit, err := newTestFlags().Pre([]string{"-version"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Equal(t, "RFID Station v"+config.AppVersion+"\n", out.String())
}

func TestPreUnknownFlag(t *testing.T) {
	t.Parallel()

	exit, err := newTestFlags().Pre([]string{"-bogus"}, io.Discard)
	require.Error(t, err)
	assert.True(t, exit)
}

//nolint:paralleltest // replaces listPorts
func TestPrePorts(t *testing.T) {
	orig := listPorts
	t.Cleanup(func() { listPorts = orig })

	listPorts = func() ([]helpers.SerialDevice, error) {
		return []helpers.SerialDevice{
			{Path: "/dev/ttyUSB0", VID: "10c4", PID: "ea60", Product: "CP2102", ESP32: true},
			{Path: "/dev/ttyACM0"},
		}, nil
	}
	var out bytes.Buffer
	exit, err := newTestFlags().Pre([]string{"-ports"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Contains(t, out.String(), "/dev/ttyUSB0")
	assert.Contains(t, out.String(), "10c4:ea60")
	assert.Contains(t, out.String(), "CP2102 (ESP32)")
	assert.Contains(t, out.String(), "/dev/ttyACM0")

	listPorts = func() ([]helpers.SerialDevice, error) { return nil, nil }
	out.Reset()
	_, err = newTestFlags().Pre([]string{"-ports"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "No serial ports found.\n", out.String())

	listPorts = func() ([]helpers.SerialDevice, error) { return nil, errors.New("no access") }
	_, err = newTestFlags().Pre([]string{"-ports"}, &out)
	require.Error(t, err)
}

func TestInteractive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no flags", args: nil, expected: true},
		{name: "port only", args: []string{"-port", "COM3"}, expected: true},
		{name: "read", args: []string{"-read"}, expected: false},
		{name: "write", args: []string{"-write", "HI"}, expected: false},
		{name: "bare export", args: []string{"-export"}, expected: false},
		{name: "export with path", args: []string{"-export=/tmp/h.xlsx"}, expected: false},
		{name: "export disabled", args: []string{"-export=false"}, expected: true},
		{name: "history", args: []string{"-history"}, expected: false},
		{name: "clear", args: []string{"-clear"}, expected: false},
		{name: "tui wins", args: []string{"-tui", "-history"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flags := newTestFlags()
			_, err := flags.Pre(tt.args, io.Discard)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, flags.Interactive())
		})
	}
}

func TestConfigure(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t)
	flags := newTestFlags()
	_, err := flags.Pre([]string{"-port", "/dev/ttyACM1", "-debug"}, io.Discard)
	require.NoError(t, err)

	flags.Configure(cfg)
	assert.Equal(t, "/dev/ttyACM1", cfg.SerialPort())
	assert.True(t, cfg.DebugLogging())
}

func TestPostNothing(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t, nil)
	handled, err := f.run(t)
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestPostRead(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t, nil)
	f.port.Respond(esp32.CmdRead, "UID:04A31B2C\n", "DADOS_LIDOS:HELLO     \n")

	handled, err := f.run(t, "-read")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Contains(t, f.out.String(), "UID: 04A31B2C\nData: HELLO\n")

	records, err := f.store.LoadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "04A31B2C", records[0].UID)
}

func TestPostReadNoReader(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t, testutils.FailingFactory)
	_, err := f.run(t, "-read")
	require.ErrorIs(t, err, readers.ErrConnection)
}

func TestPostWrite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		ack     string
	}{
		{name: "success", ack: "Write success\n"},
		{name: "failed", ack: "write FAILED\n", wantErr: ErrWriteRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newCLIFixture(t, nil)
			f.port.Respond("HELLO           #", tt.ack)

			handled, err := f.run(t, "-write", "HELLO")
			assert.True(t, handled)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, f.out.String(), "Card written: HELLO")
		})
	}
}

func TestPostWriteInvalid(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t, nil)
	_, err := f.run(t, "-write", "")
	require.ErrorIs(t, err, ErrMissingValue)

	_, err = f.run(t, "-write", "ABCDEFGHIJKLMNOPQ")
	require.ErrorIs(t, err, readers.ErrInvalidPayload)
	assert.Empty(t, f.port.Writes())
}

func TestPostHistory(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t, nil)
	_, err := f.run(t, "-history")
	require.NoError(t, err)
	assert.Equal(t, "No history yet.\n", f.out.String())

	f.seed(t)
	f.out.Reset()
	_, err = f.run(t, "-history")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Data/Hora")
	assert.Contains(t, f.out.String(), "04A31B2C")
	assert.Contains(t, f.out.String(), "ação")

	f.out.Reset()
	_, err = f.run(t, "-search", "AÇÃO")
	require.NoError(t, err)
	assert.NotContains(t, f.out.String(), "04A31B2C")
	assert.Contains(t, f.out.String(), "08FF0011")

	f.out.Reset()
	_, err = f.run(t, "-search", "zzz")
	require.NoError(t, err)
	assert.Equal(t, "No records found.\n", f.out.String())

	_, err = f.run(t, "-search", "")
	require.ErrorIs(t, err, ErrMissingValue)
}

func TestPostExport(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t, nil)
	_, err := f.run(t, "-export")
	require.ErrorIs(t, err, history.ErrNotFound)

	f.seed(t)
	_, err = f.run(t, "-export")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Exported 2 records to "+testExportPath)
	exists, err := afero.Exists(f.fs, testExportPath)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = f.run(t, "-export=/out/custom.xlsx")
	require.NoError(t, err)
	exists, err = afero.Exists(f.fs, "/out/custom.xlsx")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = f.run(t, "-export", "/out/trailing.xlsx")
	require.NoError(t, err)
	exists, err = afero.Exists(f.fs, "/out/trailing.xlsx")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestExportFlagParsing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		args    []string
		yes     bool
		enabled bool
	}{
		{name: "bare", args: []string{"-export"}, enabled: true},
		{name: "followed by a flag", args: []string{"-export", "-yes"}, enabled: true, yes: true},
		{name: "with path", args: []string{"-export=out.xlsx"}, enabled: true, path: "out.xlsx"},
		{name: "explicit false", args: []string{"-export=false"}},
		{name: "absent", args: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flags := newTestFlags()
			exit, err := flags.Pre(tt.args, io.Discard)
			require.NoError(t, err)
			assert.False(t, exit)
			assert.Equal(t, tt.enabled, flags.Export.enabled)
			assert.Equal(t, tt.path, flags.Export.path)
			assert.Equal(t, tt.yes, *flags.Yes)
		})
	}
}

func TestPostClear(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t, nil)
	f.seed(t)

	_, err := f.run(t, "-clear")
	require.ErrorIs(t, err, ErrNotConfirmed)
	records, err := f.store.LoadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2)

	f.env.In = strings.NewReader("n\n")
	_, err = f.run(t, "-clear")
	require.ErrorIs(t, err, ErrNotConfirmed)
	assert.Contains(t, f.out.String(), "Clear all history?")

	f.env.In = strings.NewReader("y\n")
	_, err = f.run(t, "-clear")
	require.NoError(t, err)
	records, err = f.store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPostClearYes(t *testing.T) {
	t.Parallel()

	f := newCLIFixture(t, nil)
	f.seed(t)

	_, err := f.run(t, "-clear", "-yes")
	require.NoError(t, err)
	records, err := f.store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "yes", input: "y\n", expected: true},
		{name: "yes upper", input: "YES\n", expected: true},
		{name: "sim", input: "s\n", expected: true},
		{name: "no newline", input: "y", expected: true},
		{name: "no", input: "n\n", expected: false},
		{name: "empty", input: "\n", expected: false},
		{name: "eof", input: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := Env{In: strings.NewReader(tt.input), Out: io.Discard}
			assert.Equal(t, tt.expected, confirm(env, "? "))
		})
	}
}
