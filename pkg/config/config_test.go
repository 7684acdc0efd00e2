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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CfgFile), []byte(content), 0o600))
}

func TestNewConfigWritesDefaults(t *testing.T) {
	t.Setenv(CfgEnv, "")
	t.Setenv(PortEnv, "")

	dir := filepath.Join(t.TempDir(), "nested")
	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, CfgFile))
	require.NoError(t, err, "default config should be saved")

	assert.NotEmpty(t, cfg.DeviceID())
	assert.Equal(t, DefaultSerialPort(), cfg.SerialPort())
	assert.Equal(t, 9600, cfg.BaudRate())
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout())
	assert.Equal(t, 15*time.Second, cfg.WriteTimeout())
	assert.Equal(t, time.Second, cfg.LineTimeout())
	assert.Equal(t, 2*time.Second, cfg.SettleDelay())
	assert.Equal(t, time.Second, cfg.ModeSwitchDelay())
	assert.False(t, cfg.DebugLogging())
	assert.False(t, cfg.ErrorReporting())
}

func TestNewConfigKeepsDeviceID(t *testing.T) {
	t.Setenv(CfgEnv, "")

	dir := t.TempDir()
	first, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	second, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	assert.Equal(t, first.DeviceID(), second.DeviceID())
}

func TestNewConfigEnvPath(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "custom.toml")
	t.Setenv(CfgEnv, custom)

	cfg, err := NewConfig(t.TempDir(), BaseDefaults)
	require.NoError(t, err)

	assert.Equal(t, custom, cfg.Path())
	_, err = os.Stat(custom)
	require.NoError(t, err)
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv(CfgEnv, "")
	t.Setenv(PortEnv, "")

	dir := t.TempDir()
	writeConfig(t, dir, `config_schema = 1
debug_logging = true

[serial]
port = "COM3"
baud_rate = 115200
settle_delay_ms = 0

[history]
file = "/var/lib/rfid/history.csv"
`)

	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	assert.True(t, cfg.DebugLogging())
	assert.Equal(t, "COM3", cfg.SerialPort())
	assert.Equal(t, 115200, cfg.BaudRate())
	assert.Equal(t, time.Duration(0), cfg.SettleDelay())
	// untouched keys keep their defaults
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout())
	assert.Equal(t, "/var/lib/rfid/history.csv", cfg.HistoryPath("/data"))
}

func TestLoadSchemaMismatch(t *testing.T) {
	t.Setenv(CfgEnv, "")

	dir := t.TempDir()
	writeConfig(t, dir, "config_schema = 99\n")

	_, err := NewConfig(dir, BaseDefaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema version mismatch")
}

func TestLoadInvalidSerialSettings(t *testing.T) {
	t.Setenv(CfgEnv, "")

	dir := t.TempDir()
	writeConfig(t, dir, "config_schema = 1\n[serial]\nbaud_rate = 0\n")

	_, err := NewConfig(dir, BaseDefaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid serial settings")
	assert.Contains(t, err.Error(), "baud rate must be greater than 0")
}

func TestLoadMalformedToml(t *testing.T) {
	t.Setenv(CfgEnv, "")

	dir := t.TempDir()
	writeConfig(t, dir, "config_schema = = 1\n")

	_, err := NewConfig(dir, BaseDefaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal config")
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(CfgEnv, "")
	t.Setenv(PortEnv, "")

	dir := t.TempDir()
	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	cfg.SetSerialPort("/dev/ttyACM1")
	require.NoError(t, cfg.Save())

	reloaded, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM1", reloaded.SerialPort())
}

func TestSerialPortEnvOverride(t *testing.T) {
	t.Setenv(PortEnv, "/dev/ttyUSB9")

	cfg := &Instance{vals: BaseDefaults}
	assert.Equal(t, "/dev/ttyUSB9", cfg.SerialPort())
}

func TestLoadWithoutPath(t *testing.T) {
	t.Parallel()

	cfg := &Instance{}
	require.Error(t, cfg.Load())
	require.Error(t, cfg.Save())
}

func TestHistoryPaths(t *testing.T) {
	t.Parallel()

	dataDir := filepath.Join("data", "rfidstation")
	absPath, err := filepath.Abs(filepath.Join("tmp", "h.csv"))
	require.NoError(t, err)

	tests := []struct {
		name       string
		file       string
		exportFile string
		wantFile   string
		wantExport string
	}{
		{
			name:       "defaults resolve into data dir",
			wantFile:   filepath.Join(dataDir, HistoryFile),
			wantExport: filepath.Join(dataDir, ExportFile),
		},
		{
			name:       "relative paths resolve into data dir",
			file:       "reads.csv",
			exportFile: filepath.Join("out", "reads.xlsx"),
			wantFile:   filepath.Join(dataDir, "reads.csv"),
			wantExport: filepath.Join(dataDir, "out", "reads.xlsx"),
		},
		{
			name:       "absolute paths kept",
			file:       absPath,
			wantFile:   absPath,
			wantExport: filepath.Join(dataDir, ExportFile),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &Instance{vals: Values{History: History{File: tt.file, ExportFile: tt.exportFile}}}
			assert.Equal(t, tt.wantFile, cfg.HistoryPath(dataDir))
			assert.Equal(t, tt.wantExport, cfg.ExportPath(dataDir))
		})
	}
}
