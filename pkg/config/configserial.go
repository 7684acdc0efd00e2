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
	"runtime"
	"time"

	"github.com/ZaparooProject/rfid-station/pkg/validation"
)

const (
	DefaultBaudRate          = 9600
	DefaultReadTimeout       = 10
	DefaultWriteTimeout      = 15
	DefaultLineTimeoutMs     = 1000
	DefaultSettleDelayMs     = 2000
	DefaultModeSwitchDelayMs = 1000
)

// Serial holds the connection settings for the ESP32. Timeouts are in
// seconds, delays in milliseconds.
type Serial struct {
	Port              string `toml:"port"`
	BaudRate          int    `toml:"baud_rate"`
	ReadTimeout       int    `toml:"read_timeout"`
	WriteTimeout      int    `toml:"write_timeout"`
	LineTimeoutMs     int    `toml:"line_timeout_ms"`
	SettleDelayMs     int    `toml:"settle_delay_ms"`
	ModeSwitchDelayMs int    `toml:"mode_switch_delay_ms"`
}

// DefaultSerialPort returns the usual name of a USB serial adapter on the
// current OS.
func DefaultSerialPort() string {
	switch runtime.GOOS {
	case "windows":
		return "COM7"
	case "darwin":
		return "/dev/tty.usbserial"
	default:
		return "/dev/ttyUSB0"
	}
}

func serialParams(s Serial) *validation.SerialParams {
	return &validation.SerialParams{
		Port:         s.Port,
		BaudRate:     s.BaudRate,
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		LineTimeout:  s.LineTimeoutMs,
		SettleDelay:  s.SettleDelayMs,
		ModeSwitch:   s.ModeSwitchDelayMs,
	}
}

// SerialPort returns the configured port, or the value of RFIDSTATION_PORT
// when it is set.
func (c *Instance) SerialPort() string {
	if p := os.Getenv(PortEnv); p != "" {
		return p
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial.Port
}

func (c *Instance) SetSerialPort(port string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Serial.Port = port
}

func (c *Instance) BaudRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial.BaudRate
}

func (c *Instance) ReadTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Serial.ReadTimeout) * time.Second
}

func (c *Instance) WriteTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Serial.WriteTimeout) * time.Second
}

func (c *Instance) LineTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Serial.LineTimeoutMs) * time.Millisecond
}

func (c *Instance) SettleDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Serial.SettleDelayMs) * time.Millisecond
}

func (c *Instance) ModeSwitchDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Serial.ModeSwitchDelayMs) * time.Millisecond
}
