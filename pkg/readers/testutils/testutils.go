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

// Package testutils provides common testing utilities for serial device tests.
package testutils

import (
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/rfid-station/pkg/helpers/syncutil"
	"github.com/ZaparooProject/rfid-station/pkg/readers"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// ErrOpenFailed is returned by FailingFactory.
var ErrOpenFailed = errors.New("mock port unavailable")

// OpenCall records the arguments passed to a factory.
type OpenCall struct {
	Mode *serial.Mode
	Path string
}

// FactoryRecorder hands out a fixed port and remembers how it was opened.
type FactoryRecorder struct {
	port  readers.Port
	calls []OpenCall
	mu    syncutil.Mutex
}

// NewFactory returns a recorder whose Open method always returns port.
func NewFactory(port readers.Port) *FactoryRecorder {
	return &FactoryRecorder{port: port}
}

// Open satisfies readers.PortFactory.
func (f *FactoryRecorder) Open(path string, mode *serial.Mode) (readers.Port, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, OpenCall{Path: path, Mode: mode})
	return f.port, nil
}

func (f *FactoryRecorder) Calls() []OpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]OpenCall(nil), f.calls...)
}

// FailingFactory never opens a port.
func FailingFactory(_ string, _ *serial.Mode) (readers.Port, error) {
	return nil, ErrOpenFailed
}

// WaitForWrites blocks until the port has seen at least n writes. Fails the
// test if that doesn't happen within timeout.
func WaitForWrites(t *testing.T, port *MockSerialPort, n int, timeout time.Duration) []string {
	t.Helper()
	var writes []string
	require.Eventually(t, func() bool {
		writes = port.Writes()
		return len(writes) >= n
	}, timeout, time.Millisecond, "expected %d writes", n)
	return writes
}
