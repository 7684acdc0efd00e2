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

package testutils

import (
	"errors"
	"time"

	"github.com/ZaparooProject/rfid-station/pkg/helpers/syncutil"
)

// DefaultEmptyReadDelay is how long a Read blocks when nothing is queued,
// standing in for the port's read timeout.
const DefaultEmptyReadDelay = 5 * time.Millisecond

var errPortClosed = errors.New("port closed")

// MockSerialPort is a scripted serial port. Data queued with QueueRead is
// returned by Read one chunk per call; Respond queues data automatically when
// a matching command is written, like a device answering the host.
type MockSerialPort struct {
	ReadError  error
	WriteError error
	CloseError error
	TimeoutErr error
	ResetError error
	// OnWrite is called after every successful Write, outside the lock.
	OnWrite        func(p []byte)
	responses      map[string][]string
	pending        [][]byte
	writes         [][]byte
	EmptyReadDelay time.Duration
	readTimeout    time.Duration
	resets         int
	reads          int
	mu             syncutil.Mutex
	closed         bool
}

// NewMockSerialPort creates a new mock serial port for testing.
func NewMockSerialPort() *MockSerialPort {
	return &MockSerialPort{
		EmptyReadDelay: DefaultEmptyReadDelay,
		responses:      make(map[string][]string),
	}
}

// QueueRead appends chunks to be returned by subsequent reads.
func (m *MockSerialPort) QueueRead(chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.pending = append(m.pending, []byte(c))
	}
}

// Respond queues chunks every time exactly command is written.
func (m *MockSerialPort) Respond(command string, chunks ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[command] = chunks
}

func (m *MockSerialPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	m.reads++
	if m.closed {
		m.mu.Unlock()
		return 0, errPortClosed
	}
	if m.ReadError != nil {
		err := m.ReadError
		m.mu.Unlock()
		return 0, err
	}
	if len(m.pending) == 0 {
		delay := m.EmptyReadDelay
		m.mu.Unlock()
		time.Sleep(delay)
		return 0, nil
	}

	chunk := m.pending[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		m.pending[0] = chunk[n:]
	} else {
		m.pending = m.pending[1:]
	}
	m.mu.Unlock()
	return n, nil
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, errPortClosed
	}
	if m.WriteError != nil {
		err := m.WriteError
		m.mu.Unlock()
		return 0, err
	}
	m.writes = append(m.writes, append([]byte(nil), p...))
	if chunks, ok := m.responses[string(p)]; ok {
		for _, c := range chunks {
			m.pending = append(m.pending, []byte(c))
		}
	}
	hook := m.OnWrite
	m.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return len(p), nil
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.CloseError
}

func (m *MockSerialPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TimeoutErr != nil {
		return m.TimeoutErr
	}
	m.readTimeout = t
	return nil
}

// ResetInputBuffer drops any queued but unread data.
func (m *MockSerialPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ResetError != nil {
		return m.ResetError
	}
	m.pending = nil
	m.resets++
	return nil
}

// Writes returns every write made to the port, in order.
func (m *MockSerialPort) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.writes))
	for i, w := range m.writes {
		out[i] = string(w)
	}
	return out
}

func (m *MockSerialPort) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

func (m *MockSerialPort) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func (m *MockSerialPort) ReadTimeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readTimeout
}

// IsClosed returns true if the port has been closed.
func (m *MockSerialPort) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
