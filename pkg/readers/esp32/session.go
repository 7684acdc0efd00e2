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

// Package esp32 talks to an ESP32 RFID reader/writer running the line based
// serial firmware: "0" requests a read, "1" enters write mode.
package esp32

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/rfid-station/pkg/helpers/syncutil"
	"github.com/ZaparooProject/rfid-station/pkg/readers"
	"github.com/ZaparooProject/rfid-station/pkg/validation"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultBaudRate        = 9600
	DefaultLineTimeout     = time.Second
	DefaultSettleDelay     = 2 * time.Second
	DefaultModeSwitchDelay = time.Second
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
)

// WriteOutcome is the result reported by the device after a write.
type WriteOutcome int

const (
	WriteNone WriteOutcome = iota
	WriteSuccess
	WriteFailed
)

func (o WriteOutcome) String() string {
	switch o {
	case WriteSuccess:
		return "success"
	case WriteFailed:
		return "failed"
	default:
		return "none"
	}
}

// ReadResult holds the fields reported during a read. Empty means the device
// didn't report that field.
type ReadResult struct {
	UID     string
	Payload string
}

// Complete is true when both the UID and the payload were reported.
func (r ReadResult) Complete() bool {
	return r.UID != "" && r.Payload != ""
}

// Options configures how a session opens and paces the port. Zero values
// fall back to the defaults, except the delays where zero means no wait.
type Options struct {
	PortFactory     readers.PortFactory
	Clock           clockwork.Clock
	BaudRate        int
	LineTimeout     time.Duration
	SettleDelay     time.Duration
	ModeSwitchDelay time.Duration
}

// DefaultOptions returns the options used by the stock firmware.
func DefaultOptions() Options {
	return Options{
		PortFactory:     readers.DefaultPortFactory,
		Clock:           clockwork.NewRealClock(),
		BaudRate:        DefaultBaudRate,
		LineTimeout:     DefaultLineTimeout,
		SettleDelay:     DefaultSettleDelay,
		ModeSwitchDelay: DefaultModeSwitchDelay,
	}
}

func (o Options) withDefaults() Options {
	if o.PortFactory == nil {
		o.PortFactory = readers.DefaultPortFactory
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.BaudRate <= 0 {
		o.BaudRate = DefaultBaudRate
	}
	if o.LineTimeout <= 0 {
		o.LineTimeout = DefaultLineTimeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.ModeSwitchDelay < 0 {
		o.ModeSwitchDelay = 0
	}
	return o
}

// Session is an open connection to one device. Only one read or write runs
// at a time; extra requests fail with readers.ErrBusy.
type Session struct {
	port            readers.Port
	clock           clockwork.Clock
	permit          *semaphore.Weighted
	cancelRead      context.CancelFunc
	lines           lineReader
	path            string
	modeSwitchDelay time.Duration
	cancelMu        syncutil.Mutex // protects cancelRead
	mu              syncutil.RWMutex
	closed          bool
}

// Open connects to the device at path and waits for it to boot. ESP32 boards
// reset when the port opens, so commands sent straight away are lost.
func Open(ctx context.Context, path string, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	port, err := opts.PortFactory(path, readers.Mode8N1(opts.BaudRate))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", readers.ErrConnection, path, err)
	}

	if err := port.SetReadTimeout(opts.LineTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("%w: failed to set read timeout: %w", readers.ErrConnection, err)
	}

	if opts.SettleDelay > 0 {
		log.Debug().Str("path", path).Dur("delay", opts.SettleDelay).Msg("waiting for device to settle")
		if err := sleepCtx(ctx, opts.Clock, opts.SettleDelay); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("%w: %w", readers.ErrConnection, err)
		}
	}

	log.Info().Str("path", path).Int("baud", opts.BaudRate).Msg("opened serial session")

	return &Session{
		port:            port,
		path:            path,
		clock:           opts.Clock,
		modeSwitchDelay: opts.ModeSwitchDelay,
		permit:          semaphore.NewWeighted(1),
	}, nil
}

func sleepCtx(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-clock.After(d):
		return nil
	}
}

// Path returns the serial device path the session was opened on.
func (s *Session) Path() string {
	return s.path
}

// Connected returns true until the session is closed.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// acquire takes the operation permit and returns the port. Callers must
// release the permit when done.
func (s *Session) acquire() (readers.Port, error) {
	s.mu.RLock()
	closed := s.closed
	port := s.port
	s.mu.RUnlock()
	if closed || port == nil {
		return nil, readers.ErrNotConnected
	}
	if !s.permit.TryAcquire(1) {
		return nil, readers.ErrBusy
	}
	return port, nil
}

// sendCommand drops stale input and writes cmd.
func (s *Session) sendCommand(port readers.Port, cmd string) error {
	if err := port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to reset input buffer: %w", err)
	}
	s.lines.reset()
	if _, err := port.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("failed to write to serial port: %w", err)
	}
	return nil
}

func (s *Session) setCancel(cancel context.CancelFunc) {
	s.cancelMu.Lock()
	s.cancelRead = cancel
	s.cancelMu.Unlock()
}

// Cancel stops an in-flight ReadCard. It takes effect once the current port
// read returns. No-op when nothing is being read.
func (s *Session) Cancel() {
	s.cancelMu.Lock()
	cancel := s.cancelRead
	s.cancelMu.Unlock()
	if cancel != nil {
		log.Debug().Msg("cancelling card read")
		cancel()
	}
}

// ReadCard asks the device for a card read and collects the UID and payload
// lines. On timeout the fields seen so far are returned with
// readers.ErrTimeout. A cancelled read returns readers.ErrCancelled and an
// empty result.
func (s *Session) ReadCard(ctx context.Context, timeout time.Duration) (ReadResult, error) {
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	port, err := s.acquire()
	if err != nil {
		return ReadResult{}, err
	}
	defer s.permit.Release(1)

	ctx, cancel := context.WithCancel(ctx)
	s.setCancel(cancel)
	defer func() {
		s.setCancel(nil)
		cancel()
	}()

	if err := s.sendCommand(port, CmdRead); err != nil {
		return ReadResult{}, err
	}

	var res ReadResult
	start := s.clock.Now()
	for {
		if ctx.Err() != nil {
			log.Debug().Msg("card read cancelled")
			return ReadResult{}, readers.ErrCancelled
		}
		if s.clock.Since(start) > timeout {
			log.Debug().Str("uid", res.UID).Msg("card read timed out")
			return res, fmt.Errorf("%w: no card data after %s", readers.ErrTimeout, timeout)
		}

		line, ok, err := s.lines.next(port)
		if err != nil {
			return ReadResult{}, fmt.Errorf("failed to read from serial port: %w", err)
		}
		if !ok || line == "" {
			continue
		}
		log.Debug().Str("line", line).Msg("serial line received")

		kind, value := classifyLine(line)
		switch kind {
		case lineUID:
			res.UID = value
		case linePayload:
			res.Payload = value
			return res, nil
		case lineOther:
		}
	}
}

// WritePayload sends text to be written to the card on the reader. The text
// is checked before any I/O, must be 1-16 characters and is sent padded to
// 16 characters. Cancel does not affect writes; use ctx instead.
func (s *Session) WritePayload(ctx context.Context, text string, timeout time.Duration) (WriteOutcome, error) {
	if err := validation.ValidatePayload(text); err != nil {
		return WriteNone, fmt.Errorf("%w: %w", readers.ErrInvalidPayload, err)
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}

	port, err := s.acquire()
	if err != nil {
		return WriteNone, err
	}
	defer s.permit.Release(1)

	if err := s.sendCommand(port, CmdWrite); err != nil {
		return WriteNone, err
	}

	if s.modeSwitchDelay > 0 {
		if err := sleepCtx(ctx, s.clock, s.modeSwitchDelay); err != nil {
			return WriteNone, errors.Join(readers.ErrCancelled, err)
		}
	}

	frame := payloadFrame(text)
	if _, err := port.Write([]byte(frame)); err != nil {
		return WriteNone, fmt.Errorf("failed to write payload: %w", err)
	}
	log.Debug().Str("frame", frame).Msg("sent payload to device")

	start := s.clock.Now()
	for {
		if ctx.Err() != nil {
			return WriteNone, readers.ErrCancelled
		}
		if s.clock.Since(start) > timeout {
			return WriteNone, fmt.Errorf("%w: no write acknowledgement after %s", readers.ErrTimeout, timeout)
		}

		line, ok, err := s.lines.next(port)
		if err != nil {
			return WriteNone, fmt.Errorf("failed to read from serial port: %w", err)
		}
		if !ok || line == "" {
			continue
		}
		log.Debug().Str("line", line).Msg("serial line received")

		if outcome, ok := classifyAck(line); ok {
			log.Info().Stringer("outcome", outcome).Msg("card write finished")
			return outcome, nil
		}
	}
}

// Close closes the port and cancels any in-flight read. Later operations
// fail with readers.ErrNotConnected.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	port := s.port
	s.mu.Unlock()

	s.Cancel()

	if port != nil {
		if err := port.Close(); err != nil {
			return fmt.Errorf("failed to close serial port: %w", err)
		}
	}
	log.Info().Str("path", s.path).Msg("closed serial session")
	return nil
}
