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

// Package service runs the reader station: one serial session, one history
// store, and at most one card operation in flight.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ZaparooProject/rfid-station/pkg/config"
	"github.com/ZaparooProject/rfid-station/pkg/helpers/syncutil"
	"github.com/ZaparooProject/rfid-station/pkg/history"
	"github.com/ZaparooProject/rfid-station/pkg/readers"
	"github.com/ZaparooProject/rfid-station/pkg/readers/esp32"
	"github.com/ZaparooProject/rfid-station/pkg/validation"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// ErrHistorySave is returned with a complete read result that could not be
// written to the history file.
var ErrHistorySave = errors.New("failed to save read to history")

// Option configures a Station.
type Option func(*Station)

// WithPortFactory replaces the function used to open serial ports.
func WithPortFactory(f readers.PortFactory) Option {
	return func(s *Station) {
		s.portFactory = f
	}
}

// WithClock sets the clock used for history timestamps and device delays.
func WithClock(c clockwork.Clock) Option {
	return func(s *Station) {
		s.clock = c
	}
}

// Station owns the device session and the history store.
type Station struct {
	cfg         *config.Instance
	store       *history.Store
	clock       clockwork.Clock
	portFactory readers.PortFactory
	session     *esp32.Session
	ops         *semaphore.Weighted
	cancelRead  context.CancelFunc
	wg          sync.WaitGroup
	mu          syncutil.RWMutex // protects session, cancelRead and closed
	closed      bool
}

// New creates a station without connecting to the device.
func New(cfg *config.Instance, store *history.Store, opts ...Option) *Station {
	s := &Station{
		cfg:         cfg,
		store:       store,
		clock:       clockwork.NewRealClock(),
		portFactory: readers.DefaultPortFactory,
		ops:         semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens the configured serial port, replacing any open session.
func (s *Station) Connect(ctx context.Context) error {
	path := s.cfg.SerialPort()
	if path == "" {
		return fmt.Errorf("%w: no serial port configured", readers.ErrConnection)
	}

	if !s.ops.TryAcquire(1) {
		return readers.ErrBusy
	}
	defer s.ops.Release(1)

	if s.isClosed() {
		return readers.ErrNotConnected
	}
	s.closeSession()

	log.Info().Str("port", path).Msg("connecting to reader")
	session, err := esp32.Open(ctx, path, esp32.Options{
		PortFactory:     s.portFactory,
		Clock:           s.clock,
		BaudRate:        s.cfg.BaudRate(),
		LineTimeout:     s.cfg.LineTimeout(),
		SettleDelay:     s.cfg.SettleDelay(),
		ModeSwitchDelay: s.cfg.ModeSwitchDelay(),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to reader: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing reader session")
		}
		return readers.ErrNotConnected
	}
	s.session = session
	s.mu.Unlock()
	return nil
}

func (s *Station) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Station) closeSession() {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()
	if session != nil {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing reader session")
		}
	}
}

func (s *Station) getSession() *esp32.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Connected returns true when a session is open.
func (s *Station) Connected() bool {
	session := s.getSession()
	return session != nil && session.Connected()
}

// Port returns the path of the open session, or the configured port when
// there is none.
func (s *Station) Port() string {
	if session := s.getSession(); session != nil {
		return session.Path()
	}
	return s.cfg.SerialPort()
}

// History returns the station's record store.
func (s *Station) History() *history.Store {
	return s.store
}

// Read requests a card read and blocks until it finishes. Complete results
// are appended to the history.
func (s *Station) Read(ctx context.Context) (esp32.ReadResult, error) {
	if !s.ops.TryAcquire(1) {
		return esp32.ReadResult{}, readers.ErrBusy
	}
	defer s.ops.Release(1)

	ctx, end := s.beginRead(ctx)
	defer end()
	return s.read(ctx)
}

// beginRead registers the cancel func of a read before it is handed to the
// session, so CancelRead is never lost while the read is starting.
func (s *Station) beginRead(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelRead = cancel
	s.mu.Unlock()
	return ctx, func() {
		s.mu.Lock()
		s.cancelRead = nil
		s.mu.Unlock()
		cancel()
	}
}

func (s *Station) read(ctx context.Context) (esp32.ReadResult, error) {
	session := s.getSession()
	if session == nil {
		return esp32.ReadResult{}, readers.ErrNotConnected
	}

	res, err := session.ReadCard(ctx, s.cfg.ReadTimeout())
	if err != nil {
		return res, fmt.Errorf("card read failed: %w", err)
	}
	if !res.Complete() {
		log.Warn().Str("uid", res.UID).Msg("device reported an incomplete read")
		return res, nil
	}

	rec := history.NewRecord(s.clock.Now(), res.UID, res.Payload)
	if err := s.store.Append(rec); err != nil {
		return res, fmt.Errorf("%w: %w", ErrHistorySave, err)
	}
	log.Info().Str("uid", res.UID).Msg("card read")
	return res, nil
}

// Write sends text to be written to the next presented card and blocks
// until the device reports the outcome.
func (s *Station) Write(ctx context.Context, text string) (esp32.WriteOutcome, error) {
	if err := checkPayload(text); err != nil {
		return esp32.WriteNone, err
	}
	if !s.ops.TryAcquire(1) {
		return esp32.WriteNone, readers.ErrBusy
	}
	defer s.ops.Release(1)
	return s.write(ctx, text)
}

func checkPayload(text string) error {
	if err := validation.ValidatePayload(text); err != nil {
		return fmt.Errorf("%w: %w", readers.ErrInvalidPayload, err)
	}
	return nil
}

func (s *Station) write(ctx context.Context, text string) (esp32.WriteOutcome, error) {
	session := s.getSession()
	if session == nil {
		return esp32.WriteNone, readers.ErrNotConnected
	}

	outcome, err := session.WritePayload(ctx, text, s.cfg.WriteTimeout())
	if err != nil {
		return outcome, fmt.Errorf("card write failed: %w", err)
	}
	return outcome, nil
}

// StartRead runs Read in the background and reports the result through
// done, which is called on the background goroutine.
func (s *Station) StartRead(ctx context.Context, done func(esp32.ReadResult, error)) error {
	if !s.ops.TryAcquire(1) {
		return readers.ErrBusy
	}
	ctx, end := s.beginRead(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := s.read(ctx)
		end()
		s.ops.Release(1)
		done(res, err)
	}()
	return nil
}

// StartWrite runs Write in the background and reports the outcome through
// done. Invalid text is rejected before anything is started.
func (s *Station) StartWrite(ctx context.Context, text string, done func(esp32.WriteOutcome, error)) error {
	if err := checkPayload(text); err != nil {
		return err
	}
	if !s.ops.TryAcquire(1) {
		return readers.ErrBusy
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		outcome, err := s.write(ctx, text)
		s.ops.Release(1)
		done(outcome, err)
	}()
	return nil
}

// Busy returns true while a read or write is in flight.
func (s *Station) Busy() bool {
	if s.ops.TryAcquire(1) {
		s.ops.Release(1)
		return false
	}
	return true
}

// CancelRead stops an in-flight read. Writes are not affected.
func (s *Station) CancelRead() {
	s.mu.RLock()
	cancel := s.cancelRead
	s.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Close closes the session and waits for background operations to finish.
// A Connect still in progress discards its session.
func (s *Station) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.CancelRead()
	s.closeSession()
	s.wg.Wait()
	return nil
}
