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

// Package history keeps the log of card reads in a headerless CSV file and
// exports it to a spreadsheet.
package history

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/rfid-station/pkg/helpers/syncutil"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/text/cases"
)

// ErrNotFound is returned when the history file hasn't been created yet.
var ErrNotFound = errors.New("history file not found")

// Store is an append-only record log. It is safe for use by multiple
// goroutines in one process; other processes writing the same file are not
// coordinated with.
type Store struct {
	fs   afero.Fs
	path string
	mu   syncutil.Mutex
}

// NewStore returns a store backed by the file at path on fs. The file is
// created on the first append.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Path returns the location of the history file.
func (s *Store) Path() string {
	return s.path
}

// Append adds a record to the end of the file and syncs it to disk.
func (s *Store) Append(r Record) error {
	r.Payload = strings.TrimSpace(r.Payload)

	var buf bytes.Buffer
	if err := gocsv.MarshalWithoutHeaders([]Record{r}, &buf); err != nil {
		return fmt.Errorf("failed to encode history record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	f, err := s.fs.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close history file")
		}
	}()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append history record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync history file: %w", err)
	}

	log.Debug().Str("uid", r.UID).Msg("appended history record")
	return nil
}

// LoadAll returns every valid record in insertion order. A missing file
// returns an empty slice and ErrNotFound.
func (s *Store) LoadAll() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]Record, error) {
	f, err := s.fs.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Record{}, fmt.Errorf("%w: %s", ErrNotFound, s.path)
	} else if err != nil {
		return []Record{}, fmt.Errorf("failed to open history file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close history file")
		}
	}()

	reader := newLenientReader(f)
	records := make([]Record, 0)
	err = gocsv.UnmarshalCSVWithoutHeaders(reader, &records)
	if errors.Is(err, gocsv.ErrEmptyCSVFile) {
		return []Record{}, nil
	} else if err != nil {
		return []Record{}, fmt.Errorf("failed to decode history file: %w", err)
	}

	if reader.skipped > 0 {
		log.Debug().Int("skipped", reader.skipped).Int("loaded", len(records)).
			Msg("history file has malformed rows")
	}
	return records, nil
}

// LoadFiltered returns the records whose fields, joined by a space, contain
// query. Matching ignores case. An empty query matches everything.
func (s *Store) LoadFiltered(query string) ([]Record, error) {
	records, err := s.LoadAll()
	if err != nil || query == "" {
		return records, err
	}

	fold := cases.Fold()
	needle := fold.String(query)

	matches := make([]Record, 0, len(records))
	for _, r := range records {
		if strings.Contains(fold.String(r.searchText()), needle) {
			matches = append(matches, r)
		}
	}
	return matches, nil
}

// Clear empties the history file, creating it if needed.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	f, err := s.fs.OpenFile(s.path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to clear history file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close history file: %w", err)
	}

	log.Info().Str("path", s.path).Msg("cleared history")
	return nil
}
