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

package history

import (
	"encoding/csv"
	"errors"
	"io"

	"github.com/rs/zerolog/log"
)

// lenientReader feeds gocsv only rows with exactly three fields. Anything
// else, including rows with broken quoting, is logged and skipped.
type lenientReader struct {
	r       *csv.Reader
	line    int
	skipped int
}

func newLenientReader(r io.Reader) *lenientReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return &lenientReader{r: cr}
}

func (lr *lenientReader) Read() ([]string, error) {
	for {
		row, err := lr.r.Read()
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				lr.line++
				lr.skipped++
				log.Debug().Err(err).Msg("skipping unparsable history row")
				continue
			}
			return nil, err //nolint:wrapcheck // io.EOF must pass through
		}
		lr.line++
		if len(row) != recordFields {
			lr.skipped++
			log.Debug().Int("line", lr.line).Int("fields", len(row)).Msg("skipping malformed history row")
			continue
		}
		return row, nil
	}
}

func (lr *lenientReader) ReadAll() ([][]string, error) {
	var rows [][]string
	for {
		row, err := lr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}
