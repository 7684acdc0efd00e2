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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZaparooProject/rfid-station/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// ExportHeader is the first row of an exported sheet.
var ExportHeader = []any{"Data/Hora", "UID", "Dados"}

var exportColWidths = []float64{20, 24, 24}

// Export writes every valid record to an XLSX workbook at target, replacing
// it if it exists. Returns the number of records written.
func (s *Store) Export(target string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.fs.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, s.path)
	} else if err != nil {
		return 0, fmt.Errorf("failed to stat history file: %w", err)
	}

	records, err := s.load()
	if err != nil {
		return 0, err
	}

	wb, err := buildWorkbook(records)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := wb.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close workbook")
		}
	}()

	if err := s.fs.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return 0, fmt.Errorf("failed to create export directory: %w", err)
	}
	f, err := s.fs.Create(target)
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close export file")
		}
	}()

	if err := wb.Write(f); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}

	log.Info().Str("path", target).Int("records", len(records)).Msg("exported history")
	return len(records), nil
}

func buildWorkbook(records []Record) (*excelize.File, error) {
	wb := excelize.NewFile()
	sheet := config.ExportSheet
	if err := wb.SetSheetName("Sheet1", sheet); err != nil {
		_ = wb.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := wb.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = wb.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	sw, err := wb.NewStreamWriter(sheet)
	if err != nil {
		_ = wb.Close()
		return nil, fmt.Errorf("failed to open sheet: %w", err)
	}

	for i, w := range exportColWidths {
		if err := sw.SetColWidth(i+1, i+1, w); err != nil {
			_ = wb.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if err := sw.SetRow("A1", ExportHeader, excelize.RowOpts{StyleID: headerStyle}); err != nil {
		_ = wb.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			_ = wb.Close()
			return nil, fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		if err := sw.SetRow(cell, []any{r.Timestamp, r.UID, r.Payload}); err != nil {
			_ = wb.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		_ = wb.Close()
		return nil, fmt.Errorf("failed to flush sheet: %w", err)
	}
	return wb, nil
}
