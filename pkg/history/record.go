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
	"strings"
	"time"

	"github.com/ZaparooProject/rfid-station/pkg/config"
)

// Record is one successful card read. Rows are stored in append order and
// have no other identity.
type Record struct {
	Timestamp string `csv:"timestamp"`
	UID       string `csv:"uid"`
	Payload   string `csv:"payload"`
}

// recordFields is the number of columns in a stored row.
const recordFields = 3

// NewRecord stamps a read with the given time in the history format.
func NewRecord(ts time.Time, uid, payload string) Record {
	return Record{
		Timestamp: ts.Format(config.TimestampFormat),
		UID:       uid,
		Payload:   strings.TrimSpace(payload),
	}
}

// Time parses the record timestamp in the local time zone.
func (r Record) Time() (time.Time, error) {
	//nolint:wrapcheck // parse errors are self describing
	return time.ParseInLocation(config.TimestampFormat, r.Timestamp, time.Local)
}

// searchText is what filters match against: the fields joined by a space.
func (r Record) searchText() string {
	return r.Timestamp + " " + r.UID + " " + r.Payload
}
