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

package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ZaparooProject/rfid-station/pkg/helpers"
	"github.com/ZaparooProject/rfid-station/pkg/history"
)

func printRecords(out io.Writer, records []history.Record) {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, "No records found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "Data/Hora\tUID\tDados")
	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Timestamp, r.UID, r.Payload)
	}
	_ = w.Flush()
}

func printPorts(out io.Writer, devices []helpers.SerialDevice) {
	if len(devices) == 0 {
		_, _ = fmt.Fprintln(out, "No serial ports found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PORT\tVID:PID\tPRODUCT\t")
	for _, d := range devices {
		id := "-"
		if d.VID != "" {
			id = d.VID + ":" + d.PID
		}
		product := d.Product
		if d.ESP32 {
			product += " (ESP32)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t\n", d.Path, id, product)
	}
	_ = w.Flush()
}
