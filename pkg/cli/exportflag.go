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
	"flag"
	"strconv"
)

// exportFlag is a boolean flag that also takes an optional path:
// -export, -export=<path> and -export <path> as the last argument.
type exportFlag struct {
	path    string
	enabled bool
}

func newExportFlag(fs *flag.FlagSet, name, usage string) *exportFlag {
	f := &exportFlag{}
	fs.Var(f, name, usage)
	return f
}

func (f *exportFlag) String() string {
	if f == nil {
		return ""
	}
	return f.path
}

func (f *exportFlag) Set(value string) error {
	if b, err := strconv.ParseBool(value); err == nil {
		f.enabled = b
		f.path = ""
		return nil
	}
	f.enabled = true
	f.path = value
	return nil
}

func (*exportFlag) IsBoolFlag() bool {
	return true
}
