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

package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ZaparooProject/rfid-station/pkg/config"
	"github.com/adrg/xdg"
)

// UserDirName is the name of the portable install directory. When it exists
// next to the binary, every other directory is placed inside it.
const UserDirName = "user"

// Dirs holds the directories used by the application.
type Dirs struct {
	Config string
	Data   string
	Log    string
}

var (
	userDirCache       string
	userDirCacheExists bool
	userDirOnce        sync.Once
)

// HasUserDir checks if a "user" directory exists next to the binary and
// returns its absolute path. The result is cached after the first call.
func HasUserDir() (string, bool) {
	userDirOnce.Do(func() {
		exe, err := os.Executable()
		if err != nil {
			return
		}
		userDir := filepath.Join(filepath.Dir(exe), UserDirName)
		info, err := os.Stat(userDir)
		if err != nil || !info.IsDir() {
			return
		}
		userDirCache = userDir
		userDirCacheExists = true
	})
	return userDirCache, userDirCacheExists
}

// DefaultDirs returns the XDG based directories, or the portable user
// directory when one is present.
func DefaultDirs() Dirs {
	if v, ok := HasUserDir(); ok {
		return Dirs{
			Config: v,
			Data:   v,
			Log:    filepath.Join(v, "logs"),
		}
	}
	return Dirs{
		Config: filepath.Join(xdg.ConfigHome, config.AppName),
		Data:   filepath.Join(xdg.DataHome, config.AppName),
		Log:    filepath.Join(xdg.StateHome, config.AppName),
	}
}

// EnsureDirectories creates every directory in dirs.
func EnsureDirectories(dirs Dirs) error {
	for name, dir := range map[string]string{
		"config": dirs.Config,
		"data":   dirs.Data,
		"log":    dirs.Log,
	} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", name, err)
		}
	}
	return nil
}
