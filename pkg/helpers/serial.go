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
	"runtime"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial/enumerator"
)

// SerialDevice is a serial port found on the system.
type SerialDevice struct {
	Path    string
	VID     string
	PID     string
	Product string
	// ESP32 is true when the USB IDs belong to a bridge chip commonly found
	// on ESP32 dev boards.
	ESP32 bool
}

type usbID struct {
	Vid string
	Pid string
}

var esp32Bridges = []usbID{
	// Silicon Labs CP210x
	{Vid: "10c4", Pid: "ea60"},
	// WCH CH340/CH341
	{Vid: "1a86", Pid: "7523"},
	{Vid: "1a86", Pid: "55d4"},
	// FTDI FT232R
	{Vid: "0403", Pid: "6001"},
	// Espressif native USB (S2/S3/C3)
	{Vid: "303a", Pid: "1001"},
	{Vid: "303a", Pid: "0002"},
}

func isESP32Bridge(vid, pid string) bool {
	vid = strings.ToLower(vid)
	pid = strings.ToLower(pid)
	for _, v := range esp32Bridges {
		if v.Vid == vid && v.Pid == pid {
			return true
		}
	}
	return false
}

// isCandidatePort filters out ports that can't be a USB serial adapter on
// the given OS.
func isCandidatePort(goos, name string, isUSB bool) bool {
	switch goos {
	case "linux":
		return strings.HasPrefix(name, "/dev/ttyUSB") || strings.HasPrefix(name, "/dev/ttyACM")
	case "darwin":
		return strings.HasPrefix(name, "/dev/tty.usbserial") ||
			strings.HasPrefix(name, "/dev/tty.usbmodem") ||
			strings.HasPrefix(name, "/dev/tty.SLAB_USBtoUART") ||
			strings.HasPrefix(name, "/dev/tty.wchusbserial")
	case "windows":
		return strings.HasPrefix(name, "COM")
	default:
		return isUSB
	}
}

func filterSerialDevices(goos string, ports []*enumerator.PortDetails) []SerialDevice {
	devices := make([]SerialDevice, 0, len(ports))
	for _, p := range ports {
		if p == nil || !isCandidatePort(goos, p.Name, p.IsUSB) {
			continue
		}
		devices = append(devices, SerialDevice{
			Path:    p.Name,
			VID:     strings.ToLower(p.VID),
			PID:     strings.ToLower(p.PID),
			Product: p.Product,
			ESP32:   p.IsUSB && isESP32Bridge(p.VID, p.PID),
		})
	}

	// likely boards first, then by name
	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].ESP32 != devices[j].ESP32 {
			return devices[i].ESP32
		}
		return devices[i].Path < devices[j].Path
	})
	return devices
}

// SerialDevices lists serial ports that could have an ESP32 attached.
func SerialDevices() ([]SerialDevice, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports list: %w", err)
	}
	devices := filterSerialDevices(runtime.GOOS, ports)
	log.Debug().Int("found", len(ports)).Int("candidates", len(devices)).Msg("listed serial ports")
	return devices, nil
}
