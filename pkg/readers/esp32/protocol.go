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

package esp32

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ZaparooProject/rfid-station/pkg/validation"
	"github.com/rs/zerolog/log"
)

const (
	CmdRead  = "0\n"
	CmdWrite = "1\n"

	PrefixUID     = "UID:"
	PrefixPayload = "DADOS_LIDOS:"

	// PayloadTerminator ends the fixed width payload frame.
	PayloadTerminator = "#"

	ackSuccess = "success"
	ackFailed  = "failed"

	maxLineLength = 4096
	readChunkSize = 256
)

type lineKind int

const (
	lineOther lineKind = iota
	lineUID
	linePayload
)

// classifyLine expects a trimmed line. The UID keeps anything after its
// prefix as is, the payload is trimmed again.
func classifyLine(line string) (lineKind, string) {
	switch {
	case strings.HasPrefix(line, PrefixUID):
		return lineUID, line[len(PrefixUID):]
	case strings.HasPrefix(line, PrefixPayload):
		return linePayload, strings.TrimSpace(line[len(PrefixPayload):])
	default:
		return lineOther, ""
	}
}

// classifyAck returns the outcome reported by a line, if any.
func classifyAck(line string) (WriteOutcome, bool) {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, ackSuccess):
		return WriteSuccess, true
	case strings.Contains(lower, ackFailed):
		return WriteFailed, true
	default:
		return WriteNone, false
	}
}

// payloadFrame pads text with spaces to the card block size and appends the
// terminator. Width is counted in runes.
func payloadFrame(text string) string {
	return fmt.Sprintf("%-*s%s", validation.MaxPayloadLength, text, PayloadTerminator)
}

func decodeLine(raw []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
}

// lineReader splits serial input into lines. A partial line survives between
// reads until its newline arrives.
type lineReader struct {
	buf        []byte
	discarding bool
	scratch    [readChunkSize]byte
}

func (r *lineReader) reset() {
	r.buf = r.buf[:0]
	r.discarding = false
}

func (r *lineReader) feed(p []byte) {
	r.buf = append(r.buf, p...)
}

// take pops the next complete line from the buffer.
func (r *lineReader) take() (string, bool) {
	for {
		i := bytes.IndexByte(r.buf, '\n')
		if i < 0 {
			if len(r.buf) > maxLineLength {
				log.Debug().Int("length", len(r.buf)).Msg("discarding oversized serial line")
				r.buf = r.buf[:0]
				r.discarding = true
			}
			return "", false
		}

		skip := r.discarding || i > maxLineLength
		line := ""
		if !skip {
			line = decodeLine(r.buf[:i])
		}
		r.buf = append(r.buf[:0], r.buf[i+1:]...)
		r.discarding = false
		if skip {
			continue
		}
		return line, true
	}
}

// next returns a buffered line if there is one, otherwise it does exactly one
// port read. ok is false when no complete line is available yet.
func (r *lineReader) next(port io.Reader) (string, bool, error) {
	if line, ok := r.take(); ok {
		return line, true, nil
	}
	n, err := port.Read(r.scratch[:])
	if err != nil {
		return "", false, err //nolint:wrapcheck // wrapped by the session
	}
	r.feed(r.scratch[:n])
	line, ok := r.take()
	return line, ok, nil
}
