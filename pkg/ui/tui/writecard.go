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

package tui

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/ZaparooProject/rfid-station/pkg/readers/esp32"
	"github.com/ZaparooProject/rfid-station/pkg/validation"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

// acceptPayload stops the input at the card block size.
func acceptPayload(text string, _ rune) bool {
	return utf8.RuneCountInString(text) <= validation.MaxPayloadLength
}

func payloadCounter(text string) string {
	return fmt.Sprintf("%d/%d", utf8.RuneCountInString(text), validation.MaxPayloadLength)
}

func writeOutcomeMessage(outcome esp32.WriteOutcome) string {
	if outcome == esp32.WriteSuccess {
		return "Card written successfully."
	}
	return "The reader could not write the card."
}

// BuildWriteCardPage shows the input for text to write to a card.
func (u *stationUI) BuildWriteCardPage() {
	form := tview.NewForm()
	counter := tview.NewTextView().SetText(payloadCounter(""))

	input := tview.NewInputField().
		SetLabel("Text ").
		SetFieldWidth(validation.MaxPayloadLength + 1).
		SetAcceptanceFunc(acceptPayload)
	input.SetChangedFunc(func(text string) {
		counter.SetText(payloadCounter(text))
	})

	write := func() {
		text := input.GetText()
		err := u.station.StartWrite(context.Background(), text, func(outcome esp32.WriteOutcome, err error) {
			u.app.QueueUpdateDraw(func() {
				u.pages.RemovePage(pageModal)
				if err != nil {
					log.Error().Err(err).Msg("card write failed")
					showMessage(u.app, u.pages, "Write card", errorMessage(err), input)
					return
				}
				showMessage(u.app, u.pages, "Write card", writeOutcomeMessage(outcome), input)
			})
		})
		if err != nil {
			showMessage(u.app, u.pages, "Write card", errorMessage(err), input)
			return
		}
		showModal(u.pages, genericModal("Place the card on the reader...", "Write card", nil, nil))
	}

	form.AddFormItem(input)
	form.AddButton("Write", write)
	form.AddButton("Back", u.backToMain)
	form.SetCancelFunc(u.backToMain)
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			write()
		}
	})

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewTextView().SetText("Enter up to 16 characters, then place the card on the reader."), 2, 1, false).
		AddItem(form, 0, 1, true).
		AddItem(counter, 1, 1, false)
	layout.SetTitle("Write card")

	pageDefaults(PageWriteCard, u.pages, layout)
	u.app.SetFocus(input)
}
