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
	"errors"

	"github.com/ZaparooProject/rfid-station/pkg/history"
	"github.com/ZaparooProject/rfid-station/pkg/readers"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const pageModal = "modal"

type PrimitiveWithSetBorder interface {
	tview.Primitive
	SetBorder(arg bool) *tview.Box
}

func SetTheme(theme *tview.Theme) {
	theme.BorderColor = tcell.ColorLightYellow
	theme.PrimaryTextColor = tcell.ColorWhite
	theme.ContrastSecondaryTextColor = tcell.ColorFuchsia
	theme.PrimitiveBackgroundColor = tcell.ColorDarkBlue
	theme.ContrastBackgroundColor = tcell.ColorBlue
	theme.InverseTextColor = tcell.ColorDarkBlue
}

func CenterWidget(width, height int, p tview.Primitive) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

func pageDefaults[S PrimitiveWithSetBorder](name string, pages *tview.Pages, widget S) tview.Primitive {
	widget.SetBorder(true)
	pages.AddAndSwitchToPage(name, widget, true)
	return widget
}

func genericModal(
	message string,
	title string,
	buttons []string,
	action func(buttonIndex int, buttonLabel string),
) *tview.Modal {
	modal := tview.NewModal()
	modal.SetTitle(title).
		SetBorder(true).
		SetTitleAlign(tview.AlignCenter)
	modal.SetText(message)
	if len(buttons) > 0 {
		modal.AddButtons(buttons).SetDoneFunc(action)
	}
	return modal
}

// showModal puts a modal over the current page. closeModal removes it and
// restores focus to back.
func showModal(pages *tview.Pages, modal *tview.Modal) {
	pages.RemovePage(pageModal)
	pages.AddPage(pageModal, modal, true, true)
}

func closeModal(app *tview.Application, pages *tview.Pages, back tview.Primitive) {
	pages.RemovePage(pageModal)
	if back != nil {
		app.SetFocus(back)
	}
}

// showMessage shows a modal with an OK button.
func showMessage(app *tview.Application, pages *tview.Pages, title, message string, back tview.Primitive) {
	showModal(pages, genericModal(message, title, []string{"OK"}, func(int, string) {
		closeModal(app, pages, back)
	}))
}

// errorMessage turns an error into text for the user.
func errorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, readers.ErrNotConnected):
		return "Serial port not connected."
	case errors.Is(err, readers.ErrConnection):
		return "Could not open the serial port:\n" + err.Error()
	case errors.Is(err, readers.ErrBusy):
		return "Another card operation is in progress."
	case errors.Is(err, readers.ErrTimeout):
		return "Timed out waiting for the reader."
	case errors.Is(err, readers.ErrCancelled):
		return "Operation cancelled."
	case errors.Is(err, readers.ErrInvalidPayload):
		return "Text must be between 1 and 16 characters."
	case errors.Is(err, history.ErrNotFound):
		return "No history yet. Read a card first."
	default:
		return err.Error()
	}
}
