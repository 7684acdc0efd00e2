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

// Package tui is the terminal front-end of the station: read and write
// cards, browse and search the history, export it and clear it.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/rfid-station/pkg/config"
	"github.com/ZaparooProject/rfid-station/pkg/readers"
	"github.com/ZaparooProject/rfid-station/pkg/readers/esp32"
	"github.com/ZaparooProject/rfid-station/pkg/service"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	PageMain          = "main"
	PageWriteCard     = "write_card"
	PageSearchHistory = "search_history"
	PageAllHistory    = "all_history"
)

const emptyField = "-"

// stationUI holds the widgets that change while the app runs. Everything is
// touched only from the tview event loop.
type stationUI struct {
	app            *tview.Application
	pages          *tview.Pages
	station        *service.Station
	refreshHistory func()
	uidText        *tview.TextView
	payloadText    *tview.TextView
	statusText     *tview.TextView
	helpText       *tview.TextView
	readButton     *tview.Button
	cancelButton   *tview.Button
	exportPath     string
}

func setupButtonNavigation(app *tview.Application, buttons ...*tview.Button) {
	for i, button := range buttons {
		prevIndex := (i - 1 + len(buttons)) % len(buttons)
		nextIndex := (i + 1) % len(buttons)

		button.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
			switch event.Key() { //nolint:exhaustive
			case tcell.KeyUp, tcell.KeyLeft:
				app.SetFocus(buttons[prevIndex])
				return nil
			case tcell.KeyDown, tcell.KeyRight:
				app.SetFocus(buttons[nextIndex])
				return nil
			case tcell.KeyEscape:
				app.Stop()
				return nil
			}
			return event
		})
	}
}

func (u *stationUI) connectionStatus() string {
	if u.station.Connected() {
		return fmt.Sprintf("[::b]Port:[::-] %s [green](connected)[-]", u.station.Port())
	}
	return fmt.Sprintf("[::b]Port:[::-] %s [red](not connected)[-]", u.station.Port())
}

func (u *stationUI) setCard(res esp32.ReadResult) {
	uid, payload := res.UID, res.Payload
	if uid == "" {
		uid = emptyField
	}
	if payload == "" {
		payload = emptyField
	}
	u.uidText.SetText(uid)
	u.payloadText.SetText(payload)
}

func (u *stationUI) setReading(reading bool) {
	u.readButton.SetDisabled(reading)
	u.cancelButton.SetDisabled(!reading)
	if reading {
		u.statusText.SetText("Waiting for card...")
		u.app.SetFocus(u.cancelButton)
	} else {
		u.app.SetFocus(u.readButton)
	}
}

func (u *stationUI) startRead() {
	err := u.station.StartRead(context.Background(), func(res esp32.ReadResult, err error) {
		u.app.QueueUpdateDraw(func() {
			u.finishRead(res, err)
		})
	})
	if err != nil {
		showMessage(u.app, u.pages, "Read card", errorMessage(err), u.readButton)
		return
	}
	u.setCard(esp32.ReadResult{})
	u.setReading(true)
}

func (u *stationUI) finishRead(res esp32.ReadResult, err error) {
	u.setReading(false)
	switch {
	case errors.Is(err, readers.ErrCancelled):
		u.statusText.SetText("Read cancelled.")
	case errors.Is(err, readers.ErrTimeout):
		u.setCard(res)
		u.statusText.SetText("No card detected.")
		showMessage(u.app, u.pages, "Read card", errorMessage(err), u.readButton)
	case err != nil:
		u.setCard(res)
		u.statusText.SetText("Read failed.")
		log.Error().Err(err).Msg("card read failed")
		showMessage(u.app, u.pages, "Read card", errorMessage(err), u.readButton)
	case !res.Complete():
		u.setCard(res)
		u.statusText.SetText("Incomplete read, not saved.")
	default:
		u.setCard(res)
		u.statusText.SetText("Card read and saved to history.")
	}
}

func (u *stationUI) cancelRead() {
	u.station.CancelRead()
	u.statusText.SetText("Cancelling...")
}

// BuildMainPage creates the main page with the card display and actions.
func (u *stationUI) BuildMainPage() tview.Primitive {
	main := tview.NewFlex()

	connText := tview.NewTextView().SetDynamicColors(true)
	connText.SetText(u.connectionStatus())

	u.uidText = tview.NewTextView()
	u.payloadText = tview.NewTextView()
	u.setCard(esp32.ReadResult{})

	card := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewTextView().SetDynamicColors(true).SetText("[::b]UID:[::-]"), 1, 1, false).
		AddItem(u.uidText, 1, 1, false).
		AddItem(tview.NewTextView().SetDynamicColors(true).SetText("[::b]Data:[::-]"), 1, 1, false).
		AddItem(u.payloadText, 1, 1, false)
	card.SetBorder(true).SetTitle("Card")

	u.statusText = tview.NewTextView().SetDynamicColors(true)
	u.helpText = tview.NewTextView()

	displayCol := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(connText, 1, 1, false).
		AddItem(card, 6, 1, false).
		AddItem(u.statusText, 0, 1, false).
		AddItem(u.helpText, 1, 1, false)

	main.SetTitle("RFID Station v" + config.AppVersion).
		SetBorder(true).
		SetTitleAlign(tview.AlignCenter)
	main.AddItem(displayCol, 0, 1, false)

	u.readButton = tview.NewButton("Read card").SetSelectedFunc(u.startRead)
	u.readButton.SetFocusFunc(func() {
		u.helpText.SetText("Read the card on the reader.")
	})

	u.cancelButton = tview.NewButton("Cancel read").SetSelectedFunc(u.cancelRead)
	u.cancelButton.SetFocusFunc(func() {
		u.helpText.SetText("Stop waiting for a card.")
	})
	u.cancelButton.SetDisabled(true)

	writeButton := tview.NewButton("Write card").SetSelectedFunc(u.BuildWriteCardPage)
	writeButton.SetFocusFunc(func() {
		u.helpText.SetText("Write up to 16 characters to a card.")
	})

	searchButton := tview.NewButton("Search history").SetSelectedFunc(func() {
		u.BuildHistoryPage(true)
	})
	searchButton.SetFocusFunc(func() {
		u.helpText.SetText("Find past reads by date, UID or data.")
	})

	allButton := tview.NewButton("Show history").SetSelectedFunc(func() {
		u.BuildHistoryPage(false)
	})
	allButton.SetFocusFunc(func() {
		u.helpText.SetText("List every saved read.")
	})

	exportButton := tview.NewButton("Export to Excel").SetSelectedFunc(u.exportHistory)
	exportButton.SetFocusFunc(func() {
		u.helpText.SetText("Save the history as " + config.ExportFile + ".")
	})

	clearButton := tview.NewButton("Clear history").SetSelectedFunc(u.confirmClear)
	clearButton.SetFocusFunc(func() {
		u.helpText.SetText("Delete every saved read.")
	})

	exitButton := tview.NewButton("Exit").SetSelectedFunc(func() {
		u.app.Stop()
	})
	exitButton.SetFocusFunc(func() {
		u.helpText.SetText("Exit the app.")
	})

	setupButtonNavigation(
		u.app,
		u.readButton,
		u.cancelButton,
		writeButton,
		searchButton,
		allButton,
		exportButton,
		clearButton,
		exitButton,
	)

	buttonNav := tview.NewFlex().SetDirection(tview.FlexRow)
	buttons := []*tview.Button{
		u.readButton, u.cancelButton, writeButton, searchButton,
		allButton, exportButton, clearButton, exitButton,
	}
	for i, b := range buttons {
		buttonNav.AddItem(b, 1, 1, i == 0)
		buttonNav.AddItem(tview.NewTextView(), 1, 1, false)
	}

	main.AddItem(tview.NewTextView(), 1, 1, false)
	main.AddItem(buttonNav, 20, 1, true)

	if !u.station.Connected() {
		u.statusText.SetText("[red]Serial port not connected.[-] Check the port in " + config.CfgFile + ".")
	}

	pageDefaults(PageMain, u.pages, main)
	return main
}

func (u *stationUI) backToMain() {
	u.refreshHistory = nil
	u.pages.SwitchToPage(PageMain)
	u.app.SetFocus(u.readButton)
}

func newStationUI(app *tview.Application, station *service.Station, exportPath string) *stationUI {
	return &stationUI{
		app:        app,
		pages:      tview.NewPages(),
		station:    station,
		exportPath: exportPath,
	}
}

// BuildMain creates the application with the main page showing.
func BuildMain(station *service.Station, exportPath string) (*tview.Application, *stationUI) {
	app := tview.NewApplication()
	SetTheme(&tview.Styles)

	u := newStationUI(app, station, exportPath)
	u.BuildMainPage()

	app.SetRoot(CenterWidget(80, 22, u.pages), true)
	return app, u
}

// Run shows the TUI until the user exits. The history views refresh when
// the history file changes on disk.
func Run(ctx context.Context, station *service.Station, exportPath string) error {
	app, u := BuildMain(station, exportPath)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := station.History().Watch(ctx, func() {
		app.QueueUpdateDraw(func() {
			if u.refreshHistory != nil {
				u.refreshHistory()
			}
		})
	})
	if err != nil {
		log.Warn().Err(err).Msg("history view will not refresh automatically")
	}

	if err := app.Run(); err != nil {
		return fmt.Errorf("failed to run application: %w", err)
	}
	return nil
}
