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
	"fmt"

	"github.com/ZaparooProject/rfid-station/pkg/history"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

var historyColumns = []string{"Data/Hora", "UID", "Dados"}

// fillHistoryTable replaces the table contents with a header and one row
// per record.
func fillHistoryTable(table *tview.Table, records []history.Record) {
	table.Clear()
	for col, name := range historyColumns {
		table.SetCell(0, col, tview.NewTableCell(name).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false).
			SetExpansion(1))
	}
	for i, r := range records {
		row := i + 1
		table.SetCell(row, 0, tview.NewTableCell(r.Timestamp))
		table.SetCell(row, 1, tview.NewTableCell(r.UID))
		table.SetCell(row, 2, tview.NewTableCell(r.Payload))
	}
	table.ScrollToBeginning()
}

func historySummary(count int, query string) string {
	switch {
	case query != "" && count == 0:
		return fmt.Sprintf("No records match %q.", query)
	case query != "" && count == 1:
		return "1 matching record."
	case query != "":
		return fmt.Sprintf("%d matching records.", count)
	case count == 1:
		return "1 record."
	default:
		return fmt.Sprintf("%d records.", count)
	}
}

type historyView struct {
	store   *history.Store
	table   *tview.Table
	summary *tview.TextView
	query   string
}

func newHistoryView(store *history.Store) *historyView {
	return &historyView{
		store: store,
		table: tview.NewTable().
			SetFixed(1, 0).
			SetSelectable(true, false),
		summary: tview.NewTextView(),
	}
}

func (v *historyView) refresh() {
	records, err := v.store.LoadFiltered(v.query)
	switch {
	case errors.Is(err, history.ErrNotFound):
		v.summary.SetText(errorMessage(err))
	case err != nil:
		log.Error().Err(err).Msg("failed to load history")
		v.summary.SetText(errorMessage(err))
	default:
		v.summary.SetText(historySummary(len(records), v.query))
	}
	fillHistoryTable(v.table, records)
}

func (v *historyView) setQuery(query string) {
	v.query = query
	v.refresh()
}

// BuildHistoryPage lists the stored reads. With search enabled, an input
// above the table filters the list as the user types.
func (u *stationUI) BuildHistoryPage(search bool) *historyView {
	view := newHistoryView(u.station.History())
	u.refreshHistory = view.refresh

	layout := tview.NewFlex().SetDirection(tview.FlexRow)
	name := PageAllHistory
	title := "History"
	focus := tview.Primitive(view.table)

	view.table.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape {
			u.backToMain()
		}
	})

	if search {
		name = PageSearchHistory
		title = "Search history"
		input := tview.NewInputField().SetLabel("Search: ")
		input.SetChangedFunc(view.setQuery)
		input.SetDoneFunc(func(key tcell.Key) {
			switch key { //nolint:exhaustive
			case tcell.KeyEscape:
				u.backToMain()
			case tcell.KeyEnter, tcell.KeyTab, tcell.KeyDown:
				u.app.SetFocus(view.table)
			}
		})
		view.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
			if event.Key() == tcell.KeyTab || event.Key() == tcell.KeyBacktab {
				u.app.SetFocus(input)
				return nil
			}
			return event
		})
		layout.AddItem(input, 1, 1, true)
		focus = input
	}

	layout.AddItem(view.table, 0, 1, !search).
		AddItem(view.summary, 1, 1, false)
	layout.SetTitle(title + " (ESC to go back)")

	view.refresh()
	pageDefaults(name, u.pages, layout)
	u.app.SetFocus(focus)
	return view
}

func (u *stationUI) exportHistory() {
	n, err := u.station.History().Export(u.exportPath)
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			log.Error().Err(err).Msg("failed to export history")
		}
		showMessage(u.app, u.pages, "Export", errorMessage(err), u.readButton)
		return
	}
	showMessage(u.app, u.pages, "Export",
		fmt.Sprintf("Exported %d records to:\n%s", n, u.exportPath), u.readButton)
}

func (u *stationUI) confirmClear() {
	modal := genericModal(
		"Clear all history? This cannot be undone.",
		"Clear history",
		[]string{"Clear", "Cancel"},
		func(index int, _ string) {
			closeModal(u.app, u.pages, u.readButton)
			if index == 0 {
				u.clearHistory()
			}
		},
	)
	showModal(u.pages, modal)
}

func (u *stationUI) clearHistory() {
	if err := u.station.History().Clear(); err != nil {
		log.Error().Err(err).Msg("failed to clear history")
		showMessage(u.app, u.pages, "Clear history", errorMessage(err), u.readButton)
		return
	}
	showMessage(u.app, u.pages, "Clear history", "History cleared.", u.readButton)
}
