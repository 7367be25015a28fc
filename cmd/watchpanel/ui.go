package main

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/watchgrid/watchgrid-core/internal/grid"
)

// statusColors maps cell status to its display colour.
var statusColors = map[grid.Status]tcell.Color{
	grid.StatusEmpty:     tcell.ColorDarkSlateGray,
	grid.StatusPlaced:    tcell.ColorSteelBlue,
	grid.StatusConnected: tcell.ColorGreen,
	grid.StatusAlarm:     tcell.ColorRed,
}

// statusGlyphs maps cell status to the text shown inside the cell.
var statusGlyphs = map[grid.Status]string{
	grid.StatusEmpty:     "  .  ",
	grid.StatusPlaced:    "  o  ",
	grid.StatusConnected: "  O  ",
	grid.StatusAlarm:     " !!! ",
}

// runUI builds the terminal layout and blocks until the operator quits.
func runUI(panel *Panel) error {
	app := tview.NewApplication()

	table := tview.NewTable().SetBorders(true)
	table.SetTitle(fmt.Sprintf(" grid %dx%d ", panel.Projector().Size(), panel.Projector().Size()))
	table.SetBorder(true)

	log := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetScrollable(true).
		ScrollToEnd()
	log.SetTitle(" activity ").SetBorder(true)

	input := tview.NewInputField().
		SetLabel(" ❯❯ ").
		SetFieldWidth(0).
		SetAcceptanceFunc(tview.InputFieldMaxLength(256))

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(tview.NewFlex().
			AddItem(table, 0, 1, false).
			AddItem(log, 0, 2, false), 0, 1, false).
		AddItem(input, 1, 0, true)

	app.SetRoot(layout, true).SetFocus(input)

	renderGrid(table, panel.Projector())
	fmt.Fprintf(log, "[green]connected to %s (Ctrl+C to exit)\n", panel.serverURL)
	if room := panel.Room(); room != "" {
		fmt.Fprintf(log, "[gray]joining room %s\n", room)
	}

	// Notes arrive from the read loop; every note may follow a grid change,
	// so the table is re-rendered alongside the log line.
	go func() {
		for n := range panel.Notes() {
			app.QueueUpdateDraw(func() {
				switch n.kind {
				case noteChat:
					fmt.Fprintf(log, "[blue]%s\n", tview.Escape(n.text))
				case noteAlert:
					fmt.Fprintf(log, "[red]%s\n", tview.Escape(n.text))
				default:
					fmt.Fprintf(log, "[white]%s\n", tview.Escape(n.text))
				}
				log.ScrollToEnd()
				renderGrid(table, panel.Projector())
			})
		}
	}()

	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(input.GetText())
		input.SetText("")
		if text == "" {
			return
		}
		if text == "/quit" {
			app.Stop()
			return
		}
		handleCommand(panel, text)
		renderGrid(table, panel.Projector())
	})

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			app.Stop()
			return nil
		}
		return event
	})

	defer panel.Close()
	return app.Run()
}

// handleCommand dispatches one input line.
func handleCommand(panel *Panel, text string) {
	switch {
	case strings.HasPrefix(text, "/join "):
		panel.JoinRoom(strings.TrimSpace(strings.TrimPrefix(text, "/join ")))
	case strings.HasPrefix(text, "/add "):
		panel.AddDevice(strings.TrimSpace(strings.TrimPrefix(text, "/add ")))
	case strings.HasPrefix(text, "/remove "):
		panel.RemoveDevice(strings.TrimSpace(strings.TrimPrefix(text, "/remove ")))
	case strings.HasPrefix(text, "/"):
		panel.pushNote(noteAlert, "unknown command: "+text)
	default:
		panel.SendMessage(text)
	}
}

// renderGrid redraws the table from a fresh projection snapshot.
func renderGrid(table *tview.Table, projector *grid.Projector) {
	snapshot := projector.Snapshot()
	for row, cells := range snapshot {
		for col, status := range cells {
			cell := tview.NewTableCell(statusGlyphs[status]).
				SetTextColor(tcell.ColorWhite).
				SetBackgroundColor(statusColors[status]).
				SetAlign(tview.AlignCenter).
				SetSelectable(false)
			table.SetCell(row, col, cell)
		}
	}
}
