package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"ftr/internal/domain"
	"ftr/internal/storage"
)

// ErrorViewer displays test failures in an interactive TUI.
// Toggling a failure's resolved flag is saved through the storage right away.
type ErrorViewer struct {
	storage storage.Storage
	out     io.Writer
}

// NewErrorViewer creates a new ErrorViewer
func NewErrorViewer(st storage.Storage, out io.Writer) *ErrorViewer {
	return &ErrorViewer{storage: st, out: out}
}

// View displays test failures in an interactive TUI
func (ev *ErrorViewer) View(results *domain.TestResultsOutput) error {
	if len(results.Details) == 0 {
		color.New(color.FgGreen).Fprintln(ev.out, "✓ No test failures found!")
		return nil
	}

	app := tview.NewApplication()

	list := tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)
	for i := range results.Details {
		list.AddItem(listItemText(results.Details[i], i), "", 0, nil)
	}
	list.SetMainTextColor(tview.Styles.PrimaryTextColor).
		SetSelectedTextColor(tcell.ColorWhite).
		SetSelectedBackgroundColor(tcell.ColorDarkCyan).
		SetSecondaryTextColor(tview.Styles.SecondaryTextColor)

	statsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	detailsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true)
	headerView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true)
	statusView := tview.NewTextView().
		SetDynamicColors(true)

	detailsContainer := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(detailsView, 0, 1, false).
		AddItem(tview.NewBox(), 2, 0, false)
	rightSide := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(statsView, 3, 0, false).
		AddItem(detailsContainer, 0, 1, false)
	flex := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(list, 0, 1, true).
		AddItem(rightSide, 0, 2, false)

	updateHeader := func() {
		headerView.SetText(headerText(results.Details))
	}
	updateDetails := func() {
		index := list.GetCurrentItem()
		if index < 0 || index >= len(results.Details) {
			return
		}
		failure := results.Details[index]
		statsView.SetText(formatFailureStats(failure, index+1))
		detailsView.SetText(formatFailureDetails(failure))
	}

	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter, tcell.KeyRight:
			app.SetFocus(detailsView)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() != 'r' && event.Rune() != 'R' {
				return event
			}
			index := list.GetCurrentItem()
			if err := ev.toggleResolved(results, index); err != nil {
				statusView.SetText(fmt.Sprintf("[red]%s", tview.Escape(err.Error())))
			} else {
				statusView.SetText("")
			}
			list.SetItemText(index, listItemText(results.Details[index], index), "")
			updateHeader()
			updateDetails()
			return nil
		}
		return event
	})
	detailsView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyLeft, tcell.KeyEsc:
			app.SetFocus(list)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		}
		return event
	})
	list.SetChangedFunc(func(int, string, string, rune) {
		updateDetails()
	})

	updateHeader()
	updateDetails()

	mainLayout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(headerView, 1, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(flex, 0, 1, true).
		AddItem(statusView, 1, 0, false)

	if err := app.SetRoot(mainLayout, true).SetFocus(list).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// toggleResolved flips the resolved flag of one failure and saves the results
func (ev *ErrorViewer) toggleResolved(results *domain.TestResultsOutput, index int) error {
	if index < 0 || index >= len(results.Details) {
		return nil
	}
	results.Details[index].Resolved = !results.Details[index].Resolved
	if ev.storage == nil {
		return nil
	}
	if err := ev.storage.Save(results); err != nil {
		return fmt.Errorf("save resolved state: %w", err)
	}
	return nil
}

func countUnresolved(failures []domain.TestFailure) int {
	count := 0
	for _, f := range failures {
		if !f.Resolved {
			count++
		}
	}
	return count
}

func headerText(failures []domain.TestFailure) string {
	return fmt.Sprintf(" Test Failures (%d total, %d unresolved) | Use ↑↓ to navigate, [yellow]R[white] to mark resolved, → to view details, ← to go back, Ctrl+C to exit ",
		len(failures), countUnresolved(failures))
}

func displayName(failure domain.TestFailure, number int) string {
	name := failure.TestName
	if name == "" {
		name = fmt.Sprintf("Test %d", number)
	}
	if failure.ContractName != "" {
		name = failure.ContractName + "::" + name
	}
	return tview.Escape(name)
}

func listItemText(failure domain.TestFailure, index int) string {
	name := displayName(failure, index+1)
	if failure.Resolved {
		return fmt.Sprintf("[gray]✓ [yellow]%d.[gray] %s[white]", index+1, name)
	}
	return fmt.Sprintf("[yellow]%d.[white] %s", index+1, name)
}

// formatFailureDetails formats a test failure for display using tview color tags
func formatFailureDetails(failure domain.TestFailure) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[red]✗ Test: %s[white]\n\n", tview.Escape(failure.TestName))
	if failure.ContractName != "" {
		fmt.Fprintf(&b, "[cyan]Contract: %s[white]\n", tview.Escape(failure.ContractName))
	}
	fmt.Fprintf(&b, "[cyan]File: %s[white]\n", tview.Escape(failure.FilePath))
	if failure.FilePath != "" && failure.Line > 0 {
		fmt.Fprintf(&b, "[yellow]Location: %s:%d[white]\n", tview.Escape(failure.FilePath), failure.Line)
	}
	b.WriteString("\n")

	if failure.Message != "" {
		fmt.Fprintf(&b, "[yellow]Reason:[white]\n%s\n\n", tview.Escape(failure.Message))
	} else {
		b.WriteString("[gray]forge reported no reason[white]\n\n")
	}
	if failure.Resolved {
		b.WriteString("[green]Marked as resolved[white]\n")
	}
	return b.String()
}

// formatFailureStats formats the stats header for a test failure
func formatFailureStats(failure domain.TestFailure, number int) string {
	path := failure.FilePath
	if path == "" {
		path = "Unknown path"
	}
	return fmt.Sprintf("[cyan]path:[white] [yellow]%s[white]::[yellow]%s[white]\n", tview.Escape(path), displayName(failure, number))
}
