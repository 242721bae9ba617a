package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jask/ledgergrid/internal/grid"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cursorStyle   = lipgloss.NewStyle().Reverse(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	fillStyle     = lipgloss.NewStyle().Background(lipgloss.Color("58"))
	editStyle     = lipgloss.NewStyle().Underline(true)
	mutedStyle    = lipgloss.NewStyle().Faint(true)
	reviewStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	promptStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))

	noticeStyles = map[grid.NoticeLevel]lipgloss.Style{
		grid.NoticeInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		grid.NoticeWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		grid.NoticeError: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

const reviewThreshold = 0.5

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(a.renderTitle() + "\n")
	b.WriteString(a.renderPageLine() + "\n")
	b.WriteString(a.renderHeader() + "\n")
	b.WriteString(a.renderRows())
	b.WriteString(a.renderAffordances() + "\n")
	if p := a.renderPrompt(); p != "" {
		b.WriteString(p + "\n")
	}
	if p := a.renderPanel(); p != "" {
		b.WriteString(p + "\n")
	}
	for _, n := range a.notices {
		b.WriteString(noticeStyles[n.Level].Render(n.Text) + "\n")
	}
	if _, ok := a.panelLen(); ok {
		b.WriteString(a.help.View(panelHelp{a.keys}))
	} else {
		b.WriteString(a.help.View(gridHelp{a.keys}))
	}
	return b.String()
}

func (a *App) renderTitle() string {
	s := a.grid.Rows().Summary()
	line := fmt.Sprintf("%d transactions  net %s  needs review %d  archived %d",
		s.Count, a.money(s.NetAmount), s.NeedsReview, s.Archived)
	if !s.RefreshedAt.IsZero() {
		line += mutedStyle.Render("  updated " + s.RefreshedAt.Local().Format("15:04:05"))
	}
	return titleStyle.Render("Ledger") + "  " + line
}

func (a *App) money(v float64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%s%.2f", sign, a.cfg.UI.CurrencySymbol, v)
}

func (a *App) renderPageLine() string {
	p := a.grid.Rows().Pagination()
	parts := []string{fmt.Sprintf("Page %d/%d (%d rows)", max(p.Page, 1), max(p.TotalPages, 1), p.Total)}
	if a.query.Search != "" {
		parts = append(parts, fmt.Sprintf("search %q", a.query.Search))
	}
	if a.query.IncludeArchived {
		parts = append(parts, "including archived")
	}
	if a.grid.Loading() {
		parts = append(parts, "loading…")
	}
	if kind, ok := a.grid.Suggestions().Pending(); ok {
		parts = append(parts, fmt.Sprintf("waiting for %s…", kind))
	}
	return mutedStyle.Render(strings.Join(parts, "  "))
}

func (a *App) renderHeader() string {
	box := "[ ]"
	switch a.grid.HeaderState() {
	case grid.SelectAllRows:
		box = "[x]"
	case grid.SelectSome:
		box = "[-]"
	}
	cells := []string{fit(box, checkWidth-1)}
	for _, f := range grid.Columns {
		cells = append(cells, fit(f.Title(), columnWidths[f]))
	}
	return headerStyle.Render(strings.Join(cells, " "))
}

func (a *App) renderRows() string {
	rows := a.grid.Rows()
	if rows.Len() == 0 {
		if a.grid.Loading() {
			return mutedStyle.Render("loading…") + "\n"
		}
		return mutedStyle.Render("No transactions.") + "\n"
	}
	var b strings.Builder
	end := min(a.offset+a.visibleRows(), rows.Len())
	for i := a.offset; i < end; i++ {
		id, _ := rows.At(i)
		b.WriteString(a.renderRow(i, id) + "\n")
	}
	return b.String()
}

func (a *App) renderRow(i int, id string) string {
	rec, _ := a.grid.Rows().Get(id)
	sel := a.grid.Selection().Has(id)
	box := "[ ]"
	if sel {
		box = "[x]"
	}
	cells := []string{fit(box, checkWidth-1)}
	for col, f := range grid.Columns {
		cell := grid.Cell{TxID: id, Field: f}
		text := fit(a.cellText(cell, rec), columnWidths[f])
		style := lipgloss.NewStyle()
		switch {
		case a.grid.DragFill().IsAffected(id) && f == a.grid.DragFill().State().Field:
			style = fillStyle
		case a.grid.Edits().IsEditing(cell):
			style = editStyle
		case f == grid.FieldConfidence && rec.Confidence < reviewThreshold:
			style = reviewStyle
		case sel:
			style = selectedStyle
		}
		if i == a.cursorRow && col == a.cursorCol {
			style = style.Inherit(cursorStyle)
		}
		cells = append(cells, style.Render(text))
	}
	return strings.Join(cells, " ")
}

func (a *App) cellText(cell grid.Cell, rec grid.Record) string {
	s, ok := a.grid.Edits().Session(cell)
	if !ok {
		return grid.Display(cell.Field, rec.Value(cell.Field))
	}
	switch {
	case s.State == grid.StateCommitting:
		return "saving…"
	case a.editing != nil && *a.editing == cell && s.Mode != grid.ModeDropdown:
		return a.input.Value() + "▏"
	case s.Mode == grid.ModeDropdown:
		return "▾ " + s.Draft
	}
	return s.Draft
}

func (a *App) renderAffordances() string {
	n := a.grid.Selection().Count()
	if n == 0 {
		return ""
	}
	aff := a.grid.Affordances()
	parts := []string{fmt.Sprintf("%d selected", n)}
	if aff.Archive {
		parts = append(parts, "[x] archive")
	}
	if aff.BulkEdit {
		parts = append(parts, "[b] bulk edit "+grid.Columns[a.cursorCol].Title())
	}
	return selectedStyle.Render(strings.Join(parts, "  "))
}

func (a *App) renderPrompt() string {
	if c, ok := a.grid.Edits().PendingConfirmation(); ok {
		return promptStyle.Render(fmt.Sprintf("Apply %s = %q to all %d selected rows? [y] all  [n] this row only  [esc] cancel",
			c.Cell.Field.Title(), c.Value, len(c.IDs)))
	}
	if a.editing != nil {
		if s, ok := a.grid.Edits().Session(*a.editing); ok && s.Mode == grid.ModeDropdown {
			return a.renderOptions(s)
		}
	}
	switch a.prompt {
	case promptSearch:
		return promptStyle.Render("Search: ") + a.input.View()
	case promptBulk:
		return promptStyle.Render(fmt.Sprintf("Set %s on %d rows: ", a.bulkField.Title(), a.grid.Selection().Count())) + a.input.View()
	}
	if a.grid.DragFill().Active() {
		st := a.grid.DragFill().State()
		return promptStyle.Render(fmt.Sprintf("Filling %s = %q over %d rows  [↑/↓] extend  [enter] apply  [esc] cancel",
			st.Field.Title(), st.Value, len(st.Affected)))
	}
	return ""
}

func (a *App) renderOptions(s grid.EditSession) string {
	var lines []string
	for i, o := range s.Options {
		label := o
		if label == "" {
			label = mutedStyle.Render("(choose)")
		}
		if i == s.OptionIndex {
			label = cursorStyle.Render("› " + label)
		} else {
			label = "  " + label
		}
		lines = append(lines, label)
	}
	lines = append(lines, mutedStyle.Render("[enter] choose  [tab] new value  [esc] cancel"))
	return panelStyle.Render(s.Cell.Field.Title() + "\n" + strings.Join(lines, "\n"))
}

func (a *App) renderPanel() string {
	w := a.grid.Suggestions()
	if p, ok := w.Similar(); ok {
		var lines []string
		for i, c := range p.Candidates {
			lines = append(lines, a.panelLine(i, c.Selected, fmt.Sprintf("%s  %s  %s",
				c.Record.Value(grid.FieldDate), fit(c.Record.Value(grid.FieldDescription), 32), c.Record.Value(grid.FieldAmount))))
		}
		var applied []string
		for _, f := range grid.Columns {
			if v, ok := p.Applied[f]; ok {
				applied = append(applied, fmt.Sprintf("%s=%q", f.Title(), v))
			}
		}
		title := fmt.Sprintf("Similar transactions: apply %s", strings.Join(applied, ", "))
		return panelStyle.Render(title + "\n" + strings.Join(lines, "\n"))
	}
	if b, ok := w.Batch(); ok {
		var lines []string
		for i, it := range b.Items {
			text := fmt.Sprintf("%-12s %s → %s  (%.0f%%)", it.Field.Title(),
				grid.Display(it.Field, it.CurrentValue), grid.Display(it.Field, it.SuggestedValue), it.Confidence*100)
			if it.Rationale != "" {
				text += mutedStyle.Render("  " + it.Rationale)
			}
			lines = append(lines, a.panelLine(i, it.Selected, text))
		}
		return panelStyle.Render("Suggestions\n" + strings.Join(lines, "\n"))
	}
	return ""
}

func (a *App) panelLine(i int, checked bool, text string) string {
	box := "[ ] "
	if checked {
		box = "[x] "
	}
	line := box + text
	if i == a.panelCursor {
		return cursorStyle.Render(line)
	}
	return line
}

// fit pads or truncates s to exactly w cells.
func fit(s string, w int) string {
	r := []rune(s)
	if len(r) > w {
		if w <= 1 {
			return string(r[:w])
		}
		return string(r[:w-1]) + "…"
	}
	return s + strings.Repeat(" ", w-len(r))
}
