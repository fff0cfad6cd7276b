package tui

import (
	"context"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-faster/errors"

	"github.com/kingrea/rosteradmin/internal/backend"
	"github.com/kingrea/rosteradmin/internal/logbook"
)

// RosterState is the render state of the employee table.
type RosterState int

const (
	RosterLoading RosterState = iota
	RosterPopulated
	RosterEmpty
	RosterError
)

func (s RosterState) String() string {
	switch s {
	case RosterPopulated:
		return "populated"
	case RosterEmpty:
		return "empty"
	case RosterError:
		return "error"
	default:
		return "loading"
	}
}

const (
	placeholderLoading = "Loading roster…"
	placeholderEmpty   = "No employees found."
	placeholderError   = "Failed to load data."
	missingValue       = "N/A"
	rowActionsLabel    = "Roadmap · Profile · Delete"
)

// rowHandlers are the per-row actions, bound to the row's employee when the
// row is rendered.
type rowHandlers struct {
	roadmap func() tea.Cmd
	profile func() tea.Cmd
	remove  func() tea.Cmd
}

type rosterRow struct {
	employee backend.Employee
	cells    table.Row
	handlers rowHandlers
}

type rosterLoadedMsg struct {
	generation uint64
	employees  []backend.Employee
	err        error
}

// RosterView renders the employee table. Each Refresh is stamped with a
// generation; only the response to the latest one is rendered.
type RosterView struct {
	table       table.Model
	state       RosterState
	rows        []rosterRow
	placeholder string
	generation  uint64

	list func(context.Context) ([]backend.Employee, error)
	bind func(backend.Employee) rowHandlers
	log  *logbook.Logbook
}

func newRosterView(list func(context.Context) ([]backend.Employee, error), bind func(backend.Employee) rowHandlers, lb *logbook.Logbook) *RosterView {
	t := table.New(
		table.WithColumns(rosterColumns()),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF"))
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#3A4A6B")).
		Bold(false)
	t.SetStyles(styles)
	v := &RosterView{table: t, list: list, bind: bind, log: lb}
	v.setPlaceholder(RosterLoading, placeholderLoading)
	return v
}

func rosterColumns() []table.Column {
	return []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Name", Width: 24},
		{Title: "Role", Width: 20},
		{Title: "Actions", Width: len(rowActionsLabel)},
	}
}

// Refresh enters LOADING and fetches the roster.
func (v *RosterView) Refresh(ctx context.Context) tea.Cmd {
	v.generation++
	gen := v.generation
	v.setPlaceholder(RosterLoading, placeholderLoading)
	list := v.list
	return func() tea.Msg {
		employees, err := list(ctx)
		return rosterLoadedMsg{generation: gen, employees: employees, err: err}
	}
}

// apply renders a fetch result. Results from superseded refreshes are dropped
// and reported as not applied.
func (v *RosterView) apply(msg rosterLoadedMsg) bool {
	if msg.generation != v.generation {
		v.log.Info("Discarded roster response %d (latest %d)", msg.generation, v.generation)
		return false
	}
	var rejected *backend.ApplicationError
	switch {
	case errors.As(msg.err, &rejected):
		// A well-formed envelope without success carries no rows to show.
		v.log.Warn("Roster request rejected: %s", rejected.Message)
		v.setPlaceholder(RosterEmpty, placeholderEmpty)
		return true
	case msg.err != nil:
		v.log.Logger().Error().Err(msg.err).Uint64("generation", msg.generation).Msg("roster refresh failed")
		v.setPlaceholder(RosterError, placeholderError)
		return true
	}
	if len(msg.employees) == 0 {
		v.setPlaceholder(RosterEmpty, placeholderEmpty)
		return true
	}
	v.rows = v.rows[:0]
	cells := make([]table.Row, 0, len(msg.employees))
	for _, emp := range msg.employees {
		row := rosterRow{
			employee: emp,
			cells: table.Row{
				strconv.Itoa(emp.ID),
				displayOrMissing(emp.Name),
				displayOrMissing(emp.RoleName),
				rowActionsLabel,
			},
		}
		if v.bind != nil {
			row.handlers = v.bind(emp)
		}
		v.rows = append(v.rows, row)
		cells = append(cells, row.cells)
	}
	v.state = RosterPopulated
	v.placeholder = ""
	v.table.SetRows(cells)
	if v.table.Cursor() >= len(cells) || v.table.Cursor() < 0 {
		v.table.SetCursor(0)
	}
	return true
}

func (v *RosterView) setPlaceholder(state RosterState, text string) {
	v.state = state
	v.placeholder = text
	v.rows = nil
	v.table.SetRows(nil)
}

func displayOrMissing(value *string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return missingValue
	}
	return *value
}

// State reports the current render state.
func (v *RosterView) State() RosterState { return v.state }

// Placeholder is the single-row message shown outside POPULATED.
func (v *RosterView) Placeholder() string { return v.placeholder }

// Rows returns the rendered cells in server order.
func (v *RosterView) Rows() []table.Row {
	out := make([]table.Row, 0, len(v.rows))
	for _, r := range v.rows {
		out = append(out, r.cells)
	}
	return out
}

func (v *RosterView) selected() (rosterRow, bool) {
	if v.state != RosterPopulated || len(v.rows) == 0 {
		return rosterRow{}, false
	}
	idx := v.table.Cursor()
	if idx < 0 || idx >= len(v.rows) {
		return rosterRow{}, false
	}
	return v.rows[idx], true
}

// Update forwards navigation keys to the table.
func (v *RosterView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	v.table, cmd = v.table.Update(msg)
	return cmd
}

func (v *RosterView) setSize(width, height int) {
	if height > 0 {
		v.table.SetHeight(max(3, height))
	}
	if width > 0 {
		v.table.SetWidth(width)
	}
}

var placeholderStyle = lipgloss.NewStyle().
	Align(lipgloss.Center).
	Padding(1, 0).
	Foreground(lipgloss.Color("#AAAAAA"))

func (v *RosterView) View() string {
	if v.state == RosterPopulated {
		return v.table.View()
	}
	width := 0
	for _, col := range rosterColumns() {
		width += col.Width + 2
	}
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		BorderBottom(true).
		Render(rosterHeaderLine())
	style := placeholderStyle.Width(width)
	if v.state == RosterError {
		style = style.Foreground(lipgloss.Color("#FF6B6B"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, style.Render(v.placeholder))
}

func rosterHeaderLine() string {
	var cells []string
	for _, col := range rosterColumns() {
		cells = append(cells, lipgloss.NewStyle().Width(col.Width).MaxWidth(col.Width).Padding(0, 1).Render(col.Title))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}
