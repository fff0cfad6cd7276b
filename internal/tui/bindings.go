package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/rosteradmin/internal/backend"
)

// surface is where a key event lands: the roster table or an open dialog.
type surface string

const surfaceRoster surface = "roster"

type binding struct {
	key key.Binding
	run func(a *App) tea.Cmd
}

// bindingTable maps (surface, key) to its handler.
type bindingTable map[surface][]binding

func (t bindingTable) dispatch(a *App, s surface, msg tea.KeyMsg) (bool, tea.Cmd) {
	for _, b := range t[s] {
		if key.Matches(msg, b.key) {
			return true, b.run(a)
		}
	}
	return false, nil
}

func (t bindingTable) help(s surface) []key.Binding {
	out := make([]key.Binding, 0, len(t[s]))
	for _, b := range t[s] {
		out = append(out, b.key)
	}
	return out
}

func newBinding(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

// selectedRow runs one of the handlers bound to the highlighted row.
func selectedRow(pick func(rowHandlers) func() tea.Cmd) func(a *App) tea.Cmd {
	return func(a *App) tea.Cmd {
		row, ok := a.roster.selected()
		if !ok {
			return nil
		}
		if h := pick(row.handlers); h != nil {
			return h()
		}
		return nil
	}
}

func defaultBindings() bindingTable {
	return bindingTable{
		surfaceRoster: {
			{newBinding("r", "roadmap", "r", "enter"), selectedRow(func(h rowHandlers) func() tea.Cmd { return h.roadmap })},
			{newBinding("p", "profile", "p"), selectedRow(func(h rowHandlers) func() tea.Cmd { return h.profile })},
			{newBinding("x", "delete", "x", "delete"), selectedRow(func(h rowHandlers) func() tea.Cmd { return h.remove })},
			{newBinding("n", "new employee", "n"), (*App).openEmployeeModal},
			{newBinding("u", "bulk upload", "u"), (*App).openUploadModal},
			{newBinding("ctrl+r", "refresh", "ctrl+r"), func(a *App) tea.Cmd { return a.roster.Refresh(a.ctx) }},
			{newBinding("L", "logout", "L"), (*App).logout},
			{newBinding("q", "quit", "q"), func(*App) tea.Cmd { return tea.Quit }},
		},
		surface(ModalEmployee): {
			{newBinding("enter", "save", "enter", "ctrl+s"), func(a *App) tea.Cmd { return a.dispatch.SaveEmployee() }},
			{newBinding("esc", "close", "esc"), func(a *App) tea.Cmd { a.modals.Close(ModalEmployee); return nil }},
		},
		surface(ModalUpload): {
			{newBinding("ctrl+s", "upload", "ctrl+s"), func(a *App) tea.Cmd { return a.dispatch.BulkUpload() }},
			{newBinding("esc", "close", "esc"), (*App).closeUploadModal},
		},
		surface(ModalProfile): {
			{newBinding("esc", "close", "esc", "enter", "q"), func(a *App) tea.Cmd { a.modals.Close(ModalProfile); return nil }},
		},
		surface(ModalConfirm): {
			{newBinding("y", "delete", "y", "Y"), func(a *App) tea.Cmd { return a.dispatch.ConfirmDelete(true) }},
			{newBinding("n", "cancel", "n", "N", "esc"), func(a *App) tea.Cmd { return a.dispatch.ConfirmDelete(false) }},
		},
		surface(ModalLogin): {
			{newBinding("enter", "log in", "enter"), (*App).submitLogin},
			{newBinding("esc", "dismiss", "esc"), func(a *App) tea.Cmd { a.modals.Close(ModalLogin); return nil }},
		},
	}
}

// bindRow captures one employee's id and name in its row handlers.
func (a *App) bindRow(emp backend.Employee) rowHandlers {
	id := emp.ID
	name := displayOrMissing(emp.Name)
	return rowHandlers{
		roadmap: func() tea.Cmd { return a.openReport(id) },
		profile: func() tea.Cmd { return a.dispatch.RunProfileAgent(id, name) },
		remove:  func() tea.Cmd { return a.dispatch.RequestDelete(id) },
	}
}
