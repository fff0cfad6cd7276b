package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/rosteradmin/internal/backend"
)

const saveIdleLabel = "Save Employee"

type formField struct {
	label string
	skill backend.Skill // empty for name and password
	input textinput.Model
}

func newInput(placeholder string, width int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ""
	ti.Width = width
	ti.Cursor.SetMode(cursor.CursorStatic)
	return ti
}

// employeeForm collects the create/update payload. Scores are free text and
// coerced only when the payload is built.
type employeeForm struct {
	fields []formField
	focus  int
	busy   bool
}

func newEmployeeForm() *employeeForm {
	f := &employeeForm{}
	name := newInput("Full name", 28)
	name.CharLimit = 120
	password := newInput("Initial password", 28)
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	f.fields = append(f.fields,
		formField{label: "Name", input: name},
		formField{label: "Password", input: password},
	)
	for _, skill := range backend.Skills() {
		in := newInput("0", 6)
		in.CharLimit = 6
		f.fields = append(f.fields, formField{label: skill.Label(), skill: skill, input: in})
	}
	f.fields[0].input.Focus()
	return f
}

// payload builds the request body from the current field text.
func (f *employeeForm) payload() backend.EmployeeForm {
	raw := make(map[backend.Skill]string, len(backend.Skills()))
	for _, field := range f.fields {
		if field.skill != "" {
			raw[field.skill] = field.input.Value()
		}
	}
	return backend.NewEmployeeForm(strings.TrimSpace(f.fields[0].input.Value()), f.fields[1].input.Value(), raw)
}

// setValue fills a field by label. Used by tests and the paste path.
func (f *employeeForm) setValue(label, value string) {
	for i := range f.fields {
		if f.fields[i].label == label {
			f.fields[i].input.SetValue(value)
			return
		}
	}
}

func (f *employeeForm) reset() {
	for i := range f.fields {
		f.fields[i].input.Reset()
		f.fields[i].input.Blur()
	}
	f.focus = 0
	f.fields[0].input.Focus()
}

// Label is the current text of the submit control.
func (f *employeeForm) Label() string {
	if f.busy {
		return busyLabel
	}
	return saveIdleLabel
}

func (f *employeeForm) SubmitEnabled() bool { return !f.busy }

func (f *employeeForm) move(delta int) {
	f.fields[f.focus].input.Blur()
	f.focus = (f.focus + delta + len(f.fields)) % len(f.fields)
	f.fields[f.focus].input.Focus()
}

func (f *employeeForm) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			f.move(1)
			return nil
		case "shift+tab", "up":
			f.move(-1)
			return nil
		}
	}
	var cmd tea.Cmd
	f.fields[f.focus].input, cmd = f.fields[f.focus].input.Update(msg)
	return cmd
}

var (
	formLabelStyle = lipgloss.NewStyle().Width(14).Foreground(lipgloss.Color("#AAAAAA"))
	formFocusStyle = formLabelStyle.Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	buttonStyle    = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#3A4A6B"))
	buttonDisabledStyle = buttonStyle.
				Foreground(lipgloss.Color("#888888")).
				Background(lipgloss.Color("#2A2A2A"))
)

func (f *employeeForm) View() string {
	var lines []string
	for i, field := range f.fields {
		label := formLabelStyle
		if i == f.focus {
			label = formFocusStyle
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, label.Render(field.label), field.input.View()))
		if i == 1 {
			lines = append(lines, "")
		}
	}
	button := buttonStyle
	if !f.SubmitEnabled() {
		button = buttonDisabledStyle
	}
	lines = append(lines, "", button.Render(f.Label()))
	return strings.Join(lines, "\n")
}

// loginForm is shown when the backend rejects the session.
type loginForm struct {
	username textinput.Model
	password textinput.Model
	onUser   bool
	busy     bool
	err      string
}

func newLoginForm(username string) *loginForm {
	u := newInput("username", 24)
	u.SetValue(username)
	p := newInput("password", 24)
	p.EchoMode = textinput.EchoPassword
	p.EchoCharacter = '•'
	l := &loginForm{username: u, password: p}
	if strings.TrimSpace(username) == "" {
		l.onUser = true
		l.username.Focus()
	} else {
		l.password.Focus()
	}
	return l
}

func (l *loginForm) toggle() {
	l.onUser = !l.onUser
	if l.onUser {
		l.password.Blur()
		l.username.Focus()
	} else {
		l.username.Blur()
		l.password.Focus()
	}
}

func (l *loginForm) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "shift+tab", "up", "down":
			l.toggle()
			return nil
		}
	}
	var cmd tea.Cmd
	if l.onUser {
		l.username, cmd = l.username.Update(msg)
	} else {
		l.password, cmd = l.password.Update(msg)
	}
	return cmd
}

func (l *loginForm) View() string {
	userLabel, passLabel := formLabelStyle, formLabelStyle
	if l.onUser {
		userLabel = formFocusStyle
	} else {
		passLabel = formFocusStyle
	}
	lines := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, userLabel.Render("Username"), l.username.View()),
		lipgloss.JoinHorizontal(lipgloss.Top, passLabel.Render("Password"), l.password.View()),
	}
	if l.err != "" {
		lines = append(lines, "", errorTextStyle.Render(l.err))
	}
	label := "Log in"
	button := buttonStyle
	if l.busy {
		label = busyLabel
		button = buttonDisabledStyle
	}
	lines = append(lines, "", button.Render(label))
	return strings.Join(lines, "\n")
}
