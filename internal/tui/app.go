// internal/tui/app.go
//
// This is the terminal admin panel for the employee roster.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: the roster, dialogs, staged upload and live toasts
// 2. Update: every key press and every finished network call is a message
// 3. View: renders the current state to a string
//
// Network calls never block Update; each one is a tea.Cmd whose result comes
// back as a message, so there is exactly one writer for all of this state.

package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-faster/errors"
	"github.com/pkg/browser"

	"github.com/kingrea/rosteradmin/internal/backend"
	"github.com/kingrea/rosteradmin/internal/config"
	"github.com/kingrea/rosteradmin/internal/logbook"
)

const logPanelLines = 5

// Navigator opens a URL outside the program.
type Navigator func(url string) error

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithAPI replaces the HTTP backend client.
func WithAPI(api AdminAPI) AppOption {
	return func(a *App) {
		if api != nil {
			a.api = api
		}
	}
}

// WithLogbook routes diagnostics to lb instead of the project log file.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		if lb != nil {
			a.logbook = lb
		}
	}
}

// WithScheduler overrides how toast timers are delivered.
func WithScheduler(s Scheduler) AppOption {
	return func(a *App) {
		if s != nil {
			a.scheduler = s
		}
	}
}

// WithNavigator overrides how the Roadmap action opens its report.
func WithNavigator(n Navigator) AppOption {
	return func(a *App) {
		if n != nil {
			a.navigate = n
		}
	}
}

// WithContext sets the parent context of every backend call.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// WithUploadDir sets where the upload file picker starts.
func WithUploadDir(dir string) AppOption {
	return func(a *App) {
		a.uploadDir = dir
	}
}

type loginResultMsg struct {
	startup bool
	err     error
}

type logoutDoneMsg struct{ err error }

type navigatedMsg struct {
	url string
	err error
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	ctx       context.Context
	config    *config.Config
	api       AdminAPI
	logbook   *logbook.Logbook
	ownsLog   bool
	navigate  Navigator
	scheduler Scheduler
	uploadDir string

	toasts   *NotificationQueue
	modals   *ModalController
	roster   *RosterView
	upload   *UploadPipeline
	form     *employeeForm
	profile  *profilePanel
	login    *loginForm
	dispatch *CommandDispatcher
	bindings bindingTable
	help     help.Model

	statusMsg string
	width     int
	height    int
}

// NewApp creates a new App instance
func NewApp(cfg *config.Config, opts ...AppOption) (*App, error) {
	if cfg == nil {
		return nil, errors.New("tui: config is required")
	}
	app := &App{
		ctx:      context.Background(),
		config:   cfg,
		navigate: openInBrowser,
		help:     help.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	if app.logbook == nil {
		lb, err := logbook.New(cfg.DiagnosticsLogPath())
		if err != nil {
			lb = logbook.Discard()
		}
		app.logbook = lb
		app.ownsLog = true
	}
	if app.api == nil {
		client, err := backend.New(cfg.BaseURL(),
			backend.WithTimeout(cfg.File.Backend.RequestTimeout),
			backend.WithLogbook(app.logbook))
		if err != nil {
			return nil, err
		}
		app.api = client
	}
	timing := ToastTiming{
		Reveal:     cfg.File.UI.ToastReveal,
		Dwell:      cfg.File.UI.ToastDwell,
		Transition: cfg.File.UI.ToastTransition,
	}
	app.toasts = NewNotificationQueue(timing, app.scheduler)
	app.modals = NewModalController()
	app.roster = newRosterView(app.api.ListEmployees, app.bindRow, app.logbook)
	app.upload = newUploadPipeline(app.uploadDir)
	app.form = newEmployeeForm()
	app.profile = &profilePanel{}
	app.login = newLoginForm(cfg.File.Auth.Username)
	app.bindings = defaultBindings()
	app.dispatch = &CommandDispatcher{
		ctx:     app.ctx,
		api:     app.api,
		toasts:  app.toasts,
		modals:  app.modals,
		roster:  app.roster,
		form:    app.form,
		upload:  app.upload,
		profile: app.profile,
		log:     app.logbook,
	}
	app.logbook.Info("Session opened · backend %s", cfg.BaseURL())
	return app, nil
}

// Close releases the diagnostics log if the app opened it.
func (a *App) Close() error {
	if a.ownsLog {
		return a.logbook.Close()
	}
	return nil
}

// Init logs in when credentials are configured, then loads the roster.
func (a *App) Init() tea.Cmd {
	if a.config.HasCredentials() {
		a.statusMsg = fmt.Sprintf("Logging in as %s...", a.config.File.Auth.Username)
		return a.loginCmd(a.config.File.Auth.Username, a.config.File.Auth.Password, true)
	}
	return a.roster.Refresh(a.ctx)
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if handled, cmd := a.toasts.Update(msg); handled {
		return a, cmd
	}
	if handled, cmd := a.dispatch.Update(msg); handled {
		return a, cmd
	}

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.roster.setSize(0, msg.Height-10-logPanelLines)
		return a, nil

	case rosterLoadedMsg:
		if a.roster.apply(msg) && backend.IsUnauthorized(msg.err) && !a.modals.IsOpen(ModalLogin) {
			a.logbook.Warn("Session rejected; asking for credentials")
			a.openLogin("")
		}
		a.statusMsg = ""
		return a, nil

	case loginResultMsg:
		return a, a.handleLogin(msg)

	case logoutDoneMsg:
		if msg.err != nil {
			a.logbook.Warn("Logout request failed: %v", msg.err)
		} else {
			a.logbook.Info("Logged out")
		}
		return a, tea.Quit

	case navigatedMsg:
		if msg.err != nil {
			a.logbook.Warn("Open %s: %v", msg.url, msg.err)
			return a, a.toasts.Post(fmt.Sprintf("Open %s in a browser.", msg.url), ToastError)
		}
		a.logbook.Info("Opened %s", msg.url)
		return a, nil

	case tea.MouseMsg:
		a.handleMouse(msg)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		return a, a.handleKey(msg)
	}

	// Anything else belongs to the file picker (directory listings).
	return a, a.upload.Update(msg)
}

func (a *App) activeSurface() surface {
	if id, ok := a.modals.Top(); ok {
		return surface(id)
	}
	return surfaceRoster
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	s := a.activeSurface()
	if msg.Paste && s == surface(ModalUpload) {
		a.upload.HandleDrag(DragEvent{Kind: Drop, Paths: parseDroppedPaths(string(msg.Runes))})
		return nil
	}
	if handled, cmd := a.bindings.dispatch(a, s, msg); handled {
		return cmd
	}
	switch s {
	case surface(ModalEmployee):
		return a.form.Update(msg)
	case surface(ModalUpload):
		return a.upload.Update(msg)
	case surface(ModalLogin):
		return a.login.Update(msg)
	case surfaceRoster:
		return a.roster.Update(msg)
	}
	return nil
}

// handleMouse turns pointer motion over the drop zone into drag events.
// Motion never reaches other widgets while the upload dialog is on top.
func (a *App) handleMouse(msg tea.MouseMsg) {
	if a.activeSurface() != surface(ModalUpload) || msg.Action != tea.MouseActionMotion {
		return
	}
	inside := a.dropZone().contains(msg.X, msg.Y)
	switch {
	case inside && !a.upload.DropActive():
		a.upload.HandleDrag(DragEvent{Kind: DragEnter})
	case inside:
		a.upload.HandleDrag(DragEvent{Kind: DragOver})
	case a.upload.DropActive():
		a.upload.HandleDrag(DragEvent{Kind: DragLeave})
	}
}

func (a *App) openEmployeeModal() tea.Cmd {
	a.modals.Open(ModalEmployee)
	return nil
}

func (a *App) openUploadModal() tea.Cmd {
	a.modals.Open(ModalUpload)
	return a.upload.Init()
}

func (a *App) closeUploadModal() tea.Cmd {
	a.modals.Close(ModalUpload)
	a.upload.reset()
	return nil
}

func (a *App) openReport(id int) tea.Cmd {
	url := a.api.ReportURL(id)
	nav := a.navigate
	return func() tea.Msg {
		return navigatedMsg{url: url, err: nav(url)}
	}
}

func (a *App) openLogin(errText string) {
	a.login.err = errText
	a.login.busy = false
	a.modals.Open(ModalLogin)
}

func (a *App) submitLogin() tea.Cmd {
	if a.login.busy {
		return nil
	}
	user := strings.TrimSpace(a.login.username.Value())
	pass := a.login.password.Value()
	if user == "" || pass == "" {
		a.login.err = "Missing credentials"
		return nil
	}
	a.login.busy = true
	a.login.err = ""
	return a.loginCmd(user, pass, false)
}

func (a *App) loginCmd(user, pass string, startup bool) tea.Cmd {
	ctx, api := a.ctx, a.api
	return func() tea.Msg {
		return loginResultMsg{startup: startup, err: api.Login(ctx, user, pass)}
	}
}

func (a *App) handleLogin(msg loginResultMsg) tea.Cmd {
	a.login.busy = false
	if msg.err != nil {
		a.logbook.Warn("Login failed: %v", msg.err)
		a.openLogin(failureText(msg.err, "Invalid credentials", connectionFailure))
		if msg.startup {
			return a.roster.Refresh(a.ctx)
		}
		return nil
	}
	a.logbook.Info("Logged in")
	a.statusMsg = ""
	a.login.password.Reset()
	a.modals.Close(ModalLogin)
	return a.roster.Refresh(a.ctx)
}

// logout ends the session and quits whatever the backend answers.
func (a *App) logout() tea.Cmd {
	a.statusMsg = "Logging out..."
	ctx, api := a.ctx, a.api
	return func() tea.Msg {
		return logoutDoneMsg{err: api.Logout(ctx)}
	}
}

// openInBrowser hands url to the desktop browser. The launcher's own output
// would corrupt the alternate screen, so it is discarded.
func openInBrowser(url string) error {
	browser.Stdout, browser.Stderr = io.Discard, io.Discard
	return browser.OpenURL(url)
}

type rect struct{ x, y, w, h int }

func (r rect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

const (
	modalMarginLeft = 2
	modalPadX       = 1
)

var (
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5B8DEF")).
			Padding(0, modalPadX).
			MarginLeft(modalMarginLeft)
	modalTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	dropZoneStyle   = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 2).
			Width(44)
	dropZoneActiveStyle = dropZoneStyle.
				BorderStyle(lipgloss.DoubleBorder()).
				BorderForeground(lipgloss.Color("#4CAF50"))
)

// dropZone locates the drop surface on screen. The upload dialog renders its
// title, a blank line, then the zone, directly under the header.
func (a *App) dropZone() rect {
	zone := a.renderDropZone()
	top := lipgloss.Height(a.renderHeader()) + 1 + 2
	left := modalMarginLeft + 1 + modalPadX
	return rect{x: left, y: top, w: lipgloss.Width(zone), h: lipgloss.Height(zone)}
}

// View renders the screen.
func (a *App) View() string {
	header := a.renderHeader()
	var body string
	switch a.activeSurface() {
	case surface(ModalEmployee):
		body = a.renderModal("Add / Update Employee", a.form.View())
	case surface(ModalUpload):
		body = a.renderModal("Bulk Onboard Employees", a.renderUploadBody())
	case surface(ModalProfile):
		body = a.renderModal(a.profile.title, a.profile.View())
	case surface(ModalConfirm):
		body = a.renderModal("Delete Employee", a.dispatch.ConfirmPrompt())
	case surface(ModalLogin):
		body = a.renderModal("Admin Login", a.login.View())
	default:
		body = a.roster.View()
	}
	if toasts := a.toasts.View(40); toasts != "" {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, "  ", toasts)
	}
	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := a.help.ShortHelpView(a.bindings.help(a.activeSurface()))
	if a.statusMsg != "" {
		footer = lipgloss.JoinVertical(lipgloss.Left, mutedStyle.Render(a.statusMsg), footer)
	}
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

func (a *App) renderHeader() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		Render("⬡ EMPLOYEE MANAGEMENT")
	base := mutedStyle.Render(a.config.BaseURL())
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", base) + "\n"
}

func (a *App) renderModal(title, body string) string {
	return modalStyle.Render(modalTitleStyle.Render(title) + "\n\n" + body)
}

func (a *App) renderDropZone() string {
	style := dropZoneStyle
	text := "Drop a roster file here (paste its path)"
	if a.upload.DropActive() {
		style = dropZoneActiveStyle
		text = "Release to stage the file"
	}
	return style.Render(text)
}

func (a *App) renderUploadBody() string {
	fileLine := mutedStyle.Render(a.upload.FileLabel())
	if p := a.upload.Pending(); p != nil {
		fileLine = fmt.Sprintf("%s · %s · %d bytes", p.Name, p.Type, p.Size)
	}
	button := buttonStyle
	if !a.upload.SubmitEnabled() {
		button = buttonDisabledStyle
	}
	parts := []string{a.renderDropZone(), "", a.upload.picker.View(), "", fileLine}
	if a.upload.notice != "" {
		parts = append(parts, errorTextStyle.Render(a.upload.notice))
	}
	parts = append(parts, "", button.Render(a.upload.Label()))
	return strings.Join(parts, "\n")
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s · %d entries", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

// Run starts the program on the alternate screen with mouse motion enabled.
func Run(app *App) error {
	defer func() { _ = app.Close() }()
	p := tea.NewProgram(app,
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithContext(app.ctx),
		tea.WithOutput(os.Stdout),
	)
	_, err := p.Run()
	return err
}
