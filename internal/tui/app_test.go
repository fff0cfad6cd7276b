package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/rosteradmin/internal/backend"
	"github.com/kingrea/rosteradmin/internal/config"
	"github.com/kingrea/rosteradmin/internal/logbook"
)

// fakeAPI answers from canned results and counts every call.
type fakeAPI struct {
	mu sync.Mutex

	employees  []backend.Employee
	listErr    error
	saveMsg    string
	saveErr    error
	deleteMsg  string
	deleteErr  error
	uploadMsg  string
	uploadErr  error
	profile    backend.ProfileResult
	profileErr error
	loginErr   error

	calls     map[string]int
	saved     []backend.EmployeeForm
	deleted   []int
	uploaded  []string
	loginUser string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: map[string]int{}}
}

func (f *fakeAPI) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) ListEmployees(context.Context) ([]backend.Employee, error) {
	f.record("list")
	return f.employees, f.listErr
}

func (f *fakeAPI) SaveEmployee(_ context.Context, form backend.EmployeeForm) (string, error) {
	f.record("save")
	f.saved = append(f.saved, form)
	return f.saveMsg, f.saveErr
}

func (f *fakeAPI) DeleteEmployee(_ context.Context, id int) (string, error) {
	f.record("delete")
	f.deleted = append(f.deleted, id)
	return f.deleteMsg, f.deleteErr
}

func (f *fakeAPI) UploadRoster(_ context.Context, path string) (string, error) {
	f.record("upload")
	f.uploaded = append(f.uploaded, path)
	return f.uploadMsg, f.uploadErr
}

func (f *fakeAPI) ProfileAgent(context.Context, int) (backend.ProfileResult, error) {
	f.record("profile")
	return f.profile, f.profileErr
}

func (f *fakeAPI) Login(_ context.Context, username, _ string) error {
	f.record("login")
	f.loginUser = username
	return f.loginErr
}

func (f *fakeAPI) Logout(context.Context) error {
	f.record("logout")
	return nil
}

func (f *fakeAPI) ReportURL(id int) string {
	return fmt.Sprintf("http://backend.test/admin/ai_report/%d", id)
}

func strPtr(s string) *string { return &s }

var errTransport = &backend.TransportError{Op: "test", Err: errors.New("connection refused")}

type testApp struct {
	*App
	api   *fakeAPI
	clock *manualClock
	opens []string
}

func newTestApp(t *testing.T, api *fakeAPI) *testApp {
	t.Helper()
	projectDir := t.TempDir()
	cfg, err := config.Load(projectDir)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.File.Auth = config.AuthConfig{}
	ta := &testApp{api: api, clock: &manualClock{}}
	app, err := NewApp(cfg,
		WithAPI(api),
		WithLogbook(logbook.Discard()),
		WithScheduler(ta.clock.schedule),
		WithUploadDir(projectDir),
		WithNavigator(func(url string) error {
			ta.opens = append(ta.opens, url)
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	ta.App = app
	return ta
}

// runCommands drains cmd and everything it produces, feeding each message
// back through Update.
func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 1000 {
			t.Fatalf("command loop did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		switch msg := msg.(type) {
		case nil:
			continue
		case tea.BatchMsg:
			queue = append(queue, msg...)
			continue
		case tea.QuitMsg:
			continue
		}
		nextModel, nextCmd := app.Update(msg)
		app, ok = nextModel.(*App)
		if !ok {
			t.Fatalf("unexpected model type: %T", nextModel)
		}
		queue = append(queue, nextCmd)
	}
	return app
}

func (ta *testApp) key(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "ctrl+s":
			msg = tea.KeyMsg{Type: tea.KeyCtrlS}
		case "ctrl+r":
			msg = tea.KeyMsg{Type: tea.KeyCtrlR}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		model, cmd := ta.Update(msg)
		runCommands(t, model, cmd)
	}
}

func (ta *testApp) toastMessages() []string {
	var out []string
	for _, toast := range ta.toasts.Toasts() {
		out = append(out, toast.Message)
	}
	return out
}

func (ta *testApp) init(t *testing.T) {
	t.Helper()
	runCommands(t, ta.App, ta.Init())
}

func TestRosterRendersPlaceholderForMissingRole(t *testing.T) {
	api := newFakeAPI()
	api.employees = []backend.Employee{{ID: 7, Name: strPtr("A")}}
	ta := newTestApp(t, api)
	if ta.roster.State() != RosterLoading || ta.roster.Placeholder() != placeholderLoading {
		t.Fatalf("roster should start loading")
	}
	ta.init(t)

	rows := ta.roster.Rows()
	if ta.roster.State() != RosterPopulated || len(rows) != 1 {
		t.Fatalf("state=%v rows=%v", ta.roster.State(), rows)
	}
	if rows[0][0] != "7" || rows[0][1] != "A" || rows[0][2] != "N/A" {
		t.Fatalf("unexpected row %v", rows[0])
	}
	if !strings.Contains(ta.View(), "N/A") {
		t.Fatalf("view should show the placeholder cell")
	}
}

func TestRosterEmptyAndErrorStates(t *testing.T) {
	api := newFakeAPI()
	api.employees = []backend.Employee{}
	ta := newTestApp(t, api)
	ta.init(t)
	if ta.roster.State() != RosterEmpty || ta.roster.Placeholder() != placeholderEmpty || len(ta.roster.Rows()) != 0 {
		t.Fatalf("expected EMPTY, got %v %q %v", ta.roster.State(), ta.roster.Placeholder(), ta.roster.Rows())
	}

	api.listErr = errTransport
	ta.key(t, "ctrl+r")
	if ta.roster.State() != RosterError || ta.roster.Placeholder() != placeholderError {
		t.Fatalf("expected ERROR, got %v", ta.roster.State())
	}
	if api.count("list") != 2 {
		t.Fatalf("list calls = %d, want 2 (no retry)", api.count("list"))
	}
	if !strings.Contains(ta.View(), placeholderError) {
		t.Fatalf("view should show the failure row")
	}

	api.listErr = &backend.ApplicationError{Op: "list roster", Message: "not today"}
	ta.key(t, "ctrl+r")
	if ta.roster.State() != RosterEmpty || ta.roster.Placeholder() != placeholderEmpty {
		t.Fatalf("rejected envelope should render EMPTY, got %v %q", ta.roster.State(), ta.roster.Placeholder())
	}
}

func TestStaleRefreshIsDiscarded(t *testing.T) {
	api := newFakeAPI()
	ta := newTestApp(t, api)
	first := ta.roster.Refresh(context.Background())
	second := ta.roster.Refresh(context.Background())

	api.employees = []backend.Employee{{ID: 1, Name: strPtr("Old")}}
	staleMsg := first()
	api.employees = []backend.Employee{{ID: 2, Name: strPtr("New")}}
	freshMsg := second()

	ta.Update(freshMsg)
	ta.Update(staleMsg)
	rows := ta.roster.Rows()
	if len(rows) != 1 || rows[0][1] != "New" {
		t.Fatalf("stale response overwrote the roster: %v", rows)
	}
}

func TestSaveEmployeeApplicationErrorKeepsModal(t *testing.T) {
	api := newFakeAPI()
	api.employees = []backend.Employee{{ID: 1, Name: strPtr("Ada")}}
	api.saveErr = &backend.ApplicationError{Op: "save employee", Message: "Name already exists"}
	ta := newTestApp(t, api)
	ta.init(t)

	ta.key(t, "n")
	ta.form.setValue("Name", "Ada")
	ta.key(t, "enter")

	if got := ta.toastMessages(); len(got) != 1 || got[0] != "Name already exists" {
		t.Fatalf("toasts = %v", got)
	}
	if !ta.modals.IsOpen(ModalEmployee) {
		t.Fatalf("employee modal must stay open")
	}
	if api.count("list") != 1 {
		t.Fatalf("refresh must not run on failure (list calls %d)", api.count("list"))
	}
	if ta.form.fields[0].input.Value() != "Ada" {
		t.Fatalf("form must keep its values")
	}
	if ta.form.Label() != saveIdleLabel || !ta.form.SubmitEnabled() {
		t.Fatalf("submit control not restored")
	}
}

func TestSaveEmployeeFallbacks(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "empty application message", err: &backend.ApplicationError{Op: "save employee"}, want: genericFailure},
		{name: "transport", err: errTransport, want: connectionFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := newFakeAPI()
			api.saveErr = tc.err
			ta := newTestApp(t, api)
			ta.key(t, "n", "enter")
			if got := ta.toastMessages(); len(got) != 1 || got[0] != tc.want {
				t.Fatalf("toasts = %v, want %q", got, tc.want)
			}
			if ta.form.Label() != saveIdleLabel || !ta.form.SubmitEnabled() {
				t.Fatalf("submit control not restored")
			}
		})
	}
}

func TestSaveEmployeeSuccessClosesResetsAndRefreshes(t *testing.T) {
	api := newFakeAPI()
	api.saveMsg = "Employee added successfully!"
	ta := newTestApp(t, api)
	ta.init(t)

	ta.key(t, "n")
	ta.form.setValue("Name", "Grace Hopper")
	ta.form.setValue("Password", "pw")
	ta.form.setValue("HTML", "77")
	ta.form.setValue("CSS", "abc")
	ta.form.setValue("C++", "")
	ta.key(t, "ctrl+s")

	if ta.modals.IsOpen(ModalEmployee) {
		t.Fatalf("modal should close on success")
	}
	if ta.form.fields[0].input.Value() != "" {
		t.Fatalf("form should reset on success")
	}
	if api.count("list") != 2 {
		t.Fatalf("roster should refresh after save (list calls %d)", api.count("list"))
	}
	if got := ta.toastMessages(); len(got) != 1 || got[0] != "Employee added successfully!" {
		t.Fatalf("toasts = %v", got)
	}
	if len(api.saved) != 1 {
		t.Fatalf("saved = %d", len(api.saved))
	}
	form := api.saved[0]
	if form.Name != "Grace Hopper" || form.Password != "pw" || form.HTML != 77 || form.CSS != 0 || form.CPP != 0 {
		t.Fatalf("unexpected payload %+v", form)
	}
	if ta.form.Label() != saveIdleLabel {
		t.Fatalf("label = %q", ta.form.Label())
	}
}

func TestOverlappingSaveIsBlocked(t *testing.T) {
	api := newFakeAPI()
	ta := newTestApp(t, api)
	ta.modals.Open(ModalEmployee)
	first := ta.dispatch.SaveEmployee()
	if first == nil {
		t.Fatalf("first submit should produce a call")
	}
	if ta.form.Label() != busyLabel || ta.form.SubmitEnabled() {
		t.Fatalf("submit control should be busy while in flight")
	}
	if second := ta.dispatch.SaveEmployee(); second != nil {
		t.Fatalf("second submit while in flight must be a no-op")
	}
	runCommands(t, ta.App, first)
	if api.count("save") != 1 {
		t.Fatalf("save calls = %d, want 1", api.count("save"))
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	api := newFakeAPI()
	api.employees = []backend.Employee{{ID: 5, Name: strPtr("Ada")}, {ID: 9, Name: strPtr("Bob")}}
	api.deleteMsg = "Employee deleted successfully."
	ta := newTestApp(t, api)
	ta.init(t)

	ta.key(t, "down", "x")
	if !ta.modals.IsOpen(ModalConfirm) {
		t.Fatalf("delete should ask for confirmation")
	}
	if !strings.Contains(ta.View(), "delete employee with ID 9?") {
		t.Fatalf("confirm prompt missing from view:\n%s", ta.View())
	}
	ta.key(t, "n")
	if api.count("delete") != 0 || ta.modals.IsOpen(ModalConfirm) {
		t.Fatalf("declined delete must not call the backend")
	}
	if len(ta.toasts.Toasts()) != 0 || api.count("list") != 1 {
		t.Fatalf("declined delete must have no visible effect")
	}

	ta.key(t, "x", "y")
	if api.count("delete") != 1 || len(api.deleted) != 1 || api.deleted[0] != 9 {
		t.Fatalf("confirmed delete calls = %d %v", api.count("delete"), api.deleted)
	}
	if api.count("list") != 2 {
		t.Fatalf("successful delete should refresh")
	}
}

func TestDeleteFailureToastsWithoutRefresh(t *testing.T) {
	api := newFakeAPI()
	api.employees = []backend.Employee{{ID: 5}}
	api.deleteErr = &backend.ApplicationError{Op: "delete employee"}
	ta := newTestApp(t, api)
	ta.init(t)
	ta.key(t, "x", "y")
	if got := ta.toastMessages(); len(got) != 1 || got[0] != deleteFailure {
		t.Fatalf("toasts = %v", got)
	}
	if api.count("list") != 1 {
		t.Fatalf("failed delete must not refresh")
	}
}

func TestProfileAgentOpensBusyThenRenders(t *testing.T) {
	api := newFakeAPI()
	api.employees = []backend.Employee{{ID: 3, Name: strPtr("Lin")}}
	api.profile = backend.ProfileResult{HistoryLogs: []string{"logged in"}}
	ta := newTestApp(t, api)
	ta.init(t)

	row, _ := ta.roster.selected()
	cmd := row.handlers.profile()
	if !ta.modals.IsOpen(ModalProfile) {
		t.Fatalf("profile modal must open before the call resolves")
	}
	if lines := ta.profile.Lines(); len(lines) != 1 || lines[0] != profileBusyText {
		t.Fatalf("busy body = %v", lines)
	}
	if ta.profile.title != "AI Profile Agent Analysis for Lin" {
		t.Fatalf("title = %q", ta.profile.title)
	}
	runCommands(t, ta.App, cmd)

	lines := ta.profile.Lines()
	want := []string{"Inferred Skill Vectors", noSkillVectorsText, "History Logs", "logged in"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	if got := ta.profile.HistoryLines(); len(got) != 1 || got[0] != "logged in" {
		t.Fatalf("history = %v", got)
	}
}

func TestProfileAgentFailureKeepsModalOpen(t *testing.T) {
	api := newFakeAPI()
	api.employees = []backend.Employee{{ID: 3}}
	api.profileErr = &backend.ApplicationError{Op: "profile agent", Message: "Failed to parse AI response as JSON."}
	ta := newTestApp(t, api)
	ta.init(t)
	ta.key(t, "p")
	if !ta.modals.IsOpen(ModalProfile) {
		t.Fatalf("modal must stay open on failure")
	}
	if lines := ta.profile.Lines(); len(lines) != 1 || lines[0] != "Failed to parse AI response as JSON." {
		t.Fatalf("lines = %v", lines)
	}

	api.profileErr = errTransport
	ta.key(t, "esc", "p")
	if lines := ta.profile.Lines(); len(lines) != 1 || lines[0] != profileTransportError {
		t.Fatalf("lines = %v", lines)
	}
}

func TestBulkUploadClearsPendingFileEitherWay(t *testing.T) {
	for _, fail := range []bool{false, true} {
		t.Run(fmt.Sprintf("fail=%v", fail), func(t *testing.T) {
			api := newFakeAPI()
			api.uploadMsg = "Successfully onboarded 2 new employees."
			if fail {
				api.uploadErr = errTransport
			}
			ta := newTestApp(t, api)
			ta.init(t)

			ta.key(t, "u")
			ta.key(t, "ctrl+s")
			if api.count("upload") != 0 {
				t.Fatalf("upload without a file must be a no-op")
			}

			path := writeRosterFile(t, t.TempDir(), "team.csv", "NAME,HTML_SCORE\nAda,1\nBob,2\n")
			model, cmd := ta.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(path), Paste: true})
			runCommands(t, model, cmd)
			if !ta.upload.SubmitEnabled() {
				t.Fatalf("dropping a file should enable upload")
			}
			ta.key(t, "ctrl+s")

			if api.count("upload") != 1 || api.uploaded[0] != path {
				t.Fatalf("upload calls = %d %v", api.count("upload"), api.uploaded)
			}
			if ta.upload.Pending() != nil || ta.upload.Label() != uploadIdleLabel || ta.upload.FileLabel() != noFileLabel {
				t.Fatalf("upload control not reset")
			}
			if fail {
				if !ta.modals.IsOpen(ModalUpload) || api.count("list") != 1 {
					t.Fatalf("failed upload keeps the modal and skips refresh")
				}
				if got := ta.toastMessages(); len(got) != 1 || got[0] != uploadNetworkFailure {
					t.Fatalf("toasts = %v", got)
				}
				return
			}
			if ta.modals.IsOpen(ModalUpload) || api.count("list") != 2 {
				t.Fatalf("successful upload closes the modal and refreshes")
			}
		})
	}
}

func TestPasteOfTwoFilesKeepsFirst(t *testing.T) {
	ta := newTestApp(t, newFakeAPI())
	ta.key(t, "u")
	dir := t.TempDir()
	a := writeRosterFile(t, dir, "a.csv", "NAME\nA\n")
	b := writeRosterFile(t, dir, "b.csv", "NAME\nB\n")
	ta.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(a + " " + b), Paste: true})
	if p := ta.upload.Pending(); p == nil || p.Path != a {
		t.Fatalf("pending = %+v, want %s", p, a)
	}
	if !ta.upload.SubmitEnabled() {
		t.Fatalf("submit should be enabled")
	}
}

func TestMouseMotionTogglesDropZone(t *testing.T) {
	ta := newTestApp(t, newFakeAPI())
	ta.key(t, "u")
	zone := ta.dropZone()
	ta.Update(tea.MouseMsg{X: zone.x + 1, Y: zone.y + 1, Action: tea.MouseActionMotion})
	if !ta.upload.DropActive() {
		t.Fatalf("hovering the drop zone should activate it")
	}
	ta.Update(tea.MouseMsg{X: zone.x + 1, Y: zone.y + 1, Action: tea.MouseActionMotion})
	if !ta.upload.DropActive() {
		t.Fatalf("drag over keeps it active")
	}
	ta.Update(tea.MouseMsg{X: zone.x + zone.w + 5, Y: zone.y + zone.h + 5, Action: tea.MouseActionMotion})
	if ta.upload.DropActive() {
		t.Fatalf("leaving the drop zone should deactivate it")
	}
}

func TestClosingUploadModalClearsPendingFile(t *testing.T) {
	ta := newTestApp(t, newFakeAPI())
	ta.key(t, "u")
	path := writeRosterFile(t, t.TempDir(), "a.csv", "NAME\nA\n")
	ta.upload.HandleDrag(DragEvent{Kind: Drop, Paths: []string{path}})
	ta.key(t, "esc")
	if ta.modals.IsOpen(ModalUpload) || ta.upload.Pending() != nil {
		t.Fatalf("closing the upload modal should clear the pending file")
	}
}

func TestUnauthorizedRefreshOpensLogin(t *testing.T) {
	api := newFakeAPI()
	api.listErr = &backend.TransportError{Op: "list roster", Status: 401, Err: errors.New("Unauthorized")}
	ta := newTestApp(t, api)
	ta.init(t)
	if !ta.modals.IsOpen(ModalLogin) {
		t.Fatalf("401 should open the login form")
	}

	api.listErr = nil
	api.employees = []backend.Employee{{ID: 1}}
	ta.login.username.SetValue("admin")
	ta.login.password.SetValue("admin")
	ta.key(t, "enter")
	if api.count("login") != 1 || api.loginUser != "admin" {
		t.Fatalf("login calls = %d user=%q", api.count("login"), api.loginUser)
	}
	if ta.modals.IsOpen(ModalLogin) || ta.roster.State() != RosterPopulated {
		t.Fatalf("successful login should close the form and reload")
	}
}

func TestStartupLoginUsesConfiguredCredentials(t *testing.T) {
	api := newFakeAPI()
	api.employees = []backend.Employee{{ID: 1}}
	ta := newTestApp(t, api)
	ta.config.File.Auth = config.AuthConfig{Username: "admin", Password: "admin"}
	ta.init(t)
	if api.count("login") != 1 || api.count("list") != 1 {
		t.Fatalf("login=%d list=%d", api.count("login"), api.count("list"))
	}
}

func TestRoadmapOpensReport(t *testing.T) {
	api := newFakeAPI()
	api.employees = []backend.Employee{{ID: 42, Name: strPtr("Ada")}}
	ta := newTestApp(t, api)
	ta.init(t)
	ta.key(t, "r")
	if len(ta.opens) != 1 || ta.opens[0] != "http://backend.test/admin/ai_report/42" {
		t.Fatalf("opens = %v", ta.opens)
	}
}

func TestLogoutQuits(t *testing.T) {
	api := newFakeAPI()
	ta := newTestApp(t, api)
	msg := ta.logout()()
	_, cmd := ta.Update(msg)
	if api.count("logout") != 1 {
		t.Fatalf("logout not sent")
	}
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("logout should quit the program")
	}
}

func TestModalPrecedenceAndEscape(t *testing.T) {
	m := NewModalController()
	m.Open(ModalEmployee)
	m.Open(ModalProfile)
	if top, _ := m.Top(); top != ModalProfile {
		t.Fatalf("top = %s", top)
	}
	if !m.IsOpen(ModalEmployee) {
		t.Fatalf("opening one surface must not close another")
	}
	m.Close(ModalProfile)
	if top, _ := m.Top(); top != ModalEmployee {
		t.Fatalf("top after close = %s", top)
	}
	m.Close(ModalEmployee)
	if _, ok := m.Top(); ok {
		t.Fatalf("no surface should be open")
	}
}

func TestNewAppRequiresConfig(t *testing.T) {
	app, err := NewApp(nil)
	if err == nil || app != nil {
		t.Fatalf("NewApp(nil) = %v, %v", app, err)
	}
	if !strings.Contains(err.Error(), "config is required") {
		t.Fatalf("err = %v", err)
	}
}
