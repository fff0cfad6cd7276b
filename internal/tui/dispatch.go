package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/rosteradmin/internal/backend"
	"github.com/kingrea/rosteradmin/internal/logbook"
)

const (
	genericFailure       = "An error occurred."
	connectionFailure    = "Failed to connect to the server."
	deleteFailure        = "Error deleting employee."
	uploadNetworkFailure = "Upload failed due to a network error."
	requestCompleted     = "Request completed."
)

// AdminAPI is the slice of the backend client the panel drives.
type AdminAPI interface {
	ListEmployees(ctx context.Context) ([]backend.Employee, error)
	SaveEmployee(ctx context.Context, form backend.EmployeeForm) (string, error)
	DeleteEmployee(ctx context.Context, id int) (string, error)
	UploadRoster(ctx context.Context, path string) (string, error)
	ProfileAgent(ctx context.Context, id int) (backend.ProfileResult, error)
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	ReportURL(id int) string
}

type saveResultMsg struct {
	message string
	err     error
}

type deleteResultMsg struct {
	id      int
	message string
	err     error
}

type uploadResultMsg struct {
	file    PendingFile
	message string
	err     error
}

type profileResultMsg struct {
	request uint64
	result  backend.ProfileResult
	err     error
}

// CommandDispatcher runs the four roster mutations. Each one is a single
// network call whose outcome becomes a toast, and on success may close a
// dialog and refresh the roster.
type CommandDispatcher struct {
	ctx     context.Context
	api     AdminAPI
	toasts  *NotificationQueue
	modals  *ModalController
	roster  *RosterView
	form    *employeeForm
	upload  *UploadPipeline
	profile *profilePanel
	log     *logbook.Logbook

	pendingDelete *int
}

// SaveEmployee submits the employee form. The submit control stays disabled
// until the result arrives, so a second submit while one is in flight does
// nothing.
func (d *CommandDispatcher) SaveEmployee() tea.Cmd {
	if !d.form.SubmitEnabled() {
		return nil
	}
	d.form.busy = true
	payload := d.form.payload()
	ctx, api := d.ctx, d.api
	return func() tea.Msg {
		message, err := api.SaveEmployee(ctx, payload)
		return saveResultMsg{message: message, err: err}
	}
}

func (d *CommandDispatcher) onSave(msg saveResultMsg) tea.Cmd {
	d.form.busy = false
	if msg.err != nil {
		d.log.Warn("Save employee failed: %v", msg.err)
		return d.toasts.Post(failureText(msg.err, genericFailure, connectionFailure), ToastError)
	}
	d.log.Info("Employee saved")
	d.modals.Close(ModalEmployee)
	d.form.reset()
	return tea.Batch(
		d.toasts.Post(orCompleted(msg.message), ToastSuccess),
		d.roster.Refresh(d.ctx),
	)
}

// RequestDelete asks for confirmation. Nothing reaches the network until
// ConfirmDelete(true).
func (d *CommandDispatcher) RequestDelete(id int) tea.Cmd {
	d.pendingDelete = &id
	d.modals.Open(ModalConfirm)
	return nil
}

// ConfirmPrompt is the question shown in the confirm dialog.
func (d *CommandDispatcher) ConfirmPrompt() string {
	if d.pendingDelete == nil {
		return ""
	}
	return fmt.Sprintf("Are you sure you want to delete employee with ID %d? This action cannot be undone.", *d.pendingDelete)
}

// ConfirmDelete resolves the confirmation dialog.
func (d *CommandDispatcher) ConfirmDelete(accepted bool) tea.Cmd {
	d.modals.Close(ModalConfirm)
	pending := d.pendingDelete
	d.pendingDelete = nil
	if !accepted || pending == nil {
		return nil
	}
	id := *pending
	ctx, api := d.ctx, d.api
	return func() tea.Msg {
		message, err := api.DeleteEmployee(ctx, id)
		return deleteResultMsg{id: id, message: message, err: err}
	}
}

func (d *CommandDispatcher) onDelete(msg deleteResultMsg) tea.Cmd {
	if msg.err != nil {
		d.log.Warn("Delete employee %d failed: %v", msg.id, msg.err)
		return d.toasts.Post(failureText(msg.err, deleteFailure, connectionFailure), ToastError)
	}
	d.log.Info("Employee %d deleted", msg.id)
	return tea.Batch(
		d.toasts.Post(orCompleted(msg.message), ToastSuccess),
		d.roster.Refresh(d.ctx),
	)
}

// RunProfileAgent opens the profile dialog in its busy state and starts the
// analysis.
func (d *CommandDispatcher) RunProfileAgent(id int, name string) tea.Cmd {
	request := d.profile.start(id, name)
	d.modals.Open(ModalProfile)
	ctx, api := d.ctx, d.api
	return func() tea.Msg {
		result, err := api.ProfileAgent(ctx, id)
		return profileResultMsg{request: request, result: result, err: err}
	}
}

func (d *CommandDispatcher) onProfile(msg profileResultMsg) tea.Cmd {
	if msg.request != d.profile.request {
		return nil
	}
	d.profile.loading = false
	if msg.err != nil {
		d.log.Warn("Profile agent for %d failed: %v", d.profile.id, msg.err)
		d.profile.errorMsg = failureText(msg.err, profileTransportError, profileTransportError)
		return nil
	}
	result := msg.result
	d.profile.result = &result
	return nil
}

// BulkUpload submits the staged file. Without one it does nothing.
func (d *CommandDispatcher) BulkUpload() tea.Cmd {
	file, ok := d.upload.begin()
	if !ok {
		return nil
	}
	ctx, api := d.ctx, d.api
	return func() tea.Msg {
		message, err := api.UploadRoster(ctx, file.Path)
		return uploadResultMsg{file: file, message: message, err: err}
	}
}

func (d *CommandDispatcher) onUpload(msg uploadResultMsg) tea.Cmd {
	d.upload.finish()
	if msg.err != nil {
		d.log.Warn("Upload of %s failed: %v", msg.file.Name, msg.err)
		return d.toasts.Post(failureText(msg.err, genericFailure, uploadNetworkFailure), ToastError)
	}
	d.log.Info("Uploaded %s (%d bytes)", msg.file.Name, msg.file.Size)
	d.modals.Close(ModalUpload)
	return tea.Batch(
		d.toasts.Post(orCompleted(msg.message), ToastSuccess),
		d.roster.Refresh(d.ctx),
	)
}

// Update routes operation results. handled is false for other messages.
func (d *CommandDispatcher) Update(msg tea.Msg) (handled bool, cmd tea.Cmd) {
	switch msg := msg.(type) {
	case saveResultMsg:
		return true, d.onSave(msg)
	case deleteResultMsg:
		return true, d.onDelete(msg)
	case uploadResultMsg:
		return true, d.onUpload(msg)
	case profileResultMsg:
		return true, d.onProfile(msg)
	}
	return false, nil
}

// failureText picks the user-facing text for a failed call: the server
// message when there is one, otherwise the matching fallback.
func failureText(err error, appFallback, transportFallback string) string {
	if backend.IsTransport(err) {
		return transportFallback
	}
	if msg := strings.TrimSpace(backend.ServerMessage(err)); msg != "" {
		return msg
	}
	return appFallback
}

func orCompleted(message string) string {
	if strings.TrimSpace(message) == "" {
		return requestCompleted
	}
	return message
}
