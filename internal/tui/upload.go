package tui

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"
	"github.com/kballard/go-shellquote"
)

const (
	uploadIdleLabel = "Upload & Process"
	busyLabel       = "Processing..."
	noFileLabel     = "No file selected"
)

// rosterFileTypes is the picker filter. It narrows the listing only; the
// backend decides what it accepts.
var rosterFileTypes = []string{".csv", ".xls", ".xlsx"}

// PendingFile is the file staged for bulk upload.
type PendingFile struct {
	Path string
	Name string
	Size int64
	Type string
}

func statPendingFile(path string) (PendingFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return PendingFile{}, errors.Wrap(err, "stat upload")
	}
	if info.IsDir() {
		return PendingFile{}, errors.Errorf("%s is a directory", path)
	}
	pf := PendingFile{Path: path, Name: filepath.Base(path), Size: info.Size()}
	if mt, err := mimetype.DetectFile(path); err == nil {
		pf.Type = mt.String()
	}
	return pf, nil
}

// DragKind enumerates drop-surface events.
type DragKind int

const (
	DragEnter DragKind = iota
	DragOver
	DragLeave
	Drop
)

// DragEvent reaches the drop surface. Paths is only set for Drop.
type DragEvent struct {
	Kind  DragKind
	Paths []string
}

// UploadPipeline stages one file and gates submission on it.
type UploadPipeline struct {
	pending    *PendingFile
	busy       bool
	dropActive bool
	notice     string
	picker     filepicker.Model
}

func newUploadPipeline(dir string) *UploadPipeline {
	fp := filepicker.New()
	fp.AllowedTypes = rosterFileTypes
	fp.AutoHeight = false
	fp.Height = 8
	fp.ShowPermissions = false
	if strings.TrimSpace(dir) != "" {
		fp.CurrentDirectory = dir
	}
	return &UploadPipeline{picker: fp}
}

// SetFile stages f, replacing whatever was pending.
func (p *UploadPipeline) SetFile(f PendingFile) {
	p.pending = &f
	p.notice = ""
}

// Pending returns the staged file, or nil.
func (p *UploadPipeline) Pending() *PendingFile { return p.pending }

// SubmitEnabled is true iff a file is staged and no upload is running.
func (p *UploadPipeline) SubmitEnabled() bool { return p.pending != nil && !p.busy }

func (p *UploadPipeline) Busy() bool       { return p.busy }
func (p *UploadPipeline) DropActive() bool { return p.dropActive }

// Label is the current text of the upload control.
func (p *UploadPipeline) Label() string {
	if p.busy {
		return busyLabel
	}
	return uploadIdleLabel
}

// FileLabel is the selected-file display.
func (p *UploadPipeline) FileLabel() string {
	if p.pending == nil {
		return noFileLabel
	}
	return p.pending.Name
}

// HandleDrag applies a drop-surface event. Drag events are always consumed.
func (p *UploadPipeline) HandleDrag(ev DragEvent) {
	switch ev.Kind {
	case DragEnter, DragOver:
		p.dropActive = true
	case DragLeave:
		p.dropActive = false
	case Drop:
		p.dropActive = false
		p.accept(ev.Paths)
	}
}

// accept stages the first path of a gesture.
func (p *UploadPipeline) accept(paths []string) {
	if len(paths) == 0 {
		return
	}
	pf, err := statPendingFile(paths[0])
	if err != nil {
		p.notice = fmt.Sprintf("Cannot use %s", filepath.Base(paths[0]))
		return
	}
	p.SetFile(pf)
}

// begin marks the upload in flight and returns the staged file. It is a no-op
// without a staged file or while another upload is running.
func (p *UploadPipeline) begin() (PendingFile, bool) {
	if !p.SubmitEnabled() {
		return PendingFile{}, false
	}
	p.busy = true
	return *p.pending, true
}

// finish restores the control and clears the staged file.
func (p *UploadPipeline) finish() {
	p.busy = false
	p.pending = nil
	p.notice = ""
}

// reset runs when the upload dialog closes.
func (p *UploadPipeline) reset() {
	if !p.busy {
		p.pending = nil
	}
	p.dropActive = false
	p.notice = ""
}

func (p *UploadPipeline) Init() tea.Cmd {
	return p.picker.Init()
}

// Update feeds the file picker and stages its selection.
func (p *UploadPipeline) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.picker, cmd = p.picker.Update(msg)
	if ok, path := p.picker.DidSelectFile(msg); ok {
		p.accept([]string{path})
	} else if ok, path := p.picker.DidSelectDisabledFile(msg); ok {
		p.notice = fmt.Sprintf("%s is not a roster file", filepath.Base(path))
	}
	return cmd
}

// parseDroppedPaths splits pasted text into file paths. Terminals deliver
// dropped files as shell-quoted paths or file:// URIs separated by spaces or
// newlines. Text that is not valid shell quoting falls back to plain fields.
func parseDroppedPaths(text string) []string {
	text = strings.ReplaceAll(text, "\r", "\n")
	words, err := shellquote.Split(text)
	if err != nil {
		words = strings.Fields(text)
	}
	var paths []string
	for _, w := range words {
		if p := normalizeDroppedPath(w); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func normalizeDroppedPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "file://") {
		if u, err := url.Parse(raw); err == nil && u.Path != "" {
			return u.Path
		}
	}
	return raw
}
