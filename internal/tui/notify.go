package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

// ToastKind selects the toast styling.
type ToastKind int

const (
	ToastSuccess ToastKind = iota
	ToastError
)

func (k ToastKind) String() string {
	if k == ToastError {
		return "error"
	}
	return "success"
}

// ToastPhase tracks where a toast is in its reveal/dwell/hide cycle.
type ToastPhase int

const (
	ToastEntering ToastPhase = iota // rendered hidden, waiting for the reveal tick
	ToastVisible
	ToastLeaving // hide transition running, removal waits for its end
)

// Toast is one transient notification.
type Toast struct {
	ID      string
	Message string
	Kind    ToastKind
	Phase   ToastPhase
}

// ToastTiming holds the three lifecycle delays.
type ToastTiming struct {
	Reveal     time.Duration
	Dwell      time.Duration
	Transition time.Duration
}

// DefaultToastTiming mirrors the stylesheet the panel was designed against.
func DefaultToastTiming() ToastTiming {
	return ToastTiming{
		Reveal:     10 * time.Millisecond,
		Dwell:      5000 * time.Millisecond,
		Transition: 300 * time.Millisecond,
	}
}

// Scheduler delivers msg after d. Tests swap it to control time.
type Scheduler func(d time.Duration, msg tea.Msg) tea.Cmd

func tickScheduler(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return msg })
}

type toastRevealMsg struct{ id string }
type toastDismissMsg struct{ id string }
type toastTransitionEndMsg struct{ id string }

// NotificationQueue owns every live toast. Each toast runs its own timers;
// there is no cap and no deduplication.
type NotificationQueue struct {
	toasts []*Toast
	timing ToastTiming
	after  Scheduler
}

// NewNotificationQueue builds a queue. A nil scheduler uses tea.Tick.
func NewNotificationQueue(timing ToastTiming, after Scheduler) *NotificationQueue {
	if after == nil {
		after = tickScheduler
	}
	return &NotificationQueue{timing: timing, after: after}
}

// Post appends a toast in the entering phase. Its reveal and dismiss timers
// both start now, so the dwell is measured from creation.
func (q *NotificationQueue) Post(message string, kind ToastKind) tea.Cmd {
	t := &Toast{
		ID:      uuid.NewString(),
		Message: message,
		Kind:    kind,
		Phase:   ToastEntering,
	}
	q.toasts = append(q.toasts, t)
	return tea.Batch(
		q.after(q.timing.Reveal, toastRevealMsg{id: t.ID}),
		q.after(q.timing.Dwell, toastDismissMsg{id: t.ID}),
	)
}

// Update advances toast lifecycles. handled is false for foreign messages.
func (q *NotificationQueue) Update(msg tea.Msg) (handled bool, cmd tea.Cmd) {
	switch msg := msg.(type) {
	case toastRevealMsg:
		t := q.find(msg.id)
		if t == nil || t.Phase != ToastEntering {
			return true, nil
		}
		t.Phase = ToastVisible
		return true, nil
	case toastDismissMsg:
		t := q.find(msg.id)
		if t == nil || t.Phase == ToastLeaving {
			return true, nil
		}
		t.Phase = ToastLeaving
		return true, q.after(q.timing.Transition, toastTransitionEndMsg{id: t.ID})
	case toastTransitionEndMsg:
		for i, t := range q.toasts {
			if t.ID == msg.id {
				if t.Phase == ToastLeaving {
					q.toasts = append(q.toasts[:i], q.toasts[i+1:]...)
				}
				break
			}
		}
		return true, nil
	}
	return false, nil
}

// Toasts returns a snapshot in insertion order.
func (q *NotificationQueue) Toasts() []Toast {
	out := make([]Toast, 0, len(q.toasts))
	for _, t := range q.toasts {
		out = append(out, *t)
	}
	return out
}

// Len counts toasts still present, whatever their phase.
func (q *NotificationQueue) Len() int { return len(q.toasts) }

func (q *NotificationQueue) find(id string) *Toast {
	for _, t := range q.toasts {
		if t.ID == id {
			return t
		}
	}
	return nil
}

var (
	toastBase = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	toastSuccessStyle = toastBase.BorderForeground(lipgloss.Color("#4CAF50"))
	toastErrorStyle   = toastBase.BorderForeground(lipgloss.Color("#FF6B6B"))
	toastFadedStyle   = toastBase.BorderForeground(lipgloss.Color("#444444")).
				Foreground(lipgloss.Color("#666666"))
)

// View stacks the toasts. Entering toasts take no space yet; leaving ones
// render faded until their transition ends.
func (q *NotificationQueue) View(width int) string {
	var blocks []string
	for _, t := range q.toasts {
		style := toastSuccessStyle
		icon := "✔"
		if t.Kind == ToastError {
			style = toastErrorStyle
			icon = "✖"
		}
		switch t.Phase {
		case ToastEntering:
			continue
		case ToastLeaving:
			style = toastFadedStyle
		}
		if width > 0 {
			style = style.MaxWidth(width)
		}
		blocks = append(blocks, style.Render(icon+" "+t.Message))
	}
	return strings.Join(blocks, "\n")
}
