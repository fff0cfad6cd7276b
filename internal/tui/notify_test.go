package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type scheduled struct {
	after time.Duration
	msg   tea.Msg
}

// manualClock records timers instead of sleeping; tests deliver them by hand.
type manualClock struct {
	pending []scheduled
}

func (c *manualClock) schedule(d time.Duration, msg tea.Msg) tea.Cmd {
	c.pending = append(c.pending, scheduled{after: d, msg: msg})
	return nil
}

func (c *manualClock) pop(t *testing.T) scheduled {
	t.Helper()
	if len(c.pending) == 0 {
		t.Fatalf("no timer scheduled")
	}
	next := c.pending[0]
	c.pending = c.pending[1:]
	return next
}

// take removes and returns every pending timer addressed to the toast id.
func (c *manualClock) take(id string) []tea.Msg {
	var out []tea.Msg
	kept := c.pending[:0]
	for _, p := range c.pending {
		var target string
		switch m := p.msg.(type) {
		case toastRevealMsg:
			target = m.id
		case toastDismissMsg:
			target = m.id
		case toastTransitionEndMsg:
			target = m.id
		}
		if target == id {
			out = append(out, p.msg)
			continue
		}
		kept = append(kept, p)
	}
	c.pending = kept
	return out
}

func deliver(t *testing.T, q *NotificationQueue, clock *manualClock, want time.Duration) {
	t.Helper()
	next := clock.pop(t)
	if next.after != want {
		t.Fatalf("timer delay = %v, want %v", next.after, want)
	}
	if handled, _ := q.Update(next.msg); !handled {
		t.Fatalf("queue ignored its own timer %T", next.msg)
	}
}

func TestToastLifecycle(t *testing.T) {
	clock := &manualClock{}
	q := NewNotificationQueue(DefaultToastTiming(), clock.schedule)
	q.Post("Employee added successfully!", ToastSuccess)

	toasts := q.Toasts()
	if len(toasts) != 1 || toasts[0].Phase != ToastEntering {
		t.Fatalf("new toast should be entering: %+v", toasts)
	}
	if view := q.View(0); view != "" {
		t.Fatalf("entering toast must render hidden, got %q", view)
	}
	if len(clock.pending) != 2 {
		t.Fatalf("reveal and dismiss should both start at post, got %d timers", len(clock.pending))
	}

	deliver(t, q, clock, 10*time.Millisecond)
	if got := q.Toasts()[0].Phase; got != ToastVisible {
		t.Fatalf("phase after reveal = %v", got)
	}

	deliver(t, q, clock, 5000*time.Millisecond)
	if got := q.Toasts()[0].Phase; got != ToastLeaving {
		t.Fatalf("phase after dwell = %v", got)
	}
	if q.Len() != 1 {
		t.Fatalf("toast removed before its hide transition finished")
	}

	deliver(t, q, clock, 300*time.Millisecond)
	if q.Len() != 0 {
		t.Fatalf("toast should be gone after transition end")
	}
	if len(clock.pending) != 0 {
		t.Fatalf("unexpected extra timers: %v", clock.pending)
	}
}

func TestTransitionEndIgnoredUntilLeaving(t *testing.T) {
	clock := &manualClock{}
	q := NewNotificationQueue(DefaultToastTiming(), clock.schedule)
	q.Post("hello", ToastError)
	id := q.Toasts()[0].ID

	q.Update(toastTransitionEndMsg{id: id})
	if q.Len() != 1 {
		t.Fatalf("entering toast must not be removed eagerly")
	}
	deliver(t, q, clock, DefaultToastTiming().Reveal)
	q.Update(toastTransitionEndMsg{id: id})
	if q.Len() != 1 {
		t.Fatalf("visible toast must not be removed eagerly")
	}
}

func TestToastsAreIndependent(t *testing.T) {
	clock := &manualClock{}
	q := NewNotificationQueue(DefaultToastTiming(), clock.schedule)
	q.Post("first", ToastSuccess)
	q.Post("same", ToastError)
	q.Post("same", ToastError)

	toasts := q.Toasts()
	if len(toasts) != 3 {
		t.Fatalf("len = %d, want 3 (no dedup)", len(toasts))
	}
	for i, want := range []string{"first", "same", "same"} {
		if toasts[i].Message != want {
			t.Fatalf("toast %d = %q, want %q", i, toasts[i].Message, want)
		}
	}

	// Walk only the second toast to removal.
	id := toasts[1].ID
	for _, msg := range clock.take(id) {
		q.Update(msg)
	}
	for _, msg := range clock.take(id) {
		q.Update(msg)
	}

	left := q.Toasts()
	if len(left) != 2 || left[0].Message != "first" || left[0].Phase != ToastEntering || left[1].Phase != ToastEntering {
		t.Fatalf("other toasts should be untouched: %+v", left)
	}
}

func TestDismissWithoutRevealStillHides(t *testing.T) {
	clock := &manualClock{}
	q := NewNotificationQueue(ToastTiming{Reveal: 50 * time.Millisecond, Dwell: 20 * time.Millisecond, Transition: time.Millisecond}, clock.schedule)
	q.Post("quick", ToastSuccess)
	reveal, dismiss := clock.pop(t), clock.pop(t)

	q.Update(dismiss.msg)
	if got := q.Toasts()[0].Phase; got != ToastLeaving {
		t.Fatalf("phase after early dismiss = %v", got)
	}
	q.Update(reveal.msg)
	if got := q.Toasts()[0].Phase; got != ToastLeaving {
		t.Fatalf("late reveal must not resurrect a leaving toast, phase = %v", got)
	}
	deliver(t, q, clock, time.Millisecond)
	if q.Len() != 0 {
		t.Fatalf("toast should be removed")
	}
}

func TestQueueIgnoresForeignMessages(t *testing.T) {
	q := NewNotificationQueue(DefaultToastTiming(), (&manualClock{}).schedule)
	if handled, cmd := q.Update(tea.WindowSizeMsg{}); handled || cmd != nil {
		t.Fatalf("foreign message should pass through")
	}
}
