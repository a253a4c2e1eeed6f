package trivia

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTimer struct {
	c       chan time.Time
	stopped atomic.Bool
}

func (t *fakeTimer) C() <-chan time.Time {
	return t.c
}

func (t *fakeTimer) Stop() bool {
	return !t.stopped.Swap(true)
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	t := &fakeTimer{c: make(chan time.Time, 1)}

	c.mu.Lock()
	c.timers = append(c.timers, t)
	c.mu.Unlock()

	return t
}

func (c *fakeClock) last(t *testing.T) *fakeTimer {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.timers) == 0 {
		t.Fatal("no timer armed")
	}

	return c.timers[len(c.timers)-1]
}

// fire expires the most recently armed timer.
func (c *fakeClock) fire(t *testing.T) {
	t.Helper()

	timer := c.last(t)
	if timer.stopped.Load() {
		t.Fatal("latest timer already stopped")
	}

	timer.c <- time.Now()
}

type published struct {
	room       string
	recipients []string
	msg        any
}

type recorder struct {
	ch chan published
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan published, 1024)}
}

func (r *recorder) Publish(roomID string, recipients []string, msg any) {
	r.ch <- published{
		room:       roomID,
		recipients: append([]string(nil), recipients...),
		msg:        msg,
	}
}

func (r *recorder) next(t *testing.T) published {
	t.Helper()

	select {
	case p := <-r.ch:
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a published message")
	}

	return published{}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()

	select {
	case p := <-r.ch:
		t.Fatalf("unexpected message: %#v", p.msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func (r *recorder) notice(t *testing.T) NoticeMessage {
	t.Helper()

	p := r.next(t)
	m, ok := p.msg.(NoticeMessage)
	if !ok {
		t.Fatalf("expected NoticeMessage, got %#v", p.msg)
	}

	return m
}

func (r *recorder) question(t *testing.T) QuestionMessage {
	t.Helper()

	p := r.next(t)
	m, ok := p.msg.(QuestionMessage)
	if !ok {
		t.Fatalf("expected QuestionMessage, got %#v", p.msg)
	}

	return m
}

func (r *recorder) result(t *testing.T) ResultMessage {
	t.Helper()

	p := r.next(t)
	m, ok := p.msg.(ResultMessage)
	if !ok {
		t.Fatalf("expected ResultMessage, got %#v", p.msg)
	}

	return m
}

func testBank(t *testing.T) *Bank {
	t.Helper()

	b, err := NewBank([]Question{{
		ID:               "q1",
		Text:             "Is this a question?",
		CorrectAnswer:    "yes",
		IncorrectAnswers: []string{"no", "maybe"},
	}})
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}

	return b
}

func newTestRegistry(t *testing.T) (*Registry, *recorder, *fakeClock) {
	t.Helper()

	rec := newRecorder()
	clock := &fakeClock{}

	reg := NewRegistry(Options{
		Bank:      testBank(t),
		Publisher: rec,
		Clock:     clock,
	})
	t.Cleanup(reg.Close)

	return reg, rec, clock
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func sameScores(a, b []Score) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
