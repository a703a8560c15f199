package services

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	fail map[string]bool
}

func (f *fakeNotifier) SendTemplatedEmail(to, subject, templateName string, model map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[to] {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, to)
	return nil
}

func (f *fakeNotifier) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestConfirmationDispatcherDrainsQueue(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewConfirmationDispatcher(notifier)
	d.Start()
	defer d.Stop()

	for _, to := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		d.Enqueue(ConfirmationMessage{To: to, Amount: 100})
	}

	waitFor(t, 2*time.Second, func() bool { return len(notifier.sentTo()) == 3 })

	if d.Pending() != 0 {
		t.Errorf("pending = %d; want 0", d.Pending())
	}
}

func TestConfirmationDispatcherToleratesSendFailure(t *testing.T) {
	notifier := &fakeNotifier{fail: map[string]bool{"broken@example.com": true}}
	d := NewConfirmationDispatcher(notifier)
	d.Start()
	defer d.Stop()

	d.Enqueue(ConfirmationMessage{To: "broken@example.com"})
	d.Enqueue(ConfirmationMessage{To: "fine@example.com"})

	waitFor(t, 2*time.Second, func() bool {
		sent := notifier.sentTo()
		return len(sent) == 1 && sent[0] == "fine@example.com"
	})
}

func TestConfirmationDispatcherStopDropsQueued(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewConfirmationDispatcher(notifier)

	// Not started: nothing consumes, enqueue still succeeds
	d.Enqueue(ConfirmationMessage{To: "queued@example.com"})
	if d.Pending() != 1 {
		t.Fatalf("pending = %d; want 1", d.Pending())
	}

	d.Start()
	waitFor(t, 2*time.Second, func() bool { return len(notifier.sentTo()) == 1 })
	d.Stop()

	// After Stop, enqueues are dropped
	d.Enqueue(ConfirmationMessage{To: "late@example.com"})
	if d.Pending() != 0 {
		t.Errorf("pending after stop = %d; want 0", d.Pending())
	}

	// Stop is idempotent
	d.Stop()
}

func TestConfirmationDispatcherCompletedSubject(t *testing.T) {
	var mu sync.Mutex
	subjects := map[string]string{}
	notifier := notifierFunc(func(to, subject, templateName string, model map[string]interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		subjects[to] = subject
		return nil
	})

	d := NewConfirmationDispatcher(notifier)
	d.Start()
	defer d.Stop()

	d.Enqueue(ConfirmationMessage{To: "ongoing@example.com", Completed: false})
	d.Enqueue(ConfirmationMessage{To: "done@example.com", Completed: true})

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(subjects) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if subjects["ongoing@example.com"] != "Payment received" {
		t.Errorf("subject = %q; want Payment received", subjects["ongoing@example.com"])
	}
	if subjects["done@example.com"] != "Savings plan completed" {
		t.Errorf("subject = %q; want Savings plan completed", subjects["done@example.com"])
	}
}

type notifierFunc func(to, subject, templateName string, model map[string]interface{}) error

func (f notifierFunc) SendTemplatedEmail(to, subject, templateName string, model map[string]interface{}) error {
	return f(to, subject, templateName, model)
}
