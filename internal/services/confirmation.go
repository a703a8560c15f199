package services

import (
	"fmt"
	"log"
	"sync"

	"foodstash_app_echo/internal/metrics"
)

// ConfirmationMessage is one outbound payment confirmation email
type ConfirmationMessage struct {
	To          string
	Name        string
	FoodPack    string
	Amount      float64
	AmountPaid  float64
	TotalAmount float64
	Completed   bool
}

// ConfirmationDispatcher turns successful reconciliations into outbound
// confirmation emails without ever blocking the reconciliation path.
// Producers enqueue and return immediately; a single consumer goroutine
// drains the queue serially. A send failure is logged and does not
// affect later messages. Enqueue-then-crash loses the message, which is
// acceptable: a confirmation email is not payment truth.
type ConfirmationDispatcher struct {
	notifier Notifier

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []ConfirmationMessage
	stopped bool
	running bool
	wg      sync.WaitGroup
}

func NewConfirmationDispatcher(notifier Notifier) *ConfirmationDispatcher {
	d := &ConfirmationDispatcher{notifier: notifier}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Start launches the consumer goroutine
func (d *ConfirmationDispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.running = true
	d.stopped = false

	d.wg.Add(1)
	go d.consume()
}

// Stop signals the consumer to exit. The in-flight send finishes; queued
// messages that were not picked up yet are dropped without requeuing.
func (d *ConfirmationDispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.running = false
	d.cond.Broadcast()
	d.mu.Unlock()

	d.wg.Wait()
}

// Enqueue adds a confirmation to the queue. It never blocks and never
// fails the triggering operation.
func (d *ConfirmationDispatcher) Enqueue(msg ConfirmationMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		log.Printf("Confirmation dispatcher stopped, dropping confirmation for %s", msg.To)
		return
	}

	d.queue = append(d.queue, msg)
	d.cond.Signal()
}

// Pending reports how many messages are waiting. Used by tests and the
// health endpoint.
func (d *ConfirmationDispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *ConfirmationDispatcher) consume() {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.stopped {
			d.cond.Wait()
		}
		if d.stopped {
			d.mu.Unlock()
			return
		}
		msg := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.send(msg)
	}
}

func (d *ConfirmationDispatcher) send(msg ConfirmationMessage) {
	model := map[string]interface{}{
		"Name":        msg.Name,
		"FoodPack":    msg.FoodPack,
		"Amount":      fmt.Sprintf("%.2f", msg.Amount),
		"AmountPaid":  fmt.Sprintf("%.2f", msg.AmountPaid),
		"TotalAmount": fmt.Sprintf("%.2f", msg.TotalAmount),
		"Completed":   msg.Completed,
	}

	subject := "Payment received"
	if msg.Completed {
		subject = "Savings plan completed"
	}

	if err := d.notifier.SendTemplatedEmail(msg.To, subject, "payment_confirmation", model); err != nil {
		log.Printf("Failed to send confirmation to %s: %v", msg.To, err)
		return
	}

	metrics.ConfirmationsSent.Inc()
}
