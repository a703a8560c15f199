package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodstash_payments_applied_total",
		Help: "Payments successfully reconciled against an installment.",
	})

	PaymentsReverted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodstash_payments_reverted_total",
		Help: "Paid installments reverted by an admin.",
	})

	DuplicatePayments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodstash_duplicate_payments_total",
		Help: "Payment events discarded by an idempotency guard.",
	})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodstash_webhook_events_total",
		Help: "Gateway webhook deliveries by outcome.",
	}, []string{"outcome"})

	AutoDebitCharges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodstash_autodebit_charges_total",
		Help: "Automatic debit attempts by result.",
	}, []string{"result"})

	ConfirmationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodstash_confirmations_sent_total",
		Help: "Confirmation emails handed to the notifier.",
	})
)
