package services

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/teambition/rrule-go"

	"foodstash_app_echo/internal/models"
)

// PlanTerms are the inputs the schedule generator derives a plan's
// installments from.
type PlanTerms struct {
	TotalAmount float64
	Duration    int // months
	StartDate   time.Time
	Frequency   models.PaymentFrequency

	// FirstPaymentReference marks installment[0] as already settled by
	// the given gateway reference, e.g. when the plan is created from a
	// confirmed first charge.
	FirstPaymentReference string
}

// InstallmentCount returns how many installments a plan's terms produce
func InstallmentCount(frequency models.PaymentFrequency, duration int) int {
	switch frequency {
	case models.PaymentFrequencyDaily:
		return duration * 30
	case models.PaymentFrequencyWeekly:
		return duration * 4
	default:
		return duration
	}
}

// BuildInstallments derives the full ordered installment schedule from
// plan terms. Due dates advance by day, week, or calendar month from the
// start date. Each installment is the total divided by the count rounded
// to 2 decimals; the last installment absorbs the rounding remainder so
// the sum equals the total exactly.
func BuildInstallments(terms PlanTerms) ([]models.Installment, error) {
	if terms.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidPlanTerms, terms.Duration)
	}

	frequency := terms.Frequency
	switch frequency {
	case models.PaymentFrequencyDaily, models.PaymentFrequencyWeekly, models.PaymentFrequencyMonthly:
	default:
		// Documented fallback: unknown frequencies schedule monthly
		log.Printf("Unsupported payment frequency %q, falling back to monthly", frequency)
		frequency = models.PaymentFrequencyMonthly
	}

	count := InstallmentCount(frequency, terms.Duration)

	var freq rrule.Frequency
	switch frequency {
	case models.PaymentFrequencyDaily:
		freq = rrule.DAILY
	case models.PaymentFrequencyWeekly:
		freq = rrule.WEEKLY
	default:
		freq = rrule.MONTHLY
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    freq,
		Count:   count,
		Dtstart: terms.StartDate,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlanTerms, err)
	}
	dueDates := rule.All()

	total := decimal.NewFromFloat(terms.TotalAmount)
	per := total.Div(decimal.NewFromInt(int64(count))).Round(2)
	last := total.Sub(per.Mul(decimal.NewFromInt(int64(count - 1))))

	installments := make([]models.Installment, 0, count)
	for i, due := range dueDates {
		amount := per
		if i == count-1 {
			amount = last
		}
		installments = append(installments, models.Installment{
			DueDate: due,
			Amount:  amount.InexactFloat64(),
			Status:  models.InstallmentStatusPending,
		})
	}

	if terms.FirstPaymentReference != "" {
		now := time.Now()
		ref := terms.FirstPaymentReference
		installments[0].Status = models.InstallmentStatusPaid
		installments[0].PaymentReference = &ref
		installments[0].PaidAt = &now
	}

	return installments, nil
}
