package services

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"foodstash_app_echo/internal/models"
)

func TestInstallmentCount(t *testing.T) {
	tests := []struct {
		name      string
		frequency models.PaymentFrequency
		duration  int
		expected  int
	}{
		{name: "monthly three months", frequency: models.PaymentFrequencyMonthly, duration: 3, expected: 3},
		{name: "weekly three months", frequency: models.PaymentFrequencyWeekly, duration: 3, expected: 12},
		{name: "daily two months", frequency: models.PaymentFrequencyDaily, duration: 2, expected: 60},
		{name: "monthly one month", frequency: models.PaymentFrequencyMonthly, duration: 1, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := InstallmentCount(tt.frequency, tt.duration)
			if result != tt.expected {
				t.Errorf("InstallmentCount(%q, %d) = %d; want %d", tt.frequency, tt.duration, result, tt.expected)
			}
		})
	}
}

func TestBuildInstallmentsSumsToTotal(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		total     float64
		duration  int
		frequency models.PaymentFrequency
	}{
		{name: "divides evenly", total: 90000, duration: 3, frequency: models.PaymentFrequencyMonthly},
		{name: "repeating decimal", total: 100000, duration: 3, frequency: models.PaymentFrequencyMonthly},
		{name: "weekly with remainder", total: 50000, duration: 3, frequency: models.PaymentFrequencyWeekly},
		{name: "daily with remainder", total: 123456.78, duration: 1, frequency: models.PaymentFrequencyDaily},
		{name: "tiny amount", total: 0.10, duration: 1, frequency: models.PaymentFrequencyDaily},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			installments, err := BuildInstallments(PlanTerms{
				TotalAmount: tt.total,
				Duration:    tt.duration,
				StartDate:   start,
				Frequency:   tt.frequency,
			})
			if err != nil {
				t.Fatalf("BuildInstallments returned error: %v", err)
			}

			expectedCount := InstallmentCount(tt.frequency, tt.duration)
			if len(installments) != expectedCount {
				t.Fatalf("got %d installments; want %d", len(installments), expectedCount)
			}

			sum := decimal.Zero
			for _, inst := range installments {
				sum = sum.Add(decimal.NewFromFloat(inst.Amount))
			}
			if !sum.Equal(decimal.NewFromFloat(tt.total)) {
				t.Errorf("installment sum = %s; want %v", sum, tt.total)
			}

			// All but the last share the same rounded amount
			for i := 0; i < len(installments)-1; i++ {
				if installments[i].Amount != installments[0].Amount {
					t.Errorf("installment %d amount = %v; want %v", i, installments[i].Amount, installments[0].Amount)
				}
			}
		})
	}
}

func TestBuildInstallmentsDueDates(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	t.Run("monthly advances by calendar month", func(t *testing.T) {
		installments, err := BuildInstallments(PlanTerms{
			TotalAmount: 30000,
			Duration:    3,
			StartDate:   start,
			Frequency:   models.PaymentFrequencyMonthly,
		})
		if err != nil {
			t.Fatalf("BuildInstallments returned error: %v", err)
		}

		expected := []time.Time{
			time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		}
		for i, want := range expected {
			if !installments[i].DueDate.Equal(want) {
				t.Errorf("installment %d due %v; want %v", i, installments[i].DueDate, want)
			}
		}
	})

	t.Run("weekly advances by seven days", func(t *testing.T) {
		installments, err := BuildInstallments(PlanTerms{
			TotalAmount: 40000,
			Duration:    1,
			StartDate:   start,
			Frequency:   models.PaymentFrequencyWeekly,
		})
		if err != nil {
			t.Fatalf("BuildInstallments returned error: %v", err)
		}

		for i := 1; i < len(installments); i++ {
			gap := installments[i].DueDate.Sub(installments[i-1].DueDate)
			if gap != 7*24*time.Hour {
				t.Errorf("gap between installments %d and %d = %v; want 168h", i-1, i, gap)
			}
		}
	})
}

func TestBuildInstallmentsUnknownFrequencyFallsBackToMonthly(t *testing.T) {
	installments, err := BuildInstallments(PlanTerms{
		TotalAmount: 60000,
		Duration:    2,
		StartDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Frequency:   models.PaymentFrequency("fortnightly"),
	})
	if err != nil {
		t.Fatalf("BuildInstallments returned error: %v", err)
	}
	if len(installments) != 2 {
		t.Errorf("got %d installments; want 2 (monthly fallback)", len(installments))
	}
}

func TestBuildInstallmentsInvalidDuration(t *testing.T) {
	for _, duration := range []int{0, -1} {
		_, err := BuildInstallments(PlanTerms{
			TotalAmount: 1000,
			Duration:    duration,
			StartDate:   time.Now(),
			Frequency:   models.PaymentFrequencyMonthly,
		})
		if !errors.Is(err, ErrInvalidPlanTerms) {
			t.Errorf("duration %d: got error %v; want ErrInvalidPlanTerms", duration, err)
		}
	}
}

func TestBuildInstallmentsFirstPaymentSettled(t *testing.T) {
	installments, err := BuildInstallments(PlanTerms{
		TotalAmount:           30000,
		Duration:              3,
		StartDate:             time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Frequency:             models.PaymentFrequencyMonthly,
		FirstPaymentReference: "ref-first-001",
	})
	if err != nil {
		t.Fatalf("BuildInstallments returned error: %v", err)
	}

	first := installments[0]
	if first.Status != models.InstallmentStatusPaid {
		t.Errorf("first installment status = %q; want paid", first.Status)
	}
	if first.PaymentReference == nil || *first.PaymentReference != "ref-first-001" {
		t.Errorf("first installment reference = %v; want ref-first-001", first.PaymentReference)
	}
	if first.PaidAt == nil {
		t.Error("first installment has no paid-at timestamp")
	}

	for i := 1; i < len(installments); i++ {
		if installments[i].Status != models.InstallmentStatusPending {
			t.Errorf("installment %d status = %q; want pending", i, installments[i].Status)
		}
	}
}
