package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"foodstash_app_echo/internal/models"
	"foodstash_app_echo/internal/services"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

type chargeCall struct {
	Email             string
	AuthorizationCode string
	Amount            float64
}

// fakeGateway records charge attempts and answers with a configurable
// status per authorization code
type fakeGateway struct {
	mu       sync.Mutex
	calls    []chargeCall
	statuses map[string]string // authorization code -> charge status
	err      error
	onCharge func() // runs once, during the first charge, before it returns
	once     sync.Once
}

func (g *fakeGateway) VerifyTransaction(ctx context.Context, reference string) (*services.GatewayTransaction, error) {
	return &services.GatewayTransaction{Status: "success", Reference: reference}, nil
}

func (g *fakeGateway) ChargeAuthorization(ctx context.Context, email, authorizationCode string, amount float64, reference string) (*services.GatewayCharge, error) {
	g.mu.Lock()
	g.calls = append(g.calls, chargeCall{Email: email, AuthorizationCode: authorizationCode, Amount: amount})
	hook := g.onCharge
	err := g.err
	status := "success"
	if g.statuses != nil {
		if s, ok := g.statuses[authorizationCode]; ok {
			status = s
		}
	}
	g.mu.Unlock()

	if hook != nil {
		g.once.Do(hook)
	}
	if err != nil {
		return nil, err
	}
	return &services.GatewayCharge{Status: status, Reference: reference}, nil
}

func (g *fakeGateway) chargeCalls() []chargeCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]chargeCall(nil), g.calls...)
}

type planSeed struct {
	preference models.PaymentPreference
	status     models.PlanStatus
	bindMethod bool
	dueOffset  time.Duration
}

func seedAutoPlan(t *testing.T, db *gorm.DB, email string, seed planSeed) models.SavingsPlan {
	t.Helper()

	user := models.User{Name: "Test User", Email: email, FirebaseUID: "uid-" + email}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	pack := models.FoodPack{Name: "Pack", Price: 20000, IsActive: true}
	if err := db.Create(&pack).Error; err != nil {
		t.Fatalf("failed to seed food pack: %v", err)
	}

	var methodID *uint
	if seed.bindMethod {
		method := models.PaymentMethod{
			UserID:            user.ID,
			AuthorizationCode: "AUTH_" + email,
			Last4:             "4081",
			IsDefault:         true,
		}
		if err := db.Create(&method).Error; err != nil {
			t.Fatalf("failed to seed payment method: %v", err)
		}
		methodID = &method.ID
	}

	plan := models.SavingsPlan{
		Reference:         "plan-" + email,
		UserID:            user.ID,
		FoodPackID:        pack.ID,
		TotalAmount:       20000,
		Duration:          2,
		StartDate:         time.Now().AddDate(0, -1, 0),
		Status:            seed.status,
		PaymentPreference: seed.preference,
		PaymentFrequency:  models.PaymentFrequencyMonthly,
		PaymentMethodID:   methodID,
	}
	if err := db.Create(&plan).Error; err != nil {
		t.Fatalf("failed to seed plan: %v", err)
	}

	for i := 0; i < 2; i++ {
		installment := models.Installment{
			PlanID:  plan.ID,
			DueDate: time.Now().Add(seed.dueOffset).AddDate(0, i, 0),
			Amount:  10000,
			Status:  models.InstallmentStatusPending,
		}
		if err := db.Create(&installment).Error; err != nil {
			t.Fatalf("failed to seed installment: %v", err)
		}
	}
	return plan
}

func TestAutoDebitChargesDueInstallment(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	job := NewAutoDebit(db, gateway, services.NewReconciler(db), nil)

	plan := seedAutoPlan(t, db, "due@example.com", planSeed{
		preference: models.PaymentPreferenceAutomatic,
		status:     models.PlanStatusActive,
		bindMethod: true,
		dueOffset:  -time.Hour,
	})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	calls := gateway.chargeCalls()
	if len(calls) != 1 {
		t.Fatalf("gateway charged %d times; want 1", len(calls))
	}
	if calls[0].Email != "due@example.com" {
		t.Errorf("charged email = %q; want due@example.com", calls[0].Email)
	}
	if calls[0].Amount != 10000 {
		t.Errorf("charged amount = %v; want 10000", calls[0].Amount)
	}

	var paid int64
	db.Model(&models.Installment{}).
		Where("plan_id = ? AND status = ?", plan.ID, models.InstallmentStatusPaid).
		Count(&paid)
	if paid != 1 {
		t.Errorf("paid installments = %d; want 1", paid)
	}

	var reloaded models.SavingsPlan
	if err := db.First(&reloaded, plan.ID).Error; err != nil {
		t.Fatalf("failed to reload plan: %v", err)
	}
	if reloaded.AmountPaid != 10000 {
		t.Errorf("plan amount paid = %v; want 10000", reloaded.AmountPaid)
	}
}

func TestAutoDebitSkipsManualAndInactivePlans(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	job := NewAutoDebit(db, gateway, services.NewReconciler(db), nil)

	seedAutoPlan(t, db, "manual@example.com", planSeed{
		preference: models.PaymentPreferenceManual,
		status:     models.PlanStatusActive,
		bindMethod: true,
		dueOffset:  -time.Hour,
	})
	seedAutoPlan(t, db, "cancelled@example.com", planSeed{
		preference: models.PaymentPreferenceAutomatic,
		status:     models.PlanStatusCancelled,
		bindMethod: true,
		dueOffset:  -time.Hour,
	})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if calls := gateway.chargeCalls(); len(calls) != 0 {
		t.Errorf("gateway charged %d times; want 0", len(calls))
	}
}

func TestAutoDebitSkipsFutureInstallments(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	job := NewAutoDebit(db, gateway, services.NewReconciler(db), nil)

	seedAutoPlan(t, db, "future@example.com", planSeed{
		preference: models.PaymentPreferenceAutomatic,
		status:     models.PlanStatusActive,
		bindMethod: true,
		dueOffset:  48 * time.Hour,
	})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if calls := gateway.chargeCalls(); len(calls) != 0 {
		t.Errorf("gateway charged %d times; want 0", len(calls))
	}
}

func TestAutoDebitFailedChargeLeavesInstallmentPending(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{statuses: map[string]string{"AUTH_fail@example.com": "failed"}}
	job := NewAutoDebit(db, gateway, services.NewReconciler(db), nil)

	plan := seedAutoPlan(t, db, "fail@example.com", planSeed{
		preference: models.PaymentPreferenceAutomatic,
		status:     models.PlanStatusActive,
		bindMethod: true,
		dueOffset:  -time.Hour,
	})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var paid int64
	db.Model(&models.Installment{}).
		Where("plan_id = ? AND status = ?", plan.ID, models.InstallmentStatusPaid).
		Count(&paid)
	if paid != 0 {
		t.Errorf("paid installments = %d; want 0 after failed charge", paid)
	}
}

func TestAutoDebitGatewayErrorDoesNotAbortBatch(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{err: errors.New("gateway down")}
	job := NewAutoDebit(db, gateway, services.NewReconciler(db), nil)

	seedAutoPlan(t, db, "one@example.com", planSeed{
		preference: models.PaymentPreferenceAutomatic,
		status:     models.PlanStatusActive,
		bindMethod: true,
		dueOffset:  -time.Hour,
	})
	seedAutoPlan(t, db, "two@example.com", planSeed{
		preference: models.PaymentPreferenceAutomatic,
		status:     models.PlanStatusActive,
		bindMethod: true,
		dueOffset:  -time.Hour,
	})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	// Both installments were attempted despite every charge failing
	if calls := gateway.chargeCalls(); len(calls) != 2 {
		t.Errorf("gateway charged %d times; want 2", len(calls))
	}
}

func TestAutoDebitSkipsPlanWithoutInstrument(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	job := NewAutoDebit(db, gateway, services.NewReconciler(db), nil)

	seedAutoPlan(t, db, "nocard@example.com", planSeed{
		preference: models.PaymentPreferenceAutomatic,
		status:     models.PlanStatusActive,
		bindMethod: false,
		dueOffset:  -time.Hour,
	})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if calls := gateway.chargeCalls(); len(calls) != 0 {
		t.Errorf("gateway charged %d times; want 0", len(calls))
	}
}

func TestAutoDebitSkipsInstallmentSettledMidCycle(t *testing.T) {
	db := newTestDB(t)
	reconciler := services.NewReconciler(db)
	gateway := &fakeGateway{}
	job := NewAutoDebit(db, gateway, reconciler, nil)

	user := models.User{Name: "Race User", Email: "race@example.com", FirebaseUID: "uid-race"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	pack := models.FoodPack{Name: "Pack", Price: 30000, IsActive: true}
	if err := db.Create(&pack).Error; err != nil {
		t.Fatalf("failed to seed food pack: %v", err)
	}
	method := models.PaymentMethod{UserID: user.ID, AuthorizationCode: "AUTH_race", IsDefault: true}
	if err := db.Create(&method).Error; err != nil {
		t.Fatalf("failed to seed payment method: %v", err)
	}
	plan := models.SavingsPlan{
		Reference:         "plan-race",
		UserID:            user.ID,
		FoodPackID:        pack.ID,
		TotalAmount:       30000,
		Duration:          3,
		StartDate:         time.Now().AddDate(0, -2, 0),
		Status:            models.PlanStatusActive,
		PaymentPreference: models.PaymentPreferenceAutomatic,
		PaymentFrequency:  models.PaymentFrequencyMonthly,
		PaymentMethodID:   &method.ID,
	}
	if err := db.Create(&plan).Error; err != nil {
		t.Fatalf("failed to seed plan: %v", err)
	}
	dueDates := []time.Time{
		time.Now().Add(-2 * time.Hour),
		time.Now().Add(-time.Hour),
		time.Now().AddDate(0, 1, 0),
	}
	for _, due := range dueDates {
		installment := models.Installment{PlanID: plan.ID, DueDate: due, Amount: 10000, Status: models.InstallmentStatusPending}
		if err := db.Create(&installment).Error; err != nil {
			t.Fatalf("failed to seed installment: %v", err)
		}
	}

	// A webhook settles the earliest installment while the first charge
	// is still in flight
	gateway.onCharge = func() {
		if _, err := reconciler.ApplyPayment(context.Background(), plan.ID, 10000, "webhook-race"); err != nil {
			t.Errorf("racing payment failed: %v", err)
		}
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// The charge rolled onto the second due installment; the now-settled
	// second entry of the batch must not trigger another charge
	if calls := gateway.chargeCalls(); len(calls) != 1 {
		t.Fatalf("gateway charged %d times; want 1", len(calls))
	}

	var future models.Installment
	if err := db.Where("plan_id = ?", plan.ID).Order("due_date desc").First(&future).Error; err != nil {
		t.Fatalf("failed to load future installment: %v", err)
	}
	if future.Status != models.InstallmentStatusPending {
		t.Errorf("future installment status = %q; want %q", future.Status, models.InstallmentStatusPending)
	}

	var reloaded models.SavingsPlan
	if err := db.First(&reloaded, plan.ID).Error; err != nil {
		t.Fatalf("failed to reload plan: %v", err)
	}
	if reloaded.AmountPaid != 20000 {
		t.Errorf("plan amount paid = %v; want 20000", reloaded.AmountPaid)
	}
}

func TestAutoDebitFallsBackToDefaultInstrument(t *testing.T) {
	db := newTestDB(t)
	gateway := &fakeGateway{}
	job := NewAutoDebit(db, gateway, services.NewReconciler(db), nil)

	plan := seedAutoPlan(t, db, "fallback@example.com", planSeed{
		preference: models.PaymentPreferenceAutomatic,
		status:     models.PlanStatusActive,
		bindMethod: false,
		dueOffset:  -time.Hour,
	})

	// The plan has no bound method, but the user stored a default card
	method := models.PaymentMethod{
		UserID:            plan.UserID,
		AuthorizationCode: "AUTH_default",
		IsDefault:         true,
	}
	if err := db.Create(&method).Error; err != nil {
		t.Fatalf("failed to seed payment method: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	calls := gateway.chargeCalls()
	if len(calls) != 1 {
		t.Fatalf("gateway charged %d times; want 1", len(calls))
	}
	if calls[0].AuthorizationCode != "AUTH_default" {
		t.Errorf("charged authorization = %q; want AUTH_default", calls[0].AuthorizationCode)
	}
}
