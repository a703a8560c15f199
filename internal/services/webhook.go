package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"gorm.io/gorm"

	"foodstash_app_echo/internal/metrics"
	"foodstash_app_echo/internal/models"
)

// WebhookPayload mirrors the gateway's charge event envelope
type WebhookPayload struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

type WebhookData struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"` // minor units
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
	Authorization struct {
		AuthorizationCode string `json:"authorization_code"`
		Last4             string `json:"last4"`
		Bank              string `json:"bank"`
		CardType          string `json:"card_type"`
		Reusable          bool   `json:"reusable"`
	} `json:"authorization"`
	Metadata struct {
		CustomFields []WebhookCustomField `json:"custom_fields"`
	} `json:"metadata"`
}

// WebhookCustomField is one loosely-typed metadata entry. Values arrive
// as strings or numbers depending on how the checkout was built.
type WebhookCustomField struct {
	DisplayName  string      `json:"display_name"`
	VariableName string      `json:"variable_name"`
	Value        interface{} `json:"value"`
}

// chargeIntent is the strongly-typed form of the webhook metadata. The
// untyped custom_fields map never travels past parseChargeIntent.
type chargeIntent struct {
	FoodPackID  uint
	Frequency   models.PaymentFrequency
	IsAutomatic bool
	ScheduleID  *uint
}

func fieldString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func parseChargeIntent(data WebhookData) (chargeIntent, error) {
	fields := make(map[string]string, len(data.Metadata.CustomFields))
	for _, f := range data.Metadata.CustomFields {
		fields[f.VariableName] = fieldString(f.Value)
	}

	intent := chargeIntent{
		Frequency:   models.PaymentFrequency(fields["payment_frequency"]),
		IsAutomatic: fields["is_automatic"] == "true" || fields["payment_type"] == "automatic",
	}

	if raw, ok := fields["food_pack"]; ok && raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return intent, fmt.Errorf("invalid food_pack %q: %w", raw, err)
		}
		intent.FoodPackID = uint(id)
	}

	if raw, ok := fields["schedule_id"]; ok && raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return intent, fmt.Errorf("invalid schedule_id %q: %w", raw, err)
		}
		scheduleID := uint(id)
		intent.ScheduleID = &scheduleID
	}

	return intent, nil
}

// WebhookDispatcher classifies inbound gateway events and routes them to
// plan creation or payment reconciliation, enforcing idempotency on both
// paths. Every delivery is appended to the gateway event audit log.
type WebhookDispatcher struct {
	db            *gorm.DB
	plans         *PlanService
	reconciler    *Reconciler
	confirmations *ConfirmationDispatcher
	cache         *RedisCache // optional; nil skips the distributed lock
}

func NewWebhookDispatcher(db *gorm.DB, plans *PlanService, reconciler *Reconciler, confirmations *ConfirmationDispatcher, cache *RedisCache) *WebhookDispatcher {
	return &WebhookDispatcher{
		db:            db,
		plans:         plans,
		reconciler:    reconciler,
		confirmations: confirmations,
		cache:         cache,
	}
}

// HandleEvent processes one raw, signature-verified webhook delivery and
// returns the recorded outcome. Duplicate and ignored deliveries are
// not errors; the caller acknowledges them to stop gateway retries.
func (d *WebhookDispatcher) HandleEvent(ctx context.Context, raw []byte) (models.GatewayEventOutcome, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		d.record(payload, raw, models.GatewayEventFailed)
		return models.GatewayEventFailed, fmt.Errorf("invalid webhook payload: %w", err)
	}

	outcome, err := d.process(ctx, payload)
	d.record(payload, raw, outcome)
	return outcome, err
}

func (d *WebhookDispatcher) process(ctx context.Context, payload WebhookPayload) (models.GatewayEventOutcome, error) {
	if payload.Event != "charge.success" {
		log.Printf("Ignoring gateway event %q (reference %s)", payload.Event, payload.Data.Reference)
		return models.GatewayEventIgnored, nil
	}

	intent, err := parseChargeIntent(payload.Data)
	if err != nil {
		return models.GatewayEventFailed, err
	}

	amount := float64(payload.Data.Amount) / 100

	if intent.ScheduleID != nil {
		return d.applyToInstallment(ctx, *intent.ScheduleID, amount, payload.Data)
	}
	return d.createPlanFromCharge(ctx, intent, amount, payload.Data)
}

// applyToInstallment settles an existing installment. An installment
// that is already paid means the gateway re-delivered the event: the
// duplicate is discarded with no side effects.
func (d *WebhookDispatcher) applyToInstallment(ctx context.Context, installmentID uint, amount float64, data WebhookData) (models.GatewayEventOutcome, error) {
	var installment models.Installment
	if err := d.db.WithContext(ctx).First(&installment, installmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.GatewayEventFailed, fmt.Errorf("%w: installment %d", ErrNotFound, installmentID)
		}
		return models.GatewayEventFailed, err
	}

	if installment.Status == models.InstallmentStatusPaid {
		log.Printf("Installment %d already paid, discarding duplicate delivery %s", installmentID, data.Reference)
		return models.GatewayEventDuplicate, nil
	}

	applied, err := d.reconciler.ApplyPayment(ctx, installment.PlanID, amount, data.Reference)
	if err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			return models.GatewayEventDuplicate, nil
		}
		return models.GatewayEventFailed, err
	}

	d.enqueueConfirmation(applied, amount, data.Customer.Email)
	return models.GatewayEventApplied, nil
}

// createPlanFromCharge handles an event with no schedule_id: the first
// payment of a brand-new plan. Two near-simultaneous deliveries for the
// same payer are serialized by a short Redis lock; the same-calendar-day
// heuristic then discards the replay.
func (d *WebhookDispatcher) createPlanFromCharge(ctx context.Context, intent chargeIntent, amount float64, data WebhookData) (models.GatewayEventOutcome, error) {
	var user models.User
	if err := d.db.WithContext(ctx).Where("email = ?", data.Customer.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.GatewayEventFailed, fmt.Errorf("%w: no user for payer %s", ErrNotFound, data.Customer.Email)
		}
		return models.GatewayEventFailed, err
	}

	if d.cache != nil {
		lockKey := "webhook:payer:" + data.Customer.Email
		ok, err := d.cache.AcquireLock(ctx, lockKey, 30*time.Second)
		if err != nil {
			log.Printf("Webhook payer lock unavailable, continuing with transactional guard: %v", err)
		} else if !ok {
			log.Printf("Concurrent delivery for payer %s, discarding", data.Customer.Email)
			return models.GatewayEventDuplicate, nil
		} else {
			defer func() {
				_ = d.cache.ReleaseLock(context.WithoutCancel(ctx), lockKey)
			}()
		}
	}

	paidToday, err := d.plans.UserPaidToday(ctx, user.ID, time.Now())
	if err != nil {
		return models.GatewayEventFailed, err
	}
	if paidToday {
		log.Printf("Payer %s already recorded a plan payment today, discarding duplicate delivery %s", data.Customer.Email, data.Reference)
		return models.GatewayEventDuplicate, nil
	}

	var pack models.FoodPack
	if err := d.db.WithContext(ctx).First(&pack, intent.FoodPackID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.GatewayEventFailed, fmt.Errorf("%w: food pack %d", ErrNotFound, intent.FoodPackID)
		}
		return models.GatewayEventFailed, err
	}

	duration := deriveDuration(pack.Price, amount, intent.Frequency)

	preference := models.PaymentPreferenceManual
	var paymentMethodID *uint
	if intent.IsAutomatic {
		preference = models.PaymentPreferenceAutomatic
		if data.Authorization.Reusable && data.Authorization.AuthorizationCode != "" {
			if method, err := d.storeInstrument(ctx, user.ID, data); err != nil {
				log.Printf("Failed to store payment instrument for user %d: %v", user.ID, err)
			} else {
				paymentMethodID = &method.ID
			}
		}
	}

	plan, err := d.plans.CreatePlan(ctx, CreatePlanInput{
		UserID:                user.ID,
		FoodPackID:            pack.ID,
		TotalAmount:           pack.Price,
		Duration:              duration,
		StartDate:             time.Now(),
		Frequency:             intent.Frequency,
		Preference:            preference,
		PaymentMethodID:       paymentMethodID,
		RemindersEnabled:      true,
		FirstPaymentReference: data.Reference,
	})
	if err != nil {
		return models.GatewayEventFailed, err
	}

	log.Printf("Created plan %d for payer %s from gateway charge %s", plan.ID, data.Customer.Email, data.Reference)
	return models.GatewayEventApplied, nil
}

// deriveDuration recovers the plan duration in months from the pack
// price and the charged installment amount, given the frequency's
// installments-per-month factor.
func deriveDuration(price, installmentAmount float64, frequency models.PaymentFrequency) int {
	if installmentAmount <= 0 {
		return 1
	}

	installments := int(math.Round(price / installmentAmount))
	if installments < 1 {
		installments = 1
	}

	perMonth := 1
	switch frequency {
	case models.PaymentFrequencyDaily:
		perMonth = 30
	case models.PaymentFrequencyWeekly:
		perMonth = 4
	}

	duration := installments / perMonth
	if duration < 1 {
		duration = 1
	}
	return duration
}

func (d *WebhookDispatcher) storeInstrument(ctx context.Context, userID uint, data WebhookData) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND authorization_code = ?", userID, data.Authorization.AuthorizationCode).
		First(&method).Error
	if err == nil {
		return &method, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	method = models.PaymentMethod{
		UserID:            userID,
		AuthorizationCode: data.Authorization.AuthorizationCode,
		Last4:             data.Authorization.Last4,
		Bank:              data.Authorization.Bank,
		CardType:          data.Authorization.CardType,
	}
	if err := d.db.WithContext(ctx).Create(&method).Error; err != nil {
		return nil, err
	}
	return &method, nil
}

func (d *WebhookDispatcher) enqueueConfirmation(applied *AppliedPayment, amount float64, fallbackEmail string) {
	if d.confirmations == nil {
		return
	}

	var user models.User
	var pack models.FoodPack
	email := fallbackEmail
	name := ""
	if err := d.db.First(&user, applied.Plan.UserID).Error; err == nil {
		email = user.Email
		name = user.Name
	}
	_ = d.db.First(&pack, applied.Plan.FoodPackID).Error

	d.confirmations.Enqueue(ConfirmationMessage{
		To:          email,
		Name:        name,
		FoodPack:    pack.Name,
		Amount:      amount,
		AmountPaid:  applied.Plan.AmountPaid,
		TotalAmount: applied.Plan.TotalAmount,
		Completed:   applied.Plan.Status == models.PlanStatusCompleted,
	})
}

func (d *WebhookDispatcher) record(payload WebhookPayload, raw []byte, outcome models.GatewayEventOutcome) {
	event := models.GatewayEvent{
		Gateway:   models.PaymentGatewayPaystack,
		EventType: payload.Event,
		Reference: payload.Data.Reference,
		Outcome:   outcome,
		Payload:   json.RawMessage(raw),
	}
	if err := d.db.Create(&event).Error; err != nil {
		log.Printf("Failed to record gateway event %s: %v", payload.Data.Reference, err)
	}

	metrics.WebhookEvents.WithLabelValues(string(outcome)).Inc()
}
