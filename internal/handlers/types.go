package handlers

import (
	"github.com/labstack/echo/v4"

	"foodstash_app_echo/internal/models"
)

// CreatePlanRequest opens a new savings plan for the authenticated user
type CreatePlanRequest struct {
	FoodPackID            uint    `json:"food_pack_id"`
	Duration              int     `json:"duration"`
	Frequency             string  `json:"frequency"`
	Preference            string  `json:"preference"`
	PaymentMethodID       *uint   `json:"payment_method_id"`
	RemindersEnabled      *bool   `json:"reminders_enabled"`
	StartDate             *string `json:"start_date"` // YYYY-MM-DD, defaults to today
	FirstPaymentReference string  `json:"first_payment_reference"`
}

// ManualPaymentRequest reports a gateway reference the customer paid
// outside the webhook flow; the reference is re-verified server side
type ManualPaymentRequest struct {
	Reference string `json:"reference"`
}

// AdminPaymentRequest records an admin-entered manual payment that
// never touched the gateway
type AdminPaymentRequest struct {
	Amount    float64 `json:"amount"`
	Reference string  `json:"reference"`
}

// CreatePaymentMethodRequest stores a new charge instrument. Reference
// points at a completed gateway charge whose authorization is reused.
type CreatePaymentMethodRequest struct {
	Reference   string `json:"reference"`
	MakeDefault bool   `json:"make_default"`
}

// CreateFoodPackRequest adds a catalog item (admin)
type CreateFoodPackRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

func currentUser(c echo.Context) (models.User, bool) {
	user, ok := c.Get("user").(models.User)
	return user, ok
}

func currentUserID(c echo.Context) uint {
	if id, ok := c.Get("userID").(uint); ok {
		return id
	}
	return 0
}

func isAdmin(c echo.Context) bool {
	user, ok := currentUser(c)
	return ok && user.UserType == models.UserTypeAdmin
}
