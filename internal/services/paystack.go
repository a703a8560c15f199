package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Gateway abstracts the payment gateway the platform reconciles against.
// Implementations must report amounts in the plan's decimal currency
// unit, not the gateway's minor units.
type Gateway interface {
	// VerifyTransaction confirms a payment reference with the gateway
	VerifyTransaction(ctx context.Context, reference string) (*GatewayTransaction, error)

	// ChargeAuthorization charges a stored instrument without user
	// interaction, using a caller-generated reference
	ChargeAuthorization(ctx context.Context, email, authorizationCode string, amount float64, reference string) (*GatewayCharge, error)
}

// GatewayTransaction is the verified state of a gateway transaction
type GatewayTransaction struct {
	Status            string
	Amount            float64
	Reference         string
	Channel           string
	AuthorizationCode string
	Last4             string
	Bank              string
	CardType          string
	CustomerEmail     string
}

// GatewayCharge is the result of charging a stored instrument
type GatewayCharge struct {
	Status    string
	Reference string
}

// PaystackService talks to the Paystack REST API
type PaystackService struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewPaystackService() *PaystackService {
	url := os.Getenv("PAYSTACK_BASE_URL")
	if url == "" {
		url = "https://api.paystack.co"
	}
	return &PaystackService{
		baseURL:   url,
		secretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// paystackEnvelope is the common wrapper of Paystack API responses
type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackTransactionData struct {
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	Amount        int64  `json:"amount"` // minor units
	Channel       string `json:"channel"`
	Authorization struct {
		AuthorizationCode string `json:"authorization_code"`
		Last4             string `json:"last4"`
		Bank              string `json:"bank"`
		CardType          string `json:"card_type"`
		Reusable          bool   `json:"reusable"`
	} `json:"authorization"`
	Customer struct {
		Email string `json:"email"`
	} `json:"customer"`
}

func (s *PaystackService) makeRequest(ctx context.Context, method, endpoint string, payload interface{}) (*paystackEnvelope, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s%s", s.baseURL, endpoint), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.secretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !envelope.Status {
		return nil, fmt.Errorf("gateway rejected request: %s", envelope.Message)
	}

	return &envelope, nil
}

// VerifyTransaction confirms a payment reference with Paystack
func (s *PaystackService) VerifyTransaction(ctx context.Context, reference string) (*GatewayTransaction, error) {
	envelope, err := s.makeRequest(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, &GatewayError{Op: "verify", Err: err}
	}

	var data paystackTransactionData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, &GatewayError{Op: "verify", Err: fmt.Errorf("failed to decode transaction data: %w", err)}
	}

	return &GatewayTransaction{
		Status:            data.Status,
		Amount:            float64(data.Amount) / 100,
		Reference:         data.Reference,
		Channel:           data.Channel,
		AuthorizationCode: data.Authorization.AuthorizationCode,
		Last4:             data.Authorization.Last4,
		Bank:              data.Authorization.Bank,
		CardType:          data.Authorization.CardType,
		CustomerEmail:     data.Customer.Email,
	}, nil
}

// ChargeAuthorization charges a stored instrument via Paystack
func (s *PaystackService) ChargeAuthorization(ctx context.Context, email, authorizationCode string, amount float64, reference string) (*GatewayCharge, error) {
	payload := map[string]interface{}{
		"email":              email,
		"authorization_code": authorizationCode,
		"amount":             int64(amount * 100), // minor units
		"reference":          reference,
	}

	envelope, err := s.makeRequest(ctx, http.MethodPost, "/transaction/charge_authorization", payload)
	if err != nil {
		return nil, &GatewayError{Op: "charge", Err: err}
	}

	var data paystackTransactionData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, &GatewayError{Op: "charge", Err: fmt.Errorf("failed to decode charge data: %w", err)}
	}

	return &GatewayCharge{
		Status:    data.Status,
		Reference: data.Reference,
	}, nil
}

// VerifyWebhookSignature checks the x-paystack-signature header: an
// HMAC-SHA512 of the raw payload keyed with the secret key. Events with
// an invalid signature must be rejected before any business logic runs.
func VerifyWebhookSignature(secret string, signature string, rawPayload []byte) bool {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(rawPayload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
