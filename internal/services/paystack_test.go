package services

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"testing"
)

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "sk_test_secret"
	payload := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)
	valid := signPayload(secret, payload)

	tests := []struct {
		name      string
		secret    string
		signature string
		payload   []byte
		expected  bool
	}{
		{name: "valid signature", secret: secret, signature: valid, payload: payload, expected: true},
		{name: "wrong secret", secret: "sk_test_other", signature: valid, payload: payload, expected: false},
		{name: "tampered payload", secret: secret, signature: valid, payload: []byte(`{"event":"charge.success","data":{"reference":"ref-2"}}`), expected: false},
		{name: "empty signature", secret: secret, signature: "", payload: payload, expected: false},
		{name: "garbage signature", secret: secret, signature: "zzzz", payload: payload, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := VerifyWebhookSignature(tt.secret, tt.signature, tt.payload)
			if result != tt.expected {
				t.Errorf("VerifyWebhookSignature() = %v; want %v", result, tt.expected)
			}
		})
	}
}
