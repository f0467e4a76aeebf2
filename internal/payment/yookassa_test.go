package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plaza-bot/internal/faults"
)

func TestYookassaCreateCharge(t *testing.T) {
	var got CreatePaymentRequest
	var idemKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "shop-1", user)
		assert.Equal(t, "sk-secret", pass)

		idemKey = r.Header.Get("Idempotence-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(PaymentResponse{
			ID:     "pay-123",
			Status: "pending",
			Confirmation: Confirmation{
				Type:            "redirect",
				ConfirmationURL: "https://yookassa.example/confirm/pay-123",
			},
		})
	}))
	defer srv.Close()

	c := NewYookassa("shop-1", "sk-secret", "https://t.me/bot")
	c.APIURL = srv.URL

	redirectURL, chargeID, err := c.CreateCharge(context.Background(), 100, 255, "VPN на месяц")
	require.NoError(t, err)

	assert.Equal(t, "https://yookassa.example/confirm/pay-123", redirectURL)
	assert.Equal(t, "pay-123", chargeID)
	assert.NotEmpty(t, idemKey, "every create carries a fresh idempotence key")

	assert.Equal(t, "255.00", got.Amount.Value)
	assert.Equal(t, "RUB", got.Amount.Currency)
	assert.True(t, got.Capture)
	assert.Equal(t, "redirect", got.Confirmation.Type)
	assert.Equal(t, "https://t.me/bot", got.Confirmation.ReturnURL)
	assert.Equal(t, "100", got.Metadata["user_id"])
	require.NotNil(t, got.Receipt)
	require.Len(t, got.Receipt.Items, 1)
	assert.Equal(t, "255.00", got.Receipt.Items[0].Amount.Value)
}

func TestYookassaPoll(t *testing.T) {
	status := "pending"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/pay-123", r.URL.Path)
		json.NewEncoder(w).Encode(PaymentResponse{ID: "pay-123", Status: status})
	}))
	defer srv.Close()

	c := NewYookassa("shop-1", "sk-secret", "https://t.me/bot")
	c.APIURL = srv.URL

	got, err := c.Poll(context.Background(), "pay-123")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got)

	status = "succeeded"
	got, err = c.Poll(context.Background(), "pay-123")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got)
}

func TestYookassaGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"error"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewYookassa("shop-1", "bad-key", "https://t.me/bot")
	c.APIURL = srv.URL

	_, _, err := c.CreateCharge(context.Background(), 100, 255, "VPN")
	assert.ErrorIs(t, err, faults.ErrUnavailable)

	_, err = c.Poll(context.Background(), "pay-123")
	assert.ErrorIs(t, err, faults.ErrUnavailable)
}

func TestYookassaGatewayDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewYookassa("shop-1", "sk-secret", "https://t.me/bot")
	c.APIURL = srv.URL

	_, _, err := c.CreateCharge(context.Background(), 100, 255, "VPN")
	assert.ErrorIs(t, err, faults.ErrUnavailable)
}
