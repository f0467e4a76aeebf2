package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"plaza-bot/internal/faults"
)

// Yookassa is the redirect-charge gateway: the charge is created
// synchronously, the user pays through a redirect URL and the result is
// confirmed either by polling or by the webhook.
type Yookassa struct {
	ShopID     string
	SecretKey  string
	APIURL     string
	ReturnURL  string
	HTTPClient *http.Client
}

func NewYookassa(shopID, secretKey, returnURL string) *Yookassa {
	return &Yookassa{
		ShopID:    shopID,
		SecretKey: secretKey,
		APIURL:    "https://api.yookassa.ru/v3",
		ReturnURL: returnURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Yookassa) CreateCharge(ctx context.Context, userID int64, amount float64, description string) (string, string, error) {
	value := fmt.Sprintf("%.2f", amount)

	reqBody := CreatePaymentRequest{
		Amount:  Amount{Value: value, Currency: "RUB"},
		Capture: true,
		Confirmation: Confirmation{
			Type:      "redirect",
			ReturnURL: c.ReturnURL,
		},
		Description: description,
		Receipt:     buildReceipt(userID, description, value),
		Metadata: map[string]string{
			"user_id": strconv.FormatInt(userID, 10),
		},
	}

	respBody, err := c.do(ctx, http.MethodPost, "/payments", reqBody)
	if err != nil {
		return "", "", err
	}

	var paymentResponse PaymentResponse
	if err := json.Unmarshal(respBody, &paymentResponse); err != nil {
		return "", "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return paymentResponse.Confirmation.ConfirmationURL, paymentResponse.ID, nil
}

func (c *Yookassa) Poll(ctx context.Context, chargeID string) (Status, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/payments/"+chargeID, nil)
	if err != nil {
		return StatusUnknown, err
	}

	var paymentResponse PaymentResponse
	if err := json.Unmarshal(respBody, &paymentResponse); err != nil {
		return StatusUnknown, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if paymentResponse.Status == "succeeded" {
		return StatusPaid, nil
	}
	return StatusPending, nil
}

func (c *Yookassa) do(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIURL+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Idempotence-Key", uuid.New().String())
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.ShopID, c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, faults.Unavailablef("gateway request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, faults.Unavailablef("gateway error: %s (status: %d)", string(respBody), resp.StatusCode)
	}

	return respBody, nil
}

func buildReceipt(userID int64, description, value string) *Receipt {
	r := &Receipt{}
	r.Customer.Email = fmt.Sprintf("user%d@vpnbot.ru", userID)
	r.Items = []ReceiptItem{
		{
			Description:    description,
			Quantity:       "1.00",
			Amount:         Amount{Value: value, Currency: "RUB"},
			VatCode:        1,
			PaymentMode:    "full_payment",
			PaymentSubject: "service",
		},
	}
	return r
}
