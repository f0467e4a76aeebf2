package webhook

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"plaza-bot/internal/coordinator"
	"plaza-bot/internal/ledger"
	"plaza-bot/internal/models"
	"plaza-bot/internal/payment"
	"plaza-bot/internal/provision"
)

type stubBackend struct {
	issued int
}

func (s *stubBackend) Issue(ctx context.Context, userID int64, pref models.Preference, durationDays int) (provision.Credential, error) {
	s.issued++
	return provision.Credential{Payload: "config", Handle: fmt.Sprintf("user_%d", userID)}, nil
}

func (s *stubBackend) Cleanup(ctx context.Context, handle string) error { return nil }

func setupServer(t *testing.T, allowedCIDRs []string) (*Server, *ledger.Ledger, *stubBackend) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	l, err := ledger.New(db)
	require.NoError(t, err)

	backend := &stubBackend{}
	coord := coordinator.New(l,
		map[string]provision.Backend{models.ProtocolWireguard: backend},
		map[string]payment.Gateway{},
		coordinator.Config{
			TrialDays:        3,
			SubscriptionDays: 30,
			NominalPrice:     255,
			ReferralPercent:  35,
			ProvisionTimeout: time.Second,
		})

	return NewServer(":0", coord, allowedCIDRs), l, backend
}

func postWebhook(s *Server, from, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/yookassa", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = from + ":34567"
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestWebhookProcessesSucceededPayment(t *testing.T) {
	s, l, backend := setupServer(t, []string{"127.0.0.0/8"})

	_, err := l.AddUser(100, "alice", nil)
	require.NoError(t, err)
	_, err = l.AddPayment(100, 255, "pay-123", models.PaymentMethodYookassa)
	require.NoError(t, err)

	w := postWebhook(s, "127.0.0.1",
		`{"type":"notification","event":"payment.succeeded","object":{"id":"pay-123","status":"succeeded","paid":true}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	p, err := l.GetPayment("pay-123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, p.Status)

	_, err = l.GetActiveSubscription(100)
	assert.NoError(t, err)
	assert.Equal(t, 1, backend.issued)
}

func TestWebhookReplayIsAbsorbed(t *testing.T) {
	s, l, backend := setupServer(t, []string{"127.0.0.0/8"})

	_, err := l.AddUser(100, "alice", nil)
	require.NoError(t, err)
	_, err = l.AddPayment(100, 255, "pay-123", models.PaymentMethodYookassa)
	require.NoError(t, err)

	body := `{"event":"payment.succeeded","object":{"id":"pay-123"}}`
	assert.Equal(t, http.StatusOK, postWebhook(s, "127.0.0.1", body).Code)
	assert.Equal(t, http.StatusOK, postWebhook(s, "127.0.0.1", body).Code)

	assert.Equal(t, 1, backend.issued, "retried delivery must not provision twice")
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	s, l, backend := setupServer(t, []string{"127.0.0.0/8"})

	_, err := l.AddUser(100, "alice", nil)
	require.NoError(t, err)
	_, err = l.AddPayment(100, 255, "pay-123", models.PaymentMethodYookassa)
	require.NoError(t, err)

	w := postWebhook(s, "127.0.0.1",
		`{"event":"payment.waiting_for_capture","object":{"id":"pay-123"}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	p, err := l.GetPayment("pay-123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.Zero(t, backend.issued)
}

func TestWebhookUnknownChargeStillAcknowledged(t *testing.T) {
	s, _, _ := setupServer(t, []string{"127.0.0.0/8"})

	w := postWebhook(s, "127.0.0.1", `{"event":"payment.succeeded","object":{"id":"nope"}}`)
	assert.Equal(t, http.StatusOK, w.Code, "unknown charge is logged, not retried by the gateway")
}

func TestWebhookRejectsBadJSON(t *testing.T) {
	s, _, _ := setupServer(t, []string{"127.0.0.0/8"})

	w := postWebhook(s, "127.0.0.1", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRejectsForeignAddresses(t *testing.T) {
	s, l, backend := setupServer(t, []string{"185.71.76.0/27"})

	_, err := l.AddUser(100, "alice", nil)
	require.NoError(t, err)
	_, err = l.AddPayment(100, 255, "pay-123", models.PaymentMethodYookassa)
	require.NoError(t, err)

	w := postWebhook(s, "203.0.113.9", `{"event":"payment.succeeded","object":{"id":"pay-123"}}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	p, err := l.GetPayment("pay-123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.Zero(t, backend.issued)
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := setupServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIsAllowedIP(t *testing.T) {
	cidrs := []string{"185.71.76.0/27", "77.75.153.0/25", "2a02:5180::/32"}

	tests := []struct {
		ip      string
		allowed bool
	}{
		{"185.71.76.5", true},
		{"77.75.153.100", true},
		{"2a02:5180::1", true},
		{"185.71.77.5", false},
		{"8.8.8.8", false},
		{"not-an-ip", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, isAllowedIP(tt.ip, cidrs), "ip %q", tt.ip)
	}
}
