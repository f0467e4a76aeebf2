package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plaza-bot/internal/models"
)

func TestExtractReferrerID(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		userID int64
		want   *int64
	}{
		{"deep link", "/start ref_42", 100, ptr(42)},
		{"plain start", "/start", 100, nil},
		{"foreign payload", "/start promo2024", 100, nil},
		{"garbage id", "/start ref_abc", 100, nil},
		{"self referral", "/start ref_100", 100, nil},
		{"empty", "", 100, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractReferrerID(tt.text, tt.userID)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func ptr(v int64) *int64 { return &v }

func TestProtocolName(t *testing.T) {
	assert.Equal(t, "WireGuard", protocolName(models.ProtocolWireguard))
	assert.Equal(t, "V2Ray", protocolName(models.ProtocolVless))
	assert.Equal(t, "WireGuard", protocolName(""))
}

func TestFormatSubscriptionList(t *testing.T) {
	assert.Contains(t, formatSubscriptionList("Пробные", nil), "Пока пусто")

	subs := []models.Subscription{
		{UserID: 100, EndDate: time.Now().AddDate(0, 0, 5), Active: true},
		{UserID: 200, EndDate: time.Now().AddDate(0, 0, -1), Active: true},
	}
	out := formatSubscriptionList("Пробные", subs)
	assert.Contains(t, out, "#100")
	assert.Contains(t, out, "❌ #200", "stale rows are shown as expired")

	// Long lists get truncated, not dumped wholesale.
	long := make([]models.Subscription, 30)
	for i := range long {
		long[i] = models.Subscription{UserID: int64(i), EndDate: time.Now(), Active: true}
	}
	assert.Contains(t, formatSubscriptionList("Все", long), "еще 10")
}

func TestMethodName(t *testing.T) {
	assert.Equal(t, "💳 ЮКасса", methodName(models.PaymentMethodYookassa))
	assert.Equal(t, "⭐ Stars", methodName(models.PaymentMethodStars))
	assert.Equal(t, "balance", methodName("balance"))
}
