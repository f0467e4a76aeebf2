package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Stars is the in-app token gateway. CreateCharge pushes an invoice to
// the user's client; confirmation never arrives by polling but as a
// successful-payment update carrying the invoice payload, after the
// platform's pre-checkout handshake was answered.
type Stars struct {
	Bot   *telego.Bot
	Price int // price in stars, fixed per subscription period
}

func NewStars(bot *telego.Bot, price int) *Stars {
	return &Stars{Bot: bot, Price: price}
}

func (s *Stars) CreateCharge(ctx context.Context, userID int64, amount float64, description string) (string, string, error) {
	chargeID := uuid.New().String()

	_, err := s.Bot.SendInvoice(ctx, &telego.SendInvoiceParams{
		ChatID:      tu.ID(userID),
		Title:       description,
		Description: description,
		Payload:     chargeID,
		Currency:    "XTR",
		Prices: []telego.LabeledPrice{
			{Label: description, Amount: s.Price},
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to send invoice: %w", err)
	}

	// No client reference: the invoice already sits in the chat.
	return "", chargeID, nil
}

// Poll cannot observe a Stars charge; the confirmation is push-only.
func (s *Stars) Poll(ctx context.Context, chargeID string) (Status, error) {
	return StatusUnknown, nil
}
