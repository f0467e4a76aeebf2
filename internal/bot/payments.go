package bot

import (
	"fmt"
	"log"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"plaza-bot/internal/models"
	"plaza-bot/internal/payment"
)

func (b *Bot) handlePaymentMenu(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	text := fmt.Sprintf("💳 Оплата подписки: %.0f₽\n\n📅 Срок: %d дней\n\nВыберите способ оплаты:",
		b.Cfg.SubscriptionPrice, b.Cfg.SubscriptionDays)
	b.send(ctx, callback.From.ID, text, paymentKeyboard())
	return b.answer(ctx, callback.ID)
}

func (b *Bot) handlePayYookassa(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	userID := callback.From.ID

	description := fmt.Sprintf("Подписка VPN на %d дней", b.Cfg.SubscriptionDays)
	paymentURL, chargeID, err := b.Coord.StartCharge(ctx.Context(), userID, models.PaymentMethodYookassa, description)
	if err != nil {
		log.Printf("Failed to create charge for user %d: %v", userID, err)
		b.send(ctx, userID, "❌ Ошибка создания платежа. Попробуйте позже.", mainKeyboard())
		return b.answer(ctx, callback.ID)
	}

	b.Sessions.SetPendingCharge(ctx.Context(), userID, chargeID)

	text := fmt.Sprintf("💳 Оплата подписки: %.0f₽\n\n📅 Срок: %d дней\n\n"+
		"Перейдите по ссылке для оплаты:\n%s\n\nПосле оплаты нажмите /check_payment для проверки.",
		b.Cfg.SubscriptionPrice, b.Cfg.SubscriptionDays, paymentURL)
	b.send(ctx, userID, text, mainKeyboard())
	return b.answer(ctx, callback.ID)
}

func (b *Bot) handleCheckPayment(ctx *th.Context, update telego.Update) error {
	userID := update.Message.From.ID

	chargeID := b.Sessions.PendingCharge(ctx.Context(), userID)
	if chargeID == "" {
		b.send(ctx, userID, "❌ Нет ожидающих платежей.", mainKeyboard())
		return nil
	}

	status, _, err := b.Coord.CheckCharge(ctx.Context(), chargeID)
	if err != nil {
		log.Printf("Charge check failed for %s: %v", chargeID, err)
		b.send(ctx, userID, "⏳ Оплата получена, но настройка VPN не завершилась. Обратитесь в поддержку.", mainKeyboard())
		return nil
	}

	if status != payment.StatusPaid {
		b.send(ctx, userID, "⏳ Платеж еще не обработан. Подождите немного и попробуйте снова.", mainKeyboard())
		return nil
	}

	b.Sessions.ClearPendingCharge(ctx.Context(), userID)
	b.send(ctx, userID,
		fmt.Sprintf("✅ Платеж успешно обработан!\n\n🎉 Подписка активирована на %d дней!\n\n"+
			"Используйте кнопку «Настроить VPN» для получения ключа.", b.Cfg.SubscriptionDays),
		mainKeyboard())
	return nil
}

func (b *Bot) handlePayStars(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	userID := callback.From.ID

	description := fmt.Sprintf("Подписка VPN на %d дней", b.Cfg.SubscriptionDays)
	_, chargeID, err := b.Coord.StartCharge(ctx.Context(), userID, models.PaymentMethodStars, description)
	if err != nil {
		log.Printf("Failed to create stars charge for user %d: %v", userID, err)
		b.send(ctx, userID, "❌ Ошибка создания платежа. Попробуйте позже.", mainKeyboard())
		return b.answer(ctx, callback.ID)
	}

	b.Sessions.SetPendingCharge(ctx.Context(), userID, chargeID)
	return b.answer(ctx, callback.ID)
}

// handlePreCheckout always accepts: this is the platform's protocol
// handshake, not a business decision.
func (b *Bot) handlePreCheckout(ctx *th.Context, update telego.Update) error {
	query := update.PreCheckoutQuery
	err := ctx.Bot().AnswerPreCheckoutQuery(ctx.Context(), &telego.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: query.ID,
		Ok:                 true,
	})
	if err != nil {
		log.Printf("Failed to answer pre-checkout query %s: %v", query.ID, err)
	}
	return nil
}

func (b *Bot) handleSuccessfulPayment(ctx *th.Context, update telego.Update) error {
	message := update.Message
	userID := message.From.ID
	chargeID := message.SuccessfulPayment.InvoicePayload

	_, err := b.Coord.HandlePaymentConfirmed(ctx.Context(), chargeID)
	if err != nil {
		log.Printf("Failed to process stars charge %s: %v", chargeID, err)
		b.send(ctx, userID, "⏳ Оплата получена, но настройка VPN не завершилась. Обратитесь в поддержку.", mainKeyboard())
		return nil
	}

	b.Sessions.ClearPendingCharge(ctx.Context(), userID)

	pref, _ := b.Ledger.GetPreference(userID)
	_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
		tu.ID(userID),
		fmt.Sprintf("✅ Оплата Stars успешно обработана!\n\n🎉 Подписка продлена на %d дней!\n\n"+
			"Протокол: %s\n\nИспользуйте кнопку «Настроить VPN» для получения ключа.",
			b.Cfg.SubscriptionDays, protocolName(pref.Protocol)),
	).WithReplyMarkup(mainKeyboard()))
	return nil
}
