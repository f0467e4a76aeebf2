package bot

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"plaza-bot/internal/models"
)

func (b *Bot) isAdmin(userID int64) bool {
	return b.Cfg.AdminID != 0 && userID == b.Cfg.AdminID
}

func (b *Bot) handleAdmin(ctx *th.Context, update telego.Update) error {
	userID := update.Message.From.ID
	if !b.isAdmin(userID) {
		b.send(ctx, userID, "❌ У вас нет доступа к админ-панели.", nil)
		return nil
	}
	b.send(ctx, userID, "🔐 Админ-панель\n\nВыберите действие:", adminKeyboard())
	return nil
}

func (b *Bot) handleAdminStats(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	if !b.isAdmin(callback.From.ID) {
		return b.answer(ctx, callback.ID)
	}

	totalUsers, _ := b.Ledger.CountUsers()
	activeSubs, _ := b.Ledger.CountActiveSubscriptions()
	totalRevenue, _ := b.Ledger.TotalRevenue()

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Общая статистика\n\n")
	fmt.Fprintf(&sb, "👥 Всего пользователей: %d\n", totalUsers)
	fmt.Fprintf(&sb, "✅ Активных подписок: %d\n", activeSubs)
	fmt.Fprintf(&sb, "💰 Общая выручка: %.2f₽\n", totalRevenue)

	revenue, err := b.Ledger.RevenueByMethod()
	if err != nil {
		log.Printf("Failed to load revenue stats: %v", err)
	} else if len(revenue) > 0 {
		fmt.Fprintf(&sb, "\nПо методам оплаты:\n")
		for _, row := range revenue {
			fmt.Fprintf(&sb, "%s: %d платежей, %.2f₽\n", methodName(row.Method), row.Count, row.Total)
		}
	}

	b.send(ctx, callback.From.ID, sb.String(), adminKeyboard())
	return b.answer(ctx, callback.ID)
}

func (b *Bot) handleAdminTrialUsers(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	if !b.isAdmin(callback.From.ID) {
		return b.answer(ctx, callback.ID)
	}

	subs, err := b.Ledger.TrialSubscriptions()
	if err != nil {
		log.Printf("Failed to load trial subscriptions: %v", err)
		return b.answer(ctx, callback.ID)
	}

	b.send(ctx, callback.From.ID, formatSubscriptionList("🎁 Пробный период", subs), adminKeyboard())
	return b.answer(ctx, callback.ID)
}

func (b *Bot) handleAdminPaidUsers(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	if !b.isAdmin(callback.From.ID) {
		return b.answer(ctx, callback.ID)
	}

	subs, err := b.Ledger.PaidSubscriptions()
	if err != nil {
		log.Printf("Failed to load paid subscriptions: %v", err)
		return b.answer(ctx, callback.ID)
	}

	b.send(ctx, callback.From.ID, formatSubscriptionList("💎 Платные подписки", subs), adminKeyboard())
	return b.answer(ctx, callback.ID)
}

func (b *Bot) handleAdminRecentPayments(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	if !b.isAdmin(callback.From.ID) {
		return b.answer(ctx, callback.ID)
	}

	payments, err := b.Ledger.RecentPayments(10)
	if err != nil {
		log.Printf("Failed to load recent payments: %v", err)
		return b.answer(ctx, callback.ID)
	}

	var sb strings.Builder
	sb.WriteString("💰 Последние платежи\n\n")
	if len(payments) == 0 {
		sb.WriteString("Платежей пока нет.")
	}
	for _, p := range payments {
		fmt.Fprintf(&sb, "#%d %.2f₽ %s (%s) — %s\n",
			p.UserID, p.Amount, methodName(p.Method), p.Status, p.CreatedAt.Format("02.01.2006 15:04"))
	}

	b.send(ctx, callback.From.ID, sb.String(), adminKeyboard())
	return b.answer(ctx, callback.ID)
}

func (b *Bot) handleAdminExpiringSoon(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	if !b.isAdmin(callback.From.ID) {
		return b.answer(ctx, callback.ID)
	}

	subs, err := b.Ledger.ExpiringSoon(3)
	if err != nil {
		log.Printf("Failed to load expiring subscriptions: %v", err)
		return b.answer(ctx, callback.ID)
	}

	var sb strings.Builder
	sb.WriteString("⏳ Истекают в ближайшие 3 дня\n\n")
	if len(subs) == 0 {
		sb.WriteString("Нет истекающих подписок.")
	}
	for _, sub := range subs {
		fmt.Fprintf(&sb, "#%d — до %s\n", sub.UserID, sub.EndDate.Format("02.01.2006 15:04"))
	}

	b.send(ctx, callback.From.ID, sb.String(), adminKeyboard())
	return b.answer(ctx, callback.ID)
}

func formatSubscriptionList(title string, subs []models.Subscription) string {
	var sb strings.Builder
	sb.WriteString(title + "\n\n")
	if len(subs) == 0 {
		sb.WriteString("Пока пусто.")
		return sb.String()
	}

	now := time.Now()
	shown := subs
	if len(shown) > 20 {
		shown = shown[:20]
	}
	for _, sub := range shown {
		status := "✅"
		if !sub.Active || sub.EndDate.Before(now) {
			status = "❌"
		}
		fmt.Fprintf(&sb, "%s #%d — до %s\n", status, sub.UserID, sub.EndDate.Format("02.01.2006"))
	}
	if len(subs) > len(shown) {
		fmt.Fprintf(&sb, "\n… и еще %d", len(subs)-len(shown))
	}
	return sb.String()
}

func methodName(method string) string {
	switch method {
	case models.PaymentMethodYookassa:
		return "💳 ЮКасса"
	case models.PaymentMethodStars:
		return "⭐ Stars"
	}
	return method
}
