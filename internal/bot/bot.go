// Package bot is the conversational front-end: it renders menus and
// forwards every business decision to the coordinator.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"plaza-bot/internal/config"
	"plaza-bot/internal/coordinator"
	"plaza-bot/internal/faults"
	"plaza-bot/internal/ledger"
)

type Bot struct {
	Instance *telego.Bot
	Coord    *coordinator.Coordinator
	Ledger   *ledger.Ledger
	Sessions *SessionStore
	Cfg      *config.Config
}

func NewBot(instance *telego.Bot, coord *coordinator.Coordinator, l *ledger.Ledger, sessions *SessionStore, cfg *config.Config) *Bot {
	return &Bot{
		Instance: instance,
		Coord:    coord,
		Ledger:   l,
		Sessions: sessions,
		Cfg:      cfg,
	}
}

func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.Instance.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.Instance, updates)
	if err != nil {
		return fmt.Errorf("failed to create bot handler: %w", err)
	}

	b.register(handler)

	log.Println("Bot handlers registered, polling for updates")
	handler.Start()
	return nil
}

func (b *Bot) register(handler *th.BotHandler) {
	handler.Handle(b.handleStart, th.CommandEqual("start"))
	handler.Handle(b.handleCheckPayment, th.CommandEqual("check_payment"))
	handler.Handle(b.handleAdmin, th.CommandEqual("admin"))

	handler.Handle(b.handleSetupVPN, th.CallbackDataEqual("setup_vpn"))
	handler.Handle(b.handleDeviceSelection, th.CallbackDataPrefix("device_"))
	handler.Handle(b.handleInstallApp, th.CallbackDataEqual("install_app"))
	handler.Handle(b.handleGetKey, th.CallbackDataEqual("get_key"))
	handler.Handle(b.handleRecreateConfig, th.CallbackDataEqual("recreate_config"))

	handler.Handle(b.handleChooseServer, th.CallbackDataEqual("choose_server"))
	handler.Handle(b.handleSelectServer, th.CallbackDataPrefix("select_server_"))
	handler.Handle(b.handleChooseProtocol, th.CallbackDataEqual("choose_protocol"))
	handler.Handle(b.handleSelectProtocol, th.CallbackDataPrefix("select_protocol_"))

	handler.Handle(b.handlePaymentMenu, th.CallbackDataEqual("pay_subscription"))
	handler.Handle(b.handlePayYookassa, th.CallbackDataEqual("pay_yookassa"))
	handler.Handle(b.handlePayStars, th.CallbackDataEqual("pay_stars"))

	handler.Handle(b.handleHelp, th.CallbackDataEqual("help"))
	handler.Handle(b.handleTerms, th.CallbackDataEqual("terms"))
	handler.Handle(b.handleMainMenu, th.CallbackDataEqual("main_menu"))

	handler.Handle(b.handleAdminStats, th.CallbackDataEqual("admin_stats"))
	handler.Handle(b.handleAdminTrialUsers, th.CallbackDataEqual("admin_trial_users"))
	handler.Handle(b.handleAdminPaidUsers, th.CallbackDataEqual("admin_paid_users"))
	handler.Handle(b.handleAdminRecentPayments, th.CallbackDataEqual("admin_recent_payments"))
	handler.Handle(b.handleAdminExpiringSoon, th.CallbackDataEqual("admin_expiring_soon"))

	handler.Handle(b.handlePreCheckout, func(ctx context.Context, update telego.Update) bool {
		return update.PreCheckoutQuery != nil
	})
	handler.Handle(b.handleSuccessfulPayment, func(ctx context.Context, update telego.Update) bool {
		return update.Message != nil && update.Message.SuccessfulPayment != nil
	})
}

func (b *Bot) handleStart(ctx *th.Context, update telego.Update) error {
	message := update.Message
	userID := message.From.ID
	username := message.From.Username
	if username == "" {
		username = message.From.FirstName
	}

	referrerID := extractReferrerID(message.Text, userID)

	if _, err := b.Ledger.AddUser(userID, username, referrerID); err != nil {
		log.Printf("Failed to register user %d: %v", userID, err)
	}

	refLink := b.referralLink(ctx.Context(), userID)

	_, err := b.Coord.ActivateTrial(ctx.Context(), userID)
	switch {
	case err == nil:
		text := fmt.Sprintf("Добро пожаловать в VPN бот!\n\n"+
			"🎁 Ваша тестовая подписка на %d дня активирована!\n\n"+
			"Нажмите «Настроить VPN», чтобы получить конфиг.\n\n"+
			"Пригласите друга и получите %.0f%% с его покупки!\n\nВаша реферальная ссылка:\n%s",
			b.Cfg.TrialDays, b.Cfg.ReferralPercent, refLink)
		b.send(ctx, message.Chat.ID, text, mainKeyboard())
	case errors.Is(err, faults.ErrAlreadyProcessed):
		b.sendReturningGreeting(ctx, message.Chat.ID, userID, refLink)
	default:
		log.Printf("Trial activation failed for user %d: %v", userID, err)
		b.send(ctx, message.Chat.ID,
			"Произошла ошибка при активации пробного периода. Попробуйте позже или обратитесь в поддержку.",
			mainKeyboard())
	}
	return nil
}

func (b *Bot) sendReturningGreeting(ctx *th.Context, chatID, userID int64, refLink string) {
	_, err := b.Ledger.GetActiveSubscription(userID)
	if err == nil {
		pref, _ := b.Ledger.GetPreference(userID)
		b.send(ctx, chatID, fmt.Sprintf("С возвращением!\n\n✅ У вас активна подписка.\n\nПротокол: %s\n\n"+
			"Ваша реферальная ссылка:\n%s", protocolName(pref.Protocol), refLink), mainKeyboard())
		return
	}
	b.send(ctx, chatID, fmt.Sprintf("С возвращением!\n\n⚠️ Ваша подписка истекла.\n\n"+
		"Оплатите подписку, чтобы продолжить пользоваться VPN.\n\nВаша реферальная ссылка:\n%s", refLink), mainKeyboard())
}

func (b *Bot) handleMainMenu(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	b.send(ctx, callback.From.ID, "Выберите действие:", mainKeyboard())
	return b.answer(ctx, callback.ID)
}

func (b *Bot) handleHelp(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	text := "❓ Как пользоваться VPN:\n\n" +
		"1. Выберите сервер и протокол в настройках.\n" +
		"2. Нажмите «Настроить VPN» и выберите устройство.\n" +
		"3. Установите приложение и получите ключ.\n" +
		"4. Импортируйте ключ в приложение и подключайтесь!"
	b.send(ctx, callback.From.ID, text, mainKeyboard())
	return b.answer(ctx, callback.ID)
}

func (b *Bot) handleTerms(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	text := "📋 Условия пользования сервисом:\n\n" +
		"❌ Запрещается использование сервиса для деятельности, противоречащей законодательству\n" +
		"❌ Запрещается использование сервиса для скачивания в torrent сетях\n" +
		"❗️ Услуги, предоставляемые сервисом, являются невозвратными."
	b.send(ctx, callback.From.ID, text, mainKeyboard())
	return b.answer(ctx, callback.ID)
}

// ---- helpers ----

func (b *Bot) send(ctx *th.Context, chatID int64, text string, keyboard *telego.InlineKeyboardMarkup) {
	msg := tu.Message(tu.ID(chatID), text)
	if keyboard != nil {
		msg = msg.WithReplyMarkup(keyboard)
	}
	if _, err := ctx.Bot().SendMessage(ctx.Context(), msg); err != nil {
		log.Printf("Failed to send message to %d: %v", chatID, err)
	}
}

func (b *Bot) answer(ctx *th.Context, callbackID string) error {
	return ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callbackID))
}

func (b *Bot) referralLink(ctx context.Context, userID int64) string {
	botUsername := "plazavpn_bot"
	if info, err := b.Instance.GetMe(ctx); err == nil {
		botUsername = info.Username
	}
	return fmt.Sprintf("https://t.me/%s?start=ref_%d", botUsername, userID)
}

// extractReferrerID pulls the inviter id out of "/start ref_<id>".
// Self-referrals are dropped.
func extractReferrerID(text string, userID int64) *int64 {
	parts := strings.Fields(text)
	if len(parts) < 2 || !strings.HasPrefix(parts[1], "ref_") {
		return nil
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(parts[1], "ref_"), 10, 64)
	if err != nil || id == userID {
		return nil
	}
	return &id
}

func protocolName(protocol string) string {
	if protocol == "vless" {
		return "V2Ray"
	}
	return "WireGuard"
}
