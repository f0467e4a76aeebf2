package bot

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"plaza-bot/internal/faults"
	"plaza-bot/internal/models"
)

var appDownloadLinks = map[string]string{
	"android": "https://play.google.com/store/apps/details?id=com.wireguard.android",
	"iphone":  "https://apps.apple.com/app/wireguard/id1441195209",
	"mac":     "https://apps.apple.com/app/wireguard/id1451685025",
	"windows": "https://download.wireguard.com/windows-client/wireguard-installer.exe",
	"other":   "https://www.wireguard.com/install/",
}

func (b *Bot) handleSetupVPN(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	b.send(ctx, callback.From.ID, "📱 Выберите ваше устройство:", deviceKeyboard())
	return b.answer(ctx, callback.ID)
}

func (b *Bot) handleDeviceSelection(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	device := strings.TrimPrefix(callback.Data, "device_")
	b.Sessions.SetDevice(ctx.Context(), callback.From.ID, device)

	b.send(ctx, callback.From.ID, "Выберите опцию:", deviceOptionsKeyboard())
	return b.answer(ctx, callback.ID)
}

func (b *Bot) handleInstallApp(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	device := b.Sessions.Device(ctx.Context(), callback.From.ID)

	link, ok := appDownloadLinks[device]
	if !ok {
		link = appDownloadLinks["other"]
	}

	b.send(ctx, callback.From.ID,
		fmt.Sprintf("📥 Скачайте приложение:\n\n%s\n\nПосле установки вернитесь и получите ключ.", link),
		deviceOptionsKeyboard())
	return b.answer(ctx, callback.ID)
}

func (b *Bot) handleGetKey(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	userID := callback.From.ID

	sub, err := b.Ledger.GetActiveSubscription(userID)
	if err != nil {
		if errors.Is(err, faults.ErrNotFound) {
			b.send(ctx, userID, "❌ У вас нет активной подписки.", mainKeyboard())
		} else {
			log.Printf("Failed to load subscription for %d: %v", userID, err)
			b.send(ctx, userID, "Произошла ошибка. Попробуйте позже.", mainKeyboard())
		}
		return b.answer(ctx, callback.ID)
	}

	b.sendCredential(ctx, userID, sub.Credential)
	return b.answer(ctx, callback.ID)
}

func (b *Bot) handleRecreateConfig(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	userID := callback.From.ID

	cred, err := b.Coord.ReissueCredential(ctx.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, faults.ErrNotFound):
			b.send(ctx, userID, "❌ У вас нет активной подписки.", mainKeyboard())
		case errors.Is(err, faults.ErrUnavailable):
			b.send(ctx, userID, "⏳ Сервис временно недоступен. Попробуйте позже.", mainKeyboard())
		default:
			log.Printf("Reissue failed for user %d: %v", userID, err)
			b.send(ctx, userID, "Произошла ошибка при обновлении конфига. Попробуйте позже.", mainKeyboard())
		}
		return b.answer(ctx, callback.ID)
	}

	b.sendCredential(ctx, userID, cred.Payload)
	return b.answer(ctx, callback.ID)
}

// sendCredential delivers a tunnel config as a file the client app can
// import, and falls back to plain text for link bundles.
func (b *Bot) sendCredential(ctx *th.Context, userID int64, credential string) {
	if strings.HasPrefix(credential, "[Interface]") {
		filename := fmt.Sprintf("wireguard_user_%d.conf", userID)
		doc := tu.Document(tu.ID(userID), tu.FileFromBytes([]byte(credential), filename)).
			WithCaption("🔑 Ваш конфиг WireGuard\n\n📱 Импортируйте этот файл в приложение")
		if _, err := ctx.Bot().SendDocument(ctx.Context(), doc); err == nil {
			return
		} else {
			log.Printf("Failed to send config document to %d: %v", userID, err)
		}
	}

	b.send(ctx, userID, fmt.Sprintf("🔑 Ваш ключ:\n\n%s", credential), mainKeyboard())
}

// ---- endpoint / protocol selection ----

func (b *Bot) handleChooseServer(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	pref, _ := b.Ledger.GetPreference(callback.From.ID)

	b.send(ctx, callback.From.ID,
		fmt.Sprintf("🌍 Выберите сервер:\n\nТекущий: Сервер %d", pref.Endpoint),
		serverKeyboard())
	return b.answer(ctx, callback.ID)
}

func (b *Bot) handleSelectServer(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	userID := callback.From.ID

	endpoint := models.EndpointDefault
	if strings.TrimPrefix(callback.Data, "select_server_") == "2" {
		endpoint = models.EndpointSecond
	}

	pref, err := b.Coord.SelectEndpoint(userID, endpoint)
	if err != nil {
		log.Printf("Endpoint selection failed for user %d: %v", userID, err)
		b.send(ctx, userID, "Произошла ошибка. Попробуйте позже.", mainKeyboard())
		return b.answer(ctx, callback.ID)
	}

	text := fmt.Sprintf("✅ Выбран сервер %d (протокол: %s).\n\nОбновите конфиг, чтобы применить настройки.",
		pref.Endpoint, protocolName(pref.Protocol))
	b.send(ctx, userID, text, deviceOptionsKeyboard())
	return b.answer(ctx, callback.ID)
}

func (b *Bot) handleChooseProtocol(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	pref, _ := b.Ledger.GetPreference(callback.From.ID)

	b.send(ctx, callback.From.ID,
		fmt.Sprintf("🔀 Выберите протокол:\n\nТекущий: %s\n\nWireGuard — быстрый, стабильный\nV2Ray — обход блокировок",
			protocolName(pref.Protocol)),
		protocolKeyboard())
	return b.answer(ctx, callback.ID)
}

func (b *Bot) handleSelectProtocol(ctx *th.Context, update telego.Update) error {
	callback := update.CallbackQuery
	userID := callback.From.ID
	protocol := strings.TrimPrefix(callback.Data, "select_protocol_")

	pref, err := b.Coord.SelectProtocol(userID, protocol)
	if err != nil {
		log.Printf("Protocol selection failed for user %d: %v", userID, err)
		b.send(ctx, userID, "Произошла ошибка. Попробуйте позже.", mainKeyboard())
		return b.answer(ctx, callback.ID)
	}

	text := fmt.Sprintf("✅ Выбран протокол: %s (сервер %d).\n\nОбновите конфиг, чтобы применить настройки.",
		protocolName(pref.Protocol), pref.Endpoint)
	b.send(ctx, userID, text, deviceOptionsKeyboard())
	return b.answer(ctx, callback.ID)
}
