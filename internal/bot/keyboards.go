package bot

import (
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

func mainKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🔧 Настроить VPN").WithCallbackData("setup_vpn"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("💳 Оплатить подписку").WithCallbackData("pay_subscription"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🌍 Выбрать сервер").WithCallbackData("choose_server"),
			tu.InlineKeyboardButton("🔀 Протокол").WithCallbackData("choose_protocol"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("❓ Помощь").WithCallbackData("help"),
			tu.InlineKeyboardButton("📋 Правила").WithCallbackData("terms"),
		),
	)
}

func paymentKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("💳 ЮКасса").WithCallbackData("pay_yookassa"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("⭐ Telegram Stars").WithCallbackData("pay_stars"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("« Главное меню").WithCallbackData("main_menu"),
		),
	)
}

func deviceKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("📱 Android").WithCallbackData("device_android"),
			tu.InlineKeyboardButton("📱 iPhone").WithCallbackData("device_iphone"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("💻 Mac").WithCallbackData("device_mac"),
			tu.InlineKeyboardButton("💻 Windows").WithCallbackData("device_windows"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("Другое устройство").WithCallbackData("device_other"),
		),
	)
}

func deviceOptionsKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("📥 Установить приложение").WithCallbackData("install_app"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🔑 Получить ключ").WithCallbackData("get_key"),
			tu.InlineKeyboardButton("♻️ Обновить конфиг").WithCallbackData("recreate_config"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("« Главное меню").WithCallbackData("main_menu"),
		),
	)
}

func serverKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🇳🇱 Сервер 1").WithCallbackData("select_server_1"),
			tu.InlineKeyboardButton("🇩🇪 Сервер 2").WithCallbackData("select_server_2"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("« Главное меню").WithCallbackData("main_menu"),
		),
	)
}

func protocolKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🔷 WireGuard").WithCallbackData("select_protocol_wireguard"),
			tu.InlineKeyboardButton("🔶 V2Ray").WithCallbackData("select_protocol_vless"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("« Главное меню").WithCallbackData("main_menu"),
		),
	)
}

func adminKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("📊 Статистика").WithCallbackData("admin_stats"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🎁 Пробные").WithCallbackData("admin_trial_users"),
			tu.InlineKeyboardButton("💎 Платные").WithCallbackData("admin_paid_users"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("💰 Платежи").WithCallbackData("admin_recent_payments"),
			tu.InlineKeyboardButton("⏳ Истекают").WithCallbackData("admin_expiring_soon"),
		),
	)
}
