package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	BotToken string
	AdminID  int64

	MarzbanURL      string
	MarzbanUsername string
	MarzbanPassword string

	WGInterface      string
	WGServerPubKey   string
	WGServerEndpoint string
	WGConfigDir      string
	WGSubnetPrefix   string

	YookassaShopID string
	YookassaKey    string
	YookassaReturn string
	AllowedYooIp   []string

	WebhookAddr string

	SubscriptionPrice      float64
	SubscriptionPriceStars int
	SubscriptionDays       int
	TrialDays              int
	ReferralPercent        float64

	ProvisionTimeoutSec int
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "plaza_bot"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		AdminID:  getEnvInt64("ADMIN_ID", 0),

		MarzbanURL:      getEnv("MARZBAN_URL", ""),
		MarzbanUsername: getEnv("MARZBAN_USERNAME", ""),
		MarzbanPassword: getEnv("MARZBAN_PASSWORD", ""),

		WGInterface:      getEnv("WG_INTERFACE", "wg0"),
		WGServerPubKey:   getEnv("WG_SERVER_PUBLIC_KEY", ""),
		WGServerEndpoint: getEnv("WG_SERVER_ENDPOINT", ""),
		WGConfigDir:      getEnv("WG_CONFIG_DIR", "/root"),
		WGSubnetPrefix:   getEnv("WG_SUBNET_PREFIX", "10.66.66."),

		YookassaShopID: getEnv("YOOKASSA_SHOP_ID", ""),
		YookassaKey:    getEnv("YOOKASSA_SECRET_KEY", ""),
		YookassaReturn: getEnv("YOOKASSA_RETURN_URL", "https://t.me/plazavpn_bot"),
		AllowedYooIp: []string{
			"185.71.76.0/27",
			"185.71.77.0/27",
			"77.75.153.0/25",
			"77.75.156.224/28",
			"77.75.154.128/25",
			"2a02:5180::/32",
		},

		WebhookAddr: getEnv("WEBHOOK_ADDR", ":8080"),

		SubscriptionPrice:      getEnvFloat("SUBSCRIPTION_PRICE", 255),
		SubscriptionPriceStars: int(getEnvInt64("SUBSCRIPTION_PRICE_STARS", 150)),
		SubscriptionDays:       int(getEnvInt64("SUBSCRIPTION_DURATION_DAYS", 30)),
		TrialDays:              int(getEnvInt64("TRIAL_DURATION_DAYS", 3)),
		ReferralPercent:        getEnvFloat("REFERRAL_BONUS_PERCENT", 35),

		ProvisionTimeoutSec: int(getEnvInt64("PROVISION_TIMEOUT_SEC", 15)),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}
