package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/mymmrac/telego"

	"plaza-bot/internal/bot"
	"plaza-bot/internal/config"
	"plaza-bot/internal/coordinator"
	"plaza-bot/internal/database"
	"plaza-bot/internal/ledger"
	"plaza-bot/internal/models"
	"plaza-bot/internal/payment"
	"plaza-bot/internal/provision"
	"plaza-bot/internal/provision/marzban"
	"plaza-bot/internal/provision/wgtunnel"
	"plaza-bot/internal/webhook"
	"plaza-bot/internal/worker"
)

func main() {
	cfg := config.LoadConfig()

	if cfg.BotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is not configured")
	}

	l, err := ledger.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}

	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("Could not connect to redis: %v", err)
	}

	tgBot, err := telego.NewBot(cfg.BotToken)
	if err != nil {
		log.Fatalf("Could not create bot: %v", err)
	}

	backends := map[string]provision.Backend{
		models.ProtocolWireguard: wgtunnel.New(wgtunnel.Config{
			Interface:      cfg.WGInterface,
			ServerPubKey:   cfg.WGServerPubKey,
			ServerEndpoint: cfg.WGServerEndpoint,
			ConfigDir:      cfg.WGConfigDir,
			SubnetPrefix:   cfg.WGSubnetPrefix,
		}),
		models.ProtocolVless: marzban.New(cfg.MarzbanURL, cfg.MarzbanUsername, cfg.MarzbanPassword),
	}

	gateways := map[string]payment.Gateway{
		models.PaymentMethodYookassa: payment.NewYookassa(cfg.YookassaShopID, cfg.YookassaKey, cfg.YookassaReturn),
		models.PaymentMethodStars:    payment.NewStars(tgBot, cfg.SubscriptionPriceStars),
	}

	coord := coordinator.New(l, backends, gateways, coordinator.Config{
		TrialDays:        cfg.TrialDays,
		SubscriptionDays: cfg.SubscriptionDays,
		NominalPrice:     cfg.SubscriptionPrice,
		ReferralPercent:  cfg.ReferralPercent,
		ProvisionTimeout: time.Duration(cfg.ProvisionTimeoutSec) * time.Second,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	webhookServer := webhook.NewServer(cfg.WebhookAddr, coord, cfg.AllowedYooIp)
	go func() {
		if err := webhookServer.Start(); err != nil {
			log.Printf("Webhook server failed: %v", err)
		}
	}()
	defer func() {
		if err := webhookServer.Stop(); err != nil {
			log.Printf("Failed to stop webhook server: %v", err)
		}
	}()

	sweeper := worker.NewSweeper(l, rdb, tgBot, backends)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Could not start sweeper: %v", err)
	}
	defer sweeper.Stop()

	sessions := bot.NewSessionStore(rdb)
	service := bot.NewBot(tgBot, coord, l, sessions, cfg)

	log.Println("Service started successfully")
	if err := service.Start(ctx); err != nil {
		log.Fatalf("Bot stopped with error: %v", err)
	}

	log.Println("Shutdown completed")
}
