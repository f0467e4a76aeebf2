// Package worker runs the periodic subscription jobs: the expiry sweep
// and the pre-expiry reminders.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"plaza-bot/internal/ledger"
	"plaza-bot/internal/provision"
)

type Sweeper struct {
	cron     *cron.Cron
	ledger   *ledger.Ledger
	redis    *redis.Client
	bot      *telego.Bot
	backends map[string]provision.Backend
}

func NewSweeper(l *ledger.Ledger, rdb *redis.Client, bot *telego.Bot, backends map[string]provision.Backend) *Sweeper {
	return &Sweeper{
		cron:     cron.New(),
		ledger:   l,
		redis:    rdb,
		bot:      bot,
		backends: backends,
	}
}

func (s *Sweeper) Start() error {
	// Nightly sweep, then reminders every hour.
	if _, err := s.cron.AddFunc("10 0 * * *", s.sweepExpired); err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}
	if _, err := s.cron.AddFunc("0 * * * *", s.sendReminders); err != nil {
		return fmt.Errorf("failed to add reminder job: %w", err)
	}

	s.cron.Start()
	log.Println("Subscription sweeper started")
	return nil
}

func (s *Sweeper) Stop() {
	s.cron.Stop()
	log.Println("Subscription sweeper stopped")
}

// sweepExpired flips expired rows inactive and releases their backend
// handles. The ledger's conditional update makes a concurrent renewal
// win over the sweep.
func (s *Sweeper) sweepExpired() {
	ctx := context.Background()

	swept, err := s.ledger.DeactivateExpired()
	if err != nil {
		log.Printf("Expiry sweep failed: %v", err)
		return
	}
	if len(swept) == 0 {
		return
	}

	for _, sub := range swept {
		if sub.Handle != "" {
			// Every backend recognises only its own handles; cleanup
			// elsewhere is a harmless no-op or NotFound.
			for _, backend := range s.backends {
				if err := backend.Cleanup(ctx, sub.Handle); err != nil {
					log.Printf("Cleanup of handle %s failed: %v", sub.Handle, err)
				}
			}
		}

		_, err := s.bot.SendMessage(ctx, tu.Message(
			tu.ID(sub.UserID),
			"❌ Ваша подписка истекла. Оплатите подписку, чтобы продолжить пользоваться VPN.",
		))
		if err != nil {
			log.Printf("Failed to notify user %d about expiry: %v", sub.UserID, err)
		}
	}

	log.Printf("Expiry sweep completed, deactivated %d subscriptions", len(swept))
}

// sendReminders warns users whose subscription ends within three days.
// A redis key with a TTL keeps each user to one reminder per cycle.
func (s *Sweeper) sendReminders() {
	ctx := context.Background()

	expiring, err := s.ledger.ExpiringSoon(3)
	if err != nil {
		log.Printf("Failed to query expiring subscriptions: %v", err)
		return
	}

	for _, sub := range expiring {
		key := fmt.Sprintf("reminded_%d", sub.UserID)
		exists, err := s.redis.Exists(ctx, key).Result()
		if err != nil || exists > 0 {
			continue
		}

		_, err = s.bot.SendMessage(ctx, tu.Message(
			tu.ID(sub.UserID),
			fmt.Sprintf("⚠️ Ваша подписка истекает %s. Не забудьте продлить её, чтобы не потерять доступ!",
				sub.EndDate.Format("02.01.2006")),
		))
		if err != nil {
			log.Printf("Failed to send reminder to user %d: %v", sub.UserID, err)
			continue
		}

		s.redis.Set(ctx, key, "true", 72*time.Hour)
	}
}
