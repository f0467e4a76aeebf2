package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionTTL = 24 * time.Hour

// SessionStore keeps transient per-conversation selections (chosen
// device, pending charge id). This state belongs to the conversation
// layer, never to the coordinator.
type SessionStore struct {
	redis *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{redis: rdb}
}

func deviceKey(userID int64) string {
	return fmt.Sprintf("session:%d:device", userID)
}

func chargeKey(userID int64) string {
	return fmt.Sprintf("session:%d:charge", userID)
}

func (s *SessionStore) SetDevice(ctx context.Context, userID int64, device string) {
	s.redis.Set(ctx, deviceKey(userID), device, sessionTTL)
}

func (s *SessionStore) Device(ctx context.Context, userID int64) string {
	device, err := s.redis.Get(ctx, deviceKey(userID)).Result()
	if err != nil {
		return "other"
	}
	return device
}

func (s *SessionStore) SetPendingCharge(ctx context.Context, userID int64, chargeID string) {
	s.redis.Set(ctx, chargeKey(userID), chargeID, sessionTTL)
}

func (s *SessionStore) PendingCharge(ctx context.Context, userID int64) string {
	chargeID, err := s.redis.Get(ctx, chargeKey(userID)).Result()
	if err != nil {
		return ""
	}
	return chargeID
}

func (s *SessionStore) ClearPendingCharge(ctx context.Context, userID int64) {
	s.redis.Del(ctx, chargeKey(userID))
}
