package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mvamarnath1/interview/internal/models"
)

const (
	Channel          = "interview:sessions"
	KindSessionEnded = "session_closed"
)

type SessionEndedEvent struct {
	Kind       string              `json:"kind"`
	SessionID  string              `json:"sessionId"`
	OwnerName  string              `json:"ownerName"`
	State      models.SessionState `json:"state"`
	EndedAt    string              `json:"endedAt"`
	InstanceID string              `json:"instanceId"`
}

// Bus publishes session lifecycle events on Redis and delivers events from
// other instances to a handler.
type Bus struct {
	rdb        *redis.Client
	instanceID string
	logger     *zap.Logger
}

func NewBus(rdb *redis.Client, logger *zap.Logger) *Bus {
	return &Bus{
		rdb:        rdb,
		instanceID: uuid.New().String()[:8],
		logger:     logger,
	}
}

func (b *Bus) InstanceID() string {
	return b.instanceID
}

// PublishSessionEnded announces that a session reached Closed or Expired.
func (b *Bus) PublishSessionEnded(ctx context.Context, s models.Session) error {
	payload, err := json.Marshal(SessionEndedEvent{
		Kind:       KindSessionEnded,
		SessionID:  s.ID,
		OwnerName:  s.OwnerName,
		State:      s.State,
		EndedAt:    s.UpdatedAt.UTC().Format(time.RFC3339),
		InstanceID: b.instanceID,
	})
	if err != nil {
		return fmt.Errorf("encode session event: %w", err)
	}
	if err := b.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish session event: %w", err)
	}
	return nil
}

// Subscribe calls handle for every session event published by another
// instance until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, handle func(SessionEndedEvent)) {
	subscriber := b.rdb.Subscribe(ctx, Channel)
	defer subscriber.Close()
	ch := subscriber.Channel()

	b.logger.Info("subscribed to session events", zap.String("instance_id", b.instanceID))

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event SessionEndedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("failed to parse session event", zap.Error(err))
				continue
			}
			if event.InstanceID == b.instanceID {
				continue
			}
			handle(event)
		}
	}
}
