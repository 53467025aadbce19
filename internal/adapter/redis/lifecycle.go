package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pscheid92/pxsession/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultLifecycleChannel carries host lifecycle transitions as plain state names.
const DefaultLifecycleChannel = "px:lifecycle"

// LifecycleSubscriber forwards lifecycle messages published by the host
// application to emit.
type LifecycleSubscriber struct {
	rdb     *goredis.Client
	channel string
	emit    func(domain.LifecycleState)
}

func NewLifecycleSubscriber(rdb *goredis.Client, channel string, emit func(domain.LifecycleState)) *LifecycleSubscriber {
	if channel == "" {
		channel = DefaultLifecycleChannel
	}
	return &LifecycleSubscriber{rdb: rdb, channel: channel, emit: emit}
}

// Start listens for lifecycle messages. Blocks until ctx is cancelled.
func (s *LifecycleSubscriber) Start(ctx context.Context) {
	pubsub := s.rdb.Subscribe(ctx, s.channel)
	defer func() {
		_ = pubsub.Close()
	}()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			s.handle(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (s *LifecycleSubscriber) handle(payload string) {
	to := domain.LifecycleState(payload)
	if !to.Valid() {
		slog.Warn("Invalid lifecycle state in pub/sub message", "channel", s.channel, "payload", payload)
		return
	}
	slog.Debug("Lifecycle transition via pub/sub", "state", payload)
	s.emit(to)
}

// PublishLifecycle announces a host lifecycle transition on channel.
func PublishLifecycle(ctx context.Context, rdb *goredis.Client, channel string, to domain.LifecycleState) error {
	if channel == "" {
		channel = DefaultLifecycleChannel
	}
	if err := rdb.Publish(ctx, channel, string(to)).Err(); err != nil {
		return fmt.Errorf("failed to publish lifecycle state: %w", err)
	}
	return nil
}
