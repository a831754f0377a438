package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"roomrental/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RoomChannelPrefix namespaces room channels on Redis pub/sub.
const RoomChannelPrefix = "roomrental:room:"

// LocalBroker delivers frames within the current process.
type LocalBroker struct {
	mu      sync.RWMutex
	deliver func(room string, env models.Envelope)
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{}
}

func (b *LocalBroker) Publish(_ context.Context, room string, env models.Envelope) error {
	b.mu.RLock()
	deliver := b.deliver
	b.mu.RUnlock()
	if deliver != nil {
		deliver(room, env)
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, deliver func(room string, env models.Envelope)) error {
	b.mu.Lock()
	b.deliver = deliver
	b.mu.Unlock()
	return nil
}

func (b *LocalBroker) Close() error { return nil }

// RedisBroker relays frames over Redis pub/sub so that every instance
// delivers to its own connections.
type RedisBroker struct {
	client *redis.Client
	logger *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewRedisBroker(client *redis.Client, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, room string, env models.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := b.client.Publish(ctx, roomChannel(room), payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", room, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, deliver func(room string, env models.Envelope)) error {
	ps := b.client.PSubscribe(ctx, RoomChannelPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return fmt.Errorf("subscribe to room channels: %w", err)
	}
	b.mu.Lock()
	b.pubsub = ps
	b.mu.Unlock()

	go func() {
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				room, env, err := decodeFrame(msg.Channel, msg.Payload)
				if err != nil {
					b.logger.Warn("dropping malformed room frame", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				deliver(room, env)
			}
		}
	}()
	return nil
}

func (b *RedisBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub == nil {
		return nil
	}
	return b.pubsub.Close()
}

func roomChannel(room string) string {
	return RoomChannelPrefix + room
}

func decodeFrame(channel, payload string) (string, models.Envelope, error) {
	var env models.Envelope
	room := strings.TrimPrefix(channel, RoomChannelPrefix)
	if room == channel || room == "" {
		return "", env, fmt.Errorf("unexpected channel %q", channel)
	}
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return "", env, err
	}
	return room, env, nil
}
