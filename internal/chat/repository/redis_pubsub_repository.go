package repository

import (
	"context"
	"encoding/json"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EventBridgeChannel is the pub/sub channel carrying gateway envelopes
// between instances. Single-process deployments work without the bridge;
// it exists so the fan-out layer can grow past one node.
const EventBridgeChannel = "chat:events"

// RedisPubSub bridges room events across gateway instances.
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// Publish serialize the envelope and publish it on the bridge channel.
func (r *RedisPubSub) Publish(ctx context.Context, env domain.EventEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, EventBridgeChannel, data).Err()
}

// Subscribe consume bridge envelopes until ctx is cancelled, calling handler
// for each. Malformed payloads are logged and skipped.
func (r *RedisPubSub) Subscribe(ctx context.Context, handler func(env domain.EventEnvelope)) error {
	sub := r.client.Subscribe(ctx, EventBridgeChannel)
	go func() {
		ch := sub.Channel()
		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var env domain.EventEnvelope
				if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
					logger.Log.Error("event bridge unmarshal err", zap.Error(err))
					continue
				}
				handler(env)
			case <-ctx.Done():
				logger.Log.Info("event bridge sub close")
				sub.Close()
				return
			}
		}
	}()
	return nil
}
