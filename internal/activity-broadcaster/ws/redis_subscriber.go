package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/social-wager-platform/pkg/contracts/events"
)

// StartRedisSubscriber escuta o canal de pub/sub e repassa cada envelope ao hub.
// A goroutine encerra a inscrição quando o contexto termina.
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				Dispatch(hub, msg.Payload, log)
			}
		}
	}()
}

// Dispatch decodifica um payload do canal e faz o broadcast
func Dispatch(hub *Hub, payload string, log *zap.Logger) {
	var env events.Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Warn("ws subscriber unmarshal error", zap.Error(err))
		return
	}
	if env.GroupID == "" {
		log.Warn("ws subscriber envelope without group")
		return
	}
	hub.Broadcast(env)
}
