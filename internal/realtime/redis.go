package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"lessoncast/internal/logger"
	"lessoncast/pkg/types"
)

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	origin  string
}

// NewRedisBus connects to addr and publishes on channel. origin names this
// instance.
func NewRedisBus(ctx context.Context, addr, channel, origin string, log *logger.Logger) (Bus, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel == "" {
		channel = "lessoncast.playback"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{
		log:     log.With("service", "RedisPlaybackBus", "channel", channel),
		rdb:     rdb,
		channel: channel,
		origin:  origin,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, ev types.PlaybackEvent) error {
	ev.Origin = b.origin
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onEvent func(types.PlaybackEvent)) error {
	if onEvent == nil {
		return errors.New("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev types.PlaybackEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad playback event payload", "error", err)
					continue
				}
				if ev.Origin == b.origin {
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}

func (b *redisBus) Close() error {
	return b.rdb.Close()
}
