package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/config"
	"github.com/redis/go-redis/v9"
)

const brpopTimeout = 5 * time.Second

// NewRedisClient connects with short timeouts and verifies connectivity
func NewRedisClient(ctx context.Context, cfg config.EventsConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisQueue is a list-backed queue using LPUSH/BRPOP of JSON events
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "attendance:events"
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Publish(ctx context.Context, event Event) error {
	body, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("failed to push event: %w", err)
	}
	return nil
}

func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, brpopTimeout, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					slog.Error("Failed to pop event from redis", "error", err)
					time.Sleep(time.Second)
				}
				continue
			}
			// BRPOP replies with [key, value]
			if len(res) != 2 {
				continue
			}
			ev, err := Unmarshal([]byte(res[1]))
			if err != nil {
				slog.Error("Dropping malformed event", "error", err)
				continue
			}
			select {
			case out <- Message{Event: ev, Ack: noAck}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
