package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/supportstack/tickets/internal/events"
	"github.com/supportstack/tickets/internal/metrics"
)

const connectTimeout = 5 * time.Second

// Config captures the settings for establishing a Redis connection.
type Config struct {
	Addr    string
	DB      int
	Timeout time.Duration
}

// Connect initialises a Redis client and validates connectivity with a ping.
// A default timeout is applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = connectTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// RedisEmitter publishes envelopes on the well-known redis channel.
type RedisEmitter struct {
	client *redis.Client
}

// NewRedisEmitter wraps an established redis client.
func NewRedisEmitter(client *redis.Client) *RedisEmitter {
	return &RedisEmitter{client: client}
}

// Publish serializes the envelope and writes it to the channel. Envelopes
// are produced locally, so a marshalling failure is a local bug and is
// returned as such rather than blamed on the backend.
func (e *RedisEmitter) Publish(ctx context.Context, envelope events.Envelope) error {
	if err := envelope.Event.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("bus: encode envelope: %w", err)
	}

	if err := e.client.Publish(ctx, events.Channel, payload).Err(); err != nil {
		return fmt.Errorf("bus: publish: %w", err)
	}
	metrics.BusPublishedTotal.Inc()
	return nil
}

// RedisAdapter bridges the redis channel into an in-process queue.
type RedisAdapter struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisAdapter wraps an established redis client.
func NewRedisAdapter(client *redis.Client, log zerolog.Logger) *RedisAdapter {
	return &RedisAdapter{client: client, log: log}
}

// Subscribe implements Adapter. The bridge goroutine decodes each message
// into an envelope and forwards it in order. Malformed messages are logged
// and dropped; a dead backend connection terminates the bridge with an
// error on the returned channel.
func (a *RedisAdapter) Subscribe(ctx context.Context) (<-chan events.Envelope, <-chan error, error) {
	sub := a.client.Subscribe(ctx, events.Channel)

	// Confirm the subscription before reporting success to the owner.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("bus: subscribe %s: %w", events.Channel, err)
	}
	a.log.Info().Str("channel", events.Channel).Msg("redis adapter subscribed")

	queue := NewQueue()
	done := make(chan error, 1)

	go func() {
		defer close(done)
		defer queue.Close()
		defer func() { _ = sub.Close() }()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				done <- ctx.Err()
				return
			case msg, ok := <-messages:
				if !ok {
					done <- errors.New("bus: redis subscription closed")
					return
				}
				envelope, err := decodeEnvelope([]byte(msg.Payload))
				if err != nil {
					metrics.BusDecodeErrorsTotal.Inc()
					a.log.Warn().Err(err).Msg("dropping malformed bus message")
					continue
				}
				metrics.BusReceivedTotal.Inc()
				queue.Push(envelope)
			}
		}
	}()

	return queue.Out(), done, nil
}

// decodeEnvelope parses one backend payload.
func decodeEnvelope(payload []byte) (events.Envelope, error) {
	var envelope events.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return events.Envelope{}, fmt.Errorf("bus: decode envelope: %w", err)
	}
	if err := envelope.Event.Validate(); err != nil {
		return events.Envelope{}, err
	}
	return envelope, nil
}
