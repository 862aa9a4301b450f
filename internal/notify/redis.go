package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Broker cross-process pub/sub transport, implemented by driver.RedisClient
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func() error, error)
}

// DefaultRelayTimeout bounds a single relay publish
const DefaultRelayTimeout = 2 * time.Second

type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBridge publishes to the local hub and relays events between gateway instances
type RedisBridge struct {
	hub     *Hub
	broker  Broker
	channel string
	origin  string
	timeout time.Duration
	logger  *zap.Logger
}

var _ Publisher = &RedisBridge{}

// NewRedisBridge create a bridge, origin must be unique per gateway instance
func NewRedisBridge(hub *Hub, broker Broker, channel, origin string, logger *zap.Logger) *RedisBridge {
	return &RedisBridge{
		hub:     hub,
		broker:  broker,
		channel: channel,
		origin:  origin,
		timeout: DefaultRelayTimeout,
		logger:  logger,
	}
}

// SetRelayTimeout change the bound of a relay publish, non positive values are ignored
func (rb *RedisBridge) SetRelayTimeout(timeout time.Duration) {
	if timeout > 0 {
		rb.timeout = timeout
	}
}

// Publish deliver e locally then forward it to the other instances, forwarding failures are logged
func (rb *RedisBridge) Publish(e Event) {
	rb.hub.Publish(e)

	payload, err := json.Marshal(&envelope{Origin: rb.origin, Event: e})
	if err != nil {
		rb.logger.Error("Failed to encode progress event", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), rb.timeout)
	defer cancel()
	if err := rb.broker.Publish(ctx, rb.channel, payload); err != nil {
		rb.logger.Warn("Failed to relay progress event", zap.Error(err),
			zap.String("event.kind", string(e.Kind)),
			zap.String("event.id", e.ID),
		)
	}
}

// Run relay remote events into the local hub until ctx is done or the stream ends
func (rb *RedisBridge) Run(ctx context.Context) error {
	stream, cancel, err := rb.broker.Subscribe(ctx, rb.channel)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-stream:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal(payload, &env); err != nil {
				rb.logger.Warn("Dropped malformed progress event", zap.Error(err))
				continue
			}
			if env.Origin == rb.origin {
				continue
			}
			rb.hub.Publish(env.Event)
		}
	}
}
