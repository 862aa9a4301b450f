package driver

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisClient .
type RedisClient struct {
	conn *redis.Client
}

// NewRedisClient create a redis client
func NewRedisClient(host string, port int, password string) *RedisClient {
	conn := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
	})
	return &RedisClient{
		conn: conn,
	}
}

// Publish send payload to every subscriber of channel
func (rdb *RedisClient) Publish(ctx context.Context, channel string, payload []byte) error {
	return rdb.conn.Publish(ctx, channel, payload).Err()
}

// Subscribe listen on channel, the returned stream is closed once cancel is called or
// the connection is lost
func (rdb *RedisClient) Subscribe(ctx context.Context, channel string) (<-chan []byte, func() error, error) {
	ps := rdb.conn.Subscribe(ctx, channel)
	// wait for the subscription confirmation so no publish is missed after we return
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, err
	}

	out := make(chan []byte)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		for msg := range msgs {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, ps.Close, nil
}

// Ping check server liveness
func (rdb *RedisClient) Ping(ctx context.Context) error {
	return rdb.conn.Ping(ctx).Err()
}

// Close release the connection pool
func (rdb *RedisClient) Close() error {
	return rdb.conn.Close()
}
