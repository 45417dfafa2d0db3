package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Config configures the Redis-backed Bus binding.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Timeout bounds each Publish call.
	Timeout time.Duration
}

// envelope is the request wrapper published to a queryable's request
// channel: the reply channel name is carried alongside the body so the
// queryable handler knows where to send its answer (Redis has no native
// request/reply primitive).
type envelope struct {
	ReplyTo string          `json:"reply_to"`
	Body    json.RawMessage `json:"body"`
}

// RedisBus implements Bus over Redis Pub/Sub (github.com/redis/go-redis/v9).
// Topic streams map directly to pub/sub channels; PSubscribe handles
// glob-style topic patterns. Query/RegisterQueryable are implemented as a
// request/reply envelope published to a well-known channel, answered on a
// per-call ephemeral reply channel.
type RedisBus struct {
	client *goredis.Client
	cfg    Config
}

// NewRedisBus connects to Redis per cfg.
func NewRedisBus(cfg Config) (*RedisBus, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis bus requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis bus: invalid URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &RedisBus{client: goredis.NewClient(opts), cfg: cfg}, nil
}

// redisSubscription adapts *goredis.PubSub to the Subscription interface.
type redisSubscription struct {
	pubsub *goredis.PubSub
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

// Subscribe installs handler for topicPattern via PSubscribe, so "**"-style
// glob patterns translate directly to Redis pattern subscriptions.
func (b *RedisBus) Subscribe(ctx context.Context, topicPattern string, handler func(Message)) (Subscription, error) {
	pattern := toRedisPattern(topicPattern)
	pubsub := b.client.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis bus: subscribe %q: %w", topicPattern, err)
	}

	sub := &redisSubscription{pubsub: pubsub, done: make(chan struct{})}

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(Message{
					Topic:       msg.Channel,
					Payload:     []byte(msg.Payload),
					TimestampNs: time.Now().UnixNano(),
				})
			case <-sub.done:
				return
			}
		}
	}()

	return sub, nil
}

// Publish sends payload on topic.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	publishCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	return b.client.Publish(publishCtx, topic, payload).Err()
}

// Query publishes an envelope{reply_to, body} to key and blocks for a
// single reply on a freshly allocated reply channel, bounded by timeout.
func (b *RedisBus) Query(ctx context.Context, key string, request []byte, timeout time.Duration) ([]byte, error) {
	replyChannel := fmt.Sprintf("%s:reply:%s", key, uuid.New().String())

	sub := b.client.Subscribe(ctx, replyChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("redis bus: query subscribe reply: %w", err)
	}

	env := envelope{ReplyTo: replyChannel, Body: request}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("redis bus: marshal envelope: %w", err)
	}

	if err := b.client.Publish(ctx, key, body).Err(); err != nil {
		return nil, fmt.Errorf("redis bus: publish query: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case msg, ok := <-sub.Channel():
		if !ok {
			return nil, fmt.Errorf("redis bus: reply channel closed")
		}
		return []byte(msg.Payload), nil
	case <-queryCtx.Done():
		return nil, fmt.Errorf("redis bus: query timed out after %s", timeout)
	}
}

// redisQueryable adapts the queryable goroutine loop to the Queryable interface.
type redisQueryable struct {
	pubsub *goredis.PubSub
	done   chan struct{}
	once   sync.Once
}

func (q *redisQueryable) Close() error {
	var err error
	q.once.Do(func() {
		close(q.done)
		err = q.pubsub.Close()
	})
	return err
}

// RegisterQueryable subscribes to keyPattern and answers each envelope with
// handler's result, published back to the envelope's reply_to channel.
func (b *RedisBus) RegisterQueryable(ctx context.Context, keyPattern string, handler QueryHandler) (Queryable, error) {
	pattern := toRedisPattern(keyPattern)
	pubsub := b.client.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis bus: register queryable %q: %w", keyPattern, err)
	}

	q := &redisQueryable{pubsub: pubsub, done: make(chan struct{})}

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				go b.answer(ctx, handler, msg.Channel, msg.Payload)
			case <-q.done:
				return
			}
		}
	}()

	return q, nil
}

func (b *RedisBus) answer(ctx context.Context, handler QueryHandler, key, raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return
	}

	reply, err := handler(ctx, key, env.Body)
	if err != nil {
		reply = []byte(fmt.Sprintf(`{"success":false,"message":%q}`, err.Error()))
	}

	publishCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	_ = b.client.Publish(publishCtx, env.ReplyTo, reply).Err()
}

// Close releases the underlying Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

// toRedisPattern translates the recorder's "**"-glob topic syntax to Redis
// PSUBSCRIBE's glob-style pattern, which already supports "*" spanning
// segments — "**" collapses to "*" since Redis has no segment-aware
// wildcard distinct from plain "*".
func toRedisPattern(topicPattern string) string {
	return strings.ReplaceAll(topicPattern, "**", "*")
}

var _ Bus = (*RedisBus)(nil)
