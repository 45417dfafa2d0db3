// Package bus defines the abstract pub/sub contract the recorder core
// depends on (§6.1) and ships one concrete binding, RedisBus, built on
// github.com/redis/go-redis/v9.
package bus

import (
	"context"
	"time"
)

// Message is one delivery to a topic subscription.
type Message struct {
	Topic       string
	Payload     []byte
	TimestampNs int64
}

// Subscription is an active subscription that can be torn down. The bus
// guarantees no further callbacks once Unsubscribe returns (§4.6).
type Subscription interface {
	Unsubscribe() error
}

// Queryable is a registered request/reply endpoint that can be torn down.
type Queryable interface {
	Close() error
}

// QueryHandler answers one request, returning the reply payload (or an
// error, which the bus binding is responsible for surfacing to the caller).
// key is the concrete key the request arrived on, which may be a specific
// instance of a registered glob pattern (e.g. "recorder/control/dev-42"
// matching a "recorder/control/*" registration) — callers that multiplex
// per-device or per-recording routing read the trailing segment from key.
type QueryHandler func(ctx context.Context, key string, request []byte) ([]byte, error)

// Bus is the pub/sub contract the recorder core depends on: topic
// subscriptions for ingestion, and a query/reply pattern for the control
// surface (§4.7). Redis has no native RPC primitive, so RegisterQueryable
// and Query are implemented over plain Pub/Sub channels by RedisBus.
type Bus interface {
	// Subscribe installs handler for topicPattern (glob-style, "**"
	// supported), returning a Subscription that can later be torn down.
	Subscribe(ctx context.Context, topicPattern string, handler func(Message)) (Subscription, error)

	// Publish sends payload on topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Query sends request to key and blocks for a single reply, bounded by
	// timeout.
	Query(ctx context.Context, key string, request []byte, timeout time.Duration) ([]byte, error)

	// RegisterQueryable installs handler to answer requests sent to
	// keyPattern via Query.
	RegisterQueryable(ctx context.Context, keyPattern string, handler QueryHandler) (Queryable, error)

	// Close releases all bus resources.
	Close() error
}
