// Package subscriber wires bus subscriptions into TopicBuffer pushes (§4.6).
// The callback it installs is the hot path: short-circuit check, construct a
// Sample, push — nothing else, and no allocation beyond the Sample itself.
package subscriber

import (
	"context"

	"github.com/coscene-io/topicrecorder/bus"
	"github.com/coscene-io/topicrecorder/types"
)

// Sink is the push side of a TopicBuffer.
type Sink interface {
	Push(sample types.Sample)
}

// Pool creates bus subscriptions that route incoming messages into the
// correct TopicBuffer, short-circuiting while the owning session is not in
// the Recording state.
type Pool struct {
	bus bus.Bus
}

// New creates a subscriber Pool bound to b.
func New(b bus.Bus) *Pool {
	return &Pool{bus: b}
}

// Subscribe installs a callback for topic that pushes into sink whenever
// recording() reports true at delivery time, and drops (counting via
// onDropped, which may be nil) otherwise — e.g. messages arriving during a
// Pause.
func (p *Pool) Subscribe(ctx context.Context, topic string, sink Sink, recording func() bool, onDropped func()) (bus.Subscription, error) {
	return p.bus.Subscribe(ctx, topic, func(m bus.Message) {
		if !recording() {
			if onDropped != nil {
				onDropped()
			}
			return
		}
		sink.Push(types.Sample{
			Topic:       m.Topic,
			TimestampNs: m.TimestampNs,
			Payload:     m.Payload,
		})
	})
}
