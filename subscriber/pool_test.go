package subscriber

import (
	"context"
	"testing"
	"time"

	"github.com/coscene-io/topicrecorder/bus"
	"github.com/coscene-io/topicrecorder/types"
)

type fakeBus struct {
	handler func(bus.Message)
}

type fakeSubscription struct{}

func (fakeSubscription) Unsubscribe() error { return nil }

func (b *fakeBus) Subscribe(ctx context.Context, topicPattern string, handler func(bus.Message)) (bus.Subscription, error) {
	b.handler = handler
	return fakeSubscription{}, nil
}

func (b *fakeBus) Publish(ctx context.Context, topic string, payload []byte) error { return nil }
func (b *fakeBus) Query(ctx context.Context, key string, request []byte, timeout time.Duration) ([]byte, error) {
	return nil, nil
}
func (b *fakeBus) RegisterQueryable(ctx context.Context, keyPattern string, handler bus.QueryHandler) (bus.Queryable, error) {
	return nil, nil
}
func (b *fakeBus) Close() error { return nil }

type fakeSink struct {
	pushed []types.Sample
}

func (s *fakeSink) Push(sample types.Sample) {
	s.pushed = append(s.pushed, sample)
}

func TestPool_DeliversWhenRecording(t *testing.T) {
	b := &fakeBus{}
	p := New(b)
	sink := &fakeSink{}

	_, err := p.Subscribe(context.Background(), "/a", sink, func() bool { return true }, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	b.handler(bus.Message{Topic: "/a", Payload: []byte("x"), TimestampNs: 42})

	if len(sink.pushed) != 1 {
		t.Fatalf("len(pushed) = %d, want 1", len(sink.pushed))
	}
	if sink.pushed[0].Topic != "/a" || sink.pushed[0].TimestampNs != 42 {
		t.Errorf("pushed sample = %+v", sink.pushed[0])
	}
}

func TestPool_DropsWhenNotRecording(t *testing.T) {
	b := &fakeBus{}
	p := New(b)
	sink := &fakeSink{}
	dropped := 0

	_, err := p.Subscribe(context.Background(), "/a", sink, func() bool { return false }, func() { dropped++ })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	b.handler(bus.Message{Topic: "/a", Payload: []byte("x"), TimestampNs: 42})

	if len(sink.pushed) != 0 {
		t.Errorf("len(pushed) = %d, want 0 while not recording", len(sink.pushed))
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestPool_DropsNilOnDroppedIsSafe(t *testing.T) {
	b := &fakeBus{}
	p := New(b)
	sink := &fakeSink{}

	_, err := p.Subscribe(context.Background(), "/a", sink, func() bool { return false }, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	b.handler(bus.Message{Topic: "/a", Payload: []byte("x"), TimestampNs: 1})
}
