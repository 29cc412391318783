package main

import (
	"context"
	"fmt"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/angkor-storefront/pkg/outbox/routing"
)

// sink accepts deliveries without blocking; the returned pending resolves
// once the broker acks or rejects the message.
type sink interface {
	Publish(ctx context.Context, d routing.Delivery) pending
	Resume(topic, orderingKey string)
}

type pending interface {
	Get(ctx context.Context) (string, error)
}

type publisherSource interface {
	Publisher(topic string) *pubsub.Publisher
}

// topicSink publishes through one cached ordered publisher per topic.
type topicSink struct {
	src  publisherSource
	mu   sync.Mutex
	pubs map[string]*pubsub.Publisher
}

func newTopicSink(src publisherSource) *topicSink {
	return &topicSink{src: src, pubs: map[string]*pubsub.Publisher{}}
}

func (s *topicSink) publisher(topic string) *pubsub.Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pubs[topic]; ok {
		return p
	}
	p := s.src.Publisher(topic)
	if p != nil {
		s.pubs[topic] = p
	}
	return p
}

func (s *topicSink) Publish(ctx context.Context, d routing.Delivery) pending {
	p := s.publisher(d.Topic)
	if p == nil {
		return rejected{err: routing.Permanent(fmt.Errorf("no publisher for topic %q", d.Topic))}
	}
	return ack{p.Publish(ctx, &pubsub.Message{
		Data:        d.Body,
		Attributes:  d.Attributes,
		OrderingKey: d.OrderingKey,
	})}
}

func (s *topicSink) Resume(topic, orderingKey string) {
	if p := s.publisher(topic); p != nil {
		p.ResumePublish(orderingKey)
	}
}

// Stop flushes and stops every publisher handed out so far.
func (s *topicSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, p := range s.pubs {
		p.Stop()
		delete(s.pubs, topic)
	}
}

type ack struct{ res *pubsub.PublishResult }

func (a ack) Get(ctx context.Context) (string, error) {
	id, err := a.res.Get(ctx)
	return id, classify(err)
}

type rejected struct{ err error }

func (r rejected) Get(context.Context) (string, error) { return "", r.err }

// classify marks broker rejections that no retry can fix.
func classify(err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition:
		return routing.Permanent(err)
	}
	return err
}
