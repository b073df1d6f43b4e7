package pubsub

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Provider builds publishers and subscribers on the configured transport.
// Topics are exchange names for subscribers and routing keys for publishers.
type Provider interface {
	// BuildPublisher publishes into exchange; the publish topic is the routing key.
	BuildPublisher(exchange string) (message.Publisher, error)
	// BuildSubscriber consumes exchange through queue, bound with bindingKey.
	// Subscribe with the exchange name as topic.
	BuildSubscriber(exchange, queue, bindingKey string) (message.Subscriber, error)
	Close() error
}

// [AMQP_TRANSPORT] RabbitMQ topic exchanges.
type amqpProvider struct {
	url    string
	logger watermill.LoggerAdapter

	mu      sync.Mutex
	closers []interface{ Close() error }
}

func NewAMQPProvider(url string, logger watermill.LoggerAdapter) Provider {
	return &amqpProvider{url: url, logger: logger}
}

func (p *amqpProvider) BuildPublisher(exchange string) (message.Publisher, error) {
	cfg := amqp.NewDurablePubSubConfig(p.url, nil)
	cfg.Exchange = amqp.ExchangeConfig{
		GenerateName: func(string) string { return exchange },
		Type:         "topic",
		Durable:      true,
	}
	cfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }

	pub, err := amqp.NewPublisher(cfg, p.logger)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher %s: %w", exchange, err)
	}
	p.track(pub)
	return pub, nil
}

func (p *amqpProvider) BuildSubscriber(exchange, queue, bindingKey string) (message.Subscriber, error) {
	cfg := amqp.NewDurablePubSubConfig(p.url, amqp.GenerateQueueNameConstant(queue))
	cfg.Exchange = amqp.ExchangeConfig{
		GenerateName: func(string) string { return exchange },
		Type:         "topic",
		Durable:      true,
	}
	// [NODE_LOCAL_QUEUE] Every node sees every injected event; the queue dies with the node.
	cfg.Queue.Durable = false
	cfg.Queue.AutoDelete = true
	cfg.QueueBind.GenerateRoutingKey = func(string) string { return bindingKey }

	sub, err := amqp.NewSubscriber(cfg, p.logger)
	if err != nil {
		return nil, fmt.Errorf("amqp subscriber %s: %w", queue, err)
	}
	p.track(sub)
	return sub, nil
}

func (p *amqpProvider) track(c interface{ Close() error }) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closers = append(p.closers, c)
}

func (p *amqpProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	p.closers = nil
	return errors.Join(errs...)
}

// [IN_MEMORY_TRANSPORT] Single node deployments and tests. One channel bus
// carries every exchange; the exchange name is the topic.
type memoryProvider struct {
	bus *gochannel.GoChannel
}

func NewMemoryProvider(logger watermill.LoggerAdapter) Provider {
	return &memoryProvider{
		bus: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger),
	}
}

func (p *memoryProvider) BuildPublisher(exchange string) (message.Publisher, error) {
	return exchangePublisher{exchange: exchange, next: p.bus}, nil
}

func (p *memoryProvider) BuildSubscriber(string, string, string) (message.Subscriber, error) {
	return p.bus, nil
}

func (p *memoryProvider) Close() error {
	return p.bus.Close()
}

// exchangePublisher keeps the routing key in metadata and publishes on the exchange topic,
// mirroring what a topic exchange would deliver to a catch-all binding.
type exchangePublisher struct {
	exchange string
	next     message.Publisher
}

func (p exchangePublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		if msg.Metadata.Get(MetadataRoutingKey) == "" {
			msg.Metadata.Set(MetadataRoutingKey, topic)
		}
	}
	return p.next.Publish(p.exchange, msgs...)
}

func (p exchangePublisher) Close() error { return nil }
