package queue

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// PubSubProvider implements Provider on Google Cloud Pub/Sub. It
// authenticates with Application Default Credentials.
type PubSubProvider struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	logger *zap.Logger
}

// NewPubSubProvider connects to the topic and subscription. opts carries
// test overrides such as a fake server connection.
func NewPubSubProvider(ctx context.Context, projectID, topicID, subID string, logger *zap.Logger, opts ...option.ClientOption) (*PubSubProvider, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	ok, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check pubsub topic %s: %w", topicID, err)
	}
	if !ok {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %s does not exist in project %s", topicID, projectID)
	}

	var sub *pubsub.Subscription
	if subID != "" {
		sub = client.Subscription(subID)
		ok, err := sub.Exists(ctx)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("check pubsub subscription %s: %w", subID, err)
		}
		if !ok {
			_ = client.Close()
			return nil, fmt.Errorf("pubsub subscription %s does not exist in project %s", subID, projectID)
		}
	}

	return &PubSubProvider{client: client, topic: topic, sub: sub, logger: logger}, nil
}

// Publish sends one invocation and waits for the server ack so a dropped
// stage start is surfaced to the caller.
func (p *PubSubProvider) Publish(ctx context.Context, inv Invocation) error {
	data, err := inv.Encode()
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish invocation: %w", err)
	}
	return nil
}

// Receive delivers invocations until the context ends. Undecodable
// messages are acked and logged so they do not redeliver forever.
func (p *PubSubProvider) Receive(ctx context.Context, handle func(context.Context, Invocation)) error {
	if p.sub == nil {
		return fmt.Errorf("no subscription configured")
	}
	return p.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		inv, err := DecodeInvocation(msg.Data)
		if err != nil {
			p.logger.Warn("dropping malformed invocation", zap.Error(err))
			msg.Ack()
			return
		}
		handle(ctx, inv)
		msg.Ack()
	})
}

// Close stops the publisher and closes the client.
func (p *PubSubProvider) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
