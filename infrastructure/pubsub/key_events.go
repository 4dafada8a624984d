package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"yt-fetcher/domain/apperror"
	"yt-fetcher/domain/model"
	"yt-fetcher/infrastructure/logger"
)

const keyChangeEventType = "key_change"

// KeyChangeHandler reacts to a key change received from the topic.
type KeyChangeHandler func(ctx context.Context, change model.KeyChange) error

// KeyEvents publishes and consumes key enable/disable events so every running process can
// reload its key pool.
type KeyEvents struct {
	client  *pubsub.Client
	topicID string
	subID   string
}

func NewKeyEvents(client *pubsub.Client, topicID, subID string) *KeyEvents {
	return &KeyEvents{client: client, topicID: topicID, subID: subID}
}

// EnsureTopic returns the topic, creating it when missing.
func (k *KeyEvents) EnsureTopic(ctx context.Context) (*pubsub.Topic, error) {
	topic := k.client.Topic(k.topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("topic %s exists: %w", k.topicID, err)
	}
	if !exists {
		logger.GetLogger().WithField("topic", k.topicID).Info("Topic doesn't exist - creating it")
		if topic, err = k.client.CreateTopic(ctx, k.topicID); err != nil {
			return nil, fmt.Errorf("create topic %s: %w", k.topicID, err)
		}
	}
	return topic, nil
}

// EnsureSubscription returns the subscription, creating it on the topic when missing.
func (k *KeyEvents) EnsureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := k.client.Subscription(k.subID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscription %s exists: %w", k.subID, err)
	}
	if exists {
		return sub, nil
	}
	topic, err := k.EnsureTopic(ctx)
	if err != nil {
		return nil, err
	}
	sub, err = k.client.CreateSubscription(ctx, k.subID, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 20 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription %s: %w", k.subID, err)
	}
	return sub, nil
}

// NotifyKeyChange publishes the change and waits for the server id.
func (k *KeyEvents) NotifyKeyChange(ctx context.Context, change model.KeyChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode key change: %w", err)
	}
	topic, err := k.EnsureTopic(ctx)
	if err != nil {
		return err
	}
	defer topic.Stop()

	serverID, err := topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"type": keyChangeEventType},
	}).Get(ctx)
	if err != nil {
		return fmt.Errorf("publish key change: %w", err)
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"serverID": serverID,
		"key":      apperror.MaskKey(change.Key),
		"active":   change.Active,
	}).Info("Key change published")
	return nil
}

// Listen receives key changes until ctx is done. Handler failures nack the message so it is
// redelivered; undecodable messages are acked and dropped.
func (k *KeyEvents) Listen(ctx context.Context, handle KeyChangeHandler) error {
	sub, err := k.EnsureSubscription(ctx)
	if err != nil {
		return err
	}
	logger.GetLogger().WithField("subID", k.subID).Info("PubSub starting...")

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if t := msg.Attributes["type"]; t != "" && t != keyChangeEventType {
			msg.Ack()
			return
		}
		var change model.KeyChange
		if err := json.Unmarshal(msg.Data, &change); err != nil {
			logger.GetLogger().WithField("error", err).Warn("dropping malformed key change event")
			msg.Ack()
			return
		}
		if err := handle(ctx, change); err != nil {
			logger.GetLogger().WithField("error", err).Error("key change handler failed")
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("receive %s: %w", k.subID, err)
	}
	return nil
}
