package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/ambershop/api/internal/services"
)

// PubSubOrderEventPublisher publishes placed-order events to a Pub/Sub topic.
type PubSubOrderEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderEventPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderEventPublisher(topic *pubsub.Topic) (*PubSubOrderEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order event publisher: topic is required")
	}
	return &PubSubOrderEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderPlaced enqueues an order.placed message on the configured topic.
func (p *PubSubOrderEventPublisher) PublishOrderPlaced(ctx context.Context, event services.OrderPlacedEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub order event publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal order placed event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "countryCode", event.CountryCode)
	setAttr(attrs, "promoCode", event.PromoCode)
	setAttr(attrs, "currency", event.Currency)
	attrs["totalCents"] = strconv.FormatInt(event.Total, 10)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish order placed event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
