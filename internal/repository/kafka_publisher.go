package repository

import (
	"context"

	"LevelWatch/internal/domain/models"
	domrepo "LevelWatch/internal/domain/repository"
	pkgkafka "LevelWatch/pkg/kafka"
)

// KafkaBarPublisher implements Publisher for the bar archive topic.
type KafkaBarPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaBarPublisher creates the bar publisher.
func NewKafkaBarPublisher(producer *pkgkafka.Producer, topic string) domrepo.Publisher {
	return &KafkaBarPublisher{producer: producer, topic: topic}
}

func barPayload(b *models.Bar) map[string]interface{} {
	return map[string]interface{}{
		"symbol": b.Symbol,
		"t":      b.Timestamp.UTC().Unix(),
		"o":      b.Open,
		"h":      b.High,
		"l":      b.Low,
		"c":      b.Close,
		"v":      b.Volume,
	}
}

func (p *KafkaBarPublisher) Publish(ctx context.Context, b *models.Bar) error {
	return p.producer.Publish(ctx, p.topic, []byte(b.Symbol), barPayload(b))
}

func (p *KafkaBarPublisher) PublishBatch(ctx context.Context, bars []*models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(bars))
	for i, b := range bars {
		msgs[i] = pkgkafka.Message{Key: []byte(b.Symbol), Value: barPayload(b)}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaBarPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// KafkaEventPublisher pushes alerts and finalized outcomes to their
// respective topics. It shares the producer with the bar publisher, so
// Close is a no-op here.
type KafkaEventPublisher struct {
	producer     *pkgkafka.Producer
	alertTopic   string
	outcomeTopic string
}

// NewKafkaEventPublisher creates the alert/outcome publisher.
func NewKafkaEventPublisher(producer *pkgkafka.Producer, alertTopic, outcomeTopic string) domrepo.EventPublisher {
	return &KafkaEventPublisher{producer: producer, alertTopic: alertTopic, outcomeTopic: outcomeTopic}
}

func (p *KafkaEventPublisher) PublishAlert(ctx context.Context, a *models.Alert) error {
	return p.producer.Publish(ctx, p.alertTopic, []byte(a.Symbol), a)
}

func (p *KafkaEventPublisher) PublishOutcome(ctx context.Context, o *models.TradeOutcome) error {
	return p.producer.Publish(ctx, p.outcomeTopic, []byte(o.Symbol), o)
}

func (p *KafkaEventPublisher) Close() error {
	return nil
}
