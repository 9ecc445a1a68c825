package producer

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	sharedkafka "github.com/radieske/parimutuel-settlement/internal/shared/kafka"
)

// KafkaPublisher grava os eventos de mercado no tópico, chaveados pelo endereço do mercado.
type KafkaPublisher struct {
	Writer *kafka.Writer
	Topic  string
}

func NewKafkaPublisher(w *kafka.Writer, topic string) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, event any) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return sharedkafka.WriteJSON(ctx, p.Writer, key, b)
}

func (p *KafkaPublisher) Close() error { return p.Writer.Close() }
