package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
)

// Quote publishes prices to the feed topic.
type Quote struct {
	producer sarama.SyncProducer
	topic    string
}

func NewQuote(producer sarama.SyncProducer, topic string) *Quote {
	return &Quote{producer: producer, topic: topic}
}

func (q Quote) Store(ctx context.Context, price entity.Price) error {
	js, err := json.Marshal(price)
	if err != nil {
		return fmt.Errorf("json marshal price: %w", err)
	}

	_, _, err = q.producer.SendMessage(&sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.StringEncoder(price.Instrument),
		Value: sarama.ByteEncoder(js),
	})
	if err != nil {
		return fmt.Errorf("send price to kafka: %w", err)
	}

	return nil
}
