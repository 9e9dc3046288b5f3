package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
)

// GraphState keeps micrograph snapshots in a compacted topic, one message per asset.
type GraphState struct {
	kafkaClient sarama.Client
	producer    sarama.SyncProducer
	topic       string
}

func NewGraphState(kafkaClient sarama.Client, prod sarama.SyncProducer, topic string) *GraphState {
	return &GraphState{
		kafkaClient: kafkaClient,
		producer:    prod,
		topic:       topic,
	}
}

func (r *GraphState) LastState(ctx context.Context) (entity.GraphState, error) {
	// snapshots are written to a single partition
	state := entity.GraphState{
		Series: make(map[string]entity.GraphSeries),
	}

	next, err := r.kafkaClient.GetOffset(r.topic, 0, sarama.OffsetNewest)
	if err != nil {
		return state, fmt.Errorf("get offset: %w", err)
	}
	if next <= 0 {
		// empty topic
		return state, nil
	}

	cons, err := sarama.NewConsumerFromClient(r.kafkaClient)
	if err != nil {
		return state, fmt.Errorf("new consumer: %w", err)
	}
	defer cons.Close()

	cp, err := cons.ConsumePartition(r.topic, 0, sarama.OffsetOldest)
	if err != nil {
		return state, fmt.Errorf("consume partition: %w", err)
	}
	defer cp.Close()

	last := next - 1
	for {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case msg := <-cp.Messages():
			series, err := decodeSeries(msg.Value)
			if err != nil {
				return state, err
			}
			state.Series[series.Asset] = series

			if msg.Offset >= last {
				return state, nil
			}
		}
	}
}

func (r *GraphState) Store(ctx context.Context, state entity.GraphState) error {
	msgs := make([]*sarama.ProducerMessage, 0, len(state.Series))
	for name, series := range state.Series {
		payload, err := json.Marshal(series)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}

		msgs = append(msgs, &sarama.ProducerMessage{
			Topic:     r.topic,
			Key:       sarama.StringEncoder(name),
			Value:     sarama.ByteEncoder(payload),
			Partition: 0,
		})
	}
	if len(msgs) == 0 {
		return nil
	}

	return r.producer.SendMessages(msgs)
}

func decodeSeries(raw []byte) (entity.GraphSeries, error) {
	series := entity.GraphSeries{}
	if err := json.Unmarshal(raw, &series); err != nil {
		return series, fmt.Errorf("unmarshal: %w", err)
	}
	if series.Samples != nil && len(series.Samples.Data) == 0 {
		series.Samples = nil
	}
	return series, nil
}
