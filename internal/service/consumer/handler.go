package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/forkme7/BoxOptionsServer/internal/entity"
	"github.com/forkme7/BoxOptionsServer/internal/event"
	"github.com/forkme7/BoxOptionsServer/pkg/ebus"
)

var _ sarama.ConsumerGroupHandler = Handler{}

type Handler struct {
	topic string
	eBus  *ebus.EBus
}

func (h Handler) Setup(session sarama.ConsumerGroupSession) error {
	return nil
}

func (h Handler) Cleanup(session sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim hands quotes to listeners one at a time and marks each
// after it was handled.
func (h Handler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			errs := make(chan error, 1)
			go func() {
				errs <- h.handle(session.Context(), msg)
			}()
			select {
			case err := <-errs:
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return fmt.Errorf("claim handle: %w", err)
				}
				session.MarkMessage(msg, "")
			case <-session.Context().Done():
				return nil
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

func (h Handler) topics() []string {
	return []string{h.topic}
}

func (h Handler) handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	price := entity.Price{}
	if err := json.Unmarshal(message.Value, &price); err != nil {
		// a broken quote must not stop the feed
		return h.eBus.Emit(ctx, event.PriceSkipped{
			Instrument: string(message.Key),
			Reason:     fmt.Sprintf("unmarshal price at offset %d: %s", message.Offset, err),
		})
	}

	return h.eBus.Emit(ctx, event.PriceReceived{
		Price:  price,
		Offset: message.Offset,
	})
}
