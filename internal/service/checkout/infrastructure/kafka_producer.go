package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"glimmer/internal/pkg/mq"
	"glimmer/internal/service/checkout/domain"
)

// OrderEventsKafkaAdapter 实现了 domain.OrderEvents，按 userID 分区保证同一买家的通知有序
type OrderEventsKafkaAdapter struct {
	writer mq.MessageWriter
}

func NewOrderEventsKafkaAdapter(writer mq.MessageWriter) *OrderEventsKafkaAdapter {
	return &OrderEventsKafkaAdapter{writer: writer}
}

func (p *OrderEventsKafkaAdapter) PublishOrderPlaced(ctx context.Context, evt domain.OrderPlaced) error {
	eventBytes, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "marshal OrderPlaced event")
	}
	if err := mq.ProduceMessage(ctx, p.writer, []byte(evt.UserID), eventBytes); err != nil {
		return errors.Wrapf(err, "produce OrderPlaced for order %s", evt.OrderID)
	}
	return nil
}
