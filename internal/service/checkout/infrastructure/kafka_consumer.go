package infrastructure

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"

	"glimmer/internal/pkg/logger"
	"glimmer/internal/pkg/mq"
	"glimmer/internal/service/checkout/domain"
)

// MessageFetcher 是 *kafka.Reader 的最小子集
type MessageFetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OrderPlacedHandler 处理一条下单事件
type OrderPlacedHandler func(ctx context.Context, evt domain.OrderPlaced) error

// OrderPlacedConsumer 消费 OrderPlaced 事件。处理失败只记录日志并提交，通知是尽力而为。
type OrderPlacedConsumer struct {
	reader  MessageFetcher
	handler OrderPlacedHandler
}

func NewOrderPlacedConsumer(reader MessageFetcher, handler OrderPlacedHandler) *OrderPlacedConsumer {
	return &OrderPlacedConsumer{reader: reader, handler: handler}
}

// Run 阻塞直到 ctx 结束
func (c *OrderPlacedConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		msgCtx := logger.WithTraceID(mq.ExtractTraceContext(ctx, msg.Headers))
		var evt domain.OrderPlaced
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Ctx(msgCtx).Error().Err(err).Int64("offset", msg.Offset).Msg("discarding malformed OrderPlaced message")
		} else if err := c.handler(msgCtx, evt); err != nil {
			logger.Ctx(msgCtx).Warn().Err(err).Str("order_id", evt.OrderID).Msg("failed to handle OrderPlaced")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
