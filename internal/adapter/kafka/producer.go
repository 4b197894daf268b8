package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/olyamironova/spot-exchange/internal/domain"
	"github.com/olyamironova/spot-exchange/internal/port"
)

var _ port.EventPublisher = (*Producer)(nil)

// TradeEvent is the message value written for every executed trade.
type TradeEvent struct {
	ID           string          `json:"id"`
	Market       string          `json:"market"`
	Seq          uint64          `json:"seq"`
	TakerOrderID string          `json:"taker_order_id"`
	MakerOrderID string          `json:"maker_order_id"`
	BuyerID      string          `json:"buyer_id"`
	SellerID     string          `json:"seller_id"`
	Price        decimal.Decimal `json:"price"`
	Volume       decimal.Decimal `json:"volume"`
	BidPrice     decimal.Decimal `json:"bid_price"`
	ExecutedAt   time.Time       `json:"executed_at"`
}

// Producer publishes trades keyed by market, so one market's trades share a
// partition. Writes are synchronous: given batches in Seq order, as the
// registry's dispatcher delivers them, the partition keeps that order.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) PublishTrades(ctx context.Context, market string, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	msgs, err := tradeMessages(market, trades)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka: publish %d trades of %s: %w", len(trades), market, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func tradeMessages(market string, trades []domain.Trade) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(trades))
	for _, t := range trades {
		value, err := json.Marshal(TradeEvent{
			ID:           t.ID,
			Market:       t.Market,
			Seq:          t.Seq,
			TakerOrderID: t.TakerOrderID,
			MakerOrderID: t.MakerOrderID,
			BuyerID:      t.BuyerID,
			SellerID:     t.SellerID,
			Price:        t.Price,
			Volume:       t.Volume,
			BidPrice:     t.BidPrice,
			ExecutedAt:   t.ExecutedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("kafka: encode trade %s: %w", t.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(market),
			Value: value,
			Time:  t.ExecutedAt,
		})
	}
	return msgs, nil
}
