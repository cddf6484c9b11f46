package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles publishing stock run events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
		now:    time.Now,
	}
}

// PublishStockRunCreated publishes a stock run created event
func (p *Producer) PublishStockRunCreated(ctx context.Context, stock *models.Stock) error {
	return p.publish(ctx, models.StockRunEvent{
		EventType: models.EventStockRunCreated,
		StockID:   stock.ID,
		UserID:    stock.UserID,
		Ticker:    stock.Ticker,
		Stock:     stock,
		Timestamp: p.now(),
	})
}

// PublishStockRunUpdated publishes a stock run updated event
func (p *Producer) PublishStockRunUpdated(ctx context.Context, stock *models.Stock) error {
	return p.publish(ctx, models.StockRunEvent{
		EventType: models.EventStockRunUpdated,
		StockID:   stock.ID,
		UserID:    stock.UserID,
		Ticker:    stock.Ticker,
		Stock:     stock,
		Timestamp: p.now(),
	})
}

// PublishStockRunDeleted publishes a stock run deleted event
func (p *Producer) PublishStockRunDeleted(ctx context.Context, userID, stockID int64) error {
	return p.publish(ctx, models.StockRunEvent{
		EventType: models.EventStockRunDeleted,
		StockID:   stockID,
		UserID:    userID,
		Timestamp: p.now(),
	})
}

// Messages are keyed by owner so one user's events stay ordered on a partition
func (p *Producer) publish(ctx context.Context, event models.StockRunEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.UserID, 10)),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
