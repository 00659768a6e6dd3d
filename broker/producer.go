package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kantinku/kantinku-api/utils"
)

// OrderEvent adalah payload lifecycle order yang dipublikasikan ke Kafka
// untuk konsumen downstream (reporting, audit).
type OrderEvent struct {
	Type      string    `json:"type"`
	OrderID   uint      `json:"order_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Producer membungkus kafka.Writer. Aman dipanggil pada receiver nil:
// tanpa broker, publish menjadi no-op.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}

// PublishOrderEvent mengirim satu event lifecycle, key per order supaya
// urutan event satu order terjaga dalam satu partisi. Kegagalan hanya
// dilog; publish tidak boleh menggagalkan operasi order.
func (p *Producer) PublishOrderEvent(ctx context.Context, eventType string, orderID uint, status string) {
	if p == nil {
		return
	}
	evt := OrderEvent{
		Type:      eventType,
		OrderID:   orderID,
		Status:    status,
		Timestamp: time.Now(),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("order-%d", orderID)),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		utils.ErrorLogger.Printf("kafka publish %s order %d gagal: %v", eventType, orderID, err)
	}
}
