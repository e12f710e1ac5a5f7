package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes notices to a topic so an ops channel or ticketing
// bridge can pick them up.
type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.LeastBytes{},
		},
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, notice Notice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(notice.Ticker),
		Value: data,
		Time:  time.Now(),
	})
}

func (n *KafkaNotifier) Close() error { return n.writer.Close() }
