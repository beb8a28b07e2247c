package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSink mirrors order events to a Kafka topic so downstream
// consumers see the same stream the admin chat does. Disabled when no
// brokers are configured.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokersCSV, topic string) *KafkaSink {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return &KafkaSink{}
	}

	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (s *KafkaSink) Enabled() bool {
	return s.writer != nil
}

func (s *KafkaSink) Send(ctx context.Context, evt Event) error {
	if s.writer == nil {
		return nil
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Email),
		Value: data,
		Time:  time.Now().UTC(),
	})
}

func (s *KafkaSink) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
