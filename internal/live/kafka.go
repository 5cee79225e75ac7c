package live

import (
	"context"
	"errors"
	"io"

	"github.com/arthurstore/storefront/internal/metrics"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// KafkaSource delivers status events from a kafka topic via a consumer
// group, for deployments where the processor publishes updates to a broker
// instead of redis.
type KafkaSource struct {
	reader *kafka.Reader
}

// NewKafkaSource creates a source reading the given topic.
func NewKafkaSource(brokers []string, topic, groupID string) *KafkaSource {
	return &KafkaSource{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MaxBytes: 10e6, // 10MB
		}),
	}
}

// Subscribe starts the read loop.
func (s *KafkaSource) Subscribe(ctx context.Context) (<-chan StatusEvent, error) {
	out := make(chan StatusEvent)
	go func() {
		defer close(out)
		for {
			m, err := s.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
					return
				}
				log.Warn("Error reading status event: ", err)
				continue
			}

			ev, err := DecodeEvent(m.Value)
			if err != nil {
				metrics.LiveEventsTotal.WithLabelValues("malformed").Inc()
				log.WithField("payload", string(m.Value)).Warn("Dropping malformed status event: ", err)
				continue
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close shuts down the reader; the delivery loop ends on the next read.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
