package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hms-notification-service/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaObserver publishes events as JSON, keyed by user id so one user's
// events stay ordered within a partition.
type KafkaObserver struct {
	writer        messageWriter
	logger        *zap.Logger
	publishErrors prometheus.Counter
	timeout       time.Duration
}

func NewKafkaObserver(brokers []string, topic string, reg prometheus.Registerer, logger *zap.Logger) *KafkaObserver {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		MaxAttempts:  3,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Warn(fmt.Sprintf(msg, args...))
		}),
	}
	logger.Info("kafka event writer initialized",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic),
		zap.String("mode", "async"))
	return newKafkaObserver(writer, reg, logger)
}

func newKafkaObserver(w messageWriter, reg prometheus.Registerer, logger *zap.Logger) *KafkaObserver {
	return &KafkaObserver{
		writer: w,
		logger: logger,
		publishErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of event publish errors",
		}),
		timeout: 5 * time.Second,
	}
}

func (k *KafkaObserver) Observe(ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		k.logger.Error("failed to marshal event", zap.String("event", string(ev.Type)), zap.Error(err))
		k.publishErrors.Inc()
		return
	}
	key := ev.UserID
	if key == "" {
		key = ev.ClientID
	}

	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		k.logger.Error("failed to publish event to Kafka", zap.String("event", string(ev.Type)), zap.Error(err))
		k.publishErrors.Inc()
	}
}

func (k *KafkaObserver) Close() error {
	return k.writer.Close()
}
