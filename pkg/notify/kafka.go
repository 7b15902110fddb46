package notify

import (
	"context"
	"strings"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/grantsync/pkg/config"
	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/logger"
)

// Kafka publishes each report as a JSON message keyed by deployment and
// mode, so reports of one mode stay ordered on a partition.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewKafka connects a synchronous producer to cfg.Brokers.
func NewKafka(cfg config.KafkaConfig) (*Kafka, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, ProducerConfig(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create Kafka producer")
	}
	return NewKafkaWithProducer(producer, cfg.Topic), nil
}

// NewKafkaWithProducer wraps an existing producer.
func NewKafkaWithProducer(p sarama.SyncProducer, topic string) *Kafka {
	return &Kafka{producer: p, topic: topic, logger: logger.Named("kafka_notify")}
}

// ProducerConfig maps cfg onto a sarama configuration.
func ProducerConfig(cfg config.KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	switch strings.ToLower(cfg.RequiredAcks) {
	case "none":
		sc.Producer.RequiredAcks = sarama.NoResponse
	case "local":
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	default:
		sc.Producer.RequiredAcks = sarama.WaitForAll
	}
	if cfg.Timeout > 0 {
		sc.Producer.Timeout = cfg.Timeout
		sc.Net.DialTimeout = cfg.Timeout
	}
	return sc
}

// Notify implements Notifier.
func (k *Kafka) Notify(_ context.Context, r *Report) error {
	value, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "encode report")
	}
	status := "succeeded"
	if !r.Succeeded {
		status = "failed"
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(r.Deployment + "/" + string(r.Mode)),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("run_id"), Value: []byte(r.RunID)},
			{Key: []byte("status"), Value: []byte(status)},
		},
	}
	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to publish report").WithDetail("topic", k.topic)
	}
	k.logger.Debug("published report",
		zap.String("run_id", r.RunID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// Close implements Notifier.
func (k *Kafka) Close() error {
	return k.producer.Close()
}
