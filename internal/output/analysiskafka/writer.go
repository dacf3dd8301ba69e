package analysiskafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"honeytrail/internal/logger"
	"honeytrail/pkg/models"
)

// Config configures the Kafka producer.
type Config struct {
	Brokers []string
	Topic   string
	Version string
	Timeout time.Duration
}

// Writer produces analysis records keyed by session id.
type Writer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewWriter connects a synchronous producer.
func NewWriter(cfg Config) (*Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are empty")
	}
	config := sarama.NewConfig()
	if cfg.Version != "" {
		version, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, err
		}
		config.Version = version
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Net.DialTimeout = timeout
	config.Net.ReadTimeout = timeout
	config.Net.WriteTimeout = timeout

	logger.Infof("Connecting Kafka brokers: %v", cfg.Brokers)
	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewWriterWithProducer(producer, cfg.Topic), nil
}

// NewWriterWithProducer wraps an existing producer.
func NewWriterWithProducer(producer sarama.SyncProducer, topic string) *Writer {
	if topic == "" {
		topic = "honeytrail-analysis"
	}
	return &Writer{producer: producer, topic: topic}
}

// WriteAnalyses sends the batch in one request.
func (w *Writer) WriteAnalyses(records []*models.AnalysisRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]*sarama.ProducerMessage, 0, len(records))
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal analysis record: %w", err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: w.topic,
			Key:   sarama.StringEncoder(rec.SessionID),
			Value: sarama.ByteEncoder(data),
			Headers: []sarama.RecordHeader{
				{Key: []byte("sensor"), Value: []byte(rec.Sensor)},
			},
		})
	}
	if err := w.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("produce %d records: %w", len(msgs), err)
	}
	return nil
}

// Close closes the producer.
func (w *Writer) Close() error {
	return w.producer.Close()
}
