package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"fleet-eta/internal/fleet"
)

// KafkaPublisher writes ETA updates to a topic keyed by trip id.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	metrics  PublisherMetrics
}

func NewKafkaPublisher(brokers, topic string, m PublisherMetrics) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "fleet-eta"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true // required by SyncProducer
	cfg.Net.DialTimeout = 30 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second

	brokerList := strings.Split(brokers, ",")
	producer, err := sarama.NewSyncProducer(brokerList, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	log.Printf("kafka producer connected to %v (topic %s)", brokerList, topic)
	return newKafkaPublisher(producer, topic, m), nil
}

func newKafkaPublisher(producer sarama.SyncProducer, topic string, m PublisherMetrics) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, metrics: m}
}

// PublishETAs sends the batch in one request.
func (k *KafkaPublisher) PublishETAs(recs []fleet.ETARecord) {
	if err := k.publish(recs); err != nil {
		log.Printf("kafka publish error: %v", err)
	}
}

func (k *KafkaPublisher) publish(recs []fleet.ETARecord) error {
	msgs := make([]*sarama.ProducerMessage, 0, len(recs))
	for _, rec := range recs {
		b, err := json.Marshal(newETAMessage(rec))
		if err != nil {
			return err
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: k.topic,
			Key:   sarama.StringEncoder(rec.TripID),
			Value: sarama.ByteEncoder(b),
		})
	}
	start := time.Now()
	err := k.producer.SendMessages(msgs)
	if k.metrics != nil {
		k.metrics.PublishObserve("kafka", time.Since(start))
		if err != nil {
			k.metrics.PublishErrInc("kafka")
		} else {
			for range msgs {
				k.metrics.PublishedInc("kafka")
			}
		}
	}
	return err
}

func (k *KafkaPublisher) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}

// Multi fans ETA batches out to several sinks.
type Multi []interface {
	PublishETAs(recs []fleet.ETARecord)
}

func (m Multi) PublishETAs(recs []fleet.ETARecord) {
	for _, s := range m {
		s.PublishETAs(recs)
	}
}
