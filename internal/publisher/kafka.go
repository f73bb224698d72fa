package publisher

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"roadwatch/internal/logger"
	"roadwatch/internal/models"
)

// KafkaPublisher exports hazard events to a Kafka topic, keyed by hazard id
// so downstream consumers see per-hazard ordering.
type KafkaPublisher struct {
	producer     *kafka.Producer
	topic        string
	log          *logger.Logger
	deliveryChan chan kafka.Event
	done         chan struct{}
	wg           sync.WaitGroup
}

type hazardEvent struct {
	Event  string         `json:"event"`
	Hazard *models.Hazard `json:"hazard"`
}

func NewKafkaPublisher(brokers, topic string, log *logger.Logger) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"acks":               "all",
		"enable.idempotence": true,
		"linger.ms":          50,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	kp := &KafkaPublisher{
		producer:     p,
		topic:        topic,
		log:          log,
		deliveryChan: make(chan kafka.Event, 1000),
		done:         make(chan struct{}),
	}

	kp.wg.Add(1)
	go kp.handleDeliveryReports()

	log.Info("Kafka publisher initialized - topic: %s, brokers: %s", topic, brokers)
	return kp, nil
}

func (kp *KafkaPublisher) handleDeliveryReports() {
	defer kp.wg.Done()
	for {
		select {
		case <-kp.done:
			return
		case e := <-kp.deliveryChan:
			m, ok := e.(*kafka.Message)
			if !ok {
				continue
			}
			if m.TopicPartition.Error != nil {
				kp.log.Error("Hazard event delivery failed: %v", m.TopicPartition.Error)
			}
		}
	}
}

// Publish queues a hazard event for export. Delivery is asynchronous;
// failures surface through the delivery report handler.
func (kp *KafkaPublisher) Publish(event string, hazard *models.Hazard) error {
	payload, err := json.Marshal(hazardEvent{Event: event, Hazard: hazard})
	if err != nil {
		return fmt.Errorf("serializing hazard event: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &kp.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(hazard.HazardID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event)},
			{Key: "class_name", Value: []byte(hazard.ClassName)},
		},
	}

	if err := kp.producer.Produce(msg, kp.deliveryChan); err != nil {
		return fmt.Errorf("producing hazard event: %w", err)
	}
	return nil
}

// Close flushes pending messages and shuts the producer down.
func (kp *KafkaPublisher) Close() {
	remaining := kp.producer.Flush(10000)
	if remaining > 0 {
		kp.log.Warning("%d hazard events still queued after flush timeout", remaining)
	}
	close(kp.done)
	kp.wg.Wait()
	kp.producer.Close()
}
