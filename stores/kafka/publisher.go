// Package kafka implements indexer.AuditPublisher over a sarama
// SyncProducer, grounded on the teacher's services/validator.Validator,
// which streams every validated transaction to Kafka the same way
// (publishToKafka: one ProducerMessage per item, partitioned by hashing a
// key derived from the item itself).
package kafka

import (
	"encoding/binary"
	"encoding/json"

	"github.com/IBM/sarama"

	"github.com/bitcoin-sv/brc20indexer/indexermodel"
)

// Publisher streams committed operation-log entries to a Kafka topic.
type Publisher struct {
	producer   sarama.SyncProducer
	topic      string
	partitions int32
}

// New dials brokers and returns a Publisher for topic, partitioned across
// partitions (the same URL-query-parameter shape the teacher's validator
// takes its kafkaPartitions from).
func New(brokers []string, topic string, partitions int32) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	if partitions <= 0 {
		partitions = 1
	}

	return &Publisher{producer: producer, topic: topic, partitions: partitions}, nil
}

// PublishOperation implements indexer.AuditPublisher. Partition is derived
// from the txid the same way the teacher hashes a chainhash into a
// partition index: the low 4 bytes of the txid string, modulo the
// partition count.
func (p *Publisher) PublishOperation(entry *indexermodel.OperationLogEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := []byte(entry.TxID)
	var partitionSeed uint32
	if len(key) >= 4 {
		partitionSeed = binary.LittleEndian.Uint32(key[:4])
	}
	partition := int32(partitionSeed % uint32(p.partitions))

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     p.topic,
		Partition: partition,
		Key:       sarama.StringEncoder(entry.TxID),
		Value:     sarama.ByteEncoder(value),
	})
	return err
}

// Close releases the underlying producer's connections.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
