package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopq/internal/messaging/kafka"
)

// initKafkaProducer инициализирует Kafka producer если brokers не пустой.
// Возвращает nil, nil если brokers пустой или если произошла ошибка.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// initKafkaConsumer подписывает dispatcher на очереди заказов и возвратов.
// Producer используется как DLQ-публикатор для исчерпавших retry сообщений.
func initKafkaConsumer(cfg Config, handler kafka.MessageHandler, dlqProducer *kafka.Producer) (*kafka.Consumer, error) {
	topics := []string{kafka.TopicOrdersSubmitted, kafka.TopicRefundsRequested}
	return kafka.NewConsumerWithDLQ(cfg.Brokers(), cfg.KafkaGroupID, topics, handler, dlqProducer, cfg.KafkaMaxRetries)
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
