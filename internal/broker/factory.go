package broker

import (
	"sentinel/internal/config"
	"sentinel/internal/logger"
)

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	return NewKafkaProducer(cfg.Kafka, log), nil
}

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	return NewKafkaConsumer(cfg.Kafka, log), nil
}
