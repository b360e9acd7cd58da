// Package queue publishes lifecycle events (boots, status changes,
// transaction starts and stops) to an external broker for downstream
// consumers such as billing.
package queue

import (
	"fmt"

	"go.uber.org/zap"
)

// MessageQueue defines the interface for a message queue adapter
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte) error) error
	Close() error
}

// New builds the queue backend named by driver: "nats", "rabbitmq" or
// "none".
func New(driver, url string, log *zap.Logger) (MessageQueue, error) {
	switch driver {
	case "nats":
		return NewNATSQueue(url, log)
	case "rabbitmq":
		return NewRabbitMQQueue(url, log)
	case "none", "":
		return NewNoopQueue(log), nil
	default:
		return nil, fmt.Errorf("queue: unknown driver %q", driver)
	}
}
