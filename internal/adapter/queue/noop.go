package queue

import "go.uber.org/zap"

// NoopQueue discards every publish. It backs deployments that run without a
// broker.
type NoopQueue struct {
	log *zap.Logger
}

func NewNoopQueue(log *zap.Logger) MessageQueue {
	log.Info("Event publishing disabled, no queue configured")
	return &NoopQueue{log: log}
}

func (q *NoopQueue) Publish(subject string, data []byte) error {
	return nil
}

func (q *NoopQueue) Subscribe(subject string, handler func(data []byte) error) error {
	q.log.Debug("Ignoring subscription, no queue configured", zap.String("subject", subject))
	return nil
}

func (q *NoopQueue) Close() error {
	return nil
}
