package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/expirians/orders-ms/internal/domain"
)

// logPublisher пишет outbox-события в лог вместо Kafka. Используется,
// когда брокеры не сконфигурированы, чтобы outbox не накапливался.
type logPublisher struct {
	logger *log.Entry
}

func newLogPublisher(logger *log.Entry) *logPublisher {
	if logger == nil {
		logger = log.WithField("component", "log-publisher")
	}
	return &logPublisher{logger: logger}
}

var _ domain.OutboxPublisher = (*logPublisher)(nil)

func (p *logPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"event_id":     event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	}).Info("outbox event published to log")
	return nil
}
