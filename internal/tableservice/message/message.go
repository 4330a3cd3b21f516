package message

import (
	"context"
	"encoding/json"
	"fmt"

	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"
	"mesa-qr/pkg/rabbitmq"
)

type publisher interface {
	PublishMessage(ctx context.Context, exchange, routingKey string, message []byte) error
}

// AlertPublisher sends alerts to the broker for out-of-process subscribers.
type AlertPublisher struct {
	rabbitMQ publisher
	logger   *logger.Logger
}

func NewAlertPublisher(rabbitMQ publisher, logger *logger.Logger) *AlertPublisher {
	return &AlertPublisher{
		rabbitMQ: rabbitMQ,
		logger:   logger,
	}
}

func (p *AlertPublisher) Publish(ctx context.Context, alert models.Alert) error {
	messageBytes, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	routingKey := rabbitmq.RoutingKey(alert.TenantID, string(alert.Kind))
	if err := p.rabbitMQ.PublishMessage(ctx, rabbitmq.AlertsExchange, routingKey, messageBytes); err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	p.logger.Debug("", "alert_published", fmt.Sprintf("Alert published with routing key: %s", routingKey))
	return nil
}
