package subscriber

import (
	"context"
	"fmt"
	"os"

	"mesa-qr/internal/notificationsubscriber/message"
	"mesa-qr/internal/notificationsubscriber/notifier"
	"mesa-qr/pkg/config"
	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/rabbitmq"
)

// NotificationSubscriber prints the alerts of one tenant, or of all tenants
// when TenantID is 0.
type NotificationSubscriber struct {
	config    *config.Config
	logger    *logger.Logger
	tenantID  int64
	event     string
	rabbitMQ  *rabbitmq.RabbitMQ
	notifier  *notifier.Notifier
	msgParser *message.MessageParser
}

func NewNotificationSubscriber(cfg *config.Config, tenantID int64, event string, logger *logger.Logger) *NotificationSubscriber {
	return &NotificationSubscriber{
		config:    cfg,
		logger:    logger,
		tenantID:  tenantID,
		event:     event,
		notifier:  notifier.NewNotifier(os.Stdout, logger),
		msgParser: message.NewMessageParser(logger),
	}
}

func (s *NotificationSubscriber) Start(ctx context.Context) error {
	rmq, err := rabbitmq.ConnectRabbitMQ(&s.config.RabbitMQ, s.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	s.rabbitMQ = rmq

	q, err := rmq.Channel.QueueDeclare(
		"",    // name (let server generate)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	routingKey := rabbitmq.RoutingKey(s.tenantID, s.event)
	err = rmq.Channel.QueueBind(
		q.Name,                  // queue name
		routingKey,              // routing key
		rabbitmq.AlertsExchange, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	messages, err := rmq.Channel.Consume(
		q.Name, // queue
		"",     // consumer
		true,   // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	s.logger.Info("startup", "subscriber_started",
		fmt.Sprintf("Notification subscriber listening on %s", routingKey))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			if err := s.processMessage(msg.Body); err != nil {
				s.logger.Error("message_processing", "process_failed", "Failed to process message", err)
			}
		}
	}
}

func (s *NotificationSubscriber) processMessage(messageBytes []byte) error {
	alert, err := s.msgParser.ParseAlert(messageBytes)
	if err != nil {
		return err
	}

	s.notifier.DisplayNotification(alert)

	s.logger.Debug("message_processing", "notification_displayed",
		fmt.Sprintf("Displayed %s for tenant %d", alert.Kind, alert.TenantID))
	return nil
}

func (s *NotificationSubscriber) Stop() {
	if s.rabbitMQ != nil {
		s.rabbitMQ.Close()
	}
}
