package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mesa-qr/pkg/config"
	"mesa-qr/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AlertsExchange carries every alert under tenant.<id>.<event>.
const AlertsExchange = "alerts_topic"

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Logger  *logger.Logger

	publishMu sync.Mutex
}

func ConnectRabbitMQ(cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	err = channel.ExchangeDeclare(
		AlertsExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	log.Info("startup", "rabbitmq_connected", "Connected to RabbitMQ")
	return &RabbitMQ{
		Conn:    conn,
		Channel: channel,
		Logger:  log,
	}, nil
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.Conn != nil {
		r.Conn.Close()
	}
}

func (r *RabbitMQ) PublishMessage(ctx context.Context, exchange, routingKey string, message []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	return r.Channel.PublishWithContext(ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         message,
			Timestamp:    time.Now(),
		})
}

// RoutingKey builds the topic key for an alert. A tenant of 0 matches every
// tenant, which is what subscribers bind with when they want everything.
func RoutingKey(tenantID int64, event string) string {
	tenant := "*"
	if tenantID != 0 {
		tenant = fmt.Sprint(tenantID)
	}
	if event == "" {
		event = "*"
	}
	return fmt.Sprintf("tenant.%s.%s", tenant, event)
}
