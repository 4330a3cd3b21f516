package message

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"
	"mesa-qr/pkg/rabbitmq"
)

type fakeBroker struct {
	exchange   string
	routingKey string
	body       []byte
	err        error
}

func (f *fakeBroker) PublishMessage(_ context.Context, exchange, routingKey string, message []byte) error {
	f.exchange, f.routingKey, f.body = exchange, routingKey, message
	return f.err
}

func TestPublishRoutesByTenantAndEvent(t *testing.T) {
	broker := &fakeBroker{}
	p := NewAlertPublisher(broker, logger.NewNop())

	alert := models.Alert{TenantID: 12, Kind: models.KindOrderExpired, OrderID: 4}
	if err := p.Publish(context.Background(), alert); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if broker.exchange != rabbitmq.AlertsExchange {
		t.Fatalf("expected exchange %s, got %s", rabbitmq.AlertsExchange, broker.exchange)
	}
	if broker.routingKey != "tenant.12.pedido_expirado" {
		t.Fatalf("unexpected routing key %s", broker.routingKey)
	}

	var got models.Alert
	if err := json.Unmarshal(broker.body, &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.OrderID != 4 || got.Kind != models.KindOrderExpired {
		t.Fatalf("unexpected body %+v", got)
	}
}

func TestPublishWrapsBrokerErrors(t *testing.T) {
	down := errors.New("channel closed")
	p := NewAlertPublisher(&fakeBroker{err: down}, logger.NewNop())

	if err := p.Publish(context.Background(), models.Alert{TenantID: 1, Kind: models.KindTableChanged}); !errors.Is(err, down) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}
