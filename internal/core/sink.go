package core

import (
	"context"
	"fmt"
	"time"

	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"
)

type Clock interface {
	Now() time.Time
}

type CodeGenerator interface {
	Generate() (string, error)
}

// AlertSink delivers alerts to connected clients. Delivery is best effort;
// callers log failures and carry on.
type AlertSink interface {
	Publish(ctx context.Context, alert models.Alert) error
}

// Outbox buffers alerts raised inside a unit of work so they are only
// published once it has committed.
type Outbox struct {
	alerts []models.Alert
}

func (o *Outbox) Add(alerts ...models.Alert) {
	o.alerts = append(o.alerts, alerts...)
}

func (o *Outbox) Alerts() []models.Alert {
	return o.alerts
}

func (o *Outbox) Flush(ctx context.Context, sink AlertSink, log *logger.Logger, requestID string) {
	for _, a := range o.alerts {
		if err := sink.Publish(ctx, a); err != nil {
			log.Error(requestID, "alert_publish_failed",
				fmt.Sprintf("Failed to publish %s for tenant %d", a.Kind, a.TenantID), err)
		}
	}
	o.alerts = nil
}
