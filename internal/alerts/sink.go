package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"mesa-qr/internal/core"
	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"

	"github.com/hashicorp/go-multierror"
)

// LogSink writes every alert to the service log.
type LogSink struct {
	logger *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) Publish(_ context.Context, a models.Alert) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", a.Kind, err)
	}
	s.logger.Info("", string(a.Kind),
		fmt.Sprintf("tenant=%d order=%d table=%d payload=%s", a.TenantID, a.OrderID, a.TableID, payload))
	return nil
}

// Fanout publishes to every sink and reports all failures together.
type Fanout []core.AlertSink

func (f Fanout) Publish(ctx context.Context, a models.Alert) error {
	var result *multierror.Error
	for _, sink := range f {
		if err := sink.Publish(ctx, a); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
