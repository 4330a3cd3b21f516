package notifier

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"
)

type Notifier struct {
	logger *logger.Logger
	out    io.Writer
}

func NewNotifier(out io.Writer, logger *logger.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		out:    out,
	}
}

func (n *Notifier) DisplayNotification(alert *models.Alert) {
	fmt.Fprintln(n.out, Format(alert))
}

// Format renders an alert as one human-readable line.
func Format(alert *models.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] tenant %d: %s", alert.At.Format(time.RFC3339), alert.TenantID, alert.Kind)
	if alert.TableID != 0 {
		fmt.Fprintf(&b, " table=%d", alert.TableID)
	}
	if alert.OrderID != 0 {
		fmt.Fprintf(&b, " order=%d", alert.OrderID)
	}

	keys := make([]string, 0, len(alert.Payload))
	for k := range alert.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, alert.Payload[k])
	}
	return b.String()
}
