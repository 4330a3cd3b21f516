package models

import (
	"time"
)

// AlertKind is the event name an alert is published under.
type AlertKind string

const (
	KindSessionIssued     AlertKind = "qr_escaneado"
	KindSessionExpired    AlertKind = "sesion_expirada"
	KindOrderCreated      AlertKind = "nuevo_pedido"
	KindOrderState        AlertKind = "estado_pedido"
	KindOrderExpired      AlertKind = "pedido_expirado"
	KindOrderAlert        AlertKind = "alerta_pedido"
	KindKanbanUrgency     AlertKind = "urgencia_kanban"
	KindSubOrderCreated   AlertKind = "nueva_encomienda"
	KindSubOrderState     AlertKind = "estado_encomienda"
	KindTableChanged      AlertKind = "mesa_actualizada"
	KindExpirationChanged AlertKind = "expiracion_actualizada"
)

// Time-threshold alert types carried in the "tipo" field of an alerta_pedido
// payload and used as deduplication keys.
const (
	AlertTerminado5  = "terminado_5min"
	AlertTerminado10 = "terminado_10min"
	AlertServido15   = "servido_15min"
	AlertServido10   = "servido_10min"
	AlertServido5    = "servido_5min"
	AlertKanban      = "urgencia_kanban"
)

type Alert struct {
	TenantID int64          `json:"id_local"`
	Kind     AlertKind      `json:"evento"`
	OrderID  int64          `json:"id_pedido,omitempty"`
	TableID  int64          `json:"id_mesa,omitempty"`
	Payload  map[string]any `json:"datos,omitempty"`
	At       time.Time      `json:"timestamp"`
}

func TableChanged(table Table, at time.Time) Alert {
	return Alert{
		TenantID: table.TenantID,
		Kind:     KindTableChanged,
		TableID:  table.ID,
		Payload:  map[string]any{"estado": string(table.Status)},
		At:       at,
	}
}

func OrderStateChanged(order Order, from OrderState, at time.Time) Alert {
	a := Alert{
		TenantID: order.TenantID,
		Kind:     KindOrderState,
		OrderID:  order.ID,
		Payload: map[string]any{
			"estado_anterior": from.String(),
			"estado":          order.State.String(),
			"total":           order.Total,
		},
		At: at,
	}
	if order.TableID != nil {
		a.TableID = *order.TableID
	}
	return a
}
