package orders

import (
	"mesa-qr/pkg/models"
)

// CanAdvanceOrder reports whether the order graph has an edge from -> to.
// Cancelling a served order is additionally gated on its expiration, see
// StateMachine.AdvanceOrder.
func CanAdvanceOrder(from, to models.OrderState) bool {
	switch from {
	case models.OrderIniciado:
		return to == models.OrderRecepcion || to == models.OrderCancelado
	case models.OrderRecepcion:
		return to == models.OrderEnProceso || to == models.OrderCancelado
	case models.OrderEnProceso:
		return to == models.OrderTerminado || to == models.OrderCancelado
	case models.OrderTerminado:
		return to == models.OrderServido || to == models.OrderCancelado
	case models.OrderServido:
		return to == models.OrderCompletado || to == models.OrderCancelado
	case models.OrderCompletado, models.OrderCancelado:
		return false
	}
	return false
}

func CanAdvanceSubOrder(from, to models.SubOrderState) bool {
	switch from {
	case models.SubOrderPendiente:
		return to == models.SubOrderEnPreparacion || to == models.SubOrderCancelada
	case models.SubOrderEnPreparacion:
		return to == models.SubOrderLista || to == models.SubOrderCancelada
	case models.SubOrderLista:
		return to == models.SubOrderEntregada || to == models.SubOrderCancelada
	case models.SubOrderEntregada, models.SubOrderCancelada:
		return false
	}
	return false
}
