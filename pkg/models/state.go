package models

import (
	"fmt"
)

type OrderState uint8

const (
	OrderIniciado OrderState = iota + 1
	OrderRecepcion
	OrderEnProceso
	OrderTerminado
	OrderServido
	OrderCompletado
	OrderCancelado
)

var orderStateNames = map[OrderState]string{
	OrderIniciado:   "INICIADO",
	OrderRecepcion:  "RECEPCION",
	OrderEnProceso:  "EN_PROCESO",
	OrderTerminado:  "TERMINADO",
	OrderServido:    "SERVIDO",
	OrderCompletado: "COMPLETADO",
	OrderCancelado:  "CANCELADO",
}

// OrderStates lists every order state in lifecycle order.
var OrderStates = []OrderState{
	OrderIniciado, OrderRecepcion, OrderEnProceso, OrderTerminado,
	OrderServido, OrderCompletado, OrderCancelado,
}

func (s OrderState) String() string {
	if name, ok := orderStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("OrderState(%d)", uint8(s))
}

func (s OrderState) Terminal() bool {
	return s == OrderCompletado || s == OrderCancelado
}

func ParseOrderState(v string) (OrderState, error) {
	for state, name := range orderStateNames {
		if name == v {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown order state %q", v)
}

func (s OrderState) MarshalText() ([]byte, error) {
	if _, ok := orderStateNames[s]; !ok {
		return nil, fmt.Errorf("unknown order state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *OrderState) UnmarshalText(b []byte) error {
	parsed, err := ParseOrderState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type SubOrderState uint8

const (
	SubOrderPendiente SubOrderState = iota + 1
	SubOrderEnPreparacion
	SubOrderLista
	SubOrderEntregada
	SubOrderCancelada
)

var subOrderStateNames = map[SubOrderState]string{
	SubOrderPendiente:     "PENDIENTE",
	SubOrderEnPreparacion: "EN_PREPARACION",
	SubOrderLista:         "LISTA",
	SubOrderEntregada:     "ENTREGADA",
	SubOrderCancelada:     "CANCELADA",
}

var SubOrderStates = []SubOrderState{
	SubOrderPendiente, SubOrderEnPreparacion, SubOrderLista,
	SubOrderEntregada, SubOrderCancelada,
}

func (s SubOrderState) String() string {
	if name, ok := subOrderStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SubOrderState(%d)", uint8(s))
}

func (s SubOrderState) Terminal() bool {
	return s == SubOrderEntregada || s == SubOrderCancelada
}

func ParseSubOrderState(v string) (SubOrderState, error) {
	for state, name := range subOrderStateNames {
		if name == v {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown sub-order state %q", v)
}

func (s SubOrderState) MarshalText() ([]byte, error) {
	if _, ok := subOrderStateNames[s]; !ok {
		return nil, fmt.Errorf("unknown sub-order state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *SubOrderState) UnmarshalText(b []byte) error {
	parsed, err := ParseSubOrderState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
