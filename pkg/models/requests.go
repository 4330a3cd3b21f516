package models

import (
	"time"
)

type IssueSessionRequest struct {
	OwnerID       int64      `json:"id_usuario"`
	OrderID       *int64     `json:"id_pedido,omitempty"`
	ReservationID *int64     `json:"id_reserva,omitempty"`
	ReservationAt *time.Time `json:"fecha_reserva,omitempty"`
}

type LineItemRequest struct {
	ProductID int64  `json:"id_producto"`
	Quantity  int    `json:"cantidad"`
	UnitPrice int64  `json:"precio_unitario"`
	Note      string `json:"nota,omitempty"`
}

type AddItemsRequest struct {
	Items []LineItemRequest `json:"items"`
}

type StateRequest struct {
	State string `json:"estado"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
