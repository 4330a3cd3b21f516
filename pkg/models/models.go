package models

import (
	"time"
)

type TableStatus string

const (
	TableAvailable    TableStatus = "disponible"
	TableReserved     TableStatus = "reservada"
	TableOccupied     TableStatus = "ocupada"
	TableOutOfService TableStatus = "fuera_de_servicio"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableAvailable, TableReserved, TableOccupied, TableOutOfService:
		return true
	}
	return false
}

type Table struct {
	ID       int64       `json:"id"`
	TenantID int64       `json:"id_local"`
	Name     string      `json:"nombre"`
	Capacity int         `json:"capacidad"`
	Status   TableStatus `json:"estado"`
}

// Session is a QR binding between a table and either an order or a reservation.
type Session struct {
	ID            int64     `json:"id"`
	Code          string    `json:"codigo"`
	TableID       int64     `json:"id_mesa"`
	OrderID       *int64    `json:"id_pedido,omitempty"`
	ReservationID *int64    `json:"id_reserva,omitempty"`
	OwnerID       int64     `json:"id_usuario"`
	ExpiresAt     time.Time `json:"expiracion"`
	Active        bool      `json:"activo"`
	CreatedAt     time.Time `json:"creado_el"`
}

type Order struct {
	ID             int64      `json:"id"`
	TenantID       int64      `json:"id_local"`
	TableID        *int64     `json:"id_mesa,omitempty"`
	OwnerID        int64      `json:"id_usuario"`
	State          OrderState `json:"estado"`
	Total          int64      `json:"total"`
	CreatedAt      time.Time  `json:"creado_el"`
	UpdatedAt      time.Time  `json:"actualizado_el"`
	StateEnteredAt time.Time  `json:"estado_desde"`
	ExpiresAt      *time.Time `json:"expiracion,omitempty"`
}

type SubOrder struct {
	ID        int64         `json:"id"`
	OrderID   int64         `json:"id_pedido"`
	State     SubOrderState `json:"estado"`
	CreatedAt time.Time     `json:"creado_el"`
	Items     []LineItem    `json:"items"`
}

// Subtotal is the sum of the line items regardless of the sub-order state.
func (s SubOrder) Subtotal() int64 {
	var total int64
	for _, item := range s.Items {
		total += item.Subtotal()
	}
	return total
}

type LineItem struct {
	ID         int64  `json:"id"`
	SubOrderID int64  `json:"id_encomienda"`
	ProductID  int64  `json:"id_producto"`
	Quantity   int    `json:"cantidad"`
	UnitPrice  int64  `json:"precio_unitario"`
	Note       string `json:"nota,omitempty"`
}

func (i LineItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// SessionView is a validated session with its table and bound order.
type SessionView struct {
	Session Session `json:"sesion"`
	Table   Table   `json:"mesa"`
	Order   *Order  `json:"pedido,omitempty"`
}
