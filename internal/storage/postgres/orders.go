package postgres

import (
	"context"
	"fmt"

	"mesa-qr/pkg/models"

	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, id_local, id_mesa, id_usuario, estado, total, creado_el, actualizado_el, estado_desde, expiracion`

func scanOrder(row pgx.Row) (models.Order, error) {
	var (
		o     models.Order
		state string
	)
	err := row.Scan(&o.ID, &o.TenantID, &o.TableID, &o.OwnerID, &state, &o.Total,
		&o.CreatedAt, &o.UpdatedAt, &o.StateEnteredAt, &o.ExpiresAt)
	if err != nil {
		return models.Order{}, err
	}
	if o.State, err = models.ParseOrderState(state); err != nil {
		return models.Order{}, err
	}
	return o, nil
}

func (t *pgTx) CreateOrder(ctx context.Context, o *models.Order) error {
	err := t.tx.QueryRow(ctx, `
        INSERT INTO pedido (id_local, id_mesa, id_usuario, estado, total, creado_el, actualizado_el, estado_desde, expiracion)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `, o.TenantID, o.TableID, o.OwnerID, o.State.String(), o.Total,
		o.CreatedAt, o.UpdatedAt, o.StateEnteredAt, o.ExpiresAt).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (t *pgTx) GetOrder(ctx context.Context, id int64) (models.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM pedido WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return models.Order{}, notFound(err, "order", id)
	}
	return o, nil
}

func (t *pgTx) LiveOrderByTable(ctx context.Context, tableID int64) (models.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `
        SELECT `+orderColumns+`
        FROM pedido
        WHERE id_mesa = $1 AND estado NOT IN ('COMPLETADO', 'CANCELADO')
        ORDER BY id DESC
        LIMIT 1
        FOR UPDATE
    `, tableID))
	if err != nil {
		return models.Order{}, notFound(err, "live order for table", tableID)
	}
	return o, nil
}

func (t *pgTx) ListLiveOrders(ctx context.Context, tenantID int64) ([]models.Order, error) {
	rows, err := t.tx.Query(ctx, `
        SELECT `+orderColumns+`
        FROM pedido
        WHERE id_local = $1 AND estado NOT IN ('COMPLETADO', 'CANCELADO')
        ORDER BY id
    `, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query live orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (t *pgTx) UpdateOrder(ctx context.Context, o models.Order) error {
	tag, err := t.tx.Exec(ctx, `
        UPDATE pedido
        SET id_mesa = $2, estado = $3, total = $4, actualizado_el = $5, estado_desde = $6, expiracion = $7
        WHERE id = $1
    `, o.ID, o.TableID, o.State.String(), o.Total, o.UpdatedAt, o.StateEnteredAt, o.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to update order %d: %w", o.ID, err)
	}
	return checkAffected(tag, "order", o.ID)
}

func (t *pgTx) CreateSubOrder(ctx context.Context, so *models.SubOrder) error {
	err := t.tx.QueryRow(ctx, `
        INSERT INTO encomienda (id_pedido, estado, creado_el)
        VALUES ($1, $2, $3)
        RETURNING id
    `, so.OrderID, so.State.String(), so.CreatedAt).Scan(&so.ID)
	if err != nil {
		return fmt.Errorf("failed to insert sub-order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, item := range so.Items {
		batch.Queue(`
            INSERT INTO encomienda_item (id_encomienda, id_producto, cantidad, precio_unitario, nota)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id
        `, so.ID, item.ProductID, item.Quantity, item.UnitPrice, item.Note)
	}

	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()

	for i := range so.Items {
		if err := br.QueryRow().Scan(&so.Items[i].ID); err != nil {
			return fmt.Errorf("failed to insert item %d of sub-order %d: %w", i, so.ID, err)
		}
		so.Items[i].SubOrderID = so.ID
	}
	return br.Close()
}

func (t *pgTx) GetSubOrder(ctx context.Context, id int64) (models.SubOrder, error) {
	var (
		so    models.SubOrder
		state string
	)
	err := t.tx.QueryRow(ctx, `
        SELECT id, id_pedido, estado, creado_el
        FROM encomienda
        WHERE id = $1
        FOR UPDATE
    `, id).Scan(&so.ID, &so.OrderID, &state, &so.CreatedAt)
	if err != nil {
		return models.SubOrder{}, notFound(err, "sub-order", id)
	}
	if so.State, err = models.ParseSubOrderState(state); err != nil {
		return models.SubOrder{}, err
	}

	items, err := t.items(ctx, []int64{so.ID})
	if err != nil {
		return models.SubOrder{}, err
	}
	so.Items = items[so.ID]
	return so, nil
}

func (t *pgTx) ListSubOrders(ctx context.Context, orderID int64) ([]models.SubOrder, error) {
	rows, err := t.tx.Query(ctx, `
        SELECT id, id_pedido, estado, creado_el
        FROM encomienda
        WHERE id_pedido = $1
        ORDER BY id
    `, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sub-orders of order %d: %w", orderID, err)
	}

	var (
		subOrders []models.SubOrder
		ids       []int64
	)
	for rows.Next() {
		var (
			so    models.SubOrder
			state string
		)
		if err := rows.Scan(&so.ID, &so.OrderID, &state, &so.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sub-order: %w", err)
		}
		if so.State, err = models.ParseSubOrderState(state); err != nil {
			rows.Close()
			return nil, err
		}
		subOrders = append(subOrders, so)
		ids = append(ids, so.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	items, err := t.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range subOrders {
		subOrders[i].Items = items[subOrders[i].ID]
	}
	return subOrders, nil
}

func (t *pgTx) UpdateSubOrderState(ctx context.Context, id int64, state models.SubOrderState) error {
	tag, err := t.tx.Exec(ctx, `UPDATE encomienda SET estado = $2 WHERE id = $1`, id, state.String())
	if err != nil {
		return fmt.Errorf("failed to update sub-order %d: %w", id, err)
	}
	return checkAffected(tag, "sub-order", id)
}

func (t *pgTx) items(ctx context.Context, subOrderIDs []int64) (map[int64][]models.LineItem, error) {
	rows, err := t.tx.Query(ctx, `
        SELECT id, id_encomienda, id_producto, cantidad, precio_unitario, nota
        FROM encomienda_item
        WHERE id_encomienda = ANY($1)
        ORDER BY id
    `, subOrderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]models.LineItem, len(subOrderIDs))
	for rows.Next() {
		var item models.LineItem
		if err := rows.Scan(&item.ID, &item.SubOrderID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.Note); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items[item.SubOrderID] = append(items[item.SubOrderID], item)
	}
	return items, rows.Err()
}
