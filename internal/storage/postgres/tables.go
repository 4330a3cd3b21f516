package postgres

import (
	"context"
	"fmt"

	"mesa-qr/pkg/models"
)

func (t *pgTx) GetTable(ctx context.Context, id int64) (models.Table, error) {
	var table models.Table
	err := t.tx.QueryRow(ctx, `
        SELECT id, id_local, nombre, capacidad, estado
        FROM mesa
        WHERE id = $1
        FOR UPDATE
    `, id).Scan(&table.ID, &table.TenantID, &table.Name, &table.Capacity, &table.Status)
	if err != nil {
		return models.Table{}, notFound(err, "table", id)
	}
	return table, nil
}

func (t *pgTx) SetTableStatus(ctx context.Context, id int64, status models.TableStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE mesa SET estado = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update table %d: %w", id, err)
	}
	return checkAffected(tag, "table", id)
}
