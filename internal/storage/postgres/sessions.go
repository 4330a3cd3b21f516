package postgres

import (
	"context"
	"fmt"
	"time"

	"mesa-qr/internal/core"
	"mesa-qr/pkg/models"

	"github.com/jackc/pgx/v5"
)

const sessionColumns = `q.id, q.codigo, q.id_mesa, q.id_pedido, q.id_reserva, q.id_usuario, q.expiracion, q.activo, q.creado_el`

func scanSession(row pgx.Row) (models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.Code, &s.TableID, &s.OrderID, &s.ReservationID,
		&s.OwnerID, &s.ExpiresAt, &s.Active, &s.CreatedAt)
	return s, err
}

func (t *pgTx) CreateSession(ctx context.Context, s *models.Session) error {
	err := t.tx.QueryRow(ctx, `
        INSERT INTO qr_dinamico (codigo, id_mesa, id_pedido, id_reserva, id_usuario, expiracion, activo, creado_el)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `, s.Code, s.TableID, s.OrderID, s.ReservationID, s.OwnerID, s.ExpiresAt, s.Active, s.CreatedAt).Scan(&s.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("session code %s: %w", s.Code, core.ErrDuplicateCode)
	}
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (t *pgTx) GetSession(ctx context.Context, id int64) (models.Session, error) {
	s, err := scanSession(t.tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM qr_dinamico q WHERE q.id = $1 FOR UPDATE`, id))
	if err != nil {
		return models.Session{}, notFound(err, "session", id)
	}
	return s, nil
}

func (t *pgTx) GetSessionByCode(ctx context.Context, code string) (models.Session, error) {
	s, err := scanSession(t.tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM qr_dinamico q WHERE q.codigo = $1`, code))
	if err != nil {
		return models.Session{}, notFound(err, "session", code)
	}
	return s, nil
}

func (t *pgTx) UpdateSession(ctx context.Context, s models.Session) error {
	tag, err := t.tx.Exec(ctx, `
        UPDATE qr_dinamico
        SET id_pedido = $2, id_reserva = $3, expiracion = $4, activo = $5
        WHERE id = $1
    `, s.ID, s.OrderID, s.ReservationID, s.ExpiresAt, s.Active)
	if err != nil {
		return fmt.Errorf("failed to update session %d: %w", s.ID, err)
	}
	return checkAffected(tag, "session", s.ID)
}

func (t *pgTx) ActiveSessionsByTable(ctx context.Context, tableID int64) ([]models.Session, error) {
	return t.listSessions(ctx,
		`SELECT `+sessionColumns+` FROM qr_dinamico q WHERE q.id_mesa = $1 AND q.activo ORDER BY q.id`, tableID)
}

func (t *pgTx) ActiveSessionsByOrder(ctx context.Context, orderID int64) ([]models.Session, error) {
	return t.listSessions(ctx,
		`SELECT `+sessionColumns+` FROM qr_dinamico q WHERE q.id_pedido = $1 AND q.activo ORDER BY q.id`, orderID)
}

func (t *pgTx) StaleSessions(ctx context.Context, tenantID int64, now time.Time) ([]models.Session, error) {
	return t.listSessions(ctx, `
        SELECT `+sessionColumns+`
        FROM qr_dinamico q
        JOIN mesa m ON m.id = q.id_mesa
        WHERE m.id_local = $1 AND q.activo AND q.expiracion < $2
        ORDER BY q.id
    `, tenantID, now)
}

func (t *pgTx) listSessions(ctx context.Context, query string, args ...any) ([]models.Session, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
