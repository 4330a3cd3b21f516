package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mesa-qr/internal/core"
	"mesa-qr/pkg/models"
)

// Store is an in-process Repository. Units of work run one at a time against
// a private copy of the data which replaces the shared copy on success.
type Store struct {
	mu   sync.Mutex
	data *state
}

type state struct {
	nextID    int64
	tables    map[int64]models.Table
	sessions  map[int64]models.Session
	orders    map[int64]models.Order
	subOrders map[int64]models.SubOrder
}

func New() *Store {
	return &Store{data: &state{
		tables:    make(map[int64]models.Table),
		sessions:  make(map[int64]models.Session),
		orders:    make(map[int64]models.Order),
		subOrders: make(map[int64]models.SubOrder),
	}}
}

func (s *Store) InTx(ctx context.Context, fn func(tx core.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// AddTable seeds a table, assigning an id when t.ID is zero.
func (s *Store) AddTable(t models.Table) models.Table {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == 0 {
		t.ID = s.data.id()
	} else if t.ID > s.data.nextID {
		s.data.nextID = t.ID
	}
	if t.Status == "" {
		t.Status = models.TableAvailable
	}
	s.data.tables[t.ID] = t
	return t
}

func (s *Store) Table(id int64) (models.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data.tables[id]
	return t, ok
}

func (s *Store) Order(id int64) (models.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.data.orders[id]
	return cloneOrder(o), ok
}

func (s *Store) Session(id int64) (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.data.sessions[id]
	return cloneSession(sess), ok
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

func (st *state) clone() *state {
	c := &state{
		nextID:    st.nextID,
		tables:    make(map[int64]models.Table, len(st.tables)),
		sessions:  make(map[int64]models.Session, len(st.sessions)),
		orders:    make(map[int64]models.Order, len(st.orders)),
		subOrders: make(map[int64]models.SubOrder, len(st.subOrders)),
	}
	for id, t := range st.tables {
		c.tables[id] = t
	}
	for id, s := range st.sessions {
		c.sessions[id] = cloneSession(s)
	}
	for id, o := range st.orders {
		c.orders[id] = cloneOrder(o)
	}
	for id, so := range st.subOrders {
		c.subOrders[id] = cloneSubOrder(so)
	}
	return c
}

type tx struct {
	st *state
}

func (t *tx) GetTable(_ context.Context, id int64) (models.Table, error) {
	table, ok := t.st.tables[id]
	if !ok {
		return models.Table{}, fmt.Errorf("table %d: %w", id, core.ErrNotFound)
	}
	return table, nil
}

func (t *tx) SetTableStatus(_ context.Context, id int64, status models.TableStatus) error {
	table, ok := t.st.tables[id]
	if !ok {
		return fmt.Errorf("table %d: %w", id, core.ErrNotFound)
	}
	table.Status = status
	t.st.tables[id] = table
	return nil
}

func (t *tx) CreateSession(_ context.Context, s *models.Session) error {
	for _, existing := range t.st.sessions {
		if existing.Code == s.Code {
			return fmt.Errorf("session code %s: %w", s.Code, core.ErrDuplicateCode)
		}
	}
	s.ID = t.st.id()
	t.st.sessions[s.ID] = cloneSession(*s)
	return nil
}

func (t *tx) GetSession(_ context.Context, id int64) (models.Session, error) {
	s, ok := t.st.sessions[id]
	if !ok {
		return models.Session{}, fmt.Errorf("session %d: %w", id, core.ErrNotFound)
	}
	return cloneSession(s), nil
}

func (t *tx) GetSessionByCode(_ context.Context, code string) (models.Session, error) {
	for _, s := range t.st.sessions {
		if s.Code == code {
			return cloneSession(s), nil
		}
	}
	return models.Session{}, fmt.Errorf("session %s: %w", code, core.ErrNotFound)
}

func (t *tx) UpdateSession(_ context.Context, s models.Session) error {
	if _, ok := t.st.sessions[s.ID]; !ok {
		return fmt.Errorf("session %d: %w", s.ID, core.ErrNotFound)
	}
	t.st.sessions[s.ID] = cloneSession(s)
	return nil
}

func (t *tx) ActiveSessionsByTable(_ context.Context, tableID int64) ([]models.Session, error) {
	return t.sessionsWhere(func(s models.Session) bool {
		return s.Active && s.TableID == tableID
	}), nil
}

func (t *tx) ActiveSessionsByOrder(_ context.Context, orderID int64) ([]models.Session, error) {
	return t.sessionsWhere(func(s models.Session) bool {
		return s.Active && s.OrderID != nil && *s.OrderID == orderID
	}), nil
}

func (t *tx) StaleSessions(_ context.Context, tenantID int64, now time.Time) ([]models.Session, error) {
	return t.sessionsWhere(func(s models.Session) bool {
		table, ok := t.st.tables[s.TableID]
		return ok && table.TenantID == tenantID && s.Active && s.ExpiresAt.Before(now)
	}), nil
}

func (t *tx) sessionsWhere(match func(models.Session) bool) []models.Session {
	var out []models.Session
	for _, s := range t.st.sessions {
		if match(s) {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *tx) CreateOrder(_ context.Context, o *models.Order) error {
	o.ID = t.st.id()
	t.st.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (t *tx) GetOrder(_ context.Context, id int64) (models.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return models.Order{}, fmt.Errorf("order %d: %w", id, core.ErrNotFound)
	}
	return cloneOrder(o), nil
}

func (t *tx) LiveOrderByTable(_ context.Context, tableID int64) (models.Order, error) {
	var found *models.Order
	for _, o := range t.st.orders {
		if o.TableID == nil || *o.TableID != tableID || o.State.Terminal() {
			continue
		}
		if found == nil || o.ID > found.ID {
			c := cloneOrder(o)
			found = &c
		}
	}
	if found == nil {
		return models.Order{}, fmt.Errorf("live order for table %d: %w", tableID, core.ErrNotFound)
	}
	return *found, nil
}

func (t *tx) ListLiveOrders(_ context.Context, tenantID int64) ([]models.Order, error) {
	var out []models.Order
	for _, o := range t.st.orders {
		if o.TenantID == tenantID && !o.State.Terminal() {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) UpdateOrder(_ context.Context, o models.Order) error {
	if _, ok := t.st.orders[o.ID]; !ok {
		return fmt.Errorf("order %d: %w", o.ID, core.ErrNotFound)
	}
	t.st.orders[o.ID] = cloneOrder(o)
	return nil
}

func (t *tx) CreateSubOrder(_ context.Context, so *models.SubOrder) error {
	if _, ok := t.st.orders[so.OrderID]; !ok {
		return fmt.Errorf("order %d: %w", so.OrderID, core.ErrNotFound)
	}
	so.ID = t.st.id()
	for i := range so.Items {
		so.Items[i].ID = t.st.id()
		so.Items[i].SubOrderID = so.ID
	}
	t.st.subOrders[so.ID] = cloneSubOrder(*so)
	return nil
}

func (t *tx) GetSubOrder(_ context.Context, id int64) (models.SubOrder, error) {
	so, ok := t.st.subOrders[id]
	if !ok {
		return models.SubOrder{}, fmt.Errorf("sub-order %d: %w", id, core.ErrNotFound)
	}
	return cloneSubOrder(so), nil
}

func (t *tx) ListSubOrders(_ context.Context, orderID int64) ([]models.SubOrder, error) {
	var out []models.SubOrder
	for _, so := range t.st.subOrders {
		if so.OrderID == orderID {
			out = append(out, cloneSubOrder(so))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) UpdateSubOrderState(_ context.Context, id int64, state models.SubOrderState) error {
	so, ok := t.st.subOrders[id]
	if !ok {
		return fmt.Errorf("sub-order %d: %w", id, core.ErrNotFound)
	}
	so.State = state
	t.st.subOrders[id] = so
	return nil
}

func cloneSession(s models.Session) models.Session {
	s.OrderID = cloneID(s.OrderID)
	s.ReservationID = cloneID(s.ReservationID)
	return s
}

func cloneOrder(o models.Order) models.Order {
	o.TableID = cloneID(o.TableID)
	if o.ExpiresAt != nil {
		exp := *o.ExpiresAt
		o.ExpiresAt = &exp
	}
	return o
}

func cloneSubOrder(so models.SubOrder) models.SubOrder {
	so.Items = append([]models.LineItem(nil), so.Items...)
	return so
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
