package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	pg "github.com/lib/pq"
	"rawlink/internal/app/apperr"
	"rawlink/internal/app/logger"
	"rawlink/internal/app/model"
	"rawlink/internal/app/storage"
	"time"
)

// storage.OrderRepository interface implementation
var _ storage.OrderRepository = (*OrderRepository)(nil)

type OrderRepository struct {
	db *sql.DB
}

func (r *OrderRepository) LoggerComponent() string {
	return "OrderRepository"
}

func NewOrderRepository(db *sql.DB) (*OrderRepository, error) {
	s := &OrderRepository{
		db: db,
	}
	return s, nil
}

const orderColumns = `id, buyer_id, vendor_id, listing_id, listing_title, quantity, unit, amount, status, created_at, updated_at`

func scanOrder(row rowScanner) (*model.Order, error) {
	m := &model.Order{}

	err := row.Scan(
		&m.ID, &m.BuyerID, &m.VendorID, &m.ListingID, &m.ListingTitle,
		&m.Quantity, &m.Unit, &m.Amount, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// TxCreate implementation of interface storage.OrderRepository
func (r *OrderRepository) TxCreate(ctx context.Context, tx *sql.Tx, m *model.Order) (*model.Order, error) {
	const SQL = `
		INSERT INTO orders
			(id, buyer_id, vendor_id, listing_id, listing_title, quantity, unit, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`
	now := time.Now()
	m.ID = uuid.New()
	m.Status = model.OrderStatusCreated
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := tx.ExecContext(ctx, SQL,
		m.ID, m.BuyerID, m.VendorID, m.ListingID, m.ListingTitle,
		m.Quantity, m.Unit, m.Amount, m.Status, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if pgErr, ok := err.(*pg.Error); ok {
			if pgerrcode.IsIntegrityConstraintViolation(string(pgErr.Code)) {
				return nil, apperr.ErrInvalidInput
			}
		}
		return nil, fmt.Errorf("insert: %w", err)
	}

	return m, nil
}

// Read implementation of interface storage.OrderRepository
func (r *OrderRepository) Read(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	SQL := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`

	m, err := scanOrder(r.db.QueryRowContext(ctx, SQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// TxReadForUpdate implementation of interface storage.OrderRepository
func (r *OrderRepository) TxReadForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*model.Order, error) {
	SQL := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1 FOR UPDATE`

	m, err := scanOrder(tx.QueryRowContext(ctx, SQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("order lock: %w", err)
	}

	return m, nil
}

// TxUpdateStatus implementation of interface storage.OrderRepository
func (r *OrderRepository) TxUpdateStatus(ctx context.Context, tx *sql.Tx, m *model.Order) error {
	const SQL = `UPDATE orders SET status=$1, updated_at=$2 WHERE id=$3`

	m.UpdatedAt = time.Now()

	if _, err := tx.ExecContext(ctx, SQL, m.Status, m.UpdatedAt, m.ID); err != nil {
		return fmt.Errorf("status update: %w", err)
	}

	return nil
}

// TxAppendEvent implementation of interface storage.OrderRepository
func (r *OrderRepository) TxAppendEvent(ctx context.Context, tx *sql.Tx, e *model.OrderEvent) error {
	const SQL = `
		INSERT INTO order_events (id, order_id, from_status, to_status, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
`
	e.ID = uuid.New()
	e.CreatedAt = time.Now()

	if _, err := tx.ExecContext(ctx, SQL, e.ID, e.OrderID, e.From, e.To, e.ActorID, e.CreatedAt); err != nil {
		return fmt.Errorf("event insert: %w", err)
	}

	return nil
}

// AllByUserID implementation of interface storage.OrderRepository
func (r *OrderRepository) AllByUserID(ctx context.Context, userID uuid.UUID) ([]*model.Order, error) {
	l := logger.Ctx(ctx).With().Str("method", "AllByUserID").Logger()

	SQL := `SELECT ` + orderColumns + ` FROM orders WHERE buyer_id=$1 OR vendor_id=$1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, SQL, userID)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	res := make([]*model.Order, 0)
	for rows.Next() {
		m, err := scanOrder(rows)
		if err != nil {
			l.Debug().Err(err).Send()
			return nil, fmt.Errorf("scan: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return res, nil
}

// Events implementation of interface storage.OrderRepository
func (r *OrderRepository) Events(ctx context.Context, orderID uuid.UUID) ([]*model.OrderEvent, error) {
	const SQL = `
		SELECT id, order_id, from_status, to_status, actor_id, created_at
		FROM order_events
		WHERE order_id=$1
		ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, SQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	res := make([]*model.OrderEvent, 0)
	for rows.Next() {
		e := &model.OrderEvent{}
		if err := rows.Scan(&e.ID, &e.OrderID, &e.From, &e.To, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return res, nil
}
