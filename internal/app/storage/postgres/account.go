package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"rawlink/internal/app/apperr"
	"rawlink/internal/app/model"
	"rawlink/internal/app/storage"
	"time"
)

// storage.AccountRepository interface implementation
var _ storage.AccountRepository = (*AccountRepository)(nil)

type AccountRepository struct {
	db *sql.DB
}

func (r *AccountRepository) LoggerComponent() string {
	return "AccountRepository"
}

func NewAccountRepository(db *sql.DB) (*AccountRepository, error) {
	s := &AccountRepository{
		db: db,
	}
	return s, nil
}

const accountColumns = `id, user_id, balance, currency, created_at, disabled_at`

func scanAccount(row rowScanner) (*model.Account, error) {
	m := &model.Account{}
	var disabledAt sql.NullTime

	err := row.Scan(&m.ID, &m.UserID, &m.Balance, &m.Currency, &m.CreatedAt, &disabledAt)
	if err != nil {
		return nil, err
	}
	if disabledAt.Valid {
		m.DisabledAt = &disabledAt.Time
	}

	return m, nil
}

// Read implementation of interface storage.AccountRepository
func (r *AccountRepository) Read(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	SQL := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`

	m, err := scanAccount(r.db.QueryRowContext(ctx, SQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrInvalidAccount
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// ReadByUserID implementation of interface storage.AccountRepository
func (r *AccountRepository) ReadByUserID(ctx context.Context, userID uuid.UUID) (*model.Account, error) {
	SQL := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id=$1`

	m, err := scanAccount(r.db.QueryRowContext(ctx, SQL, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrInvalidAccount
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// ReadEscrow implementation of interface storage.AccountRepository. The
// escrow account is the single system account seeded by migration.
func (r *AccountRepository) ReadEscrow(ctx context.Context) (*model.Account, error) {
	SQL := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id IS NULL`

	m, err := scanAccount(r.db.QueryRowContext(ctx, SQL))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrInvalidAccount
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// Disable implementation of interface storage.AccountRepository
func (r *AccountRepository) Disable(ctx context.Context, id uuid.UUID) error {
	const SQL = `UPDATE accounts SET disabled_at=$1 WHERE id=$2 AND disabled_at IS NULL`

	res, err := r.db.ExecContext(ctx, SQL, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.ErrInvalidAccount
	}

	return nil
}
