package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	pg "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	"rawlink/internal/app/apperr"
	"rawlink/internal/app/model"
	"rawlink/internal/app/storage"
	"time"
)

// storage.UserRepository interface implementation
var _ storage.UserRepository = (*UserRepository)(nil)

type UserRepository struct {
	db       *sql.DB
	currency string
}

func (r *UserRepository) LoggerComponent() string {
	return "UserRepository"
}

func NewUserRepository(db *sql.DB, currency string) (*UserRepository, error) {
	s := &UserRepository{
		db:       db,
		currency: currency,
	}
	return s, nil
}

// Create implementation of interface storage.UserRepository. The profile
// row and the wallet account are created together with the user: a user
// without a wallet must never be observable.
func (r *UserRepository) Create(ctx context.Context, m *model.User) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(m.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("password hash: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, fmt.Errorf("tx begin: %w", err)
	}

	m.ID = uuid.New()
	m.CreatedAt = time.Now()

	const sqlUser = `
		INSERT INTO users (id, email, username, role, password, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
`
	if _, err := tx.ExecContext(ctx, sqlUser, m.ID, m.Email, m.Username, m.Role, string(hash), m.CreatedAt); err != nil {
		_ = tx.Rollback()
		if pgErr, ok := err.(*pg.Error); ok {
			if pgerrcode.IsIntegrityConstraintViolation(string(pgErr.Code)) {
				return nil, apperr.ErrConflict
			}
		}
		return nil, fmt.Errorf("user insert: %w", err)
	}

	const sqlProfile = `INSERT INTO profiles (user_id) VALUES ($1)`
	if _, err := tx.ExecContext(ctx, sqlProfile, m.ID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("profile insert: %w", err)
	}

	const sqlAccount = `
		INSERT INTO accounts (id, user_id, balance, currency, created_at)
		VALUES ($1, $2, 0, $3, $4)
`
	if _, err := tx.ExecContext(ctx, sqlAccount, uuid.New(), m.ID, r.currency, m.CreatedAt); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("account insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit: %w", err)
	}

	return m, nil
}

// Read implementation of interface storage.UserRepository
func (r *UserRepository) Read(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const SQL = `
		SELECT id, email, username, role, created_at
		FROM users
		WHERE id=$1
`
	m := &model.User{}

	err := r.db.QueryRowContext(ctx, SQL, id).Scan(&m.ID, &m.Email, &m.Username, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// ReadByEmailAndPassword implementation of interface storage.UserRepository
func (r *UserRepository) ReadByEmailAndPassword(ctx context.Context, email string, password string) (*model.User, error) {
	const SQL = `
		SELECT id, email, username, role, password, created_at
		FROM users
		WHERE email=$1
`
	m := &model.User{}
	var hash string

	err := r.db.QueryRowContext(ctx, SQL, email).Scan(&m.ID, &m.Email, &m.Username, &m.Role, &hash, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, apperr.ErrNotFound
	}

	m.Password = ""

	return m, nil
}
