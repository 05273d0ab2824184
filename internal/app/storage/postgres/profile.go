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
)

// storage.ProfileRepository interface implementation
var _ storage.ProfileRepository = (*ProfileRepository)(nil)

type ProfileRepository struct {
	db *sql.DB
}

func (r *ProfileRepository) LoggerComponent() string {
	return "ProfileRepository"
}

func NewProfileRepository(db *sql.DB) (*ProfileRepository, error) {
	s := &ProfileRepository{
		db: db,
	}
	return s, nil
}

// ReadByUserID implementation of interface storage.ProfileRepository
func (r *ProfileRepository) ReadByUserID(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	const SQL = `
		SELECT user_id, name, phone, location
		FROM profiles
		WHERE user_id=$1
`
	m := &model.Profile{}

	err := r.db.QueryRowContext(ctx, SQL, userID).Scan(&m.UserID, &m.Name, &m.Phone, &m.Location)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// Update implementation of interface storage.ProfileRepository
func (r *ProfileRepository) Update(ctx context.Context, m *model.Profile) (*model.Profile, error) {
	const SQL = `
		UPDATE profiles
		SET name=$1, phone=$2, location=$3
		WHERE user_id=$4
`
	res, err := r.db.ExecContext(ctx, SQL, m.Name, m.Phone, m.Location, m.UserID)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, apperr.ErrNotFound
	}

	return m, nil
}
