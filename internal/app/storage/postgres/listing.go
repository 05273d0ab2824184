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

// storage.ListingRepository interface implementation
var _ storage.ListingRepository = (*ListingRepository)(nil)

type ListingRepository struct {
	db *sql.DB
}

func (r *ListingRepository) LoggerComponent() string {
	return "ListingRepository"
}

func NewListingRepository(db *sql.DB) (*ListingRepository, error) {
	s := &ListingRepository{
		db: db,
	}
	return s, nil
}

const listingColumns = `id, vendor_id, title, description, category, quantity, unit, price_per_unit, country, city, postal_code, location, status, created_at, updated_at`

func scanListing(row rowScanner) (*model.Listing, error) {
	m := &model.Listing{}

	err := row.Scan(
		&m.ID, &m.VendorID, &m.Title, &m.Description, &m.Category,
		&m.Quantity, &m.Unit, &m.PricePerUnit, &m.Country, &m.City,
		&m.PostalCode, &m.Location, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Create implementation of interface storage.ListingRepository
func (r *ListingRepository) Create(ctx context.Context, m *model.Listing) (*model.Listing, error) {
	const SQL = `
		INSERT INTO listings
			(id, vendor_id, title, description, category, quantity, unit, price_per_unit, country, city, postal_code, location, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`
	now := time.Now()
	m.ID = uuid.New()
	m.Status = model.ListingStatusAvailable
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, SQL,
		m.ID, m.VendorID, m.Title, m.Description, m.Category, m.Quantity,
		m.Unit, m.PricePerUnit, m.Country, m.City, m.PostalCode, m.Location,
		m.Status, m.CreatedAt, m.UpdatedAt,
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

// Read implementation of interface storage.ListingRepository
func (r *ListingRepository) Read(ctx context.Context, id uuid.UUID) (*model.Listing, error) {
	SQL := `SELECT ` + listingColumns + ` FROM listings WHERE id=$1`

	m, err := scanListing(r.db.QueryRowContext(ctx, SQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// Update implementation of interface storage.ListingRepository
func (r *ListingRepository) Update(ctx context.Context, m *model.Listing) (*model.Listing, error) {
	const SQL = `
		UPDATE listings
		SET title=$1, description=$2, category=$3, quantity=$4, unit=$5,
			price_per_unit=$6, country=$7, city=$8, postal_code=$9, location=$10,
			status=$11, updated_at=$12
		WHERE id=$13
`
	m.UpdatedAt = time.Now()

	res, err := r.db.ExecContext(ctx, SQL,
		m.Title, m.Description, m.Category, m.Quantity, m.Unit,
		m.PricePerUnit, m.Country, m.City, m.PostalCode, m.Location,
		m.Status, m.UpdatedAt, m.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, apperr.ErrNotFound
	}

	return m, nil
}

// Delete implementation of interface storage.ListingRepository. Orders
// referencing the listing keep their title copy, the FK goes NULL.
func (r *ListingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const SQL = `DELETE FROM listings WHERE id=$1`

	res, err := r.db.ExecContext(ctx, SQL, id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.ErrNotFound
	}

	return nil
}

// AllAvailable implementation of interface storage.ListingRepository
func (r *ListingRepository) AllAvailable(ctx context.Context, f storage.ListingFilter) ([]*model.Listing, error) {
	l := logger.Ctx(ctx).With().Str("method", "AllAvailable").Logger()

	SQL := `SELECT ` + listingColumns + ` FROM listings WHERE status=$1`
	args := []interface{}{model.ListingStatusAvailable}

	if f.Category != "" {
		args = append(args, f.Category)
		SQL += fmt.Sprintf(" AND category=$%d", len(args))
	}
	if f.Location != "" {
		args = append(args, "%"+f.Location+"%")
		SQL += fmt.Sprintf(" AND location ILIKE $%d", len(args))
	}
	SQL += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, SQL, args...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	res := make([]*model.Listing, 0)
	for rows.Next() {
		m, err := scanListing(rows)
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

// AllByVendorID implementation of interface storage.ListingRepository
func (r *ListingRepository) AllByVendorID(ctx context.Context, vendorID uuid.UUID) ([]*model.Listing, error) {
	SQL := `SELECT ` + listingColumns + ` FROM listings WHERE vendor_id=$1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, SQL, vendorID)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	res := make([]*model.Listing, 0)
	for rows.Next() {
		m, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return res, nil
}

// TxReadForUpdate implementation of interface storage.ListingRepository
func (r *ListingRepository) TxReadForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*model.Listing, error) {
	SQL := `SELECT ` + listingColumns + ` FROM listings WHERE id=$1 FOR UPDATE`

	m, err := scanListing(tx.QueryRowContext(ctx, SQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("listing lock: %w", err)
	}

	return m, nil
}

// TxUpdateQuantity implementation of interface storage.ListingRepository
func (r *ListingRepository) TxUpdateQuantity(ctx context.Context, tx *sql.Tx, m *model.Listing) error {
	const SQL = `UPDATE listings SET quantity=$1, status=$2, updated_at=$3 WHERE id=$4`

	m.UpdatedAt = time.Now()

	if _, err := tx.ExecContext(ctx, SQL, m.Quantity, m.Status, m.UpdatedAt, m.ID); err != nil {
		return fmt.Errorf("quantity update: %w", err)
	}

	return nil
}
