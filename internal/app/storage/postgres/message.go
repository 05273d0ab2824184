package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	pg "github.com/lib/pq"
	"rawlink/internal/app/apperr"
	"rawlink/internal/app/model"
	"rawlink/internal/app/storage"
	"time"
)

// storage.MessageRepository interface implementation
var _ storage.MessageRepository = (*MessageRepository)(nil)

type MessageRepository struct {
	db *sql.DB
}

func (r *MessageRepository) LoggerComponent() string {
	return "MessageRepository"
}

func NewMessageRepository(db *sql.DB) (*MessageRepository, error) {
	s := &MessageRepository{
		db: db,
	}
	return s, nil
}

// Create implementation of interface storage.MessageRepository
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) (*model.Message, error) {
	const SQL = `
		INSERT INTO messages (id, sender_id, receiver_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
`
	m.ID = uuid.New()
	m.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, SQL, m.ID, m.SenderID, m.ReceiverID, m.Content, m.CreatedAt)
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

// AllByUserID implementation of interface storage.MessageRepository
func (r *MessageRepository) AllByUserID(ctx context.Context, userID uuid.UUID) ([]*model.Message, error) {
	const SQL = `
		SELECT id, sender_id, receiver_id, content, created_at
		FROM messages
		WHERE sender_id=$1 OR receiver_id=$1
		ORDER BY created_at
`
	return r.queryMessages(ctx, SQL, userID)
}

// Conversation implementation of interface storage.MessageRepository
func (r *MessageRepository) Conversation(ctx context.Context, a, b uuid.UUID) ([]*model.Message, error) {
	const SQL = `
		SELECT id, sender_id, receiver_id, content, created_at
		FROM messages
		WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
		ORDER BY created_at
`
	return r.queryMessages(ctx, SQL, a, b)
}

func (r *MessageRepository) queryMessages(ctx context.Context, SQL string, args ...interface{}) ([]*model.Message, error) {
	rows, err := r.db.QueryContext(ctx, SQL, args...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	res := make([]*model.Message, 0)
	for rows.Next() {
		m := &model.Message{}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return res, nil
}
