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

// storage.Ledger interface implementation
var _ storage.Ledger = (*Ledger)(nil)

type Ledger struct {
	db *sql.DB
}

func (r *Ledger) LoggerComponent() string {
	return "LedgerRepository"
}

func NewLedger(db *sql.DB) (*Ledger, error) {
	s := &Ledger{
		db: db,
	}
	return s, nil
}

const txColumns = `id, account_id, kind, status, amount, reason, coalesce(idempotency_key, ''), pair_id, counterparty_id, order_id, reversal_of, reversed_by, provider_ref, created_at, committed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	m := &model.Transaction{}
	var committedAt sql.NullTime

	err := row.Scan(
		&m.ID, &m.AccountID, &m.Kind, &m.Status, &m.Amount, &m.Reason,
		&m.IdempotencyKey, &m.PairID, &m.CounterpartyID, &m.OrderID,
		&m.ReversalOf, &m.ReversedBy, &m.ProviderRef, &m.CreatedAt, &committedAt,
	)
	if err != nil {
		return nil, err
	}
	if committedAt.Valid {
		m.CommittedAt = &committedAt.Time
	}

	return m, nil
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type lockedAccount struct {
	id       uuid.UUID
	balance  int64
	currency string
	disabled bool
}

// lockAccount takes the account row lock that serializes all balance
// changes for the account.
func lockAccount(ctx context.Context, q rowQueryer, id uuid.UUID) (*lockedAccount, error) {
	const SQL = `
		SELECT id, balance, currency, disabled_at IS NOT NULL
		FROM accounts
		WHERE id=$1
		FOR UPDATE
`
	a := &lockedAccount{}

	err := q.QueryRowContext(ctx, SQL, id).Scan(&a.id, &a.balance, &a.currency, &a.disabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrInvalidAccount
		}
		return nil, fmt.Errorf("account lock: %w", err)
	}

	if a.disabled {
		return nil, apperr.ErrInvalidAccount
	}

	return a, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertEntry(ctx context.Context, e execer, m *model.Transaction) error {
	const SQL = `
		INSERT INTO transactions
			(id, account_id, kind, status, amount, reason, idempotency_key, pair_id, counterparty_id, order_id, reversal_of, provider_ref, created_at, committed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`
	var key sql.NullString
	if m.IdempotencyKey != "" {
		key = sql.NullString{String: m.IdempotencyKey, Valid: true}
	}
	var committedAt sql.NullTime
	if m.CommittedAt != nil {
		committedAt = sql.NullTime{Time: *m.CommittedAt, Valid: true}
	}

	_, err := e.ExecContext(ctx, SQL,
		m.ID, m.AccountID, m.Kind, m.Status, m.Amount, m.Reason, key,
		m.PairID, m.CounterpartyID, m.OrderID, m.ReversalOf, m.ProviderRef,
		m.CreatedAt, committedAt,
	)
	if err != nil {
		if pgErr, ok := err.(*pg.Error); ok {
			if string(pgErr.Code) == pgerrcode.UniqueViolation {
				return apperr.ErrDuplicateTransaction
			}
			if pgerrcode.IsIntegrityConstraintViolation(string(pgErr.Code)) {
				return apperr.ErrInvalidInput
			}
		}
		return fmt.Errorf("entry insert: %w", err)
	}

	return nil
}

func addBalance(ctx context.Context, e execer, accountID uuid.UUID, delta int64) error {
	const SQL = `UPDATE accounts SET balance=balance+$1 WHERE id=$2`
	if _, err := e.ExecContext(ctx, SQL, delta, accountID); err != nil {
		return fmt.Errorf("balance update: %w", err)
	}

	return nil
}

// GetBalance implementation of interface storage.Ledger
func (r *Ledger) GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	const SQL = `
		SELECT balance
		FROM accounts
		WHERE id=$1
`
	var balance int64

	err := r.db.QueryRowContext(ctx, SQL, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperr.ErrInvalidAccount
		}
		return 0, fmt.Errorf("select: %w", err)
	}

	return balance, nil
}

// Append implementation of interface storage.Ledger
func (r *Ledger) Append(ctx context.Context, entry *model.Transaction) (*model.Transaction, error) {
	l := logger.Ctx(ctx).With().
		Str("method", "Append").
		Str("account_id", entry.AccountID.String()).
		Logger()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, fmt.Errorf("tx begin: %w", err)
	}

	acc, err := lockAccount(ctx, tx, entry.AccountID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if entry.Kind == model.TransactionKindDebit && acc.balance < entry.Amount {
		_ = tx.Rollback()
		l.Debug().Int64("balance", acc.balance).Int64("amount", entry.Amount).Msg("Insufficient funds")
		return nil, apperr.ErrInsufficientFunds
	}

	now := time.Now()
	entry.ID = uuid.New()
	entry.CreatedAt = now
	entry.Status = model.TransactionStatusCommitted
	entry.CommittedAt = &now

	if err := insertEntry(ctx, tx, entry); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := addBalance(ctx, tx, entry.AccountID, entry.Effect()); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit: %w", err)
	}

	return entry, nil
}

// AppendPair implementation of interface storage.Ledger
func (r *Ledger) AppendPair(ctx context.Context, debit, credit *model.Transaction) ([]*model.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, fmt.Errorf("tx begin: %w", err)
	}

	pair, err := r.TxAppendPair(ctx, tx, debit, credit)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit: %w", err)
	}

	return pair, nil
}

// TxAppendPair implementation of interface storage.Ledger
func (r *Ledger) TxAppendPair(ctx context.Context, tx *sql.Tx, debit, credit *model.Transaction) ([]*model.Transaction, error) {
	l := logger.Ctx(ctx).With().
		Str("method", "TxAppendPair").
		Str("debit_account", debit.AccountID.String()).
		Str("credit_account", credit.AccountID.String()).
		Logger()

	// Account rows are locked in sorted order so two opposed transfers
	// cannot deadlock each other.
	first, second := debit.AccountID, credit.AccountID
	if second.String() < first.String() {
		first, second = second, first
	}

	accounts := make(map[uuid.UUID]*lockedAccount, 2)
	for _, id := range []uuid.UUID{first, second} {
		acc, err := lockAccount(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		accounts[id] = acc
	}

	from, to := accounts[debit.AccountID], accounts[credit.AccountID]

	if from.currency != to.currency {
		return nil, apperr.ErrCurrencyMismatch
	}

	if from.balance < debit.Amount {
		l.Debug().Int64("balance", from.balance).Int64("amount", debit.Amount).Msg("Insufficient funds")
		return nil, apperr.ErrInsufficientFunds
	}

	now := time.Now()
	if !debit.PairID.Valid {
		pairID := uuid.NullUUID{UUID: uuid.New(), Valid: true}
		debit.PairID = pairID
		credit.PairID = pairID
	}
	debit.CounterpartyID = uuid.NullUUID{UUID: credit.AccountID, Valid: true}
	credit.CounterpartyID = uuid.NullUUID{UUID: debit.AccountID, Valid: true}

	for _, entry := range []*model.Transaction{debit, credit} {
		entry.ID = uuid.New()
		entry.CreatedAt = now
		entry.Status = model.TransactionStatusCommitted
		entry.CommittedAt = &now

		if err := insertEntry(ctx, tx, entry); err != nil {
			return nil, err
		}
		if err := addBalance(ctx, tx, entry.AccountID, entry.Effect()); err != nil {
			return nil, err
		}
	}

	return []*model.Transaction{debit, credit}, nil
}

// AppendPending implementation of interface storage.Ledger
func (r *Ledger) AppendPending(ctx context.Context, entry *model.Transaction) (*model.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, fmt.Errorf("tx begin: %w", err)
	}

	if _, err := lockAccount(ctx, tx, entry.AccountID); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	entry.Status = model.TransactionStatusPending
	entry.CommittedAt = nil

	if err := insertEntry(ctx, tx, entry); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit: %w", err)
	}

	return entry, nil
}

// lockEntry reads a transaction row under FOR UPDATE.
func lockEntry(ctx context.Context, q rowQueryer, id uuid.UUID) (*model.Transaction, error) {
	SQL := `SELECT ` + txColumns + ` FROM transactions WHERE id=$1 FOR UPDATE`

	m, err := scanTransaction(q.QueryRowContext(ctx, SQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("entry lock: %w", err)
	}

	return m, nil
}

// CommitPending implementation of interface storage.Ledger
func (r *Ledger) CommitPending(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, fmt.Errorf("tx begin: %w", err)
	}

	entry, err := lockEntry(ctx, tx, id)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if entry.Status != model.TransactionStatusPending {
		_ = tx.Rollback()
		if entry.Status == model.TransactionStatusCommitted {
			return entry, apperr.ErrSoftConflict
		}
		return nil, apperr.ErrConflict
	}

	acc, err := lockAccount(ctx, tx, entry.AccountID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if entry.Kind == model.TransactionKindDebit && acc.balance < entry.Amount {
		_ = tx.Rollback()
		return nil, apperr.ErrInsufficientFunds
	}

	now := time.Now()
	entry.Status = model.TransactionStatusCommitted
	entry.CommittedAt = &now

	const SQL = `UPDATE transactions SET status=$1, committed_at=$2 WHERE id=$3`
	if _, err := tx.ExecContext(ctx, SQL, entry.Status, now, entry.ID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("entry update: %w", err)
	}

	if err := addBalance(ctx, tx, entry.AccountID, entry.Effect()); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit: %w", err)
	}

	return entry, nil
}

// VoidPending implementation of interface storage.Ledger
func (r *Ledger) VoidPending(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("tx begin: %w", err)
	}

	entry, err := lockEntry(ctx, tx, id)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	if entry.Status != model.TransactionStatusPending {
		_ = tx.Rollback()
		if entry.Status == model.TransactionStatusReversed {
			return apperr.ErrSoftConflict
		}
		return apperr.ErrConflict
	}

	// committed_at stays NULL: the entry never had a balance effect.
	const SQL = `UPDATE transactions SET status=$1 WHERE id=$2`
	if _, err := tx.ExecContext(ctx, SQL, model.TransactionStatusReversed, entry.ID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("entry update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx commit: %w", err)
	}

	return nil
}

// Reverse implementation of interface storage.Ledger
func (r *Ledger) Reverse(ctx context.Context, originalID uuid.UUID, idempotencyKey string) (*model.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, fmt.Errorf("tx begin: %w", err)
	}

	comp, err := r.TxReverse(ctx, tx, originalID, idempotencyKey)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit: %w", err)
	}

	return comp, nil
}

// TxReverse implementation of interface storage.Ledger. When the original
// entry is one leg of a transfer pair the whole pair is compensated, so
// both balances stay consistent with their entries.
func (r *Ledger) TxReverse(ctx context.Context, tx *sql.Tx, originalID uuid.UUID, idempotencyKey string) (*model.Transaction, error) {
	original, err := lockEntry(ctx, tx, originalID)
	if err != nil {
		return nil, err
	}

	if original.ReversedBy.Valid || original.Status == model.TransactionStatusReversed {
		return nil, apperr.ErrSoftConflict
	}
	if original.CommittedAt == nil {
		return nil, apperr.ErrConflict
	}

	legs := []*model.Transaction{original}
	if original.PairID.Valid {
		SQL := `SELECT ` + txColumns + ` FROM transactions WHERE pair_id=$1 AND id<>$2 FOR UPDATE`
		other, err := scanTransaction(tx.QueryRowContext(ctx, SQL, original.PairID, original.ID))
		if err != nil {
			return nil, fmt.Errorf("pair lock: %w", err)
		}
		legs = append(legs, other)
	}

	// Lock the touched accounts in sorted order, same as TxAppendPair.
	ids := make([]uuid.UUID, 0, len(legs))
	for _, leg := range legs {
		ids = append(ids, leg.AccountID)
	}
	if len(ids) == 2 && ids[1].String() < ids[0].String() {
		ids[0], ids[1] = ids[1], ids[0]
	}
	accounts := make(map[uuid.UUID]*lockedAccount, len(ids))
	for _, id := range ids {
		acc, err := lockAccount(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		accounts[id] = acc
	}

	// A compensating debit must still be covered.
	for _, leg := range legs {
		if leg.Kind == model.TransactionKindCredit && accounts[leg.AccountID].balance < leg.Amount {
			return nil, apperr.ErrInsufficientFunds
		}
	}

	now := time.Now()
	var compPair uuid.NullUUID
	if len(legs) == 2 {
		compPair = uuid.NullUUID{UUID: uuid.New(), Valid: true}
	}

	var result *model.Transaction
	for _, leg := range legs {
		kind := model.TransactionKindCredit
		if leg.Kind == model.TransactionKindCredit {
			kind = model.TransactionKindDebit
		}

		comp := &model.Transaction{
			ID:             uuid.New(),
			AccountID:      leg.AccountID,
			Kind:           kind,
			Status:         model.TransactionStatusCommitted,
			Amount:         leg.Amount,
			Reason:         model.ReasonEscrowRefund,
			PairID:         compPair,
			CounterpartyID: leg.CounterpartyID,
			OrderID:        leg.OrderID,
			ReversalOf:     uuid.NullUUID{UUID: leg.ID, Valid: true},
			CreatedAt:      now,
			CommittedAt:    &now,
		}
		if leg.ID == original.ID {
			comp.IdempotencyKey = idempotencyKey
			result = comp
		}

		if err := insertEntry(ctx, tx, comp); err != nil {
			return nil, err
		}
		if err := addBalance(ctx, tx, comp.AccountID, comp.Effect()); err != nil {
			return nil, err
		}

		const SQL = `UPDATE transactions SET status=$1, reversed_by=$2 WHERE id=$3`
		if _, err := tx.ExecContext(ctx, SQL, model.TransactionStatusReversed, comp.ID, leg.ID); err != nil {
			return nil, fmt.Errorf("reversal link: %w", err)
		}
	}

	return result, nil
}

// ReadByIdempotencyKey implementation of interface storage.Ledger
func (r *Ledger) ReadByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error) {
	SQL := `SELECT ` + txColumns + ` FROM transactions WHERE idempotency_key=$1`

	m, err := scanTransaction(r.db.QueryRowContext(ctx, SQL, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// AllByAccountID implementation of interface storage.Ledger
func (r *Ledger) AllByAccountID(ctx context.Context, accountID uuid.UUID) ([]*model.Transaction, error) {
	l := logger.Ctx(ctx).With().Str("method", "AllByAccountID").Logger()

	SQL := `SELECT ` + txColumns + ` FROM transactions WHERE account_id=$1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, SQL, accountID)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	res := make([]*model.Transaction, 0)
	for rows.Next() {
		m, err := scanTransaction(rows)
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

// WithdrawnSum implementation of interface storage.Ledger
func (r *Ledger) WithdrawnSum(ctx context.Context, accountID uuid.UUID) (int64, error) {
	const SQL = `
		SELECT coalesce(sum(amount), 0) as b
		FROM transactions
		WHERE account_id=$1 AND reason=$2 AND committed_at IS NOT NULL
`
	var sum int64

	err := r.db.QueryRowContext(ctx, SQL, accountID, model.ReasonWithdrawal).Scan(&sum)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("select: %w", err)
	}

	return sum, nil
}

// PendingByReason implementation of interface storage.Ledger
func (r *Ledger) PendingByReason(ctx context.Context, reason string) ([]*model.Transaction, error) {
	SQL := `SELECT ` + txColumns + ` FROM transactions WHERE status=$1 AND reason=$2 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, SQL, model.TransactionStatusPending, reason)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	res := make([]*model.Transaction, 0)
	for rows.Next() {
		m, err := scanTransaction(rows)
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
