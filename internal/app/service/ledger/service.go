package ledger

import (
	"context"
	"database/sql"
	"github.com/google/uuid"
	"rawlink/internal/app/apperr"
	"rawlink/internal/app/logger"
	"rawlink/internal/app/model"
	"rawlink/internal/app/storage"
)

// Service is the transaction processor: the only component that writes
// to the ledger. Handlers and the order state machine move money through
// it, never through the store directly. Amounts are integer minor units.
type Service struct {
	ledger storage.Ledger
}

func (s *Service) LoggerComponent() string {
	return "Ledger.Service"
}

func New(ledger storage.Ledger) (*Service, error) {
	s := &Service{
		ledger: ledger,
	}
	return s, nil
}

// Credit the account. The idempotency key makes a retried request commit
// at most once.
func (s *Service) Credit(ctx context.Context, accountID uuid.UUID, amount int64, reason, key string) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, apperr.ErrInvalidInput
	}

	return s.ledger.Append(ctx, &model.Transaction{
		AccountID:      accountID,
		Kind:           model.TransactionKindCredit,
		Amount:         amount,
		Reason:         reason,
		IdempotencyKey: key,
	})
}

// PendingCredit records a credit that has no balance effect until the
// deposit syncer commits it. ProviderRef ties it to the gateway payment.
func (s *Service) PendingCredit(ctx context.Context, accountID uuid.UUID, amount int64, reason, key, providerRef string) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, apperr.ErrInvalidInput
	}

	return s.ledger.AppendPending(ctx, &model.Transaction{
		AccountID:      accountID,
		Kind:           model.TransactionKindCredit,
		Amount:         amount,
		Reason:         reason,
		IdempotencyKey: key,
		ProviderRef:    providerRef,
	})
}

// Debit the account, failing with apperr.ErrInsufficientFunds when the
// balance does not cover the amount.
func (s *Service) Debit(ctx context.Context, accountID uuid.UUID, amount int64, reason, key string) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, apperr.ErrInvalidInput
	}

	return s.ledger.Append(ctx, &model.Transaction{
		AccountID:      accountID,
		Kind:           model.TransactionKindDebit,
		Amount:         amount,
		Reason:         reason,
		IdempotencyKey: key,
	})
}

// Transfer moves the amount between two distinct accounts as a linked
// entry pair: both legs commit or neither does.
func (s *Service) Transfer(ctx context.Context, from, to uuid.UUID, amount int64, orderRef uuid.NullUUID, debitReason, creditReason, key string) ([]*model.Transaction, error) {
	debit, credit, err := s.buildPair(ctx, from, to, amount, orderRef, debitReason, creditReason, key)
	if err != nil {
		return nil, err
	}

	return s.ledger.AppendPair(ctx, debit, credit)
}

// TxTransfer is Transfer within the caller's database transaction, used
// by the order state machine so a settlement and the status change it
// belongs to commit together.
func (s *Service) TxTransfer(ctx context.Context, tx *sql.Tx, from, to uuid.UUID, amount int64, orderRef uuid.NullUUID, debitReason, creditReason, key string) ([]*model.Transaction, error) {
	debit, credit, err := s.buildPair(ctx, from, to, amount, orderRef, debitReason, creditReason, key)
	if err != nil {
		return nil, err
	}

	return s.ledger.TxAppendPair(ctx, tx, debit, credit)
}

func (s *Service) buildPair(ctx context.Context, from, to uuid.UUID, amount int64, orderRef uuid.NullUUID, debitReason, creditReason, key string) (*model.Transaction, *model.Transaction, error) {
	l := logger.Get(ctx, s)

	if amount <= 0 {
		return nil, nil, apperr.ErrInvalidInput
	}
	if from == to {
		l.Debug().Str("account_id", from.String()).Msg("Transfer to self rejected")
		return nil, nil, apperr.ErrSameAccount
	}

	// The key lives on the debit leg only; it is inserted first, so a
	// duplicate submission fails before anything else happens.
	debit := &model.Transaction{
		AccountID:      from,
		Kind:           model.TransactionKindDebit,
		Amount:         amount,
		Reason:         debitReason,
		IdempotencyKey: key,
		OrderID:        orderRef,
	}
	credit := &model.Transaction{
		AccountID: to,
		Kind:      model.TransactionKindCredit,
		Amount:    amount,
		Reason:    creditReason,
		OrderID:   orderRef,
	}

	return debit, credit, nil
}

// Reverse appends a compensating entry for a committed transaction. When
// the original is one leg of a pair the whole pair is compensated.
func (s *Service) Reverse(ctx context.Context, txID uuid.UUID, key string) (*model.Transaction, error) {
	return s.ledger.Reverse(ctx, txID, key)
}

// TxReverse is Reverse within the caller's database transaction.
func (s *Service) TxReverse(ctx context.Context, tx *sql.Tx, txID uuid.UUID, key string) (*model.Transaction, error) {
	return s.ledger.TxReverse(ctx, tx, txID, key)
}

// ReadByIdempotencyKey looks up an entry by its idempotency key.
func (s *Service) ReadByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error) {
	return s.ledger.ReadByIdempotencyKey(ctx, key)
}
