package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"rawlink/internal/app/apperr"
	"rawlink/internal/app/logger"
	"rawlink/internal/app/model"
	"rawlink/internal/app/service/ledger"
	"rawlink/internal/app/storage"
)

// Service is the order state machine. Every status change goes through
// Transition, inside one database transaction with whatever money
// movement the change requires: the status never advances without the
// funds and the funds never move without the status.
type Service struct {
	db             *sql.DB
	orders         storage.OrderRepository
	listings       storage.ListingRepository
	accounts       storage.AccountRepository
	ledger         *ledger.Service
	escrowOnAccept bool
}

func (s *Service) LoggerComponent() string {
	return "Order.Service"
}

func New(db *sql.DB, orders storage.OrderRepository, listings storage.ListingRepository, accounts storage.AccountRepository, ls *ledger.Service, escrowOnAccept bool) (*Service, error) {
	s := &Service{
		db:             db,
		orders:         orders,
		listings:       listings,
		accounts:       accounts,
		ledger:         ls,
		escrowOnAccept: escrowOnAccept,
	}
	return s, nil
}

func settleKey(orderID uuid.UUID) string {
	return "order:" + orderID.String() + ":settle"
}

func holdKey(orderID uuid.UUID) string {
	return "order:" + orderID.String() + ":hold"
}

func refundKey(orderID uuid.UUID) string {
	return "order:" + orderID.String() + ":refund"
}

// Create opens an order against a listing. The listing row is locked so
// the reserved quantity cannot be oversold; the listing goes in-transit
// when its quantity is exhausted. No money moves here.
func (s *Service) Create(ctx context.Context, buyer *model.User, listingID uuid.UUID, quantity decimal.Decimal) (*model.Order, error) {
	l := logger.Get(ctx, s)

	if quantity.IsNegative() || quantity.IsZero() {
		return nil, apperr.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, fmt.Errorf("tx begin: %w", err)
	}

	listing, err := s.listings.TxReadForUpdate(ctx, tx, listingID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if listing.VendorID == buyer.ID {
		_ = tx.Rollback()
		l.Debug().Str("listing_id", listingID.String()).Msg("Own listing purchase rejected")
		return nil, apperr.ErrForbidden
	}
	if listing.Status != model.ListingStatusAvailable {
		_ = tx.Rollback()
		return nil, apperr.ErrConflict
	}
	if quantity.GreaterThan(listing.Quantity) {
		_ = tx.Rollback()
		return nil, apperr.ErrInvalidInput
	}

	amount := listing.TotalPrice(quantity)
	if amount <= 0 {
		_ = tx.Rollback()
		return nil, apperr.ErrInvalidInput
	}

	listing.Quantity = listing.Quantity.Sub(quantity)
	if listing.Quantity.IsZero() {
		listing.Status = model.ListingStatusInTransit
	}
	if err := s.listings.TxUpdateQuantity(ctx, tx, listing); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	m, err := s.orders.TxCreate(ctx, tx, &model.Order{
		BuyerID:      buyer.ID,
		VendorID:     listing.VendorID,
		ListingID:    uuid.NullUUID{UUID: listing.ID, Valid: true},
		ListingTitle: listing.Title,
		Quantity:     quantity,
		Unit:         listing.Unit,
		Amount:       amount,
	})
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := s.orders.TxAppendEvent(ctx, tx, &model.OrderEvent{
		OrderID: m.ID,
		To:      model.OrderStatusCreated,
		ActorID: buyer.ID,
	}); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit: %w", err)
	}

	l.Debug().Str("order_id", m.ID.String()).Int64("amount", amount).Msg("Order created")

	return m, nil
}

// Transition drives the order through one status change. An attempted
// change not in the transition table fails with ErrInvalidTransition and
// leaves the order untouched; a failed money movement rolls the status
// change back with it.
func (s *Service) Transition(ctx context.Context, orderID uuid.UUID, action Action, actor *model.User) (*model.Order, error) {
	l := logger.Get(ctx, s)

	target, ok := action.Target()
	if !ok {
		return nil, apperr.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, fmt.Errorf("tx begin: %w", err)
	}

	m, err := s.orders.TxReadForUpdate(ctx, tx, orderID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if m.BuyerID != actor.ID && m.VendorID != actor.ID {
		_ = tx.Rollback()
		return nil, apperr.ErrForbidden
	}

	if !CanTransition(m.Status, target) {
		_ = tx.Rollback()
		l.Debug().
			Str("order_id", orderID.String()).
			Str("from", string(m.Status)).
			Str("to", string(target)).
			Msg("Transition not in table")
		return nil, apperr.ErrInvalidTransition
	}

	if !allowed(action, m, actor.ID) {
		_ = tx.Rollback()
		return nil, apperr.ErrForbidden
	}

	if err := s.moveFunds(ctx, tx, m, target); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if target == model.OrderStatusCancelled {
		if err := s.restoreListing(ctx, tx, m); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
	}

	from := m.Status
	m.Status = target

	if err := s.orders.TxUpdateStatus(ctx, tx, m); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := s.orders.TxAppendEvent(ctx, tx, &model.OrderEvent{
		OrderID: m.ID,
		From:    from,
		To:      target,
		ActorID: actor.ID,
	}); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit: %w", err)
	}

	l.Debug().
		Str("order_id", m.ID.String()).
		Str("from", string(from)).
		Str("to", string(target)).
		Msg("Order transitioned")

	return m, nil
}

// moveFunds performs the money movement the target status requires,
// within the transition's database transaction.
func (s *Service) moveFunds(ctx context.Context, tx *sql.Tx, m *model.Order, target model.OrderStatus) error {
	orderRef := uuid.NullUUID{UUID: m.ID, Valid: true}

	switch target {
	case model.OrderStatusAccepted:
		if !s.escrowOnAccept {
			return nil
		}
		buyer, err := s.accounts.ReadByUserID(ctx, m.BuyerID)
		if err != nil {
			return err
		}
		escrow, err := s.accounts.ReadEscrow(ctx)
		if err != nil {
			return err
		}
		_, err = s.ledger.TxTransfer(ctx, tx, buyer.ID, escrow.ID, m.Amount, orderRef,
			model.ReasonEscrowHold, model.ReasonEscrowHold, holdKey(m.ID))
		return err

	case model.OrderStatusCompleted:
		vendor, err := s.accounts.ReadByUserID(ctx, m.VendorID)
		if err != nil {
			return err
		}
		from, err := s.settlementSource(ctx, m)
		if err != nil {
			return err
		}
		_, err = s.ledger.TxTransfer(ctx, tx, from, vendor.ID, m.Amount, orderRef,
			model.ReasonPurchase, model.ReasonSale, settleKey(m.ID))
		return err

	case model.OrderStatusCancelled:
		if !s.escrowOnAccept || m.Status != model.OrderStatusAccepted {
			return nil
		}
		hold, err := s.ledger.ReadByIdempotencyKey(ctx, holdKey(m.ID))
		if err != nil {
			return err
		}
		_, err = s.ledger.TxReverse(ctx, tx, hold.ID, refundKey(m.ID))
		return err
	}

	return nil
}

// settlementSource is the account the settlement debits: the escrow
// account when funds were held at accept, the buyer's wallet otherwise.
func (s *Service) settlementSource(ctx context.Context, m *model.Order) (uuid.UUID, error) {
	if s.escrowOnAccept {
		escrow, err := s.accounts.ReadEscrow(ctx)
		if err != nil {
			return uuid.Nil, err
		}
		return escrow.ID, nil
	}

	buyer, err := s.accounts.ReadByUserID(ctx, m.BuyerID)
	if err != nil {
		return uuid.Nil, err
	}
	return buyer.ID, nil
}

// restoreListing returns the reserved quantity to the listing when the
// order is cancelled.
func (s *Service) restoreListing(ctx context.Context, tx *sql.Tx, m *model.Order) error {
	if !m.ListingID.Valid {
		return nil
	}

	listing, err := s.listings.TxReadForUpdate(ctx, tx, m.ListingID.UUID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		return err
	}

	listing.Quantity = listing.Quantity.Add(m.Quantity)
	if listing.Status == model.ListingStatusInTransit {
		listing.Status = model.ListingStatusAvailable
	}

	return s.listings.TxUpdateQuantity(ctx, tx, listing)
}

// Read returns the order to one of its parties.
func (s *Service) Read(ctx context.Context, orderID uuid.UUID, actor *model.User) (*model.Order, error) {
	m, err := s.orders.Read(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if m.BuyerID != actor.ID && m.VendorID != actor.ID {
		return nil, apperr.ErrForbidden
	}

	return m, nil
}

// Events returns the order's transition history to one of its parties.
func (s *Service) Events(ctx context.Context, orderID uuid.UUID, actor *model.User) ([]*model.OrderEvent, error) {
	if _, err := s.Read(ctx, orderID, actor); err != nil {
		return nil, err
	}

	return s.orders.Events(ctx, orderID)
}

// AllByUser returns orders where the user is buyer or vendor.
func (s *Service) AllByUser(ctx context.Context, userID uuid.UUID) ([]*model.Order, error) {
	return s.orders.AllByUserID(ctx, userID)
}
