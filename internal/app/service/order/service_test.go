package order_test

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rawlink/internal/app/apperr"
	"rawlink/internal/app/model"
	ledgersvc "rawlink/internal/app/service/ledger"
	"rawlink/internal/app/service/order"
	storagemock "rawlink/internal/app/storage/mock"
)

type fixture struct {
	db       *sql.DB
	dbmock   sqlmock.Sqlmock
	orders   *storagemock.MockOrderRepository
	listings *storagemock.MockListingRepository
	accounts *storagemock.MockAccountRepository
	store    *storagemock.MockLedger
}

func newFixture(t *testing.T, ctrl *gomock.Controller, escrowOnAccept bool) (*order.Service, *fixture) {
	t.Helper()

	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		db:       db,
		dbmock:   dbmock,
		orders:   storagemock.NewMockOrderRepository(ctrl),
		listings: storagemock.NewMockListingRepository(ctrl),
		accounts: storagemock.NewMockAccountRepository(ctrl),
		store:    storagemock.NewMockLedger(ctrl),
	}

	ls, err := ledgersvc.New(f.store)
	require.NoError(t, err)

	s, err := order.New(db, f.orders, f.listings, f.accounts, ls, escrowOnAccept)
	require.NoError(t, err)

	return s, f
}

var (
	buyerID  = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	vendorID = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002")
)

func buyer() *model.User  { return &model.User{ID: buyerID, Role: model.RoleBuyer} }
func vendor() *model.User { return &model.User{ID: vendorID, Role: model.RoleVendor} }

func testOrder(status model.OrderStatus) *model.Order {
	return &model.Order{
		ID:       uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000001"),
		BuyerID:  buyerID,
		VendorID: vendorID,
		Quantity: decimal.NewFromInt(10),
		Unit:     model.ListingUnitKg,
		Amount:   25000,
		Status:   status,
	}
}

func TestTransition(t *testing.T) {
	t.Run("VendorShipsAcceptedOrder", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		s, f := newFixture(t, ctrl, false)
		m := testOrder(model.OrderStatusAccepted)

		f.dbmock.ExpectBegin()
		f.orders.EXPECT().TxReadForUpdate(gomock.Any(), gomock.Any(), m.ID).Return(m, nil)
		f.orders.EXPECT().TxUpdateStatus(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *sql.Tx, o *model.Order) error {
				assert.Equal(t, model.OrderStatusShipped, o.Status)
				return nil
			})
		f.orders.EXPECT().TxAppendEvent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *sql.Tx, e *model.OrderEvent) error {
				assert.Equal(t, model.OrderStatusAccepted, e.From)
				assert.Equal(t, model.OrderStatusShipped, e.To)
				assert.Equal(t, vendorID, e.ActorID)
				return nil
			})
		f.dbmock.ExpectCommit()

		got, err := s.Transition(context.Background(), m.ID, order.ActionShip, vendor())
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusShipped, got.Status)
		assert.NoError(t, f.dbmock.ExpectationsWereMet())
	})

	t.Run("CompleteFromCreatedIsInvalid", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		s, f := newFixture(t, ctrl, false)
		m := testOrder(model.OrderStatusCreated)

		f.dbmock.ExpectBegin()
		f.orders.EXPECT().TxReadForUpdate(gomock.Any(), gomock.Any(), m.ID).Return(m, nil)
		f.dbmock.ExpectRollback()

		_, err := s.Transition(context.Background(), m.ID, order.ActionComplete, buyer())
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
		assert.NoError(t, f.dbmock.ExpectationsWereMet())
	})

	t.Run("BuyerCannotAccept", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		s, f := newFixture(t, ctrl, false)
		m := testOrder(model.OrderStatusCreated)

		f.dbmock.ExpectBegin()
		f.orders.EXPECT().TxReadForUpdate(gomock.Any(), gomock.Any(), m.ID).Return(m, nil)
		f.dbmock.ExpectRollback()

		_, err := s.Transition(context.Background(), m.ID, order.ActionAccept, buyer())
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("StrangerIsDenied", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		s, f := newFixture(t, ctrl, false)
		m := testOrder(model.OrderStatusCreated)

		f.dbmock.ExpectBegin()
		f.orders.EXPECT().TxReadForUpdate(gomock.Any(), gomock.Any(), m.ID).Return(m, nil)
		f.dbmock.ExpectRollback()

		_, err := s.Transition(context.Background(), m.ID, order.ActionAccept,
			&model.User{ID: uuid.New(), Role: model.RoleVendor})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("CompletionSettlesBuyerToVendor", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		s, f := newFixture(t, ctrl, false)
		m := testOrder(model.OrderStatusShipped)

		buyerAcc := &model.Account{ID: uuid.New()}
		vendorAcc := &model.Account{ID: uuid.New()}

		f.dbmock.ExpectBegin()
		f.orders.EXPECT().TxReadForUpdate(gomock.Any(), gomock.Any(), m.ID).Return(m, nil)
		f.accounts.EXPECT().ReadByUserID(gomock.Any(), vendorID).Return(vendorAcc, nil)
		f.accounts.EXPECT().ReadByUserID(gomock.Any(), buyerID).Return(buyerAcc, nil)
		f.store.EXPECT().
			TxAppendPair(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *sql.Tx, debit, credit *model.Transaction) ([]*model.Transaction, error) {
				assert.Equal(t, buyerAcc.ID, debit.AccountID)
				assert.Equal(t, vendorAcc.ID, credit.AccountID)
				assert.Equal(t, m.Amount, debit.Amount)
				assert.Equal(t, model.ReasonPurchase, debit.Reason)
				assert.Equal(t, model.ReasonSale, credit.Reason)
				assert.Equal(t, "order:"+m.ID.String()+":settle", debit.IdempotencyKey)
				assert.Equal(t, m.ID, debit.OrderID.UUID)
				return []*model.Transaction{debit, credit}, nil
			})
		f.orders.EXPECT().TxUpdateStatus(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		f.orders.EXPECT().TxAppendEvent(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		f.dbmock.ExpectCommit()

		got, err := s.Transition(context.Background(), m.ID, order.ActionComplete, buyer())
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCompleted, got.Status)
		assert.NoError(t, f.dbmock.ExpectationsWereMet())
	})

	t.Run("FailedSettlementRollsBackStatus", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		s, f := newFixture(t, ctrl, false)
		m := testOrder(model.OrderStatusShipped)

		f.dbmock.ExpectBegin()
		f.orders.EXPECT().TxReadForUpdate(gomock.Any(), gomock.Any(), m.ID).Return(m, nil)
		f.accounts.EXPECT().ReadByUserID(gomock.Any(), vendorID).Return(&model.Account{ID: uuid.New()}, nil)
		f.accounts.EXPECT().ReadByUserID(gomock.Any(), buyerID).Return(&model.Account{ID: uuid.New()}, nil)
		f.store.EXPECT().
			TxAppendPair(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, apperr.ErrInsufficientFunds)
		f.dbmock.ExpectRollback()

		_, err := s.Transition(context.Background(), m.ID, order.ActionComplete, buyer())
		assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
		// No status update or event reached the repositories.
		assert.NoError(t, f.dbmock.ExpectationsWereMet())
	})

	t.Run("EscrowHeldOnAccept", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		s, f := newFixture(t, ctrl, true)
		m := testOrder(model.OrderStatusCreated)

		buyerAcc := &model.Account{ID: uuid.New()}
		escrowAcc := &model.Account{ID: uuid.New()}

		f.dbmock.ExpectBegin()
		f.orders.EXPECT().TxReadForUpdate(gomock.Any(), gomock.Any(), m.ID).Return(m, nil)
		f.accounts.EXPECT().ReadByUserID(gomock.Any(), buyerID).Return(buyerAcc, nil)
		f.accounts.EXPECT().ReadEscrow(gomock.Any()).Return(escrowAcc, nil)
		f.store.EXPECT().
			TxAppendPair(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *sql.Tx, debit, credit *model.Transaction) ([]*model.Transaction, error) {
				assert.Equal(t, buyerAcc.ID, debit.AccountID)
				assert.Equal(t, escrowAcc.ID, credit.AccountID)
				assert.Equal(t, model.ReasonEscrowHold, debit.Reason)
				assert.Equal(t, "order:"+m.ID.String()+":hold", debit.IdempotencyKey)
				return []*model.Transaction{debit, credit}, nil
			})
		f.orders.EXPECT().TxUpdateStatus(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		f.orders.EXPECT().TxAppendEvent(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		f.dbmock.ExpectCommit()

		got, err := s.Transition(context.Background(), m.ID, order.ActionAccept, vendor())
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusAccepted, got.Status)
	})

	t.Run("CancelAfterAcceptRefundsHold", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		s, f := newFixture(t, ctrl, true)
		m := testOrder(model.OrderStatusAccepted)
		listingID := uuid.New()
		m.ListingID = uuid.NullUUID{UUID: listingID, Valid: true}

		hold := &model.Transaction{ID: uuid.New()}
		listing := &model.Listing{
			ID:       listingID,
			Quantity: decimal.Zero,
			Status:   model.ListingStatusInTransit,
		}

		f.dbmock.ExpectBegin()
		f.orders.EXPECT().TxReadForUpdate(gomock.Any(), gomock.Any(), m.ID).Return(m, nil)
		f.store.EXPECT().
			ReadByIdempotencyKey(gomock.Any(), "order:"+m.ID.String()+":hold").
			Return(hold, nil)
		f.store.EXPECT().
			TxReverse(gomock.Any(), gomock.Any(), hold.ID, "order:"+m.ID.String()+":refund").
			Return(&model.Transaction{}, nil)
		f.listings.EXPECT().TxReadForUpdate(gomock.Any(), gomock.Any(), listingID).Return(listing, nil)
		f.listings.EXPECT().TxUpdateQuantity(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *sql.Tx, l *model.Listing) error {
				assert.True(t, l.Quantity.Equal(m.Quantity))
				assert.Equal(t, model.ListingStatusAvailable, l.Status)
				return nil
			})
		f.orders.EXPECT().TxUpdateStatus(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		f.orders.EXPECT().TxAppendEvent(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		f.dbmock.ExpectCommit()

		got, err := s.Transition(context.Background(), m.ID, order.ActionCancel, buyer())
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCancelled, got.Status)
	})
}

func TestCreate(t *testing.T) {
	listingID := uuid.MustParse("cccccccc-0000-0000-0000-000000000001")

	testListing := func() *model.Listing {
		return &model.Listing{
			ID:           listingID,
			VendorID:     vendorID,
			Title:        "Baled PET bottles",
			Category:     model.ListingCategoryPlastic,
			Quantity:     decimal.NewFromInt(100),
			Unit:         model.ListingUnitKg,
			PricePerUnit: decimal.NewFromFloat(2.50),
			Status:       model.ListingStatusAvailable,
		}
	}

	t.Run("ReservesQuantityAndFixesAmount", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		s, f := newFixture(t, ctrl, false)

		f.dbmock.ExpectBegin()
		f.listings.EXPECT().TxReadForUpdate(gomock.Any(), gomock.Any(), listingID).Return(testListing(), nil)
		f.listings.EXPECT().TxUpdateQuantity(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *sql.Tx, l *model.Listing) error {
				assert.True(t, l.Quantity.Equal(decimal.NewFromInt(60)))
				assert.Equal(t, model.ListingStatusAvailable, l.Status)
				return nil
			})
		f.orders.EXPECT().TxCreate(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *sql.Tx, o *model.Order) (*model.Order, error) {
				// 40 kg at 2.50/kg is 100.00 in minor units.
				assert.Equal(t, int64(10000), o.Amount)
				assert.Equal(t, buyerID, o.BuyerID)
				assert.Equal(t, vendorID, o.VendorID)
				assert.Equal(t, "Baled PET bottles", o.ListingTitle)
				o.ID = uuid.New()
				o.Status = model.OrderStatusCreated
				return o, nil
			})
		f.orders.EXPECT().TxAppendEvent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *sql.Tx, e *model.OrderEvent) error {
				assert.Equal(t, model.OrderStatusCreated, e.To)
				assert.Equal(t, buyerID, e.ActorID)
				return nil
			})
		f.dbmock.ExpectCommit()

		m, err := s.Create(context.Background(), buyer(), listingID, decimal.NewFromInt(40))
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCreated, m.Status)
		assert.NoError(t, f.dbmock.ExpectationsWereMet())
	})

	t.Run("ExhaustedListingGoesInTransit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		s, f := newFixture(t, ctrl, false)

		f.dbmock.ExpectBegin()
		f.listings.EXPECT().TxReadForUpdate(gomock.Any(), gomock.Any(), listingID).Return(testListing(), nil)
		f.listings.EXPECT().TxUpdateQuantity(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *sql.Tx, l *model.Listing) error {
				assert.True(t, l.Quantity.IsZero())
				assert.Equal(t, model.ListingStatusInTransit, l.Status)
				return nil
			})
		f.orders.EXPECT().TxCreate(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *sql.Tx, o *model.Order) (*model.Order, error) {
				o.ID = uuid.New()
				return o, nil
			})
		f.orders.EXPECT().TxAppendEvent(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		f.dbmock.ExpectCommit()

		_, err := s.Create(context.Background(), buyer(), listingID, decimal.NewFromInt(100))
		require.NoError(t, err)
	})

	t.Run("OwnListingRejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		s, f := newFixture(t, ctrl, false)

		f.dbmock.ExpectBegin()
		f.listings.EXPECT().TxReadForUpdate(gomock.Any(), gomock.Any(), listingID).Return(testListing(), nil)
		f.dbmock.ExpectRollback()

		_, err := s.Create(context.Background(), &model.User{ID: vendorID, Role: model.RoleBuyer}, listingID, decimal.NewFromInt(10))
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("QuantityOverListing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		s, f := newFixture(t, ctrl, false)

		f.dbmock.ExpectBegin()
		f.listings.EXPECT().TxReadForUpdate(gomock.Any(), gomock.Any(), listingID).Return(testListing(), nil)
		f.dbmock.ExpectRollback()

		_, err := s.Create(context.Background(), buyer(), listingID, decimal.NewFromInt(101))
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	})

	t.Run("ZeroQuantity", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		s, _ := newFixture(t, ctrl, false)

		_, err := s.Create(context.Background(), buyer(), listingID, decimal.Zero)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	})
}

func TestRead(t *testing.T) {
	t.Run("PartyOnly", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		s, f := newFixture(t, ctrl, false)
		m := testOrder(model.OrderStatusCreated)

		f.orders.EXPECT().Read(gomock.Any(), m.ID).Return(m, nil).Times(2)

		got, err := s.Read(context.Background(), m.ID, buyer())
		require.NoError(t, err)
		assert.Equal(t, m.ID, got.ID)

		_, err = s.Read(context.Background(), m.ID, &model.User{ID: uuid.New()})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})
}
