package depositsync_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rawlink/internal/app/apperr"
	"rawlink/internal/app/model"
	"rawlink/internal/app/service/depositsync"
	storagemock "rawlink/internal/app/storage/mock"
	"rawlink/pkg/payments"
)

func gatewayWithStatus(t *testing.T, status string) *payments.Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payments.GetPaymentResponse{
			Amount: decimal.NewFromInt(50),
			Status: status,
		})
	}))
	t.Cleanup(srv.Close)

	ps, err := payments.NewService(srv.URL)
	require.NoError(t, err)
	return ps
}

func newService(t *testing.T, store *storagemock.MockLedger, ps *payments.Service) *depositsync.Service {
	t.Helper()
	s, err := depositsync.New(store, ps, time.Hour)
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s
}

func TestSyncDeposit(t *testing.T) {
	entryID := uuid.New()

	t.Run("SucceededCommits", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := storagemock.NewMockLedger(ctrl)
		store.EXPECT().CommitPending(gomock.Any(), entryID).Return(&model.Transaction{ID: entryID}, nil)

		s := newService(t, store, gatewayWithStatus(t, payments.StatusSucceeded))

		err := s.SyncDeposit(entryID, "pay-ref")()
		assert.NoError(t, err)
	})

	t.Run("FailedVoids", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := storagemock.NewMockLedger(ctrl)
		store.EXPECT().VoidPending(gomock.Any(), entryID).Return(nil)

		s := newService(t, store, gatewayWithStatus(t, payments.StatusFailed))

		err := s.SyncDeposit(entryID, "pay-ref")()
		assert.NoError(t, err)
	})

	t.Run("PendingLeavesEntryAlone", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// No ledger calls expected.
		store := storagemock.NewMockLedger(ctrl)

		s := newService(t, store, gatewayWithStatus(t, payments.StatusPending))

		err := s.SyncDeposit(entryID, "pay-ref")()
		assert.NoError(t, err)
	})

	t.Run("ConcurrentCommitIsNotAFailure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := storagemock.NewMockLedger(ctrl)
		store.EXPECT().CommitPending(gomock.Any(), entryID).Return(nil, apperr.ErrSoftConflict)

		s := newService(t, store, gatewayWithStatus(t, payments.StatusSucceeded))

		err := s.SyncDeposit(entryID, "pay-ref")()
		assert.NoError(t, err)
	})

	t.Run("GatewayErrorRetriesLater", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)

		ps, err := payments.NewService(srv.URL)
		require.NoError(t, err)

		s := newService(t, storagemock.NewMockLedger(ctrl), ps)

		err = s.SyncDeposit(entryID, "pay-ref")()
		assert.Error(t, err)
	})
}
