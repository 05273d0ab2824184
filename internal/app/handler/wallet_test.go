package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rawlink/internal/app/apperr"
	"rawlink/internal/app/handler"
	"rawlink/internal/app/model"
	ledgersvc "rawlink/internal/app/service/ledger"
	storagemock "rawlink/internal/app/storage/mock"
	"rawlink/pkg/payments"
)

var testUser = &model.User{
	ID:       uuid.MustParse("dddddddd-0000-0000-0000-000000000001"),
	Email:    "buyer@example.com",
	Username: "buyer",
	Role:     model.RoleBuyer,
}

func authed(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), handler.ContextKeyUser{}, testUser)
	return r.WithContext(ctx)
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

// okGateway accepts every payment intent.
func okGateway(t *testing.T) *payments.Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payments.CreatePaymentResponse{Status: payments.StatusPending})
	}))
	t.Cleanup(srv.Close)

	ps, err := payments.NewService(srv.URL)
	require.NoError(t, err)
	return ps
}

func downGateway(t *testing.T) *payments.Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	ps, err := payments.NewService(srv.URL)
	require.NoError(t, err)
	return ps
}

func TestWalletBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := storagemock.NewMockAccountRepository(ctrl)
	store := storagemock.NewMockLedger(ctrl)

	acc := &model.Account{ID: uuid.New(), Balance: 123450, Currency: "MYR"}
	accounts.EXPECT().ReadByUserID(gomock.Any(), testUser.ID).Return(acc, nil)
	store.EXPECT().WithdrawnSum(gomock.Any(), acc.ID).Return(int64(5000), nil)

	ls, err := ledgersvc.New(store)
	require.NoError(t, err)

	h := handler.NewWalletHandler(accounts, store, ls, okGateway(t))

	req := authed(httptest.NewRequest(http.MethodGet, "/api/wallet", nil))
	rr := httptest.NewRecorder()

	h.Balance(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	out := struct {
		Balance   string `json:"balance"`
		Withdrawn string `json:"withdrawn"`
		Currency  string `json:"currency"`
	}{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "1234.50", out.Balance)
	assert.Equal(t, "50.00", out.Withdrawn)
	assert.Equal(t, "MYR", out.Currency)
}

func TestWalletDeposit(t *testing.T) {
	acc := &model.Account{ID: uuid.New(), Currency: "MYR"}

	t.Run("RecordsPendingCredit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		accounts := storagemock.NewMockAccountRepository(ctrl)
		store := storagemock.NewMockLedger(ctrl)

		store.EXPECT().ReadByIdempotencyKey(gomock.Any(), "dep-1").Return(nil, apperr.ErrNotFound)
		accounts.EXPECT().ReadByUserID(gomock.Any(), testUser.ID).Return(acc, nil)
		store.EXPECT().AppendPending(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, entry *model.Transaction) (*model.Transaction, error) {
				assert.Equal(t, int64(5000), entry.Amount)
				assert.Equal(t, model.ReasonDeposit, entry.Reason)
				assert.Equal(t, "dep-1", entry.IdempotencyKey)
				assert.NotEmpty(t, entry.ProviderRef)
				entry.ID = uuid.New()
				entry.Status = model.TransactionStatusPending
				entry.CreatedAt = time.Now()
				return entry, nil
			})

		ls, err := ledgersvc.New(store)
		require.NoError(t, err)

		h := handler.NewWalletHandler(accounts, store, ls, okGateway(t))

		req := authed(httptest.NewRequest(http.MethodPost, "/api/wallet/deposit",
			jsonBody(t, map[string]string{"amount": "50.00"})))
		req.Header.Set("Idempotency-Key", "dep-1")
		rr := httptest.NewRecorder()

		h.Deposit(rr, req)

		assert.Equal(t, http.StatusAccepted, rr.Code)
	})

	t.Run("ReplayReturnsExistingEntry", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		accounts := storagemock.NewMockAccountRepository(ctrl)
		store := storagemock.NewMockLedger(ctrl)

		existing := &model.Transaction{
			ID:     uuid.New(),
			Kind:   model.TransactionKindCredit,
			Status: model.TransactionStatusPending,
			Amount: 5000,
			Reason: model.ReasonDeposit,
		}
		store.EXPECT().ReadByIdempotencyKey(gomock.Any(), "dep-1").Return(existing, nil)

		ls, err := ledgersvc.New(store)
		require.NoError(t, err)

		// The gateway must not be touched on replay.
		h := handler.NewWalletHandler(accounts, store, ls, downGateway(t))

		req := authed(httptest.NewRequest(http.MethodPost, "/api/wallet/deposit",
			jsonBody(t, map[string]string{"amount": "50.00"})))
		req.Header.Set("Idempotency-Key", "dep-1")
		rr := httptest.NewRecorder()

		h.Deposit(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		out := struct {
			ID string `json:"id"`
		}{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		assert.Equal(t, existing.ID.String(), out.ID)
	})

	t.Run("GatewayDownIsBadGateway", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		accounts := storagemock.NewMockAccountRepository(ctrl)
		store := storagemock.NewMockLedger(ctrl)

		store.EXPECT().ReadByIdempotencyKey(gomock.Any(), "dep-1").Return(nil, apperr.ErrNotFound)
		accounts.EXPECT().ReadByUserID(gomock.Any(), testUser.ID).Return(acc, nil)

		ls, err := ledgersvc.New(store)
		require.NoError(t, err)

		h := handler.NewWalletHandler(accounts, store, ls, downGateway(t))

		req := authed(httptest.NewRequest(http.MethodPost, "/api/wallet/deposit",
			jsonBody(t, map[string]string{"amount": "50.00"})))
		req.Header.Set("Idempotency-Key", "dep-1")
		rr := httptest.NewRecorder()

		h.Deposit(rr, req)

		// No pending entry was recorded.
		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})

	t.Run("MissingIdempotencyKey", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ls, err := ledgersvc.New(storagemock.NewMockLedger(ctrl))
		require.NoError(t, err)

		h := handler.NewWalletHandler(storagemock.NewMockAccountRepository(ctrl),
			storagemock.NewMockLedger(ctrl), ls, okGateway(t))

		req := authed(httptest.NewRequest(http.MethodPost, "/api/wallet/deposit",
			jsonBody(t, map[string]string{"amount": "50.00"})))
		rr := httptest.NewRecorder()

		h.Deposit(rr, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("RejectsBadAmounts", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ls, err := ledgersvc.New(storagemock.NewMockLedger(ctrl))
		require.NoError(t, err)

		h := handler.NewWalletHandler(storagemock.NewMockAccountRepository(ctrl),
			storagemock.NewMockLedger(ctrl), ls, okGateway(t))

		for _, amount := range []string{"-50.00", "0", "12.345", "abc"} {
			req := authed(httptest.NewRequest(http.MethodPost, "/api/wallet/deposit",
				jsonBody(t, map[string]string{"amount": amount})))
			req.Header.Set("Idempotency-Key", "dep-1")
			rr := httptest.NewRecorder()

			h.Deposit(rr, req)

			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "amount %q", amount)
		}
	})
}

func TestWalletWithdraw(t *testing.T) {
	acc := &model.Account{ID: uuid.New(), Currency: "MYR"}

	withdrawReq := func(t *testing.T, card, amount string) *http.Request {
		req := authed(httptest.NewRequest(http.MethodPost, "/api/wallet/withdraw",
			jsonBody(t, map[string]string{"card": card, "amount": amount})))
		req.Header.Set("Idempotency-Key", "wd-1")
		return req
	}

	t.Run("DebitsWallet", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		accounts := storagemock.NewMockAccountRepository(ctrl)
		store := storagemock.NewMockLedger(ctrl)

		accounts.EXPECT().ReadByUserID(gomock.Any(), testUser.ID).Return(acc, nil)
		store.EXPECT().Append(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, entry *model.Transaction) (*model.Transaction, error) {
				assert.Equal(t, model.TransactionKindDebit, entry.Kind)
				assert.Equal(t, int64(2500), entry.Amount)
				assert.Equal(t, model.ReasonWithdrawal, entry.Reason)
				entry.ID = uuid.New()
				return entry, nil
			})

		ls, err := ledgersvc.New(store)
		require.NoError(t, err)

		h := handler.NewWalletHandler(accounts, store, ls, okGateway(t))

		rr := httptest.NewRecorder()
		h.Withdraw(rr, withdrawReq(t, "4561261212345467", "25.00"))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		accounts := storagemock.NewMockAccountRepository(ctrl)
		store := storagemock.NewMockLedger(ctrl)

		accounts.EXPECT().ReadByUserID(gomock.Any(), testUser.ID).Return(acc, nil)
		store.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil, apperr.ErrInsufficientFunds)

		ls, err := ledgersvc.New(store)
		require.NoError(t, err)

		h := handler.NewWalletHandler(accounts, store, ls, okGateway(t))

		rr := httptest.NewRecorder()
		h.Withdraw(rr, withdrawReq(t, "4561261212345467", "25.00"))

		assert.Equal(t, http.StatusPaymentRequired, rr.Code)
	})

	t.Run("BadCardNumber", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ls, err := ledgersvc.New(storagemock.NewMockLedger(ctrl))
		require.NoError(t, err)

		h := handler.NewWalletHandler(storagemock.NewMockAccountRepository(ctrl),
			storagemock.NewMockLedger(ctrl), ls, okGateway(t))

		rr := httptest.NewRecorder()
		h.Withdraw(rr, withdrawReq(t, "4561261212345464", "25.00"))

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ls, err := ledgersvc.New(storagemock.NewMockLedger(ctrl))
		require.NoError(t, err)

		h := handler.NewWalletHandler(storagemock.NewMockAccountRepository(ctrl),
			storagemock.NewMockLedger(ctrl), ls, okGateway(t))

		req := httptest.NewRequest(http.MethodPost, "/api/wallet/withdraw", nil)
		rr := httptest.NewRecorder()

		h.Withdraw(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
