package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ferdypruis/go-luhn"
	"github.com/rs/xid"
	"github.com/shopspring/decimal"
	"rawlink/internal/app/apperr"
	"rawlink/internal/app/logger"
	"rawlink/internal/app/model"
	ledgersvc "rawlink/internal/app/service/ledger"
	"rawlink/internal/app/storage"
	"rawlink/pkg/payments"
)

type WalletHandler struct {
	accounts storage.AccountRepository
	store    storage.Ledger
	ledger   *ledgersvc.Service
	payments *payments.Service
}

func NewWalletHandler(accounts storage.AccountRepository, store storage.Ledger, ls *ledgersvc.Service, ps *payments.Service) *WalletHandler {
	return &WalletHandler{
		accounts: accounts,
		store:    store,
		ledger:   ls,
		payments: ps,
	}
}

// minorUnits parses a 2-dp decimal amount into integer minor units.
func minorUnits(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, apperr.ErrInvalidInput
	}

	shifted := d.Shift(2)
	if !shifted.IsInteger() || !shifted.IsPositive() {
		return 0, apperr.ErrInvalidInput
	}

	return shifted.IntPart(), nil
}

func idempotencyKey(r *http.Request) (string, error) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		return "", apperr.ErrInvalidInput
	}

	return key, nil
}

func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Wallet.Balance")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	acc, err := h.accounts.ReadByUserID(ctx, u.ID)
	if err != nil {
		l.Debug().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	withdrawn, err := h.store.WithdrawnSum(ctx, acc.ID)
	if err != nil {
		l.Error().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	out := struct {
		Balance   string `json:"balance"`
		Withdrawn string `json:"withdrawn"`
		Currency  string `json:"currency"`
	}{
		Balance:   decimal.New(acc.Balance, -2).StringFixed(2),
		Withdrawn: decimal.New(withdrawn, -2).StringFixed(2),
		Currency:  acc.Currency,
	}

	l.Debug().Msgf("sending balance %s", jsonString(out))
	WriteResponse(w, out, http.StatusOK)
}

func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Wallet.ListTransactions")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	acc, err := h.accounts.ReadByUserID(ctx, u.ID)
	if err != nil {
		l.Debug().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	mm, err := h.store.AllByAccountID(ctx, acc.ID)
	if err != nil {
		l.Error().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, mm, http.StatusOK)
}

// Deposit registers a gateway payment and records a pending credit. The
// credit has no balance effect until the deposit syncer confirms the
// payment went through. A replayed idempotency key returns the earlier
// entry without touching the gateway again.
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Wallet.Deposit")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	key, err := idempotencyKey(r)
	if err != nil {
		WriteError(w, err, http.StatusUnprocessableEntity)
		return
	}

	in := struct {
		Amount string `json:"amount" validate:"required"`
	}{}

	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	amount, err := minorUnits(in.Amount)
	if err != nil {
		WriteError(w, err, http.StatusUnprocessableEntity)
		return
	}

	if existing, err := h.ledger.ReadByIdempotencyKey(ctx, key); err == nil {
		l.Debug().Str("entry_id", existing.ID.String()).Msg("Idempotent replay")
		WriteResponse(w, existing, http.StatusOK)
		return
	}

	acc, err := h.accounts.ReadByUserID(ctx, u.ID)
	if err != nil {
		l.Debug().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	ref := xid.New().String()

	out := &payments.CreatePaymentResponse{}
	if err := h.payments.CreatePayment(ctx, &payments.CreatePaymentRequest{
		Ref:    ref,
		Amount: decimal.New(amount, -2),
	}, out); err != nil {
		l.Error().Err(err).Msg("Gateway call failed")
		WriteError(w, errors.New("payment gateway unavailable"), http.StatusBadGateway)
		return
	}

	m, err := h.ledger.PendingCredit(ctx, acc.ID, amount, model.ReasonDeposit, key, ref)
	if err != nil {
		l.Debug().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, m, http.StatusAccepted)
}

// Withdraw debits the wallet towards a card. The card number is only
// checked for shape (Luhn); actual payout is the gateway's business.
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Wallet.Withdraw")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	key, err := idempotencyKey(r)
	if err != nil {
		WriteError(w, err, http.StatusUnprocessableEntity)
		return
	}

	in := struct {
		Card   string `json:"card" validate:"required,numeric,min=12,max=19"`
		Amount string `json:"amount" validate:"required"`
	}{}

	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	if !luhn.Valid(in.Card) {
		l.Debug().Msg("Card number failed Luhn check")
		WriteError(w, apperr.ErrInvalidInput, http.StatusUnprocessableEntity)
		return
	}

	amount, err := minorUnits(in.Amount)
	if err != nil {
		WriteError(w, err, http.StatusUnprocessableEntity)
		return
	}

	acc, err := h.accounts.ReadByUserID(ctx, u.ID)
	if err != nil {
		l.Debug().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	m, err := h.ledger.Debit(ctx, acc.ID, amount, model.ReasonWithdrawal, key)
	if err != nil {
		if errors.Is(err, apperr.ErrInsufficientFunds) {
			l.Debug().Err(err).Msg("Insufficient funds")
			WriteError(w, err, http.StatusPaymentRequired)
			return
		}
		l.Debug().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, m, http.StatusOK)
}
