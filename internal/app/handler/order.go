package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"rawlink/internal/app/apperr"
	"rawlink/internal/app/logger"
	ordersvc "rawlink/internal/app/service/order"
)

type OrderHandler struct {
	orders *ordersvc.Service
}

func NewOrderHandler(orders *ordersvc.Service) *OrderHandler {
	return &OrderHandler{
		orders: orders,
	}
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Order.Create")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	in := struct {
		ListingID string `json:"listing_id" validate:"required,uuid4"`
		Quantity  string `json:"quantity" validate:"required"`
	}{}

	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	listingID, err := uuid.Parse(in.ListingID)
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusUnprocessableEntity)
		return
	}

	quantity, err := decimal.NewFromString(in.Quantity)
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusUnprocessableEntity)
		return
	}

	m, err := h.orders.Create(ctx, u, listingID, quantity)
	if err != nil {
		l.Debug().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, m, http.StatusCreated)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Order.List")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	mm, err := h.orders.AllByUser(ctx, u.ID)
	if err != nil {
		l.Error().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, mm, http.StatusOK)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Order.Get")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusUnprocessableEntity)
		return
	}

	m, err := h.orders.Read(ctx, id, u)
	if err != nil {
		l.Debug().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, m, http.StatusOK)
}

func (h *OrderHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Order.Events")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusUnprocessableEntity)
		return
	}

	ee, err := h.orders.Events(ctx, id, u)
	if err != nil {
		l.Debug().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, ee, http.StatusOK)
}

func (h *OrderHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, ordersvc.ActionAccept)
}

func (h *OrderHandler) Ship(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, ordersvc.ActionShip)
}

func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, ordersvc.ActionComplete)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, ordersvc.ActionCancel)
}

func (h *OrderHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, ordersvc.ActionDispute)
}

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, action ordersvc.Action) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Order.Transition")
	l.Debug().Str("action", string(action)).Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusUnprocessableEntity)
		return
	}

	m, err := h.orders.Transition(ctx, id, action, u)
	if err != nil {
		l.Debug().Err(err).Str("action", string(action)).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, m, http.StatusOK)
}
