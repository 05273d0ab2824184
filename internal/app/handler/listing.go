package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"rawlink/internal/app/apperr"
	"rawlink/internal/app/logger"
	"rawlink/internal/app/model"
	"rawlink/internal/app/storage"
)

type ListingHandler struct {
	listings storage.ListingRepository
}

func NewListingHandler(listings storage.ListingRepository) *ListingHandler {
	return &ListingHandler{
		listings: listings,
	}
}

type listingInput struct {
	Title        string `json:"title" validate:"required,max=255"`
	Description  string `json:"description" validate:"max=2000"`
	Category     string `json:"category" validate:"required,oneof=plastic metal paper e-waste glass other"`
	Quantity     string `json:"quantity" validate:"required"`
	Unit         string `json:"unit" validate:"required,oneof=kg tons"`
	PricePerUnit string `json:"price_per_unit" validate:"required"`
	Country      string `json:"country" validate:"max=100"`
	City         string `json:"city" validate:"max=100"`
	PostalCode   string `json:"postal_code" validate:"max=20"`
	Location     string `json:"location" validate:"max=255"`
}

func (in *listingInput) apply(m *model.Listing) error {
	quantity, err := decimal.NewFromString(in.Quantity)
	if err != nil || !quantity.IsPositive() {
		return apperr.ErrInvalidInput
	}
	price, err := decimal.NewFromString(in.PricePerUnit)
	if err != nil || !price.IsPositive() {
		return apperr.ErrInvalidInput
	}

	m.Title = in.Title
	m.Description = in.Description
	m.Category = in.Category
	m.Quantity = quantity
	m.Unit = in.Unit
	m.PricePerUnit = price
	m.Country = in.Country
	m.City = in.City
	m.PostalCode = in.PostalCode
	m.Location = in.Location

	return nil
}

// List is the public catalogue of available listings.
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Listing.List")

	f := storage.ListingFilter{
		Category: r.URL.Query().Get("category"),
		Location: r.URL.Query().Get("location"),
	}

	mm, err := h.listings.AllAvailable(ctx, f)
	if err != nil {
		l.Error().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, mm, http.StatusOK)
}

func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Listing.Get")

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusUnprocessableEntity)
		return
	}

	m, err := h.listings.Read(ctx, id)
	if err != nil {
		l.Debug().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, m, http.StatusOK)
}

// Create a listing; vendors only.
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Listing.Create")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	if u.Role != model.RoleVendor {
		WriteError(w, apperr.ErrForbidden, http.StatusForbidden)
		return
	}

	in := listingInput{}
	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	m := &model.Listing{VendorID: u.ID}
	if err := in.apply(m); err != nil {
		WriteError(w, err, http.StatusUnprocessableEntity)
		return
	}

	m, err = h.listings.Create(ctx, m)
	if err != nil {
		l.Error().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, m, http.StatusCreated)
}

// Update a listing; owner only.
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Listing.Update")

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

	m, err := h.listings.Read(ctx, id)
	if err != nil {
		l.Debug().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	if m.VendorID != u.ID {
		WriteError(w, apperr.ErrForbidden, http.StatusForbidden)
		return
	}

	in := listingInput{}
	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	if err := in.apply(m); err != nil {
		WriteError(w, err, http.StatusUnprocessableEntity)
		return
	}

	m, err = h.listings.Update(ctx, m)
	if err != nil {
		l.Error().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, m, http.StatusOK)
}

// Delete a listing; owner only. Orders keep their listing title copy.
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Listing.Delete")

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

	m, err := h.listings.Read(ctx, id)
	if err != nil {
		l.Debug().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	if m.VendorID != u.ID {
		WriteError(w, apperr.ErrForbidden, http.StatusForbidden)
		return
	}

	if err := h.listings.Delete(ctx, id); err != nil {
		l.Error().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Mine lists the vendor's own listings, drafts and sold ones included.
func (h *ListingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Listing.Mine")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	mm, err := h.listings.AllByVendorID(ctx, u.ID)
	if err != nil {
		l.Error().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, mm, http.StatusOK)
}
