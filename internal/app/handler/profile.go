package handler

import (
	"net/http"
	"rawlink/internal/app/logger"
	"rawlink/internal/app/storage"
)

type ProfileHandler struct {
	profiles storage.ProfileRepository
}

func NewProfileHandler(profiles storage.ProfileRepository) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
	}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Profile.Get")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	m, err := h.profiles.ReadByUserID(ctx, u.ID)
	if err != nil {
		l.Debug().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, m, http.StatusOK)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Profile.Update")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	in := struct {
		Name     string `json:"name" validate:"max=255"`
		Phone    string `json:"phone" validate:"max=20"`
		Location string `json:"location" validate:"max=255"`
	}{}

	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	m, err := h.profiles.ReadByUserID(ctx, u.ID)
	if err != nil {
		l.Debug().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	m.Name = in.Name
	m.Phone = in.Phone
	m.Location = in.Location

	m, err = h.profiles.Update(ctx, m)
	if err != nil {
		l.Error().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, m, http.StatusOK)
}
