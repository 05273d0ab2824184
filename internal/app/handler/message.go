package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"rawlink/internal/app/apperr"
	"rawlink/internal/app/logger"
	"rawlink/internal/app/model"
	"rawlink/internal/app/service/chat"
	"rawlink/internal/app/storage"
)

type MessageHandler struct {
	messages storage.MessageRepository
	users    storage.UserRepository
	relay    *chat.Service
}

func NewMessageHandler(messages storage.MessageRepository, users storage.UserRepository, relay *chat.Service) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		users:    users,
		relay:    relay,
	}
}

func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Message.Create")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	in := struct {
		ReceiverID string `json:"receiver_id" validate:"required,uuid4"`
		Content    string `json:"content" validate:"required,max=4000"`
	}{}

	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	receiverID, err := uuid.Parse(in.ReceiverID)
	if err != nil || receiverID == u.ID {
		WriteError(w, apperr.ErrInvalidInput, http.StatusUnprocessableEntity)
		return
	}

	if _, err := h.users.Read(ctx, receiverID); err != nil {
		l.Debug().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	m, err := h.messages.Create(ctx, &model.Message{
		SenderID:   u.ID,
		ReceiverID: receiverID,
		Content:    in.Content,
	})
	if err != nil {
		l.Error().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	// Relay failure is not the sender's problem: the message is
	// persisted and readable through history either way.
	if err := h.relay.Publish(ctx, m); err != nil {
		l.Error().Err(err).Msg("Relay publish failed")
	}

	WriteResponse(w, m, http.StatusCreated)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Message.List")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	mm, err := h.messages.AllByUserID(ctx, u.ID)
	if err != nil {
		l.Error().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, mm, http.StatusOK)
}

func (h *MessageHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Message.Conversation")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	otherID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusUnprocessableEntity)
		return
	}

	mm, err := h.messages.Conversation(ctx, u.ID, otherID)
	if err != nil {
		l.Error().Err(err).Send()
		WriteAppError(w, err)
		return
	}

	WriteResponse(w, mm, http.StatusOK)
}
