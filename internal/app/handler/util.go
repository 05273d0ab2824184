package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"io"
	"net/http"
	"rawlink/internal/app/apperr"
	"rawlink/internal/app/model"
)

// readBody into json struct
func readBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return fmt.Errorf("body read: %w", err)
	}

	err = json.Unmarshal(body, v)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

func jsonString(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

type jsonError struct {
	Message string `json:"error"`
}

// WriteError formatted in json
func WriteError(w http.ResponseWriter, err error, statusCode int) {
	WriteResponse(w, &jsonError{Message: err.Error()}, statusCode)
}

// WriteAppError maps an application error to its status code. Unknown
// errors stay opaque to the caller.
func WriteAppError(w http.ResponseWriter, err error) {
	for appErr, status := range appErrStatus {
		if errors.Is(err, appErr) {
			WriteError(w, appErr, status)
			return
		}
	}

	WriteError(w, errors.New("internal error"), http.StatusInternalServerError)
}

var appErrStatus = map[error]int{
	apperr.ErrNotFound:             http.StatusNotFound,
	apperr.ErrConflict:             http.StatusConflict,
	apperr.ErrSoftConflict:         http.StatusOK,
	apperr.ErrInvalidInput:         http.StatusUnprocessableEntity,
	apperr.ErrUnauthorized:         http.StatusUnauthorized,
	apperr.ErrForbidden:            http.StatusForbidden,
	apperr.ErrInsufficientFunds:    http.StatusPaymentRequired,
	apperr.ErrInvalidAccount:       http.StatusNotFound,
	apperr.ErrSameAccount:          http.StatusUnprocessableEntity,
	apperr.ErrCurrencyMismatch:     http.StatusUnprocessableEntity,
	apperr.ErrDuplicateTransaction: http.StatusConflict,
	apperr.ErrInvalidTransition:    http.StatusConflict,
}

// WriteResponse formatted in json
func WriteResponse(w http.ResponseWriter, v interface{}, statusCode int) {
	resBody, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(resBody)
}

type ValidationErrorResponse struct {
	Errors ValidationErrors `json:"errors"`
}

type ValidationErrors []ValidationError

type ValidationError struct {
	Msg   string `json:"msg"`
	Param string `json:"param"`
	Value string `json:"value"`
}

// validateData and send errors, returns true if no validation errors
func validateData(w http.ResponseWriter, v interface{}) bool {
	validate := validator.New()
	err := validate.Struct(v)
	if err != nil {
		errs := make(ValidationErrors, 0)
		for _, err := range err.(validator.ValidationErrors) {
			errs = append(errs, ValidationError{
				Msg:   err.Error(),
				Param: err.Field(),
				Value: fmt.Sprintf("%v", err.Value()),
			})
		}
		writeValidationErrors(w, errs)
		return false
	}

	return true
}

// writeValidationErrors formatted in json
func writeValidationErrors(w http.ResponseWriter, errs ValidationErrors) {
	WriteResponse(w, ValidationErrorResponse{errs}, http.StatusBadRequest)
}

type ContextKeyUser struct{}

func ReadContextUser(ctx context.Context) (*model.User, error) {
	v := ctx.Value(ContextKeyUser{})
	if user, ok := v.(*model.User); ok {
		return user, nil
	}

	return nil, apperr.ErrUnauthorized
}
