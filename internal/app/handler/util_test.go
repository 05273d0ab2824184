package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"rawlink/internal/app/apperr"
)

func TestMinorUnits(t *testing.T) {
	tt := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"50.00", 5000, true},
		{"0.01", 1, true},
		{"1234.50", 123450, true},
		{"100", 10000, true},
		{"0", 0, false},
		{"-50.00", 0, false},
		{"12.345", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tc := range tt {
		got, err := minorUnits(tc.in)
		if tc.ok {
			assert.NoError(t, err, tc.in)
			assert.Equal(t, tc.want, got, tc.in)
		} else {
			assert.ErrorIs(t, err, apperr.ErrInvalidInput, tc.in)
		}
	}
}

func TestWriteAppError(t *testing.T) {
	tt := []struct {
		err    error
		status int
	}{
		{apperr.ErrNotFound, http.StatusNotFound},
		{apperr.ErrInvalidAccount, http.StatusNotFound},
		{apperr.ErrConflict, http.StatusConflict},
		{apperr.ErrDuplicateTransaction, http.StatusConflict},
		{apperr.ErrInvalidTransition, http.StatusConflict},
		{apperr.ErrSoftConflict, http.StatusOK},
		{apperr.ErrInvalidInput, http.StatusUnprocessableEntity},
		{apperr.ErrSameAccount, http.StatusUnprocessableEntity},
		{apperr.ErrCurrencyMismatch, http.StatusUnprocessableEntity},
		{apperr.ErrUnauthorized, http.StatusUnauthorized},
		{apperr.ErrForbidden, http.StatusForbidden},
		{apperr.ErrInsufficientFunds, http.StatusPaymentRequired},
		// Wrapped errors still map through errors.Is.
		{errors.Wrap(apperr.ErrInsufficientFunds, "debit"), http.StatusPaymentRequired},
		// Anything unknown stays opaque.
		{errors.New("pq: connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range tt {
		rr := httptest.NewRecorder()
		WriteAppError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code, "%v", tc.err)
	}
}
