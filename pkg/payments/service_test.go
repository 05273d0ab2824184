package payments_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rawlink/pkg/payments"
)

func TestCreatePayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/payments", r.URL.Path)

		in := payments.CreatePaymentRequest{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "pay-1", in.Ref)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payments.CreatePaymentResponse{
			Ref:    in.Ref,
			Status: payments.StatusPending,
		})
	}))
	defer srv.Close()

	s, err := payments.NewService(srv.URL)
	require.NoError(t, err)

	out := &payments.CreatePaymentResponse{}
	err = s.CreatePayment(context.Background(), &payments.CreatePaymentRequest{
		Ref:    "pay-1",
		Amount: decimal.NewFromFloat(50.00),
	}, out)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusPending, out.Status)
}

func TestGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/payments/pay-1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payments.GetPaymentResponse{
			Ref:    "pay-1",
			Amount: decimal.NewFromFloat(50.00),
			Status: payments.StatusSucceeded,
		})
	}))
	defer srv.Close()

	s, err := payments.NewService(srv.URL)
	require.NoError(t, err)

	out := &payments.GetPaymentResponse{}
	err = s.GetPayment(context.Background(), "pay-1", out)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusSucceeded, out.Status)
}

func TestRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such payment", http.StatusNotFound)
	}))
	defer srv.Close()

	s, err := payments.NewService(srv.URL)
	require.NoError(t, err)

	err = s.GetPayment(context.Background(), "missing", &payments.GetPaymentResponse{})
	require.Error(t, err)

	remoteErr := &payments.RemoteError{}
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusNotFound, remoteErr.StatusCode)
}

func TestBreakerOpensOnRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := payments.NewService(srv.URL, payments.WithBreakerSettings(gobreaker.Settings{
		Name:    "test",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err := s.GetPayment(context.Background(), "pay-1", &payments.GetPaymentResponse{})
		require.Error(t, err)
	}

	err = s.GetPayment(context.Background(), "pay-1", &payments.GetPaymentResponse{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
