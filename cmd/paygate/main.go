package main

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"rawlink/internal/app/handler"
	"rawlink/internal/app/logger"
	mw "rawlink/internal/app/middleware"
	"rawlink/pkg/payments"
)

// paygate is the development stand-in for the payment gateway: payments
// resolve a few seconds after creation, most succeed, a deterministic
// minority fails, and random 5xx responses exercise the client's
// circuit breaker.
func main() {
	// setting up signal capturing
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		osCall := <-stop
		log.Printf("System call: %+v", osCall)
		cancel()
	}()

	l := logger.New(true, true)

	if err := runServer(ctx, "127.0.0.1:8090", l); err != nil {
		l.Fatal().Err(err).Msg("Server run failed")
	}
}

func runServer(ctx context.Context, listenAddr string, l logger.Logger) (err error) {
	g := newGateway()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(mw.Log(l))
	r.Post("/api/payments", g.CreatePayment)
	r.Get("/api/payments/{ref}", g.GetPayment)

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: r,
	}

	go func() {
		log.Printf("Listening on %s", listenAddr)
		if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("")
		}
	}()

	log.Printf("Server started")
	<-ctx.Done()
	log.Printf("Server stopped")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer func() {
		cancel()
	}()

	if err = srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Printf("Server exited properly")

	return
}

type gateway struct {
	mu          sync.Mutex
	db          map[string]*payment
	settleAfter time.Duration
}

type payment struct {
	ref       string
	amount    string
	createdAt time.Time
}

func newGateway() *gateway {
	return &gateway{
		db:          make(map[string]*payment),
		settleAfter: 3 * time.Second,
	}
}

func (g *gateway) CreatePayment(w http.ResponseWriter, r *http.Request) {
	in := payments.CreatePaymentRequest{}

	if err := readJSON(r, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if in.Ref == "" || !in.Amount.IsPositive() {
		http.Error(w, "bad payment", http.StatusUnprocessableEntity)
		return
	}

	g.mu.Lock()
	if _, ok := g.db[in.Ref]; !ok {
		g.db[in.Ref] = &payment{
			ref:       in.Ref,
			amount:    in.Amount.String(),
			createdAt: time.Now(),
		}
	}
	g.mu.Unlock()

	handler.WriteResponse(w, &payments.CreatePaymentResponse{
		Ref:    in.Ref,
		Status: payments.StatusPending,
	}, http.StatusCreated)
}

func (g *gateway) GetPayment(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	ctx := r.Context()
	l := logger.Ctx(ctx).With().Str("ref", ref).Str("method", "GetPayment").Logger()

	// flakiness is the point: the client must cope
	if rand.Float32() < 0.2 {
		http.Error(w, "fail", http.StatusInternalServerError)
		return
	}
	if rand.Float32() < 0.1 {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	g.mu.Lock()
	p, ok := g.db[ref]
	g.mu.Unlock()

	if !ok {
		l.Debug().Msg("Unknown payment")
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	status := payments.StatusPending
	if time.Since(p.createdAt) > g.settleAfter {
		// the outcome is a deterministic function of the ref, so
		// repeated polls agree with each other
		h := fnv.New32a()
		_, _ = h.Write([]byte(ref))
		if h.Sum32()%10 == 0 {
			status = payments.StatusFailed
		} else {
			status = payments.StatusSucceeded
		}
	}

	out := struct {
		Ref    string `json:"ref"`
		Amount string `json:"amount"`
		Status string `json:"status"`
	}{p.ref, p.amount, status}

	handler.WriteResponse(w, out, http.StatusOK)
}

func readJSON(r *http.Request, v interface{}) error {
	defer func() {
		_ = r.Body.Close()
	}()

	return json.NewDecoder(r.Body).Decode(v)
}
