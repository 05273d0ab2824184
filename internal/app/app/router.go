package app

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"net/http"
	"rawlink/internal/app/handler"
	middleware2 "rawlink/internal/app/middleware"
)

func (a *App) Router() http.Handler {

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware2.Log(a.logger))

	auth := middleware2.Auth(a.session)

	// api
	uh := handler.NewUserHandler(a.users, a.session)
	ph := handler.NewProfileHandler(a.profiles)
	wh := handler.NewWalletHandler(a.accounts, a.store, a.ledger, a.payments)
	lh := handler.NewListingHandler(a.listings)
	oh := handler.NewOrderHandler(a.orderSvc)
	mh := handler.NewMessageHandler(a.messages, a.users, a.relay)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", uh.Register)
			r.Post("/login", uh.Login)
			r.Get("/{id}", uh.Get)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", ph.Get)
			r.Put("/", ph.Update)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", wh.Balance)
			r.Get("/transactions", wh.ListTransactions)
			r.Post("/deposit", wh.Deposit)
			r.Post("/withdraw", wh.Withdraw)
		})

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", lh.List)
			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Post("/", lh.Create)
				r.Get("/mine", lh.Mine)
				r.Put("/{id}", lh.Update)
				r.Delete("/{id}", lh.Delete)
			})
			r.Get("/{id}", lh.Get)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(auth)
			r.Post("/", oh.Create)
			r.Get("/", oh.List)
			r.Get("/{id}", oh.Get)
			r.Get("/{id}/events", oh.Events)
			r.Post("/{id}/accept", oh.Accept)
			r.Post("/{id}/ship", oh.Ship)
			r.Post("/{id}/complete", oh.Complete)
			r.Post("/{id}/cancel", oh.Cancel)
			r.Post("/{id}/dispute", oh.Dispute)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Use(auth)
			r.Post("/", mh.Create)
			r.Get("/", mh.List)
			r.Get("/chat/{userID}", mh.Conversation)
		})
	})

	return r
}
