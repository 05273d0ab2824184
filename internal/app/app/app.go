package app

import (
	"database/sql"
	"embed"
	"fmt"
	"github.com/go-redis/redis/v8"
	"rawlink/internal/app/config"
	"rawlink/internal/app/logger"
	"rawlink/internal/app/service/chat"
	"rawlink/internal/app/service/depositsync"
	ledgersvc "rawlink/internal/app/service/ledger"
	ordersvc "rawlink/internal/app/service/order"
	"rawlink/internal/app/session"
	"rawlink/internal/app/storage"
	"rawlink/internal/app/storage/postgres"
	"rawlink/pkg/payments"
)

type App struct {
	config   config.Config
	logger   logger.Logger
	db       *sql.DB
	payments *payments.Service

	users    storage.UserRepository
	profiles storage.ProfileRepository
	accounts storage.AccountRepository
	store    storage.Ledger
	listings storage.ListingRepository
	orders   storage.OrderRepository
	messages storage.MessageRepository

	ledger   *ledgersvc.Service
	orderSvc *ordersvc.Service
	relay    *chat.Service
	syncer   *depositsync.Service

	session session.Manager
	stopCh  chan struct{}
}

func New(cfg config.Config, logger logger.Logger, e embed.FS) (*App, error) {
	ps, err := payments.NewService(cfg.Gateway.RemoteURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := applyMigrations(e, db); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}

	users, err := postgres.NewUserRepository(db, cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("user repository init: %w", err)
	}

	profiles, err := postgres.NewProfileRepository(db)
	if err != nil {
		return nil, fmt.Errorf("profile repository init: %w", err)
	}

	accounts, err := postgres.NewAccountRepository(db)
	if err != nil {
		return nil, fmt.Errorf("account repository init: %w", err)
	}

	store, err := postgres.NewLedger(db)
	if err != nil {
		return nil, fmt.Errorf("ledger init: %w", err)
	}

	listings, err := postgres.NewListingRepository(db)
	if err != nil {
		return nil, fmt.Errorf("listing repository init: %w", err)
	}

	orders, err := postgres.NewOrderRepository(db)
	if err != nil {
		return nil, fmt.Errorf("order repository init: %w", err)
	}

	messages, err := postgres.NewMessageRepository(db)
	if err != nil {
		return nil, fmt.Errorf("message repository init: %w", err)
	}

	ls, err := ledgersvc.New(store)
	if err != nil {
		return nil, fmt.Errorf("ledger service init: %w", err)
	}

	os, err := ordersvc.New(db, orders, listings, accounts, ls, cfg.EscrowOnAccept)
	if err != nil {
		return nil, fmt.Errorf("order service init: %w", err)
	}

	var rdb *redis.Client
	sm := session.Manager(session.NewMemory(cfg.SecretKey, users))
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sm = session.NewRedis(cfg.SecretKey, users, rdb)
	}

	relay, err := chat.New(rdb)
	if err != nil {
		return nil, fmt.Errorf("chat relay init: %w", err)
	}

	syncer, err := depositsync.New(store, ps, cfg.Gateway.SyncInterval)
	if err != nil {
		return nil, fmt.Errorf("deposit syncer init: %w", err)
	}

	a := &App{
		config:   cfg,
		logger:   logger,
		db:       db,
		stopCh:   make(chan struct{}),
		users:    users,
		profiles: profiles,
		accounts: accounts,
		store:    store,
		listings: listings,
		orders:   orders,
		messages: messages,
		ledger:   ls,
		orderSvc: os,
		relay:    relay,
		syncer:   syncer,
		session:  sm,
		payments: ps,
	}

	go func() {
		<-a.stopCh
		a.logger.Info().Msg("Shutting down application")
		a.syncer.Stop()
		_ = a.db.Close()
	}()

	return a, nil
}

func (a *App) Stop() {
	close(a.stopCh)
}
