package depositsync

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"rawlink/internal/app/apperr"
	"rawlink/internal/app/logger"
	"rawlink/internal/app/model"
	"rawlink/internal/app/storage"
	"rawlink/pkg/payments"
)

type Job func() error

// Service drives pending deposits to a terminal state: it periodically
// scans the ledger for pending deposit entries, asks the gateway for the
// payment outcome, and commits or voids each entry. Failed jobs are
// re-enqueued after a delay.
type Service struct {
	mu     sync.RWMutex
	logger logger.Logger

	ledger   storage.Ledger
	payments *payments.Service
	jobs     chan Job
	stopCh   chan struct{}

	scanInterval time.Duration
}

func New(ledger storage.Ledger, ps *payments.Service, scanInterval time.Duration) (*Service, error) {
	s := &Service{
		logger:       logger.Global().WithComponent("DepositSync.Service"),
		scanInterval: scanInterval,
		jobs:         make(chan Job),
		stopCh:       make(chan struct{}),
		ledger:       ledger,
		payments:     ps,
	}
	s.Start(runtime.GOMAXPROCS(0))

	return s, nil
}

func (s *Service) Start(numWorkers int) {
	const retryDelay = time.Second
	for i := 0; i < numWorkers; i++ {
		go func(workerID int, l logger.Logger, jobs chan Job, stop chan struct{}) {
			for {
				select {
				case <-stop:
					return
				case job, ok := <-jobs:
					if !ok {
						return
					}
					id := uuid.New()
					ll := l.With().Int("worker_id", workerID).Str("job_id", id.String()).Logger()
					ll.Debug().Msg("Running job")
					if err := job(); err != nil {
						ll.Error().Err(err).Msg("Job failed")
						go func() {
							ll.Debug().Msg("Retrying job")
							time.Sleep(retryDelay)
							select {
							case jobs <- job:
							case <-stop:
							}
						}()
						continue
					}
					ll.Debug().Msg("Job done")
				}
			}
		}(i, s.logger, s.jobs, s.stopCh)
	}

	go func(l logger.Logger, scanInterval time.Duration) {
		t := time.NewTimer(scanInterval)
		for {
			select {
			case <-s.stopCh:
				t.Stop()
				return
			case <-t.C:
				l.Debug().Msg("Scanning pending deposits")
				s.jobs <- s.scanPending()
				t.Reset(scanInterval)
			}
		}
	}(s.logger, s.scanInterval)
}

func (s *Service) Stop() {
	s.logger.Debug().Msg("Service shutdown")
	close(s.stopCh)
}

func (s *Service) Run(job Job) {
	select {
	case s.jobs <- job:
	case <-s.stopCh:
	}
}

// scanPending enqueues one sync job per pending deposit entry.
func (s *Service) scanPending() Job {
	timeout := 30 * time.Second
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ctx = s.logger.WithContext(ctx)

		pending, err := s.ledger.PendingByReason(ctx, model.ReasonDeposit)
		if err != nil {
			return errors.Wrap(err, "pending scan")
		}

		for _, entry := range pending {
			go s.Run(s.SyncDeposit(entry.ID, entry.ProviderRef))
		}

		return nil
	}
}

// SyncDeposit resolves one pending deposit against the gateway. An
// outcome the gateway has not reached yet is left for the next scan.
func (s *Service) SyncDeposit(entryID uuid.UUID, providerRef string) Job {
	timeout := 30 * time.Second
	return func() error {
		l := s.logger.With().
			Str("entry_id", entryID.String()).
			Str("provider_ref", providerRef).
			Logger()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ctx = l.WithContext(ctx)

		out := &payments.GetPaymentResponse{}
		if err := s.payments.GetPayment(ctx, providerRef, out); err != nil {
			return errors.Wrap(err, "payment fetch")
		}

		switch out.Status {
		case payments.StatusSucceeded:
			// ErrSoftConflict means a concurrent job already committed it.
			if _, err := s.ledger.CommitPending(ctx, entryID); err != nil && !errors.Is(err, apperr.ErrSoftConflict) {
				return errors.Wrap(err, "deposit commit")
			}
			l.Info().Msg("Deposit committed")
		case payments.StatusFailed:
			if err := s.ledger.VoidPending(ctx, entryID); err != nil && !errors.Is(err, apperr.ErrSoftConflict) {
				return errors.Wrap(err, "deposit void")
			}
			l.Info().Msg("Deposit voided")
		default:
			l.Debug().Str("payment_status", out.Status).Msg("Still pending")
		}

		return nil
	}
}
