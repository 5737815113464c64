package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bookly-app/bookly/libs/db"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/bookly-app/bookly/services/billing-service/internal/payments"
	"github.com/bookly-app/bookly/services/billing-service/internal/processor"
	"github.com/bookly-app/bookly/services/billing-service/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StripeReconciler settles pending payments whose webhook never arrived by
// asking the processor for the intent state.
type StripeReconciler struct {
	pool        *db.Pool
	repo        *storage.Repository
	svc         *payments.Service
	proc        processor.Processor
	logger      *slog.Logger
	batchSize   int
	minAge      time.Duration
	advisoryKey int64
	now         func() time.Time
}

type StripeReconcilerConfig struct {
	Interval        time.Duration
	BatchSize       int
	MinAge          time.Duration
	AdvisoryLockKey int64
}

func NewStripeReconciler(pool *db.Pool, repo *storage.Repository, svc *payments.Service, proc processor.Processor, logger *slog.Logger, cfg StripeReconcilerConfig) *StripeReconciler {
	bs := cfg.BatchSize
	if bs <= 0 {
		bs = 50
	}
	minAge := cfg.MinAge
	if minAge <= 0 {
		minAge = 15 * time.Minute
	}
	lockKey := cfg.AdvisoryLockKey
	if lockKey == 0 {
		lockKey = 4242001
	}
	return &StripeReconciler{
		pool:        pool,
		repo:        repo,
		svc:         svc,
		proc:        proc,
		logger:      logger,
		batchSize:   bs,
		minAge:      minAge,
		advisoryKey: lockKey,
		now:         time.Now,
	}
}

// Run reconciles every interval while this instance holds the advisory lock.
func (r *StripeReconciler) Run(ctx context.Context, interval time.Duration) {
	if r.proc.Name() != "stripe" {
		r.logger.Warn("stripe reconcile disabled: STRIPE_SECRET_KEY missing")
		return
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	conn, err := r.acquireLock(ctx)
	if err != nil {
		return
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, r.advisoryKey)
		conn.Release()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.reconcileOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcileOnce(ctx)
		}
	}
}

// acquireLock blocks until this instance holds the advisory lock on a
// dedicated connection, or ctx ends.
func (r *StripeReconciler) acquireLock(ctx context.Context) (*pgxpool.Conn, error) {
	for {
		conn, err := r.pool.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Error("stripe reconcile: failed to acquire connection", "err", err)
			if !sleep(ctx, 5*time.Second) {
				return nil, ctx.Err()
			}
			continue
		}
		var locked bool
		if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, r.advisoryKey).Scan(&locked); err != nil {
			conn.Release()
			r.logger.Error("stripe reconcile: failed to acquire advisory lock", "err", err)
			if !sleep(ctx, 5*time.Second) {
				return nil, ctx.Err()
			}
			continue
		}
		if locked {
			r.logger.Info("stripe reconcile: advisory lock acquired", "lock_key", r.advisoryKey)
			return conn, nil
		}
		conn.Release()
		r.logger.Info("stripe reconcile: advisory lock held by another instance", "lock_key", r.advisoryKey)
		if !sleep(ctx, 30*time.Second) {
			return nil, ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (r *StripeReconciler) reconcileOnce(ctx context.Context) {
	pending, err := r.repo.ListPendingForReconcile(ctx, r.now().Add(-r.minAge), processor.LocalPrefix, r.batchSize)
	if err != nil {
		r.logger.Error("stripe reconcile: failed to list payments", "err", err)
		return
	}

	applied := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return
		}
		intent, err := r.proc.GetIntent(ctx, p.StripePaymentID)
		if err != nil {
			r.logger.Warn("stripe reconcile: failed to fetch intent", "err", err, "payment_id", p.ID, "stripe_payment_id", p.StripePaymentID)
			continue
		}
		if intent.Status == status.PaymentPending {
			continue
		}

		err = r.pool.InTx(ctx, func(tx pgx.Tx) error {
			locked, err := r.repo.GetPaymentForUpdate(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			_, err = r.svc.Apply(ctx, tx, &locked, payments.Change{To: intent.Status, Source: "reconcile"})
			return err
		})
		if err != nil {
			if errors.Is(err, storage.ErrInvalidTransition) {
				continue
			}
			r.logger.Warn("stripe reconcile: apply failed", "err", err, "payment_id", p.ID, "stripe_payment_id", p.StripePaymentID)
			continue
		}
		applied++
	}
	if applied > 0 {
		r.logger.Info("stripe reconcile: payments settled", "count", applied)
	}
}
