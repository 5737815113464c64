package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/bookly-app/bookly/libs/db"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/libs/status"
	"github.com/robfig/cron/v3"
)

// Actor recorded on status changes made by the scheduler.
const Actor = "scheduler"

type Worker struct {
	pool         *db.Pool
	repo         *Repository
	outbox       *outbox.Repository
	logger       *slog.Logger
	location     *time.Location
	now          func() time.Time
	pendingTTL   time.Duration
	reminderLead time.Duration
	batchSize    int
}

type WorkerConfig struct {
	PendingTTL   time.Duration
	ReminderLead time.Duration
	BatchSize    int
	Location     *time.Location
}

func NewWorker(pool *db.Pool, repo *Repository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 30 * time.Minute
	}
	if cfg.ReminderLead <= 0 {
		cfg.ReminderLead = 24 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Worker{
		pool:         pool,
		repo:         repo,
		outbox:       outboxRepo,
		logger:       logger,
		location:     cfg.Location,
		now:          time.Now,
		pendingTTL:   cfg.PendingTTL,
		reminderLead: cfg.ReminderLead,
		batchSize:    cfg.BatchSize,
	}
}

// Schedule registers the expiry and reminder jobs on c.
func (w *Worker) Schedule(ctx context.Context, c *cron.Cron, expirySpec, reminderSpec string) error {
	if _, err := c.AddFunc(expirySpec, func() { w.run(ctx, "expire_pending", w.ExpirePending) }); err != nil {
		return err
	}
	if _, err := c.AddFunc(reminderSpec, func() { w.run(ctx, "send_reminders", w.SendReminders) }); err != nil {
		return err
	}
	return nil
}

func (w *Worker) run(ctx context.Context, job string, fn func(context.Context) (int, error)) {
	if ctx.Err() != nil {
		return
	}
	n, err := fn(ctx)
	if err != nil {
		w.logger.Error("scheduler job failed", "job", job, "err", err)
		return
	}
	if n > 0 {
		w.logger.Info("scheduler job done", "job", job, "count", n)
	}
}

// ExpirePending cancels unpaid pending reservations whose start lies more
// than the pending TTL in the past.
func (w *Worker) ExpirePending(ctx context.Context) (int, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cutoff := expiryCutoff(w.now(), w.location, w.pendingTTL)
	candidates, err := w.repo.ExpiredPending(ctx, tx, cutoff, w.batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, res := range candidates {
		ok, err := w.repo.Cancel(ctx, tx, res.ID)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		if err := w.repo.ReleaseSlot(ctx, tx, res.SlotID); err != nil {
			return 0, err
		}
		evt, err := outbox.NewEvent("reservation", res.ID, outbox.ReservationStatusChanged, expiredPayload(res))
		if err != nil {
			return 0, err
		}
		if err := w.outbox.Insert(ctx, tx, evt); err != nil {
			return 0, err
		}
		expired++
	}
	return expired, tx.Commit(ctx)
}

// SendReminders emits a reminder for confirmed reservations starting within
// the reminder lead and stamps them so each is reminded once.
func (w *Worker) SendReminders(ctx context.Context) (int, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	from, until := reminderWindow(w.now(), w.location, w.reminderLead)
	due, err := w.repo.DueReminders(ctx, tx, from, until, w.batchSize)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(due))
	for _, res := range due {
		evt, err := outbox.NewEvent("reservation", res.ID, outbox.ReminderDue, reminderPayload(res))
		if err != nil {
			return 0, err
		}
		if err := w.outbox.Insert(ctx, tx, evt); err != nil {
			return 0, err
		}
		ids = append(ids, res.ID)
	}
	if err := w.repo.MarkReminded(ctx, tx, ids); err != nil {
		return 0, err
	}
	return len(ids), tx.Commit(ctx)
}

// expiryCutoff is the wall clock instant in loc before which a pending
// reservation counts as expired.
func expiryCutoff(now time.Time, loc *time.Location, ttl time.Duration) time.Time {
	return now.In(loc).Add(-ttl)
}

func reminderWindow(now time.Time, loc *time.Location, lead time.Duration) (time.Time, time.Time) {
	from := now.In(loc)
	return from, from.Add(lead)
}

func expiredPayload(res Reservation) map[string]any {
	return map[string]any{
		"reservation_id":    res.ID,
		"booking_reference": res.BookingReference,
		"business_id":       res.BusinessID,
		"owner_id":          res.OwnerID,
		"user_id":           res.UserID,
		"service_name":      res.ServiceName,
		"date":              res.Date,
		"time":              res.Time,
		"from":              string(status.Pending),
		"to":                string(status.Cancelled),
		"actor":             Actor,
	}
}

func reminderPayload(res Reservation) map[string]any {
	return map[string]any{
		"reservation_id":    res.ID,
		"booking_reference": res.BookingReference,
		"business_id":       res.BusinessID,
		"business_name":     res.BusinessName,
		"user_id":           res.UserID,
		"customer_email":    res.CustomerEmail,
		"service_name":      res.ServiceName,
		"date":              res.Date,
		"time":              res.Time,
	}
}
