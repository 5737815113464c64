package outbox

import (
	"context"

	"github.com/bookly-app/bookly/libs/db"
)

// Inbox records consumed event ids in inbox_events. Each consumer group
// keeps its own rows, so two services can both process one event.
type Inbox struct {
	pool     *db.Pool
	consumer string
}

func NewInbox(pool *db.Pool, consumer string) *Inbox {
	return &Inbox{pool: pool, consumer: consumer}
}

func (i *Inbox) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := i.pool.Exec(ctx, `
		INSERT INTO inbox_events (consumer, event_id, event_type)
		VALUES ($1, $2, $3)
	`, i.consumer, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if db.IsUniqueViolation(err) {
		return false, nil
	}
	return false, err
}

func (i *Inbox) Forget(ctx context.Context, eventID string) error {
	_, err := i.pool.Exec(ctx, `
		DELETE FROM inbox_events WHERE consumer = $1 AND event_id = $2
	`, i.consumer, eventID)
	return err
}
