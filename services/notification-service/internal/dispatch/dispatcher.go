// Package dispatch delivers the notifications built from consumed events.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/bookly-app/bookly/libs/kafkax"
	"github.com/bookly-app/bookly/services/notification-service/internal/email"
	"github.com/bookly-app/bookly/services/notification-service/internal/sms"
	"github.com/bookly-app/bookly/services/notification-service/internal/storage"
	"github.com/bookly-app/bookly/services/notification-service/internal/templates"
	"github.com/segmentio/kafka-go"
)

type Store interface {
	InsertAll(ctx context.Context, list []storage.Notification) error
	ContactFor(ctx context.Context, userID string) (storage.Contact, error)
}

type Dispatcher struct {
	store  Store
	email  email.Sender
	sms    sms.Sender
	logger *slog.Logger
}

func New(store Store, emailSender email.Sender, smsSender sms.Sender, logger *slog.Logger) *Dispatcher {
	if emailSender == nil {
		emailSender = email.NoopSender{}
	}
	if smsSender == nil {
		smsSender = sms.NewNoopSender()
	}
	return &Dispatcher{store: store, email: emailSender, sms: smsSender, logger: logger}
}

// Handle is the kafkax handler for every notification topic. In-app rows
// are written first; a failure there is returned so the event is retried.
// Email and SMS failures are logged and dropped.
func (d *Dispatcher) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	msgs, err := templates.Build(meta.EventType, msg.Value)
	if err != nil {
		d.logger.Error("invalid event payload", "err", err, "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}
	if len(msgs) == 0 {
		return nil
	}

	var rows []storage.Notification
	for _, m := range msgs {
		if m.InApp && m.UserID != "" {
			rows = append(rows, storage.Notification{
				UserID:        m.UserID,
				Title:         m.Title,
				Message:       m.Body,
				Type:          m.Type,
				ReferenceType: m.ReferenceType,
				ReferenceID:   m.ReferenceID,
			})
		}
	}
	if err := d.store.InsertAll(ctx, rows); err != nil {
		d.logger.Error("failed to persist notifications", "err", err, "event_id", meta.EventID)
		return err
	}

	for _, m := range msgs {
		d.deliver(ctx, meta, m)
	}
	d.logger.Info("event notified", "event_id", meta.EventID, "event_type", meta.EventType, "in_app", len(rows))
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, meta kafkax.EventMeta, m templates.Message) {
	if m.Email == nil && m.SMS == "" {
		return
	}
	var contact storage.Contact
	needEmail := m.Email != nil && strings.TrimSpace(m.Email.To) == ""
	if (needEmail || m.SMS != "") && m.UserID != "" {
		c, err := d.store.ContactFor(ctx, m.UserID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			d.logger.Warn("contact lookup failed", "err", err, "user_id", m.UserID)
		}
		contact = c
	}

	if m.Email != nil {
		to := strings.TrimSpace(m.Email.To)
		if to == "" {
			to = contact.Email
		}
		if to == "" {
			d.logger.Warn("no email recipient", "event_id", meta.EventID, "user_id", m.UserID)
		} else if err := d.email.Send(to, m.Email.Subject, m.Email.Body); err != nil {
			d.logger.Error("email send failed", "err", err, "event_id", meta.EventID, "user_id", m.UserID)
		}
	}
	if m.SMS != "" && contact.Phone != "" {
		if err := d.sms.Send(ctx, contact.Phone, m.SMS); err != nil {
			d.logger.Error("sms send failed", "err", err, "event_id", meta.EventID, "provider", d.sms.ProviderID())
		}
	}
}
