// Package templates turns domain events into in-app notifications and the
// emails that go with them.
package templates

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/libs/status"
)

// Notification types stored in notifications.type.
const (
	TypeBooking  = "booking"
	TypePayment  = "payment"
	TypeReminder = "reminder"
	TypeAccount  = "account"
)

// Email is an outgoing message. An empty To is resolved from UserID.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Message is one recipient's share of an event. InApp false means the
// message is email only.
type Message struct {
	UserID        string
	Title         string
	Body          string
	Type          string
	ReferenceType string
	ReferenceID   string
	InApp         bool
	Email         *Email
	// SMS is set for reminders; it goes to the profile phone when one exists.
	SMS string
}

type event struct {
	ReservationID    string `json:"reservation_id"`
	BookingReference string `json:"booking_reference"`
	BusinessID       string `json:"business_id"`
	BusinessName     string `json:"business_name"`
	OwnerID          string `json:"owner_id"`
	UserID           string `json:"user_id"`
	CustomerEmail    string `json:"customer_email"`
	ServiceName      string `json:"service_name"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	To               string `json:"to"`
	Actor            string `json:"actor"`
	PaymentID        string `json:"payment_id"`
	Amount           string `json:"amount"`
	TotalAmount      string `json:"total_amount"`
	Currency         string `json:"currency"`
	Email            string `json:"email"`
	FullName         string `json:"full_name"`
	Link             string `json:"link"`
	ExpiresAt        string `json:"expires_at"`
}

// Build returns the messages for one event. Unknown event types produce
// none. A malformed payload is an error.
func Build(eventType string, payload []byte) ([]Message, error) {
	var e event
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, err
	}
	switch eventType {
	case outbox.ReservationCreated:
		return reservationCreated(e), nil
	case outbox.ReservationStatusChanged:
		return statusChanged(e), nil
	case outbox.PaymentSucceeded:
		return paymentSucceeded(e), nil
	case outbox.PaymentRefunded:
		return paymentRefunded(e), nil
	case outbox.PasswordResetRequested:
		return passwordReset(e), nil
	case outbox.EmailVerificationSent:
		return emailVerification(e), nil
	case outbox.ReminderDue:
		return reminder(e), nil
	}
	return nil, nil
}

// When renders "2024-06-01" and "14:30" as "Sat, Jun 1 at 2:30 PM". Values
// that do not parse are joined as given.
func When(date, clock string) string {
	t, err := time.Parse("2006-01-02 15:04", date+" "+clock)
	if err != nil {
		return strings.TrimSpace(date + " " + clock)
	}
	return t.Format("Mon, Jan 2 at 3:04 PM")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func reservationMessage(e event, userID, title, body string) Message {
	return Message{
		UserID:        userID,
		Title:         title,
		Body:          body,
		Type:          TypeBooking,
		ReferenceType: "reservation",
		ReferenceID:   e.ReservationID,
		InApp:         true,
	}
}

func reservationCreated(e event) []Message {
	service := orDefault(e.ServiceName, "your appointment")
	business := orDefault(e.BusinessName, "the business")
	when := When(e.Date, e.Time)

	var out []Message
	if e.UserID != "" {
		m := reservationMessage(e, e.UserID, "Booking received",
			fmt.Sprintf("Your booking %s for %s at %s on %s is pending confirmation.", e.BookingReference, service, business, when))
		m.Email = &Email{
			To:      e.CustomerEmail,
			Subject: fmt.Sprintf("Booking %s received", e.BookingReference),
			Body: fmt.Sprintf("Thanks for booking with %s.\n\nReference: %s\nService: %s\nWhen: %s\nTotal: %s\n\nWe will let you know once it is confirmed.",
				business, e.BookingReference, service, when, e.TotalAmount),
		}
		out = append(out, m)
	}
	if e.OwnerID != "" && e.OwnerID != e.UserID {
		out = append(out, reservationMessage(e, e.OwnerID, "New booking",
			fmt.Sprintf("New booking %s for %s on %s.", e.BookingReference, service, when)))
	}
	return out
}

func statusChanged(e event) []Message {
	to := status.Reservation(e.To)
	when := When(e.Date, e.Time)
	ref := orDefault(e.BookingReference, "your booking")

	var out []Message
	if e.UserID != "" && e.Actor != "customer" {
		var title, body string
		switch to {
		case status.Confirmed:
			title, body = "Booking confirmed", fmt.Sprintf("Booking %s on %s is confirmed.", ref, when)
		case status.Cancelled:
			title, body = "Booking cancelled", fmt.Sprintf("Booking %s on %s was cancelled.", ref, when)
		case status.Completed:
			title, body = "Thanks for visiting", fmt.Sprintf("Booking %s is complete. We would love a review.", ref)
		case status.NoShow:
			title, body = "Missed appointment", fmt.Sprintf("Booking %s on %s was marked as a no-show.", ref, when)
		}
		if title != "" {
			m := reservationMessage(e, e.UserID, title, body)
			if to == status.Confirmed {
				m.Email = &Email{To: e.CustomerEmail, Subject: title + ": " + ref, Body: body}
			}
			out = append(out, m)
		}
	}
	if e.OwnerID != "" && e.Actor == "customer" && to == status.Cancelled {
		out = append(out, reservationMessage(e, e.OwnerID, "Booking cancelled by customer",
			fmt.Sprintf("The customer cancelled booking %s on %s.", ref, when)))
	}
	return out
}

func paymentMessage(e event, userID, title, body string) Message {
	return Message{
		UserID:        userID,
		Title:         title,
		Body:          body,
		Type:          TypePayment,
		ReferenceType: "payment",
		ReferenceID:   e.PaymentID,
		InApp:         true,
	}
}

func amount(e event) string {
	return strings.TrimSpace(e.Amount + " " + strings.ToUpper(e.Currency))
}

func paymentSucceeded(e event) []Message {
	var out []Message
	if e.UserID != "" {
		out = append(out, paymentMessage(e, e.UserID, "Payment received",
			fmt.Sprintf("We received your payment of %s.", amount(e))))
	}
	if e.OwnerID != "" && e.OwnerID != e.UserID {
		out = append(out, paymentMessage(e, e.OwnerID, "Payment received",
			fmt.Sprintf("A customer paid %s.", amount(e))))
	}
	return out
}

func paymentRefunded(e event) []Message {
	if e.UserID == "" {
		return nil
	}
	m := paymentMessage(e, e.UserID, "Refund issued", fmt.Sprintf("A refund of %s is on its way.", amount(e)))
	m.Email = &Email{Subject: "Your refund", Body: m.Body}
	return []Message{m}
}

func accountEmail(e event, subject, body string) []Message {
	if e.Email == "" && e.UserID == "" {
		return nil
	}
	return []Message{{
		UserID: e.UserID,
		Type:   TypeAccount,
		Email:  &Email{To: e.Email, Subject: subject, Body: body},
	}}
}

func passwordReset(e event) []Message {
	return accountEmail(e, "Reset your password",
		fmt.Sprintf("Someone asked to reset the password for your account.\n\nOpen this link to choose a new one:\n%s\n\nIf it was not you, ignore this email.", e.Link))
}

func emailVerification(e event) []Message {
	greeting := "Welcome"
	if name := strings.TrimSpace(e.FullName); name != "" {
		greeting = "Welcome, " + name
	}
	return accountEmail(e, "Confirm your email",
		fmt.Sprintf("%s!\n\nConfirm your email address by opening this link:\n%s", greeting, e.Link))
}

func reminder(e event) []Message {
	if e.UserID == "" {
		return nil
	}
	service := orDefault(e.ServiceName, "your appointment")
	business := orDefault(e.BusinessName, "the business")
	when := When(e.Date, e.Time)
	body := fmt.Sprintf("Reminder: %s at %s on %s (ref %s).", service, business, when, e.BookingReference)
	return []Message{{
		UserID:        e.UserID,
		Title:         "Upcoming appointment",
		Body:          body,
		Type:          TypeReminder,
		ReferenceType: "reservation",
		ReferenceID:   e.ReservationID,
		InApp:         true,
		Email:         &Email{To: e.CustomerEmail, Subject: "Appointment reminder", Body: body},
		SMS:           body,
	}}
}
