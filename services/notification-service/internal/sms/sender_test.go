package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookSenderPostsMessage(t *testing.T) {
	var got map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "tok")
	if err := s.Send(context.Background(), "+15550100", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["to"] != "+15550100" || got["body"] != "hello" || auth != "Bearer tok" {
		t.Fatalf("unexpected request: %v %q", got, auth)
	}
}

func TestWebhookSenderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	if err := NewWebhookSender(srv.URL, "").Send(context.Background(), "x", "y"); err == nil {
		t.Fatalf("expected error")
	}
	if err := NewWebhookSender("", "").Send(context.Background(), "x", "y"); err == nil {
		t.Fatalf("expected error without url")
	}
}

func TestNew(t *testing.T) {
	if New("Webhook", "http://x", "").ProviderID() != "sms-webhook" {
		t.Fatalf("expected webhook sender")
	}
	if New("", "", "").ProviderID() != "sms-noop" {
		t.Fatalf("expected noop sender")
	}
}
