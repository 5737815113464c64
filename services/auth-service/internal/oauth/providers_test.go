package oauth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"
)

func TestRegistryGet(t *testing.T) {
	reg := NewRegistry("https://app.example/auth/callback", map[string]Credentials{
		Google: {ClientID: "gid", ClientSecret: "gsecret"},
		GitHub: {ClientID: "only-id"},
	})

	if _, err := reg.Get("myspace"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	if _, err := reg.Get(GitHub); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	p, err := reg.Get(Google)
	if err != nil {
		t.Fatalf("Get(google): %v", err)
	}

	u, err := url.Parse(p.AuthCodeURL("state-1"))
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	q := u.Query()
	if q.Get("state") != "state-1" || q.Get("client_id") != "gid" {
		t.Fatalf("unexpected auth url query %v", q)
	}
	if q.Get("redirect_uri") != "https://app.example/auth/callback" {
		t.Fatalf("unexpected redirect_uri %q", q.Get("redirect_uri"))
	}
}

func TestAppleUsesFormPost(t *testing.T) {
	reg := NewRegistry("https://app.example/auth/callback", map[string]Credentials{
		Apple: {ClientID: "aid", ClientSecret: "asecret"},
	})
	p, err := reg.Get(Apple)
	if err != nil {
		t.Fatalf("Get(apple): %v", err)
	}
	u, _ := url.Parse(p.AuthCodeURL("s"))
	if u.Query().Get("response_mode") != "form_post" {
		t.Fatalf("expected form_post response mode, got %q", u.RawQuery)
	}
}

func TestParseGitHubUserFallsBackToLogin(t *testing.T) {
	acct, err := parseGitHubUser([]byte(`{"id":42,"login":"octo","name":"","email":null}`))
	if err != nil {
		t.Fatalf("parseGitHubUser: %v", err)
	}
	if acct.Subject != "42" || acct.Name != "octo" || acct.Email != "" {
		t.Fatalf("unexpected account %+v", acct)
	}
}

func TestPrimaryGitHubEmail(t *testing.T) {
	body := []byte(`[{"email":"a@x.io","primary":false,"verified":true},{"email":"b@x.io","primary":true,"verified":true}]`)
	got, err := primaryGitHubEmail(body)
	if err != nil || got != "b@x.io" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := primaryGitHubEmail([]byte(`[{"email":"c@x.io","primary":true,"verified":false}]`)); !errors.Is(err, ErrMissingEmail) {
		t.Fatalf("expected ErrMissingEmail, got %v", err)
	}
}

func TestAccountFromIDToken(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"001.abc","email":"p@privaterelay.appleid.com"}`))
	acct, err := accountFromIDToken("e30." + payload + ".sig")
	if err != nil {
		t.Fatalf("accountFromIDToken: %v", err)
	}
	if acct.Subject != "001.abc" || acct.Email != "p@privaterelay.appleid.com" {
		t.Fatalf("unexpected account %+v", acct)
	}
	for _, raw := range []string{"", "a.b", "a.!!!.c", "e30.e30.sig"} {
		if _, err := accountFromIDToken(raw); !errors.Is(err, ErrMalformedIDToken) {
			t.Errorf("%q: expected ErrMalformedIDToken, got %v", raw, err)
		}
	}
}

func TestExchangeGoogleAccount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "the-code" {
			http.Error(w, "bad code", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"sub":"g-1","email":"ann@example.com","name":"Ann Lee"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	reg := NewRegistry("", nil)
	p := Provider{
		Name: Google,
		Config: &oauth2.Config{
			ClientID:     "id",
			ClientSecret: "secret",
			Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
		},
		UserInfoURL: srv.URL + "/userinfo",
	}
	reg.Register(p)

	acct, err := reg.Exchange(context.Background(), p, "the-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if acct.Provider != Google || acct.Subject != "g-1" || acct.Email != "ann@example.com" || acct.Name != "Ann Lee" {
		t.Fatalf("unexpected account %+v", acct)
	}
}
