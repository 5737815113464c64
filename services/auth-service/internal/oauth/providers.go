// Package oauth configures the external sign-in providers and resolves the
// account behind an authorization code.
package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Supported provider names.
const (
	Google = "google"
	GitHub = "github"
	Apple  = "apple"
)

var (
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrNotConfigured    = errors.New("provider not configured")
	ErrMissingEmail     = errors.New("provider returned no email")
	ErrMalformedIDToken = errors.New("malformed id_token")
)

var appleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://appleid.apple.com/auth/authorize",
	TokenURL:  "https://appleid.apple.com/auth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Supported reports whether name is one of the providers the sign-in page
// offers, configured or not.
func Supported(name string) bool {
	switch name {
	case Google, GitHub, Apple:
		return true
	}
	return false
}

// Credentials are the client id and secret registered with a provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

func (c Credentials) configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Account is the identity a provider vouches for.
type Account struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

type Provider struct {
	Name        string
	Config      *oauth2.Config
	UserInfoURL string
	EmailsURL   string
	// FormPost providers answer the callback with a cross-site POST.
	FormPost bool
}

// AuthCodeURL returns the provider consent URL for state.
func (p Provider) AuthCodeURL(state string) string {
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	if p.FormPost {
		opts = append(opts, oauth2.SetAuthURLParam("response_mode", "form_post"))
	}
	return p.Config.AuthCodeURL(state, opts...)
}

// Registry holds the configured providers by name.
type Registry struct {
	providers map[string]Provider
	client    *http.Client
}

// NewRegistry builds the providers that have credentials. redirectURL is the
// absolute /auth/callback URL registered with every provider.
func NewRegistry(redirectURL string, creds map[string]Credentials) *Registry {
	reg := &Registry{
		providers: map[string]Provider{},
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	if c := creds[Google]; c.configured() {
		reg.providers[Google] = Provider{
			Name:        Google,
			Config:      newConfig(c, endpoints.Google, redirectURL, "openid", "email", "profile"),
			UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		}
	}
	if c := creds[GitHub]; c.configured() {
		reg.providers[GitHub] = Provider{
			Name:        GitHub,
			Config:      newConfig(c, endpoints.GitHub, redirectURL, "read:user", "user:email"),
			UserInfoURL: "https://api.github.com/user",
			EmailsURL:   "https://api.github.com/user/emails",
		}
	}
	if c := creds[Apple]; c.configured() {
		reg.providers[Apple] = Provider{
			Name:     Apple,
			Config:   newConfig(c, appleEndpoint, redirectURL, "name", "email"),
			FormPost: true,
		}
	}
	return reg
}

func newConfig(c Credentials, ep oauth2.Endpoint, redirectURL string, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     ep,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
	}
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name] = p
}

func (r *Registry) Get(name string) (Provider, error) {
	if !Supported(name) {
		if _, ok := r.providers[name]; !ok {
			return Provider{}, ErrUnknownProvider
		}
	}
	p, ok := r.providers[name]
	if !ok {
		return Provider{}, ErrNotConfigured
	}
	return p, nil
}

// Exchange trades code for a token and loads the account it belongs to.
func (r *Registry) Exchange(ctx context.Context, p Provider, code string) (Account, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	tok, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return Account{}, fmt.Errorf("exchange %s code: %w", p.Name, err)
	}

	var acct Account
	switch p.Name {
	case Apple:
		raw, _ := tok.Extra("id_token").(string)
		acct, err = accountFromIDToken(raw)
	case GitHub:
		acct, err = r.githubAccount(ctx, p, tok)
	default:
		var body []byte
		body, err = r.get(ctx, p, tok, p.UserInfoURL)
		if err == nil {
			acct, err = parseOIDCUserInfo(body)
		}
	}
	if err != nil {
		return Account{}, err
	}
	acct.Provider = p.Name
	if acct.Email == "" {
		return Account{}, ErrMissingEmail
	}
	return acct, nil
}

func (r *Registry) githubAccount(ctx context.Context, p Provider, tok *oauth2.Token) (Account, error) {
	body, err := r.get(ctx, p, tok, p.UserInfoURL)
	if err != nil {
		return Account{}, err
	}
	acct, err := parseGitHubUser(body)
	if err != nil || acct.Email != "" || p.EmailsURL == "" {
		return acct, err
	}
	body, err = r.get(ctx, p, tok, p.EmailsURL)
	if err != nil {
		return Account{}, err
	}
	acct.Email, err = primaryGitHubEmail(body)
	return acct, err
}

func (r *Registry) get(ctx context.Context, p Provider, tok *oauth2.Token, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.Config.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s userinfo: status %d", p.Name, resp.StatusCode)
	}
	return body, nil
}

func parseOIDCUserInfo(body []byte) (Account, error) {
	var info struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return Account{}, err
	}
	if info.Sub == "" {
		return Account{}, errors.New("userinfo without sub")
	}
	return Account{Subject: info.Sub, Email: info.Email, Name: info.Name}, nil
}

func parseGitHubUser(body []byte) (Account, error) {
	var info struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return Account{}, err
	}
	if info.ID == 0 {
		return Account{}, errors.New("github user without id")
	}
	name := info.Name
	if name == "" {
		name = info.Login
	}
	return Account{Subject: strconv.FormatInt(info.ID, 10), Email: info.Email, Name: name}, nil
}

func primaryGitHubEmail(body []byte) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.Unmarshal(body, &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", ErrMissingEmail
}

// accountFromIDToken reads the claims of an id_token received directly from
// the provider's token endpoint over TLS.
func accountFromIDToken(raw string) (Account, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Account{}, ErrMalformedIDToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Account{}, ErrMalformedIDToken
	}
	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Sub == "" {
		return Account{}, ErrMalformedIDToken
	}
	return Account{Subject: claims.Sub, Email: claims.Email}, nil
}
