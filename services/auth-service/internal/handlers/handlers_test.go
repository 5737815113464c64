package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/bookly-app/bookly/libs/auth"
	"github.com/bookly-app/bookly/services/auth-service/internal/codes"
	"github.com/bookly-app/bookly/services/auth-service/internal/oauth"
)

func newTestHandler(cfg Config, providers *oauth.Registry) *AuthHandler {
	return NewAuthHandler(
		Deps{Providers: providers},
		auth.Sessions{Secret: "test-secret"},
		cfg,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func location(t *testing.T, rec *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d (%s)", rec.Code, rec.Body.String())
	}
	u, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	return u
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body["error"]
}

func TestPasswordHashing(t *testing.T) {
	password := "pass1234"
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if err := verifyPassword(hash, password); err != nil {
		t.Fatalf("verifyPassword should succeed: %v", err)
	}
	if err := verifyPassword(hash, "wrong-pass"); err == nil {
		t.Fatal("verifyPassword should fail for wrong password")
	}
}

func TestSignInMissingFields(t *testing.T) {
	h := newTestHandler(Config{}, nil)
	rec := httptest.NewRecorder()
	h.SignIn(rec, postForm("/auth/signin", url.Values{"email": {"a@b.co"}, "callbackUrl": {"/bookings"}}))

	u := location(t, rec)
	if u.Path != signInPage {
		t.Fatalf("unexpected path %q", u.Path)
	}
	if u.Query().Get("error") != codes.InvalidCredentials || u.Query().Get("callbackUrl") != "/bookings" {
		t.Fatalf("unexpected query %v", u.Query())
	}
}

func TestSignInRejectsUnsafeCallback(t *testing.T) {
	h := newTestHandler(Config{}, nil)
	rec := httptest.NewRecorder()
	h.SignIn(rec, postForm("/auth/signin", url.Values{"callbackUrl": {"//evil.example"}}))

	if got := location(t, rec).Query().Get("callbackUrl"); got != defaultSignInTarget {
		t.Fatalf("expected default callback, got %q", got)
	}
}

func TestSignUpFormChecks(t *testing.T) {
	valid := url.Values{
		"email":           {"ann@example.com"},
		"password":        {"longenough"},
		"confirmPassword": {"longenough"},
		"firstName":       {"Ann"},
		"lastName":        {"Lee"},
	}
	cases := []struct {
		name   string
		mutate func(url.Values)
		want   string
	}{
		{"missing last name", func(v url.Values) { v.Set("lastName", "  ") }, codes.MissingFields},
		{"mismatch", func(v url.Values) { v.Set("confirmPassword", "different1") }, codes.PasswordMismatch},
		{"short", func(v url.Values) { v.Set("password", "short"); v.Set("confirmPassword", "short") }, codes.PasswordComplexity},
		{"bad email", func(v url.Values) { v.Set("email", "not-an-email") }, codes.EmailCreateAccount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := url.Values{}
			for k, v := range valid {
				form[k] = append([]string(nil), v...)
			}
			tc.mutate(form)

			rec := httptest.NewRecorder()
			newTestHandler(Config{}, nil).SignUp(rec, postForm("/auth/signup", form))
			u := location(t, rec)
			if u.Path != signUpPage || u.Query().Get("error") != tc.want {
				t.Fatalf("unexpected redirect %s", u)
			}
			if u.Query().Get("callbackUrl") != defaultSignInTarget {
				t.Fatalf("expected default callback, got %q", u.Query().Get("callbackUrl"))
			}
		})
	}
}

func TestSignUpFormValid(t *testing.T) {
	f := signupForm{Email: "ann@example.com", Password: "longenough", ConfirmPassword: "longenough", FirstName: "Ann", LastName: "Lee"}
	if code := f.check(); code != "" {
		t.Fatalf("expected no error, got %s", code)
	}
	if f.fullName() != "Ann Lee" {
		t.Fatalf("unexpected full name %q", f.fullName())
	}
}

func TestSignOutWithoutSessionClearsCookie(t *testing.T) {
	h := newTestHandler(Config{}, nil)

	rec := httptest.NewRecorder()
	h.SignOut(rec, postForm("/auth/signout", url.Values{"callbackUrl": {"/goodbye"}}))
	if u := location(t, rec); u.Path != "/goodbye" {
		t.Fatalf("expected form callback, got %s", u)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != auth.SessionCookieName || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected cleared session cookie, got %+v", cookies)
	}

	rec = httptest.NewRecorder()
	h.SignOut(rec, httptest.NewRequest(http.MethodPost, "/auth/signout?callbackUrl=/later", nil))
	if u := location(t, rec); u.Path != "/later" {
		t.Fatalf("expected query callback, got %s", u)
	}

	rec = httptest.NewRecorder()
	h.SignOut(rec, httptest.NewRequest(http.MethodPost, "/auth/signout", nil))
	if u := location(t, rec); u.Path != "/" {
		t.Fatalf("expected root, got %s", u)
	}
}

func TestResetPasswordRequiresEmail(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(Config{}, nil).ResetPassword(rec, postForm("/auth/reset-password", url.Values{}))
	if rec.Code != http.StatusBadRequest || errorBody(t, rec) != "Email is required" {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestVerifyRedirects(t *testing.T) {
	h := newTestHandler(Config{}, nil)
	cases := []struct {
		target string
		path   string
		key    string
		value  string
	}{
		{"/auth/verify", signInPage, "error", codes.MissingToken},
		{"/auth/verify?type=recovery&token=abc", resetPasswordPage, "token", "abc"},
		{"/auth/verify?type=magiclink&token=abc", signInPage, "", ""},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.Verify(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))
		u := location(t, rec)
		if u.Path != tc.path {
			t.Errorf("%s: unexpected path %q", tc.target, u.Path)
		}
		if tc.key == "" && u.RawQuery != "" {
			t.Errorf("%s: expected no query, got %q", tc.target, u.RawQuery)
		}
		if tc.key != "" && u.Query().Get(tc.key) != tc.value {
			t.Errorf("%s: unexpected query %v", tc.target, u.Query())
		}
	}
}

func TestUpdatePasswordValidation(t *testing.T) {
	h := newTestHandler(Config{}, nil)
	cases := []struct {
		form url.Values
		code int
		msg  string
	}{
		{url.Values{}, http.StatusBadRequest, "Password is required"},
		{url.Values{"password": {"longenough"}, "confirmPassword": {"other"}}, http.StatusBadRequest, "Passwords do not match"},
		{url.Values{"password": {"short"}, "confirmPassword": {"short"}}, http.StatusBadRequest, "Password must be at least 8 characters"},
		{url.Values{"password": {"longenough"}, "confirmPassword": {"longenough"}}, http.StatusUnauthorized, "unauthorized"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.UpdatePassword(rec, postForm("/auth/update-password", tc.form))
		if rec.Code != tc.code || errorBody(t, rec) != tc.msg {
			t.Errorf("form %v: got %d %s", tc.form, rec.Code, rec.Body.String())
		}
	}
}

func TestProviderSignIn(t *testing.T) {
	reg := oauth.NewRegistry("https://app.example/auth/callback", map[string]oauth.Credentials{
		oauth.Google: {ClientID: "gid", ClientSecret: "gsecret"},
	})
	h := newTestHandler(Config{}, reg)

	signin := func(provider, query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/auth/signin/"+provider+query, nil)
		req.SetPathValue("provider", provider)
		rec := httptest.NewRecorder()
		h.ProviderSignIn(rec, req)
		return rec
	}

	if got := location(t, signin("myspace", "")).Query().Get("error"); got != codes.InvalidProvider {
		t.Fatalf("expected InvalidProvider, got %q", got)
	}
	if got := location(t, signin(oauth.GitHub, "")).Query().Get("error"); got != codes.OAuthError {
		t.Fatalf("expected OAuthError, got %q", got)
	}

	rec := signin(oauth.Google, "?callbackUrl=/bookings")
	u := location(t, rec)
	if u.Host != "accounts.google.com" {
		t.Fatalf("expected google consent redirect, got %s", u)
	}
	var stateCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookieName {
			stateCookie = c
		}
	}
	if stateCookie == nil {
		t.Fatal("expected state cookie")
	}
	st, ok := decodeState(stateCookie.Value)
	if !ok || st.Provider != oauth.Google || st.CallbackURL != "/bookings" || st.State != u.Query().Get("state") {
		t.Fatalf("unexpected state %+v ok=%v", st, ok)
	}
}

func TestCallbackRejectsMissingCodeAndBadState(t *testing.T) {
	h := newTestHandler(Config{}, nil)

	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback", nil))
	if u := location(t, rec); u.Path != "/" {
		t.Fatalf("expected root, got %s", u)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=c&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: oauthState{Provider: "google", State: "real", CallbackURL: "/x"}.encode()})
	rec = httptest.NewRecorder()
	h.Callback(rec, req)
	u := location(t, rec)
	if u.Path != signInPage || u.Query().Get("error") != codes.OAuthError {
		t.Fatalf("expected OAuthError, got %s", u)
	}

	rec = httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=c&state=real", nil))
	if got := location(t, rec).Query().Get("error"); got != codes.OAuthError {
		t.Fatalf("expected OAuthError without state cookie, got %q", got)
	}
}

func TestDecodeState(t *testing.T) {
	in := oauthState{Provider: "github", State: "s-1", CallbackURL: "/a?b=c|d"}
	out, ok := decodeState(in.encode())
	if !ok || out != in {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	for _, raw := range []string{"", "github|", "|s|/", "github|s"} {
		if _, ok := decodeState(raw); ok {
			t.Errorf("expected %q to be rejected", raw)
		}
	}
}

func TestSessionRequiresCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(Config{}, nil).Session(rec, httptest.NewRequest(http.MethodGet, "/auth/session", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMessages(t *testing.T) {
	h := newTestHandler(Config{}, nil)

	rec := httptest.NewRecorder()
	h.Messages(rec, httptest.NewRequest(http.MethodGet, "/auth/messages?error=Nope", nil))
	var one messageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &one); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if one.Code != "Nope" || one.Message != codes.DefaultError {
		t.Fatalf("unexpected lookup %+v", one)
	}

	rec = httptest.NewRecorder()
	h.Messages(rec, httptest.NewRequest(http.MethodGet, "/auth/messages", nil))
	var all struct {
		Errors    map[string]string `json:"errors"`
		Successes map[string]string `json:"successes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if all.Errors[codes.OAuthError] == "" || all.Successes[codes.PasswordReset] == "" {
		t.Fatalf("unexpected tables %+v", all)
	}
}

func TestAuditDisabledWithoutKey(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(Config{}, nil).Audit(rec, httptest.NewRequest(http.MethodGet, "/auth/audit", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRedirectsUseBaseURL(t *testing.T) {
	h := newTestHandler(Config{BaseURL: "https://app.example"}, nil)
	rec := httptest.NewRecorder()
	h.SignIn(rec, postForm("/auth/signin", url.Values{}))
	u := location(t, rec)
	if u.Scheme != "https" || u.Host != "app.example" || u.Path != signInPage {
		t.Fatalf("unexpected absolute redirect %s", u)
	}
}
