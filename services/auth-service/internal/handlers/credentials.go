package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/services/auth-service/internal/audit"
	"github.com/bookly-app/bookly/services/auth-service/internal/codes"
	"github.com/bookly-app/bookly/services/auth-service/internal/redirect"
	"github.com/bookly-app/bookly/services/auth-service/internal/storage"
	"github.com/bookly-app/bookly/services/auth-service/internal/tokens"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var errCreateAccount = errors.New("create account")

// signupForm is the parsed sign-up post.
type signupForm struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
}

func (f signupForm) fullName() string {
	return strings.TrimSpace(f.FirstName + " " + f.LastName)
}

// check returns the redirect code for an unacceptable form, or "".
func (f signupForm) check() string {
	if f.Email == "" || f.Password == "" || f.ConfirmPassword == "" || f.FirstName == "" || f.LastName == "" {
		return codes.MissingFields
	}
	if f.Password != f.ConfirmPassword {
		return codes.PasswordMismatch
	}
	if len(f.Password) < minPasswordLength {
		return codes.PasswordComplexity
	}
	if err := validate.Var(f.Email, "email"); err != nil {
		return codes.EmailCreateAccount
	}
	return ""
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	callbackURL := redirect.SafeCallback(r.PostFormValue("callbackUrl"), defaultSignInTarget)
	email := storage.NormalizeEmail(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		h.fail(w, r, signInPage, codes.InvalidCredentials, callbackURL)
		return
	}

	ctx := r.Context()
	user, err := h.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.recordAudit(ctx, audit.SignInFailed, "", map[string]any{"email": email, "reason": "unknown_email"})
			h.fail(w, r, signInPage, codes.CredentialsSignin, callbackURL)
			return
		}
		h.logger.Error("signin user lookup failed", "err", err)
		h.fail(w, r, signInPage, codes.UnexpectedError, callbackURL)
		return
	}
	if !user.HasPassword() || verifyPassword(user.PasswordHash, password) != nil {
		h.recordAudit(ctx, audit.SignInFailed, user.ID, map[string]any{"reason": "bad_password"})
		h.fail(w, r, signInPage, codes.CredentialsSignin, callbackURL)
		return
	}
	if h.cfg.RequireEmailVerification && !user.EmailVerified() {
		h.links.SeeOther(w, r, verifyEmailPage, "email", user.Email)
		return
	}

	var token string
	var expires time.Time
	err = h.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		token, expires, err = h.openSession(ctx, tx, r, user, passwordProvider)
		if err != nil {
			return err
		}
		return h.audit.RecordTx(ctx, tx, h.outbox, audit.SignIn, user.ID, map[string]any{"provider": passwordProvider})
	})
	if err != nil {
		h.logger.Error("signin session failed", "err", err)
		h.fail(w, r, signInPage, codes.UnexpectedError, callbackURL)
		return
	}
	h.cookies.SetCookie(w, token, expires)
	h.links.SeeOther(w, r, callbackURL)
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	callbackURL := redirect.SafeCallback(r.PostFormValue("callbackUrl"), defaultSignInTarget)
	form := signupForm{
		Email:           storage.NormalizeEmail(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
		FirstName:       formValue(r, "firstName"),
		LastName:        formValue(r, "lastName"),
	}
	if code := form.check(); code != "" {
		h.fail(w, r, signUpPage, code, callbackURL)
		return
	}

	hash, err := hashPassword(form.Password)
	if err != nil {
		h.logger.Error("password hash failed", "err", err)
		h.fail(w, r, signUpPage, codes.UnexpectedError, callbackURL)
		return
	}

	ctx := r.Context()
	user := storage.User{Email: form.Email, PasswordHash: hash}
	var token string
	var expires time.Time
	err = h.pool.InTx(ctx, func(tx pgx.Tx) error {
		if err := h.users.CreateTx(ctx, tx, &user, form.fullName()); err != nil {
			if !errors.Is(err, storage.ErrEmailTaken) {
				h.logger.Error("create user failed", "err", err)
			}
			return errCreateAccount
		}
		if err := h.insertEvent(ctx, tx, user.ID, outbox.UserCreated, map[string]any{
			"user_id":   user.ID,
			"email":     user.Email,
			"full_name": form.fullName(),
			"provider":  passwordProvider,
		}); err != nil {
			return err
		}
		if err := h.audit.RecordTx(ctx, tx, h.outbox, audit.SignUp, user.ID, map[string]any{"provider": passwordProvider}); err != nil {
			return err
		}
		if h.cfg.RequireEmailVerification {
			return h.requestVerification(ctx, tx, user, form.fullName())
		}
		var err error
		token, expires, err = h.openSession(ctx, tx, r, user, passwordProvider)
		return err
	})
	switch {
	case errors.Is(err, errCreateAccount):
		h.fail(w, r, signUpPage, codes.EmailCreateAccount, callbackURL)
		return
	case err != nil:
		h.logger.Error("signup failed", "err", err)
		h.fail(w, r, signUpPage, codes.UnexpectedError, callbackURL)
		return
	}

	if h.cfg.RequireEmailVerification {
		h.links.SeeOther(w, r, verifyEmailPage, "email", user.Email)
		return
	}
	h.cookies.SetCookie(w, token, expires)
	h.links.SeeOther(w, r, callbackURL)
}

// requestVerification stores a verification token and queues the email
// carrying its link.
func (h *AuthHandler) requestVerification(ctx context.Context, tx pgx.Tx, user storage.User, fullName string) error {
	raw, err := h.tokens.Issue(ctx, tx, user.ID, tokens.EmailVerification, h.cfg.VerificationTokenTTL)
	if err != nil {
		return err
	}
	return h.insertEvent(ctx, tx, user.ID, outbox.EmailVerificationSent, map[string]any{
		"user_id":    user.ID,
		"email":      user.Email,
		"full_name":  fullName,
		"link":       h.link(verifyRoute, "token", raw, "type", string(tokens.EmailVerification)),
		"expires_at": h.now().Add(h.cfg.VerificationTokenTTL).UTC().Format(time.RFC3339),
	})
}

// SignOut revokes the current session. The cookie is cleared even when the
// revoke fails.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	var raw string
	if strings.Contains(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		_ = r.ParseForm()
		raw = r.PostFormValue("callbackUrl")
	} else {
		raw = r.URL.Query().Get("callbackUrl")
	}
	callbackURL := redirect.SafeCallback(raw, defaultSignOutTarget)

	claims, err := h.cookies.FromRequest(r)
	h.cookies.ClearCookie(w)
	if err != nil {
		h.links.SeeOther(w, r, callbackURL)
		return
	}
	if err := h.sessions.Revoke(r.Context(), claims.SessionID); err != nil {
		h.logger.Error("session revoke failed", "session_id", claims.SessionID, "err", err)
		h.links.SeeOther(w, r, defaultSignOutTarget)
		return
	}
	h.recordAudit(r.Context(), audit.SignOut, claims.Sub, map[string]any{"session_id": claims.SessionID})
	h.links.SeeOther(w, r, callbackURL)
}
