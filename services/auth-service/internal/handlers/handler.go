package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bookly-app/bookly/libs/auth"
	"github.com/bookly-app/bookly/libs/db"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/services/auth-service/internal/audit"
	"github.com/bookly-app/bookly/services/auth-service/internal/oauth"
	"github.com/bookly-app/bookly/services/auth-service/internal/redirect"
	"github.com/bookly-app/bookly/services/auth-service/internal/sessions"
	"github.com/bookly-app/bookly/services/auth-service/internal/storage"
	"github.com/bookly-app/bookly/services/auth-service/internal/tokens"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Default callback targets.
const (
	defaultSignInTarget  = "/dashboard"
	defaultSignOutTarget = "/"
	defaultResetTarget   = "/auth/signin"
)

// Page paths the routes redirect to.
const (
	signInPage         = "/auth/signin"
	signUpPage         = "/auth/signup"
	verifyEmailPage    = "/auth/verify-email"
	forgotPasswordPage = "/auth/forgot-password"
	resetPasswordPage  = "/auth/reset-password"
	resetConfirmPage   = "/auth/reset-password/confirmation"
	verifyRoute        = "/auth/verify"
)

const (
	passwordProvider = "password"
	defaultResetTTL  = time.Hour
	defaultVerifyTTL = 24 * time.Hour
)

type Config struct {
	// BaseURL is the public application URL redirects and email links are
	// built on. Empty keeps redirects relative.
	BaseURL                  string
	RequireEmailVerification bool
	ResetTokenTTL            time.Duration
	VerificationTokenTTL     time.Duration
	// AdminKey guards the audit listing. Empty disables it.
	AdminKey string
}

// Deps are the stores and collaborators the handler writes through.
type Deps struct {
	Pool      *db.Pool
	Users     *storage.UserRepository
	Sessions  *sessions.Repository
	Tokens    *tokens.Repository
	Audit     *audit.Repository
	Outbox    *outbox.Repository
	Providers *oauth.Registry
}

type AuthHandler struct {
	pool      *db.Pool
	users     *storage.UserRepository
	sessions  *sessions.Repository
	tokens    *tokens.Repository
	audit     *audit.Repository
	outbox    *outbox.Repository
	providers *oauth.Registry
	cookies   auth.Sessions
	links     redirect.Builder
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

func NewAuthHandler(deps Deps, cookies auth.Sessions, cfg Config, logger *slog.Logger) *AuthHandler {
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = defaultResetTTL
	}
	if cfg.VerificationTokenTTL <= 0 {
		cfg.VerificationTokenTTL = defaultVerifyTTL
	}
	providers := deps.Providers
	if providers == nil {
		providers = oauth.NewRegistry("", nil)
	}
	return &AuthHandler{
		pool:      deps.Pool,
		users:     deps.Users,
		sessions:  deps.Sessions,
		tokens:    deps.Tokens,
		audit:     deps.Audit,
		outbox:    deps.Outbox,
		providers: providers,
		cookies:   cookies,
		links:     redirect.Builder{Base: cfg.BaseURL},
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// fail redirects back to page with an error code and the callback.
func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, page, code, callbackURL string) {
	h.links.SeeOther(w, r, page, "error", code, "callbackUrl", callbackURL)
}

// openSession inserts the session row in tx and returns the signed cookie
// token. The cookie is written by the caller after commit.
func (h *AuthHandler) openSession(ctx context.Context, tx pgx.Tx, r *http.Request, user storage.User, provider string) (string, time.Time, error) {
	s := sessions.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Provider:  provider,
		UserAgent: truncate(r.UserAgent(), 255),
	}
	token, exp, err := h.cookies.Issue(user.ID, user.Email, s.ID)
	if err != nil {
		return "", time.Time{}, err
	}
	s.ExpiresAt = exp
	if err := h.sessions.Create(ctx, tx, &s); err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// link builds an absolute link for emails.
func (h *AuthHandler) link(path string, pairs ...string) string {
	return h.links.URL(path, pairs...)
}

func (h *AuthHandler) insertEvent(ctx context.Context, tx pgx.Tx, aggregateID, eventType string, payload map[string]any) error {
	evt, err := outbox.NewEvent("user", aggregateID, eventType, payload)
	if err != nil {
		return err
	}
	return h.outbox.Insert(ctx, tx, evt)
}

// recordAudit writes a best-effort audit row outside the request tx.
func (h *AuthHandler) recordAudit(ctx context.Context, eventType, actorID string, metadata map[string]any) {
	if h.audit == nil {
		return
	}
	if err := h.audit.Record(ctx, eventType, actorID, metadata); err != nil {
		h.logger.Warn("audit record failed", "event_type", eventType, "err", err)
	}
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func hashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hash string, raw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
}
