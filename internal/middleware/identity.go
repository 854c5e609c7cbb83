package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/atelierhub/backend/internal/guest"
	"github.com/atelierhub/backend/internal/models"
)

type contextKey string

const ctxCallerKey contextKey = "caller"

// TokenValidator validates a member JWT and returns account id and role.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error)
}

// GuestValidator resolves a guest access token to its bound transaction.
type GuestValidator interface {
	Validate(ctx context.Context, token string) (uuid.UUID, error)
}

// AccountLookup fills the caller's display name for member requests.
type AccountLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// Identity resolves the request's caller from either a Bearer JWT (members)
// or a guest access token ("token" query parameter or X-Guest-Token header)
// and stores it in request context. Requests carrying neither pass through
// unauthenticated; handlers that need an identity reject them. Requests
// carrying an invalid credential are rejected here.
func Identity(tokens TokenValidator, guests GuestValidator, accounts AccountLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := extractBearer(r); raw != "" {
				accountID, role, err := tokens.ValidateToken(r.Context(), raw)
				if err != nil {
					http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
					return
				}
				caller := models.Caller{Role: role, AccountID: accountID}
				if acc, err := accounts.GetByID(r.Context(), accountID); err == nil {
					caller.DisplayName = acc.DisplayName
				}
				next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
				return
			}

			if tok := extractGuestToken(r); tok != "" {
				trID, err := guests.Validate(r.Context(), tok)
				if err != nil {
					http.Error(w, `{"error":"invalid or expired access link"}`, http.StatusUnauthorized)
					return
				}
				caller := models.Caller{Role: models.RoleCustomer, GuestTransactionID: trID}
				next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CallerFromCtx returns the resolved caller, or false when the request was
// unauthenticated.
func CallerFromCtx(ctx context.Context) (models.Caller, bool) {
	c, ok := ctx.Value(ctxCallerKey).(models.Caller)
	return c, ok
}

// WithCaller returns a context carrying the given caller.
func WithCaller(ctx context.Context, c models.Caller) context.Context {
	return context.WithValue(ctx, ctxCallerKey, c)
}

// RequireCaller rejects unauthenticated requests before the handler runs.
func RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CallerFromCtx(r.Context()); !ok {
			http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func extractGuestToken(r *http.Request) string {
	if tok := r.Header.Get("X-Guest-Token"); tok != "" {
		return tok
	}
	return r.URL.Query().Get("token")
}

var _ GuestValidator = (*guest.Service)(nil)
