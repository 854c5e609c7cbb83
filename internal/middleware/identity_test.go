package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/atelierhub/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type stubTokens struct {
	accountID uuid.UUID
	role      string
	err       error
}

func (s *stubTokens) ValidateToken(_ context.Context, _ string) (uuid.UUID, string, error) {
	return s.accountID, s.role, s.err
}

type stubGuests struct {
	transactionID uuid.UUID
	err           error
}

func (s *stubGuests) Validate(_ context.Context, _ string) (uuid.UUID, error) {
	return s.transactionID, s.err
}

type stubAccounts struct {
	acc *models.Account
}

func (s *stubAccounts) GetByID(_ context.Context, _ uuid.UUID) (*models.Account, error) {
	if s.acc == nil {
		return nil, errors.New("not found")
	}
	return s.acc, nil
}

// echoHandler records the caller the middleware resolved.
func echoHandler(got *models.Caller, found *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := CallerFromCtx(r.Context())
		*got, *found = c, ok
		w.WriteHeader(http.StatusOK)
	})
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestIdentityMemberToken(t *testing.T) {
	accountID := uuid.New()
	mw := Identity(
		&stubTokens{accountID: accountID, role: models.RoleCreator},
		&stubGuests{},
		&stubAccounts{acc: &models.Account{ID: accountID, DisplayName: "Mika"}},
	)

	var got models.Caller
	var found bool
	req := httptest.NewRequest(http.MethodGet, "/v1/transactions/X", nil)
	req.Header.Set("Authorization", "Bearer some.jwt.token")
	rec := httptest.NewRecorder()
	mw(echoHandler(&got, &found)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !found {
		t.Fatalf("status = %d, found = %v", rec.Code, found)
	}
	if got.AccountID != accountID || got.Role != models.RoleCreator || got.DisplayName != "Mika" {
		t.Fatalf("caller = %+v", got)
	}
	if got.IsGuest() {
		t.Fatal("member caller must not be a guest")
	}
}

func TestIdentityInvalidTokenRejected(t *testing.T) {
	mw := Identity(&stubTokens{err: errors.New("expired")}, &stubGuests{}, &stubAccounts{})

	var got models.Caller
	var found bool
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec := httptest.NewRecorder()
	mw(echoHandler(&got, &found)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if found {
		t.Fatal("handler must not run on invalid token")
	}
}

func TestIdentityGuestTokenHeaderAndQuery(t *testing.T) {
	trID := uuid.New()
	mw := Identity(&stubTokens{}, &stubGuests{transactionID: trID}, &stubAccounts{})

	for _, attach := range []func(*http.Request){
		func(r *http.Request) { r.Header.Set("X-Guest-Token", "tok") },
		func(r *http.Request) { r.URL.RawQuery = "token=tok" },
	} {
		var got models.Caller
		var found bool
		req := httptest.NewRequest(http.MethodGet, "/v1/transactions/X", nil)
		attach(req)
		rec := httptest.NewRecorder()
		mw(echoHandler(&got, &found)).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK || !found {
			t.Fatalf("status = %d, found = %v", rec.Code, found)
		}
		if !got.IsGuest() || got.GuestTransactionID != trID || got.Role != models.RoleCustomer {
			t.Fatalf("caller = %+v", got)
		}
	}
}

func TestIdentityInvalidGuestTokenRejected(t *testing.T) {
	mw := Identity(&stubTokens{}, &stubGuests{err: errors.New("invalid or expired guest token")}, &stubAccounts{})

	req := httptest.NewRequest(http.MethodGet, "/?token=guessed", nil)
	rec := httptest.NewRecorder()
	var got models.Caller
	var found bool
	mw(echoHandler(&got, &found)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized || found {
		t.Fatalf("status = %d, found = %v", rec.Code, found)
	}
}

func TestIdentityAnonymousPassesThrough(t *testing.T) {
	mw := Identity(&stubTokens{}, &stubGuests{}, &stubAccounts{})

	var got models.Caller
	var found bool
	req := httptest.NewRequest(http.MethodGet, "/v1/services", nil)
	rec := httptest.NewRecorder()
	mw(echoHandler(&got, &found)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if found {
		t.Fatal("anonymous request must carry no caller")
	}
}

func TestRequireCaller(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	RequireCaller(inner).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithCaller(req.Context(), models.Caller{Role: models.RoleAdmin}))
	rec = httptest.NewRecorder()
	RequireCaller(inner).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated: status = %d, want 200", rec.Code)
	}
}
