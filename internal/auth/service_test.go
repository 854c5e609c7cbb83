package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atelierhub/backend/internal/models"
)

type memAccounts struct {
	byEmail map[string]*models.Account
	hashes  map[string]string
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byEmail: map[string]*models.Account{}, hashes: map[string]string{}}
}

func (m *memAccounts) Create(_ context.Context, email, passwordHash, displayName, role string) (*models.Account, error) {
	if _, exists := m.byEmail[email]; exists {
		// The real store surfaces the unique violation as *pgconn.PgError;
		// service tests that need that path seed the account up front and
		// assert on Login instead.
		return nil, errors.New("duplicate email")
	}
	acc := &models.Account{ID: uuid.New(), Email: email, DisplayName: displayName, Role: role}
	m.byEmail[email] = acc
	m.hashes[email] = passwordHash
	return acc, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*models.Account, string, error) {
	acc, ok := m.byEmail[email]
	if !ok {
		return nil, "", nil
	}
	return acc, m.hashes[email], nil
}

func TestRegisterHashesPassword(t *testing.T) {
	store := newMemAccounts()
	svc := NewService(store, "test-secret")

	acc, err := svc.Register(context.Background(), "mika@example.com", "hunter22", "Mika", models.RoleCreator)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acc.Role != models.RoleCreator {
		t.Fatalf("role = %s", acc.Role)
	}
	hash := store.hashes["mika@example.com"]
	if hash == "hunter22" {
		t.Fatal("password must not be stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter22")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	svc := NewService(newMemAccounts(), "test-secret")
	for _, role := range []string{models.RoleAdmin, "superuser", ""} {
		if _, err := svc.Register(context.Background(), "x@example.com", "pw", "X", role); err == nil {
			t.Fatalf("role %q must be rejected at registration", role)
		}
	}
}

func TestLoginAndValidateToken(t *testing.T) {
	store := newMemAccounts()
	svc := NewService(store, "test-secret")
	acc, err := svc.Register(context.Background(), "mika@example.com", "hunter22", "Mika", models.RoleCreator)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := svc.Login(context.Background(), "mika@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, role, err := svc.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if id != acc.ID || role != models.RoleCreator {
		t.Fatalf("claims = (%s, %s), want (%s, creator)", id, role, acc.ID)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	store := newMemAccounts()
	svc := NewService(store, "test-secret")
	if _, err := svc.Register(context.Background(), "mika@example.com", "hunter22", "Mika", models.RoleCustomer); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, errWrongPw := svc.Login(context.Background(), "mika@example.com", "wrong")
	_, errNoUser := svc.Login(context.Background(), "ghost@example.com", "whatever")
	for _, err := range []error{errWrongPw, errNoUser} {
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("err = %v, want ErrInvalidCredentials", err)
		}
	}
}

func TestValidateTokenRejectsForgedSecret(t *testing.T) {
	store := newMemAccounts()
	issuer := NewService(store, "secret-a")
	verifier := NewService(store, "secret-b")
	if _, err := issuer.Register(context.Background(), "mika@example.com", "pw", "Mika", models.RoleCreator); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := issuer.Login(context.Background(), "mika@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, _, err := verifier.ValidateToken(context.Background(), token); err == nil {
		t.Fatal("token signed with a different secret must fail validation")
	}
}
