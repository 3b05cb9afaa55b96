package service

import (
	"context"
	"errors"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/nexustrade/perpsim/internal/domain"
)

func newAuthService(users domain.UserStore, ttl time.Duration) *AuthService {
	return NewAuthService(users, "test-secret", ttl, discardLogger())
}

func TestRegisterAndLogin(t *testing.T) {
	users := newMemUserStore()
	svc := newAuthService(users, time.Hour)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Trader@Example.com", "hunter2hunter2", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "trader@example.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if user.PasswordHash == "hunter2hunter2" || user.PasswordHash == "" {
		t.Error("password stored without hashing")
	}
	if !user.Balance.IsZero() {
		t.Errorf("fresh balance = %s, want 0", user.Balance)
	}

	token, loggedIn, err := svc.Login(ctx, "trader@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Errorf("login returned user %s, want %s", loggedIn.ID, user.ID)
	}

	subject, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if subject != user.ID {
		t.Errorf("token subject = %q, want %q", subject, user.ID)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuthService(newMemUserStore(), time.Hour)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wallet   string
	}{
		{"empty email", "", "hunter2hunter2", ""},
		{"email without at", "trader.example.com", "hunter2hunter2", ""},
		{"short password", "trader@example.com", "short", ""},
		{"bad wallet", "trader@example.com", "hunter2hunter2", "not-hex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.email, tt.password, tt.wallet); !errors.Is(err, domain.ErrInvalidTrade) {
				t.Errorf("err = %v, want ErrInvalidTrade", err)
			}
		})
	}
}

func TestRegisterNormalizesWallet(t *testing.T) {
	svc := newAuthService(newMemUserStore(), time.Hour)

	raw := "0xab5801a7d398351b8be11c439e05c5b3259aec9b"
	user, err := svc.Register(context.Background(), "trader@example.com", "hunter2hunter2", raw)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if want := ethcommon.HexToAddress(raw).Hex(); user.Wallet != want {
		t.Errorf("wallet = %q, want checksummed %q", user.Wallet, want)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newAuthService(newMemUserStore(), time.Hour)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "trader@example.com", "hunter2hunter2", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(ctx, "trader@example.com", "different-pass", ""); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("duplicate register: err = %v, want ErrAlreadyExists", err)
	}
}

func TestLoginRejections(t *testing.T) {
	svc := newAuthService(newMemUserStore(), time.Hour)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "trader@example.com", "hunter2hunter2", ""); err != nil {
		t.Fatal(err)
	}

	// Unknown email and wrong password fail identically.
	if _, _, err := svc.Login(ctx, "nobody@example.com", "hunter2hunter2"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("unknown email: err = %v, want ErrUnauthorized", err)
	}
	if _, _, err := svc.Login(ctx, "trader@example.com", "wrong-password"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("wrong password: err = %v, want ErrUnauthorized", err)
	}
}

func TestVerifyTokenRejections(t *testing.T) {
	svc := newAuthService(newMemUserStore(), time.Hour)

	if _, err := svc.VerifyToken("not-a-jwt"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("malformed token: err = %v, want ErrUnauthorized", err)
	}

	// Token signed with a different secret.
	other := NewAuthService(newMemUserStore(), "other-secret", time.Hour, discardLogger())
	token, err := other.IssueToken("user-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.VerifyToken(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("foreign signature: err = %v, want ErrUnauthorized", err)
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	svc := newAuthService(newMemUserStore(), -time.Minute)

	token, err := svc.IssueToken("user-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.VerifyToken(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expired token: err = %v, want ErrUnauthorized", err)
	}
}
