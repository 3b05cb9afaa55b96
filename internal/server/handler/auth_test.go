package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nexustrade/perpsim/internal/domain"
)

type stubAuthService struct {
	user  domain.User
	token string
	err   error
}

func (s stubAuthService) Register(ctx context.Context, email, password, wallet string) (domain.User, error) {
	return s.user, s.err
}

func (s stubAuthService) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	return s.token, s.user, s.err
}

func testUser() domain.User {
	return domain.User{
		ID:           "user-1",
		Email:        "trader@example.com",
		PasswordHash: "$2a$10$secret-hash",
		Wallet:       "0x2222222222222222222222222222222222222222",
		Balance:      decimal.NewFromInt(1000),
	}
}

func TestRegisterResponseOmitsPasswordHash(t *testing.T) {
	h := NewAuthHandler(stubAuthService{user: testUser()}, discardTestLogger())

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register",
		jsonBody(`{"email":"trader@example.com","password":"hunter2hunter2"}`)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "secret-hash") {
		t.Error("password hash leaked into the response")
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["balance"] != "1000" {
		t.Errorf("balance = %v, want \"1000\"", body["balance"])
	}
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	h := NewAuthHandler(stubAuthService{err: domain.ErrAlreadyExists}, discardTestLogger())

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register",
		jsonBody(`{"email":"trader@example.com","password":"hunter2hunter2"}`)))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestLoginReturnsToken(t *testing.T) {
	h := NewAuthHandler(stubAuthService{user: testUser(), token: "jwt-token"}, discardTestLogger())

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(`{"email":"trader@example.com","password":"hunter2hunter2"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rec.Code, rec.Body)
	}

	var body loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Token != "jwt-token" {
		t.Errorf("token = %q", body.Token)
	}
	if body.User.ID != "user-1" {
		t.Errorf("user id = %q", body.User.ID)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	h := NewAuthHandler(stubAuthService{err: domain.ErrUnauthorized}, discardTestLogger())

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(`{"email":"trader@example.com","password":"wrong"}`)))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid credentials") {
		t.Errorf("body %s does not report invalid credentials", rec.Body)
	}
}
