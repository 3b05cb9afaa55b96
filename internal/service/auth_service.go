// Package service contains the application services that sit between the
// HTTP handlers and the engine, stores, and caches.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/nexustrade/perpsim/internal/domain"
)

const minPasswordLen = 8

// AuthService registers users, verifies credentials, and issues HS256 JWTs.
type AuthService struct {
	users  domain.UserStore
	secret []byte
	ttl    time.Duration
	logger *slog.Logger
}

// NewAuthService creates an AuthService signing tokens with the given
// secret.
func NewAuthService(users domain.UserStore, secret string, ttl time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger.With(slog.String("component", "auth_service")),
	}
}

// Register creates a new user with a bcrypt-hashed password. The wallet
// address is optional; when present it must be a valid hex address.
func (s *AuthService) Register(ctx context.Context, email, password, wallet string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, fmt.Errorf("auth_service: register: invalid email: %w", domain.ErrInvalidTrade)
	}
	if len(password) < minPasswordLen {
		return domain.User{}, fmt.Errorf("auth_service: register: password too short: %w", domain.ErrInvalidTrade)
	}
	if wallet != "" {
		if !ethcommon.IsHexAddress(wallet) {
			return domain.User{}, fmt.Errorf("auth_service: register: invalid wallet address: %w", domain.ErrInvalidTrade)
		}
		wallet = ethcommon.HexToAddress(wallet).Hex()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("auth_service: hash password: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Wallet:       wallet,
		Balance:      decimal.Zero,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("auth_service: create user: %w", err)
	}

	s.logger.InfoContext(ctx, "auth_service: user registered",
		slog.String("user_id", user.ID),
	)
	return user, nil
}

// Login verifies the credentials and returns a signed token. Unknown emails
// and wrong passwords both fail with ErrUnauthorized to avoid leaking which
// part was wrong.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.User{}, domain.ErrUnauthorized
		}
		return "", domain.User{}, fmt.Errorf("auth_service: login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", domain.User{}, domain.ErrUnauthorized
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return "", domain.User{}, err
	}

	s.logger.InfoContext(ctx, "auth_service: user logged in",
		slog.String("user_id", user.ID),
	)
	return token, user, nil
}

// IssueToken signs an HS256 token carrying the user id as subject.
func (s *AuthService) IssueToken(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth_service: sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a token, returning the user id it was
// issued for. Expired, malformed, or wrongly-signed tokens fail with
// ErrUnauthorized.
func (s *AuthService) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		},
	)
	if err != nil || !token.Valid {
		return "", domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", domain.ErrUnauthorized
	}
	return claims.Subject, nil
}
