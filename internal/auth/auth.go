// Package auth issues and validates the opaque bearer tokens the API is
// protected with, and owns account registration and login.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"school-quiz-service/internal/domain"
)

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// ErrNotAuthorized is the uniform outcome for missing, invalid or expired
// tokens.
var ErrNotAuthorized = errors.New("not authorized")

// Accounts is the account persistence the service needs.
type Accounts interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	TouchLastLogin(ctx context.Context, userID string) error
}

// Claims carry the authenticated identity and role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service signs HS256 tokens and verifies passwords with bcrypt.
type Service struct {
	accounts      Accounts
	hmac          []byte
	tokenTTL      time.Duration
	adminUsername string
	adminPassword string
	now           func() time.Time
}

// Config for the auth service. AdminUsername/AdminPassword gate the admin
// console; empty values disable admin login entirely.
type Config struct {
	Secret        string
	TokenTTL      time.Duration
	AdminUsername string
	AdminPassword string
}

func NewService(accounts Accounts, cfg Config) *Service {
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		accounts:      accounts,
		hmac:          []byte(cfg.Secret),
		tokenTTL:      ttl,
		adminUsername: cfg.AdminUsername,
		adminPassword: cfg.AdminPassword,
		now:           time.Now,
	}
}

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Grade    int    `json:"grade"`
	School   string `json:"school"`
}

func (r RegisterRequest) validate() error {
	if r.Username == "" || r.Password == "" || r.FullName == "" || r.School == "" {
		return domain.ErrMissingFields
	}
	if !domain.ValidGrade(r.Grade) {
		return fmt.Errorf("%w: grade must be %d-%d", domain.ErrMissingFields, domain.MinGrade, domain.MaxGrade)
	}
	return nil
}

// Register creates an account and returns it with a fresh token.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, string, error) {
	if err := req.validate(); err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := domain.NewUser(req.Username, req.FullName, req.Grade, req.School)
	user.PasswordHash = string(hash)

	created, err := s.accounts.CreateUser(ctx, user)
	if err != nil {
		return nil, "", err
	}
	token, err := s.IssueToken(created.ID, RoleStudent)
	if err != nil {
		return nil, "", err
	}
	return created, token, nil
}

// Login verifies credentials and returns the account with a fresh token.
func (s *Service) Login(ctx context.Context, username, password string) (*domain.User, string, error) {
	user, err := s.accounts.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, "", domain.ErrInvalidCredentials
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", domain.ErrInvalidCredentials
	}
	if err := s.accounts.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, "", err
	}
	token, err := s.IssueToken(user.ID, RoleStudent)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// AdminLogin checks the configured admin credentials and issues an admin
// token.
func (s *Service) AdminLogin(username, password string) (string, error) {
	if s.adminUsername == "" || s.adminPassword == "" {
		return "", domain.ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.adminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) == 1
	if !userOK || !passOK {
		return "", domain.ErrInvalidCredentials
	}
	return s.IssueToken("admin:"+s.adminUsername, RoleAdmin)
}

// IssueToken signs a bearer token for a subject and role.
func (s *Service) IssueToken(sub, role string) (string, error) {
	now := s.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "school-quiz-service",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.hmac)
}

// Parse validates a token and returns its claims.
func (s *Service) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.hmac, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrNotAuthorized
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrNotAuthorized
	}
	return claims, nil
}
