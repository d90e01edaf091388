package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"smartzone/internal/store"
	"smartzone/pkg/logx"
)

// Config configures token issuing.
type Config struct {
	Secret   string
	TokenTTL time.Duration // 0 means 24h
}

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Education string
	BirthDate string
}

// Claims is the token payload. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Service implements registration and sign in on top of the user store.
type Service struct {
	users  store.Users
	log    logx.Logger
	secret []byte
	ttl    time.Duration
}

func NewService(cfg Config, users store.Users, log logx.Logger) (*Service, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth secret is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{users: users, log: log, secret: []byte(cfg.Secret), ttl: ttl}, nil
}

// Register creates an account. The email must be unused and the password
// must satisfy the account policy.
func (s *Service) Register(ctx context.Context, in RegisterInput) (store.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return store.User{}, errors.New("email is required")
	}
	if err := ValidatePassword(in.Password); err != nil {
		return store.User{}, err
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("looking up email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, err
	}

	u := store.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Education:    in.Education,
		BirthDate:    in.BirthDate,
	}
	id, err := s.users.CreateUser(ctx, u)
	if err != nil {
		return store.User{}, fmt.Errorf("creating user: %w", err)
	}
	u.ID = id

	s.log.Info("user registered", logx.String("user", id))
	return u, nil
}

// Login checks the credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	return s.issueToken(u)
}

func (s *Service) issueToken(u store.User) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "smartzone",
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email: u.Email,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

// ParseToken verifies a token and returns the user id it names.
func (s *Service) ParseToken(raw string) (string, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid || claims.Subject == "" {
		return "", ErrNotAuthenticated
	}
	return claims.Subject, nil
}
