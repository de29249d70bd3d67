// Package auth registers users, checks credentials and issues the signed
// session tokens every other service trusts for identity and role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/store"
)

type Service struct {
	store  store.Store
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

func NewService(st store.Store, secret string, ttl time.Duration) *Service {
	return &Service{
		store:  st,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	return s.register(ctx, in, domain.RoleCustomer)
}

// EnsureAdmin creates an admin account unless one with the email exists.
func (s *Service) EnsureAdmin(ctx context.Context, in RegisterInput) (*domain.User, error) {
	u, err := s.register(ctx, in, domain.RoleAdmin)
	if errors.Is(err, domain.ErrConflict) {
		var existing *domain.User
		err = s.store.WithTx(ctx, func(tx store.Tx) error {
			var err error
			existing, err = tx.Users().GetByEmail(ctx, normalizeEmail(in.Email))
			return err
		})
		if err != nil {
			return nil, err
		}
		if existing.Role != domain.RoleAdmin {
			return nil, fmt.Errorf("%w: %s is not an admin", domain.ErrConflict, existing.Email)
		}
		return existing, nil
	}
	return u, err
}

func (s *Service) register(ctx context.Context, in RegisterInput, role domain.Role) (*domain.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := domain.Validate(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now(),
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().Insert(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Login returns a session token. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	var user *domain.User
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.Users().GetByEmail(ctx, normalizeEmail(email))
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil, domain.ErrUnauthorized
	}
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, domain.ErrUnauthorized
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}

type claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

func (s *Service) IssueToken(u *domain.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) ParseToken(raw string) (domain.Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	if c.Subject == "" || (c.Role != domain.RoleCustomer && c.Role != domain.RoleAdmin) {
		return domain.Session{}, fmt.Errorf("%w: malformed claims", domain.ErrUnauthorized)
	}

	return domain.Session{UserID: c.Subject, Role: c.Role}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
