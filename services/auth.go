package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"komugigallery.com/gallery/models"
	"komugigallery.com/gallery/store"
)

// TokenTTL bounds every issued token; there is no refresh or revocation.
const TokenTTL = 24 * time.Hour

var errInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)

// dummyHash is compared against when the username does not exist so both
// failure paths spend the same bcrypt time.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("komugi-gallery-dummy"), bcrypt.DefaultCost)

// AuthContext is the caller identity attached to a request.
type AuthContext struct {
	ID       string
	Username string
	IsAdmin  bool
}

// Claims is the signed token payload.
type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// CanDelete reports whether ac may delete p: admins always, otherwise only
// the recorded owner.
func CanDelete(p *models.Post, ac *AuthContext) bool {
	if p == nil || ac == nil {
		return false
	}
	if ac.IsAdmin {
		return true
	}
	return p.CreatedBy != "" && ac.ID != "" && p.CreatedBy == ac.ID
}

type authContextKey struct{}

func ContextWithAuth(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthFromContext returns the caller attached by the auth middleware, or nil.
func AuthFromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return ac
}

type AuthService struct {
	users         store.UserStore
	secret        []byte
	adminPassword string
	now           func() time.Time
}

func NewAuthService(users store.UserStore, secret []byte, adminPassword string) *AuthService {
	return &AuthService{
		users:         users,
		secret:        secret,
		adminPassword: adminPassword,
		now:           time.Now,
	}
}

// Login checks the credentials and issues a signed token. Unknown users and
// wrong passwords fail with the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", errInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("%w: find user: %v", ErrUpstream, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", errInvalidCredentials
	}

	return s.IssueToken(user)
}

func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		ID:       user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Authenticate verifies signature and expiry and returns the embedded identity.
func (s *AuthService) Authenticate(token string) (*AuthContext, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: token has no expiry", ErrUnauthorized)
	}

	return &AuthContext{ID: claims.ID, Username: claims.Username, IsAdmin: claims.IsAdmin}, nil
}

// CheckSharedPassword implements the shared-password delete strategy: a
// matching password grants an admin context.
func (s *AuthService) CheckSharedPassword(password string) (*AuthContext, error) {
	if s.adminPassword == "" {
		return nil, fmt.Errorf("%w: shared password is not configured", ErrForbidden)
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) != 1 {
		return nil, fmt.Errorf("%w: wrong password", ErrForbidden)
	}
	return &AuthContext{Username: "shared-password", IsAdmin: true}, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// BootstrapAdmin creates an admin account when username is unknown. With
// rotate set an existing account gets the new password and admin flag.
// It reports whether anything was written.
func (s *AuthService) BootstrapAdmin(ctx context.Context, username, password string, rotate bool) (bool, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return false, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	existing, err := s.users.FindByUsername(ctx, username)
	switch {
	case err == nil && !rotate:
		log.Printf("[auth] user %q already exists", username)
		return false, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return false, fmt.Errorf("%w: find user: %v", ErrUpstream, err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	user := &models.User{Username: username, PasswordHash: hash, IsAdmin: true}
	if existing != nil {
		user.ID = existing.ID
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return false, fmt.Errorf("%w: save user: %v", ErrUpstream, err)
	}
	return true, nil
}

// SetAdmin flips the admin flag of an existing account.
func (s *AuthService) SetAdmin(ctx context.Context, username string, isAdmin bool) error {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	if err != nil {
		return fmt.Errorf("%w: find user: %v", ErrUpstream, err)
	}
	user.IsAdmin = isAdmin
	if err := s.users.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("%w: save user: %v", ErrUpstream, err)
	}
	return nil
}
