package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"guild-overlay/internal/model"
)

// Denylist records credentials revoked before their natural expiry.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type TokenConfig struct {
	Secret          string
	Algorithm       string
	Issuer          string
	Lifetime        time.Duration
	AllowedGuildIDs []string
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

type accessClaims struct {
	Name        string              `json:"name"`
	Permissions []string            `json:"perms"`
	Guilds      []string            `json:"guilds"`
	Roles       map[string][]string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies the bearer credentials handed out after
// login. Verification needs nothing but the signing secret unless a denylist
// is configured.
type TokenService struct {
	secret   []byte
	method   jwt.SigningMethod
	issuer   string
	lifetime time.Duration
	allowed  map[string]struct{}
	denylist Denylist
	now      func() time.Time
}

func NewTokenService(cfg TokenConfig, denylist Denylist) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.Lifetime <= 0 {
		return nil, errors.New("token lifetime must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedGuildIDs))
	for _, id := range cfg.AllowedGuildIDs {
		allowed[id] = struct{}{}
	}

	return &TokenService{
		secret:   []byte(cfg.Secret),
		method:   method,
		issuer:   cfg.Issuer,
		lifetime: cfg.Lifetime,
		allowed:  allowed,
		denylist: denylist,
		now:      cfg.Now,
	}, nil
}

// Lifetime is how long an issued credential stays valid.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// RevocationEnabled reports whether logout can invalidate a credential early.
func (s *TokenService) RevocationEnabled() bool {
	return s.denylist != nil
}

// Issue signs a credential for identity carrying permissions. Expiry is
// always issued-at plus the configured lifetime.
func (s *TokenService) Issue(identity model.Identity, permissions []string) (model.Credential, error) {
	issuedAt := s.now().UTC().Truncate(time.Second)

	claims := accessClaims{
		Name:        identity.DisplayName(),
		Permissions: append([]string{}, permissions...),
		Guilds:      append([]string{}, identity.GuildIDs...),
		Roles:       identity.GuildRoles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.lifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return model.Credential{}, fmt.Errorf("sign credential: %w", err)
	}

	return model.Credential{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.lifetime / time.Second),
	}, nil
}

// Validate verifies tokenString and rebuilds the caller. Every failure is
// reported as model.ErrInvalidCredential, except a credential whose guilds
// have all left the allow-list, which is model.ErrNotAMember.
func (s *TokenService) Validate(ctx context.Context, tokenString string) (*model.Principal, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, model.ErrInvalidCredential
	}
	if claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, model.ErrInvalidCredential
	}

	guilds := make([]string, 0, len(claims.Guilds))
	for _, id := range claims.Guilds {
		if _, ok := s.allowed[id]; ok {
			guilds = append(guilds, id)
		}
	}
	if len(guilds) == 0 {
		return nil, model.ErrNotAMember
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			slog.Error("credential denylist lookup failed", "error", err)
			return nil, model.ErrInvalidCredential
		}
		if revoked {
			return nil, model.ErrInvalidCredential
		}
	}

	principal := &model.Principal{
		UserID:      claims.Subject,
		DisplayName: claims.Name,
		Permissions: claims.Permissions,
		GuildIDs:    guilds,
		GuildRoles:  claims.Roles,
		TokenID:     claims.ID,
		ExpiresAt:   claims.ExpiresAt.Unix(),
	}
	if claims.IssuedAt != nil {
		principal.IssuedAt = claims.IssuedAt.Unix()
	}
	if principal.Permissions == nil {
		principal.Permissions = []string{}
	}
	return principal, nil
}

// Revoke denylists the principal's credential until it would have expired.
// It returns false when no denylist is configured.
func (s *TokenService) Revoke(ctx context.Context, principal *model.Principal) (bool, error) {
	if s.denylist == nil || principal == nil || principal.TokenID == "" {
		return false, nil
	}

	until := time.Unix(principal.ExpiresAt, 0)
	if !until.After(s.now()) {
		return true, nil
	}
	if err := s.denylist.Revoke(ctx, principal.TokenID, until); err != nil {
		return false, fmt.Errorf("revoke credential: %w", err)
	}
	return true, nil
}
