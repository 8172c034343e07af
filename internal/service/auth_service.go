package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"guild-overlay/internal/metrics"
	"guild-overlay/internal/model"
	"guild-overlay/internal/policy"
)

// IdentityExchanger is the identity provider side of login.
type IdentityExchanger interface {
	LoginURL(state string) string
	Exchange(ctx context.Context, code string) (model.Identity, error)
}

type AuthService struct {
	idp              IdentityExchanger
	permissions      policy.Table
	tokens           *TokenService
	states           *StateSigner
	metrics          metrics.Recorder
	alertLeadMinutes int
}

func NewAuthService(idp IdentityExchanger, permissions policy.Table, tokens *TokenService, states *StateSigner, recorder metrics.Recorder, alertLeadMinutes int) *AuthService {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &AuthService{
		idp:              idp,
		permissions:      permissions,
		tokens:           tokens,
		states:           states,
		metrics:          recorder,
		alertLeadMinutes: alertLeadMinutes,
	}
}

// LoginURL returns the provider consent page carrying a fresh signed state.
func (s *AuthService) LoginURL() (string, error) {
	state, err := s.states.Issue()
	if err != nil {
		return "", err
	}
	return s.idp.LoginURL(state), nil
}

// Callback completes a login. A state is verified when present; overlay
// clients that drive the exchange themselves may omit it.
func (s *AuthService) Callback(ctx context.Context, code string, state string) (model.Credential, error) {
	if state != "" {
		if err := s.states.Verify(state); err != nil {
			s.metrics.RecordLogin(metrics.LoginBadState)
			return model.Credential{}, err
		}
	}

	identity, err := s.idp.Exchange(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotAMember):
			s.metrics.RecordLogin(metrics.LoginNotAMember)
		case errors.Is(err, model.ErrUpstreamAuth):
			s.metrics.RecordLogin(metrics.LoginUpstreamFail)
		default:
			s.metrics.RecordLogin(metrics.LoginError)
		}
		slog.Warn("login rejected", "error", err)
		return model.Credential{}, err
	}

	granted := s.permissions.Derive(identity.RoleIDs())
	credential, err := s.tokens.Issue(identity, granted.Strings())
	if err != nil {
		s.metrics.RecordLogin(metrics.LoginError)
		return model.Credential{}, fmt.Errorf("issue credential: %w", err)
	}

	s.metrics.RecordLogin(metrics.LoginSucceeded)
	slog.Info("login succeeded",
		"user_id", identity.UserID,
		"guilds", identity.GuildIDs,
		"can_create_events", granted.Has(policy.PermissionCreateEvents),
	)
	return credential, nil
}

// Me projects the authenticated caller.
func (s *AuthService) Me(principal *model.Principal) model.UserInfo {
	return model.UserInfo{
		ID:               principal.UserID,
		Username:         principal.DisplayName,
		Permissions:      principal.Permissions,
		GuildIDs:         principal.GuildIDs,
		GuildRoles:       principal.GuildRoles,
		CanCreateEvents:  principal.HasPermission(string(policy.PermissionCreateEvents)),
		AlertLeadMinutes: s.alertLeadMinutes,
	}
}

// Logout revokes the caller's credential when a denylist is configured.
func (s *AuthService) Logout(ctx context.Context, principal *model.Principal) (bool, error) {
	revoked, err := s.tokens.Revoke(ctx, principal)
	if err != nil {
		return false, err
	}
	if revoked {
		slog.Info("credential revoked", "user_id", principal.UserID)
	}
	return revoked, nil
}
