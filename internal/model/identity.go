package model

import "sort"

// Identity is the caller as reported by the identity provider at login. It is
// rebuilt on every login and never persisted.
type Identity struct {
	UserID        string              `json:"id"`
	Username      string              `json:"username"`
	Discriminator string              `json:"discriminator"`
	GlobalName    string              `json:"global_name,omitempty"`
	GuildIDs      []string            `json:"guild_ids"`
	GuildRoles    map[string][]string `json:"guild_roles"`
}

// DisplayName renders the name shown to other guild members.
func (i Identity) DisplayName() string {
	if i.Discriminator == "" || i.Discriminator == "0" {
		if i.GlobalName != "" {
			return i.GlobalName
		}
		return i.Username
	}
	return i.Username + "#" + i.Discriminator
}

// RoleIDs flattens the per-guild role lists into a sorted, de-duplicated slice.
func (i Identity) RoleIDs() []string {
	return flattenRoles(i.GuildRoles)
}

// Principal is the authenticated caller reconstructed from a validated
// credential.
type Principal struct {
	UserID      string              `json:"id"`
	DisplayName string              `json:"username"`
	Permissions []string            `json:"permissions"`
	GuildIDs    []string            `json:"guild_ids"`
	GuildRoles  map[string][]string `json:"guild_roles"`
	TokenID     string              `json:"-"`
	IssuedAt    int64               `json:"-"`
	ExpiresAt   int64               `json:"-"`
}

func (p *Principal) HasPermission(permission string) bool {
	if p == nil {
		return false
	}
	for _, granted := range p.Permissions {
		if granted == permission {
			return true
		}
	}
	return false
}

// PrimaryGuildID is the first allowed guild the caller belongs to.
func (p *Principal) PrimaryGuildID() string {
	if p == nil || len(p.GuildIDs) == 0 {
		return ""
	}
	return p.GuildIDs[0]
}

// RolesIn returns the caller's role ids for one guild.
func (p *Principal) RolesIn(guildID string) []string {
	if p == nil {
		return nil
	}
	return p.GuildRoles[guildID]
}

// Credential is the bearer token handed back to the client after login.
type Credential struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// UserInfo is the "who am I" projection.
type UserInfo struct {
	ID               string              `json:"id"`
	Username         string              `json:"username"`
	Permissions      []string            `json:"permissions"`
	GuildIDs         []string            `json:"guild_ids"`
	GuildRoles       map[string][]string `json:"guild_roles"`
	CanCreateEvents  bool                `json:"can_create_events"`
	AlertLeadMinutes int                 `json:"alert_lead_minutes"`
}

func flattenRoles(guildRoles map[string][]string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, roles := range guildRoles {
		for _, role := range roles {
			if _, ok := seen[role]; ok {
				continue
			}
			seen[role] = struct{}{}
			out = append(out, role)
		}
	}
	sort.Strings(out)
	return out
}
