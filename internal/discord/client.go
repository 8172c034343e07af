// Package discord exchanges Discord OAuth2 authorization codes for the
// caller's identity and guild role assignments.
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"guild-overlay/internal/model"
)

const (
	DefaultAPIBase = "https://discord.com/api"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

var scopes = []string{"identify", "guilds", "guilds.members.read"}

type Config struct {
	ClientID        string
	ClientSecret    string
	RedirectURI     string
	AllowedGuildIDs []string
	APIBase         string
	Timeout         time.Duration
	HTTPClient      *http.Client
}

// Client talks to the Discord API on behalf of a user logging in.
type Client struct {
	oauth      *oauth2.Config
	apiBase    string
	allowed    []string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.APIBase + "/oauth2/authorize",
				TokenURL:  cfg.APIBase + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBase:    cfg.APIBase,
		allowed:    append([]string(nil), cfg.AllowedGuildIDs...),
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
	}
}

// LoginURL is the Discord consent page the browser is redirected to.
func (c *Client) LoginURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "consent"))
}

type discordUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name"`
}

type discordGuild struct {
	ID string `json:"id"`
}

type discordMember struct {
	Roles []string `json:"roles"`
}

// Exchange trades an authorization code for the caller's identity. It fails
// with model.ErrUpstreamAuth when Discord rejects the code or cannot be
// reached in time, and with model.ErrNotAMember when the caller belongs to
// none of the allowed guilds.
func (c *Client) Exchange(ctx context.Context, code string) (model.Identity, error) {
	if code == "" {
		return model.Identity{}, fmt.Errorf("%w: empty authorization code", model.ErrUpstreamAuth)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: token exchange: %v", model.ErrUpstreamAuth, err)
	}
	api := c.oauth.Client(ctx, token)

	var user discordUser
	if err := c.getJSON(ctx, api, "/users/@me", &user); err != nil {
		return model.Identity{}, fmt.Errorf("%w: fetch user: %v", model.ErrUpstreamAuth, err)
	}
	if user.ID == "" {
		return model.Identity{}, fmt.Errorf("%w: empty user id", model.ErrUpstreamAuth)
	}

	var guilds []discordGuild
	if err := c.getJSON(ctx, api, "/users/@me/guilds", &guilds); err != nil {
		return model.Identity{}, fmt.Errorf("%w: fetch guilds: %v", model.ErrUpstreamAuth, err)
	}

	memberOf := make(map[string]struct{}, len(guilds))
	for _, g := range guilds {
		memberOf[g.ID] = struct{}{}
	}
	guildIDs := make([]string, 0)
	for _, id := range c.allowed {
		if _, ok := memberOf[id]; ok {
			guildIDs = append(guildIDs, id)
		}
	}
	if len(guildIDs) == 0 {
		return model.Identity{}, model.ErrNotAMember
	}

	guildRoles := make(map[string][]string, len(guildIDs))
	for _, guildID := range guildIDs {
		var member discordMember
		// A guild whose member record cannot be read contributes no roles.
		if err := c.getJSON(ctx, api, "/users/@me/guilds/"+url.PathEscape(guildID)+"/member", &member); err != nil {
			if ctx.Err() != nil {
				return model.Identity{}, fmt.Errorf("%w: fetch member roles: %v", model.ErrUpstreamAuth, ctx.Err())
			}
			continue
		}
		guildRoles[guildID] = member.Roles
	}

	return model.Identity{
		UserID:        user.ID,
		Username:      user.Username,
		Discriminator: user.Discriminator,
		GlobalName:    user.GlobalName,
		GuildIDs:      guildIDs,
		GuildRoles:    guildRoles,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, api *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := api.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
