//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"guild-overlay/internal/config"
	"guild-overlay/internal/database"
	"guild-overlay/internal/discord"
	"guild-overlay/internal/handler"
	"guild-overlay/internal/metrics"
	"guild-overlay/internal/middleware"
	"guild-overlay/internal/notify"
	"guild-overlay/internal/policy"
	"guild-overlay/internal/repository"
	"guild-overlay/internal/revocation"
	"guild-overlay/internal/router"
	"guild-overlay/internal/service"
	"guild-overlay/internal/websocket"
)

const (
	testGuildID     = "guild-main"
	testOfficerRole = "role-officer"
	testSecret      = "integration-secret-0123456789abcdef"
)

type discordUser struct {
	ID       string
	Username string
	Roles    []string
}

// fakeDiscord answers the OAuth and profile endpoints. The authorization code
// doubles as the upstream access token and names the user it belongs to.
type fakeDiscord struct {
	mu    sync.Mutex
	users map[string]discordUser
}

func (f *fakeDiscord) add(code string, user discordUser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[code] = user
}

func (f *fakeDiscord) lookup(r *http.Request) (discordUser, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
	return user, ok
}

func (f *fakeDiscord) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		code := r.PostForm.Get("code")
		f.mu.Lock()
		_, ok := f.users[code]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": code, "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		user, ok := f.lookup(r)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": user.ID, "username": user.Username, "discriminator": "0"})
	})
	mux.HandleFunc("/users/@me/guilds", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]string{{"id": testGuildID}})
	})
	mux.HandleFunc("/users/@me/guilds/", func(w http.ResponseWriter, r *http.Request) {
		user, ok := f.lookup(r)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"roles": user.Roles})
	})
	return mux
}

type testServer struct {
	*httptest.Server
	discord *fakeDiscord
}

// newTestServer wires the full stack against the database named by
// TEST_DATABASE_URL. Tables are emptied before each test.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	require.NoError(t, database.RunMigrations(databaseURL))
	db, err := database.New(ctx, database.Options{URL: databaseURL, MaxConns: 5, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))

	_, err = db.Pool.Exec(ctx, `TRUNCATE craft_assignments, craft_requests, event_attendees, events, attendance_records, roster_members RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	fake := &fakeDiscord{users: map[string]discordUser{}}
	discordServer := httptest.NewServer(fake.handler())
	t.Cleanup(discordServer.Close)

	redisServer := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	cfg := &config.Config{
		APIBasePath:            "/api",
		RequestTimeout:         10 * time.Second,
		RateLimitRPM:           0,
		AuthRateLimitRPM:       1000,
		DiscordAllowedGuildIDs: []string{testGuildID},
		DiscordEventRoleIDs:    []string{testOfficerRole},
		AlertLead:              15 * time.Minute,
	}

	tokens, err := service.NewTokenService(service.TokenConfig{
		Secret:          testSecret,
		Algorithm:       "HS256",
		Issuer:          "oe-overlay-service",
		Lifetime:        time.Hour,
		AllowedGuildIDs: cfg.DiscordAllowedGuildIDs,
	}, revocation.NewStore(redisClient, ""))
	require.NoError(t, err)
	states, err := service.NewStateSigner(testSecret, 10*time.Minute, nil)
	require.NoError(t, err)

	client := discord.NewClient(discord.Config{
		ClientID:        "client-id",
		ClientSecret:    "client-secret",
		RedirectURI:     "http://localhost/api/auth/callback",
		AllowedGuildIDs: cfg.DiscordAllowedGuildIDs,
		APIBase:         discordServer.URL,
		Timeout:         5 * time.Second,
	})

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	bus := notify.NewBus()
	hub := websocket.NewHub(bus, nil)
	hubCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(hubCtx)

	eventRepo := repository.NewEventRepository(db.Pool)
	eventService := service.NewEventService(eventRepo, bus, collector, cfg.DiscordEventRoleIDs)

	handlers := router.Handlers{
		Auth:     handler.NewAuthHandler(service.NewAuthService(client, policy.NewTable(cfg.DiscordEventRoleIDs), tokens, states, collector, 15)),
		Crafting: handler.NewCraftingHandler(service.NewCraftingService(repository.NewCraftingRepository(db.Pool), bus, collector)),
		Events:   handler.NewEventHandler(eventService, service.NewAlertService(eventRepo, cfg.AlertLead)),
		Overlay:  handler.NewOverlayHandler(service.NewOverlayService(repository.NewRosterRepository(db.Pool), eventRepo)),
		Health:   handler.NewHealthHandler(db),
		Stream:   hub,
		Metrics:  metrics.Handler(registry),
	}

	server := httptest.NewServer(router.New(cfg, middleware.NewAuthMiddleware(tokens), handlers, collector))
	t.Cleanup(server.Close)

	return &testServer{Server: server, discord: fake}
}

// login registers user with the fake provider and returns a credential.
func (s *testServer) login(t *testing.T, user discordUser) string {
	t.Helper()

	code := "code-" + user.ID
	s.discord.add(code, user)

	resp, err := http.Post(s.URL+"/api/auth/callback?code="+code, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.NotEmpty(t, parsed.Data.AccessToken)
	return parsed.Data.AccessToken
}

func (s *testServer) do(t *testing.T, method string, path string, token string, body any, out any) int {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, s.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		envelope := struct {
			Data json.RawMessage `json:"data"`
		}{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return resp.StatusCode
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
