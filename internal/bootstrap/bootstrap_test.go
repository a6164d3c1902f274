package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-collab/config"
	"github.com/GoSim-25-26J-441/project-collab/internal/collab/repository"
	"github.com/GoSim-25-26J-441/project-collab/internal/collab/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestOpenBroker(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	t.Run("memory", func(t *testing.T) {
		b, closeFn, err := OpenBroker(ctx, config.NotifyConfig{Backend: config.NotifyMemory}, logger)
		require.NoError(t, err)
		defer closeFn()
		assert.Equal(t, "memory", b.Name())
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		b, closeFn, err := OpenBroker(ctx, config.NotifyConfig{Backend: config.NotifyRedis, RedisAddr: mr.Addr()}, logger)
		require.NoError(t, err)
		defer closeFn()
		assert.Equal(t, "redis", b.Name())
		assert.NoError(t, b.Ping(ctx))
	})

	t.Run("redis unreachable", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		addr := mr.Addr()
		mr.Close()

		_, _, err = OpenBroker(ctx, config.NotifyConfig{Backend: config.NotifyRedis, RedisAddr: addr}, logger)
		assert.Error(t, err)
	})

	t.Run("nats", func(t *testing.T) {
		srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
		require.NoError(t, err)
		go srv.Start()
		require.True(t, srv.ReadyForConnections(5*time.Second))
		defer srv.Shutdown()

		b, closeFn, err := OpenBroker(ctx, config.NotifyConfig{Backend: config.NotifyNATS, NATSURL: srv.ClientURL()}, logger)
		require.NoError(t, err)
		defer closeFn()
		assert.Equal(t, "nats", b.Name())
		assert.NoError(t, b.Ping(ctx))
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := OpenBroker(ctx, config.NotifyConfig{Backend: "kafka"}, logger)
		assert.Error(t, err)
	})
}

func TestBuildIdentity_HeaderMode(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	cfg := &config.Config{Auth: config.AuthConfig{Mode: config.AuthModeHeader, DevUsers: "bob:b@example.com"}}

	id, err := BuildIdentity(ctx, cfg, store, zap.NewNop())
	require.NoError(t, err)

	uid, err := store.FindUserByEmail(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bob", uid)

	uid, err = id.Provider.ResolveEmail(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bob", uid)

	cfg.Auth.DevUsers = "broken"
	_, err = BuildIdentity(ctx, cfg, store, zap.NewNop())
	assert.Error(t, err)

	cfg.Auth.Mode = "ldap"
	_, err = BuildIdentity(ctx, cfg, store, zap.NewNop())
	assert.Error(t, err)
}

func TestBuildIdentity_FirebaseNeedsCredentials(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{Mode: config.AuthModeFirebase}}
	_, err := BuildIdentity(context.Background(), cfg, repository.NewMemoryStore(), zap.NewNop())
	assert.Error(t, err)
}

func TestBuildRouter(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	broker, closeFn, err := OpenBroker(ctx, config.NotifyConfig{Backend: config.NotifyMemory}, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()

	cfg := &config.Config{
		Server:    config.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}, StreamKeepAlive: time.Second},
		Auth:      config.AuthConfig{Mode: config.AuthModeHeader},
		RateLimit: config.RateLimitConfig{RPS: 100, Burst: 100},
		App:       config.AppConfig{Version: "test"},
	}
	identity, err := BuildIdentity(ctx, cfg, store, zap.NewNop())
	require.NoError(t, err)

	r := BuildRouter(RouterDeps{
		ServiceName: "project-collab",
		Config:      cfg,
		Service:     service.New(store, store, identity.Provider, broker, zap.NewNop()),
		Auth:        identity.Middleware,
		DB:          store,
		Notify:      broker,
		Logger:      zap.NewNop(),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects",
		strings.NewReader(`{"title":"Launch","goal":"Ship","target_date":"2026-12-01"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "alice")
	req.Header.Set("X-User-Email", "a@example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// the caller was registered and is now invitable by email
	uid, err := store.FindUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", uid)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "collab_api_operations_total")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSetGinMode(t *testing.T) {
	defer gin.SetMode(gin.TestMode)

	SetGinMode("production")
	assert.Equal(t, gin.ReleaseMode, gin.Mode())
	SetGinMode("test")
	assert.Equal(t, gin.TestMode, gin.Mode())
}
