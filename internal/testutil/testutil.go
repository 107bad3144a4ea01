// Package testutil holds fixtures shared by tests that need a running API.
package testutil

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"learningTrackerAPI/internal/config"
	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/internal/server"
	"learningTrackerAPI/internal/store"
	"learningTrackerAPI/internal/store/memory"
	"learningTrackerAPI/internal/store/postgres"
)

// Credentials of the superuser every test server starts with.
const (
	Username = "admin"
	Password = "s3cret"
)

// Config returns settings suitable for an in-process server.
func Config() *config.Config {
	return &config.Config{
		Port:                   "0",
		Storage:                config.StorageMemory,
		SessionTTL:             time.Hour,
		SessionCleanupInterval: time.Hour,
		AllowedOrigins:         []string{"http://localhost:3000"},
		RateLimitRPS:           1000,
		RateLimitBurst:         1000,
		LogLevel:               "debug",
		SuperuserUsername:      Username,
		SuperuserPassword:      Password,
	}
}

// StartServer serves the full API over st (a fresh memory store when nil)
// until the test ends.
func StartServer(t *testing.T, st store.Store) *httptest.Server {
	t.Helper()
	if st == nil {
		st = memory.New()
	}

	srv := server.New(Config(), st, bytes.Repeat([]byte("k"), 32), logger.Test(t))
	require.NoError(t, srv.BootstrapSuperuser(context.Background()))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// SetupTestDB connects to TEST_DATABASE_URL and empties every table before
// and after the test. The test is skipped when the variable is unset.
func SetupTestDB(t *testing.T) *postgres.Store {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := postgres.Connect(ctx, dbURL)
	require.NoError(t, err, "Failed to connect to test database")

	cleanup := func() {
		_, err := s.Pool().Exec(ctx, "TRUNCATE learning_entries, sessions, users")
		if err != nil {
			t.Logf("Warning: failed to cleanup test data: %v", err)
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		s.Close()
	})
	return s
}
