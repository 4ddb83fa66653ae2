package helpers

import (
	"testing"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	_ "github.com/oculab/gazetrack/pb_migrations"
)

// TestServer wraps a PocketBase instance backed by a throwaway data dir
type TestServer struct {
	App core.App
	t   *testing.T
}

// NewTestServer creates a test PocketBase instance and runs all migrations
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	app := pocketbase.NewWithConfig(pocketbase.Config{
		DefaultDataDir:   t.TempDir(),
		DataMaxOpenConns: 1,
		DataMaxIdleConns: 1,
	})

	// Bootstrap the app (runs system and registered app migrations)
	if err := app.Bootstrap(); err != nil {
		t.Fatalf("Failed to bootstrap test app: %v", err)
	}

	// Bootstrap only applies system migrations; app migrations (the ones
	// registered via the pb_migrations blank import) must be run explicitly.
	if err := app.RunAppMigrations(); err != nil {
		t.Fatalf("Failed to run app migrations: %v", err)
	}

	return &TestServer{
		App: app,
		t:   t,
	}
}

// Cleanup closes the test server and releases its resources
func (ts *TestServer) Cleanup() {
	if app, ok := ts.App.(*pocketbase.PocketBase); ok {
		app.ResetBootstrapState()
	}
}
