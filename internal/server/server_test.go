// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keyutils.
//
// go-keyutils is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-keyutils/internal/config"
	"github.com/jeremyhahn/go-keyutils/pkg/health"
	"github.com/jeremyhahn/go-keyutils/pkg/keyctl/mocks"
	"github.com/jeremyhahn/go-keyutils/pkg/keyring"
	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// testConfig returns a default configuration with logging quieted down
// for test output.
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "error"
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *mocks.MockGateway) {
	t.Helper()

	mock := mocks.NewMockGateway()
	t.Cleanup(keyring.SetGateway(mock))

	srv, err := New(cfg)
	require.NoError(t, err)
	return srv, mock
}

func TestNew_NilConfig(t *testing.T) {
	srv, err := New(nil)
	require.Error(t, err)
	assert.Nil(t, srv)
}

func TestNew_Defaults(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	assert.NotNil(t, srv.HealthChecker())
	assert.NotNil(t, srv.Logger())

	// REST server is built on Start, not on New
	assert.Nil(t, srv.RESTServer())
}

func TestHealthCheck_Keyctl(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	results := srv.HealthChecker().Ready(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, "keyctl", results[0].Name)
	assert.Equal(t, health.StatusHealthy, results[0].Status)
}

func TestHealthCheck_KeyctlUnavailable(t *testing.T) {
	srv, mock := newTestServer(t, testConfig())

	mock.GetKeyringIDFunc = func(types.ID, bool) (types.ID, error) {
		return 0, types.ErrOperationNotSupported
	}

	results := srv.HealthChecker().Ready(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, health.StatusUnhealthy, results[0].Status)
	assert.NotEmpty(t, results[0].Error)
}

func TestHealthCheck_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Health.Enabled = false

	srv, _ := newTestServer(t, cfg)

	results := srv.HealthChecker().Ready(context.Background())
	assert.Empty(t, results)
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{"text stderr", config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"}},
		{"json stdout", config.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"}},
		{"empty defaults", config.LoggingConfig{}},
		{"unknown level falls back", config.LoggingConfig{Level: "trace", Format: "text"}},
		{"unknown format falls back", config.LoggingConfig{Level: "info", Format: "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := setupLogger(tt.cfg)
			assert.NotNil(t, log)
		})
	}
}

func TestSetupLogger_FileOutput(t *testing.T) {
	path := t.TempDir() + "/keyringd.log"

	log := setupLogger(config.LoggingConfig{Level: "info", Format: "json", Output: path})
	require.NotNil(t, log)
	log.Info("test entry")

	assert.FileExists(t, path)
}

func TestGetBuildVersion(t *testing.T) {
	assert.NotEmpty(t, getBuildVersion())
}

func TestReload_LoggingChange(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	cfg := testConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"

	require.NoError(t, srv.Reload(cfg))
	assert.NotNil(t, srv.Logger())
}

func TestReload_NoChange(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	before := srv.Logger()
	require.NoError(t, srv.Reload(testConfig()))
	assert.Same(t, before, srv.Logger())
}
