package app

import (
	"testing"

	"github.com/vk/netround/internal/registry"
	"github.com/vk/netround/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. Its logs are
// captured in the returned buffer.
func SetupAppTest(t *testing.T, cfg *Config, modules ...registry.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	testApp := NewApp(logBuffer, cfg, modules...)
	testutil.DumpLogsOnCleanup(t, logBuffer)

	return testApp, logBuffer
}
