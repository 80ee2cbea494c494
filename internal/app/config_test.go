package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(Config{ExperimentPath: "exp"})
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1, cfg.Rounds)

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "missing path", cfg: Config{}, want: "ExperimentPath is a required configuration field"},
		{name: "bad level", cfg: Config{ExperimentPath: "exp", LogLevel: "loud"}, want: `LogLevel must be one of [debug info warn error], got "loud"`},
		{name: "bad format", cfg: Config{ExperimentPath: "exp", LogFormat: "xml"}, want: "LogFormat must be one of"},
		{name: "bad port", cfg: Config{ExperimentPath: "exp", HealthcheckPort: 70000}, want: "HealthcheckPort failed on 'max=65535'"},
		{name: "negative rounds", cfg: Config{ExperimentPath: "exp", Rounds: -1}, want: "Rounds failed on 'min=1'"},
		{name: "empty variable name", cfg: Config{ExperimentPath: "exp", Variables: map[string]string{"": "1"}}, want: "is a required configuration field"},
		{name: "negative timeout", cfg: Config{ExperimentPath: "exp", Timeout: -time.Second}, want: "Timeout failed on 'min=0'"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(tc.cfg)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}
