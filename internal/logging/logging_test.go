package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"icpscout/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		wantErr bool
		enabled zapcore.Level
	}{
		{name: "console info", cfg: config.LogConfig{Level: "info", Format: "console"}, enabled: zapcore.InfoLevel},
		{name: "json debug", cfg: config.LogConfig{Level: "debug", Format: "json"}, enabled: zapcore.DebugLevel},
		{name: "default format", cfg: config.LogConfig{Level: "warn"}, enabled: zapcore.WarnLevel},
		{name: "bad level", cfg: config.LogConfig{Level: "loud", Format: "json"}, wantErr: true},
		{name: "bad format", cfg: config.LogConfig{Level: "info", Format: "xml"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.enabled-1))
		})
	}
}

func TestSetup_ReplacesGlobal(t *testing.T) {
	before := zap.L()
	restore, err := Setup(config.LogConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	assert.NotSame(t, before, zap.L())
	assert.False(t, zap.L().Core().Enabled(zapcore.InfoLevel))

	restore()
	assert.Same(t, before, zap.L())
}
