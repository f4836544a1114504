package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("DISPATCH_QUEUE_NAME", "ingest")
	t.Setenv("DISPATCH_QUEUE_MAX_PENDING", "64")
	t.Setenv("DISPATCH_QUEUE_OVERFLOW", "Reject")
	t.Setenv("DISPATCH_QUEUE_HISTORY_CAPACITY", "10")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "ingest", cfg.Name)
	assert.Equal(t, 64, cfg.MaxPending)
	assert.Equal(t, OverflowReject, cfg.Overflow)
	assert.Equal(t, 10, cfg.HistoryCapacity)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unknown overflow", key: "DISPATCH_QUEUE_OVERFLOW", value: "drop-oldest"},
		{name: "negative bound", key: "DISPATCH_QUEUE_MAX_PENDING", value: "-3"},
		{name: "bound of one", key: "DISPATCH_QUEUE_MAX_PENDING", value: "1"},
		{name: "not a number", key: "DISPATCH_QUEUE_HISTORY_CAPACITY", value: "lots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(c *Config) {}},
		{name: "bounded block", mutate: func(c *Config) { c.MaxPending = 2 }},
		{name: "empty overflow", mutate: func(c *Config) { c.Overflow = "" }},
		{name: "bound of one", mutate: func(c *Config) { c.MaxPending = 1 }, wantErr: true},
		{name: "negative history", mutate: func(c *Config) { c.HistoryCapacity = -1 }, wantErr: true},
		{name: "unknown overflow", mutate: func(c *Config) { c.Overflow = "spill" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOptions_WithConfigAndOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "from-config"
	cfg.MaxPending = 8

	o, err := buildOptions([]Option{WithConfig(cfg), WithName("override"), nil})
	require.NoError(t, err)

	assert.Equal(t, "override", o.config.Name)
	assert.Equal(t, 8, o.config.MaxPending)
	assert.IsType(t, &ZapLogger{}, o.logger)
	assert.IsType(t, &DefaultPanicHandler{}, o.panicHandler)
	assert.IsType(t, &NilMetrics{}, o.metrics)
	assert.IsType(t, &DefaultRejectedTaskHandler{}, o.rejectedTaskHandler)
}

func TestOptions_EmptyNameFallsBack(t *testing.T) {
	o, err := buildOptions([]Option{WithName("")})
	require.NoError(t, err)

	assert.Equal(t, defaultQueueName, o.config.Name)
}

func TestOptions_HandlerOverrides(t *testing.T) {
	logger := NewNoOpLogger()
	panics := &recordingPanicHandler{}
	rejected := &recordingRejectedHandler{}
	metrics := &NilMetrics{}

	o, err := buildOptions([]Option{
		WithLogger(logger),
		WithPanicHandler(panics),
		WithMetrics(metrics),
		WithRejectedTaskHandler(rejected),
	})
	require.NoError(t, err)

	assert.Same(t, panics, o.panicHandler)
	assert.Same(t, rejected, o.rejectedTaskHandler)
	assert.Same(t, metrics, o.metrics)
	assert.Equal(t, logger, o.logger)
}
