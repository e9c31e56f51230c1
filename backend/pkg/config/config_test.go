package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "kgchat/backend/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, 100, cfg.MaxGraphNodes)
	assert.Equal(t, 2, cfg.MaxHops)
	assert.InDelta(t, 0.95, cfg.TemporalDecayRate, 1e-12)
	assert.Len(t, cfg.CORSOrigins, 3)
	assert.True(t, cfg.GraphWatch)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MAX_GRAPH_NODES", "25")
	t.Setenv("TEMPORAL_DECAY_RATE", "0.5")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example ,")
	t.Setenv("GRAPH_WATCH", "false")
	t.Setenv("MAX_HOPS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	settings := cfg.GraphSettings()
	assert.Equal(t, 25, settings.MaxNodes)
	assert.Equal(t, 2, settings.MaxHops)
	assert.InDelta(t, 0.5, settings.DecayRate, 1e-12)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.GraphWatch)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:              "8000",
			GraphPath:         "graph.graphml",
			TemporalDecayRate: 0.95,
			ChunkSize:         100,
			ChunkOverlap:      10,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Port = "" }, field: "PORT"},
		{name: "decay above one", mutate: func(c *Config) { c.TemporalDecayRate = 1.5 }, field: "TEMPORAL_DECAY_RATE"},
		{name: "zero decay", mutate: func(c *Config) { c.TemporalDecayRate = 0 }, field: "TEMPORAL_DECAY_RATE"},
		{name: "negative weight", mutate: func(c *Config) { c.FocalWeight = -0.1 }, field: "FOCAL_WEIGHT"},
		{name: "first negative weight wins", mutate: func(c *Config) {
			c.RecencyWeight = -1
			c.CentralityWeight = -1
			c.FocalWeight = -1
		}, field: "RECENCY_WEIGHT"},
		{name: "negative hops", mutate: func(c *Config) { c.MaxHops = -1 }, field: "MAX_HOPS"},
		{name: "overlap too large", mutate: func(c *Config) { c.ChunkOverlap = 100 }, field: "CHUNK_OVERLAP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var validationErr *apperrors.ErrConfigValidationFailed
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
			assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
		})
	}
}
