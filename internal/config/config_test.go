package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "filament", cfg.Logger.ServiceName)
	assert.Equal(t, "green", cfg.Logger.Colors.Info)
	assert.Equal(t, 1.0, cfg.Growth.StepLength)
	assert.Equal(t, 0.5, cfg.Growth.DMin)
	assert.Equal(t, "dot", cfg.Export.Format)
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("simulation.seed", 99)
	v.Set("growth.step_length", 2.0)
	v.Set("growth.d_min", 1.5)
	v.Set("field.charge_by_temperature", true)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, int64(99), cfg.Simulation.Seed)
	assert.Equal(t, 2.0, cfg.Growth.StepLength)
	assert.Equal(t, 1.5, cfg.Growth.DMin)
	assert.True(t, cfg.Field.ChargeByTemperature)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero step length", func(c *Config) { c.Growth.StepLength = 0 }},
		{"negative d_min", func(c *Config) { c.Growth.DMin = -0.1 }},
		{"d_min not below step length", func(c *Config) { c.Growth.DMin = c.Growth.StepLength }},
		{"randomness above one", func(c *Config) { c.Growth.RandomnessWeight = 1.1 }},
		{"negative randomness", func(c *Config) { c.Growth.RandomnessWeight = -0.1 }},
		{"negative retries", func(c *Config) { c.Growth.MaxRetriesPerStep = -1 }},
		{"negative resamples", func(c *Config) { c.Growth.MaxParentResamples = -1 }},
		{"zero max vertices", func(c *Config) { c.Simulation.MaxVertices = 0 }},
		{"negative failure limit", func(c *Config) { c.Simulation.MaxConsecutiveFailures = -1 }},
		{"zero initial temperature", func(c *Config) { c.Temperature.Initial = 0 }},
		{"negative decay", func(c *Config) { c.Temperature.DecayRate = -0.5 }},
		{"floor above one", func(c *Config) { c.Temperature.ReactivationFloor = 1.5 }},
		{"negative field strength", func(c *Config) { c.Field.Strength = -5.0 }},
		{"negative parallel threshold", func(c *Config) { c.Field.ParallelThreshold = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewConfigFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("growth.d_min", 5.0) // above step_length

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "d_min")
}
