package am

import (
	"fmt"

	"github.com/spf13/viper"
)

// Default values, shared by SetDefaults and the zero-value fallbacks below
const (
	DefaultUndoCapacity      = 100
	DefaultStructuralDelayMS = 100
	DefaultRollbackDelayMS   = 0
	DefaultSliderDebounceMS  = 300
	DefaultPipelineTimeout   = 60
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// History defaults
	v.SetDefault("history.undo_capacity", DefaultUndoCapacity)

	// Recompute defaults
	v.SetDefault("recompute.structural_delay_ms", DefaultStructuralDelayMS)
	v.SetDefault("recompute.rollback_delay_ms", DefaultRollbackDelayMS)
	v.SetDefault("recompute.slider_debounce_ms", DefaultSliderDebounceMS)

	// Pipeline defaults
	v.SetDefault("pipeline.command", "")
	v.SetDefault("pipeline.timeout_seconds", DefaultPipelineTimeout)

	// Log defaults
	v.SetDefault("log.json", false)

	// Metrics defaults
	v.SetDefault("metrics.address", "")
}

// Default returns the configuration produced by SetDefaults alone.
func Default() *Config {
	return &Config{
		History: HistoryConfig{UndoCapacity: DefaultUndoCapacity},
		Recompute: RecomputeConfig{
			StructuralDelayMS: DefaultStructuralDelayMS,
			RollbackDelayMS:   DefaultRollbackDelayMS,
			SliderDebounceMS:  DefaultSliderDebounceMS,
		},
		Pipeline: PipelineConfig{TimeoutSeconds: DefaultPipelineTimeout},
	}
}

// GetUndoCapacity returns the undo capacity, falling back to the default
func (c *Config) GetUndoCapacity() int {
	if c.History.UndoCapacity <= 0 {
		return DefaultUndoCapacity
	}
	return c.History.UndoCapacity
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{History: {UndoCapacity: %d}, Recompute: {Structural: %dms, Rollback: %dms, Slider: %dms}, Pipeline: {Command: %q}}",
		c.History.UndoCapacity,
		c.Recompute.StructuralDelayMS, c.Recompute.RollbackDelayMS, c.Recompute.SliderDebounceMS,
		c.Pipeline.Command)
}
