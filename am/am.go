package am

import "time"

// Config represents the lathe configuration
type Config struct {
	History   HistoryConfig   `mapstructure:"history" toml:"history" json:"history" yaml:"history"`
	Recompute RecomputeConfig `mapstructure:"recompute" toml:"recompute" json:"recompute" yaml:"recompute"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" toml:"pipeline" json:"pipeline" yaml:"pipeline"`
	Log       LogConfig       `mapstructure:"log" toml:"log" json:"log" yaml:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics" toml:"metrics" json:"metrics" yaml:"metrics"`
}

// HistoryConfig configures the undo/redo coordinator
type HistoryConfig struct {
	UndoCapacity int `mapstructure:"undo_capacity" toml:"undo_capacity" json:"undo_capacity" yaml:"undo_capacity"` // entries per stack, oldest evicted first (default: 100)
}

// RecomputeConfig configures recompute scheduling delays.
// Zero means "fire on the next tick", negative is invalid.
type RecomputeConfig struct {
	StructuralDelayMS int `mapstructure:"structural_delay_ms" toml:"structural_delay_ms" json:"structural_delay_ms" yaml:"structural_delay_ms"` // suppress, delete, reorder, create, undo (default: 100)
	RollbackDelayMS   int `mapstructure:"rollback_delay_ms" toml:"rollback_delay_ms" json:"rollback_delay_ms" yaml:"rollback_delay_ms"`         // rollback cursor changes (default: 0)
	SliderDebounceMS  int `mapstructure:"slider_debounce_ms" toml:"slider_debounce_ms" json:"slider_debounce_ms" yaml:"slider_debounce_ms"`     // rollback slider drag coalescing (default: 300)
}

// StructuralDelay returns StructuralDelayMS as a duration.
func (r RecomputeConfig) StructuralDelay() time.Duration {
	return time.Duration(r.StructuralDelayMS) * time.Millisecond
}

// RollbackDelay returns RollbackDelayMS as a duration.
func (r RecomputeConfig) RollbackDelay() time.Duration {
	return time.Duration(r.RollbackDelayMS) * time.Millisecond
}

// SliderDebounce returns SliderDebounceMS as a duration.
func (r RecomputeConfig) SliderDebounce() time.Duration {
	return time.Duration(r.SliderDebounceMS) * time.Millisecond
}

// PipelineConfig configures the external recompute pipeline
type PipelineConfig struct {
	Command        string `mapstructure:"command" toml:"command" json:"command" yaml:"command"`                                 // kernel command line, request JSON on stdin (empty = log only)
	TimeoutSeconds int    `mapstructure:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"` // per-run timeout (default: 60)
}

// Timeout returns TimeoutSeconds as a duration.
func (p PipelineConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// LogConfig configures logging output
type LogConfig struct {
	JSON bool `mapstructure:"json" toml:"json" json:"json" yaml:"json"` // JSON lines instead of the console encoder
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Address string `mapstructure:"address" toml:"address" json:"address" yaml:"address"` // listen address, e.g. "127.0.0.1:9477" (empty = disabled)
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
