package am

import "github.com/teranos/lathe/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Undo capacity: 0 = use default, negative = invalid
	if c.History.UndoCapacity < 0 {
		return errors.Newf("history.undo_capacity must be >= 0, got %d", c.History.UndoCapacity)
	}

	// Recompute delays: 0 = next tick (valid per "zero means zero"), negative = invalid
	if c.Recompute.StructuralDelayMS < 0 {
		return errors.Newf("recompute.structural_delay_ms must be >= 0, got %d", c.Recompute.StructuralDelayMS)
	}
	if c.Recompute.RollbackDelayMS < 0 {
		return errors.Newf("recompute.rollback_delay_ms must be >= 0, got %d", c.Recompute.RollbackDelayMS)
	}
	if c.Recompute.SliderDebounceMS < 0 {
		return errors.Newf("recompute.slider_debounce_ms must be >= 0, got %d", c.Recompute.SliderDebounceMS)
	}

	// Pipeline timeout only matters when a command is configured
	if c.Pipeline.Command != "" && c.Pipeline.TimeoutSeconds <= 0 {
		return errors.WithHint(
			errors.Newf("pipeline.timeout_seconds must be > 0 when pipeline.command is set, got %d", c.Pipeline.TimeoutSeconds),
			"omit pipeline.timeout_seconds for the 60s default")
	}

	return nil
}
