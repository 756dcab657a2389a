package logger

import (
	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across lathe.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity
	FieldFeatureID   = "feature_id"
	FieldComponentID = "component_id"
	FieldKind        = "kind"
	FieldStore       = "store"
	FieldLabel       = "label"

	// Positions
	FieldIndex         = "index"
	FieldFrom          = "from"
	FieldTo            = "to"
	FieldDepth         = "depth"
	FieldRollbackIndex = "rollback_index"

	// Undo/redo
	FieldUndoDepth = "undo_depth"
	FieldRedoDepth = "redo_depth"
	FieldCapacity  = "capacity"

	// Recompute
	FieldDelayMS     = "delay_ms"
	FieldGeneration  = "generation"
	FieldActiveCount = "active_count"
	FieldDurationMS  = "duration_ms"

	// Generic
	FieldComponent = "component"
	FieldOperation = "operation"
	FieldCount     = "count"
	FieldError     = "error"
	FieldFile      = "file"
	FieldSymbol    = "symbol" // subsystem glyph (see package sym)
)

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	h := history.New(resolver, logger.ComponentLogger("history"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
//
// Example:
//
//	opLog := logger.ChildLogger(baseLogger, logger.FieldOperation, "reorder")
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
