// Package sym defines canonical glyphs for lathe subsystems.
// These glyphs are stable across log output, the shell and documentation.
package sym

// Subsystem glyphs.
const (
	AM        = "≡" // am: configuration and system settings
	History   = "⫶" // feature history: order, suppression, rollback
	Undo      = "↶" // undo/redo coordinator
	Recompute = "⟳" // debounced recompute scheduler
	Pipeline  = "⟶" // external recompute pipeline
)

// Feature kind glyphs, used as icons in the derived feature view.
const (
	Primitive  = "◼"
	Sketch     = "✎"
	DatumPlane = "▱"
	DatumAxis  = "↕"
	Component  = "▣"
	Mate       = "⚭"
)

// State markers used when rendering the feature view.
const (
	Suppressed = "⊘" // feature excluded by suppression
	RolledBack = "┄" // feature beyond the rollback cursor
	Cursor     = "▸" // rollback bar
)

// SubsystemGlyphs maps subsystem names to their glyphs.
var SubsystemGlyphs = map[string]string{
	"am":        AM,
	"history":   History,
	"undo":      Undo,
	"recompute": Recompute,
	"pipeline":  Pipeline,
}
