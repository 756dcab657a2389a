package logger

import (
	"github.com/teranos/lathe/sym"
	"go.uber.org/zap"
)

// Symbol-aware logger wrappers.
// The glyph goes into a structured field, not the message, so logs stay
// queryable by subsystem.
//
// Usage:
//
//	type Scheduler struct {
//	    log *zap.SugaredLogger
//	}
//	s.log = logger.AddRecomputeSymbol(baseLogger)

// AddHistorySymbol wraps a logger with the History symbol (⫶)
func AddHistorySymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return OrNop(l).With(FieldSymbol, sym.History)
}

// AddUndoSymbol wraps a logger with the Undo symbol (↶)
func AddUndoSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return OrNop(l).With(FieldSymbol, sym.Undo)
}

// AddRecomputeSymbol wraps a logger with the Recompute symbol (⟳)
func AddRecomputeSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return OrNop(l).With(FieldSymbol, sym.Recompute)
}

// AddPipelineSymbol wraps a logger with the Pipeline symbol (⟶)
func AddPipelineSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return OrNop(l).With(FieldSymbol, sym.Pipeline)
}

// AddAMSymbol wraps a logger with the AM symbol (≡)
func AddAMSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return OrNop(l).With(FieldSymbol, sym.AM)
}
