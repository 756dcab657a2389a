// Package pipeline defines the geometry recompute boundary.
//
// The history decides which features are active; a Pipeline consumes that
// ordered list and regenerates geometry. lathe ships two implementations: a
// logging pipeline for interactive use and a command pipeline that hands the
// request to an external kernel process as JSON.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/lathe/feature"
	"github.com/teranos/lathe/logger"
)

// Request is the state read at fire time. Features are in sequence order.
type Request struct {
	Generation    uint64         `json:"generation"`
	RollbackIndex *int           `json:"rollback_index"`
	Features      []feature.View `json:"features"`
}

// Active returns the features that participate in the recompute, in
// sequence order.
func (r Request) Active() []feature.View {
	var out []feature.View
	for _, v := range r.Features {
		if v.Active {
			out = append(out, v)
		}
	}
	return out
}

// Pipeline regenerates geometry from an ordered feature list.
type Pipeline interface {
	Recompute(ctx context.Context, req Request) error
}

// Func adapts a function to Pipeline.
type Func func(ctx context.Context, req Request) error

// Recompute calls f.
func (f Func) Recompute(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// LogPipeline reports each recompute to the log and does nothing else.
type LogPipeline struct {
	log *zap.SugaredLogger
}

// NewLogPipeline creates a LogPipeline.
func NewLogPipeline(log *zap.SugaredLogger) *LogPipeline {
	return &LogPipeline{log: logger.AddPipelineSymbol(log)}
}

// Recompute logs the active feature list.
func (p *LogPipeline) Recompute(_ context.Context, req Request) error {
	start := time.Now()
	active := req.Active()
	for _, v := range active {
		p.log.Debugw("Regenerating feature",
			logger.FieldIndex, v.Index,
			logger.FieldFeatureID, v.ID,
			logger.FieldKind, v.Kind)
	}
	p.log.Infow("Recompute complete",
		logger.FieldGeneration, req.Generation,
		logger.FieldActiveCount, len(active),
		logger.FieldCount, len(req.Features),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return nil
}

// FromCommand returns a CommandPipeline for command, or a LogPipeline when
// command is empty.
func FromCommand(command string, timeout time.Duration, log *zap.SugaredLogger) (Pipeline, error) {
	if command == "" {
		return NewLogPipeline(log), nil
	}
	return NewCommandPipeline(command, timeout, log)
}
