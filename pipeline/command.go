package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/teranos/lathe/errors"
	"github.com/teranos/lathe/logger"
)

// CommandPipeline runs an external program per recompute. The request is
// written to its stdin as JSON. A non-zero exit or a timeout is an error;
// the caller logs it and waits for the next edit.
type CommandPipeline struct {
	argv    []string
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewCommandPipeline parses command with shell quoting rules.
func NewCommandPipeline(command string, timeout time.Duration, log *zap.SugaredLogger) (*CommandPipeline, error) {
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse pipeline command %q", command)
	}
	if len(argv) == 0 {
		return nil, errors.WithHint(
			errors.New("pipeline command is empty"),
			"set pipeline.command in am.toml or leave it unset to log recomputes")
	}
	return &CommandPipeline{
		argv:    argv,
		timeout: timeout,
		log:     logger.AddPipelineSymbol(log),
	}, nil
}

// Argv returns the parsed command line.
func (p *CommandPipeline) Argv() []string {
	return append([]string(nil), p.argv...)
}

// Recompute runs the command once.
func (p *CommandPipeline) Recompute(ctx context.Context, req Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "failed to encode recompute request")
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.argv[0], p.argv[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Wrapf(runErr, "pipeline command %s timed out after %s", p.argv[0], p.timeout)
		}
		err := errors.Wrapf(runErr, "pipeline command %s failed", p.argv[0])
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = errors.WithDetail(err, msg)
		}
		return err
	}

	p.log.Infow("Pipeline command finished",
		logger.FieldGeneration, req.Generation,
		logger.FieldActiveCount, len(req.Active()),
		logger.FieldDurationMS, elapsed.Milliseconds())
	if out := strings.TrimSpace(stdout.String()); out != "" {
		p.log.Debugw("Pipeline command output", "output", out)
	}
	return nil
}
