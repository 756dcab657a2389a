package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/peterh/liner"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/lathe/am"
	"github.com/teranos/lathe/errors"
	"github.com/teranos/lathe/logger"
	"github.com/teranos/lathe/metrics"
	"github.com/teranos/lathe/pipeline"
	"github.com/teranos/lathe/store"
	"github.com/teranos/lathe/workspace"
)

// ShellCmd starts an interactive modelling session
var ShellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive modelling session",
	Long: `Start an interactive session over an empty workspace.

Every structural edit is undoable and schedules a debounced recompute.
The recompute pipeline, delays and undo capacity come from am.toml;
edits to the active config file are applied without restarting.

References (<ref>) accept an id, a unique id prefix, a name or #index.

Examples:
  add box base w=40 h=5
  component arm
  add cylinder pin in arm
  rollback 0
  undo`,
	RunE: runShell,
}

var errQuit = errors.New("quit")

// Shell executes shell command lines against one workspace.
type Shell struct {
	ws  *workspace.Workspace
	out io.Writer
}

// NewShell returns a shell writing its output to out.
func NewShell(ws *workspace.Workspace, out io.Writer) *Shell {
	return &Shell{ws: ws, out: out}
}

// Exec runs one command line. It returns errQuit when the user asks to leave.
func (s *Shell) Exec(line string) error {
	words, err := shellquote.Split(line)
	if err != nil {
		return errors.Wrap(err, "failed to parse command line")
	}
	if len(words) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(words[0]), words[1:]

	switch cmd {
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		s.printHelp()
		return nil
	case "add":
		return s.cmdAdd(args)
	case "sketch":
		return s.cmdSketch(args)
	case "plane":
		return s.cmdPlane(args)
	case "axis":
		return s.cmdAxis(args)
	case "component":
		return s.cmdComponent(args)
	case "mate":
		return s.cmdMate(args)
	case "ls", "list":
		return renderTable(s.out, s.ws.Features(), s.ws.RollbackIndex())
	case "tree":
		return renderTree(s.out, s.ws.Features())
	case "find":
		return s.cmdFind(args)
	case "suppress":
		return s.cmdSuppress(args)
	case "rm", "delete":
		return s.cmdDelete(args)
	case "mv", "move":
		return s.cmdMove(args)
	case "rollback":
		return s.cmdRollback(args)
	case "drag":
		return s.cmdDrag(args)
	case "dissolve":
		return s.cmdDissolve(args)
	case "select":
		return s.cmdSelect(args)
	case "undo":
		return s.cmdStep("undo", s.ws.Undo)
	case "redo":
		return s.cmdStep("redo", s.ws.Redo)
	case "history":
		return s.cmdHistory()
	case "status":
		return s.cmdStatus()
	case "check":
		return s.cmdCheck()
	default:
		return errors.WithHint(errors.Newf("unknown command: %s", cmd), "type 'help' for commands")
	}
}

// splitComponent strips a trailing "in <component>" and resolves it.
func (s *Shell) splitComponent(args []string) ([]string, []workspace.AddOption, error) {
	n := len(args)
	if n < 2 || !strings.EqualFold(args[n-2], "in") {
		return args, nil, nil
	}
	id, err := s.ws.Lookup(args[n-1])
	if err != nil {
		return nil, nil, err
	}
	return args[:n-2], []workspace.AddOption{workspace.InComponent(id)}, nil
}

func (s *Shell) cmdAdd(args []string) error {
	args, opts, err := s.splitComponent(args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.WithHint(errors.New("usage: add <shape> [name] [key=value ...] [in <component>]"),
			"shapes: "+strings.Join(workspace.Shapes(), ", "))
	}

	shape := strings.ToLower(args[0])
	var name string
	params := make(map[string]float64)
	for _, arg := range args[1:] {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok {
			name = arg
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return errors.Newf("parameter %s: %q is not a number", key, raw)
		}
		params[key] = value
	}

	id, err := s.ws.AddPrimitive(shape, name, params, opts...)
	if err != nil {
		return err
	}
	s.added(id)
	return nil
}

func (s *Shell) cmdSketch(args []string) error {
	args, opts, err := s.splitComponent(args)
	if err != nil {
		return err
	}
	var name, plane string
	if len(args) > 0 {
		name = args[0]
	}
	if len(args) > 1 {
		plane = strings.ToUpper(args[1])
	}
	id, err := s.ws.AddSketch(name, plane, nil, opts...)
	if err != nil {
		return err
	}
	s.added(id)
	return nil
}

func (s *Shell) cmdPlane(args []string) error {
	args, opts, err := s.splitComponent(args)
	if err != nil {
		return err
	}
	var name string
	var offset float64
	if len(args) > 0 {
		name = args[0]
	}
	if len(args) > 1 {
		if offset, err = strconv.ParseFloat(args[1], 64); err != nil {
			return errors.Newf("offset %q is not a number", args[1])
		}
	}
	id, err := s.ws.AddDatumPlane(name, store.Vec3{}, store.Vec3{}, offset, opts...)
	if err != nil {
		return err
	}
	s.added(id)
	return nil
}

func (s *Shell) cmdAxis(args []string) error {
	args, opts, err := s.splitComponent(args)
	if err != nil {
		return err
	}
	var name string
	if len(args) > 0 {
		name = args[0]
	}
	id, err := s.ws.AddDatumAxis(name, store.Vec3{}, store.Vec3{}, opts...)
	if err != nil {
		return err
	}
	s.added(id)
	return nil
}

func (s *Shell) cmdComponent(args []string) error {
	var name, color string
	if len(args) > 0 {
		name = args[0]
	}
	if len(args) > 1 {
		color = args[1]
	}
	id, err := s.ws.AddComponent(name, color)
	if err != nil {
		return err
	}
	s.added(id)
	return nil
}

func (s *Shell) cmdMate(args []string) error {
	args, opts, err := s.splitComponent(args)
	if err != nil {
		return err
	}
	if len(args) < 3 {
		return errors.WithHint(errors.New("usage: mate <type> <a> <b> [value] [in <component>]"),
			"mate types: "+strings.Join(workspace.MateTypes(), ", "))
	}
	a, err := s.ws.Lookup(args[1])
	if err != nil {
		return err
	}
	b, err := s.ws.Lookup(args[2])
	if err != nil {
		return err
	}
	var value float64
	if len(args) > 3 {
		if value, err = strconv.ParseFloat(args[3], 64); err != nil {
			return errors.Newf("mate value %q is not a number", args[3])
		}
	}
	id, err := s.ws.AddMate(strings.ToLower(args[0]), a, b, value, opts...)
	if err != nil {
		return err
	}
	s.added(id)
	return nil
}

func (s *Shell) cmdFind(args []string) error {
	if len(args) == 0 {
		return errors.WithHint(errors.New("usage: find <expression>"),
			`e.g. find 'kind == "primitive" && !suppressed'`)
	}
	views, err := s.ws.Filter(strings.Join(args, " "))
	if err != nil {
		return err
	}
	return renderTable(s.out, views, nil)
}

// resolve looks up the single <ref> argument of a command.
func (s *Shell) resolve(cmd string, args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.Newf("usage: %s <ref>", cmd)
	}
	return s.ws.Lookup(args[0])
}

func (s *Shell) cmdSuppress(args []string) error {
	id, err := s.resolve("suppress", args)
	if err != nil {
		return err
	}
	if !s.ws.Suppress(id) {
		s.info("%s cannot be suppressed", shortID(id))
		return nil
	}
	s.success("toggled suppression of %s", shortID(id))
	return nil
}

func (s *Shell) cmdDelete(args []string) error {
	id, err := s.resolve("rm", args)
	if err != nil {
		return err
	}
	if s.ws.Delete(id) {
		s.success("deleted %s", shortID(id))
	}
	return nil
}

func (s *Shell) cmdDissolve(args []string) error {
	id, err := s.resolve("dissolve", args)
	if err != nil {
		return err
	}
	if !s.ws.Dissolve(id) {
		s.info("%s is not a component", shortID(id))
		return nil
	}
	s.success("dissolved %s", shortID(id))
	return nil
}

func (s *Shell) cmdSelect(args []string) error {
	if len(args) == 0 {
		s.ws.Select("")
		s.info("selection cleared")
		return nil
	}
	id, err := s.resolve("select", args)
	if err != nil {
		return err
	}
	s.ws.Select(id)
	s.success("selected %s", shortID(id))
	return nil
}

// position parses a sequence position: a number, "#n" or any feature ref.
func (s *Shell) position(arg string) (int, error) {
	if n, err := strconv.Atoi(strings.TrimPrefix(arg, "#")); err == nil {
		return n, nil
	}
	id, err := s.ws.Lookup(arg)
	if err != nil {
		return 0, err
	}
	for _, v := range s.ws.Features() {
		if v.ID == id {
			return v.Index, nil
		}
	}
	return 0, errors.NewInvalidReferenceError("feature %s vanished", shortID(id))
}

func (s *Shell) cmdMove(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: mv <from> <to>")
	}
	from, err := s.position(args[0])
	if err != nil {
		return err
	}
	to, err := s.position(args[1])
	if err != nil {
		return err
	}
	if err := s.ws.Reorder(from, to); err != nil {
		return err
	}
	s.success("moved #%d to #%d", from, to)
	return nil
}

// cursor parses a rollback target; "off" and "end" mean no rollback.
func (s *Shell) cursor(cmd string, args []string) (*int, error) {
	if len(args) != 1 {
		return nil, errors.Newf("usage: %s <index|off>", cmd)
	}
	switch strings.ToLower(args[0]) {
	case "off", "end", "none":
		return nil, nil
	}
	n, err := s.position(args[0])
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Shell) cmdRollback(args []string) error {
	index, err := s.cursor("rollback", args)
	if err != nil {
		return err
	}
	if !s.ws.Rollback(index) {
		s.info("rollback unchanged")
		return nil
	}
	s.success("rollback %s", describeCursor(s.ws.RollbackIndex()))
	return nil
}

func (s *Shell) cmdDrag(args []string) error {
	index, err := s.cursor("drag", args)
	if err != nil {
		return err
	}
	s.ws.DragRollback(index)
	s.info("slider moved to %s", describeCursor(index))
	return nil
}

func describeCursor(index *int) string {
	if index == nil {
		return "off"
	}
	return fmt.Sprintf("at #%d", *index)
}

func (s *Shell) cmdStep(op string, step func() (string, error)) error {
	label, err := step()
	if err != nil {
		return err
	}
	if label == "" {
		s.info("nothing to %s", op)
		return nil
	}
	s.success("%s: %s", op, label)
	return nil
}

func (s *Shell) cmdHistory() error {
	labels := s.ws.UndoLabels()
	if len(labels) == 0 {
		s.info("no undoable actions")
		return nil
	}
	for i, label := range labels {
		fmt.Fprintf(s.out, "  %2d  %s\n", i+1, label)
	}
	return nil
}

func (s *Shell) cmdStatus() error {
	selected := s.ws.Selected()
	if selected == "" {
		selected = "-"
	}
	fmt.Fprintf(s.out, "features:  %d (%d active)\n", s.ws.Len(), len(s.ws.ActiveIDs()))
	fmt.Fprintf(s.out, "rollback:  %s\n", describeCursor(s.ws.RollbackIndex()))
	fmt.Fprintf(s.out, "undo/redo: %v/%v\n", s.ws.CanUndo(), s.ws.CanRedo())
	fmt.Fprintf(s.out, "recompute: %s\n", s.ws.RecomputeState())
	fmt.Fprintf(s.out, "selected:  %s\n", shortID(selected))
	return nil
}

func (s *Shell) cmdCheck() error {
	if err := s.ws.Verify(); err != nil {
		return err
	}
	s.success("all stores round-trip through their snapshots")
	return nil
}

func (s *Shell) added(id string) {
	s.success("added %s", shortID(id))
}

func (s *Shell) success(format string, args ...any) {
	pterm.Success.WithWriter(s.out).Printfln(format, args...)
}

func (s *Shell) info(format string, args ...any) {
	pterm.Info.WithWriter(s.out).Printfln(format, args...)
}

// printError prints err followed by any hints attached to it.
func (s *Shell) printError(err error) {
	pterm.Error.WithWriter(s.out).Println(err.Error())
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(s.out, "  hint: %s\n", hint)
	}
}

var shellCommands = []string{
	"add", "sketch", "plane", "axis", "component", "mate",
	"ls", "tree", "find", "status",
	"suppress", "rm", "mv", "rollback", "drag", "dissolve", "select",
	"undo", "redo", "history", "check", "help", "quit",
}

// complete offers command names, then shapes or mate types.
func complete(line string) []string {
	lower := strings.ToLower(line)
	var candidates []string
	switch {
	case strings.HasPrefix(lower, "add "):
		for _, shape := range workspace.Shapes() {
			candidates = append(candidates, "add "+shape)
		}
	case strings.HasPrefix(lower, "mate "):
		for _, t := range workspace.MateTypes() {
			candidates = append(candidates, "mate "+t)
		}
	default:
		candidates = shellCommands
	}

	var completions []string
	for _, c := range candidates {
		if strings.HasPrefix(c, lower) {
			completions = append(completions, c)
		}
	}
	return completions
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, "Create:")
	fmt.Fprintf(s.out, "  add <shape> [name] [k=v ...] [in <c>]  Add a primitive (%s)\n", strings.Join(workspace.Shapes(), ", "))
	fmt.Fprintln(s.out, "  sketch [name] [plane] [in <c>]         Add a sketch (plane XY, XZ or YZ)")
	fmt.Fprintln(s.out, "  plane [name] [offset] [in <c>]         Add a datum plane")
	fmt.Fprintln(s.out, "  axis [name] [in <c>]                   Add a datum axis")
	fmt.Fprintln(s.out, "  component [name] [color]              Add a component")
	fmt.Fprintln(s.out, "  mate <type> <a> <b> [value] [in <c>]   Constrain two features")
	fmt.Fprintln(s.out, "Inspect:")
	fmt.Fprintln(s.out, "  ls | tree                              Show the feature history")
	fmt.Fprintln(s.out, "  find <expr>                            Filter features, e.g. find '!suppressed'")
	fmt.Fprintln(s.out, "  status | history | check               Session state, undo labels, snapshot check")
	fmt.Fprintln(s.out, "Edit:")
	fmt.Fprintln(s.out, "  suppress <ref>                         Toggle suppression")
	fmt.Fprintln(s.out, "  rm <ref> | dissolve <ref>              Delete a feature, dissolve a component")
	fmt.Fprintln(s.out, "  mv <from> <to>                         Reorder a root-level feature")
	fmt.Fprintln(s.out, "  rollback <n|off> | drag <n|off>        Move the rollback cursor (drag is debounced)")
	fmt.Fprintln(s.out, "  select [ref]                           Select a feature, or clear the selection")
	fmt.Fprintln(s.out, "  undo | redo                            Step through the undo history")
	fmt.Fprintln(s.out, "  quit                                   Leave the shell")
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "<ref> is an id, a unique id prefix, a name or #index.")
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".lathe", "shell_history")
}

func runShell(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	log := logger.Logger.Named("shell")

	p, err := pipeline.FromCommand(cfg.Pipeline.Command, cfg.Pipeline.Timeout(), log.Named("pipeline"))
	if err != nil {
		return err
	}
	m := metrics.New()
	ws := workspace.New(log, workspace.WithConfig(cfg), workspace.WithPipeline(p), workspace.WithMetrics(m))
	defer ws.Close()

	if cfg.Metrics.Address != "" {
		srv := serveMetrics(cfg.Metrics.Address, m, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	if path := am.WatchPath(); path != "" {
		watcher, err := am.NewConfigWatcher(path, log)
		if err != nil {
			log.Warnw("Config hot-reload disabled", logger.FieldFile, path, logger.FieldError, err)
		} else {
			watcher.OnReload(func(c *am.Config) error {
				ws.ApplyConfig(c.Recompute)
				return nil
			})
			watcher.Start()
			defer watcher.Stop()
		}
	}

	return repl(NewShell(ws, cmd.OutOrStdout()))
}

func serveMetrics(addr string, m *metrics.Metrics, log *zap.SugaredLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warnw("Metrics endpoint stopped", "address", addr, logger.FieldError, err)
		}
	}()
	log.Infow("Serving metrics", "address", addr)
	return srv
}

// repl reads lines with liner until quit or EOF.
func repl(sh *Shell) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(complete)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer saveHistory(line)

	fmt.Fprintln(sh.out, "lathe shell - type 'help' for commands")
	for {
		input, err := line.Prompt("lathe> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(sh.out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if err := sh.Exec(input); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			sh.printError(err)
		}
	}
}

func saveHistory(line *liner.State) {
	path := historyFile()
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), am.DefaultDirPermissions); err != nil {
		return
	}
	if f, err := os.Create(path); err == nil {
		_, _ = line.WriteHistory(f)
		f.Close()
	}
}
