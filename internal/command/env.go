package command

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeycumines/karol/internal/assignment"
	"github.com/joeycumines/karol/internal/config"
	"github.com/joeycumines/karol/internal/grading"
	"github.com/joeycumines/karol/internal/logging"
	"github.com/joeycumines/karol/internal/program"
	"github.com/joeycumines/karol/internal/storage"
)

// Env is the state shared by the commands that touch programs or storage.
type Env struct {
	Config *config.Config
	// ConfigPath is where Config was read from, and where config set writes.
	ConfigPath string
	Schema     *config.Schema
	// Stdin is read when a command is given "-" as a file argument.
	Stdin   io.Reader
	Version string
}

func (e *Env) schema() *config.Schema {
	if e.Schema == nil {
		e.Schema = config.DefaultSchema()
	}
	return e.Schema
}

func (e *Env) settings() (*config.Settings, error) {
	cfg := e.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return e.schema().Settings(cfg)
}

// option resolves a command-scoped option, falling back to the global value
// and the schema default.
func (e *Env) option(command, key string) string {
	return e.schema().ResolveCommand(e.Config, command, key)
}

// openLogger builds the logger for one command invocation. Records go to the
// configured log file when there is one, otherwise to stderr. When quiet is
// set, stderr only receives warnings and errors; the returned history keeps
// the configured level regardless.
func openLogger(s *config.Settings, stderr io.Writer, quiet bool) (*slog.Logger, *logging.Handler, func(), error) {
	level, err := logging.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	closer := func() {}

	var next slog.Handler
	if s.LogFile != "" {
		f, err := logging.OpenRotatingFile(s.LogFile, s.LogMaxSizeMB, s.LogMaxFiles)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open log file %s: %w", s.LogFile, err)
		}
		closer = func() { _ = f.Close() }
		next = slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})
	} else if stderr != nil {
		out := level
		if quiet {
			out = max(level, slog.LevelWarn)
		}
		next = slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: out})
	}

	size := s.LogBufferSize
	if size <= 0 {
		size = 1000
	}
	h := logging.NewHandler(level, size, next)
	return slog.New(h), h, closer, nil
}

func newRunner(s *config.Settings, logger *slog.Logger) (*program.Runner, error) {
	v := program.NewValidator(s.Namespace, s.Contract, s.CapabilityModule)
	c, err := program.NewCompiler(s.WorkspaceDir, v, program.WithCompilerLogger(logger))
	if err != nil {
		return nil, err
	}
	return program.NewRunner(v, c,
		program.WithTimeout(s.RunTimeout),
		program.WithRunnerLogger(logger),
		program.WithExecutor(program.NewExecutor(program.WithExecutorLogger(logger))),
	), nil
}

func newGrader(logger *slog.Logger) *grading.Grader {
	return grading.NewGrader(grading.WithLogger(logger))
}

func newSweeper(s *config.Settings) *storage.Sweeper {
	return &storage.Sweeper{Root: s.WorkspaceDir, MaxAge: s.WorkspaceMaxAge}
}

// findAssignment resolves name as an assignment file when it names one,
// otherwise as an assignment name in dir. An empty name is the sandbox.
func findAssignment(dir, name string) (*assignment.Assignment, error) {
	if name == "" {
		return assignment.Default(), nil
	}
	if _, ok := assignment.FormatOf(name); ok {
		if _, err := os.Stat(name); err == nil {
			return assignment.Load(name)
		}
	}
	return assignment.Find(dir, name)
}

// readSource reads a program from path, or from stdin when path is "-".
func (e *Env) readSource(path string) (string, error) {
	if path == "-" {
		if e.Stdin == nil {
			return "", errors.New("no standard input available")
		}
		data, err := io.ReadAll(e.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read standard input: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to read program: %w", err)
	}
	return string(data), nil
}

func checkFormat(format string) error {
	switch strings.ToLower(format) {
	case "text", "json":
		return nil
	}
	return fmt.Errorf("unknown format %q: want text or json", format)
}
