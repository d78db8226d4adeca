// Package mcp exposes the simulator as an MCP (Model Context Protocol)
// server: validating and running programs, listing assignments, and managing
// saved solutions.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joeycumines/karol/internal/grading"
	"github.com/joeycumines/karol/internal/logging"
	"github.com/joeycumines/karol/internal/program"
	"github.com/joeycumines/karol/internal/storage"
)

// Config holds server configuration.
type Config struct {
	Name    string
	Version string

	Runner         *program.Runner
	Grader         *grading.Grader
	AssignmentsDir string
	Solutions      *storage.SolutionStore

	// Sweeper, if set, runs in the background for the life of Run.
	Sweeper *storage.SweepScheduler
	// Logs, if set, backs the karol_logs tool.
	Logs   *logging.Handler
	Logger *slog.Logger
}

// Server wraps the MCP SDK server.
type Server struct {
	server *sdk.Server
	cfg    Config
	logger *slog.Logger
}

// NewServer creates a server with every karol tool registered.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil || cfg.Runner == nil {
		return nil, errors.New("mcp: a runner is required")
	}
	c := *cfg
	if c.Name == "" {
		c.Name = "karol"
	}
	if c.Grader == nil {
		c.Grader = grading.NewGrader()
	}
	logger := c.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Server{
		server: sdk.NewServer(&sdk.Implementation{Name: c.Name, Version: c.Version}, nil),
		cfg:    c,
		logger: logger.With("component", "mcp"),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until the client disconnects, ctx is cancelled, or
// the process receives SIGINT or SIGTERM.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.serve(ctx, &sdk.StdioTransport{})
}

func (s *Server) serve(ctx context.Context, t sdk.Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if s.cfg.Sweeper != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.cfg.Sweeper.Run(ctx)
		}()
	}

	s.logger.Info("serving", "name", s.cfg.Name, "version", s.cfg.Version)
	err := s.server.Run(ctx, t)
	cancel()
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
