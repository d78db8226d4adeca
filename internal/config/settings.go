package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Settings is the fully resolved, typed configuration.
type Settings struct {
	Namespace        string
	Contract         string
	CapabilityModule string
	RunTimeout       time.Duration
	WorkspaceDir     string
	WorkspaceMaxAge  time.Duration
	SweepInterval    time.Duration
	AssignmentsDir   string
	SolutionsDir     string
	LogLevel         string
	LogFile          string
	LogMaxSizeMB     int
	LogMaxFiles      int
	LogBufferSize    int
}

// Settings applies environment overrides and defaults from s to c. Directory
// defaults that depend on the host are filled in here. A value that does not
// parse as its declared type is an error.
func (s *Schema) Settings(c *Config) (*Settings, error) {
	var errs []error
	str := func(key string) string { return s.Resolve(c, key) }
	dur := func(key string) time.Duration {
		v := str(key)
		if v == "" {
			return 0
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	num := func(key string) int {
		v := str(key)
		if v == "" {
			return 0
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return n
	}

	out := &Settings{
		Namespace:        str(KeyNamespace),
		Contract:         str(KeyContract),
		CapabilityModule: str(KeyCapabilityModule),
		RunTimeout:       dur(KeyRunTimeout),
		WorkspaceDir:     str(KeyWorkspaceDir),
		WorkspaceMaxAge:  dur(KeyWorkspaceMaxAge),
		SweepInterval:    dur(KeySweepInterval),
		AssignmentsDir:   str(KeyAssignmentsDir),
		SolutionsDir:     str(KeySolutionsDir),
		LogLevel:         str(KeyLogLevel),
		LogFile:          str(KeyLogFile),
		LogMaxSizeMB:     num(KeyLogMaxSizeMB),
		LogMaxFiles:      num(KeyLogMaxFiles),
		LogBufferSize:    num(KeyLogBufferSize),
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	if out.RunTimeout < 0 {
		return nil, fmt.Errorf("invalid configuration: %s must not be negative", KeyRunTimeout)
	}

	if out.WorkspaceDir == "" {
		out.WorkspaceDir = os.TempDir()
	}
	if out.AssignmentsDir == "" || out.SolutionsDir == "" {
		data, err := DataDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate data directory: %w", err)
		}
		if out.AssignmentsDir == "" {
			out.AssignmentsDir = filepath.Join(data, "assignments")
		}
		if out.SolutionsDir == "" {
			out.SolutionsDir = filepath.Join(data, "solutions")
		}
	}
	return out, nil
}
