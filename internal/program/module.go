package program

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/dop251/goja"
)

// ErrModuleClosed is the cause of an ExecutionError for a module used after
// Close.
var ErrModuleClosed = errors.New("module closed")

// CompiledModule is a program loaded into its own isolated runtime, backed by
// a private workspace. It must be closed when no longer needed.
type CompiledModule struct {
	name  string
	entry string
	file  string

	mu      sync.Mutex
	sandbox *sandbox
	ctor    *goja.Object
	ws      *workspace
	logger  *slog.Logger
}

// Name returns the fully-qualified name, namespace.Class.
func (m *CompiledModule) Name() string { return m.name }

// Entry returns the entry class name.
func (m *CompiledModule) Entry() string { return m.entry }

// Workspace returns the workspace directory. It no longer exists after Close.
func (m *CompiledModule) Workspace() string { return m.ws.dir }

// Console returns the console lines written so far, and how many were
// dropped after the transcript limit was reached.
func (m *CompiledModule) Console() ([]ConsoleLine, int) {
	m.mu.Lock()
	sb := m.sandbox
	m.mu.Unlock()
	if sb == nil {
		return nil, 0
	}
	return sb.console.transcript()
}

// acquire returns the sandbox and constructor, or false once closed.
func (m *CompiledModule) acquire() (*sandbox, *goja.Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sandbox == nil {
		return nil, nil, false
	}
	return m.sandbox, m.ctor, true
}

// Close drops the runtime, releases the workspace lock and removes the
// workspace. Failures are logged and swallowed. Close is idempotent.
func (m *CompiledModule) Close() error {
	m.mu.Lock()
	m.sandbox = nil
	m.ctor = nil
	m.mu.Unlock()

	if err := m.ws.close(); err != nil {
		m.logger.Warn("workspace cleanup failed", "error", err)
	}
	return nil
}
