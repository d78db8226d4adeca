package program

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"

	"github.com/joeycumines/karol/internal/logging"
)

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Compiler turns validated source into a CompiledModule: it materializes the
// source in a fresh workspace, parses and compiles it, loads it into an
// isolated runtime, and checks the entry class against the contract.
type Compiler struct {
	root      string
	namespace string
	contract  string
	module    string
	logger    *slog.Logger
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithCompilerLogger sets the logger for stage and console records.
func WithCompilerLogger(l *slog.Logger) CompilerOption {
	return func(c *Compiler) { c.logger = l }
}

// NewCompiler returns a Compiler creating workspaces under root (the system
// temp directory if empty) and enforcing v's namespace, contract and module.
func NewCompiler(root string, v *Validator, opts ...CompilerOption) (*Compiler, error) {
	if root == "" {
		root = os.TempDir()
	}
	if v == nil {
		v = NewValidator("", "", "")
	}
	if !identifier.MatchString(v.Contract()) {
		return nil, fmt.Errorf("contract %q is not a valid class name", v.Contract())
	}
	c := &Compiler{
		root:      root,
		namespace: v.Namespace(),
		contract:  v.Contract(),
		module:    v.Module(),
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Root returns the directory workspaces are created in.
func (c *Compiler) Root() string { return c.root }

// Compile builds a CompiledModule from source. entry names the class to
// load; when empty it is derived from the first class declaration that
// extends the contract class. Evaluating the module's top-level code is
// interrupted when ctx is done.
//
// On error no workspace is left behind. On success the caller owns the
// module and must Close it.
func (c *Compiler) Compile(ctx context.Context, source, entry string) (*CompiledModule, error) {
	if entry != "" && !identifier.MatchString(entry) {
		return nil, &ContractError{Entry: entry, Reason: "entry is not a valid class name"}
	}

	ws, err := newWorkspace(c.root)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if ok {
			return
		}
		if cerr := ws.close(); cerr != nil {
			c.logger.Warn("workspace cleanup failed", "workspace", ws.dir, "error", cerr)
		}
	}()
	mod, err := c.build(ctx, ws, source, entry)
	if err != nil {
		return nil, err
	}
	ok = true
	return mod, nil
}

func (c *Compiler) build(ctx context.Context, ws *workspace, source, entry string) (*CompiledModule, error) {
	logger := c.logger.With("workspace", ws.dir)

	file, err := ws.writeSource(entryStem(entry), source)
	if err != nil {
		return nil, err
	}
	data, err := ws.load(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}

	prg, diags := parseSource(file, string(data))
	if diags == nil {
		diags = compileDiagnostics(prg)
	}
	if diags != nil {
		logger.Debug("compilation failed", "diagnostics", len(diags))
		return nil, &CompilationError{Diagnostics: diags}
	}
	if entry == "" {
		entry = findEntryClass(prg, c.contract)
		if entry == "" {
			return nil, &ContractError{Entry: c.namespace, Reason: fmt.Sprintf("no class declaration extends %s", c.contract)}
		}
		// Stack frames name the file, so it follows the entry class.
		if file, err = ws.rename(file, entry); err != nil {
			return nil, err
		}
	}
	logger = logger.With("entry", entry)
	logger.Debug("compiled")

	sb := newSandbox(ws, c.contract, c.module, logger)
	ctor, err := sb.load(ctx, file, entry)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded")

	return &CompiledModule{
		name:    c.namespace + "." + entry,
		entry:   entry,
		file:    file,
		sandbox: sb,
		ctor:    ctor,
		ws:      ws,
		logger:  logger,
	}, nil
}

func entryStem(entry string) string {
	if entry == "" {
		return "program"
	}
	return entry
}

// parseSource parses src, returning nil diagnostics on success.
func parseSource(name, src string) (*ast.Program, []Diagnostic) {
	prg, err := parser.ParseFile(nil, name, src, 0)
	if err == nil {
		return prg, nil
	}
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		diags := make([]Diagnostic, 0, len(list))
		for _, e := range list {
			diags = append(diags, Diagnostic{
				Kind:    DiagSyntax,
				Message: e.Message,
				Line:    e.Position.Line,
				Column:  e.Position.Column,
			})
		}
		return nil, diags
	}
	return nil, []Diagnostic{{Kind: DiagSyntax, Message: err.Error()}}
}

// compileDiagnostics runs the goja compiler over prg to surface the errors
// the parser accepts, such as duplicate lexical declarations.
func compileDiagnostics(prg *ast.Program) []Diagnostic {
	_, err := goja.CompileAST(prg, false)
	if err == nil {
		return nil
	}
	d := Diagnostic{Kind: DiagSyntax, Message: err.Error()}
	var syntaxErr *goja.CompilerSyntaxError
	if errors.As(err, &syntaxErr) {
		d.Message = syntaxErr.Message
		if syntaxErr.File != nil {
			pos := syntaxErr.File.Position(syntaxErr.Offset)
			d.Line, d.Column = pos.Line, pos.Column
		}
	}
	return []Diagnostic{d}
}

// findEntryClass returns the name of the first top-level class whose
// superclass is contract, either bare or as a member access such as
// karol.Program.
func findEntryClass(prg *ast.Program, contract string) string {
	for _, stmt := range prg.Body {
		switch s := stmt.(type) {
		case *ast.ClassDeclaration:
			if name := classEntry(s.Class, "", contract); name != "" {
				return name
			}
		case *ast.LexicalDeclaration:
			if name := bindingEntry(s.List, contract); name != "" {
				return name
			}
		case *ast.VariableStatement:
			if name := bindingEntry(s.List, contract); name != "" {
				return name
			}
		}
	}
	return ""
}

func bindingEntry(list []*ast.Binding, contract string) string {
	for _, b := range list {
		cls, ok := b.Initializer.(*ast.ClassLiteral)
		if !ok {
			continue
		}
		var bound string
		if id, ok := b.Target.(*ast.Identifier); ok {
			bound = id.Name.String()
		}
		if name := classEntry(cls, bound, contract); name != "" {
			return name
		}
	}
	return ""
}

func classEntry(cls *ast.ClassLiteral, bound, contract string) string {
	if cls == nil || !extendsContract(cls.SuperClass, contract) {
		return ""
	}
	if bound != "" {
		return bound
	}
	if cls.Name != nil {
		return cls.Name.Name.String()
	}
	return ""
}

func extendsContract(super ast.Expression, contract string) bool {
	switch e := super.(type) {
	case *ast.Identifier:
		return e.Name.String() == contract
	case *ast.DotExpression:
		return e.Identifier.Name.String() == contract
	}
	return false
}
