package program

import (
	"fmt"
	"regexp"
	"strings"
)

// Default identifiers user programs are checked against.
const (
	DefaultNamespace = "karol.userprograms"
	DefaultContract  = "Program"
	DefaultModule    = "karol"
)

var namespaceDirective = regexp.MustCompile(`(?m)^[ \t]*(?:'use namespace[ \t]+([^'"\r\n]*)'|"use namespace[ \t]+([^'"\r\n]*)")`)

// Validator performs the cheap textual checks that run before compilation.
// It does not parse the source; a program that passes may still fail to
// compile.
type Validator struct {
	namespace  string
	contract   string
	module     string
	contractRe *regexp.Regexp
	moduleRe   *regexp.Regexp
}

// NewValidator returns a Validator for the given namespace, contract class
// name and capability module id. Empty arguments select the defaults.
func NewValidator(namespace, contract, module string) *Validator {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if contract == "" {
		contract = DefaultContract
	}
	if module == "" {
		module = DefaultModule
	}
	return &Validator{
		namespace:  namespace,
		contract:   contract,
		module:     module,
		contractRe: regexp.MustCompile(`\bextends\s+(?:[A-Za-z_$][\w$]*\s*\.\s*)?` + regexp.QuoteMeta(contract) + `\b`),
		moduleRe:   regexp.MustCompile(`\brequire\s*\(\s*(['"])` + regexp.QuoteMeta(module) + `['"]\s*\)`),
	}
}

// Namespace returns the namespace programs must declare.
func (v *Validator) Namespace() string { return v.namespace }

// Contract returns the class programs must extend.
func (v *Validator) Contract() string { return v.contract }

// Module returns the capability module id programs must require.
func (v *Validator) Module() string { return v.module }

// Validate checks, in order, that source declares the expected namespace,
// extends the contract class, and requires the capability module. It stops
// at the first failure and returns a *ValidationError holding one
// diagnostic.
func (v *Validator) Validate(source string) error {
	if d, ok := v.check(source); !ok {
		return &ValidationError{Diagnostics: []Diagnostic{d}}
	}
	return nil
}

func (v *Validator) check(source string) (Diagnostic, bool) {
	m := namespaceDirective.FindStringSubmatchIndex(source)
	if m == nil {
		return Diagnostic{
			Kind:    DiagMissingNamespace,
			Message: fmt.Sprintf("missing namespace directive: expected 'use namespace %s';", v.namespace),
		}, false
	}
	lo, hi := m[2], m[3]
	if lo < 0 {
		lo, hi = m[4], m[5]
	}
	name := source[lo:hi]
	if got := strings.TrimSpace(name); got != v.namespace {
		return Diagnostic{
			Kind:    DiagWrongNamespace,
			Message: fmt.Sprintf("namespace %q does not match expected %q", got, v.namespace),
			Line:    lineOf(source, m[0]),
		}, false
	}

	if !v.contractRe.MatchString(source) {
		return Diagnostic{
			Kind:    DiagMissingContract,
			Message: fmt.Sprintf("no class extends %s", v.contract),
		}, false
	}

	if !v.moduleRe.MatchString(source) {
		return Diagnostic{
			Kind:    DiagMissingReference,
			Message: fmt.Sprintf("missing require('%s')", v.module),
		}, false
	}

	return Diagnostic{}, true
}

// lineOf returns the 1-based line containing byte offset off.
func lineOf(source string, off int) int {
	return strings.Count(source[:off], "\n") + 1
}
