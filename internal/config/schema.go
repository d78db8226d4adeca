package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType is the expected type of an option's value.
type OptionType string

const (
	TypeString   OptionType = "string"
	TypeBool     OptionType = "bool"
	TypeInt      OptionType = "int"
	TypeDuration OptionType = "duration"
)

// Option declares a single configuration option.
type Option struct {
	// Key is the option name as written in the file (kebab-case).
	Key         string
	Type        OptionType
	Default     string
	Description string
	// Section is "" for global options, or a command name.
	Section string
	// EnvVar overrides the file value when set.
	EnvVar string
}

// Schema is the set of options karol understands. It drives validation,
// typed lookups, environment overrides and the "config schema" listing.
type Schema struct {
	options   []*Option
	byKey     map[string]*Option
	bySection map[string]map[string]*Option
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{
		byKey:     make(map[string]*Option),
		bySection: make(map[string]map[string]*Option),
	}
}

// Register adds opt, replacing any option with the same section and key.
func (s *Schema) Register(opts ...Option) {
	for _, opt := range opts {
		ref := new(Option)
		*ref = opt
		s.options = append(s.options, ref)
		if opt.Section == "" {
			s.byKey[opt.Key] = ref
			continue
		}
		if s.bySection[opt.Section] == nil {
			s.bySection[opt.Section] = make(map[string]*Option)
		}
		s.bySection[opt.Section][opt.Key] = ref
	}
}

// Lookup returns the option for key in section ("" for global), or nil.
func (s *Schema) Lookup(section, key string) *Option {
	if section == "" {
		return s.byKey[key]
	}
	return s.bySection[section][key]
}

// IsKnown reports whether key may appear in section. Global keys may appear
// in any command section.
func (s *Schema) IsKnown(section, key string) bool {
	if section != "" && s.bySection[section][key] != nil {
		return true
	}
	return s.byKey[key] != nil
}

// Options returns the registered options for section in registration order.
func (s *Schema) Options(section string) []Option {
	var out []Option
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns the sorted names of all command sections.
func (s *Schema) Sections() []string {
	out := make([]string, 0, len(s.bySection))
	for sec := range s.bySection {
		out = append(out, sec)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the effective value of a global option: the environment
// override, then the file value, then the schema default.
func (s *Schema) Resolve(c *Config, key string) string {
	return s.ResolveCommand(c, "", key)
}

// ResolveCommand is Resolve for an option read by a command, consulting the
// command's section before the global value.
func (s *Schema) ResolveCommand(c *Config, command, key string) string {
	opt := s.Lookup(command, key)
	if opt == nil {
		opt = s.Lookup("", key)
	}
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		var v string
		var ok bool
		if command == "" {
			v, ok = c.GetGlobalOption(key)
		} else {
			v, ok = c.GetCommandOption(command, key)
		}
		if ok {
			return v
		}
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ValidateConfig checks c against s and returns a sorted list of issues.
func ValidateConfig(c *Config, s *Schema) []string {
	var issues []string

	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}

	for section, opts := range c.Commands {
		for key, value := range opts {
			if !s.IsKnown(section, key) {
				issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
				continue
			}
			opt := s.Lookup(section, key)
			if opt == nil {
				opt = s.Lookup("", key)
			}
			if err := validateType(opt.Type, value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}

	sort.Strings(issues)
	return issues
}

func validateType(t OptionType, value string) error {
	switch t {
	case TypeString, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("expected duration, got %q", value)
		}
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	return nil
}

// FormatHelp lists every option, globals first, then each section.
func (s *Schema) FormatHelp() string {
	var b strings.Builder
	if globals := s.Options(""); len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}
	for _, sec := range s.Sections() {
		fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range s.Options(sec) {
			writeOptionHelp(&b, o)
		}
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o Option) {
	fmt.Fprintf(b, "  %-22s %s", o.Key, o.Description)
	var parts []string
	if o.Type != "" && o.Type != TypeString {
		parts = append(parts, "type: "+string(o.Type))
	}
	if o.Default != "" {
		parts = append(parts, "default: "+o.Default)
	}
	if o.EnvVar != "" {
		parts = append(parts, "env: "+o.EnvVar)
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

// Option keys.
const (
	KeyNamespace        = "namespace"
	KeyContract         = "contract"
	KeyCapabilityModule = "capability-module"
	KeyRunTimeout       = "run-timeout"
	KeyWorkspaceDir     = "workspace-dir"
	KeyWorkspaceMaxAge  = "workspace-max-age"
	KeySweepInterval    = "sweep-interval"
	KeyAssignmentsDir   = "assignments-dir"
	KeySolutionsDir     = "solutions-dir"
	KeyLogLevel         = "log-level"
	KeyLogFile          = "log-file"
	KeyLogMaxSizeMB     = "log-max-size-mb"
	KeyLogMaxFiles      = "log-max-files"
	KeyLogBufferSize    = "log-buffer-size"
	KeyFormat           = "format"
)

// DefaultSchema returns every option karol understands.
func DefaultSchema() *Schema {
	s := NewSchema()
	s.Register(
		Option{Key: KeyNamespace, Default: "karol.userprograms", Description: "Namespace user programs must declare"},
		Option{Key: KeyContract, Default: "Program", Description: "Class user programs must extend"},
		Option{Key: KeyCapabilityModule, Default: "karol", Description: "Module id user programs require"},
		Option{Key: KeyRunTimeout, Type: TypeDuration, Default: "10s", Description: "Wall-clock limit per run, 0 disables", EnvVar: "KAROL_RUN_TIMEOUT"},
		Option{Key: KeyWorkspaceDir, Description: "Directory run workspaces are created in (default: system temp)", EnvVar: "KAROL_WORKSPACE_DIR"},
		Option{Key: KeyWorkspaceMaxAge, Type: TypeDuration, Default: "1h", Description: "Age after which an unlocked workspace is swept"},
		Option{Key: KeySweepInterval, Type: TypeDuration, Default: "10m", Description: "Interval between background sweeps in serve mode, 0 sweeps once"},
		Option{Key: KeyAssignmentsDir, Description: "Directory of assignment files (default: <config dir>/karol/assignments)", EnvVar: "KAROL_ASSIGNMENTS_DIR"},
		Option{Key: KeySolutionsDir, Description: "Directory solutions are saved in (default: <config dir>/karol/solutions)", EnvVar: "KAROL_SOLUTIONS_DIR"},
		Option{Key: KeyLogLevel, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "KAROL_LOG_LEVEL"},
		Option{Key: KeyLogFile, Description: "Write logs to this file instead of stderr", EnvVar: "KAROL_LOG_FILE"},
		Option{Key: KeyLogMaxSizeMB, Type: TypeInt, Default: "10", Description: "Log file size in MB before rotation"},
		Option{Key: KeyLogMaxFiles, Type: TypeInt, Default: "5", Description: "Rotated log files to keep"},
		Option{Key: KeyLogBufferSize, Type: TypeInt, Default: "1000", Description: "In-memory log history size (entries)"},

		Option{Key: KeyFormat, Section: "run", Default: "text", Description: "Run report format: text or json"},
		Option{Key: KeyFormat, Section: "assignments", Default: "text", Description: "Assignment listing format: text or json"},
	)
	return s
}
