// Package config provides configuration types and defaults for csvsource.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/zjrosen/csvsource/internal/csvparse"
	"github.com/zjrosen/csvsource/internal/log"
	"github.com/zjrosen/csvsource/internal/tracing"
)

// Config holds all configuration options for csvsource.
type Config struct {
	Parser  ParserConfig    `mapstructure:"parser" yaml:"parser"`
	Output  OutputConfig    `mapstructure:"output" yaml:"output"`
	Log     LogConfig       `mapstructure:"log" yaml:"log"`
	Tracing tracing.Config  `mapstructure:"tracing" yaml:"tracing"`
	Watch   WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Flags   map[string]bool `mapstructure:"flags" yaml:"flags"`
}

// ParserConfig holds the component-wide parser defaults. Each character
// setting is a single character; "\t" and "tab" both mean a tab.
type ParserConfig struct {
	Delimiter      string `mapstructure:"delimiter" yaml:"delimiter"`
	Quote          string `mapstructure:"quote" yaml:"quote"`
	Escape         string `mapstructure:"escape" yaml:"escape"`   // empty follows quote
	Comment        string `mapstructure:"comment" yaml:"comment"` // empty disables comments
	Trim           bool   `mapstructure:"trim" yaml:"trim"`
	SkipEmptyLines bool   `mapstructure:"skip_empty_lines" yaml:"skip_empty_lines"`
}

// OutputConfig controls how the CLI prints result sets.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"` // "json" (default) or "yaml"
	Indent int    `mapstructure:"indent" yaml:"indent"`
}

// LogConfig controls the debug log.
type LogConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`   // empty logs to stderr
	Level   string `mapstructure:"level" yaml:"level"` // debug, info, warn, error
}

// WatchConfig controls `csvsource watch`.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// ParseChar converts a single-character setting to a rune. An empty string
// yields 0, which selects the parser default.
func ParseChar(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("expected a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// Options converts the parser section to csvparse options.
func (p ParserConfig) Options() (csvparse.Options, error) {
	opts := csvparse.Options{
		Trim:           p.Trim,
		SkipEmptyLines: p.SkipEmptyLines,
	}

	fields := []struct {
		name  string
		value string
		dst   *rune
	}{
		{"delimiter", p.Delimiter, &opts.Delimiter},
		{"quote", p.Quote, &opts.Quote},
		{"escape", p.Escape, &opts.Escape},
		{"comment", p.Comment, &opts.Comment},
	}
	for _, f := range fields {
		r, err := ParseChar(f.value)
		if err != nil {
			return csvparse.Options{}, fmt.Errorf("parser.%s: %w", f.name, err)
		}
		*f.dst = r
	}

	return opts, nil
}

// DefaultTracesFilePath returns ~/.config/csvsource/traces/traces.jsonl,
// or an empty string if the home directory is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "csvsource", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tr := tracing.DefaultConfig()
	tr.FilePath = DefaultTracesFilePath()

	return Config{
		Parser: ParserConfig{
			Delimiter:      ",",
			Quote:          `"`,
			Trim:           true,
			SkipEmptyLines: true,
		},
		Output: OutputConfig{
			Format: "json",
			Indent: 2,
		},
		Log: LogConfig{
			Level: "debug",
		},
		Tracing: tr,
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
		Flags: map[string]bool{},
	}
}

// Validate checks every section and returns the first problem found.
func Validate(cfg Config) error {
	if err := ValidateParser(cfg.Parser); err != nil {
		return err
	}
	if err := ValidateOutput(cfg.Output); err != nil {
		return err
	}
	if cfg.Log.Level != "" {
		if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}
	if err := ValidateTracing(cfg.Tracing); err != nil {
		return err
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %v", cfg.Watch.Debounce)
	}
	return nil
}

// ValidateParser checks that every character setting is a single character
// and that the characters do not collide.
func ValidateParser(p ParserConfig) error {
	opts, err := p.Options()
	if err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("parser: %w", err)
	}
	return nil
}

// ValidateOutput checks the output section.
func ValidateOutput(o OutputConfig) error {
	switch o.Format {
	case "", "json", "yaml":
	default:
		return fmt.Errorf("output.format must be \"json\" or \"yaml\", got %q", o.Format)
	}
	if o.Indent < 0 || o.Indent > 8 {
		return fmt.Errorf("output.indent must be between 0 and 8, got %d", o.Indent)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tr tracing.Config) error {
	if tr.SampleRate < 0.0 || tr.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tr.SampleRate)
	}

	if tr.Exporter != "" {
		switch tr.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tr.Exporter)
		}
	}

	// Path requirements only matter once spans are exported.
	if tr.Enabled {
		if tr.Exporter == "file" && tr.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tr.Exporter == "otlp" && tr.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# csvsource configuration

# Parser defaults applied to every registered payload.
# A registration (or --delimiter/--quote/--escape/--comment) overrides
# individual characters.
parser:
  delimiter: ","
  quote: '"'
  # escape: "\\"       # default: follows quote, i.e. a doubled quote
  # comment: "#"       # lines starting with this are ignored (default: off)
  trim: true            # trim spaces and tabs around unquoted fields
  skip_empty_lines: true

# Result output for 'csvsource query'
output:
  format: json          # json or yaml
  indent: 2

# Debug log (also enabled with --debug or CSVSOURCE_DEBUG=1)
log:
  enabled: false
  # path: ~/.config/csvsource/debug.log   # default: stderr
  level: debug          # debug, info, warn, error

# Distributed tracing for query execution and parsing
tracing:
  enabled: false
  exporter: file        # none, file, stdout, otlp
  # file_path: ~/.config/csvsource/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0
  service_name: csvsource

# 'csvsource watch' settings
watch:
  debounce: 100ms

# Feature flags
flags:
  cache-parse-failures: false   # keep a failed parse instead of retrying it
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
