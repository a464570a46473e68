package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bimmerbailey/dmask/internal/config"
	"github.com/bimmerbailey/dmask/internal/document"
	"github.com/bimmerbailey/dmask/internal/masking"
	"github.com/bimmerbailey/dmask/internal/output"
)

// maskingSetup is the masking configuration resolved into a builder.
type maskingSetup struct {
	builder *masking.Builder
	rules   map[string][]string
	enabled bool
	indent  string
	format  document.Format
}

// newMaskingSetup registers the built-in and configured maskers and adds
// the configured rules, followed by extraRules given as name=selector.
func newMaskingSetup(cfg *config.Config, extraRules []string, logger *slog.Logger) (*maskingSetup, error) {
	format, err := document.ParseFormat(cfg.Masking.InputFormat)
	if err != nil {
		return nil, err
	}

	b := masking.NewDefaultBuilder(masking.WithLogger(logger))
	for _, name := range cfg.Masking.MaskerNames() {
		m, err := masking.FromDefinition(name, cfg.Masking.Maskers[name])
		if err != nil {
			return nil, fmt.Errorf("masking.maskers.%s: %w", name, err)
		}
		b.Masker(m)
	}

	rules := make(map[string][]string, len(cfg.Masking.Rules))
	for name, selectors := range cfg.Masking.Rules {
		rules[name] = slices.Clone(selectors)
	}
	for _, r := range extraRules {
		name, selector, ok := strings.Cut(r, "=")
		name, selector = strings.TrimSpace(name), strings.TrimSpace(selector)
		if !ok || name == "" || selector == "" {
			return nil, fmt.Errorf("invalid --rule %q (use name=selector)", r)
		}
		rules[name] = append(rules[name], selector)
	}

	for _, name := range slices.Sorted(maps.Keys(rules)) {
		b.Deferred(name, rules[name]...)
	}

	return &maskingSetup{
		builder: b,
		rules:   rules,
		enabled: cfg.Masking.Enabled,
		indent:  cfg.Masking.Indent,
		format:  format,
	}, nil
}

// pipeline builds the masking pipeline. It returns nil when masking is
// disabled.
func (s *maskingSetup) pipeline() (*masking.Pipeline, error) {
	if !s.enabled {
		return nil, nil
	}
	p, err := s.builder.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid masking configuration: %w", err)
	}
	return p, nil
}

// maskers describes the registered maskers and their selectors.
func (s *maskingSetup) maskers() []output.MaskerInfo {
	registered := s.builder.Maskers()
	infos := make([]output.MaskerInfo, 0, len(registered))
	for _, m := range registered {
		infos = append(infos, output.NewMaskerInfo(m, s.rules[m.Name()]))
	}
	return infos
}

// formatFor returns the input format of path, honoring --input-format.
func (s *maskingSetup) formatFor(cmd *cobra.Command, path string) (document.Format, error) {
	format := s.format
	if flag := cmd.Flags().Lookup("input-format"); flag != nil && flag.Value.String() != "" {
		f, err := document.ParseFormat(flag.Value.String())
		if err != nil {
			return "", err
		}
		format = f
	}
	if path == config.Stdin && format == document.FormatAuto {
		return document.FormatJSON, nil
	}
	return format.Resolve(path), nil
}

// mask masks data with p, or returns it unchanged when p is nil.
func (s *maskingSetup) mask(p *masking.Pipeline, format document.Format, data []byte) ([]byte, masking.Report, error) {
	var m masking.FormatMasker = masking.Passthrough{}
	if p != nil {
		m = p
	}
	return m.MaskAs(format, s.indent, data)
}

// setupFromConfig loads the configuration, logger and masking setup shared
// by the commands.
func setupFromConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, *maskingSetup, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	var extra []string
	if flag := cmd.Flags().Lookup("rule"); flag != nil {
		extra, _ = cmd.Flags().GetStringArray("rule")
	}

	setup, err := newMaskingSetup(cfg, extra, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, setup, nil
}

// readInput reads a file argument; "-" reads the command input.
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == config.Stdin {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// inputFiles expands file arguments. No arguments means standard input.
func inputFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		return []string{config.Stdin}, nil
	}
	return config.ExpandGlobs(args)
}

func addMaskingFlags(cmd *cobra.Command) {
	cmd.Flags().String("input-format", "", "input format (auto, json, yaml, ndjson); default from config")
	cmd.Flags().StringArray("rule", nil, "extra rule as masker=selector (repeatable)")
}
