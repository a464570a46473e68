package masking

import (
	"errors"
	"log/slog"
	"maps"
	"slices"

	"github.com/bimmerbailey/dmask/internal/document"
	"github.com/bimmerbailey/dmask/internal/jsonpath"
	"github.com/bimmerbailey/dmask/internal/validate"
)

// ErrBuilderSpent is returned by Build on a builder that was already built.
var ErrBuilderSpent = errors.New("builder already built")

// PathEngine locates nodes in a document by selector.
type PathEngine interface {
	// Validate reports whether selector can be evaluated.
	Validate(selector string) error
	// Resolve returns handles for every match, possibly none.
	Resolve(root *document.Node, selector string) []document.Handle
	// Delete removes every match and returns how many were removed.
	Delete(root *document.Node, selector string) int
}

// Option configures a Builder or Pipeline.
type Option func(*options)

type options struct {
	engine PathEngine
	codec  document.Codec
	logger *slog.Logger
}

func newOptions(opts []Option) options {
	o := options{
		engine: jsonpath.NewEngine(),
		codec:  document.JSONCodec{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithEngine sets the path engine. The default is a jsonpath.Engine.
func WithEngine(e PathEngine) Option {
	return func(o *options) {
		if e != nil {
			o.engine = e
		}
	}
}

// WithCodec sets the codec used by Pipeline.Mask. The default is compact
// JSON.
func WithCodec(c document.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

type deferredGroup struct {
	name      string
	selectors []string
}

// Builder collects maskers and rules and produces a Pipeline. Rules may
// name a masker that is registered later; names are resolved by Build.
//
// Registration methods return the builder for chaining. Errors are kept and
// reported by Build.
type Builder struct {
	opts     options
	maskers  map[string]Masker
	names    []string
	rules    []Rule
	deferred []deferredGroup
	errs     []error
	spent    bool
}

// NewBuilder returns an empty Builder.
func NewBuilder(opts ...Option) *Builder {
	return &Builder{
		opts:    newOptions(opts),
		maskers: make(map[string]Masker),
	}
}

// NewDefaultBuilder returns a Builder with Builtins registered.
func NewDefaultBuilder(opts ...Option) *Builder {
	b := NewBuilder(opts...)
	for _, m := range Builtins() {
		b.Masker(m)
	}
	return b
}

// Masker registers m under its name, replacing any masker registered under
// the same name. RemoveName is reserved for the removal masker.
func (b *Builder) Masker(m Masker) *Builder {
	if err := validate.NotNil("masker", m); err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	name := m.Name()
	if name == RemoveName && !IsRemove(m) {
		b.errs = append(b.errs, validate.Errorf("masker", "%q is reserved for the removal masker", name))
		return b
	}
	if _, ok := b.maskers[name]; !ok {
		b.names = append(b.names, name)
	}
	b.maskers[name] = m
	return b
}

// Rule adds a rule applying m to selector.
func (b *Builder) Rule(selector string, m Masker) *Builder {
	r, err := NewRule(selector, m)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.rules = append(b.rules, r)
	return b
}

// RuleFor adds one rule per selector, all applying m.
func (b *Builder) RuleFor(m Masker, selectors ...string) *Builder {
	if err := validate.NotEmptySlice("selectors", selectors); err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	for _, s := range selectors {
		b.Rule(s, m)
	}
	return b
}

// Deferred adds rules applying the masker registered as name to each
// selector. The name is looked up when Build is called.
func (b *Builder) Deferred(name string, selectors ...string) *Builder {
	if err := validate.First(
		validate.NotEmpty("masker name", name),
		validate.NotEmptySlice("selectors", selectors),
	); err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.deferred = append(b.deferred, deferredGroup{name: name, selectors: slices.Clone(selectors)})
	return b
}

// DeferredGroups is Deferred for several selector groups at once.
func (b *Builder) DeferredGroups(name string, groups ...[]string) *Builder {
	var selectors []string
	for _, g := range groups {
		selectors = append(selectors, g...)
	}
	return b.Deferred(name, selectors...)
}

// Maskers returns the registered maskers in registration order.
func (b *Builder) Maskers() []Masker {
	out := make([]Masker, 0, len(b.names))
	for _, name := range b.names {
		out = append(out, b.maskers[name])
	}
	return out
}

// Build resolves deferred rules and returns the Pipeline. It fails when a
// deferred rule names an unregistered masker, a selector is invalid, or no
// rules were added. A builder can be built once.
func (b *Builder) Build() (*Pipeline, error) {
	if b.spent {
		return nil, ErrBuilderSpent
	}
	b.spent = true

	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	// The name table is frozen before any deferred group is expanded.
	table := maps.Clone(b.maskers)
	rules := slices.Clone(b.rules)

	var errs []error
	for _, g := range b.deferred {
		m, ok := table[g.name]
		if !ok {
			errs = append(errs, validate.Errorf("masker", "%q is not registered", g.name))
			continue
		}
		for _, s := range g.selectors {
			r, err := NewRule(s, m)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			rules = append(rules, r)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	p, err := newPipeline(rules, b.opts)
	if err != nil {
		return nil, err
	}
	b.opts.logger.Debug("built masking pipeline",
		"rules", p.Len(),
		"maskers", len(table),
		"codec", p.codec.Name(),
	)
	return p, nil
}
