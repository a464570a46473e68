package masking

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/bimmerbailey/dmask/internal/document"
	"github.com/bimmerbailey/dmask/internal/validate"
)

// DocumentMasker masks serialized documents.
type DocumentMasker interface {
	Mask(data []byte) ([]byte, error)
}

// Passthrough is the DocumentMasker used when masking is disabled. It
// returns documents unchanged.
type Passthrough struct{}

// Mask returns data.
func (Passthrough) Mask(data []byte) ([]byte, error) {
	return data, nil
}

// Pipeline applies rules to documents in masker order. It is immutable and
// safe for concurrent use on independent documents.
type Pipeline struct {
	rules  []Rule
	engine PathEngine
	codec  document.Codec
	logger *slog.Logger
}

// NewPipeline returns a Pipeline for rules. It fails when rules is empty or
// a selector is rejected by the path engine.
func NewPipeline(rules []Rule, opts ...Option) (*Pipeline, error) {
	return newPipeline(rules, newOptions(opts))
}

func newPipeline(rules []Rule, o options) (*Pipeline, error) {
	if err := validate.NotEmptySlice("rules", rules); err != nil {
		return nil, err
	}

	var errs []error
	for i, r := range rules {
		if !r.valid() {
			errs = append(errs, validate.Errorf("rules", "entry %d is not a constructed rule", i))
			continue
		}
		if err := o.engine.Validate(r.selector); err != nil {
			errs = append(errs, fmt.Errorf("%w: selector %q: %w", ErrConfiguration, r.selector, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, compareRules)

	return &Pipeline{
		rules:  sorted,
		engine: o.engine,
		codec:  o.codec,
		logger: o.logger,
	}, nil
}

// compareRules orders removal first, then by masker order.
func compareRules(a, b Rule) int {
	ar, br := IsRemove(a.masker), IsRemove(b.masker)
	switch {
	case ar && !br:
		return -1
	case br && !ar:
		return 1
	}
	return cmp.Compare(a.masker.Order(), b.masker.Order())
}

// Rules returns the rules in application order.
func (p *Pipeline) Rules() []Rule {
	return slices.Clone(p.rules)
}

// Len returns the number of rules.
func (p *Pipeline) Len() int {
	return len(p.rules)
}

// Codec returns the codec used by Mask.
func (p *Pipeline) Codec() document.Codec {
	return p.codec
}

// WithCodec returns a copy of p that reads and writes documents with c.
func (p *Pipeline) WithCodec(c document.Codec) *Pipeline {
	cp := *p
	if c != nil {
		cp.codec = c
	}
	return &cp
}

// MaskDocument applies every rule to root in place and reports what each
// rule did. Each rule sees the document as left by the rules before it.
// Matches of a kind the masker does not accept are left unchanged.
func (p *Pipeline) MaskDocument(root *document.Node) Report {
	var report Report
	if root == nil {
		return report
	}

	for _, r := range p.rules {
		rr := RuleReport{Selector: r.selector, Masker: r.masker.Name()}

		if IsRemove(r.masker) {
			rr.Removed = p.engine.Delete(root, r.selector)
			rr.Matched = rr.Removed
			report.add(rr)
			continue
		}

		for _, h := range p.engine.Resolve(root, r.selector) {
			rr.Matched++
			v, ok := h.Value().Match(r.masker.Kind())
			if !ok {
				rr.Skipped++
				continue
			}
			masked := r.masker.Mask(v)
			if masked == nil {
				masked = document.Null()
			}
			h.Replace(masked)
			rr.Replaced++
		}
		report.add(rr)
	}

	p.logger.Debug("masked document",
		"rules", len(p.rules),
		"matched", report.Matched,
		"replaced", report.Replaced,
		"removed", report.Removed,
		"skipped", report.Skipped,
	)
	return report
}

// Mask decodes data with the pipeline codec, masks it and encodes the
// result. Errors come only from malformed input.
func (p *Pipeline) Mask(data []byte) ([]byte, error) {
	out, _, err := p.MaskWithReport(data)
	return out, err
}

// MaskWithReport is Mask that also returns the report.
func (p *Pipeline) MaskWithReport(data []byte) ([]byte, Report, error) {
	root, err := p.codec.Decode(data)
	if err != nil {
		return nil, Report{}, fmt.Errorf("decode %s document: %w", p.codec.Name(), err)
	}

	report := p.MaskDocument(root)

	out, err := p.codec.Encode(root)
	if err != nil {
		return nil, report, fmt.Errorf("encode %s document: %w", p.codec.Name(), err)
	}
	return out, report, nil
}

// MaskString is Mask for strings.
func (p *Pipeline) MaskString(s string) (string, error) {
	out, err := p.Mask([]byte(s))
	if err != nil {
		return "", err
	}
	return string(out), nil
}
