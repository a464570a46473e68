package masking

import (
	"fmt"

	"github.com/bimmerbailey/dmask/internal/validate"
)

// Rule applies a Masker to every node a selector matches.
type Rule struct {
	selector string
	masker   Masker
}

// NewRule pairs selector with m.
func NewRule(selector string, m Masker) (Rule, error) {
	if err := validate.First(
		validate.NotEmpty("selector", selector),
		validate.NotNil("masker", m),
	); err != nil {
		return Rule{}, err
	}
	return Rule{selector: selector, masker: m}, nil
}

// Selector returns the path selector.
func (r Rule) Selector() string {
	return r.selector
}

// Masker returns the masker applied to matches.
func (r Rule) Masker() Masker {
	return r.masker
}

// String returns "selector -> masker".
func (r Rule) String() string {
	if r.masker == nil {
		return r.selector
	}
	return fmt.Sprintf("%s -> %s", r.selector, r.masker.Name())
}

func (r Rule) valid() bool {
	return r.selector != "" && r.masker != nil
}
