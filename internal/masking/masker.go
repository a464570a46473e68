// Package masking applies ordered (selector, masker) rules to documents.
//
// A Masker is a named, ordered, kind-guarded transformation of a single
// value. A Rule pairs a selector with a Masker. A Pipeline holds rules
// sorted by masker order and applies them through a PathEngine; the removal
// masker always runs first. Pipelines are built with a Builder, which
// resolves maskers referenced by name only when Build is called.
//
// Maskers, rules and pipelines are immutable and safe for concurrent use.
// A Builder is not.
package masking

import (
	"math"

	"github.com/bimmerbailey/dmask/internal/document"
	"github.com/bimmerbailey/dmask/internal/validate"
)

// Masker transforms a value of its accepted kind.
type Masker interface {
	// Name identifies the masker in a builder's name table.
	Name() string
	// Order sets the position of rules using this masker in a pipeline.
	// Lower runs first; equal orders keep registration order.
	Order() int
	// Kind is the accepted value kind. Values of other kinds are skipped.
	Kind() document.Kind
	// Mask returns the replacement for v. It is only called with values
	// whose kind is accepted and must not modify v.
	Mask(v *document.Node) *document.Node
}

const (
	// RemoveOrder is the order reserved for the removal masker. Removal
	// rules run before every other rule, including rules whose masker also
	// uses this order.
	RemoveOrder = math.MinInt

	// ToEnd as MiddleOptions.To masks through the end of the string.
	ToEnd = math.MaxInt

	// RemoveName is the name of the removal masker.
	RemoveName = "remove"
)

// Default replacements used when a masker is configured without one.
const (
	DefaultReplacementChar   = '*'
	DefaultReplacementString = "******"
	DefaultReplacementNumber = document.Num("0")
)

// ErrConfiguration is wrapped by every construction-time failure.
var ErrConfiguration = validate.ErrInvalid

type removeMasker struct{}

var remove Masker = removeMasker{}

// Remove returns the removal masker. Rules using it delete every matched
// node instead of replacing it.
func Remove() Masker {
	return remove
}

// IsRemove reports whether m is the removal masker.
func IsRemove(m Masker) bool {
	_, ok := m.(removeMasker)
	return ok
}

func (removeMasker) Name() string                         { return RemoveName }
func (removeMasker) Order() int                           { return RemoveOrder }
func (removeMasker) Kind() document.Kind                  { return document.KindAny }
func (removeMasker) Mask(v *document.Node) *document.Node { return v }

// info carries the identity shared by every catalog masker.
type info struct {
	name  string
	order int
	kind  document.Kind
}

func newInfo(name string, order int, kind document.Kind) (info, error) {
	if err := validate.KebabCase("name", name); err != nil {
		return info{}, err
	}
	return info{name: name, order: order, kind: kind}, nil
}

func (i info) Name() string        { return i.name }
func (i info) Order() int          { return i.order }
func (i info) Kind() document.Kind { return i.kind }
