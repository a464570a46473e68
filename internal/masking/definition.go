package masking

import (
	"unicode/utf8"

	"github.com/bimmerbailey/dmask/internal/document"
	"github.com/bimmerbailey/dmask/internal/validate"
)

// Masker types accepted by FromDefinition.
const (
	TypeReplaceString = "replace-string"
	TypeReplaceNumber = "replace-number"
	TypeReplaceMiddle = "replace-middle"
	TypeEmail         = "email"
	TypeExceptFirst   = "except-first-character"
	TypeConstant      = "constant"
	TypeRedact        = "redact"
)

// Definition declares a masker in configuration.
type Definition struct {
	Type  string `mapstructure:"type"`
	Order int    `mapstructure:"order"`

	// Replacement is the replacement string, number literal or single
	// character, depending on Type.
	Replacement string `mapstructure:"replacement"`

	// Value is the placeholder returned by constant maskers.
	Value string `mapstructure:"value"`

	// From, To and Excluded configure replace-middle. A nil To masks to the
	// end of the string.
	From     int    `mapstructure:"from"`
	To       *int   `mapstructure:"to"`
	Excluded string `mapstructure:"excluded"`

	// Patterns names the redaction patterns used by redact.
	Patterns []string `mapstructure:"patterns"`
}

// Types returns the masker types FromDefinition understands.
func Types() []string {
	return []string{
		TypeReplaceString,
		TypeReplaceNumber,
		TypeReplaceMiddle,
		TypeEmail,
		TypeExceptFirst,
		TypeConstant,
		TypeRedact,
	}
}

// FromDefinition builds the masker described by d and names it name.
func FromDefinition(name string, d Definition) (Masker, error) {
	switch d.Type {
	case TypeReplaceString:
		replacement := d.Replacement
		if replacement == "" {
			replacement = DefaultReplacementString
		}
		return NewReplaceString(name, d.Order, replacement)
	case TypeReplaceNumber:
		return NewReplaceNumber(name, d.Order, document.Num(d.Replacement))
	case TypeReplaceMiddle:
		repl, err := replacementChar(d.Replacement)
		if err != nil {
			return nil, err
		}
		to := ToEnd
		if d.To != nil {
			to = *d.To
		}
		return NewReplaceMiddle(name, d.Order, MiddleOptions{
			From:        d.From,
			To:          to,
			Replacement: repl,
			Excluded:    []rune(d.Excluded),
		})
	case TypeEmail:
		repl, err := replacementChar(d.Replacement)
		if err != nil {
			return nil, err
		}
		return NewEmail(name, d.Order, repl)
	case TypeExceptFirst:
		repl, err := replacementChar(d.Replacement)
		if err != nil {
			return nil, err
		}
		return NewExceptFirst(name, d.Order, repl)
	case TypeConstant:
		return NewConstant(name, d.Order, d.Value)
	case TypeRedact:
		return NewRedact(name, d.Order, d.Patterns)
	case "":
		return nil, validate.Errorf("type", "of masker %q must not be empty", name)
	default:
		return nil, validate.Errorf("type", "%q of masker %q is unknown", d.Type, name)
	}
}

func replacementChar(s string) (rune, error) {
	if s == "" {
		return DefaultReplacementChar, nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, validate.Errorf("replacement", "%q must be a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
