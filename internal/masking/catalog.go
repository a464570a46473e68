package masking

import (
	"strings"
	"unicode/utf8"

	"github.com/bimmerbailey/dmask/internal/document"
	"github.com/bimmerbailey/dmask/internal/validate"
)

// Placeholders returned by the ISO temporal maskers.
const (
	ISOOffsetDate     = "2000-01-01+01:00"
	ISOOffsetTime     = "00:00:00+01:00"
	ISOOffsetDateTime = "2000-01-01T00:00:00+01:00"
	ISOLocalDate      = "2000-01-01"
	ISOLocalTime      = "00:00"
	ISOLocalDateTime  = "2000-01-01T00:00:00"
	ISOInstant        = "2000-01-01T00:00:00Z"
)

type replaceNumber struct {
	info
	value document.Num
}

// NewReplaceNumber returns a masker that replaces numbers with replacement.
// An empty replacement means DefaultReplacementNumber.
func NewReplaceNumber(name string, order int, replacement document.Num) (Masker, error) {
	in, err := newInfo(name, order, document.KindNumber)
	if err != nil {
		return nil, err
	}
	if replacement == "" {
		replacement = DefaultReplacementNumber
	}
	if !document.ValidNumber(replacement) {
		return nil, validate.Errorf("replacement", "%q is not a number", string(replacement))
	}
	return replaceNumber{info: in, value: replacement}, nil
}

func (m replaceNumber) Mask(*document.Node) *document.Node {
	return document.Number(m.value)
}

type constant struct {
	info
	value string
}

// NewReplaceString returns a masker that replaces strings with replacement.
func NewReplaceString(name string, order int, replacement string) (Masker, error) {
	return NewConstant(name, order, replacement)
}

// NewConstant returns a masker that replaces strings with value.
func NewConstant(name string, order int, value string) (Masker, error) {
	in, err := newInfo(name, order, document.KindString)
	if err != nil {
		return nil, err
	}
	return constant{info: in, value: value}, nil
}

func (m constant) Mask(*document.Node) *document.Node {
	return document.String(m.value)
}

// MiddleOptions configures NewReplaceMiddle. Indexes count characters, not
// bytes. The zero Replacement means DefaultReplacementChar.
type MiddleOptions struct {
	From        int
	To          int
	Replacement rune
	Excluded    []rune
}

type replaceMiddle struct {
	info
	from     int
	to       int
	repl     rune
	excluded map[rune]struct{}
}

// NewReplaceMiddle returns a masker that replaces the characters of a string
// in [From, To) with the replacement character, keeping excluded characters
// and everything outside the range. Strings no longer than From are left
// unchanged.
func NewReplaceMiddle(name string, order int, opts MiddleOptions) (Masker, error) {
	in, err := newInfo(name, order, document.KindString)
	if err != nil {
		return nil, err
	}
	if err := validate.First(
		validate.True("from", opts.From >= 0, "must not be negative"),
		validate.True("from", opts.From <= opts.To, "must not be greater than to"),
	); err != nil {
		return nil, err
	}

	m := replaceMiddle{
		info:     in,
		from:     opts.From,
		to:       opts.To,
		repl:     opts.Replacement,
		excluded: make(map[rune]struct{}, len(opts.Excluded)),
	}
	if m.repl == 0 {
		m.repl = DefaultReplacementChar
	}
	for _, r := range opts.Excluded {
		m.excluded[r] = struct{}{}
	}
	return m, nil
}

func (m replaceMiddle) Mask(v *document.Node) *document.Node {
	s, _ := v.Str()
	return document.String(m.replace(s))
}

func (m replaceMiddle) replace(s string) string {
	chars := []rune(s)
	if m.from >= len(chars) {
		return s
	}
	end := min(len(chars), m.to)
	for i := m.from; i < end; i++ {
		if _, keep := m.excluded[chars[i]]; !keep {
			chars[i] = m.repl
		}
	}
	return string(chars)
}

// NewExceptFirst returns a masker that keeps the first character of a
// string and replaces the rest.
func NewExceptFirst(name string, order int, replacement rune) (Masker, error) {
	return NewReplaceMiddle(name, order, MiddleOptions{From: 1, To: ToEnd, Replacement: replacement})
}

type email struct {
	info
	repl rune
}

// NewEmail returns a masker that replaces every character before the first
// "@" of a string. Strings without "@" are left unchanged.
func NewEmail(name string, order int, replacement rune) (Masker, error) {
	in, err := newInfo(name, order, document.KindString)
	if err != nil {
		return nil, err
	}
	if replacement == 0 {
		replacement = DefaultReplacementChar
	}
	return email{info: in, repl: replacement}, nil
}

func (m email) Mask(v *document.Node) *document.Node {
	s, _ := v.Str()
	at := strings.IndexByte(s, '@')
	if at < 0 {
		return document.String(s)
	}
	local := utf8.RuneCountInString(s[:at])
	return document.String(strings.Repeat(string(m.repl), local) + s[at:])
}

type funcMasker struct {
	info
	fn func(*document.Node) *document.Node
}

// NewFunc returns a masker backed by fn. fn receives only values of kind
// and must not modify them.
func NewFunc(name string, order int, kind document.Kind, fn func(*document.Node) *document.Node) (Masker, error) {
	in, err := newInfo(name, order, kind)
	if err != nil {
		return nil, err
	}
	if err := validate.NotNil("fn", fn); err != nil {
		return nil, err
	}
	return funcMasker{info: in, fn: fn}, nil
}

func (m funcMasker) Mask(v *document.Node) *document.Node {
	return m.fn(v)
}

// Builtins returns the maskers registered by NewDefaultBuilder.
func Builtins() []Masker {
	return []Masker{
		Remove(),
		must(NewReplaceNumber("number", 0, DefaultReplacementNumber)),
		must(NewReplaceString("secret", 0, DefaultReplacementString)),
		must(NewReplaceString("replace-string", 0, DefaultReplacementString)),
		must(NewEmail("email", 0, DefaultReplacementChar)),
		must(NewExceptFirst("except-first-character", 0, DefaultReplacementChar)),
		must(NewConstant("iso-offset-date", 0, ISOOffsetDate)),
		must(NewConstant("iso-offset-time", 0, ISOOffsetTime)),
		must(NewConstant("iso-offset-date-time", 0, ISOOffsetDateTime)),
		must(NewConstant("iso-local-date", 0, ISOLocalDate)),
		must(NewConstant("iso-local-time", 0, ISOLocalTime)),
		must(NewConstant("iso-local-date-time", 0, ISOLocalDateTime)),
		must(NewConstant("iso-instant", 0, ISOInstant)),
		must(NewRedact("redact", 0, nil)),
	}
}

func must(m Masker, err error) Masker {
	if err != nil {
		panic(err)
	}
	return m
}
