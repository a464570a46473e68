// Package document provides the tree model masking operates on and the
// codecs that move documents in and out of it.
//
// A Node is a tagged union over the JSON value kinds. Objects keep the key
// order of the input so a masked document reads like the original.
package document

import (
	"strconv"
)

// Kind identifies the variant held by a Node.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject

	// KindAny is an accepted-kind tag only; no Node has it.
	KindAny Kind = 255
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindAny:
		return "any"
	default:
		return "unknown"
	}
}

// Accepts reports whether a value of kind other may be handed to something
// that declared k as its accepted kind.
func (k Kind) Accepts(other Kind) bool {
	return k == KindAny || k == other
}

// Num is the literal text of a number, kept verbatim from the input.
type Num string

// Int64 parses the literal as an integer.
func (n Num) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// Float64 parses the literal as a float.
func (n Num) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// String returns the literal.
func (n Num) String() string {
	return string(n)
}

// Node is a single value in a document tree.
type Node struct {
	kind   Kind
	b      bool
	num    Num
	str    string
	items  []*Node
	fields *Fields
}

// Null returns a null node.
func Null() *Node {
	return &Node{kind: KindNull}
}

// Bool returns a boolean node.
func Bool(b bool) *Node {
	return &Node{kind: KindBool, b: b}
}

// Number returns a number node holding the literal n.
func Number(n Num) *Node {
	return &Node{kind: KindNumber, num: n}
}

// Int returns a number node for i.
func Int(i int64) *Node {
	return Number(Num(strconv.FormatInt(i, 10)))
}

// Float returns a number node for f in its shortest representation.
func Float(f float64) *Node {
	return Number(Num(strconv.FormatFloat(f, 'g', -1, 64)))
}

// String returns a string node.
func String(s string) *Node {
	return &Node{kind: KindString, str: s}
}

// Array returns an array node with the given items.
func Array(items ...*Node) *Node {
	if items == nil {
		items = []*Node{}
	}
	return &Node{kind: KindArray, items: items}
}

// Object returns an empty object node.
func Object() *Node {
	return &Node{kind: KindObject, fields: newFields()}
}

// Kind returns the variant held by n.
func (n *Node) Kind() Kind {
	return n.kind
}

// Match returns n when its kind is accepted by k.
func (n *Node) Match(k Kind) (*Node, bool) {
	if n == nil || !k.Accepts(n.kind) {
		return nil, false
	}
	return n, true
}

// Str returns the string value when n is a string.
func (n *Node) Str() (string, bool) {
	if n.kind != KindString {
		return "", false
	}
	return n.str, true
}

// Num returns the number literal when n is a number.
func (n *Node) Num() (Num, bool) {
	if n.kind != KindNumber {
		return "", false
	}
	return n.num, true
}

// Boolean returns the boolean value when n is a boolean.
func (n *Node) Boolean() (bool, bool) {
	if n.kind != KindBool {
		return false, false
	}
	return n.b, true
}

// Items returns the elements of an array node, or nil.
func (n *Node) Items() []*Node {
	if n.kind != KindArray {
		return nil
	}
	return n.items
}

// SetItems replaces the elements of an array node.
func (n *Node) SetItems(items []*Node) {
	if n.kind == KindArray {
		n.items = items
	}
}

// Append adds items to an array node.
func (n *Node) Append(items ...*Node) *Node {
	if n.kind == KindArray {
		n.items = append(n.items, items...)
	}
	return n
}

// Fields returns the fields of an object node, or nil.
func (n *Node) Fields() *Fields {
	if n.kind != KindObject {
		return nil
	}
	return n.fields
}

// Set adds or replaces a field of an object node and returns n.
func (n *Node) Set(key string, value *Node) *Node {
	if n.kind == KindObject {
		n.fields.Set(key, value)
	}
	return n
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	switch n.kind {
	case KindArray:
		c.items = make([]*Node, len(n.items))
		for i, item := range n.items {
			c.items[i] = item.Clone()
		}
	case KindObject:
		c.fields = newFields()
		for _, key := range n.fields.keys {
			c.fields.Set(key, n.fields.values[key].Clone())
		}
	}
	return &c
}

// Equal reports whether n and other hold the same value. Object
// comparison ignores key order.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.kind != other.kind {
		return false
	}
	switch n.kind {
	case KindNull:
		return true
	case KindBool:
		return n.b == other.b
	case KindNumber:
		return n.num == other.num
	case KindString:
		return n.str == other.str
	case KindArray:
		if len(n.items) != len(other.items) {
			return false
		}
		for i := range n.items {
			if !n.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if n.fields.Len() != other.fields.Len() {
			return false
		}
		for _, key := range n.fields.keys {
			v, ok := other.fields.Get(key)
			if !ok || !n.fields.values[key].Equal(v) {
				return false
			}
		}
		return true
	}
	return false
}

// replaceWith overwrites n in place with the contents of other.
func (n *Node) replaceWith(other *Node) {
	*n = *other.Clone()
}

// Fields is an ordered set of object members.
type Fields struct {
	keys   []string
	values map[string]*Node
}

func newFields() *Fields {
	return &Fields{values: make(map[string]*Node)}
}

// Len returns the number of fields.
func (f *Fields) Len() int {
	return len(f.keys)
}

// Keys returns the field names in document order.
func (f *Fields) Keys() []string {
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Get returns the value stored under key.
func (f *Fields) Get(key string) (*Node, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Set stores value under key. New keys are appended, existing keys keep
// their position.
func (f *Fields) Set(key string, value *Node) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Delete removes key and reports whether it was present.
func (f *Fields) Delete(key string) bool {
	if _, ok := f.values[key]; !ok {
		return false
	}
	delete(f.values, key)
	for i, k := range f.keys {
		if k == key {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
	return true
}

// Handle is a mutable reference to a node located inside a document.
type Handle interface {
	// Value returns the node currently stored at the location.
	Value() *Node
	// Replace stores n at the location.
	Replace(n *Node)
}

// RootHandle returns a Handle for the document root. Replacing the root
// overwrites the root node in place, so callers holding the root pointer
// observe the change.
func RootHandle(root *Node) Handle {
	return rootHandle{root: root}
}

type rootHandle struct {
	root *Node
}

func (h rootHandle) Value() *Node    { return h.root }
func (h rootHandle) Replace(n *Node) { h.root.replaceWith(n) }

// FieldHandle returns a Handle for the member key of object.
func FieldHandle(object *Node, key string) Handle {
	return fieldHandle{object: object, key: key}
}

type fieldHandle struct {
	object *Node
	key    string
}

func (h fieldHandle) Value() *Node {
	v, _ := h.object.fields.Get(h.key)
	return v
}

func (h fieldHandle) Replace(n *Node) {
	h.object.fields.Set(h.key, n)
}

// ItemHandle returns a Handle for element index of array.
func ItemHandle(array *Node, index int) Handle {
	return itemHandle{array: array, index: index}
}

type itemHandle struct {
	array *Node
	index int
}

func (h itemHandle) Value() *Node {
	if h.index < 0 || h.index >= len(h.array.items) {
		return nil
	}
	return h.array.items[h.index]
}

func (h itemHandle) Replace(n *Node) {
	if h.index >= 0 && h.index < len(h.array.items) {
		h.array.items[h.index] = n
	}
}
