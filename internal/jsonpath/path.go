// Package jsonpath evaluates JSONPath selectors against document trees.
//
// Supported syntax: the root "$", member access ".name" and "['name']",
// wildcards ".*" and "[*]", recursive descent "..name" and "..*", array
// indexes "[n]" (negative counts from the end), slices "[start:end]" and
// unions "[0,2]" or "['a','b']". A selector without a leading "$" is
// relative to the root.
package jsonpath

import (
	"sort"

	"github.com/bimmerbailey/dmask/internal/document"
)

// Path is a compiled selector. It is immutable and safe for concurrent use.
type Path struct {
	expr     string
	segments []segment
}

// Compile parses a selector.
func Compile(expr string) (*Path, error) {
	segments, err := parse(expr)
	if err != nil {
		return nil, err
	}
	return &Path{expr: expr, segments: segments}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string) *Path {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source expression.
func (p *Path) String() string {
	return p.expr
}

// location is a matched node together with where it lives.
type location struct {
	node   *document.Node
	parent *document.Node
	key    string
	index  int
}

func (l location) isRoot() bool {
	return l.parent == nil
}

func (l location) handle() document.Handle {
	switch {
	case l.isRoot():
		return document.RootHandle(l.node)
	case l.parent.Kind() == document.KindArray:
		return document.ItemHandle(l.parent, l.index)
	default:
		return document.FieldHandle(l.parent, l.key)
	}
}

// Resolve returns a handle for every node matched in root, in document
// order. No match yields an empty slice.
func (p *Path) Resolve(root *document.Node) []document.Handle {
	locs := p.locate(root)
	handles := make([]document.Handle, 0, len(locs))
	for _, l := range locs {
		handles = append(handles, l.handle())
	}
	return handles
}

// Delete removes every matched node from its parent and returns how many
// were removed. The root is never removed.
func (p *Path) Delete(root *document.Node) int {
	type itemKey struct {
		array *document.Node
		index int
	}
	type fieldKey struct {
		object *document.Node
		key    string
	}

	var (
		arrays   []*document.Node
		indexes  = make(map[*document.Node][]int)
		seenItem = make(map[itemKey]bool)
		seenKey  = make(map[fieldKey]bool)
		removed  int
	)

	for _, l := range p.locate(root) {
		if l.isRoot() {
			continue
		}
		if l.parent.Kind() == document.KindArray {
			k := itemKey{l.parent, l.index}
			if seenItem[k] {
				continue
			}
			seenItem[k] = true
			if _, ok := indexes[l.parent]; !ok {
				arrays = append(arrays, l.parent)
			}
			indexes[l.parent] = append(indexes[l.parent], l.index)
			continue
		}

		k := fieldKey{l.parent, l.key}
		if seenKey[k] {
			continue
		}
		seenKey[k] = true
		if l.parent.Fields().Delete(l.key) {
			removed++
		}
	}

	// Highest index first so earlier removals don't shift later ones.
	for _, arr := range arrays {
		idx := indexes[arr]
		sort.Sort(sort.Reverse(sort.IntSlice(idx)))
		items := arr.Items()
		for _, i := range idx {
			if i < len(items) {
				items = append(items[:i], items[i+1:]...)
				removed++
			}
		}
		arr.SetItems(items)
	}
	return removed
}

func (p *Path) locate(root *document.Node) []location {
	if root == nil {
		return nil
	}
	current := []location{{node: root}}
	for _, seg := range p.segments {
		var next []location
		for _, loc := range current {
			if seg.descendant {
				for _, d := range descendants(loc) {
					next = appendChildren(next, d.node, seg.selectors)
				}
				continue
			}
			next = appendChildren(next, loc.node, seg.selectors)
		}
		current = next
		if len(current) == 0 {
			break
		}
	}
	return current
}

// descendants returns loc and every node below it, depth first.
func descendants(loc location) []location {
	out := []location{loc}
	n := loc.node
	switch n.Kind() {
	case document.KindArray:
		for i, item := range n.Items() {
			out = append(out, descendants(location{node: item, parent: n, index: i})...)
		}
	case document.KindObject:
		for _, key := range n.Fields().Keys() {
			v, _ := n.Fields().Get(key)
			out = append(out, descendants(location{node: v, parent: n, key: key})...)
		}
	}
	return out
}

func appendChildren(out []location, n *document.Node, sels []selector) []location {
	for _, sel := range sels {
		switch n.Kind() {
		case document.KindObject:
			out = appendFields(out, n, sel)
		case document.KindArray:
			out = appendItems(out, n, sel)
		}
	}
	return out
}

func appendFields(out []location, n *document.Node, sel selector) []location {
	fields := n.Fields()
	switch sel.kind {
	case selectName:
		if v, ok := fields.Get(sel.name); ok {
			out = append(out, location{node: v, parent: n, key: sel.name})
		}
	case selectWildcard:
		for _, key := range fields.Keys() {
			v, _ := fields.Get(key)
			out = append(out, location{node: v, parent: n, key: key})
		}
	}
	return out
}

func appendItems(out []location, n *document.Node, sel selector) []location {
	items := n.Items()
	size := len(items)
	switch sel.kind {
	case selectWildcard:
		for i, item := range items {
			out = append(out, location{node: item, parent: n, index: i})
		}
	case selectIndex:
		i := sel.index
		if i < 0 {
			i += size
		}
		if i >= 0 && i < size {
			out = append(out, location{node: items[i], parent: n, index: i})
		}
	case selectSlice:
		start, end := 0, size
		if sel.hasStart {
			start = clampIndex(sel.start, size)
		}
		if sel.hasEnd {
			end = clampIndex(sel.end, size)
		}
		for i := start; i < end; i++ {
			out = append(out, location{node: items[i], parent: n, index: i})
		}
	}
	return out
}

func clampIndex(i, size int) int {
	if i < 0 {
		i += size
	}
	return max(0, min(i, size))
}
