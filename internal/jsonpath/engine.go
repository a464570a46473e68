package jsonpath

import (
	"sync"

	"github.com/bimmerbailey/dmask/internal/document"
)

// Engine evaluates selector strings, caching compiled paths. The zero value
// is ready to use and an Engine is safe for concurrent use.
type Engine struct {
	cache sync.Map // string -> *Path
}

// NewEngine returns an empty Engine.
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) compile(selector string) (*Path, error) {
	if p, ok := e.cache.Load(selector); ok {
		return p.(*Path), nil
	}
	p, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	actual, _ := e.cache.LoadOrStore(selector, p)
	return actual.(*Path), nil
}

// Validate reports whether selector compiles.
func (e *Engine) Validate(selector string) error {
	_, err := e.compile(selector)
	return err
}

// Resolve returns handles for every node selector matches in root. An
// invalid selector matches nothing.
func (e *Engine) Resolve(root *document.Node, selector string) []document.Handle {
	p, err := e.compile(selector)
	if err != nil {
		return nil
	}
	return p.Resolve(root)
}

// Delete removes every node selector matches in root and returns the count.
func (e *Engine) Delete(root *document.Node, selector string) int {
	p, err := e.compile(selector)
	if err != nil {
		return 0
	}
	return p.Delete(root)
}
