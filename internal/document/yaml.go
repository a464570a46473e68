package document

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// maxYAMLDepth bounds recursion through nested collections and aliases.
const maxYAMLDepth = 10000

// minYAMLNodes is the node budget for small inputs; larger inputs get
// yamlNodesPerByte nodes per input byte.
const (
	minYAMLNodes     = 1_000_000
	yamlNodesPerByte = 100
)

var (
	errYAMLTooDeep  = errors.New("yaml document nested too deeply")
	errYAMLTooLarge = errors.New("yaml document expands to too many nodes (excessive aliasing)")
)

// YAMLCodec reads and writes YAML documents. Indent is the number of spaces
// per nesting level; zero means the yaml.v3 default of four.
type YAMLCodec struct {
	Indent int
}

// Name returns "yaml".
func (c YAMLCodec) Name() string {
	return string(FormatYAML)
}

// Decode parses the first YAML document in data. An empty input decodes to
// null. Aliases are expanded and merge keys are applied, within a node
// budget proportional to the input size.
func (c YAMLCodec) Decode(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return Null(), nil
	}
	d := &yamlDecoder{budget: max(minYAMLNodes, yamlNodesPerByte*len(data))}
	return d.decode(&doc, 0)
}

type yamlDecoder struct {
	budget int
}

func (d *yamlDecoder) decode(n *yaml.Node, depth int) (*Node, error) {
	if depth > maxYAMLDepth {
		return nil, errYAMLTooDeep
	}
	if n.Kind != yaml.DocumentNode && n.Kind != yaml.AliasNode {
		if d.budget--; d.budget < 0 {
			return nil, errYAMLTooLarge
		}
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return d.decode(n.Content[0], depth+1)
	case yaml.AliasNode:
		return d.decode(n.Alias, depth+1)
	case yaml.MappingNode:
		return d.decodeMapping(n, depth)
	case yaml.SequenceNode:
		arr := Array()
		for _, item := range n.Content {
			value, err := d.decode(item, depth+1)
			if err != nil {
				return nil, err
			}
			arr.items = append(arr.items, value)
		}
		return arr, nil
	case yaml.ScalarNode:
		return fromYAMLScalar(n), nil
	default:
		return nil, fmt.Errorf("unsupported yaml node kind %d", n.Kind)
	}
}

// decodeMapping builds an object from n. Keys written in n win over keys
// brought in by "<<" merge keys; among merged mappings the first one wins.
func (d *yamlDecoder) decodeMapping(n *yaml.Node, depth int) (*Node, error) {
	explicit := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		if key := yamlKey(n.Content[i]); !isMergeKey(key) {
			explicit[key.Value] = true
		}
	}

	obj := Object()
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := yamlKey(n.Content[i])
		if !isMergeKey(key) {
			value, err := d.decode(n.Content[i+1], depth+1)
			if err != nil {
				return nil, err
			}
			obj.fields.Set(key.Value, value)
			continue
		}

		sources := []*yaml.Node{n.Content[i+1]}
		if v := yamlKey(n.Content[i+1]); v.Kind == yaml.SequenceNode {
			sources = v.Content
		}
		for _, src := range sources {
			merged, err := d.decode(src, depth+1)
			if err != nil {
				return nil, err
			}
			if merged.kind != KindObject {
				return nil, fmt.Errorf("yaml merge key at line %d must refer to a mapping", key.Line)
			}
			for _, k := range merged.fields.keys {
				if _, ok := obj.fields.Get(k); ok || explicit[k] {
					continue
				}
				obj.fields.Set(k, merged.fields.values[k])
			}
		}
	}
	return obj, nil
}

// yamlKey resolves an alias to the node it refers to.
func yamlKey(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.AliasNode {
		return n.Alias
	}
	return n
}

func isMergeKey(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!merge"
}

func fromYAMLScalar(n *yaml.Node) *Node {
	switch n.ShortTag() {
	case "!!null":
		return Null()
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err == nil {
			return Bool(b)
		}
	case "!!int":
		if ValidNumber(Num(n.Value)) {
			return Number(Num(n.Value))
		}
		var i int64
		if err := n.Decode(&i); err == nil {
			return Int(i)
		}
	case "!!float":
		if ValidNumber(Num(n.Value)) {
			return Number(Num(n.Value))
		}
		var f float64
		if err := n.Decode(&f); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return Float(f)
		}
	}
	return String(n.Value)
}

// Encode writes n as a YAML document, keeping object key order.
func (c YAMLCodec) Encode(n *Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	if c.Indent > 0 {
		enc.SetIndent(c.Indent)
	}
	if err := enc.Encode(toYAML(n)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toYAML(n *Node) *yaml.Node {
	if n == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}

	switch n.kind {
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(n.b)}
	case KindNumber:
		tag := "!!float"
		if _, err := n.num.Int64(); err == nil {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: string(n.num)}
	case KindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: n.str}
	case KindArray:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range n.items {
			seq.Content = append(seq.Content, toYAML(item))
		}
		return seq
	case KindObject:
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, key := range n.fields.keys {
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				toYAML(n.fields.values[key]),
			)
		}
		return m
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}
