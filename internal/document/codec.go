package document

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Codec converts between serialized documents and node trees.
type Codec interface {
	Decode(data []byte) (*Node, error)
	Encode(n *Node) ([]byte, error)
	Name() string
}

// Format represents a serialized document format.
type Format string

const (
	FormatAuto   Format = "auto"
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatNDJSON Format = "ndjson"
)

// ParseFormat converts a string to a Format. An empty string is auto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "ndjson", "jsonl":
		return FormatNDJSON, nil
	default:
		return "", fmt.Errorf("unknown document format %q", s)
	}
}

// DetectFormat guesses the format of a file from its extension, falling back
// to JSON.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".ndjson", ".jsonl", ".log":
		return FormatNDJSON
	default:
		return FormatJSON
	}
}

// Resolve returns f, or the format detected from path when f is auto.
func (f Format) Resolve(path string) Format {
	if f == FormatAuto || f == "" {
		return DetectFormat(path)
	}
	return f
}

// CodecFor returns the codec for a format. NDJSON lines are single JSON
// values, so NDJSON maps to a compact JSON codec.
func CodecFor(f Format, indent string) (Codec, error) {
	switch f {
	case FormatJSON, FormatAuto, "":
		return JSONCodec{Indent: indent}, nil
	case FormatNDJSON:
		return JSONCodec{}, nil
	case FormatYAML:
		return YAMLCodec{Indent: len(indent)}, nil
	default:
		return nil, fmt.Errorf("unknown document format %q", string(f))
	}
}
