package masking

import (
	"bytes"
	"fmt"

	"github.com/bimmerbailey/dmask/internal/document"
)

// FormatMasker masks documents serialized in a given format and reports
// what it changed.
type FormatMasker interface {
	MaskAs(f document.Format, indent string, data []byte) ([]byte, Report, error)
}

// MaskAs returns data unchanged with an empty report.
func (Passthrough) MaskAs(_ document.Format, _ string, data []byte) ([]byte, Report, error) {
	return data, Report{}, nil
}

// MaskLines masks newline-delimited JSON one line at a time. Output lines
// are compact and blank input lines are dropped. The first line that cannot
// be decoded fails the whole input.
func (p *Pipeline) MaskLines(data []byte) ([]byte, Report, error) {
	lines := p.WithCodec(document.JSONCodec{})

	var (
		out    bytes.Buffer
		report Report
	)
	err := document.ScanLines(bytes.NewReader(data), func(num int, line []byte) error {
		masked, r, err := lines.MaskWithReport(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", num, err)
		}
		report.Merge(r)
		out.Write(masked)
		out.WriteByte('\n')
		return nil
	})
	if err != nil {
		return nil, report, err
	}
	return out.Bytes(), report, nil
}

// MaskAs masks data serialized in format f. JSON and YAML output use
// indent; NDJSON is masked line by line.
func (p *Pipeline) MaskAs(f document.Format, indent string, data []byte) ([]byte, Report, error) {
	if f == document.FormatNDJSON {
		return p.MaskLines(data)
	}
	codec, err := document.CodecFor(f, indent)
	if err != nil {
		return nil, Report{}, err
	}
	return p.WithCodec(codec).MaskWithReport(data)
}
