// Package output provides formatted output rendering for masking reports
// and masker listings. It supports text, JSON, and table formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/bimmerbailey/dmask/internal/masking"
)

// Format represents an output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// Writer handles writing formatted output.
type Writer struct {
	w      io.Writer
	format Format
	color  ColorMode
}

// New creates a new output Writer. Colors are never used; see WithColor.
func New(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format, color: ColorNever}
}

// WithColor sets when text output is colored and returns wr.
func (wr *Writer) WithColor(mode ColorMode) *Writer {
	wr.color = mode
	return wr
}

// SourceReport is the masking report for one input.
type SourceReport struct {
	Source string         `json:"source"`
	Report masking.Report `json:"report"`
}

// WriteReports outputs masking reports in the configured format.
func (wr *Writer) WriteReports(reports []SourceReport) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(reports)
	case FormatTable:
		return wr.writeReportTable(reports)
	default:
		return wr.writeReportText(reports)
	}
}

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v any) error {
	enc := json.NewEncoder(wr.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (wr *Writer) writeReportText(reports []SourceReport) error {
	colorize := shouldColorize(wr.color, wr.w)
	for _, sr := range reports {
		r := sr.Report
		fmt.Fprintf(wr.w, "%s: %d document(s), %d matched, %d replaced, %d removed, %d skipped\n",
			sr.Source, r.Documents, r.Matched, r.Replaced, r.Removed, r.Skipped)
		for _, rr := range r.Rules {
			line := fmt.Sprintf("  %s -> %s: matched=%d replaced=%d removed=%d skipped=%d",
				rr.Selector, rr.Masker, rr.Matched, rr.Replaced, rr.Removed, rr.Skipped)
			if colorize {
				line = colorizeRule(rr, line)
			}
			fmt.Fprintln(wr.w, line)
		}
	}
	return nil
}

func (wr *Writer) writeReportTable(reports []SourceReport) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSELECTOR\tMASKER\tMATCHED\tREPLACED\tREMOVED\tSKIPPED")
	fmt.Fprintln(tw, "------\t--------\t------\t-------\t--------\t-------\t-------")

	for _, sr := range reports {
		for _, rr := range sr.Report.Rules {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
				sr.Source, truncate(rr.Selector, 60), rr.Masker, rr.Matched, rr.Replaced, rr.Removed, rr.Skipped)
		}
	}

	return tw.Flush()
}

// MaskerInfo describes a registered masker and the selectors configured
// for it.
type MaskerInfo struct {
	Name      string   `json:"name"`
	Order     int      `json:"order"`
	Kind      string   `json:"kind"`
	Selectors []string `json:"selectors,omitempty"`
}

// NewMaskerInfo describes m.
func NewMaskerInfo(m masking.Masker, selectors []string) MaskerInfo {
	return MaskerInfo{
		Name:      m.Name(),
		Order:     m.Order(),
		Kind:      m.Kind().String(),
		Selectors: selectors,
	}
}

// WriteMaskers outputs masker descriptions in the configured format.
func (wr *Writer) WriteMaskers(maskers []MaskerInfo) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(maskers)
	case FormatTable:
		tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tORDER\tKIND\tSELECTORS")
		fmt.Fprintln(tw, "----\t-----\t----\t---------")
		for _, m := range maskers {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Name, formatOrder(m.Order), m.Kind, strings.Join(m.Selectors, ", "))
		}
		return tw.Flush()
	default:
		for _, m := range maskers {
			fmt.Fprintf(wr.w, "%s (order %s, %s)\n", m.Name, formatOrder(m.Order), m.Kind)
			for _, s := range m.Selectors {
				fmt.Fprintf(wr.w, "  %s\n", s)
			}
		}
		return nil
	}
}

// WriteDocument writes a masked document followed by a newline when it
// does not already end with one.
func (wr *Writer) WriteDocument(data []byte) error {
	if _, err := wr.w.Write(data); err != nil {
		return err
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		_, err := io.WriteString(wr.w, "\n")
		return err
	}
	return nil
}

func formatOrder(order int) string {
	if order == masking.RemoveOrder {
		return "first"
	}
	return fmt.Sprintf("%d", order)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
