package masking

// RuleReport counts what one rule did to a document.
type RuleReport struct {
	Selector string `json:"selector"`
	Masker   string `json:"masker"`
	Matched  int    `json:"matched"`
	Replaced int    `json:"replaced"`
	Skipped  int    `json:"skipped"`
	Removed  int    `json:"removed"`
}

// Report is the outcome of masking one or more documents.
type Report struct {
	Documents int          `json:"documents"`
	Rules     []RuleReport `json:"rules"`
	Matched   int          `json:"matched"`
	Replaced  int          `json:"replaced"`
	Skipped   int          `json:"skipped"`
	Removed   int          `json:"removed"`
}

func (r *Report) add(rr RuleReport) {
	if r.Documents == 0 {
		r.Documents = 1
	}
	r.Rules = append(r.Rules, rr)
	r.Matched += rr.Matched
	r.Replaced += rr.Replaced
	r.Skipped += rr.Skipped
	r.Removed += rr.Removed
}

// Changed returns the number of values replaced or removed.
func (r Report) Changed() int {
	return r.Replaced + r.Removed
}

// Merge adds the counts of other to r. Reports from the same pipeline are
// summed rule by rule.
func (r *Report) Merge(other Report) {
	switch {
	case len(r.Rules) == 0:
		r.Rules = append([]RuleReport(nil), other.Rules...)
	case len(r.Rules) == len(other.Rules):
		for i := range r.Rules {
			r.Rules[i].Matched += other.Rules[i].Matched
			r.Rules[i].Replaced += other.Rules[i].Replaced
			r.Rules[i].Skipped += other.Rules[i].Skipped
			r.Rules[i].Removed += other.Rules[i].Removed
		}
	default:
		r.Rules = append(r.Rules, other.Rules...)
	}
	r.Documents += other.Documents
	r.Matched += other.Matched
	r.Replaced += other.Replaced
	r.Skipped += other.Skipped
	r.Removed += other.Removed
}
