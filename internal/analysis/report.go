package analysis

import (
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/KaramelBytes/crashlens/internal/incident"
)

// maxGroupLines caps the grouped-count listing in Markdown output. JSON
// output always carries the full table.
const maxGroupLines = 20

// Report is the result of one analysis run.
type Report struct {
	Name     string               `json:"name"`
	Stats    incident.DeriveStats `json:"stats"`
	Tallies  []DimensionTally     `json:"tallies"`
	Groups   []GroupCount         `json:"groups"`
	Dense    bool                 `json:"dense"`
	FitRows  int                  `json:"fit_rows"`
	TopN     int                  `json:"top_n"`
	Model    *Model               `json:"model,omitempty"`
	Top      []Coefficient        `json:"top,omitempty"`
	FitError string               `json:"fit_error,omitempty"`
	Warnings []string             `json:"warnings,omitempty"`
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return b, nil
}

// Markdown renders a compact, sectioned text report.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", safeName(r.Name)))
	}
	b.WriteString(fmt.Sprintf("Records: %d (kept %d, dropped %d)\n", r.Stats.Input, r.Stats.Kept, r.Stats.Dropped()))
	b.WriteString(fmt.Sprintf("Grouped keys: %d (incidents %d)\n", len(r.Groups), TotalCount(r.Groups)))
	if r.Dense {
		b.WriteString(fmt.Sprintf("Model rows: %d (dense grid)\n", r.FitRows))
	}

	for _, t := range r.Tallies {
		if len(t.Counts) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("\n[COUNTS BY %s]\n", t.Dimension.Title()))
		for _, c := range t.Counts {
			b.WriteString(fmt.Sprintf("- %s: %d\n", safeVal(c.Value), c.Count))
		}
		if t.Excluded > 0 {
			b.WriteString(fmt.Sprintf("(excluded: %d)\n", t.Excluded))
		}
	}

	if len(r.Groups) > 0 {
		b.WriteString("\n[GROUPED COUNTS]\n")
		sorted := ByCount(r.Groups)
		lim := maxGroupLines
		if len(sorted) < lim {
			lim = len(sorted)
		}
		for _, g := range sorted[:lim] {
			b.WriteString(fmt.Sprintf("- %s (n=%d)\n", g.GroupKey, g.Count))
		}
		if len(sorted) > lim {
			b.WriteString(fmt.Sprintf("... %d more\n", len(sorted)-lim))
		}
	}

	b.WriteString("\n[MODEL]\n")
	switch {
	case r.Model != nil:
		writeModel(&b, r.Model)
	case r.FitError != "":
		b.WriteString(fmt.Sprintf("Not fitted: %s\n", r.FitError))
	default:
		b.WriteString("Not fitted.\n")
	}

	if r.Model != nil && len(r.Top) > 0 {
		b.WriteString("\n[TOP FACTORS]\n")
		pct := r.Model.ConfidenceLevel * 100
		for i, c := range r.Top {
			sig := ""
			if c.Significant {
				sig = " *"
			}
			b.WriteString(fmt.Sprintf("%d. %s: %+.4g (%.0f%% CI %.4g to %.4g), p=%.3g%s\n",
				i+1, safeVal(c.Term), c.Estimate, pct, c.Lower, c.Upper, c.PValue, sig))
		}
		b.WriteString(fmt.Sprintf("(* p < %.3g)\n", r.Model.SignificanceLevel))
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}

func writeModel(b *strings.Builder, m *Model) {
	b.WriteString(fmt.Sprintf("OLS: count ~ %d term(s) + intercept\n", len(m.Coefficients)))
	b.WriteString(fmt.Sprintf("Rows: %d, parameters: %d, residual df: %d\n", m.Rows, m.Params, m.ResidualDF))
	b.WriteString(fmt.Sprintf("R²: %.4f (adjusted %.4f), residual SE %.4g\n", m.RSquared, m.AdjRSquared, m.ResidualStdError))
	b.WriteString(fmt.Sprintf("F: %.4g, p=%.3g\n", m.FStatistic, m.FPValue))
	b.WriteString(fmt.Sprintf("Intercept: %.4g (p=%.3g)\n", m.Intercept.Estimate, m.Intercept.PValue))
	if len(m.References) > 0 {
		terms := make([]string, 0, len(m.References))
		for t := range m.References {
			terms = append(terms, string(t))
		}
		sort.Strings(terms)
		parts := make([]string, len(terms))
		for i, t := range terms {
			parts[i] = fmt.Sprintf("%s=%s", t, safeVal(m.References[Term(t)]))
		}
		b.WriteString("Reference levels: " + strings.Join(parts, ", ") + "\n")
	}
	if len(m.Aliased) > 0 {
		b.WriteString("Aliased (dropped): " + strings.Join(m.Aliased, ", ") + "\n")
	}
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
