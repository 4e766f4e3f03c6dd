package analysis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Term is one attribute of the grouping key used as a model predictor.
type Term string

const (
	TermBorough   Term = "Borough"
	TermSeason    Term = "Season"
	TermTimeOfDay Term = "TimeOfDay"
	TermWeekend   Term = "IsWeekend"
	TermSummer    Term = "IsSummer"
	TermMonth     Term = "Month"
	TermYear      Term = "Year"
)

// InterceptName labels the intercept column of a design.
const InterceptName = "(Intercept)"

// DefaultTerms returns every grouping attribute in design order.
func DefaultTerms() []Term {
	return []Term{TermBorough, TermSeason, TermTimeOfDay, TermWeekend, TermSummer, TermMonth, TermYear}
}

// Categorical reports whether the term is one-hot encoded. Flags are
// encoded as two-level factors ("false" is the reference).
func (t Term) Categorical() bool {
	switch t {
	case TermMonth, TermYear:
		return false
	default:
		return true
	}
}

func (t Term) level(k GroupKey) string {
	switch t {
	case TermBorough:
		return k.Borough
	case TermSeason:
		return string(k.Season)
	case TermTimeOfDay:
		return string(k.TimeOfDay)
	case TermWeekend:
		return strconv.FormatBool(k.IsWeekend)
	case TermSummer:
		return strconv.FormatBool(k.IsSummer)
	}
	return ""
}

func (t Term) value(k GroupKey) float64 {
	switch t {
	case TermMonth:
		return float64(k.Month)
	case TermYear:
		return float64(k.Year)
	}
	return 0
}

// ParseTerm resolves a user-supplied term name. Matching ignores case,
// spaces, dashes and underscores, so "time_of_day" and "TimeOfDay" agree.
func ParseTerm(s string) (Term, error) {
	norm := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "borough":
		return TermBorough, nil
	case "season":
		return TermSeason, nil
	case "timeofday", "tod":
		return TermTimeOfDay, nil
	case "isweekend", "weekend":
		return TermWeekend, nil
	case "issummer", "summer":
		return TermSummer, nil
	case "month":
		return TermMonth, nil
	case "year":
		return TermYear, nil
	}
	return "", fmt.Errorf("unknown model term: %q", s)
}

// ParseTerms resolves a list of names, dropping duplicates and keeping order.
// An empty list yields DefaultTerms.
func ParseTerms(names []string) ([]Term, error) {
	var out []Term
	seen := map[Term]bool{}
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		t, err := ParseTerm(n)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return DefaultTerms(), nil
	}
	return out, nil
}

// Design is the numeric form of a grouped-count table: an intercept column,
// one indicator column per non-reference level of each categorical term, and
// one column per numeric term.
type Design struct {
	Columns []string
	// Factors and Levels run parallel to Columns. The intercept has neither;
	// numeric columns have no level.
	Factors []Term
	Levels  []string
	X       *mat.Dense
	Y       []float64
	// References maps each categorical term to its dropped level.
	References map[Term]string
}

// BuildDesign one-hot encodes counts for the given terms. Levels are sorted
// lexically and the first one is the reference. It fails on an empty table
// and on a categorical term with fewer than two observed levels.
func BuildDesign(counts []GroupCount, terms []Term) (*Design, error) {
	if len(counts) == 0 {
		return nil, &InfeasibleError{Reason: "grouped-count table is empty"}
	}
	if len(terms) == 0 {
		terms = DefaultTerms()
	}
	type block struct {
		term   Term
		levels []string // non-reference levels, categorical only
	}
	blocks := make([]block, 0, len(terms))
	d := &Design{
		Columns:    []string{InterceptName},
		Factors:    []Term{""},
		Levels:     []string{""},
		References: map[Term]string{},
	}
	for _, t := range terms {
		if !t.Categorical() {
			blocks = append(blocks, block{term: t})
			d.addColumn(string(t), t, "")
			continue
		}
		set := map[string]struct{}{}
		for _, c := range counts {
			set[t.level(c.GroupKey)] = struct{}{}
		}
		levels := make([]string, 0, len(set))
		for l := range set {
			levels = append(levels, l)
		}
		if len(levels) < 2 {
			return nil, &InfeasibleError{Reason: "factor without contrast", Factor: string(t), Levels: len(levels)}
		}
		sort.Strings(levels)
		d.References[t] = levels[0]
		blocks = append(blocks, block{term: t, levels: levels[1:]})
		for _, l := range levels[1:] {
			d.addColumn(ColumnName(t, l), t, l)
		}
	}

	n, p := len(counts), len(d.Columns)
	d.X = mat.NewDense(n, p, nil)
	d.Y = make([]float64, n)
	for i, c := range counts {
		d.Y[i] = float64(c.Count)
		d.X.Set(i, 0, 1)
		j := 1
		for _, b := range blocks {
			if !b.term.Categorical() {
				d.X.Set(i, j, b.term.value(c.GroupKey))
				j++
				continue
			}
			lv := b.term.level(c.GroupKey)
			for _, l := range b.levels {
				if l == lv {
					d.X.Set(i, j, 1)
				}
				j++
			}
		}
	}
	return d, nil
}

// ColumnName labels the indicator column of level within term.
func ColumnName(t Term, level string) string { return string(t) + "=" + level }

func (d *Design) addColumn(name string, t Term, level string) {
	d.Columns = append(d.Columns, name)
	d.Factors = append(d.Factors, t)
	d.Levels = append(d.Levels, level)
}
