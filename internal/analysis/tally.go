package analysis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/crashlens/internal/incident"
)

// Dimension names a single attribute incidents can be tallied by.
type Dimension string

const (
	ByYear      Dimension = "year"
	ByMonth     Dimension = "month"
	BySeason    Dimension = "season"
	ByWeekday   Dimension = "weekday"
	ByHour      Dimension = "hour"
	ByTimeOfDay Dimension = "time_of_day"
	ByBorough   Dimension = "borough"
)

// Dimensions returns every supported dimension in report order.
func Dimensions() []Dimension {
	return []Dimension{ByYear, ByMonth, BySeason, ByWeekday, ByHour, ByTimeOfDay, ByBorough}
}

// Title returns a human label for report headings.
func (d Dimension) Title() string {
	return strings.ToUpper(strings.ReplaceAll(string(d), "_", " "))
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// DimensionTally is the distribution of incidents over one dimension.
type DimensionTally struct {
	Dimension Dimension       `json:"dimension"`
	Counts    []CategoryCount `json:"counts"`
	// Excluded counts records that lacked the attribute (no time, no borough).
	Excluded int `json:"excluded"`
}

// Tally counts records per value of dim. Calendar-like dimensions are
// returned in natural order; boroughs by descending count.
func Tally(records []incident.Enriched, dim Dimension) DimensionTally {
	type acc struct {
		rank  int
		count int
	}
	seen := map[string]*acc{}
	res := DimensionTally{Dimension: dim}
	for _, r := range records {
		label, rank, ok := extract(r, dim)
		if !ok {
			res.Excluded++
			continue
		}
		a := seen[label]
		if a == nil {
			a = &acc{rank: rank}
			seen[label] = a
		}
		a.count++
	}
	type row struct {
		CategoryCount
		rank int
	}
	rows := make([]row, 0, len(seen))
	for k, a := range seen {
		rows = append(rows, row{CategoryCount: CategoryCount{Value: k, Count: a.count}, rank: a.rank})
	}
	byCount := dim == ByBorough
	sort.Slice(rows, func(i, j int) bool {
		if byCount && rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		if rows[i].rank != rows[j].rank {
			return rows[i].rank < rows[j].rank
		}
		return rows[i].Value < rows[j].Value
	})
	res.Counts = make([]CategoryCount, len(rows))
	for i, r := range rows {
		res.Counts[i] = r.CategoryCount
	}
	return res
}

// TallyAll runs Tally for every dimension.
func TallyAll(records []incident.Enriched) []DimensionTally {
	out := make([]DimensionTally, 0, len(Dimensions()))
	for _, d := range Dimensions() {
		out = append(out, Tally(records, d))
	}
	return out
}

func extract(r incident.Enriched, dim Dimension) (string, int, bool) {
	switch dim {
	case ByYear:
		return strconv.Itoa(r.Year), r.Year, true
	case ByMonth:
		return time.Month(r.Month).String(), r.Month, true
	case BySeason:
		for i, s := range incident.Seasons() {
			if s == r.Season {
				return string(s), i, true
			}
		}
		return "", 0, false
	case ByWeekday:
		// Monday first; time.Weekday starts at Sunday.
		return r.Weekday.String(), (int(r.Weekday) + 6) % 7, true
	case ByHour:
		if !r.HasTime {
			return "", 0, false
		}
		return fmt.Sprintf("%02d:00", r.Hour), r.Hour, true
	case ByTimeOfDay:
		if !r.HasTime {
			return "", 0, false
		}
		return string(r.TimeOfDay), todRank(r.TimeOfDay), true
	case ByBorough:
		if r.Borough == "" {
			return "", 0, false
		}
		return r.Borough, 0, true
	default:
		return "", 0, false
	}
}
