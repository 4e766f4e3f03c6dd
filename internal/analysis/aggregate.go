package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/crashlens/internal/incident"
)

// GroupKey is the fixed tuple incidents are bucketed by before counting.
// Season and IsSummer are functions of Month but are kept so consumers
// can read the key without re-deriving them.
type GroupKey struct {
	Year      int                `json:"year"`
	Borough   string             `json:"borough"`
	Season    incident.Season    `json:"season"`
	TimeOfDay incident.TimeOfDay `json:"time_of_day"`
	IsWeekend bool               `json:"is_weekend"`
	IsSummer  bool               `json:"is_summer"`
	Month     int                `json:"month"`
}

// KeyOf returns the grouping key of an enriched record.
func KeyOf(e incident.Enriched) GroupKey {
	return GroupKey{
		Year:      e.Year,
		Borough:   e.Borough,
		Season:    e.Season,
		TimeOfDay: e.TimeOfDay,
		IsWeekend: e.IsWeekend,
		IsSummer:  e.IsSummer,
		Month:     e.Month,
	}
}

// String renders the key as "Name=value" pairs, the same way group keys are
// printed in reports.
func (k GroupKey) String() string {
	parts := []string{
		fmt.Sprintf("Year=%d", k.Year),
		"Borough=" + safeVal(k.Borough),
		"Season=" + string(k.Season),
		"TimeOfDay=" + string(k.TimeOfDay),
		fmt.Sprintf("IsWeekend=%t", k.IsWeekend),
		fmt.Sprintf("IsSummer=%t", k.IsSummer),
		fmt.Sprintf("Month=%d", k.Month),
	}
	return strings.Join(parts, " | ")
}

// GroupCount is one observed key with its incident count.
type GroupCount struct {
	GroupKey
	Count int `json:"count"`
}

// Aggregate counts enriched records per GroupKey. Only observed keys are
// returned. Records without a borough or without a parsed time cannot fill
// the key and are skipped.
func Aggregate(records []incident.Enriched) []GroupCount {
	counts := make(map[GroupKey]int)
	for _, r := range records {
		if r.Borough == "" || !r.HasTime {
			continue
		}
		counts[KeyOf(r)]++
	}
	out := make([]GroupCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, GroupCount{GroupKey: k, Count: n})
	}
	SortGroupCounts(out)
	return out
}

// Densify adds zero-count rows for every combination of the observed years,
// boroughs, months, time-of-day buckets and weekend flags. Season and
// IsSummer follow from the month, so no impossible key is produced.
func Densify(counts []GroupCount) []GroupCount {
	if len(counts) == 0 {
		return nil
	}
	have := make(map[GroupKey]int, len(counts))
	years := map[int]struct{}{}
	boroughs := map[string]struct{}{}
	months := map[int]struct{}{}
	tods := map[incident.TimeOfDay]struct{}{}
	weekends := map[bool]struct{}{}
	for _, c := range counts {
		have[c.GroupKey] += c.Count
		years[c.Year] = struct{}{}
		boroughs[c.Borough] = struct{}{}
		months[c.Month] = struct{}{}
		tods[c.TimeOfDay] = struct{}{}
		weekends[c.IsWeekend] = struct{}{}
	}
	out := make([]GroupCount, 0, len(years)*len(boroughs)*len(months)*len(tods)*len(weekends))
	for y := range years {
		for b := range boroughs {
			for m := range months {
				for tod := range tods {
					for w := range weekends {
						k := GroupKey{
							Year:      y,
							Borough:   b,
							Season:    incident.SeasonOf(m),
							TimeOfDay: tod,
							IsWeekend: w,
							IsSummer:  incident.IsSummerMonth(m),
							Month:     m,
						}
						out = append(out, GroupCount{GroupKey: k, Count: have[k]})
					}
				}
			}
		}
	}
	SortGroupCounts(out)
	return out
}

// TotalCount sums the counts of all rows.
func TotalCount(counts []GroupCount) int {
	n := 0
	for _, c := range counts {
		n += c.Count
	}
	return n
}

// ByCount returns a copy ordered by descending count, ties by key order.
func ByCount(counts []GroupCount) []GroupCount {
	out := make([]GroupCount, len(counts))
	copy(out, counts)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return keyLess(out[i].GroupKey, out[j].GroupKey)
		}
		return out[i].Count > out[j].Count
	})
	return out
}

// SortGroupCounts orders counts by key: year, borough, month, time of day,
// then weekend flag.
func SortGroupCounts(out []GroupCount) {
	sort.Slice(out, func(i, j int) bool { return keyLess(out[i].GroupKey, out[j].GroupKey) })
}

func keyLess(a, b GroupKey) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	if a.Borough != b.Borough {
		return a.Borough < b.Borough
	}
	if a.Month != b.Month {
		return a.Month < b.Month
	}
	if ra, rb := todRank(a.TimeOfDay), todRank(b.TimeOfDay); ra != rb {
		return ra < rb
	}
	if a.IsWeekend != b.IsWeekend {
		return !a.IsWeekend
	}
	// Season and IsSummer follow from Month for derived keys; compare them
	// anyway so hand-built tables still sort deterministically.
	if a.Season != b.Season {
		return a.Season < b.Season
	}
	return !a.IsSummer && b.IsSummer
}

func todRank(t incident.TimeOfDay) int {
	for i, v := range incident.TimesOfDay() {
		if v == t {
			return i
		}
	}
	return len(incident.TimesOfDay())
}
