package incident

import (
	"strings"
	"time"
)

// Season is one of four fixed calendar buckets keyed off the month number.
type Season string

const (
	Winter Season = "Winter"
	Spring Season = "Spring"
	Summer Season = "Summer"
	Fall   Season = "Fall"
)

// Seasons returns the buckets in calendar order starting with Winter.
func Seasons() []Season { return []Season{Winter, Spring, Summer, Fall} }

// TimeOfDay buckets the hour of occurrence.
type TimeOfDay string

const (
	Morning   TimeOfDay = "Morning"
	Afternoon TimeOfDay = "Afternoon"
	Evening   TimeOfDay = "Evening"
	Night     TimeOfDay = "Night"
)

// TimesOfDay returns the buckets in clock order starting with Morning.
func TimesOfDay() []TimeOfDay { return []TimeOfDay{Morning, Afternoon, Evening, Night} }

// Record is one raw input row. Values are kept as read; blank means missing.
type Record struct {
	Date    string
	Time    string
	Borough string
	// Line is the 1-based data row in the source (header excluded).
	Line int
}

// Enriched is a record with its calendar and time-of-day attributes derived.
type Enriched struct {
	Source     Record
	OccurredOn time.Time
	Year       int
	Month      int
	Season     Season
	Weekday    time.Weekday
	IsWeekend  bool
	IsSummer   bool
	// Borough is the normalized label, "" when missing.
	Borough string
	// HasTime reports whether the time field parsed. Hour, Minute and
	// TimeOfDay are zero values otherwise.
	HasTime   bool
	Hour      int
	Minute    int
	TimeOfDay TimeOfDay
}

// WeekdayName returns the English weekday name, e.g. "Saturday".
func (e Enriched) WeekdayName() string { return e.Weekday.String() }

// SeasonOf maps a month number to its season. Months outside 1..12 yield "".
func SeasonOf(month int) Season {
	switch month {
	case 12, 1, 2:
		return Winter
	case 3, 4, 5:
		return Spring
	case 6, 7, 8:
		return Summer
	case 9, 10, 11:
		return Fall
	default:
		return ""
	}
}

// IsSummerMonth reports whether month falls in June, July or August.
func IsSummerMonth(month int) bool { return SeasonOf(month) == Summer }

// TimeOfDayOf maps an hour (0..23) to its bucket. Late evening from 22:00
// belongs to Night. Hours outside 0..23 yield "".
func TimeOfDayOf(hour int) TimeOfDay {
	switch {
	case hour < 0 || hour > 23:
		return ""
	case hour >= 6 && hour < 12:
		return Morning
	case hour >= 12 && hour < 18:
		return Afternoon
	case hour >= 18 && hour < 22:
		return Evening
	default:
		return Night
	}
}

// IsWeekend reports whether d is Saturday or Sunday.
func IsWeekend(d time.Weekday) bool { return d == time.Saturday || d == time.Sunday }

// NormalizeBorough trims and upper-cases a borough label. Placeholder values
// used by some exports for "no borough" normalize to "".
func NormalizeBorough(s string) string {
	b := strings.ToUpper(strings.Join(strings.Fields(s), " "))
	switch b {
	case "", "NA", "N/A", "NULL", "NONE", "UNSPECIFIED", "(NULL)":
		return ""
	}
	return b
}

// Enrich derives all attributes for r. It returns false when the date is
// missing or unparseable; an unparseable time only clears HasTime.
func Enrich(r Record) (Enriched, bool) {
	day, ok := ParseDate(r.Date)
	if !ok {
		return Enriched{}, false
	}
	e := Enriched{
		Source:     r,
		OccurredOn: day,
		Year:       day.Year(),
		Month:      int(day.Month()),
		Weekday:    day.Weekday(),
		Borough:    NormalizeBorough(r.Borough),
	}
	e.Season = SeasonOf(e.Month)
	e.IsSummer = IsSummerMonth(e.Month)
	e.IsWeekend = IsWeekend(e.Weekday)
	if h, m, ok := ParseClock(r.Time); ok {
		e.HasTime = true
		e.Hour = h
		e.Minute = m
		e.TimeOfDay = TimeOfDayOf(h)
	}
	return e, true
}

// DeriveStats counts what happened to the input during derivation.
type DeriveStats struct {
	Input          int `json:"input"`
	Kept           int `json:"kept"`
	BadDate        int `json:"bad_date"`
	MissingTime    int `json:"missing_time"`
	MissingBorough int `json:"missing_borough"`
}

// Dropped returns the number of records excluded from the output.
func (s DeriveStats) Dropped() int { return s.BadDate }

// Derive enriches every record in order, dropping those without a usable date.
func Derive(records []Record) ([]Enriched, DeriveStats) {
	st := DeriveStats{Input: len(records)}
	out := make([]Enriched, 0, len(records))
	for _, r := range records {
		e, ok := Enrich(r)
		if !ok {
			st.BadDate++
			continue
		}
		if !e.HasTime {
			st.MissingTime++
		}
		if e.Borough == "" {
			st.MissingBorough++
		}
		out = append(out, e)
	}
	st.Kept = len(out)
	return out, st
}
