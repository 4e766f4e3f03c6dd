package incident_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/crashlens/internal/incident"
)

func TestSeasonOfIsTotal(t *testing.T) {
	want := map[int]incident.Season{
		1: incident.Winter, 2: incident.Winter, 3: incident.Spring, 4: incident.Spring,
		5: incident.Spring, 6: incident.Summer, 7: incident.Summer, 8: incident.Summer,
		9: incident.Fall, 10: incident.Fall, 11: incident.Fall, 12: incident.Winter,
	}
	for m := 1; m <= 12; m++ {
		got := incident.SeasonOf(m)
		assert.Equal(t, want[m], got, "month %d", m)
		assert.Contains(t, incident.Seasons(), got)
		assert.Equal(t, got == incident.Summer, incident.IsSummerMonth(m))
	}
	assert.Equal(t, incident.Season(""), incident.SeasonOf(0))
	assert.Equal(t, incident.Season(""), incident.SeasonOf(13))
}

func TestTimeOfDayOfIsTotalAndExclusive(t *testing.T) {
	seen := map[incident.TimeOfDay]int{}
	for h := 0; h < 24; h++ {
		got := incident.TimeOfDayOf(h)
		require.Contains(t, incident.TimesOfDay(), got, "hour %d", h)
		seen[got]++
	}
	assert.Len(t, seen, 4)

	cases := []struct {
		hour int
		want incident.TimeOfDay
	}{
		{0, incident.Night},
		{5, incident.Night},
		{6, incident.Morning},
		{11, incident.Morning},
		{12, incident.Afternoon},
		{13, incident.Afternoon},
		{17, incident.Afternoon},
		{18, incident.Evening},
		{21, incident.Evening},
		{22, incident.Night},
		{23, incident.Night},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, incident.TimeOfDayOf(c.hour), "hour %d", c.hour)
	}
	assert.Equal(t, incident.TimeOfDay(""), incident.TimeOfDayOf(24))
	assert.Equal(t, incident.TimeOfDay(""), incident.TimeOfDayOf(-1))
}

func TestIsWeekend(t *testing.T) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		want := d == time.Saturday || d == time.Sunday
		assert.Equal(t, want, incident.IsWeekend(d), d.String())
	}
}

func TestParseDateLayouts(t *testing.T) {
	for _, in := range []string{
		"2020-07-04",
		"07/04/2020",
		"7/4/2020",
		"2020-07-04T00:00:00.000",
		"2020-07-04T00:00:00Z",
		" 2020/07/04 ",
		"07-04-20",
	} {
		d, ok := incident.ParseDate(in)
		require.True(t, ok, in)
		assert.Equal(t, time.Date(2020, time.July, 4, 0, 0, 0, 0, time.UTC), d, in)
	}
	for _, in := range []string{"", "   ", "not a date", "2020-13-40"} {
		_, ok := incident.ParseDate(in)
		assert.False(t, ok, in)
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in       string
		hour     int
		minute   int
		accepted bool
	}{
		{"23:30:00", 23, 30, true},
		{"23:30", 23, 30, true},
		{"8:05", 8, 5, true},
		{"0:00", 0, 0, true},
		{"11:45 PM", 23, 45, true},
		{"", 0, 0, false},
		{"25:00", 0, 0, false},
		{"noon", 0, 0, false},
	}
	for _, c := range cases {
		h, m, ok := incident.ParseClock(c.in)
		require.Equal(t, c.accepted, ok, c.in)
		if ok {
			assert.Equal(t, c.hour, h, c.in)
			assert.Equal(t, c.minute, m, c.in)
		}
	}
}

func TestEnrichSaturdayNightInSummer(t *testing.T) {
	e, ok := incident.Enrich(incident.Record{Date: "2020-07-04", Time: "23:30:00", Borough: "BROOKLYN"})
	require.True(t, ok)
	assert.Equal(t, 2020, e.Year)
	assert.Equal(t, 7, e.Month)
	assert.Equal(t, incident.Summer, e.Season)
	assert.True(t, e.IsSummer)
	assert.Equal(t, "Saturday", e.WeekdayName())
	assert.True(t, e.IsWeekend)
	assert.True(t, e.HasTime)
	assert.Equal(t, 23, e.Hour)
	assert.Equal(t, incident.Night, e.TimeOfDay)
	assert.Equal(t, "BROOKLYN", e.Borough)
}

func TestEnrichWednesdayMorningInWinter(t *testing.T) {
	e, ok := incident.Enrich(incident.Record{Date: "2020-01-15", Time: "08:00:00", Borough: "Staten  Island "})
	require.True(t, ok)
	assert.Equal(t, incident.Winter, e.Season)
	assert.False(t, e.IsSummer)
	assert.Equal(t, time.Wednesday, e.Weekday)
	assert.False(t, e.IsWeekend)
	assert.Equal(t, incident.Morning, e.TimeOfDay)
	assert.Equal(t, "STATEN ISLAND", e.Borough)
}

func TestDeriveDropsBadDatesAndKeepsRecordsWithoutTime(t *testing.T) {
	in := []incident.Record{
		{Date: "2021-03-01", Time: "14:10", Borough: "QUEENS", Line: 1},
		{Date: "garbage", Time: "14:10", Borough: "QUEENS", Line: 2},
		{Date: "", Time: "09:00", Borough: "BRONX", Line: 3},
		{Date: "2021-03-02", Time: "", Borough: "", Line: 4},
		{Date: "2021-03-03", Time: "later", Borough: "N/A", Line: 5},
	}
	out, st := incident.Derive(in)
	require.Len(t, out, 3)
	assert.Equal(t, incident.DeriveStats{Input: 5, Kept: 3, BadDate: 2, MissingTime: 2, MissingBorough: 2}, st)
	assert.Equal(t, 2, st.Dropped())

	assert.Equal(t, 1, out[0].Source.Line)
	assert.Equal(t, incident.Afternoon, out[0].TimeOfDay)

	noTime := out[1]
	assert.Equal(t, 4, noTime.Source.Line)
	assert.False(t, noTime.HasTime)
	assert.Equal(t, incident.TimeOfDay(""), noTime.TimeOfDay)
	assert.Equal(t, incident.Spring, noTime.Season)
	assert.Equal(t, "", noTime.Borough)

	assert.False(t, out[2].HasTime)
	assert.Equal(t, "", out[2].Borough)
}

func TestNormalizeBorough(t *testing.T) {
	assert.Equal(t, "MANHATTAN", incident.NormalizeBorough(" manhattan"))
	assert.Equal(t, "STATEN ISLAND", incident.NormalizeBorough("Staten\tIsland"))
	assert.Equal(t, "", incident.NormalizeBorough("  "))
	assert.Equal(t, "", incident.NormalizeBorough("null"))
}
