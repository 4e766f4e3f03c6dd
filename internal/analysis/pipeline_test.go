package analysis

import (
	"fmt"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/crashlens/internal/incident"
)

func TestRunTwoIncidentsEndToEnd(t *testing.T) {
	records := []incident.Record{
		{Date: "2020-07-04", Time: "23:30:00", Borough: "BROOKLYN", Line: 2},
		{Date: "2020-01-15", Time: "08:00:00", Borough: "STATEN ISLAND", Line: 3},
	}
	enriched, _ := incident.Derive(records)
	require.Len(t, enriched, 2)
	assert.Equal(t, incident.Summer, enriched[0].Season)
	assert.Equal(t, incident.Night, enriched[0].TimeOfDay)
	assert.True(t, enriched[0].IsWeekend)
	assert.Equal(t, incident.Winter, enriched[1].Season)
	assert.Equal(t, incident.Morning, enriched[1].TimeOfDay)
	assert.False(t, enriched[1].IsWeekend)

	rep, err := Run("two.csv", records, DefaultOptions())
	require.Error(t, err)
	assert.True(t, IsInfeasible(err))
	require.NotNil(t, rep)
	assert.Nil(t, rep.Model)
	assert.NotEmpty(t, rep.FitError)

	require.Len(t, rep.Groups, 2)
	for _, g := range rep.Groups {
		assert.Equal(t, 1, g.Count)
	}
	assert.Contains(t, rep.Markdown(), "Not fitted: model fit infeasible")
}

func TestRunSkipModel(t *testing.T) {
	records := []incident.Record{
		{Date: "2020-07-04", Time: "23:30:00", Borough: "BROOKLYN"},
		{Date: "bad", Time: "08:00:00", Borough: "QUEENS"},
	}
	opt := DefaultOptions()
	opt.SkipModel = true
	rep, err := Run("skip.csv", records, opt)
	require.NoError(t, err)
	assert.Nil(t, rep.Model)
	assert.Empty(t, rep.FitError)
	assert.Equal(t, 1, rep.Stats.BadDate)
	require.NotEmpty(t, rep.Warnings)
	assert.Contains(t, rep.Warnings[0], "unparseable date")
}

// syntheticRecords spreads incidents over five boroughs, every hour and two
// years so each default term has contrast and the fit has spare rows.
func syntheticRecords() []incident.Record {
	boroughs := []string{"BRONX", "BROOKLYN", "MANHATTAN", "QUEENS", "STATEN ISLAND"}
	var out []incident.Record
	for i := 0; i < 400; i++ {
		day := i % 28
		month := i%12 + 1
		year := 2019 + i%2
		rec := incident.Record{
			Date:    fmt.Sprintf("%04d-%02d-%02d", year, month, day+1),
			Time:    fmt.Sprintf("%02d:%02d", (i*7)%24, i%60),
			Borough: boroughs[i%len(boroughs)],
		}
		for r := 0; r <= i%3; r++ {
			out = append(out, rec)
		}
	}
	return out
}

func TestRunFitsSyntheticDataset(t *testing.T) {
	opt := DefaultOptions()
	opt.TopN = 5
	rep, err := Run("synthetic.csv", syntheticRecords(), opt)
	require.NoError(t, err)
	require.NotNil(t, rep.Model)
	assert.Len(t, rep.Top, 5)
	assert.Equal(t, len(rep.Groups), rep.FitRows)
	assert.Contains(t, rep.Model.Aliased, "IsSummer=true")
	for i := 1; i < len(rep.Top); i++ {
		assert.GreaterOrEqual(t, abs(rep.Top[i-1].Estimate), abs(rep.Top[i].Estimate))
	}

	md := rep.Markdown()
	for _, section := range []string{
		"[DATASET SUMMARY]", "[COUNTS BY YEAR]", "[COUNTS BY TIME OF DAY]",
		"[COUNTS BY BOROUGH]", "[GROUPED COUNTS]", "[MODEL]", "[TOP FACTORS]", "[NOTES]",
	} {
		assert.Contains(t, md, section)
	}
	assert.Contains(t, md, "Reference levels: Borough=BRONX")
	assert.True(t, strings.Index(md, "[MODEL]") < strings.Index(md, "[TOP FACTORS]"))

	raw, err := rep.JSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "groups")
	assert.Contains(t, decoded, "model")
	assert.NotContains(t, string(raw), "t_value")
}

func TestRunDenseGrid(t *testing.T) {
	opt := DefaultOptions()
	opt.Dense = true
	opt.Fit.Terms = []Term{TermBorough, TermTimeOfDay, TermWeekend}
	rep, err := Run("synthetic.csv", syntheticRecords(), opt)
	require.NoError(t, err)
	assert.Greater(t, rep.FitRows, len(rep.Groups))
	assert.Equal(t, rep.FitRows, rep.Model.Rows)
	assert.Contains(t, rep.Markdown(), "(dense grid)")
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
