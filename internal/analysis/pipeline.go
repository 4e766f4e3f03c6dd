package analysis

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/crashlens/internal/incident"
	"github.com/KaramelBytes/crashlens/internal/logging"
)

// Options drives a full analysis run.
type Options struct {
	Fit FitOptions
	// Dense fills unobserved key combinations with zero counts before fitting.
	Dense bool
	// TopN limits the ranked coefficient list. 0 keeps all.
	TopN int
	// SkipModel disables the regression and reports descriptive counts only.
	SkipModel bool
}

// DefaultOptions mirrors the CLI defaults.
func DefaultOptions() Options {
	return Options{Fit: DefaultFitOptions(), TopN: 10}
}

// Run derives features from records, tallies and groups them, and fits the
// count model. A fit failure is returned together with the descriptive
// report so callers can still show counts; the report's Model is nil in that
// case and FitError carries the message.
func Run(name string, records []incident.Record, opt Options) (*Report, error) {
	log := logging.With().Str("dataset", name).Logger()

	enriched, stats := incident.Derive(records)
	log.Info().
		Int("input", stats.Input).
		Int("kept", stats.Kept).
		Int("bad_date", stats.BadDate).
		Int("missing_time", stats.MissingTime).
		Int("missing_borough", stats.MissingBorough).
		Msg("features derived")

	rep := &Report{
		Name:    name,
		Stats:   stats,
		Tallies: TallyAll(enriched),
		Groups:  Aggregate(enriched),
		Dense:   opt.Dense,
		TopN:    opt.TopN,
	}
	if stats.BadDate > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d record(s) dropped: unparseable date", stats.BadDate))
	}
	if stats.MissingTime > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d record(s) without a parseable time excluded from time-keyed counts", stats.MissingTime))
	}
	if stats.MissingBorough > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d record(s) without a borough excluded from borough-keyed counts", stats.MissingBorough))
	}

	fitRows := rep.Groups
	if opt.Dense {
		fitRows = Densify(rep.Groups)
	}
	rep.FitRows = len(fitRows)
	log.Debug().Int("groups", len(rep.Groups)).Int("fit_rows", len(fitRows)).Msg("grouped counts built")

	if opt.SkipModel {
		return rep, nil
	}
	m, err := FitCounts(fitRows, opt.Fit)
	if err != nil {
		rep.FitError = err.Error()
		log.Warn().Err(err).Msg("model fit failed")
		return rep, err
	}
	rep.Model = m
	rep.Top = m.Top(opt.TopN)
	if len(m.Aliased) > 0 {
		log.Warn().Strs("aliased", m.Aliased).Msg("aliased terms dropped from the model")
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("aliased term(s) dropped from the model: %v", m.Aliased))
	}
	log.Info().
		Int("rows", m.Rows).
		Int("params", m.Params).
		Float64("r_squared", m.RSquared).
		Int("significant", len(m.Significant())).
		Msg("model fitted")
	return rep, nil
}

// IsInfeasible reports whether err is a model-fit infeasibility.
func IsInfeasible(err error) bool { return errors.Is(err, ErrInfeasible) }
