package reconcile

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campaign-hub/internal/model"
	"github.com/sells-group/campaign-hub/internal/normalize"
	"github.com/sells-group/campaign-hub/internal/resilience"
	"github.com/sells-group/campaign-hub/internal/source"
	"github.com/sells-group/campaign-hub/internal/verifier"
)

// BaselineSource returns the raw rows of a campaign's ad-serving export.
// It returns source.ErrNoSnapshot when the campaign has none.
type BaselineSource interface {
	Rows(ctx context.Context, campaignID int64) ([]normalize.Row, error)
}

// AnalyticsReader returns the web-analytics rows of a campaign.
type AnalyticsReader interface {
	AnalyticsRows(ctx context.Context, campaignID int64) ([]model.AnalyticsRow, error)
}

// OverrideStore persists manual corrections.
type OverrideStore interface {
	Overrides(ctx context.Context, campaignID int64) (model.OverrideMap, error)
	SetOverride(ctx context.Context, campaignID int64, date string, metric model.Metric, value string) error
}

// VerifierResolver returns the per-date verifier rows of a campaign.
type VerifierResolver interface {
	Resolve(ctx context.Context, campaignID int64, sheet []normalize.Row) (map[string]model.VerifierRow, verifier.Resolution, error)
}

// ReachSource supplies the authoritative campaign reach.
type ReachSource interface {
	Reach(ctx context.Context, campaignID int64, series model.Series) (*float64, error)
}

// AliasProvider supplies the current alias tables.
type AliasProvider interface {
	Get() (*normalize.Aliases, error)
}

// SummaryReach reads reach from the uniques of the export's own total row.
type SummaryReach struct{}

// Reach implements ReachSource.
func (SummaryReach) Reach(_ context.Context, _ int64, series model.Series) (*float64, error) {
	if series.Summary == nil {
		return nil, nil
	}
	return clone(series.Summary.Uniques), nil
}

// Deps are the collaborators of a Service. Reach and Aliases are optional.
type Deps struct {
	Baseline  BaselineSource
	Analytics AnalyticsReader
	Overrides OverrideStore
	Verifier  VerifierResolver
	Reach     ReachSource
	Aliases   AliasProvider
	Retry     resilience.RetryConfig
}

// Service loads every source of a campaign and runs the engine over them.
// Nothing is cached between calls: every read recomputes.
type Service struct {
	engine *Engine
	deps   Deps
}

// NewService creates a Service.
func NewService(engine *Engine, deps Deps) *Service {
	if deps.Reach == nil {
		deps.Reach = SummaryReach{}
	}
	return &Service{engine: engine, deps: deps}
}

// Campaign returns the reconciled report for one campaign.
func (s *Service) Campaign(ctx context.Context, campaignID int64) (*model.Report, error) {
	in, err := s.load(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	report := s.engine.Reconcile(in)
	return &report, nil
}

// ApplyOverride validates and persists one override, then recomputes the
// campaign. An empty value (or a dash) removes the override.
func (s *Service) ApplyOverride(ctx context.Context, campaignID int64, date, metric, value string) (*model.OverrideResult, error) {
	m, day, err := validateCell(date, metric)
	if err != nil {
		return nil, err
	}

	value = strings.TrimSpace(value)
	if value == "—" {
		value = ""
	}

	err = resilience.Do(ctx, s.deps.Retry, func(ctx context.Context) error {
		return s.deps.Overrides.SetOverride(ctx, campaignID, day, m, value)
	})
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: save override")
	}

	zap.L().Info("override saved",
		zap.Int64("campaign_id", campaignID),
		zap.String("date", day),
		zap.String("metric", string(m)),
		zap.Bool("deleted", value == ""),
	)

	report, err := s.Campaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	res := &model.OverrideResult{
		CampaignID: campaignID,
		Date:       day,
		Metric:     m,
		Totals:     report.Totals,
	}
	if f := report.Day(day); f != nil {
		fact := *f
		res.Daily = &fact
	}
	return res, nil
}

// CellValue returns the text an editor should be prefilled with: the
// override exactly as typed, or else the source value.
func (s *Service) CellValue(ctx context.Context, campaignID int64, date, metric string) (string, error) {
	m, day, err := validateCell(date, metric)
	if err != nil {
		return "", err
	}

	in, err := s.load(ctx, campaignID)
	if err != nil {
		return "", err
	}
	if text, ok := in.Overrides.Lookup(day, m); ok {
		return text, nil
	}

	report := s.engine.Reconcile(in)
	f := report.Day(day)
	if f == nil {
		return "", nil
	}
	v := FieldValue(f, string(m))
	if v == nil {
		return "", nil
	}
	return strconv.FormatFloat(*v, 'f', -1, 64), nil
}

func validateCell(date, metric string) (model.Metric, string, error) {
	name := strings.ToLower(strings.TrimSpace(metric))
	if model.IsComputed(name) {
		return "", "", eris.Wrapf(ErrComputedMetric, "metric %q", metric)
	}
	m := model.Metric(name)
	if !m.Editable() {
		return "", "", eris.Wrapf(ErrInvalidMetric, "metric %q", metric)
	}
	day, ok := normalize.ParseDate(date)
	if !ok {
		return "", "", eris.Wrapf(ErrInvalidDate, "date %q", date)
	}
	return m, day, nil
}

// load reads all sources sequentially. A missing or failing baseline,
// analytics or verifier source degrades to nulls; the override store is
// authoritative and its failure is returned.
func (s *Service) load(ctx context.Context, campaignID int64) (Input, error) {
	log := zap.L().With(zap.Int64("campaign_id", campaignID))
	in := Input{CampaignID: campaignID}

	aliases := normalize.DefaultAliases()
	if s.deps.Aliases != nil {
		a, err := s.deps.Aliases.Get()
		if err != nil {
			return in, eris.Wrap(err, "reconcile: load aliases")
		}
		aliases = a
	}

	raw, err := resilience.DoVal(ctx, s.deps.Retry, func(ctx context.Context) ([]normalize.Row, error) {
		return s.deps.Baseline.Rows(ctx, campaignID)
	})
	switch {
	case errors.Is(err, source.ErrNoSnapshot):
		log.Debug("no baseline snapshot")
	case err != nil:
		log.Warn("baseline unavailable", zap.Error(err))
	}
	in.Series = normalize.NormalizeSeries(raw, aliases.Baseline)
	if in.Series.Skipped > 0 {
		log.Info("baseline rows skipped", zap.Int("skipped", in.Series.Skipped))
	}

	if s.deps.Analytics != nil {
		rows, err := resilience.DoVal(ctx, s.deps.Retry, func(ctx context.Context) ([]model.AnalyticsRow, error) {
			return s.deps.Analytics.AnalyticsRows(ctx, campaignID)
		})
		if err != nil {
			log.Warn("analytics unavailable", zap.Error(err))
		}
		in.Analytics = make(map[string]model.AnalyticsRow, len(rows))
		for _, r := range rows {
			in.Analytics[r.Date] = r
		}
	}

	if s.deps.Verifier != nil {
		rows, res, err := s.deps.Verifier.Resolve(ctx, campaignID, raw)
		if err != nil {
			log.Warn("verifier unavailable", zap.Error(err))
		} else {
			log.Debug("verifier resolved", zap.Strings("fields", res.Summary()))
		}
		in.Verifier = rows
	}

	ov, err := resilience.DoVal(ctx, s.deps.Retry, func(ctx context.Context) (model.OverrideMap, error) {
		return s.deps.Overrides.Overrides(ctx, campaignID)
	})
	if err != nil {
		return in, eris.Wrap(err, "reconcile: load overrides")
	}
	in.Overrides = ov

	reach, err := s.deps.Reach.Reach(ctx, campaignID, in.Series)
	if err != nil {
		log.Warn("reach unavailable", zap.Error(err))
	}
	in.Reach = reach

	return in, nil
}
