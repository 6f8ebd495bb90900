// Package verifier resolves third-party verification data for a campaign
// from the structured verifier store and the spreadsheet fallback.
package verifier

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campaign-hub/internal/model"
	"github.com/sells-group/campaign-hub/internal/normalize"
)

// Store is the structured verifier store.
type Store interface {
	// VerifierCampaignID maps a campaign to its id in the verifier's
	// system. It returns "" when no mapping exists.
	VerifierCampaignID(ctx context.Context, campaignID int64) (string, error)
	// VerifierRows returns the stored daily rows for a verifier id.
	VerifierRows(ctx context.Context, verifierID string) ([]model.VerifierRow, error)
}

// AliasProvider supplies the current alias tables.
type AliasProvider interface {
	Get() (*normalize.Aliases, error)
}

// Origin names where a verifier field's values came from.
type Origin string

const (
	OriginStore Origin = "store"
	OriginSheet Origin = "sheet"
	OriginNone  Origin = "none"
)

// Resolution records the origin chosen for each field.
type Resolution struct {
	VerifierID string
	Fields     map[model.VerifierField]Origin
}

// Summary renders the resolution as field=origin pairs in field order.
func (r Resolution) Summary() []string {
	out := make([]string, 0, len(r.Fields))
	for _, f := range model.VerifierFields {
		if o, ok := r.Fields[f]; ok {
			out = append(out, string(f)+"="+string(o))
		}
	}
	return out
}

// Resolver combines the structured store and the spreadsheet columns.
type Resolver struct {
	store   Store
	aliases AliasProvider
}

// NewResolver creates a Resolver. A nil store makes the spreadsheet the
// only source; a nil alias provider uses the built-in aliases.
func NewResolver(store Store, aliases AliasProvider) *Resolver {
	return &Resolver{store: store, aliases: aliases}
}

// Resolve returns verifier rows keyed by date. For every field, the
// structured store wins outright when it holds any value for that field on
// any date; otherwise the spreadsheet supplies the field on every date. The
// two sources are never blended within one field.
func (r *Resolver) Resolve(ctx context.Context, campaignID int64, sheet []normalize.Row) (map[string]model.VerifierRow, Resolution, error) {
	res := Resolution{Fields: make(map[model.VerifierField]Origin, len(model.VerifierFields))}

	aliases := normalize.DefaultAliases()
	if r.aliases != nil {
		a, err := r.aliases.Get()
		if err != nil {
			return nil, res, eris.Wrap(err, "verifier: load aliases")
		}
		aliases = a
	}

	structured := r.structured(ctx, campaignID, &res)
	fromSheet := SheetRows(sheet, aliases.Baseline, aliases.VerifierSheet)

	out := make(map[string]model.VerifierRow, len(structured)+len(fromSheet))
	for _, f := range model.VerifierFields {
		var src map[string]model.VerifierRow
		switch {
		case hasField(structured, f):
			src, res.Fields[f] = structured, OriginStore
		case hasField(fromSheet, f):
			src, res.Fields[f] = fromSheet, OriginSheet
		default:
			res.Fields[f] = OriginNone
			continue
		}
		for date, row := range src {
			v := row.Get(f)
			if v == nil {
				continue
			}
			merged := out[date]
			merged.Date = date
			merged.Set(f, v)
			out[date] = merged
		}
	}
	return out, res, nil
}

// structured loads the store rows. Store failures are logged and treated
// as an empty store.
func (r *Resolver) structured(ctx context.Context, campaignID int64, res *Resolution) map[string]model.VerifierRow {
	if r.store == nil {
		return nil
	}
	log := zap.L().With(zap.Int64("campaign_id", campaignID))

	vid, err := r.store.VerifierCampaignID(ctx, campaignID)
	if err != nil {
		log.Debug("verifier: mapping lookup failed", zap.Error(err))
	}
	if vid == "" {
		vid = FallbackID(campaignID)
		log.Debug("verifier: no mapping, using campaign id", zap.String("verifier_id", vid))
	}
	res.VerifierID = vid

	rows, err := r.store.VerifierRows(ctx, vid)
	if err != nil {
		log.Warn("verifier: store read failed", zap.String("verifier_id", vid), zap.Error(err))
		return nil
	}
	out := make(map[string]model.VerifierRow, len(rows))
	for _, row := range rows {
		if row.Date == "" {
			continue
		}
		out[row.Date] = row
	}
	return out
}

// SheetRows extracts the verifier columns embedded in baseline rows. Rows
// without a readable date, and summary rows, are ignored.
func SheetRows(rows []normalize.Row, baseline, sheet normalize.AliasTable) map[string]model.VerifierRow {
	out := make(map[string]model.VerifierRow)
	for _, row := range rows {
		date, summary, ok := normalize.DateOf(row, baseline)
		if !ok || summary {
			continue
		}
		vr := model.VerifierRow{Date: date}
		found := false
		for _, f := range model.VerifierFields {
			if v := row.Value(sheet[string(f)]); v != nil {
				vr.Set(f, v)
				found = true
			}
		}
		if found {
			out[date] = vr
		}
	}
	return out
}

// FallbackID is the verifier id used when a campaign has no mapping.
func FallbackID(campaignID int64) string {
	return strconv.FormatInt(campaignID, 10)
}

func hasField(rows map[string]model.VerifierRow, f model.VerifierField) bool {
	for _, row := range rows {
		if row.Get(f) != nil {
			return true
		}
	}
	return false
}
