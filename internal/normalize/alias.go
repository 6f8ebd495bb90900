package normalize

import (
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// AliasTable maps a canonical field to the ordered list of column names it
// has historically been exported under. Earlier aliases win.
type AliasTable map[string][]string

// Canonical field names shared by the alias tables.
const (
	FieldDate        = "date"
	FieldImpressions = "impressions"
	FieldClicks      = "clicks"
	FieldUniques     = "uniques"
	FieldVTRPercent  = "vtr_percent"

	FieldCampaignID         = "campaign_id"
	FieldVerifierCampaignID = "verifier_campaign_id"

	FieldVisits     = "visits"
	FieldBounceRate = "bounce_rate"
	FieldPageDepth  = "page_depth"
	FieldAvgTimeSec = "avg_time_sec"
)

// Aliases bundles the alias tables of every source family.
type Aliases struct {
	// Baseline is the first-party ad-serving export.
	Baseline AliasTable `yaml:"baseline"`
	// Analytics is the web-analytics export used by imports.
	Analytics AliasTable `yaml:"analytics"`
	// VerifierStore picks physical columns of the structured verifier table.
	VerifierStore AliasTable `yaml:"verifier_store"`
	// VerifierSheet picks provider-prefixed verifier columns embedded in
	// the baseline spreadsheet.
	VerifierSheet AliasTable `yaml:"verifier_sheet"`
	// VerifierMapping picks columns of the campaign -> verifier id table.
	VerifierMapping AliasTable `yaml:"verifier_mapping"`
	// VerifierImport maps provider report headers for imports.
	VerifierImport AliasTable `yaml:"verifier_import"`
}

// DefaultAliases returns the built-in alias tables.
func DefaultAliases() *Aliases {
	return &Aliases{
		Baseline: AliasTable{
			FieldDate:        {"date", "День", "Дата", "day"},
			FieldImpressions: {"impressions", "Показы"},
			FieldClicks:      {"clicks", "Переходы"},
			FieldUniques:     {"uniques", "Охват", "reach"},
			FieldVTRPercent:  {"vtr_percent", "VTR"},
		},
		Analytics: AliasTable{
			FieldCampaignID: {"campaign_id"},
			FieldDate:       {"Дата", "date", "day", "report_date"},
			FieldVisits:     {"Визиты", "visits"},
			FieldBounceRate: {"Отказы", "bounce rate", "Показатель отказов", "bounce_rate"},
			FieldPageDepth:  {"Глубина просмотра", "average page depth", "page_depth", "depth"},
			FieldAvgTimeSec: {"Время на сайте", "Среднее время на сайте", "average visit duration", "avg_time_sec"},
		},
		VerifierStore: AliasTable{
			FieldVerifierCampaignID: {"verifier_campaign_id", "campaign_id", "cid", "campaign"},
			FieldDate:               {"date", "report_date", "day"},
			"impressions":           {"impressions", "impr", "imp"},
			"clicks":                {"clicks", "clk"},
			"ctr_percent":           {"ctr_percent", "ctr"},
			"vtr_percent":           {"vtr_percent", "vtr"},
			"viewability_percent":   {"viewability_percent", "viewability", "visible_percent"},
			"unsafe_percent":        {"unsafe_percent", "unsafe"},
			"givt_percent":          {"givt_percent", "givt"},
			"sivt_percent":          {"sivt_percent", "sivt"},
			"measured_impressions":  {"measured_impressions", "measured", "meas_impressions", "viewable_measured", "view_measured"},
		},
		VerifierSheet: AliasTable{
			"impressions":          {"verif_impressions", "verifier_impressions", "moat_impressions", "ias_impressions", "dv_impressions"},
			"clicks":               {"verif_clicks", "verifier_clicks", "moat_clicks", "ias_clicks", "dv_clicks"},
			"ctr_percent":          {"verif_ctr_percent", "verifier_ctr_percent", "moat_ctr", "ias_ctr", "dv_ctr"},
			"vtr_percent":          {"verif_vtr_percent", "verifier_vtr_percent", "moat_vtr", "ias_vtr", "dv_vtr"},
			"viewability_percent":  {"verif_viewability_percent", "verifier_viewability_percent", "viewability_percent", "moat_viewability", "ias_viewability", "dv_viewability"},
			"unsafe_percent":       {"unsafe_percent", "verifier_unsafe_percent"},
			"givt_percent":         {"givt_percent", "verifier_givt_percent"},
			"sivt_percent":         {"sivt_percent", "verifier_sivt_percent"},
			"measured_impressions": {"measured_impressions", "verifier_measured_impressions", "moat_measured_impressions", "ias_measured_impressions", "dv_measured_impressions"},
		},
		VerifierMapping: AliasTable{
			FieldCampaignID:         {"campaign_id", "cid", "campaign"},
			FieldVerifierCampaignID: {"verifier_campaign_id", "verifier_id", "verif_campaign_id", "vid"},
		},
		VerifierImport: AliasTable{
			FieldDate:              {"Date", "Дата", "date"},
			"impressions":          {"Impressions (Net)", "Imp WCM", "Impressions", "Показы"},
			"clicks":               {"Clicks (Net)", "Clicks", "Клики"},
			"ctr_percent":          {"CTR", "CTR (%)"},
			"vtr_percent":          {"VTR", "VTR (%)"},
			"viewability_percent":  {"Viewable Impressions Rate (IAB)", "Viewability", "Viewability (%)"},
			"unsafe_percent":       {"Unsafe Rate", "Unsafe (%)"},
			"givt_percent":         {"GIVT Rate", "GIVT (%)"},
			"sivt_percent":         {"SIVT Rate", "SIVT (%)"},
			"measured_impressions": {"Total Recordable Impressions", "Measured Impressions"},
		},
	}
}

// LoadAliases reads alias tables from a YAML file with a top-level
// "aliases" key. Families or fields missing from the file keep their
// built-in aliases. An empty path yields the defaults.
func LoadAliases(path string) (*Aliases, error) {
	a := DefaultAliases()
	if path == "" {
		return a, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "normalize: read aliases %s", path)
	}

	var wrapper struct {
		Aliases Aliases `yaml:"aliases"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "normalize: parse aliases")
	}

	merge(a.Baseline, wrapper.Aliases.Baseline)
	merge(a.Analytics, wrapper.Aliases.Analytics)
	merge(a.VerifierStore, wrapper.Aliases.VerifierStore)
	merge(a.VerifierSheet, wrapper.Aliases.VerifierSheet)
	merge(a.VerifierMapping, wrapper.Aliases.VerifierMapping)
	merge(a.VerifierImport, wrapper.Aliases.VerifierImport)
	return a, nil
}

func merge(dst, src AliasTable) {
	for field, names := range src {
		if len(names) > 0 {
			dst[field] = names
		}
	}
}

// AliasCache holds the alias tables for the life of the process. The file
// is read on first use and again after Invalidate.
type AliasCache struct {
	path string

	mu      sync.RWMutex
	aliases *Aliases
}

// NewAliasCache creates a cache backed by the YAML file at path.
func NewAliasCache(path string) *AliasCache {
	return &AliasCache{path: path}
}

// Get returns the cached alias tables, loading them if needed.
func (c *AliasCache) Get() (*Aliases, error) {
	c.mu.RLock()
	a := c.aliases
	c.mu.RUnlock()
	if a != nil {
		return a, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aliases != nil {
		return c.aliases, nil
	}
	a, err := LoadAliases(c.path)
	if err != nil {
		return nil, err
	}
	c.aliases = a
	return a, nil
}

// Invalidate drops the cached tables so the next Get re-reads the file.
func (c *AliasCache) Invalidate() {
	c.mu.Lock()
	c.aliases = nil
	c.mu.Unlock()
}
