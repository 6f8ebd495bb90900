// Package reconcile merges baseline, analytics and verifier data with manual
// overrides into per-date facts and campaign totals.
package reconcile

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Weight bases usable in a fallback chain.
const (
	BasisImpressions              = "impressions"
	BasisVisits                   = "visits"
	BasisVerifImpressions         = "verif_impressions"
	BasisVerifMeasuredImpressions = "verif_measured_impressions"
)

var knownBases = map[string]bool{
	BasisImpressions:              true,
	BasisVisits:                   true,
	BasisVerifImpressions:         true,
	BasisVerifMeasuredImpressions: true,
}

// Config parametrizes the engine. Weights maps each averaged metric to the
// ordered chain of weight bases tried for every date; the first non-null
// basis is used.
type Config struct {
	Weights map[string][]string `yaml:"weights" mapstructure:"weights"`
}

// DefaultConfig returns the standard weight fallback chains.
func DefaultConfig() Config {
	verifierBasis := []string{BasisVerifImpressions, BasisImpressions}
	measuredBasis := []string{BasisVerifMeasuredImpressions, BasisVerifImpressions, BasisImpressions}
	return Config{
		Weights: map[string][]string{
			"vtr_percent":               {BasisImpressions},
			"bounce_rate":               {BasisVisits},
			"page_depth":                {BasisVisits},
			"avg_time_sec":              {BasisVisits},
			"verif_ctr_percent":         verifierBasis,
			"verif_vtr_percent":         verifierBasis,
			"verif_viewability_percent": measuredBasis,
			"verif_unsafe_percent":      measuredBasis,
			"verif_givt_percent":        measuredBasis,
			"verif_sivt_percent":        measuredBasis,
		},
	}
}

// Validate checks that every chain is non-empty and names known fields.
func (c Config) Validate() error {
	for metric, chain := range c.Weights {
		if _, ok := factAccessors[metric]; !ok {
			return eris.Errorf("reconcile: unknown weighted metric %q", metric)
		}
		if len(chain) == 0 {
			return eris.Errorf("reconcile: empty weight chain for %q", metric)
		}
		for _, basis := range chain {
			if !knownBases[basis] {
				return eris.Errorf("reconcile: unknown weight basis %q for %q", basis, metric)
			}
		}
	}
	return nil
}

// merged overlays c onto the defaults so a partial config keeps the
// remaining standard chains.
func (c Config) merged() Config {
	out := DefaultConfig()
	for metric, chain := range c.Weights {
		out.Weights[metric] = chain
	}
	return out
}

// weightedMetrics returns the configured metrics in a stable order.
func (c Config) weightedMetrics() []string {
	names := make([]string, 0, len(c.Weights))
	for m := range c.Weights {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}
