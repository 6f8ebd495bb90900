// Package normalize maps heterogeneous source rows onto canonical records
// with locale-aware numeric and date coercion.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// nullTokens coerce to nil, never to zero.
var nullTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
	"nat":  true,
	"null": true,
	"—":    true,
}

// IsNullToken reports whether s is a placeholder meaning "no value".
func IsNullToken(s string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(s))]
}

// ParseNumber coerces a cell to a float. It accepts native numbers, strings
// with space or non-breaking-space thousands separators, a comma decimal
// point and a trailing percent sign, and H:MM:SS or M:SS durations (returned
// as seconds). Anything else is nil.
func ParseNumber(v any) *float64 {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return finite(float64(x))
	case int32:
		return finite(float64(x))
	case int64:
		return finite(float64(x))
	case uint:
		return finite(float64(x))
	case uint32:
		return finite(float64(x))
	case uint64:
		return finite(float64(x))
	case *float64:
		if x == nil {
			return nil
		}
		return finite(*x)
	case string:
		return parseNumberString(x)
	case []byte:
		return parseNumberString(string(x))
	default:
		return parseNumberString(fmt.Sprint(x))
	}
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func parseNumberString(s string) *float64 {
	s = strings.TrimSpace(s)
	if IsNullToken(s) {
		return nil
	}

	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\u2009', '\t':
			return -1
		case ',':
			return '.'
		}
		return r
	}, s)
	cleaned = strings.TrimSuffix(cleaned, "%")

	if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return finite(f)
	}
	if strings.Contains(cleaned, ":") {
		if secs, ok := parseClock(cleaned); ok {
			return &secs
		}
	}
	return nil
}

// parseClock converts H:MM:SS or M:SS to seconds.
func parseClock(s string) (float64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	var total float64
	for i, p := range parts {
		if p == "" {
			return 0, false
		}
		var n float64
		if i == len(parts)-1 {
			f, err := strconv.ParseFloat(p, 64)
			if err != nil || f < 0 {
				return 0, false
			}
			n = f
		} else {
			d, err := strconv.Atoi(p)
			if err != nil || d < 0 {
				return 0, false
			}
			n = float64(d)
		}
		total = total*60 + n
	}
	return total, true
}

// summaryMarkers mark the export's own total row, or a blank date cell.
var summaryMarkers = []string{"total", "итого", "всего"}

// IsSummaryMarker reports whether a date cell denotes a summary row rather
// than a calendar day.
func IsSummaryMarker(v any) bool {
	if v == nil {
		return true
	}
	if t, ok := v.(time.Time); ok {
		return t.IsZero()
	}
	s := strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
	if IsNullToken(s) {
		return true
	}
	for _, m := range summaryMarkers {
		if strings.HasPrefix(s, m) {
			return true
		}
	}
	return false
}

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	// tealeg/xlsx renders date-formatted cells with the default mm-dd-yy format.
	"01-02-06",
}

// ParseDate normalizes a YYYY-MM-DD or DD.MM.YYYY cell to YYYY-MM-DD.
// Trailing time-of-day text is ignored.
func ParseDate(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case nil:
		return "", false
	case time.Time:
		if x.IsZero() {
			return "", false
		}
		return x.Format(time.DateOnly), true
	case *time.Time:
		if x == nil || x.IsZero() {
			return "", false
		}
		return x.Format(time.DateOnly), true
	case string:
		s = x
	default:
		s = fmt.Sprint(x)
	}

	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if len(s) < len(layout) {
			continue
		}
		candidate := s[:len(layout)]
		if len(s) > len(layout) && s[len(layout)] != ' ' && s[len(layout)] != 'T' {
			continue
		}
		if t, err := time.Parse(layout, candidate); err == nil {
			return t.Format(time.DateOnly), true
		}
	}
	return "", false
}

// CleanID canonicalizes an identifier read from a loosely typed cell:
// numeric ids lose a trailing ".0" that spreadsheets add.
func CleanID(raw string) string {
	s := strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}
