package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campaign-hub/internal/model"
)

func TestNormalize_LocalizedAliasMatchesEnglish(t *testing.T) {
	t.Parallel()

	table := DefaultAliases().Baseline

	english := Normalize(Row{"date": "2025-01-10", "impressions": "1 000"}, table)
	localized := Normalize(Row{"День": "10.01.2025", "Показы": "1 000"}, table)

	require.NotNil(t, english.Impressions)
	require.NotNil(t, localized.Impressions)
	assert.Equal(t, *english.Impressions, *localized.Impressions)
	assert.Equal(t, english.Date, localized.Date)
}

func TestNormalize_FirstNonNullAliasWins(t *testing.T) {
	t.Parallel()

	table := AliasTable{FieldImpressions: {"impressions", "Показы"}}

	row := Row{"impressions": "nan", "Показы": "500"}
	got := Normalize(row, table)
	require.NotNil(t, got.Impressions)
	assert.Equal(t, 500.0, *got.Impressions)

	row = Row{"impressions": "100", "Показы": "500"}
	got = Normalize(row, table)
	require.NotNil(t, got.Impressions)
	assert.Equal(t, 100.0, *got.Impressions)
}

func TestNormalize_FoldedHeaders(t *testing.T) {
	t.Parallel()

	table := DefaultAliases().Baseline
	got := Normalize(Row{" ПОКАЗЫ ": "10", "Clicks": "2"}, table)
	require.NotNil(t, got.Impressions)
	require.NotNil(t, got.Clicks)
	assert.Equal(t, 10.0, *got.Impressions)
	assert.Equal(t, 2.0, *got.Clicks)
}

func TestNormalize_MalformedCellIsNilRowKept(t *testing.T) {
	t.Parallel()

	table := DefaultAliases().Baseline
	got := Normalize(Row{"date": "2025-01-10", "impressions": "oops", "clicks": "5"}, table)
	assert.Equal(t, "2025-01-10", got.Date)
	assert.Nil(t, got.Impressions)
	require.NotNil(t, got.Clicks)
	assert.Equal(t, 5.0, *got.Clicks)
}

func TestNormalizeSeries_ExcludesSummaryRows(t *testing.T) {
	t.Parallel()

	table := DefaultAliases().Baseline
	rows := []Row{
		{"date": "2025-01-10", "impressions": "1000", "uniques": "400"},
		{"date": "11.01.2025", "impressions": "2000", "uniques": "500"},
		{"date": "bogus", "impressions": "999"},
		{"date": "Итого", "impressions": "3000", "uniques": "700"},
	}

	s := NormalizeSeries(rows, table)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, []string{"2025-01-10", "2025-01-11"}, seriesDates(s))
	assert.Equal(t, 1, s.Skipped)
	require.NotNil(t, s.Summary)
	require.NotNil(t, s.Summary.Uniques)
	assert.Equal(t, 700.0, *s.Summary.Uniques)
	assert.Empty(t, s.Summary.Date)
}

func TestNormalizeSeries_PreservesOrder(t *testing.T) {
	t.Parallel()

	table := DefaultAliases().Baseline
	rows := []Row{
		{"date": "2025-01-12"},
		{"date": "2025-01-10"},
	}
	s := NormalizeSeries(rows, table)
	assert.Equal(t, []string{"2025-01-12", "2025-01-10"}, seriesDates(s))
}

func TestRowsFromTable(t *testing.T) {
	t.Parallel()

	rows := RowsFromTable(
		[]string{"date", "", "impressions"},
		[][]string{{"2025-01-10", "x", "10"}, {"2025-01-11"}},
	)
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"date": "2025-01-10", "impressions": "10"}, rows[0])
	assert.Equal(t, Row{"date": "2025-01-11"}, rows[1])
}

func TestFindHeaderRow(t *testing.T) {
	t.Parallel()

	table := DefaultAliases().Analytics
	rows := [][]string{
		{"Отчёт по кампании", ""},
		{"Фильтр: UTM Campaign = test", ""},
		{"Дата", "Визиты", "Отказы"},
		{"10.01.2025", "120", "15,5"},
	}
	assert.Equal(t, 2, FindHeaderRow(rows, table))
	assert.Equal(t, -1, FindHeaderRow(rows[:2], table))
}

func seriesDates(s model.Series) []string {
	out := make([]string, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.Date
	}
	return out
}
