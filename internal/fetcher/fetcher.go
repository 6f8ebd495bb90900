// Package fetcher reads tabular exports (CSV and XLSX) into string rows.
package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Format is a supported table file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat returns the format implied by the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", eris.Errorf("fetcher: unsupported file type %q", filepath.Ext(path))
}

// ReadTable reads every row of a CSV or XLSX file. Trailing empty cells
// are trimmed and fully empty rows dropped.
func ReadTable(ctx context.Context, path string) ([][]string, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch format {
	case FormatXLSX:
		rows, err = ReadXLSX(path, XLSXOptions{})
	default:
		rows, err = ReadCSVFile(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	out := rows[:0]
	for _, r := range rows {
		r = trimTrailingEmpty(r)
		if len(r) > 0 {
			out = append(out, r)
		}
	}
	return out, nil
}

// ReadCSVFile reads a whole CSV file, detecting its delimiter.
func ReadCSVFile(ctx context.Context, path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: read %s", path)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")

	rowCh, errCh := StreamCSV(ctx, strings.NewReader(text), CSVOptions{
		Delimiter:  SniffDelimiter(text),
		LazyQuotes: true,
		TrimSpace:  true,
	})
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return rows, nil
}

func trimTrailingEmpty(r []string) []string {
	n := len(r)
	for n > 0 && strings.TrimSpace(r[n-1]) == "" {
		n--
	}
	return r[:n]
}
