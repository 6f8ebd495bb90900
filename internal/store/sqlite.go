package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/campaign-hub/internal/model"
	"github.com/sells-group/campaign-hub/internal/normalize"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db      *sql.DB
	aliases *normalize.Aliases
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, aliases: normalize.DefaultAliases()}, nil
}

// WithAliases sets the alias tables used to pick verifier and analytics columns.
func (s *SQLiteStore) WithAliases(a *normalize.Aliases) *SQLiteStore {
	if a != nil {
		s.aliases = a
	}
	return s
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS daily_overrides (
	campaign_id INTEGER NOT NULL,
	date        TEXT NOT NULL,
	metric      TEXT NOT NULL,
	value       TEXT NOT NULL,
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (campaign_id, date, metric)
);

CREATE TABLE IF NOT EXISTS verifier_campaigns (
	campaign_id          INTEGER PRIMARY KEY,
	verifier_campaign_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS verifier_daily_metric (
	verifier_campaign_id TEXT NOT NULL,
	date                 TEXT NOT NULL,
	impressions          REAL,
	clicks               REAL,
	ctr_percent          REAL,
	vtr_percent          REAL,
	viewability_percent  REAL,
	unsafe_percent       REAL,
	givt_percent         REAL,
	sivt_percent         REAL,
	measured_impressions REAL,
	PRIMARY KEY (verifier_campaign_id, date)
);

CREATE TABLE IF NOT EXISTS analytics_daily_metrics (
	campaign_id  INTEGER NOT NULL,
	date         TEXT NOT NULL,
	visits       REAL,
	bounce_rate  REAL,
	page_depth   REAL,
	avg_time_sec REAL,
	PRIMARY KEY (campaign_id, date)
);

CREATE TABLE IF NOT EXISTS import_files (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	path        TEXT NOT NULL,
	campaign_id INTEGER NOT NULL,
	verifier_id TEXT NOT NULL DEFAULT '',
	rows        INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_daily_overrides_campaign ON daily_overrides(campaign_id);
CREATE INDEX IF NOT EXISTS idx_import_files_created_at ON import_files(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Overrides(ctx context.Context, campaignID int64) (model.OverrideMap, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, metric, value FROM daily_overrides WHERE campaign_id = ?`,
		campaignID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list overrides %d", campaignID)
	}
	defer rows.Close() //nolint:errcheck

	out := make(model.OverrideMap)
	for rows.Next() {
		var date, metric, value string
		if err := rows.Scan(&date, &metric, &value); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan override")
		}
		addOverride(out, date, metric, value)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate overrides")
}

func (s *SQLiteStore) SetOverride(ctx context.Context, campaignID int64, date string, metric model.Metric, value string) error {
	value, del := overrideValue(value)
	if del {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM daily_overrides WHERE campaign_id = ? AND date = ? AND metric = ?`,
			campaignID, date, string(metric),
		)
		return eris.Wrapf(err, "sqlite: delete override %d/%s/%s", campaignID, date, metric)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_overrides (campaign_id, date, metric, value, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (campaign_id, date, metric) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		campaignID, date, string(metric), value, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert override %d/%s/%s", campaignID, date, metric)
}

// columns lists the columns of table; a missing table yields none.
func (s *SQLiteStore) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: table info %s", table)
	}
	defer rows.Close() //nolint:errcheck

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan column")
		}
		cols = append(cols, name)
	}
	return cols, eris.Wrap(rows.Err(), "sqlite: iterate columns")
}

func (s *SQLiteStore) VerifierCampaignID(ctx context.Context, campaignID int64) (string, error) {
	cols, err := s.columns(ctx, TableVerifierMapping)
	if err != nil {
		return "", err
	}
	pick := pickColumns(cols, s.aliases.VerifierMapping)
	cid, okC := pick[normalize.FieldCampaignID]
	vid, okV := pick[normalize.FieldVerifierCampaignID]
	if !okC || !okV {
		return "", nil
	}

	query := fmt.Sprintf(`SELECT CAST(%s AS TEXT) FROM %s WHERE %s = ? LIMIT 1`,
		quoteIdent(vid), TableVerifierMapping, quoteIdent(cid))
	var id sql.NullString
	err = s.db.QueryRowContext(ctx, query, campaignID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: verifier id for %d", campaignID)
	}
	return normalize.CleanID(id.String), nil
}

func (s *SQLiteStore) SetVerifierCampaignID(ctx context.Context, campaignID int64, verifierID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verifier_campaigns (campaign_id, verifier_campaign_id) VALUES (?, ?)
		 ON CONFLICT (campaign_id) DO UPDATE SET verifier_campaign_id = excluded.verifier_campaign_id`,
		campaignID, verifierID,
	)
	return eris.Wrapf(err, "sqlite: map verifier id %d", campaignID)
}

func (s *SQLiteStore) VerifierRows(ctx context.Context, verifierID string) ([]model.VerifierRow, error) {
	cols, err := s.columns(ctx, TableVerifierDaily)
	if err != nil {
		return nil, err
	}
	pick := pickColumns(cols, s.aliases.VerifierStore)
	idCol, okID := pick[normalize.FieldVerifierCampaignID]
	dateCol, okDate := pick[normalize.FieldDate]
	if !okID || !okDate {
		return nil, nil
	}

	cast := func(c string) string { return "CAST(" + c + " AS TEXT)" }
	fields, exprs := verifierSelect(pick, cast)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE CAST(%s AS TEXT) = ? ORDER BY %s`,
		strings.Join(append([]string{cast(quoteIdent(dateCol))}, exprs...), ", "),
		TableVerifierDaily, quoteIdent(idCol), quoteIdent(dateCol))

	rows, err := s.db.QueryContext(ctx, query, verifierID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: verifier rows %s", verifierID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.VerifierRow
	for rows.Next() {
		var date *string
		cells := make([]*string, len(fields))
		dest := []any{&date}
		for i := range cells {
			dest = append(dest, &cells[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan verifier row")
		}
		if row, ok := scanVerifier(date, fields, cells); ok {
			out = append(out, row)
		}
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate verifier rows")
}

func (s *SQLiteStore) UpsertVerifierRows(ctx context.Context, verifierID string, rows []model.VerifierRow) (int, error) {
	return s.upsert(ctx, TableVerifierDaily, verifierColumns, 2, len(rows), func(i int) []any {
		return verifierArgs(verifierID, rows[i])
	})
}

func (s *SQLiteStore) AnalyticsRows(ctx context.Context, campaignID int64) ([]model.AnalyticsRow, error) {
	cols, err := s.columns(ctx, TableAnalyticsDaily)
	if err != nil {
		return nil, err
	}
	pick := pickColumns(cols, s.aliases.Analytics)
	idCol, okID := pick[normalize.FieldCampaignID]
	dateCol, okDate := pick[normalize.FieldDate]
	if !okID || !okDate {
		return nil, nil
	}

	cast := func(c string) string { return "CAST(" + c + " AS TEXT)" }
	fields, exprs := analyticsSelect(pick, cast)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? ORDER BY %s`,
		strings.Join(append([]string{cast(quoteIdent(dateCol))}, exprs...), ", "),
		TableAnalyticsDaily, quoteIdent(idCol), quoteIdent(dateCol))

	rows, err := s.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: analytics rows %d", campaignID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.AnalyticsRow
	for rows.Next() {
		var date *string
		cells := make([]*string, len(fields))
		dest := []any{&date}
		for i := range cells {
			dest = append(dest, &cells[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analytics row")
		}
		if row, ok := scanAnalytics(campaignID, date, fields, cells); ok {
			out = append(out, row)
		}
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate analytics rows")
}

func (s *SQLiteStore) UpsertAnalyticsRows(ctx context.Context, rows []model.AnalyticsRow) (int, error) {
	return s.upsert(ctx, TableAnalyticsDaily, analyticsColumns, 2, len(rows), func(i int) []any {
		return analyticsArgs(rows[i])
	})
}

// upsert writes n rows in one transaction. The first nKeys columns form the
// conflict target; the rest are replaced.
func (s *SQLiteStore) upsert(ctx context.Context, table string, cols []string, nKeys, n int, args func(int) []any) (int, error) {
	if n == 0 {
		return 0, nil
	}

	sets := make([]string, 0, len(cols)-nKeys)
	for _, c := range cols[nKeys:] {
		sets = append(sets, c+" = excluded."+c)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s`,
		table,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		strings.Join(cols[:nKeys], ", "),
		strings.Join(sets, ", "),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: begin upsert %s", table)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare upsert %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert %s row %d", table, i)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: commit upsert %s", table)
	}
	return n, nil
}

func (s *SQLiteStore) RecordImport(ctx context.Context, rec ImportRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_files (id, kind, path, campaign_id, verifier_id, rows, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.Path, rec.CampaignID, rec.VerifierID, rec.Rows, rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: record import")
}

func (s *SQLiteStore) ListImports(ctx context.Context, limit int) ([]ImportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, path, campaign_id, verifier_id, rows, created_at
		 FROM import_files ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list imports")
	}
	defer rows.Close() //nolint:errcheck

	var out []ImportRecord
	for rows.Next() {
		var r ImportRecord
		var kind string
		if err := rows.Scan(&r.ID, &kind, &r.Path, &r.CampaignID, &r.VerifierID, &r.Rows, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan import")
		}
		r.Kind = ImportKind(kind)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate imports")
}

// addOverride records one stored override; blank values count as absent.
func addOverride(m model.OverrideMap, date, metric, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if d, ok := normalize.ParseDate(date); ok {
		date = d
	}
	day, ok := m[date]
	if !ok {
		day = make(map[model.Metric]string)
		m[date] = day
	}
	day[model.Metric(metric)] = value
}
