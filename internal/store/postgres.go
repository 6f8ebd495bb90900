package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/campaign-hub/internal/db"
	"github.com/sells-group/campaign-hub/internal/model"
	"github.com/sells-group/campaign-hub/internal/normalize"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	aliases *normalize.Aliases
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, aliases: normalize.DefaultAliases()}, nil
}

// WithAliases sets the alias tables used to pick verifier and analytics columns.
func (s *PostgresStore) WithAliases(a *normalize.Aliases) *PostgresStore {
	if a != nil {
		s.aliases = a
	}
	return s
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS daily_overrides (
	campaign_id BIGINT NOT NULL,
	date        TEXT NOT NULL,
	metric      TEXT NOT NULL,
	value       TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (campaign_id, date, metric)
);

CREATE TABLE IF NOT EXISTS verifier_campaigns (
	campaign_id          BIGINT PRIMARY KEY,
	verifier_campaign_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS verifier_daily_metric (
	verifier_campaign_id TEXT NOT NULL,
	date                 TEXT NOT NULL,
	impressions          DOUBLE PRECISION,
	clicks               DOUBLE PRECISION,
	ctr_percent          DOUBLE PRECISION,
	vtr_percent          DOUBLE PRECISION,
	viewability_percent  DOUBLE PRECISION,
	unsafe_percent       DOUBLE PRECISION,
	givt_percent         DOUBLE PRECISION,
	sivt_percent         DOUBLE PRECISION,
	measured_impressions DOUBLE PRECISION,
	PRIMARY KEY (verifier_campaign_id, date)
);

CREATE TABLE IF NOT EXISTS analytics_daily_metrics (
	campaign_id  BIGINT NOT NULL,
	date         TEXT NOT NULL,
	visits       DOUBLE PRECISION,
	bounce_rate  DOUBLE PRECISION,
	page_depth   DOUBLE PRECISION,
	avg_time_sec DOUBLE PRECISION,
	PRIMARY KEY (campaign_id, date)
);

CREATE TABLE IF NOT EXISTS import_files (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	kind        TEXT NOT NULL,
	path        TEXT NOT NULL,
	campaign_id BIGINT NOT NULL,
	verifier_id TEXT NOT NULL DEFAULT '',
	rows        INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_daily_overrides_campaign ON daily_overrides(campaign_id);
CREATE INDEX IF NOT EXISTS idx_import_files_created_at ON import_files(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Overrides(ctx context.Context, campaignID int64) (model.OverrideMap, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, metric, value FROM daily_overrides WHERE campaign_id = $1`,
		campaignID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list overrides %d", campaignID)
	}
	defer rows.Close()

	out := make(model.OverrideMap)
	for rows.Next() {
		var date, metric, value string
		if err := rows.Scan(&date, &metric, &value); err != nil {
			return nil, eris.Wrap(err, "postgres: scan override")
		}
		addOverride(out, date, metric, value)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate overrides")
}

func (s *PostgresStore) SetOverride(ctx context.Context, campaignID int64, date string, metric model.Metric, value string) error {
	value, del := overrideValue(value)
	if del {
		_, err := s.pool.Exec(ctx,
			`DELETE FROM daily_overrides WHERE campaign_id = $1 AND date = $2 AND metric = $3`,
			campaignID, date, string(metric),
		)
		return eris.Wrapf(err, "postgres: delete override %d/%s/%s", campaignID, date, metric)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO daily_overrides (campaign_id, date, metric, value, updated_at) VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (campaign_id, date, metric) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		campaignID, date, string(metric), value,
	)
	return eris.Wrapf(err, "postgres: upsert override %d/%s/%s", campaignID, date, metric)
}

// columns lists the columns of table in the current schema; a missing
// table yields none.
func (s *PostgresStore) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = $1
		 ORDER BY ordinal_position`,
		table,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: columns of %s", table)
	}
	cols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return cols, eris.Wrapf(err, "postgres: scan columns of %s", table)
}

func (s *PostgresStore) VerifierCampaignID(ctx context.Context, campaignID int64) (string, error) {
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

	query := fmt.Sprintf(`SELECT %s::text FROM %s WHERE %s::text = $1 LIMIT 1`,
		quoteIdent(vid), TableVerifierMapping, quoteIdent(cid))
	var id *string
	err = s.pool.QueryRow(ctx, query, verifierKey(campaignID)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "postgres: verifier id for %d", campaignID)
	}
	if id == nil {
		return "", nil
	}
	return normalize.CleanID(*id), nil
}

func (s *PostgresStore) SetVerifierCampaignID(ctx context.Context, campaignID int64, verifierID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO verifier_campaigns (campaign_id, verifier_campaign_id) VALUES ($1, $2)
		 ON CONFLICT (campaign_id) DO UPDATE SET verifier_campaign_id = EXCLUDED.verifier_campaign_id`,
		campaignID, verifierID,
	)
	return eris.Wrapf(err, "postgres: map verifier id %d", campaignID)
}

func (s *PostgresStore) VerifierRows(ctx context.Context, verifierID string) ([]model.VerifierRow, error) {
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

	cast := func(c string) string { return c + "::text" }
	fields, exprs := verifierSelect(pick, cast)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s::text = $1 ORDER BY %s`,
		strings.Join(append([]string{cast(quoteIdent(dateCol))}, exprs...), ", "),
		TableVerifierDaily, quoteIdent(idCol), quoteIdent(dateCol))

	rows, err := s.pool.Query(ctx, query, verifierID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: verifier rows %s", verifierID)
	}
	defer rows.Close()

	var out []model.VerifierRow
	for rows.Next() {
		var date *string
		cells := make([]*string, len(fields))
		dest := []any{&date}
		for i := range cells {
			dest = append(dest, &cells[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan verifier row")
		}
		if row, ok := scanVerifier(date, fields, cells); ok {
			out = append(out, row)
		}
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate verifier rows")
}

func (s *PostgresStore) UpsertVerifierRows(ctx context.Context, verifierID string, rows []model.VerifierRow) (int, error) {
	data := make([][]any, len(rows))
	for i, r := range rows {
		data[i] = verifierArgs(verifierID, r)
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        TableVerifierDaily,
		Columns:      verifierColumns,
		ConflictKeys: verifierColumns[:2],
	}, data)
	return int(n), eris.Wrapf(err, "postgres: upsert verifier rows %s", verifierID)
}

func (s *PostgresStore) AnalyticsRows(ctx context.Context, campaignID int64) ([]model.AnalyticsRow, error) {
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

	cast := func(c string) string { return c + "::text" }
	fields, exprs := analyticsSelect(pick, cast)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s`,
		strings.Join(append([]string{cast(quoteIdent(dateCol))}, exprs...), ", "),
		TableAnalyticsDaily, quoteIdent(idCol), quoteIdent(dateCol))

	rows, err := s.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: analytics rows %d", campaignID)
	}
	defer rows.Close()

	var out []model.AnalyticsRow
	for rows.Next() {
		var date *string
		cells := make([]*string, len(fields))
		dest := []any{&date}
		for i := range cells {
			dest = append(dest, &cells[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan analytics row")
		}
		if row, ok := scanAnalytics(campaignID, date, fields, cells); ok {
			out = append(out, row)
		}
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate analytics rows")
}

func (s *PostgresStore) UpsertAnalyticsRows(ctx context.Context, rows []model.AnalyticsRow) (int, error) {
	data := make([][]any, len(rows))
	for i, r := range rows {
		data[i] = analyticsArgs(r)
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        TableAnalyticsDaily,
		Columns:      analyticsColumns,
		ConflictKeys: analyticsColumns[:2],
	}, data)
	return int(n), eris.Wrap(err, "postgres: upsert analytics rows")
}

func (s *PostgresStore) RecordImport(ctx context.Context, rec ImportRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_files (id, kind, path, campaign_id, verifier_id, rows, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, string(rec.Kind), rec.Path, rec.CampaignID, rec.VerifierID, rec.Rows, rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: record import")
}

func (s *PostgresStore) ListImports(ctx context.Context, limit int) ([]ImportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, path, campaign_id, verifier_id, rows, created_at
		 FROM import_files ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list imports")
	}
	defer rows.Close()

	var out []ImportRecord
	for rows.Next() {
		var r ImportRecord
		var kind string
		if err := rows.Scan(&r.ID, &kind, &r.Path, &r.CampaignID, &r.VerifierID, &r.Rows, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan import")
		}
		r.Kind = ImportKind(kind)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate imports")
}

// verifierKey renders a campaign id for comparison against a mapping
// column of any type.
func verifierKey(campaignID int64) string {
	return fmt.Sprintf("%d", campaignID)
}
