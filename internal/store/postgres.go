package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/advisor-cli/internal/db"
	"github.com/sells-group/advisor-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path report operations.
var preparedStatements = map[string]string{
	"insert_report":          `INSERT INTO reports (id, client_id, report_type, status, csv_ref, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"update_report_progress": `UPDATE reports SET rows_processed = $1, updated_at = $2 WHERE id = $3`,
	"get_report":             `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`,
	"delete_recommendations": `DELETE FROM recommendations WHERE report_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
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

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS reports (
	id                      TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	client_id               TEXT NOT NULL,
	report_type             TEXT NOT NULL,
	status                  TEXT NOT NULL DEFAULT 'pending',
	csv_ref                 TEXT NOT NULL,
	html_ref                TEXT,
	pdf_ref                 TEXT,
	analysis                JSONB,
	ingest_summary          JSONB,
	error_message           TEXT,
	retry_count             INTEGER NOT NULL DEFAULT 0,
	rows_processed          INTEGER NOT NULL DEFAULT 0,
	processing_started_at   TIMESTAMPTZ,
	processing_completed_at TIMESTAMPTZ,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS recommendations (
	id                   BIGSERIAL PRIMARY KEY,
	report_id            TEXT NOT NULL REFERENCES reports(id),
	category             TEXT NOT NULL,
	business_impact      TEXT NOT NULL,
	recommendation       TEXT NOT NULL,
	subscription_id      TEXT NOT NULL,
	subscription_name    TEXT NOT NULL,
	resource_group       TEXT,
	resource_name        TEXT,
	resource_type        TEXT,
	potential_savings    NUMERIC(18,2) NOT NULL DEFAULT 0,
	currency             TEXT NOT NULL DEFAULT 'USD',
	potential_benefits   TEXT,
	advisor_score_impact NUMERIC(8,2) NOT NULL DEFAULT 0,
	retirement_date      TIMESTAMPTZ,
	retiring_feature     TEXT,
	source_row_number    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS client_metrics (
	client_id       TEXT NOT NULL,
	day             TIMESTAMPTZ NOT NULL,
	reports         INTEGER NOT NULL DEFAULT 0,
	recommendations INTEGER NOT NULL DEFAULT 0,
	total_savings   NUMERIC(18,2) NOT NULL DEFAULT 0,
	PRIMARY KEY (client_id, day)
);

CREATE INDEX IF NOT EXISTS idx_reports_client_id ON reports(client_id);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
CREATE INDEX IF NOT EXISTS idx_recommendations_report_id ON recommendations(report_id);
CREATE INDEX IF NOT EXISTS idx_recommendations_category ON recommendations(report_id, category);
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

func (s *PostgresStore) CreateReport(ctx context.Context, clientID string, typ model.ReportType, csvRef string) (*model.Report, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO reports (id, client_id, report_type, status, csv_ref, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, clientID, string(typ), string(model.StatusPending), csvRef, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert report")
	}

	return &model.Report{
		ID:        id,
		ClientID:  clientID,
		Type:      typ,
		Status:    model.StatusPending,
		CSVRef:    csvRef,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) GetReport(ctx context.Context, reportID string) (*model.Report, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1`, reportID,
	)
	r, err := scanPgReport(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get report %s", reportID)
	}
	return r, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ClientID != "" {
		query += fmt.Sprintf(` AND client_id = $%d`, argIdx)
		args = append(args, filter.ClientID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(` AND report_type = $%d`, argIdx)
		args = append(args, string(filter.Type))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		r, err := scanPgReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: list reports iterate")
}

func (s *PostgresStore) UpdateReportStatus(ctx context.Context, reportID string, status model.ReportStatus) error {
	now := time.Now().UTC()
	query := `UPDATE reports SET status = $1, updated_at = $2`
	args := []any{string(status), now}
	argIdx := 3

	switch status {
	case model.StatusProcessing:
		query += fmt.Sprintf(`, processing_started_at = $%d, error_message = NULL`, argIdx)
		args = append(args, now)
		argIdx++
	case model.StatusCompleted:
		query += fmt.Sprintf(`, processing_completed_at = $%d`, argIdx)
		args = append(args, now)
		argIdx++
	}
	query += fmt.Sprintf(` WHERE id = $%d`, argIdx)
	args = append(args, reportID)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update report status %s", reportID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("report not found: %s", reportID)
	}
	return nil
}

func (s *PostgresStore) SetReportCSVRef(ctx context.Context, reportID, csvRef string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET csv_ref = $1, updated_at = $2 WHERE id = $3`,
		csvRef, time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set report csv ref %s", reportID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("report not found: %s", reportID)
	}
	return nil
}

func (s *PostgresStore) UpdateReportProgress(ctx context.Context, reportID string, rowsProcessed int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET rows_processed = $1, updated_at = $2 WHERE id = $3`,
		rowsProcessed, time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update report progress %s", reportID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("report not found: %s", reportID)
	}
	return nil
}

func (s *PostgresStore) SetReportError(ctx context.Context, reportID string, msg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		string(model.StatusFailed), msg, time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set report error %s", reportID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("report not found: %s", reportID)
	}
	return nil
}

func (s *PostgresStore) IncrementRetry(ctx context.Context, reportID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`UPDATE reports SET retry_count = retry_count + 1, updated_at = $1 WHERE id = $2 RETURNING retry_count`,
		time.Now().UTC(), reportID,
	).Scan(&count)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: increment retry %s", reportID)
	}
	return count, nil
}

func (s *PostgresStore) SetReportArtifacts(ctx context.Context, reportID, htmlRef, pdfRef string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET html_ref = $1, pdf_ref = $2, updated_at = $3 WHERE id = $4`,
		htmlRef, pdfRef, time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set report artifacts %s", reportID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("report not found: %s", reportID)
	}
	return nil
}

func (s *PostgresStore) SetReportAnalysis(ctx context.Context, reportID string, analysis *model.AnalysisData, summary *model.IngestSummary) error {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal analysis")
	}
	var summaryJSON []byte
	if summary != nil {
		if summaryJSON, err = json.Marshal(summary); err != nil {
			return eris.Wrap(err, "postgres: marshal ingest summary")
		}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET analysis = $1, ingest_summary = $2, updated_at = $3 WHERE id = $4`,
		analysisJSON, summaryJSON, time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set report analysis %s", reportID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("report not found: %s", reportID)
	}
	return nil
}

var recommendationColumns = []string{
	"report_id", "category", "business_impact", "recommendation",
	"subscription_id", "subscription_name", "resource_group", "resource_name",
	"resource_type", "potential_savings", "currency", "potential_benefits",
	"advisor_score_impact", "retirement_date", "retiring_feature", "source_row_number",
}

func (s *PostgresStore) InsertRecommendations(ctx context.Context, recs []model.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		var retirement any
		if r.RetirementDate != nil {
			retirement = r.RetirementDate.UTC()
		}
		rows = append(rows, []any{
			r.ReportID, string(r.Category), string(r.BusinessImpact), r.Recommendation,
			r.SubscriptionID, r.SubscriptionName, r.ResourceGroup, r.ResourceName,
			r.ResourceType, r.PotentialSavings, r.Currency, r.PotentialBenefits,
			r.AdvisorScoreImpact, retirement, r.RetiringFeature, r.SourceRowNumber,
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "recommendations", recommendationColumns, rows)
	return eris.Wrap(err, "postgres: copy recommendations")
}

func (s *PostgresStore) DeleteRecommendations(ctx context.Context, reportID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM recommendations WHERE report_id = $1`, reportID,
	)
	return eris.Wrapf(err, "postgres: delete recommendations for %s", reportID)
}

func (s *PostgresStore) ListRecommendations(ctx context.Context, reportID string) ([]model.Recommendation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, report_id, category, business_impact, recommendation,
			subscription_id, subscription_name, resource_group, resource_name,
			resource_type, potential_savings, currency, potential_benefits,
			advisor_score_impact, retirement_date, retiring_feature, source_row_number
		 FROM recommendations WHERE report_id = $1 ORDER BY source_row_number`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list recommendations for %s", reportID)
	}
	defer rows.Close()

	var recs []model.Recommendation
	for rows.Next() {
		var r model.Recommendation
		var retirement *time.Time

		err := rows.Scan(
			&r.ID, &r.ReportID, &r.Category, &r.BusinessImpact, &r.Recommendation,
			&r.SubscriptionID, &r.SubscriptionName, &r.ResourceGroup, &r.ResourceName,
			&r.ResourceType, &r.PotentialSavings, &r.Currency, &r.PotentialBenefits,
			&r.AdvisorScoreImpact, &retirement, &r.RetiringFeature, &r.SourceRowNumber,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan recommendation")
		}
		if retirement != nil {
			t := retirement.UTC()
			r.RetirementDate = &t
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list recommendations iterate")
}

func (s *PostgresStore) CountsByDay(ctx context.Context, clientID string, since time.Time) ([]model.DayActivity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date_trunc('day', rep.created_at) AS day,
			COUNT(DISTINCT rep.id) AS reports,
			COUNT(rec.id) AS recommendations,
			COALESCE(SUM(rec.potential_savings), 0) AS savings
		 FROM reports rep
		 LEFT JOIN recommendations rec ON rec.report_id = rep.id
		 WHERE rep.client_id = $1 AND rep.created_at >= $2
		 GROUP BY 1 ORDER BY 1`,
		clientID, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: counts by day")
	}
	defer rows.Close()

	var activity []model.DayActivity
	for rows.Next() {
		var d model.DayActivity
		if err := rows.Scan(&d.Date, &d.Reports, &d.Recommendations, &d.Savings); err != nil {
			return nil, eris.Wrap(err, "postgres: scan day activity")
		}
		d.Date = d.Date.UTC()
		activity = append(activity, d)
	}
	return activity, eris.Wrap(rows.Err(), "postgres: counts by day iterate")
}

func (s *PostgresStore) UpsertClientMetrics(ctx context.Context, metricRows []model.ClientMetrics) error {
	if len(metricRows) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(metricRows))
	for _, m := range metricRows {
		rows = append(rows, []any{
			m.ClientID, m.Day.UTC(), m.Reports, m.Recommendations, m.TotalSavings,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "client_metrics",
		Columns:      []string{"client_id", "day", "reports", "recommendations", "total_savings"},
		ConflictKeys: []string{"client_id", "day"},
		UpdateCols:   []string{"reports", "recommendations", "total_savings"},
	}, rows)
	return eris.Wrap(err, "postgres: upsert client metrics")
}

// pgScannable matches both pgx.Row and pgx.Rows.
type pgScannable interface {
	Scan(dest ...any) error
}

func scanPgReport(row pgScannable) (*model.Report, error) {
	var r model.Report
	var htmlRef, pdfRef, errMsg *string
	var analysisJSON, summaryJSON []byte
	var startedAt, completedAt *time.Time

	err := row.Scan(
		&r.ID, &r.ClientID, &r.Type, &r.Status, &r.CSVRef, &htmlRef, &pdfRef,
		&analysisJSON, &summaryJSON, &errMsg, &r.RetryCount, &r.RowsProcessed,
		&startedAt, &completedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if htmlRef != nil {
		r.HTMLRef = *htmlRef
	}
	if pdfRef != nil {
		r.PDFRef = *pdfRef
	}
	if errMsg != nil {
		r.ErrorMessage = *errMsg
	}
	if len(analysisJSON) > 0 {
		r.Analysis = &model.AnalysisData{}
		if err := json.Unmarshal(analysisJSON, r.Analysis); err != nil {
			return nil, eris.Wrap(err, "unmarshal analysis")
		}
	}
	if len(summaryJSON) > 0 {
		r.Summary = &model.IngestSummary{}
		if err := json.Unmarshal(summaryJSON, r.Summary); err != nil {
			return nil, eris.Wrap(err, "unmarshal ingest summary")
		}
	}
	if startedAt != nil {
		t := startedAt.UTC()
		r.ProcessingStartedAt = &t
	}
	if completedAt != nil {
		t := completedAt.UTC()
		r.ProcessingCompletedAt = &t
	}
	return &r, nil
}
