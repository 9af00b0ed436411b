package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/sells-group/advisor-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS reports (
	id                      TEXT PRIMARY KEY,
	client_id               TEXT NOT NULL,
	report_type             TEXT NOT NULL,
	status                  TEXT NOT NULL DEFAULT 'pending',
	csv_ref                 TEXT NOT NULL,
	html_ref                TEXT,
	pdf_ref                 TEXT,
	analysis                TEXT,
	ingest_summary          TEXT,
	error_message           TEXT,
	retry_count             INTEGER NOT NULL DEFAULT 0,
	rows_processed          INTEGER NOT NULL DEFAULT 0,
	processing_started_at   DATETIME,
	processing_completed_at DATETIME,
	created_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at              DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS recommendations (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	report_id            TEXT NOT NULL REFERENCES reports(id),
	category             TEXT NOT NULL,
	business_impact      TEXT NOT NULL,
	recommendation       TEXT NOT NULL,
	subscription_id      TEXT NOT NULL,
	subscription_name    TEXT NOT NULL,
	resource_group       TEXT,
	resource_name        TEXT,
	resource_type        TEXT,
	potential_savings    TEXT NOT NULL DEFAULT '0',
	currency             TEXT NOT NULL DEFAULT 'USD',
	potential_benefits   TEXT,
	advisor_score_impact TEXT NOT NULL DEFAULT '0',
	retirement_date      DATETIME,
	retiring_feature     TEXT,
	source_row_number    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS client_metrics (
	client_id       TEXT NOT NULL,
	day             DATETIME NOT NULL,
	reports         INTEGER NOT NULL DEFAULT 0,
	recommendations INTEGER NOT NULL DEFAULT 0,
	total_savings   TEXT NOT NULL DEFAULT '0',
	PRIMARY KEY (client_id, day)
);

CREATE INDEX IF NOT EXISTS idx_reports_client_id ON reports(client_id);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
CREATE INDEX IF NOT EXISTS idx_recommendations_report_id ON recommendations(report_id);
CREATE INDEX IF NOT EXISTS idx_recommendations_category ON recommendations(report_id, category);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateReport(ctx context.Context, clientID string, typ model.ReportType, csvRef string) (*model.Report, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, client_id, report_type, status, csv_ref, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, clientID, string(typ), string(model.StatusPending), csvRef, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert report")
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

const reportColumns = `id, client_id, report_type, status, csv_ref, html_ref, pdf_ref,
	analysis, ingest_summary, error_message, retry_count, rows_processed,
	processing_started_at, processing_completed_at, created_at, updated_at`

func (s *SQLiteStore) GetReport(ctx context.Context, reportID string) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = ?`, reportID,
	)
	return scanReport(row)
}

func (s *SQLiteStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE 1=1`
	var args []any

	if filter.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, filter.ClientID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		query += ` AND report_type = ?`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: list reports iterate")
}

func (s *SQLiteStore) UpdateReportStatus(ctx context.Context, reportID string, status model.ReportStatus) error {
	now := time.Now().UTC()
	query := `UPDATE reports SET status = ?, updated_at = ?`
	args := []any{string(status), now}

	// Stamp the processing window edges as the lifecycle crosses them.
	switch status {
	case model.StatusProcessing:
		query += `, processing_started_at = ?, error_message = NULL`
		args = append(args, now)
	case model.StatusCompleted:
		query += `, processing_completed_at = ?`
		args = append(args, now)
	}
	query += ` WHERE id = ?`
	args = append(args, reportID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update report status %s", reportID)
	}
	return checkRowsAffected(res, "report", reportID)
}

func (s *SQLiteStore) SetReportCSVRef(ctx context.Context, reportID, csvRef string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET csv_ref = ?, updated_at = ? WHERE id = ?`,
		csvRef, time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set report csv ref %s", reportID)
	}
	return checkRowsAffected(res, "report", reportID)
}

func (s *SQLiteStore) UpdateReportProgress(ctx context.Context, reportID string, rowsProcessed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET rows_processed = ?, updated_at = ? WHERE id = ?`,
		rowsProcessed, time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update report progress %s", reportID)
	}
	return checkRowsAffected(res, "report", reportID)
}

func (s *SQLiteStore) SetReportError(ctx context.Context, reportID string, msg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(model.StatusFailed), msg, time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set report error %s", reportID)
	}
	return checkRowsAffected(res, "report", reportID)
}

func (s *SQLiteStore) IncrementRetry(ctx context.Context, reportID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET retry_count = retry_count + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), reportID,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: increment retry %s", reportID)
	}
	if err := checkRowsAffected(res, "report", reportID); err != nil {
		return 0, err
	}

	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT retry_count FROM reports WHERE id = ?`, reportID,
	).Scan(&count)
	return count, eris.Wrapf(err, "sqlite: read retry count %s", reportID)
}

func (s *SQLiteStore) SetReportArtifacts(ctx context.Context, reportID, htmlRef, pdfRef string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET html_ref = ?, pdf_ref = ?, updated_at = ? WHERE id = ?`,
		htmlRef, pdfRef, time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set report artifacts %s", reportID)
	}
	return checkRowsAffected(res, "report", reportID)
}

func (s *SQLiteStore) SetReportAnalysis(ctx context.Context, reportID string, analysis *model.AnalysisData, summary *model.IngestSummary) error {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis")
	}
	var summaryJSON []byte
	if summary != nil {
		if summaryJSON, err = json.Marshal(summary); err != nil {
			return eris.Wrap(err, "sqlite: marshal ingest summary")
		}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET analysis = ?, ingest_summary = ?, updated_at = ? WHERE id = ?`,
		string(analysisJSON), nullableString(summaryJSON), time.Now().UTC(), reportID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set report analysis %s", reportID)
	}
	return checkRowsAffected(res, "report", reportID)
}

func (s *SQLiteStore) InsertRecommendations(ctx context.Context, recs []model.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert recommendations")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO recommendations (
			report_id, category, business_impact, recommendation,
			subscription_id, subscription_name, resource_group, resource_name,
			resource_type, potential_savings, currency, potential_benefits,
			advisor_score_impact, retirement_date, retiring_feature, source_row_number
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert recommendation")
	}
	defer stmt.Close()

	for _, r := range recs {
		var retirement any
		if r.RetirementDate != nil {
			retirement = r.RetirementDate.UTC()
		}
		_, err := stmt.ExecContext(ctx,
			r.ReportID, string(r.Category), string(r.BusinessImpact), r.Recommendation,
			r.SubscriptionID, r.SubscriptionName, r.ResourceGroup, r.ResourceName,
			r.ResourceType, r.PotentialSavings.String(), r.Currency, r.PotentialBenefits,
			r.AdvisorScoreImpact.String(), retirement, r.RetiringFeature, r.SourceRowNumber,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert recommendation row %d", r.SourceRowNumber)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert recommendations")
}

func (s *SQLiteStore) DeleteRecommendations(ctx context.Context, reportID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM recommendations WHERE report_id = ?`, reportID,
	)
	return eris.Wrapf(err, "sqlite: delete recommendations for %s", reportID)
}

func (s *SQLiteStore) ListRecommendations(ctx context.Context, reportID string) ([]model.Recommendation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, report_id, category, business_impact, recommendation,
			subscription_id, subscription_name, resource_group, resource_name,
			resource_type, potential_savings, currency, potential_benefits,
			advisor_score_impact, retirement_date, retiring_feature, source_row_number
		 FROM recommendations WHERE report_id = ? ORDER BY source_row_number`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list recommendations for %s", reportID)
	}
	defer rows.Close()

	var recs []model.Recommendation
	for rows.Next() {
		var r model.Recommendation
		var savings, scoreImpact string
		var retirement sql.NullTime

		err := rows.Scan(
			&r.ID, &r.ReportID, &r.Category, &r.BusinessImpact, &r.Recommendation,
			&r.SubscriptionID, &r.SubscriptionName, &r.ResourceGroup, &r.ResourceName,
			&r.ResourceType, &savings, &r.Currency, &r.PotentialBenefits,
			&scoreImpact, &retirement, &r.RetiringFeature, &r.SourceRowNumber,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recommendation")
		}
		if r.PotentialSavings, err = decimal.NewFromString(savings); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse savings %q", savings)
		}
		if r.AdvisorScoreImpact, err = decimal.NewFromString(scoreImpact); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse score impact %q", scoreImpact)
		}
		if retirement.Valid {
			t := retirement.Time.UTC()
			r.RetirementDate = &t
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list recommendations iterate")
}

func (s *SQLiteStore) CountsByDay(ctx context.Context, clientID string, since time.Time) ([]model.DayActivity, error) {
	byDay := make(map[time.Time]*model.DayActivity)

	rows, err := s.db.QueryContext(ctx,
		`SELECT created_at FROM reports WHERE client_id = ? AND created_at >= ?`,
		clientID, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: counts by day reports")
	}
	defer rows.Close()
	for rows.Next() {
		var created time.Time
		if err := rows.Scan(&created); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report day")
		}
		dayFor(byDay, created).Reports++
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: counts by day reports iterate")
	}

	recRows, err := s.db.QueryContext(ctx,
		`SELECT rep.created_at, rec.potential_savings
		 FROM recommendations rec
		 JOIN reports rep ON rep.id = rec.report_id
		 WHERE rep.client_id = ? AND rep.created_at >= ?`,
		clientID, since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: counts by day recommendations")
	}
	defer recRows.Close()
	for recRows.Next() {
		var created time.Time
		var savings string
		if err := recRows.Scan(&created, &savings); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recommendation day")
		}
		amt, err := decimal.NewFromString(savings)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse savings %q", savings)
		}
		d := dayFor(byDay, created)
		d.Recommendations++
		d.Savings = d.Savings.Add(amt)
	}
	if err := recRows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: counts by day recommendations iterate")
	}

	return sortedActivity(byDay), nil
}

func (s *SQLiteStore) UpsertClientMetrics(ctx context.Context, rows []model.ClientMetrics) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert client metrics")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO client_metrics (client_id, day, reports, recommendations, total_savings)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(client_id, day) DO UPDATE SET
			reports = excluded.reports,
			recommendations = excluded.recommendations,
			total_savings = excluded.total_savings`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert client metrics")
	}
	defer stmt.Close()

	for _, m := range rows {
		_, err := stmt.ExecContext(ctx,
			m.ClientID, m.Day.UTC(), m.Reports, m.Recommendations, m.TotalSavings.String(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert client metrics %s", m.Day.Format("2006-01-02"))
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit upsert client metrics")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanReport(row scannable) (*model.Report, error) {
	var r model.Report
	var htmlRef, pdfRef, analysisJSON, summaryJSON, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&r.ID, &r.ClientID, &r.Type, &r.Status, &r.CSVRef, &htmlRef, &pdfRef,
		&analysisJSON, &summaryJSON, &errMsg, &r.RetryCount, &r.RowsProcessed,
		&startedAt, &completedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, eris.New("report not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan report")
	}

	r.HTMLRef = htmlRef.String
	r.PDFRef = pdfRef.String
	r.ErrorMessage = errMsg.String
	if analysisJSON.Valid {
		r.Analysis = &model.AnalysisData{}
		if err := json.Unmarshal([]byte(analysisJSON.String), r.Analysis); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal analysis")
		}
	}
	if summaryJSON.Valid {
		r.Summary = &model.IngestSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal ingest summary")
		}
	}
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		r.ProcessingStartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		r.ProcessingCompletedAt = &t
	}
	return &r, nil
}

func dayFor(byDay map[time.Time]*model.DayActivity, t time.Time) *model.DayActivity {
	day := time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
	d, ok := byDay[day]
	if !ok {
		d = &model.DayActivity{Date: day}
		byDay[day] = d
	}
	return d
}

func sortedActivity(byDay map[time.Time]*model.DayActivity) []model.DayActivity {
	out := make([]model.DayActivity, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
