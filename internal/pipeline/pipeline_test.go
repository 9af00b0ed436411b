package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/advisor-cli/internal/assemble"
	"github.com/sells-group/advisor-cli/internal/config"
	"github.com/sells-group/advisor-cli/internal/model"
	"github.com/sells-group/advisor-cli/internal/store"
	"github.com/sells-group/advisor-cli/pkg/blob"
	"github.com/sells-group/advisor-cli/pkg/renderer"
)

const csvHeader = "Category,Business Impact,Recommendation,Subscription ID,Subscription Name,Resource Group,Resource Name,Resource Type,Potential Annual Cost Savings,Currency,Potential Benefits,Advisor Score Impact,Retirement Date,Retiring Feature"

func advisorCSV(rows ...string) []byte {
	return []byte(csvHeader + "\n" + strings.Join(rows, "\n") + "\n")
}

// fakeRenderer satisfies renderer.Client without a live service. The
// mutex keeps queue tests race-clean when they heal the service while
// workers run.
type fakeRenderer struct {
	mu          sync.Mutex
	renderCalls int
	pdfCalls    int
	renderErr   error
	pdfErr      error
	lastRequest renderer.RenderRequest
}

func (f *fakeRenderer) setRenderErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renderErr = err
}

func (f *fakeRenderer) RenderHTML(_ context.Context, req renderer.RenderRequest) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renderCalls++
	f.lastRequest = req
	if f.renderErr != nil {
		return nil, f.renderErr
	}
	return []byte("<html>" + req.ReportType + "</html>"), nil
}

func (f *fakeRenderer) HTMLToPDF(_ context.Context, html []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pdfCalls++
	if f.pdfErr != nil {
		return nil, f.pdfErr
	}
	return append([]byte("%PDF "), html...), nil
}

type pipelineFixture struct {
	pipeline *Pipeline
	store    *store.SQLiteStore
	blobs    *blob.FSStore
	renderer *fakeRenderer
	cfg      *config.Config
}

func newFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "advisor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	blobs, err := blob.NewFS(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		Ingest: config.IngestConfig{
			MaxFileBytes:   10 * 1024 * 1024,
			MinRows:        1,
			MaxRows:        1000,
			ChunkSize:      100,
			ErrorRateLimit: 0.05,
		},
		Pipeline: config.PipelineConfig{MaxRetries: 3, RetryDelaySecs: 0, Workers: 2},
	}

	fr := &fakeRenderer{}
	p := New(cfg, st, assemble.New(assemble.DefaultTuning()), fr, blobs)
	return &pipelineFixture{pipeline: p, store: st, blobs: blobs, renderer: fr, cfg: cfg}
}

func (f *pipelineFixture) newReport(t *testing.T, typ model.ReportType, csvData []byte) *model.Report {
	t.Helper()
	ctx := context.Background()

	r, err := f.store.CreateReport(ctx, "client-1", typ, "")
	require.NoError(t, err)

	ref, err := f.blobs.Save(r.ID, "csv", csvData)
	require.NoError(t, err)
	require.NoError(t, f.store.SetReportCSVRef(ctx, r.ID, ref))
	r.CSVRef = ref
	return r
}

func TestPipeline_RunToCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.newReport(t, model.ReportCost, advisorCSV(
		"Cost,High,Right-size underutilized VMs,sub-1,Production,rg-app,vm-01,Microsoft.Compute/virtualMachines,1200.50,USD,Reduce spend,2.5,,",
		"Cost,Medium,Delete unattached disks,sub-1,Production,rg-app,disk-02,Microsoft.Compute/disks,300.00,USD,Reduce spend,0.5,,",
		"Security,High,Enable MFA,sub-1,Production,rg-core,*,Microsoft.AAD/tenants,0,USD,Harden access,6.0,,",
	))

	require.NoError(t, f.pipeline.Run(ctx, r.ID))

	got, err := f.store.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, r.ID+".html", got.HTMLRef)
	assert.Equal(t, r.ID+".pdf", got.PDFRef)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, model.ReportCost, got.Analysis.ReportType)
	require.NotNil(t, got.Analysis.Cost)
	// Only the two cost rows feed the cost analysis.
	assert.Equal(t, 2, got.Analysis.Cost.TotalFindings)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 3, got.Summary.Imported)
	require.NotNil(t, got.ProcessingCompletedAt)

	assert.Equal(t, 1, f.renderer.renderCalls)
	assert.Equal(t, 1, f.renderer.pdfCalls)
	assert.Equal(t, "cost", f.renderer.lastRequest.ReportType)

	recs, err := f.store.ListRecommendations(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestPipeline_RunGenerate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A report whose findings were already imported.
	r := f.newReport(t, model.ReportCost, advisorCSV(
		"Cost,High,Right-size underutilized VMs,sub-1,Production,rg-app,vm-01,Microsoft.Compute/virtualMachines,1200.50,USD,Reduce spend,2.5,,",
	))
	require.NoError(t, f.store.UpdateReportStatus(ctx, r.ID, model.StatusProcessing))
	require.NoError(t, f.store.InsertRecommendations(ctx, []model.Recommendation{{
		ReportID:           r.ID,
		Category:           model.CategoryCost,
		BusinessImpact:     model.ImpactHigh,
		Recommendation:     "Right-size underutilized VMs",
		SubscriptionID:     "sub-1",
		SubscriptionName:   "Production",
		PotentialSavings:   decimal.RequireFromString("1200.50"),
		Currency:           "USD",
		AdvisorScoreImpact: decimal.RequireFromString("2.5"),
		SourceRowNumber:    1,
	}}))
	require.NoError(t, f.store.UpdateReportProgress(ctx, r.ID, 1))
	require.NoError(t, f.store.UpdateReportStatus(ctx, r.ID, model.StatusImported))

	require.NoError(t, f.pipeline.RunGenerate(ctx, r.ID))

	got, err := f.store.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, r.ID+".html", got.HTMLRef)
	assert.Equal(t, r.ID+".pdf", got.PDFRef)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, 1, f.renderer.renderCalls)
}

func TestPipeline_RunGenerate_RequiresImportedState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.newReport(t, model.ReportCost, advisorCSV(
		"Cost,High,Right-size underutilized VMs,sub-1,Production,rg-app,vm-01,Microsoft.Compute/virtualMachines,1200.50,USD,Reduce spend,2.5,,",
	))

	err := f.pipeline.RunGenerate(ctx, r.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal transition")
	assert.Equal(t, 0, f.renderer.renderCalls)
}

func TestPipeline_ValidationFailureIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Missing required columns.
	r := f.newReport(t, model.ReportDetailed, []byte("Category,Recommendation\nCost,Do it\n"))

	err := f.pipeline.Run(ctx, r.ID)
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
	assert.False(t, model.IsRetryable(err))

	got, err := f.store.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.NotEmpty(t, got.ErrorMessage)
	assert.Equal(t, 0, f.renderer.renderCalls)
}

func TestPipeline_RenderFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.renderer.setRenderErr(errors.New("render service down"))

	r := f.newReport(t, model.ReportExecutive, advisorCSV(
		"Cost,High,Right-size underutilized VMs,sub-1,Production,rg-app,vm-01,Microsoft.Compute/virtualMachines,1200.50,USD,Reduce spend,2.5,,",
	))

	err := f.pipeline.Run(ctx, r.ID)
	require.Error(t, err)
	assert.True(t, model.IsRetryable(err))

	var genErr *model.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "render", genErr.Stage)

	got, err := f.store.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "render service down")
}

func TestPipeline_RetryAfterFailureSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.renderer.setRenderErr(errors.New("render service down"))

	r := f.newReport(t, model.ReportSecurity, advisorCSV(
		"Security,High,Enable MFA,sub-1,Production,rg-core,*,Microsoft.AAD/tenants,0,USD,Harden access,6.0,,",
	))

	require.Error(t, f.pipeline.Run(ctx, r.ID))

	// Service recovers; the retry re-ingests and completes.
	f.renderer.setRenderErr(nil)
	require.NoError(t, f.pipeline.Run(ctx, r.ID))

	got, err := f.store.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Empty(t, got.ErrorMessage)

	// Re-ingestion replaced, not duplicated, the findings.
	recs, err := f.store.ListRecommendations(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestPipeline_RetryBudgetExhausted(t *testing.T) {
	f := newFixture(t)
	f.cfg.Pipeline.MaxRetries = 1
	ctx := context.Background()
	f.renderer.setRenderErr(errors.New("render service down"))

	r := f.newReport(t, model.ReportCost, advisorCSV(
		"Cost,High,Right-size underutilized VMs,sub-1,Production,rg-app,vm-01,Microsoft.Compute/virtualMachines,1200.50,USD,Reduce spend,2.5,,",
	))

	require.Error(t, f.pipeline.Run(ctx, r.ID)) // initial attempt
	require.Error(t, f.pipeline.Run(ctx, r.ID)) // retry 1, fails again

	err := f.pipeline.Run(ctx, r.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted")
}

func TestPipeline_CompletedReportNotRerun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.newReport(t, model.ReportCost, advisorCSV(
		"Cost,High,Right-size underutilized VMs,sub-1,Production,rg-app,vm-01,Microsoft.Compute/virtualMachines,1200.50,USD,Reduce spend,2.5,,",
	))
	require.NoError(t, f.pipeline.Run(ctx, r.ID))

	err := f.pipeline.Run(ctx, r.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal transition")
	assert.Equal(t, 1, f.renderer.renderCalls)
}

// flakyStatusStore fails status writes into one chosen state, passing
// everything else through.
type flakyStatusStore struct {
	store.Store
	failOn model.ReportStatus
}

func (s *flakyStatusStore) UpdateReportStatus(ctx context.Context, reportID string, status model.ReportStatus) error {
	if s.failOn != "" && status == s.failOn {
		return errors.New("connection reset")
	}
	return s.Store.UpdateReportStatus(ctx, reportID, status)
}

func TestPipeline_StatusWriteFailureRecordsFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	flaky := &flakyStatusStore{Store: f.store, failOn: model.StatusImported}
	p := New(f.cfg, flaky, assemble.New(assemble.DefaultTuning()), f.renderer, f.blobs)

	r := f.newReport(t, model.ReportCost, advisorCSV(
		"Cost,High,Right-size underutilized VMs,sub-1,Production,rg-app,vm-01,Microsoft.Compute/virtualMachines,1200.50,USD,Reduce spend,2.5,,",
	))

	err := p.Run(ctx, r.ID)
	require.Error(t, err)
	assert.True(t, model.IsRetryable(err))
	var procErr *model.ProcessingError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "status", procErr.Stage)

	// The report must not be stranded in processing.
	got, err := f.store.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "connection reset")

	// Store heals; the retry edge reclaims the report.
	flaky.failOn = ""
	require.NoError(t, p.Run(ctx, r.ID))
	got, err = f.store.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.RetryCount)
}

func TestQueue_ProcessesAndRetries(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.renderer.setRenderErr(errors.New("render service down"))
	r := f.newReport(t, model.ReportCost, advisorCSV(
		"Cost,High,Right-size underutilized VMs,sub-1,Production,rg-app,vm-01,Microsoft.Compute/virtualMachines,1200.50,USD,Reduce spend,2.5,,",
	))

	// One-second retry delay leaves room to heal the renderer between
	// the first failure and the retry.
	f.cfg.Pipeline.RetryDelaySecs = 1
	q := NewQueue(f.pipeline, f.store, f.cfg.Pipeline)
	done := make(chan error, 1)
	go func() { done <- q.Start(ctx) }()

	require.NoError(t, q.EnqueueIngest(ctx, r.ID))

	// Let the first attempt fail, then heal the service.
	assert.Eventually(t, func() bool {
		got, err := f.store.GetReport(context.Background(), r.ID)
		return err == nil && got.Status == model.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	f.renderer.setRenderErr(nil)

	assert.Eventually(t, func() bool {
		got, err := f.store.GetReport(context.Background(), r.ID)
		return err == nil && got.Status == model.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	q.Close()
	require.NoError(t, <-done)
}

func TestQueue_ValidationFailureNotRetried(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := f.newReport(t, model.ReportCost, []byte("Category,Recommendation\nCost,Do it\n"))

	q := NewQueue(f.pipeline, f.store, f.cfg.Pipeline)
	done := make(chan error, 1)
	go func() { done <- q.Start(ctx) }()

	require.NoError(t, q.EnqueueIngest(ctx, r.ID))

	assert.Eventually(t, func() bool {
		got, err := f.store.GetReport(context.Background(), r.ID)
		return err == nil && got.Status == model.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	q.Close()
	require.NoError(t, <-done)

	got, err := f.store.GetReport(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RetryCount)
}
