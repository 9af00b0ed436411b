package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/advisor-cli/internal/model"
)

// mockStore implements Store for testing.
type mockStore struct {
	deletes   int
	batches   [][]model.Recommendation
	progress  []int
	insertErr error
}

func (m *mockStore) DeleteRecommendations(ctx context.Context, reportID string) error {
	m.deletes++
	m.batches = nil
	return nil
}

func (m *mockStore) InsertRecommendations(ctx context.Context, recs []model.Recommendation) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	batch := make([]model.Recommendation, len(recs))
	copy(batch, recs)
	m.batches = append(m.batches, batch)
	return nil
}

func (m *mockStore) UpdateReportProgress(ctx context.Context, reportID string, rowsProcessed int) error {
	m.progress = append(m.progress, rowsProcessed)
	return nil
}

func (m *mockStore) stored() []model.Recommendation {
	var all []model.Recommendation
	for _, b := range m.batches {
		all = append(all, b...)
	}
	return all
}

func TestIngest_HappyPath(t *testing.T) {
	st := &mockStore{}
	cfg := testIngestConfig()
	cfg.ChunkSize = 2
	ing := NewIngestor(st, cfg)

	rows := make([]string, 5)
	for i := range rows {
		rows[i] = sampleRow()
	}
	summary, err := ing.Ingest(context.Background(), "rep-1", strings.NewReader(sampleCSV(rows...)))
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Imported)
	assert.Equal(t, 0, summary.Skipped)
	assert.Empty(t, summary.Errors)

	// 5 rows at chunk size 2 -> two full chunks plus the final partial.
	assert.Len(t, st.batches, 3)
	assert.Len(t, st.stored(), 5)
	assert.Equal(t, 5, st.progress[len(st.progress)-1])

	// Source row numbers are strictly ordered and 1-based.
	for i, rec := range st.stored() {
		assert.Equal(t, i+1, rec.SourceRowNumber)
		assert.Equal(t, "rep-1", rec.ReportID)
	}
}

func TestIngest_RowErrorsBelowThreshold(t *testing.T) {
	st := &mockStore{}
	cfg := testIngestConfig()
	cfg.ErrorRateLimit = 0.25
	ing := NewIngestor(st, cfg)

	rows := []string{
		sampleRow(),
		"Networking,High,Bad category,sub-1,Prod,,,,,USD,,1.0,,",
		sampleRow(),
		sampleRow(),
		sampleRow(),
	}
	summary, err := ing.Ingest(context.Background(), "rep-1", strings.NewReader(sampleCSV(rows...)))
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Imported)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 2, summary.Errors[0].Row)
	assert.Len(t, st.stored(), 4)
}

func TestIngest_ErrorRateExceeded(t *testing.T) {
	st := &mockStore{}
	cfg := testIngestConfig()
	cfg.ErrorRateLimit = 0.05
	ing := NewIngestor(st, cfg)

	// 2 invalid rows of 4 is 50%, far over the 5% limit.
	rows := []string{
		sampleRow(),
		"Networking,High,Bad,sub-1,Prod,,,,,USD,,1.0,,",
		"Cost,Critical,Bad impact,sub-1,Prod,,,,,USD,,1.0,,",
		sampleRow(),
	}
	_, err := ing.Ingest(context.Background(), "rep-1", strings.NewReader(sampleCSV(rows...)))
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
	assert.Contains(t, err.Error(), "exceed")

	// Initial idempotency delete plus the rollback: nothing stays persisted.
	assert.Equal(t, 2, st.deletes)
	assert.Empty(t, st.stored())
}

func TestIngest_IdempotentReingest(t *testing.T) {
	st := &mockStore{}
	ing := NewIngestor(st, testIngestConfig())

	data := sampleCSV(sampleRow(), sampleRow())
	first, err := ing.Ingest(context.Background(), "rep-1", strings.NewReader(data))
	require.NoError(t, err)
	second, err := ing.Ingest(context.Background(), "rep-1", strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, first.Imported, second.Imported)
	assert.Equal(t, 2, st.deletes)
	// The mock clears on delete, so only the second ingest's rows remain.
	assert.Len(t, st.stored(), 2)
}

func TestIngest_ValidationFailureAborts(t *testing.T) {
	st := &mockStore{}
	ing := NewIngestor(st, testIngestConfig())

	_, err := ing.Ingest(context.Background(), "rep-1", strings.NewReader("Category,Recommendation\nCost,x\n"))
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
	assert.Zero(t, st.deletes, "nothing should be touched when schema validation fails")
	assert.Empty(t, st.batches)
}

func TestIngest_InsertFailurePropagates(t *testing.T) {
	st := &mockStore{insertErr: fmt.Errorf("db down")}
	ing := NewIngestor(st, testIngestConfig())

	_, err := ing.Ingest(context.Background(), "rep-1", strings.NewReader(sampleCSV(sampleRow())))
	require.Error(t, err)
	assert.False(t, model.IsValidationError(err))
	assert.Contains(t, err.Error(), "persist chunk")
}

func TestIngest_Cancelled(t *testing.T) {
	st := &mockStore{}
	ing := NewIngestor(st, testIngestConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ing.Ingest(ctx, "rep-1", strings.NewReader(sampleCSV(sampleRow())))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
