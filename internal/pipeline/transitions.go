package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/advisor-cli/internal/model"
)

// validTransitions encodes the report lifecycle. Forward edges are
// monotonic; failed -> processing is the only backward edge and is
// gated by the retry budget.
var validTransitions = map[model.ReportStatus][]model.ReportStatus{
	model.StatusPending:    {model.StatusProcessing},
	model.StatusProcessing: {model.StatusImported, model.StatusFailed},
	model.StatusImported:   {model.StatusGenerating},
	model.StatusGenerating: {model.StatusCompleted, model.StatusFailed},
	model.StatusFailed:     {model.StatusProcessing},
	model.StatusCompleted:  {},
}

// CanTransition reports whether moving from one status to another is a
// legal lifecycle edge.
func CanTransition(from, to model.ReportStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a descriptive error for illegal edges.
func ValidateTransition(from, to model.ReportStatus) error {
	if !CanTransition(from, to) {
		return eris.Errorf("pipeline: illegal transition %s -> %s", from, to)
	}
	return nil
}

// CanRetry reports whether a failed report may re-enter processing.
func CanRetry(r *model.Report, maxRetries int) bool {
	return r.Status == model.StatusFailed && r.RetryCount < maxRetries
}
