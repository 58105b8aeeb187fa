package jobs

import (
	"context"

	"github.com/originmark/provenance/internal/logger"
	"github.com/originmark/provenance/internal/models"
)

// InlineRunner executes the pipeline synchronously in the request path. It is
// selected at startup when the queue backend is unavailable, so verification
// keeps working without redis at the cost of request latency.
type InlineRunner struct {
	pipeline Pipeline
	logger   logger.Logger
}

func NewInlineRunner(pipeline Pipeline, log logger.Logger) *InlineRunner {
	return &InlineRunner{pipeline: pipeline, logger: log}
}

func (r *InlineRunner) Submit(ctx context.Context, req Request) (*Submission, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result, err := execute(ctx, r.pipeline, req)
	if err != nil {
		return nil, err
	}
	return &Submission{Mode: ModeSync, Result: result}, nil
}

// Job always reports not-found: inline execution leaves nothing to poll.
func (r *InlineRunner) Job(_ context.Context, _ string) (*models.Job, error) {
	return nil, models.ErrJobNotFound
}

func (r *InlineRunner) Jobs(_ context.Context) ([]models.Job, error) {
	return []models.Job{}, nil
}

func (r *InlineRunner) Stats(_ context.Context) (*models.JobStats, error) {
	return &models.JobStats{}, nil
}
