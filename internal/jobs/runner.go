// Package jobs wraps the verification pipeline in an asynchronous job queue
// with a synchronous in-request fallback.
//
// Runner selection happens once at startup: a reachable queue backend yields
// the QueuedRunner, otherwise the InlineRunner. Callers branch on the Mode
// tag of the submission rather than probing the backend per call.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/originmark/provenance/internal/models"
	"github.com/originmark/provenance/internal/verify"
)

// Submission modes.
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

// Pipeline is the verify/proof engine as seen by the job layer.
type Pipeline interface {
	Verify(ctx context.Context, content io.Reader, manifestURI string) (*verify.Result, error)
	Prove(ctx context.Context, content io.Reader, manifestURI string) (*verify.Proof, error)
}

// Request carries the verification inputs through the queue.
type Request struct {
	Type        models.JobType `json:"type"`
	Content     []byte         `json:"content"`
	ManifestURI string         `json:"manifest_uri"`
}

// Validate rejects requests that cannot produce a verdict.
func (r Request) Validate() error {
	switch r.Type {
	case models.JobTypeVerify, models.JobTypeProof:
	default:
		return fmt.Errorf("%w: unknown job type %q", models.ErrInvalidRequest, r.Type)
	}
	if len(r.Content) == 0 {
		return fmt.Errorf("%w: content is required", models.ErrInvalidRequest)
	}
	if r.ManifestURI == "" {
		return fmt.Errorf("%w: manifest_uri is required", models.ErrInvalidRequest)
	}
	return nil
}

// Submission is the response to a submit call. Async submissions carry a job
// identifier for polling; sync submissions carry the finished result.
type Submission struct {
	Mode   string          `json:"mode"`
	JobID  string          `json:"job_id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Runner executes verification work, synchronously or via a queue.
type Runner interface {
	Submit(ctx context.Context, req Request) (*Submission, error)
	Job(ctx context.Context, id string) (*models.Job, error)
	Jobs(ctx context.Context) ([]models.Job, error)
	Stats(ctx context.Context) (*models.JobStats, error)
}

// execute runs the pipeline for a request and marshals the outcome, so the
// sync and async paths produce byte-identical results.
func execute(ctx context.Context, pipeline Pipeline, req Request) (json.RawMessage, error) {
	reader := bytes.NewReader(req.Content)

	var out any
	var err error
	switch req.Type {
	case models.JobTypeProof:
		out, err = pipeline.Prove(ctx, reader, req.ManifestURI)
	default:
		out, err = pipeline.Verify(ctx, reader, req.ManifestURI)
	}
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal job result: %w", err)
	}
	return raw, nil
}
