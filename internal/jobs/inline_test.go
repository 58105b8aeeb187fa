package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/originmark/provenance/internal/jobs"
	"github.com/originmark/provenance/internal/logger"
	"github.com/originmark/provenance/internal/models"
	"github.com/originmark/provenance/internal/verify"
)

// stubPipeline returns canned results and records invocations.
type stubPipeline struct {
	verifyCalls int
	proveCalls  int
	err         error
}

func (s *stubPipeline) Verify(_ context.Context, content io.Reader, _ string) (*verify.Result, error) {
	s.verifyCalls++
	if s.err != nil {
		return nil, s.err
	}
	io.Copy(io.Discard, content)
	return &verify.Result{
		Status:   models.StatusOK,
		FileHash: "0xfeed",
		Checks:   verify.Checks{ManifestHashOK: true, CreatorOK: true, ManifestOK: true},
	}, nil
}

func (s *stubPipeline) Prove(_ context.Context, content io.Reader, _ string) (*verify.Proof, error) {
	s.proveCalls++
	if s.err != nil {
		return nil, s.err
	}
	io.Copy(io.Discard, content)
	return &verify.Proof{
		Content:      verify.ContentDescriptor{FileHash: "0xfeed", Algorithm: models.ManifestAlgorithm},
		Verification: verify.VerdictInfo{Status: models.StatusOK},
	}, nil
}

func validRequest(jobType models.JobType) jobs.Request {
	return jobs.Request{
		Type:        jobType,
		Content:     []byte("content bytes"),
		ManifestURI: "https://example.com/m.json",
	}
}

func TestInlineSubmitVerify(t *testing.T) {
	pipeline := &stubPipeline{}
	runner := jobs.NewInlineRunner(pipeline, logger.NewNop())

	sub, err := runner.Submit(context.Background(), validRequest(models.JobTypeVerify))
	require.NoError(t, err)

	assert.Equal(t, jobs.ModeSync, sub.Mode)
	assert.Empty(t, sub.JobID)
	assert.Equal(t, 1, pipeline.verifyCalls)

	var result verify.Result
	require.NoError(t, json.Unmarshal(sub.Result, &result))
	assert.Equal(t, models.StatusOK, result.Status)
	assert.Equal(t, "0xfeed", result.FileHash)
}

func TestInlineSubmitProof(t *testing.T) {
	pipeline := &stubPipeline{}
	runner := jobs.NewInlineRunner(pipeline, logger.NewNop())

	sub, err := runner.Submit(context.Background(), validRequest(models.JobTypeProof))
	require.NoError(t, err)
	assert.Equal(t, 1, pipeline.proveCalls)
	assert.Zero(t, pipeline.verifyCalls)

	var proof verify.Proof
	require.NoError(t, json.Unmarshal(sub.Result, &proof))
	assert.Equal(t, models.StatusOK, proof.Verification.Status)
}

func TestInlineSubmitPipelineError(t *testing.T) {
	pipeline := &stubPipeline{err: errors.New("resolver down")}
	runner := jobs.NewInlineRunner(pipeline, logger.NewNop())

	_, err := runner.Submit(context.Background(), validRequest(models.JobTypeVerify))
	assert.Error(t, err)
}

func TestInlineSubmitValidation(t *testing.T) {
	runner := jobs.NewInlineRunner(&stubPipeline{}, logger.NewNop())
	ctx := context.Background()

	testCases := []struct {
		name string
		req  jobs.Request
	}{
		{"unknown type", jobs.Request{Type: "transcode", Content: []byte("x"), ManifestURI: "u"}},
		{"empty content", jobs.Request{Type: models.JobTypeVerify, ManifestURI: "u"}},
		{"empty manifest uri", jobs.Request{Type: models.JobTypeVerify, Content: []byte("x")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runner.Submit(ctx, tc.req)
			assert.ErrorIs(t, err, models.ErrInvalidRequest)
		})
	}
}

func TestInlineJobLookupsAreEmpty(t *testing.T) {
	runner := jobs.NewInlineRunner(&stubPipeline{}, logger.NewNop())
	ctx := context.Background()

	_, err := runner.Job(ctx, "any-id")
	assert.ErrorIs(t, err, models.ErrJobNotFound)

	list, err := runner.Jobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	stats, err := runner.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.JobStats{}, stats)
}
