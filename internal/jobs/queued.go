package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/originmark/provenance/internal/config"
	"github.com/originmark/provenance/internal/logger"
	"github.com/originmark/provenance/internal/metrics"
	"github.com/originmark/provenance/internal/models"
)

const (
	consumerGroup = "provenance-workers"

	blockTimeout = 5 * time.Second

	// jobIndexLen bounds the listable job history.
	jobIndexLen = 200

	progressQueued  = 0
	progressActive  = 10
	progressDone    = 100
	progressResolve = 50
)

// QueuedRunner dispatches verification work through a redis stream to a
// bounded worker pool. Job records live in redis with a TTL and are polled by
// identifier; a failing job is captured in its record and never takes a
// worker down.
type QueuedRunner struct {
	client      *redis.Client
	pipeline    Pipeline
	logger      logger.Logger
	metrics     *metrics.Metrics
	prefix      string
	concurrency int
	resultTTL   time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewQueuedRunner creates a QueuedRunner; call Start to launch the workers.
func NewQueuedRunner(
	client *redis.Client,
	pipeline Pipeline,
	cfg config.JobsConfig,
	m *metrics.Metrics,
	log logger.Logger,
) *QueuedRunner {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	resultTTL := cfg.ResultTTL
	if resultTTL <= 0 {
		resultTTL = 24 * time.Hour
	}

	return &QueuedRunner{
		client:      client,
		pipeline:    pipeline,
		logger:      log,
		metrics:     m,
		prefix:      cfg.StreamPrefix,
		concurrency: concurrency,
		resultTTL:   resultTTL,
		stopChan:    make(chan struct{}),
	}
}

func (r *QueuedRunner) streamKey() string       { return r.prefix + ":jobs:stream" }
func (r *QueuedRunner) indexKey() string        { return r.prefix + ":jobs:index" }
func (r *QueuedRunner) jobKey(id string) string { return r.prefix + ":jobs:" + id }
func (r *QueuedRunner) counterKey(name string) string {
	return r.prefix + ":jobs:stats:" + name
}

// Start creates the consumer group and launches the worker pool.
func (r *QueuedRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	r.mu.Unlock()

	err := r.client.XGroupCreateMkStream(ctx, r.streamKey(), consumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}

	for i := 0; i < r.concurrency; i++ {
		consumerID := fmt.Sprintf("worker-%d-%s", i, uuid.NewString()[:8])
		r.wg.Add(1)
		go r.work(ctx, consumerID)
	}

	r.logger.Info("job workers started",
		logger.Int("concurrency", r.concurrency),
		logger.String("stream", r.streamKey()))
	return nil
}

// Stop drains the worker pool. Safe to call more than once.
func (r *QueuedRunner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	r.mu.Unlock()

	close(r.stopChan)
	r.wg.Wait()
	r.logger.Info("job workers stopped")
}

// Submit enqueues a job and returns its identifier for polling.
func (r *QueuedRunner) Submit(ctx context.Context, req Request) (*Submission, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal job request: %w", err)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:        uuid.NewString(),
		Type:      req.Type,
		Status:    models.JobStatusQueued,
		Progress:  progressQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.saveJob(ctx, job); err != nil {
		return nil, err
	}

	pipe := r.client.Pipeline()
	pipe.LPush(ctx, r.indexKey(), job.ID)
	pipe.LTrim(ctx, r.indexKey(), 0, jobIndexLen-1)
	pipe.Incr(ctx, r.counterKey("waiting"))
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: r.streamKey(),
		Values: map[string]any{"job_id": job.ID, "request": payload},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	return &Submission{Mode: ModeAsync, JobID: job.ID}, nil
}

// Job returns the record for id, or models.ErrJobNotFound.
func (r *QueuedRunner) Job(ctx context.Context, id string) (*models.Job, error) {
	raw, err := r.client.Get(ctx, r.jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrJobNotFound
		}
		return nil, fmt.Errorf("load job: %w", err)
	}

	var job models.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Jobs lists recent jobs, newest first. Evicted records are skipped.
func (r *QueuedRunner) Jobs(ctx context.Context) ([]models.Job, error) {
	ids, err := r.client.LRange(ctx, r.indexKey(), 0, jobIndexLen-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	out := make([]models.Job, 0, len(ids))
	for _, id := range ids {
		job, jobErr := r.Job(ctx, id)
		if jobErr != nil {
			continue
		}
		out = append(out, *job)
	}
	return out, nil
}

// Stats reports queue-level counts for operational visibility.
func (r *QueuedRunner) Stats(ctx context.Context) (*models.JobStats, error) {
	pipe := r.client.Pipeline()
	waiting := pipe.Get(ctx, r.counterKey("waiting"))
	active := pipe.Get(ctx, r.counterKey("active"))
	completed := pipe.Get(ctx, r.counterKey("completed"))
	failed := pipe.Get(ctx, r.counterKey("failed"))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read job stats: %w", err)
	}

	return &models.JobStats{
		Waiting:   counterValue(waiting),
		Active:    counterValue(active),
		Completed: counterValue(completed),
		Failed:    counterValue(failed),
	}, nil
}

func counterValue(cmd *redis.StringCmd) int64 {
	v, err := cmd.Int64()
	if err != nil {
		return 0
	}
	return v
}

func (r *QueuedRunner) work(ctx context.Context, consumerID string) {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: consumerID,
			Streams:  []string{r.streamKey(), ">"},
			Count:    1,
			Block:    blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			r.logger.Error("job read failed", logger.Error(err))
			select {
			case <-time.After(time.Second):
			case <-r.stopChan:
				return
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				r.process(ctx, msg)
				if ackErr := r.client.XAck(ctx, r.streamKey(), consumerGroup, msg.ID).Err(); ackErr != nil {
					r.logger.Warn("job ack failed",
						logger.String("message_id", msg.ID),
						logger.Error(ackErr))
				}
			}
		}
	}
}

// process executes one job. Pipeline failures land in the job record; only
// bookkeeping failures are logged.
func (r *QueuedRunner) process(ctx context.Context, msg redis.XMessage) {
	jobID, _ := msg.Values["job_id"].(string)
	rawReq, _ := msg.Values["request"].(string)
	if jobID == "" || rawReq == "" {
		r.logger.Warn("malformed job message", logger.String("message_id", msg.ID))
		return
	}

	job, err := r.Job(ctx, jobID)
	if err != nil {
		r.logger.Warn("job record missing, skipping",
			logger.String("job_id", jobID), logger.Error(err))
		// Submit counted this message as waiting. Release the slot.
		if decrErr := r.client.Decr(ctx, r.counterKey("waiting")).Err(); decrErr != nil {
			r.logger.Warn("job counter update failed", logger.Error(decrErr))
		}
		return
	}

	var req Request
	if err := json.Unmarshal([]byte(rawReq), &req); err != nil {
		// Still counted as waiting; it never reached the active counter.
		r.failJob(ctx, job, fmt.Errorf("decode job request: %w", err), "waiting")
		return
	}

	r.transition(ctx, job, models.JobStatusActive, progressActive)
	r.metrics.RecordJobStart()

	pipe := r.client.Pipeline()
	pipe.Decr(ctx, r.counterKey("waiting"))
	pipe.Incr(ctx, r.counterKey("active"))
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("job counter update failed", logger.Error(err))
	}

	r.transition(ctx, job, models.JobStatusActive, progressResolve)

	result, err := execute(ctx, r.pipeline, req)
	if err != nil {
		r.failJob(ctx, job, err, "active")
		return
	}

	job.Status = models.JobStatusCompleted
	job.Progress = progressDone
	job.Result = result
	job.UpdatedAt = time.Now().UTC()
	if saveErr := r.saveJob(ctx, job); saveErr != nil {
		r.logger.Error("failed to save completed job",
			logger.String("job_id", job.ID), logger.Error(saveErr))
	}
	r.settle(ctx, "active", "completed")
	r.metrics.RecordJobDone(false)
}

// failJob records the failure on the job. from names the counter the job
// currently occupies, "waiting" for jobs that never went active.
func (r *QueuedRunner) failJob(ctx context.Context, job *models.Job, cause error, from string) {
	job.Status = models.JobStatusFailed
	job.Error = cause.Error()
	job.UpdatedAt = time.Now().UTC()
	if err := r.saveJob(ctx, job); err != nil {
		r.logger.Error("failed to save failed job",
			logger.String("job_id", job.ID), logger.Error(err))
	}
	r.settle(ctx, from, "failed")
	r.metrics.RecordJobDone(true)

	r.logger.Warn("job failed",
		logger.String("job_id", job.ID),
		logger.String("type", string(job.Type)),
		logger.Error(cause))
}

func (r *QueuedRunner) transition(ctx context.Context, job *models.Job, status models.JobStatus, progress int) {
	job.Status = status
	job.Progress = progress
	job.UpdatedAt = time.Now().UTC()
	if err := r.saveJob(ctx, job); err != nil {
		r.logger.Warn("job transition save failed",
			logger.String("job_id", job.ID), logger.Error(err))
	}
}

func (r *QueuedRunner) settle(ctx context.Context, from, outcome string) {
	pipe := r.client.Pipeline()
	pipe.Decr(ctx, r.counterKey(from))
	pipe.Incr(ctx, r.counterKey(outcome))
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("job counter update failed", logger.Error(err))
	}
}

func (r *QueuedRunner) saveJob(ctx context.Context, job *models.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := r.client.Set(ctx, r.jobKey(job.ID), raw, r.resultTTL).Err(); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}
