// Package verify implements the verification/proof engine: it reconciles a
// file fingerprint, a signed manifest, and the ledger entry into a tri-state
// verdict, and optionally emits a portable proof document.
package verify

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/originmark/provenance/internal/cache"
	"github.com/originmark/provenance/internal/config"
	"github.com/originmark/provenance/internal/ledger"
	"github.com/originmark/provenance/internal/logger"
	"github.com/originmark/provenance/internal/manifest"
	"github.com/originmark/provenance/internal/metrics"
	"github.com/originmark/provenance/internal/models"
)

// ManifestResolver dereferences a manifest pointer to its document.
type ManifestResolver interface {
	Resolve(ctx context.Context, uri string) (models.Manifest, error)
}

// RecordStore is the slice of the content store the engine appends to.
type RecordStore interface {
	Append(ctx context.Context, rec *models.VerificationRecord) error
}

// Checks are the three boolean comparisons behind a verdict.
type Checks struct {
	ManifestHashOK bool `json:"manifestHashOk"`
	CreatorOK      bool `json:"creatorOk"`
	ManifestOK     bool `json:"manifestOk"`
}

// Result is the verify response shape.
type Result struct {
	Status    models.VerificationStatus `json:"status"`
	FileHash  string                    `json:"fileHash"`
	Recovered string                    `json:"recovered"`
	Onchain   models.ContentEntry       `json:"onchain"`
	Checks    Checks                    `json:"checks"`
}

// Engine runs the verification pipeline. It is safe for concurrent use
// across independent fingerprints; its only side effect is one best-effort
// record append plus cache invalidation per call.
type Engine struct {
	registry ledger.Registry
	resolver ManifestResolver
	records  RecordStore
	cache    *cache.Cache
	metrics  *metrics.Metrics
	logger   logger.Logger
	ledger   config.LedgerConfig
}

// NewEngine creates an Engine. records and cacheLayer may be nil, in which
// case the persistence side effect and invalidation are skipped.
func NewEngine(
	registry ledger.Registry,
	resolver ManifestResolver,
	records RecordStore,
	cacheLayer *cache.Cache,
	m *metrics.Metrics,
	log logger.Logger,
	ledgerCfg config.LedgerConfig,
) *Engine {
	return &Engine{
		registry: registry,
		resolver: resolver,
		records:  records,
		cache:    cacheLayer,
		metrics:  m,
		logger:   log,
		ledger:   ledgerCfg,
	}
}

// Verify computes the trust verdict for content against manifestURI.
// Any failure before the verdict exists aborts with an error; there is no
// default-to-FAIL fallback.
func (e *Engine) Verify(ctx context.Context, content io.Reader, manifestURI string) (*Result, error) {
	result, _, err := e.pipeline(ctx, content, manifestURI)
	if err != nil {
		return nil, err
	}
	e.recordVerdict(ctx, result, manifestURI)
	return result, nil
}

// pipeline runs steps 1-8 and returns the verdict plus the resolved manifest
// document for proof assembly.
func (e *Engine) pipeline(ctx context.Context, content io.Reader, manifestURI string) (*Result, models.Manifest, error) {
	fileHash, err := manifest.HashReader(content)
	if err != nil {
		return nil, models.Manifest{}, err
	}

	doc, err := e.resolver.Resolve(ctx, manifestURI)
	if err != nil {
		return nil, models.Manifest{}, err
	}

	manifestHashOK := strings.EqualFold(doc.ContentHash, fileHash)

	// Signature recovery fails closed: malformed input yields the zero
	// address instead of an error.
	recovered := manifest.RecoverSigner(doc.ContentHash, doc.Signature)

	hashBytes, err := manifest.DecodeHash(fileHash)
	if err != nil {
		return nil, models.Manifest{}, err
	}
	entry, err := e.registry.Entries(ctx, hashBytes)
	if err != nil {
		return nil, models.Manifest{}, fmt.Errorf("read ledger entry: %w", err)
	}

	// A zero-address recovery never authenticates anyone, and an absent
	// entry carries the zero creator. Without this guard a forged signature
	// over unregistered content would "match" the zero creator.
	creatorOK := !strings.EqualFold(recovered, models.ZeroAddress) &&
		strings.EqualFold(entry.Creator, recovered)

	checks := Checks{
		ManifestHashOK: manifestHashOK,
		CreatorOK:      creatorOK,
		ManifestOK:     entry.ManifestURI == manifestURI,
	}

	return &Result{
		Status:    verdict(checks),
		FileHash:  fileHash,
		Recovered: recovered,
		Onchain:   entry,
		Checks:    checks,
	}, doc, nil
}

// verdict applies the strict tie-break order: a hash mismatch is FAIL no
// matter what else matches, and a creator mismatch is FAIL even with a
// matching hash. Only a stale manifest URI downgrades OK to WARN.
func verdict(c Checks) models.VerificationStatus {
	switch {
	case c.ManifestHashOK && c.CreatorOK && c.ManifestOK:
		return models.StatusOK
	case c.ManifestHashOK && c.CreatorOK:
		return models.StatusWarn
	default:
		return models.StatusFail
	}
}

// recordVerdict performs the step-9 side effects: append one verification
// record and invalidate the cached verification list. Both are best-effort.
func (e *Engine) recordVerdict(ctx context.Context, result *Result, manifestURI string) {
	e.metrics.RecordVerification(string(result.Status))

	if e.records != nil {
		rec := &models.VerificationRecord{
			ContentHash:      result.FileHash,
			ManifestURI:      manifestURI,
			RecoveredAddress: result.Recovered,
			CreatorOnchain:   result.Onchain.Creator,
			Status:           result.Status,
		}
		if err := e.records.Append(ctx, rec); err != nil {
			e.logger.Warn("best-effort write failed",
				logger.String("op", "append verification record"),
				logger.String("content_hash", result.FileHash),
				logger.Error(err))
		}
	}

	if e.cache != nil {
		_ = e.cache.Delete(ctx, cache.VerificationsKey(result.FileHash))
	}
}
