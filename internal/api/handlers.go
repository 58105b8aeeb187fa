package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/originmark/provenance/internal/cache"
	"github.com/originmark/provenance/internal/config"
	"github.com/originmark/provenance/internal/jobs"
	"github.com/originmark/provenance/internal/ledger"
	"github.com/originmark/provenance/internal/logger"
	"github.com/originmark/provenance/internal/manifest"
	"github.com/originmark/provenance/internal/models"
	"github.com/originmark/provenance/internal/store"
)

// VerificationLister is the slice of the content store the API reads.
type VerificationLister interface {
	ListByHash(ctx context.Context, hash string, limit int) ([]models.VerificationRecord, error)
}

// ContentUpserter mirrors successful registrations into the content store.
type ContentUpserter interface {
	Upsert(ctx context.Context, entry models.ContentEntry) error
}

// Handlers provides the HTTP handlers for the API.
type Handlers struct {
	cfg           *config.Config
	registry      ledger.Registry
	builder       *manifest.Builder
	runner        jobs.Runner
	cache         *cache.Cache
	contents      ContentUpserter
	verifications VerificationLister
	logger        logger.Logger
	version       string
}

// HandlerDeps bundles the handler dependencies. builder, contents, and
// verifications may be nil when the corresponding capability is not
// configured.
type HandlerDeps struct {
	Registry      ledger.Registry
	Builder       *manifest.Builder
	Runner        jobs.Runner
	Cache         *cache.Cache
	Contents      ContentUpserter
	Verifications VerificationLister
	Logger        logger.Logger
	Version       string
}

func NewHandlers(cfg *config.Config, deps HandlerDeps) *Handlers {
	return &Handlers{
		cfg:           cfg,
		registry:      deps.Registry,
		builder:       deps.Builder,
		runner:        deps.Runner,
		cache:         deps.Cache,
		contents:      deps.Contents,
		verifications: deps.Verifications,
		logger:        deps.Logger,
		version:       deps.Version,
	}
}

type registerRequest struct {
	ContentHash string `json:"content_hash"`
	ManifestURI string `json:"manifest_uri"`
}

// RegisterContent handles POST /api/v1/content/register. The fingerprint
// comes either from an uploaded file or from a content_hash field.
func (h *Handlers) RegisterContent(c *gin.Context) {
	contentHash, manifestURI, ok := h.contentInputs(c)
	if !ok {
		return
	}

	hashBytes, err := manifest.DecodeHash(contentHash)
	if err != nil {
		h.respondError(c, err)
		return
	}

	tx, err := h.registry.Register(c.Request.Context(), hashBytes, manifestURI)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.mirrorEntry(c.Request.Context(), hashBytes, contentHash)

	c.JSON(http.StatusCreated, gin.H{
		"content_hash": contentHash,
		"manifest_uri": manifestURI,
		"creator":      h.registry.Caller(),
		"tx_hash":      string(tx),
	})
}

// contentInputs extracts (fingerprint, manifest URI) from a register request.
func (h *Handlers) contentInputs(c *gin.Context) (contentHash, manifestURI string, ok bool) {
	if file, err := c.FormFile("file"); err == nil {
		if !h.uploadWithinLimit(c, file.Size) {
			return "", "", false
		}
		f, openErr := file.Open()
		if openErr != nil {
			h.respondError(c, openErr)
			return "", "", false
		}
		defer f.Close()

		hash, hashErr := manifest.HashReader(f)
		if hashErr != nil {
			h.respondError(c, hashErr)
			return "", "", false
		}
		return hash, c.PostForm("manifest_uri"), true
	}

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file upload or content_hash is required"})
		return "", "", false
	}
	if req.ContentHash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content_hash is required"})
		return "", "", false
	}
	return req.ContentHash, req.ManifestURI, true
}

type manifestUpdateRequest struct {
	ManifestURI string `json:"manifest_uri" binding:"required"`
}

// UpdateManifest handles POST /api/v1/content/:hash/manifest.
func (h *Handlers) UpdateManifest(c *gin.Context) {
	hashBytes, contentHash, ok := h.pathHash(c)
	if !ok {
		return
	}

	var req manifestUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "manifest_uri is required"})
		return
	}

	tx, err := h.registry.UpdateManifest(c.Request.Context(), hashBytes, req.ManifestURI)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.mirrorEntry(c.Request.Context(), hashBytes, contentHash)

	c.JSON(http.StatusOK, gin.H{"content_hash": contentHash, "tx_hash": string(tx)})
}

// RevokeContent handles POST /api/v1/content/:hash/revoke. The entry stays
// queryable; only its manifest URI is cleared.
func (h *Handlers) RevokeContent(c *gin.Context) {
	hashBytes, contentHash, ok := h.pathHash(c)
	if !ok {
		return
	}

	tx, err := h.registry.Revoke(c.Request.Context(), hashBytes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.mirrorEntry(c.Request.Context(), hashBytes, contentHash)

	c.JSON(http.StatusOK, gin.H{"content_hash": contentHash, "tx_hash": string(tx)})
}

type bindRequest struct {
	Platform   string `json:"platform" binding:"required"`
	PlatformID string `json:"platform_id" binding:"required"`
}

// BindPlatform handles POST /api/v1/content/:hash/bindings. Platform names
// are lower-cased at this boundary; the registry itself stores them opaquely.
func (h *Handlers) BindPlatform(c *gin.Context) {
	hashBytes, contentHash, ok := h.pathHash(c)
	if !ok {
		return
	}

	var req bindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform and platform_id are required"})
		return
	}
	platform := strings.ToLower(req.Platform)

	tx, err := h.registry.BindPlatform(c.Request.Context(), hashBytes, platform, req.PlatformID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.cache != nil {
		_ = h.cache.Delete(c.Request.Context(), cache.BindingKey(platform, req.PlatformID))
	}

	c.JSON(http.StatusCreated, gin.H{
		"content_hash": contentHash,
		"platform":     platform,
		"platform_id":  req.PlatformID,
		"tx_hash":      string(tx),
	})
}

// GetContent handles GET /api/v1/content/:hash with a read-through cache.
func (h *Handlers) GetContent(c *gin.Context) {
	hashBytes, contentHash, ok := h.pathHash(c)
	if !ok {
		return
	}

	var entry models.ContentEntry
	err := h.cache.GetOrSet(c.Request.Context(), cache.ContentKey(contentHash), h.cfg.Cache.ContentTTL, &entry,
		func(ctx context.Context) (any, error) {
			return h.registry.Entries(ctx, hashBytes)
		})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entry": entry, "registered": entry.Registered()})
}

// ResolveByPlatform handles GET /api/v1/resolve/:platform/:id. An unbound
// pair is a zero-valued entry, not an error.
func (h *Handlers) ResolveByPlatform(c *gin.Context) {
	platform := strings.ToLower(c.Param("platform"))
	platformID := c.Param("id")

	var entry models.ContentEntry
	err := h.cache.GetOrSet(c.Request.Context(), cache.BindingKey(platform, platformID), h.cfg.Cache.BindingTTL, &entry,
		func(ctx context.Context) (any, error) {
			return h.registry.ResolveByPlatform(ctx, platform, platformID)
		})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"platform":    platform,
		"platform_id": platformID,
		"entry":       entry,
		"bound":       entry.Registered(),
	})
}

// ListVerifications handles GET /api/v1/content/:hash/verifications.
func (h *Handlers) ListVerifications(c *gin.Context) {
	_, contentHash, ok := h.pathHash(c)
	if !ok {
		return
	}
	if h.verifications == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "content store not configured"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	var records []models.VerificationRecord
	err = h.cache.GetOrSet(c.Request.Context(), cache.VerificationsKey(contentHash), h.cfg.Cache.VerificationsTTL, &records,
		func(ctx context.Context) (any, error) {
			return h.verifications.ListByHash(ctx, contentHash, limit)
		})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"verifications": records, "count": len(records)})
}

type createManifestRequest struct {
	ContentHash string `json:"content_hash" binding:"required"`
	ContentURI  string `json:"content_uri"`
}

// CreateManifest handles POST /api/v1/manifests.
func (h *Handlers) CreateManifest(c *gin.Context) {
	if h.builder == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no signing key configured"})
		return
	}

	var req createManifestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content_hash is required"})
		return
	}

	doc, err := h.builder.Build(req.ContentHash, req.ContentURI)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// Verify handles POST /api/v1/verify.
func (h *Handlers) Verify(c *gin.Context) {
	h.submit(c, models.JobTypeVerify)
}

// Proof handles POST /api/v1/proof.
func (h *Handlers) Proof(c *gin.Context) {
	h.submit(c, models.JobTypeProof)
}

// submit routes a verification request through the job runner. The response
// carries mode "async" with a job id or mode "sync" with the finished result,
// depending on which runner was selected at startup.
func (h *Handlers) submit(c *gin.Context, jobType models.JobType) {
	manifestURI := c.PostForm("manifest_uri")
	if manifestURI == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "manifest_uri is required"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file upload is required"})
		return
	}
	if !h.uploadWithinLimit(c, file.Size) {
		return
	}
	f, err := file.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		h.respondError(c, err)
		return
	}

	submission, err := h.runner.Submit(c.Request.Context(), jobs.Request{
		Type:        jobType,
		Content:     content,
		ManifestURI: manifestURI,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	if submission.Mode == jobs.ModeAsync {
		c.JSON(http.StatusAccepted, submission)
		return
	}
	c.JSON(http.StatusOK, submission)
}

// GetJob handles GET /api/v1/jobs/:id.
func (h *Handlers) GetJob(c *gin.Context) {
	job, err := h.runner.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs.
func (h *Handlers) ListJobs(c *gin.Context) {
	list, err := h.runner.Jobs(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": list, "count": len(list)})
}

// JobStats handles GET /api/v1/jobs/stats.
func (h *Handlers) JobStats(c *gin.Context) {
	stats, err := h.runner.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ServiceStats handles GET /api/v1/stats.
func (h *Handlers) ServiceStats(c *gin.Context) {
	jobStats, err := h.runner.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cache": h.cache.Stats(),
		"jobs":  jobStats,
	})
}

// Health handles GET /health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "provenance",
		"version": h.version,
	})
}

// pathHash validates the :hash path parameter.
func (h *Handlers) pathHash(c *gin.Context) ([32]byte, string, bool) {
	contentHash := c.Param("hash")
	hashBytes, err := manifest.DecodeHash(contentHash)
	if err != nil {
		h.respondError(c, err)
		return hashBytes, "", false
	}
	return hashBytes, contentHash, true
}

// uploadWithinLimit rejects oversized uploads outright. Hashing a truncated
// stream would produce a confident verdict about different bytes.
func (h *Handlers) uploadWithinLimit(c *gin.Context, size int64) bool {
	if limit := h.cfg.Server.MaxUploadBytes; limit > 0 && size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds the %d byte upload limit", limit),
		})
		return false
	}
	return true
}

// mirrorEntry refreshes the content-store mirror and invalidates the cached
// entry after a successful registry write. Both are best-effort.
func (h *Handlers) mirrorEntry(ctx context.Context, hashBytes [32]byte, contentHash string) {
	if h.contents != nil {
		store.BestEffort(h.logger, "mirror content record", func() error {
			entry, err := h.registry.Entries(ctx, hashBytes)
			if err != nil {
				return err
			}
			return h.contents.Upsert(ctx, entry)
		})
	}
	if h.cache != nil {
		_ = h.cache.Delete(ctx, cache.ContentKey(contentHash))
	}
}

// respondError maps the error taxonomy onto HTTP statuses.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrAlreadyRegistered), errors.Is(err, models.ErrAlreadyBound):
		status = http.StatusConflict
	case errors.Is(err, models.ErrNotCreator):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidContentHash),
		errors.Is(err, models.ErrUnsupportedManifestURI),
		errors.Is(err, models.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrManifestFetchFailed), errors.Is(err, models.ErrManifestParseFailed):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			logger.String("path", c.Request.URL.Path),
			logger.Error(err))
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
