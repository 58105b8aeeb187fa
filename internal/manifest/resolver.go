package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/originmark/provenance/internal/config"
	"github.com/originmark/provenance/internal/logger"
	"github.com/originmark/provenance/internal/models"
)

// maxManifestBytes caps the manifest body read. Manifests are small JSON
// documents; anything larger is rejected at the read boundary.
const maxManifestBytes = 1 << 20

// Resolver dereferences a manifest pointer to its JSON document.
// Content-addressed (ipfs://) pointers are translated through the configured
// gateway; http(s) pointers are fetched directly. Failures are not retried
// here; retry policy belongs to the caller.
type Resolver struct {
	client  *http.Client
	gateway string
	logger  logger.Logger
}

// NewResolver creates a Resolver with a bounded request timeout.
func NewResolver(cfg config.ResolverConfig, log logger.Logger) *Resolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Resolver{
		client:  &http.Client{Timeout: timeout},
		gateway: strings.TrimRight(cfg.GatewayURL, "/"),
		logger:  log,
	}
}

// Resolve fetches and parses the manifest at uri.
func (r *Resolver) Resolve(ctx context.Context, uri string) (models.Manifest, error) {
	fetchURL, err := r.fetchURL(uri)
	if err != nil {
		return models.Manifest{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, http.NoBody)
	if err != nil {
		return models.Manifest{}, fmt.Errorf("%w: %w", models.ErrManifestFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return models.Manifest{}, fmt.Errorf("%w: %w", models.ErrManifestFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		r.logger.Warn("manifest fetch returned non-2xx",
			logger.String("uri", uri),
			logger.Int("status", resp.StatusCode))
		return models.Manifest{}, fmt.Errorf("%w: status %d", models.ErrManifestFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return models.Manifest{}, fmt.Errorf("%w: %w", models.ErrManifestFetchFailed, err)
	}

	var m models.Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return models.Manifest{}, fmt.Errorf("%w: %w", models.ErrManifestParseFailed, err)
	}
	return m, nil
}

// fetchURL translates a manifest pointer into a fetchable URL.
func (r *Resolver) fetchURL(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedManifestURI, uri)
	}

	switch parsed.Scheme {
	case "http", "https":
		return uri, nil
	case "ipfs":
		// ipfs://CID[/path] -> <gateway>/ipfs/CID[/path]
		return r.gateway + "/ipfs/" + parsed.Host + parsed.Path, nil
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedManifestURI, uri)
	}
}
