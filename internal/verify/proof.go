package verify

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/originmark/provenance/internal/logger"
	"github.com/originmark/provenance/internal/manifest"
	"github.com/originmark/provenance/internal/models"
)

// Proof is the self-contained document bundling a verdict with all evidence
// needed to re-check it offline.
type Proof struct {
	Network      NetworkInfo         `json:"network"`
	Content      ContentDescriptor   `json:"content"`
	Manifest     ManifestDescriptor  `json:"manifest"`
	Onchain      models.ContentEntry `json:"onchain"`
	Recovery     RecoveryInfo        `json:"recovery"`
	Transaction  *TransactionRef     `json:"transaction,omitempty"`
	Verification VerdictInfo         `json:"verification"`
	GeneratedAt  string              `json:"generated_at"`
}

type NetworkInfo struct {
	ChainID         int64  `json:"chain_id"`
	RegistryAddress string `json:"registry_address"`
}

type ContentDescriptor struct {
	FileHash  string `json:"file_hash"`
	Algorithm string `json:"algorithm"`
}

type ManifestDescriptor struct {
	URI      string          `json:"uri"`
	Document models.Manifest `json:"document"`
}

type RecoveryInfo struct {
	RecoveredAddress string `json:"recovered_address"`
	MatchesCreator   bool   `json:"matches_creator"`
}

type TransactionRef struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

type VerdictInfo struct {
	Status models.VerificationStatus `json:"status"`
	Checks Checks                    `json:"checks"`
}

// Prove runs the verification pipeline and additionally locates the
// registration transaction by scanning ledger events over a bounded block
// range. An unbounded full-history scan is never performed.
func (e *Engine) Prove(ctx context.Context, content io.Reader, manifestURI string) (*Proof, error) {
	result, doc, err := e.pipeline(ctx, content, manifestURI)
	if err != nil {
		return nil, err
	}

	proof := &Proof{
		Network: NetworkInfo{
			ChainID:         e.ledger.ChainID,
			RegistryAddress: e.ledger.RegistryAddress,
		},
		Content: ContentDescriptor{
			FileHash:  result.FileHash,
			Algorithm: models.ManifestAlgorithm,
		},
		Manifest: ManifestDescriptor{
			URI:      manifestURI,
			Document: doc,
		},
		Onchain: result.Onchain,
		Recovery: RecoveryInfo{
			RecoveredAddress: result.Recovered,
			MatchesCreator:   result.Checks.CreatorOK,
		},
		Verification: VerdictInfo{
			Status: result.Status,
			Checks: result.Checks,
		},
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}

	if tx := e.findRegistration(ctx, result.FileHash); tx != nil {
		proof.Transaction = tx
	}

	e.recordVerdict(ctx, result, manifestURI)
	return proof, nil
}

// findRegistration returns the most recent ContentRegistered transaction for
// hash within the configured scan window, or nil. Scan failures degrade to
// an absent transaction reference; the proof is still valid evidence.
func (e *Engine) findRegistration(ctx context.Context, fileHash string) *TransactionRef {
	hashBytes, err := manifest.DecodeHash(fileHash)
	if err != nil {
		return nil
	}

	head, err := e.registry.HeadBlock(ctx)
	if err != nil {
		e.logger.Warn("event scan skipped, head block unavailable", logger.Error(err))
		return nil
	}

	from := e.ledger.StartBlock
	if from == 0 && head > e.ledger.ScanBlocks {
		from = head - e.ledger.ScanBlocks
	}

	events, err := e.registry.FilterRegistrations(ctx, hashBytes, from, head)
	if err != nil {
		e.logger.Warn("event scan failed",
			logger.Uint64("from_block", from),
			logger.Uint64("to_block", head),
			logger.Error(err))
		return nil
	}
	if len(events) == 0 {
		return nil
	}

	latest := events[0]
	for _, ev := range events[1:] {
		if ev.BlockNumber >= latest.BlockNumber {
			latest = ev
		}
	}

	// The indexed topic and the canonical form are both 0x-prefixed hex;
	// guard against a casing mismatch from the log decoding path.
	if !strings.EqualFold(latest.ContentHash, fileHash) {
		return nil
	}

	return &TransactionRef{TxHash: latest.TxHash, BlockNumber: latest.BlockNumber}
}
