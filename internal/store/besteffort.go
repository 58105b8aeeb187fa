package store

import "github.com/originmark/provenance/internal/logger"

// BestEffort runs a persistence side effect whose failure must never fail the
// primary response. Errors are logged and swallowed; using this wrapper is
// what marks a write as allowed to be silent.
func BestEffort(log logger.Logger, op string, fn func() error) {
	if err := fn(); err != nil {
		log.Warn("best-effort write failed",
			logger.String("op", op),
			logger.Error(err))
	}
}
