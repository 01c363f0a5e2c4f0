// Package retriever implements query-time retrieval: dense vector
// search, sparse BM25 search, and hybrid retrieval with reciprocal
// rank fusion.
package retriever

import (
	sferrors "github.com/sfarag/slackfaq/internal/errors"
)

// Mode selects the retrieval strategy.
type Mode int

const (
	// ModeDense retrieves by embedding similarity only.
	ModeDense Mode = iota

	// ModeSparse retrieves by BM25 keyword match only.
	ModeSparse

	// ModeHybrid runs both sub-searches and fuses them with RRF.
	ModeHybrid
)

// String returns the mode's wire name.
func (m Mode) String() string {
	switch m {
	case ModeDense:
		return "dense"
	case ModeSparse:
		return "sparse"
	case ModeHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// ParseMode converts a mode name to a Mode.
// Unknown names fail without touching any state.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "dense":
		return ModeDense, nil
	case "sparse":
		return ModeSparse, nil
	case "hybrid":
		return ModeHybrid, nil
	default:
		return 0, sferrors.UnsupportedMode(s)
	}
}
