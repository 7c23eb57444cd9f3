package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/crossvenue/arb/internal/ledger"
	"github.com/crossvenue/arb/pkg/types"
)

type pairsResponse struct {
	Pairs []types.VerifiedPair `json:"pairs"`
}

type positionsResponse struct {
	Positions     []ledger.Position `json:"positions"`
	RealizedPnl   float64           `json:"realized_pnl"`
	UnrealizedPnl float64           `json:"unrealized_pnl"`
}

// handlePairs serves GET /api/pairs.
func handlePairs(pairs PairLister, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, pairsResponse{Pairs: pairs.Snapshot()})
	}
}

// handlePositions serves GET /api/positions.
func handlePositions(positions PositionLister, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		realized, unrealized := positions.TotalPnl()
		writeJSON(w, logger, positionsResponse{
			Positions:     positions.Positions(),
			RealizedPnl:   realized,
			UnrealizedPnl: unrealized,
		})
	}
}

type pairStatusResponse struct {
	PairID string `json:"pair_id"`
	Status string `json:"status"`
}

// handlePairStatus serves POST /api/pairs/{id}/pause and /resume. These are
// the runtime inlet for operator pause/resume events.
func handlePairStatus(apply func(string) error, status string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := apply(id); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, logger, pairStatusResponse{PairID: id, Status: status})
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		logger.Error("failed-to-encode-response", zap.Error(err))
	}
}
