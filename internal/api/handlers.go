package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/interfaces"
	"github.com/arb-engine/cross-venue-arbitrage-engine/pkg/types"
	"github.com/gorilla/mux"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	defaultSymbols   = 20
	maxSymbols       = 100
)

// Handlers implements the REST endpoints over the opportunity store
type Handlers struct {
	store interfaces.OpportunityStore
	risk  interfaces.RiskEngine
}

// NewHandlers creates the endpoint handlers
func NewHandlers(store interfaces.OpportunityStore, risk interfaces.RiskEngine) *Handlers {
	return &Handlers{store: store, risk: risk}
}

// GetOpportunities lists opportunities with optional symbol, min_profit and
// status filters and limit/offset pagination
func (h *Handlers) GetOpportunities(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := &interfaces.OpportunityFilter{
		Symbol: query.Get("symbol"),
		Status: types.OpportunityStatus(query.Get("status")),
		Limit:  clampedInt(query.Get("limit"), defaultPageLimit, maxPageLimit),
		Offset: clampedInt(query.Get("offset"), 0, 1<<30),
	}
	if raw := query.Get("min_profit"); raw != "" {
		minProfit, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_profit")
			return
		}
		filter.MinProfit = minProfit
	}

	page, err := h.store.List(r.Context(), filter)
	if err != nil {
		log.Printf("api: list opportunities: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetOpportunityByID returns one opportunity record
func (h *Handlers) GetOpportunityByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	opp, err := h.store.Get(r.Context(), id)
	if errors.Is(err, types.ErrNotFound) {
		writeError(w, http.StatusNotFound, "opportunity not found")
		return
	}
	if err != nil {
		log.Printf("api: get opportunity %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load opportunity")
		return
	}

	response := map[string]interface{}{"opportunity": opp}
	if outcome, ok := h.risk.Outcome(id); ok {
		response["outcome"] = outcome
	}
	writeJSON(w, http.StatusOK, response)
}

// GetSymbols returns the tracked pairs ordered by liquidity rank
func (h *Handlers) GetSymbols(w http.ResponseWriter, r *http.Request) {
	n := clampedInt(r.URL.Query().Get("limit"), defaultSymbols, maxSymbols)

	pairs, err := h.store.TopPairs(r.Context(), n)
	if err != nil {
		log.Printf("api: load symbols: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load symbols")
		return
	}
	if pairs == nil {
		pairs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": pairs,
		"count":   len(pairs),
	})
}

// GetStats summarizes stored opportunities and current capital exposure
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		log.Printf("api: load stats: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":            stats,
		"reserved_capital": h.risk.Exposure(),
	})
}

func clampedInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
