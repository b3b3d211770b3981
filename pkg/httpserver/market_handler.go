package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/predmarket/predmarket/internal/lifecycle"
	"github.com/predmarket/predmarket/internal/marketstore"
	"github.com/predmarket/predmarket/pkg/types"
	"go.uber.org/zap"
)

// MarketHandler serves the read-only market API.
type MarketHandler struct {
	store      marketstore.Store
	controller *lifecycle.Controller
	logger     *zap.Logger
}

// NewMarketHandler creates a market API handler.
func NewMarketHandler(store marketstore.Store, controller *lifecycle.Controller, logger *zap.Logger) *MarketHandler {
	return &MarketHandler{
		store:      store,
		controller: controller,
		logger:     logger,
	}
}

// MarketSummary is the list-view projection of a market.
type MarketSummary struct {
	Address    string     `json:"address"`
	Question   string     `json:"question"`
	Status     string     `json:"status"`
	Outcomes   []string   `json:"outcomes"`
	SubMarkets int        `json:"sub_markets"`
	StartedAt  time.Time  `json:"started_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// PriceEntry is one outcome quote in a prices response.
type PriceEntry struct {
	Outcome string `json:"outcome"`
	Index   int    `json:"index"`
	Price   string `json:"price,omitempty"`
}

// PricesResponse is the response of the prices endpoint.
type PricesResponse struct {
	Market string       `json:"market"`
	Amount float64      `json:"amount"`
	Prices []PriceEntry `json:"prices"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleList handles GET /api/markets.
func (h *MarketHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	markets, err := h.store.FindAll()
	if err != nil {
		h.logger.Error("market-list-failed", zap.Error(err))
		h.writeError(w, "failed to read market registry", http.StatusInternalServerError)
		return
	}

	summaries := make([]MarketSummary, 0, len(markets))
	for _, market := range markets {
		summaries = append(summaries, summarize(market))
	}

	h.writeJSON(w, http.StatusOK, summaries)
}

// HandleGet handles GET /api/markets/{address}.
func (h *MarketHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	market, ok := h.findMarket(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, market)
}

// HandlePrices handles GET /api/markets/{address}/prices?amount=<shares>.
func (h *MarketHandler) HandlePrices(w http.ResponseWriter, r *http.Request) {
	market, ok := h.findMarket(w, r)
	if !ok {
		return
	}

	amount := 1.0
	if raw := r.URL.Query().Get("amount"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			h.writeError(w, "amount must be a positive number", http.StatusBadRequest)
			return
		}
		amount = parsed
	}

	priced, err := h.controller.OutcomePrices(r.Context(), market, amount)
	if err != nil {
		h.logger.Error("market-prices-failed",
			zap.String("market", market.Address.Hex()),
			zap.Error(err))
		h.writeError(w, "failed to quote market", http.StatusBadGateway)
		return
	}

	entries := make([]PriceEntry, 0, len(priced))
	for _, p := range priced {
		entry := PriceEntry{Outcome: p.Outcome, Index: p.Index}
		if p.Price != nil {
			entry.Price = p.Price.Text('f', 6)
		}
		entries = append(entries, entry)
	}

	h.writeJSON(w, http.StatusOK, PricesResponse{
		Market: market.Address.Hex(),
		Amount: amount,
		Prices: entries,
	})
}

func (h *MarketHandler) findMarket(w http.ResponseWriter, r *http.Request) (*types.PredictionMarket, bool) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		h.writeError(w, "invalid market address", http.StatusBadRequest)
		return nil, false
	}

	market, err := h.store.Find(common.HexToAddress(raw))
	if err != nil {
		if errors.Is(err, marketstore.ErrNotFound) {
			h.writeError(w, "market not found", http.StatusNotFound)
			return nil, false
		}
		h.logger.Error("market-lookup-failed", zap.String("address", raw), zap.Error(err))
		h.writeError(w, "failed to read market registry", http.StatusInternalServerError)
		return nil, false
	}
	return market, true
}

func summarize(market *types.PredictionMarket) MarketSummary {
	titles := make([]string, 0, len(market.Outcomes))
	for _, outcome := range market.Outcomes {
		titles = append(titles, outcome.Title)
	}
	return MarketSummary{
		Address:    market.Address.Hex(),
		Question:   market.Question,
		Status:     string(market.Status()),
		Outcomes:   titles,
		SubMarkets: len(market.SubMarkets),
		StartedAt:  market.StartedAt,
		ClosedAt:   market.ClosedAt,
		ResolvedAt: market.ResolvedAt,
	}
}

func (h *MarketHandler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func (h *MarketHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	h.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
