package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/crypto-dashboard/internal/errors"
)

const (
	defaultRateBase   = "USD"
	defaultRateTarget = "INR"
)

type priceResponse struct {
	Symbol   string  `json:"symbol"`
	PriceUSD float64 `json:"price_usd"`
}

// queryInt читает необязательный целочисленный параметр.
func queryInt(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}

	return n, true
}

// ListMarkets — GET /api/markets?page=&per_page=.
// Ноль и отсутствие параметра означают значения по умолчанию.
func (h *Handlers) ListMarkets(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(r, "page")
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	perPage, ok := queryInt(r, "per_page")
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	out, err := h.deps.Market.Markets(r.Context(), page, perPage)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))

	price, err := h.deps.Market.UnitPrice(r.Context(), symbol)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, priceResponse{Symbol: symbol, PriceUSD: price})
}

// GetRate — GET /api/rates?base=&target=, по умолчанию USD -> INR.
func (h *Handlers) GetRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	base := strings.TrimSpace(q.Get("base"))
	if base == "" {
		base = defaultRateBase
	}
	target := strings.TrimSpace(q.Get("target"))
	if target == "" {
		target = defaultRateTarget
	}

	out, err := h.deps.Market.ExchangeRate(r.Context(), base, target)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}
