package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/crypto-dashboard/internal/errors"
)

// ListNews — GET /api/news?page=. Ошибка апстрима отдаётся
// запасной лентой с fallback=true, а не ошибкой.
func (h *Handlers) ListNews(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(r, "page")
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	writeJSON(w, http.StatusOK, h.deps.News.Page(r.Context(), page))
}
