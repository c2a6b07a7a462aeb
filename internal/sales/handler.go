package sales

import (
	"net/http"
	"strconv"

	"shopbd-be/internal/logger"
	"shopbd-be/internal/utils"

	"go.uber.org/zap"
)

const maxDays = 366

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// GetSalesMetrics serves GET /admin/sales-metrics?days=N.
func (h *Handler) GetSalesMetrics(w http.ResponseWriter, r *http.Request) {
	days := DefaultDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxDays {
			utils.WriteJSONError(w, "days must be an integer between 1 and 366", http.StatusBadRequest)
			return
		}
		days = n
	}

	metrics, err := h.svc.GetSalesMetrics(r.Context(), days)
	if err != nil {
		logger.FromCtx(r.Context()).Error("sales metrics failed", zap.Error(err))
		utils.WriteJSONError(w, "failed to compute sales metrics", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": metrics})
}
