package analytics

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/bookshelf-orders/internal/auth"
	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/httpjson"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid(key, "must be a number")
	}
	return n, nil
}

// HandleSales serves GET /analytics/sales?year=&month=.
func (h *Handler) HandleSales(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	month, err := queryInt(r, "month")
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	sess, _ := auth.SessionFrom(r.Context())
	sales, err := h.svc.ComputeSalesAggregate(r.Context(), sess, domain.SalesPeriod{Year: year, Month: month})
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	httpjson.WriteJSON(w, h.logger, http.StatusOK, sales)
}

// HandleRevenue serves GET /analytics/revenue?year=.
func (h *Handler) HandleRevenue(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	sess, _ := auth.SessionFrom(r.Context())
	revenue, err := h.svc.ComputeMonthlyRevenue(r.Context(), sess, year)
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	httpjson.WriteJSON(w, h.logger, http.StatusOK, revenue)
}
