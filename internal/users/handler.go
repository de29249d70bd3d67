package users

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/bookshelf-orders/internal/auth"
	"github.com/joao-fontenele/bookshelf-orders/internal/httpjson"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFrom(r.Context())
	users, err := h.svc.ListUsers(r.Context(), sess)
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	httpjson.WriteJSON(w, h.logger, http.StatusOK, users)
}

// HandleGet serves GET /users/{id} with the customer's purchase summary.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFrom(r.Context())
	summary, err := h.svc.GetCustomerSummary(r.Context(), sess, r.PathValue("id"))
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	httpjson.WriteJSON(w, h.logger, http.StatusOK, summary)
}
