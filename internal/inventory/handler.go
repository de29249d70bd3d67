package inventory

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/bookshelf-orders/internal/auth"
	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/httpjson"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

func session(r *http.Request) domain.Session {
	s, _ := auth.SessionFrom(r.Context())
	return s
}

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListProducts(r.Context())
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("products listed", "count", len(products))
	httpjson.WriteJSON(w, h.logger, http.StatusOK, products)
}

func (h *Handler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	httpjson.WriteJSON(w, h.logger, http.StatusOK, p)
}

func (h *Handler) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductInput
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	p, err := h.svc.CreateProduct(r.Context(), session(r), req)
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	httpjson.WriteJSON(w, h.logger, http.StatusCreated, p)
}

func (h *Handler) HandleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductInput
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	p, err := h.svc.UpdateProduct(r.Context(), session(r), r.PathValue("id"), req)
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	httpjson.WriteJSON(w, h.logger, http.StatusOK, p)
}

type restockRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) HandleRestock(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	p, err := h.svc.Restock(r.Context(), session(r), r.PathValue("id"), req.Delta)
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	httpjson.WriteJSON(w, h.logger, http.StatusOK, p)
}

func (h *Handler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	var req CommentInput
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	c, err := h.svc.AddComment(r.Context(), session(r), r.PathValue("id"), req)
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	httpjson.WriteJSON(w, h.logger, http.StatusCreated, c)
}

func (h *Handler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.svc.ListComments(r.Context(), r.PathValue("id"))
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	httpjson.WriteJSON(w, h.logger, http.StatusOK, comments)
}
