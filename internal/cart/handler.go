package cart

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

type addRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFrom(r.Context())
	cart, err := h.svc.GetCart(r.Context(), sess)
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	httpjson.WriteJSON(w, h.logger, http.StatusOK, cart)
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	sess, _ := auth.SessionFrom(r.Context())
	cart, err := h.svc.AddToCart(r.Context(), sess, req.ProductID, req.Quantity)
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	httpjson.WriteJSON(w, h.logger, http.StatusOK, cart)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	sess, _ := auth.SessionFrom(r.Context())
	cart, err := h.svc.UpdateCartItem(r.Context(), sess, r.PathValue("productId"), req.Quantity)
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	httpjson.WriteJSON(w, h.logger, http.StatusOK, cart)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFrom(r.Context())
	cart, err := h.svc.RemoveCartItem(r.Context(), sess, r.PathValue("productId"))
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	httpjson.WriteJSON(w, h.logger, http.StatusOK, cart)
}
