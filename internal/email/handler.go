package email

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/httpjson"
)

type Handler struct {
	sender Sender
	logger *slog.Logger
}

func NewHandler(sender Sender, logger *slog.Logger) *Handler {
	return &Handler{
		sender: sender,
		logger: logger,
	}
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req Message
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	req.To = strings.TrimSpace(req.To)
	if err := domain.Validate(req); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	if err := h.sender.Send(r.Context(), req); err != nil {
		h.logger.Error("failed to send email", "error", err, "to", req.To)
		httpjson.WriteError(w, h.logger, http.StatusBadGateway, "email delivery failed")
		return
	}

	h.logger.Info("email sent", "to", req.To, "subject", req.Subject)
	httpjson.WriteJSON(w, h.logger, http.StatusOK, sendResponse{Status: "sent"})
}
