package auth

import (
	"log/slog"
	"net/http"

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

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	user, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	token, err := h.svc.IssueToken(user)
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID)
	httpjson.WriteJSON(w, h.logger, http.StatusCreated, tokenResponse{Token: token, User: user})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	token, user, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID)
	httpjson.WriteJSON(w, h.logger, http.StatusOK, tokenResponse{Token: token, User: user})
}
