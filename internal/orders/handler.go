package orders

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/joao-fontenele/bookshelf-orders/internal/auth"
	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/httpjson"
	"github.com/joao-fontenele/bookshelf-orders/internal/notify"
)

const maxProofSize = 10 << 20

type Handler struct {
	svc    *Service
	hub    *notify.Hub
	logger *slog.Logger
}

func NewHandler(svc *Service, hub *notify.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		hub:    hub,
		logger: logger,
	}
}

func session(r *http.Request) domain.Session {
	s, _ := auth.SessionFrom(r.Context())
	return s
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}
	httpjson.WriteJSON(w, h.logger, status, v)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderInput
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), session(r), req)
	h.respond(w, http.StatusCreated, order, err)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.GetOrder(r.Context(), session(r), r.PathValue("id"))
	h.respond(w, http.StatusOK, order, err)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := h.svc.ListOrders(r.Context(), session(r), domain.OrderFilter{
		UserID: q.Get("user_id"),
		Status: domain.OrderStatus(q.Get("status")),
	})
	if err == nil {
		h.logger.Info("orders listed", "count", len(orders))
	}
	h.respond(w, http.StatusOK, orders, err)
}

type paymentProofRequest struct {
	ImageRef string `json:"image_ref"`
}

// HandleSubmitPaymentProof accepts either a multipart upload in the "image"
// field or a JSON body referencing an already stored object.
func (h *Handler) HandleSubmitPaymentProof(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req paymentProofRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteDomainError(w, h.logger, err)
			return
		}
		order, err := h.svc.SubmitPaymentProof(r.Context(), session(r), id, req.ImageRef)
		h.respond(w, http.StatusOK, order, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProofSize+1<<20)
	if err := r.ParseMultipartForm(maxProofSize); err != nil {
		httpjson.WriteDomainError(w, h.logger, domain.Invalid("image", "upload too large or malformed"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("image")
	if err != nil {
		httpjson.WriteDomainError(w, h.logger, domain.Invalid("image", "is required"))
		return
	}
	defer func() { _ = file.Close() }()

	order, err := h.svc.UploadPaymentProof(r.Context(), session(r), id,
		header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	h.respond(w, http.StatusOK, order, err)
}

type reviewPaymentRequest struct {
	Decision Decision `json:"decision"`
}

func (h *Handler) HandleReviewPayment(w http.ResponseWriter, r *http.Request) {
	var req reviewPaymentRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	order, err := h.svc.ReviewPayment(r.Context(), session(r), r.PathValue("id"), req.Decision)
	h.respond(w, http.StatusOK, order, err)
}

func (h *Handler) HandleShip(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.ShipOrder(r.Context(), session(r), r.PathValue("id"))
	h.respond(w, http.StatusOK, order, err)
}

type locationRequest struct {
	Location string `json:"location"`
}

func (h *Handler) HandleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	order, err := h.svc.UpdateDeliveryLocation(r.Context(), session(r), r.PathValue("id"), req.Location)
	h.respond(w, http.StatusOK, order, err)
}

func (h *Handler) HandleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	order, err := h.svc.MarkDelivered(r.Context(), session(r), r.PathValue("id"), req.Location)
	h.respond(w, http.StatusOK, order, err)
}

func (h *Handler) HandleConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.ConfirmReceipt(r.Context(), session(r), r.PathValue("id"))
	h.respond(w, http.StatusOK, order, err)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.CancelOrder(r.Context(), session(r), r.PathValue("id"))
	h.respond(w, http.StatusOK, order, err)
}

type messageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	msg, err := h.svc.SendMessage(r.Context(), session(r), r.PathValue("id"), req.Text)
	h.respond(w, http.StatusCreated, msg, err)
}

func (h *Handler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.ListMessages(r.Context(), session(r), r.PathValue("id"))
	h.respond(w, http.StatusOK, msgs, err)
}

const keepAliveInterval = 25 * time.Second

// HandleEvents streams committed changes to one order and its messages as
// server-sent events until the client disconnects.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.svc.GetOrder(r.Context(), session(r), id); err != nil {
		httpjson.WriteDomainError(w, h.logger, err)
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	sub := h.hub.Subscribe(notify.Filter{OrderID: id})
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Error("streaming unsupported", "error", err)
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	h.logger.Info("event stream opened", "order_id", id)
	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("event stream closed", "order_id", id)
			return

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			_ = rc.Flush()

		case event, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Table, data); err != nil {
				return
			}
			_ = rc.Flush()
		}
	}
}
