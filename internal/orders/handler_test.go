package orders

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/bookshelf-orders/internal/auth"
	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/notify"
)

type handlerFixture struct {
	*fixture
	hub *notify.Hub
	mux *http.ServeMux
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := newFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := notify.NewHub(logger)
	f.svc.events = notify.Fanout{f.events, hub}

	h := NewHandler(f.svc, hub, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", h.HandleCreate)
	mux.HandleFunc("GET /orders", h.HandleList)
	mux.HandleFunc("GET /orders/{id}", h.HandleGet)
	mux.HandleFunc("POST /orders/{id}/payment-proof", h.HandleSubmitPaymentProof)
	mux.HandleFunc("POST /orders/{id}/payment-review", h.HandleReviewPayment)
	mux.HandleFunc("POST /orders/{id}/ship", h.HandleShip)
	mux.HandleFunc("POST /orders/{id}/location", h.HandleUpdateLocation)
	mux.HandleFunc("POST /orders/{id}/deliver", h.HandleMarkDelivered)
	mux.HandleFunc("POST /orders/{id}/confirm", h.HandleConfirmReceipt)
	mux.HandleFunc("POST /orders/{id}/cancel", h.HandleCancel)
	mux.HandleFunc("POST /orders/{id}/messages", h.HandleSendMessage)
	mux.HandleFunc("GET /orders/{id}/messages", h.HandleListMessages)
	mux.HandleFunc("GET /orders/{id}/events", h.HandleEvents)

	return &handlerFixture{fixture: f, hub: hub, mux: mux}
}

func (hf *handlerFixture) do(sess domain.Session, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req = req.WithContext(auth.WithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	hf.mux.ServeHTTP(rec, req)
	return rec
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) domain.Order {
	t.Helper()
	var o domain.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&o))
	return o
}

func TestHandler_CreateAndGet(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.addProduct(t, "book-a", "Book A", "100", 5)

	rec := hf.do(alice, http.MethodPost, "/orders", `{
		"items": [{"product_id": "book-a", "quantity": 2}],
		"delivery_address": {"line1": "Flat 5A", "street": "12 Nathan Road", "district": "Tsim Sha Tsui"},
		"payment_method": "payme"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Nil(t, raw["payment_status"], "payment status is null until a proof arrives")
	assert.Equal(t, "pending", raw["status"])
	id := raw["id"].(string)

	rec = hf.do(alice, http.MethodGet, "/orders/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	o := decodeOrder(t, rec)
	assert.Equal(t, "200.00", o.Total.StringFixed(2))
	assert.Equal(t, domain.DefaultCountry, o.Address.Country)

	rec = hf.do(bob, http.MethodGet, "/orders/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ErrorStatuses(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.addProduct(t, "book-a", "Book A", "10", 1)
	pending := hf.createOrder(t, alice, ItemInput{ProductID: "book-a", Quantity: 1})
	short := hf.paidOrder(t, ItemInput{ProductID: "book-a", Quantity: 3})

	tests := []struct {
		name   string
		sess   domain.Session
		method string
		target string
		body   string
		status int
	}{
		{"unknown field", alice, http.MethodPost, "/orders", `{"bogus": 1}`, http.StatusBadRequest},
		{"empty cart", alice, http.MethodPost, "/orders", `{"delivery_address": {"line1": "a", "street": "b", "district": "c"}, "payment_method": "card"}`, http.StatusBadRequest},
		{"bad status filter", alice, http.MethodGet, "/orders?status=lost", "", http.StatusBadRequest},
		{"list another customer", alice, http.MethodGet, "/orders?user_id=bob", "", http.StatusForbidden},
		{"foreign proof ref", alice, http.MethodPost, "/orders/" + pending.ID + "/payment-proof", `{"image_ref": "` + proofRef(short.ID) + `"}`, http.StatusBadRequest},
		{"customer ships", alice, http.MethodPost, "/orders/" + pending.ID + "/ship", "", http.StatusForbidden},
		{"ship unpaid", admin, http.MethodPost, "/orders/" + pending.ID + "/ship", "", http.StatusConflict},
		{"unknown order", admin, http.MethodPost, "/orders/nope/ship", "", http.StatusNotFound},
		{"bad decision", admin, http.MethodPost, "/orders/" + pending.ID + "/payment-review", `{"decision": "maybe"}`, http.StatusBadRequest},
		{"no session", domain.Session{}, http.MethodGet, "/orders", "", http.StatusUnauthorized},
		{"admin cancels", admin, http.MethodPost, "/orders/" + pending.ID + "/cancel", "", http.StatusForbidden},
		{"deliver before ship", admin, http.MethodPost, "/orders/" + pending.ID + "/deliver", `{"location": "x"}`, http.StatusConflict},
		{"empty message", alice, http.MethodPost, "/orders/" + pending.ID + "/messages", `{"text": " "}`, http.StatusBadRequest},
		{"shortage", admin, http.MethodPost, "/orders/" + short.ID + "/ship", "", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := hf.do(tt.sess, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_ShortageBody(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.addProduct(t, "book-a", "Book A", "10", 1)
	o := hf.paidOrder(t, ItemInput{ProductID: "book-a", Quantity: 3})

	rec := hf.do(admin, http.MethodPost, "/orders/"+o.ID+"/ship", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Shortages []domain.Shortage `json:"shortages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Shortages, 1)
	assert.Equal(t, 3, body.Shortages[0].Required)
	assert.Equal(t, 1, body.Shortages[0].Available)
}

func TestHandler_Lifecycle(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.addProduct(t, "book-a", "Book A", "10", 5)
	o := hf.createOrder(t, alice, ItemInput{ProductID: "book-a", Quantity: 1})
	base := "/orders/" + o.ID

	rec := hf.do(alice, http.MethodPost, base+"/payment-proof", `{"image_ref": "`+proofRef(o.ID)+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.PaymentStatusPendingReview, decodeOrder(t, rec).PaymentStatus)

	rec = hf.do(admin, http.MethodPost, base+"/payment-review", `{"decision": "approve"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = hf.do(admin, http.MethodPost, base+"/ship", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = hf.do(admin, http.MethodPost, base+"/location", `{"location": "Mong Kok hub"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = hf.do(admin, http.MethodPost, base+"/deliver", `{"location": "flat 5a, 12 nathan road, tsim sha tsui, hong kong"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	delivered := decodeOrder(t, rec)
	assert.True(t, delivered.Delivered())

	rec = hf.do(alice, http.MethodPost, base+"/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.OrderStatusCompleted, decodeOrder(t, rec).Status)

	rec = hf.do(alice, http.MethodPost, base+"/messages", `{"text": "thanks!"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = hf.do(alice, http.MethodGet, base+"/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []domain.OrderMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msgs))
	assert.Len(t, msgs, 6)

	rec = hf.do(admin, http.MethodGet, "/orders?status=completed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, o.ID, list[0].ID)

	rec = hf.do(admin, http.MethodGet, "/orders?user_id=bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Empty(t, list)
}

func TestHandler_MultipartProof(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.addProduct(t, "book-a", "Book A", "10", 5)
	o := hf.createOrder(t, alice, ItemInput{ProductID: "book-a", Quantity: 1})

	upload := func(contentType string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="image"; filename="receipt.jpg"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte("fake image bytes"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/orders/"+o.ID+"/payment-proof", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req = req.WithContext(auth.WithSession(req.Context(), alice))
		rec := httptest.NewRecorder()
		hf.mux.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, hf.objects.len())

	rec = upload("image/jpeg")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeOrder(t, rec)
	assert.True(t, strings.HasPrefix(got.PaymentProofImage, "payment_proof_"+o.ID+"_"))
	assert.True(t, hf.objects.has(got.PaymentProofImage))
}

func TestHandler_Events(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.addProduct(t, "book-a", "Book A", "10", 5)
	o := hf.createOrder(t, alice, ItemInput{ProductID: "book-a", Quantity: 1})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hf.mux.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), alice)))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/orders/"+o.ID+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hf.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = hf.svc.CancelOrder(context.Background(), alice, o.ID)
	require.NoError(t, err)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: orders\n", line)

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))

	var event domain.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
	assert.Equal(t, o.ID, event.OrderID)
	assert.Equal(t, ActionCancel, event.Action)
	require.NotNil(t, event.Order)
	assert.Equal(t, domain.OrderStatusCancelled, event.Order.Status)
}

func TestHandler_EventsForeignOrder(t *testing.T) {
	hf := newHandlerFixture(t)
	hf.addProduct(t, "book-a", "Book A", "10", 5)
	o := hf.createOrder(t, alice, ItemInput{ProductID: "book-a", Quantity: 1})

	rec := hf.do(bob, http.MethodGet, "/orders/"+o.ID+"/events", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, hf.hub.Len())
}
