package email

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/mail.v2"
)

type captured struct {
	from string
	to   []string
	raw  string
}

func capturingSender(t *testing.T, out *[]captured) *SMTPSender {
	t.Helper()
	s := NewSMTPSender("smtp.invalid", 465, "user", "secret", "orders@bookshelf.test")
	s.send = func(msgs ...*mail.Message) error {
		return mail.Send(mail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
			var buf bytes.Buffer
			if _, err := msg.WriteTo(&buf); err != nil {
				return err
			}
			*out = append(*out, captured{from: from, to: to, raw: buf.String()})
			return nil
		}), msgs...)
	}
	return s
}

func TestSMTPSender(t *testing.T) {
	var sent []captured
	s := capturingSender(t, &sent)

	err := s.Send(context.Background(), Message{To: "reader@example.com", Subject: "Order shipped", Body: "On its way."})
	require.NoError(t, err)

	require.Len(t, sent, 1)
	assert.Equal(t, "orders@bookshelf.test", sent[0].from)
	assert.Equal(t, []string{"reader@example.com"}, sent[0].to)
	assert.Contains(t, sent[0].raw, "Subject: Order shipped")
	assert.Contains(t, sent[0].raw, "On its way.")
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	var sent []captured
	s := capturingSender(t, &sent)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Send(ctx, Message{To: "reader@example.com", Subject: "s", Body: "b"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sent)
}

type stubSender struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (s *stubSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func TestHandler_HandleSend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		body       string
		senderErr  error
		wantStatus int
		wantSent   int
	}{
		{"sends", `{"to": "reader@example.com", "subject": "Hi", "body": "Hello"}`, nil, http.StatusOK, 1},
		{"invalid address", `{"to": "reader", "subject": "Hi", "body": "Hello"}`, nil, http.StatusBadRequest, 0},
		{"missing subject", `{"to": "reader@example.com", "body": "Hello"}`, nil, http.StatusBadRequest, 0},
		{"malformed json", `{"to":`, nil, http.StatusBadRequest, 0},
		{"smtp failure", `{"to": "reader@example.com", "subject": "Hi", "body": "Hello"}`, errors.New("connection refused"), http.StatusBadGateway, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &stubSender{err: tt.senderErr}
			h := NewHandler(sender, logger)

			req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.HandleSend(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Len(t, sender.msgs, tt.wantSent)
		})
	}
}
