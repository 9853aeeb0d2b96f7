package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atlastravel/backoffice-backend/pkg/config"
	pkgerrors "github.com/atlastravel/backoffice-backend/pkg/errors"
	"github.com/atlastravel/backoffice-backend/pkg/logger"
)

func testSendgrid(t *testing.T, baseURL string) *SendgridTransport {
	t.Helper()
	transport, err := NewSendgridTransport(config.SendgridConfig{
		APIKey:      "sg-test-key",
		BaseURL:     baseURL,
		DefaultFrom: "quotes@atlastravel.example",
	}, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewSendgridTransport: %v", err)
	}
	return transport
}

func TestSendgridSendAccepted(t *testing.T) {
	var captured sgMailRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sg-test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("X-Message-Id", "msg-abc")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	transport := testSendgrid(t, server.URL)
	id, err := transport.Send(context.Background(), Message{
		To:      "customer@example.com",
		Subject: "Your holiday quote",
		HTML:    "<p>quote</p>",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "msg-abc" {
		t.Fatalf("expected message id from header, got %q", id)
	}
	if captured.From.Email != "quotes@atlastravel.example" {
		t.Fatalf("expected default from, got %q", captured.From.Email)
	}
	if len(captured.Personalizations) != 1 || captured.Personalizations[0].To[0].Email != "customer@example.com" {
		t.Fatalf("unexpected personalizations %+v", captured.Personalizations)
	}
}

func TestSendgridSendMapsClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	transport := testSendgrid(t, server.URL)
	_, err := transport.Send(context.Background(), Message{To: "a@b.c", Subject: "s", HTML: "x"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for 400, got %v", err)
	}
}

func TestSendgridSendMapsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	transport := testSendgrid(t, server.URL)
	_, err := transport.Send(context.Background(), Message{To: "a@b.c", Subject: "s", HTML: "x"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error for 500, got %v", err)
	}
}

func TestSendgridSendRequiresRecipientAndBody(t *testing.T) {
	transport := testSendgrid(t, "http://unused.example")

	if _, err := transport.Send(context.Background(), Message{Subject: "s", HTML: "x"}); err == nil {
		t.Fatalf("expected missing recipient error")
	}
	if _, err := transport.Send(context.Background(), Message{To: "a@b.c", Subject: "s"}); err == nil {
		t.Fatalf("expected missing body error")
	}
}

func TestNewSendgridTransportRequiresAPIKey(t *testing.T) {
	if _, err := NewSendgridTransport(config.SendgridConfig{BaseURL: "https://api.sendgrid.com"}, nil); err == nil {
		t.Fatalf("expected missing api key error")
	}
}
