package mailer_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/pakli/sofia-outages/internal/infra/mailer"
)

func TestSendGrid_Send(t *testing.T) {
	var gotPath, gotAuth, gotMethod string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := mailer.NewSendGrid("test-key", srv.URL, "alerts@pakli.bg", "Пак ли")
	err := m.Send(context.Background(), "ivan@example.bg", "Авария в Младост", "Няма вода до 18:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("expected POST, got %s", gotMethod)
	}
	if gotPath != "/v3/mail/send" {
		t.Errorf("expected /v3/mail/send, got %s", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if payload["subject"] != "Авария в Младост" {
		t.Errorf("expected subject in payload, got %v", payload["subject"])
	}
	from, _ := payload["from"].(map[string]any)
	if from["email"] != "alerts@pakli.bg" {
		t.Errorf("expected from alerts@pakli.bg, got %v", payload["from"])
	}
}

func TestSendGrid_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"invalid from address"}]}`))
	}))
	defer srv.Close()

	m := mailer.NewSendGrid("test-key", srv.URL, "alerts@pakli.bg", "Пак ли")
	err := m.Send(context.Background(), "ivan@example.bg", "subject", "body")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("expected status in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid from address") {
		t.Errorf("expected response body in error, got %v", err)
	}
}

func TestSendGrid_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close()

	m := mailer.NewSendGrid("test-key", url, "alerts@pakli.bg", "Пак ли")
	if err := m.Send(context.Background(), "ivan@example.bg", "subject", "body"); err == nil {
		t.Fatal("expected error when the API host is unreachable")
	}
}

func TestLog_Send(t *testing.T) {
	m := mailer.NewLog(zap.NewNop())
	if err := m.Send(context.Background(), "ivan@example.bg", "subject", "body"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
