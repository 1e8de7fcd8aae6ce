package sender

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaiso/Courier/internal/domain"
)

func TestHTTPSender_Send(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/send" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"provider":"twilio","id":"SM123"}`))
	}))
	defer srv.Close()

	s := New(Config{BaseURL: srv.URL + "/"})
	d := &domain.Dispatch{DispatchID: "d1", NotificationType: domain.NotificationTypeTextSms}
	recipient := &domain.ClientSettings{ID: "m1", Phone: "+15550001"}

	res, err := s.Send(context.Background(), d, recipient, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Provider != "twilio" || res.ID != "SM123" {
		t.Errorf("unexpected result: %+v", res)
	}
	if got.Dispatch == nil || got.Dispatch.DispatchID != "d1" {
		t.Errorf("dispatch not forwarded: %+v", got.Dispatch)
	}
	if got.Recipient == nil || got.Recipient.Phone != "+15550001" {
		t.Errorf("recipient not forwarded: %+v", got.Recipient)
	}
	if got.Sender != nil {
		t.Errorf("missing sender should be null, got %+v", got.Sender)
	}
}

func TestHTTPSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "provider down", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := New(Config{BaseURL: srv.URL})
	_, err := s.Send(context.Background(), &domain.Dispatch{DispatchID: "d1"}, nil, nil)
	if !errors.Is(err, ErrProviderStatus) {
		t.Errorf("expected ErrProviderStatus, got %v", err)
	}
}

func TestHTTPSender_Cancel(t *testing.T) {
	var id string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cancel" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		id = body["id"]
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := New(Config{BaseURL: srv.URL, RatePerSec: 100})
	if err := s.Cancel(context.Background(), "SM123"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if id != "SM123" {
		t.Errorf("expected SM123, got %q", id)
	}
}

func TestHTTPSender_ContextCanceled(t *testing.T) {
	s := New(Config{BaseURL: "http://127.0.0.1:1", RatePerSec: 0.001})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Send(ctx, &domain.Dispatch{DispatchID: "d1"}, nil, nil); !errors.Is(err, ErrProviderRequest) {
		t.Errorf("expected ErrProviderRequest, got %v", err)
	}
}
