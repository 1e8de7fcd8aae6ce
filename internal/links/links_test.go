package links

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCommunicationLink(t *testing.T) {
	l := NewCommunicationLinks("https://app.example.com/")

	link, err := l.CommunicationLink(context.Background(), "m1", "u 2")
	if err != nil {
		t.Fatalf("CommunicationLink: %v", err)
	}
	if link != "https://app.example.com/chat/m1/u%202" {
		t.Errorf("unexpected link %q", link)
	}

	if _, err := l.CommunicationLink(context.Background(), "", "u1"); err == nil {
		t.Error("expected error for empty member")
	}
}

func TestShortener_Shorten(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["url"] != "https://app.example.com/chat/m1/u1" {
			t.Errorf("unexpected url %q", body["url"])
		}
		w.Write([]byte(`{"shortUrl":"https://sho.rt/abc"}`))
	}))
	defer srv.Close()

	s := NewShortener(ShortenerConfig{URL: srv.URL, Token: "secret"})
	short, err := s.Shorten(context.Background(), "https://app.example.com/chat/m1/u1")
	if err != nil {
		t.Fatalf("Shorten: %v", err)
	}
	if short != "https://sho.rt/abc" {
		t.Errorf("unexpected short url %q", short)
	}
}

func TestShortener_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewShortener(ShortenerConfig{URL: srv.URL})
	if _, err := s.Shorten(context.Background(), "https://x"); !errors.Is(err, ErrShorten) {
		t.Errorf("expected ErrShorten, got %v", err)
	}
}

func TestShortener_Disabled(t *testing.T) {
	s := NewShortener(ShortenerConfig{})
	short, err := s.Shorten(context.Background(), "https://x")
	if err != nil || short != "https://x" {
		t.Errorf("disabled shortener should return input, got %q %v", short, err)
	}
}
