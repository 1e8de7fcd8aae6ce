// Package links строит ссылки на чат member'а с user'ом и сокращает их.
package links

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrShorten — сервис сокращения ссылок вернул ошибку.
var ErrShorten = errors.New("shorten link")

// CommunicationLinks строит ссылку на чат в клиентском приложении.
type CommunicationLinks struct {
	appURL string
}

// NewCommunicationLinks создаёт построитель ссылок для appURL.
func NewCommunicationLinks(appURL string) *CommunicationLinks {
	return &CommunicationLinks{appURL: strings.TrimRight(appURL, "/")}
}

// CommunicationLink возвращает ссылку вида {appURL}/chat/{memberID}/{userID}.
func (l *CommunicationLinks) CommunicationLink(_ context.Context, memberID, userID string) (string, error) {
	if memberID == "" || userID == "" {
		return "", fmt.Errorf("communication link: member and user are required")
	}
	return fmt.Sprintf("%s/chat/%s/%s", l.appURL, url.PathEscape(memberID), url.PathEscape(userID)), nil
}

// ShortenerConfig — конфигурация Shortener.
type ShortenerConfig struct {
	// URL — endpoint сервиса. Пустой — ссылки не сокращаются.
	URL string

	// Token — bearer-токен.
	Token string

	Timeout time.Duration
	Client  *http.Client
}

// Shortener — HTTP-клиент сервиса сокращения ссылок.
type Shortener struct {
	url    string
	token  string
	client *http.Client
}

// NewShortener создаёт Shortener.
func NewShortener(cfg ShortenerConfig) *Shortener {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Shortener{url: cfg.URL, token: cfg.Token, client: cfg.Client}
}

// Shorten возвращает короткую ссылку для long.
func (s *Shortener) Shorten(ctx context.Context, long string) (string, error) {
	if s.url == "" {
		return long, nil
	}

	body, err := json.Marshal(map[string]string{"url": long})
	if err != nil {
		return "", fmt.Errorf("%w: marshal: %v", ErrShorten, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrShorten, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrShorten, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrShorten, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: HTTP %d", ErrShorten, resp.StatusCode)
	}

	var out struct {
		ShortURL string `json:"shortUrl"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrShorten, err)
	}
	if out.ShortURL == "" {
		return "", fmt.Errorf("%w: empty shortUrl", ErrShorten)
	}
	return out.ShortURL, nil
}
