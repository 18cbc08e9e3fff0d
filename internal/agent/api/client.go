// Package api содержит HTTP-клиент локального API.
//
// Клиент инкапсулирует базовый URL, токен доступа и настроенный http.Client,
// предоставляя методы для отправки JSON-запросов с авторизацией через Bearer токен.
//
// Особенности:
//   - baseURL нормализуется (обрезаются завершающие "/").
//   - По умолчанию добавляется заголовок Accept: application/json.
//   - Заголовок Content-Type: application/json добавляется только при наличии тела запроса.
//   - При ответах 204 No Content тело не читается и это считается успехом.
//   - Пустое тело ответа (EOF при декодировании) не считается ошибкой.
//   - При ошибочных ответах (не 2xx) возвращается *Error; коды 401/404/409/412
//     сопоставлены доменным ошибкам, так что работает errors.Is.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
)

// DefaultTimeout — таймаут http.Client по умолчанию.
const DefaultTimeout = 10 * time.Second

// Client реализует HTTP-клиент локального API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет http.Client (например, в тестах).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient создаёт клиент.
//
// Параметры:
//   - baseURL: адрес API (например: "http://127.0.0.1:7811");
//   - token: токен доступа; пустой — запросы уходят без Authorization.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Error — ответ API с кодом не 2xx.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Unwrap позволяет сравнивать Error с доменными ошибками через errors.Is.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return serr.ErrUnauthorized
	case http.StatusNotFound:
		return serr.ErrNotFound
	case http.StatusConflict:
		return serr.ErrAlreadyActive
	case http.StatusPreconditionFailed:
		return serr.ErrEncryptionUnavailable
	case http.StatusBadRequest:
		return serr.ErrInvalidInput
	}
	return nil
}

// readAPIError читает тело ответа и собирает *Error.
//
// Тело в формате {"error": "..."} разбирается; иначе берётся текст как есть,
// а если тело пустое — res.Status.
func readAPIError(res *http.Response) error {
	raw, _ := io.ReadAll(res.Body)
	msg := strings.TrimSpace(string(raw))

	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = res.Status
	}
	return &Error{Status: res.StatusCode, Message: msg}
}

// decodeJSONOrOK декодирует JSON из r в resp.
//
// Если resp == nil — ничего не делает. Пустое тело (io.EOF) не ошибка.
func decodeJSONOrOK(r io.Reader, resp any) error {
	if resp == nil {
		return nil
	}
	err := json.NewDecoder(r).Decode(resp)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Do выполняет запрос method к path, сериализуя req в JSON (если не nil)
// и декодируя ответ в resp (если не nil).
//
// Обработка ответа:
//   - 2xx: успех
//   - 204 No Content: успех без попытки декодирования тела
//   - не 2xx: *Error с текстом ошибки из тела
func (c *Client) Do(ctx context.Context, method, path string, req, resp any) error {
	var body io.Reader
	if req != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(req); err != nil {
			return err
		}
		body = &buf
	}

	r, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	r.Header.Set("Accept", "application/json")
	if req != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(r)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return readAPIError(res)
	}

	// 204/пустое тело — ок
	if res.StatusCode == http.StatusNoContent {
		return nil
	}

	return decodeJSONOrOK(res.Body, resp)
}

// GetJSON — GET path с декодированием ответа в resp.
func (c *Client) GetJSON(ctx context.Context, path string, resp any) error {
	return c.Do(ctx, http.MethodGet, path, nil, resp)
}

// PostJSON — POST path с телом req.
func (c *Client) PostJSON(ctx context.Context, path string, req, resp any) error {
	return c.Do(ctx, http.MethodPost, path, req, resp)
}

// DeleteJSON — DELETE path.
func (c *Client) DeleteJSON(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}
