// Package executor исполняет сохранённые запросы по HTTP.
//
// HTTPExecutor реализует runner.Executor:
//   - подставляет переменные {{key}} активного окружения воркспейса
//     в URL, заголовки, тело и поля авторизации;
//   - берёт таймаут, политику редиректов и проверку TLS из Settings;
//   - сохраняет каждый ответ в историю (тело — в отдельный файл)
//     и обрезает историю до Settings.MaxHistoryResponses.
//
// Проверки (assertions) и скрипты не исполняются: TestResults всегда nil.
package executor

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tiomoreno/requiety-sub000/internal/agent/runner"
	"github.com/tiomoreno/requiety-sub000/internal/shared/logger"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
	"go.uber.org/zap"
)

// MaxBodyBytes — предел читаемого тела ответа по умолчанию.
const MaxBodyBytes = 32 << 20

// ErrBodyTooLarge возвращается, когда тело ответа больше предела.
// Обрезанное тело в историю не попадает.
var ErrBodyTooLarge = errors.New("response body too large")

// Зависимости исполнителя. Реализуются репозиториями.
type (
	Resolver interface {
		WorkspaceID(ctx context.Context, requestID string) (string, error)
	}
	Variables interface {
		ResolveActive(ctx context.Context, workspaceID string) (map[string]string, error)
	}
	SettingsSource interface {
		Get(ctx context.Context) (*models.Settings, error)
	}
	History interface {
		Create(ctx context.Context, in models.Response) (*models.Response, error)
		ListByRequest(ctx context.Context, requestID string, limit int) ([]models.Response, error)
		PruneHistory(ctx context.Context, requestID string, keep int) (int, error)
	}
	Tokens interface {
		GetByRequest(ctx context.Context, requestID string) (*models.OAuthToken, error)
	}
)

// Deps — источники данных исполнителя. History и Tokens необязательны.
type Deps struct {
	Requests  Resolver
	Variables Variables
	Settings  SettingsSource
	History   History
	Tokens    Tokens
}

// Exchange — результат одного HTTP-обмена.
type Exchange struct {
	StatusCode    int
	StatusMessage string
	Headers       []models.Header
	Body          []byte
	Elapsed       time.Duration
}

// HTTPExecutor исполняет запросы через net/http.
type HTTPExecutor struct {
	deps    Deps
	bodyDir string
	log     *logger.HTTPLogger
	maxBody int64

	// transport подменяется в тестах; nil — http.DefaultTransport с нужным TLS.
	transport http.RoundTripper
}

// Option настраивает HTTPExecutor.
type Option func(*HTTPExecutor)

// WithTransport задаёт базовый транспорт.
func WithTransport(rt http.RoundTripper) Option {
	return func(e *HTTPExecutor) { e.transport = rt }
}

// WithMaxBodyBytes задаёт предел тела ответа; n <= 0 игнорируется.
func WithMaxBodyBytes(n int64) Option {
	return func(e *HTTPExecutor) {
		if n > 0 {
			e.maxBody = n
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(l *logger.HTTPLogger) Option {
	return func(e *HTTPExecutor) {
		if l != nil {
			e.log = l
		}
	}
}

// New создаёт исполнитель. bodyDir — каталог для тел ответов;
// пустой bodyDir отключает запись тел (история пишется без BodyPath).
func New(deps Deps, bodyDir string, opts ...Option) *HTTPExecutor {
	e := &HTTPExecutor{deps: deps, bodyDir: bodyDir, log: logger.NewNop(), maxBody: MaxBodyBytes}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ runner.Executor = (*HTTPExecutor)(nil)

// Execute реализует runner.Executor: выполняет запрос и пишет ответ в историю.
//
// Ошибки:
//   - сбой транспорта, таймаут, некорректный URL;
//   - ErrBodyTooLarge, если тело ответа больше предела;
//   - ошибка чтения переменных или настроек.
func (e *HTTPExecutor) Execute(ctx context.Context, req models.Request) (*runner.ExecResult, error) {
	ex, err := e.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := e.record(ctx, req, ex); err != nil {
		// запрос выполнен, история — побочный эффект
		e.log.Warn("response history not saved", zap.String("request", req.ID), zap.Error(err))
	}
	return &runner.ExecResult{StatusCode: ex.StatusCode, ElapsedTime: ex.Elapsed.Milliseconds()}, nil
}

// Do выполняет запрос без записи в историю.
func (e *HTTPExecutor) Do(ctx context.Context, req models.Request) (*Exchange, error) {
	settings, err := e.deps.Settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	vars, err := e.variables(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	httpReq, err := e.build(ctx, req, vars)
	if err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, httpReq, req, vars); err != nil {
		return nil, err
	}

	client := e.client(settings)
	start := time.Now()
	res, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, e.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > e.maxBody {
		return nil, fmt.Errorf("read response body: %w (limit %d bytes)", ErrBodyTooLarge, e.maxBody)
	}
	elapsed := time.Since(start)

	e.log.Debug("request executed",
		zap.String("request", req.ID),
		zap.String("method", httpReq.Method),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", elapsed),
	)

	return &Exchange{
		StatusCode:    res.StatusCode,
		StatusMessage: strings.TrimSpace(strings.TrimPrefix(res.Status, fmt.Sprint(res.StatusCode))),
		Headers:       toHeaders(res.Header),
		Body:          body,
		Elapsed:       elapsed,
	}, nil
}

func (e *HTTPExecutor) variables(ctx context.Context, requestID string) (map[string]string, error) {
	if e.deps.Requests == nil || e.deps.Variables == nil || requestID == "" {
		return nil, nil
	}
	wsID, err := e.deps.Requests.WorkspaceID(ctx, requestID)
	if err != nil || wsID == "" {
		return nil, err
	}
	vars, err := e.deps.Variables.ResolveActive(ctx, wsID)
	if err != nil {
		return nil, fmt.Errorf("resolve variables: %w", err)
	}
	return vars, nil
}

func (e *HTTPExecutor) build(ctx context.Context, req models.Request, vars map[string]string) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	contentType := ""
	if req.Body != nil && req.Body.Type != "" && req.Body.Type != "none" {
		body = bytes.NewBufferString(Substitute(req.Body.Content, vars))
		switch req.Body.Type {
		case "json":
			contentType = "application/json"
		case "form":
			contentType = "application/x-www-form-urlencoded"
		default:
			contentType = "text/plain; charset=utf-8"
		}
	}

	r, err := http.NewRequestWithContext(ctx, method, Substitute(req.URL, vars), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	for _, h := range req.Headers {
		if !h.Enabled || strings.TrimSpace(h.Name) == "" {
			continue
		}
		r.Header.Set(Substitute(h.Name, vars), Substitute(h.Value, vars))
	}
	return r, nil
}

func (e *HTTPExecutor) authorize(ctx context.Context, r *http.Request, req models.Request, vars map[string]string) error {
	if req.Auth == nil {
		return nil
	}
	switch req.Auth.Type {
	case "basic":
		r.SetBasicAuth(Substitute(req.Auth.Username, vars), Substitute(req.Auth.Password, vars))
	case "bearer":
		r.Header.Set("Authorization", "Bearer "+Substitute(req.Auth.Token, vars))
	case "oauth2":
		if e.deps.Tokens == nil {
			return nil
		}
		tok, err := e.deps.Tokens.GetByRequest(ctx, req.ID)
		if err != nil {
			return fmt.Errorf("load oauth2 token: %w", err)
		}
		if tok != nil && tok.AccessToken != "" {
			typ := tok.TokenType
			if typ == "" {
				typ = "Bearer"
			}
			r.Header.Set("Authorization", typ+" "+tok.AccessToken)
		}
	}
	return nil
}

// client собирает http.Client по настройкам.
func (e *HTTPExecutor) client(s *models.Settings) *http.Client {
	rt := e.transport
	if rt == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: !s.ValidateSSL} //nolint:gosec // пользовательская настройка
		rt = tr
	}
	c := &http.Client{
		Timeout:   time.Duration(s.Timeout) * time.Millisecond,
		Transport: rt,
	}
	if !s.FollowRedirects {
		c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	}
	return c
}

// record сохраняет ответ в историю и обрезает её.
func (e *HTTPExecutor) record(ctx context.Context, req models.Request, ex *Exchange) error {
	if e.deps.History == nil || req.ID == "" {
		return nil
	}
	resp, err := e.deps.History.Create(ctx, models.Response{
		RequestID:     req.ID,
		StatusCode:    ex.StatusCode,
		StatusMessage: ex.StatusMessage,
		Headers:       ex.Headers,
		ElapsedTime:   ex.Elapsed.Milliseconds(),
		Size:          int64(len(ex.Body)),
		BodyPath:      e.bodyPath(req.ID),
	})
	if err != nil {
		return err
	}
	if resp.BodyPath != "" {
		if err := writeBody(resp.BodyPath, ex.Body); err != nil {
			return err
		}
	}

	settings, err := e.deps.Settings.Get(ctx)
	if err != nil {
		return err
	}
	return e.prune(ctx, req.ID, settings.MaxHistoryResponses)
}

// prune удаляет записи сверх keep вместе с файлами их тел.
func (e *HTTPExecutor) prune(ctx context.Context, requestID string, keep int) error {
	if keep <= 0 {
		return nil
	}
	all, err := e.deps.History.ListByRequest(ctx, requestID, 0)
	if err != nil {
		return err
	}
	if len(all) <= keep {
		return nil
	}
	if _, err := e.deps.History.PruneHistory(ctx, requestID, keep); err != nil {
		return err
	}
	for _, old := range all[keep:] {
		if old.BodyPath == "" {
			continue
		}
		if err := os.Remove(old.BodyPath); err != nil && !os.IsNotExist(err) {
			e.log.Warn("response body not removed", zap.String("path", old.BodyPath), zap.Error(err))
		}
	}
	return nil
}

func (e *HTTPExecutor) bodyPath(requestID string) string {
	if e.bodyDir == "" {
		return ""
	}
	name := fmt.Sprintf("%s-%d.body", requestID, time.Now().UnixNano())
	return filepath.Join(e.bodyDir, name)
}

func writeBody(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o600)
}

func toHeaders(h http.Header) []models.Header {
	out := make([]models.Header, 0, len(h))
	for name, values := range h {
		for _, v := range values {
			out = append(out, models.Header{Name: name, Value: v, Enabled: true})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Substitute заменяет {{key}} значениями из vars. Неизвестные ключи
// остаются как есть.
func Substitute(s string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(s, "{{") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})
}
