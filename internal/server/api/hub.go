package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tiomoreno/requiety-sub000/internal/agent/runner"
	"github.com/tiomoreno/requiety-sub000/internal/shared/logger"
	"go.uber.org/zap"
)

// Типы событий канала прогресса.
const (
	EventProgress = "progress"
	EventFinished = "finished"
)

const (
	clientBuffer = 64
	writeWait    = 5 * time.Second
)

// Event — сообщение, уходящее подписчикам /runner/progress.
type Event struct {
	Type     string           `json:"type"`
	Progress *runner.Progress `json:"progress,omitempty"`
	Result   *runner.Result   `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// ProgressHub раздаёт события прогона подключённым websocket-клиентам.
//
// Реализует runner.Sink. Отправка не блокируется: если буфер клиента
// заполнен, событие для него отбрасывается.
type ProgressHub struct {
	upgrader websocket.Upgrader
	log      *logger.HTTPLogger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewProgressHub создаёт пустой hub.
func NewProgressHub(log *logger.HTTPLogger) *ProgressHub {
	if log == nil {
		log = logger.NewNop()
	}
	return &ProgressHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// доступ уже проверен JWT middleware
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// Send реализует runner.Sink.
func (h *ProgressHub) Send(p runner.Progress) {
	h.Publish(Event{Type: EventProgress, Progress: &p})
}

// Finished публикует итог прогона. Подходит как done-колбэк StartAsync.
func (h *ProgressHub) Finished(res *runner.Result, err error) {
	evt := Event{Type: EventFinished, Result: res}
	if err != nil {
		evt.Error = err.Error()
	}
	h.Publish(evt)
}

// Publish рассылает событие всем клиентам.
func (h *ProgressHub) Publish(evt Event) {
	msg, err := json.Marshal(evt)
	if err != nil {
		h.log.Warn("marshal progress event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Debug("progress event dropped for slow client")
		}
	}
}

// Clients возвращает число подключённых клиентов.
func (h *ProgressHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP поднимает websocket и держит его до закрытия клиентом.
//
// @Summary      Run progress stream
// @Description  WebSocket. Token can be passed as ?access_token=.
// @Tags         runner
// @Security     BearerAuth
// @Success      101
// @Router       /runner/progress [get]
func (h *ProgressHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

// readPump читает до ошибки, чтобы заметить закрытие соединения.
func (h *ProgressHub) readPump(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ProgressHub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (h *ProgressHub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close отключает всех клиентов.
func (h *ProgressHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
