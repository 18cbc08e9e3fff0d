// Package ident генерирует идентификаторы сущностей и временные метки.
//
// Идентификатор имеет вид prefix + uuid, где prefix фиксирован для типа
// сущности. Settings — синглтон с постоянным id.
package ident

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind — тег типа сущности.
type Kind string

const (
	KindWorkspace   Kind = "Workspace"
	KindFolder      Kind = "Folder"
	KindRequest     Kind = "Request"
	KindResponse    Kind = "Response"
	KindEnvironment Kind = "Environment"
	KindVariable    Kind = "Variable"
	KindSettings    Kind = "Settings"
	KindMockRoute   Kind = "MockRoute"
	KindOAuthToken  Kind = "OAuthToken"
)

// SettingsID — постоянный id единственной записи настроек.
const SettingsID = "settings"

var prefixes = map[Kind]string{
	KindWorkspace:   "wrk_",
	KindFolder:      "fld_",
	KindRequest:     "req_",
	KindResponse:    "res_",
	KindEnvironment: "env_",
	KindVariable:    "var_",
	KindMockRoute:   "mck_",
	KindOAuthToken:  "oat_",
}

// Prefix возвращает префикс id для типа и false, если тип неизвестен.
func Prefix(kind Kind) (string, bool) {
	p, ok := prefixes[kind]
	return p, ok
}

// NewID возвращает новый id для типа сущности.
//
// Для неизвестного типа паникует: это ошибка программиста, а не данных.
func NewID(kind Kind) string {
	if kind == KindSettings {
		return SettingsID
	}
	p, ok := prefixes[kind]
	if !ok {
		panic(fmt.Sprintf("ident: no id prefix for entity type %q", kind))
	}
	return p + uuid.NewString()
}

// Clock выдаёт метки времени в epoch-миллисекундах.
//
// Метки строго возрастают в пределах процесса: если системное время не
// сдвинулось (или ушло назад), возвращается предыдущее значение + 1.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewClock создаёт часы на системном времени.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockFrom создаёт часы на переданном источнике времени (для тестов).
func NewClockFrom(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Now возвращает текущую метку.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now().UnixMilli()
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts
	return ts
}

// KindOf определяет тип сущности по префиксу id.
func KindOf(id string) (Kind, bool) {
	if id == SettingsID {
		return KindSettings, true
	}
	for kind, p := range prefixes {
		if strings.HasPrefix(id, p) {
			return kind, true
		}
	}
	return "", false
}
