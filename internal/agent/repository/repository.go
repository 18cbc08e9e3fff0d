// Package repository реализует иерархическое хранилище сущностей поверх docstore.
//
// Пакет отвечает за:
//   - генерацию id и меток времени при создании и изменении;
//   - обход дерева воркспейс -> папки -> запросы;
//   - каскадное удаление (внешних ключей в хранилище нет, целостность держим здесь);
//   - инвариант «не более одного активного окружения на воркспейс»;
//   - шифрование секретных переменных и OAuth2-токенов перед записью
//     и прозрачную миграцию старых незашифрованных значений при чтении.
//
// Блокировок внутри нет. Многошаговые операции (активация окружения,
// каскадное удаление) не атомарны: параллельная запись в то же поддерево
// может остаться сиротой или быть удалена в зависимости от порядка.
// Это принятое ограничение; гарантии даются только при одном писателе.
package repository

import (
	"github.com/tiomoreno/requiety-sub000/internal/agent/crypto"
	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
	"github.com/tiomoreno/requiety-sub000/internal/shared/logger"
)

// DefaultMaxDepth — предел подъёма по цепочке parentId при поиске воркспейса.
// Нужен только для гарантии завершения на испорченных (циклических) данных.
const DefaultMaxDepth = 20

// deps — общие зависимости всех репозиториев.
type deps struct {
	reg      *Registry
	codec    crypto.Codec
	clock    *ident.Clock
	log      *logger.HTTPLogger
	maxDepth int
}

// Option настраивает Repositories.
type Option func(*deps)

// WithClock подменяет источник меток времени.
func WithClock(c *ident.Clock) Option {
	return func(d *deps) { d.clock = c }
}

// WithMaxDepth задаёт предел подъёма по дереву.
func WithMaxDepth(n int) Option {
	return func(d *deps) {
		if n > 0 {
			d.maxDepth = n
		}
	}
}

// Repositories — набор всех репозиториев приложения.
type Repositories struct {
	Registry     *Registry
	Tree         *Tree
	Workspaces   *WorkspaceRepository
	Folders      *FolderRepository
	Requests     *RequestRepository
	Responses    *ResponseRepository
	Environments *EnvironmentRepository
	Variables    *VariableRepository
	Settings     *SettingsRepository
	MockRoutes   *MockRouteRepository
	OAuthTokens  *OAuthTokenRepository
}

// New собирает все репозитории поверх store.
//
// codec используется для секретов; если источника ключа нет,
// передаётся crypto.UnavailableCodec, и операции с секретами
// завершаются ошибкой ErrEncryptionUnavailable.
func New(store docstore.Store, codec crypto.Codec, log *logger.HTTPLogger, opts ...Option) *Repositories {
	if log == nil {
		log = logger.NewNop()
	}
	if codec == nil {
		codec = crypto.UnavailableCodec{}
	}
	d := &deps{
		reg:      NewRegistry(store),
		codec:    codec,
		clock:    ident.NewClock(),
		log:      log,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(d)
	}

	tree := &Tree{d: d}
	c := &cascader{d: d, tree: tree}

	return &Repositories{
		Registry:     d.reg,
		Tree:         tree,
		Workspaces:   &WorkspaceRepository{d: d, c: c},
		Folders:      &FolderRepository{d: d, c: c, tree: tree},
		Requests:     &RequestRepository{d: d, c: c, tree: tree},
		Responses:    &ResponseRepository{d: d},
		Environments: &EnvironmentRepository{d: d, c: c},
		Variables:    &VariableRepository{d: d},
		Settings:     &SettingsRepository{d: d},
		MockRoutes:   &MockRouteRepository{d: d},
		OAuthTokens:  &OAuthTokenRepository{d: d},
	}
}
