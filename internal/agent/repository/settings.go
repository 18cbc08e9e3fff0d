package repository

import (
	"context"
	"errors"

	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// Значения настроек по умолчанию.
const (
	DefaultTimeoutMs           = 30000
	DefaultTheme               = "dark"
	DefaultFontSize            = 14
	DefaultMaxHistoryResponses = 20
)

// SettingsRepository — единственная запись настроек.
type SettingsRepository struct {
	d *deps
}

// SettingsPatch — частичное обновление настроек. nil-поля не меняются.
type SettingsPatch struct {
	Timeout             *int    `json:"timeout,omitempty"`
	FollowRedirects     *bool   `json:"followRedirects,omitempty"`
	ValidateSSL         *bool   `json:"validateSSL,omitempty"`
	Theme               *string `json:"theme,omitempty"`
	FontSize            *int    `json:"fontSize,omitempty"`
	MaxHistoryResponses *int    `json:"maxHistoryResponses,omitempty"`
}

// Get возвращает настройки, создавая запись по умолчанию при первом чтении.
func (r *SettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	q := docstore.Query{models.FieldID: ident.SettingsID}
	s, err := findOne[models.Settings](ctx, r.d, ident.KindSettings, q)
	if err != nil || s != nil {
		return s, err
	}

	now := r.d.clock.Now()
	def := &models.Settings{
		Base: models.Base{
			ID:       ident.NewID(ident.KindSettings),
			Type:     string(ident.KindSettings),
			Created:  now,
			Modified: now,
		},
		Timeout:             DefaultTimeoutMs,
		FollowRedirects:     true,
		ValidateSSL:         true,
		Theme:               DefaultTheme,
		FontSize:            DefaultFontSize,
		MaxHistoryResponses: DefaultMaxHistoryResponses,
	}
	if err := insert(ctx, r.d, ident.KindSettings, def); err != nil {
		// запись успели создать параллельно — читаем её
		if errors.Is(err, serr.ErrAlreadyExists) {
			return findOne[models.Settings](ctx, r.d, ident.KindSettings, q)
		}
		return nil, err
	}
	return def, nil
}

// Update сливает patch с текущими настройками и обновляет modified.
func (r *SettingsRepository) Update(ctx context.Context, patch SettingsPatch) (*models.Settings, error) {
	if _, err := r.Get(ctx); err != nil {
		return nil, err
	}

	set := docstore.Document{}
	if patch.Timeout != nil {
		set["timeout"] = *patch.Timeout
	}
	if patch.FollowRedirects != nil {
		set["followRedirects"] = *patch.FollowRedirects
	}
	if patch.ValidateSSL != nil {
		set["validateSSL"] = *patch.ValidateSSL
	}
	if patch.Theme != nil {
		set["theme"] = *patch.Theme
	}
	if patch.FontSize != nil {
		set["fontSize"] = *patch.FontSize
	}
	if patch.MaxHistoryResponses != nil {
		set["maxHistoryResponses"] = *patch.MaxHistoryResponses
	}

	if _, err := updateByID(ctx, r.d, ident.KindSettings, ident.SettingsID, set); err != nil {
		return nil, err
	}
	return r.Get(ctx)
}
