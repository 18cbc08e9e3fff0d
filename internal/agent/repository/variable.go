package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
	"go.uber.org/zap"
)

// VariableRepository — переменные окружений.
//
// Для секретных переменных в хранилище всегда лежит зашифрованное значение,
// а наружу отдаётся расшифрованное. Старые записи с открытым секретом
// шифруются и перезаписываются при первом чтении.
type VariableRepository struct {
	d *deps
}

// VariablePatch — частичное обновление переменной. nil-поля не меняются.
type VariablePatch struct {
	Key      *string `json:"key,omitempty"`
	Value    *string `json:"value,omitempty"`
	IsSecret *bool   `json:"isSecret,omitempty"`
}

// Create создаёт переменную. Значение секретной переменной шифруется,
// если оно ещё не зашифровано.
//
// Возвращает копию с открытым значением.
//
// Ошибки:
//   - ErrInvalidInput — пустой key или environmentId;
//   - NotFoundError — окружения нет;
//   - ErrEncryptionUnavailable — секрет, а ключа нет.
func (r *VariableRepository) Create(ctx context.Context, in models.Variable) (*models.Variable, error) {
	in.Key = strings.TrimSpace(in.Key)
	if in.Key == "" || in.EnvironmentID == "" {
		return nil, fmt.Errorf("variable key and environment are required: %w", serr.ErrInvalidInput)
	}
	env, err := findOne[models.Environment](ctx, r.d, ident.KindEnvironment, docstore.Query{models.FieldID: in.EnvironmentID})
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, serr.NotFound(string(ident.KindEnvironment), in.EnvironmentID)
	}

	in.Base = r.d.stamp(ident.KindVariable)
	stored := in
	if in.IsSecret {
		if stored.Value, err = r.seal(in.Value); err != nil {
			return nil, err
		}
		if in.Value, err = r.d.codec.Decrypt(stored.Value); err != nil {
			return nil, err
		}
	}

	if err := insert(ctx, r.d, ident.KindVariable, &stored); err != nil {
		return nil, err
	}
	return &in, nil
}

// Get возвращает переменную с открытым значением или nil.
func (r *VariableRepository) Get(ctx context.Context, id string) (*models.Variable, error) {
	v, err := findOne[models.Variable](ctx, r.d, ident.KindVariable, docstore.Query{models.FieldID: id})
	if err != nil || v == nil {
		return nil, err
	}
	if err := r.open(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// ListByEnvironment возвращает переменные окружения с открытыми значениями
// в порядке создания.
func (r *VariableRepository) ListByEnvironment(ctx context.Context, environmentID string) ([]models.Variable, error) {
	vars, err := findAll[models.Variable](ctx, r.d, ident.KindVariable,
		docstore.Query{models.FieldEnvironmentID: environmentID}, byCreated)
	if err != nil {
		return nil, err
	}
	for i := range vars {
		if err := r.open(ctx, &vars[i]); err != nil {
			return nil, err
		}
	}
	return vars, nil
}

// Update применяет patch.
//
// Переключение isSecret false->true шифрует текущее значение,
// true->false — расшифровывает его.
//
// Ошибки:
//   - ErrInvalidInput — пустой key в patch;
//   - NotFoundError — переменной нет;
//   - ErrEncryptionUnavailable — нужна криптография, а ключа нет.
func (r *VariableRepository) Update(ctx context.Context, id string, patch VariablePatch) (*models.Variable, error) {
	cur, err := findOne[models.Variable](ctx, r.d, ident.KindVariable, docstore.Query{models.FieldID: id})
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, serr.NotFound(string(ident.KindVariable), id)
	}

	set := docstore.Document{}
	if patch.Key != nil {
		key := strings.TrimSpace(*patch.Key)
		if key == "" {
			return nil, fmt.Errorf("variable key is empty: %w", serr.ErrInvalidInput)
		}
		set[models.FieldKey] = key
	}

	secret := cur.IsSecret
	if patch.IsSecret != nil {
		secret = *patch.IsSecret
		set[models.FieldIsSecret] = secret
	}

	value := cur.Value
	if patch.Value != nil {
		value = *patch.Value
	}

	switch {
	case secret:
		value, err = r.seal(value)
	case cur.IsSecret && patch.Value == nil && r.d.codec.IsEncrypted(value):
		// был секретом, стал обычной переменной
		value, err = r.d.codec.Decrypt(value)
	}
	if err != nil {
		return nil, err
	}
	if patch.Value != nil || value != cur.Value {
		set[models.FieldValue] = value
	}

	if _, err := updateByID(ctx, r.d, ident.KindVariable, id, set); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Delete удаляет переменную.
func (r *VariableRepository) Delete(ctx context.Context, id string) error {
	_, err := removeByID(ctx, r.d, ident.KindVariable, id)
	return err
}

// ResolveActive возвращает key -> открытое значение для активного окружения
// воркспейса. Если активного окружения нет — пустая карта.
func (r *VariableRepository) ResolveActive(ctx context.Context, workspaceID string) (map[string]string, error) {
	out := map[string]string{}
	env, err := findOne[models.Environment](ctx, r.d, ident.KindEnvironment,
		docstore.Query{models.FieldWorkspaceID: workspaceID, models.FieldIsActive: true})
	if err != nil || env == nil {
		return out, err
	}
	vars, err := r.ListByEnvironment(ctx, env.ID)
	if err != nil {
		return nil, err
	}
	for _, v := range vars {
		out[v.Key] = v.Value
	}
	return out, nil
}

// seal шифрует значение, если оно ещё не зашифровано.
func (r *VariableRepository) seal(value string) (string, error) {
	if r.d.codec.IsEncrypted(value) {
		return value, nil
	}
	return r.d.codec.Encrypt(value)
}

// open расшифровывает значение секретной переменной на месте.
// Открытый секрет (старые данные) сначала шифруется и записывается обратно.
func (r *VariableRepository) open(ctx context.Context, v *models.Variable) error {
	if !v.IsSecret {
		return nil
	}
	if !r.d.codec.IsEncrypted(v.Value) {
		sealed, err := r.d.codec.Encrypt(v.Value)
		if err != nil {
			return err
		}
		// modified не трогаем: содержимое для пользователя не изменилось
		_, err = r.d.reg.must(ident.KindVariable).Update(ctx,
			docstore.Query{models.FieldID: v.ID},
			docstore.Document{models.FieldValue: sealed},
			docstore.UpdateOptions{})
		if err != nil {
			return err
		}
		r.d.log.Info("legacy secret variable migrated", zap.String("id", v.ID))
		return nil // v.Value уже открытое
	}

	plain, err := r.d.codec.Decrypt(v.Value)
	if err != nil {
		return err
	}
	v.Value = plain
	return nil
}
