package repository

import (
	"context"
	"fmt"

	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// OAuthTokenRepository — OAuth2-токены запросов, не более одного на запрос.
//
// accessToken и refreshToken хранятся зашифрованными; расшифровываются
// только при чтении через GetByRequest.
type OAuthTokenRepository struct {
	d *deps
}

// Save сохраняет токен запроса, заменяя предыдущий.
//
// Ошибки:
//   - ErrInvalidInput — пустой requestId;
//   - ErrEncryptionUnavailable — ключа нет.
func (r *OAuthTokenRepository) Save(ctx context.Context, in models.OAuthToken) (*models.OAuthToken, error) {
	if in.RequestID == "" {
		return nil, fmt.Errorf("oauth token requestId is required: %w", serr.ErrInvalidInput)
	}

	plainAccess, plainRefresh := in.AccessToken, in.RefreshToken
	var err error
	if in.AccessToken, err = r.seal(in.AccessToken); err != nil {
		return nil, err
	}
	if in.RefreshToken, err = r.seal(in.RefreshToken); err != nil {
		return nil, err
	}

	if _, err := r.DeleteByRequest(ctx, in.RequestID); err != nil {
		return nil, err
	}
	in.Base = r.d.stamp(ident.KindOAuthToken)
	if err := insert(ctx, r.d, ident.KindOAuthToken, &in); err != nil {
		return nil, err
	}

	in.AccessToken, in.RefreshToken = plainAccess, plainRefresh
	return &in, nil
}

// GetByRequest возвращает расшифрованный токен запроса или nil.
func (r *OAuthTokenRepository) GetByRequest(ctx context.Context, requestID string) (*models.OAuthToken, error) {
	tok, err := findOne[models.OAuthToken](ctx, r.d, ident.KindOAuthToken, docstore.Query{models.FieldRequestID: requestID})
	if err != nil || tok == nil {
		return nil, err
	}
	if tok.AccessToken, err = r.open(tok.AccessToken); err != nil {
		return nil, err
	}
	if tok.RefreshToken, err = r.open(tok.RefreshToken); err != nil {
		return nil, err
	}
	return tok, nil
}

// open расшифровывает значение; незашифрованное (старые данные) отдаётся как есть.
func (r *OAuthTokenRepository) open(v string) (string, error) {
	if !r.d.codec.IsEncrypted(v) {
		return v, nil
	}
	return r.d.codec.Decrypt(v)
}

// DeleteByRequest удаляет токен запроса.
func (r *OAuthTokenRepository) DeleteByRequest(ctx context.Context, requestID string) (int, error) {
	return r.d.reg.must(ident.KindOAuthToken).Remove(ctx,
		docstore.Query{models.FieldRequestID: requestID}, docstore.RemoveOptions{Multi: true})
}

// seal шифрует непустое значение, если оно ещё не зашифровано.
func (r *OAuthTokenRepository) seal(v string) (string, error) {
	if v == "" || r.d.codec.IsEncrypted(v) {
		return v, nil
	}
	return r.d.codec.Encrypt(v)
}
