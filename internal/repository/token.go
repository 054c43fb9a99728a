package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/dealroom/deal-server-go/internal/model"
)

// AccessTokenRepository handles access token data operations. Consume and
// the supersede path are conditional updates: two concurrent submissions of
// the same single-use token must resolve to exactly one winner in SQL, not
// in application code.
type AccessTokenRepository interface {
	Create(ctx context.Context, params model.CreateAccessTokenParams) (*model.AccessToken, error)
	FindByToken(ctx context.Context, token string) (*model.AccessToken, error)
	// Consume marks a token used iff it has not been used yet. Returns true
	// when this call won the update.
	Consume(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string) error
	// RevokeActiveByDeal supersedes every live token of the kind for a deal.
	RevokeActiveByDeal(ctx context.Context, dealID string, kind model.TokenKind) (int64, error)
	// LinkDeal attaches a deal created during submission to its token.
	LinkDeal(ctx context.Context, token, dealID string) error
	// FindCanonicalByDeal returns the newest live token of the kind for a deal.
	FindCanonicalByDeal(ctx context.Context, dealID string, kind model.TokenKind) (*model.AccessToken, error)
	DeleteExpired(ctx context.Context) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) AccessTokenRepository
}

type accessTokenRepo struct {
	db sqlxDB
}

func NewAccessTokenRepository(db *sqlx.DB) AccessTokenRepository {
	return &accessTokenRepo{db: db}
}

func (r *accessTokenRepo) WithTx(tx *sqlx.Tx) AccessTokenRepository {
	return &accessTokenRepo{db: tx}
}

func (r *accessTokenRepo) Create(ctx context.Context, params model.CreateAccessTokenParams) (*model.AccessToken, error) {
	var token model.AccessToken
	err := r.db.GetContext(ctx, &token, `
		INSERT INTO access_tokens (token, kind, subject_id, deal_id, is_active, expires_at)
		VALUES ($1, $2, $3, $4, true, $5)
		RETURNING *
	`, params.Token, params.Kind, params.SubjectID, params.DealID, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *accessTokenRepo) FindByToken(ctx context.Context, token string) (*model.AccessToken, error) {
	var at model.AccessToken
	err := r.db.GetContext(ctx, &at, `
		SELECT * FROM access_tokens WHERE token = $1
	`, token)
	return HandleNotFound(&at, err)
}

func (r *accessTokenRepo) Consume(ctx context.Context, token string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE access_tokens
		SET used_at = NOW()
		WHERE token = $1 AND used_at IS NULL
	`, token)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *accessTokenRepo) Revoke(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE access_tokens
		SET revoked_at = NOW(), is_active = false
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	return err
}

func (r *accessTokenRepo) RevokeActiveByDeal(ctx context.Context, dealID string, kind model.TokenKind) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE access_tokens
		SET revoked_at = NOW(), is_active = false
		WHERE deal_id = $1 AND kind = $2 AND revoked_at IS NULL AND is_active
	`, dealID, kind)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *accessTokenRepo) LinkDeal(ctx context.Context, token, dealID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE access_tokens
		SET deal_id = $1
		WHERE token = $2
	`, dealID, token)
	return err
}

func (r *accessTokenRepo) FindCanonicalByDeal(ctx context.Context, dealID string, kind model.TokenKind) (*model.AccessToken, error) {
	var at model.AccessToken
	err := r.db.GetContext(ctx, &at, `
		SELECT * FROM access_tokens
		WHERE deal_id = $1 AND kind = $2
		  AND is_active AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at DESC
		LIMIT 1
	`, dealID, kind)
	return HandleNotFound(&at, err)
}

func (r *accessTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM access_tokens
		WHERE expires_at IS NOT NULL AND expires_at < NOW() - INTERVAL '30 days'
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
