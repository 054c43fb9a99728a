package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/dealroom/deal-server-go/internal/model"
)

type CreatorRepository interface {
	FindByID(ctx context.Context, id string) (*model.Creator, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Creator, error)
	FindByEmail(ctx context.Context, email string) (*model.Creator, error)
	Create(ctx context.Context, params model.CreateCreatorParams) (*model.Creator, error)
	Disable(ctx context.Context, id string) error
}

type creatorRepo struct {
	db sqlxDB
}

// sqlxDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sqlxDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func NewCreatorRepository(db *sqlx.DB) CreatorRepository {
	return &creatorRepo{db: db}
}

func (r *creatorRepo) FindByID(ctx context.Context, id string) (*model.Creator, error) {
	var creator model.Creator
	err := r.db.GetContext(ctx, &creator, `
		SELECT * FROM creators WHERE id = $1
	`, id)
	return HandleNotFound(&creator, err)
}

func (r *creatorRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Creator, error) {
	var creator model.Creator
	err := r.db.GetContext(ctx, &creator, `
		SELECT * FROM creators
		WHERE api_token_hash = $1 AND disabled_at IS NULL
	`, tokenHash)
	return HandleNotFound(&creator, err)
}

func (r *creatorRepo) FindByEmail(ctx context.Context, email string) (*model.Creator, error) {
	var creator model.Creator
	err := r.db.GetContext(ctx, &creator, `
		SELECT * FROM creators WHERE email = $1
	`, email)
	return HandleNotFound(&creator, err)
}

func (r *creatorRepo) Create(ctx context.Context, params model.CreateCreatorParams) (*model.Creator, error) {
	var creator model.Creator
	err := r.db.GetContext(ctx, &creator, `
		INSERT INTO creators (name, email, api_token_hash)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.Name, params.Email, params.APITokenHash)
	if err != nil {
		return nil, err
	}
	return &creator, nil
}

func (r *creatorRepo) Disable(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE creators SET disabled_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND disabled_at IS NULL
	`, id)
	return err
}
