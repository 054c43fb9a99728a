package model

import (
	"time"
)

// Creator is an authenticated account. API access uses an opaque bearer
// token stored as a sha256 hash.
type Creator struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	APITokenHash *string    `db:"api_token_hash" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
	DisabledAt   *time.Time `db:"disabled_at" json:"disabledAt,omitempty"`
}

type CreateCreatorParams struct {
	Name         string
	Email        string
	APITokenHash string
}
