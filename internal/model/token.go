package model

import (
	"time"
)

// AccessToken grants scoped, possibly single-use access to a public endpoint
// without authentication. The token string itself is the primary key.
type AccessToken struct {
	Token     string     `db:"token" json:"token"`
	Kind      TokenKind  `db:"kind" json:"kind"`
	SubjectID string     `db:"subject_id" json:"subjectId"`
	DealID    *string    `db:"deal_id" json:"dealId,omitempty"`
	IsActive  bool       `db:"is_active" json:"isActive"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	ExpiresAt *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	RevokedAt *time.Time `db:"revoked_at" json:"revokedAt,omitempty"`
	UsedAt    *time.Time `db:"used_at" json:"usedAt,omitempty"`
}

type CreateAccessTokenParams struct {
	Token     string
	Kind      TokenKind
	SubjectID string
	DealID    *string
	ExpiresAt *time.Time
}

func (t *AccessToken) IsExpired() bool {
	return t.ExpiresAt != nil && !time.Now().Before(*t.ExpiresAt)
}

func (t *AccessToken) IsUsed() bool {
	return t.UsedAt != nil
}

// Valid checks the full validity invariant: active, not revoked, not
// expired, and not consumed unless the kind permits reuse.
func (t *AccessToken) Valid() bool {
	if !t.IsActive || t.RevokedAt != nil || t.IsExpired() {
		return false
	}
	if t.IsUsed() && t.Kind.SingleUse() {
		return false
	}
	return true
}
