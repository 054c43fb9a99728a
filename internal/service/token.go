package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	apperrors "github.com/dealroom/deal-server-go/internal/errors"
	"github.com/dealroom/deal-server-go/internal/model"
	"github.com/dealroom/deal-server-go/internal/repository"
	"github.com/dealroom/deal-server-go/internal/util"
)

// TokenContext is the result of a successful validation: the token plus the
// creator it is scoped to. It is the only thing public handlers may act on.
type TokenContext struct {
	Token   *model.AccessToken
	Creator *model.Creator
}

// TokenService issues, validates, consumes and revokes the single-use
// expiring access tokens gating the public endpoints.
type TokenService struct {
	tokenRepo   repository.AccessTokenRepository
	creatorRepo repository.CreatorRepository
}

func NewTokenService(
	tokenRepo repository.AccessTokenRepository,
	creatorRepo repository.CreatorRepository,
) *TokenService {
	return &TokenService{
		tokenRepo:   tokenRepo,
		creatorRepo: creatorRepo,
	}
}

// withTx returns a TokenService whose token writes run on the given
// transaction.
func (s *TokenService) withTx(tx *sqlx.Tx) *TokenService {
	return &TokenService{
		tokenRepo:   s.tokenRepo.WithTx(tx),
		creatorRepo: s.creatorRepo,
	}
}

// Issue creates a new token. For contract_ready tokens scoped to a deal, any
// prior live token of that kind is revoked first: the canonical pointer
// moves, old tokens remain stored for audit.
func (s *TokenService) Issue(
	ctx context.Context,
	kind model.TokenKind,
	subjectID string,
	dealID *string,
	ttl time.Duration,
) (*model.AccessToken, error) {
	if dealID != nil && kind == model.TokenKindContractReady {
		superseded, err := s.tokenRepo.RevokeActiveByDeal(ctx, *dealID, kind)
		if err != nil {
			return nil, fmt.Errorf("supersede prior tokens: %w", err)
		}
		if superseded > 0 {
			log.Info().
				Str("dealId", *dealID).
				Int64("count", superseded).
				Msg("superseded prior contract-ready tokens")
		}
	}

	raw, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	token, err := s.tokenRepo.Create(ctx, model.CreateAccessTokenParams{
		Token:     raw,
		Kind:      kind,
		SubjectID: subjectID,
		DealID:    dealID,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	log.Info().
		Str("token", util.MaskToken(raw)).
		Str("kind", string(kind)).
		Str("subjectId", subjectID).
		Msg("access token issued")

	return token, nil
}

// Validate is the sole gate between the public internet and deal mutation.
// It checks the full validity invariant and resolves the creator the token
// is scoped to.
func (s *TokenService) Validate(ctx context.Context, raw string, kind model.TokenKind) (*TokenContext, error) {
	return s.validate(ctx, raw, kind, false)
}

// Inspect is Validate for read-only views: a consumed single-use token still
// resolves, so the page behind it can show what was submitted. Revoked,
// expired and unknown tokens fail exactly as in Validate.
func (s *TokenService) Inspect(ctx context.Context, raw string, kind model.TokenKind) (*TokenContext, error) {
	return s.validate(ctx, raw, kind, true)
}

func (s *TokenService) validate(ctx context.Context, raw string, kind model.TokenKind, allowUsed bool) (*TokenContext, error) {
	token, err := s.tokenRepo.FindByToken(ctx, raw)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if token == nil || token.Kind != kind {
		// A token of the wrong kind is indistinguishable from a missing one.
		return nil, apperrors.TokenNotFound()
	}

	if token.RevokedAt != nil || !token.IsActive {
		return nil, apperrors.TokenRevoked()
	}
	if token.IsExpired() {
		return nil, apperrors.TokenExpired()
	}
	if token.IsUsed() && token.Kind.SingleUse() && !allowUsed {
		return nil, apperrors.TokenAlreadyUsed()
	}

	creator, err := s.creatorRepo.FindByID(ctx, token.SubjectID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if creator == nil || creator.DisabledAt != nil {
		return nil, apperrors.TokenRevoked()
	}

	return &TokenContext{Token: token, Creator: creator}, nil
}

// Consume marks a single-use token as used, exactly once. Two concurrent
// submissions both reaching this point resolve in the database: one wins,
// the other gets TokenAlreadyUsed.
func (s *TokenService) Consume(ctx context.Context, raw string) error {
	won, err := s.tokenRepo.Consume(ctx, raw)
	if err != nil {
		return apperrors.Database(err)
	}
	if !won {
		log.Warn().Str("token", util.MaskToken(raw)).Msg("token consume lost race or already used")
		return apperrors.TokenAlreadyUsed()
	}
	return nil
}

// Revoke deactivates a token, independent of expiry.
func (s *TokenService) Revoke(ctx context.Context, raw string) error {
	if err := s.tokenRepo.Revoke(ctx, raw); err != nil {
		return apperrors.Database(err)
	}
	log.Info().Str("token", util.MaskToken(raw)).Msg("access token revoked")
	return nil
}

// LinkDeal attaches a deal created during submission to its deal_details
// token.
func (s *TokenService) LinkDeal(ctx context.Context, raw, dealID string) error {
	return s.tokenRepo.LinkDeal(ctx, raw, dealID)
}

// CanonicalContractReady resolves the current contract_ready token for a
// deal, for polling clients that hold a consumed deal_details token.
func (s *TokenService) CanonicalContractReady(ctx context.Context, dealID string) (*model.AccessToken, error) {
	token, err := s.tokenRepo.FindCanonicalByDeal(ctx, dealID, model.TokenKindContractReady)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if token == nil {
		return nil, apperrors.TokenNotFound()
	}
	return token, nil
}
