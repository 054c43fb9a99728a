package service

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/dealroom/deal-server-go/internal/database"
	apperrors "github.com/dealroom/deal-server-go/internal/errors"
	"github.com/dealroom/deal-server-go/internal/events"
	"github.com/dealroom/deal-server-go/internal/model"
	"github.com/dealroom/deal-server-go/internal/repository"
)

// ScanScheduler enqueues an attachment scan for a deal's contract draft.
// Fire-and-forget: the submission returns with scan_status=pending and the
// result is written back asynchronously.
type ScanScheduler interface {
	Enqueue(dealID, fileURL string) bool
}

// TxRunner runs a function inside a single database transaction. Satisfied
// by *database.DB.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// SubmitDetailsParams is the brand-facing details form payload.
type SubmitDetailsParams struct {
	BrandName       string
	BrandEmail      *string
	BrandPhone      *string
	DealType        model.DealType
	DealAmount      float64
	ContractFileURL *string
}

func (p *SubmitDetailsParams) validate() error {
	if strings.TrimSpace(p.BrandName) == "" {
		return apperrors.MissingRequired("brandName")
	}
	switch p.DealType {
	case model.DealTypePaid, model.DealTypeBarter:
	default:
		return apperrors.InvalidInput("dealType", "must be paid or barter")
	}
	if p.DealType == model.DealTypePaid && p.DealAmount <= 0 {
		return apperrors.InvalidInput("dealAmount", "must be positive for paid deals")
	}
	return nil
}

// SubmitDetailsResult is returned to the brand after a successful
// submission.
type SubmitDetailsResult struct {
	DealID             string
	ContractReadyToken *model.AccessToken
}

// DealService owns deal creation from brand submissions and read access for
// creators. Status transitions themselves live in the repository's
// conditional updates, driven by the ContractPipeline.
type DealService struct {
	db       TxRunner
	dealRepo repository.DealRepository
	tokens   *TokenService
	scans    ScanScheduler
	broker   EventPublisher
}

func NewDealService(
	db TxRunner,
	dealRepo repository.DealRepository,
	tokens *TokenService,
	scans ScanScheduler,
	broker EventPublisher,
) *DealService {
	return &DealService{
		db:       db,
		dealRepo: dealRepo,
		tokens:   tokens,
		scans:    scans,
		broker:   broker,
	}
}

// SubmitDetails consumes the deal_details token and creates the deal. Both
// writes run in one transaction: the conditional used_at update still
// arbitrates concurrent submissions (exactly one wins), and a failed deal
// INSERT rolls the consume back so the link is not burned with no deal
// behind it.
func (s *DealService) SubmitDetails(
	ctx context.Context,
	tokenCtx *TokenContext,
	params SubmitDetailsParams,
	contractReadyTTL time.Duration,
) (*SubmitDetailsResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	var deal *model.Deal
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		tokens := s.tokens.withTx(tx)
		dealRepo := s.dealRepo.WithTx(tx)

		if err := tokens.Consume(ctx, tokenCtx.Token.Token); err != nil {
			return err
		}

		created, err := dealRepo.Create(ctx, model.CreateDealParams{
			CreatorID:       tokenCtx.Creator.ID,
			BrandName:       strings.TrimSpace(params.BrandName),
			BrandEmail:      params.BrandEmail,
			BrandPhone:      params.BrandPhone,
			DealType:        params.DealType,
			DealAmount:      params.DealAmount,
			ContractFileURL: params.ContractFileURL,
		})
		if err != nil {
			return apperrors.Database(err)
		}

		if err := tokens.LinkDeal(ctx, tokenCtx.Token.Token, created.ID); err != nil {
			return apperrors.Database(err)
		}

		deal = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if params.ContractFileURL != nil && *params.ContractFileURL != "" {
		if err := s.dealRepo.SetContractFile(ctx, deal.ID, *params.ContractFileURL); err != nil {
			log.Error().Err(err).Str("dealId", deal.ID).Msg("failed to record contract draft")
		} else if !s.scans.Enqueue(deal.ID, *params.ContractFileURL) {
			log.Warn().Str("dealId", deal.ID).Msg("scan queue full, contract draft left pending")
		}
	}

	log.Info().
		Str("dealId", deal.ID).
		Str("creatorId", deal.CreatorID).
		Str("brandName", deal.BrandName).
		Msg("deal details submitted")

	// The signing link for the brand polls against this token; issuing it
	// here supersedes nothing since the deal is new.
	readyToken, err := s.tokens.Issue(ctx, model.TokenKindContractReady, deal.CreatorID, &deal.ID, contractReadyTTL)
	if err != nil {
		// The submission already succeeded; the token can be re-issued via
		// the polling endpoint.
		log.Error().Err(err).Str("dealId", deal.ID).Msg("failed to issue contract-ready token")
		readyToken = nil
	}

	s.broker.PublishDeal(ctx, deal.CreatorID, events.TypeDealSubmitted, deal.ID)

	return &SubmitDetailsResult{DealID: deal.ID, ContractReadyToken: readyToken}, nil
}

// GetByID returns a deal, scoped to its creator.
func (s *DealService) GetByID(ctx context.Context, creatorID, dealID string) (*model.Deal, error) {
	deal, err := s.dealRepo.FindByID(ctx, dealID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if deal == nil || deal.CreatorID != creatorID {
		// A deal belonging to someone else is indistinguishable from a
		// missing one.
		return nil, apperrors.NotFound("Deal")
	}
	return deal, nil
}

// ListByCreator returns the creator's deals, newest first.
func (s *DealService) ListByCreator(ctx context.Context, creatorID string, limit, offset int) ([]model.Deal, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	deals, err := s.dealRepo.FindByCreatorID(ctx, creatorID, limit, offset)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return deals, nil
}
