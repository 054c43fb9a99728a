package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/dealroom/deal-server-go/internal/model"
)

// DealRepository handles deal data operations. Every esign_* transition is a
// compare-and-set keyed on the current status (and invitation id for webhook
// paths), so concurrent webhook deliveries and status polls cannot interleave
// into a corrupt state.
type DealRepository interface {
	Create(ctx context.Context, params model.CreateDealParams) (*model.Deal, error)
	FindByID(ctx context.Context, id string) (*model.Deal, error)
	FindByInvitationID(ctx context.Context, invitationID string) (*model.Deal, error)
	FindByCreatorID(ctx context.Context, creatorID string, limit, offset int) ([]model.Deal, error)

	// MarkSent records a new invitation atomically. Allowed from any state
	// except signed: re-sending while in flight supersedes (orphans) the
	// prior invitation, which is the only cancel mechanism.
	MarkSent(ctx context.Context, dealID, provider, invitationID, signURL string) (bool, error)
	// MarkPending advances sent -> pending for the matching invitation.
	MarkPending(ctx context.Context, invitationID string) (bool, error)
	// MarkSigned completes the matching in-flight invitation exactly once.
	MarkSigned(ctx context.Context, invitationID, signedPDFURL string) (bool, error)
	// MarkSignFailed fails the matching in-flight invitation.
	MarkSignFailed(ctx context.Context, invitationID string) (bool, error)

	SetContractFile(ctx context.Context, dealID, fileURL string) error
	// UpdateScanStatus transitions the attachment scan state conditionally.
	UpdateScanStatus(ctx context.Context, dealID string, from, to model.ScanStatus) (bool, error)

	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) DealRepository
}

type dealRepo struct {
	db sqlxDB
}

func NewDealRepository(db *sqlx.DB) DealRepository {
	return &dealRepo{db: db}
}

func (r *dealRepo) WithTx(tx *sqlx.Tx) DealRepository {
	return &dealRepo{db: tx}
}

func (r *dealRepo) Create(ctx context.Context, params model.CreateDealParams) (*model.Deal, error) {
	var deal model.Deal
	err := r.db.GetContext(ctx, &deal, `
		INSERT INTO deals (
			creator_id, brand_name, brand_email, brand_phone,
			deal_type, deal_amount, status, contract_file_url, scan_status, esign_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING *
	`, params.CreatorID, params.BrandName, params.BrandEmail, params.BrandPhone,
		params.DealType, params.DealAmount, model.DealStatusDetailsSubmitted,
		params.ContractFileURL, model.ScanStatusNone, model.ESignNotSent)
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

func (r *dealRepo) FindByID(ctx context.Context, id string) (*model.Deal, error) {
	var deal model.Deal
	err := r.db.GetContext(ctx, &deal, `
		SELECT * FROM deals WHERE id = $1
	`, id)
	return HandleNotFound(&deal, err)
}

// FindByInvitationID matches only the deal whose CURRENT invitation is the
// given id. Webhooks for superseded invitations find nothing.
func (r *dealRepo) FindByInvitationID(ctx context.Context, invitationID string) (*model.Deal, error) {
	var deal model.Deal
	err := r.db.GetContext(ctx, &deal, `
		SELECT * FROM deals WHERE esign_invitation_id = $1
	`, invitationID)
	return HandleNotFound(&deal, err)
}

func (r *dealRepo) FindByCreatorID(ctx context.Context, creatorID string, limit, offset int) ([]model.Deal, error) {
	var deals []model.Deal
	err := r.db.SelectContext(ctx, &deals, `
		SELECT * FROM deals
		WHERE creator_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, creatorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return deals, nil
}

func (r *dealRepo) MarkSent(ctx context.Context, dealID, provider, invitationID, signURL string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE deals
		SET esign_provider = $2,
		    esign_invitation_id = $3,
		    esign_url = $4,
		    esign_status = $5,
		    updated_at = NOW()
		WHERE id = $1
		  AND esign_status <> $6
		  AND signed_pdf_url IS NULL
	`, dealID, provider, invitationID, signURL,
		model.ESignSent, model.ESignSigned)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

func (r *dealRepo) MarkPending(ctx context.Context, invitationID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE deals
		SET esign_status = $2, updated_at = NOW()
		WHERE esign_invitation_id = $1 AND esign_status = $3
	`, invitationID, model.ESignPending, model.ESignSent)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

func (r *dealRepo) MarkSigned(ctx context.Context, invitationID, signedPDFURL string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE deals
		SET esign_status = $2,
		    status = $3,
		    signed_pdf_url = $4,
		    signed_at = NOW(),
		    updated_at = NOW()
		WHERE esign_invitation_id = $1
		  AND esign_status IN ($5, $6)
		  AND signed_pdf_url IS NULL
	`, invitationID, model.ESignSigned, model.DealStatusSigned, signedPDFURL,
		model.ESignSent, model.ESignPending)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

func (r *dealRepo) MarkSignFailed(ctx context.Context, invitationID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE deals
		SET esign_status = $2, updated_at = NOW()
		WHERE esign_invitation_id = $1 AND esign_status IN ($3, $4)
	`, invitationID, model.ESignFailed, model.ESignSent, model.ESignPending)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

func (r *dealRepo) SetContractFile(ctx context.Context, dealID, fileURL string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE deals
		SET contract_file_url = $2, scan_status = $3, updated_at = NOW()
		WHERE id = $1
	`, dealID, fileURL, model.ScanStatusPending)
	return err
}

func (r *dealRepo) UpdateScanStatus(ctx context.Context, dealID string, from, to model.ScanStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE deals
		SET scan_status = $3, updated_at = NOW()
		WHERE id = $1 AND scan_status = $2
	`, dealID, from, to)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}
