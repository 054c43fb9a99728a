package model

import (
	"time"
)

// Deal is the shared mutable resource of the contract pipeline. The esign_*
// columns are mutated only through conditional updates in the repository;
// services never read-modify-write them.
type Deal struct {
	ID              string      `db:"id" json:"id"`
	CreatorID       string      `db:"creator_id" json:"creatorId"`
	BrandName       string      `db:"brand_name" json:"brandName"`
	BrandEmail      *string     `db:"brand_email" json:"brandEmail,omitempty"`
	BrandPhone      *string     `db:"brand_phone" json:"brandPhone,omitempty"`
	DealType        DealType    `db:"deal_type" json:"dealType"`
	DealAmount      float64     `db:"deal_amount" json:"dealAmount"`
	Status          DealStatus  `db:"status" json:"status"`
	ContractFileURL *string     `db:"contract_file_url" json:"contractFileUrl,omitempty"`
	ScanStatus      ScanStatus  `db:"scan_status" json:"scanStatus"`
	ESignProvider   *string     `db:"esign_provider" json:"esignProvider,omitempty"`
	ESignInviteID   *string     `db:"esign_invitation_id" json:"esignInvitationId,omitempty"`
	ESignURL        *string     `db:"esign_url" json:"esignUrl,omitempty"`
	ESignStatus     ESignStatus `db:"esign_status" json:"esignStatus"`
	SignedPDFURL    *string     `db:"signed_pdf_url" json:"signedPdfUrl,omitempty"`
	SignedAt        *time.Time  `db:"signed_at" json:"signedAt,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updatedAt"`
}

type CreateDealParams struct {
	CreatorID       string
	BrandName       string
	BrandEmail      *string
	BrandPhone      *string
	DealType        DealType
	DealAmount      float64
	ContractFileURL *string
}

// IsSigned reports whether the current invitation already completed. Used
// for the idempotent short-circuit on repeated "signed" webhooks.
func (d *Deal) IsSigned() bool {
	return d.ESignStatus == ESignSigned && d.SignedPDFURL != nil
}
