package model

import (
	"time"
)

// Invoice is derived from a signed deal by the background invoice worker.
// One invoice per deal; derivation failures are recorded here and never
// propagate to the deal's signed state.
type Invoice struct {
	ID        string        `db:"id" json:"id"`
	DealID    string        `db:"deal_id" json:"dealId"`
	Number    string        `db:"number" json:"number"`
	Amount    float64       `db:"amount" json:"amount"`
	Status    InvoiceStatus `db:"status" json:"status"`
	Error     *string       `db:"error" json:"error,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `db:"updated_at" json:"updatedAt"`
}

type CreateInvoiceParams struct {
	DealID string
	Number string
	Amount float64
}
