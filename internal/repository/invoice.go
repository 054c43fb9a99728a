package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/dealroom/deal-server-go/internal/model"
)

// InvoiceRepository handles invoice data operations. One invoice per deal,
// enforced with ON CONFLICT so a retried "signed" webhook cannot derive a
// second invoice.
type InvoiceRepository interface {
	// Create inserts an invoice for the deal if none exists yet. Returns nil
	// without error when the deal already has one.
	Create(ctx context.Context, params model.CreateInvoiceParams) (*model.Invoice, error)
	FindByDealID(ctx context.Context, dealID string) (*model.Invoice, error)
	MarkIssued(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

type invoiceRepo struct {
	db sqlxDB
}

func NewInvoiceRepository(db *sqlx.DB) InvoiceRepository {
	return &invoiceRepo{db: db}
}

func (r *invoiceRepo) Create(ctx context.Context, params model.CreateInvoiceParams) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.GetContext(ctx, &invoice, `
		INSERT INTO invoices (deal_id, number, amount, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (deal_id) DO NOTHING
		RETURNING *
	`, params.DealID, params.Number, params.Amount, model.InvoiceStatusPending)
	return HandleNotFound(&invoice, err)
}

func (r *invoiceRepo) FindByDealID(ctx context.Context, dealID string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.GetContext(ctx, &invoice, `
		SELECT * FROM invoices WHERE deal_id = $1
	`, dealID)
	return HandleNotFound(&invoice, err)
}

func (r *invoiceRepo) MarkIssued(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE invoices
		SET status = $2, error = NULL, updated_at = NOW()
		WHERE id = $1
	`, id, model.InvoiceStatusIssued)
	return err
}

func (r *invoiceRepo) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE invoices
		SET status = $2, error = $3, updated_at = NOW()
		WHERE id = $1
	`, id, model.InvoiceStatusFailed, reason)
	return err
}
