package service

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/dealroom/deal-server-go/internal/events"
	"github.com/dealroom/deal-server-go/internal/model"
	"github.com/dealroom/deal-server-go/internal/repository"
)

// InvoiceService derives invoices from signed deals. Called only from the
// background invoice worker; failures here are recorded on the invoice row
// and never touch the deal's signed state.
type InvoiceService struct {
	invoiceRepo repository.InvoiceRepository
	dealRepo    repository.DealRepository
	broker      EventPublisher
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	dealRepo repository.DealRepository,
	broker EventPublisher,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		dealRepo:    dealRepo,
		broker:      broker,
	}
}

// Derive creates the invoice for a signed deal. Idempotent: a deal that
// already has an invoice is a no-op success, so retried webhooks cannot
// double-invoice.
func (s *InvoiceService) Derive(ctx context.Context, dealID string) (*model.Invoice, error) {
	deal, err := s.dealRepo.FindByID(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("load deal: %w", err)
	}
	if deal == nil {
		return nil, fmt.Errorf("deal %s not found", dealID)
	}
	if !deal.IsSigned() {
		return nil, fmt.Errorf("deal %s is not signed", dealID)
	}

	amount := deal.DealAmount
	if deal.DealType == model.DealTypeBarter {
		// Barter deals get a zero-amount record for the paper trail.
		amount = 0
	}

	invoice, err := s.invoiceRepo.Create(ctx, model.CreateInvoiceParams{
		DealID: dealID,
		Number: fmt.Sprintf("INV-%s", ulid.Make()),
		Amount: amount,
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	if invoice == nil {
		existing, err := s.invoiceRepo.FindByDealID(ctx, dealID)
		if err != nil {
			return nil, fmt.Errorf("load existing invoice: %w", err)
		}
		log.Info().Str("dealId", dealID).Msg("invoice already derived for deal")
		return existing, nil
	}

	if err := s.invoiceRepo.MarkIssued(ctx, invoice.ID); err != nil {
		if ferr := s.invoiceRepo.MarkFailed(ctx, invoice.ID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Str("invoiceId", invoice.ID).Msg("failed to record invoice failure")
		}
		return nil, fmt.Errorf("issue invoice: %w", err)
	}

	log.Info().
		Str("dealId", dealID).
		Str("invoiceId", invoice.ID).
		Str("number", invoice.Number).
		Float64("amount", amount).
		Msg("invoice derived")

	s.broker.PublishDeal(ctx, deal.CreatorID, events.TypeInvoiceReady, dealID)

	return invoice, nil
}
