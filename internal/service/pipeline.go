package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	apperrors "github.com/dealroom/deal-server-go/internal/errors"
	"github.com/dealroom/deal-server-go/internal/events"
	"github.com/dealroom/deal-server-go/internal/model"
	"github.com/dealroom/deal-server-go/internal/repository"
	"github.com/dealroom/deal-server-go/internal/storage"
)

const draftMaxBytes = 25 << 20

// InvoiceScheduler enqueues invoice derivation for a signed deal. Enqueue
// never blocks; a full queue drops the task and returns false.
type InvoiceScheduler interface {
	Enqueue(dealID string) bool
}

// EventPublisher announces deal lifecycle events to subscribed dashboards.
// Satisfied by events.Broker.
type EventPublisher interface {
	PublishDeal(ctx context.Context, creatorID, eventType, dealID string)
}

// ContractPipeline orchestrates the contract finalization workflow: draft
// download, provider upload, the sent transition, and webhook-driven
// completion into storage and invoicing.
type ContractPipeline struct {
	dealRepo        repository.DealRepository
	esign           ESignProvider
	store           storage.Store
	invoices        InvoiceScheduler
	broker          EventPublisher
	downloadClient  *http.Client
	downloadTimeout time.Duration
}

func NewContractPipeline(
	dealRepo repository.DealRepository,
	esign ESignProvider,
	store storage.Store,
	invoices InvoiceScheduler,
	broker EventPublisher,
	downloadTimeout time.Duration,
) *ContractPipeline {
	return &ContractPipeline{
		dealRepo:        dealRepo,
		esign:           esign,
		store:           store,
		invoices:        invoices,
		broker:          broker,
		downloadClient:  &http.Client{Timeout: downloadTimeout},
		downloadTimeout: downloadTimeout,
	}
}

// SendForSignature resolves the unsigned draft, uploads it to the provider
// and transitions the deal to sent. The external call always precedes the
// durable state write: any failure leaves the deal exactly as it was.
func (p *ContractPipeline) SendForSignature(ctx context.Context, dealID, pdfURL string) (*ProviderInvite, error) {
	deal, err := p.dealRepo.FindByID(ctx, dealID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if deal == nil {
		return nil, apperrors.NotFound("Deal")
	}
	if deal.IsSigned() {
		return nil, apperrors.InvalidTransition("deal is already signed")
	}

	source := pdfURL
	if source == "" && deal.ContractFileURL != nil {
		source = *deal.ContractFileURL
	}
	if source == "" {
		return nil, apperrors.MissingRequired("pdfUrl")
	}

	draft, err := p.downloadDraft(ctx, source)
	if err != nil {
		// Usually an invalid or expired upstream URL. Reported, not retried;
		// the deal is untouched.
		log.Warn().Err(err).Str("dealId", dealID).Msg("draft download failed")
		return nil, apperrors.InvalidInput("pdfUrl", "could not download draft document").WithCause(err)
	}

	invite, err := p.esign.UploadDocument(ctx, draft, fmt.Sprintf("deal-%s.pdf", deal.ID))
	if err != nil {
		return nil, apperrors.Provider("upload document", err)
	}

	won, err := p.dealRepo.MarkSent(ctx, deal.ID, p.esign.Name(), invite.InvitationID, invite.SignURL)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if !won {
		// The deal was signed concurrently. The fresh invitation is orphaned
		// on the provider side; its webhooks will not match any deal.
		return nil, apperrors.InvalidTransition("deal state changed during send")
	}

	log.Info().
		Str("dealId", deal.ID).
		Str("invitationId", invite.InvitationID).
		Msg("contract sent for signature")

	p.broker.PublishDeal(ctx, deal.CreatorID, events.TypeDealSent, deal.ID)

	return invite, nil
}

// HandleWebhookEvent dispatches a verified, normalized provider event.
func (p *ContractPipeline) HandleWebhookEvent(ctx context.Context, invitationID string, event model.ESignEvent) error {
	switch event {
	case model.ESignEventSigned:
		return p.handleSigned(ctx, invitationID)
	case model.ESignEventFailed:
		return p.handleFailed(ctx, invitationID)
	case model.ESignEventSent, model.ESignEventPending:
		return p.handleInFlight(ctx, invitationID)
	default:
		return apperrors.UnknownEvent(string(event))
	}
}

// handleSigned completes the signing transition: download the signed
// artifact, store it under a collision-resistant name, persist the durable
// URL exactly once, then schedule invoice derivation as a best-effort
// dependent step.
func (p *ContractPipeline) handleSigned(ctx context.Context, invitationID string) error {
	deal, err := p.dealRepo.FindByInvitationID(ctx, invitationID)
	if err != nil {
		return apperrors.Database(err)
	}
	if deal == nil {
		// Unknown or superseded invitation. Nothing to mutate.
		log.Warn().Str("invitationId", invitationID).Msg("signed webhook for unknown invitation")
		return apperrors.NotFound("Deal")
	}

	if deal.IsSigned() {
		// Provider retry. Already completed for this invitation.
		log.Info().
			Str("dealId", deal.ID).
			Str("invitationId", invitationID).
			Msg("duplicate signed webhook ignored")
		return nil
	}

	signed, err := p.esign.DownloadSigned(ctx, invitationID)
	if err != nil {
		// The deal must not sit in "sent" forever with an unreachable
		// artifact; record the failure and surface it.
		if _, ferr := p.dealRepo.MarkSignFailed(ctx, invitationID); ferr != nil {
			log.Error().Err(ferr).Str("invitationId", invitationID).Msg("failed to record sign failure")
		}
		return apperrors.Provider("download signed document", err)
	}

	path := fmt.Sprintf("contracts/%s/%s/signed-%s.pdf", deal.CreatorID, deal.ID, ulid.Make())
	url, err := p.store.Put(ctx, path, signed)
	if err != nil {
		if _, ferr := p.dealRepo.MarkSignFailed(ctx, invitationID); ferr != nil {
			log.Error().Err(ferr).Str("invitationId", invitationID).Msg("failed to record sign failure")
		}
		return apperrors.Storage("persist signed document", err)
	}

	won, err := p.dealRepo.MarkSigned(ctx, invitationID, url)
	if err != nil {
		return apperrors.Database(err)
	}
	if !won {
		// A concurrent delivery completed first. Drop our artifact copy and
		// treat the transition as already applied.
		if derr := p.store.Delete(ctx, path); derr != nil {
			log.Warn().Err(derr).Str("path", path).Msg("failed to remove duplicate signed artifact")
		}
		log.Info().
			Str("dealId", deal.ID).
			Str("invitationId", invitationID).
			Msg("concurrent signed webhook won the transition")
		return nil
	}

	log.Info().
		Str("dealId", deal.ID).
		Str("invitationId", invitationID).
		Str("signedPdfUrl", url).
		Msg("deal signed")

	// Invoicing is a dependent of signing, never a precondition. A full
	// queue is logged and left to be retried out of band.
	if !p.invoices.Enqueue(deal.ID) {
		log.Warn().Str("dealId", deal.ID).Msg("invoice queue full, derivation skipped")
	}

	p.broker.PublishDeal(ctx, deal.CreatorID, events.TypeDealSigned, deal.ID)

	return nil
}

func (p *ContractPipeline) handleFailed(ctx context.Context, invitationID string) error {
	deal, err := p.dealRepo.FindByInvitationID(ctx, invitationID)
	if err != nil {
		return apperrors.Database(err)
	}
	if deal == nil {
		log.Warn().Str("invitationId", invitationID).Msg("failed webhook for unknown invitation")
		return apperrors.NotFound("Deal")
	}

	won, err := p.dealRepo.MarkSignFailed(ctx, invitationID)
	if err != nil {
		return apperrors.Database(err)
	}
	if !won {
		// Terminal already; failed after signed is a provider anomaly worth
		// logging but not an error to the sender.
		log.Info().
			Str("dealId", deal.ID).
			Str("invitationId", invitationID).
			Msg("failed webhook ignored, invitation already terminal")
		return nil
	}

	log.Info().
		Str("dealId", deal.ID).
		Str("invitationId", invitationID).
		Msg("signature request failed")

	p.broker.PublishDeal(ctx, deal.CreatorID, events.TypeDealFailed, deal.ID)

	return nil
}

// handleInFlight records provider "sent"/"pending" progress. Both are
// treated as in flight; order between them is not guaranteed, so a no-op
// update is success.
func (p *ContractPipeline) handleInFlight(ctx context.Context, invitationID string) error {
	if _, err := p.dealRepo.MarkPending(ctx, invitationID); err != nil {
		return apperrors.Database(err)
	}
	return nil
}

func (p *ContractPipeline) downloadDraft(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download draft: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download draft: upstream returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, draftMaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("download draft: empty body")
	}
	if len(data) > draftMaxBytes {
		return nil, fmt.Errorf("download draft: exceeds %d bytes", draftMaxBytes)
	}

	return data, nil
}
