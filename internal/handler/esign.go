package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dealroom/deal-server-go/internal/audit"
	apperrors "github.com/dealroom/deal-server-go/internal/errors"
	"github.com/dealroom/deal-server-go/internal/httputil"
	"github.com/dealroom/deal-server-go/internal/middleware"
	"github.com/dealroom/deal-server-go/internal/model"
	"github.com/dealroom/deal-server-go/internal/service"
)

// ESignHandler serves the authenticated e-sign endpoints and the provider
// webhook.
type ESignHandler struct {
	pipeline    *service.ContractPipeline
	dealService *service.DealService
	esign       service.ESignProvider
}

func NewESignHandler(
	pipeline *service.ContractPipeline,
	dealService *service.DealService,
	esign service.ESignProvider,
) *ESignHandler {
	return &ESignHandler{
		pipeline:    pipeline,
		dealService: dealService,
		esign:       esign,
	}
}

func (h *ESignHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/send", h.Send)
	r.Get("/status/{dealID}", h.Status)

	return r
}

// POST /esign/send
// Uploads the deal's contract to the provider and moves the deal to sent.
func (h *ESignHandler) Send(w http.ResponseWriter, r *http.Request) {
	creator := middleware.GetCreator(r.Context())
	if creator == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		DealID string `json:"dealId"`
		PDFURL string `json:"pdfUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.DealID == "" {
		httputil.WriteError(w, apperrors.MissingRequired("dealId"))
		return
	}

	// Ownership check before anything leaves the building.
	if _, err := h.dealService.GetByID(r.Context(), creator.ID, req.DealID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	invite, err := h.pipeline.SendForSignature(r.Context(), req.DealID, req.PDFURL)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventContractSent,
		CreatorID: creator.ID,
		DealID:    req.DealID,
		Details:   map[string]interface{}{"invitationId": invite.InvitationID},
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"invitationId": invite.InvitationID,
		"signUrl":      invite.SignURL,
	})
}

// GET /esign/status/{dealID}
// Current esign state plus a live provider snapshot when an invitation is
// outstanding.
func (h *ESignHandler) Status(w http.ResponseWriter, r *http.Request) {
	creator := middleware.GetCreator(r.Context())
	if creator == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	dealID := chi.URLParam(r, "dealID")
	deal, err := h.dealService.GetByID(r.Context(), creator.ID, dealID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := map[string]any{
		"dealId":       deal.ID,
		"esignStatus":  deal.ESignStatus,
		"signedPdfUrl": deal.SignedPDFURL,
		"signedAt":     formatTime(deal.SignedAt),
	}

	if deal.ESignInviteID != nil && deal.ESignStatus.InFlight() {
		providerStatus, perr := h.esign.GetStatus(r.Context(), *deal.ESignInviteID)
		if perr != nil {
			log.Warn().Err(perr).Str("dealId", deal.ID).Msg("provider status snapshot failed")
		} else {
			resp["providerStatus"] = providerStatus
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// esignWebhookPayload tolerates the provider's field spelling drift. The
// same semantic event may arrive under status or event, in any casing.
type esignWebhookPayload struct {
	InvitationID      string `json:"invitationId"`
	InvitationIDSnake string `json:"invitation_id"`
	Status            string `json:"status"`
	Event             string `json:"event"`
}

func (p *esignWebhookPayload) invitation() string {
	if p.InvitationID != "" {
		return p.InvitationID
	}
	return p.InvitationIDSnake
}

func (p *esignWebhookPayload) rawEvent() string {
	if p.Event != "" {
		return p.Event
	}
	return p.Status
}

// POST /esign/webhook
// The signature middleware has already verified the raw body; parse those
// same bytes, normalize the event and dispatch.
func (h *ESignHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body := middleware.GetRawBody(r.Context())
	if body == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Missing request body"})
		return
	}

	var payload esignWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn().Err(err).Msg("invalid esign webhook payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	invitationID := payload.invitation()
	if invitationID == "" {
		httputil.WriteError(w, apperrors.MissingRequired("invitationId"))
		return
	}

	event, ok := model.NormalizeESignEvent(payload.rawEvent())
	if !ok {
		// Unrecognized spellings fail closed instead of silently
		// re-asserting an in-flight state.
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventWebhookRejected,
			Details: map[string]interface{}{"rawEvent": payload.rawEvent()},
		})
		httputil.WriteError(w, apperrors.UnknownEvent(payload.rawEvent()))
		return
	}

	log.Info().
		Str("invitationId", invitationID).
		Str("event", string(event)).
		Msg("received esign webhook")

	if err := h.pipeline.HandleWebhookEvent(r.Context(), invitationID, event); err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventWebhookProcessed,
		Details: map[string]interface{}{"invitationId": invitationID, "event": string(event)},
	})

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
