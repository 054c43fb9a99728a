package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dealroom/deal-server-go/internal/audit"
	apperrors "github.com/dealroom/deal-server-go/internal/errors"
	"github.com/dealroom/deal-server-go/internal/httputil"
	"github.com/dealroom/deal-server-go/internal/model"
	"github.com/dealroom/deal-server-go/internal/service"
)

// PublicHandler serves the token-gated brand-facing endpoints. No
// authentication header: the access token in the path is the whole gate.
type PublicHandler struct {
	tokenService     *service.TokenService
	dealService      *service.DealService
	contractReadyTTL time.Duration
}

func NewPublicHandler(
	tokenService *service.TokenService,
	dealService *service.DealService,
	contractReadyTTL time.Duration,
) *PublicHandler {
	return &PublicHandler{
		tokenService:     tokenService,
		dealService:      dealService,
		contractReadyTTL: contractReadyTTL,
	}
}

func (h *PublicHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/deal-details-tokens/{token}", h.DealDetailsStatus)
	r.Post("/deal-details-tokens/{token}/submit", h.SubmitDealDetails)
	r.Get("/deal-details-tokens/{token}/contract-ready-token", h.ResolveContractReadyToken)
	r.Get("/contract-ready-tokens/{token}", h.ContractReadyStatus)

	return r
}

// GET /deal-details-tokens/{token}
// Brand-facing details form bootstrap. A consumed token still resolves so
// the page can show the submitted state.
func (h *PublicHandler) DealDetailsStatus(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "token")

	tokenCtx, err := h.tokenService.Inspect(r.Context(), raw, model.TokenKindDealDetails)
	if err != nil {
		h.rejectToken(w, r, err)
		return
	}

	resp := map[string]any{
		"valid":       true,
		"creatorName": tokenCtx.Creator.Name,
		"isUsed":      tokenCtx.Token.IsUsed(),
	}

	if tokenCtx.Token.DealID != nil {
		resp["dealId"] = *tokenCtx.Token.DealID
		if deal, derr := h.dealService.GetByID(r.Context(), tokenCtx.Creator.ID, *tokenCtx.Token.DealID); derr == nil {
			resp["isSigned"] = deal.IsSigned()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// POST /deal-details-tokens/{token}/submit
// Creates the deal and consumes the token. Exactly one of two concurrent
// submissions succeeds.
func (h *PublicHandler) SubmitDealDetails(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "token")

	tokenCtx, err := h.tokenService.Validate(r.Context(), raw, model.TokenKindDealDetails)
	if err != nil {
		h.rejectToken(w, r, err)
		return
	}

	var req struct {
		BrandName       string  `json:"brandName"`
		BrandEmail      *string `json:"brandEmail"`
		BrandPhone      *string `json:"brandPhone"`
		DealType        string  `json:"dealType"`
		DealAmount      float64 `json:"dealAmount"`
		ContractFileURL *string `json:"contractFileUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	result, err := h.dealService.SubmitDetails(r.Context(), tokenCtx, service.SubmitDetailsParams{
		BrandName:       req.BrandName,
		BrandEmail:      req.BrandEmail,
		BrandPhone:      req.BrandPhone,
		DealType:        model.DealType(req.DealType),
		DealAmount:      req.DealAmount,
		ContractFileURL: req.ContractFileURL,
	}, h.contractReadyTTL)
	if err != nil {
		// The caller proved possession of a valid token above, so losing the
		// consume race is reported as-is rather than softened.
		if code := apperrors.GetCode(err); code == apperrors.ErrCodeTokenAlreadyUsed {
			audit.LogFromRequest(r, audit.Event{
				Type:      audit.EventTokenRejected,
				CreatorID: tokenCtx.Creator.ID,
				Details:   map[string]interface{}{"reason": "already_used"},
			})
		}
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventTokenConsumed,
		CreatorID: tokenCtx.Creator.ID,
		DealID:    result.DealID,
	})

	resp := map[string]any{
		"success": true,
		"dealId":  result.DealID,
	}
	if result.ContractReadyToken != nil {
		resp["contractReadyToken"] = result.ContractReadyToken.Token
	}

	writeJSON(w, http.StatusCreated, resp)
}

// GET /deal-details-tokens/{token}/contract-ready-token
// Polling endpoint: resolves the current canonical contract_ready token for
// the deal created by this submission.
func (h *PublicHandler) ResolveContractReadyToken(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "token")

	tokenCtx, err := h.tokenService.Inspect(r.Context(), raw, model.TokenKindDealDetails)
	if err != nil {
		h.rejectToken(w, r, err)
		return
	}

	if tokenCtx.Token.DealID == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ready": false})
		return
	}

	readyToken, err := h.tokenService.CanonicalContractReady(r.Context(), *tokenCtx.Token.DealID)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeTokenNotFound {
			writeJSON(w, http.StatusOK, map[string]any{"ready": false})
			return
		}
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ready":              true,
		"contractReadyToken": readyToken.Token,
		"dealId":             *tokenCtx.Token.DealID,
	})
}

// GET /contract-ready-tokens/{token}
// Validity check before the front end redirects to the signing page.
// Repeated reads are fine; the signing transition itself is idempotent.
func (h *PublicHandler) ContractReadyStatus(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "token")

	tokenCtx, err := h.tokenService.Validate(r.Context(), raw, model.TokenKindContractReady)
	if err != nil {
		h.rejectToken(w, r, err)
		return
	}

	resp := map[string]any{
		"valid":       true,
		"creatorName": tokenCtx.Creator.Name,
	}

	if tokenCtx.Token.DealID != nil {
		deal, derr := h.dealService.GetByID(r.Context(), tokenCtx.Creator.ID, *tokenCtx.Token.DealID)
		if derr == nil {
			resp["dealId"] = deal.ID
			resp["isSigned"] = deal.IsSigned()
			if deal.ESignURL != nil && !deal.IsSigned() {
				resp["signUrl"] = *deal.ESignURL
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// rejectToken logs the exact failure internally and answers with the one
// soft message brand-facing pages get for every token problem.
func (h *PublicHandler) rejectToken(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	if !apperrors.IsTokenError(code) {
		httputil.WriteError(w, err)
		return
	}

	log.Warn().Str("code", string(code)).Str("path", r.URL.Path).Msg("public token rejected")
	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventTokenRejected,
		Details: map[string]interface{}{"code": string(code)},
	})

	writeLinkInvalid(w)
}
