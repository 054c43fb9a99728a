package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dealroom/deal-server-go/internal/audit"
	apperrors "github.com/dealroom/deal-server-go/internal/errors"
	"github.com/dealroom/deal-server-go/internal/httputil"
	"github.com/dealroom/deal-server-go/internal/model"
	"github.com/dealroom/deal-server-go/internal/repository"
	"github.com/dealroom/deal-server-go/internal/service"
	"github.com/dealroom/deal-server-go/internal/util"
)

// OpsHandler is the internal provisioning surface. It creates creator
// accounts and hands out the deal-details links that start a deal. Guarded
// by a single ops password checked against a bcrypt hash from config.
type OpsHandler struct {
	creatorRepo     repository.CreatorRepository
	tokenService    *service.TokenService
	opsPasswordHash string
	dealDetailsTTL  time.Duration
}

func NewOpsHandler(
	creatorRepo repository.CreatorRepository,
	tokenService *service.TokenService,
	opsPasswordHash string,
	dealDetailsTTL time.Duration,
) *OpsHandler {
	return &OpsHandler{
		creatorRepo:     creatorRepo,
		tokenService:    tokenService,
		opsPasswordHash: opsPasswordHash,
		dealDetailsTTL:  dealDetailsTTL,
	}
}

func (h *OpsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(h.requireOpsPassword)

	r.Post("/creators", h.CreateCreator)
	r.Post("/deal-details-tokens", h.IssueDealDetailsToken)
	r.Post("/tokens/revoke", h.RevokeToken)

	return r
}

func (h *OpsHandler) requireOpsPassword(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.opsPasswordHash == "" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Ops access not configured"})
			return
		}

		_, password, ok := r.BasicAuth()
		if !ok || !util.CheckPasswordHash(password, h.opsPasswordHash) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			w.Header().Set("WWW-Authenticate", `Basic realm="ops"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// POST /ops/creators
// The API token is returned exactly once; only its hash is stored.
func (h *OpsHandler) CreateCreator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" {
		httputil.WriteError(w, apperrors.MissingRequired("name, email"))
		return
	}

	existing, err := h.creatorRepo.FindByEmail(r.Context(), req.Email)
	if err != nil {
		httputil.WriteError(w, apperrors.Database(err))
		return
	}
	if existing != nil {
		httputil.WriteError(w, apperrors.AlreadyExists("Creator"))
		return
	}

	apiToken, err := util.GenerateToken()
	if err != nil {
		httputil.WriteError(w, apperrors.Internal("Failed to generate API token"))
		return
	}

	creator, err := h.creatorRepo.Create(r.Context(), model.CreateCreatorParams{
		Name:         req.Name,
		Email:        req.Email,
		APITokenHash: util.HashToken(apiToken),
	})
	if err != nil {
		httputil.WriteError(w, apperrors.Database(err))
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventCreatorProvision,
		CreatorID: creator.ID,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"creator":  creator,
		"apiToken": apiToken,
	})
}

// POST /ops/deal-details-tokens
// Issues the single-use link sent to a creator when a brand inquiry lands.
func (h *OpsHandler) IssueDealDetailsToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CreatorID string `json:"creatorId"`
		TTLHours  int    `json:"ttlHours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.CreatorID == "" {
		httputil.WriteError(w, apperrors.MissingRequired("creatorId"))
		return
	}

	creator, err := h.creatorRepo.FindByID(r.Context(), req.CreatorID)
	if err != nil {
		httputil.WriteError(w, apperrors.Database(err))
		return
	}
	if creator == nil || creator.DisabledAt != nil {
		httputil.WriteError(w, apperrors.NotFound("Creator"))
		return
	}

	ttl := h.dealDetailsTTL
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}

	token, err := h.tokenService.Issue(r.Context(), model.TokenKindDealDetails, creator.ID, nil, ttl)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventTokenIssued,
		CreatorID: creator.ID,
		Details:   map[string]interface{}{"kind": string(token.Kind)},
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"token":     token.Token,
		"kind":      token.Kind,
		"expiresAt": formatTime(token.ExpiresAt),
	})
}

// POST /ops/tokens/revoke
func (h *OpsHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}

	if err := h.tokenService.Revoke(r.Context(), req.Token); err != nil {
		httputil.WriteError(w, err)
		return
	}

	log.Info().Str("token", util.MaskToken(req.Token)).Msg("token revoked by ops")
	audit.LogFromRequest(r, audit.Event{Type: audit.EventTokenRevoked})

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
