package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dealroom/deal-server-go/internal/httputil"
	"github.com/dealroom/deal-server-go/internal/middleware"
	"github.com/dealroom/deal-server-go/internal/service"
)

// DealHandler is the creator dashboard's read surface over deals.
type DealHandler struct {
	dealService *service.DealService
}

func NewDealHandler(dealService *service.DealService) *DealHandler {
	return &DealHandler{dealService: dealService}
}

func (h *DealHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{dealID}", h.Get)

	return r
}

func (h *DealHandler) List(w http.ResponseWriter, r *http.Request) {
	creator := middleware.GetCreator(r.Context())
	if creator == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	pagination := ParsePagination(r)

	deals, err := h.dealService.ListByCreator(r.Context(), creator.ID, pagination.Limit, pagination.Offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deals":  deals,
		"limit":  pagination.Limit,
		"offset": pagination.Offset,
	})
}

func (h *DealHandler) Get(w http.ResponseWriter, r *http.Request) {
	creator := middleware.GetCreator(r.Context())
	if creator == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	deal, err := h.dealService.GetByID(r.Context(), creator.ID, chi.URLParam(r, "dealID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deal)
}
