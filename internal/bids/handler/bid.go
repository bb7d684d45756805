package handler

import (
	"encoding/json"
	"net/http"

	"loadboard/internal/bids/service"
	httputil "loadboard/pkg/http"
	"loadboard/pkg/logger"
	"loadboard/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BidHandler struct {
	service service.BidService
	log     *logger.Logger
}

func NewBidHandler(service service.BidService, log *logger.Logger) *BidHandler {
	return &BidHandler{
		service: service,
		log:     log,
	}
}

func (h *BidHandler) Submit(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var bid model.Bid
	if err := json.NewDecoder(r.Body).Decode(&bid); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Submit", "error", writeErr)
		}
		return
	}

	if err := h.service.Submit(r.Context(), &bid); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Submit", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, bid); err != nil {
		h.log.Error("failed to write created response", "handler", "Submit", "error", err)
	}
}

func (h *BidHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	bid, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, bid); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

func (h *BidHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "error", writeErr)
		}
		return
	}

	query := r.URL.Query()
	filter := model.BidFilter{
		LoadID:        query.Get("load_id"),
		TransporterID: query.Get("transporter_id"),
		Status:        model.BidStatus(query.Get("status")),
	}

	bids, total, err := h.service.GetAll(r.Context(), filter, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, bids, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "error", err)
	}
}

func (h *BidHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	bid, err := h.service.Reject(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Reject", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, bid); err != nil {
		h.log.Error("failed to write success response", "handler", "Reject", "error", err)
	}
}

// Ranked serves the load's pending bids ordered by score, best first.
func (h *BidHandler) Ranked(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	bids, err := h.service.RankForLoad(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Ranked", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, bids); err != nil {
		h.log.Error("failed to write success response", "handler", "Ranked", "error", err)
	}
}

func (h *BidHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bids", h.Submit)
	router.GET("/api/v1/bids", h.GetAll)
	router.GET("/api/v1/bids/id/:id", h.GetByID)
	router.POST("/api/v1/bids/id/:id/reject", h.Reject)
	router.GET("/api/v1/loads/id/:id/bids/ranked", h.Ranked)
}
