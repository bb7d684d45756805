package handler

import (
	"encoding/json"
	"net/http"

	"loadboard/internal/loads/service"
	httputil "loadboard/pkg/http"
	"loadboard/pkg/logger"
	"loadboard/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type LoadHandler struct {
	service service.LoadService
	log     *logger.Logger
}

func NewLoadHandler(service service.LoadService, log *logger.Logger) *LoadHandler {
	return &LoadHandler{
		service: service,
		log:     log,
	}
}

func (h *LoadHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var load model.Load
	if err := json.NewDecoder(r.Body).Decode(&load); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), &load); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, load); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *LoadHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	load, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, load); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

func (h *LoadHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "error", writeErr)
		}
		return
	}

	query := r.URL.Query()
	shipperID := query.Get("shipper_id")
	status := model.LoadStatus(query.Get("status"))

	loads, total, err := h.service.GetAll(r.Context(), shipperID, status, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, loads, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "error", err)
	}
}

func (h *LoadHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	if err := h.service.Cancel(r.Context(), id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "error", writeErr)
		}
		return
	}

	load, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, load); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "error", err)
	}
}

func (h *LoadHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/loads", h.Create)
	router.GET("/api/v1/loads", h.GetAll)
	router.GET("/api/v1/loads/id/:id", h.GetByID)
	router.POST("/api/v1/loads/id/:id/cancel", h.Cancel)
}
