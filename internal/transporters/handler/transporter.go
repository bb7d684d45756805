package handler

import (
	"encoding/json"
	"net/http"

	"loadboard/internal/transporters/service"
	httputil "loadboard/pkg/http"
	"loadboard/pkg/logger"
	"loadboard/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type TransporterHandler struct {
	service service.TransporterService
	log     *logger.Logger
}

func NewTransporterHandler(service service.TransporterService, log *logger.Logger) *TransporterHandler {
	return &TransporterHandler{
		service: service,
		log:     log,
	}
}

func (h *TransporterHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var transporter model.Transporter
	if err := json.NewDecoder(r.Body).Decode(&transporter); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), &transporter); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, transporter); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *TransporterHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	transporter, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, transporter); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

func (h *TransporterHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "error", writeErr)
		}
		return
	}

	transporters, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, transporters, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "error", err)
	}
}

type updateTrucksRequest struct {
	TruckType string `json:"truck_type"`
	Count     int    `json:"count"`
}

func (h *TransporterHandler) UpdateTrucks(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req updateTrucksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "UpdateTrucks", "error", writeErr)
		}
		return
	}

	capacity, err := h.service.UpdateTrucks(r.Context(), ps.ByName("id"), req.TruckType, req.Count)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "UpdateTrucks", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, capacity); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateTrucks", "error", err)
	}
}

func (h *TransporterHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/transporters", h.Create)
	router.GET("/api/v1/transporters", h.GetAll)
	router.GET("/api/v1/transporters/id/:id", h.GetByID)
	router.PUT("/api/v1/transporters/id/:id/capacity", h.UpdateTrucks)
}
