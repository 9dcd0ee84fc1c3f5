package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/app"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/httpjson"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/ports"
)

type BatchesHandler struct {
	batches *app.BatchService
}

func NewBatchesHandler(batches *app.BatchService) *BatchesHandler {
	return &BatchesHandler{batches: batches}
}

func (h *BatchesHandler) Routes(r chi.Router) {
	r.Route("/batches", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/{id}/cancel", h.cancel)
	})
}

func (h *BatchesHandler) create(w http.ResponseWriter, r *http.Request) {
	var req app.StartBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Account == "" {
		httpjson.WriteError(w, http.StatusBadRequest, "missing account")
		return
	}
	if req.Folder == "" {
		httpjson.WriteError(w, http.StatusBadRequest, "missing folder")
		return
	}

	dto, err := h.batches.Start(r.Context(), req)
	if err != nil {
		writeCodedError(w, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, dto)
}

func (h *BatchesHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	httpjson.Write(w, http.StatusOK, h.batches.List(limit))
}

func (h *BatchesHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dto, err := h.batches.Get(id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, dto)
}

func (h *BatchesHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dto, err := h.batches.Cancel(id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			httpjson.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, dto)
}
