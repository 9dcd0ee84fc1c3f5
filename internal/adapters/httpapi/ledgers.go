package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/domain"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/httpjson"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/ports"
)

type LedgersHandler struct {
	ledger ports.LedgerStore
}

func NewLedgersHandler(ledger ports.LedgerStore) *LedgersHandler {
	return &LedgersHandler{ledger: ledger}
}

func (h *LedgersHandler) Routes(r chi.Router) {
	r.Route("/ledgers/{account}", func(r chi.Router) {
		r.Get("/schedules", h.schedules)
		r.Get("/publishes", h.publishes)
	})
}

func (h *LedgersHandler) schedules(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	records, err := h.ledger.LoadSchedules(r.Context(), account)
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []domain.ScheduleRecord{}
	}
	httpjson.Write(w, http.StatusOK, records)
}

func (h *LedgersHandler) publishes(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	records, err := h.ledger.LoadPublishes(r.Context(), account)
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []domain.PublishRecord{}
	}
	httpjson.Write(w, http.StatusOK, records)
}
