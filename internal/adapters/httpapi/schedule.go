package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/app"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/domain"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/httpjson"
)

type previewRequest struct {
	Count  int             `json:"count"`
	Rule   domain.Rule     `json:"rule"`
	Window app.BatchWindow `json:"window"`
}

type previewResponse struct {
	Slots []domain.Slot `json:"slots"`
}

// handlePreview calcule les créneaux qu'un batch obtiendrait, sans toucher
// ni aux ledgers ni au navigateur.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Count <= 0 {
		httpjson.WriteError(w, http.StatusBadRequest, "count must be positive")
		return
	}

	slots, err := s.slots.Generate(req.Count, req.Window.RangeStart, req.Window.RangeEnd, req.Window.DayStart, req.Window.DayEnd, req.Rule)
	if err != nil {
		writeCodedError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, previewResponse{Slots: slots})
}
