package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/domain"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/httpjson"
)

type scanRequest struct {
	Folder string `json:"folder"`
}

type scanResponse struct {
	Videos     []domain.Video   `json:"videos"`
	Duplicates [][]domain.Video `json:"duplicates,omitempty"`
}

// handleScan inspecte un dossier sans rien lancer: la réponse permet de
// vérifier les légendes et les doublons avant de créer un batch.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Folder == "" {
		httpjson.WriteError(w, http.StatusBadRequest, "missing folder")
		return
	}

	videos, err := s.scanner.Scan(req.Folder)
	if err != nil {
		writeCodedError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, scanResponse{
		Videos:     videos,
		Duplicates: s.scanner.DuplicateGroups(videos),
	})
}
