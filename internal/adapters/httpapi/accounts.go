package httpapi

import (
	"net/http"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/httpjson"
)

// handleAccounts liste les comptes pour lesquels un export de cookies
// existe. Le handle est renvoyé sans le préfixe @ du fichier.
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		httpjson.Write(w, http.StatusOK, []string{})
		return
	}
	accounts, err := s.sessions.ListAccounts()
	if err != nil {
		httpjson.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if accounts == nil {
		accounts = []string{}
	}
	httpjson.Write(w, http.StatusOK, accounts)
}
