package httpapi

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/app"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/buildinfo"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/httpjson"
)

const defaultRequestTimeout = 30 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, buildinfo.Current())
}

func accessLogFn(r *http.Request, status, size int, duration time.Duration) {
	logger := hlog.FromRequest(r)
	logger.Info().
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("http")
}

// writeCodedError traduit les codes d'erreur applicatifs en statuts HTTP.
func writeCodedError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch app.ErrorCode(err) {
	case app.CodeInvalidRule:
		status = http.StatusBadRequest
	case app.CodeDirectoryNotFound:
		status = http.StatusNotFound
	case app.CodeCapacity:
		status = http.StatusUnprocessableEntity
	case app.CodeDuplicate:
		status = http.StatusConflict
	}
	httpjson.WriteError(w, status, err.Error())
}
