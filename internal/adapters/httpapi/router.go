package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/app"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/ports"
)

type Server struct {
	logger   zerolog.Logger
	batches  *app.BatchService
	scanner  *app.FileScanner
	slots    *app.SlotGenerator
	ledger   ports.LedgerStore
	sessions ports.SessionStore
	bus      ports.EventBus
}

func NewServer(logger zerolog.Logger, batches *app.BatchService, scanner *app.FileScanner, slots *app.SlotGenerator, ledger ports.LedgerStore, sessions ports.SessionStore, bus ports.EventBus) *Server {
	return &Server{logger: logger, batches: batches, scanner: scanner, slots: slots, ledger: ledger, sessions: sessions, bus: bus}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("request_id", "Request-Id"))
	r.Use(hlog.RemoteAddrHandler("remote_ip"))
	r.Use(hlog.UserAgentHandler("user_agent"))
	r.Use(hlog.AccessHandler(accessLogFn))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)
		r.Get("/openapi.json", s.handleOpenAPI)
		r.Get("/events", s.handleEvents)

		r.Get("/accounts", s.handleAccounts)
		r.Post("/scan", s.handleScan)
		r.Post("/schedule/preview", s.handlePreview)

		if s.batches != nil {
			NewBatchesHandler(s.batches).Routes(r)
		}
		if s.ledger != nil {
			NewLedgersHandler(s.ledger).Routes(r)
		}
	})

	return r
}
