package app

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/domain"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/ports"
)

// BatchService pilote les batchs lancés via l'API. Le registre est en
// mémoire: un batch est éphémère, seul son effet (les ledgers) est durable.
type BatchService struct {
	logger     zerolog.Logger
	orch       *Orchestrator
	scanner    *FileScanner
	reconciler *Reconciler
	bus        ports.EventBus

	mu      sync.Mutex
	batches map[string]*batchEntry
}

type batchEntry struct {
	dto    BatchDTO
	cancel context.CancelFunc
}

type BatchDTO struct {
	ID        string            `json:"id"`
	Account   string            `json:"account"`
	Folder    string            `json:"folder"`
	State     domain.BatchState `json:"state"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Result    *BatchResult      `json:"result,omitempty"`
	ErrorCode string            `json:"errorCode,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type StartBatchRequest struct {
	Account string      `json:"account"`
	Folder  string      `json:"folder"`
	Rule    domain.Rule `json:"rule"`
	Window  BatchWindow `json:"window"`
	Limit   int         `json:"limit,omitempty"` // 0 = toutes les vidéos du dossier
}

func NewBatchService(logger zerolog.Logger, orch *Orchestrator, scanner *FileScanner, reconciler *Reconciler, bus ports.EventBus) *BatchService {
	return &BatchService{
		logger:     logger,
		orch:       orch,
		scanner:    scanner,
		reconciler: reconciler,
		bus:        bus,
		batches:    make(map[string]*batchEntry),
	}
}

// Start valide la demande, scanne le dossier, puis lance le batch en
// arrière-plan. Les erreurs de configuration et de capacité sont renvoyées
// avant tout effet de bord.
func (s *BatchService) Start(ctx context.Context, req StartBatchRequest) (BatchDTO, error) {
	if err := req.Rule.Validate(); err != nil {
		return BatchDTO{}, coded(CodeInvalidRule, "batch rejected", err)
	}

	videos, err := s.scanner.Scan(req.Folder)
	if err != nil {
		return BatchDTO{}, err
	}
	if req.Limit > 0 && len(videos) > req.Limit {
		videos = videos[:req.Limit]
	}

	now := time.Now().UTC()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	entry := &batchEntry{
		dto: BatchDTO{
			ID:        xid.New().String(),
			Account:   req.Account,
			Folder:    req.Folder,
			State:     domain.BatchQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
	}

	s.mu.Lock()
	s.batches[entry.dto.ID] = entry
	s.mu.Unlock()
	s.publishBatch("batch.created", entry.dto)

	go s.run(runCtx, entry.dto.ID, videos, req)

	return entry.dto, nil
}

func (s *BatchService) run(ctx context.Context, id string, videos []domain.Video, req StartBatchRequest) {
	s.transition(id, domain.BatchRunning, nil, "", "")
	s.publishBatch("batch.started", s.mustGet(id))

	result, err := s.orch.Run(ctx, videos, req.Account, req.Rule, req.Window)
	switch {
	case ctx.Err() != nil:
		s.transition(id, domain.BatchCanceled, &result, CodeCanceled, "canceled by operator")
		s.publishBatch("batch.canceled", s.mustGet(id))
	case err != nil:
		s.transition(id, domain.BatchFailed, &result, ErrorCode(err), err.Error())
		s.publishBatch("batch.failed", s.mustGet(id))
	default:
		s.transition(id, domain.BatchCompleted, &result, "", "")
		s.publishBatch("batch.completed", s.mustGet(id))
		// Réconciliation post-batch, best-effort.
		if s.reconciler != nil {
			if _, err := s.reconciler.ReconcileAccount(ctx, req.Account); err != nil {
				s.logger.Warn().Err(err).Str("account", req.Account).Msg("post-batch reconciliation failed")
			}
		}
	}
}

func (s *BatchService) Get(id string) (BatchDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.batches[id]
	if !ok {
		return BatchDTO{}, ErrNotFound
	}
	return entry.dto, nil
}

func (s *BatchService) List(limit int) []BatchDTO {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]BatchDTO, 0, len(s.batches))
	for _, e := range s.batches {
		out = append(out, e.dto)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Cancel demande l'arrêt du batch. L'orchestrateur ne coupe jamais une
// vidéo en plein upload: l'arrêt prend effet entre deux items.
func (s *BatchService) Cancel(id string) (BatchDTO, error) {
	s.mu.Lock()
	entry, ok := s.batches[id]
	if !ok {
		s.mu.Unlock()
		return BatchDTO{}, ErrNotFound
	}
	if entry.dto.State.IsTerminal() {
		dto := entry.dto
		s.mu.Unlock()
		return dto, nil
	}
	entry.cancel()
	dto := entry.dto
	s.mu.Unlock()

	s.logger.Info().Str("batch_id", id).Msg("batch cancel requested")
	return dto, nil
}

func (s *BatchService) transition(id string, next domain.BatchState, result *BatchResult, code, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.batches[id]
	if !ok {
		return
	}
	if !domain.BatchCanTransition(entry.dto.State, next) {
		return
	}
	entry.dto.State = next
	entry.dto.UpdatedAt = time.Now().UTC()
	entry.dto.Result = result
	entry.dto.ErrorCode = code
	entry.dto.Error = msg
}

func (s *BatchService) mustGet(id string) BatchDTO {
	dto, _ := s.Get(id)
	return dto
}

func (s *BatchService) publishBatch(topic string, dto BatchDTO) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(dto)
	if err != nil {
		return
	}
	s.bus.Publish(topic, payload)
}
