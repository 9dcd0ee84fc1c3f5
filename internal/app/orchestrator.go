package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/domain"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/ports"
)

type OrchestratorOptions struct {
	// MaxAttempts borne les tentatives par vidéo (première incluse).
	MaxAttempts int
	// RetryInterval est l'intervalle initial du backoff exponentiel.
	RetryInterval time.Duration
	// BetweenItems est la pause entre deux vidéos d'un même batch.
	BetweenItems time.Duration
}

func DefaultOrchestratorOptions() OrchestratorOptions {
	return OrchestratorOptions{
		MaxAttempts:   3,
		RetryInterval: 5 * time.Second,
		BetweenItems:  3 * time.Second,
	}
}

// Orchestrator déroule un batch: dédup contre les ledgers, assignation des
// créneaux, pilotage du workflow d'upload, écriture durable après chaque
// succès. Les opérations d'un même compte sont strictement sérialisées.
type Orchestrator struct {
	logger  zerolog.Logger
	slots   *SlotGenerator
	ledger  ports.LedgerStore
	auto    ports.Automation
	bus     ports.EventBus
	limiter *SessionLimiter
	opts    OrchestratorOptions
}

func NewOrchestrator(logger zerolog.Logger, slots *SlotGenerator, ledger ports.LedgerStore, auto ports.Automation, bus ports.EventBus, limiter *SessionLimiter, opts OrchestratorOptions) *Orchestrator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOrchestratorOptions().MaxAttempts
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultOrchestratorOptions().RetryInterval
	}
	if limiter == nil {
		limiter = NewSessionLimiter(1)
	}
	return &Orchestrator{
		logger:  logger,
		slots:   slots,
		ledger:  ledger,
		auto:    auto,
		bus:     bus,
		limiter: limiter,
		opts:    opts,
	}
}

// BatchWindow délimite la plage de dates et la fenêtre quotidienne d'un
// batch.
type BatchWindow struct {
	RangeStart time.Time        `json:"rangeStart"`
	RangeEnd   time.Time        `json:"rangeEnd"`
	DayStart   domain.TimeOfDay `json:"dayStart"`
	DayEnd     domain.TimeOfDay `json:"dayEnd"`
}

type ItemResult struct {
	File       string             `json:"file"`
	VideoID    string             `json:"videoId"`
	Status     domain.VideoStatus `json:"status"`
	ScheduleAt *time.Time         `json:"scheduleAt,omitempty"`
	ErrorCode  string             `json:"errorCode,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type BatchResult struct {
	Account   string       `json:"account"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Items     []ItemResult `json:"items"`
}

// Run traite les vidéos dans l'ordre des créneaux. La défaillance d'une
// vidéo n'interrompt pas le batch; seule une erreur de persistance le fait,
// car continuer risquerait une divergence ledger/réalité. L'annulation est
// vérifiée en tête de boucle: la vidéo en cours atteint toujours un état
// terminal avant l'arrêt.
func (o *Orchestrator) Run(ctx context.Context, videos []domain.Video, account string, rule domain.Rule, win BatchWindow) (BatchResult, error) {
	res := BatchResult{Account: account}

	if err := rule.Validate(); err != nil {
		return res, coded(CodeInvalidRule, "batch rejected", err)
	}

	if err := o.limiter.Acquire(ctx, account); err != nil {
		return res, err
	}
	defer o.limiter.Release(account)

	// Dédup d'abord: une vidéo déjà publiée ou déjà planifiée est écartée
	// avant de compter les créneaux nécessaires. Relancer un batch sur le
	// même dossier ne doit jamais réserver un second créneau.
	scheduled, err := o.ledger.LoadSchedules(ctx, account)
	if err != nil {
		return res, coded(CodePersistence, "schedule ledger unreadable", err)
	}
	booked := make(map[string]struct{}, len(scheduled))
	for _, r := range scheduled {
		booked[r.VideoID] = struct{}{}
	}

	pending := make([]domain.Video, 0, len(videos))
	for _, v := range videos {
		id := domain.VideoIdentity(v.Path)
		published, err := o.ledger.IsAlreadyPublished(ctx, account, id)
		if err != nil {
			return res, coded(CodePersistence, "publish ledger unreadable", err)
		}
		_, alreadyBooked := booked[id]
		if published || alreadyBooked {
			reason := "already scheduled, skipped"
			if published {
				v.Status = domain.VideoPublished
				reason = "already published, skipped"
			}
			res.Skipped++
			res.Items = append(res.Items, ItemResult{
				File: filepath.Base(v.Path), VideoID: id,
				Status: v.Status, ErrorCode: CodeDuplicate,
				Error: reason,
			})
			o.publish("upload.skipped", account, ItemResult{File: filepath.Base(v.Path), VideoID: id, Status: v.Status})
			continue
		}
		pending = append(pending, v)
	}

	if len(pending) == 0 {
		o.logger.Info().Str("account", account).Msg("nothing to upload")
		return res, nil
	}

	slots, err := o.slots.Generate(len(pending), win.RangeStart, win.RangeEnd, win.DayStart, win.DayEnd, rule)
	if err != nil {
		return res, err
	}

	sess, err := o.auto.OpenUploadSurface(ctx, account)
	if err != nil {
		return res, coded(CodeSessionUnavailable, "upload surface unavailable for @"+account, err)
	}
	defer func() { _ = sess.Close() }()

	rateLimited := false
	for i := range pending {
		v := &pending[i]
		id := domain.VideoIdentity(v.Path)
		file := filepath.Base(v.Path)

		// Annulation entre deux vidéos uniquement.
		if ctx.Err() != nil || rateLimited {
			code := CodeCanceled
			if rateLimited {
				code = CodePlatformRejection
			}
			res.Skipped++
			res.Items = append(res.Items, ItemResult{
				File: file, VideoID: id, Status: domain.VideoDiscovered,
				ErrorCode: code, Error: "batch stopped before this item",
			})
			continue
		}

		slot := slots[i]
		slot.Status = domain.SlotConsumed
		v.Slot = &slot
		v.Status = domain.VideoSlotted

		item := ItemResult{File: file, VideoID: id, ScheduleAt: &slot.At}
		o.publish("upload.started", account, item)

		v.Status = domain.VideoUploading
		uploadErr := o.uploadOne(ctx, sess, v, slot.At)
		if uploadErr != nil {
			// Le créneau raté est abandonné, jamais réassigné: le
			// réassigner décalerait l'ordre des créneaux suivants.
			v.Status = domain.VideoFailed
			item.Status = domain.VideoFailed
			item.ErrorCode = ErrorCode(uploadErr)
			if item.ErrorCode == "" {
				item.ErrorCode = CodeFailedItem
			}
			item.Error = uploadErr.Error()
			res.Failed++
			res.Items = append(res.Items, item)
			o.publish("upload.failed", account, item)
			o.logger.Error().Err(uploadErr).Str("account", account).Str("file", file).Msg("upload abandoned")

			if errors.Is(uploadErr, ports.ErrRateLimited) {
				rateLimited = true
			}
			continue
		}

		rec := domain.ScheduleRecord{
			ID:         xid.New().String(),
			Account:    account,
			VideoID:    id,
			File:       file,
			Caption:    v.Caption,
			ScheduleAt: slot.At,
			CreatedAt:  time.Now().UTC(),
			Status:     domain.RecordScheduled,
		}
		if err := o.ledger.SaveSchedule(ctx, rec); err != nil {
			// Un upload confirmé qu'on ne peut pas enregistrer: on
			// s'arrête plutôt que de laisser diverger ledger et réalité.
			v.Status = domain.VideoFailed
			item.Status = domain.VideoFailed
			item.ErrorCode = CodePersistence
			item.Error = err.Error()
			res.Failed++
			res.Items = append(res.Items, item)
			return res, coded(CodePersistence, "schedule ledger write failed", err)
		}

		v.Status = domain.VideoScheduled
		item.Status = domain.VideoScheduled
		res.Succeeded++
		res.Items = append(res.Items, item)
		o.publish("upload.scheduled", account, item)
		o.logger.Info().Str("account", account).Str("file", file).Time("at", slot.At).Msg("video scheduled")

		if i < len(pending)-1 {
			if err := sess.Reset(ctx); err != nil {
				o.logger.Warn().Err(err).Msg("upload page reset failed")
			}
			if o.opts.BetweenItems > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(o.opts.BetweenItems):
				}
			}
		}
	}

	o.logger.Info().Str("account", account).
		Int("succeeded", res.Succeeded).Int("failed", res.Failed).Int("skipped", res.Skipped).
		Msg("batch finished")
	return res, nil
}

// uploadOne pousse une vidéo à travers le workflow externe, avec retries et
// backoff borné pour les erreurs transitoires. Les refus de la plateforme
// (horaire rejeté, copyright, rate limit) ne sont pas réessayés.
func (o *Orchestrator) uploadOne(ctx context.Context, sess ports.UploadSession, v *domain.Video, at time.Time) error {
	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			if err := sess.Reset(ctx); err != nil {
				return coded(CodeTransientUpload, "upload page reset failed", err)
			}
		}

		if err := sess.AttachFile(ctx, v.Path); err != nil {
			return coded(CodeTransientUpload, "attach failed", err)
		}
		if err := sess.SetCaption(ctx, v.Caption); err != nil {
			return coded(CodeTransientUpload, "caption failed", err)
		}
		if err := sess.SetScheduleTime(ctx, at); err != nil {
			if errors.Is(err, ports.ErrUnsupportedTime) {
				return backoff.Permanent(coded(CodePlatformRejection, "schedule time rejected", err))
			}
			return coded(CodeTransientUpload, "schedule time failed", err)
		}
		flagged, err := sess.DetectCopyrightWarning(ctx)
		if err != nil {
			return coded(CodeTransientUpload, "copyright check failed", err)
		}
		if flagged {
			return backoff.Permanent(coded(CodePlatformRejection, "copyright warning on "+filepath.Base(v.Path), nil))
		}
		if _, err := sess.Submit(ctx); err != nil {
			if errors.Is(err, ports.ErrRateLimited) {
				return backoff.Permanent(coded(CodePlatformRejection, "rate limited", err))
			}
			return coded(CodeTransientUpload, "submit failed", err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.opts.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(o.opts.MaxAttempts-1)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		o.logger.Warn().Err(err).Dur("retry_in", wait).Str("file", filepath.Base(v.Path)).Msg("upload attempt failed")
	})
	if err == nil {
		return nil
	}
	if ErrorCode(err) == CodePlatformRejection {
		return err
	}
	return coded(CodeFailedItem, fmt.Sprintf("gave up after %d attempts", attempt), err)
}

func (o *Orchestrator) publish(topic, account string, item ItemResult) {
	if o.bus == nil {
		return
	}
	payload, err := json.Marshal(struct {
		Account string `json:"account"`
		ItemResult
	}{Account: account, ItemResult: item})
	if err != nil {
		return
	}
	o.bus.Publish(topic, payload)
}
