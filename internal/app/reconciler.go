package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/domain"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/ports"
)

// Reconciler fait passer les entrées "scheduled" confirmées en ligne vers
// le ledger publishes. Il tourne après chaque batch et périodiquement en
// tâche de fond.
type Reconciler struct {
	logger   zerolog.Logger
	ledger   ports.LedgerStore
	auto     ports.Automation
	sessions ports.SessionStore
	bus      ports.EventBus

	TickInterval time.Duration
	// Grace est la marge après l'horaire prévu avant de tenter une
	// confirmation: la plateforme publie rarement à la seconde près.
	Grace time.Duration
}

func NewReconciler(logger zerolog.Logger, ledger ports.LedgerStore, auto ports.Automation, sessions ports.SessionStore, bus ports.EventBus) *Reconciler {
	return &Reconciler{
		logger:       logger,
		ledger:       ledger,
		auto:         auto,
		sessions:     sessions,
		bus:          bus,
		TickInterval: 15 * time.Minute,
		Grace:        5 * time.Minute,
	}
}

func (r *Reconciler) Run(ctx context.Context) {
	interval := r.TickInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("reconciler stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	if r.sessions == nil {
		return
	}
	accounts, err := r.sessions.ListAccounts()
	if err != nil {
		r.logger.Error().Err(err).Msg("account listing failed")
		return
	}
	for _, account := range accounts {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := r.ReconcileAccount(ctx, account); err != nil {
			r.logger.Warn().Err(err).Str("account", account).Msg("reconciliation failed")
		}
	}
}

// ReconcileAccount migre les entrées arrivées à échéance dont la mise en
// ligne est confirmée par le site. Sans collaborateur navigateur, une
// entrée échue depuis Grace est considérée publiée (comportement hérité).
// Renvoie le nombre d'entrées migrées.
func (r *Reconciler) ReconcileAccount(ctx context.Context, account string) (int, error) {
	records, err := r.ledger.LoadSchedules(ctx, account)
	if err != nil {
		return 0, coded(CodePersistence, "schedule ledger unreadable", err)
	}

	now := time.Now()
	migrated := 0
	for _, rec := range records {
		if rec.ScheduleAt.Add(r.Grace).After(now) {
			continue
		}

		if r.auto != nil {
			live, err := r.auto.VerifyPublished(ctx, account, rec.VideoID)
			if err != nil {
				r.logger.Warn().Err(err).Str("video_id", rec.VideoID).Msg("publish check failed, keeping scheduled")
				continue
			}
			if !live {
				continue
			}
		}

		pub, err := r.ledger.Migrate(ctx, rec, rec.ScheduleAt)
		if err != nil {
			return migrated, coded(CodePersistence, "ledger migration failed", err)
		}
		migrated++
		r.publish(pub)
	}

	if migrated > 0 {
		r.logger.Info().Str("account", account).Int("migrated", migrated).Msg("records reconciled")
	}
	return migrated, nil
}

func (r *Reconciler) publish(pub domain.PublishRecord) {
	if r.bus == nil {
		return
	}
	payload, err := json.Marshal(pub)
	if err != nil {
		return
	}
	r.bus.Publish("record.published", payload)
}
