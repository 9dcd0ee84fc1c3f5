package ports

import (
	"context"
	"time"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/domain"
)

// LedgerStore est la persistance par compte des plannings et des
// publications confirmées. Toutes les écritures doivent être atomiques
// (temp + rename): un crash en cours d'écriture ne doit jamais laisser un
// ledger à moitié écrit.
type LedgerStore interface {
	LoadSchedules(ctx context.Context, account string) ([]domain.ScheduleRecord, error)
	// SaveSchedule renvoie ErrConflict si l'identité vidéo figure déjà dans
	// le ledger publishes du compte.
	SaveSchedule(ctx context.Context, rec domain.ScheduleRecord) error
	LoadPublishes(ctx context.Context, account string) ([]domain.PublishRecord, error)
	// Migrate retire l'entrée du ledger schedules et l'ajoute au ledger
	// publishes en une transaction logique. Un crash entre les deux étapes
	// doit être récupérable au prochain chargement.
	Migrate(ctx context.Context, rec domain.ScheduleRecord, publishedAt time.Time) (domain.PublishRecord, error)
	// IsAlreadyPublished ne reflète que l'état durablement commité.
	IsAlreadyPublished(ctx context.Context, account, videoID string) (bool, error)
}
