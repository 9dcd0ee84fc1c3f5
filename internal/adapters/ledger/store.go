// Package ledger persiste les plannings et publications par compte dans
// des documents JSON: schedules/@<account>.json et publishes/@<account>.json.
// Toutes les écritures passent par temp + rename; la migration entre les
// deux fichiers est journalisée pour survivre à un crash entre les étapes.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/domain"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/ports"
)

const (
	schedulesDir = "schedules"
	publishesDir = "publishes"
	journalExt   = ".migrating.json"
)

type Store struct {
	logger zerolog.Logger
	root   string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore crée les répertoires de ledgers et rejoue les journaux de
// migration laissés par un crash.
func NewStore(root string, logger zerolog.Logger) (*Store, error) {
	for _, dir := range []string{schedulesDir, publishesDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	s := &Store{logger: logger, root: root, locks: make(map[string]*sync.Mutex)}
	if err := s.recoverJournals(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) LoadSchedules(ctx context.Context, account string) ([]domain.ScheduleRecord, error) {
	lock := s.accountLock(account)
	lock.Lock()
	defer lock.Unlock()

	var records []domain.ScheduleRecord
	if err := readJSON(s.schedulePath(account), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) LoadPublishes(ctx context.Context, account string) ([]domain.PublishRecord, error) {
	lock := s.accountLock(account)
	lock.Lock()
	defer lock.Unlock()

	var records []domain.PublishRecord
	if err := readJSON(s.publishPath(account), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SaveSchedule ajoute un enregistrement au ledger schedules. Refuse avec
// ErrConflict toute identité vidéo déjà présente dans le ledger publishes
// du compte (blocage de ré-upload).
func (s *Store) SaveSchedule(ctx context.Context, rec domain.ScheduleRecord) error {
	lock := s.accountLock(rec.Account)
	lock.Lock()
	defer lock.Unlock()

	var published []domain.PublishRecord
	if err := readJSON(s.publishPath(rec.Account), &published); err != nil {
		return err
	}
	for _, p := range published {
		if p.VideoID == rec.VideoID {
			return fmt.Errorf("%w: %s already published for @%s", ports.ErrConflict, rec.VideoID, rec.Account)
		}
	}

	var records []domain.ScheduleRecord
	if err := readJSON(s.schedulePath(rec.Account), &records); err != nil {
		return err
	}
	records = append(records, rec)
	return writeJSONAtomic(s.schedulePath(rec.Account), records)
}

func (s *Store) IsAlreadyPublished(ctx context.Context, account, videoID string) (bool, error) {
	lock := s.accountLock(account)
	lock.Lock()
	defer lock.Unlock()

	var published []domain.PublishRecord
	if err := readJSON(s.publishPath(account), &published); err != nil {
		return false, err
	}
	for _, p := range published {
		if p.VideoID == videoID {
			return true, nil
		}
	}
	return false, nil
}

// journalEntry marque une migration en vol. Écrit avant de toucher aux
// deux ledgers, supprimé une fois les deux réécrits; au redémarrage, un
// journal présent est rejoué (la migration est idempotente).
type journalEntry struct {
	Record      domain.ScheduleRecord `json:"record"`
	PublishedAt time.Time             `json:"publishedAt"`
}

func (s *Store) Migrate(ctx context.Context, rec domain.ScheduleRecord, publishedAt time.Time) (domain.PublishRecord, error) {
	lock := s.accountLock(rec.Account)
	lock.Lock()
	defer lock.Unlock()

	var records []domain.ScheduleRecord
	if err := readJSON(s.schedulePath(rec.Account), &records); err != nil {
		return domain.PublishRecord{}, err
	}
	found := false
	for _, r := range records {
		if r.ID == rec.ID || (r.VideoID == rec.VideoID && r.ScheduleAt.Equal(rec.ScheduleAt)) {
			found = true
			break
		}
	}
	if !found {
		return domain.PublishRecord{}, fmt.Errorf("%w: schedule record for %s", ports.ErrNotFound, rec.VideoID)
	}

	if err := writeJSONAtomic(s.journalPath(rec.Account), journalEntry{Record: rec, PublishedAt: publishedAt}); err != nil {
		return domain.PublishRecord{}, err
	}

	pub, err := s.applyMigrationLocked(rec, publishedAt)
	if err != nil {
		return domain.PublishRecord{}, err
	}

	if err := os.Remove(s.journalPath(rec.Account)); err != nil && !os.IsNotExist(err) {
		return domain.PublishRecord{}, err
	}
	return pub, nil
}

// applyMigrationLocked réécrit les deux ledgers. Idempotent: rejouable tel
// quel depuis le journal.
func (s *Store) applyMigrationLocked(rec domain.ScheduleRecord, publishedAt time.Time) (domain.PublishRecord, error) {
	pub := domain.PublishRecord{
		Account:     rec.Account,
		VideoID:     rec.VideoID,
		File:        rec.File,
		Caption:     rec.Caption,
		PublishedAt: publishedAt,
		ScheduledAt: rec.ScheduleAt,
	}

	var published []domain.PublishRecord
	if err := readJSON(s.publishPath(rec.Account), &published); err != nil {
		return domain.PublishRecord{}, err
	}
	exists := false
	for _, p := range published {
		if p.VideoID == pub.VideoID && p.ScheduledAt.Equal(pub.ScheduledAt) {
			exists = true
			break
		}
	}
	if !exists {
		published = append(published, pub)
		if err := writeJSONAtomic(s.publishPath(rec.Account), published); err != nil {
			return domain.PublishRecord{}, err
		}
	}

	var records []domain.ScheduleRecord
	if err := readJSON(s.schedulePath(rec.Account), &records); err != nil {
		return domain.PublishRecord{}, err
	}
	kept := records[:0]
	for _, r := range records {
		if r.ID == rec.ID || (r.VideoID == rec.VideoID && r.ScheduleAt.Equal(rec.ScheduleAt)) {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) != len(records) {
		if err := writeJSONAtomic(s.schedulePath(rec.Account), kept); err != nil {
			return domain.PublishRecord{}, err
		}
	}
	return pub, nil
}

func (s *Store) recoverJournals() error {
	matches, err := filepath.Glob(filepath.Join(s.root, schedulesDir, "*"+journalExt))
	if err != nil {
		return err
	}
	for _, path := range matches {
		var entry journalEntry
		if err := readJSON(path, &entry); err != nil {
			return fmt.Errorf("replay journal %s: %w", path, err)
		}
		if entry.Record.Account == "" {
			// Journal vide ou tronqué: la migration n'avait pas commencé.
			_ = os.Remove(path)
			continue
		}
		if _, err := s.applyMigrationLocked(entry.Record, entry.PublishedAt); err != nil {
			return fmt.Errorf("replay journal %s: %w", path, err)
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		s.logger.Warn().Str("account", entry.Record.Account).Str("video_id", entry.Record.VideoID).
			Msg("interrupted migration replayed")
	}
	return nil
}

func (s *Store) accountLock(account string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[account]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[account] = lock
	}
	return lock
}

func (s *Store) schedulePath(account string) string {
	return filepath.Join(s.root, schedulesDir, accountFile(account))
}

func (s *Store) publishPath(account string) string {
	return filepath.Join(s.root, publishesDir, accountFile(account))
}

func (s *Store) journalPath(account string) string {
	return filepath.Join(s.root, schedulesDir, "@"+strings.TrimPrefix(account, "@")+journalExt)
}

func accountFile(account string) string {
	return "@" + strings.TrimPrefix(account, "@") + ".json"
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("corrupt ledger %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
