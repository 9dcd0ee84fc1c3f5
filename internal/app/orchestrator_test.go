package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/adapters/ledger"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/domain"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/ports"
)

type fakeSession struct {
	mu      sync.Mutex
	current string
	resets  int

	// submitErrs: nom de base -> erreurs à renvoyer, consommées une par une.
	submitErrs map[string][]error
}

func (s *fakeSession) AttachFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = filepath.Base(path)
	return nil
}

func (s *fakeSession) SetCaption(ctx context.Context, text string) error { return nil }

func (s *fakeSession) SetScheduleTime(ctx context.Context, at time.Time) error { return nil }

func (s *fakeSession) DetectCopyrightWarning(ctx context.Context) (bool, error) { return false, nil }

func (s *fakeSession) Submit(ctx context.Context) (ports.Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errs := s.submitErrs[s.current]; len(errs) > 0 {
		err := errs[0]
		s.submitErrs[s.current] = errs[1:]
		if err != nil {
			return ports.Confirmation{}, err
		}
	}
	return ports.Confirmation{At: time.Now(), Message: "ok"}, nil
}

func (s *fakeSession) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	return nil
}

func (s *fakeSession) Close() error { return nil }

type fakeAuto struct {
	sess    *fakeSession
	openErr error
}

func (f *fakeAuto) OpenUploadSurface(ctx context.Context, account string) (ports.UploadSession, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.sess, nil
}

func (f *fakeAuto) VerifyPublished(ctx context.Context, account, videoID string) (bool, error) {
	return true, nil
}

func testVideos(names ...string) []domain.Video {
	videos := make([]domain.Video, 0, len(names))
	for _, n := range names {
		videos = append(videos, domain.Video{
			Path:    filepath.Join("/videos", n),
			Caption: domain.VideoIdentity(n),
			Status:  domain.VideoDiscovered,
		})
	}
	return videos
}

func testWindow() BatchWindow {
	return BatchWindow{
		RangeStart: time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC),
		DayStart:   domain.TimeOfDay{Hour: 9},
		DayEnd:     domain.TimeOfDay{Hour: 17},
	}
}

func newTestOrchestrator(t *testing.T, store ports.LedgerStore, auto ports.Automation) *Orchestrator {
	t.Helper()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGenerator(t, 1, now)
	opts := OrchestratorOptions{MaxAttempts: 2, RetryInterval: time.Millisecond, BetweenItems: 0}
	return NewOrchestrator(zerolog.Nop(), g, store, auto, nil, nil, opts)
}

func newTestLedger(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.NewStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestOrchestrator_SchedulesAllVideos(t *testing.T) {
	store := newTestLedger(t)
	auto := &fakeAuto{sess: &fakeSession{submitErrs: map[string][]error{}}}
	o := newTestOrchestrator(t, store, auto)

	res, err := o.Run(context.Background(), testVideos("a.mp4", "b.mp4"), "acct", testRule(), testWindow())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Succeeded != 2 || res.Failed != 0 || res.Skipped != 0 {
		t.Fatalf("counts: %+v", res)
	}

	records, err := store.LoadSchedules(context.Background(), "acct")
	if err != nil {
		t.Fatalf("LoadSchedules: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("want 2 schedule records, got %d", len(records))
	}
	// La persistance suit chaque succès, dans l'ordre des créneaux.
	if !records[1].ScheduleAt.After(records[0].ScheduleAt) {
		t.Fatalf("records out of slot order: %v then %v", records[0].ScheduleAt, records[1].ScheduleAt)
	}
	if records[0].VideoID != "a" || records[1].VideoID != "b" {
		t.Fatalf("video ids: %s, %s", records[0].VideoID, records[1].VideoID)
	}
}

func TestOrchestrator_SkipsAlreadyPublished(t *testing.T) {
	store := newTestLedger(t)
	ctx := context.Background()

	rec := domain.ScheduleRecord{
		ID: "r1", Account: "acct", VideoID: "b", File: "b.mp4",
		ScheduleAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		Status:     domain.RecordScheduled,
	}
	if err := store.SaveSchedule(ctx, rec); err != nil {
		t.Fatalf("SaveSchedule: %v", err)
	}
	if _, err := store.Migrate(ctx, rec, time.Now()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	auto := &fakeAuto{sess: &fakeSession{submitErrs: map[string][]error{}}}
	o := newTestOrchestrator(t, store, auto)

	res, err := o.Run(ctx, testVideos("a.mp4", "b.mp4"), "acct", testRule(), testWindow())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Succeeded != 1 || res.Skipped != 1 {
		t.Fatalf("counts: %+v", res)
	}

	var skipped *ItemResult
	for i := range res.Items {
		if res.Items[i].VideoID == "b" {
			skipped = &res.Items[i]
		}
	}
	if skipped == nil || skipped.ErrorCode != CodeDuplicate {
		t.Fatalf("expected duplicate skip for b, got %+v", res.Items)
	}
}

func TestOrchestrator_SkipsAlreadyScheduled(t *testing.T) {
	store := newTestLedger(t)
	ctx := context.Background()
	auto := &fakeAuto{sess: &fakeSession{submitErrs: map[string][]error{}}}
	o := newTestOrchestrator(t, store, auto)

	// Premier passage: tout le dossier est planifié.
	if _, err := o.Run(ctx, testVideos("a.mp4", "b.mp4"), "acct", testRule(), testWindow()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Relance sur le même dossier avant la réconciliation: les vidéos
	// encore dans le ledger schedules ne doivent pas être re-réservées.
	res, err := o.Run(ctx, testVideos("a.mp4", "b.mp4", "c.mp4"), "acct", testRule(), testWindow())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Succeeded != 1 || res.Skipped != 2 {
		t.Fatalf("counts: %+v", res)
	}
	for _, item := range res.Items {
		if item.VideoID != "c" && item.ErrorCode != CodeDuplicate {
			t.Fatalf("%s should be a duplicate skip, got %+v", item.VideoID, item)
		}
	}

	records, err := store.LoadSchedules(ctx, "acct")
	if err != nil {
		t.Fatalf("LoadSchedules: %v", err)
	}
	seen := make(map[string]int)
	for _, r := range records {
		seen[r.VideoID]++
	}
	if len(records) != 3 || seen["a"] != 1 || seen["b"] != 1 || seen["c"] != 1 {
		t.Fatalf("each video should hold exactly one slot, got %+v", seen)
	}
}

func TestOrchestrator_FailedItemDoesNotStopBatch(t *testing.T) {
	store := newTestLedger(t)
	boom := errors.New("flaky network")
	auto := &fakeAuto{sess: &fakeSession{submitErrs: map[string][]error{
		// Échoue sur les deux tentatives (MaxAttempts=2).
		"a.mp4": {boom, boom},
	}}}
	o := newTestOrchestrator(t, store, auto)

	res, err := o.Run(context.Background(), testVideos("a.mp4", "b.mp4"), "acct", testRule(), testWindow())
	if err != nil {
		t.Fatalf("Run should not fail the batch: %v", err)
	}
	if res.Failed != 1 || res.Succeeded != 1 {
		t.Fatalf("counts: %+v", res)
	}
	if res.Items[0].ErrorCode != CodeFailedItem {
		t.Fatalf("want failed_item, got %s", res.Items[0].ErrorCode)
	}

	records, _ := store.LoadSchedules(context.Background(), "acct")
	if len(records) != 1 || records[0].VideoID != "b" {
		t.Fatalf("only b should be persisted, got %+v", records)
	}
}

func TestOrchestrator_TransientErrorIsRetried(t *testing.T) {
	store := newTestLedger(t)
	auto := &fakeAuto{sess: &fakeSession{submitErrs: map[string][]error{
		// Une erreur puis un succès: la vidéo doit passer.
		"a.mp4": {errors.New("timeout")},
	}}}
	o := newTestOrchestrator(t, store, auto)

	res, err := o.Run(context.Background(), testVideos("a.mp4"), "acct", testRule(), testWindow())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Succeeded != 1 {
		t.Fatalf("retry should have recovered: %+v", res)
	}
	if auto.sess.resets == 0 {
		t.Fatalf("retry should reset the upload page first")
	}
}

func TestOrchestrator_RateLimitStopsRemainingItems(t *testing.T) {
	store := newTestLedger(t)
	auto := &fakeAuto{sess: &fakeSession{submitErrs: map[string][]error{
		"a.mp4": {ports.ErrRateLimited},
	}}}
	o := newTestOrchestrator(t, store, auto)

	res, err := o.Run(context.Background(), testVideos("a.mp4", "b.mp4", "c.mp4"), "acct", testRule(), testWindow())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 || res.Skipped != 2 || res.Succeeded != 0 {
		t.Fatalf("counts: %+v", res)
	}
	if res.Items[0].ErrorCode != CodePlatformRejection {
		t.Fatalf("want platform_rejection, got %s", res.Items[0].ErrorCode)
	}
	for _, item := range res.Items[1:] {
		if item.ErrorCode != CodePlatformRejection {
			t.Fatalf("remaining items should carry platform_rejection, got %s", item.ErrorCode)
		}
	}
}

type failingLedger struct {
	ports.LedgerStore
}

func (f *failingLedger) SaveSchedule(ctx context.Context, rec domain.ScheduleRecord) error {
	return errors.New("disk full")
}

func TestOrchestrator_PersistenceFailureHaltsBatch(t *testing.T) {
	store := &failingLedger{LedgerStore: newTestLedger(t)}
	auto := &fakeAuto{sess: &fakeSession{submitErrs: map[string][]error{}}}
	o := newTestOrchestrator(t, store, auto)

	res, err := o.Run(context.Background(), testVideos("a.mp4", "b.mp4"), "acct", testRule(), testWindow())
	if ErrorCode(err) != CodePersistence {
		t.Fatalf("want persistence error, got %v", err)
	}
	// Le batch s'arrête dès le premier échec d'écriture.
	if res.Failed != 1 || len(res.Items) != 1 {
		t.Fatalf("counts: %+v", res)
	}
}

func TestOrchestrator_CanceledContextSkipsItems(t *testing.T) {
	store := newTestLedger(t)
	auto := &fakeAuto{sess: &fakeSession{submitErrs: map[string][]error{}}}
	o := newTestOrchestrator(t, store, auto)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.Run(ctx, testVideos("a.mp4", "b.mp4"), "acct", testRule(), testWindow())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped != 2 {
		t.Fatalf("all items should be skipped: %+v", res)
	}
	for _, item := range res.Items {
		if item.ErrorCode != CodeCanceled {
			t.Fatalf("want canceled, got %s", item.ErrorCode)
		}
	}
}

func TestOrchestrator_SerializesPerAccount(t *testing.T) {
	store := newTestLedger(t)
	auto := &fakeAuto{sess: &fakeSession{submitErrs: map[string][]error{}}}
	o := newTestOrchestrator(t, store, auto)

	if err := o.limiter.Acquire(context.Background(), "acct"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer o.limiter.Release("acct")

	_, err := o.Run(context.Background(), testVideos("a.mp4"), "acct", testRule(), testWindow())
	if !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("want conflict while account busy, got %v", err)
	}
}

func TestOrchestrator_SessionUnavailable(t *testing.T) {
	store := newTestLedger(t)
	auto := &fakeAuto{openErr: ports.ErrNotLoggedIn}
	o := newTestOrchestrator(t, store, auto)

	_, err := o.Run(context.Background(), testVideos("a.mp4"), "acct", testRule(), testWindow())
	if ErrorCode(err) != CodeSessionUnavailable {
		t.Fatalf("want session_unavailable, got %v", err)
	}
	if !errors.Is(err, ports.ErrNotLoggedIn) {
		t.Fatalf("cause should be preserved: %v", err)
	}
}
