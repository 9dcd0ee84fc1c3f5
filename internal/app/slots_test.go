package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/domain"
)

func testRule() domain.Rule {
	return domain.Rule{
		MinOffsetMinutes: 15,
		MaxOffsetMonths:  1,
		MinuteStep:       5,
		IntervalMinutes:  60,
	}
}

func newTestGenerator(t *testing.T, seed int64, now time.Time) *SlotGenerator {
	t.Helper()
	g := NewSlotGenerator(zerolog.Nop(), seed)
	g.now = func() time.Time { return now }
	return g
}

func TestSlotGenerator_AlignmentAndSpacing(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGenerator(t, 1, now)

	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	slots, err := g.Generate(5, day, day,
		domain.TimeOfDay{Hour: 9}, domain.TimeOfDay{Hour: 17}, testRule())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(slots) != 5 {
		t.Fatalf("want 5 slots, got %d", len(slots))
	}

	for i, s := range slots {
		if s.At.Minute()%5 != 0 {
			t.Fatalf("slot %d not aligned: %v", i, s.At)
		}
		if s.Status != domain.SlotPlanned {
			t.Fatalf("slot %d status: want planned, got %s", i, s.Status)
		}
		if i > 0 {
			gap := s.At.Sub(slots[i-1].At)
			if gap < 60*time.Minute {
				t.Fatalf("slots %d/%d too close: %v", i-1, i, gap)
			}
		}
	}

	first := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	if !slots[0].At.Equal(first) {
		t.Fatalf("first slot: want %v, got %v", first, slots[0].At)
	}
}

func TestSlotGenerator_SpacingWhenIntervalNotMultipleOfStep(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGenerator(t, 1, now)

	// step=15, interval=20: l'alignement d'un candidat ne doit pas le
	// rapprocher de son prédécesseur sous l'intervalle.
	rule := domain.Rule{
		MinOffsetMinutes: 15,
		MaxOffsetMonths:  1,
		MinuteStep:       15,
		IntervalMinutes:  20,
	}
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	slots, err := g.Generate(5, day, day,
		domain.TimeOfDay{Hour: 9}, domain.TimeOfDay{Hour: 17}, rule)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for i, s := range slots {
		if s.At.Minute()%15 != 0 {
			t.Fatalf("slot %d not aligned: %v", i, s.At)
		}
		if i > 0 {
			if gap := s.At.Sub(slots[i-1].At); gap < 20*time.Minute {
				t.Fatalf("slots %d/%d only %v apart, interval is 20m", i-1, i, gap)
			}
		}
	}
}

func TestSlotGenerator_ConcurrentGenerateIsSafe(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGenerator(t, 7, now)

	rule := testRule()
	rule.RandomizeWithinStep = true
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	// Previews et batchs partagent le même générateur: des appels jittés
	// simultanés doivent rester sans course et reproductibles.
	var wg sync.WaitGroup
	results := make([][]domain.Slot, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			slots, err := g.Generate(6, day, day,
				domain.TimeOfDay{Hour: 9}, domain.TimeOfDay{Hour: 17}, rule)
			if err != nil {
				t.Errorf("Generate: %v", err)
				return
			}
			results[i] = slots
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		for j := range results[0] {
			if !results[i][j].At.Equal(results[0][j].At) {
				t.Fatalf("identical inputs should give identical slots, call %d differs at %d", i, j)
			}
		}
	}
}

func TestSlotGenerator_DailyLimit(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGenerator(t, 1, now)

	rule := testRule()
	rule.DailyLimit = 2
	start := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)

	slots, err := g.Generate(6, start, end,
		domain.TimeOfDay{Hour: 9}, domain.TimeOfDay{Hour: 17}, rule)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	perDay := make(map[string]int)
	for _, s := range slots {
		perDay[s.At.Format("2006-01-02")]++
	}
	for day, n := range perDay {
		if n > 2 {
			t.Fatalf("day %s has %d slots, limit is 2", day, n)
		}
	}

	// 3 jours x 2 max = 6: un 7e créneau ne tient pas.
	_, err = g.Generate(7, start, end,
		domain.TimeOfDay{Hour: 9}, domain.TimeOfDay{Hour: 17}, rule)
	if ErrorCode(err) != CodeCapacity {
		t.Fatalf("want capacity error, got %v", err)
	}
}

func TestSlotGenerator_JitterStaysInStepAndIsDeterministic(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	rule := testRule()
	rule.RandomizeWithinStep = true
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	win := domain.TimeOfDay{Hour: 9}
	winEnd := domain.TimeOfDay{Hour: 17}

	g1 := newTestGenerator(t, 42, now)
	slots, err := g1.Generate(6, day, day, win, winEnd, rule)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for i, s := range slots {
		grid := time.Date(2026, 9, 2, 9+i, 0, 0, 0, time.UTC)
		delta := s.At.Sub(grid)
		if delta < 0 || delta > 4*time.Minute {
			t.Fatalf("slot %d jitter out of step bucket: %v", i, delta)
		}
		if i > 0 && s.At.Sub(slots[i-1].At) < 60*time.Minute {
			t.Fatalf("jitter broke spacing between %d and %d", i-1, i)
		}
	}

	// Même seed, même sortie.
	g2 := newTestGenerator(t, 42, now)
	again, err := g2.Generate(6, day, day, win, winEnd, rule)
	if err != nil {
		t.Fatalf("Generate (again): %v", err)
	}
	for i := range slots {
		if !slots[i].At.Equal(again[i].At) {
			t.Fatalf("seeded output differs at %d: %v vs %v", i, slots[i].At, again[i].At)
		}
	}
}

func TestSlotGenerator_SkipsCandidatesBelowMinOffset(t *testing.T) {
	rule := testRule()
	rule.MinOffsetMinutes = 60
	// now en plein milieu de la fenêtre: les candidats de début de journée
	// sont écartés sans décaler les suivants.
	now := time.Date(2026, 9, 2, 9, 30, 0, 0, time.UTC)
	g := newTestGenerator(t, 1, now)

	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	slots, err := g.Generate(3, day, day,
		domain.TimeOfDay{Hour: 9}, domain.TimeOfDay{Hour: 17}, rule)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := time.Date(2026, 9, 2, 11, 0, 0, 0, time.UTC)
	if !slots[0].At.Equal(want) {
		t.Fatalf("first slot: want %v, got %v", want, slots[0].At)
	}
}

func TestSlotGenerator_Rejections(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGenerator(t, 1, now)
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	bad := testRule()
	bad.MinuteStep = 7
	if _, err := g.Generate(1, day, day, domain.TimeOfDay{Hour: 9}, domain.TimeOfDay{Hour: 17}, bad); ErrorCode(err) != CodeInvalidRule {
		t.Fatalf("want invalid_rule, got %v", err)
	}

	// Fenêtre inversée.
	if _, err := g.Generate(1, day, day, domain.TimeOfDay{Hour: 17}, domain.TimeOfDay{Hour: 9}, testRule()); ErrorCode(err) != CodeCapacity {
		t.Fatalf("want capacity for inverted window, got %v", err)
	}

	// Plage inversée.
	if _, err := g.Generate(1, day.AddDate(0, 0, 1), day, domain.TimeOfDay{Hour: 9}, domain.TimeOfDay{Hour: 17}, testRule()); ErrorCode(err) != CodeCapacity {
		t.Fatalf("want capacity for inverted range, got %v", err)
	}

	var ce *CodedError
	_, err := g.Generate(0, day, day, domain.TimeOfDay{Hour: 9}, domain.TimeOfDay{Hour: 17}, testRule())
	if !errors.As(err, &ce) || ce.Code != CodeCapacity {
		t.Fatalf("want coded capacity error, got %v", err)
	}
}
