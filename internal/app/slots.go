package app

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/domain"
	"github.com/rs/zerolog"
)

// SlotGenerator produit une séquence de créneaux de publication à partir
// d'une plage de dates, d'une fenêtre quotidienne et d'une Rule. La
// dé-duplication globale (contre les ledgers) est le travail de
// l'orchestrateur, pas du générateur.
//
// Generate est sûr en usage concurrent: le même générateur sert les
// previews HTTP et les batchs qui tournent en goroutine.
type SlotGenerator struct {
	logger zerolog.Logger
	seed   int64
	now    func() time.Time
}

// NewSlotGenerator: le seed rend la randomisation reproductible en test.
func NewSlotGenerator(logger zerolog.Logger, seed int64) *SlotGenerator {
	return &SlotGenerator{
		logger: logger,
		seed:   seed,
		now:    time.Now,
	}
}

// Generate renvoie exactement count créneaux, ou une erreur CodeCapacity
// si la combinaison plage/fenêtre/dailyLimit ne peut pas les contenir.
//
// Chaque jour calendaire de [rangeStart, rangeEnd] est traité comme une
// sous-fenêtre [winStart, winEnd]. Les candidats sont alignés sur
// MinuteStep, espacés d'au moins IntervalMinutes, plafonnés à DailyLimit
// par jour, consommés en ordre chronologique. Un candidat hors des bornes
// de la règle est écarté sans décaler ses voisins.
func (g *SlotGenerator) Generate(count int, rangeStart, rangeEnd time.Time, winStart, winEnd domain.TimeOfDay, rule domain.Rule) ([]domain.Slot, error) {
	if err := rule.Validate(); err != nil {
		return nil, coded(CodeInvalidRule, "rule rejected", err)
	}
	if count <= 0 {
		return nil, coded(CodeCapacity, "slot count must be > 0", nil)
	}
	if !winStart.Valid() || !winEnd.Valid() || winStart.Minutes() > winEnd.Minutes() {
		return nil, coded(CodeCapacity, fmt.Sprintf("invalid daily window %s-%s", winStart, winEnd), nil)
	}

	now := g.now()
	interval := time.Duration(rule.IntervalMinutes) * time.Minute
	// Un rand par appel: *rand.Rand n'est pas sûr en concurrence, et un
	// état partagé casserait aussi le déterminisme du seed. Le mélange
	// avec la plage garde des tirages distincts d'un batch à l'autre.
	rng := rand.New(rand.NewSource(g.seed ^ rangeStart.UnixNano()))

	firstDay := startOfDay(rangeStart)
	lastDay := startOfDay(rangeEnd)
	if lastDay.Before(firstDay) {
		return nil, coded(CodeCapacity, "date range end before start", nil)
	}

	slots := make([]domain.Slot, 0, count)

	for day := firstDay; !day.After(lastDay) && len(slots) < count; day = day.AddDate(0, 0, 1) {
		dayEnd := winEnd.On(day)
		perDay := 0
		// Le jitter repart de zéro chaque jour: l'écart de nuit couvre
		// toujours l'intervalle.
		prevJitter := 0

		for cursor := winStart.On(day); !cursor.After(dayEnd) && len(slots) < count; {
			if rule.DailyLimit > 0 && perDay >= rule.DailyLimit {
				break
			}
			candidate := rule.AlignToStep(cursor)
			if candidate.After(dayEnd) {
				break
			}
			// L'intervalle se mesure depuis le créneau aligné émis, pas
			// depuis le curseur brut: avancer avant l'alignement peut
			// rapprocher deux voisins quand IntervalMinutes n'est pas un
			// multiple de MinuteStep.
			cursor = candidate.Add(interval)

			at := candidate
			if rule.RandomizeWithinStep {
				maxDelta := rule.MinuteStep - 1
				if room := int(dayEnd.Sub(candidate) / time.Minute); room < maxDelta {
					maxDelta = room
				}
				if maxDelta < prevJitter {
					// Plus de marge en fin de journée sans casser l'espacement.
					break
				}
				at, prevJitter = jitterWithin(rng, candidate, prevJitter, maxDelta)
			}

			if !rule.WithinBounds(at, now) {
				continue
			}

			slots = append(slots, domain.Slot{At: at, Status: domain.SlotPlanned})
			perDay++
		}
	}

	if len(slots) < count {
		return nil, coded(CodeCapacity,
			fmt.Sprintf("requested %d slots, only %d fit the range/window", count, len(slots)), nil)
	}

	g.logger.Debug().Int("count", len(slots)).
		Time("first", slots[0].At).Time("last", slots[len(slots)-1].At).
		Msg("slots generated")
	return slots, nil
}

// jitterWithin décale le candidat de [prev, maxDelta] minutes, donc jamais
// hors de son bucket MinuteStep. Le décalage est croissant au fil des
// créneaux d'un même jour pour préserver l'espacement IntervalMinutes
// entre voisins.
func jitterWithin(rng *rand.Rand, candidate time.Time, prev, maxDelta int) (time.Time, int) {
	span := maxDelta - prev + 1
	if span <= 1 {
		return candidate.Add(time.Duration(prev) * time.Minute), prev
	}
	delta := prev + rng.Intn(span)
	return candidate.Add(time.Duration(delta) * time.Minute), delta
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
