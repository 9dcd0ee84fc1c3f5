package domain

import (
	"fmt"
	"time"
)

type SlotStatus string

const (
	SlotPlanned  SlotStatus = "planned"
	SlotConsumed SlotStatus = "consumed"
)

// Slot est un horodatage de publication réservé pour une vidéo.
// Immutable une fois assigné.
type Slot struct {
	At     time.Time  `json:"at"`
	Status SlotStatus `json:"status"`
}

// TimeOfDay borne une fenêtre quotidienne (ex: 09:00 → 17:00).
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// On renvoie l'instant correspondant sur le jour calendaire de day.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay accepte le format "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var out TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &out.Hour, &out.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	if !out.Valid() {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	return out, nil
}
