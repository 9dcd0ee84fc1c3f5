package domain

import (
	"fmt"
	"time"
)

// Rule regroupe toutes les contraintes de planification TikTok.
// Valeur immuable: validée au chargement, jamais relue depuis la config
// pendant un batch.
type Rule struct {
	MinOffsetMinutes    int  `json:"minOffsetMinutes"`
	MaxOffsetMonths     int  `json:"maxOffsetMonths"`
	MinuteStep          int  `json:"minuteStep"`
	IntervalMinutes     int  `json:"intervalMinutes"`
	DailyLimit          int  `json:"dailyLimit,omitempty"` // 0 = illimité
	RandomizeWithinStep bool `json:"randomizeWithinStep,omitempty"`
}

// RuleError nomme le champ fautif, pour remonter une erreur exploitable
// côté CLI comme côté API.
type RuleError struct {
	Field  string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("invalid rule: %s %s", e.Field, e.Reason)
}

func (r Rule) Validate() error {
	if r.MinOffsetMinutes < 0 {
		return &RuleError{Field: "minOffsetMinutes", Reason: "must be >= 0"}
	}
	if r.MaxOffsetMonths < 1 {
		return &RuleError{Field: "maxOffsetMonths", Reason: "must be >= 1"}
	}
	if r.MinuteStep <= 0 || 60%r.MinuteStep != 0 {
		return &RuleError{Field: "minuteStep", Reason: "must be a positive divisor of 60"}
	}
	if r.IntervalMinutes <= 0 {
		return &RuleError{Field: "intervalMinutes", Reason: "must be > 0"}
	}
	if r.IntervalMinutes < r.MinuteStep {
		return &RuleError{Field: "intervalMinutes", Reason: "must be >= minuteStep"}
	}
	if r.DailyLimit < 0 {
		return &RuleError{Field: "dailyLimit", Reason: "must be >= 0"}
	}
	// Borne basse conservatrice: le mois le plus court fait 28 jours.
	if r.MinOffsetMinutes >= r.MaxOffsetMonths*28*24*60 {
		return &RuleError{Field: "minOffsetMinutes", Reason: "exceeds the scheduling horizon"}
	}
	return nil
}

// MinAllowed renvoie le premier instant planifiable: now + MinOffsetMinutes,
// arrondi vers le haut au prochain pas de minute valide.
func (r Rule) MinAllowed(now time.Time) time.Time {
	return r.AlignToStep(now.Add(time.Duration(r.MinOffsetMinutes) * time.Minute))
}

// MaxAllowed utilise une arithmétique en mois calendaires (17 fév + 1 mois
// = 17 mars), pas un nombre de jours fixe.
func (r Rule) MaxAllowed(now time.Time) time.Time {
	return AddMonths(now, r.MaxOffsetMonths)
}

func (r Rule) WithinBounds(ts, now time.Time) bool {
	min := now.Add(time.Duration(r.MinOffsetMinutes) * time.Minute)
	return !ts.Before(min) && !ts.After(r.MaxAllowed(now))
}

// AlignToStep arrondit la minute vers le haut au prochain multiple de
// MinuteStep, avec report sur l'heure/le jour. Les secondes sont tronquées.
func (r Rule) AlignToStep(ts time.Time) time.Time {
	ts = ts.Truncate(time.Minute)
	rem := ts.Minute() % r.MinuteStep
	if rem == 0 {
		return ts
	}
	return ts.Add(time.Duration(r.MinuteStep-rem) * time.Minute)
}

// AddMonths ajoute des mois calendaires en conservant le jour du mois,
// borné au dernier jour valide du mois d'arrivée (31 jan + 1 mois = 28/29 fév).
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	anchor := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	anchor = anchor.AddDate(0, months, 0)
	if last := daysInMonth(anchor.Year(), anchor.Month()); d > last {
		d = last
	}
	return time.Date(anchor.Year(), anchor.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
