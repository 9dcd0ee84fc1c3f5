package domain

import "time"

type RecordStatus string

const (
	RecordScheduled RecordStatus = "scheduled"
	RecordPublished RecordStatus = "published"
)

// ScheduleRecord est l'entrée durable du ledger schedules/@<account>.json.
// Créée quand une assignation de slot est confirmée, mutée uniquement par
// la migration vers le ledger publishes.
type ScheduleRecord struct {
	ID         string       `json:"id"`
	Account    string       `json:"account"`
	VideoID    string       `json:"videoId"`
	File       string       `json:"file"`
	Caption    string       `json:"caption"`
	ScheduleAt time.Time    `json:"scheduleAt"`
	CreatedAt  time.Time    `json:"createdAt"`
	Status     RecordStatus `json:"status"`
}

// PublishRecord est append-only dans publishes/@<account>.json.
type PublishRecord struct {
	Account     string    `json:"account"`
	VideoID     string    `json:"videoId"`
	File        string    `json:"file,omitempty"`
	Caption     string    `json:"caption,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	ScheduledAt time.Time `json:"scheduledAt"`
}
