package domain

import (
	"path/filepath"
	"strings"
)

type VideoStatus string

const (
	VideoDiscovered VideoStatus = "discovered"
	VideoSlotted    VideoStatus = "slotted"
	VideoUploading  VideoStatus = "uploading"
	VideoScheduled  VideoStatus = "scheduled"
	VideoPublished  VideoStatus = "published"
	VideoFailed     VideoStatus = "failed"
)

func (s VideoStatus) IsTerminal() bool {
	return s == VideoScheduled || s == VideoPublished || s == VideoFailed
}

func CanTransition(from, to VideoStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case VideoDiscovered:
		// published = doublon détecté avant tout upload.
		return to == VideoSlotted || to == VideoPublished || to == VideoFailed
	case VideoSlotted:
		return to == VideoUploading || to == VideoFailed
	case VideoUploading:
		return to == VideoScheduled || to == VideoFailed
	case VideoScheduled, VideoPublished, VideoFailed:
		return false
	default:
		return false
	}
}

// Video est l'état en mémoire d'un fichier découvert pour un batch.
// Il n'est jamais persisté tel quel: seuls les ScheduleRecord/PublishRecord
// dérivés le sont.
type Video struct {
	Path      string
	Caption   string
	SizeBytes int64
	Status    VideoStatus
	Slot      *Slot
}

// VideoIdentity normalise le nom de fichier en identifiant stable:
// le stem est coupé au premier underscore ("abc_x264.mp4" → "abc").
func VideoIdentity(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.Index(stem, "_"); i >= 0 {
		return stem[:i]
	}
	return stem
}
