package ports

import (
	"context"
	"time"
)

// Automation pilote la surface d'upload du site cible (un navigateur réel).
// Une seule session active par compte: le contexte navigateur authentifié
// est une ressource exclusive.
type Automation interface {
	OpenUploadSurface(ctx context.Context, account string) (UploadSession, error)
	// VerifyPublished confirme auprès du site qu'une vidéo planifiée est
	// passée en ligne. Utilisé par la réconciliation, hors session d'upload.
	VerifyPublished(ctx context.Context, account, videoID string) (bool, error)
}

// UploadSession est le workflow d'upload d'une vidéo, étape par étape.
// Chaque appel est une attente bornée: un timeout est une erreur
// réessayable, pas une erreur fatale pour le batch.
type UploadSession interface {
	AttachFile(ctx context.Context, path string) error
	SetCaption(ctx context.Context, text string) error
	// SetScheduleTime renvoie ErrUnsupportedTime si la plateforme refuse
	// l'horaire.
	SetScheduleTime(ctx context.Context, at time.Time) error
	DetectCopyrightWarning(ctx context.Context) (bool, error)
	// Submit renvoie ErrRateLimited si un toast de restriction apparaît.
	Submit(ctx context.Context) (Confirmation, error)
	// Reset ramène la session sur une page d'upload vierge (entre deux
	// vidéos ou entre deux tentatives).
	Reset(ctx context.Context) error
	Close() error
}

type Confirmation struct {
	At      time.Time
	Message string
}
