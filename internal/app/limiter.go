package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/ports"
)

// SessionLimiter plafonne le nombre de contextes navigateur ouverts en
// parallèle et garantit au plus une session par compte: le contexte
// authentifié d'un compte est une ressource exclusive. Le plafond est
// ajustable à chaud via SetLimit, typiquement depuis l'API.
//
// Acquire respecte le contexte.
type SessionLimiter struct {
	mu     sync.Mutex
	limit  int
	open   map[string]struct{}
	notify chan struct{}
}

func NewSessionLimiter(limit int) *SessionLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &SessionLimiter{
		limit:  limit,
		open:   make(map[string]struct{}),
		notify: make(chan struct{}),
	}
}

func (l *SessionLimiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

func (l *SessionLimiter) Open() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.open)
}

func (l *SessionLimiter) SetLimit(limit int) {
	if limit <= 0 {
		limit = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit == limit {
		return
	}
	l.limit = limit
	l.signalLocked()
}

// Acquire attend une place sous le plafond pour le compte donné. Si le
// compte détient déjà une session, le refus est immédiat (ErrConflict):
// attendre ne servirait à rien, c'est la même opération qui tourne déjà.
func (l *SessionLimiter) Acquire(ctx context.Context, account string) error {
	for {
		l.mu.Lock()
		if _, busy := l.open[account]; busy {
			l.mu.Unlock()
			return fmt.Errorf("%w: session already open for @%s", ports.ErrConflict, account)
		}
		limit := l.limit
		if limit <= 0 {
			limit = 1
		}
		if len(l.open) < limit {
			l.open[account] = struct{}{}
			l.mu.Unlock()
			return nil
		}
		ch := l.notify
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (l *SessionLimiter) Release(account string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.open, account)
	l.signalLocked()
}

func (l *SessionLimiter) signalLocked() {
	// Réveille tous les waiters en fermant puis recréant le channel.
	close(l.notify)
	l.notify = make(chan struct{})
}
