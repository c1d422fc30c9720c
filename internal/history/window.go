package history

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mvamarnath1/interview/internal/models"
)

// TurnStore persists turns beyond the in-memory window.
type TurnStore interface {
	Append(ctx context.Context, turn *models.Turn) error
	Recent(ctx context.Context, sessionID string, limit int) ([]models.Turn, error)
}

// Window keeps the last size turns of every session in memory, oldest first.
// When a store is attached each turn is also persisted, and a session missing
// from memory (e.g. after a restart) is reloaded from the store on first use.
type Window struct {
	mu     sync.Mutex
	size   int
	turns  map[string][]models.Turn
	store  TurnStore
	logger *zap.Logger
}

func NewWindow(size int, store TurnStore, logger *zap.Logger) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		size:   size,
		turns:  make(map[string][]models.Turn),
		store:  store,
		logger: logger,
	}
}

// Size returns the configured window length.
func (w *Window) Size() int {
	return w.size
}

// Recent returns a copy of the session's window in arrival order.
func (w *Window) Recent(ctx context.Context, sessionID string) []models.Turn {
	w.load(ctx, sessionID)

	w.mu.Lock()
	defer w.mu.Unlock()
	turns := w.turns[sessionID]
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	return out
}

// Append records a turn, evicting the oldest one past the window size.
// A turn whose ctx has already ended is rejected with ctx's error; the check
// is made under the window lock so it cannot race a Drop for the same session.
// Persistence failures are logged; the in-memory window is always updated.
func (w *Window) Append(ctx context.Context, turn models.Turn) error {
	w.load(ctx, turn.SessionID)

	w.mu.Lock()
	if err := ctx.Err(); err != nil {
		w.mu.Unlock()
		return err
	}
	turns := append(w.turns[turn.SessionID], turn)
	if len(turns) > w.size {
		turns = append([]models.Turn(nil), turns[len(turns)-w.size:]...)
	}
	w.turns[turn.SessionID] = turns
	w.mu.Unlock()

	if w.store == nil {
		return nil
	}
	if err := w.store.Append(context.WithoutCancel(ctx), &turn); err != nil {
		w.logger.Warn("failed to persist turn",
			zap.String("session_id", turn.SessionID),
			zap.Error(err))
	}
	return nil
}

// Drop forgets a session's in-memory window. Persisted turns are kept.
func (w *Window) Drop(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.turns, sessionID)
}

// Sessions returns how many sessions currently hold a window.
func (w *Window) Sessions() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.turns)
}

func (w *Window) load(ctx context.Context, sessionID string) {
	w.mu.Lock()
	_, ok := w.turns[sessionID]
	w.mu.Unlock()
	if ok || ctx.Err() != nil {
		return
	}

	var loaded []models.Turn
	if w.store != nil {
		turns, err := w.store.Recent(ctx, sessionID, w.size)
		if err != nil {
			w.logger.Warn("failed to load turn history",
				zap.String("session_id", sessionID),
				zap.Error(err))
		} else {
			loaded = turns
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if _, ok := w.turns[sessionID]; !ok {
		w.turns[sessionID] = loaded
	}
}
