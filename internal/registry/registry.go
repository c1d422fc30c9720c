package registry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mvamarnath1/interview/internal/metrics"
	"github.com/mvamarnath1/interview/internal/models"
)

const (
	// DefaultCodeSpace is the number of distinct 6-digit join codes.
	DefaultCodeSpace = 1_000_000
	randomAttempts   = 32
)

// SessionStore persists session records across restarts.
type SessionStore interface {
	Save(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	ListActive(ctx context.Context) ([]models.Session, error)
}

// Registry owns sessions and the join-code table. A code maps to exactly one
// Open or Joined session and is released when that session expires or closes.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	codes    map[string]string // join code -> session id

	// held across a save so records reach the store in mutation order
	persistMu sync.Mutex

	ttl       time.Duration
	idle      time.Duration
	codeSpace int
	store     SessionStore
	logger    *zap.Logger
	now       func() time.Time

	hooksMu sync.RWMutex
	onEnd   []func(models.Session)
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithCodeSpace shrinks the join-code space, used in tests.
func WithCodeSpace(n int) Option {
	return func(r *Registry) { r.codeSpace = n }
}

func WithStore(store SessionStore) Option {
	return func(r *Registry) { r.store = store }
}

// New creates a registry whose sessions expire ttl after creation and are
// closed after idle without Touch. A zero idle disables idle cleanup.
func New(ttl, idle time.Duration, logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		sessions:  make(map[string]*models.Session),
		codes:     make(map[string]string),
		ttl:       ttl,
		idle:      idle,
		codeSpace: DefaultCodeSpace,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnEnd registers fn to run after a session reaches Expired or Closed.
// Hooks run outside the registry lock.
func (r *Registry) OnEnd(fn func(models.Session)) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.onEnd = append(r.onEnd, fn)
}

// Load restores Open and Joined sessions from the store. Sessions whose TTL
// elapsed while the process was down are expired on the way in.
func (r *Registry) Load(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	stored, err := r.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("load sessions: %w", err)
	}

	now := r.now()
	loaded := 0
	var expired []models.Session

	r.mu.Lock()
	for i := range stored {
		s := stored[i]
		if s.Expired(now) {
			s.State = models.SessionExpired
			s.UpdatedAt = now
			expired = append(expired, s)
			continue
		}
		if owner, taken := r.codes[s.JoinCode]; taken && owner != s.ID {
			r.logger.Warn("duplicate join code in store, skipping session",
				zap.String("session_id", s.ID),
				zap.String("join_code", s.JoinCode))
			continue
		}
		// idle time is measured from the restart
		s.LastActivityAt = now
		r.sessions[s.ID] = &s
		r.codes[s.JoinCode] = s.ID
		loaded++
	}
	metrics.SessionsActive.Set(float64(len(r.codes)))
	r.mu.Unlock()

	for i := range expired {
		r.save(ctx, expired[i])
	}
	return loaded, nil
}

// CreateSession allocates a session with a fresh join code.
func (r *Registry) CreateSession(ctx context.Context, ownerName string) (models.Session, error) {
	r.mu.Lock()
	code, err := r.allocateCodeLocked()
	if err != nil {
		r.mu.Unlock()
		return models.Session{}, err
	}

	now := r.now()
	s := &models.Session{
		ID:             uuid.NewString(),
		OwnerName:      ownerName,
		JoinCode:       code,
		State:          models.SessionOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(r.ttl),
		LastActivityAt: now,
	}
	r.sessions[s.ID] = s
	r.codes[code] = s.ID
	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Set(float64(len(r.codes)))

	r.commitLocked(ctx, *s)
	return *s, nil
}

// ResolveJoinCode returns the session holding code. An elapsed TTL expires
// the session on the spot and reports ErrExpired.
func (r *Registry) ResolveJoinCode(ctx context.Context, code string) (string, error) {
	r.mu.Lock()
	id, ok := r.codes[code]
	if !ok {
		r.mu.Unlock()
		return "", models.ErrNotFound
	}
	s := r.sessions[id]
	if s.Expired(r.now()) {
		ended := r.endLocked(ctx, s, models.SessionExpired)
		r.fire(ended)
		return "", models.ErrExpired
	}
	r.mu.Unlock()
	return id, nil
}

// Get returns a snapshot of the session. Active sessions past their TTL are
// expired first.
func (r *Registry) Get(ctx context.Context, sessionID string) (models.Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		if r.store == nil {
			return models.Session{}, models.ErrNotFound
		}
		stored, err := r.store.Get(ctx, sessionID)
		if err != nil {
			return models.Session{}, err
		}
		return *stored, nil
	}
	if s.State.Active() && s.Expired(r.now()) {
		ended := r.endLocked(ctx, s, models.SessionExpired)
		r.fire(ended)
		return ended, nil
	}
	snap := *s
	r.mu.Unlock()
	return snap, nil
}

// Active reports whether the session exists and still accepts bindings.
func (r *Registry) Active(ctx context.Context, sessionID string) bool {
	s, err := r.Get(ctx, sessionID)
	return err == nil && s.State.Active()
}

// Touch records activity on an active session. Activity is kept in memory
// only and written with the next state change.
func (r *Registry) Touch(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return models.ErrNotFound
	}
	if !s.State.Active() {
		return models.ErrInvalidSession
	}
	s.LastActivityAt = r.now()
	return nil
}

// MarkJoined moves an Open session to Joined. Joined sessions are unchanged.
func (r *Registry) MarkJoined(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return models.ErrNotFound
	}
	switch s.State {
	case models.SessionJoined:
		r.mu.Unlock()
		return nil
	case models.SessionOpen:
	default:
		r.mu.Unlock()
		return models.ErrInvalidSession
	}

	now := r.now()
	s.State = models.SessionJoined
	s.UpdatedAt = now
	s.LastActivityAt = now
	r.commitLocked(ctx, *s)
	return nil
}

// Close terminates a session and releases its join code. Closing an already
// ended session is a no-op.
func (r *Registry) Close(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		if r.store == nil {
			return models.ErrNotFound
		}
		// evicted from memory, so already ended
		_, err := r.store.Get(ctx, sessionID)
		return err
	}
	if !s.State.Active() {
		r.mu.Unlock()
		return nil
	}
	ended := r.endLocked(ctx, s, models.SessionClosed)
	r.fire(ended)
	return nil
}

// Sweep expires sessions past their TTL, closes idle ones and evicts ended
// sessions from memory. It returns how many sessions expired and how many
// were closed for inactivity.
func (r *Registry) Sweep(ctx context.Context) (expired, idled int) {
	r.mu.Lock()
	now := r.now()
	var due []*models.Session
	for id, s := range r.sessions {
		if !s.State.Active() {
			delete(r.sessions, id)
			continue
		}
		if s.Expired(now) || (r.idle > 0 && now.Sub(s.LastActivityAt) >= r.idle) {
			due = append(due, s)
		}
	}
	r.mu.Unlock()

	for _, s := range due {
		r.mu.Lock()
		// may have changed while unlocked
		if !s.State.Active() {
			r.mu.Unlock()
			continue
		}
		state := models.SessionClosed
		if s.Expired(r.now()) {
			state = models.SessionExpired
			expired++
		} else {
			idled++
		}
		ended := r.endLocked(ctx, s, state)
		r.fire(ended)
	}
	return expired, idled
}

// ActiveCount returns the number of sessions holding a join code.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}

// allocateCodeLocked draws random codes and falls back to a scan, so a free
// code is always found unless the space is saturated.
func (r *Registry) allocateCodeLocked() (string, error) {
	if len(r.codes) >= r.codeSpace {
		return "", models.ErrResourceExhausted
	}
	space := big.NewInt(int64(r.codeSpace))

	var start int
	for attempt := 0; attempt < randomAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, space)
		if err != nil {
			return "", fmt.Errorf("draw join code: %w", err)
		}
		start = int(n.Int64())
		code := formatCode(start)
		if _, taken := r.codes[code]; !taken {
			return code, nil
		}
	}
	for i := 1; i < r.codeSpace; i++ {
		code := formatCode((start + i) % r.codeSpace)
		if _, taken := r.codes[code]; !taken {
			return code, nil
		}
	}
	return "", models.ErrResourceExhausted
}

func formatCode(n int) string {
	return fmt.Sprintf("%06d", n)
}

// endLocked moves s to a terminal state, releases its code and persists it.
// Called with mu held; returns with mu released.
func (r *Registry) endLocked(ctx context.Context, s *models.Session, state models.SessionState) models.Session {
	s.State = state
	s.UpdatedAt = r.now()
	if r.codes[s.JoinCode] == s.ID {
		delete(r.codes, s.JoinCode)
	}
	metrics.SessionsEnded.WithLabelValues(string(state)).Inc()
	metrics.SessionsActive.Set(float64(len(r.codes)))

	snap := *s
	r.commitLocked(ctx, snap)
	return snap
}

// commitLocked persists snap and releases mu. persistMu is taken before mu is
// released so saves of the same session cannot be reordered.
func (r *Registry) commitLocked(ctx context.Context, snap models.Session) {
	r.persistMu.Lock()
	r.mu.Unlock()
	defer r.persistMu.Unlock()
	r.save(ctx, snap)
}

func (r *Registry) save(ctx context.Context, snap models.Session) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, &snap); err != nil {
		r.logger.Warn("failed to persist session",
			zap.String("session_id", snap.ID),
			zap.String("state", string(snap.State)),
			zap.Error(err))
	}
}

func (r *Registry) fire(s models.Session) {
	r.hooksMu.RLock()
	hooks := append([]func(models.Session){}, r.onEnd...)
	r.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(s)
	}
}

