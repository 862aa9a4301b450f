package progress

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pot-code/go-elearning/internal/domain"
	"github.com/pot-code/go-elearning/internal/infrastructure/backend"
	"github.com/pot-code/go-elearning/internal/infrastructure/logging"
	"github.com/pot-code/go-elearning/internal/infrastructure/uuid"
	"github.com/pot-code/go-elearning/internal/notify"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// PlayerState state reported by the browser player
type PlayerState string

// player states
const (
	StatePlaying PlayerState = "playing"
	StatePaused  PlayerState = "paused"
	StateEnded   PlayerState = "ended"
)

// ParsePlayerState .
func ParsePlayerState(s string) (PlayerState, error) {
	switch ps := PlayerState(s); ps {
	case StatePlaying, StatePaused, StateEnded:
		return ps, nil
	}
	return "", domain.ErrInvalidPlaybackState
}

// Session a browser player bound to a watcher. It serves the latest position pushed by the
// browser to the sampling loop.
type Session struct {
	ID     string
	Target Target

	watcher *Watcher
	now     func() time.Time

	mu       sync.RWMutex
	position float64
	duration float64
	lastSeen time.Time
}

var _ Player = &Session{}

// SessionView JSON shape of a session
type SessionView struct {
	ID       string  `json:"id"`
	LessonID string  `json:"lesson_id"`
	ModuleID string  `json:"module_id"`
	CourseID string  `json:"course_id"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
	State
}

// CurrentTime last pushed position in seconds
func (s *Session) CurrentTime() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

// Duration last pushed media duration in seconds, 0 when unknown
func (s *Session) Duration() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duration
}

// UpdatePosition record a position sample, invalid numbers are ignored and a non-positive
// duration keeps the previous one
func (s *Session) UpdatePosition(position, duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if isFinite(position) && position >= 0 {
		s.position = position
	}
	if isFinite(duration) && duration > 0 {
		s.duration = duration
	}
	s.lastSeen = s.now()
}

// Transition apply a player state change
func (s *Session) Transition(ctx context.Context, state PlayerState, position, duration float64) error {
	s.UpdatePosition(position, duration)
	switch state {
	case StatePlaying:
		s.watcher.Playing()
	case StatePaused:
		s.watcher.Paused()
	case StateEnded:
		s.watcher.Ended(ctx)
	default:
		return domain.ErrInvalidPlaybackState
	}
	return nil
}

// Complete manually mark the lesson as completed
func (s *Session) Complete(ctx context.Context) bool {
	s.touch()
	return s.watcher.MarkCompleted(ctx)
}

// View snapshot for rendering
func (s *Session) View() *SessionView {
	s.mu.RLock()
	position, duration := s.position, s.duration
	s.mu.RUnlock()
	return &SessionView{
		ID:       s.ID,
		LessonID: s.Target.LessonID,
		ModuleID: s.Target.ModuleID,
		CourseID: s.Target.CourseID,
		Position: position,
		Duration: duration,
		State:    s.watcher.State(),
	}
}

func (s *Session) idle(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastSeen)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

// RegistryOption optional registry settings
type RegistryOption struct {
	Watcher *Options
	Now     func() time.Time
}

// Registry live playback sessions keyed by ID
type Registry struct {
	ctx       context.Context
	client    domain.ProgressClient
	publisher notify.Publisher
	idGen     uuid.Generator
	opts      *Options
	now       func() time.Time
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry create a registry, ctx bounds the lifetime of every sampling loop
func NewRegistry(
	ctx context.Context,
	client domain.ProgressClient,
	publisher notify.Publisher,
	idGen uuid.Generator,
	logger *zap.Logger,
	options ...*RegistryOption,
) *Registry {
	r := &Registry{
		ctx:       ctx,
		client:    client,
		publisher: publisher,
		idGen:     idGen,
		opts:      DefaultOptions(),
		now:       time.Now,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
	for _, option := range options {
		if option.Watcher != nil {
			r.opts = option.Watcher
		}
		if option.Now != nil {
			r.now = option.Now
		}
	}
	return r
}

// Open start a session for target, the token authenticates every write of its watcher
func (r *Registry) Open(ctx context.Context, target Target, token string) (*Session, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "Registry.Open", "service")
	defer apmSpan.End()

	id, err := r.idGen.Generate()
	if err != nil {
		return nil, err
	}

	logger := r.logger.With(zap.String("session.id", id))
	watcherCtx := backend.WithToken(logging.SetLoggerInContext(r.ctx, logger), token)
	s := &Session{
		ID:       id,
		Target:   target,
		now:      r.now,
		lastSeen: r.now(),
	}
	s.watcher = NewWatcher(watcherCtx, target, s, r.client, r.publisher, r.opts, logger)
	s.watcher.Load(backend.WithToken(ctx, token))

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	logger.Debug("Playback session opened", zap.String("lesson.id", target.LessonID))
	return s, nil
}

// Get the session id owned by userID
func (r *Registry) Get(id, userID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Target.UserID != userID {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Close stop and forget the session id owned by userID
func (r *Registry) Close(id, userID string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || s.Target.UserID != userID {
		r.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	s.watcher.Close()
	return nil
}

// CloseAll stop every session
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.watcher.Close()
	}
}

// Reap close sessions that received no update within maxIdle, returns how many were closed
func (r *Registry) Reap(maxIdle time.Duration) int {
	now := r.now()
	var stale []*Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if s.idle(now) > maxIdle {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.watcher.Close()
		r.logger.Debug("Idle playback session closed", zap.String("session.id", s.ID))
	}
	return len(stale)
}

// RunReaper reap idle sessions every interval until ctx is done
func (r *Registry) RunReaper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Reap(maxIdle); n > 0 {
				r.logger.Info("Reaped idle playback sessions", zap.Int("count", n))
			}
		}
	}
}

// Len number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
