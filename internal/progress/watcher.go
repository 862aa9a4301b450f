package progress

import (
	"context"
	"sync"
	"time"

	"github.com/pot-code/go-elearning/internal/domain"
	"github.com/pot-code/go-elearning/internal/notify"
	"go.uber.org/zap"
)

// Player exposes the playback position of a media element, both values are in seconds
type Player interface {
	CurrentTime() float64
	Duration() float64
}

// Options tuning of a watcher, zero fields fall back to DefaultOptions
type Options struct {
	Interval  time.Duration // sampling interval while playing
	Threshold int           // percentage at which the lesson counts as completed
	Debounce  int           // minimum change before a new write is sent
}

// DefaultOptions 1s sampling, completion at 90%, writes every 2%
func DefaultOptions() *Options {
	return &Options{
		Interval:  time.Second,
		Threshold: 90,
		Debounce:  2,
	}
}

// Target identifies whose progress on which lesson a watcher reports
type Target struct {
	LessonID string `json:"lesson_id" validate:"required"`
	ModuleID string `json:"module_id" validate:"required"`
	CourseID string `json:"course_id" validate:"required"`
	UserID   string `json:"-"`
}

// State watcher snapshot
type State struct {
	Progress  int  `json:"progress"`
	Completed bool `json:"completed"`
	LastSent  int  `json:"last_sent"`
	Playing   bool `json:"playing"`
}

type samplingLoop struct {
	stop chan struct{}
	done chan struct{}
}

// Watcher turns the playback position of one lesson into throttled progress writes.
//
// Writes of a watcher never overlap: the write lock is held across the network call and the
// sampling loop skips ticks while a write is in flight. A failed write is logged and the next
// sample supersedes it.
type Watcher struct {
	target    Target
	player    Player
	client    domain.ProgressClient
	publisher notify.Publisher
	opts      Options
	ctx       context.Context
	logger    *zap.Logger

	mu        sync.Mutex
	progress  int
	completed bool
	lastSent  int
	loop      *samplingLoop
	closed    bool

	writeMu sync.Mutex
}

// NewWatcher create a watcher, ctx is used for every write made by the sampling loop
func NewWatcher(
	ctx context.Context,
	target Target,
	player Player,
	client domain.ProgressClient,
	publisher notify.Publisher,
	opts *Options,
	logger *zap.Logger,
) *Watcher {
	o := *DefaultOptions()
	if opts != nil {
		if opts.Interval > 0 {
			o.Interval = opts.Interval
		}
		if opts.Threshold > 0 {
			o.Threshold = opts.Threshold
		}
		if opts.Debounce > 0 {
			o.Debounce = opts.Debounce
		}
	}
	return &Watcher{
		target:    target,
		player:    player,
		client:    client,
		publisher: publisher,
		opts:      o,
		ctx:       ctx,
		logger: logger.With(
			zap.String("lesson.id", target.LessonID),
			zap.String("user.id", target.UserID),
		),
	}
}

// Load seed the cached progress from the backend, reports whether a record exists for the lesson
func (w *Watcher) Load(ctx context.Context) bool {
	if w.target.LessonID == "" || w.target.UserID == "" {
		return false
	}
	for _, lp := range w.client.ReadAllLessonProgress(ctx, w.target.UserID) {
		if lp.LessonID != w.target.LessonID {
			continue
		}
		w.mu.Lock()
		w.progress = lp.Progress
		w.completed = lp.Completed
		w.lastSent = lp.Progress
		w.mu.Unlock()
		return true
	}
	return false
}

// State current snapshot
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return State{
		Progress:  w.progress,
		Completed: w.completed,
		LastSent:  w.lastSent,
		Playing:   w.loop != nil,
	}
}

// Playing start the sampling loop, it's a no-op when a loop is already running, the watcher is
// closed or the player duration is unknown
func (w *Watcher) Playing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.loop != nil || w.player.Duration() <= 0 {
		return false
	}

	loop := &samplingLoop{stop: make(chan struct{}), done: make(chan struct{})}
	w.loop = loop
	go w.run(loop)
	return true
}

// Paused stop sampling, no sample is taken once it returns
func (w *Watcher) Paused() {
	w.stopLoop()
}

// Ended stop sampling and report the lesson as completed
func (w *Watcher) Ended(ctx context.Context) bool {
	w.stopLoop()
	return w.report(ctx, 100, true, true)
}

// MarkCompleted report the lesson as completed without touching the sampling loop
func (w *Watcher) MarkCompleted(ctx context.Context) bool {
	return w.report(ctx, 100, true, true)
}

// Close stop sampling for good, later calls to Playing are ignored
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.stopLoop()
}

// Sample read the player once and report the derived percentage, reaching the completion
// threshold marks the lesson completed
func (w *Watcher) Sample(ctx context.Context) bool {
	duration := w.player.Duration()
	if duration <= 0 {
		return false
	}
	p := Percent(w.player.CurrentTime(), duration)
	return w.Report(ctx, p, p >= w.opts.Threshold)
}

// Report forward percent unless it differs from the last forwarded value by less than the
// debounce delta. Completion reports skip the delta check, only an identical completion that
// was already forwarded is dropped. Returns true when a write succeeded.
func (w *Watcher) Report(ctx context.Context, percent int, completed bool) bool {
	return w.report(ctx, percent, completed, false)
}

func (w *Watcher) report(ctx context.Context, percent int, completed, force bool) bool {
	if w.target.LessonID == "" || w.target.UserID == "" {
		return false
	}
	percent = domain.ClampPercent(percent)

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	if !force {
		if !completed && abs(percent-w.lastSent) < w.opts.Debounce {
			w.mu.Unlock()
			return false
		}
		if completed && w.completed && percent == w.lastSent {
			w.mu.Unlock()
			return false
		}
	}
	w.lastSent = percent
	w.progress = percent
	if completed {
		w.completed = true
	}
	w.mu.Unlock()

	t := w.target
	_, err := w.client.WriteLessonProgress(ctx, &domain.LessonProgressUpdate{
		LessonID:  t.LessonID,
		ModuleID:  t.ModuleID,
		CourseID:  t.CourseID,
		UserID:    t.UserID,
		Progress:  percent,
		Completed: completed,
	})
	if err != nil {
		w.logger.Warn("Failed to write lesson progress", zap.Error(err),
			zap.Int("progress", percent),
			zap.Bool("completed", completed),
		)
		return false
	}
	w.logger.Debug("Lesson progress written", zap.Int("progress", percent), zap.Bool("completed", completed))
	w.notify()
	return true
}

func (w *Watcher) notify() {
	if w.publisher == nil {
		return
	}
	t := w.target
	w.publisher.Publish(notify.Event{Kind: notify.LessonProgressChanged, ID: t.LessonID, UserID: t.UserID})
	if t.ModuleID != "" {
		w.publisher.Publish(notify.Event{Kind: notify.ModuleProgressChanged, ID: t.ModuleID, UserID: t.UserID})
	}
	if t.CourseID != "" {
		w.publisher.Publish(notify.Event{Kind: notify.CourseProgressChanged, ID: t.CourseID, UserID: t.UserID})
	}
}

func (w *Watcher) run(loop *samplingLoop) {
	defer close(loop.done)
	// time.Ticker drops ticks while Sample blocks on a slow write
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-loop.stop:
			return
		case <-ticker.C:
			select {
			case <-loop.stop:
				return
			default:
			}
			w.Sample(w.ctx)
		}
	}
}

func (w *Watcher) stopLoop() {
	w.mu.Lock()
	loop := w.loop
	w.loop = nil
	w.mu.Unlock()
	if loop == nil {
		return
	}
	close(loop.stop)
	<-loop.done
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
