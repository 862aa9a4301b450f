// Package course assembles the progress of a course, its modules and its lessons for one
// learner, and keeps that view fresh while progress notifications arrive.
package course

import (
	"context"
	"sync"

	"github.com/pot-code/go-elearning/internal/domain"
	"github.com/pot-code/go-elearning/internal/infrastructure/logging"
	"github.com/pot-code/go-elearning/internal/notify"
	"go.elastic.co/apm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ModuleProgress .
type ModuleProgress struct {
	ModuleID string `json:"module_id"`
	Title    string `json:"title"`
	Progress int    `json:"progress"`
}

// LessonProgress display values of one lesson
type LessonProgress struct {
	Progress  int  `json:"progress"`
	Completed bool `json:"completed"`
}

// View progress of a course for one learner
type View struct {
	CourseID string                     `json:"course_id"`
	Progress int                        `json:"progress"`
	Modules  []*ModuleProgress          `json:"modules"`
	Lessons  map[string]*LessonProgress `json:"lessons"`
}

// ProgressView loads course progress views
type ProgressView struct {
	catalog  domain.CatalogClient
	progress domain.ProgressClient
}

// NewProgressView .
func NewProgressView(catalog domain.CatalogClient, progress domain.ProgressClient) *ProgressView {
	return &ProgressView{catalog: catalog, progress: progress}
}

// Load read course, module and lesson progress in parallel. Progress reads fail open, so an
// unreachable backend yields a view full of zeros. Without the course tree only the course
// percentage is filled.
func (pv *ProgressView) Load(ctx context.Context, courseID, userID string) *View {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressView.Load", "service")
	defer apmSpan.End()

	view := &View{
		CourseID: courseID,
		Modules:  []*ModuleProgress{},
		Lessons:  make(map[string]*LessonProgress),
	}

	details, err := pv.catalog.GetCourseDetails(ctx, courseID)
	if err != nil {
		logging.ExtractLoggerFromContext(ctx).Warn("Failed to load course tree", zap.Error(err),
			zap.String("course.id", courseID),
		)
		details = &domain.CourseDetails{ID: courseID}
	}
	for _, m := range details.Modules {
		view.Modules = append(view.Modules, &ModuleProgress{ModuleID: m.ID, Title: m.Title})
	}

	var records []*domain.LessonProgress
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		view.Progress = pv.progress.ReadCourseProgress(egCtx, courseID, userID)
		return nil
	})
	eg.Go(func() error {
		records = pv.progress.ReadAllLessonProgress(egCtx, userID)
		return nil
	})
	for _, mp := range view.Modules {
		mp := mp
		eg.Go(func() error {
			mp.Progress = pv.progress.ReadModuleProgress(egCtx, mp.ModuleID, userID)
			return nil
		})
	}
	eg.Wait()

	byLesson := make(map[string]*domain.LessonProgress, len(records))
	for _, r := range records {
		byLesson[r.LessonID] = r
	}
	for _, l := range details.Lessons() {
		lp := &LessonProgress{}
		if r, ok := byLesson[l.ID]; ok {
			lp.Progress = r.DisplayProgress()
			lp.Completed = r.Completed
		}
		view.Lessons[l.ID] = lp
	}
	return view
}

// Subscriber source of progress notifications
type Subscriber interface {
	Subscribe(filter notify.Filter) *notify.Subscription
}

// Follow push a fresh view of courseID every time its progress changes, until ctx is done or
// push fails. Events arriving while a view is being built collapse into one refresh.
func (pv *ProgressView) Follow(ctx context.Context, sub Subscriber, courseID, userID string, push func(*View) error) error {
	ids := &courseIDs{ids: map[string]bool{courseID: true}}
	s := sub.Subscribe(func(e notify.Event) bool {
		return e.UserID == userID && ids.has(e.ID)
	})
	defer s.Close()

	refresh := func() error {
		view := pv.Load(ctx, courseID, userID)
		keys := []string{courseID}
		for _, m := range view.Modules {
			keys = append(keys, m.ModuleID)
		}
		for id := range view.Lessons {
			keys = append(keys, id)
		}
		ids.set(keys)
		return push(view)
	}
	if err := refresh(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-s.C:
			if !ok {
				return nil
			}
			drain(s)
			if err := refresh(); err != nil {
				return err
			}
		}
	}
}

func drain(s *notify.Subscription) {
	for {
		select {
		case _, ok := <-s.C:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// identifiers belonging to the followed course
type courseIDs struct {
	mu  sync.RWMutex
	ids map[string]bool
}

func (ci *courseIDs) has(id string) bool {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return ci.ids[id]
}

func (ci *courseIDs) set(keys []string) {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	ci.mu.Lock()
	ci.ids = m
	ci.mu.Unlock()
}
