package catalog

import (
	"context"
	"math"
	"strings"

	"github.com/pot-code/go-elearning/internal/domain"
	"github.com/pot-code/go-elearning/internal/infrastructure/logging"
	"go.elastic.co/apm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// maximum number of course progress reads in flight for one dashboard
const dashboardFanOut = 8

// CatalogUseCaseImpl ...
type CatalogUseCaseImpl struct {
	Catalog  domain.CatalogClient
	Progress domain.ProgressClient
}

var _ CatalogUseCase = &CatalogUseCaseImpl{}

// NewCatalogUseCase ...
func NewCatalogUseCase(
	Catalog domain.CatalogClient,
	Progress domain.ProgressClient,
) *CatalogUseCaseImpl {
	return &CatalogUseCaseImpl{Catalog, Progress}
}

// Dashboard every course with the learner's progress, split into completed and in progress.
// The last accessed course is the first one in progress, or else the first completed one.
func (cu *CatalogUseCaseImpl) Dashboard(ctx context.Context, userID string) (*DashboardModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "CatalogUseCaseImpl.Dashboard", "service")
	defer apmSpan.End()

	courses, err := cu.Catalog.ListCourses(ctx)
	if err != nil {
		return nil, err
	}

	sem := semaphore.NewWeighted(dashboardFanOut)
	eg, egCtx := errgroup.WithContext(ctx)
	for _, c := range courses {
		c := c
		if err := sem.Acquire(egCtx, 1); err != nil {
			break
		}
		eg.Go(func() error {
			defer sem.Release(1)
			c.Progress = cu.Progress.ReadCourseProgress(egCtx, c.ID, userID)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dashboard := &DashboardModel{
		Completed:  []*domain.Course{},
		InProgress: []*domain.Course{},
	}
	for _, c := range courses {
		switch {
		case c.Progress == 100:
			dashboard.Completed = append(dashboard.Completed, c)
		case c.Progress > 0 && c.Progress < 100:
			dashboard.InProgress = append(dashboard.InProgress, c)
		}
	}
	if len(dashboard.InProgress) > 0 {
		dashboard.LastAccessed = dashboard.InProgress[0]
	} else if len(dashboard.Completed) > 0 {
		dashboard.LastAccessed = dashboard.Completed[0]
	}
	return dashboard, nil
}

// ListCourses enrolled courses matching query and filter, plus the matching courses the learner
// is not enrolled in. The query is a case-insensitive title substring.
func (cu *CatalogUseCaseImpl) ListCourses(ctx context.Context, userID, query string, filter Filter) (*CourseListing, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "CatalogUseCaseImpl.ListCourses", "service")
	defer apmSpan.End()

	var (
		courses     []*domain.Course
		enrollments []*domain.Enrollment
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		courses, err = cu.Catalog.ListCourses(egCtx)
		return
	})
	eg.Go(func() (err error) {
		enrollments, err = cu.Catalog.ListEnrollments(egCtx, userID)
		return
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	listing := &CourseListing{
		Enrolled:  []*domain.Enrollment{},
		Available: []*domain.Course{},
	}
	enrolled := make(map[string]bool)
	for _, e := range enrollments {
		if e == nil || e.Course == nil {
			continue
		}
		enrolled[e.Course.ID] = true
		e.Course.Progress = CourseProgress(e.Course)
		if !titleMatches(e.Course.Title, query) || !filter.Match(e.Course.Progress) {
			continue
		}
		listing.Enrolled = append(listing.Enrolled, e)
	}
	for _, c := range courses {
		if enrolled[c.ID] || !titleMatches(c.Title, query) {
			continue
		}
		listing.Available = append(listing.Available, c)
	}
	return listing, nil
}

// GetCourseDetails nil when the course can't be loaded
func (cu *CatalogUseCaseImpl) GetCourseDetails(ctx context.Context, courseID string) *domain.CourseDetails {
	apmSpan, ctx := apm.StartSpan(ctx, "CatalogUseCaseImpl.GetCourseDetails", "service")
	defer apmSpan.End()

	details, err := cu.Catalog.GetCourseDetails(ctx, courseID)
	if err != nil {
		logging.ExtractLoggerFromContext(ctx).Warn("Failed to load course details", zap.Error(err),
			zap.String("course.id", courseID),
		)
		return nil
	}
	return details
}

// Enroll .
func (cu *CatalogUseCaseImpl) Enroll(ctx context.Context, courseID, userID string) (*domain.Enrollment, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "CatalogUseCaseImpl.Enroll", "service")
	defer apmSpan.End()

	return cu.Catalog.Enroll(ctx, courseID, userID)
}

// GetMe .
func (cu *CatalogUseCaseImpl) GetMe(ctx context.Context) (*domain.UserModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "CatalogUseCaseImpl.GetMe", "service")
	defer apmSpan.End()

	return cu.Catalog.GetMe(ctx)
}

// UpdateProfile .
func (cu *CatalogUseCaseImpl) UpdateProfile(ctx context.Context, userID string, update *domain.ProfileUpdate) (*domain.UserModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "CatalogUseCaseImpl.UpdateProfile", "service")
	defer apmSpan.End()

	return cu.Catalog.UpdateProfile(ctx, userID, update)
}

// CourseProgress average lesson progress of a course tree, lessons without a record count as 0
func CourseProgress(details *domain.CourseDetails) int {
	lessons := details.Lessons()
	if len(lessons) == 0 {
		return 0
	}
	var total int
	for _, l := range lessons {
		for _, lp := range l.LessonProgresses {
			if lp != nil {
				total += lp.Progress
			}
		}
	}
	avg := math.Round(float64(total) / float64(len(lessons)))
	return domain.ClampPercent(int(avg))
}

func titleMatches(title, query string) bool {
	return query == "" || strings.Contains(strings.ToLower(title), query)
}
