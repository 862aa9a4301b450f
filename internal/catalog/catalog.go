package catalog

import (
	"context"
	"errors"

	"github.com/pot-code/go-elearning/internal/domain"
)

// ErrInvalidFilter unknown course listing filter
var ErrInvalidFilter = errors.New("Invalid course filter")

// Filter narrows the enrolled courses of a listing by progress
type Filter string

// listing filters
const (
	FilterAll        Filter = "all"
	FilterNotStarted Filter = "not_started"
	FilterInProgress Filter = "in_progress"
	FilterCompleted  Filter = "completed"
)

// ParseFilter an empty value means FilterAll
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterNotStarted, FilterInProgress, FilterCompleted:
		return f, nil
	}
	return "", ErrInvalidFilter
}

// Match reports whether a course at progress passes the filter
func (f Filter) Match(progress int) bool {
	switch f {
	case FilterNotStarted:
		return progress == 0
	case FilterInProgress:
		return progress > 0 && progress < 100
	case FilterCompleted:
		return progress == 100
	}
	return true
}

// DashboardModel courses split by completion
type DashboardModel struct {
	Completed    []*domain.Course `json:"completed"`
	InProgress   []*domain.Course `json:"in_progress"`
	LastAccessed *domain.Course   `json:"last_accessed"`
}

// CourseListing enrolled courses with their progress, and the courses still open for enrollment
type CourseListing struct {
	Enrolled  []*domain.Enrollment `json:"enrolled"`
	Available []*domain.Course     `json:"available"`
}

// CatalogUseCase .
type CatalogUseCase interface {
	Dashboard(ctx context.Context, userID string) (*DashboardModel, error)
	ListCourses(ctx context.Context, userID, query string, filter Filter) (*CourseListing, error)
	GetCourseDetails(ctx context.Context, courseID string) *domain.CourseDetails
	Enroll(ctx context.Context, courseID, userID string) (*domain.Enrollment, error)
	GetMe(ctx context.Context) (*domain.UserModel, error)
	UpdateProfile(ctx context.Context, userID string, update *domain.ProfileUpdate) (*domain.UserModel, error)
}
