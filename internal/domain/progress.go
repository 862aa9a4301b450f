package domain

import "context"

// LessonProgress remote owned progress record of a lesson
type LessonProgress struct {
	LessonID  string `json:"lessonId"`
	UserID    string `json:"userId,omitempty"`
	Progress  int    `json:"progress"`
	Completed bool   `json:"completed"`
}

// DisplayProgress progress clamped to [0,100], completed lessons read 100
func (lp *LessonProgress) DisplayProgress() int {
	if lp.Completed {
		return 100
	}
	return ClampPercent(lp.Progress)
}

// LessonProgressUpdate payload of a lesson progress write
type LessonProgressUpdate struct {
	LessonID  string `json:"lessonId"`
	ModuleID  string `json:"moduleId"`
	CourseID  string `json:"courseId"`
	UserID    string `json:"userId"`
	Progress  int    `json:"progress"`
	Completed bool   `json:"completed"`
}

// ClampPercent clamp v into [0,100]
func ClampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ProgressClient stateless read/write access to the remote progress store.
//
// Reads fail open: they never return an error, a backend outage reads as zero progress.
type ProgressClient interface {
	WriteLessonProgress(ctx context.Context, update *LessonProgressUpdate) (*LessonProgress, error)
	ReadModuleProgress(ctx context.Context, moduleID, userID string) int
	ReadCourseProgress(ctx context.Context, courseID, userID string) int
	ReadAllLessonProgress(ctx context.Context, userID string) []*LessonProgress
}

// CatalogClient read access to courses and enrollments plus profile editing
type CatalogClient interface {
	ListCourses(ctx context.Context) ([]*Course, error)
	GetCourseDetails(ctx context.Context, courseID string) (*CourseDetails, error)
	GetMe(ctx context.Context) (*UserModel, error)
	UpdateProfile(ctx context.Context, userID string, update *ProfileUpdate) (*UserModel, error)
	Enroll(ctx context.Context, courseID, userID string) (*Enrollment, error)
	ListEnrollments(ctx context.Context, userID string) ([]*Enrollment, error)
}
