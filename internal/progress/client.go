package progress

import (
	"context"
	"fmt"
	"math"
	"net/url"

	"github.com/pot-code/go-elearning/internal/domain"
	"github.com/pot-code/go-elearning/internal/infrastructure/backend"
	"github.com/pot-code/go-elearning/internal/infrastructure/logging"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// RemoteClient progress client backed by the e-learning API
type RemoteClient struct {
	api *backend.Client
}

var _ domain.ProgressClient = &RemoteClient{}

// NewRemoteClient .
func NewRemoteClient(api *backend.Client) *RemoteClient {
	return &RemoteClient{api: api}
}

type percentageResponse struct {
	Percentage *float64 `json:"percentage"`
}

func (pr *percentageResponse) value() int {
	if pr.Percentage == nil {
		return 0
	}
	return domain.ClampPercent(int(math.Round(*pr.Percentage)))
}

// the backend may store progress as a float
type lessonProgressRecord struct {
	LessonID  string  `json:"lessonId"`
	UserID    string  `json:"userId"`
	Progress  float64 `json:"progress"`
	Completed bool    `json:"completed"`
}

// WriteLessonProgress store the progress of one lesson, the error is always a *backend.NetworkError
func (rc *RemoteClient) WriteLessonProgress(ctx context.Context, update *domain.LessonProgressUpdate) (*domain.LessonProgress, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "RemoteClient.WriteLessonProgress", "external.http")
	defer apmSpan.End()

	path := fmt.Sprintf("/progress/lessons/%s/progress", url.PathEscape(update.LessonID))
	out := &lessonProgressRecord{
		LessonID:  update.LessonID,
		UserID:    update.UserID,
		Progress:  float64(update.Progress),
		Completed: update.Completed,
	}
	if err := rc.api.PostJSON(ctx, path, update, out); err != nil {
		return nil, err
	}
	return &domain.LessonProgress{
		LessonID:  out.LessonID,
		UserID:    out.UserID,
		Progress:  domain.ClampPercent(int(math.Round(out.Progress))),
		Completed: out.Completed,
	}, nil
}

// ReadModuleProgress module completion percentage, 0 when the backend can't answer
func (rc *RemoteClient) ReadModuleProgress(ctx context.Context, moduleID, userID string) int {
	apmSpan, ctx := apm.StartSpan(ctx, "RemoteClient.ReadModuleProgress", "external.http")
	defer apmSpan.End()

	path := fmt.Sprintf("/progress/modules/%s/users/%s", url.PathEscape(moduleID), url.PathEscape(userID))
	var out percentageResponse
	if err := rc.api.GetJSON(ctx, path, &out); err != nil {
		logging.ExtractLoggerFromContext(ctx).Warn("Failed to read module progress", zap.Error(err),
			zap.String("module.id", moduleID),
			zap.String("user.id", userID),
		)
		return 0
	}
	return out.value()
}

// ReadCourseProgress course completion percentage, 0 when the backend can't answer
func (rc *RemoteClient) ReadCourseProgress(ctx context.Context, courseID, userID string) int {
	apmSpan, ctx := apm.StartSpan(ctx, "RemoteClient.ReadCourseProgress", "external.http")
	defer apmSpan.End()

	path := fmt.Sprintf("/progress/courses/%s/users/%s", url.PathEscape(courseID), url.PathEscape(userID))
	var out percentageResponse
	if err := rc.api.GetJSON(ctx, path, &out); err != nil {
		logging.ExtractLoggerFromContext(ctx).Warn("Failed to read course progress", zap.Error(err),
			zap.String("course.id", courseID),
			zap.String("user.id", userID),
		)
		return 0
	}
	return out.value()
}

// ReadAllLessonProgress every lesson progress record of userID, empty when the backend can't answer
func (rc *RemoteClient) ReadAllLessonProgress(ctx context.Context, userID string) []*domain.LessonProgress {
	apmSpan, ctx := apm.StartSpan(ctx, "RemoteClient.ReadAllLessonProgress", "external.http")
	defer apmSpan.End()

	path := fmt.Sprintf("/progress/users/%s/progress", url.PathEscape(userID))
	var records []*lessonProgressRecord
	if err := rc.api.GetJSON(ctx, path, &records); err != nil {
		logging.ExtractLoggerFromContext(ctx).Warn("Failed to read lesson progress", zap.Error(err),
			zap.String("user.id", userID),
		)
		return []*domain.LessonProgress{}
	}

	result := make([]*domain.LessonProgress, 0, len(records))
	for _, r := range records {
		if r == nil || r.LessonID == "" {
			continue
		}
		result = append(result, &domain.LessonProgress{
			LessonID:  r.LessonID,
			UserID:    r.UserID,
			Progress:  domain.ClampPercent(int(math.Round(r.Progress))),
			Completed: r.Completed,
		})
	}
	return result
}
