package catalog

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pot-code/go-elearning/internal/domain"
	"github.com/pot-code/go-elearning/internal/infrastructure/backend"
	"go.elastic.co/apm"
)

// RemoteCatalog catalog client backed by the e-learning API
type RemoteCatalog struct {
	api *backend.Client
}

var _ domain.CatalogClient = &RemoteCatalog{}

// NewRemoteCatalog .
func NewRemoteCatalog(api *backend.Client) *RemoteCatalog {
	return &RemoteCatalog{api: api}
}

// ListCourses every published course
func (rc *RemoteCatalog) ListCourses(ctx context.Context) ([]*domain.Course, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "RemoteCatalog.ListCourses", "external.http")
	defer apmSpan.End()

	var courses []*domain.Course
	if err := rc.api.GetJSON(ctx, "/courses", &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// GetCourseDetails course with modules and lessons
func (rc *RemoteCatalog) GetCourseDetails(ctx context.Context, courseID string) (*domain.CourseDetails, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "RemoteCatalog.GetCourseDetails", "external.http")
	defer apmSpan.End()

	details := new(domain.CourseDetails)
	if err := rc.api.GetJSON(ctx, "/courses/"+url.PathEscape(courseID), details); err != nil {
		return nil, err
	}
	return details, nil
}

// GetMe user owning the bearer token in ctx
func (rc *RemoteCatalog) GetMe(ctx context.Context) (*domain.UserModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "RemoteCatalog.GetMe", "external.http")
	defer apmSpan.End()

	user := new(domain.UserModel)
	if err := rc.api.GetJSON(ctx, "/users/me", user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfile send the non-empty fields of update as a multipart form
func (rc *RemoteCatalog) UpdateProfile(ctx context.Context, userID string, update *domain.ProfileUpdate) (*domain.UserModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "RemoteCatalog.UpdateProfile", "external.http")
	defer apmSpan.End()

	fields := make(map[string]string)
	if update.Name != "" {
		fields["name"] = update.Name
	}
	if update.Phone != "" {
		fields["phone"] = update.Phone
	}
	var file *backend.FilePart
	if len(update.Avatar) > 0 {
		file = &backend.FilePart{Field: "file", FileName: update.AvatarName, Content: update.Avatar}
	}

	user := new(domain.UserModel)
	if err := rc.api.PutMultipart(ctx, "/users/"+url.PathEscape(userID), fields, file, user); err != nil {
		return nil, err
	}
	return user, nil
}

type enrollRequest struct {
	UserID string `json:"userId"`
}

// Enroll userID in courseID
func (rc *RemoteCatalog) Enroll(ctx context.Context, courseID, userID string) (*domain.Enrollment, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "RemoteCatalog.Enroll", "external.http")
	defer apmSpan.End()

	path := fmt.Sprintf("/enrollment/courses/%s/enrollments", url.PathEscape(courseID))
	enrollment := &domain.Enrollment{UserID: userID, CourseID: courseID}
	if err := rc.api.PostJSON(ctx, path, &enrollRequest{UserID: userID}, enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// ListEnrollments enrollments of userID, each with its course tree and lesson progress
func (rc *RemoteCatalog) ListEnrollments(ctx context.Context, userID string) ([]*domain.Enrollment, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "RemoteCatalog.ListEnrollments", "external.http")
	defer apmSpan.End()

	path := fmt.Sprintf("/enrollment/users/%s/enrollments", url.PathEscape(userID))
	var enrollments []*domain.Enrollment
	if err := rc.api.GetJSON(ctx, path, &enrollments); err != nil {
		return nil, err
	}
	return enrollments, nil
}
