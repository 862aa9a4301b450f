package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/go-elearning/internal/course"
	"github.com/pot-code/go-elearning/internal/infrastructure/auth"
	"github.com/pot-code/go-elearning/internal/infrastructure/validate"
	"github.com/pot-code/go-elearning/internal/infrastructure/websocket"
)

// ProgressHandler course progress views, one-shot or streamed over a websocket
type ProgressHandler struct {
	view       *course.ProgressView
	subscriber course.Subscriber
	jwtUtil    *auth.JWTUtil
	validator  validate.Validator
	follow     echo.HandlerFunc
}

// NewProgressHandler .
func NewProgressHandler(
	View *course.ProgressView,
	Subscriber course.Subscriber,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
	options ...*websocket.HeartbeatOption,
) *ProgressHandler {
	ph := &ProgressHandler{
		view:       View,
		subscriber: Subscriber,
		jwtUtil:    JWTUtil,
		validator:  Validator,
	}
	ph.follow = websocket.WithHeartbeat(ph.streamCourse, options...)
	return ph
}

// HandleGetCourseProgress GET /progress/courses/:courseId
func (ph *ProgressHandler) HandleGetCourseProgress(c echo.Context) error {
	courseID := c.Param("courseId")
	if err := ph.validator.Empty("courseId", courseID); err != nil {
		return validationError(c, "Failed to validate params", err)
	}
	userID := ph.jwtUtil.GetContextToken(c).UserID()
	return c.JSON(http.StatusOK, ph.view.Load(c.Request().Context(), courseID, userID))
}

// HandleFollowCourse GET /ws/progress?course_id= pushes a fresh view on every progress change
func (ph *ProgressHandler) HandleFollowCourse(c echo.Context) error {
	if err := ph.validator.Empty("course_id", c.QueryParam("course_id")); err != nil {
		return validationError(c, "Failed to validate params", err)
	}
	return ph.follow(c)
}

func (ph *ProgressHandler) streamCourse(ctx context.Context, c echo.Context, conn *websocket.Conn) error {
	courseID := c.QueryParam("course_id")
	userID := ph.jwtUtil.GetContextToken(c).UserID()
	return ph.view.Follow(ctx, ph.subscriber, courseID, userID, func(v *course.View) error {
		return conn.WriteJSON(v)
	})
}
