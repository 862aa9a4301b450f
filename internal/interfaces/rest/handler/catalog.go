package handler

import (
	"bytes"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/go-elearning/internal/catalog"
	"github.com/pot-code/go-elearning/internal/domain"
	"github.com/pot-code/go-elearning/internal/infrastructure/auth"
	"github.com/pot-code/go-elearning/internal/infrastructure/validate"
)

// MaxAvatarSize largest accepted avatar upload
const MaxAvatarSize = 5 << 20

// CatalogHandler courses, enrollments and the learner profile
type CatalogHandler struct {
	catalogUseCase catalog.CatalogUseCase
	jwtUtil        *auth.JWTUtil
	validator      validate.Validator
}

// NewCatalogHandler .
func NewCatalogHandler(
	CatalogUseCase catalog.CatalogUseCase,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *CatalogHandler {
	return &CatalogHandler{CatalogUseCase, JWTUtil, Validator}
}

// HandleDashboard GET /catalog/dashboard
func (ch *CatalogHandler) HandleDashboard(c echo.Context) error {
	dashboard, err := ch.catalogUseCase.Dashboard(c.Request().Context(), ch.userID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dashboard)
}

// HandleListCourses GET /catalog/courses?q=&filter=
func (ch *CatalogHandler) HandleListCourses(c echo.Context) error {
	filter, err := catalog.ParseFilter(c.QueryParam("filter"))
	if err != nil {
		return validationError(c, "Failed to validate params", []*validate.FieldError{
			validate.NewFieldError("filter", "filter must be one of all, not_started, in_progress, completed"),
		})
	}

	listing, err := ch.catalogUseCase.ListCourses(c.Request().Context(), ch.userID(c), c.QueryParam("q"), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listing)
}

// HandleGetCourse GET /catalog/courses/:id
func (ch *CatalogHandler) HandleGetCourse(c echo.Context) error {
	details := ch.catalogUseCase.GetCourseDetails(c.Request().Context(), c.Param("id"))
	if details == nil {
		return standardError(c, http.StatusNotFound, "Course not available")
	}
	return c.JSON(http.StatusOK, details)
}

// HandleEnroll POST /catalog/courses/:id/enroll
func (ch *CatalogHandler) HandleEnroll(c echo.Context) error {
	courseID := c.Param("id")
	if err := ch.validator.Empty("id", courseID); err != nil {
		return validationError(c, "Failed to validate params", err)
	}
	enrollment, err := ch.catalogUseCase.Enroll(c.Request().Context(), courseID, ch.userID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, enrollment)
}

// HandleGetMe GET /me
func (ch *CatalogHandler) HandleGetMe(c echo.Context) error {
	user, err := ch.catalogUseCase.GetMe(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// HandleUpdateMe PUT /me, multipart form with name, phone and an optional avatar file
func (ch *CatalogHandler) HandleUpdateMe(c echo.Context) error {
	update := &domain.ProfileUpdate{
		Name:  c.FormValue("name"),
		Phone: c.FormValue("phone"),
	}
	if fh, err := c.FormFile("file"); err == nil {
		if fh.Size > MaxAvatarSize {
			return validationError(c, "Failed to validate fields", []*validate.FieldError{
				validate.NewFieldError("file", "file must not exceed 5MB"),
			})
		}
		src, err := fh.Open()
		if err != nil {
			return standardError(c, http.StatusUnprocessableEntity, "Failed to read avatar")
		}
		defer src.Close()
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, io.LimitReader(src, MaxAvatarSize)); err != nil {
			return standardError(c, http.StatusUnprocessableEntity, "Failed to read avatar")
		}
		update.AvatarName = fh.Filename
		update.Avatar = buf.Bytes()
	}

	if err := ch.validator.AllEmpty([]string{"name", "phone", "file"}, update.Name, update.Phone, update.Avatar); err != nil {
		return validationError(c, "Nothing to update", []*validate.FieldError{err})
	}
	if err := ch.validator.Struct(update); err != nil {
		return validationError(c, "Failed to validate fields", err)
	}

	user, err := ch.catalogUseCase.UpdateProfile(c.Request().Context(), ch.userID(c), update)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (ch *CatalogHandler) userID(c echo.Context) string {
	return ch.jwtUtil.GetContextToken(c).UserID()
}
