package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/go-elearning/internal/domain"
	"github.com/pot-code/go-elearning/internal/infrastructure/auth"
	"github.com/pot-code/go-elearning/internal/infrastructure/validate"
	"github.com/pot-code/go-elearning/internal/progress"
)

// PlaybackHandler drives the playback sessions of the lesson player
type PlaybackHandler struct {
	registry  *progress.Registry
	jwtUtil   *auth.JWTUtil
	validator validate.Validator
}

// NewPlaybackHandler .
func NewPlaybackHandler(
	Registry *progress.Registry,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *PlaybackHandler {
	return &PlaybackHandler{Registry, JWTUtil, Validator}
}

type positionRequest struct {
	Position float64 `json:"position" validate:"min=0"`
	Duration float64 `json:"duration" validate:"min=0"`
}

type stateRequest struct {
	State string `json:"state" validate:"required,oneof=playing paused ended"`
	positionRequest
}

// HandleOpen POST /playback/sessions
func (ph *PlaybackHandler) HandleOpen(c echo.Context) error {
	target := new(progress.Target)
	if err := c.Bind(target); err != nil {
		return standardError(c, http.StatusUnprocessableEntity, "Failed to bind playback target")
	}
	if err := ph.validator.Struct(target); err != nil {
		return validationError(c, "Failed to validate fields", err)
	}
	target.UserID = ph.jwtUtil.GetContextToken(c).UserID()

	session, err := ph.registry.Open(c.Request().Context(), *target, ph.jwtUtil.GetRawToken(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, session.View())
}

// HandleState PUT /playback/sessions/:id/state
func (ph *PlaybackHandler) HandleState(c echo.Context) error {
	req := new(stateRequest)
	if err := c.Bind(req); err != nil {
		return standardError(c, http.StatusUnprocessableEntity, "Failed to bind player state")
	}
	if err := ph.validator.Struct(req); err != nil {
		return validationError(c, "Failed to validate fields", err)
	}
	state, err := progress.ParsePlayerState(req.State)
	if err != nil {
		return err
	}

	session, err := ph.session(c)
	if err != nil {
		return err
	}
	if err := session.Transition(c.Request().Context(), state, req.Position, req.Duration); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session.View())
}

// HandlePosition PUT /playback/sessions/:id/position
func (ph *PlaybackHandler) HandlePosition(c echo.Context) error {
	req := new(positionRequest)
	if err := c.Bind(req); err != nil {
		return standardError(c, http.StatusUnprocessableEntity, "Failed to bind player position")
	}
	if err := ph.validator.Struct(req); err != nil {
		return validationError(c, "Failed to validate fields", err)
	}

	session, err := ph.session(c)
	if err != nil {
		return err
	}
	session.UpdatePosition(req.Position, req.Duration)
	return c.JSON(http.StatusOK, session.View())
}

// HandleComplete POST /playback/sessions/:id/complete
func (ph *PlaybackHandler) HandleComplete(c echo.Context) error {
	session, err := ph.session(c)
	if err != nil {
		return err
	}
	session.Complete(c.Request().Context())
	return c.JSON(http.StatusOK, session.View())
}

// HandleClose DELETE /playback/sessions/:id
func (ph *PlaybackHandler) HandleClose(c echo.Context) error {
	if err := ph.registry.Close(c.Param("id"), ph.jwtUtil.GetContextToken(c).UserID()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (ph *PlaybackHandler) session(c echo.Context) (*progress.Session, error) {
	id := c.Param("id")
	if id == "" {
		return nil, domain.ErrSessionNotFound
	}
	return ph.registry.Get(id, ph.jwtUtil.GetContextToken(c).UserID())
}
