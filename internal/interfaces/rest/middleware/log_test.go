package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := echo.New()
	e.Use(Logging(zap.New(core), &LoggingConfig{
		Skipper: func(c echo.Context) bool { return c.Path() == "/healthz" },
		UserID: func(c echo.Context) string {
			uid, _ := c.Get("uid").(string)
			return uid
		},
	}))
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/courses/:id", func(c echo.Context) error {
		c.Set("uid", "u1")
		return c.NoContent(http.StatusOK)
	})
	e.GET("/broken", func(c echo.Context) error { return c.NoContent(http.StatusBadGateway) })

	for _, target := range []string{"/healthz", "/courses/c1", "/broken"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	ok := entries[0]
	assert.Equal(t, zapcore.DebugLevel, ok.Level)
	fields := ok.ContextMap()
	assert.Equal(t, "u1", fields["user.id"])
	assert.Equal(t, []interface{}{"c1"}, fields["route.params.value"])
	assert.EqualValues(t, http.StatusOK, fields["http.response.status_code"])

	failed := entries[1]
	assert.Equal(t, zapcore.WarnLevel, failed.Level)
	assert.NotContains(t, failed.ContextMap(), "user.id")
}
