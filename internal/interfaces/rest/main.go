package rest

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	"github.com/pot-code/go-elearning/internal/catalog"
	"github.com/pot-code/go-elearning/internal/course"
	infra "github.com/pot-code/go-elearning/internal/infrastructure"
	"github.com/pot-code/go-elearning/internal/infrastructure/auth"
	"github.com/pot-code/go-elearning/internal/infrastructure/validate"
	"github.com/pot-code/go-elearning/internal/infrastructure/websocket"
	"github.com/pot-code/go-elearning/internal/interfaces/rest/handler"
	"github.com/pot-code/go-elearning/internal/interfaces/rest/middleware"
	"github.com/pot-code/go-elearning/internal/progress"
	"go.elastic.co/apm/module/apmechov4"
	"go.uber.org/zap"
)

// Probe reports whether a dependency is reachable
type Probe func(ctx context.Context) error

// Dependencies use cases served over HTTP. Lifetime ends the long-lived websocket streams,
// nil keeps them open until the peer leaves.
type Dependencies struct {
	Lifetime       context.Context
	Registry       *progress.Registry
	ProgressView   *course.ProgressView
	Subscriber     course.Subscriber
	CatalogUseCase catalog.CatalogUseCase
	Probes         []Probe
}

// NewApp create the echo application with every route registered
func NewApp(option *infra.AppConfig, deps *Dependencies, logger *zap.Logger) *echo.Echo {
	var (
		app           = echo.New()
		validator     = validate.NewValidator()
		jwtUtil       = auth.NewJWTUtil(option.Security.JWTMethod, option.Security.JWTSecret)
		jwtMiddleware = middleware.VerifyToken(jwtUtil)
	)
	app.HideBanner = true
	app.HidePort = true

	registerLivenessProbe(app, deps.Probes)
	if option.Env == infra.EnvDevelopment {
		registerProfileEndpoints(app)

		app.Use(middleware.Logging(logger, &middleware.LoggingConfig{
			Skipper: func(e echo.Context) bool {
				return strings.HasPrefix(e.Request().RequestURI, "/healthz")
			},
			UserID: func(e echo.Context) string {
				if claims := jwtUtil.GetContextToken(e); claims != nil {
					return claims.UserID()
				}
				return ""
			},
		}))
	}
	app.Use(middleware.ErrorHandling(
		&middleware.ErrorHandlingOption{
			Handler: func(c echo.Context, err error) {
				traceID := c.Response().Header().Get(echo.HeaderXRequestID)
				code := handler.StatusOf(err)
				if !c.Response().Committed {
					c.JSON(code, handler.NewRESTStandardError(code, err.Error()).SetTraceID(traceID))
				}
				if code >= http.StatusInternalServerError {
					logger.Error(err.Error(), zap.String("trace.id", traceID), zap.Int("http.response.status_code", code))
				} else {
					logger.Debug(err.Error(), zap.String("trace.id", traceID), zap.Int("http.response.status_code", code))
				}
			},
		},
	))
	app.Use(echo_middleware.Secure())
	if option.DevOP.APM {
		app.Use(apmechov4.Middleware())
	}
	app.Use(echo_middleware.CORS())
	app.Use(middleware.AbortRequest(&middleware.AbortRequestOption{
		Timeout: option.RequestTimeout,
		Skipper: func(e echo.Context) bool {
			return strings.HasPrefix(e.Request().URL.Path, "/api/v1/ws")
		},
	}))

	var (
		PlaybackHandler = handler.NewPlaybackHandler(deps.Registry, jwtUtil, validator)
		ProgressHandler = handler.NewProgressHandler(deps.ProgressView, deps.Subscriber, jwtUtil, validator,
			&websocket.HeartbeatOption{Lifetime: deps.Lifetime})
		CatalogHandler  = handler.NewCatalogHandler(deps.CatalogUseCase, jwtUtil, validator)
	)

	createEndpoint(app,
		&endpoint{
			apiVersion:  "api/v1",
			middlewares: []echo.MiddlewareFunc{echo_middleware.RequestID(), middleware.SetTraceLogger(logger), jwtMiddleware},
			groups: []*apiGroup{
				{
					prefix: "/playback",
					routes: []*route{
						{"POST", "/sessions", PlaybackHandler.HandleOpen, nil},
						{"PUT", "/sessions/:id/state", PlaybackHandler.HandleState, nil},
						{"PUT", "/sessions/:id/position", PlaybackHandler.HandlePosition, nil},
						{"POST", "/sessions/:id/complete", PlaybackHandler.HandleComplete, nil},
						{"DELETE", "/sessions/:id", PlaybackHandler.HandleClose, nil},
					},
				},
				{
					prefix: "/progress",
					routes: []*route{
						{"GET", "/courses/:courseId", ProgressHandler.HandleGetCourseProgress, nil},
					},
				},
				{
					prefix: "/catalog",
					routes: []*route{
						{"GET", "/dashboard", CatalogHandler.HandleDashboard, nil},
						{"GET", "/courses", CatalogHandler.HandleListCourses, nil},
						{"GET", "/courses/:id", CatalogHandler.HandleGetCourse, nil},
						{"POST", "/courses/:id/enroll", CatalogHandler.HandleEnroll, nil},
					},
				},
				{
					prefix: "/me",
					routes: []*route{
						{"GET", "", CatalogHandler.HandleGetMe, nil},
						{"PUT", "", CatalogHandler.HandleUpdateMe, nil},
					},
				},
				{
					prefix: "/ws",
					routes: []*route{
						{"GET", "/progress", ProgressHandler.HandleFollowCourse, nil},
					},
				},
			},
		})
	return app
}

// Serve start the http transport and block until ctx is done, in-flight requests get
// shutdownTimeout to finish
func Serve(ctx context.Context, app *echo.Echo, option *infra.AppConfig, shutdownTimeout time.Duration, logger *zap.Logger) error {
	printRoutes(app, logger)

	addr := fmt.Sprintf("%s:%d", option.Host, option.Port)
	errc := make(chan error, 1)
	go func() {
		logger.Info("Start listening", zap.String("server.address", addr))
		errc <- app.Start(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func printRoutes(app *echo.Echo, logger *zap.Logger) {
	for _, route := range app.Routes() {
		if !strings.HasPrefix(route.Name, "github.com/labstack/echo") {
			logger.Info("Registered route", zap.String("method", route.Method), zap.String("path", route.Path))
		}
	}
}

func registerLivenessProbe(app *echo.Echo, probes []Probe) {
	app.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		for _, probe := range probes {
			if err := probe(ctx); err != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})
}

func registerProfileEndpoints(app *echo.Echo) {
	expvarHandler := expvar.Handler()
	app.GET("/debug/vars", func(c echo.Context) error {
		expvarHandler.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/", func(c echo.Context) error {
		pprof.Index(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/:name", func(c echo.Context) error {
		switch c.Param("name") {
		case "cmdline":
			pprof.Cmdline(c.Response().Writer, c.Request())
		case "profile":
			pprof.Profile(c.Response().Writer, c.Request())
		case "symbol":
			pprof.Symbol(c.Response().Writer, c.Request())
		case "trace":
			pprof.Trace(c.Response().Writer, c.Request())
		default:
			pprof.Handler(c.Param("name")).ServeHTTP(c.Response().Writer, c.Request())
		}
		return nil
	})
}
