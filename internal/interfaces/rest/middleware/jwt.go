package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/go-elearning/internal/infrastructure/auth"
	"github.com/pot-code/go-elearning/internal/infrastructure/backend"
	"github.com/pot-code/go-elearning/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// VerifyToken validate the bearer JWT and forward it to every backend call of the request
func VerifyToken(ju *auth.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := ju.ExtractToken(c)
			if err != nil {
				return c.NoContent(http.StatusUnauthorized)
			}

			claims, err := ju.Validate(tokenStr)
			if err != nil {
				return c.NoContent(http.StatusUnauthorized)
			}
			ju.SetContextToken(c, tokenStr, claims)

			r := c.Request()
			ctx := backend.WithToken(r.Context(), tokenStr)
			logger := logging.ExtractLoggerFromContext(ctx).With(zap.String("user.id", claims.UserID()))
			c.SetRequest(r.WithContext(logging.SetLoggerInContext(ctx, logger)))
			return next(c)
		}
	}
}
