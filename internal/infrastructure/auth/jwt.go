package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pot-code/go-elearning/internal/domain"
)

const (
	claimsKey = "auth.claims"
	tokenKey  = "auth.token"
)

// AppTokenClaims claims of the tokens issued by the e-learning API
type AppTokenClaims struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`

	jwt.StandardClaims
}

// UserID ID claim, falls back to the subject
func (tk *AppTokenClaims) UserID() string {
	if tk.ID != "" {
		return tk.ID
	}
	return tk.Subject
}

// TimeRemaining remaining time before the token get expired
func (tk *AppTokenClaims) TimeRemaining() time.Duration {
	if tk.ExpiresAt == 0 {
		return 0
	}
	exp := time.Unix(tk.ExpiresAt, 0)
	now := time.Now()

	if exp.Before(now) {
		return 0
	}
	return exp.Sub(now)
}

// JWTUtil verifies bearer tokens with the secret shared with the backend
type JWTUtil struct {
	secret []byte
	method jwt.SigningMethod
}

// NewJWTUtil create a JWTUtil instance, method is one of the HMAC algorithms, anything else
// falls back to HS256
func NewJWTUtil(method, secret string) *JWTUtil {
	var signMethod jwt.SigningMethod
	switch method {
	case "HS256":
		signMethod = jwt.SigningMethodHS256
	case "HS512":
		signMethod = jwt.SigningMethodHS512
	case "HS384":
		signMethod = jwt.SigningMethodHS384
	default:
		signMethod = jwt.SigningMethodHS256
	}
	return &JWTUtil{
		method: signMethod,
		secret: []byte(secret),
	}
}

// Sign sign token
func (ju *JWTUtil) Sign(claims *AppTokenClaims) (string, error) {
	token := jwt.NewWithClaims(ju.method, claims)
	return token.SignedString(ju.secret)
}

// Validate validate token string with secret and return AppTokenClaims
func (ju *JWTUtil) Validate(tokenStr string) (*AppTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AppTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != ju.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", token.Method.Alg())
		}
		return ju.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims := token.Claims.(*AppTokenClaims)
	if claims.UserID() == "" {
		return nil, fmt.Errorf("token carries no user ID")
	}
	return claims, nil
}

// SetContextToken keep the raw token and its claims in the echo context
func (ju *JWTUtil) SetContextToken(c echo.Context, tokenStr string, claims *AppTokenClaims) {
	c.Set(tokenKey, tokenStr)
	c.Set(claimsKey, claims)
}

// GetContextToken claims set by SetContextToken
func (ju *JWTUtil) GetContextToken(c echo.Context) *AppTokenClaims {
	v, ok := c.Get(claimsKey).(*AppTokenClaims)
	if ok {
		return v
	}
	return nil
}

// GetRawToken token string set by SetContextToken
func (ju *JWTUtil) GetRawToken(c echo.Context) string {
	v, _ := c.Get(tokenKey).(string)
	return v
}

// ExtractToken get token string from the Authorization header. Browsers can't set headers on
// websocket handshakes, so upgrade requests may pass it as the access_token query parameter.
func (ju *JWTUtil) ExtractToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "" {
			return strings.TrimSpace(parts[1]), nil
		}
		return "", domain.ErrMissingToken
	}
	if isUpgrade(c.Request()) {
		if token := c.QueryParam("access_token"); token != "" {
			return token, nil
		}
	}
	return "", domain.ErrMissingToken
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
